package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusAvailable AppointmentStatus = "available"
	AppointmentStatusBooked    AppointmentStatus = "booked"
	AppointmentStatusClosed    AppointmentStatus = "closed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusClosed || s == AppointmentStatusCancelled
}

type AppointmentType string

const (
	AppointmentTypeEmergency    AppointmentType = "emergency"
	AppointmentTypeConsultation AppointmentType = "consultation"
	AppointmentTypeCheckup      AppointmentType = "checkup"
	AppointmentTypeFollowUp     AppointmentType = "follow-up"
)

type Appointment struct {
	Base
	DoctorID        uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	AppointmentDate time.Time         `db:"appointment_date" json:"appointment_date"`
	AppointmentType AppointmentType   `db:"appointment_type" json:"appointment_type"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Description     string            `db:"description" json:"description,omitempty"`
	Price           float64           `db:"price" json:"price"`
	PatientID       *uuid.UUID        `db:"patient_id" json:"patient_id,omitempty"`
	IsPaid          bool              `db:"is_paid" json:"is_paid"`
	PaymentDate     *time.Time        `db:"payment_date" json:"payment_date,omitempty"`
	PaymentRef      *string           `db:"payment_ref" json:"payment_ref,omitempty"`

	// Pending booking requests, populated on demand. Non-empty only
	// while the appointment is still available.
	Requests []*AppointmentRequest `db:"-" json:"requests,omitempty"`
}

// AppointmentRequest is a patient's pending claim on an available slot.
type AppointmentRequest struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	UserID        uuid.UUID `db:"user_id" json:"user_id"`
	Message       string    `db:"message" json:"message,omitempty"`
	RequestedAt   time.Time `db:"requested_at" json:"requested_at"`
}

type CreateAppointmentRequest struct {
	Date string `json:"date" binding:"required,dateformat"`
	Time string `json:"time" binding:"required,timeformat"`
	// Pointer so a free consultation (price 0) survives the required check.
	Price           *float64 `json:"price" binding:"required,gte=0"`
	AppointmentType string   `json:"appointment_type" binding:"required,oneof=emergency consultation checkup follow-up"`
	Description     string   `json:"description" binding:"max=1000"`
}

type UpdateAppointmentRequest struct {
	Description     *string  `json:"description" binding:"omitempty,max=1000"`
	Price           *float64 `json:"price" binding:"omitempty,gte=0"`
	AppointmentType *string  `json:"appointment_type" binding:"omitempty,oneof=emergency consultation checkup follow-up"`
}

type SubmitRequestRequest struct {
	Message string `json:"message" binding:"max=1000"`
}

type ConfirmRequestRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type RecordPaymentRequest struct {
	PaymentRef string `json:"payment_ref" binding:"required,max=120"`
}

type AppointmentFilters struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Status    AppointmentStatus
	From      time.Time
	To        time.Time
}
