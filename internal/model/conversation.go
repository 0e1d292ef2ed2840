package model

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the 1:1 chat channel bound to exactly one booked
// appointment. Participants are fixed at creation.
type Conversation struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	DoctorID      uuid.UUID `db:"doctor_id" json:"doctor_id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	IsClosed      bool      `db:"is_closed" json:"is_closed"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// HasParticipant reports whether userID is one of the two fixed participants.
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.DoctorID == userID || c.PatientID == userID
}

// KindOf returns the participant kind for userID, derived from the
// conversation's stored doctor id.
func (c *Conversation) KindOf(userID uuid.UUID) ParticipantKind {
	if c.DoctorID == userID {
		return ParticipantKindDoctor
	}
	return ParticipantKindPatient
}
