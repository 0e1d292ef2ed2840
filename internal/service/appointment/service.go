package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medivisit/telehealth-api/internal/model"
	"github.com/medivisit/telehealth-api/internal/repository"
	"github.com/medivisit/telehealth-api/internal/service/conversation"
	"github.com/medivisit/telehealth-api/internal/service/notification"
	apperrors "github.com/medivisit/telehealth-api/pkg/errors"
	"github.com/medivisit/telehealth-api/pkg/logger"
)

const dateTimeLayout = "2006-01-02T15:04"

// Service drives the appointment state machine:
// available -> booked -> closed, with cancelled as an escape transition.
// Confirming a request is the single place a conversation gets created.
type Service struct {
	repo     repository.AppointmentRepository
	convSvc  *conversation.Service
	notifSvc notification.Service
	logger   *logger.Logger
}

func NewService(repo repository.AppointmentRepository, convSvc *conversation.Service, notifSvc notification.Service, l *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		convSvc:  convSvc,
		notifSvc: notifSvc,
		logger:   l.WithComponent("appointment"),
	}
}

// Create opens a new bookable slot owned by the doctor.
func (s *Service) Create(ctx context.Context, doctorID uuid.UUID, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	when, err := time.Parse(dateTimeLayout, req.Date+"T"+req.Time)
	if err != nil {
		return nil, apperrors.Validation("invalid date or time format", err)
	}
	if req.Price == nil || *req.Price < 0 {
		return nil, apperrors.Validation("price must be non-negative", nil)
	}

	apt := &model.Appointment{
		DoctorID:        doctorID,
		AppointmentDate: when,
		AppointmentType: model.AppointmentType(req.AppointmentType),
		Status:          model.AppointmentStatusAvailable,
		Description:     req.Description,
		Price:           *req.Price,
	}
	if err := s.repo.Create(ctx, apt); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}
	return apt, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.repo.Get(ctx, id)
}

// SubmitRequest appends a patient's pending request to an available slot.
func (s *Service) SubmitRequest(ctx context.Context, appointmentID, userID uuid.UUID, message string) error {
	apt, err := s.repo.Get(ctx, appointmentID)
	if err != nil {
		return err
	}
	if apt.Status != model.AppointmentStatusAvailable {
		return apperrors.Conflict("appointment not available", nil)
	}
	if apt.DoctorID == userID {
		return apperrors.Forbidden("doctors cannot request their own appointments", nil)
	}

	return s.repo.AddRequest(ctx, &model.AppointmentRequest{
		AppointmentID: appointmentID,
		UserID:        userID,
		Message:       message,
	})
}

// ConfirmRequest books the appointment for the named requester, drops
// all other pending requests, and ensures exactly one conversation
// exists for the appointment. Retrying a confirmation that already
// succeeded returns the same conversation.
func (s *Service) ConfirmRequest(ctx context.Context, doctorID, targetUserID uuid.UUID) (*model.Conversation, error) {
	apt, err := s.repo.FindByPendingRequest(ctx, targetUserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			// No pending request; a retry of an already-won confirmation
			// still resolves to the existing conversation.
			if conv := s.findConfirmed(ctx, doctorID, targetUserID); conv != nil {
				return conv, nil
			}
		}
		return nil, err
	}

	if apt.DoctorID != doctorID {
		return nil, apperrors.Forbidden("not authorized to confirm this appointment", nil)
	}

	if err := s.repo.ConfirmBooking(ctx, apt.ID, targetUserID); err != nil {
		if apperrors.IsConflict(err) {
			// Lost a concurrent race. If the same target won it, the call
			// is a duplicate and resolves to the winner's conversation.
			current, getErr := s.repo.Get(ctx, apt.ID)
			if getErr == nil && current.Status == model.AppointmentStatusBooked &&
				current.PatientID != nil && *current.PatientID == targetUserID {
				return s.convSvc.CreateIfAbsent(ctx, current.DoctorID, targetUserID, current.ID)
			}
		}
		return nil, err
	}

	conv, err := s.convSvc.CreateIfAbsent(ctx, apt.DoctorID, targetUserID, apt.ID)
	if err != nil {
		return nil, fmt.Errorf("appointment booked but conversation creation failed: %w", err)
	}

	apt.Status = model.AppointmentStatusBooked
	apt.PatientID = &targetUserID
	s.notifSvc.BookingConfirmed(ctx, apt)

	return conv, nil
}

// findConfirmed resolves a duplicate confirmation by re-ensuring the
// conversation for the booking the target already won, or nil when no
// such booking exists. Ensuring rather than reading means a retry heals
// a booking whose conversation creation failed the first time around.
func (s *Service) findConfirmed(ctx context.Context, doctorID, targetUserID uuid.UUID) *model.Conversation {
	booked, err := s.repo.List(ctx, &model.AppointmentFilters{
		DoctorID:  doctorID,
		PatientID: targetUserID,
		Status:    model.AppointmentStatusBooked,
	})
	if err != nil || len(booked) == 0 {
		return nil
	}
	conv, err := s.convSvc.CreateIfAbsent(ctx, booked[0].DoctorID, targetUserID, booked[0].ID)
	if err != nil {
		return nil
	}
	return conv
}

// RejectRequest removes a single pending request; all others stay.
func (s *Service) RejectRequest(ctx context.Context, doctorID, requestID uuid.UUID) error {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}

	apt, err := s.repo.Get(ctx, req.AppointmentID)
	if err != nil {
		return err
	}
	if apt.DoctorID != doctorID {
		return apperrors.Forbidden("not authorized to reject this request", nil)
	}

	return s.repo.DeleteRequest(ctx, requestID)
}

// Close ends a booked appointment and cascades closure to the linked
// conversation. A missing conversation is not an error.
func (s *Service) Close(ctx context.Context, doctorID, appointmentID uuid.UUID) error {
	apt, err := s.repo.Get(ctx, appointmentID)
	if err != nil {
		return err
	}
	if apt.DoctorID != doctorID {
		return apperrors.Forbidden("not authorized to close this appointment", nil)
	}

	if err := s.repo.CloseBooked(ctx, appointmentID); err != nil {
		return err
	}

	if err := s.convSvc.SetClosed(ctx, appointmentID); err != nil {
		s.logger.Error(err, "failed to cascade close to conversation")
	}

	apt.Status = model.AppointmentStatusClosed
	s.notifSvc.AppointmentClosed(ctx, apt)
	return nil
}

// Update changes the mutable fields only. Date and status never change
// through this path; they are owned by the dedicated transitions.
func (s *Service) Update(ctx context.Context, doctorID, appointmentID uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if apt.DoctorID != doctorID {
		return nil, apperrors.Forbidden("not authorized to update this appointment", nil)
	}

	if req.Description != nil {
		apt.Description = *req.Description
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, apperrors.Validation("price must be non-negative", nil)
		}
		apt.Price = *req.Price
	}
	if req.AppointmentType != nil {
		apt.AppointmentType = model.AppointmentType(*req.AppointmentType)
	}

	if err := s.repo.Update(ctx, apt); err != nil {
		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}
	return apt, nil
}

// Delete removes an appointment that is not currently booked.
func (s *Service) Delete(ctx context.Context, doctorID, appointmentID uuid.UUID) error {
	apt, err := s.repo.Get(ctx, appointmentID)
	if err != nil {
		return err
	}
	if apt.DoctorID != doctorID {
		return apperrors.Forbidden("not authorized to delete this appointment", nil)
	}
	if apt.Status == model.AppointmentStatusBooked {
		return apperrors.Conflict("booked appointments cannot be deleted", nil)
	}

	return s.repo.Delete(ctx, appointmentID)
}

// RecordPayment marks the appointment paid with an external reference.
func (s *Service) RecordPayment(ctx context.Context, doctorID, appointmentID uuid.UUID, ref string) error {
	apt, err := s.repo.Get(ctx, appointmentID)
	if err != nil {
		return err
	}
	if apt.DoctorID != doctorID {
		return apperrors.Forbidden("not authorized to record payment", nil)
	}

	return s.repo.RecordPayment(ctx, appointmentID, ref, time.Now())
}

// ListAvailable returns slots open for booking requests.
func (s *Service) ListAvailable(ctx context.Context) ([]*model.Appointment, error) {
	return s.repo.List(ctx, &model.AppointmentFilters{Status: model.AppointmentStatusAvailable})
}

// ListForDoctor returns the doctor's schedule with pending requests attached.
func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error) {
	appointments, err := s.repo.List(ctx, &model.AppointmentFilters{DoctorID: doctorID})
	if err != nil {
		return nil, err
	}
	for _, apt := range appointments {
		if apt.Status != model.AppointmentStatusAvailable {
			continue
		}
		requests, err := s.repo.ListRequests(ctx, apt.ID)
		if err != nil {
			return nil, err
		}
		apt.Requests = requests
	}
	return appointments, nil
}

// ListForPatient returns the patient's booked appointments.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	return s.repo.List(ctx, &model.AppointmentFilters{PatientID: patientID})
}

// ListRequests returns the pending requests on an appointment the
// doctor owns.
func (s *Service) ListRequests(ctx context.Context, doctorID, appointmentID uuid.UUID) ([]*model.AppointmentRequest, error) {
	apt, err := s.repo.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if apt.DoctorID != doctorID {
		return nil, apperrors.Forbidden("not authorized to view these requests", nil)
	}
	return s.repo.ListRequests(ctx, appointmentID)
}
