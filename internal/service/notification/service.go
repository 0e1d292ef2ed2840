package notification

import (
	"context"
	"fmt"

	"github.com/medivisit/telehealth-api/internal/email"
	"github.com/medivisit/telehealth-api/internal/model"
	"github.com/medivisit/telehealth-api/internal/repository"
	"github.com/medivisit/telehealth-api/pkg/logger"
)

// Service sends best-effort booking notifications. Failures are logged,
// never propagated into the lifecycle operations that trigger them.
type Service interface {
	BookingConfirmed(ctx context.Context, apt *model.Appointment)
	AppointmentClosed(ctx context.Context, apt *model.Appointment)
}

type service struct {
	userRepo repository.UserRepository
	emailSvc email.Service
	logger   *logger.Logger
}

func NewService(userRepo repository.UserRepository, emailSvc email.Service, l *logger.Logger) Service {
	return &service{
		userRepo: userRepo,
		emailSvc: emailSvc,
		logger:   l.WithComponent("notification"),
	}
}

func (s *service) BookingConfirmed(ctx context.Context, apt *model.Appointment) {
	if apt.PatientID == nil {
		return
	}
	patient, err := s.userRepo.Get(ctx, *apt.PatientID)
	if err != nil {
		s.logger.Error(err, "failed to load patient for booking notification")
		return
	}

	subject := "Your appointment is confirmed"
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your appointment on %s has been confirmed. You can now chat with your doctor.</p>",
		patient.Name,
		apt.AppointmentDate.Format("Mon, 2 Jan 2006 15:04"),
	)
	if err := s.emailSvc.SendCustom(ctx, patient.Email, subject, body); err != nil {
		s.logger.Error(err, "failed to send booking confirmation email")
	}
}

func (s *service) AppointmentClosed(ctx context.Context, apt *model.Appointment) {
	if apt.PatientID == nil {
		return
	}
	patient, err := s.userRepo.Get(ctx, *apt.PatientID)
	if err != nil {
		s.logger.Error(err, "failed to load patient for close notification")
		return
	}

	subject := "Your appointment has ended"
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your appointment on %s is now closed. The conversation has been archived.</p>",
		patient.Name,
		apt.AppointmentDate.Format("Mon, 2 Jan 2006 15:04"),
	)
	if err := s.emailSvc.SendCustom(ctx, patient.Email, subject, body); err != nil {
		s.logger.Error(err, "failed to send close notification email")
	}
}
