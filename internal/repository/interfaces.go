package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medivisit/telehealth-api/internal/model"
)

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)

		AddRequest(ctx context.Context, req *model.AppointmentRequest) error
		GetRequest(ctx context.Context, requestID uuid.UUID) (*model.AppointmentRequest, error)
		ListRequests(ctx context.Context, appointmentID uuid.UUID) ([]*model.AppointmentRequest, error)
		DeleteRequest(ctx context.Context, requestID uuid.UUID) error
		FindByPendingRequest(ctx context.Context, userID uuid.UUID) (*model.Appointment, error)

		// ConfirmBooking atomically books the appointment for patientID and
		// clears all pending requests. The update is conditional on the
		// appointment still being available, so concurrent confirmations
		// produce exactly one winner.
		ConfirmBooking(ctx context.Context, appointmentID, patientID uuid.UUID) error

		// CloseBooked transitions a booked appointment to closed.
		CloseBooked(ctx context.Context, appointmentID uuid.UUID) error

		RecordPayment(ctx context.Context, appointmentID uuid.UUID, ref string, at time.Time) error

		// CancelStaleAvailable cancels every still-available slot whose
		// scheduled time is before cutoff, returning the number swept.
		CancelStaleAvailable(ctx context.Context, cutoff time.Time) (int64, error)
	}

	ConversationRepository interface {
		// CreateIfAbsent inserts the conversation unless one already exists
		// for the same appointment, and returns the stored row either way.
		CreateIfAbsent(ctx context.Context, conv *model.Conversation) (*model.Conversation, error)
		Get(ctx context.Context, id uuid.UUID) (*model.Conversation, error)
		GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Conversation, error)
		SetClosed(ctx context.Context, appointmentID uuid.UUID) error
		ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Conversation, error)
	}

	MessageRepository interface {
		Create(ctx context.Context, msg *model.Message) error
		ListByConversation(ctx context.Context, conversationID uuid.UUID, p model.Pagination) ([]*model.Message, error)
		MarkRead(ctx context.Context, conversationID, receiverID uuid.UUID) (int64, error)
	}
)
