package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medivisit/telehealth-api/internal/model"
	apperrors "github.com/medivisit/telehealth-api/pkg/errors"
)

func (r *conversationRepository) CreateIfAbsent(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	conv.ID = uuid.New()
	conv.CreatedAt = time.Now()

	// The unique index on appointment_id makes concurrent duplicate
	// creations collapse into a fetch of the existing row.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (id, appointment_id, doctor_id, patient_id, is_closed, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		ON CONFLICT (appointment_id) DO NOTHING
	`,
		conv.ID,
		conv.AppointmentID,
		conv.DoctorID,
		conv.PatientID,
		conv.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return r.GetByAppointment(ctx, conv.AppointmentID)
}

func (r *conversationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Conversation, error) {
	query := `
		SELECT id, appointment_id, doctor_id, patient_id, is_closed, created_at
		FROM conversations
		WHERE id = $1
	`
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("conversation", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

func (r *conversationRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Conversation, error) {
	query := `
		SELECT id, appointment_id, doctor_id, patient_id, is_closed, created_at
		FROM conversations
		WHERE appointment_id = $1
	`
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, query, appointmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("conversation", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation by appointment: %w", err)
	}
	return &conv, nil
}

func (r *conversationRepository) SetClosed(ctx context.Context, appointmentID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET is_closed = TRUE WHERE appointment_id = $1
	`, appointmentID)
	if err != nil {
		return fmt.Errorf("failed to close conversation: %w", err)
	}
	return nil
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Conversation, error) {
	query := `
		SELECT id, appointment_id, doctor_id, patient_id, is_closed, created_at
		FROM conversations
		WHERE doctor_id = $1 OR patient_id = $1
		ORDER BY created_at DESC
	`
	var conversations []*model.Conversation
	err := r.db.SelectContext(ctx, &conversations, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}
