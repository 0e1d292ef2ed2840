package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medivisit/telehealth-api/internal/model"
	apperrors "github.com/medivisit/telehealth-api/pkg/errors"
)

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, doctor_id, appointment_date, appointment_type,
			status, description, price, is_paid,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	appointment.ID = uuid.New()
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = appointment.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.DoctorID,
		appointment.AppointmentDate,
		appointment.AppointmentType,
		appointment.Status,
		appointment.Description,
		appointment.Price,
		appointment.IsPaid,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT id, doctor_id, appointment_date, appointment_type,
			   status, description, price, patient_id,
			   is_paid, payment_date, payment_ref,
			   created_at, updated_at
		FROM appointments
		WHERE id = $1
	`
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("appointment", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET description = $1, price = $2, appointment_type = $3, updated_at = $4
		WHERE id = $5
	`
	appointment.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		appointment.Description,
		appointment.Price,
		appointment.AppointmentType,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	return checkAffected(result, "appointment")
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return checkAffected(result, "appointment")
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `
		SELECT id, doctor_id, appointment_date, appointment_type,
			   status, description, price, patient_id,
			   is_paid, payment_date, payment_ref,
			   created_at, updated_at
		FROM appointments
		WHERE 1=1
	`
	args := []interface{}{}
	argCount := 1

	if filters.DoctorID != uuid.Nil {
		query += fmt.Sprintf(" AND doctor_id = $%d", argCount)
		args = append(args, filters.DoctorID)
		argCount++
	}
	if filters.PatientID != uuid.Nil {
		query += fmt.Sprintf(" AND patient_id = $%d", argCount)
		args = append(args, filters.PatientID)
		argCount++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filters.Status)
		argCount++
	}
	if !filters.From.IsZero() {
		query += fmt.Sprintf(" AND appointment_date >= $%d", argCount)
		args = append(args, filters.From)
		argCount++
	}
	if !filters.To.IsZero() {
		query += fmt.Sprintf(" AND appointment_date <= $%d", argCount)
		args = append(args, filters.To)
		argCount++
	}

	query += " ORDER BY appointment_date ASC"

	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) AddRequest(ctx context.Context, req *model.AppointmentRequest) error {
	query := `
		INSERT INTO appointment_requests (id, appointment_id, user_id, message, requested_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	req.ID = uuid.New()
	req.RequestedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		req.ID,
		req.AppointmentID,
		req.UserID,
		req.Message,
		req.RequestedAt,
	)
	if isUniqueViolation(err) {
		return apperrors.Duplicate("request already submitted", err)
	}
	if err != nil {
		return fmt.Errorf("failed to add appointment request: %w", err)
	}
	return nil
}

func (r *appointmentRepository) GetRequest(ctx context.Context, requestID uuid.UUID) (*model.AppointmentRequest, error) {
	query := `
		SELECT id, appointment_id, user_id, message, requested_at
		FROM appointment_requests
		WHERE id = $1
	`
	var req model.AppointmentRequest
	err := r.db.GetContext(ctx, &req, query, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("request", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment request: %w", err)
	}
	return &req, nil
}

func (r *appointmentRepository) ListRequests(ctx context.Context, appointmentID uuid.UUID) ([]*model.AppointmentRequest, error) {
	query := `
		SELECT id, appointment_id, user_id, message, requested_at
		FROM appointment_requests
		WHERE appointment_id = $1
		ORDER BY requested_at ASC
	`
	var requests []*model.AppointmentRequest
	err := r.db.SelectContext(ctx, &requests, query, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointment requests: %w", err)
	}
	return requests, nil
}

func (r *appointmentRepository) DeleteRequest(ctx context.Context, requestID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM appointment_requests WHERE id = $1`, requestID)
	if err != nil {
		return fmt.Errorf("failed to delete appointment request: %w", err)
	}
	return checkAffected(result, "request")
}

func (r *appointmentRepository) FindByPendingRequest(ctx context.Context, userID uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT a.id, a.doctor_id, a.appointment_date, a.appointment_type,
			   a.status, a.description, a.price, a.patient_id,
			   a.is_paid, a.payment_date, a.payment_ref,
			   a.created_at, a.updated_at
		FROM appointments a
		JOIN appointment_requests r ON r.appointment_id = a.id
		WHERE r.user_id = $1
		ORDER BY r.requested_at ASC
		LIMIT 1
	`
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("appointment request", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find appointment by request: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) ConfirmBooking(ctx context.Context, appointmentID, patientID uuid.UUID) error {
	return WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE appointments
			SET status = $1, patient_id = $2, updated_at = $3
			WHERE id = $4 AND status = $5
		`,
			model.AppointmentStatusBooked,
			patientID,
			time.Now(),
			appointmentID,
			model.AppointmentStatusAvailable,
		)
		if err != nil {
			return fmt.Errorf("failed to book appointment: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return apperrors.Conflict("appointment not available", nil)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM appointment_requests WHERE appointment_id = $1`,
			appointmentID,
		); err != nil {
			return fmt.Errorf("failed to clear pending requests: %w", err)
		}
		return nil
	})
}

func (r *appointmentRepository) CloseBooked(ctx context.Context, appointmentID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE appointments
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`,
		model.AppointmentStatusClosed,
		time.Now(),
		appointmentID,
		model.AppointmentStatusBooked,
	)
	if err != nil {
		return fmt.Errorf("failed to close appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.Conflict("appointment is not booked", nil)
	}
	return nil
}

func (r *appointmentRepository) RecordPayment(ctx context.Context, appointmentID uuid.UUID, ref string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE appointments
		SET is_paid = TRUE, payment_ref = $1, payment_date = $2, updated_at = $3
		WHERE id = $4
	`, ref, at, time.Now(), appointmentID)
	if err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	return checkAffected(result, "appointment")
}

func (r *appointmentRepository) CancelStaleAvailable(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE appointments
		SET status = $1, updated_at = $2
		WHERE status = $3 AND appointment_date < $4
	`,
		model.AppointmentStatusCancelled,
		time.Now(),
		model.AppointmentStatusAvailable,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel stale appointments: %w", err)
	}
	return result.RowsAffected()
}

func checkAffected(result sql.Result, resource string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound(resource, nil)
	}
	return nil
}
