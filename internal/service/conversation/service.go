package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/medivisit/telehealth-api/internal/model"
	"github.com/medivisit/telehealth-api/internal/repository"
	apperrors "github.com/medivisit/telehealth-api/pkg/errors"
)

const (
	participantCacheTTL     = 5 * time.Minute
	participantCacheCleanup = 15 * time.Minute
)

// Service is the conversation directory: the authoritative mapping of a
// conversation to its two fixed participants and its open/closed state.
// It holds no state machine of its own; all transitions are driven by
// the appointment lifecycle.
type Service struct {
	repo repository.ConversationRepository

	// Participants are immutable after creation, so lookups are cached.
	// Closure is not cached; IsClosed must always hit the store.
	participants *cache.Cache
}

func NewService(repo repository.ConversationRepository) *Service {
	return &Service{
		repo:         repo,
		participants: cache.New(participantCacheTTL, participantCacheCleanup),
	}
}

// CreateIfAbsent returns the conversation for the appointment, creating
// it when absent. Safe under concurrent duplicate confirmation attempts.
func (s *Service) CreateIfAbsent(ctx context.Context, doctorID, patientID, appointmentID uuid.UUID) (*model.Conversation, error) {
	if doctorID == patientID {
		return nil, apperrors.Validation("doctor and patient must be distinct", nil)
	}

	conv, err := s.repo.CreateIfAbsent(ctx, &model.Conversation{
		AppointmentID: appointmentID,
		DoctorID:      doctorID,
		PatientID:     patientID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure conversation: %w", err)
	}
	return conv, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Conversation, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) FindByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Conversation, error) {
	return s.repo.GetByAppointment(ctx, appointmentID)
}

// SetClosed marks the appointment's conversation closed. A missing
// conversation is not an error.
func (s *Service) SetClosed(ctx context.Context, appointmentID uuid.UUID) error {
	return s.repo.SetClosed(ctx, appointmentID)
}

// IsParticipant is the single source of authorization truth for both
// the read API and the realtime router.
func (s *Service) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	key := conversationID.String()
	if v, ok := s.participants.Get(key); ok {
		pair := v.([2]uuid.UUID)
		return pair[0] == userID || pair[1] == userID, nil
	}

	conv, err := s.repo.Get(ctx, conversationID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	s.participants.Set(key, [2]uuid.UUID{conv.DoctorID, conv.PatientID}, cache.DefaultExpiration)
	return conv.HasParticipant(userID), nil
}

// ListForUser returns every conversation the user participates in,
// newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Conversation, error) {
	return s.repo.ListForUser(ctx, userID)
}
