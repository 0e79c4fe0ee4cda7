// Package user provides the user-facing domain services the challenge
// coordinator depends on: profile lookup, activity stamping, progress
// aggregation, and journey-event recording.
package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/challenge-engine/internal/events"
	"github.com/terra-clan/challenge-engine/internal/models"
	"github.com/terra-clan/challenge-engine/internal/storage"
)

// Service handles user profile lookups and activity stamping
type Service struct {
	repo storage.Repository
	log  *slog.Logger
}

// NewService creates a user service
func NewService(repo storage.Repository, logger *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  logger.With(slog.String("component", "user")),
	}
}

// GetByEmail looks a user up by normalized email. Returns a domain
// not-found error when absent.
func (s *Service) GetByEmail(ctx context.Context, email models.Email) (*models.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email.String())
	if err != nil {
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}
	if u == nil {
		return nil, models.NewNotFoundError("user %s not found", email)
	}
	return u, nil
}

// TouchLastActive stamps the user's last activity time
func (s *Service) TouchLastActive(ctx context.Context, email models.Email) error {
	if err := s.repo.UpdateUserLastActive(ctx, email.String(), time.Now().UTC()); err != nil {
		return fmt.Errorf("last-active update failed: %w", err)
	}
	return nil
}

// ProgressService maintains per-focus-area completion aggregates
type ProgressService struct {
	repo storage.Repository
	log  *slog.Logger
}

// NewProgressService creates a progress service
func NewProgressService(repo storage.Repository, logger *slog.Logger) *ProgressService {
	return &ProgressService{
		repo: repo,
		log:  logger.With(slog.String("component", "progress")),
	}
}

// RecordCompletion folds a completed challenge's score into the user's
// running average for its focus area
func (s *ProgressService) RecordCompletion(ctx context.Context, userID string, focusArea models.FocusArea, score float64) error {
	current, err := s.repo.GetProgress(ctx, userID, focusArea.Code())
	if err != nil {
		return fmt.Errorf("progress lookup failed: %w", err)
	}

	updated := &models.UserProgress{
		UserID:         userID,
		FocusArea:      focusArea.Code(),
		CompletedCount: 1,
		AverageScore:   score,
		UpdatedAt:      time.Now().UTC(),
	}

	if current != nil {
		total := current.AverageScore*float64(current.CompletedCount) + score
		updated.CompletedCount = current.CompletedCount + 1
		updated.AverageScore = total / float64(updated.CompletedCount)
	}

	if err := s.repo.UpsertProgress(ctx, updated); err != nil {
		return fmt.Errorf("progress update failed: %w", err)
	}

	s.log.Debug("progress recorded",
		slog.String("user_id", userID),
		slog.String("focus_area", focusArea.Code()),
		slog.Int("completed", updated.CompletedCount),
		slog.Float64("average", updated.AverageScore),
	)
	return nil
}

// Get returns a user's progress in one focus area, or nil
func (s *ProgressService) Get(ctx context.Context, userID string, focusArea models.FocusArea) (*models.UserProgress, error) {
	return s.repo.GetProgress(ctx, userID, focusArea.Code())
}

// JourneyService records the append-only user activity log
type JourneyService struct {
	repo storage.Repository
	bus  events.Bus
	log  *slog.Logger
}

// NewJourneyService creates a journey service
func NewJourneyService(repo storage.Repository, bus events.Bus, logger *slog.Logger) *JourneyService {
	return &JourneyService{
		repo: repo,
		bus:  bus,
		log:  logger.With(slog.String("component", "journey")),
	}
}

// RecordEvent appends a journey event and mirrors it onto the bus
func (s *JourneyService) RecordEvent(ctx context.Context, userID, eventType string, data map[string]any) error {
	ev := &models.JourneyEvent{
		ID:         uuid.New().String(),
		UserID:     userID,
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}

	if err := s.repo.AppendJourneyEvent(ctx, ev); err != nil {
		return fmt.Errorf("journey event append failed: %w", err)
	}

	payload := map[string]any{"user_id": userID, "journey_type": eventType}
	for k, v := range data {
		payload[k] = v
	}
	s.bus.Publish(ctx, models.NewDomainEvent(models.EventUserJourney, payload))

	return nil
}

// History returns a user's most recent journey events
func (s *JourneyService) History(ctx context.Context, userID string, limit int) ([]*models.JourneyEvent, error) {
	return s.repo.ListJourneyEvents(ctx, userID, limit)
}
