package storage

import (
	"context"
	"time"

	"github.com/terra-clan/challenge-engine/internal/models"
)

// Repository defines the persistence interface for the challenge domain.
// Lookups return (nil, nil) when the row is absent; callers translate
// that into a domain not-found error.
type Repository interface {
	// Challenges
	CreateChallenge(ctx context.Context, ch *models.Challenge) error
	GetChallenge(ctx context.Context, id string) (*models.Challenge, error)
	UpdateChallenge(ctx context.Context, ch *models.Challenge) error
	DeleteChallenge(ctx context.Context, id string) error
	ListChallenges(ctx context.Context, filters models.ChallengeFilters) ([]*models.Challenge, error)
	GetStalePendingChallenges(ctx context.Context, olderThan time.Time) ([]*models.Challenge, error)

	// Users
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserLastActive(ctx context.Context, email string, at time.Time) error

	// Progress
	GetProgress(ctx context.Context, userID, focusArea string) (*models.UserProgress, error)
	UpsertProgress(ctx context.Context, p *models.UserProgress) error

	// Journey
	AppendJourneyEvent(ctx context.Context, ev *models.JourneyEvent) error
	ListJourneyEvents(ctx context.Context, userID string, limit int) ([]*models.JourneyEvent, error)

	// API clients
	GetClientByAPIKey(ctx context.Context, apiKey string) (*models.APIClient, error)
	UpdateClientLastUsed(ctx context.Context, apiKey string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
