// Package cleanup prunes abandoned challenges: pending drafts the user
// never answered, left to age past the configured cutoff.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/terra-clan/challenge-engine/internal/models"
	"github.com/terra-clan/challenge-engine/internal/storage"
)

// challengeDeleter is the slice of the challenge service the cleaner needs
type challengeDeleter interface {
	Delete(ctx context.Context, id models.ChallengeID) error
}

// Cleaner periodically deletes stale pending challenges
type Cleaner struct {
	repo       storage.Repository
	challenges challengeDeleter
	interval   time.Duration
	maxAge     time.Duration
}

// NewCleaner creates a cleanup worker
func NewCleaner(repo storage.Repository, challenges challengeDeleter, interval, maxAge time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if maxAge <= 0 {
		maxAge = 30 * 24 * time.Hour
	}

	return &Cleaner{
		repo:       repo,
		challenges: challenges,
		interval:   interval,
		maxAge:     maxAge,
	}
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Cleaner) run(ctx context.Context) {
	slog.Info("cleanup worker started", "interval", c.interval, "max_age", c.maxAge)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

// sweep deletes pending challenges older than the cutoff. Deletion goes
// through the challenge service so caches are invalidated and the
// deletion event is published.
func (c *Cleaner) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-c.maxAge)

	stale, err := c.repo.GetStalePendingChallenges(ctx, cutoff)
	if err != nil {
		slog.Error("failed to list stale challenges", "error", err)
		return
	}

	if len(stale) == 0 {
		slog.Debug("no stale challenges found")
		return
	}

	slog.Info("found stale pending challenges", "count", len(stale))

	for _, ch := range stale {
		if err := c.challenges.Delete(ctx, ch.ID); err != nil {
			slog.Error("failed to delete stale challenge", "id", ch.ID, "error", err)
			continue
		}
		slog.Info("stale challenge deleted", "id", ch.ID, "created_at", ch.CreatedAt)
	}
}
