package challenge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/terra-clan/challenge-engine/internal/cache"
	"github.com/terra-clan/challenge-engine/internal/events"
	"github.com/terra-clan/challenge-engine/internal/models"
	"github.com/terra-clan/challenge-engine/internal/storage"
)

// Cache key prefixes and TTLs. Any mutation invalidates the item key plus
// every list prefix: over-invalidation is preferred to staleness.
const (
	itemKeyPrefix   = "challenge:id:"
	userKeyPrefix   = "challenge:user:"
	recentKeyPrefix = "challenge:recent:"
	listKeyPrefix   = "challenge:list:"

	itemTTL = 600 * time.Second
	userTTL = 300 * time.Second
	listTTL = 120 * time.Second
)

// cachedItem wraps a single-challenge cache entry. Found=false is the
// negative sentinel: a known-missing id cached to absorb repeated misses.
type cachedItem struct {
	Found  bool                     `json:"found"`
	Record *storage.ChallengeRecord `json:"record,omitempty"`
}

// Service is the CRUD facade over the challenge repository with
// read-through caching and post-write event dispatch
type Service struct {
	repo  storage.Repository
	cache cache.Cache
	bus   events.Bus
	log   *slog.Logger
}

// NewService creates a challenge service
func NewService(repo storage.Repository, c cache.Cache, bus events.Bus, logger *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: c,
		bus:   bus,
		log:   logger.With(slog.String("component", "challenge.service")),
	}
}

// GetByID returns a challenge by id, reading through the cache. Misses
// are cached negatively so a hammered unknown id hits the database once
// per TTL window.
func (s *Service) GetByID(ctx context.Context, id models.ChallengeID) (*models.Challenge, error) {
	item, err := cache.GetOrSet(ctx, s.cache, itemKeyPrefix+id.String(), itemTTL,
		func(ctx context.Context) (cachedItem, error) {
			ch, err := s.repo.GetChallenge(ctx, id.String())
			if err != nil {
				return cachedItem{}, err
			}
			if ch == nil {
				return cachedItem{Found: false}, nil
			}
			rec, err := storage.ToRecord(ch)
			if err != nil {
				return cachedItem{}, err
			}
			return cachedItem{Found: true, Record: rec}, nil
		})
	if err != nil {
		return nil, fmt.Errorf("challenge fetch failed: %w", err)
	}

	if !item.Found {
		return nil, models.NewNotFoundError("challenge %s not found", id)
	}

	return storage.ToDomain(item.Record)
}

// ForUser returns all of a user's challenges, newest first
func (s *Service) ForUser(ctx context.Context, userRef string) ([]*models.Challenge, error) {
	key := userKeyPrefix + userRef
	return s.cachedList(ctx, key, userTTL, models.ChallengeFilters{UserID: userRef})
}

// RecentForUser returns the user's most recent challenges up to limit
func (s *Service) RecentForUser(ctx context.Context, userRef string, limit int) ([]*models.Challenge, error) {
	if limit <= 0 {
		limit = 5
	}
	key := fmt.Sprintf("%s%s:%d", recentKeyPrefix, userRef, limit)
	return s.cachedList(ctx, key, userTTL, models.ChallengeFilters{UserID: userRef, Limit: limit})
}

// Find returns challenges matching the filters, using a criteria-keyed
// list cache
func (s *Service) Find(ctx context.Context, filters models.ChallengeFilters) ([]*models.Challenge, error) {
	key := fmt.Sprintf("%s%s:%s:%s:%s:%d:%d",
		listKeyPrefix, filters.UserID, filters.FocusArea, filters.ChallengeType,
		filters.Status, filters.Limit, filters.Offset)
	return s.cachedList(ctx, key, listTTL, filters)
}

// ByFocusArea returns challenges in one focus area
func (s *Service) ByFocusArea(ctx context.Context, focusArea models.FocusArea, limit int) ([]*models.Challenge, error) {
	return s.Find(ctx, models.ChallengeFilters{FocusArea: focusArea.Code(), Limit: limit})
}

// ByType returns challenges of one challenge type
func (s *Service) ByType(ctx context.Context, challengeType string, limit int) ([]*models.Challenge, error) {
	return s.Find(ctx, models.ChallengeFilters{ChallengeType: challengeType, Limit: limit})
}

func (s *Service) cachedList(ctx context.Context, key string, ttl time.Duration, filters models.ChallengeFilters) ([]*models.Challenge, error) {
	records, err := cache.GetOrSet(ctx, s.cache, key, ttl,
		func(ctx context.Context) ([]*storage.ChallengeRecord, error) {
			challenges, err := s.repo.ListChallenges(ctx, filters)
			if err != nil {
				return nil, err
			}
			records := make([]*storage.ChallengeRecord, 0, len(challenges))
			for _, ch := range challenges {
				rec, err := storage.ToRecord(ch)
				if err != nil {
					return nil, err
				}
				records = append(records, rec)

				// Individually re-cache each item so subsequent GetByID
				// calls hit
				s.cacheItem(ctx, rec)
			}
			return records, nil
		})
	if err != nil {
		return nil, fmt.Errorf("challenge list failed: %w", err)
	}

	challenges := make([]*models.Challenge, 0, len(records))
	for _, rec := range records {
		ch, err := storage.ToDomain(rec)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, ch)
	}
	return challenges, nil
}

// Save persists a new challenge, dispatches its queued events, and
// invalidates affected caches
func (s *Service) Save(ctx context.Context, ch *models.Challenge) error {
	if err := ch.Validate(); err != nil {
		return err
	}

	if err := s.repo.CreateChallenge(ctx, ch); err != nil {
		return fmt.Errorf("challenge save failed: %w", err)
	}

	s.afterWrite(ctx, ch)
	return nil
}

// Update persists changes to an existing challenge, dispatches its queued
// events, and invalidates affected caches
func (s *Service) Update(ctx context.Context, ch *models.Challenge) error {
	if err := ch.Validate(); err != nil {
		return err
	}

	if err := s.repo.UpdateChallenge(ctx, ch); err != nil {
		return fmt.Errorf("challenge update failed: %w", err)
	}

	s.afterWrite(ctx, ch)
	return nil
}

// ApplyPatch loads a challenge, applies a partial update, and persists it
func (s *Service) ApplyPatch(ctx context.Context, id models.ChallengeID, patch models.ChallengePatch) (*models.Challenge, error) {
	ch, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := ch.ApplyUpdate(patch); err != nil {
		return nil, err
	}

	if err := s.Update(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// Delete removes a challenge and invalidates affected caches
func (s *Service) Delete(ctx context.Context, id models.ChallengeID) error {
	ch, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteChallenge(ctx, id.String()); err != nil {
		return fmt.Errorf("challenge delete failed: %w", err)
	}

	s.cache.Delete(ctx, itemKeyPrefix+id.String())
	s.invalidateLists(ctx, ch)

	s.bus.Publish(ctx, models.NewDomainEvent(models.EventChallengeDeleted, map[string]any{
		"challenge_id": id.String(),
		"user_email":   ch.UserEmail.String(),
	}))
	return nil
}

// afterWrite runs the post-persistence sequence: drain and publish the
// entity's queued events, refresh the item cache, invalidate list caches.
// The event drain happens only here, after a durable write, so rolled
// back changes never announce themselves.
func (s *Service) afterWrite(ctx context.Context, ch *models.Challenge) {
	for _, ev := range ch.DrainEvents() {
		s.bus.Publish(ctx, ev)
	}

	if rec, err := storage.ToRecord(ch); err == nil {
		s.cacheItem(ctx, rec)
	}

	s.invalidateLists(ctx, ch)
}

func (s *Service) cacheItem(ctx context.Context, rec *storage.ChallengeRecord) {
	if err := s.cache.Set(ctx, itemKeyPrefix+rec.ID, cachedItem{Found: true, Record: rec}, itemTTL); err != nil {
		s.log.Warn("item cache refresh failed", "id", rec.ID, "error", err)
	}
}

// invalidateLists drops the owner's per-user caches and every list and
// search cache
func (s *Service) invalidateLists(ctx context.Context, ch *models.Challenge) {
	for _, ref := range []string{ch.UserID.String(), ch.UserEmail.String()} {
		if ref == "" {
			continue
		}
		s.cache.DeleteByPrefix(ctx, userKeyPrefix+ref)
		s.cache.DeleteByPrefix(ctx, recentKeyPrefix+ref)
	}
	s.cache.DeleteByPrefix(ctx, listKeyPrefix)
}
