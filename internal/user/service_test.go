package user

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/terra-clan/challenge-engine/internal/models"
)

// progressRepo is a minimal Repository for progress tests
type progressRepo struct {
	noopRepo
	progress map[string]*models.UserProgress
	journeys []*models.JourneyEvent
	users    map[string]*models.User
}

func newProgressRepo() *progressRepo {
	return &progressRepo{
		progress: make(map[string]*models.UserProgress),
		users:    make(map[string]*models.User),
	}
}

func (r *progressRepo) GetProgress(ctx context.Context, userID, focusArea string) (*models.UserProgress, error) {
	return r.progress[userID+"/"+focusArea], nil
}

func (r *progressRepo) UpsertProgress(ctx context.Context, p *models.UserProgress) error {
	r.progress[p.UserID+"/"+p.FocusArea] = p
	return nil
}

func (r *progressRepo) AppendJourneyEvent(ctx context.Context, ev *models.JourneyEvent) error {
	r.journeys = append(r.journeys, ev)
	return nil
}

func (r *progressRepo) ListJourneyEvents(ctx context.Context, userID string, limit int) ([]*models.JourneyEvent, error) {
	var out []*models.JourneyEvent
	for _, ev := range r.journeys {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *progressRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.users[email], nil
}

// noopRepo satisfies the unused parts of the Repository interface
type noopRepo struct{}

func (noopRepo) CreateChallenge(context.Context, *models.Challenge) error { return nil }
func (noopRepo) GetChallenge(context.Context, string) (*models.Challenge, error) {
	return nil, nil
}
func (noopRepo) UpdateChallenge(context.Context, *models.Challenge) error { return nil }
func (noopRepo) DeleteChallenge(context.Context, string) error            { return nil }
func (noopRepo) ListChallenges(context.Context, models.ChallengeFilters) ([]*models.Challenge, error) {
	return nil, nil
}
func (noopRepo) GetStalePendingChallenges(context.Context, time.Time) ([]*models.Challenge, error) {
	return nil, nil
}
func (noopRepo) GetUserByEmail(context.Context, string) (*models.User, error) { return nil, nil }
func (noopRepo) UpdateUserLastActive(context.Context, string, time.Time) error {
	return nil
}
func (noopRepo) GetProgress(context.Context, string, string) (*models.UserProgress, error) {
	return nil, nil
}
func (noopRepo) UpsertProgress(context.Context, *models.UserProgress) error     { return nil }
func (noopRepo) AppendJourneyEvent(context.Context, *models.JourneyEvent) error { return nil }
func (noopRepo) ListJourneyEvents(context.Context, string, int) ([]*models.JourneyEvent, error) {
	return nil, nil
}
func (noopRepo) GetClientByAPIKey(context.Context, string) (*models.APIClient, error) {
	return nil, nil
}
func (noopRepo) UpdateClientLastUsed(context.Context, string) error { return nil }
func (noopRepo) Ping(context.Context) error                         { return nil }
func (noopRepo) Close() error                                       { return nil }

type nullBus struct{}

func (nullBus) Publish(context.Context, models.DomainEvent) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGetByEmail(t *testing.T) {
	repo := newProgressRepo()
	repo.users["known@example.com"] = &models.User{ID: "u-1", Email: "known@example.com"}
	svc := NewService(repo, testLogger())
	ctx := context.Background()

	email, _ := models.ParseEmail("known@example.com")
	u, err := svc.GetByEmail(ctx, email)
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if u.ID != "u-1" {
		t.Errorf("wrong user returned: %+v", u)
	}

	missing, _ := models.ParseEmail("ghost@example.com")
	if _, err := svc.GetByEmail(ctx, missing); !models.IsKind(err, models.KindNotFound) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestRecordCompletionRunningAverage(t *testing.T) {
	repo := newProgressRepo()
	svc := NewProgressService(repo, testLogger())
	ctx := context.Background()
	focus, _ := models.ParseFocusArea("ai_ethics")

	for _, score := range []float64{80, 90, 70} {
		if err := svc.RecordCompletion(ctx, "u-1", focus, score); err != nil {
			t.Fatalf("RecordCompletion failed: %v", err)
		}
	}

	p, err := svc.Get(ctx, "u-1", focus)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.CompletedCount != 3 {
		t.Errorf("expected 3 completions, got %d", p.CompletedCount)
	}
	if math.Abs(p.AverageScore-80) > 1e-9 {
		t.Errorf("expected average 80, got %v", p.AverageScore)
	}

	// Focus areas aggregate independently
	other, _ := models.ParseFocusArea("communication")
	if err := svc.RecordCompletion(ctx, "u-1", other, 50); err != nil {
		t.Fatalf("RecordCompletion failed: %v", err)
	}
	q, _ := svc.Get(ctx, "u-1", other)
	if q.CompletedCount != 1 || q.AverageScore != 50 {
		t.Errorf("cross-area contamination: %+v", q)
	}
}

func TestRecordEventAppendsAndPublishes(t *testing.T) {
	repo := newProgressRepo()
	svc := NewJourneyService(repo, nullBus{}, testLogger())
	ctx := context.Background()

	err := svc.RecordEvent(ctx, "u-1", "challenge_completed", map[string]any{"score": 85.0})
	if err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}

	history, err := svc.History(ctx, "u-1", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 journey event, got %d", len(history))
	}
	if history[0].Type != "challenge_completed" {
		t.Errorf("unexpected event type %q", history[0].Type)
	}
	if history[0].ID == "" || history[0].OccurredAt.IsZero() {
		t.Error("event id or timestamp not stamped")
	}
}
