package challenge

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/terra-clan/challenge-engine/internal/cache"
	"github.com/terra-clan/challenge-engine/internal/events"
	"github.com/terra-clan/challenge-engine/internal/models"
	"github.com/terra-clan/challenge-engine/internal/storage"
)

// fakeRepo is an in-memory Repository recording call counts
type fakeRepo struct {
	mu         sync.Mutex
	challenges map[string]*models.Challenge
	users      map[string]*models.User
	getCalls   int
	listCalls  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		challenges: make(map[string]*models.Challenge),
		users:      make(map[string]*models.User),
	}
}

func (r *fakeRepo) CreateChallenge(ctx context.Context, ch *models.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *ch
	r.challenges[ch.ID.String()] = &copied
	return nil
}

func (r *fakeRepo) GetChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	ch, ok := r.challenges[id]
	if !ok {
		return nil, nil
	}
	copied := *ch
	return &copied, nil
}

func (r *fakeRepo) UpdateChallenge(ctx context.Context, ch *models.Challenge) error {
	return r.CreateChallenge(ctx, ch)
}

func (r *fakeRepo) DeleteChallenge(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.challenges, id)
	return nil
}

func (r *fakeRepo) ListChallenges(ctx context.Context, filters models.ChallengeFilters) ([]*models.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	var out []*models.Challenge
	for _, ch := range r.challenges {
		if filters.UserID != "" && ch.UserID.String() != filters.UserID && ch.UserEmail.String() != filters.UserID {
			continue
		}
		if filters.FocusArea != "" && ch.FocusArea.Code() != filters.FocusArea {
			continue
		}
		copied := *ch
		out = append(out, &copied)
	}
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func (r *fakeRepo) GetStalePendingChallenges(ctx context.Context, olderThan time.Time) ([]*models.Challenge, error) {
	return nil, nil
}

func (r *fakeRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return nil, nil
	}
	return u, nil
}

func (r *fakeRepo) UpdateUserLastActive(ctx context.Context, email string, at time.Time) error {
	return nil
}

func (r *fakeRepo) GetProgress(ctx context.Context, userID, focusArea string) (*models.UserProgress, error) {
	return nil, nil
}

func (r *fakeRepo) UpsertProgress(ctx context.Context, p *models.UserProgress) error { return nil }

func (r *fakeRepo) AppendJourneyEvent(ctx context.Context, ev *models.JourneyEvent) error { return nil }

func (r *fakeRepo) ListJourneyEvents(ctx context.Context, userID string, limit int) ([]*models.JourneyEvent, error) {
	return nil, nil
}

func (r *fakeRepo) GetClientByAPIKey(ctx context.Context, apiKey string) (*models.APIClient, error) {
	return nil, nil
}

func (r *fakeRepo) UpdateClientLastUsed(ctx context.Context, apiKey string) error { return nil }

func (r *fakeRepo) Ping(ctx context.Context) error { return nil }

func (r *fakeRepo) Close() error { return nil }

var _ storage.Repository = (*fakeRepo)(nil)

// collectingBus records every published event
type collectingBus struct {
	mu     sync.Mutex
	events []models.DomainEvent
}

func (b *collectingBus) Publish(ctx context.Context, ev models.DomainEvent) error {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
	return nil
}

func (b *collectingBus) published() []models.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.DomainEvent(nil), b.events...)
}

var _ events.Bus = (*collectingBus)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testChallenge(t *testing.T) *models.Challenge {
	t.Helper()
	factory := NewFactory()
	ch, err := factory.New(CreateParams{
		UserEmail:     "learner@example.com",
		Title:         "Chart Reading",
		ChallengeType: "analysis",
		FormatType:    "open-ended",
		FocusArea:     "data_literacy",
		Questions: []models.Question{
			{ID: "q-1", Text: "What does the chart hide?"},
		},
	})
	if err != nil {
		t.Fatalf("factory.New failed: %v", err)
	}
	return ch
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *cache.MemoryCache, *collectingBus) {
	t.Helper()
	repo := newFakeRepo()
	mem := cache.NewMemoryCache()
	bus := &collectingBus{}
	return NewService(repo, mem, bus, testLogger()), repo, mem, bus
}

func TestGetByIDReadsThroughCache(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	ch := testChallenge(t)
	if err := svc.Save(ctx, ch); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Save warms the item cache, so repeated reads never touch the repo
	for i := 0; i < 3; i++ {
		got, err := svc.GetByID(ctx, ch.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if !got.ID.Equals(ch.ID) {
			t.Errorf("wrong challenge returned: %s", got.ID)
		}
	}
	if repo.getCalls != 0 {
		t.Errorf("expected cache hits after save, repo was queried %d times", repo.getCalls)
	}
}

func TestGetByIDCachesCleanMiss(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	unknown := models.NewChallengeID()
	for i := 0; i < 3; i++ {
		_, err := svc.GetByID(ctx, unknown)
		if !models.IsKind(err, models.KindNotFound) {
			t.Fatalf("expected not found error, got %v", err)
		}
	}

	// The negative sentinel absorbs repeated lookups of the same bad id
	if repo.getCalls != 1 {
		t.Errorf("expected 1 repo query for repeated misses, got %d", repo.getCalls)
	}
}

func TestSavePublishesDrainedEvents(t *testing.T) {
	svc, _, _, bus := newTestService(t)
	ctx := context.Background()

	ch := testChallenge(t)
	if len(ch.Events()) == 0 {
		t.Fatal("factory should queue a creation event")
	}

	if err := svc.Save(ctx, ch); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	published := bus.published()
	if len(published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(published))
	}
	if published[0].Type != models.EventChallengeCreated {
		t.Errorf("unexpected event type %s", published[0].Type)
	}
	if len(ch.Events()) != 0 {
		t.Error("events not drained after save")
	}
}

func TestUpdateInvalidatesListCaches(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	ch := testChallenge(t)
	if err := svc.Save(ctx, ch); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Warm the user list cache
	if _, err := svc.ForUser(ctx, ch.UserEmail.String()); err != nil {
		t.Fatalf("ForUser failed: %v", err)
	}
	if _, err := svc.ForUser(ctx, ch.UserEmail.String()); err != nil {
		t.Fatalf("ForUser failed: %v", err)
	}
	if repo.listCalls != 1 {
		t.Fatalf("expected warm list cache, repo listed %d times", repo.listCalls)
	}

	// A write drops the user's list caches
	if err := ch.SubmitResponses(models.ResponsesFromStrings([]string{"an answer"})); err != nil {
		t.Fatalf("SubmitResponses failed: %v", err)
	}
	if err := svc.Update(ctx, ch); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if _, err := svc.ForUser(ctx, ch.UserEmail.String()); err != nil {
		t.Fatalf("ForUser failed: %v", err)
	}
	if repo.listCalls != 2 {
		t.Errorf("expected list cache invalidation after update, repo listed %d times", repo.listCalls)
	}
}

func TestApplyPatchPersistsAndGuards(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	ch := testChallenge(t)
	if err := svc.Save(ctx, ch); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	title := "Renamed Challenge"
	updated, err := svc.ApplyPatch(ctx, ch.ID, models.ChallengePatch{Title: &title})
	if err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}
	if updated.Title != "Renamed Challenge" {
		t.Errorf("title not applied: %q", updated.Title)
	}

	got, err := svc.GetByID(ctx, ch.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Title != "Renamed Challenge" {
		t.Errorf("patched title not readable: %q", got.Title)
	}

	if _, err := svc.ApplyPatch(ctx, models.NewChallengeID(), models.ChallengePatch{Title: &title}); !models.IsKind(err, models.KindNotFound) {
		t.Errorf("expected not found error for unknown id, got %v", err)
	}
}

func TestDeletePublishesAndEvictsItem(t *testing.T) {
	svc, _, _, bus := newTestService(t)
	ctx := context.Background()

	ch := testChallenge(t)
	if err := svc.Save(ctx, ch); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := svc.Delete(ctx, ch.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := svc.GetByID(ctx, ch.ID); !models.IsKind(err, models.KindNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}

	published := bus.published()
	last := published[len(published)-1]
	if last.Type != models.EventChallengeDeleted {
		t.Errorf("expected deletion event, got %s", last.Type)
	}
}
