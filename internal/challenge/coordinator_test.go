package challenge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/terra-clan/challenge-engine/internal/cache"
	"github.com/terra-clan/challenge-engine/internal/models"
	"github.com/terra-clan/challenge-engine/internal/templates"
	"github.com/terra-clan/challenge-engine/internal/user"
)

// fakeGenerator returns canned content and records the call
type fakeGenerator struct {
	calls  int
	recent []*models.Challenge
	err    error
}

func (g *fakeGenerator) GenerateChallenge(ctx context.Context, u *models.User, params models.GenerationParams, recent []*models.Challenge) (*models.GeneratedChallenge, error) {
	g.calls++
	g.recent = recent
	if g.err != nil {
		return nil, g.err
	}
	return &models.GeneratedChallenge{
		Title:       "Generated: " + params.FocusArea.DisplayName(),
		Description: "A generated exercise",
		Content:     models.ChallengeContent{Instructions: "Answer thoughtfully."},
		Questions: []models.Question{
			{ID: "q-1", Text: "First question?"},
			{ID: "q-2", Text: "Second question?"},
		},
	}, nil
}

// fakeEvaluator grades every submission with a fixed score
type fakeEvaluator struct {
	calls int
	score float64
	err   error
}

func (e *fakeEvaluator) EvaluateResponses(ctx context.Context, ch *models.Challenge, responses []models.Response) (*models.Evaluation, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return &models.Evaluation{Score: e.score, Feedback: "solid work"}, nil
}

type coordinatorFixture struct {
	coordinator *Coordinator
	repo        *fakeRepo
	bus         *collectingBus
	generator   *fakeGenerator
	evaluator   *fakeEvaluator
	loader      *templates.Loader
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()
	repo := newFakeRepo()
	mem := cache.NewMemoryCache()
	bus := &collectingBus{}
	logger := testLogger()

	repo.users["learner@example.com"] = &models.User{
		ID:        "user-1",
		Email:     "learner@example.com",
		FocusArea: "critical_thinking",
		CreatedAt: time.Now().UTC(),
	}

	generator := &fakeGenerator{}
	evaluator := &fakeEvaluator{score: 85}
	loader := templates.NewLoader()

	coordinator := NewCoordinator(
		user.NewService(repo, logger),
		user.NewProgressService(repo, logger),
		user.NewJourneyService(repo, bus, logger),
		NewService(repo, mem, bus, logger),
		NewFactory(),
		loader,
		generator,
		evaluator,
		logger,
	)

	return &coordinatorFixture{
		coordinator: coordinator,
		repo:        repo,
		bus:         bus,
		generator:   generator,
		evaluator:   evaluator,
		loader:      loader,
	}
}

func TestGenerateAndPersist(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	ch, err := f.coordinator.GenerateAndPersist(ctx, models.GenerateRequest{
		UserEmail: "learner@example.com",
		FocusArea: "ai_ethics",
	})
	if err != nil {
		t.Fatalf("GenerateAndPersist failed: %v", err)
	}
	f.coordinator.WaitForSecondaries()

	if ch.Status != models.ChallengePending {
		t.Errorf("expected pending challenge, got %s", ch.Status)
	}
	if ch.Title != "Generated: AI Ethics" {
		t.Errorf("generated content not merged: %q", ch.Title)
	}
	if len(ch.Questions) != 2 {
		t.Errorf("expected 2 generated questions, got %d", len(ch.Questions))
	}
	if f.generator.calls != 1 {
		t.Errorf("expected 1 generator call, got %d", f.generator.calls)
	}

	// Persisted and readable back
	if _, ok := f.repo.challenges[ch.ID.String()]; !ok {
		t.Error("challenge not persisted")
	}

	published := f.bus.published()
	if len(published) == 0 || published[0].Type != models.EventChallengeCreated {
		t.Errorf("creation event not published: %+v", published)
	}
}

func TestGenerateFocusAreaFallsBackToProfile(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	// No focus area on the request: the profile's is used
	ch, err := f.coordinator.GenerateAndPersist(ctx, models.GenerateRequest{
		UserEmail: "learner@example.com",
	})
	if err != nil {
		t.Fatalf("GenerateAndPersist failed: %v", err)
	}
	f.coordinator.WaitForSecondaries()

	if ch.FocusArea.Code() != "critical_thinking" {
		t.Errorf("expected profile focus area, got %q", ch.FocusArea.Code())
	}

	// Neither request nor profile has one: validation error
	f.repo.users["bare@example.com"] = &models.User{ID: "user-2", Email: "bare@example.com"}
	_, err = f.coordinator.GenerateAndPersist(ctx, models.GenerateRequest{
		UserEmail: "bare@example.com",
	})
	if !models.IsKind(err, models.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestGenerateUnknownUser(t *testing.T) {
	f := newCoordinatorFixture(t)

	_, err := f.coordinator.GenerateAndPersist(context.Background(), models.GenerateRequest{
		UserEmail: "ghost@example.com",
		FocusArea: "ai_ethics",
	})
	if !models.IsKind(err, models.KindNotFound) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestGenerateBoxesGeneratorFailure(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.generator.err = errors.New("model timeout")

	_, err := f.coordinator.GenerateAndPersist(context.Background(), models.GenerateRequest{
		UserEmail: "learner@example.com",
		FocusArea: "ai_ethics",
	})
	if !models.IsKind(err, models.KindGeneration) {
		t.Fatalf("expected generation error, got %v", err)
	}

	de := models.AsDomainError(err)
	if de.Metadata["operation"] != "GenerateAndPersist" {
		t.Errorf("error metadata missing operation: %+v", de.Metadata)
	}
	if !errors.Is(err, f.generator.err) {
		t.Error("original cause lost in boxing")
	}
}

func TestGenerateFromTemplate(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.loader.Add(&models.ChallengeTemplate{
		ID:            "tmpl-1",
		Title:         "Template Title",
		ChallengeType: "scenario",
		FormatType:    "open-ended",
		Difficulty:    "advanced",
		FocusArea:     "ai_ethics",
		Questions:     []models.Question{{ID: "q-1", Text: "From the template?"}},
	})

	ch, err := f.coordinator.GenerateAndPersist(context.Background(), models.GenerateRequest{
		UserEmail:  "learner@example.com",
		FocusArea:  "ai_ethics",
		TemplateID: "tmpl-1",
	})
	if err != nil {
		t.Fatalf("GenerateAndPersist failed: %v", err)
	}
	f.coordinator.WaitForSecondaries()

	if ch.Difficulty.String() != "advanced" {
		t.Errorf("template difficulty not applied: %q", ch.Difficulty)
	}
	// Curated template content must win: no generation call, and the
	// template's title and questions survive untouched
	if f.generator.calls != 0 {
		t.Errorf("expected no generator calls for template draft, got %d", f.generator.calls)
	}
	if ch.Title != "Template Title" {
		t.Errorf("template title overwritten: %q", ch.Title)
	}
	if len(ch.Questions) != 1 || ch.Questions[0].Text != "From the template?" {
		t.Errorf("template questions overwritten: %+v", ch.Questions)
	}

	// Unknown template is a hard error, not a silent fallback
	_, err = f.coordinator.GenerateAndPersist(context.Background(), models.GenerateRequest{
		UserEmail:  "learner@example.com",
		FocusArea:  "ai_ethics",
		TemplateID: "no-such-template",
	})
	if !models.IsKind(err, models.KindNotFound) {
		t.Errorf("expected not found error for unknown template, got %v", err)
	}
}

func TestSubmitResponse(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	ch, err := f.coordinator.GenerateAndPersist(ctx, models.GenerateRequest{
		UserEmail: "learner@example.com",
		FocusArea: "ai_ethics",
	})
	if err != nil {
		t.Fatalf("GenerateAndPersist failed: %v", err)
	}

	completed, err := f.coordinator.SubmitResponse(ctx, ch.ID.String(), models.SubmitRequest{
		UserEmail: "learner@example.com",
		Responses: []models.ResponseInput{
			{QuestionID: "q-1", Content: "first answer"},
			{QuestionID: "q-2", Response: "second answer"},
		},
	})
	if err != nil {
		t.Fatalf("SubmitResponse failed: %v", err)
	}
	f.coordinator.WaitForSecondaries()

	if !completed.IsCompleted() {
		t.Errorf("expected completed challenge, got %s", completed.Status)
	}
	if completed.Score() != 85 {
		t.Errorf("expected score 85, got %v", completed.Score())
	}
	if f.evaluator.calls != 1 {
		t.Errorf("expected 1 evaluator call, got %d", f.evaluator.calls)
	}

	// Secondary effects ran: journey event appended via the bus
	var sawJourney bool
	for _, ev := range f.bus.published() {
		if ev.Type == models.EventUserJourney {
			sawJourney = true
		}
	}
	if !sawJourney {
		t.Error("journey event not published")
	}
}

func TestSubmitResponseRejectsCompleted(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	ch, err := f.coordinator.GenerateAndPersist(ctx, models.GenerateRequest{
		UserEmail: "learner@example.com",
		FocusArea: "ai_ethics",
	})
	if err != nil {
		t.Fatalf("GenerateAndPersist failed: %v", err)
	}

	submit := models.SubmitRequest{
		UserEmail: "learner@example.com",
		Responses: []models.ResponseInput{{QuestionID: "q-1", Content: "answer"}},
	}
	if _, err := f.coordinator.SubmitResponse(ctx, ch.ID.String(), submit); err != nil {
		t.Fatalf("SubmitResponse failed: %v", err)
	}

	_, err = f.coordinator.SubmitResponse(ctx, ch.ID.String(), submit)
	if !models.IsKind(err, models.KindResponse) {
		t.Fatalf("expected response error for resubmission, got %v", err)
	}
	if !strings.Contains(err.Error(), "already completed") {
		t.Errorf("error should say already completed: %v", err)
	}
	f.coordinator.WaitForSecondaries()
}

func TestSubmitResponseValidation(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.SubmitResponse(ctx, "not-an-id", models.SubmitRequest{
		UserEmail: "learner@example.com",
		Responses: []models.ResponseInput{{Content: "x"}},
	})
	if !models.IsKind(err, models.KindValidation) {
		t.Errorf("expected validation error for bad id, got %v", err)
	}

	_, err = f.coordinator.SubmitResponse(ctx, models.NewChallengeID().String(), models.SubmitRequest{
		UserEmail: "learner@example.com",
	})
	if !models.IsKind(err, models.KindValidation) {
		t.Errorf("expected validation error for empty responses, got %v", err)
	}

	_, err = f.coordinator.SubmitResponse(ctx, models.NewChallengeID().String(), models.SubmitRequest{
		UserEmail: "learner@example.com",
		Responses: []models.ResponseInput{{Content: "x"}},
	})
	if !models.IsKind(err, models.KindNotFound) {
		t.Errorf("expected not found error for unknown challenge, got %v", err)
	}
}

func TestSubmitResponseEvaluatorFailureLeavesChallengeRecoverable(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	ch, err := f.coordinator.GenerateAndPersist(ctx, models.GenerateRequest{
		UserEmail: "learner@example.com",
		FocusArea: "ai_ethics",
	})
	if err != nil {
		t.Fatalf("GenerateAndPersist failed: %v", err)
	}

	f.evaluator.err = errors.New("model overloaded")
	submit := models.SubmitRequest{
		UserEmail: "learner@example.com",
		Responses: []models.ResponseInput{{QuestionID: "q-1", Content: "answer"}},
	}
	_, err = f.coordinator.SubmitResponse(ctx, ch.ID.String(), submit)
	if !models.IsKind(err, models.KindResponse) {
		t.Fatalf("expected response error, got %v", err)
	}

	// Nothing was persisted, so the retry goes through cleanly
	f.evaluator.err = nil
	completed, err := f.coordinator.SubmitResponse(ctx, ch.ID.String(), submit)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !completed.IsCompleted() {
		t.Errorf("expected completed challenge on retry, got %s", completed.Status)
	}
	f.coordinator.WaitForSecondaries()
}
