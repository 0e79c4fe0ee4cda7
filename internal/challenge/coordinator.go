package challenge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/terra-clan/challenge-engine/internal/models"
	"github.com/terra-clan/challenge-engine/internal/templates"
	"github.com/terra-clan/challenge-engine/internal/user"
)

// Generator produces challenge content from a user profile and typed
// parameters. Implemented by the LLM generation service.
type Generator interface {
	GenerateChallenge(ctx context.Context, u *models.User, params models.GenerationParams, recent []*models.Challenge) (*models.GeneratedChallenge, error)
}

// Evaluator grades submitted responses. Implemented by the LLM
// evaluation service.
type Evaluator interface {
	EvaluateResponses(ctx context.Context, ch *models.Challenge, responses []models.Response) (*models.Evaluation, error)
}

const (
	recentContextSize = 3
	secondaryTimeout  = 10 * time.Second
)

// Coordinator orchestrates the generation and submission flows across the
// user services, factory, LLM services, and challenge service. Secondary
// side effects (progress, journey, last-active) run best-effort and never
// block or fail the primary result.
type Coordinator struct {
	users      *user.Service
	progress   *user.ProgressService
	journey    *user.JourneyService
	challenges *Service
	factory    *Factory
	loader     *templates.Loader
	generator  Generator
	evaluator  Evaluator
	log        *slog.Logger

	// secondaries tracks in-flight side-effect goroutines so shutdown
	// and tests can wait for them
	secondaries sync.WaitGroup
}

// NewCoordinator wires a coordinator from its dependencies
func NewCoordinator(
	users *user.Service,
	progress *user.ProgressService,
	journey *user.JourneyService,
	challenges *Service,
	factory *Factory,
	loader *templates.Loader,
	generator Generator,
	evaluator Evaluator,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		users:      users,
		progress:   progress,
		journey:    journey,
		challenges: challenges,
		factory:    factory,
		loader:     loader,
		generator:  generator,
		evaluator:  evaluator,
		log:        logger.With(slog.String("component", "challenge.coordinator")),
	}
}

// GenerateAndPersist runs the full challenge-generation flow: resolve the
// user, draft via the factory, fill content via the generation service
// (using recent history for context) unless the draft comes from a
// template, persist, then stamp last-active without blocking the response.
func (c *Coordinator) GenerateAndPersist(ctx context.Context, req models.GenerateRequest) (*models.Challenge, error) {
	op := "GenerateAndPersist"
	var result *models.Challenge

	err := c.execute(ctx, op, func(ctx context.Context) error {
		email, err := models.ParseEmail(req.UserEmail)
		if err != nil {
			return err
		}

		u, err := c.users.GetByEmail(ctx, email)
		if err != nil {
			return err
		}

		params, err := c.resolveParams(req, u)
		if err != nil {
			return err
		}

		draft, err := c.draft(req, u, params)
		if err != nil {
			return err
		}

		// Template drafts carry curated content; only free-form
		// requests go through the generation service.
		if req.TemplateID == "" {
			recent, err := c.challenges.RecentForUser(ctx, email.String(), recentContextSize)
			if err != nil {
				c.log.Warn("recent challenge lookup failed, generating without history",
					slog.String("op", op), slog.String("error", err.Error()))
				recent = nil
			}

			generated, err := c.generator.GenerateChallenge(ctx, u, params, recent)
			if err != nil {
				return models.WrapGenerationError("generation service failed", err)
			}

			mergeGenerated(draft, generated)
		}

		if err := c.challenges.Save(ctx, draft); err != nil {
			return err
		}

		c.fireSecondary("touch_last_active", func(ctx context.Context) error {
			return c.users.TouchLastActive(ctx, email)
		})

		result = draft
		return nil
	}, func(cause error) *models.DomainError {
		return models.WrapGenerationError("challenge generation failed", cause)
	})

	return result, err
}

// SubmitResponse runs the full submission flow: load and guard the
// challenge, record responses, evaluate via the evaluation service,
// complete, persist, then fire the secondary effects in parallel.
func (c *Coordinator) SubmitResponse(ctx context.Context, challengeID string, req models.SubmitRequest) (*models.Challenge, error) {
	op := "SubmitResponse"
	var result *models.Challenge

	err := c.execute(ctx, op, func(ctx context.Context) error {
		id, err := models.ParseChallengeID(challengeID)
		if err != nil {
			return err
		}

		email, err := models.ParseEmail(req.UserEmail)
		if err != nil {
			return err
		}

		if len(req.Responses) == 0 {
			return models.NewValidationError("at least one response is required")
		}

		ch, err := c.challenges.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if ch.IsCompleted() {
			return &models.DomainError{
				Kind:    models.KindResponse,
				Message: "challenge " + id.String() + " is already completed",
			}
		}

		if err := ch.SubmitResponses(req.Responses); err != nil {
			return err
		}

		eval, err := c.evaluator.EvaluateResponses(ctx, ch, ch.Responses)
		if err != nil {
			return models.WrapResponseError("evaluation service failed", err)
		}

		if err := ch.Complete(*eval); err != nil {
			return err
		}

		if err := c.challenges.Update(ctx, ch); err != nil {
			return err
		}

		c.fireSecondaries(ch, email)

		result = ch
		return nil
	}, func(cause error) *models.DomainError {
		return models.WrapResponseError("challenge submission failed", cause)
	})

	return result, err
}

// draft builds the initial pending challenge, from a template when one is
// requested
func (c *Coordinator) draft(req models.GenerateRequest, u *models.User, params models.GenerationParams) (*models.Challenge, error) {
	if req.TemplateID != "" {
		tmpl := c.loader.Get(req.TemplateID)
		if tmpl == nil {
			return nil, models.NewNotFoundError("template %s not found", req.TemplateID)
		}
		return c.factory.FromTemplate(tmpl, u.Email, u.ID)
	}

	return c.factory.New(CreateParams{
		UserEmail:     u.Email,
		UserID:        u.ID,
		FocusArea:     params.FocusArea.Code(),
		Difficulty:    params.Difficulty.String(),
		ChallengeType: params.ChallengeType,
		FormatType:    params.FormatType,
	})
}

// resolveParams merges request parameters with profile defaults
func (c *Coordinator) resolveParams(req models.GenerateRequest, u *models.User) (models.GenerationParams, error) {
	focusRaw := req.FocusArea
	if focusRaw == "" {
		focusRaw = u.FocusArea
	}
	if focusRaw == "" {
		return models.GenerationParams{}, models.NewValidationError("focus area is required (none on request or profile)")
	}

	focusArea, err := models.ParseFocusArea(focusRaw)
	if err != nil {
		return models.GenerationParams{}, err
	}

	difficulty := models.DefaultDifficulty()
	if req.Difficulty != "" {
		difficulty, err = models.ParseDifficulty(req.Difficulty)
		if err != nil {
			return models.GenerationParams{}, err
		}
	}

	return models.GenerationParams{
		ChallengeType: req.ChallengeType,
		FormatType:    req.FormatType,
		Difficulty:    difficulty,
		FocusArea:     focusArea,
	}, nil
}

// mergeGenerated folds LLM output into the draft
func mergeGenerated(draft *models.Challenge, generated *models.GeneratedChallenge) {
	draft.Title = generated.Title
	if generated.Description != "" {
		draft.Description = generated.Description
	}
	draft.Content = generated.Content
	if len(generated.Questions) > 0 {
		draft.Questions = generated.Questions
	}
}

// fireSecondaries launches the post-submission side effects in parallel:
// progress update, journey event, last-active stamp. Each is isolated so
// one failure never aborts the others.
func (c *Coordinator) fireSecondaries(ch *models.Challenge, email models.Email) {
	userRef := ch.UserID.String()
	if userRef == "" {
		userRef = email.String()
	}
	score := ch.Score()
	focusArea := ch.FocusArea
	challengeID := ch.ID.String()

	c.fireSecondary("progress_update", func(ctx context.Context) error {
		if focusArea.IsZero() {
			return nil
		}
		return c.progress.RecordCompletion(ctx, userRef, focusArea, score)
	})

	c.fireSecondary("journey_event", func(ctx context.Context) error {
		return c.journey.RecordEvent(ctx, userRef, "challenge_completed", map[string]any{
			"challenge_id": challengeID,
			"focus_area":   focusArea.Code(),
			"score":        score,
		})
	})

	c.fireSecondary("touch_last_active", func(ctx context.Context) error {
		return c.users.TouchLastActive(ctx, email)
	})
}

// fireSecondary runs a best-effort side effect on its own timeout,
// detached from the request context so a finished request does not
// cancel it
func (c *Coordinator) fireSecondary(name string, fn func(ctx context.Context) error) {
	c.secondaries.Add(1)
	go func() {
		defer c.secondaries.Done()

		ctx, cancel := context.WithTimeout(context.Background(), secondaryTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			c.log.Error("secondary operation failed",
				slog.String("operation", name),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// WaitForSecondaries blocks until all in-flight side effects finish.
// Called on shutdown and by tests.
func (c *Coordinator) WaitForSecondaries() {
	c.secondaries.Wait()
}

// execute wraps a coordinator operation: debug logging around the call,
// error logging on failure, and a guarantee that any error leaving the
// coordinator is a typed domain error. Errors already typed pass through
// untouched; anything else is boxed by wrap with the original as cause.
func (c *Coordinator) execute(ctx context.Context, op string, fn func(ctx context.Context) error, wrap func(error) *models.DomainError) error {
	log := c.log.With(slog.String("op", op))
	log.Debug("operation started")

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	if err == nil {
		log.Debug("operation completed", slog.Duration("elapsed", elapsed))
		return nil
	}

	var de *models.DomainError
	if !errors.As(err, &de) {
		de = wrap(err)
	}
	if de.Metadata == nil {
		de.Metadata = map[string]any{}
	}
	de.Metadata["coordinator"] = "challenge"
	de.Metadata["operation"] = op

	log.Error("operation failed",
		slog.String("kind", string(de.Kind)),
		slog.String("error", de.Error()),
		slog.Duration("elapsed", elapsed),
	)
	return de
}
