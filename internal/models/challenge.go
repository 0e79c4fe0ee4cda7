package models

import (
	"time"

	"github.com/google/uuid"
)

// ChallengeStatus represents the lifecycle state of a challenge
type ChallengeStatus string

const (
	ChallengePending   ChallengeStatus = "pending"
	ChallengeSubmitted ChallengeStatus = "submitted"
	ChallengeCompleted ChallengeStatus = "completed"
)

// IsValid reports whether the status is a known lifecycle state
func (s ChallengeStatus) IsValid() bool {
	return s == ChallengePending || s == ChallengeSubmitted || s == ChallengeCompleted
}

// IsTerminal returns true if no further transition is allowed
func (s ChallengeStatus) IsTerminal() bool {
	return s == ChallengeCompleted
}

// ChallengeContent holds the structured body of a challenge
type ChallengeContent struct {
	Instructions string `json:"instructions,omitempty"`
	Context      string `json:"context,omitempty"`
	Scenario     string `json:"scenario,omitempty"`
}

// Question is a single prompt within a challenge
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Type    string   `json:"type,omitempty"`
	Options []string `json:"options,omitempty"`
}

// Response is a user's answer to a challenge question
type Response struct {
	ID          string    `json:"id"`
	QuestionID  string    `json:"question_id,omitempty"`
	Content     string    `json:"content"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ResponseInput is the raw shape accepted at the submission boundary.
// Either Content or Response may carry the answer text.
type ResponseInput struct {
	ID         string `json:"id,omitempty"`
	QuestionID string `json:"question_id,omitempty"`
	Content    string `json:"content,omitempty"`
	Response   string `json:"response,omitempty"`
}

// ResponsesFromStrings wraps plain answer strings as response inputs
func ResponsesFromStrings(answers []string) []ResponseInput {
	inputs := make([]ResponseInput, 0, len(answers))
	for _, a := range answers {
		inputs = append(inputs, ResponseInput{Content: a})
	}
	return inputs
}

// Evaluation is the LLM-produced assessment of submitted responses
type Evaluation struct {
	Score               float64            `json:"score"`
	Feedback            string             `json:"feedback"`
	Strengths           []string           `json:"strengths,omitempty"`
	AreasForImprovement []string           `json:"areas_for_improvement,omitempty"`
	Criteria            map[string]float64 `json:"criteria,omitempty"`
	ResponseID          string             `json:"response_id,omitempty"`
}

// Challenge is a generated learning exercise moving through
// pending -> submitted -> completed. Mutations enforce the lifecycle
// invariants and record domain events for dispatch after persistence.
type Challenge struct {
	ID            ChallengeID
	Title         string
	Description   string
	Content       ChallengeContent
	Questions     []Question
	ChallengeType string
	FormatType    string
	Difficulty    DifficultyLevel
	FocusArea     FocusArea
	UserEmail     Email
	UserID        UserID
	Responses     []Response
	Evaluation    *Evaluation
	Status        ChallengeStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SubmittedAt   *time.Time
	CompletedAt   *time.Time

	events []DomainEvent
}

// Derived state queries

func (c *Challenge) IsPending() bool   { return c.Status == ChallengePending }
func (c *Challenge) IsSubmitted() bool { return c.Status == ChallengeSubmitted }
func (c *Challenge) IsCompleted() bool { return c.Status == ChallengeCompleted }

// Score returns the evaluation score, or -1 if not yet evaluated
func (c *Challenge) Score() float64 {
	if c.Evaluation == nil {
		return -1
	}
	return c.Evaluation.Score
}

// Feedback returns the evaluation feedback, or empty if not evaluated
func (c *Challenge) Feedback() string {
	if c.Evaluation == nil {
		return ""
	}
	return c.Evaluation.Feedback
}

// CompletionTime returns minutes between creation and submission,
// or 0 if not yet submitted
func (c *Challenge) CompletionTime() float64 {
	if c.SubmittedAt == nil {
		return 0
	}
	return c.SubmittedAt.Sub(c.CreatedAt).Minutes()
}

var difficultyBaseMinutes = map[int]float64{
	tierBeginner:     10,
	tierIntermediate: 15,
	tierAdvanced:     20,
	tierExpert:       30,
}

var formatTimeMultiplier = map[string]float64{
	"multiple-choice": 0.8,
	"open-ended":      1.2,
	"coding":          1.5,
}

// ExpectedCompletionTime estimates minutes to complete: a difficulty base
// plus 2 minutes per question, scaled by a per-format multiplier
func (c *Challenge) ExpectedCompletionTime() float64 {
	base := difficultyBaseMinutes[c.Difficulty.NumericValue()]
	if base == 0 {
		base = difficultyBaseMinutes[tierIntermediate]
	}
	estimate := base + 2*float64(len(c.Questions))
	if mult, ok := formatTimeMultiplier[c.FormatType]; ok {
		estimate *= mult
	}
	return estimate
}

// SubmitResponses records user answers and moves the challenge to
// submitted. Inputs may carry the answer in Content or Response; missing
// ids are filled in. Already-completed challenges reject submission.
func (c *Challenge) SubmitResponses(inputs []ResponseInput) error {
	if c.Status == ChallengeCompleted {
		return NewInvalidStateError("challenge %s is already completed", c.ID)
	}
	if len(inputs) == 0 {
		return NewValidationError("at least one response is required")
	}

	now := time.Now().UTC()
	responses := make([]Response, 0, len(inputs))
	for i, in := range inputs {
		content := in.Content
		if content == "" {
			content = in.Response
		}
		if content == "" {
			return NewValidationError("response %d has no content", i)
		}
		id := in.ID
		if id == "" {
			id = uuid.New().String()
		}
		responses = append(responses, Response{
			ID:          id,
			QuestionID:  in.QuestionID,
			Content:     content,
			SubmittedAt: now,
		})
	}

	c.Responses = responses
	c.Status = ChallengeSubmitted
	c.SubmittedAt = &now
	c.UpdatedAt = now

	c.recordEvent(EventChallengeResponseSubmitted, map[string]any{
		"challenge_id":   c.ID.String(),
		"challenge_type": c.ChallengeType,
		"focus_area":     c.FocusArea.Code(),
		"difficulty":     c.Difficulty.String(),
		"response_count": len(responses),
	})

	if err := c.Validate(); err != nil {
		return err
	}
	return nil
}

// Complete attaches an evaluation and moves the challenge to completed.
// Requires prior submission with at least one response.
func (c *Challenge) Complete(eval Evaluation) error {
	if c.Status == ChallengeCompleted {
		return NewInvalidStateError("challenge %s is already completed", c.ID)
	}
	if c.Status != ChallengeSubmitted {
		return NewInvalidStateError("challenge %s has no submitted responses to evaluate", c.ID)
	}
	if len(c.Responses) == 0 {
		return NewInvalidStateError("challenge %s has no responses", c.ID)
	}
	if eval.Score < 0 {
		return NewValidationError("evaluation score must be non-negative, got %v", eval.Score)
	}
	if eval.Feedback == "" {
		return NewValidationError("evaluation feedback is required")
	}

	now := time.Now().UTC()
	c.Evaluation = &eval
	c.Status = ChallengeCompleted
	c.CompletedAt = &now
	c.UpdatedAt = now

	c.recordEvent(EventChallengeEvaluated, map[string]any{
		"challenge_id":   c.ID.String(),
		"challenge_type": c.ChallengeType,
		"focus_area":     c.FocusArea.Code(),
		"difficulty":     c.Difficulty.String(),
		"score":          eval.Score,
	})

	if err := c.Validate(); err != nil {
		return err
	}
	return nil
}

// ChallengePatch is a partial field update. Nil fields are untouched.
type ChallengePatch struct {
	Title         *string
	Description   *string
	Content       *ChallengeContent
	Questions     []Question
	ChallengeType *string
	FormatType    *string
	Difficulty    *DifficultyLevel
	FocusArea     *FocusArea
	Status        *ChallengeStatus
	Responses     []Response
	SubmittedAt   *time.Time
	CompletedAt   *time.Time
}

// ApplyUpdate merges a patch into the challenge. Protected fields stay
// fixed, response data cannot change once submitted, and the status may
// never regress from completed. The merge is staged on a copy and only
// committed once all invariants hold, so a rejected patch leaves the
// challenge untouched.
func (c *Challenge) ApplyUpdate(patch ChallengePatch) error {
	if patch.Status != nil {
		if !patch.Status.IsValid() {
			return NewValidationError("unknown status: %q", *patch.Status)
		}
		if c.Status == ChallengeCompleted && *patch.Status != ChallengeCompleted {
			return NewInvalidStateError("challenge %s is completed; status cannot regress to %s", c.ID, *patch.Status)
		}
	}
	if c.Status != ChallengePending {
		if patch.Responses != nil {
			return NewInvalidStateError("responses cannot change after submission")
		}
		if patch.SubmittedAt != nil || patch.CompletedAt != nil {
			return NewInvalidStateError("submission timestamps cannot change after submission")
		}
	}

	merged := *c
	if patch.Title != nil {
		merged.Title = *patch.Title
	}
	if patch.Description != nil {
		merged.Description = *patch.Description
	}
	if patch.Content != nil {
		merged.Content = *patch.Content
	}
	if patch.Questions != nil {
		merged.Questions = patch.Questions
	}
	if patch.ChallengeType != nil {
		merged.ChallengeType = *patch.ChallengeType
	}
	if patch.FormatType != nil {
		merged.FormatType = *patch.FormatType
	}
	if patch.Difficulty != nil {
		merged.Difficulty = *patch.Difficulty
	}
	if patch.FocusArea != nil {
		merged.FocusArea = *patch.FocusArea
	}
	if patch.Status != nil {
		merged.Status = *patch.Status
	}
	if patch.Responses != nil {
		merged.Responses = patch.Responses
	}
	if patch.SubmittedAt != nil {
		merged.SubmittedAt = patch.SubmittedAt
	}
	if patch.CompletedAt != nil {
		merged.CompletedAt = patch.CompletedAt
	}

	merged.UpdatedAt = time.Now().UTC()

	if err := merged.Validate(); err != nil {
		return err
	}

	*c = merged
	return nil
}

// Validate checks all lifecycle invariants. Called at construction and
// after every mutation; violations are never silently corrected.
func (c *Challenge) Validate() error {
	if c.ID.IsZero() {
		return NewValidationError("challenge id is required")
	}
	if !c.Status.IsValid() {
		return NewValidationError("unknown status: %q", c.Status)
	}
	if c.Status == ChallengeCompleted {
		if c.Evaluation == nil {
			return NewInvalidStateError("completed challenge %s has no evaluation", c.ID)
		}
		if len(c.Responses) == 0 {
			return NewInvalidStateError("completed challenge %s has no responses", c.ID)
		}
		if c.CompletedAt == nil {
			return NewInvalidStateError("completed challenge %s has no completion timestamp", c.ID)
		}
	}
	if c.Status == ChallengeSubmitted && len(c.Responses) == 0 {
		return NewInvalidStateError("submitted challenge %s has no responses", c.ID)
	}
	if c.Evaluation != nil && c.Status != ChallengeCompleted {
		return NewInvalidStateError("challenge %s has an evaluation but is not completed", c.ID)
	}
	if c.SubmittedAt != nil && c.Status == ChallengePending {
		return NewInvalidStateError("challenge %s has a submission timestamp but is pending", c.ID)
	}
	if c.CompletedAt != nil && c.Status != ChallengeCompleted {
		return NewInvalidStateError("challenge %s has a completion timestamp but is not completed", c.ID)
	}
	return nil
}

// recordEvent queues a domain event for post-persistence dispatch
func (c *Challenge) recordEvent(eventType EventType, payload map[string]any) {
	c.events = append(c.events, NewDomainEvent(eventType, payload))
}

// RecordCreated queues the creation event. Called by the factory so a
// challenge that never persists never announces itself.
func (c *Challenge) RecordCreated() {
	c.recordEvent(EventChallengeCreated, map[string]any{
		"challenge_id":   c.ID.String(),
		"challenge_type": c.ChallengeType,
		"focus_area":     c.FocusArea.Code(),
		"difficulty":     c.Difficulty.String(),
		"user_email":     c.UserEmail.String(),
	})
}

// Events returns the queued events without draining them
func (c *Challenge) Events() []DomainEvent {
	return c.events
}

// DrainEvents returns the queued events and clears the queue. The service
// layer drains after a successful write and hands the batch to the bus.
func (c *Challenge) DrainEvents() []DomainEvent {
	drained := c.events
	c.events = nil
	return drained
}
