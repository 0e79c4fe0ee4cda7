package models

import (
	"time"
)

// User is a learner profile. Trait scores come from prior assessments and
// steer challenge generation.
type User struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	FullName    string            `json:"full_name,omitempty"`
	FocusArea   string            `json:"focus_area,omitempty"`
	TraitScores map[string]int    `json:"trait_scores,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	LastActive  *time.Time        `json:"last_active,omitempty"`
}

// UserProgress aggregates a user's results within one focus area
type UserProgress struct {
	UserID         string    `json:"user_id"`
	FocusArea      string    `json:"focus_area"`
	CompletedCount int       `json:"completed_count"`
	AverageScore   float64   `json:"average_score"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// JourneyEvent is an append-only record of a user's activity
type JourneyEvent struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Type       string         `json:"type"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// ChallengeFilters narrows challenge list queries
type ChallengeFilters struct {
	UserID        string
	FocusArea     string
	ChallengeType string
	Status        ChallengeStatus
	Limit         int
	Offset        int
}

// GenerateRequest asks for a new personalized challenge
type GenerateRequest struct {
	UserEmail     string `json:"user_email"`
	FocusArea     string `json:"focus_area,omitempty"`
	ChallengeType string `json:"challenge_type,omitempty"`
	FormatType    string `json:"format_type,omitempty"`
	Difficulty    string `json:"difficulty,omitempty"`
	TemplateID    string `json:"template_id,omitempty"`
}

// SubmitRequest carries a user's answers for evaluation
type SubmitRequest struct {
	UserEmail string          `json:"user_email"`
	Responses []ResponseInput `json:"responses"`
}
