// Package challenge implements the core of the learning platform: the
// challenge factory, the cached CRUD service, and the coordinator that
// orchestrates generation and evaluation flows.
package challenge

import (
	"time"

	"github.com/terra-clan/challenge-engine/internal/models"
)

// CreateParams are the raw inputs for constructing a challenge
type CreateParams struct {
	UserEmail     string
	UserID        string
	FocusArea     string
	Difficulty    string
	ChallengeType string
	FormatType    string
	Title         string
	Description   string
	Content       models.ChallengeContent
	Questions     []models.Question
}

// Factory constructs validated challenges from raw input or templates
type Factory struct{}

// NewFactory creates a challenge factory
func NewFactory() *Factory {
	return &Factory{}
}

// New builds a fresh pending challenge from raw parameters. At least one
// of email or user id identifies the owner; difficulty defaults to
// intermediate.
func (f *Factory) New(params CreateParams) (*models.Challenge, error) {
	if params.UserEmail == "" && params.UserID == "" {
		return nil, models.NewValidationError("user email or user id is required")
	}

	var email models.Email
	var err error
	if params.UserEmail != "" {
		email, err = models.ParseEmail(params.UserEmail)
		if err != nil {
			return nil, err
		}
	}

	var focusArea models.FocusArea
	if params.FocusArea != "" {
		focusArea, err = models.ParseFocusArea(params.FocusArea)
		if err != nil {
			return nil, err
		}
	}

	difficulty := models.DefaultDifficulty()
	if params.Difficulty != "" {
		difficulty, err = models.ParseDifficulty(params.Difficulty)
		if err != nil {
			return nil, err
		}
	}

	var userID models.UserID
	if params.UserID != "" {
		userID, err = models.ParseUserID(params.UserID)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	ch := &models.Challenge{
		ID:            models.NewChallengeID(),
		Title:         params.Title,
		Description:   params.Description,
		Content:       params.Content,
		Questions:     params.Questions,
		ChallengeType: params.ChallengeType,
		FormatType:    params.FormatType,
		Difficulty:    difficulty,
		FocusArea:     focusArea,
		UserEmail:     email,
		UserID:        userID,
		Status:        models.ChallengePending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := ch.Validate(); err != nil {
		return nil, err
	}

	ch.RecordCreated()
	return ch, nil
}

// FromTemplate instantiates a template for a user: content is cloned,
// identity and timestamps are always fresh, status is always pending.
// At least one of email or user id is required.
func (f *Factory) FromTemplate(tmpl *models.ChallengeTemplate, userEmail, userID string) (*models.Challenge, error) {
	if tmpl == nil {
		return nil, models.NewValidationError("template is required")
	}
	if userEmail == "" && userID == "" {
		return nil, models.NewValidationError("user email or user id is required")
	}

	questions := make([]models.Question, len(tmpl.Questions))
	copy(questions, tmpl.Questions)

	return f.New(CreateParams{
		UserEmail:     userEmail,
		UserID:        userID,
		FocusArea:     tmpl.FocusArea,
		Difficulty:    tmpl.Difficulty,
		ChallengeType: tmpl.ChallengeType,
		FormatType:    tmpl.FormatType,
		Title:         tmpl.Title,
		Description:   tmpl.Description,
		Content:       tmpl.Content,
		Questions:     questions,
	})
}
