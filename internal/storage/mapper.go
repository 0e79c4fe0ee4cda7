package storage

import (
	"encoding/json"
	"time"

	"github.com/terra-clan/challenge-engine/internal/models"
)

// ChallengeRecord is the persisted shape of a challenge: snake_case
// columns with nested structures stored as JSON. The mapper converts
// between records and domain entities in both directions.
type ChallengeRecord struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	ChallengeType string          `json:"challenge_type"`
	FormatType    string          `json:"format_type"`
	Difficulty    string          `json:"difficulty"`
	FocusArea     string          `json:"focus_area"`
	UserEmail     string          `json:"user_email"`
	UserID        string          `json:"user_id"`
	Status        string          `json:"status"`
	Content       json.RawMessage `json:"content"`
	Questions     json.RawMessage `json:"questions"`
	Responses     json.RawMessage `json:"responses"`
	Evaluation    json.RawMessage `json:"evaluation"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	SubmittedAt   *time.Time      `json:"submitted_at"`
	CompletedAt   *time.Time      `json:"completed_at"`
}

// ToRecord converts a domain challenge into its persisted shape
func ToRecord(ch *models.Challenge) (*ChallengeRecord, error) {
	content, err := json.Marshal(ch.Content)
	if err != nil {
		return nil, err
	}

	questions, err := json.Marshal(ch.Questions)
	if err != nil {
		return nil, err
	}

	responses, err := json.Marshal(ch.Responses)
	if err != nil {
		return nil, err
	}

	var evaluation json.RawMessage
	if ch.Evaluation != nil {
		evaluation, err = json.Marshal(ch.Evaluation)
		if err != nil {
			return nil, err
		}
	}

	return &ChallengeRecord{
		ID:            ch.ID.String(),
		Title:         ch.Title,
		Description:   ch.Description,
		ChallengeType: ch.ChallengeType,
		FormatType:    ch.FormatType,
		Difficulty:    ch.Difficulty.String(),
		FocusArea:     ch.FocusArea.Code(),
		UserEmail:     ch.UserEmail.String(),
		UserID:        ch.UserID.String(),
		Status:        string(ch.Status),
		Content:       content,
		Questions:     questions,
		Responses:     responses,
		Evaluation:    evaluation,
		CreatedAt:     ch.CreatedAt,
		UpdatedAt:     ch.UpdatedAt,
		SubmittedAt:   ch.SubmittedAt,
		CompletedAt:   ch.CompletedAt,
	}, nil
}

// ToDomain converts a persisted record back into a domain challenge.
// Malformed nested JSON degrades to the zero value instead of failing
// the read; a malformed id is a hard error since nothing downstream can
// work with it.
func ToDomain(rec *ChallengeRecord) (*models.Challenge, error) {
	id, err := models.ParseChallengeID(rec.ID)
	if err != nil {
		return nil, err
	}

	ch := &models.Challenge{
		ID:            id,
		Title:         rec.Title,
		Description:   rec.Description,
		ChallengeType: rec.ChallengeType,
		FormatType:    rec.FormatType,
		Status:        models.ChallengeStatus(rec.Status),
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
		SubmittedAt:   rec.SubmittedAt,
		CompletedAt:   rec.CompletedAt,
	}

	if rec.Difficulty != "" {
		if d, err := models.ParseDifficulty(rec.Difficulty); err == nil {
			ch.Difficulty = d
		} else {
			ch.Difficulty = models.DefaultDifficulty()
		}
	}

	if rec.FocusArea != "" {
		if fa, err := models.ParseFocusArea(rec.FocusArea); err == nil {
			ch.FocusArea = fa
		}
	}

	if rec.UserEmail != "" {
		if email, err := models.ParseEmail(rec.UserEmail); err == nil {
			ch.UserEmail = email
		}
	}

	if rec.UserID != "" {
		if uid, err := models.ParseUserID(rec.UserID); err == nil {
			ch.UserID = uid
		}
	}

	unmarshalLenient(rec.Content, &ch.Content)
	unmarshalLenient(rec.Questions, &ch.Questions)
	unmarshalLenient(rec.Responses, &ch.Responses)

	if len(rec.Evaluation) > 0 && string(rec.Evaluation) != "null" {
		var eval models.Evaluation
		if json.Unmarshal(rec.Evaluation, &eval) == nil {
			ch.Evaluation = &eval
		}
	}

	return ch, nil
}

// unmarshalLenient parses stored JSON, leaving dest at its zero value on
// malformed input. Some legacy rows double-encode nested fields as JSON
// strings; those are unwrapped first.
func unmarshalLenient(data json.RawMessage, dest any) {
	if len(data) == 0 || string(data) == "null" {
		return
	}

	if json.Unmarshal(data, dest) == nil {
		return
	}

	// Double-encoded: a JSON string containing JSON
	var inner string
	if json.Unmarshal(data, &inner) == nil {
		_ = json.Unmarshal([]byte(inner), dest)
	}
}
