package models

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Value objects wrap primitive identifiers behind parse-and-normalize
// constructors. Construction either succeeds with a normalized value or
// returns a validation error; a zero value is never valid.

// Email is a normalized (lower-cased) email address
type Email struct {
	value string
}

// ParseEmail validates and normalizes an email address
func ParseEmail(raw string) (Email, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Email{}, NewValidationError("email is required")
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return Email{}, NewValidationError("invalid email address: %q", raw)
	}
	return Email{value: strings.ToLower(trimmed)}, nil
}

func (e Email) String() string      { return e.value }
func (e Email) IsZero() bool        { return e.value == "" }
func (e Email) Equals(o Email) bool { return e.value == o.value }

// UserID is an opaque non-empty user identifier
type UserID struct {
	value string
}

// ParseUserID validates a user identifier
func ParseUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, NewValidationError("user id is required")
	}
	return UserID{value: trimmed}, nil
}

func (u UserID) String() string       { return u.value }
func (u UserID) IsZero() bool         { return u.value == "" }
func (u UserID) Equals(o UserID) bool { return u.value == o.value }

// challengeIDPattern matches legacy "prefix-timestamp-number" ids
var challengeIDPattern = regexp.MustCompile(`^[a-z]+-\d{10,13}-\d+$`)

// ChallengeID identifies a challenge: a UUID or a legacy
// prefix-timestamp-number id
type ChallengeID struct {
	value string
}

// ParseChallengeID validates a challenge identifier
func ParseChallengeID(raw string) (ChallengeID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ChallengeID{}, NewValidationError("challenge id is required")
	}
	if _, err := uuid.Parse(trimmed); err == nil {
		return ChallengeID{value: strings.ToLower(trimmed)}, nil
	}
	if challengeIDPattern.MatchString(trimmed) {
		return ChallengeID{value: trimmed}, nil
	}
	return ChallengeID{}, NewValidationError("invalid challenge id: %q", raw)
}

// NewChallengeID generates a fresh UUID-based id
func NewChallengeID() ChallengeID {
	return ChallengeID{value: uuid.New().String()}
}

func (c ChallengeID) String() string            { return c.value }
func (c ChallengeID) IsZero() bool              { return c.value == "" }
func (c ChallengeID) Equals(o ChallengeID) bool { return c.value == o.value }

// focusAreas maps canonical snake_case codes to display names
var focusAreas = map[string]string{
	"ai_ethics":            "AI Ethics",
	"critical_thinking":    "Critical Thinking",
	"creative_reasoning":   "Creative Reasoning",
	"human_ai_interaction": "Human-AI Interaction",
	"emotional_reasoning":  "Emotional Reasoning",
	"strategic_thinking":   "Strategic Thinking",
	"data_literacy":        "Data Literacy",
	"communication":        "Communication",
}

// FocusArea is a topical category with a canonical code and display name
type FocusArea struct {
	code string
}

// ParseFocusArea accepts either a canonical code ("ai_ethics") or a
// display name ("AI Ethics")
func ParseFocusArea(raw string) (FocusArea, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return FocusArea{}, NewValidationError("focus area is required")
	}

	code := strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(trimmed, " ", "_"), "-", "_"))
	if _, ok := focusAreas[code]; ok {
		return FocusArea{code: code}, nil
	}

	// Try display-name match
	for c, name := range focusAreas {
		if strings.EqualFold(name, trimmed) {
			return FocusArea{code: c}, nil
		}
	}

	return FocusArea{}, NewValidationError("unknown focus area: %q", raw)
}

// FocusAreaCodes returns all canonical codes
func FocusAreaCodes() []string {
	codes := make([]string, 0, len(focusAreas))
	for c := range focusAreas {
		codes = append(codes, c)
	}
	return codes
}

func (f FocusArea) Code() string            { return f.code }
func (f FocusArea) DisplayName() string     { return focusAreas[f.code] }
func (f FocusArea) String() string          { return f.code }
func (f FocusArea) IsZero() bool            { return f.code == "" }
func (f FocusArea) Equals(o FocusArea) bool { return f.code == o.code }

// DifficultyLevel is a 1-4 difficulty tier with string synonyms
type DifficultyLevel struct {
	tier int
}

const (
	tierBeginner     = 1
	tierIntermediate = 2
	tierAdvanced     = 3
	tierExpert       = 4
)

var difficultyNames = map[int]string{
	tierBeginner:     "beginner",
	tierIntermediate: "intermediate",
	tierAdvanced:     "advanced",
	tierExpert:       "expert",
}

var difficultySynonyms = map[string]int{
	"beginner":     tierBeginner,
	"easy":         tierBeginner,
	"intermediate": tierIntermediate,
	"medium":       tierIntermediate,
	"advanced":     tierAdvanced,
	"hard":         tierAdvanced,
	"expert":       tierExpert,
}

// ParseDifficulty accepts a tier name, a synonym, or a numeric tier 1-4.
// The input may be a string, an int, or a numeric string.
func ParseDifficulty(raw any) (DifficultyLevel, error) {
	switch v := raw.(type) {
	case int:
		if v < tierBeginner || v > tierExpert {
			return DifficultyLevel{}, NewValidationError("difficulty tier out of range: %d", v)
		}
		return DifficultyLevel{tier: v}, nil
	case float64:
		return ParseDifficulty(int(v))
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(v))
		if trimmed == "" {
			return DifficultyLevel{}, NewValidationError("difficulty is required")
		}
		if tier, ok := difficultySynonyms[trimmed]; ok {
			return DifficultyLevel{tier: tier}, nil
		}
		if n, err := strconv.Atoi(trimmed); err == nil {
			return ParseDifficulty(n)
		}
		return DifficultyLevel{}, NewValidationError("unknown difficulty: %q", v)
	default:
		return DifficultyLevel{}, NewValidationError("unsupported difficulty type %T", raw)
	}
}

// DefaultDifficulty is the tier used when none is requested
func DefaultDifficulty() DifficultyLevel {
	return DifficultyLevel{tier: tierIntermediate}
}

func (d DifficultyLevel) NumericValue() int { return d.tier }
func (d DifficultyLevel) String() string    { return difficultyNames[d.tier] }
func (d DifficultyLevel) IsZero() bool      { return d.tier == 0 }

func (d DifficultyLevel) Equals(o DifficultyLevel) bool       { return d.tier == o.tier }
func (d DifficultyLevel) IsHigherThan(o DifficultyLevel) bool { return d.tier > o.tier }
func (d DifficultyLevel) IsLowerThan(o DifficultyLevel) bool  { return d.tier < o.tier }

// TraitScore is a bounded 0-100 personality trait score
type TraitScore struct {
	value int
}

// ParseTraitScore validates a 0-100 score
func ParseTraitScore(raw int) (TraitScore, error) {
	if raw < 0 || raw > 100 {
		return TraitScore{}, NewValidationError("trait score out of range: %d", raw)
	}
	return TraitScore{value: raw}, nil
}

func (t TraitScore) Value() int { return t.value }

func (t TraitScore) String() string { return fmt.Sprintf("%d", t.value) }

func (t TraitScore) Equals(o TraitScore) bool { return t.value == o.value }
