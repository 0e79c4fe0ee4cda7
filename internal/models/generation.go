package models

// GenerationParams are the typed inputs handed to the generation service
type GenerationParams struct {
	ChallengeType string
	FormatType    string
	Difficulty    DifficultyLevel
	FocusArea     FocusArea
}

// GeneratedChallenge is the content produced by the generation service,
// merged into a draft challenge by the coordinator
type GeneratedChallenge struct {
	Title              string           `json:"title"`
	Description        string           `json:"description"`
	Content            ChallengeContent `json:"content"`
	Questions          []Question       `json:"questions"`
	EvaluationCriteria []string         `json:"evaluation_criteria,omitempty"`
	ResponseID         string           `json:"response_id,omitempty"`
}
