package models

// ChallengeTemplate is a reusable challenge blueprint loaded from the
// YAML catalog. Instantiation always stamps a fresh id and timestamps.
type ChallengeTemplate struct {
	ID            string           `yaml:"id" json:"id"`
	Title         string           `yaml:"title" json:"title"`
	Description   string           `yaml:"description" json:"description"`
	ChallengeType string           `yaml:"challenge_type" json:"challenge_type"`
	FormatType    string           `yaml:"format_type" json:"format_type"`
	Difficulty    string           `yaml:"difficulty" json:"difficulty"`
	FocusArea     string           `yaml:"focus_area" json:"focus_area"`
	Content       ChallengeContent `yaml:"content" json:"content"`
	Questions     []Question       `yaml:"questions" json:"questions"`
	Tags          []string         `yaml:"tags" json:"tags,omitempty"`
}
