package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/terra-clan/challenge-engine/internal/models"
)

const generatorSystemPrompt = `You are a learning challenge designer for an AI-skills education platform.
You produce one challenge at a time, tailored to the learner's profile.
Respond with a single JSON object matching exactly this shape:
{
  "title": string,
  "description": string,
  "content": {"instructions": string, "context": string, "scenario": string},
  "questions": [{"id": string, "text": string, "type": string, "options": [string]}],
  "evaluation_criteria": [string]
}
Do not include any text outside the JSON object.`

// GeneratorService produces personalized challenge content via the LLM
type GeneratorService struct {
	client *Client
}

// NewGeneratorService creates a generation service
func NewGeneratorService(client *Client) *GeneratorService {
	return &GeneratorService{client: client}
}

// GenerateChallenge asks the model for fresh challenge content shaped by
// the user profile, typed parameters, and recent challenge history
func (s *GeneratorService) GenerateChallenge(
	ctx context.Context,
	user *models.User,
	params models.GenerationParams,
	recent []*models.Challenge,
) (*models.GeneratedChallenge, error) {
	prompt := buildGenerationPrompt(user, params, recent)

	var generated models.GeneratedChallenge
	if err := s.client.completeJSON(ctx, generatorSystemPrompt, prompt, &generated); err != nil {
		return nil, fmt.Errorf("challenge generation failed: %w", err)
	}

	if generated.Title == "" {
		return nil, fmt.Errorf("challenge generation returned an empty title")
	}

	// Models sometimes omit question ids; fill them so responses can
	// reference their question
	for i := range generated.Questions {
		if generated.Questions[i].ID == "" {
			generated.Questions[i].ID = fmt.Sprintf("q-%d", i+1)
		}
	}

	generated.ResponseID = uuid.New().String()
	return &generated, nil
}

func buildGenerationPrompt(user *models.User, params models.GenerationParams, recent []*models.Challenge) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Learner email: %s\n", user.Email)
	if user.FullName != "" {
		fmt.Fprintf(&b, "Learner name: %s\n", user.FullName)
	}
	if len(user.TraitScores) > 0 {
		b.WriteString("Trait scores (0-100):\n")
		for trait, score := range user.TraitScores {
			fmt.Fprintf(&b, "  - %s: %d\n", trait, score)
		}
	}

	fmt.Fprintf(&b, "\nFocus area: %s\n", params.FocusArea.DisplayName())
	fmt.Fprintf(&b, "Difficulty: %s (tier %d of 4)\n", params.Difficulty, params.Difficulty.NumericValue())
	if params.ChallengeType != "" {
		fmt.Fprintf(&b, "Challenge type: %s\n", params.ChallengeType)
	}
	if params.FormatType != "" {
		fmt.Fprintf(&b, "Format: %s\n", params.FormatType)
	}

	if len(recent) > 0 {
		b.WriteString("\nRecent challenges (avoid repeating these topics):\n")
		for _, ch := range recent {
			fmt.Fprintf(&b, "  - %s (%s)\n", ch.Title, ch.FocusArea.DisplayName())
		}
	}

	b.WriteString("\nGenerate one new challenge.")
	return b.String()
}
