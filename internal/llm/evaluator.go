package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/terra-clan/challenge-engine/internal/models"
)

const evaluatorSystemPrompt = `You are an assessor for an AI-skills education platform.
You grade a learner's responses to a challenge.
Respond with a single JSON object matching exactly this shape:
{
  "score": number (0-100),
  "feedback": string,
  "strengths": [string],
  "areas_for_improvement": [string],
  "criteria": {criterion: number}
}
Feedback must be specific and constructive. Do not include any text outside the JSON object.`

// EvaluatorService grades submitted responses via the LLM
type EvaluatorService struct {
	client *Client
}

// NewEvaluatorService creates an evaluation service
func NewEvaluatorService(client *Client) *EvaluatorService {
	return &EvaluatorService{client: client}
}

// EvaluateResponses grades the responses against the challenge content
func (s *EvaluatorService) EvaluateResponses(
	ctx context.Context,
	ch *models.Challenge,
	responses []models.Response,
) (*models.Evaluation, error) {
	prompt := buildEvaluationPrompt(ch, responses)

	var eval models.Evaluation
	if err := s.client.completeJSON(ctx, evaluatorSystemPrompt, prompt, &eval); err != nil {
		return nil, fmt.Errorf("response evaluation failed: %w", err)
	}

	if eval.Feedback == "" {
		return nil, fmt.Errorf("evaluation returned empty feedback")
	}
	if eval.Score < 0 || eval.Score > 100 {
		return nil, fmt.Errorf("evaluation score %v out of range", eval.Score)
	}

	eval.ResponseID = uuid.New().String()
	return &eval, nil
}

func buildEvaluationPrompt(ch *models.Challenge, responses []models.Response) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Challenge: %s\n", ch.Title)
	fmt.Fprintf(&b, "Description: %s\n", ch.Description)
	if ch.Content.Instructions != "" {
		fmt.Fprintf(&b, "Instructions: %s\n", ch.Content.Instructions)
	}
	if ch.Content.Scenario != "" {
		fmt.Fprintf(&b, "Scenario: %s\n", ch.Content.Scenario)
	}
	fmt.Fprintf(&b, "Focus area: %s, difficulty: %s\n", ch.FocusArea.DisplayName(), ch.Difficulty)

	questionText := make(map[string]string, len(ch.Questions))
	for _, q := range ch.Questions {
		questionText[q.ID] = q.Text
	}

	b.WriteString("\nLearner responses:\n")
	for i, r := range responses {
		if q, ok := questionText[r.QuestionID]; ok {
			fmt.Fprintf(&b, "%d. Question: %s\n   Answer: %s\n", i+1, q, r.Content)
		} else {
			fmt.Fprintf(&b, "%d. Answer: %s\n", i+1, r.Content)
		}
	}

	b.WriteString("\nGrade these responses.")
	return b.String()
}
