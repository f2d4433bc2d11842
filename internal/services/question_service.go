package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"trivia-api/internal/ai"
	"trivia-api/internal/apperr"
	"trivia-api/internal/config"
	"trivia-api/pkg/logging"
)

const answersPerQuestion = 4

var codeFence = regexp.MustCompile("```json\\n?|\\n?```")

// QuestionRequest represents a question generation request
type QuestionRequest struct {
	Categories []string `json:"categories"`
	Language   string   `json:"language"`
	Count      *int     `json:"count"` // defaults to 1
}

// Question is one generated trivia question
type Question struct {
	Question     string   `json:"question"`
	Answers      []string `json:"answers"`
	CorrectIndex int      `json:"correctIndex"`
	Category     string   `json:"category"`
}

// rawQuestion keeps correctIndex optional so a missing index is detected
type rawQuestion struct {
	Question     string   `json:"question"`
	Answers      []string `json:"answers"`
	CorrectIndex *int     `json:"correctIndex"`
	Category     string   `json:"category"`
}

// QuestionService generates trivia questions with a text model
type QuestionService struct {
	generator    ai.TextGenerator
	pricing      config.Pricing
	timeout      time.Duration
	maxQuestions int
}

// NewQuestionService creates a new question service
func NewQuestionService(generator ai.TextGenerator, cfg *config.Config) *QuestionService {
	return &QuestionService{
		generator:    generator,
		pricing:      cfg.Pricing,
		timeout:      cfg.QuestionTimeout,
		maxQuestions: cfg.MaxQuestions,
	}
}

// Generate returns exactly the requested number of questions.
func (s *QuestionService) Generate(ctx context.Context, req *QuestionRequest) ([]Question, error) {
	categories := make([]string, 0, len(req.Categories))
	for _, c := range req.Categories {
		if c = strings.TrimSpace(c); c != "" {
			categories = append(categories, c)
		}
	}
	language := strings.TrimSpace(req.Language)
	if len(categories) == 0 || language == "" {
		return nil, apperr.New(apperr.InvalidArgument,
			"The function must be called with 'categories' (non-empty array) and 'language' arguments.")
	}

	count := 1
	if req.Count != nil {
		count = *req.Count
	}
	if count < 1 || (s.maxQuestions > 0 && count > s.maxQuestions) {
		return nil, apperr.InvalidArgumentf("'count' must be between 1 and %d.", s.maxQuestions)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	gen, err := s.generator.Generate(ctx, buildQuestionPrompt(categories, language, count))
	if err != nil {
		logging.Error().Err(err).Strs("categories", categories).Str("language", language).Int("count", count).
			Msg("Error generating question")
		return nil, apperr.Wrap(apperr.Internal, "Failed to generate question", err)
	}

	if gen.Usage != nil {
		s.logCost(gen.Usage)
	}

	questions, err := parseQuestions(gen.Text, count)
	if err != nil {
		logging.Error().Err(err).Strs("categories", categories).Str("language", language).Int("count", count).
			Str("response", gen.Text).Msg("Error parsing generated questions")
		return nil, err
	}
	return questions, nil
}

// QuestionCost is the estimated USD cost of one generation
type QuestionCost struct {
	InputCost   float64
	OutputCost  float64
	CachingCost float64
	TotalCost   float64
}

// EstimateCost prices the usage counters. Output is whatever the total
// holds beyond prompt and cached tokens.
func EstimateCost(usage *ai.Usage, pricing config.Pricing) QuestionCost {
	inputCost := float64(usage.PromptTokens) / 1_000_000 * pricing.InputPer1M
	cachingCost := float64(usage.CachedTokens) / 1_000_000 * pricing.CachingPer1M
	outputCost := float64(usage.TotalTokens-usage.PromptTokens-usage.CachedTokens) / 1_000_000 * pricing.OutputPer1M
	return QuestionCost{
		InputCost:   inputCost,
		OutputCost:  outputCost,
		CachingCost: cachingCost,
		TotalCost:   inputCost + outputCost + cachingCost,
	}
}

func (s *QuestionService) logCost(usage *ai.Usage) {
	cost := EstimateCost(usage, s.pricing)
	logging.Info().
		Int64("inputTokens", usage.PromptTokens).
		Int64("outputTokens", usage.CandidatesTokens).
		Int64("cachedTokens", usage.CachedTokens).
		Int64("totalTokens", usage.TotalTokens).
		Str("inputCost", fmt.Sprintf("%.10f", cost.InputCost)).
		Str("outputCost", fmt.Sprintf("%.10f", cost.OutputCost)).
		Str("totalCost", fmt.Sprintf("%.10f", cost.TotalCost)).
		Str("currency", "USD").
		Msg("AI Cost Calculation")
}

func buildQuestionPrompt(categories []string, language string, count int) string {
	categoriesStr := strings.Join(categories, ", ")

	if count > 1 {
		return fmt.Sprintf(`
Generate %d trivia questions. For each question, randomly select one category from this list: [%s].
The questions should be in "%s".
Return a JSON array of objects, where each object has the following schema:
{
  "question": "The question text",
  "answers": ["Answer 1", "Answer 2", "Answer 3", "Answer 4"],
  "correctIndex": 0, // Index of the correct answer (0-3)
  "category": "The selected category"
}
Ensure there is exactly one correct answer and 3 incorrect ones for each question.
Make the questions challenging but fun.
RETURN ONLY THE RAW JSON. NO MARKDOWN.
`, count, categoriesStr, language)
	}

	return fmt.Sprintf(`
Generate a trivia question. Randomly select one category from this list: [%s].
The question should be in "%s".
Return a JSON object inside an array with the following schema:
{
  "question": "The question text",
  "answers": ["Answer 1", "Answer 2", "Answer 3", "Answer 4"],
  "correctIndex": 0, // Index of the correct answer (0-3)
  "category": "The selected category"
}
Ensure there is exactly one correct answer and 3 incorrect ones.
Make the question challenging but fun.
RETURN ONLY THE RAW JSON. NO MARKDOWN.
`, categoriesStr, language)
}

// parseQuestions strips code fences, decodes the model output and checks
// every question. A lone object counts as a one-element array.
func parseQuestions(text string, count int) ([]Question, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.New(apperr.Internal, "Empty response from AI")
	}

	clean := bytes.TrimSpace([]byte(codeFence.ReplaceAllString(text, "")))
	if len(clean) == 0 {
		return nil, apperr.New(apperr.Internal, "Empty response from AI")
	}

	var raw []rawQuestion
	if clean[0] == '{' {
		var single rawQuestion
		if err := json.Unmarshal(clean, &single); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "Failed to generate question", err)
		}
		raw = []rawQuestion{single}
	} else if err := json.Unmarshal(clean, &raw); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Failed to generate question", err)
	}

	if len(raw) < count {
		return nil, apperr.Wrap(apperr.Internal, "Failed to generate question",
			fmt.Errorf("model returned %d questions, %d requested", len(raw), count))
	}
	raw = raw[:count]

	questions := make([]Question, 0, count)
	for i, q := range raw {
		if err := validateQuestion(q); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "Failed to generate question", fmt.Errorf("question %d: %w", i, err))
		}
		questions = append(questions, Question{
			Question:     strings.TrimSpace(q.Question),
			Answers:      q.Answers,
			CorrectIndex: *q.CorrectIndex,
			Category:     q.Category,
		})
	}
	return questions, nil
}

func validateQuestion(q rawQuestion) error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("empty question text")
	}
	if len(q.Answers) != answersPerQuestion {
		return fmt.Errorf("expected %d answers, got %d", answersPerQuestion, len(q.Answers))
	}
	if q.CorrectIndex == nil {
		return fmt.Errorf("missing correctIndex")
	}
	if *q.CorrectIndex < 0 || *q.CorrectIndex >= answersPerQuestion {
		return fmt.Errorf("correctIndex %d out of range", *q.CorrectIndex)
	}
	return nil
}
