package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/snapquiz/snapquiz-backend/internal/quiz"
)

const (
	MinQuestions     = 3
	MaxQuestions     = 30
	DefaultQuestions = 5
)

// Client turns study material into a test graph ready for quiz.Store.CreateTest.
type Client interface {
	Generate(ctx context.Context, material string, questionCount int) (quiz.GeneratedTest, error)
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAI calls the chat completions endpoint with a static bearer token.
type OpenAI struct {
	http    *http.Client
	baseURL string
	model   string
}

func NewOpenAI(cfg Config) *OpenAI {
	h := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.APIKey,
		TokenType:   "Bearer",
	}))
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4.1-nano"
	}
	return &OpenAI{http: h, baseURL: base, model: model}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Store    bool          `json:"store"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// APIError carries a non-2xx upstream response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai: status %d: %s", e.Status, e.Body)
}

func (c *OpenAI) Generate(ctx context.Context, material string, questionCount int) (quiz.GeneratedTest, error) {
	if questionCount < MinQuestions || questionCount > MaxQuestions {
		return quiz.GeneratedTest{}, &quiz.ValidationError{
			Field: "questionCount",
			Msg:   fmt.Sprintf("must be between %d and %d", MinQuestions, MaxQuestions),
		}
	}
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(questionCount)},
			{Role: "user", Content: "Generate a test for the text delimited by three quotation marks:\n\"\"\"" + material + "\n\"\"\""},
		},
	})
	if err != nil {
		return quiz.GeneratedTest{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return quiz.GeneratedTest{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return quiz.GeneratedTest{}, fmt.Errorf("openai: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return quiz.GeneratedTest{}, &APIError{Status: res.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var cr chatResponse
	if err := json.NewDecoder(res.Body).Decode(&cr); err != nil {
		return quiz.GeneratedTest{}, fmt.Errorf("openai: decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return quiz.GeneratedTest{}, errors.New("openai: no choices returned")
	}
	return ParseTest(cr.Choices[0].Message.Content)
}

// ParseTest decodes the model's JSON answer, tolerating a fenced code block.
func ParseTest(content string) (quiz.GeneratedTest, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	var g quiz.GeneratedTest
	if err := json.Unmarshal([]byte(s), &g); err != nil {
		return quiz.GeneratedTest{}, fmt.Errorf("openai: model output is not a test: %w", err)
	}
	return g, nil
}

func systemPrompt(n int) string {
	return fmt.Sprintf(`You are an expert educator and test designer. I will give you a learning document, and you will create a test title and a set of multiple-choice questions based on its content. Whenever you are given any text, you are to generate %d high-quality multiple-choice questions based on the key concepts and facts in the document.
2. Each question should have:
   - The question text
   - Four answer choices
   - One or more correct answers (indicate which are correct)
   - A detailed explanation of the correct answer(s)
3. Format your response as JSON with the following structure:

{
  "title": "string"
  "questions": [
    {
      "question_text": "string",
      "options": [
        { "option_text": "string", "is_correct": true/false },
        ...
      ],
      "explanation": "string"
    },
    ...
  ]
}`, n)
}
