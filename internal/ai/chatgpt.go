package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/example/lingoloop/internal/config"
	"github.com/example/lingoloop/internal/logger"
	"github.com/example/lingoloop/pkg/models"
)

// ErrNoAPIKey is returned when the client is built without credentials
var ErrNoAPIKey = errors.New("ai: OpenAI API key is not set")

// StoryRequest describes one passage to write
type StoryRequest struct {
	Language        string
	Level           models.ProficiencyLevel
	Topic           string
	TargetWordCount int
	Selection       models.WordSelection
	// Problems found in the previous attempt, if any
	Feedback []string
}

// ChatGPT represents a client for the OpenAI chat completions API
type ChatGPT struct {
	client  *openai.Client
	cfg     config.OpenAIConfig
	log     *logger.Logger
	backoff time.Duration
}

// New creates a new ChatGPT client
func New(cfg config.OpenAIConfig, log *logger.Logger) (*ChatGPT, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &ChatGPT{
		client:  openai.NewClientWithConfig(clientConfig),
		cfg:     cfg,
		log:     log,
		backoff: time.Second,
	}, nil
}

// GenerateStory asks the model for a passage built from the selected words
func (c *ChatGPT) GenerateStory(ctx context.Context, req StoryRequest) (string, error) {
	request := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    BuildMessages(req),
		Temperature: c.cfg.Temperature,
		MaxTokens:   maxTokens(req.TargetWordCount),
	}

	var text string
	err := c.doWithRetry(ctx, func() error {
		resp, err := c.client.CreateChatCompletion(ctx, request)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no response choices returned")
		}
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return fmt.Errorf("empty story returned")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate story: %w", err)
	}
	return text, nil
}

// BuildMessages renders the system and user prompts for a request
func BuildMessages(req StoryRequest) []openai.ChatCompletionMessage {
	lang := languageName(req.Language)

	system := fmt.Sprintf(
		"You write short, natural reading passages in %s for language learners. "+
			"Reply with the passage only: no title, no translation, no notes.",
		lang,
	)

	var b strings.Builder
	fmt.Fprintf(&b, "Write a passage of about %d words in %s.\n", req.TargetWordCount, lang)
	if req.Level != "" {
		fmt.Fprintf(&b, "The reader's level is %s (CEFR); keep grammar and other vocabulary at that level.\n", req.Level)
	}
	if req.Topic != "" {
		fmt.Fprintf(&b, "Topic: %s.\n", req.Topic)
	}
	if len(req.Selection.NewWords) > 0 {
		fmt.Fprintf(&b, "You must use each of these new words at least once: %s.\n", strings.Join(req.Selection.NewWords, ", "))
	}
	if len(req.Selection.ReviewWords) > 0 {
		fmt.Fprintf(&b, "Use these words the reader is reviewing: %s.\n", strings.Join(req.Selection.ReviewWords, ", "))
	}
	if len(req.Selection.KnownWords) > 0 {
		fmt.Fprintf(&b, "Build the rest mostly from words the reader already knows: %s.\n", strings.Join(req.Selection.KnownWords, ", "))
	}
	if len(req.Feedback) > 0 {
		fmt.Fprintf(&b, "Your previous attempt was rejected: %s. Fix this.\n", strings.Join(req.Feedback, "; "))
	}

	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: strings.TrimSpace(b.String())},
	}
}

// languageName gives the English name of a language code, or the code itself
func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}

// Roughly three tokens per word plus headroom; zero leaves the model default.
func maxTokens(words int) int {
	if words <= 0 {
		return 0
	}
	return words*3 + 100
}

// doWithRetry executes a function with exponential backoff retry
func (c *ChatGPT) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == c.cfg.MaxRetries-1 {
			break
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * c.backoff
		if c.log != nil {
			c.log.Debug("OpenAI request failed, retrying", "attempt", attempt+1, "wait", wait, "error", err)
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
