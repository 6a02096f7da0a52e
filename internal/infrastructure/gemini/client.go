package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/realitycheck/backend/internal/domain"
	"github.com/realitycheck/backend/internal/logging"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

const (
	defaultModel      = "gemini-1.5-flash"
	defaultTimeout    = 30 * time.Second
	defaultRatePerMin = 60
)

// errPromptBlocked is returned when the model refused the prompt
var errPromptBlocked = errors.New("prompt blocked by the model")

// Config holds the settings for a Gemini client
type Config struct {
	APIKey            string
	Model             string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int
}

type generateFunc func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error)

// Client is a domain.TextGenerator backed by the Gemini API
type Client struct {
	genaiClient *genai.Client
	generate    generateFunc
	rateLimiter *rate.Limiter
	timeout     time.Duration
	maxRetries  int
	backoff     func(attempt int) time.Duration
	log         logrus.FieldLogger
}

// NewClient creates a Gemini client for the configured model.
// It returns domain.ErrMissingCredential when no API key is set.
func NewClient(ctx context.Context, cfg Config, log logrus.FieldLogger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, domain.ErrMissingCredential
	}

	gc, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultModel
	}
	model := gc.GenerativeModel(modelName)
	model.SetTemperature(0.2)
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockOnlyHigh},
	}

	c := newClient(func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error) {
		return model.GenerateContent(ctx, genai.Text(prompt))
	}, cfg, log)
	c.genaiClient = gc

	c.log.WithField("model", modelName).Info("Gemini client configured")
	return c, nil
}

func newClient(generate generateFunc, cfg Config, log logrus.FieldLogger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = defaultRatePerMin
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Client{
		generate:    generate,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 5),
		timeout:     timeout,
		maxRetries:  maxRetries,
		backoff:     exponentialBackoff,
		log:         logging.Component(log, "gemini"),
	}
}

// GenerateText sends prompt to the model and returns the concatenated text parts
// of the first candidate. Transport errors are retried with exponential backoff.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries+1; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter error: %w", err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.generate(attemptCtx, prompt)
		cancel()

		if err == nil {
			if reason, blocked := blockReason(resp); blocked {
				c.log.WithField("reason", reason).Warn("Gemini blocked the prompt")
				return "", fmt.Errorf("%w: %s", errPromptBlocked, reason)
			}
			// empty text is passed on; the caller falls back to its default analysis
			text := responseText(resp)
			c.log.WithFields(logrus.Fields{"attempt": attempt, "chars": len(text)}).Debug("received Gemini response")
			return text, nil
		}

		lastErr = err
		c.log.WithError(err).WithField("attempt", attempt).Warn("Gemini request failed")

		// Caller gave up; no point in retrying
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if attempt <= c.maxRetries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}
	}

	return "", lastErr
}

// Close releases the underlying gRPC connection
func (c *Client) Close() error {
	if c.genaiClient == nil {
		return nil
	}
	return c.genaiClient.Close()
}

// exponentialBackoff returns the wait before retrying after the given attempt
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// blockReason reports whether the prompt itself was rejected
func blockReason(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil || resp.PromptFeedback == nil {
		return "", false
	}
	if resp.PromptFeedback.BlockReason == genai.BlockReasonUnspecified {
		return "", false
	}
	return resp.PromptFeedback.BlockReason.String(), true
}

// responseText joins the text parts of the first candidate that has content
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		if sb.Len() > 0 {
			return sb.String()
		}
	}

	return ""
}
