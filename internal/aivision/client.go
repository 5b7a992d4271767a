// Package aivision transcribes page images with a hosted multimodal model
// reached through an OpenAI-compatible chat completions endpoint (Gemini by
// default).
//
// Each client carries its own API key; there is no package-level key. Calls
// are rate limited per client and retried with backoff on transient errors.
package aivision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"pdftext/internal/extraction"
	"pdftext/internal/imageio"
	"pdftext/internal/logger"
)

// DefaultPrompt asks for a plain transcription.
const DefaultPrompt = "Extract all the text from this image. Return only the extracted text with no additional commentary."

// BackendName is the name the client reports to the extraction pipeline.
const BackendName = "ai"

var (
	// ErrMissingAPIKey is returned by New when no key is configured.
	ErrMissingAPIKey = errors.New("missing API key for the hosted vision model: set AI_API_KEY or GEMINI_API_KEY")

	// ErrNoChoices is returned when the model answers without any choice.
	ErrNoChoices = errors.New("no response choices from model")
)

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string

	// RequestsPerMinute caps the request rate of this client.
	RequestsPerMinute int

	// MaxRetries is the number of attempts per image.
	MaxRetries int

	// RetryDelay is the initial backoff between attempts.
	RetryDelay time.Duration

	// Temperature and TopP are nil for the defaults. An explicit zero
	// temperature is honored.
	Temperature *float32
	TopP        *float32
	MaxTokens   int
	Prompt      string

	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
}

// DefaultConfig returns the request parameters used for page transcription.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://generativelanguage.googleapis.com/v1beta/openai/",
		Model:             "gemini-2.0-flash",
		RequestsPerMinute: 60,
		MaxRetries:        3,
		RetryDelay:        time.Second,
		Temperature:       Float32(0.1),
		TopP:              Float32(0.95),
		MaxTokens:         8192,
		Prompt:            DefaultPrompt,
	}
}

// Client implements extraction.Backend with a hosted vision model.
type Client struct {
	client  *openai.Client
	cfg     Config
	limiter *rate.Limiter
	log     zerolog.Logger
}

// New creates a Client. Zero fields of cfg take their DefaultConfig values.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.Temperature == nil {
		cfg.Temperature = def.Temperature
	}
	if cfg.TopP == nil {
		cfg.TopP = def.TopP
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Prompt == "" {
		cfg.Prompt = def.Prompt
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}

	return &Client{
		client:  openai.NewClientWithConfig(oc),
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		log:     logger.WithComponent("aivision").With().Str("model", cfg.Model).Logger(),
	}, nil
}

// Name implements extraction.Backend.
func (c *Client) Name() string {
	return BackendName
}

// Extract implements extraction.Backend.
func (c *Client) Extract(ctx context.Context, img extraction.Image) extraction.Outcome {
	text, err := c.Transcribe(ctx, img)
	if err != nil {
		return extraction.FailedOutcome(extraction.NewBackendError(BackendName, img.Page, err))
	}
	return extraction.TextOutcome(text)
}

// Transcribe sends img to the model and returns its transcription.
func (c *Client) Transcribe(ctx context.Context, img extraction.Image) (string, error) {
	const op = "Transcribe"

	jpegData, err := imageio.ToJPEG(img.Data)
	if err != nil {
		return "", fmt.Errorf("%s: prepare image: %w", op, err)
	}
	req := c.request(jpegData)

	var text string
	err = retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.client.CreateChatCompletion(ctx, req)
			if err != nil {
				return err
			}
			if len(resp.Choices) == 0 {
				return ErrNoChoices
			}
			text = resp.Choices[0].Message.Content
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.MaxRetries)),
		retry.Delay(c.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn().
				Err(err).
				Int("page", img.Page).
				Uint("attempt", n+1).
				Int("max_retries", c.cfg.MaxRetries).
				Msg("Model request failed, retrying")
		}),
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	c.log.Debug().
		Int("page", img.Page).
		Int("chars", len(text)).
		Msg("Received model transcription")

	return strings.TrimSpace(text), nil
}

func (c *Client) request(jpegData []byte) openai.ChatCompletionRequest {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData)
	return openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: wireFloat(*c.cfg.Temperature),
		TopP:        wireFloat(*c.cfg.TopP),
		MaxTokens:   c.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: c.cfg.Prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	}
}

// Float32 returns a pointer to v for the optional Config fields.
func Float32(v float32) *float32 { return &v }

// wireFloat keeps an explicit zero on the wire; go-openai omits zero values.
func wireFloat(v float32) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return v
}

// isRetryable reports whether a failed request is worth repeating: rate
// limits, server errors and transport failures are; client errors and
// context ends are not.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}
