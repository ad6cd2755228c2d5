// Package gemini implements the model gateway on top of the Google
// Generative Language REST API (models/{model}:generateContent).
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/maauso/lessonreel-api/internal/gateway"
)

const providerName = "gemini"

// Default models and voice.
const (
	DefaultTextModel   = "gemini-2.0-flash-exp"
	DefaultImageModel  = "gemini-2.5-flash-image"
	DefaultSpeechModel = "gemini-2.5-flash-preview-tts"
	DefaultVoice       = "Kore"
)

// Static errors for Gemini client operations.
var (
	// ErrAPIKeyRequired is returned when no API key is provided.
	ErrAPIKeyRequired = errors.New("gemini: API key is required")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("gemini: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("gemini: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("gemini: request failed")
	// ErrBlocked is returned when the prompt was blocked by safety filters.
	ErrBlocked = errors.New("gemini: prompt blocked")
)

// Compile-time check that Client implements gateway.Gateway.
var _ gateway.Gateway = (*Client)(nil)

// Client is the HTTP implementation of gateway.Gateway for Gemini models.
type Client struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration

	textModel   string
	imageModel  string
	speechModel string
	voice       string
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(gc *Client) {
		gc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(url string) ClientOption {
	return func(gc *Client) {
		gc.baseURL = strings.TrimRight(url, "/")
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(gc *Client) {
		if n >= 0 {
			gc.maxRetries = n
		}
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(gc *Client) {
		gc.baseBackoff = d
	}
}

// WithModels overrides the text, image and speech models. Empty values keep the defaults.
func WithModels(text, image, speech string) ClientOption {
	return func(gc *Client) {
		if text != "" {
			gc.textModel = text
		}
		if image != "" {
			gc.imageModel = image
		}
		if speech != "" {
			gc.speechModel = speech
		}
	}
}

// WithVoice sets the prebuilt voice used for speech synthesis.
func WithVoice(voice string) ClientOption {
	return func(gc *Client) {
		if voice != "" {
			gc.voice = voice
		}
	}
}

// NewClient creates a new Gemini client.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	c := &Client{
		apiKey:      apiKey,
		baseURL:     "https://generativelanguage.googleapis.com/v1beta",
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		maxRetries:  2,
		baseBackoff: 1 * time.Second,
		textModel:   DefaultTextModel,
		imageModel:  DefaultImageModel,
		speechModel: DefaultSpeechModel,
		voice:       DefaultVoice,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// GenerateText asks the text model for a JSON response and returns its text parts joined.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	temperature := 0.7
	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			Temperature:      &temperature,
			MaxOutputTokens:  8192,
			ResponseMimeType: "application/json",
		},
	}

	resp, err := c.generate(ctx, c.textModel, req)
	if err != nil {
		return "", gateway.NewModelError(providerName, gateway.OpText, err)
	}

	var sb strings.Builder
	for _, p := range resp.parts() {
		sb.WriteString(p.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", gateway.NewModelError(providerName, gateway.OpText, gateway.ErrEmptyPayload)
	}
	return sb.String(), nil
}

// GenerateImage returns the first inline image of the response.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"IMAGE"},
		},
	}

	resp, err := c.generate(ctx, c.imageModel, req)
	if err != nil {
		return nil, gateway.NewModelError(providerName, gateway.OpImage, err)
	}

	for _, p := range resp.parts() {
		if p.InlineData == nil || !strings.HasPrefix(p.InlineData.MimeType, "image/") {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
		if err != nil {
			return nil, gateway.NewModelError(providerName, gateway.OpImage, fmt.Errorf("decode image: %w", err))
		}
		if len(data) > 0 {
			return data, nil
		}
	}
	return nil, gateway.NewModelError(providerName, gateway.OpImage, gateway.ErrEmptyPayload)
}

// GenerateSpeech synthesizes text with the configured prebuilt voice.
func (c *Client) GenerateSpeech(ctx context.Context, text string) (gateway.Speech, error) {
	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: text}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: c.voice},
				},
			},
		},
	}

	resp, err := c.generate(ctx, c.speechModel, req)
	if err != nil {
		return gateway.Speech{}, gateway.NewModelError(providerName, gateway.OpSpeech, err)
	}

	for _, p := range resp.parts() {
		if p.InlineData == nil || !strings.HasPrefix(p.InlineData.MimeType, "audio/") {
			continue
		}
		pcm, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
		if err != nil {
			return gateway.Speech{}, gateway.NewModelError(providerName, gateway.OpSpeech, fmt.Errorf("decode audio: %w", err))
		}
		if len(pcm) == 0 {
			continue
		}
		return gateway.Speech{PCM: pcm, SampleRate: parseSampleRate(p.InlineData.MimeType)}, nil
	}
	return gateway.Speech{}, gateway.NewModelError(providerName, gateway.OpSpeech, gateway.ErrEmptyPayload)
}

// parseSampleRate extracts rate=N from a mime type such as
// "audio/L16;codec=pcm;rate=24000".
func parseSampleRate(mimeType string) int {
	for _, param := range strings.Split(mimeType, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(key, "rate") {
			continue
		}
		if rate, err := strconv.Atoi(value); err == nil && rate > 0 {
			return rate
		}
	}
	return gateway.DefaultSampleRate
}

// generate posts a generateContent request for model.
func (c *Client) generate(ctx context.Context, model string, req generateRequest) (*generateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)

	var resp generateResponse
	if err := c.doRequestWithRetry(ctx, url, body, &resp); err != nil {
		return nil, err
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, gateway.ErrEmptyPayload
	}
	return &resp, nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (c *Client) doRequestWithRetry(ctx context.Context, url string, body []byte, result any) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("gemini: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.doRequest(ctx, url, body, result)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("gemini: max retries exceeded: %w", lastErr)
}

// doRequest performs a single POST request.
func (c *Client) doRequest(ctx context.Context, url string, body []byte, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gemini: create request: %w", err)
	}

	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("gemini: request failed: %w", err)
		}
		return &retryableError{err: fmt.Errorf("gemini: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("gemini: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, truncate(respBody))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, truncate(respBody))}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, truncate(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("gemini: unmarshal response: %w", err)
	}
	return nil
}

// truncate keeps error bodies readable in logs.
func truncate(b []byte) string {
	const limit = 512
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
