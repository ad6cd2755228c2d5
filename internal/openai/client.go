// Package openai implements the model gateway against OpenAI or any
// OpenAI-compatible server using the official openai-go SDK.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/maauso/lessonreel-api/internal/gateway"
)

const providerName = "openai"

// Default models and voice.
const (
	DefaultTextModel   = "gpt-4o-mini"
	DefaultImageModel  = "dall-e-3"
	DefaultSpeechModel = "tts-1"
	DefaultVoice       = "alloy"
)

// speechSampleRate is fixed by the API for the pcm response format.
const speechSampleRate = 24000

// ErrAPIKeyRequired is returned when no API key is provided.
var ErrAPIKeyRequired = errors.New("openai: API key is required")

// Compile-time check that Client implements gateway.Gateway.
var _ gateway.Gateway = (*Client)(nil)

// Client is the openai-go implementation of gateway.Gateway.
type Client struct {
	client *oai.Client

	textModel   string
	imageModel  string
	speechModel string
	voice       string
	temperature float64
}

type settings struct {
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	textModel   string
	imageModel  string
	speechModel string
	voice       string
}

// ClientOption configures a Client.
type ClientOption func(*settings)

// WithBaseURL points the client at an OpenAI-compatible server.
func WithBaseURL(url string) ClientOption {
	return func(s *settings) {
		s.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(s *settings) {
		s.httpClient = c
	}
}

// WithMaxRetries sets the SDK retry count for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(s *settings) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithModels overrides the text, image and speech models. Empty values keep the defaults.
func WithModels(text, image, speech string) ClientOption {
	return func(s *settings) {
		if text != "" {
			s.textModel = text
		}
		if image != "" {
			s.imageModel = image
		}
		if speech != "" {
			s.speechModel = speech
		}
	}
}

// WithVoice sets the speech voice.
func WithVoice(voice string) ClientOption {
	return func(s *settings) {
		if voice != "" {
			s.voice = voice
		}
	}
}

// NewClient creates a new OpenAI gateway client.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	s := settings{
		maxRetries:  2,
		textModel:   DefaultTextModel,
		imageModel:  DefaultImageModel,
		speechModel: DefaultSpeechModel,
		voice:       DefaultVoice,
	}
	for _, opt := range opts {
		opt(&s)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(s.maxRetries),
	}
	if s.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(s.baseURL))
	}
	if s.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(s.httpClient))
	}

	client := oai.NewClient(reqOpts...)

	return &Client{
		client:      &client,
		textModel:   s.textModel,
		imageModel:  s.imageModel,
		speechModel: s.speechModel,
		voice:       s.voice,
		temperature: 0.7,
	}, nil
}

// GenerateText runs a single-message chat completion.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: c.textModel,
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.UserMessage(prompt),
		},
		Temperature: oai.Float(c.temperature),
	})
	if err != nil {
		return "", gateway.NewModelError(providerName, gateway.OpText, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", gateway.NewModelError(providerName, gateway.OpText, gateway.ErrEmptyPayload)
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateImage requests one base64-encoded image.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	params := oai.ImageGenerateParams{
		Prompt: prompt,
		Model:  oai.ImageModel(c.imageModel),
		N:      oai.Int(1),
	}
	// gpt-image-1 always returns base64 and rejects response_format.
	if c.imageModel != oai.ImageModelGPTImage1 {
		params.ResponseFormat = oai.ImageGenerateParamsResponseFormatB64JSON
	}

	resp, err := c.client.Images.Generate(ctx, params)
	if err != nil {
		return nil, gateway.NewModelError(providerName, gateway.OpImage, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, gateway.NewModelError(providerName, gateway.OpImage, gateway.ErrEmptyPayload)
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, gateway.NewModelError(providerName, gateway.OpImage, fmt.Errorf("decode image: %w", err))
	}
	return data, nil
}

// GenerateSpeech requests raw pcm output (24 kHz, 16-bit, mono).
func (c *Client) GenerateSpeech(ctx context.Context, text string) (gateway.Speech, error) {
	resp, err := c.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Input:          text,
		Model:          oai.SpeechModel(c.speechModel),
		Voice:          oai.AudioSpeechNewParamsVoice(c.voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return gateway.Speech{}, gateway.NewModelError(providerName, gateway.OpSpeech, err)
	}
	defer func() { _ = resp.Body.Close() }()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return gateway.Speech{}, gateway.NewModelError(providerName, gateway.OpSpeech, fmt.Errorf("read audio: %w", err))
	}
	if len(pcm) == 0 {
		return gateway.Speech{}, gateway.NewModelError(providerName, gateway.OpSpeech, gateway.ErrEmptyPayload)
	}
	return gateway.Speech{PCM: pcm, SampleRate: speechSampleRate}, nil
}
