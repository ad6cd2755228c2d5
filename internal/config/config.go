// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Model providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Static errors for configuration validation.
var (
	// ErrGoogleAPIKeyRequired is returned when the gemini provider is selected without GOOGLE_API_KEY.
	ErrGoogleAPIKeyRequired = errors.New("config: GOOGLE_API_KEY is required for the gemini provider")
	// ErrOpenAIAPIKeyRequired is returned when the openai provider is selected without OPENAI_API_KEY.
	ErrOpenAIAPIKeyRequired = errors.New("config: OPENAI_API_KEY is required for the openai provider")
	// ErrUnknownProvider is returned when MODEL_PROVIDER is not a supported value.
	ErrUnknownProvider = errors.New("config: MODEL_PROVIDER must be gemini or openai")
	// ErrInvalidSlideCount is returned when SLIDE_COUNT is not positive.
	ErrInvalidSlideCount = errors.New("config: SLIDE_COUNT must be between 1 and 30")
	// ErrInvalidFPS is returned when VIDEO_FPS is not positive.
	ErrInvalidFPS = errors.New("config: VIDEO_FPS must be positive")
	// ErrInvalidMinSlide is returned when MIN_SLIDE_SEC is not positive.
	ErrInvalidMinSlide = errors.New("config: MIN_SLIDE_SEC must be positive")
	// ErrInvalidDimensions is returned when VIDEO_WIDTH or VIDEO_HEIGHT is not a positive even number.
	ErrInvalidDimensions = errors.New("config: VIDEO_WIDTH and VIDEO_HEIGHT must be positive even numbers")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Model gateway settings
	ModelProvider     string  `env:"MODEL_PROVIDER, default=gemini" json:"model_provider"`
	GoogleAPIKey      string  `env:"GOOGLE_API_KEY" json:"-"` // Masked in JSON
	GeminiTextModel   string  `env:"GEMINI_TEXT_MODEL, default=gemini-2.0-flash-exp" json:"gemini_text_model"`
	GeminiImageModel  string  `env:"GEMINI_IMAGE_MODEL, default=gemini-2.5-flash-image" json:"gemini_image_model"`
	GeminiAudioModel  string  `env:"GEMINI_AUDIO_MODEL, default=gemini-2.5-flash-preview-tts" json:"gemini_audio_model"`
	GeminiVoice       string  `env:"GEMINI_VOICE, default=Kore" json:"gemini_voice"`
	OpenAIAPIKey      string  `env:"OPENAI_API_KEY" json:"-"` // Masked in JSON
	OpenAIBaseURL     string  `env:"OPENAI_BASE_URL" json:"openai_base_url,omitempty"`
	OpenAITextModel   string  `env:"OPENAI_TEXT_MODEL, default=gpt-4o-mini" json:"openai_text_model"`
	OpenAIImageModel  string  `env:"OPENAI_IMAGE_MODEL, default=dall-e-3" json:"openai_image_model"`
	OpenAISpeechModel string  `env:"OPENAI_SPEECH_MODEL, default=tts-1" json:"openai_speech_model"`
	OpenAIVoice       string  `env:"OPENAI_VOICE, default=alloy" json:"openai_voice"`
	GatewayMaxRetries int     `env:"GATEWAY_MAX_RETRIES, default=2" json:"gateway_max_retries"`
	TextRPS           float64 `env:"TEXT_RPS, default=0" json:"text_rps"`
	ImageRPS          float64 `env:"IMAGE_RPS, default=0" json:"image_rps"`
	SpeechRPS         float64 `env:"SPEECH_RPS, default=0" json:"speech_rps"`

	// Video settings
	SlideCount          int     `env:"SLIDE_COUNT, default=6" json:"slide_count"`
	VideoFPS            int     `env:"VIDEO_FPS, default=24" json:"video_fps"`
	MinSlideSec         float64 `env:"MIN_SLIDE_SEC, default=8" json:"min_slide_sec"`
	VideoWidth          int     `env:"VIDEO_WIDTH, default=1920" json:"video_width"`
	VideoHeight         int     `env:"VIDEO_HEIGHT, default=1080" json:"video_height"`
	MaxConcurrentImages int     `env:"MAX_CONCURRENT_IMAGES, default=0" json:"max_concurrent_images"` // 0 = one per slide
	MaxConcurrentJobs   int     `env:"MAX_CONCURRENT_JOBS, default=2" json:"max_concurrent_jobs"`
	MuxTimeoutSec       int     `env:"MUX_TIMEOUT_SEC, default=180" json:"mux_timeout_sec"`
	ReferenceMaxChars   int     `env:"REFERENCE_MAX_CHARS, default=1500" json:"reference_max_chars"`
	FFmpegPath          string  `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath         string  `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// Storage settings
	OutputDir string `env:"OUTPUT_DIR, default=/tmp/lessonreel/output" json:"output_dir"`
	TempDir   string `env:"TEMP_DIR, default=/tmp/lessonreel/tmp" json:"temp_dir"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// MuxTimeout returns the mux ceiling as a duration.
func (c *Config) MuxTimeout() time.Duration {
	return time.Duration(c.MuxTimeoutSec) * time.Second
}

// Load reads configuration from a .env file (if present) and the environment,
// then validates it.
func Load() (*Config, error) {
	// A missing .env is the normal case in containers.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.ModelProvider = strings.ToLower(strings.TrimSpace(cfg.ModelProvider))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and consistent.
func (c *Config) Validate() error {
	switch c.ModelProvider {
	case ProviderGemini:
		if c.GoogleAPIKey == "" {
			return ErrGoogleAPIKeyRequired
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return ErrOpenAIAPIKeyRequired
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.ModelProvider)
	}
	if c.SlideCount < 1 || c.SlideCount > 30 {
		return ErrInvalidSlideCount
	}
	if c.VideoFPS <= 0 {
		return ErrInvalidFPS
	}
	if c.MinSlideSec <= 0 {
		return ErrInvalidMinSlide
	}
	// libx264 with yuv420p needs even dimensions
	if c.VideoWidth <= 0 || c.VideoHeight <= 0 || c.VideoWidth%2 != 0 || c.VideoHeight%2 != 0 {
		return ErrInvalidDimensions
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, ModelProvider: %s, SlideCount: %d, VideoFPS: %d, MinSlideSec: %.1f, OutputDir: %s, TempDir: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.ModelProvider,
		c.SlideCount,
		c.VideoFPS,
		c.MinSlideSec,
		c.OutputDir,
		c.TempDir,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
