// Package bootstrap wires the lesson video pipeline from configuration.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/lessonreel-api/internal/audio"
	"github.com/maauso/lessonreel-api/internal/config"
	"github.com/maauso/lessonreel-api/internal/gateway"
	"github.com/maauso/lessonreel-api/internal/gemini"
	"github.com/maauso/lessonreel-api/internal/job"
	"github.com/maauso/lessonreel-api/internal/media"
	"github.com/maauso/lessonreel-api/internal/openai"
	"github.com/maauso/lessonreel-api/internal/script"
	"github.com/maauso/lessonreel-api/internal/slides"
	"github.com/maauso/lessonreel-api/internal/storage"
	"github.com/maauso/lessonreel-api/internal/video"
)

// Dependencies holds all initialized dependencies for the server and CLI.
type Dependencies struct {
	VideoService *job.VideoService
	Storage      storage.Storage
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	gw, err := initGateway(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("model gateway configured",
		slog.String("provider", cfg.ModelProvider),
		slog.Float64("text_rps", cfg.TextRPS),
		slog.Float64("image_rps", cfg.ImageRPS),
		slog.Float64("speech_rps", cfg.SpeechRPS),
	)

	processor := media.NewFFmpegProcessor(cfg.FFmpegPath, cfg.FFprobePath)

	pipeline := job.Pipeline{
		Planner: script.NewPlanner(gw,
			script.WithSlideCount(cfg.SlideCount),
			script.WithReferenceLimit(cfg.ReferenceMaxChars),
			script.WithLogger(logger),
		),
		Images: slides.NewImageProducer(gw,
			slides.WithFrameSize(cfg.VideoWidth, cfg.VideoHeight),
			slides.WithConcurrency(cfg.MaxConcurrentImages),
			slides.WithLogger(logger),
		),
		Narration:  slides.NewNarrationProducer(gw, store, slides.WithLogger(logger)),
		Compositor: audio.NewCompositor(store, audio.WithLogger(logger)),
		Assembler: video.NewAssembler(processor,
			video.WithFrameSize(cfg.VideoWidth, cfg.VideoHeight),
			video.WithFPS(cfg.VideoFPS),
			video.WithMuxTimeout(cfg.MuxTimeout()),
			video.WithTempPaths(store),
			video.WithLogger(logger),
		),
		Storage: store,
	}

	svc := job.NewVideoService(job.NewMemoryRepository(), pipeline,
		job.WithServiceLogger(logger),
		job.WithMinSlideSeconds(cfg.MinSlideSec),
		job.WithMaxConcurrentJobs(cfg.MaxConcurrentJobs),
	)

	return &Dependencies{
		VideoService: svc,
		Storage:      store,
	}, nil
}

// initGateway builds the configured model provider behind a rate limiter.
func initGateway(cfg *config.Config) (gateway.Gateway, error) {
	var (
		provider gateway.Gateway
		err      error
	)

	switch cfg.ModelProvider {
	case config.ProviderOpenAI:
		opts := []openai.ClientOption{
			openai.WithModels(cfg.OpenAITextModel, cfg.OpenAIImageModel, cfg.OpenAISpeechModel),
			openai.WithVoice(cfg.OpenAIVoice),
			openai.WithMaxRetries(cfg.GatewayMaxRetries),
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		provider, err = openai.NewClient(cfg.OpenAIAPIKey, opts...)
	default:
		provider, err = gemini.NewClient(cfg.GoogleAPIKey,
			gemini.WithModels(cfg.GeminiTextModel, cfg.GeminiImageModel, cfg.GeminiAudioModel),
			gemini.WithVoice(cfg.GeminiVoice),
			gemini.WithMaxRetries(cfg.GatewayMaxRetries),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.ModelProvider, err)
	}

	return gateway.NewRateLimited(provider, gateway.Limits{
		TextRPS:   cfg.TextRPS,
		ImageRPS:  cfg.ImageRPS,
		SpeechRPS: cfg.SpeechRPS,
	}), nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, cfg.OutputDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("output_dir", s3Store.OutputDir()),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir, cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", localStore.TempDir()),
		slog.String("output_dir", localStore.OutputDir()),
	)
	return localStore, nil
}
