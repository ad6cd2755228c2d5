package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/lessonreel-api/internal/audio"
	"github.com/maauso/lessonreel-api/internal/job/id"
	"github.com/maauso/lessonreel-api/internal/progress"
	"github.com/maauso/lessonreel-api/internal/script"
	"github.com/maauso/lessonreel-api/internal/storage"
	"github.com/maauso/lessonreel-api/internal/timing"
	"github.com/maauso/lessonreel-api/internal/video"
)

// ErrInstructionsRequired is returned by Start when no instructions are given.
var ErrInstructionsRequired = errors.New("instructions are required")

// DefaultMaxConcurrentJobs bounds how many pipelines run at once.
const DefaultMaxConcurrentJobs = 2

// Progress messages shown to pollers.
const (
	msgInit     = "Initializing video generation..."
	msgScript   = "Writing video script..."
	msgVideo    = "Creating final video..."
	msgUpload   = "Uploading video..."
	msgComplete = "Video ready!"
)

// ScriptPlanner produces the slide script.
type ScriptPlanner interface {
	Plan(ctx context.Context, req script.Request) script.Outcome
}

// ImageProducer produces one encoded still per slide, in slide order.
type ImageProducer interface {
	Produce(ctx context.Context, topic string, slides []script.Slide, rep progress.Reporter) [][]byte
}

// NarrationProducer produces one clip per slide; nil marks a slide without audio.
type NarrationProducer interface {
	Produce(ctx context.Context, slides []script.Slide, rep progress.Reporter) []*audio.Clip
}

// TrackComposer writes the composite narration track.
type TrackComposer interface {
	Compose(ctx context.Context, clips []*audio.Clip, durations []float64, dst string) (*audio.Track, error)
}

// VideoAssembler encodes and muxes the final video.
type VideoAssembler interface {
	Assemble(ctx context.Context, in video.Input) (*video.Result, error)
}

// Pipeline holds the collaborators a job runs through.
type Pipeline struct {
	Planner    ScriptPlanner
	Images     ImageProducer
	Narration  NarrationProducer
	Compositor TrackComposer
	Assembler  VideoAssembler
	Storage    storage.Storage
}

// StartInput is the request for one lesson video.
type StartInput struct {
	// Instructions describe the lesson; required.
	Instructions string
	// Reference is optional source material.
	Reference string
	// PushToS3 uploads the finished video when S3 is configured.
	PushToS3 bool
}

// VideoService starts lesson video jobs in the background and answers
// status queries from the shared repository.
type VideoService struct {
	repo     Repository
	pipeline Pipeline
	logger   *slog.Logger
	minSlide float64
	slots    chan struct{}
	wg       sync.WaitGroup
	now      func() time.Time
}

// ServiceOption configures a VideoService.
type ServiceOption func(*VideoService)

// WithServiceLogger sets the service logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *VideoService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMinSlideSeconds sets the shortest time a slide stays on screen.
func WithMinSlideSeconds(sec float64) ServiceOption {
	return func(s *VideoService) {
		if sec > 0 {
			s.minSlide = sec
		}
	}
}

// WithMaxConcurrentJobs bounds how many pipelines run at once.
func WithMaxConcurrentJobs(n int) ServiceOption {
	return func(s *VideoService) {
		if n > 0 {
			s.slots = make(chan struct{}, n)
		}
	}
}

// NewVideoService creates a VideoService storing jobs in repo.
func NewVideoService(repo Repository, pipeline Pipeline, opts ...ServiceOption) *VideoService {
	s := &VideoService{
		repo:     repo,
		pipeline: pipeline,
		logger:   slog.Default(),
		minSlide: timing.DefaultMinSlideSeconds,
		slots:    make(chan struct{}, DefaultMaxConcurrentJobs),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start saves a pending job and runs its pipeline in the background.
// The returned job is a snapshot; poll Get for updates.
func (s *VideoService) Start(ctx context.Context, in StartInput) (*Job, error) {
	in.Instructions = strings.TrimSpace(in.Instructions)
	if in.Instructions == "" {
		return nil, ErrInstructionsRequired
	}

	job := New()
	job.Instructions = in.Instructions
	job.PushToS3 = in.PushToS3
	job.Message = "Starting video generation..."

	if err := s.repo.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}

	s.logger.Info("video job created",
		slog.String("job_id", job.ID),
		slog.Bool("push_to_s3", in.PushToS3),
	)

	// The pipeline outlives the request that started it.
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.slots <- struct{}{}
		defer func() { <-s.slots }()
		_ = s.Run(bg, job, in)
	}()

	return job.Clone(), nil
}

// Get returns a snapshot of the job with the given ID.
func (s *VideoService) Get(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.FindByID(ctx, jobID)
}

// Wait blocks until every started job is finished or ctx is done.
func (s *VideoService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for jobs: %w", ctx.Err())
	}
}

// Run drives job through the pipeline and records the terminal state. The
// returned error is the reason the job ended in error, or nil.
func (s *VideoService) Run(ctx context.Context, job *Job, in StartInput) (err error) {
	logger := s.logger.With(slog.String("job_id", job.ID))

	if err := job.Start(); err != nil {
		return fmt.Errorf("start job: %w", err)
	}
	rep := &jobReporter{job: job, repo: s.repo, logger: logger}
	rep.Report(5, progress.StageInit, msgInit)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline panic",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("internal error: %v", r)
			s.fail(ctx, job, logger, err)
		}
	}()

	result, err := s.process(ctx, job, in, rep, logger)
	if err != nil {
		s.fail(ctx, job, logger, err)
		return err
	}

	if cerr := job.Complete(result, msgComplete); cerr != nil {
		return fmt.Errorf("complete job: %w", cerr)
	}
	s.save(ctx, job, logger)

	logger.Info("video job complete",
		slog.String("file", result.FileName),
		slog.Int("slides", result.TotalSlides),
		slog.Int("duration_sec", result.DurationSeconds),
		slog.Bool("has_audio", result.HasAudio),
	)
	return nil
}

func (s *VideoService) process(ctx context.Context, job *Job, in StartInput, rep progress.Reporter, logger *slog.Logger) (Result, error) {
	p := s.pipeline

	rep.Report(10, progress.StageScript, msgScript)
	outcome := p.Planner.Plan(ctx, script.Request{Instructions: in.Instructions, Reference: in.Reference})
	if outcome.Fallback {
		logger.Warn("using default script", slog.String("reason", outcome.Reason))
	}
	slides := outcome.Script.Slides

	var (
		images [][]byte
		clips  []*audio.Clip
	)
	// Producers never fail; the group only joins them.
	var g errgroup.Group
	g.Go(func() error {
		images = p.Images.Produce(ctx, in.Instructions, slides, rep)
		return nil
	})
	g.Go(func() error {
		clips = p.Narration.Produce(ctx, slides, rep)
		return nil
	})
	_ = g.Wait()

	durations := timing.Resolve(clips, s.minSlide)
	seconds := timing.Seconds(durations)

	audioPath := s.composeTrack(ctx, clips, seconds, logger)
	if audioPath != "" {
		defer func() { _ = os.Remove(audioPath) }()
	}

	rep.Report(80, progress.StageVideo, msgVideo)
	fileName := fmt.Sprintf("video_%s_%s.mp4", s.now().Format("20060102_150405"), id.Short())
	out, err := p.Assembler.Assemble(ctx, video.Input{
		Images:    images,
		Durations: seconds,
		AudioPath: audioPath,
		Output:    p.Storage.OutputPath(fileName),
	})
	if err != nil {
		logger.Error("video assembly failed", slog.String("error", err.Error()))
		reason := "video could not be built"
		var fatal *video.FatalAssemblyError
		if errors.As(err, &fatal) {
			reason = fatal.Reason()
		}
		return Result{}, fmt.Errorf("video assembly failed: %s", reason)
	}

	result := Result{
		FileName:        fileName,
		FilePath:        out.Path,
		TotalSlides:     len(slides),
		DurationSeconds: timing.TotalSeconds(durations),
		HasAudio:        out.HasAudio,
		ScriptFallback:  outcome.Fallback,
	}

	if job.PushToS3 {
		rep.Report(95, progress.StageUpload, msgUpload)
		url, err := s.upload(ctx, out.Path, fileName)
		if err != nil {
			logger.Warn("upload failed, keeping local video",
				slog.String("file", fileName),
				slog.String("error", err.Error()),
			)
		} else {
			result.VideoURL = url
		}
	}

	return result, nil
}

// composeTrack writes the composite narration and returns its path, or ""
// when no track could be written. The narration clips are removed either way.
func (s *VideoService) composeTrack(ctx context.Context, clips []*audio.Clip, seconds []float64, logger *slog.Logger) string {
	defer func() {
		if err := s.pipeline.Storage.CleanupTemp(context.WithoutCancel(ctx), audio.Paths(clips)); err != nil {
			logger.Warn("cleanup narration clips failed", slog.String("error", err.Error()))
		}
	}()

	dst := s.pipeline.Storage.TempPath("track.wav")
	if _, err := s.pipeline.Compositor.Compose(ctx, clips, seconds, dst); err != nil {
		logger.Warn("audio track failed, continuing without audio", slog.String("error", err.Error()))
		return ""
	}
	return dst
}

func (s *VideoService) upload(ctx context.Context, path, key string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - path is built by Storage.OutputPath
	if err != nil {
		return "", fmt.Errorf("open video: %w", err)
	}
	defer func() { _ = f.Close() }()

	return s.pipeline.Storage.UploadToS3(ctx, key, f)
}

func (s *VideoService) fail(ctx context.Context, job *Job, logger *slog.Logger, err error) {
	if ferr := job.Fail(err.Error()); ferr != nil {
		logger.Error("could not mark job as failed", slog.String("error", ferr.Error()))
		return
	}
	s.save(ctx, job, logger)
	logger.Error("video job failed", slog.String("error", err.Error()))
}

func (s *VideoService) save(ctx context.Context, job *Job, logger *slog.Logger) {
	if err := s.repo.Save(ctx, job); err != nil {
		logger.Error("save job failed", slog.String("error", err.Error()))
	}
}

// jobReporter projects progress updates onto a job and persists them.
type jobReporter struct {
	job    *Job
	repo   Repository
	logger *slog.Logger
}

// Report implements progress.Reporter.
func (r *jobReporter) Report(percent int, stage, message string) {
	if err := r.job.UpdateProgress(percent, stage, message); err != nil {
		return
	}
	if err := r.repo.Save(context.Background(), r.job); err != nil {
		r.logger.Warn("save progress failed", slog.String("error", err.Error()))
		return
	}
	r.logger.Debug("progress",
		slog.Int("percent", percent),
		slog.String("stage", stage),
		slog.String("message", message),
	)
}

var _ progress.Reporter = (*jobReporter)(nil)
