package job

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/lessonreel-api/internal/audio"
	"github.com/maauso/lessonreel-api/internal/gateway"
	"github.com/maauso/lessonreel-api/internal/media"
	"github.com/maauso/lessonreel-api/internal/media/mediatest"
	"github.com/maauso/lessonreel-api/internal/progress"
	"github.com/maauso/lessonreel-api/internal/script"
	"github.com/maauso/lessonreel-api/internal/slides"
	"github.com/maauso/lessonreel-api/internal/storage"
	"github.com/maauso/lessonreel-api/internal/video"
)

const (
	testRate = 8000
	testFPS  = 4
	testMin  = 2.0
)

var slidePalette = []color.RGBA{
	{R: 230, G: 0, B: 0, A: 255},
	{R: 0, G: 230, B: 0, A: 255},
	{R: 0, G: 0, B: 230, A: 255},
	{R: 230, G: 230, B: 0, A: 255},
	{R: 0, G: 230, B: 230, A: 255},
	{R: 230, G: 0, B: 230, A: 255},
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func solidPNG(c color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 16, 9))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func scriptJSON(n int) string {
	type slide struct {
		Number    int    `json:"number"`
		Title     string `json:"title"`
		Points    string `json:"points"`
		Visual    string `json:"visual"`
		Narration string `json:"narration"`
	}
	s := struct {
		Title  string  `json:"title"`
		Slides []slide `json:"slides"`
	}{Title: "Plants"}
	for i := 1; i <= n; i++ {
		s.Slides = append(s.Slides, slide{
			Number:    i,
			Title:     fmt.Sprintf("Title %d", i),
			Points:    "points",
			Visual:    "visual",
			Narration: fmt.Sprintf("Narration for slide number %d.", i),
		})
	}
	b, _ := json.Marshal(s)
	return "```json\n" + string(b) + "\n```"
}

// fakeGateway answers every model call deterministically, per slide.
type fakeGateway struct {
	textErr       error
	imageFail     map[int]bool
	corruptImage  map[int]bool
	speechFail    map[int]bool
	speechSeconds map[int]float64
}

func (g *fakeGateway) GenerateText(context.Context, string) (string, error) {
	if g.textErr != nil {
		return "", g.textErr
	}
	return scriptJSON(script.DefaultSlideCount), nil
}

func (g *fakeGateway) GenerateImage(_ context.Context, prompt string) ([]byte, error) {
	n := 0
	for _, line := range strings.Split(prompt, "\n") {
		if _, err := fmt.Sscanf(line, "Slide %d:", &n); err == nil {
			break
		}
	}
	switch {
	case g.imageFail[n]:
		return nil, gateway.NewModelError("fake", gateway.OpImage, errors.New("quota exceeded"))
	case g.corruptImage[n]:
		return []byte("definitely not an image"), nil
	}
	return solidPNG(slidePalette[(n-1)%len(slidePalette)]), nil
}

func (g *fakeGateway) GenerateSpeech(_ context.Context, text string) (gateway.Speech, error) {
	n := 0
	_, _ = fmt.Sscanf(text, "Narration for slide number %d", &n)
	if g.speechFail[n] {
		return gateway.Speech{}, gateway.NewModelError("fake", gateway.OpSpeech, errors.New("no audio"))
	}
	sec := 1.0
	if s, ok := g.speechSeconds[n]; ok {
		sec = s
	}
	samples := int(sec * testRate)
	pcm := make([]byte, samples*audio.BytesPerSample)
	for i := 0; i < samples; i++ {
		v := int16(1000)
		if i%2 == 1 {
			v = -1000
		}
		pcm[2*i] = byte(uint16(v))
		pcm[2*i+1] = byte(uint16(v) >> 8)
	}
	return gateway.Speech{PCM: pcm, SampleRate: testRate}, nil
}

// recordingRepo remembers the progress of every saved snapshot.
type recordingRepo struct {
	*MemoryRepository
	mu       sync.Mutex
	progress []int
	stages   []string
}

func newRecordingRepo() *recordingRepo {
	return &recordingRepo{MemoryRepository: NewMemoryRepository()}
}

func (r *recordingRepo) Save(ctx context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := job.Clone()
	r.progress = append(r.progress, snap.Progress)
	r.stages = append(r.stages, snap.Stage)
	return r.MemoryRepository.Save(ctx, job)
}

func (r *recordingRepo) snapshot() ([]int, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.progress...), append([]string(nil), r.stages...)
}

// uploadStorage accepts uploads instead of rejecting them.
type uploadStorage struct {
	*storage.LocalStorage
	uploaded map[string]int
	err      error
}

func (s *uploadStorage) UploadToS3(_ context.Context, key string, data io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	s.uploaded[key] = len(b)
	return "https://bucket.s3.example.com/" + key, nil
}

type harness struct {
	svc   *VideoService
	repo  *recordingRepo
	store *storage.LocalStorage
	proc  *mediatest.Processor
}

func newHarness(t *testing.T, gen *fakeGateway, proc *mediatest.Processor, wrap func(*storage.LocalStorage) storage.Storage) *harness {
	t.Helper()

	dir := t.TempDir()
	local, err := storage.NewLocalStorage(filepath.Join(dir, "tmp"), filepath.Join(dir, "out"))
	require.NoError(t, err)

	var store storage.Storage = local
	if wrap != nil {
		store = wrap(local)
	}

	logger := quietLogger()
	repo := newRecordingRepo()
	svc := NewVideoService(repo, Pipeline{
		Planner:    script.NewPlanner(gen, script.WithLogger(logger)),
		Images:     slides.NewImageProducer(gen, slides.WithFrameSize(320, 180), slides.WithLogger(logger)),
		Narration:  slides.NewNarrationProducer(gen, store, slides.WithLogger(logger)),
		Compositor: audio.NewCompositor(store, audio.WithLogger(logger)),
		Assembler:  video.NewAssembler(proc,
			video.WithFrameSize(32, 18),
			video.WithFPS(testFPS),
			video.WithTempPaths(store),
			video.WithLogger(logger),
		),
		Storage:    store,
	}, WithServiceLogger(logger), WithMinSlideSeconds(testMin))

	return &harness{svc: svc, repo: repo, store: local, proc: proc}
}

// run starts a job and waits for it to finish.
func (h *harness) run(t *testing.T, in StartInput) *Job {
	t.Helper()

	started, err := h.svc.Start(context.Background(), in)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, h.svc.Wait(ctx))

	job, err := h.svc.Get(context.Background(), started.ID)
	require.NoError(t, err)
	return job
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// slideOfFrames maps every encoded frame to the palette entry it shows.
func slideOfFrames(pixels []color.RGBA, palette []color.RGBA) []int {
	out := make([]int, len(pixels))
	for i, px := range pixels {
		out[i] = mediatest.Nearest(px, palette)
	}
	return out
}

func TestVideoService_Start_RequiresInstructions(t *testing.T) {
	h := newHarness(t, &fakeGateway{}, &mediatest.Processor{}, nil)

	_, err := h.svc.Start(context.Background(), StartInput{Instructions: "   "})

	assert.ErrorIs(t, err, ErrInstructionsRequired)
	assert.Zero(t, h.repo.Len())
}

func TestVideoService_Start_ReturnsPendingJob(t *testing.T) {
	h := newHarness(t, &fakeGateway{}, &mediatest.Processor{}, nil)

	job, err := h.svc.Start(context.Background(), StartInput{Instructions: "Plants", PushToS3: true})
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, StatusPending, job.Status)
	assert.True(t, job.PushToS3)
	require.NoError(t, h.svc.Wait(context.Background()))
}

func TestVideoService_Get_NotFound(t *testing.T) {
	h := newHarness(t, &fakeGateway{}, &mediatest.Processor{}, nil)

	_, err := h.svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestVideoService_Start_SurvivesRequestCancel(t *testing.T) {
	h := newHarness(t, &fakeGateway{}, &mediatest.Processor{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	started, err := h.svc.Start(ctx, StartInput{Instructions: "Plants"})
	require.NoError(t, err)
	cancel()

	require.NoError(t, h.svc.Wait(context.Background()))
	job, err := h.svc.Get(context.Background(), started.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, job.Status)
}

func TestVideoService_AllSlidesSucceed(t *testing.T) {
	gen := &fakeGateway{speechSeconds: map[int]float64{1: 3, 4: 2.5}}
	h := newHarness(t, gen, &mediatest.Processor{}, nil)

	job := h.run(t, StartInput{Instructions: "Photosynthesis for 10 year olds"})

	require.Equal(t, StatusComplete, job.Status, job.Error)
	require.NotNil(t, job.Result)
	res := job.Result
	assert.Equal(t, 6, res.TotalSlides)
	assert.Equal(t, 13, res.DurationSeconds)
	assert.True(t, res.HasAudio)
	assert.False(t, res.ScriptFallback)
	assert.Empty(t, res.VideoURL)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, progress.StageComplete, job.Stage)
	assert.Equal(t, "Video ready!", job.Message)

	assert.Regexp(t, `^video_\d{8}_\d{6}_[0-9a-f]{8}\.mp4$`, res.FileName)
	assert.Equal(t, []string{res.FileName}, dirEntries(t, h.store.OutputDir()))
	assert.Empty(t, dirEntries(t, h.store.TempDir()), "clips and track are removed")

	durations := []float64{3, 2, 2, 2.5, 2, 2}
	plan := video.Plan(durations, testFPS)
	frames := slideOfFrames(h.proc.Pixels(), slidePalette)
	require.Len(t, frames, plan.Total)
	for i, got := range frames {
		require.Equal(t, plan.SlideAt(i)-1, got, "frame %d", i)
	}
	assert.Equal(t, 1, h.proc.MuxCalls())
	for _, path := range h.proc.Written() {
		assert.Equal(t, h.store.TempDir(), filepath.Dir(path), "intermediate video stays out of the output dir")
	}
}

// tempSpy records the temp directory contents when assembly starts.
type tempSpy struct {
	next VideoAssembler
	dir  string
	seen []string
}

func (a *tempSpy) Assemble(ctx context.Context, in video.Input) (*video.Result, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		a.seen = append(a.seen, e.Name())
	}
	return a.next.Assemble(ctx, in)
}

type failingComposer struct{}

func (failingComposer) Compose(context.Context, []*audio.Clip, []float64, string) (*audio.Track, error) {
	return nil, errors.New("disk full")
}

func TestVideoService_ClipsRemovedBeforeAssembly(t *testing.T) {
	h := newHarness(t, &fakeGateway{}, &mediatest.Processor{}, nil)
	spy := &tempSpy{next: h.svc.pipeline.Assembler, dir: h.store.TempDir()}
	h.svc.pipeline.Assembler = spy

	job := h.run(t, StartInput{Instructions: "Plants"})

	require.Equal(t, StatusComplete, job.Status, job.Error)
	require.Len(t, spy.seen, 1, "only the composite track remains")
	assert.True(t, strings.HasPrefix(spy.seen[0], "track_"), spy.seen[0])
}

func TestVideoService_ClipsRemovedWhenComposeFails(t *testing.T) {
	h := newHarness(t, &fakeGateway{}, &mediatest.Processor{}, nil)
	spy := &tempSpy{next: h.svc.pipeline.Assembler, dir: h.store.TempDir()}
	h.svc.pipeline.Assembler = spy
	h.svc.pipeline.Compositor = failingComposer{}

	job := h.run(t, StartInput{Instructions: "Plants"})

	require.Equal(t, StatusComplete, job.Status, job.Error)
	assert.False(t, job.Result.HasAudio)
	assert.Empty(t, spy.seen)
	assert.Zero(t, h.proc.MuxCalls())
}

func TestVideoService_EncodeFailureShowsPlainError(t *testing.T) {
	h := newHarness(t, &fakeGateway{}, &mediatest.Processor{}, nil)
	outPath := filepath.Join(h.store.OutputDir(), "video_20260101_000000_abcd1234_video.mp4")
	h.proc.EncodeErr = &media.FFmpegError{
		Args:   []string{"-y", "-f", "rawvideo", "-pix_fmt", "rgb24", "-i", "pipe:0", outPath},
		Stderr: "Unknown encoder 'libx264'\n",
		Err:    errors.New("exit status 1"),
	}

	job := h.run(t, StartInput{Instructions: "Plants"})

	require.Equal(t, StatusError, job.Status)
	assert.Equal(t, "video assembly failed: could not encode video", job.Error)
	assert.NotContains(t, job.Error, "\n")
	assert.NotContains(t, job.Error, "args:")
	assert.NotContains(t, job.Error, "libx264")
	assert.NotContains(t, job.Error, h.store.OutputDir())
	assert.Equal(t, job.Error, job.Message)
	assert.Empty(t, dirEntries(t, h.store.OutputDir()))
	assert.Empty(t, dirEntries(t, h.store.TempDir()))
}

func TestVideoService_ProgressIsMonotonic(t *testing.T) {
	h := newHarness(t, &fakeGateway{}, &mediatest.Processor{}, nil)

	h.run(t, StartInput{Instructions: "Plants"})

	percents, stages := h.repo.snapshot()
	require.NotEmpty(t, percents)
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1], "save %d", i)
	}
	assert.Equal(t, 100, percents[len(percents)-1])
	assert.Contains(t, stages, progress.StageInit)
	assert.Contains(t, stages, progress.StageScript)
	assert.Contains(t, stages, progress.StageVideo)
	assert.NotContains(t, stages, progress.StageUpload)
}

func TestVideoService_SpeechFailureLeavesSilence(t *testing.T) {
	gen := &fakeGateway{speechFail: map[int]bool{3: true}}
	h := newHarness(t, gen, &mediatest.Processor{}, nil)

	job := h.run(t, StartInput{Instructions: "Plants"})

	require.Equal(t, StatusComplete, job.Status, job.Error)
	assert.True(t, job.Result.HasAudio)
	assert.Equal(t, 6*int(testMin), job.Result.DurationSeconds)
	assert.Len(t, h.proc.Pixels(), 6*int(testMin)*testFPS)
}

func TestVideoService_ImageFailureUsesPlaceholder(t *testing.T) {
	gen := &fakeGateway{imageFail: map[int]bool{1: true}}
	h := newHarness(t, gen, &mediatest.Processor{}, nil)

	job := h.run(t, StartInput{Instructions: "Plants"})

	require.Equal(t, StatusComplete, job.Status, job.Error)

	palette := append(append([]color.RGBA(nil), slidePalette...), media.PlaceholderColor(1))
	frames := slideOfFrames(h.proc.Pixels(), palette)
	perSlide := int(testMin) * testFPS
	require.Len(t, frames, 6*perSlide)
	for i := 0; i < perSlide; i++ {
		assert.Equal(t, len(slidePalette), frames[i], "frame %d shows the placeholder", i)
	}
	assert.Equal(t, 1, frames[perSlide])
}

func TestVideoService_MuxFailureDeliversSilentVideo(t *testing.T) {
	proc := &mediatest.Processor{MuxErr: errors.New("aac encoder not found")}
	h := newHarness(t, &fakeGateway{}, proc, nil)

	job := h.run(t, StartInput{Instructions: "Plants"})

	require.Equal(t, StatusComplete, job.Status, job.Error)
	assert.False(t, job.Result.HasAudio)
	assert.Equal(t, []string{job.Result.FileName}, dirEntries(t, h.store.OutputDir()))
	data, err := os.ReadFile(job.Result.FilePath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "audio")
}

func TestVideoService_CorruptImageFailsJob(t *testing.T) {
	gen := &fakeGateway{corruptImage: map[int]bool{2: true}}
	h := newHarness(t, gen, &mediatest.Processor{}, nil)

	job := h.run(t, StartInput{Instructions: "Plants"})

	require.Equal(t, StatusError, job.Status)
	assert.Equal(t, "video assembly failed: slide 2 image could not be decoded", job.Error)
	assert.Equal(t, progress.StageError, job.Stage)
	assert.Nil(t, job.Result)
	assert.Empty(t, dirEntries(t, h.store.OutputDir()), "no partial video")
	assert.Empty(t, dirEntries(t, h.store.TempDir()))
}

func TestVideoService_ScriptFallback(t *testing.T) {
	gen := &fakeGateway{textErr: gateway.NewModelError("fake", gateway.OpText, errors.New("timeout"))}
	h := newHarness(t, gen, &mediatest.Processor{}, nil)

	job := h.run(t, StartInput{Instructions: "Volcanoes"})

	require.Equal(t, StatusComplete, job.Status, job.Error)
	assert.True(t, job.Result.ScriptFallback)
	assert.Equal(t, script.DefaultSlideCount, job.Result.TotalSlides)
}

func TestVideoService_UploadsWhenRequested(t *testing.T) {
	var up *uploadStorage
	h := newHarness(t, &fakeGateway{}, &mediatest.Processor{}, func(l *storage.LocalStorage) storage.Storage {
		up = &uploadStorage{LocalStorage: l, uploaded: map[string]int{}}
		return up
	})

	job := h.run(t, StartInput{Instructions: "Plants", PushToS3: true})

	require.Equal(t, StatusComplete, job.Status, job.Error)
	assert.Equal(t, "https://bucket.s3.example.com/"+job.Result.FileName, job.Result.VideoURL)
	assert.Positive(t, up.uploaded[job.Result.FileName])

	_, stages := h.repo.snapshot()
	assert.Contains(t, stages, progress.StageUpload)
}

func TestVideoService_UploadFailureKeepsLocalVideo(t *testing.T) {
	h := newHarness(t, &fakeGateway{}, &mediatest.Processor{}, func(l *storage.LocalStorage) storage.Storage {
		return &uploadStorage{LocalStorage: l, err: errors.New("access denied")}
	})

	job := h.run(t, StartInput{Instructions: "Plants", PushToS3: true})

	require.Equal(t, StatusComplete, job.Status, job.Error)
	assert.Empty(t, job.Result.VideoURL)
	_, err := os.Stat(job.Result.FilePath)
	assert.NoError(t, err)
}

type panicPlanner struct{}

func (panicPlanner) Plan(context.Context, script.Request) script.Outcome {
	panic("boom")
}

func TestVideoService_Run_RecoversPanic(t *testing.T) {
	h := newHarness(t, &fakeGateway{}, &mediatest.Processor{}, nil)
	h.svc.pipeline.Planner = panicPlanner{}

	job := NewWithID("panicky")
	err := h.svc.Run(context.Background(), job, StartInput{Instructions: "Plants"})

	require.Error(t, err)
	assert.Equal(t, StatusError, job.GetStatus())
	saved, ferr := h.repo.FindByID(context.Background(), "panicky")
	require.NoError(t, ferr)
	assert.Equal(t, "internal error: boom", saved.Error)
}

func TestVideoService_Run_RejectsStartedJob(t *testing.T) {
	h := newHarness(t, &fakeGateway{}, &mediatest.Processor{}, nil)

	job := NewWithID("twice")
	require.NoError(t, job.Start())

	err := h.svc.Run(context.Background(), job, StartInput{Instructions: "Plants"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestVideoService_Wait_HonoursContext(t *testing.T) {
	proc := &mediatest.Processor{MuxDelay: 2 * time.Second}
	h := newHarness(t, &fakeGateway{}, proc, nil)

	_, err := h.svc.Start(context.Background(), StartInput{Instructions: "Plants"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.svc.Wait(ctx), context.DeadlineExceeded)

	require.NoError(t, h.svc.Wait(context.Background()))
}

func TestJobReporter_SavesProgress(t *testing.T) {
	repo := NewMemoryRepository()
	job := New()
	require.NoError(t, job.Start())
	rep := &jobReporter{job: job, repo: repo, logger: quietLogger()}

	rep.Report(20, progress.StageImages, "Creating image 1/6...")

	saved, err := repo.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, saved.Progress)
	assert.Equal(t, "Creating image 1/6...", saved.Message)
}
