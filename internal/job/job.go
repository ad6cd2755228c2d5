// Package job tracks lesson video jobs and runs the generation pipeline.
// It includes the Job entity with its state machine, the repository port
// shared by the job starter and the status poller, and VideoService, which
// drives a job from instructions to a finished video in the background.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/lessonreel-api/internal/job/id"
	"github.com/maauso/lessonreel-api/internal/progress"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusPending is set at creation, before the pipeline starts.
	StatusPending Status = "pending"
	// StatusProcessing indicates the pipeline is running.
	StatusProcessing Status = "processing"
	// StatusComplete indicates a video was produced.
	StatusComplete Status = "complete"
	// StatusError indicates the job was aborted.
	StatusError Status = "error"
)

var (
	// ErrInvalidTransition is returned when an invalid state transition is attempted.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrJobTerminal is returned when a finished job is modified.
	ErrJobTerminal = errors.New("job is already finished")
)

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusComplete, StatusError},
	StatusComplete:   {},
	StatusError:      {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Result describes the video produced by a completed job.
type Result struct {
	// FileName is the output file name inside the output directory.
	FileName string
	// FilePath is the local path of the output file.
	FilePath string
	// TotalSlides is the number of slides in the video.
	TotalSlides int
	// DurationSeconds is the summed slide duration, truncated.
	DurationSeconds int
	// HasAudio is false when the narration could not be muxed in.
	HasAudio bool
	// VideoURL is the S3 URL if the video was uploaded.
	VideoURL string
	// ScriptFallback is true when the default script replaced model output.
	ScriptFallback bool
}

// Job represents one video generation request.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Progress is the percentage of completion (0-100). It never decreases.
	Progress int
	// Stage is a short tag for the current pipeline step.
	Stage string
	// Message is a human-readable description of the current step.
	Message string
	// Instructions is the educator's request.
	Instructions string
	// PushToS3 indicates whether to upload the result to S3.
	PushToS3 bool
	// Result is set when the job completes.
	Result *Result
	// Error contains the failure message if the job was aborted.
	Error string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial pending status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial pending status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusProcessing:
		j.StartedAt = j.UpdatedAt
	case StatusComplete, StatusError:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from pending to processing.
func (j *Job) Start() error {
	return j.TransitionTo(StatusProcessing)
}

// Complete transitions the job to complete with its result and sets
// progress to 100.
func (j *Job) Complete(result Result, message string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.transitionLocked(StatusComplete); err != nil {
		return err
	}
	j.Result = &result
	j.Progress = 100
	j.Stage = progress.StageComplete
	j.Message = message
	return nil
}

// Fail transitions the job to error with a message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.transitionLocked(StatusError); err != nil {
		return err
	}
	j.Error = errMsg
	j.Stage = progress.StageError
	j.Message = errMsg
	return nil
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// UpdateProgress records the current step. The percent is clamped to 0..100
// and never lowers the stored value; stage and message always overwrite.
// Finished jobs are not modified.
func (j *Job) UpdateProgress(percent int, stage, message string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.isTerminalLocked() {
		return ErrJobTerminal
	}

	percent = min(max(percent, 0), 100)
	if percent > j.Progress {
		j.Progress = percent
	}
	j.Stage = stage
	j.Message = message
	j.UpdatedAt = time.Now()
	return nil
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.isTerminalLocked()
}

func (j *Job) isTerminalLocked() bool {
	return j.Status == StatusComplete || j.Status == StatusError
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var result *Result
	if j.Result != nil {
		r := *j.Result
		result = &r
	}

	return &Job{
		ID:           j.ID,
		Status:       j.Status,
		Progress:     j.Progress,
		Stage:        j.Stage,
		Message:      j.Message,
		Instructions: j.Instructions,
		PushToS3:     j.PushToS3,
		Result:       result,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}
