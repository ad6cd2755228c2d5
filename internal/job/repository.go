package job

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when a job cannot be found by ID.
var ErrJobNotFound = errors.New("job not found")

// Repository defines the interface for job persistence. The same instance
// is shared by the job starter and the status poller.
type Repository interface {
	// Save persists a job to the storage.
	// If the job already exists, it should be updated.
	Save(ctx context.Context, job *Job) error

	// FindByID retrieves a job by its unique identifier.
	// Returns ErrJobNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)
}
