// Package storage keeps the files a lesson video is built from and the
// finished videos. Temporary files (per-slide narration clips, intermediate
// tracks) live in a temp directory and are removed by the pipeline; finished
// videos are written once into the output directory and optionally copied
// to S3.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for temporary, output and S3 storage.
type Storage interface {
	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp reads a temporary file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// TempPath returns a fresh path in the temp directory for a file the
	// caller will create itself.
	TempPath(name string) string

	// OutputPath returns where a finished video called name is written.
	OutputPath(name string) string

	// ResolveOutput returns the path of an existing finished video.
	// It fails with ErrInvalidFileName or ErrFileNotFound.
	ResolveOutput(name string) (string, error)

	// UploadToS3 uploads data to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
