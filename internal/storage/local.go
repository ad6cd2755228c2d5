package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Static errors for storage operations.
var (
	// ErrS3NotConfigured is returned when S3 operations are attempted
	// without proper configuration.
	ErrS3NotConfigured = errors.New("S3 storage is not configured")
	// ErrInvalidFileName is returned for output names that are empty or
	// point outside the output directory.
	ErrInvalidFileName = errors.New("invalid file name")
	// ErrFileNotFound is returned when an output file does not exist.
	ErrFileNotFound = errors.New("file not found")
)

// LocalStorage implements the Storage interface using local disk.
// It does not support S3 operations unless wrapped with S3Storage.
type LocalStorage struct {
	tempDir   string
	outputDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// Empty directories default to subdirectories of os.TempDir().
// Both directories are created if they don't exist.
func NewLocalStorage(tempDir, outputDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "lessonreel", "tmp")
	}
	if outputDir == "" {
		outputDir = filepath.Join(os.TempDir(), "lessonreel", "output")
	}

	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	return &LocalStorage{tempDir: tempDir, outputDir: outputDir}, nil
}

// TempDir returns the temporary directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// OutputDir returns the output directory path.
func (s *LocalStorage) OutputDir() string {
	return s.outputDir
}

// SaveTemp saves data to a temporary file and returns the file path.
// The name is used as a base for the filename with a unique suffix.
func (s *LocalStorage) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.CreateTemp(s.tempDir, name+"_*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return fileName, nil
}

// LoadTemp reads a temporary file and returns a reader.
// The caller is responsible for closing the returned ReadCloser.
func (s *LocalStorage) LoadTemp(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}

	return f, nil
}

// CleanupTemp removes the specified temporary files.
// It continues cleanup even if some files fail to delete,
// returning the first error encountered.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove temp file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// TempPath returns a unique, not yet created path in the temp directory.
// The extension of name is kept.
func (s *LocalStorage) TempPath(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(filepath.Base(name), ext)
	return filepath.Join(s.tempDir, fmt.Sprintf("%s_%s%s", base, uuid.NewString()[:8], ext))
}

// OutputPath returns where a finished video called name is written.
func (s *LocalStorage) OutputPath(name string) string {
	return filepath.Join(s.outputDir, filepath.Base(name))
}

// ResolveOutput returns the path of the finished video called name.
func (s *LocalStorage) ResolveOutput(name string) (string, error) {
	if !validFileName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}

	path := filepath.Join(s.outputDir, name)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return "", fmt.Errorf("stat output file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	return path, nil
}

// validFileName accepts plain file names only: no separators, no parent
// references and no hidden files.
func validFileName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return filepath.Base(name) == name
}

// UploadToS3 is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) UploadToS3(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}

var _ Storage = (*LocalStorage)(nil)
