// Package id provides unique identifier generation for jobs.
package id

import "github.com/google/uuid"

// Generate creates a new unique job ID (a random UUID).
func Generate() string {
	return uuid.NewString()
}

// Short returns the first eight hex characters of a new random UUID, used
// as a file name suffix.
func Short() string {
	return uuid.NewString()[:8]
}
