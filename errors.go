package main

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnknownCode      = errors.New("unknown country code")
	ErrUnknownRegion    = errors.New("unknown region")
	ErrUnknownContinent = errors.New("unknown continent")
	ErrRateLimited      = errors.New("rate limited by mirror")
	ErrInvalidConfig    = errors.New("invalid config")
)

// Process exit codes used by the CLI.
const (
	exitFailure  = 1
	exitUsage    = 2
	exitMismatch = 3
	exitProblems = 4
)

// StatusError reports a mirror response that was neither 200 nor 429.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s : unexpected status %d %s", e.URL, e.Status, http.StatusText(e.Status))
}
