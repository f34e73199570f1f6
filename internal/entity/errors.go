package entity

import (
	"fmt"
	"net/http"
)

// FetchError reports a transport failure or a non-2xx status from an upstream fetch.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: upstream returned %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RenderError reports a headless browser failure. Op names the step that failed.
type RenderError struct {
	URL string
	Op  string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %s: %v", e.URL, e.Op, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// ValidationError reports missing or malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
