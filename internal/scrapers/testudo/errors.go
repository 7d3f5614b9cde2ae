package testudo

import (
	"errors"
	"fmt"
)

var (
	ErrNetwork    = errors.New("network")
	ErrHTTPStatus = errors.New("http-status")
	ErrParse      = errors.New("parse")
)

// FetchError is returned by Client.Fetch for every failure. errors.Is matches it against
// ErrNetwork, ErrHTTPStatus or ErrParse depending on Kind.
type FetchError struct {
	// Kind is one of ErrNetwork, ErrHTTPStatus or ErrParse.
	Kind   error
	Course string
	// Status is the HTTP status code, only set when Kind is ErrHTTPStatus.
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	switch {
	case e.Kind == ErrHTTPStatus:
		return fmt.Sprintf("fetch %s: %s: unexpected status %d", e.Course, e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.Course, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Course, e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == e.Kind
}
