// Package notify emails recipients a digest of the changes detected for a course.
package notify

import (
	"context"
	"fmt"
	"strings"
)

// Message is a rendered email, ready to be handed to a Sender.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a message through some email provider.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	// Name identifies the provider in logs.
	Name() string
}

// FallbackError is returned when every sender of a fallback chain failed.
type FallbackError struct {
	Primary   error
	Secondary error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("primary sender: %v; secondary sender: %v", e.Primary, e.Secondary)
}

func (e *FallbackError) Unwrap() []error {
	return []error{e.Primary, e.Secondary}
}

type fallback struct {
	primary   Sender
	secondary Sender
}

// WithFallback tries `primary` and only when it fails, `secondary`. Either may be nil in
// which case the other one is returned as is.
func WithFallback(primary, secondary Sender) Sender {
	if primary == nil {
		return secondary
	}
	if secondary == nil {
		return primary
	}
	return fallback{primary: primary, secondary: secondary}
}

func (f fallback) Name() string {
	return fmt.Sprintf("%s, falling back to %s", f.primary.Name(), f.secondary.Name())
}

func (f fallback) Send(ctx context.Context, msg Message) error {
	primaryErr := f.primary.Send(ctx, msg)
	if primaryErr == nil {
		return nil
	}
	secondaryErr := f.secondary.Send(ctx, msg)
	if secondaryErr == nil {
		return nil
	}
	return &FallbackError{
		Primary:   fmt.Errorf("%s: %w", f.primary.Name(), primaryErr),
		Secondary: fmt.Errorf("%s: %w", f.secondary.Name(), secondaryErr),
	}
}

func recipientList(to []string) string {
	return strings.Join(to, ", ")
}
