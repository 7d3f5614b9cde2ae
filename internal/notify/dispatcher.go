package notify

import (
	"context"
	"fmt"

	"testudot/internal/components/assert"
	"testudot/internal/components/telemetry"
	"testudot/internal/sections"

	"golang.org/x/time/rate"
)

const (
	report_dispatcher_send = "dispatcher.send"
	report_dispatcher_skip = "dispatcher.skip"
)

// RecipientSource resolves who is subscribed to a course at send time.
type RecipientSource interface {
	RecipientsFor(course string) ([]string, error)
}

type DispatcherOptions struct {
	// From is the sender address, SMTP senders default to their username when empty.
	From string
	// SendsPerSecond defaults to 2.
	SendsPerSecond float64
}

// Dispatcher renders and sends the digest of a course to its recipients. It is safe to
// call concurrently, sends are rate limited.
type Dispatcher struct {
	recipients RecipientSource
	sender     Sender
	limiter    *rate.Limiter
	from       string
	tel        telemetry.API
}

// NewDispatcher creates a dispatcher, a nil sender means no email provider is configured
// and every send is skipped.
func NewDispatcher(recipients RecipientSource, sender Sender, opts DispatcherOptions, tel telemetry.API) Dispatcher {
	assert.NotNil(recipients)
	assert.NotNil(tel)

	if opts.SendsPerSecond <= 0 {
		opts.SendsPerSecond = 2
	}

	return Dispatcher{
		recipients: recipients,
		sender:     sender,
		// 2 sends max per second
		// max burst >= 2 just means that no sends will be dropped
		limiter: rate.NewLimiter(rate.Limit(opts.SendsPerSecond), 2),
		from:    opts.From,
		tel:     telemetry.NewScopedAPI("notify", tel),
	}
}

// Configured reports whether the dispatcher has a sender.
func (d Dispatcher) Configured() bool {
	return d.sender != nil
}

func (d Dispatcher) Send(ctx context.Context, events []sections.Event, course string) error {
	course = sections.NormalizeCourse(course)
	if len(events) == 0 {
		return nil
	}

	recipients, err := d.recipients.RecipientsFor(course)
	if err != nil {
		return fmt.Errorf("resolve recipients: %w", err)
	}
	if len(recipients) == 0 {
		d.tel.ReportDebug(fmt.Sprintf("no recipients for %s, skipping email", course))
		return nil
	}
	if d.sender == nil {
		d.tel.ReportWarning(
			report_dispatcher_skip,
			fmt.Errorf("no email provider configured, skipping notification for %s", course),
		)
		return nil
	}

	html, text, err := RenderDigest(course, events)
	if err != nil {
		return err
	}

	err = d.limiter.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for rate limit: %w", err)
	}

	msg := Message{
		From:    d.from,
		To:      recipients,
		Subject: Subject(course),
		HTML:    html,
		Text:    text,
	}
	err = d.sender.Send(ctx, msg)
	if err != nil {
		d.tel.ReportBroken(report_dispatcher_send, err, telemetry.KV{Key: "course", Value: course})
		return err
	}

	d.tel.ReportDebug(
		fmt.Sprintf("notification sent for %s", course),
		telemetry.KV{Key: "recipients", Value: recipientList(recipients)},
		telemetry.KV{Key: "sender", Value: d.sender.Name()},
	)
	return nil
}
