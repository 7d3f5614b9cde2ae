package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"testudot/internal/components/telemetry"
	"testudot/internal/sections"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvents() []sections.Event {
	return []sections.Event{
		sections.NewSectionEvent(sections.Section{
			CourseName:    "CMSC216",
			SectionID:     "0301",
			Instructor:    "Larry Herman",
			TotalSeats:    30,
			OpenSeats:     12,
			WaitlistCount: 3,
			ClassTimes: []sections.ClassTime{
				{Days: "MWF", StartTime: "10:00am", EndTime: "10:50am"},
			},
		}),
		sections.SeatsChangedEvent("0101", "Anwar Mamat", 0, 4),
		sections.SeatsChangedEvent("0201", "<b>Staff</b>", 5, 2),
		sections.SectionRemovedEvent(sections.Section{CourseName: "CMSC216", SectionID: "0401"}),
	}
}

func TestRenderDigest(t *testing.T) {
	html, text, err := RenderDigest("cmsc216", testEvents())
	require.NoError(t, err)

	for _, expected := range []string{
		"CMSC216 · UPDATES",
		"Section 0301",
		"New Section",
		"12 / 30 seats available · 3 waitlisted",
		"MWF 10:00am - 10:50am",
		"Seats Changed",
		"4 new seats (now 4 available)",
		"3 seats fewer (now 2 available)",
		"Section 0401",
		"Removed",
		"Automated notification from testudot",
	} {
		require.Contains(t, html, expected)
		require.Contains(t, text, expected)
	}
	require.Contains(t, html, "background-color: #e6fffa")
	require.NotContains(t, html, "ZgotmplZ")
	require.NotContains(t, html, "<b>Staff</b>")
	require.Contains(t, text, "<b>Staff</b>")

	require.Equal(t, "changes detected in cmsc216 sections", Subject(" CMSC216"))
}

func TestSeatsText(t *testing.T) {
	require.Equal(t, "0 / 20 seats available", SeatsText(sections.Section{TotalSeats: 20}))
}

type fakeSender struct {
	name  string
	err   error
	mutex sync.Mutex
	sent  []Message
}

func (f *fakeSender) Name() string {
	return f.name
}

func (f *fakeSender) Send(ctx context.Context, msg Message) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

func (f *fakeSender) count() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return len(f.sent)
}

func TestWithFallback(t *testing.T) {
	ctx := context.Background()
	msg := Message{To: []string{"alice@umd.edu"}, Subject: "hi"}

	t.Run("primary succeeds", func(t *testing.T) {
		primary := &fakeSender{name: "primary"}
		secondary := &fakeSender{name: "secondary"}
		require.NoError(t, WithFallback(primary, secondary).Send(ctx, msg))
		require.Equal(t, 1, primary.count())
		require.Equal(t, 0, secondary.count())
	})

	t.Run("primary fails", func(t *testing.T) {
		primary := &fakeSender{name: "primary", err: errors.New("quota exceeded")}
		secondary := &fakeSender{name: "secondary"}
		require.NoError(t, WithFallback(primary, secondary).Send(ctx, msg))
		require.Equal(t, 1, secondary.count())
	})

	t.Run("both fail", func(t *testing.T) {
		primaryErr := errors.New("quota exceeded")
		secondaryErr := errors.New("connection refused")
		err := WithFallback(
			&fakeSender{name: "primary", err: primaryErr},
			&fakeSender{name: "secondary", err: secondaryErr},
		).Send(ctx, msg)

		var fallbackErr *FallbackError
		require.ErrorAs(t, err, &fallbackErr)
		require.ErrorIs(t, err, primaryErr)
		require.ErrorIs(t, err, secondaryErr)
	})

	t.Run("nil senders", func(t *testing.T) {
		only := &fakeSender{name: "only"}
		require.Equal(t, Sender(only), WithFallback(nil, only))
		require.Equal(t, Sender(only), WithFallback(only, nil))
		require.Nil(t, WithFallback(nil, nil))
	})
}

type staticRecipients map[string][]string

func (s staticRecipients) RecipientsFor(course string) ([]string, error) {
	return s[course], nil
}

func TestDispatcher(t *testing.T) {
	recipients := staticRecipients{"CMSC216": {"alice@umd.edu", "bob@umd.edu"}}

	t.Run("sends digest", func(t *testing.T) {
		sender := &fakeSender{name: "fake"}
		d := NewDispatcher(recipients, sender, DispatcherOptions{From: "testudot@umd.edu"}, telemetry.NewRecorder())

		require.NoError(t, d.Send(context.Background(), testEvents(), "cmsc216"))
		require.Equal(t, 1, sender.count())

		msg := sender.sent[0]
		require.Equal(t, []string{"alice@umd.edu", "bob@umd.edu"}, msg.To)
		require.Equal(t, "testudot@umd.edu", msg.From)
		require.Equal(t, "changes detected in cmsc216 sections", msg.Subject)
		require.Contains(t, msg.HTML, "CMSC216 · UPDATES")
	})

	t.Run("no recipients", func(t *testing.T) {
		sender := &fakeSender{name: "fake"}
		d := NewDispatcher(recipients, sender, DispatcherOptions{}, telemetry.NewRecorder())

		require.NoError(t, d.Send(context.Background(), testEvents(), "MATH140"))
		require.Equal(t, 0, sender.count())
	})

	t.Run("no sender configured", func(t *testing.T) {
		tel := telemetry.NewRecorder()
		d := NewDispatcher(recipients, nil, DispatcherOptions{}, tel)

		require.False(t, d.Configured())
		require.NoError(t, d.Send(context.Background(), testEvents(), "CMSC216"))
		require.Len(t, tel.Reports("warning", report_dispatcher_skip), 1)
	})

	t.Run("sender fails", func(t *testing.T) {
		tel := telemetry.NewRecorder()
		sender := &fakeSender{name: "fake", err: errors.New("535 bad credentials")}
		d := NewDispatcher(recipients, sender, DispatcherOptions{}, tel)

		require.Error(t, d.Send(context.Background(), testEvents(), "CMSC216"))
		require.Len(t, tel.Reports("broken", report_dispatcher_send), 1)
	})

	t.Run("rate limited", func(t *testing.T) {
		sender := &fakeSender{name: "fake"}
		d := NewDispatcher(recipients, sender, DispatcherOptions{SendsPerSecond: 10}, telemetry.NewRecorder())

		start := time.Now()
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, d.Send(context.Background(), testEvents(), "CMSC216"))
			}()
		}
		wg.Wait()

		require.Equal(t, 4, sender.count())
		// burst of 2, the remaining 2 sends wait 100ms each
		require.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	})
}

func TestAPISender(t *testing.T) {
	var received apiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer re_test", r.Header.Get("authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		if strings.Contains(received.Subject, "fail") {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"message":"invalid from"}`))
			return
		}
		w.Write([]byte(`{"id":"49a3999c-0ce1-4ea6-ab68-afcd6dc2e794"}`))
	}))
	defer server.Close()

	_, ok := NewAPISender(APIConfig{}, telemetry.NewRecorder())
	require.False(t, ok)

	sender, ok := NewAPISender(APIConfig{Endpoint: server.URL, APIKey: "re_test"}, telemetry.NewRecorder())
	require.True(t, ok)

	err := sender.Send(context.Background(), Message{
		From:    "testudot@umd.edu",
		To:      []string{"alice@umd.edu"},
		Subject: "changes detected in cmsc216 sections",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	})
	require.NoError(t, err)
	require.Equal(t, apiRequest{
		From:    "testudot@umd.edu",
		To:      []string{"alice@umd.edu"},
		Subject: "changes detected in cmsc216 sections",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	}, received)

	err = sender.Send(context.Background(), Message{Subject: "fail"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "422")
}
