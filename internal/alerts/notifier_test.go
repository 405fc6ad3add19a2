package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testEvent() Event {
	return Event{
		ID:        "test-event-1",
		Asset:     "bitcoin",
		Price:     29000,
		Threshold: 30000,
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWebhookSink_Delivers(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if _, ok := payload["embeds"]; !ok {
			t.Errorf("payload missing embeds: %v", payload)
		}
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	sink := NewWebhookSink([]string{ts.URL}, zerolog.Nop())
	if err := sink.Notify(context.Background(), testEvent()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if received.Load() != 1 {
		t.Errorf("expected 1 webhook delivery, got %d", received.Load())
	}
}

func TestWebhookSink_AllFailed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	sink := NewWebhookSink([]string{ts.URL}, zerolog.Nop())
	err := sink.Notify(context.Background(), testEvent())
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Errorf("expected ErrDeliveryFailed, got %v", err)
	}
}

func TestWebhookSink_PartialFailureStillSucceeds(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer bad.Close()

	sink := NewWebhookSink([]string{bad.URL, good.URL}, zerolog.Nop())
	if err := sink.Notify(context.Background(), testEvent()); err != nil {
		t.Errorf("expected success when one webhook accepts, got %v", err)
	}
}

func TestWebhookSink_NoURLsIsInert(t *testing.T) {
	sink := NewWebhookSink(nil, zerolog.Nop())
	if err := sink.Notify(context.Background(), testEvent()); err != nil {
		t.Errorf("inert sink returned %v", err)
	}
}

type stubSink struct {
	calls int
	err   error
}

func (s *stubSink) Notify(ctx context.Context, event Event) error {
	s.calls++
	return s.err
}

func TestMultiSink_FansOutAndReportsFailure(t *testing.T) {
	ok := &stubSink{}
	failing := &stubSink{err: ErrDeliveryFailed}

	sink := MultiSink{ok, failing}
	err := sink.Notify(context.Background(), testEvent())
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Errorf("expected ErrDeliveryFailed, got %v", err)
	}
	if ok.calls != 1 || failing.calls != 1 {
		t.Errorf("expected both sinks called once, got %d and %d", ok.calls, failing.calls)
	}
}

func TestEventMessage(t *testing.T) {
	got := testEvent().Message()
	want := "bitcoin price dropped below 30000! Current: 29000"
	if got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}
}
