package pricesource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rdevan/crypto-dashboard-backend/internal/alerts"
)

func newTestClient(handler http.HandlerFunc) (*Client, func()) {
	ts := httptest.NewServer(handler)
	return NewClient(ts.URL, 2*time.Second, zerolog.Nop()), ts.Close
}

func TestClient_Fetch(t *testing.T) {
	client, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("ids") != "bitcoin,ethereum" || q.Get("vs_currencies") != "usd" {
			t.Errorf("unexpected query %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"bitcoin":{"usd":32000},"ethereum":{"usd":1800.5}}`))
	})
	defer done()

	prices, err := client.Fetch(context.Background(), []string{"bitcoin", "ethereum"}, "usd")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if prices["bitcoin"]["usd"] != 32000 {
		t.Errorf("bitcoin price = %v", prices["bitcoin"]["usd"])
	}
	if prices["ethereum"]["usd"] != 1800.5 {
		t.Errorf("ethereum price = %v", prices["ethereum"]["usd"])
	}
}

func TestClient_FetchFailuresAreUniform(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "malformed payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"bitcoin":`))
			},
		},
		{
			name: "missing asset",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"ethereum":{"usd":1800}}`))
			},
		},
		{
			name: "negative price",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"bitcoin":{"usd":-1}}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, done := newTestClient(tt.handler)
			defer done()

			_, err := client.Fetch(context.Background(), []string{"bitcoin"}, "usd")
			if !errors.Is(err, alerts.ErrUpstreamUnavailable) {
				t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
			}
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	client, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {})
	done() // server already closed: connection refused

	_, err := client.Fetch(context.Background(), []string{"bitcoin"}, "usd")
	if !errors.Is(err, alerts.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}
