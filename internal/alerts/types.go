package alerts

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the alert/history pipeline. Callers match with errors.Is.
var (
	// ErrUpstreamUnavailable covers any failed price fetch: network error,
	// non-success status, or malformed payload. The orchestrator does not
	// distinguish between these.
	ErrUpstreamUnavailable = errors.New("price source unavailable")

	// ErrInvalidThreshold signals a non-positive or non-finite threshold input.
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrStoreUnavailable signals a failed history write or read.
	ErrStoreUnavailable = errors.New("history store unavailable")

	// ErrDeliveryFailed signals a failed notification dispatch.
	ErrDeliveryFailed = errors.New("notification delivery failed")
)

// PriceSample is one observed spot price for an asset. Immutable once built.
type PriceSample struct {
	Asset      string
	Price      float64
	ObservedAt time.Time
}

// Event is emitted when a price newly crosses below the threshold.
// It is consumed synchronously by sinks and the history recorder and is
// never persisted itself.
type Event struct {
	ID        string    `json:"id"`
	Asset     string    `json:"asset"`
	Price     float64   `json:"price"`
	Threshold float64   `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// Message renders the event as a human-readable notification line.
func (e Event) Message() string {
	return fmt.Sprintf("%s price dropped below %g! Current: %g", e.Asset, e.Threshold, e.Price)
}
