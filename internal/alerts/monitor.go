package alerts

import (
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// state holds the alert state for one watched asset. triggered=true means an
// alert already fired for the current below-threshold excursion and must not
// fire again until the price recovers above the threshold.
type state struct {
	mu        sync.Mutex
	threshold float64
	triggered bool
}

// State is a read-only copy of an asset's alert state.
type State struct {
	Threshold float64
	Triggered bool
}

// Monitor owns the alert state for each watched asset and serializes the
// read-evaluate-write sequence per asset, so concurrent pollers observing the
// same crossing produce at most one alert.
type Monitor struct {
	states map[string]*state
	logger zerolog.Logger
}

// NewMonitor creates a monitor tracking the given assets, each armed with the
// default threshold.
func NewMonitor(assets []string, defaultThreshold float64, logger zerolog.Logger) *Monitor {
	states := make(map[string]*state, len(assets))
	for _, asset := range assets {
		states[asset] = &state{threshold: defaultThreshold}
	}
	return &Monitor{
		states: states,
		logger: logger.With().Str("component", "alert-monitor").Logger(),
	}
}

// Evaluate runs the edge-triggered threshold check against the sample's asset.
// It fires exactly once per crossing: a price strictly below the threshold
// fires only if not already triggered, a price strictly above re-arms
// silently, and equality is a dead-band that changes nothing. Samples for
// unwatched assets never fire.
//
// The caller must have validated the sample: price finite and non-negative.
// The critical section is pure computation; no I/O happens under the lock.
func (m *Monitor) Evaluate(sample PriceSample) (Event, bool) {
	st, ok := m.states[sample.Asset]
	if !ok {
		return Event{}, false
	}

	st.mu.Lock()
	threshold := st.threshold
	fire := sample.Price < threshold && !st.triggered
	if fire {
		st.triggered = true
	} else if sample.Price > threshold {
		st.triggered = false
	}
	st.mu.Unlock()

	if !fire {
		return Event{}, false
	}

	m.logger.Info().
		Str("asset", sample.Asset).
		Float64("price", sample.Price).
		Float64("threshold", threshold).
		Msg("alert triggered")

	return Event{
		ID:        uuid.New().String(),
		Asset:     sample.Asset,
		Price:     sample.Price,
		Threshold: threshold,
		Timestamp: sample.ObservedAt,
	}, true
}

// SetThreshold replaces the asset's threshold and unconditionally re-arms
// alerting, so a manual change always alerts again on the next sample below
// the new value. Non-positive or non-finite values are rejected with
// ErrInvalidThreshold; unknown assets are rejected the same way.
func (m *Monitor) SetThreshold(asset string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return ErrInvalidThreshold
	}
	st, ok := m.states[asset]
	if !ok {
		return ErrInvalidThreshold
	}

	st.mu.Lock()
	st.threshold = value
	st.triggered = false
	st.mu.Unlock()

	m.logger.Info().
		Str("asset", asset).
		Float64("threshold", value).
		Msg("threshold updated")
	return nil
}

// Threshold returns the current threshold for the asset.
func (m *Monitor) Threshold(asset string) (float64, bool) {
	st, ok := m.states[asset]
	if !ok {
		return 0, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.threshold, true
}

// Snapshot returns a copy of the asset's current state.
func (m *Monitor) Snapshot(asset string) (State, bool) {
	st, ok := m.states[asset]
	if !ok {
		return State{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return State{Threshold: st.threshold, Triggered: st.triggered}, true
}

// Assets returns the watched asset identifiers.
func (m *Monitor) Assets() []string {
	assets := make([]string, 0, len(m.states))
	for asset := range m.states {
		assets = append(assets, asset)
	}
	return assets
}
