package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rdevan/crypto-dashboard-backend/internal/alerts"
	"github.com/rdevan/crypto-dashboard-backend/internal/history"
	"github.com/rdevan/crypto-dashboard-backend/pkg/observability"
)

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	// Observability endpoints
	mux.HandleFunc("/metrics", s.metrics.Handler())
	mux.HandleFunc("/health/live", s.health.LivenessHandler())
	mux.HandleFunc("/health/ready", s.health.ReadinessHandler())
	mux.HandleFunc("/health", s.cors(s.handleHealth))
	// Dashboard API
	mux.HandleFunc("/api/prices", s.cors(s.rateLimit(s.authOptional(s.handlePrices))))
	mux.HandleFunc("/api/set-alert", s.cors(s.rateLimit(s.authOptional(s.handleSetAlert))))
	mux.HandleFunc("/api/history/", s.cors(s.rateLimit(s.authOptional(s.handleHistory))))
	mux.HandleFunc("/ws/alerts", s.cors(s.authOptional(s.handleAlertsWS)))
	if s.sessions != nil {
		mux.HandleFunc("/api/login", s.cors(s.rateLimit(s.handleLogin)))
		mux.HandleFunc("/api/logout", s.cors(s.handleLogout))
	}
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := map[string]interface{}{
		"status": "ok",
	}
	if s.db != nil {
		dbErr := s.db.Ping(ctx)
		resp["db"] = dbErr == nil
		if dbErr != nil {
			resp["db_error"] = dbErr.Error()
		}
	}
	if s.nc != nil {
		resp["nats"] = !s.nc.IsClosed()
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handlePrices is the poll entry point: one fetch, one evaluation pass over
// the watched assets, best-effort side effects, and the combined payload.
func (s *server) handlePrices(w http.ResponseWriter, r *http.Request) {
	s.metrics.Counter(observability.MetricHTTPRequests).Inc()
	defer s.metrics.Timer(observability.MetricHTTPDuration)()

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	s.metrics.Counter(observability.MetricPriceFetches).Inc()
	stop := s.metrics.Timer(observability.MetricPriceFetchDuration)
	prices, err := s.source.Fetch(ctx, s.cfg.Upstream.Assets, s.cfg.Upstream.Currency)
	stop()
	if err != nil {
		// Alert state is untouched on upstream failure.
		s.metrics.Counter(observability.MetricPriceFetchFailures).Inc()
		s.logger.Error("price fetch failed", err)
		s.writeError(w, http.StatusBadGateway, "Failed to fetch data")
		return
	}

	currency := s.cfg.Upstream.Currency
	observed := time.Now().UTC()
	shouldAlert := false

	for _, asset := range s.cfg.Alert.Watch {
		price, ok := prices[asset][currency]
		if !ok {
			continue
		}

		sample := alerts.PriceSample{Asset: asset, Price: price, ObservedAt: observed}
		event, fired := s.monitor.Evaluate(sample)
		if fired {
			shouldAlert = true
			s.metrics.Counter(observability.MetricAlertsTriggered).Inc()
			s.notify(ctx, event)
		}
		if fired || !s.cfg.History.RecordOnAlertOnly() {
			s.record(ctx, history.Record{
				Asset:     asset,
				Timestamp: observed.Unix(),
				Price:     price,
				Alerted:   fired,
			})
		}
	}

	threshold, _ := s.monitor.Threshold(s.cfg.Alert.Watch[0])
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"prices":          prices,
		"alert":           shouldAlert,
		"threshold_value": threshold,
	})
}

// notify dispatches an alert event. Delivery failures are logged and
// swallowed; they never fail the request.
func (s *server) notify(ctx context.Context, event alerts.Event) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Notify(ctx, event); err != nil {
		s.metrics.Counter(observability.MetricNotifyFailures).Inc()
		s.logger.Error("alert notification failed", err)
	}
}

// record appends a history row. Store failures are logged and swallowed; they
// never fail the request.
func (s *server) record(ctx context.Context, rec history.Record) {
	s.metrics.Counter(observability.MetricHistoryWrites).Inc()
	if err := s.store.Record(ctx, rec); err != nil {
		s.metrics.Counter(observability.MetricHistoryWriteErrors).Inc()
		s.logger.Error("history write failed", err)
	}
}

func (s *server) handleSetAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "only POST allowed")
		return
	}

	var req struct {
		Price *float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Price == nil {
		s.writeError(w, http.StatusBadRequest, "Invalid data")
		return
	}

	for _, asset := range s.cfg.Alert.Watch {
		if err := s.monitor.SetThreshold(asset, *req.Price); err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid data")
			return
		}
	}
	s.metrics.Counter(observability.MetricThresholdUpdates).Inc()

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "success",
		"new_threshold": *req.Price,
	})
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	asset := strings.TrimPrefix(r.URL.Path, "/api/history/")
	if asset == "" || strings.Contains(asset, "/") {
		s.writeError(w, http.StatusBadRequest, "Invalid data")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	records, err := s.store.History(ctx, asset, s.cfg.History.QueryLimit)
	if err != nil {
		s.logger.Error("history read failed", err)
		s.writeError(w, http.StatusInternalServerError, "History unavailable")
		return
	}

	// Unknown asset: empty object, not an error.
	if len(records) == 0 {
		s.writeJSON(w, http.StatusOK, struct{}{})
		return
	}

	prices := make([]float64, 0, len(records))
	labels := make([]string, 0, len(records))
	for _, rec := range records {
		prices = append(prices, rec.Price)
		labels = append(labels, time.Unix(rec.Timestamp, 0).UTC().Format("15:04"))
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"prices": prices,
		"labels": labels,
		"color":  history.Color(asset),
	})
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "only POST allowed")
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid data")
		return
	}

	identity, err := s.authProvider.Authenticate(req.Email, req.Password)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token := s.sessions.Create(identity)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"token":  token,
	})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := extractBearer(r.Header.Get("Authorization")); token != "" {
		s.sessions.Revoke(token)
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success"})
}

// handleAlertsWS streams alert events published on the notification topic to
// a websocket client.
func (s *server) handleAlertsWS(w http.ResponseWriter, r *http.Request) {
	if s.nc == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Streaming disabled")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", err)
		return
	}
	s.metrics.Gauge(observability.MetricWSClientConnections).Inc()
	defer s.metrics.Gauge(observability.MetricWSClientConnections).Dec()

	const pongWait = 30 * time.Second
	const pingPeriod = 20 * time.Second
	const writeWait = 10 * time.Second

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := s.nc.SubscribeSync(s.cfg.Messaging.Subject)
	if err != nil {
		s.logger.Error("NATS subscribe failed", err)
		_ = conn.Close()
		return
	}
	defer sub.Unsubscribe()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	var writeMu sync.Mutex
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	go func() {
		for {
			select {
			case <-pingTicker.C:
				writeMu.Lock()
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait))
				writeMu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	// Read pump to detect client disconnects and service pong frames.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		}
	}()

	for {
		msg, err := sub.NextMsgWithContext(ctx)
		if err != nil {
			break
		}
		writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		err = conn.WriteMessage(websocket.TextMessage, msg.Data)
		writeMu.Unlock()
		if err != nil {
			break
		}
	}

	_ = conn.Close()
}

func (s *server) authOptional(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.sessions == nil {
			next.ServeHTTP(w, r)
			return
		}
		token := extractBearer(r.Header.Get("Authorization"))
		if token != "" {
			if identity, ok := s.sessions.Lookup(token); ok {
				ctx := context.WithValue(r.Context(), identityKey{}, identity)
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	}
}

type identityKey struct{}

func (s *server) cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	}
}

func (s *server) rateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)
		if !s.rateLimiter.Allow(ip) {
			s.writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	}
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// rateLimiter implements a simple token bucket rate limiter per IP
type rateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	maxRate  int
	interval time.Duration
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

func newRateLimiter(maxRate int, interval time.Duration) *rateLimiter {
	rl := &rateLimiter{
		buckets:  make(map[string]*bucket),
		maxRate:  maxRate,
		interval: interval,
	}
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			rl.cleanup()
		}
	}()
	return rl
}

func (rl *rateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.buckets[ip]
	if !exists {
		b = &bucket{
			tokens:     rl.maxRate,
			lastRefill: time.Now(),
		}
		rl.buckets[ip] = b
	}

	now := time.Now()
	if now.Sub(b.lastRefill) >= rl.interval {
		b.tokens = rl.maxRate
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for ip, b := range rl.buckets {
		if now.Sub(b.lastRefill) > 1*time.Hour {
			delete(rl.buckets, ip)
		}
	}
}
