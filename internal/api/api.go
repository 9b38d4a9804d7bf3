// Package api provides the HTTP surface of the bridge.
//
// It exposes the Telegram webhook endpoint plus health and setup routes. The
// webhook is acked with 200 before the turn is processed; Telegram redelivers
// updates whose ack is slow, so processing happens on a separate goroutine.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/tonny-ai/telegram-bridge/internal/orchestrator"
	"github.com/tonny-ai/telegram-bridge/internal/ratelimit"
)

// ServiceName identifies the bridge in health responses.
const ServiceName = "TONNY Telegram Bridge"

// DefaultAddr is where the server listens when no address is configured.
const DefaultAddr = ":3000"

// Per-IP admission policy for the webhook route.
const (
	ipLimitMaxRequests = 10
	ipLimitWindow      = time.Minute
)

// Orchestrator handles one classified conversation turn.
type Orchestrator interface {
	HandleTurn(ctx context.Context, turn orchestrator.Turn)
}

// WebhookRegistrar points the chat platform's webhook at this server.
type WebhookRegistrar interface {
	RegisterWebhook(publicURL string) (string, error)
}

// Server is the HTTP front of the bridge.
type Server struct {
	addr      string
	publicURL string
	orch      Orchestrator
	registrar WebhookRegistrar
	ipLimiter *ratelimit.Limiter
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// WithPublicURL sets the externally reachable base URL used by /setup.
func WithPublicURL(url string) Option {
	return func(s *Server) { s.publicURL = url }
}

// NewServer creates the HTTP server over the orchestrator and registrar.
func NewServer(orch Orchestrator, registrar WebhookRegistrar, opts ...Option) *Server {
	s := &Server{
		addr:      DefaultAddr,
		orch:      orch,
		registrar: registrar,
		ipLimiter: ratelimit.NewLimiter(ipLimitMaxRequests, ipLimitWindow),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the route tree with logging and throttling middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/setup", s.setupHandler)
	mux.Handle("/webhook/telegram", s.throttleByIP(http.HandlerFunc(s.webhookHandler)))
	return s.logRequests(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	slog.Info("server started", "addr", s.addr, "healthCheck", "/health", "webhookEndpoint", "/webhook/telegram")

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, closing HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   ServiceName,
	})
}

func (s *Server) setupHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.registrar == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "telegram client not configured"})
		return
	}
	if s.publicURL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "PUBLIC_URL not configured. Set this to your public webhook URL (e.g., https://yourapp.example.com)",
		})
		return
	}

	webhookURL, err := s.registrar.RegisterWebhook(s.publicURL)
	if err != nil {
		slog.Error("webhook registration failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "webhook": webhookURL})
}

// webhookHandler acks the update immediately, then hands the turn to the
// orchestrator on its own goroutine with a fresh context; the request context
// dies with the ack.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil || update.Message == nil {
		slog.Warn("invalid webhook request format", "error", err, "requestID", requestIDFrom(r))
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	msg := update.Message
	userName := "User"
	if msg.From != nil {
		if msg.From.FirstName != "" {
			userName = msg.From.FirstName
		} else if msg.From.UserName != "" {
			userName = msg.From.UserName
		}
	}
	turn := orchestrator.Turn{
		ChatID:    msg.Chat.ID,
		UserName:  userName,
		Text:      msg.Text,
		RequestID: requestIDFrom(r),
	}
	if msg.From != nil {
		turn.UserID = msg.From.ID
	}

	slog.Info("message received from user", "userID", turn.UserID, "chatID", turn.ChatID,
		"messageLength", len(turn.Text), "requestID", turn.RequestID)

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))

	go s.orch.HandleTurn(context.Background(), turn)
}

// throttleByIP guards the webhook against a single source flooding the
// bridge; per-user limiting happens later in the orchestrator.
func (s *Server) throttleByIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d := s.ipLimiter.CheckAndAdmit(clientIP(r)); !d.Admitted {
			http.Error(w, "Too many requests from this IP, please try again later.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey string

const requestIDKey ctxKey = "requestID"

// logRequests assigns each request a UUID and logs its lifecycle. Health
// checks are skipped to reduce noise.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		requestID := uuid.NewString()
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, requestID))

		slog.Info("request received", "requestID", requestID, "method", r.Method, "path", r.URL.Path, "ip", clientIP(r))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		slog.Info("request completed", "requestID", requestID, "method", r.Method, "path", r.URL.Path,
			"statusCode", rec.status, "duration", time.Since(start))
	})
}

func requestIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		return id
	}
	return uuid.NewString()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}
