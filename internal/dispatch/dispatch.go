// Package dispatch fans conversation turns out to backend workflow endpoints.
//
// Each endpoint role has its own URL and timeout budget. Every call settles
// as an Outcome: transport and HTTP failures are classified into a small
// taxonomy here so callers never see a raw error.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Role is a logical backend destination, distinct from its concrete URL.
type Role string

const (
	// RoleBasic answers general questions; expected to be quick.
	RoleBasic Role = "basic"
	// RoleStrategy runs deep portfolio analysis; expected to be slow.
	RoleStrategy Role = "strategy"
)

// Default per-role timeout budgets. Strategy calls do deeper analysis and get
// a longer leash.
const (
	DefaultBasicTimeout    = 2 * time.Minute
	DefaultStrategyTimeout = 5 * time.Minute
)

// Endpoint is the externally-configured destination for one role.
type Endpoint struct {
	URL     string
	Timeout time.Duration
}

// Request carries everything a backend needs to answer one turn.
type Request struct {
	Message   string
	UserID    int64
	Intent    string
	RequestID string
	// Extra fields are merged into the outbound payload (e.g. the stored
	// wallet context for strategy calls).
	Extra map[string]any
}

// Dispatcher invokes backend endpoints by role and normalizes their replies.
type Dispatcher struct {
	endpoints map[Role]Endpoint
	client    *http.Client
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient overrides the HTTP client used for backend calls.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

// NewDispatcher creates a Dispatcher over the given role endpoints. Roles with
// a zero timeout get the role's default budget.
func NewDispatcher(endpoints map[Role]Endpoint, opts ...Option) *Dispatcher {
	eps := make(map[Role]Endpoint, len(endpoints))
	for role, ep := range endpoints {
		if ep.Timeout <= 0 {
			switch role {
			case RoleStrategy:
				ep.Timeout = DefaultStrategyTimeout
			default:
				ep.Timeout = DefaultBasicTimeout
			}
		}
		eps[role] = ep
	}
	d := &Dispatcher{
		endpoints: eps,
		// Per-call deadlines come from the role budget via context; the
		// client itself carries no timeout.
		client: &http.Client{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends one request to the endpoint configured for role and settles
// it as an Outcome. A role without a configured URL fails fast as a
// configuration error; no network call is attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, role Role, req Request) Outcome {
	start := time.Now()

	ep, ok := d.endpoints[role]
	if !ok || ep.URL == "" {
		slog.Error("dispatch endpoint not configured", "role", role, "userID", req.UserID, "requestID", req.RequestID)
		return Failure(KindConfiguration)
	}

	payload := map[string]any{
		"message":   req.Message,
		"userId":    req.UserID,
		"source":    "telegram",
		"intent":    req.Intent,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"requestId": req.RequestID,
	}
	for k, v := range req.Extra {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("dispatch payload marshal failed", "error", err, "role", role, "requestID", req.RequestID)
		return Failure(KindUnknown)
	}

	callCtx, cancel := context.WithTimeout(ctx, ep.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		slog.Error("dispatch request build failed", "error", err, "role", role, "requestID", req.RequestID)
		return Failure(KindUnknown)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	slog.Info("dispatching to backend", "role", role, "userID", req.UserID, "requestID", req.RequestID, "timeout", ep.Timeout)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		kind := classifyTransportError(err)
		slog.Error("dispatch transport error", "error", err, "kind", kind, "role", role,
			"userID", req.UserID, "requestID", req.RequestID, "duration", time.Since(start))
		return Failure(kind)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("dispatch response read failed", "error", err, "role", role, "requestID", req.RequestID)
		return Failure(KindUnknown)
	}

	slog.Info("backend response received", "role", role, "userID", req.UserID, "requestID", req.RequestID,
		"status", resp.StatusCode, "responseSize", len(respBody), "duration", time.Since(start))

	if kind, failed := classifyStatus(resp.StatusCode); failed {
		return Failure(kind)
	}
	return Success(Normalize(respBody))
}

// classifyTransportError maps a transport-level error into the failure
// taxonomy: deadline and network timeouts, then DNS and refused connections,
// then the catch-all.
func classifyTransportError(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnectionRefused
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindConnectionRefused
	}
	return KindUnknown
}

// classifyStatus reports whether an HTTP status settles the call as a
// failure, and which kind. 2xx is success; unrecognized statuses fall into
// the catch-all.
func classifyStatus(status int) (FailureKind, bool) {
	switch {
	case status >= 200 && status < 300:
		return "", false
	case status >= 500:
		return KindServerError, true
	case status == http.StatusTooManyRequests:
		return KindRateLimited, true
	case status == http.StatusBadRequest:
		return KindBadRequest, true
	default:
		return KindUnknown, true
	}
}
