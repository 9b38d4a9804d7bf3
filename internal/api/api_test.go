package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tonny-ai/telegram-bridge/internal/orchestrator"
)

type fakeOrchestrator struct {
	turns chan orchestrator.Turn
}

func newFakeOrchestrator() *fakeOrchestrator {
	return &fakeOrchestrator{turns: make(chan orchestrator.Turn, 8)}
}

func (f *fakeOrchestrator) HandleTurn(ctx context.Context, turn orchestrator.Turn) {
	f.turns <- turn
}

func (f *fakeOrchestrator) waitForTurn(t *testing.T) orchestrator.Turn {
	t.Helper()
	select {
	case turn := <-f.turns:
		return turn
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for turn")
		return orchestrator.Turn{}
	}
}

type fakeRegistrar struct {
	gotPublicURL string
	webhookURL   string
	err          error
}

func (f *fakeRegistrar) RegisterWebhook(publicURL string) (string, error) {
	f.gotPublicURL = publicURL
	return f.webhookURL, f.err
}

func TestHealthEndpoint(t *testing.T) {
	srv := NewServer(newFakeOrchestrator(), nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid health JSON: %v", err)
	}
	if body["status"] != "ok" || body["service"] != ServiceName {
		t.Errorf("unexpected health body: %v", body)
	}
	if _, ok := body["timestamp"].(string); !ok {
		t.Error("health response should carry a timestamp")
	}
}

func TestWebhookDispatchesTurn(t *testing.T) {
	orch := newFakeOrchestrator()
	srv := NewServer(orch, nil)

	update := `{"update_id":7,"message":{"message_id":1,"chat":{"id":99},"from":{"id":42,"first_name":"Ada"},"text":"what is DeFi?"}}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(update))
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "OK" {
		t.Errorf("expected ack body OK, got %q", got)
	}

	turn := orch.waitForTurn(t)
	if turn.ChatID != 99 || turn.UserID != 42 {
		t.Errorf("unexpected turn coordinates: %+v", turn)
	}
	if turn.UserName != "Ada" {
		t.Errorf("expected first name as user name, got %q", turn.UserName)
	}
	if turn.Text != "what is DeFi?" {
		t.Errorf("unexpected turn text %q", turn.Text)
	}
	if turn.RequestID == "" {
		t.Error("turn should carry a request id")
	}
}

func TestWebhookFallsBackToUsername(t *testing.T) {
	orch := newFakeOrchestrator()
	srv := NewServer(orch, nil)

	update := `{"update_id":8,"message":{"message_id":2,"chat":{"id":5},"from":{"id":6,"username":"ada_l"},"text":"hi"}}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(update)))

	if turn := orch.waitForTurn(t); turn.UserName != "ada_l" {
		t.Errorf("expected username fallback, got %q", turn.UserName)
	}
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	srv := NewServer(newFakeOrchestrator(), nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", rec.Code)
	}

	// Structurally valid update without a message (e.g. an edited-message
	// event) is also rejected.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(`{"update_id":9}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("message-less update: expected 400, got %d", rec.Code)
	}
}

func TestWebhookRejectsGet(t *testing.T) {
	srv := NewServer(newFakeOrchestrator(), nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook/telegram", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestWebhookThrottlesByIP(t *testing.T) {
	orch := newFakeOrchestrator()
	srv := NewServer(orch, nil)
	handler := srv.Handler()

	update := `{"update_id":1,"message":{"message_id":1,"chat":{"id":1},"from":{"id":1},"text":"hi"}}`
	statuses := make(map[int]int)
	for i := 0; i < ipLimitMaxRequests+3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(update))
		req.RemoteAddr = "203.0.113.9:5000"
		handler.ServeHTTP(rec, req)
		statuses[rec.Code]++
	}

	if statuses[http.StatusOK] != ipLimitMaxRequests {
		t.Errorf("expected %d admitted requests, got %d", ipLimitMaxRequests, statuses[http.StatusOK])
	}
	if statuses[http.StatusTooManyRequests] != 3 {
		t.Errorf("expected 3 throttled requests, got %d", statuses[http.StatusTooManyRequests])
	}

	// A different source IP is admitted independently.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(update))
	req.RemoteAddr = "198.51.100.4:5000"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("fresh IP should be admitted, got %d", rec.Code)
	}
}

func TestSetupRegistersWebhook(t *testing.T) {
	reg := &fakeRegistrar{webhookURL: "https://bridge.example.com/webhook/telegram"}
	srv := NewServer(newFakeOrchestrator(), reg, WithPublicURL("https://bridge.example.com"))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/setup", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if reg.gotPublicURL != "https://bridge.example.com" {
		t.Errorf("registrar got %q", reg.gotPublicURL)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["success"] != true || body["webhook"] != reg.webhookURL {
		t.Errorf("unexpected setup body: %v", body)
	}
}

func TestSetupWithoutPublicURL(t *testing.T) {
	srv := NewServer(newFakeOrchestrator(), &fakeRegistrar{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/setup", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without PUBLIC_URL, got %d", rec.Code)
	}
}

func TestSetupRegistrationFailure(t *testing.T) {
	reg := &fakeRegistrar{err: errors.New("telegram says no")}
	srv := NewServer(newFakeOrchestrator(), reg, WithPublicURL("https://bridge.example.com"))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/setup", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}
