// Package voice hands out joinable web-call sessions with the AI assistant.
//
// Session handles are tracked per user so a later wallet conversation can be
// carried into the call as context; stale handles are swept periodically.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultSessionMaxAge is how long an unused session handle stays tracked.
const DefaultSessionMaxAge = 2 * time.Hour

// ErrNotConfigured is returned when the voice provider is missing its
// assistant or web-call configuration.
var ErrNotConfigured = errors.New("voice provider is not configured")

// Session is one joinable web-call handle.
type Session struct {
	ID      string
	JoinURL string
	Context string
	Created time.Time
}

// Provider creates and tracks voice sessions.
type Provider struct {
	assistantID string
	webCallURL  string

	mu       sync.Mutex
	sessions map[int64]Session
	now      func() time.Time
}

// Option configures a Provider.
type Option func(*Provider)

// WithClock overrides the provider's time source; used by tests.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// NewProvider creates a voice session provider. assistantID and webCallURL
// may be empty; CreateSession then fails with ErrNotConfigured.
func NewProvider(assistantID, webCallURL string, opts ...Option) *Provider {
	p := &Provider{
		assistantID: assistantID,
		webCallURL:  webCallURL,
		sessions:    make(map[int64]Session),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Configured reports whether voice sessions can be created.
func (p *Provider) Configured() bool {
	return p.assistantID != "" && p.webCallURL != ""
}

// CreateSession creates a web-call session for the user, replacing any
// previous one. contextText describes what the assistant should know going
// in (a wallet summary, or a generic topic).
func (p *Provider) CreateSession(ctx context.Context, userID int64, contextText string) (Session, error) {
	if !p.Configured() {
		return Session{}, ErrNotConfigured
	}

	now := p.now()
	s := Session{
		ID:      fmt.Sprintf("telegram-%d-%d", userID, now.UnixMilli()),
		JoinURL: p.webCallURL,
		Context: contextText,
		Created: now,
	}

	p.mu.Lock()
	p.sessions[userID] = s
	p.mu.Unlock()

	slog.Info("voice session created", "userID", userID, "sessionID", s.ID, "hasContext", contextText != "")
	return s, nil
}

// ActiveSession returns the user's tracked session, if any.
func (p *Provider) ActiveSession(userID int64) (Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[userID]
	return s, ok
}

// ClearSession drops the user's tracked session.
func (p *Provider) ClearSession(userID int64) {
	p.mu.Lock()
	delete(p.sessions, userID)
	p.mu.Unlock()
}

// Sweep drops sessions older than DefaultSessionMaxAge and returns how many
// were removed.
func (p *Provider) Sweep() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	cleaned := 0
	for userID, s := range p.sessions {
		if now.Sub(s.Created) > DefaultSessionMaxAge {
			delete(p.sessions, userID)
			cleaned++
		}
	}
	if cleaned > 0 {
		slog.Info("voice session sweep completed", "cleanedSessions", cleaned, "activeSessions", len(p.sessions))
	}
	return cleaned
}

// FormatJoinMessage renders the user-facing invitation for a session.
func FormatJoinMessage(s Session) string {
	contextSummary := "for general crypto discussion"
	if s.Context != "" {
		contextSummary = "with your conversation context"
	}

	return "🎙️ **Voice Call Ready!**\n\n" +
		"Your AI strategist is ready to talk " + contextSummary + ".\n\n" +
		"**Click to start voice conversation:**\n" +
		s.JoinURL + "\n\n" +
		"**What to expect:**\n" +
		"• Natural voice conversation in your browser\n" +
		"• No downloads or apps needed\n" +
		"• Personalized crypto strategy advice\n" +
		"• 10-15 minute conversation\n\n" +
		"*💡 Tip: Use headphones for best audio quality!*"
}

// TroubleshootingMessage is the fixed help text for voice-call problems.
func TroubleshootingMessage() string {
	return "📱 **Mobile Voice Call Troubleshooting**\n\n" +
		"If the voice call didn't work on your phone, try:\n\n" +
		"**Option 1: Switch Browser**\n" +
		"• Copy the link and paste it in Chrome/Safari\n" +
		"• Don't use Telegram's built-in browser\n\n" +
		"**Option 2: Desktop Alternative**\n" +
		"• Open the link on a computer instead\n" +
		"• Desktop browsers work more reliably\n\n" +
		"**Still having issues?**\n" +
		"• Check microphone permissions\n" +
		"• Ensure a stable internet connection\n" +
		"• Try incognito/private browsing mode\n\n" +
		"*Let me know if you need help with any of these options!*"
}
