// Package orchestrator drives one conversation turn from inbound text to a
// delivered reply.
//
// Per turn: admission check, intent classification, conversation-state
// lookup, backend dispatch (with progress ticks for slow roles), delivery of
// the normalized reply, and a state update. Every branch terminates in a
// delivery; a turn is never left silently unanswered.
package orchestrator

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/tonny-ai/telegram-bridge/internal/dispatch"
	"github.com/tonny-ai/telegram-bridge/internal/intent"
	"github.com/tonny-ai/telegram-bridge/internal/progress"
	"github.com/tonny-ai/telegram-bridge/internal/ratelimit"
	"github.com/tonny-ai/telegram-bridge/internal/state"
	"github.com/tonny-ai/telegram-bridge/internal/voice"
	"github.com/tonny-ai/telegram-bridge/internal/wallet"
)

// Turn is one inbound message with its conversation coordinates.
type Turn struct {
	ChatID    int64
	UserID    int64
	UserName  string
	Text      string
	RequestID string
}

// Messenger delivers text to a conversation.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// BalanceLookup resolves a detected wallet address to a balance snapshot.
type BalanceLookup interface {
	Lookup(ctx context.Context, address string, chain intent.Chain) (wallet.Snapshot, error)
}

// VoiceSessions creates joinable voice-call sessions.
type VoiceSessions interface {
	CreateSession(ctx context.Context, userID int64, contextText string) (voice.Session, error)
}

// Dispatcher settles backend calls as outcomes.
type Dispatcher interface {
	Dispatch(ctx context.Context, role dispatch.Role, req dispatch.Request) dispatch.Outcome
}

// Config carries the orchestrator's collaborators.
type Config struct {
	Messenger Messenger
	Wallets   BalanceLookup
	Voice     VoiceSessions
	Backends  Dispatcher
	Limiter   *ratelimit.Limiter
	States    *state.Store
	Progress  *progress.Notifier
}

// Orchestrator routes classified turns to backends and capabilities.
type Orchestrator struct {
	messenger Messenger
	wallets   BalanceLookup
	voice     VoiceSessions
	backends  Dispatcher
	limiter   *ratelimit.Limiter
	states    *state.Store
	progress  *progress.Notifier
}

// New creates an Orchestrator from its collaborators.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		messenger: cfg.Messenger,
		wallets:   cfg.Wallets,
		voice:     cfg.Voice,
		backends:  cfg.Backends,
		limiter:   cfg.Limiter,
		states:    cfg.States,
		progress:  cfg.Progress,
	}
}

// HandleTurn processes one inbound message end to end. It never returns an
// error: every failure, including a panic in a branch, resolves to a fixed
// user-safe reply and a cleared conversation state.
func (o *Orchestrator) HandleTurn(ctx context.Context, turn Turn) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while handling turn", "panic", r, "userID", turn.UserID, "requestID", turn.RequestID)
			o.states.Clear(turn.UserID)
			o.deliver(ctx, turn, msgInternalError)
		}
	}()

	in := intent.Classify(turn.Text)
	slog.Info("turn classified", "intent", in.Kind, "userID", turn.UserID, "requestID", turn.RequestID)

	// /start bypasses rate limiting entirely.
	if in.Kind == intent.KindStart {
		o.states.Clear(turn.UserID)
		o.deliver(ctx, turn, greeting(turn.UserName))
		return
	}

	if d := o.limiter.CheckAndAdmit(strconv.FormatInt(turn.UserID, 10)); !d.Admitted {
		o.deliver(ctx, turn, rateLimitMessage(o.limiter.Max(), d.RetryAfterSeconds))
		return
	}

	switch in.Kind {
	case intent.KindWallet:
		o.handleWallet(ctx, turn, in)
	case intent.KindAffirmative:
		o.handleAffirmative(ctx, turn, in)
	case intent.KindNegative:
		o.states.Clear(turn.UserID)
		o.deliver(ctx, turn, msgNoWorries)
	case intent.KindVoiceRequest:
		o.handleVoiceRequest(ctx, turn)
	case intent.KindVoiceTroubleshooting:
		o.states.Clear(turn.UserID)
		o.deliver(ctx, turn, voice.TroubleshootingMessage())
	default:
		o.handleBasicQuestion(ctx, turn, in.Text)
	}
}

// handleWallet looks up the detected address and parks an
// AwaitingStrategyConfirmation context so a following "yes" can request the
// strategy analysis. Unsupported chains still get the prompt; only a lookup
// error aborts the flow.
func (o *Orchestrator) handleWallet(ctx context.Context, turn Turn, in intent.Intent) {
	snap, err := o.wallets.Lookup(ctx, in.Address, in.Chain)
	if err != nil {
		slog.Warn("wallet lookup failed", "error", err, "chain", in.Chain, "userID", turn.UserID, "requestID", turn.RequestID)
		o.states.Clear(turn.UserID)
		o.deliver(ctx, turn, walletFailureMessage(in.Chain))
		return
	}

	o.states.Set(turn.UserID, state.ContextAwaitingStrategyConfirmation, snap)
	o.deliver(ctx, turn, wallet.FormatReport(snap))
}

// handleAffirmative requests the strategy analysis when a confirmation is
// pending; a bare "yes" with nothing pending degrades to a general question.
func (o *Orchestrator) handleAffirmative(ctx context.Context, turn Turn, in intent.Intent) {
	convCtx, payload := o.states.Get(turn.UserID)
	snap, ok := payload.(wallet.Snapshot)
	if convCtx != state.ContextAwaitingStrategyConfirmation || !ok {
		o.handleBasicQuestion(ctx, turn, in.Text)
		return
	}

	session := o.progress.Start(func(text string) {
		o.deliver(ctx, turn, text)
	})
	out := o.backends.Dispatch(ctx, dispatch.RoleStrategy, dispatch.Request{
		Message:   in.Text,
		UserID:    turn.UserID,
		Intent:    "strategy_request",
		RequestID: turn.RequestID,
		Extra: map[string]any{
			"walletContext":  wallet.ContextText(snap),
			"walletBalance":  snap.Balance,
			"walletCurrency": snap.Currency,
		},
	})
	session.Cancel()

	if out.OK {
		o.deliver(ctx, turn, msgStrategyPrefix+out.Text)
	} else {
		o.deliver(ctx, turn, msgStrategyFailurePrefix+out.UserMessage)
	}
	o.states.Clear(turn.UserID)
}

// handleVoiceRequest opens a voice session, carrying the wallet context along
// when one is parked for the user.
func (o *Orchestrator) handleVoiceRequest(ctx context.Context, turn Turn) {
	contextText := ""
	if _, payload := o.states.Get(turn.UserID); payload != nil {
		if snap, ok := payload.(wallet.Snapshot); ok {
			contextText = wallet.ContextText(snap)
		}
	}

	session, err := o.voice.CreateSession(ctx, turn.UserID, contextText)
	if err != nil {
		slog.Error("voice session creation failed", "error", err, "userID", turn.UserID, "requestID", turn.RequestID)
		o.states.Clear(turn.UserID)
		o.deliver(ctx, turn, msgVoiceFailure)
		return
	}

	o.states.Clear(turn.UserID)
	o.deliver(ctx, turn, voice.FormatJoinMessage(session))
}

// handleBasicQuestion forwards the text to the general-purpose backend and
// appends the cross-sell suffix to whatever came back.
func (o *Orchestrator) handleBasicQuestion(ctx context.Context, turn Turn, text string) {
	out := o.backends.Dispatch(ctx, dispatch.RoleBasic, dispatch.Request{
		Message:   text,
		UserID:    turn.UserID,
		Intent:    string(intent.KindBasicQuestion),
		RequestID: turn.RequestID,
	})

	if out.OK {
		o.deliver(ctx, turn, out.Text+crossSellSuffix)
	} else {
		o.deliver(ctx, turn, out.UserMessage)
	}
	o.states.Clear(turn.UserID)
}

// deliver sends the reply. Delivery failures are logged, not retried here:
// the transport already does its one formatting fallback, and the inbound
// webhook was acked long ago.
func (o *Orchestrator) deliver(ctx context.Context, turn Turn, text string) {
	if err := o.messenger.SendMessage(ctx, turn.ChatID, text); err != nil {
		slog.Error("reply delivery failed", "error", err, "chatID", turn.ChatID, "userID", turn.UserID, "requestID", turn.RequestID)
	}
}
