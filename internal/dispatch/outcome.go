package dispatch

// FailureKind classifies why a backend dispatch failed.
type FailureKind string

const (
	// KindConfiguration means the endpoint URL for the role is unset.
	// Not retryable; an operator has to fix the deployment.
	KindConfiguration FailureKind = "configuration"
	// KindTimeout means the backend did not answer within the role's budget.
	KindTimeout FailureKind = "timeout"
	// KindConnectionRefused means the backend host is unreachable
	// (connection refused or DNS failure).
	KindConnectionRefused FailureKind = "connection_refused"
	// KindServerError means the backend answered with a 5xx status.
	KindServerError FailureKind = "server_error"
	// KindRateLimited means the backend answered 429.
	KindRateLimited FailureKind = "rate_limited"
	// KindBadRequest means the backend rejected the payload with 400,
	// which indicates a bug in payload construction rather than load.
	KindBadRequest FailureKind = "bad_request"
	// KindUnknown is the catch-all for everything else.
	KindUnknown FailureKind = "unknown"
)

// UserMessage maps a failure kind to its fixed, user-safe message. The map is
// total: unrecognized kinds get the unknown-error message, and raw backend
// error text never reaches the user.
func (k FailureKind) UserMessage() string {
	switch k {
	case KindConfiguration:
		return "I'm not properly configured yet. Please check back soon!"
	case KindTimeout:
		return "Request took too long, please try again"
	case KindConnectionRefused:
		return "I can't reach my AI brain right now. Please try again later."
	case KindServerError:
		return "I'm having trouble thinking right now, try again in a moment"
	case KindRateLimited:
		return "I'm receiving too many requests right now, please try again later"
	case KindBadRequest:
		return "I couldn't process that request properly"
	default:
		return "An error occurred processing your request. Please try again."
	}
}

// Outcome is the settled result of one backend dispatch. The orchestrator
// branches only on Outcome; raw transport errors never cross this boundary.
type Outcome struct {
	OK bool
	// Text is the normalized display string when OK.
	Text string
	// Kind and UserMessage describe the failure when not OK.
	Kind        FailureKind
	UserMessage string
}

// Success wraps a normalized display string in an Outcome.
func Success(text string) Outcome {
	return Outcome{OK: true, Text: text}
}

// Failure builds the Outcome for a classified failure, resolving the fixed
// user-safe message for the kind.
func Failure(kind FailureKind) Outcome {
	return Outcome{Kind: kind, UserMessage: kind.UserMessage()}
}
