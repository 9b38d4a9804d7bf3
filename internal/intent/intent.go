// Package intent classifies inbound chat messages into typed intents.
//
// Classification is a pure function over the message text. Context-dependent
// meaning (an "affirmative" reply only matters when a confirmation is
// pending) is resolved by the orchestrator, not here.
package intent

import (
	"regexp"
	"strings"
)

// Kind identifies the classified purpose of one inbound message.
type Kind string

const (
	// KindWallet is a message containing a recognizable wallet address.
	KindWallet Kind = "wallet"
	// KindStart is the exact /start command.
	KindStart Kind = "start_command"
	// KindVoiceRequest asks for a voice conversation.
	KindVoiceRequest Kind = "voice_request"
	// KindVoiceTroubleshooting reports problems with a voice call.
	KindVoiceTroubleshooting Kind = "voice_troubleshooting"
	// KindAffirmative is a bare yes-style reply.
	KindAffirmative Kind = "affirmative"
	// KindNegative is a bare no-style reply.
	KindNegative Kind = "negative"
	// KindBasicQuestion is the fallback for everything else.
	KindBasicQuestion Kind = "basic_question"
)

// Chain identifies the blockchain family a detected address belongs to.
type Chain string

const (
	ChainTON Chain = "TON"
	ChainETH Chain = "ETH"
)

// Intent is the classified form of one inbound message. Address and Chain are
// set only for KindWallet; Text always carries the trimmed original message.
type Intent struct {
	Kind    Kind
	Address string
	Chain   Chain
	Text    string
}

var (
	tonAddressRegex = regexp.MustCompile(`\b[A-Za-z0-9_-]{48}\b`)
	ethAddressRegex = regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`)
)

// Phrase sets for voice intents. Matched as substrings of the lowercased
// message so "yes, call me please" still routes to voice.
var (
	voiceRequestPhrases = []string{
		"call me",
		"talk to me",
		"voice call",
		"speak to me",
		"can we talk",
		"let's talk",
		"lets talk",
	}
	voiceTroubleshootingPhrases = []string{
		"call didn't work",
		"call didnt work",
		"call failed",
		"can't hear",
		"cant hear",
		"no sound",
		"no audio",
		"voice not working",
		"audio not working",
	}
)

// Exact-match word sets for short confirmation replies. Near-miss phrasing
// ("yess", "nope!") intentionally falls through to the basic-question path.
var (
	affirmativeWords = map[string]struct{}{
		"yes": {}, "y": {}, "yeah": {}, "yep": {}, "yup": {},
		"sure": {}, "ok": {}, "okay": {}, "👍": {},
	}
	negativeWords = map[string]struct{}{
		"no": {}, "n": {}, "nope": {}, "nah": {}, "no thanks": {}, "👎": {},
	}
)

// Classify maps a raw message to an Intent. The priority order is load-bearing:
// address detection comes first so an address embedded in a longer sentence is
// still recognized, and voice phrases are checked before the affirmative set
// so "yes, call me" routes to voice rather than confirmation.
func Classify(text string) Intent {
	trimmed := strings.TrimSpace(text)
	lowered := strings.ToLower(trimmed)

	if addr := tonAddressRegex.FindString(trimmed); addr != "" {
		return Intent{Kind: KindWallet, Address: addr, Chain: ChainTON, Text: trimmed}
	}
	if addr := ethAddressRegex.FindString(trimmed); addr != "" {
		return Intent{Kind: KindWallet, Address: addr, Chain: ChainETH, Text: trimmed}
	}

	if trimmed == "/start" {
		return Intent{Kind: KindStart, Text: trimmed}
	}

	for _, phrase := range voiceRequestPhrases {
		if strings.Contains(lowered, phrase) {
			return Intent{Kind: KindVoiceRequest, Text: trimmed}
		}
	}
	for _, phrase := range voiceTroubleshootingPhrases {
		if strings.Contains(lowered, phrase) {
			return Intent{Kind: KindVoiceTroubleshooting, Text: trimmed}
		}
	}

	if _, ok := affirmativeWords[lowered]; ok {
		return Intent{Kind: KindAffirmative, Text: trimmed}
	}
	if _, ok := negativeWords[lowered]; ok {
		return Intent{Kind: KindNegative, Text: trimmed}
	}

	return Intent{Kind: KindBasicQuestion, Text: trimmed}
}
