package intent

import (
	"strings"
	"testing"
)

const (
	testTONAddress = "EQDrjaLahLkMB-hMCmkzOyBuHJ139ZUYmPHu6RRBKnbdLIYI"
	testETHAddress = "0x52908400098527886E0F7030069857D2E4169EE7"
)

func TestClassifyWalletAddresses(t *testing.T) {
	got := Classify(testTONAddress)
	if got.Kind != KindWallet || got.Chain != ChainTON {
		t.Fatalf("expected TON wallet intent, got %+v", got)
	}
	if got.Address != testTONAddress {
		t.Errorf("expected address %q, got %q", testTONAddress, got.Address)
	}

	got = Classify("check " + testETHAddress + " for me")
	if got.Kind != KindWallet || got.Chain != ChainETH {
		t.Fatalf("expected ETH wallet intent, got %+v", got)
	}
	if got.Address != testETHAddress {
		t.Errorf("expected address %q, got %q", testETHAddress, got.Address)
	}
}

func TestClassifyAddressEmbeddedInSentence(t *testing.T) {
	got := Classify("here is my wallet " + testTONAddress + " what should I do?")
	if got.Kind != KindWallet {
		t.Errorf("expected wallet intent for embedded address, got %s", got.Kind)
	}
}

func TestClassifyAddressBeatsAffirmative(t *testing.T) {
	// Address detection is highest priority even when the message also
	// contains an affirmative word.
	got := Classify("yes " + testTONAddress)
	if got.Kind != KindWallet {
		t.Errorf("expected wallet intent, got %s", got.Kind)
	}
}

func TestClassifyRejectsWrongLengthTokens(t *testing.T) {
	long := testTONAddress + "X" // 49 chars, no word boundary at 48
	if got := Classify(long); got.Kind == KindWallet {
		t.Errorf("49-char token should not classify as wallet")
	}
	short := testTONAddress[:47]
	if got := Classify(short); got.Kind == KindWallet {
		t.Errorf("47-char token should not classify as wallet")
	}
}

func TestClassifyStartCommand(t *testing.T) {
	if got := Classify("/start"); got.Kind != KindStart {
		t.Errorf("expected start intent, got %s", got.Kind)
	}
	if got := Classify("  /start  "); got.Kind != KindStart {
		t.Errorf("expected start intent for padded input, got %s", got.Kind)
	}
	if got := Classify("/start trading now"); got.Kind == KindStart {
		t.Errorf("/start with trailing text should not be a start command")
	}
}

func TestClassifyVoiceBeatsAffirmative(t *testing.T) {
	got := Classify("Yes, call me")
	if got.Kind != KindVoiceRequest {
		t.Errorf("expected voice request for %q, got %s", "Yes, call me", got.Kind)
	}
}

func TestClassifyVoiceTroubleshooting(t *testing.T) {
	for _, text := range []string{"the call didn't work", "I can't hear anything", "no sound on my end"} {
		if got := Classify(text); got.Kind != KindVoiceTroubleshooting {
			t.Errorf("expected troubleshooting for %q, got %s", text, got.Kind)
		}
	}
}

func TestClassifyAffirmativeAndNegative(t *testing.T) {
	for _, text := range []string{"yes", "Y", "YEAH", " yep ", "ok", "👍"} {
		if got := Classify(text); got.Kind != KindAffirmative {
			t.Errorf("expected affirmative for %q, got %s", text, got.Kind)
		}
	}
	for _, text := range []string{"no", "N", "Nope", "no thanks", "👎"} {
		if got := Classify(text); got.Kind != KindNegative {
			t.Errorf("expected negative for %q, got %s", text, got.Kind)
		}
	}
	// Near misses fall through to the general question path.
	for _, text := range []string{"yess", "nope!", "yes please do"} {
		if got := Classify(text); got.Kind != KindBasicQuestion {
			t.Errorf("expected basic question for %q, got %s", text, got.Kind)
		}
	}
}

func TestClassifyFallbackCarriesText(t *testing.T) {
	got := Classify("  What are perpetual futures?  ")
	if got.Kind != KindBasicQuestion {
		t.Fatalf("expected basic question, got %s", got.Kind)
	}
	if got.Text != "What are perpetual futures?" {
		t.Errorf("expected trimmed text, got %q", got.Text)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	inputs := []string{"yes", testTONAddress, "call me", "what is DeFi?", strings.Repeat("a", 100)}
	for _, in := range inputs {
		first := Classify(in)
		for i := 0; i < 3; i++ {
			if got := Classify(in); got != first {
				t.Errorf("classification of %q is not deterministic: %+v vs %+v", in, first, got)
			}
		}
	}
}
