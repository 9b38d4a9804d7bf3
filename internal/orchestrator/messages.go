package orchestrator

import (
	"fmt"

	"github.com/tonny-ai/telegram-bridge/internal/intent"
)

// Fixed user-facing strings. Every failure path lands on one of these; raw
// backend or transport error text never reaches the user.
const (
	msgInternalError = "Sorry, I encountered an error processing your request. Please try again in a moment."

	msgNoWorries = "👍 No worries! Feel free to ask me any crypto questions, or share your wallet address anytime for a personalized analysis."

	msgVoiceFailure = "❌ I couldn't set up a voice call right now. Please try again in a few minutes."

	msgStrategyPrefix = "🚀 **Your Personalized Strategy:**\n\n"

	msgStrategyFailurePrefix = "😅 I couldn't finish your strategy analysis. "

	// crossSellSuffix is appended to every general-question answer.
	crossSellSuffix = "\n\n💡 _You can also share your TON wallet address for a personalized analysis, or say \"call me\" to talk strategy by voice._"
)

func greeting(userName string) string {
	if userName == "" {
		userName = "there"
	}
	return fmt.Sprintf("🤖 Hello %s! I'm TONNY, your crypto strategy assistant.\n\n"+
		"Ask me anything about crypto markets, DeFi, or investment strategies!\n\n"+
		"Example: \"What are perpetual futures?\"", userName)
}

func rateLimitMessage(maxPerWindow, retryAfterSeconds int) string {
	return fmt.Sprintf("⏱️ Please wait a moment before asking another question. "+
		"You can ask up to %d questions per minute.\n"+
		"⏰ Try again in %d seconds.", maxPerWindow, retryAfterSeconds)
}

func walletFailureMessage(chain intent.Chain) string {
	return fmt.Sprintf("❌ I detected a %s wallet address but couldn't process it right now. "+
		"Let me help you with general crypto questions instead!", chain)
}
