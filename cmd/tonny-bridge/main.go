// tonny-bridge connects Telegram chats to the TONNY AI backend workflows.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tonny-ai/telegram-bridge/internal/api"
	"github.com/tonny-ai/telegram-bridge/internal/dispatch"
	"github.com/tonny-ai/telegram-bridge/internal/orchestrator"
	"github.com/tonny-ai/telegram-bridge/internal/progress"
	"github.com/tonny-ai/telegram-bridge/internal/ratelimit"
	"github.com/tonny-ai/telegram-bridge/internal/scheduler"
	"github.com/tonny-ai/telegram-bridge/internal/state"
	"github.com/tonny-ai/telegram-bridge/internal/telegram"
	"github.com/tonny-ai/telegram-bridge/internal/util"
	"github.com/tonny-ai/telegram-bridge/internal/voice"
	"github.com/tonny-ai/telegram-bridge/internal/wallet"
)

// Maintenance intervals for the background sweeps.
const (
	rateLimitSweepInterval    = 15 * time.Minute
	voiceSessionSweepInterval = 30 * time.Minute
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if *flags.telegramToken == "" {
		slog.Error("TELEGRAM_BOT_TOKEN is required")
		os.Exit(1)
	}

	bot, err := telegram.NewClient(*flags.telegramToken)
	if err != nil {
		slog.Error("Failed to create Telegram client", "error", err)
		os.Exit(1)
	}

	limiter := ratelimit.NewLimiter(config.RateLimitMax, config.RateLimitWindow)
	states := state.NewStore(config.ConversationTTL)
	voices := voice.NewProvider(config.VapiAssistantID, config.VapiWebCallURL)
	wallets := wallet.NewClient(wallet.WithTONEndpoint(config.TONAPIEndpoint))

	backends := dispatch.NewDispatcher(map[dispatch.Role]dispatch.Endpoint{
		dispatch.RoleBasic:    {URL: *flags.n8nWebhookURL, Timeout: config.BasicTimeout},
		dispatch.RoleStrategy: {URL: *flags.n8nStrategyWebhookURL, Timeout: config.StrategyTimeout},
	})

	orch := orchestrator.New(orchestrator.Config{
		Messenger: bot,
		Wallets:   wallets,
		Voice:     voices,
		Backends:  backends,
		Limiter:   limiter,
		States:    states,
		Progress:  progress.NewNotifier(nil),
	})

	sched := scheduler.New()
	defer sched.Stop()
	if err := sched.Every(rateLimitSweepInterval, func() {
		if cleaned := limiter.Sweep(); cleaned > 0 {
			slog.Info("rate limit sweep completed", "cleanedEntries", cleaned)
		}
	}); err != nil {
		slog.Error("Failed to schedule rate limit sweep", "error", err)
		os.Exit(1)
	}
	if err := sched.Every(voiceSessionSweepInterval, func() { voices.Sweep() }); err != nil {
		slog.Error("Failed to schedule voice session sweep", "error", err)
		os.Exit(1)
	}

	server := api.NewServer(orch, bot,
		api.WithAddr(*flags.apiAddr),
		api.WithPublicURL(*flags.publicURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping TONNY Telegram bridge",
		"addr", *flags.apiAddr,
		"basicBackendSet", *flags.n8nWebhookURL != "",
		"strategyBackendSet", *flags.n8nStrategyWebhookURL != "",
		"voiceConfigured", voices.Configured())
	if err := server.Run(ctx); err != nil {
		slog.Error("Bridge failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Bridge exited successfully")
}

// Config holds environment configuration.
type Config struct {
	TelegramToken         string
	PublicURL             string
	APIAddr               string
	N8NWebhookURL         string
	N8NStrategyWebhookURL string
	TONAPIEndpoint        string
	VapiAssistantID       string
	VapiWebCallURL        string
	BasicTimeout          time.Duration
	StrategyTimeout       time.Duration
	RateLimitWindow       time.Duration
	RateLimitMax          int
	ConversationTTL       time.Duration
}

// Flags holds command line flag values.
type Flags struct {
	telegramToken         *string
	publicURL             *string
	apiAddr               *string
	n8nWebhookURL         *string
	n8nStrategyWebhookURL *string
}

// initializeLogger sets up structured logging at the level named by
// LOG_LEVEL (debug, info, warn, error; default info).
func initializeLogger() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		TelegramToken:         os.Getenv("TELEGRAM_BOT_TOKEN"),
		PublicURL:             os.Getenv("PUBLIC_URL"),
		APIAddr:               os.Getenv("API_ADDR"),
		N8NWebhookURL:         os.Getenv("N8N_WEBHOOK_URL"),
		N8NStrategyWebhookURL: os.Getenv("N8N_STRATEGY_WEBHOOK_URL"),
		TONAPIEndpoint:        os.Getenv("TON_API_ENDPOINT"),
		VapiAssistantID:       os.Getenv("VAPI_ASSISTANT_ID"),
		VapiWebCallURL:        os.Getenv("VAPI_WEB_CALL_URL"),
		BasicTimeout:          util.ParseDurationEnv("BASIC_TIMEOUT", dispatch.DefaultBasicTimeout),
		StrategyTimeout:       util.ParseDurationEnv("STRATEGY_TIMEOUT", dispatch.DefaultStrategyTimeout),
		RateLimitWindow:       util.ParseDurationEnv("USER_RATE_LIMIT_WINDOW", ratelimit.DefaultWindow),
		RateLimitMax:          util.ParseIntEnv("USER_RATE_LIMIT_MAX", ratelimit.DefaultMaxRequests),
		ConversationTTL:       util.ParseDurationEnv("CONVERSATION_TTL", state.DefaultTTL),
	}

	// PORT is the conventional platform-assigned listen port; API_ADDR wins
	// when both are set.
	if config.APIAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			config.APIAddr = ":" + port
		} else {
			config.APIAddr = api.DefaultAddr
		}
	}
	if config.TONAPIEndpoint == "" {
		config.TONAPIEndpoint = wallet.DefaultTONEndpoint
	}

	return config
}

// parseCommandLineFlags parses flags with environment values as defaults.
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		telegramToken:         flag.String("telegram-token", config.TelegramToken, "Telegram bot token"),
		publicURL:             flag.String("public-url", config.PublicURL, "publicly reachable base URL for webhook registration"),
		apiAddr:               flag.String("addr", config.APIAddr, "HTTP listen address"),
		n8nWebhookURL:         flag.String("n8n-url", config.N8NWebhookURL, "basic-question backend webhook URL"),
		n8nStrategyWebhookURL: flag.String("n8n-strategy-url", config.N8NStrategyWebhookURL, "strategy-analysis backend webhook URL"),
	}
	flag.Parse()
	return flags
}
