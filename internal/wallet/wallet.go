// Package wallet looks up on-chain balances for detected wallet addresses
// and formats them for display.
//
// TON balances come from a toncenter JSON-RPC endpoint. Ethereum detection is
// wired through the classifier but balance lookup for it is not implemented
// yet; lookups report a clean unsupported result instead of failing loudly.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/tonny-ai/telegram-bridge/internal/intent"
)

// DefaultTONEndpoint is the TON JSON-RPC endpoint used when none is
// configured. Testnet, matching the demo deployment.
const DefaultTONEndpoint = "https://testnet.toncenter.com/api/v2/jsonRPC"

const nanotonsPerTON = 1e9

// Snapshot is a normalized balance record for one looked-up address.
type Snapshot struct {
	Success  bool
	Address  string
	Chain    intent.Chain
	Balance  float64 // whole-coin units
	Currency string
	Raw      string // raw balance as reported by the chain API
	Err      string // failure description when not Success; never user-facing
}

// Client fetches wallet data over HTTP.
type Client struct {
	tonEndpoint string
	http        *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTONEndpoint overrides the TON JSON-RPC endpoint.
func WithTONEndpoint(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.tonEndpoint = url
		}
	}
}

// WithHTTPClient overrides the HTTP client used for lookups.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a wallet lookup client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		tonEndpoint: DefaultTONEndpoint,
		http:        &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup fetches the balance for an address on the given chain. Transport and
// decode failures return an error; an unsupported chain returns a
// non-successful Snapshot with a nil error.
func (c *Client) Lookup(ctx context.Context, address string, chain intent.Chain) (Snapshot, error) {
	switch chain {
	case intent.ChainTON:
		return c.lookupTON(ctx, address)
	case intent.ChainETH:
		slog.Warn("eth balance lookup requested but not implemented", "addressPreview", preview(address))
		return Snapshot{
			Address:  address,
			Chain:    chain,
			Currency: "ETH",
			Err:      "ethereum wallet support not implemented yet",
		}, nil
	default:
		return Snapshot{Address: address, Chain: chain, Err: "unsupported chain"},
			fmt.Errorf("unsupported chain type %q", chain)
	}
}

func (c *Client) lookupTON(ctx context.Context, address string) (Snapshot, error) {
	start := time.Now()
	snap := Snapshot{Address: address, Chain: intent.ChainTON, Currency: "TON"}

	reqBody, err := json.Marshal(map[string]any{
		"id":      1,
		"jsonrpc": "2.0",
		"method":  "getAddressInformation",
		"params":  map[string]string{"address": address},
	})
	if err != nil {
		snap.Err = err.Error()
		return snap, fmt.Errorf("marshal ton request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tonEndpoint, bytes.NewReader(reqBody))
	if err != nil {
		snap.Err = err.Error()
		return snap, fmt.Errorf("build ton request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		snap.Err = err.Error()
		slog.Error("ton lookup failed", "error", err, "addressPreview", preview(address), "duration", time.Since(start))
		return snap, fmt.Errorf("ton lookup: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		snap.Err = err.Error()
		return snap, fmt.Errorf("read ton response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snap.Err = fmt.Sprintf("ton api status %d", resp.StatusCode)
		return snap, fmt.Errorf("ton api status %d", resp.StatusCode)
	}

	balance := gjson.GetBytes(body, "result.balance")
	if !balance.Exists() {
		snap.Err = "balance missing from ton response"
		return snap, fmt.Errorf("balance missing from ton response")
	}

	snap.Success = true
	snap.Raw = balance.String()
	snap.Balance = balance.Float() / nanotonsPerTON

	slog.Info("ton wallet data retrieved", "addressPreview", preview(address), "balanceTON", snap.Balance, "duration", time.Since(start))
	return snap, nil
}

// FormatReport renders a successful Snapshot as the user-facing balance
// analysis with the strategy yes/no call to action.
func FormatReport(snap Snapshot) string {
	if snap.Chain != intent.ChainTON {
		return fmt.Sprintf("📱 %s wallet detected, but this feature is coming soon!\n\n"+
			"**Type \"yes\" if you'd like strategy advice anyway, or ask me any crypto question!**", snap.Chain)
	}

	balance := strconv.FormatFloat(snap.Balance, 'f', 2, 64)
	if snap.Balance == 0 {
		return "💳 **Your TON Wallet Analysis:**\n\n" +
			"💰 Balance: **0 TON** (Empty wallet)\n\n" +
			"💡 **Want personalized investment strategies?**\n" +
			"Even with an empty wallet, I can suggest the best entry points and DeFi opportunities.\n\n" +
			"**Just type \"yes\" to get tailored investment advice!**"
	}

	return "💳 **Your TON Wallet Analysis:**\n\n" +
		"💰 Balance: **" + balance + " TON**\n\n" +
		"🚀 **Ready for a personalized investment strategy?**\n" +
		"I can analyze current market trends and suggest optimal moves for your " + balance + " TON.\n\n" +
		"**Type \"yes\" to get your custom strategy, or \"no\" if you just want general crypto advice.**"
}

// ContextText summarizes a Snapshot for use as backend or voice-call context.
func ContextText(snap Snapshot) string {
	return fmt.Sprintf("%s wallet %s holding %s %s",
		snap.Chain, preview(snap.Address), strconv.FormatFloat(snap.Balance, 'f', 2, 64), snap.Currency)
}

// preview shortens an address for logs and context strings; full addresses
// stay out of both.
func preview(address string) string {
	if len(address) <= 8 {
		return address
	}
	return address[:8] + "..."
}
