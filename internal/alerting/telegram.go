// Package alerting pushes trade outcome notifications to external channels.
package alerting

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"arb-engine/internal/config"
	"arb-engine/internal/executor"
)

// Notifier delivers one message to a channel.
type Notifier interface {
	Notify(ctx context.Context, message string) error
	Name() string
}

// TelegramNotifier posts messages through the Telegram bot API.
type TelegramNotifier struct {
	cfg        config.TelegramConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewTelegramNotifier constructs a TelegramNotifier.
func NewTelegramNotifier(cfg config.TelegramConfig, logger zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     logger.With().Str("component", "telegram").Logger(),
	}
}

func (t *TelegramNotifier) Name() string { return "telegram" }

// Notify sends one message to the configured chat.
func (t *TelegramNotifier) Notify(ctx context.Context, message string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.APIBase, t.cfg.BotToken)
	form := url.Values{}
	form.Set("chat_id", t.cfg.ChatID)
	form.Set("text", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram send: status %d", resp.StatusCode)
	}
	return nil
}

// Dispatcher fans one event out to every configured notifier. Notification
// failures are logged, never propagated: alerting must not affect trading.
type Dispatcher struct {
	notifiers []Notifier
	logger    zerolog.Logger
}

// NewDispatcher builds the notifier set from configuration.
func NewDispatcher(cfg config.AlertingConfig, logger zerolog.Logger) *Dispatcher {
	d := &Dispatcher{logger: logger.With().Str("component", "alerting").Logger()}
	if !cfg.Enabled {
		return d
	}
	for _, channel := range cfg.Channels {
		if channel == "telegram" && cfg.Telegram.Enabled {
			d.notifiers = append(d.notifiers, NewTelegramNotifier(cfg.Telegram, logger))
		}
	}
	return d
}

// AttemptFinished formats and dispatches an attempt's terminal outcome.
func (d *Dispatcher) AttemptFinished(ctx context.Context, a executor.Attempt) {
	if len(d.notifiers) == 0 {
		return
	}
	d.dispatch(ctx, FormatAttempt(a))
}

func (d *Dispatcher) dispatch(ctx context.Context, message string) {
	for _, n := range d.notifiers {
		if err := n.Notify(ctx, message); err != nil {
			d.logger.Warn().Err(err).Str("channel", n.Name()).Msg("notification failed")
		}
	}
}

// FormatAttempt renders a terminal attempt as a human-readable alert.
func FormatAttempt(a executor.Attempt) string {
	opp := a.Decision.Opportunity
	var b strings.Builder
	switch a.State {
	case executor.StateConfirmed:
		b.WriteString("✅ Trade confirmed\n")
	case executor.StateFailed:
		b.WriteString("❌ Trade failed\n")
	case executor.StateExpired:
		b.WriteString("⏱ Trade expired\n")
	default:
		b.WriteString("Trade update\n")
	}
	fmt.Fprintf(&b, "Pair: %s\n", opp.Pair.String())
	fmt.Fprintf(&b, "Path: %s\n", opp.VenuePath())
	fmt.Fprintf(&b, "Amount in: %s\n", a.Decision.AmountIn.String())
	fmt.Fprintf(&b, "Expected profit: %s\n", opp.ExpectedProfit.String())
	fmt.Fprintf(&b, "Target block: %d", a.TargetBlock)
	if a.Reason != "" {
		fmt.Fprintf(&b, "\nReason: %s", a.Reason)
	}
	return b.String()
}
