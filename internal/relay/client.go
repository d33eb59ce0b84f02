// Package relay submits trade bundles to a private relay endpoint and polls
// their inclusion status.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"arb-engine/internal/config"
	"arb-engine/internal/executor"
	"arb-engine/internal/route"
)

// RejectionError is a definitive relay refusal. Not retryable: the bundle
// will never land, so the attempt fails immediately.
type RejectionError struct {
	StatusCode int
	Message    string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("relay rejected bundle: status %d: %s", e.StatusCode, e.Message)
}

// submitRequest is the relay's bundle submission body.
type submitRequest struct {
	Pair        string `json:"pair"`
	VenuePath   string `json:"venue_path"`
	SwapVenue   string `json:"swap_venue"`
	Bridge      string `json:"bridge,omitempty"`
	Contract    string `json:"contract"`
	Recipient   string `json:"recipient"`
	AmountIn    string `json:"amount_in"`
	TargetBlock uint64 `json:"target_block"`
}

type submitResponse struct {
	BundleID string `json:"bundle_id"`
	Error    string `json:"error"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Client is the HTTP relay submitter. Requests carry an identity signature
// header computed over the body with the configured key.
type Client struct {
	httpClient *http.Client
	cfg        config.RelayConfig
	signer     *Signer
	contract   string
	logger     zerolog.Logger
}

// NewClient constructs a relay Client.
func NewClient(cfg config.RelayConfig, signer *Signer, contract string, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.SubmitTimeout},
		cfg:        cfg,
		signer:     signer,
		contract:   contract,
		logger:     logger.With().Str("component", "relay").Logger(),
	}
}

// Submit posts the decision as a bundle targeting the given block and returns
// the relay's bundle ID.
func (c *Client) Submit(ctx context.Context, dec route.Decision, targetBlock uint64) (string, error) {
	reqBody := submitRequest{
		Pair:        dec.Opportunity.Pair.String(),
		VenuePath:   dec.Opportunity.VenuePath(),
		SwapVenue:   dec.SwapVenue,
		Contract:    c.contract,
		Recipient:   dec.Recipient,
		AmountIn:    dec.AmountIn.String(),
		TargetBlock: targetBlock,
	}
	if dec.Bridge != nil {
		reqBody.Bridge = dec.Bridge.Name
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("relay: encode bundle: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/bundle", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.signer != nil {
		sig, err := c.signer.SignPayload(body)
		if err != nil {
			return "", err
		}
		req.Header.Set("X-Relay-Signature", sig)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("relay: submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := readErrorBody(resp.Body)
		return "", &RejectionError{StatusCode: resp.StatusCode, Message: msg}
	}

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("relay: decode submit response: %w", err)
	}
	if sr.Error != "" {
		return "", &RejectionError{StatusCode: resp.StatusCode, Message: sr.Error}
	}
	if sr.BundleID == "" {
		return "", fmt.Errorf("relay: submit response missing bundle id")
	}

	c.logger.Info().
		Str("bundle_id", sr.BundleID).
		Uint64("target_block", targetBlock).
		Str("pair", dec.Opportunity.Pair.String()).
		Msg("bundle submitted")

	return sr.BundleID, nil
}

// PollConfirmation asks the relay for a bundle's inclusion status.
func (c *Client) PollConfirmation(ctx context.Context, handle string) (executor.Confirmation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/bundle/"+handle, nil)
	if err != nil {
		return executor.ConfirmationPending, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return executor.ConfirmationPending, fmt.Errorf("relay: poll: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return executor.ConfirmationPending, fmt.Errorf("relay: poll status %d", resp.StatusCode)
	}

	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return executor.ConfirmationPending, fmt.Errorf("relay: decode status: %w", err)
	}

	switch sr.Status {
	case "included", "confirmed":
		return executor.ConfirmationConfirmed, nil
	case "dropped", "failed", "reverted":
		return executor.ConfirmationFailed, nil
	default:
		return executor.ConfirmationPending, nil
	}
}

func readErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	return string(bytes.TrimSpace(data))
}
