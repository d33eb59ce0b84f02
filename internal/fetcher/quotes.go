// Package fetcher talks to the outside world: venue quote endpoints over
// HTTP and chain state over JSON-RPC.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"arb-engine/internal/config"
	"arb-engine/internal/market"
)

// quotePayload is the venue quote endpoint's response body. Prices arrive as
// strings to survive venues that emit high-precision values.
type quotePayload struct {
	Price     string `json:"price"`
	Liquidity string `json:"liquidity"`
	Timestamp int64  `json:"timestamp"`
}

// QuoteClient fetches spot quotes from venue HTTP endpoints. Each venue gets
// its own rate limiter so one slow or strict venue never throttles the rest.
type QuoteClient struct {
	httpClient *http.Client
	cfg        config.FetchConfig
	logger     zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewQuoteClient constructs a QuoteClient.
func NewQuoteClient(cfg config.FetchConfig, logger zerolog.Logger) *QuoteClient {
	return &QuoteClient{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		cfg:        cfg,
		logger:     logger.With().Str("component", "quote_client").Logger(),
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Fetch retrieves one venue's quote for a pair, retrying transient failures
// with a fixed backoff up to the configured attempt budget.
func (c *QuoteClient) Fetch(ctx context.Context, venue config.VenueConfig, pair market.TokenPair) (market.Quote, error) {
	if err := c.limiter(venue.Name).Wait(ctx); err != nil {
		return market.Quote{}, err
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		quote, retryable, err := c.fetchOnce(ctx, venue, pair)
		if err == nil {
			return quote, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		c.logger.Debug().
			Err(err).
			Str("venue", venue.Name).
			Str("pair", pair.String()).
			Int("attempt", attempt).
			Msg("quote fetch retry")
		select {
		case <-ctx.Done():
			return market.Quote{}, ctx.Err()
		case <-time.After(c.cfg.Backoff):
		}
	}
	return market.Quote{}, fmt.Errorf("fetch quote %s %s: %w", venue.Name, pair.String(), lastErr)
}

func (c *QuoteClient) fetchOnce(ctx context.Context, venue config.VenueConfig, pair market.TokenPair) (market.Quote, bool, error) {
	endpoint, err := quoteURL(venue.QuoteURL, pair)
	if err != nil {
		return market.Quote{}, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return market.Quote{}, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return market.Quote{}, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return market.Quote{}, retryable, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload quotePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return market.Quote{}, false, fmt.Errorf("decode response: %w", err)
	}

	price, err := decimal.NewFromString(payload.Price)
	if err != nil {
		return market.Quote{}, false, fmt.Errorf("parse price %q: %w", payload.Price, err)
	}
	liquidity, err := decimal.NewFromString(payload.Liquidity)
	if err != nil {
		return market.Quote{}, false, fmt.Errorf("parse liquidity %q: %w", payload.Liquidity, err)
	}

	ts := time.Now().UTC()
	if payload.Timestamp > 0 {
		ts = time.Unix(payload.Timestamp, 0).UTC()
	}

	return market.Quote{
		Venue:     venue.Name,
		ChainID:   venue.ChainID,
		Pair:      pair,
		Price:     price,
		Liquidity: liquidity,
		Timestamp: ts,
	}, false, nil
}

func (c *QuoteClient) limiter(venue string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[venue]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(c.cfg.RatePerSecond), c.cfg.Burst)
		c.limiters[venue] = lim
	}
	return lim
}

func quoteURL(base string, pair market.TokenPair) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse quote url: %w", err)
	}
	q := u.Query()
	q.Set("base", pair.Base)
	q.Set("quote", pair.Quote)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
