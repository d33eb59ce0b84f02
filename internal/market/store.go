package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"arb-engine/internal/config"
)

// ErrNoQuotes indicates no venue produced a usable quote this cycle. It is
// cycle-fatal, not process-fatal: the loop waits for the next interval.
var ErrNoQuotes = errors.New("market: no quotes available")

// PartialFetchError reports venues that did not answer within the fetch
// budget. The snapshot returned alongside it still carries every quote that
// succeeded.
type PartialFetchError struct {
	Outages []Outage
}

func (e *PartialFetchError) Error() string {
	names := make([]string, 0, len(e.Outages))
	for _, o := range e.Outages {
		names = append(names, o.Venue)
	}
	return fmt.Sprintf("market: %d venue fetches failed: %s", len(e.Outages), strings.Join(names, ","))
}

// Fetcher retrieves a single venue quote. Implementations are best-effort and
// bounded-latency; retry policy lives behind this boundary.
type Fetcher interface {
	Fetch(ctx context.Context, venue config.VenueConfig, pair TokenPair) (Quote, error)
}

// Store normalises raw venue observations into cycle-scoped snapshots.
type Store struct {
	fetcher Fetcher
	venues  []config.VenueConfig
	pairs   []TokenPair
	limit   int
	logger  zerolog.Logger
}

// NewStore constructs a quote store over the configured venues and pairs.
// limit bounds simultaneous outbound fetches.
func NewStore(fetcher Fetcher, venues []config.VenueConfig, pairs []TokenPair, limit int, logger zerolog.Logger) *Store {
	if limit <= 0 {
		limit = 10
	}
	ordered := make([]config.VenueConfig, len(venues))
	copy(ordered, venues)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	return &Store{
		fetcher: fetcher,
		venues:  ordered,
		pairs:   pairs,
		limit:   limit,
		logger:  logger.With().Str("component", "quote_store").Logger(),
	}
}

// Refresh fetches every venue/pair combination concurrently under the
// concurrency budget and returns a snapshot stamped with the given cycle.
// A slow venue delays only its own quote, never the rest of the snapshot.
// Returns ErrNoQuotes when nothing succeeded, or a *PartialFetchError when
// some venues are missing; the snapshot is usable in the latter case.
func (s *Store) Refresh(ctx context.Context, cycle time.Time, blockNumber uint64) (Snapshot, error) {
	snap := Snapshot{
		Cycle:       cycle,
		BlockNumber: blockNumber,
		Quotes:      make(map[string][]Quote, len(s.pairs)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)

	for _, pair := range s.pairs {
		for _, venue := range s.venues {
			pair, venue := pair, venue
			g.Go(func() error {
				quote, err := s.fetcher.Fetch(gctx, venue, pair)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					// Transient: tag the outage and keep going.
					s.logger.Warn().Err(err).
						Str("venue", venue.Name).
						Str("pair", pair.String()).
						Msg("venue fetch failed")
					snap.Outages = append(snap.Outages, Outage{Venue: venue.Name, Pair: pair, Err: err.Error()})
					return nil
				}
				if quote.Price.Sign() <= 0 {
					s.logger.Warn().
						Str("venue", venue.Name).
						Str("pair", pair.String()).
						Str("price", quote.Price.String()).
						Msg("discarding non-positive quote")
					snap.Outages = append(snap.Outages, Outage{Venue: venue.Name, Pair: pair, Err: "non-positive price"})
					return nil
				}
				key := pair.String()
				snap.Quotes[key] = append(snap.Quotes[key], quote)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	// Deterministic downstream iteration: quotes sorted by venue name.
	for key := range snap.Quotes {
		quotes := snap.Quotes[key]
		sort.Slice(quotes, func(i, j int) bool { return quotes[i].Venue < quotes[j].Venue })
		snap.Quotes[key] = quotes
	}
	sort.Slice(snap.Outages, func(i, j int) bool {
		if snap.Outages[i].Venue != snap.Outages[j].Venue {
			return snap.Outages[i].Venue < snap.Outages[j].Venue
		}
		return snap.Outages[i].Pair.String() < snap.Outages[j].Pair.String()
	})

	if snap.Empty() {
		return snap, ErrNoQuotes
	}
	if len(snap.Outages) > 0 {
		return snap, &PartialFetchError{Outages: snap.Outages}
	}
	return snap, nil
}
