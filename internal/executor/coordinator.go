// Package executor owns the attempt table: at most one in-flight attempt per
// opportunity key, with a monotonic lifecycle per attempt.
package executor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"arb-engine/internal/route"
)

// ErrDuplicateInFlight rejects a decision whose key already has a live
// attempt. The caller drops the decision; the next cycle re-evaluates.
var ErrDuplicateInFlight = errors.New("executor: attempt already in flight for key")

// Confirmation is the submitter's answer to one confirmation poll.
type Confirmation string

const (
	ConfirmationPending   Confirmation = "pending"
	ConfirmationConfirmed Confirmation = "confirmed"
	ConfirmationFailed    Confirmation = "failed"
)

// Submitter delivers a decision to the execution backend and reports on it.
type Submitter interface {
	// Submit returns an opaque handle used for confirmation polling.
	Submit(ctx context.Context, dec route.Decision, targetBlock uint64) (string, error)
	// PollConfirmation reports the current fate of a submitted attempt.
	PollConfirmation(ctx context.Context, handle string) (Confirmation, error)
}

// Options bound attempt lifecycles.
type Options struct {
	// TargetBlockOffset is added to the opportunity's block number to pick
	// the submission target block.
	TargetBlockOffset uint64
	// KeyBucketBlocks widens the dedup bucket beyond a single block.
	KeyBucketBlocks uint64
	// AttemptDeadline expires attempts that never reach a terminal state.
	AttemptDeadline time.Duration
	// ConfirmPollInterval paces confirmation polling after submission.
	ConfirmPollInterval time.Duration
}

// Coordinator serialises execution per opportunity key and drives each
// attempt through its lifecycle on a dedicated goroutine.
type Coordinator struct {
	opts      Options
	submitter Submitter
	logger    zerolog.Logger

	mu       sync.Mutex
	inflight map[string]*Attempt
	history  []Attempt

	onTerminal func(Attempt)
	wg         sync.WaitGroup
	now        func() time.Time
}

// New constructs a Coordinator. onTerminal, if non-nil, fires once per
// attempt after it reaches a terminal state.
func New(opts Options, submitter Submitter, onTerminal func(Attempt), logger zerolog.Logger) *Coordinator {
	if opts.AttemptDeadline <= 0 {
		opts.AttemptDeadline = 90 * time.Second
	}
	if opts.ConfirmPollInterval <= 0 {
		opts.ConfirmPollInterval = 3 * time.Second
	}
	return &Coordinator{
		opts:       opts,
		submitter:  submitter,
		logger:     logger.With().Str("component", "executor").Logger(),
		inflight:   make(map[string]*Attempt),
		onTerminal: onTerminal,
		now:        time.Now,
	}
}

// Execute registers an attempt for the decision and starts driving it in the
// background. Returns ErrDuplicateInFlight when the key is already live.
func (c *Coordinator) Execute(ctx context.Context, dec route.Decision) (Attempt, error) {
	key := OpportunityKey(dec.Opportunity, c.opts.KeyBucketBlocks)

	c.mu.Lock()
	if live, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		c.logger.Debug().
			Str("key", key).
			Str("attempt_id", live.ID).
			Msg("duplicate decision dropped")
		return Attempt{}, ErrDuplicateInFlight
	}

	now := c.now()
	attempt := &Attempt{
		ID:          uuid.NewString(),
		Key:         key,
		Decision:    dec,
		State:       StatePending,
		TargetBlock: dec.Opportunity.BlockNumber + c.opts.TargetBlockOffset,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	c.inflight[key] = attempt
	// Snapshot while the struct is still exclusively owned; once the run
	// goroutine starts, attempt fields mutate under c.mu and the caller's
	// copy must not observe them.
	snapshot := *attempt
	c.mu.Unlock()

	c.logAttempt(snapshot).Msg("attempt registered")

	c.wg.Add(1)
	go c.run(attempt)

	return snapshot, nil
}

// run drives one attempt to a terminal state. The deadline context ensures
// the key is always released, even when the backend never answers.
func (c *Coordinator) run(attempt *Attempt) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.AttemptDeadline)
	defer cancel()

	handle, err := c.submitter.Submit(ctx, attempt.Decision, attempt.TargetBlock)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.transition(attempt, StateExpired, "submit deadline exceeded")
		} else {
			c.transition(attempt, StateFailed, err.Error())
		}
		return
	}

	c.mu.Lock()
	attempt.Handle = handle
	c.mu.Unlock()
	c.transition(attempt, StateSubmitted, "")

	ticker := time.NewTicker(c.opts.ConfirmPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.transition(attempt, StateExpired, "attempt deadline exceeded")
			return
		case <-ticker.C:
			conf, err := c.submitter.PollConfirmation(ctx, handle)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
					c.transition(attempt, StateExpired, "attempt deadline exceeded")
					return
				}
				// Transient poll failure; the deadline bounds retries.
				c.logAttempt(*attempt).Err(err).Msg("confirmation poll failed")
				continue
			}
			switch conf {
			case ConfirmationConfirmed:
				c.transition(attempt, StateConfirmed, "")
				return
			case ConfirmationFailed:
				c.transition(attempt, StateFailed, "rejected by backend")
				return
			}
		}
	}
}

// transition records a state change, releases the key on terminal states,
// and fires the terminal hook. Every transition is logged.
func (c *Coordinator) transition(attempt *Attempt, to State, reason string) {
	c.mu.Lock()
	attempt.State = to
	attempt.Reason = reason
	attempt.UpdatedAt = c.now()
	snapshot := *attempt
	if to.Terminal() {
		delete(c.inflight, attempt.Key)
		c.history = append(c.history, snapshot)
	}
	c.mu.Unlock()

	evt := c.logAttempt(snapshot)
	if reason != "" {
		evt = evt.Str("reason", reason)
	}
	evt.Msg("attempt state changed")

	if to.Terminal() && c.onTerminal != nil {
		c.onTerminal(snapshot)
	}
}

func (c *Coordinator) logAttempt(a Attempt) *zerolog.Event {
	return c.logger.Info().
		Str("attempt_id", a.ID).
		Str("key", a.Key).
		Str("state", string(a.State)).
		Str("pair", a.Decision.Opportunity.Pair.String()).
		Str("path", a.Decision.Opportunity.VenuePath()).
		Uint64("target_block", a.TargetBlock)
}

// InFlight returns the number of live attempts.
func (c *Coordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// Attempts returns live and completed attempts, oldest first.
func (c *Coordinator) Attempts() []Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Attempt, 0, len(c.inflight)+len(c.history))
	for _, a := range c.inflight {
		out = append(out, *a)
	}
	out = append(out, c.history...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Wait blocks until every live attempt reaches a terminal state. Used on
// shutdown so keys are never leaked mid-flight.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}
