package executor

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"arb-engine/internal/ranker"
	"arb-engine/internal/route"
)

// State is an attempt's position in its lifecycle. Transitions only move
// forward: Pending -> Submitted -> one of the terminal states.
type State string

const (
	StatePending   State = "pending"
	StateSubmitted State = "submitted"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
	StateExpired   State = "expired"
)

// Terminal reports whether the state releases the attempt's key.
func (s State) Terminal() bool {
	switch s {
	case StateConfirmed, StateFailed, StateExpired:
		return true
	}
	return false
}

// Attempt is one execution of a route decision. Attempts are identified by
// a random ID and deduplicated by Key.
type Attempt struct {
	ID          string
	Key         string
	Decision    route.Decision
	State       State
	TargetBlock uint64
	Handle      string
	Reason      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OpportunityKey derives the dedup key for an opportunity: the same pair
// and venue path inside the same block bucket hashes to the same key, so a
// re-detected opportunity cannot race its own in-flight attempt.
func OpportunityKey(opp ranker.Opportunity, bucketBlocks uint64) string {
	if bucketBlocks == 0 {
		bucketBlocks = 1
	}
	bucket := opp.BlockNumber / bucketBlocks
	payload := fmt.Sprintf("%s|%s|%d", opp.Pair.String(), opp.VenuePath(), bucket)
	return fmt.Sprintf("%x", crypto.Keccak256([]byte(payload)))
}
