package relay

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"arb-engine/internal/executor"
	"arb-engine/internal/route"
)

// DryRunSubmitter logs would-be submissions without touching any relay.
// Every attempt confirms immediately, so the rest of the pipeline exercises
// its full lifecycle in simulation.
type DryRunSubmitter struct {
	logger zerolog.Logger
}

// NewDryRunSubmitter constructs a DryRunSubmitter.
func NewDryRunSubmitter(logger zerolog.Logger) *DryRunSubmitter {
	return &DryRunSubmitter{logger: logger.With().Str("component", "relay_dryrun").Logger()}
}

func (d *DryRunSubmitter) Submit(_ context.Context, dec route.Decision, targetBlock uint64) (string, error) {
	handle := fmt.Sprintf("dryrun-%s", uuid.NewString())
	d.logger.Info().
		Str("bundle_id", handle).
		Str("pair", dec.Opportunity.Pair.String()).
		Str("path", dec.Opportunity.VenuePath()).
		Str("amount_in", dec.AmountIn.String()).
		Str("expected_profit", dec.Opportunity.ExpectedProfit.String()).
		Uint64("target_block", targetBlock).
		Msg("dry run submission")
	return handle, nil
}

func (d *DryRunSubmitter) PollConfirmation(context.Context, string) (executor.Confirmation, error) {
	return executor.ConfirmationConfirmed, nil
}
