package fetcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"arb-engine/internal/config"
)

// GasOracle reads gas prices and block heights over JSON-RPC. Clients dial
// lazily per chain and are reused for the life of the process.
type GasOracle struct {
	cfg    config.EthereumConfig
	logger zerolog.Logger

	mu      sync.Mutex
	clients map[int64]*ethclient.Client
}

// NewGasOracle constructs a GasOracle. No connection is made until the first
// call that needs one.
func NewGasOracle(cfg config.EthereumConfig, logger zerolog.Logger) *GasOracle {
	return &GasOracle{
		cfg:     cfg,
		logger:  logger.With().Str("component", "gas_oracle").Logger(),
		clients: make(map[int64]*ethclient.Client),
	}
}

// GasPrice returns the chain's suggested gas price in wei.
func (o *GasOracle) GasPrice(ctx context.Context, chainID int64) (decimal.Decimal, error) {
	client, err := o.client(ctx, chainID)
	if err != nil {
		return decimal.Decimal{}, err
	}

	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	wei, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("suggest gas price chain %d: %w", chainID, err)
	}
	return decimal.NewFromBigInt(wei, 0), nil
}

// BlockNumber returns the chain's latest block height, used to stamp cycle
// snapshots and pick submission target blocks.
func (o *GasOracle) BlockNumber(ctx context.Context, chainID int64) (uint64, error) {
	client, err := o.client(ctx, chainID)
	if err != nil {
		return 0, err
	}

	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	height, err := client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number chain %d: %w", chainID, err)
	}
	return height, nil
}

// Close tears down every dialed client.
func (o *GasOracle) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for chainID, client := range o.clients {
		client.Close()
		delete(o.clients, chainID)
	}
}

func (o *GasOracle) client(ctx context.Context, chainID int64) (*ethclient.Client, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if client, ok := o.clients[chainID]; ok {
		return client, nil
	}

	rpcURL := o.cfg.RPCURLFor(chainID)
	if rpcURL == "" {
		return nil, fmt.Errorf("no rpc url configured for chain %d", chainID)
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain %d: %w", chainID, err)
	}
	o.logger.Debug().Int64("chain_id", chainID).Msg("rpc client connected")
	o.clients[chainID] = client
	return client, nil
}

func (o *GasOracle) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.cfg.RequestTimeout)
}
