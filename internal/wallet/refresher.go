// Package wallet keeps the derived token balance of each signed-in player.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/couchcryptid/capyquest-claim/internal/contract"
	"github.com/couchcryptid/capyquest-claim/internal/domain"
	"github.com/couchcryptid/capyquest-claim/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second

	// DefaultInterval is the Run period used when none is given.
	DefaultInterval = 30 * time.Second
)

// Token describes the ERC-20 whose balance is tracked.
type Token struct {
	Address  common.Address
	Symbol   string
	Decimals int
	ImageURL string
}

// Refresher is the only writer of WalletState. Every Refresh performs its own
// chain read; concurrent callers never share a result.
type Refresher struct {
	reader   domain.ChainReader
	wallet   domain.WalletBridge
	token    Token
	interval time.Duration
	clock    clockwork.Clock
	logger   *zap.Logger
	metrics  *observability.Metrics

	mu     sync.RWMutex
	states map[string]domain.WalletState

	ready atomic.Bool
}

// NewRefresher creates a Refresher. interval is the background refresh
// period used by Run; a non-positive interval uses DefaultInterval.
func NewRefresher(reader domain.ChainReader, wallet domain.WalletBridge, token Token, interval time.Duration, clock clockwork.Clock, logger *zap.Logger, metrics *observability.Metrics) *Refresher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Refresher{
		reader:   reader,
		wallet:   wallet,
		token:    token,
		interval: interval,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		states:   make(map[string]domain.WalletState),
	}
}

// Refresh reads balanceOf(address) from the token contract and stores the
// formatted result.
func (r *Refresher) Refresh(ctx context.Context, address string) (domain.WalletState, error) {
	if !common.IsHexAddress(address) {
		return domain.WalletState{}, fmt.Errorf("refresh wallet: invalid address %q", address)
	}
	data, err := contract.PackBalanceOf(common.HexToAddress(address))
	if err != nil {
		return domain.WalletState{}, fmt.Errorf("refresh wallet: %w", err)
	}
	out, err := r.reader.CallContract(ctx, r.token.Address, data)
	if err != nil {
		r.metrics.WalletRefreshErrors.Inc()
		return domain.WalletState{}, fmt.Errorf("refresh wallet: balanceOf: %w", err)
	}
	balance, err := contract.UnpackBalanceOf(out)
	if err != nil {
		r.metrics.WalletRefreshErrors.Inc()
		return domain.WalletState{}, fmt.Errorf("refresh wallet: %w", err)
	}

	state := domain.WalletState{
		Address:        address,
		BalanceDisplay: domain.FormatUnits(balance, r.token.Decimals),
		TokenSymbol:    r.token.Symbol,
		Decimals:       r.token.Decimals,
		UpdatedAt:      r.clock.Now().UTC(),
	}
	r.mu.Lock()
	r.states[strings.ToLower(address)] = state
	r.mu.Unlock()
	r.ready.Store(true)
	return state, nil
}

// State returns the last refreshed state of address. An address never
// refreshed reports only the token metadata.
func (r *Refresher) State(address string) domain.WalletState {
	r.mu.RLock()
	state, ok := r.states[strings.ToLower(address)]
	r.mu.RUnlock()
	if ok {
		return state
	}
	return domain.WalletState{TokenSymbol: r.token.Symbol, Decimals: r.token.Decimals}
}

// WatchAsset asks the wallet to track the token.
func (r *Refresher) WatchAsset(ctx context.Context) error {
	err := r.wallet.WatchAsset(ctx, domain.TokenAsset{
		Address:  r.token.Address,
		Symbol:   r.token.Symbol,
		Decimals: r.token.Decimals,
		Image:    r.token.ImageURL,
	})
	if err != nil {
		return fmt.Errorf("watch asset %s: %w", r.token.Symbol, err)
	}
	return nil
}

// CheckReadiness returns nil once the chain has answered, either through a
// refresh or a chain id query made here.
func (r *Refresher) CheckReadiness(ctx context.Context) error {
	if r.ready.Load() {
		return nil
	}
	if _, err := r.reader.ChainID(ctx); err != nil {
		return fmt.Errorf("chain rpc not reachable: %w", err)
	}
	r.ready.Store(true)
	return nil
}

// Run refreshes every address returned by addresses on the configured
// interval until ctx is cancelled. A round with failures is retried with
// exponential backoff.
func (r *Refresher) Run(ctx context.Context, addresses func() []string) error {
	r.logger.Info("wallet refresher started", zap.Duration("interval", r.interval))
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			r.logger.Info("wallet refresher stopping", zap.Error(ctx.Err()))
			return nil
		}

		if err := r.refreshAll(ctx, addresses()); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Warn("wallet refresh round failed", zap.Error(err), zap.Duration("backoff", backoff))
			if !retry.SleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = retry.NextBackoff(backoff, maxBackoff)
			continue
		}

		backoff = initialBackoff
		select {
		case <-ctx.Done():
		case <-r.clock.After(r.interval):
		}
	}
}

func (r *Refresher) refreshAll(ctx context.Context, addresses []string) error {
	var errs []error
	for _, addr := range addresses {
		if _, err := r.Refresh(ctx, addr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
