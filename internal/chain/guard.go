// Package chain makes sure the player's wallet is on the claim network.
package chain

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/couchcryptid/capyquest-claim/internal/domain"
	"github.com/couchcryptid/capyquest-claim/internal/observability"
)

// Guard switches the wallet to the required network, registering it first
// when the wallet does not know it.
type Guard struct {
	wallet  domain.WalletBridge
	network domain.Network
	settle  time.Duration
	clock   clockwork.Clock
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewGuard creates a Guard for network. settle is how long to wait after a
// switch before the wallet is trusted to report the new chain.
func NewGuard(wallet domain.WalletBridge, network domain.Network, settle time.Duration, clock clockwork.Clock, logger *zap.Logger, metrics *observability.Metrics) *Guard {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Guard{
		wallet:  wallet,
		network: network,
		settle:  settle,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Network returns the network the guard registers.
func (g *Guard) Network() domain.Network {
	return g.network
}

// EnsureNetwork reports whether the wallet ended up on requiredID. It never
// falls back to another chain.
func (g *Guard) EnsureNetwork(ctx context.Context, requiredID string) bool {
	log := g.logger.With(zap.String("chain_id", requiredID))

	err := g.wallet.SwitchChain(ctx, requiredID)
	if err == nil {
		g.settleDown(ctx)
		g.metrics.NetworkGuard.WithLabelValues("switched").Inc()
		log.Info("wallet switched network")
		return true
	}
	if !errors.Is(err, domain.ErrUnrecognizedChain) {
		g.metrics.NetworkGuard.WithLabelValues("failed").Inc()
		log.Warn("network switch failed", zap.Error(err))
		return false
	}

	if !domain.SameChain(requiredID, g.network.ChainID) {
		g.metrics.NetworkGuard.WithLabelValues("failed").Inc()
		log.Warn("wallet does not know the chain and no parameters are configured for it",
			zap.String("configured_chain_id", g.network.ChainID))
		return false
	}

	if err := g.wallet.AddChain(ctx, g.network); err != nil {
		g.metrics.NetworkGuard.WithLabelValues("failed").Inc()
		log.Warn("network registration failed", zap.Error(err))
		return false
	}
	if err := g.wallet.SwitchChain(ctx, requiredID); err != nil {
		g.metrics.NetworkGuard.WithLabelValues("failed").Inc()
		log.Warn("network switch after registration failed", zap.Error(err))
		return false
	}

	g.settleDown(ctx)
	g.metrics.NetworkGuard.WithLabelValues("added").Inc()
	log.Info("wallet registered and switched network", zap.String("chain_name", g.network.Name))
	return true
}

func (g *Guard) settleDown(ctx context.Context) {
	if g.settle <= 0 {
		return
	}
	select {
	case <-g.clock.After(g.settle):
	case <-ctx.Done():
	}
}
