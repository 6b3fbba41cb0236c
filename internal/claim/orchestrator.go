// Package claim runs the proximity-gated NFT claim and the CapyCoin purchase
// workflows against the player's wallet.
package claim

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/couchcryptid/capyquest-claim/internal/domain"
	"github.com/couchcryptid/capyquest-claim/internal/observability"
)

// NetworkGuard puts the wallet on the required chain.
type NetworkGuard interface {
	EnsureNetwork(ctx context.Context, requiredID string) bool
}

// LocationSource is the session's geolocation provider.
type LocationSource interface {
	Current() *domain.Coordinate
	RequestLocation(ctx context.Context) domain.LocationResult
}

// WalletRefresher re-reads a player's balance after a successful attempt.
type WalletRefresher interface {
	Refresh(ctx context.Context, address string) (domain.WalletState, error)
}

// EventSink receives an audit event for every finished attempt.
type EventSink interface {
	PublishClaimEvent(ctx context.Context, ev domain.ClaimEvent) error
}

// Config holds the fixed parameters of the workflow.
type Config struct {
	RequiredChainID     string
	ClaimContract       common.Address
	TokenContract       common.Address
	NativeDecimals      int
	ThresholdMeters     float64
	ConfirmationTimeout time.Duration
}

// Deps are the collaborators of the Orchestrator. Refresher and Events are optional.
type Deps struct {
	Targets   domain.TargetSource
	Wallet    domain.WalletBridge
	Reader    domain.ChainReader
	Guard     NetworkGuard
	Refresher WalletRefresher
	Events    EventSink
}

// ClaimRequest asks to claim TokenID for the session's Address.
type ClaimRequest struct {
	TokenID  string
	Address  string
	Location LocationSource
}

// PurchaseRequest asks to buy CapyCoin paying Amount of the native currency.
type PurchaseRequest struct {
	Address string
	Amount  string
}

// Orchestrator drives attempts through the state machine and executes their
// effects. At most one attempt per token id (and per purchasing address)
// runs at a time.
type Orchestrator struct {
	cfg     Config
	deps    Deps
	logger  *zap.Logger
	metrics *observability.Metrics
	newID   func() string

	mu       sync.Mutex
	inflight map[string]struct{}

	observers *observers
}

// DefaultConfirmationTimeout bounds the receipt wait when Config leaves it unset.
const DefaultConfirmationTimeout = 5 * time.Minute

// New creates an Orchestrator. A non-positive ConfirmationTimeout falls back
// to DefaultConfirmationTimeout.
func New(cfg Config, deps Deps, logger *zap.Logger, metrics *observability.Metrics) *Orchestrator {
	if cfg.NativeDecimals == 0 {
		cfg.NativeDecimals = 18
	}
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = DefaultConfirmationTimeout
	}
	return &Orchestrator{
		cfg:       cfg,
		deps:      deps,
		logger:    logger,
		metrics:   metrics,
		newID:     uuid.NewString,
		inflight:  make(map[string]struct{}),
		observers: newObservers(),
	}
}

// ClaimKey is the in-flight and progress key of a claim.
func ClaimKey(tokenID string) string {
	return "claim:" + tokenID
}

// PurchaseKey is the in-flight and progress key of a purchase.
func PurchaseKey(address string) string {
	return "purchase:" + strings.ToLower(address)
}

// Subscribe streams the transitions of attempts under key until cancel is
// called. Slow subscribers miss transitions rather than stall attempts.
func (o *Orchestrator) Subscribe(key string) (<-chan Transition, func()) {
	return o.observers.subscribe(key)
}

// Claim runs one claim attempt to Done and returns its result. Failures are
// reported in the result, never as a Go error.
func (o *Orchestrator) Claim(ctx context.Context, req ClaimRequest) domain.ClaimResult {
	id := o.newID()
	key := ClaimKey(req.TokenID)
	log := o.logger.With(zap.String("attempt_id", id), zap.String("token_id", req.TokenID))

	if !o.acquire(key) {
		log.Info("claim rejected, another attempt is in flight")
		o.metrics.ClaimAttempts.WithLabelValues(string(KindClaim), string(domain.ClaimInProgress)).Inc()
		return inProgress(id)
	}
	defer o.release(key)

	target, err := o.deps.Targets.Target(ctx, req.TokenID)
	if err != nil {
		log.Info("claim target lookup failed", zap.Error(err))
		idle := NewClaimAttempt(id, domain.ClaimTarget{TokenID: req.TokenID}, req.Address, o.cfg.RequiredChainID)
		a, _ := idle.fail(&domain.ClaimError{
			Kind:    domain.KindUnknownTarget,
			Reason:  domain.ClaimUnknownTarget,
			Message: "no claimable Capy with token id " + req.TokenID,
			Err:     err,
		})
		o.observers.publish(key, newTransition(idle, a, EffectNone))
		o.finish(ctx, a, time.Now(), log)
		return *a.Result
	}

	a := NewClaimAttempt(id, target, req.Address, o.cfg.RequiredChainID)
	return o.run(ctx, key, a, req.Location, log)
}

// Purchase runs one CapyCoin purchase to Done.
func (o *Orchestrator) Purchase(ctx context.Context, req PurchaseRequest) domain.ClaimResult {
	id := o.newID()
	key := PurchaseKey(req.Address)
	log := o.logger.With(zap.String("attempt_id", id), zap.String("kind", string(KindPurchase)))

	if !o.acquire(key) {
		o.metrics.ClaimAttempts.WithLabelValues(string(KindPurchase), string(domain.ClaimInProgress)).Inc()
		return inProgress(id)
	}
	defer o.release(key)

	a := NewPurchaseAttempt(id, req.Amount, o.cfg.NativeDecimals, req.Address, o.cfg.RequiredChainID)
	return o.run(ctx, key, a, nil, log)
}

func inProgress(id string) domain.ClaimResult {
	return domain.ClaimResult{
		AttemptID: id,
		Error: &domain.ClaimError{
			Kind:    domain.KindInProgress,
			Reason:  domain.ClaimInProgress,
			Message: "a request for this item is already in progress",
		},
	}
}

func (o *Orchestrator) acquire(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[key]; busy {
		return false
	}
	o.inflight[key] = struct{}{}
	o.metrics.ClaimsInFlight.Inc()
	return true
}

func (o *Orchestrator) release(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, key)
	o.metrics.ClaimsInFlight.Dec()
}

func (o *Orchestrator) run(ctx context.Context, key string, a Attempt, loc LocationSource, log *zap.Logger) domain.ClaimResult {
	started := time.Now()

	prev := a
	a, eff := a.Start()
	o.observers.publish(key, newTransition(prev, a, eff))

	for a.State != Done {
		prev = a
		switch eff {
		case EffectLocate:
			a, eff = o.locate(ctx, a, loc)
		case EffectReadNetwork:
			chainID, err := o.deps.Wallet.ChainID(ctx)
			if err != nil {
				log.Warn("read wallet chain id", zap.Error(err))
			}
			a, eff = a.OnNetwork(chainID, err)
		case EffectEnsureNetwork:
			a, eff = a.OnGuard(o.deps.Guard.EnsureNetwork(ctx, a.RequiredChainID))
		case EffectReadAccounts:
			a, eff = a.OnAccounts(o.deps.Wallet.Accounts(ctx))
		case EffectSubmit:
			// From here on the attempt runs to Done even if the caller leaves.
			ctx = context.WithoutCancel(ctx)
			a, eff = o.submit(ctx, a)
		case EffectAwaitReceipt:
			a, eff = o.awaitReceipt(ctx, a)
		default:
			log.Error("attempt stalled", zap.Stringer("state", a.State), zap.Stringer("effect", eff))
			a, eff = a.fail(&domain.ClaimError{Kind: domain.KindSubmissionFailed, Reason: domain.ClaimSubmissionFailed, Message: "internal error"})
		}
		o.observers.publish(key, newTransition(prev, a, eff))
	}

	if eff == EffectRefreshWallet {
		o.refreshWallet(ctx, a.Address, log)
	}
	o.finish(ctx, a, started, log)
	return *a.Result
}

func (o *Orchestrator) locate(ctx context.Context, a Attempt, loc LocationSource) (Attempt, Effect) {
	if loc == nil {
		return a.OnLocation(nil, domain.ErrLocationUnsupported, o.cfg.ThresholdMeters)
	}
	current := loc.Current()
	if current != nil {
		return a.OnLocation(current, nil, o.cfg.ThresholdMeters)
	}
	res := loc.RequestLocation(ctx)
	return a.OnLocation(res.Coordinate, res.Err, o.cfg.ThresholdMeters)
}

func (o *Orchestrator) submit(ctx context.Context, a Attempt) (Attempt, Effect) {
	tx, err := a.TxRequest(o.cfg.ClaimContract, o.cfg.TokenContract)
	if err != nil {
		return a.OnSubmitted(common.Hash{}, err)
	}
	return a.OnSubmitted(o.deps.Wallet.SendTransaction(ctx, tx))
}

func (o *Orchestrator) awaitReceipt(ctx context.Context, a Attempt) (Attempt, Effect) {
	waitCtx, cancel := context.WithTimeout(ctx, o.cfg.ConfirmationTimeout)
	defer cancel()

	start := time.Now()
	receipt, err := o.deps.Reader.WaitForReceipt(waitCtx, common.HexToHash(a.TxHash))
	o.metrics.ConfirmationWait.Observe(time.Since(start).Seconds())
	if err != nil && waitCtx.Err() != nil && !errors.Is(err, context.DeadlineExceeded) {
		err = errors.Join(err, context.DeadlineExceeded)
	}
	return a.OnReceipt(receipt, err)
}

func (o *Orchestrator) refreshWallet(ctx context.Context, address string, log *zap.Logger) {
	if o.deps.Refresher == nil {
		return
	}
	if _, err := o.deps.Refresher.Refresh(ctx, address); err != nil {
		log.Warn("wallet refresh after success failed", zap.Error(err))
	}
}

func (o *Orchestrator) finish(ctx context.Context, a Attempt, started time.Time, log *zap.Logger) {
	ev := domain.NewClaimEvent(string(a.Kind), a.ID, a.Target.TokenID, a.Address, *a.Result, a.Distance)

	o.metrics.ClaimAttempts.WithLabelValues(string(a.Kind), ev.Outcome()).Inc()
	o.metrics.ClaimDuration.WithLabelValues(string(a.Kind)).Observe(time.Since(started).Seconds())

	if a.Result.Success {
		log.Info("attempt succeeded", zap.String("tx_hash", a.TxHash))
	} else {
		log.Info("attempt failed",
			zap.String("reason", ev.Reason),
			zap.String("tx_hash", a.TxHash),
			zap.Error(a.Result.Error),
		)
	}

	if o.deps.Events == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.deps.Events.PublishClaimEvent(pubCtx, ev); err != nil {
		o.metrics.ClaimEventsDropped.Inc()
		log.Warn("publish claim event failed", zap.Error(err))
	}
}
