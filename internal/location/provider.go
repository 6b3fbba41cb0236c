// Package location acquires and remembers a session's geographic position.
package location

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/couchcryptid/capyquest-claim/internal/domain"
	"github.com/couchcryptid/capyquest-claim/internal/observability"
)

// StorageKey is the session storage key holding the persisted coordinate.
const StorageKey = "user-location-storage"

// Storage is a session-scoped key/value store.
type Storage interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// persisted is the stored shape; only the coordinate survives a reload.
type persisted struct {
	UserLocation *domain.Coordinate `json:"userLocation"`
}

// Provider owns the LocationState of one session. It is the only writer of
// that state.
type Provider struct {
	platform domain.LocationPlatform
	storage  Storage
	opts     domain.PositionOptions
	logger   *zap.Logger
	metrics  *observability.Metrics

	mu    sync.RWMutex
	state domain.LocationState
}

// NewProvider creates a Provider and hydrates the last known coordinate from
// storage. A nil platform means the session cannot acquire fixes.
func NewProvider(platform domain.LocationPlatform, storage Storage, logger *zap.Logger, metrics *observability.Metrics) *Provider {
	p := &Provider{
		platform: platform,
		storage:  storage,
		opts:     domain.DefaultPositionOptions,
		logger:   logger,
		metrics:  metrics,
	}
	p.hydrate()
	return p
}

func (p *Provider) hydrate() {
	raw, ok := p.storage.Get(StorageKey)
	if !ok {
		return
	}
	var stored persisted
	if err := json.Unmarshal(raw, &stored); err != nil {
		p.logger.Warn("discarding unreadable stored location", zap.Error(err))
		return
	}
	if stored.UserLocation != nil && !stored.UserLocation.Valid() {
		p.logger.Warn("discarding out-of-range stored location", zap.Stringer("coordinate", stored.UserLocation))
		return
	}
	p.state.Current = stored.UserLocation
}

// State returns a snapshot of the current LocationState.
func (p *Provider) State() domain.LocationState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Current returns the last known coordinate, or nil.
func (p *Provider) Current() *domain.Coordinate {
	return p.State().Current
}

// RequestLocation performs one acquisition bounded by the position timeout.
// Success replaces the current coordinate and clears the error; failure only
// records the error.
func (p *Provider) RequestLocation(ctx context.Context) domain.LocationResult {
	if p.platform == nil {
		p.fail(domain.ErrLocationUnsupported)
		return domain.LocationResult{Err: domain.ErrLocationUnsupported}
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	pos, err := p.platform.CurrentPosition(ctx, p.opts)
	if err == nil && !pos.Coordinate.Valid() {
		err = &domain.PositionError{Code: domain.PositionUnavailable, Message: "platform returned an out-of-range coordinate"}
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = &domain.PositionError{Code: domain.PositionTimeout, Message: err.Error()}
		}
		locErr := domain.NewLocationError(err)
		p.logger.Info("location request failed", zap.String("kind", string(locErr.Kind)), zap.Error(err))
		p.fail(locErr)
		return domain.LocationResult{Err: locErr}
	}

	c := pos.Coordinate
	p.mu.Lock()
	p.state = domain.LocationState{Current: &c}
	p.persistLocked()
	p.mu.Unlock()

	p.metrics.LocationRequests.WithLabelValues("ok").Inc()
	p.logger.Debug("location acquired", zap.Stringer("coordinate", c), zap.Float64("accuracy_m", pos.Accuracy))
	return domain.LocationResult{Coordinate: &c}
}

func (p *Provider) fail(locErr *domain.LocationError) {
	p.mu.Lock()
	p.state.Error = locErr
	p.persistLocked()
	p.mu.Unlock()
	p.metrics.LocationRequests.WithLabelValues(string(locErr.Kind)).Inc()
}

// ClearLocation forgets the coordinate and any error.
func (p *Provider) ClearLocation() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = domain.LocationState{}
	p.persistLocked()
}

func (p *Provider) persistLocked() {
	raw, err := json.Marshal(persisted{UserLocation: p.state.Current})
	if err != nil {
		p.logger.Error("encode location for storage", zap.Error(err))
		return
	}
	p.storage.Set(StorageKey, raw)
}
