package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/capyquest-claim/internal/domain"
)

type report struct {
	pos        domain.Position
	err        *domain.PositionError
	receivedAt time.Time
}

// ReportedPlatform serves fixes pushed by the player's device. A request is
// answered from the latest report when it is fresh enough, otherwise it waits
// for the next push.
type ReportedPlatform struct {
	clock clockwork.Clock

	mu     sync.Mutex
	latest *report
	wake   chan struct{}
}

// NewReportedPlatform creates an empty ReportedPlatform. A nil clock uses real time.
func NewReportedPlatform(clock clockwork.Clock) *ReportedPlatform {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ReportedPlatform{clock: clock, wake: make(chan struct{})}
}

// Push records a device fix and wakes waiting requests.
func (p *ReportedPlatform) Push(pos domain.Position) {
	now := p.clock.Now()
	if pos.Timestamp.IsZero() {
		pos.Timestamp = now
	}
	p.publish(&report{pos: pos, receivedAt: now})
}

// PushError records a device-side failure such as a denied permission.
func (p *ReportedPlatform) PushError(code domain.PositionErrorCode, message string) {
	p.publish(&report{
		err:        &domain.PositionError{Code: code, Message: message},
		receivedAt: p.clock.Now(),
	})
}

func (p *ReportedPlatform) publish(r *report) {
	p.mu.Lock()
	p.latest = r
	close(p.wake)
	p.wake = make(chan struct{})
	p.mu.Unlock()
}

// CurrentPosition implements domain.LocationPlatform.
func (p *ReportedPlatform) CurrentPosition(ctx context.Context, opts domain.PositionOptions) (domain.Position, error) {
	for {
		p.mu.Lock()
		r, wake := p.latest, p.wake
		p.mu.Unlock()

		if r != nil && p.clock.Since(r.receivedAt) <= opts.MaximumAge {
			if r.err != nil {
				return domain.Position{}, r.err
			}
			return r.pos, nil
		}

		select {
		case <-wake:
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return domain.Position{}, ctx.Err()
			}
			return domain.Position{}, &domain.PositionError{
				Code:    domain.PositionTimeout,
				Message: "no device fix received in time",
			}
		}
	}
}

// StaticPlatform always reports the same coordinate.
type StaticPlatform struct {
	at domain.Coordinate
}

// NewStaticPlatform creates a platform pinned to at.
func NewStaticPlatform(at domain.Coordinate) *StaticPlatform {
	return &StaticPlatform{at: at}
}

// CurrentPosition implements domain.LocationPlatform.
func (p *StaticPlatform) CurrentPosition(ctx context.Context, _ domain.PositionOptions) (domain.Position, error) {
	if err := ctx.Err(); err != nil {
		return domain.Position{}, err
	}
	return domain.Position{Coordinate: p.at, Timestamp: time.Now()}, nil
}
