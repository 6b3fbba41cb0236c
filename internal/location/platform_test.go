package location

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/capyquest-claim/internal/domain"
)

func TestReportedPlatform_FreshFixAnsweredImmediately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := NewReportedPlatform(clock)
	p.Push(domain.Position{Coordinate: madrid, Accuracy: 4})

	clock.Advance(30 * time.Second)
	pos, err := p.CurrentPosition(context.Background(), domain.DefaultPositionOptions)

	require.NoError(t, err)
	assert.Equal(t, madrid, pos.Coordinate)
	assert.False(t, pos.Timestamp.IsZero())
}

func TestReportedPlatform_StaleFixTimesOut(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := NewReportedPlatform(clock)
	p.Push(domain.Position{Coordinate: madrid})
	clock.Advance(61 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.CurrentPosition(ctx, domain.DefaultPositionOptions)

	var pe *domain.PositionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, domain.PositionTimeout, pe.Code)
}

func TestReportedPlatform_CancelIsNotTimeout(t *testing.T) {
	p := NewReportedPlatform(clockwork.NewFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.CurrentPosition(ctx, domain.DefaultPositionOptions)

	require.ErrorIs(t, err, context.Canceled)
	var pe *domain.PositionError
	assert.False(t, errors.As(err, &pe))
}

func TestReportedPlatform_WaitsForPush(t *testing.T) {
	p := NewReportedPlatform(clockwork.NewFakeClock())
	done := make(chan domain.Position, 1)

	go func() {
		pos, err := p.CurrentPosition(context.Background(), domain.DefaultPositionOptions)
		if err == nil {
			done <- pos
		}
	}()

	time.Sleep(10 * time.Millisecond)
	p.Push(domain.Position{Coordinate: madrid})

	select {
	case pos := <-done:
		assert.Equal(t, madrid, pos.Coordinate)
	case <-time.After(time.Second):
		t.Fatal("request was not woken by the push")
	}
}

func TestReportedPlatform_PushError(t *testing.T) {
	p := NewReportedPlatform(clockwork.NewFakeClock())
	p.PushError(domain.PositionPermissionDenied, "user denied geolocation")

	_, err := p.CurrentPosition(context.Background(), domain.DefaultPositionOptions)

	var pe *domain.PositionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, domain.PositionPermissionDenied, pe.Code)
}

func TestReportedPlatform_ThroughProvider(t *testing.T) {
	platform := NewReportedPlatform(clockwork.NewFakeClock())
	p := newTestProvider(platform, memStorage{})
	platform.Push(domain.Position{Coordinate: madrid})

	res := p.RequestLocation(context.Background())

	require.True(t, res.OK())
	assert.Equal(t, madrid, *p.Current())
}

func TestStaticPlatform(t *testing.T) {
	p := NewStaticPlatform(madrid)

	pos, err := p.CurrentPosition(context.Background(), domain.DefaultPositionOptions)
	require.NoError(t, err)
	assert.Equal(t, madrid, pos.Coordinate)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.CurrentPosition(ctx, domain.DefaultPositionOptions)
	require.Error(t, err)
}
