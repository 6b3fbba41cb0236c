package ipapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/couchcryptid/capyquest-claim/internal/domain"
)

const madridBody = `{"status":"success","lat":40.4168,"lon":-3.7038,"city":"Madrid","query":"203.0.113.7"}`

func serve(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Contains(t, r.URL.Query().Get("fields"), "lat")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestClient_Success(t *testing.T) {
	srv, _ := serve(t, http.StatusOK, madridBody)
	clock := clockwork.NewFakeClock()
	c := NewClient(srv.URL, 600, clock, zap.NewNop())

	pos, err := c.CurrentPosition(context.Background(), domain.DefaultPositionOptions)

	require.NoError(t, err)
	assert.Equal(t, domain.Coordinate{Lat: 40.4168, Lng: -3.7038}, pos.Coordinate)
	assert.Equal(t, float64(coarseAccuracy), pos.Accuracy)
	assert.Equal(t, clock.Now(), pos.Timestamp)
}

func TestClient_ReusesFixWithinMaximumAge(t *testing.T) {
	srv, hits := serve(t, http.StatusOK, madridBody)
	clock := clockwork.NewFakeClock()
	c := NewClient(srv.URL, 600, clock, zap.NewNop())
	opts := domain.DefaultPositionOptions

	_, err := c.CurrentPosition(context.Background(), opts)
	require.NoError(t, err)
	clock.Advance(30 * time.Second)
	_, err = c.CurrentPosition(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	clock.Advance(31 * time.Second)
	_, err = c.CurrentPosition(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_FailStatusIsUnavailable(t *testing.T) {
	srv, _ := serve(t, http.StatusOK, `{"status":"fail","message":"private range"}`)
	c := NewClient(srv.URL, 600, nil, zap.NewNop())

	_, err := c.CurrentPosition(context.Background(), domain.DefaultPositionOptions)

	var pe *domain.PositionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, domain.PositionUnavailable, pe.Code)
	assert.Contains(t, pe.Message, "private range")
}

func TestClient_HTTPErrorIsUnavailable(t *testing.T) {
	srv, _ := serve(t, http.StatusTooManyRequests, `{}`)
	c := NewClient(srv.URL, 600, nil, zap.NewNop())

	_, err := c.CurrentPosition(context.Background(), domain.DefaultPositionOptions)

	var pe *domain.PositionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, domain.PositionUnavailable, pe.Code)
}

func TestClient_RateLimitBeyondDeadlineIsTimeout(t *testing.T) {
	srv, hits := serve(t, http.StatusOK, madridBody)
	c := NewClient(srv.URL, 1, nil, zap.NewNop())
	opts := domain.DefaultPositionOptions
	opts.MaximumAge = 0

	_, err := c.CurrentPosition(context.Background(), opts)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.CurrentPosition(ctx, opts)

	var pe *domain.PositionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, domain.PositionTimeout, pe.Code)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_SlowServerIsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, 600, nil, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.CurrentPosition(ctx, domain.DefaultPositionOptions)

	var pe *domain.PositionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, domain.PositionTimeout, pe.Code)
}
