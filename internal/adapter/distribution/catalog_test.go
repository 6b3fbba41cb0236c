package distribution

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/couchcryptid/capyquest-claim/internal/domain"
	"github.com/couchcryptid/capyquest-claim/internal/observability"
)

const catalogBody = `{"targets":[
	{"tokenId":"7","location":"40.0001,-3.0","rarity":2},
	{"tokenId":"8","location":"somewhere","rarity":1},
	{"tokenId":"","location":"1,1"},
	{"tokenId":"9","location":" 40.4155 , -3.7074 ","rarity":4}
]}`

func serveCatalog(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

type placeNamer struct {
	err error
}

func (p placeNamer) ReverseGeocode(_ context.Context, at domain.Coordinate) (domain.GeocodingResult, error) {
	if p.err != nil {
		return domain.GeocodingResult{}, p.err
	}
	return domain.GeocodingResult{PlaceName: "near " + at.String()}, nil
}

func TestCatalog_SkipsMalformedTargets(t *testing.T) {
	srv, _ := serveCatalog(t, http.StatusOK, catalogBody)
	c := NewCatalog(srv.URL, time.Minute, nil, zap.NewNop(), observability.NewMetricsForTesting())

	targets, err := c.Targets(context.Background())

	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, domain.ClaimTarget{TokenID: "7", Location: domain.Coordinate{Lat: 40.0001, Lng: -3.0}, Rarity: 2}, targets[0])
	assert.Equal(t, "9", targets[1].TokenID)
	assert.Equal(t, "Capy Dorado", targets[1].Rarity.Name())
}

func TestCatalog_CachesWithinTTL(t *testing.T) {
	srv, hits := serveCatalog(t, http.StatusOK, catalogBody)
	metrics := observability.NewMetricsForTesting()
	c := NewCatalog(srv.URL, time.Minute, nil, zap.NewNop(), metrics)

	_, err := c.Targets(context.Background())
	require.NoError(t, err)
	_, err = c.Target(context.Background(), "9")
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.CatalogCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.CatalogCache.WithLabelValues("miss")), 0)
}

func TestCatalog_RefetchesAfterTTL(t *testing.T) {
	srv, hits := serveCatalog(t, http.StatusOK, catalogBody)
	c := NewCatalog(srv.URL, 20*time.Millisecond, nil, zap.NewNop(), observability.NewMetricsForTesting())

	_, err := c.Targets(context.Background())
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	_, err = c.Targets(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), hits.Load())
}

func TestCatalog_TargetNotFound(t *testing.T) {
	srv, _ := serveCatalog(t, http.StatusOK, catalogBody)
	c := NewCatalog(srv.URL, time.Minute, nil, zap.NewNop(), observability.NewMetricsForTesting())

	_, err := c.Target(context.Background(), "8")

	assert.ErrorIs(t, err, domain.ErrTargetNotFound)
}

func TestCatalog_UpstreamError(t *testing.T) {
	srv, _ := serveCatalog(t, http.StatusBadGateway, `oops`)
	c := NewCatalog(srv.URL, time.Minute, nil, zap.NewNop(), observability.NewMetricsForTesting())

	_, err := c.Targets(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.NotErrorIs(t, err, domain.ErrTargetNotFound)
}

func TestCatalog_AnnotatesPlaceNames(t *testing.T) {
	srv, _ := serveCatalog(t, http.StatusOK, catalogBody)
	c := NewCatalog(srv.URL, time.Minute, placeNamer{}, zap.NewNop(), observability.NewMetricsForTesting())

	target, err := c.Target(context.Background(), "7")

	require.NoError(t, err)
	assert.Equal(t, "near 40.0001,-3", target.PlaceName)
}

func TestCatalog_GeocoderFailureLeavesNameEmpty(t *testing.T) {
	srv, _ := serveCatalog(t, http.StatusOK, catalogBody)
	c := NewCatalog(srv.URL, time.Minute, placeNamer{err: errors.New("quota")}, zap.NewNop(), observability.NewMetricsForTesting())

	target, err := c.Target(context.Background(), "7")

	require.NoError(t, err)
	assert.Empty(t, target.PlaceName)
}

func TestWriteCatalog_ReadableByParseCatalog(t *testing.T) {
	targets := []domain.ClaimTarget{
		{TokenID: "1", Location: domain.Coordinate{Lat: 40.4155, Lng: -3.7074}, Rarity: 3},
		{TokenID: "2", Location: domain.Coordinate{Lat: -33.5, Lng: 151.25}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCatalog(&buf, targets))
	assert.Contains(t, buf.String(), `"location": "40.4155,-3.7074"`)

	got, err := ParseCatalog(&buf, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, targets, got)
}

func TestParseCatalog_InvalidDocument(t *testing.T) {
	_, err := ParseCatalog(strings.NewReader(`[1,2,3]`), zap.NewNop())
	assert.ErrorContains(t, err, "decode targets")
}
