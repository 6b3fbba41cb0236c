package wallet

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/couchcryptid/capyquest-claim/internal/domain"
	"github.com/couchcryptid/capyquest-claim/internal/mocks"
	"github.com/couchcryptid/capyquest-claim/internal/observability"
)

const player = "0xAbCdEf0123456789aBcDeF0123456789abCDef01"

var token = Token{
	Address:  common.HexToAddress("0x2222222222222222222222222222222222222222"),
	Symbol:   "CYC",
	Decimals: 18,
	ImageURL: "https://capyquest.example/cyc.png",
}

func balance(wei string) []byte {
	n, _ := new(big.Int).SetString(wei, 10)
	return common.LeftPadBytes(n.Bytes(), 32)
}

func newTestRefresher(t *testing.T) (*Refresher, *mocks.ChainReader, *mocks.WalletBridge, *clockwork.FakeClock, *observability.Metrics) {
	t.Helper()
	reader := &mocks.ChainReader{}
	wallet := &mocks.WalletBridge{}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	metrics := observability.NewMetricsForTesting()
	r := NewRefresher(reader, wallet, token, time.Minute, clock, zap.NewNop(), metrics)
	return r, reader, wallet, clock, metrics
}

func TestRefresh_FormatsBalance(t *testing.T) {
	r, reader, _, clock, _ := newTestRefresher(t)
	reader.On("CallContract", mock.Anything, token.Address, mock.Anything).
		Return(balance("1500000000000000000"), nil).Once()

	state, err := r.Refresh(context.Background(), player)

	require.NoError(t, err)
	assert.Equal(t, "1.5", state.BalanceDisplay)
	assert.Equal(t, "CYC", state.TokenSymbol)
	assert.Equal(t, 18, state.Decimals)
	assert.Equal(t, clock.Now(), state.UpdatedAt)
	assert.Equal(t, state, r.State(player))
	assert.Equal(t, state, r.State("0xabcdef0123456789abcdef0123456789abcdef01"))
}

func TestRefresh_ReadFailureKeepsPreviousState(t *testing.T) {
	r, reader, _, _, metrics := newTestRefresher(t)
	reader.On("CallContract", mock.Anything, token.Address, mock.Anything).Return(balance("7"), nil).Once()
	reader.On("CallContract", mock.Anything, token.Address, mock.Anything).Return(nil, errors.New("rpc down")).Once()

	before, err := r.Refresh(context.Background(), player)
	require.NoError(t, err)

	_, err = r.Refresh(context.Background(), player)
	require.Error(t, err)
	assert.Equal(t, before, r.State(player))
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.WalletRefreshErrors), 0)
}

func TestRefresh_InvalidAddress(t *testing.T) {
	r, reader, _, _, _ := newTestRefresher(t)

	_, err := r.Refresh(context.Background(), "capybara")

	require.Error(t, err)
	reader.AssertNotCalled(t, "CallContract", mock.Anything, mock.Anything, mock.Anything)
}

func TestState_UnknownAddressHasMetadataOnly(t *testing.T) {
	r, _, _, _, _ := newTestRefresher(t)

	got := r.State(player)

	assert.Equal(t, domain.WalletState{TokenSymbol: "CYC", Decimals: 18}, got)
}

func TestWatchAsset(t *testing.T) {
	r, _, wallet, _, _ := newTestRefresher(t)
	want := domain.TokenAsset{Address: token.Address, Symbol: "CYC", Decimals: 18, Image: token.ImageURL}
	wallet.On("WatchAsset", mock.Anything, want).Return(nil).Once()
	wallet.On("WatchAsset", mock.Anything, want).Return(domain.ErrUserRejected).Once()

	require.NoError(t, r.WatchAsset(context.Background()))
	assert.ErrorIs(t, r.WatchAsset(context.Background()), domain.ErrUserRejected)
}

func TestCheckReadiness(t *testing.T) {
	r, reader, _, _, _ := newTestRefresher(t)
	reader.On("ChainID", mock.Anything).Return("", errors.New("dial tcp: refused")).Once()
	reader.On("ChainID", mock.Anything).Return("0x507", nil).Once()

	require.Error(t, r.CheckReadiness(context.Background()))
	require.NoError(t, r.CheckReadiness(context.Background()))
	require.NoError(t, r.CheckReadiness(context.Background()))
	reader.AssertNumberOfCalls(t, "ChainID", 2)
}

func TestRun_RefreshesOnInterval(t *testing.T) {
	r, reader, _, clock, _ := newTestRefresher(t)
	reader.On("CallContract", mock.Anything, token.Address, mock.Anything).Return(balance("1000000000000000000"), nil).Once()
	reader.On("CallContract", mock.Anything, token.Address, mock.Anything).Return(balance("2000000000000000000"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, func() []string { return []string{player} }) }()

	assert.Eventually(t, func() bool { return r.State(player).BalanceDisplay == "1" }, time.Second, 5*time.Millisecond)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Minute)
	assert.Eventually(t, func() bool { return r.State(player).BalanceDisplay == "2" }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRun_BacksOffAfterFailure(t *testing.T) {
	r, reader, _, _, _ := newTestRefresher(t)
	reader.On("CallContract", mock.Anything, token.Address, mock.Anything).Return(nil, errors.New("rpc down")).Once()
	reader.On("CallContract", mock.Anything, token.Address, mock.Anything).Return(balance("3000000000000000000"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx, func() []string { return []string{player} }) }()

	assert.Eventually(t, func() bool { return r.State(player).BalanceDisplay == "3" }, 2*time.Second, 10*time.Millisecond)
}

func TestRun_ZeroIntervalWaitsForDefault(t *testing.T) {
	reader := &mocks.ChainReader{}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	r := NewRefresher(reader, &mocks.WalletBridge{}, token, 0, clock, zap.NewNop(), observability.NewMetricsForTesting())
	var reads atomic.Int32
	reader.On("CallContract", mock.Anything, token.Address, mock.Anything).
		Run(func(mock.Arguments) { reads.Add(1) }).
		Return(balance("1000000000000000000"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, func() []string { return []string{player} }) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, int32(1), reads.Load())

	clock.Advance(DefaultInterval - time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), reads.Load())

	clock.Advance(time.Second)
	assert.Eventually(t, func() bool { return reads.Load() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
