// Package mocks holds testify mocks of the domain ports.
package mocks

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"

	"github.com/couchcryptid/capyquest-claim/internal/domain"
)

// WalletBridge is a mock domain.WalletBridge.
type WalletBridge struct {
	mock.Mock
}

func (m *WalletBridge) Accounts(ctx context.Context) ([]common.Address, error) {
	args := m.Called(ctx)
	accounts, _ := args.Get(0).([]common.Address)
	return accounts, args.Error(1)
}

func (m *WalletBridge) ChainID(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *WalletBridge) SwitchChain(ctx context.Context, chainID string) error {
	args := m.Called(ctx, chainID)
	return args.Error(0)
}

func (m *WalletBridge) AddChain(ctx context.Context, network domain.Network) error {
	args := m.Called(ctx, network)
	return args.Error(0)
}

func (m *WalletBridge) SendTransaction(ctx context.Context, tx domain.TxRequest) (common.Hash, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *WalletBridge) WatchAsset(ctx context.Context, asset domain.TokenAsset) error {
	args := m.Called(ctx, asset)
	return args.Error(0)
}

// ChainReader is a mock domain.ChainReader.
type ChainReader struct {
	mock.Mock
}

func (m *ChainReader) ChainID(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *ChainReader) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	args := m.Called(ctx, to, data)
	out, _ := args.Get(0).([]byte)
	return out, args.Error(1)
}

func (m *ChainReader) WaitForReceipt(ctx context.Context, hash common.Hash) (domain.Receipt, error) {
	args := m.Called(ctx, hash)
	return args.Get(0).(domain.Receipt), args.Error(1)
}

// TargetSource is a mock domain.TargetSource.
type TargetSource struct {
	mock.Mock
}

func (m *TargetSource) Targets(ctx context.Context) ([]domain.ClaimTarget, error) {
	args := m.Called(ctx)
	targets, _ := args.Get(0).([]domain.ClaimTarget)
	return targets, args.Error(1)
}

func (m *TargetSource) Target(ctx context.Context, tokenID string) (domain.ClaimTarget, error) {
	args := m.Called(ctx, tokenID)
	return args.Get(0).(domain.ClaimTarget), args.Error(1)
}
