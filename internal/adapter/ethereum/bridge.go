// Package ethereum talks to the player's wallet over its EIP-1193 JSON-RPC
// bridge and reads the target chain through a public RPC endpoint.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/couchcryptid/capyquest-claim/internal/domain"
)

// EIP-1193 provider error codes.
const (
	codeUserRejected      = 4001
	codeUnrecognizedChain = 4902
)

// Bridge is a domain.WalletBridge backed by a wallet's JSON-RPC endpoint.
type Bridge struct {
	client *rpc.Client
	logger *zap.Logger
}

// DialBridge connects to the wallet bridge at url.
func DialBridge(ctx context.Context, url string, logger *zap.Logger) (*Bridge, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial wallet bridge %s: %w", url, err)
	}
	return NewBridge(client, logger), nil
}

// NewBridge wraps an existing RPC client.
func NewBridge(client *rpc.Client, logger *zap.Logger) *Bridge {
	return &Bridge{client: client, logger: logger}
}

// Close releases the underlying connection.
func (b *Bridge) Close() {
	b.client.Close()
}

// Accounts returns the accounts the wallet exposes (eth_accounts).
func (b *Bridge) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := b.call(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

// ChainID returns the wallet's active chain id (eth_chainId).
func (b *Bridge) ChainID(ctx context.Context) (string, error) {
	var id string
	if err := b.call(ctx, &id, "eth_chainId"); err != nil {
		return "", err
	}
	return id, nil
}

// SwitchChain asks the wallet to switch to chainID (wallet_switchEthereumChain).
func (b *Bridge) SwitchChain(ctx context.Context, chainID string) error {
	return b.call(ctx, nil, "wallet_switchEthereumChain", map[string]string{"chainId": chainID})
}

// AddChain registers network with the wallet (wallet_addEthereumChain).
func (b *Bridge) AddChain(ctx context.Context, network domain.Network) error {
	return b.call(ctx, nil, "wallet_addEthereumChain", network)
}

type sendTxArgs struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Data  hexutil.Bytes  `json:"data"`
	Value *hexutil.Big   `json:"value"`
}

// SendTransaction submits tx for signing and returns its hash (eth_sendTransaction).
func (b *Bridge) SendTransaction(ctx context.Context, tx domain.TxRequest) (common.Hash, error) {
	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}
	args := sendTxArgs{From: tx.From, To: tx.To, Data: tx.Data, Value: (*hexutil.Big)(value)}

	var hash common.Hash
	if err := b.call(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, err
	}
	b.logger.Info("transaction submitted", zap.String("tx_hash", hash.Hex()), zap.String("to", tx.To.Hex()))
	return hash, nil
}

type watchAssetParams struct {
	Type    string           `json:"type"`
	Options watchAssetOption `json:"options"`
}

type watchAssetOption struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals int            `json:"decimals"`
	Image    string         `json:"image,omitempty"`
}

// WatchAsset asks the wallet to track an ERC-20 token (wallet_watchAsset).
func (b *Bridge) WatchAsset(ctx context.Context, asset domain.TokenAsset) error {
	params := watchAssetParams{
		Type: "ERC20",
		Options: watchAssetOption{
			Address:  asset.Address,
			Symbol:   asset.Symbol,
			Decimals: asset.Decimals,
			Image:    asset.Image,
		},
	}
	var added bool
	if err := b.call(ctx, &added, "wallet_watchAsset", params); err != nil {
		return err
	}
	if !added {
		return fmt.Errorf("wallet_watchAsset: %w", domain.ErrUserRejected)
	}
	return nil
}

func (b *Bridge) call(ctx context.Context, result any, method string, args ...any) error {
	if err := b.client.CallContext(ctx, result, method, args...); err != nil {
		return fmt.Errorf("%s: %w", method, mapProviderError(err))
	}
	return nil
}

// mapProviderError turns EIP-1193 error codes into domain sentinels while
// keeping the wallet's message.
func mapProviderError(err error) error {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return err
	}
	switch rpcErr.ErrorCode() {
	case codeUnrecognizedChain:
		return fmt.Errorf("%w: %s", domain.ErrUnrecognizedChain, rpcErr.Error())
	case codeUserRejected:
		return fmt.Errorf("%w: %s", domain.ErrUserRejected, rpcErr.Error())
	default:
		return err
	}
}
