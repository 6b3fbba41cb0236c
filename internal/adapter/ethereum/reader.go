package ethereum

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/couchcryptid/capyquest-claim/internal/domain"
)

// Reader is a domain.ChainReader over a public RPC endpoint.
type Reader struct {
	client       *ethclient.Client
	pollInterval time.Duration
	logger       *zap.Logger
}

// DialReader connects to the chain RPC at url. pollInterval is the gap between
// receipt lookups while waiting for a transaction to be mined.
func DialReader(ctx context.Context, url string, pollInterval time.Duration, logger *zap.Logger) (*Reader, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc %s: %w", url, err)
	}
	return NewReader(client, pollInterval, logger), nil
}

// NewReader wraps an existing client.
func NewReader(client *ethclient.Client, pollInterval time.Duration, logger *zap.Logger) *Reader {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Reader{client: client, pollInterval: pollInterval, logger: logger}
}

// Close releases the underlying connection.
func (r *Reader) Close() {
	r.client.Close()
}

// ChainID returns the chain id as a 0x-prefixed hex quantity.
func (r *Reader) ChainID(ctx context.Context) (string, error) {
	id, err := r.client.ChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("eth_chainId: %w", err)
	}
	return hexutil.EncodeBig(id), nil
}

// CallContract runs a read-only eth_call against the latest block.
func (r *Reader) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("eth_call %s: %w", to.Hex(), err)
	}
	return out, nil
}

// WaitForReceipt polls for the receipt of hash until it is mined or ctx ends.
// Lookup errors are retried; the caller bounds the wait through ctx.
func (r *Reader) WaitForReceipt(ctx context.Context, hash common.Hash) (domain.Receipt, error) {
	log := r.logger.With(zap.String("tx_hash", hash.Hex()))
	poll := backoff.WithContext(backoff.NewConstantBackOff(r.pollInterval), ctx)

	receipt, err := backoff.RetryNotifyWithData(func() (*types.Receipt, error) {
		return r.client.TransactionReceipt(ctx, hash)
	}, poll, func(err error, _ time.Duration) {
		if !errors.Is(err, ethereum.NotFound) {
			log.Warn("receipt lookup failed, retrying", zap.Error(err))
		}
	})
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("wait for receipt %s: %w", hash.Hex(), err)
	}

	log.Info("transaction mined", zap.Uint64("status", receipt.Status), zap.Uint64("block", receipt.BlockNumber.Uint64()))
	return domain.Receipt{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		Succeeded:   receipt.Status == types.ReceiptStatusSuccessful,
		GasUsed:     receipt.GasUsed,
	}, nil
}
