package ethereum

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dialTestReader(t *testing.T) (*Reader, *fakeNode) {
	t.Helper()
	node, srv := newFakeNode(t)
	r, err := DialReader(context.Background(), srv.URL, 5*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r, node
}

func receiptJSON(hash common.Hash, status string) map[string]any {
	return map[string]any{
		"type":              "0x2",
		"status":            status,
		"cumulativeGasUsed": "0x5208",
		"logsBloom":         hexutil.Bytes(make([]byte, 256)),
		"logs":              []any{},
		"transactionHash":   hash.Hex(),
		"contractAddress":   nil,
		"gasUsed":           "0x5208",
		"effectiveGasPrice": "0x1",
		"blockHash":         common.HexToHash("0xb10c").Hex(),
		"blockNumber":       "0x10",
		"transactionIndex":  "0x0",
	}
}

func TestReader_ChainID(t *testing.T) {
	r, node := dialTestReader(t)
	node.result("eth_chainId", "0x507")

	id, err := r.ChainID(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "0x507", id)
}

func TestReader_CallContract(t *testing.T) {
	r, node := dialTestReader(t)
	node.result("eth_call", "0x000000000000000000000000000000000000000000000000000000000000002a")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")

	out, err := r.CallContract(context.Background(), to, []byte{0x70, 0xa0, 0x82, 0x31})

	require.NoError(t, err)
	require.Len(t, out, 32)
	assert.Equal(t, byte(42), out[31])

	var params []json.RawMessage
	require.NoError(t, json.Unmarshal(node.params("eth_call")[0], &params))
	require.Len(t, params, 2)
	assert.Contains(t, string(params[0]), "0x70a08231")
	assert.JSONEq(t, `"latest"`, string(params[1]))
}

func TestReader_WaitForReceiptPollsUntilMined(t *testing.T) {
	r, node := dialTestReader(t)
	hash := common.HexToHash("0xc1a1")
	var lookups atomic.Int32
	node.handle("eth_getTransactionReceipt", func(json.RawMessage) (any, *rpcError) {
		if lookups.Add(1) < 3 {
			return nil, nil
		}
		return receiptJSON(hash, "0x1"), nil
	})

	receipt, err := r.WaitForReceipt(context.Background(), hash)

	require.NoError(t, err)
	assert.True(t, receipt.Succeeded)
	assert.Equal(t, hash, receipt.TxHash)
	assert.Equal(t, uint64(16), receipt.BlockNumber)
	assert.Equal(t, uint64(21000), receipt.GasUsed)
	assert.Equal(t, int32(3), lookups.Load())
}

func TestReader_WaitForReceiptReverted(t *testing.T) {
	r, node := dialTestReader(t)
	hash := common.HexToHash("0xbad")
	node.result("eth_getTransactionReceipt", receiptJSON(hash, "0x0"))

	receipt, err := r.WaitForReceipt(context.Background(), hash)

	require.NoError(t, err)
	assert.False(t, receipt.Succeeded)
}

func TestReader_WaitForReceiptRetriesLookupErrors(t *testing.T) {
	r, node := dialTestReader(t)
	hash := common.HexToHash("0xc1a1")
	var lookups atomic.Int32
	node.handle("eth_getTransactionReceipt", func(json.RawMessage) (any, *rpcError) {
		if lookups.Add(1) == 1 {
			return nil, &rpcError{Code: -32000, Message: "header not found"}
		}
		return receiptJSON(hash, "0x1"), nil
	})

	receipt, err := r.WaitForReceipt(context.Background(), hash)

	require.NoError(t, err)
	assert.True(t, receipt.Succeeded)
}

func TestReader_WaitForReceiptHonorsDeadline(t *testing.T) {
	r, node := dialTestReader(t)
	node.result("eth_getTransactionReceipt", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := r.WaitForReceipt(ctx, common.HexToHash("0xc1a1"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}
