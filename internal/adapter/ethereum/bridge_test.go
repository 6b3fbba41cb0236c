package ethereum

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/couchcryptid/capyquest-claim/internal/domain"
)

var player = common.HexToAddress("0xAbCdEf0123456789aBcDeF0123456789abCDef01")

func dialTestBridge(t *testing.T) (*Bridge, *fakeNode) {
	t.Helper()
	node, srv := newFakeNode(t)
	b, err := DialBridge(context.Background(), srv.URL, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b, node
}

func TestBridge_AccountsAndChainID(t *testing.T) {
	b, node := dialTestBridge(t)
	node.result("eth_accounts", []string{player.Hex()})
	node.result("eth_chainId", "0x507")

	accounts, err := b.Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{player}, accounts)

	id, err := b.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0x507", id)
}

func TestBridge_SwitchChainErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		code int
		want error
	}{
		{name: "unrecognized chain", code: 4902, want: domain.ErrUnrecognizedChain},
		{name: "user rejected", code: 4001, want: domain.ErrUserRejected},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, node := dialTestBridge(t)
			node.fail("wallet_switchEthereumChain", tc.code, "wallet says no")

			err := b.SwitchChain(context.Background(), "0x507")

			require.ErrorIs(t, err, tc.want)
			assert.Contains(t, err.Error(), "wallet says no")
		})
	}
}

func TestBridge_SwitchChainOtherErrorIsNotMapped(t *testing.T) {
	b, node := dialTestBridge(t)
	node.fail("wallet_switchEthereumChain", -32603, "internal")

	err := b.SwitchChain(context.Background(), "0x507")

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUnrecognizedChain)
	assert.NotErrorIs(t, err, domain.ErrUserRejected)
}

func TestBridge_SwitchChainSendsChainID(t *testing.T) {
	b, node := dialTestBridge(t)
	node.result("wallet_switchEthereumChain", nil)

	require.NoError(t, b.SwitchChain(context.Background(), "0x507"))

	calls := node.params("wallet_switchEthereumChain")
	require.Len(t, calls, 1)
	assert.JSONEq(t, `[{"chainId":"0x507"}]`, string(calls[0]))
}

func TestBridge_AddChainParams(t *testing.T) {
	b, node := dialTestBridge(t)
	node.result("wallet_addEthereumChain", nil)
	network := domain.Network{
		ChainID:      "0x507",
		Name:         "Moonbase Alpha",
		Currency:     domain.NativeCurrency{Name: "DEV", Symbol: "DEV", Decimals: 18},
		RPCURLs:      []string{"https://rpc.api.moonbase.moonbeam.network"},
		ExplorerURLs: []string{"https://moonbase.moonscan.io/"},
	}

	require.NoError(t, b.AddChain(context.Background(), network))

	calls := node.params("wallet_addEthereumChain")
	require.Len(t, calls, 1)
	assert.JSONEq(t, `[{
		"chainId":"0x507",
		"chainName":"Moonbase Alpha",
		"nativeCurrency":{"name":"DEV","symbol":"DEV","decimals":18},
		"rpcUrls":["https://rpc.api.moonbase.moonbeam.network"],
		"blockExplorerUrls":["https://moonbase.moonscan.io/"]
	}]`, string(calls[0]))
}

func TestBridge_SendTransaction(t *testing.T) {
	b, node := dialTestBridge(t)
	hash := common.HexToHash("0xc1a1")
	node.result("eth_sendTransaction", hash.Hex())
	to := common.HexToAddress("0x1111111111111111111111111111111111111111")

	got, err := b.SendTransaction(context.Background(), domain.TxRequest{
		From:  player,
		To:    to,
		Data:  []byte{0xde, 0xad},
		Value: big.NewInt(255),
	})

	require.NoError(t, err)
	assert.Equal(t, hash, got)

	calls := node.params("eth_sendTransaction")
	require.Len(t, calls, 1)
	var args []map[string]string
	require.NoError(t, json.Unmarshal(calls[0], &args))
	require.Len(t, args, 1)
	assert.Equal(t, "0xdead", args[0]["data"])
	assert.Equal(t, "0xff", args[0]["value"])
	assert.True(t, domain.SameAddress(player.Hex(), args[0]["from"]))
	assert.True(t, domain.SameAddress(to.Hex(), args[0]["to"]))
}

func TestBridge_SendTransactionRejected(t *testing.T) {
	b, node := dialTestBridge(t)
	node.fail("eth_sendTransaction", 4001, "User denied transaction signature")

	_, err := b.SendTransaction(context.Background(), domain.TxRequest{From: player})

	assert.ErrorIs(t, err, domain.ErrUserRejected)
}

func TestBridge_WatchAsset(t *testing.T) {
	b, node := dialTestBridge(t)
	asset := domain.TokenAsset{
		Address:  common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Symbol:   "CYC",
		Decimals: 18,
		Image:    "https://capyquest.example/cyc.png",
	}

	node.result("wallet_watchAsset", true)
	require.NoError(t, b.WatchAsset(context.Background(), asset))

	var params []map[string]any
	require.NoError(t, json.Unmarshal(node.params("wallet_watchAsset")[0], &params))
	require.Len(t, params, 1)
	assert.Equal(t, "ERC20", params[0]["type"])

	node.result("wallet_watchAsset", false)
	assert.ErrorIs(t, b.WatchAsset(context.Background(), asset), domain.ErrUserRejected)
}
