package domain

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// NativeCurrency describes the gas token of a network.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// Network holds the connection parameters used to register a chain with a
// wallet (EIP-3085).
type Network struct {
	ChainID      string         `json:"chainId"`
	Name         string         `json:"chainName"`
	Currency     NativeCurrency `json:"nativeCurrency"`
	RPCURLs      []string       `json:"rpcUrls"`
	ExplorerURLs []string       `json:"blockExplorerUrls"`
}

// SameChain compares two hex chain ids numerically. Malformed ids never match.
func SameChain(a, b string) bool {
	x, err := hexutil.DecodeBig(normalizeQuantity(a))
	if err != nil {
		return false
	}
	y, err := hexutil.DecodeBig(normalizeQuantity(b))
	if err != nil {
		return false
	}
	return x.Cmp(y) == 0
}

// hexutil rejects leading zeros ("0x0507"), which some wallets emit.
func normalizeQuantity(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	digits, ok := strings.CutPrefix(s, "0x")
	if !ok {
		return s
	}
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		digits = "0"
	}
	return "0x" + digits
}

// Wallet errors surfaced by a WalletBridge (EIP-1193 provider errors).
var (
	ErrUnrecognizedChain = errors.New("unrecognized chain")
	ErrUserRejected      = errors.New("user rejected the request")
)

// TxRequest is a contract write submitted through the wallet.
type TxRequest struct {
	From  common.Address
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Receipt is the confirmation of a mined transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	Succeeded   bool
	GasUsed     uint64
}

// TokenAsset is the ERC-20 token the wallet is asked to track.
type TokenAsset struct {
	Address  common.Address
	Symbol   string
	Decimals int
	Image    string
}

// WalletBridge is the user's wallet: accounts, active network, network
// management and signed submission.
type WalletBridge interface {
	Accounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (string, error)
	SwitchChain(ctx context.Context, chainID string) error
	AddChain(ctx context.Context, network Network) error
	SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error)
	WatchAsset(ctx context.Context, asset TokenAsset) error
}

// ChainReader is read-only access to the target chain.
type ChainReader interface {
	ChainID(ctx context.Context) (string, error)
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	WaitForReceipt(ctx context.Context, hash common.Hash) (Receipt, error)
}
