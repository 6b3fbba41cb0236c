// Package contract encodes calls to the CapyQuest NFT distribution and
// CapyCoin token contracts.
package contract

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const distributionABI = `[
  {"type":"function","name":"claimNFT","stateMutability":"nonpayable",
   "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]}
]`

const capyCoinABI = `[
  {"type":"function","name":"buyCapyCoin","stateMutability":"payable","inputs":[],"outputs":[]},
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	distribution = mustParse(distributionABI)
	capyCoin     = mustParse(capyCoinABI)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("contract: bad ABI: " + err.Error())
	}
	return parsed
}

// PackClaim encodes claimNFT(tokenId).
func PackClaim(tokenID *big.Int) ([]byte, error) {
	return distribution.Pack("claimNFT", tokenID)
}

// PackBuy encodes buyCapyCoin(); the purchase amount travels as the tx value.
func PackBuy() ([]byte, error) {
	return capyCoin.Pack("buyCapyCoin")
}

// PackBalanceOf encodes balanceOf(account).
func PackBalanceOf(account common.Address) ([]byte, error) {
	return capyCoin.Pack("balanceOf", account)
}

// UnpackBalanceOf decodes the uint256 returned by balanceOf.
func UnpackBalanceOf(data []byte) (*big.Int, error) {
	out, err := capyCoin.Unpack("balanceOf", data)
	if err != nil {
		return nil, fmt.Errorf("decode balanceOf: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("decode balanceOf: got %d values", len(out))
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("decode balanceOf: unexpected type %T", out[0])
	}
	return balance, nil
}
