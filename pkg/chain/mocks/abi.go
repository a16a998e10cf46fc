package mocks

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/mock"
)

// Selector returns the 4-byte selector of a signature such as "decimals()".
func Selector(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

// CallTo matches an eth_call to contract whose data starts with the selector
// of sig.
func CallTo(contract common.Address, sig string) any {
	sel := Selector(sig)
	return mock.MatchedBy(func(msg ethereum.CallMsg) bool {
		return msg.To != nil && *msg.To == contract && bytes.HasPrefix(msg.Data, sel)
	})
}

// TxTo matches a transaction sent to addr whose data starts with the selector
// of sig. An empty sig matches any data.
func TxTo(addr common.Address, sig string) any {
	return mock.MatchedBy(func(msg ethereum.CallMsg) bool {
		if msg.To == nil || *msg.To != addr {
			return false
		}
		return sig == "" || bytes.HasPrefix(msg.Data, Selector(sig))
	})
}

// Word encodes v as a single 32-byte return value.
func Word(v int64) []byte {
	return common.LeftPadBytes(big.NewInt(v).Bytes(), 32)
}

// BigWord encodes v as a single 32-byte return value.
func BigWord(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

// StringResult encodes s as a single dynamic string return value.
func StringResult(s string) []byte {
	t, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(err)
	}
	out, err := abi.Arguments{{Type: t}}.Pack(s)
	if err != nil {
		panic(err)
	}
	return out
}

// SentTo matches a signed transaction to addr whose data starts with the
// selector of sig. An empty sig matches any data.
func SentTo(addr common.Address, sig string) any {
	return mock.MatchedBy(func(tx *types.Transaction) bool {
		if tx.To() == nil || *tx.To() != addr {
			return false
		}
		return sig == "" || bytes.HasPrefix(tx.Data(), Selector(sig))
	})
}
