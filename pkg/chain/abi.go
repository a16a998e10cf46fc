package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABIJSON = `[
 {"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
 {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

const bridgeABIJSON = `[
 {"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"},{"name":"targetAddress","type":"string"}],"outputs":[]}
]`

var (
	erc20ABI  = mustParseABI(erc20ABIJSON)
	bridgeABI = mustParseABI(bridgeABIJSON)
)

var ErrEmptyResult = errors.New("contract call returned no data")

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded abi: %v", err))
	}
	return parsed
}

// PackTransfer encodes ERC-20 transfer(to, amount).
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("transfer", to, amount)
}

// PackApprove encodes ERC-20 approve(spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("approve", spender, amount)
}

// PackDeposit encodes bridge deposit(amount, targetAddress).
func PackDeposit(amount *big.Int, target string) ([]byte, error) {
	return bridgeABI.Pack("deposit", amount, target)
}

func call(ctx context.Context, c Client, contract common.Address, method string, args ...any) ([]any, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	ret, err := c.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	if len(ret) == 0 {
		return nil, fmt.Errorf("%s: %w", method, ErrEmptyResult)
	}
	out, err := erc20ABI.Methods[method].Outputs.Unpack(ret)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s: unexpected output count %d", method, len(out))
	}
	return out, nil
}

func callBig(ctx context.Context, c Client, contract common.Address, method string, args ...any) (*big.Int, error) {
	out, err := call(ctx, c, contract, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected output type %T", method, out[0])
	}
	return v, nil
}

// BalanceOf reads token.balanceOf(account).
func BalanceOf(ctx context.Context, c Client, token, account common.Address) (*big.Int, error) {
	return callBig(ctx, c, token, "balanceOf", account)
}

// Allowance reads token.allowance(owner, spender).
func Allowance(ctx context.Context, c Client, token, owner, spender common.Address) (*big.Int, error) {
	return callBig(ctx, c, token, "allowance", owner, spender)
}

// Decimals reads token.decimals().
func Decimals(ctx context.Context, c Client, token common.Address) (int32, error) {
	out, err := call(ctx, c, token, "decimals")
	if err != nil {
		return 0, err
	}
	v, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: unexpected output type %T", out[0])
	}
	return int32(v), nil
}

// Symbol reads token.symbol().
func Symbol(ctx context.Context, c Client, token common.Address) (string, error) {
	out, err := call(ctx, c, token, "symbol")
	if err != nil {
		return "", err
	}
	v, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("symbol: unexpected output type %T", out[0])
	}
	return v, nil
}

// HasCode reports whether a contract is deployed at addr.
func HasCode(ctx context.Context, c Client, addr common.Address) (bool, error) {
	code, err := c.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, fmt.Errorf("failed to read code at %s: %w", addr.Hex(), err)
	}
	return len(code) > 0, nil
}
