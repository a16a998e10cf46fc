package chain

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/socchain/faucet/pkg/chain/mocks"
)

var (
	testToken   = common.HexToAddress("0x0000000000000000000000000000000000000701")
	testAccount = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func packOutput(t *testing.T, method string, v ...any) []byte {
	t.Helper()
	out, err := erc20ABI.Methods[method].Outputs.Pack(v...)
	require.NoError(t, err)
	return out
}

func callTo(method string) any {
	selector := erc20ABI.Methods[method].ID
	return mock.MatchedBy(func(msg ethereum.CallMsg) bool {
		return len(msg.Data) >= 4 && string(msg.Data[:4]) == string(selector)
	})
}

func TestPackTransfer_Selector(t *testing.T) {
	t.Parallel()

	data, err := PackTransfer(testAccount, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, "a9059cbb", common.Bytes2Hex(data[:4]))
	assert.Len(t, data, 4+32+32)
}

func TestPackApproveAndDeposit(t *testing.T) {
	t.Parallel()

	approve, err := PackApprove(testAccount, big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, "095ea7b3", common.Bytes2Hex(approve[:4]))

	deposit, err := PackDeposit(big.NewInt(5), "0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	assert.Equal(t, bridgeABI.Methods["deposit"].ID, deposit[:4])
}

func TestBalanceOfAndDecimals(t *testing.T) {
	t.Parallel()
	c := &mocks.Client{}
	ctx := t.Context()

	c.On("CallContract", mock.Anything, callTo("balanceOf"), (*big.Int)(nil)).
		Return(packOutput(t, "balanceOf", big.NewInt(12345)), nil).Once()
	c.On("CallContract", mock.Anything, callTo("decimals"), (*big.Int)(nil)).
		Return(packOutput(t, "decimals", uint8(6)), nil).Once()
	c.On("CallContract", mock.Anything, callTo("symbol"), (*big.Int)(nil)).
		Return(packOutput(t, "symbol", "SOC"), nil).Once()
	c.On("CallContract", mock.Anything, callTo("allowance"), (*big.Int)(nil)).
		Return(packOutput(t, "allowance", big.NewInt(9)), nil).Once()

	bal, err := BalanceOf(ctx, c, testToken, testAccount)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), bal.Int64())

	dec, err := Decimals(ctx, c, testToken)
	require.NoError(t, err)
	assert.Equal(t, int32(6), dec)

	sym, err := Symbol(ctx, c, testToken)
	require.NoError(t, err)
	assert.Equal(t, "SOC", sym)

	allowance, err := Allowance(ctx, c, testToken, testAccount, testToken)
	require.NoError(t, err)
	assert.Equal(t, int64(9), allowance.Int64())
	c.AssertExpectations(t)
}

func TestCall_EmptyResultAndError(t *testing.T) {
	t.Parallel()
	c := &mocks.Client{}
	rpcErr := errors.New("execution reverted")

	c.On("CallContract", mock.Anything, callTo("decimals"), (*big.Int)(nil)).Return([]byte{}, nil).Once()
	c.On("CallContract", mock.Anything, callTo("balanceOf"), (*big.Int)(nil)).Return(nil, rpcErr).Once()

	_, err := Decimals(t.Context(), c, testToken)
	require.ErrorIs(t, err, ErrEmptyResult)

	_, err = BalanceOf(t.Context(), c, testToken, testAccount)
	require.ErrorIs(t, err, rpcErr)
}

func TestHasCode(t *testing.T) {
	t.Parallel()
	c := &mocks.Client{}
	other := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	c.On("CodeAt", mock.Anything, testToken, (*big.Int)(nil)).Return([]byte{0x60, 0x80}, nil).Once()
	c.On("CodeAt", mock.Anything, other, (*big.Int)(nil)).Return([]byte{}, nil).Once()

	ok, err := HasCode(t.Context(), c, testToken)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = HasCode(t.Context(), c, other)
	require.NoError(t, err)
	assert.False(t, ok)
}
