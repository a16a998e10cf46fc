package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/socchain/faucet/pkg/chain/mocks"
)

var testHash = common.HexToHash("0x01")

func TestWaitForReceipt_PollsUntilMined(t *testing.T) {
	t.Parallel()
	c := &mocks.Client{}
	c.On("TransactionReceipt", mock.Anything, testHash).Return(nil, ethereum.NotFound).Twice()
	c.On("TransactionReceipt", mock.Anything, testHash).Return(nil, errors.New("flaky node")).Once()
	c.On("TransactionReceipt", mock.Anything, testHash).
		Return(&types.Receipt{Status: types.ReceiptStatusSuccessful, GasUsed: 21000}, nil).Once()

	r, err := WaitForReceipt(t.Context(), c, testHash, 5*time.Second, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, uint64(21000), r.GasUsed)
	c.AssertExpectations(t)
}

func TestWaitForReceipt_Reverted(t *testing.T) {
	t.Parallel()
	c := &mocks.Client{}
	c.On("TransactionReceipt", mock.Anything, testHash).
		Return(&types.Receipt{Status: types.ReceiptStatusFailed}, nil).Once()

	r, err := WaitForReceipt(t.Context(), c, testHash, time.Second, time.Millisecond)
	require.ErrorIs(t, err, ErrReceiptReverted)
	require.NotNil(t, r)
}

func TestWaitForReceipt_Timeout(t *testing.T) {
	t.Parallel()
	c := &mocks.Client{}
	c.On("TransactionReceipt", mock.Anything, testHash).Return(nil, ethereum.NotFound)

	_, err := WaitForReceipt(t.Context(), c, testHash, 30*time.Millisecond, 5*time.Millisecond)
	require.ErrorIs(t, err, ErrReceiptTimeout)
}

func TestWaitForReceipt_ParentCancelled(t *testing.T) {
	t.Parallel()
	c := &mocks.Client{}
	c.On("TransactionReceipt", mock.Anything, testHash).Return(nil, ethereum.NotFound)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := WaitForReceipt(ctx, c, testHash, time.Second, time.Millisecond)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrReceiptTimeout)
}
