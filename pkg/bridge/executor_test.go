package bridge

import (
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/socchain/faucet/pkg/chain"
	"github.com/socchain/faucet/pkg/chain/mocks"
	"github.com/socchain/faucet/pkg/events"
	"github.com/socchain/faucet/pkg/ledger"
)

func okReceipt() *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(321),
		GasUsed:     51234,
	}
}

func revertedReceipt() *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusFailed,
		BlockNumber: big.NewInt(322),
	}
}

type executorFixture struct {
	exec    *Executor
	primary *mocks.Client
	journal *ledger.MemoryJournal
	pub     *recordingPublisher
}

func newExecutorFixture(t *testing.T, clients ...*mocks.Client) executorFixture {
	t.Helper()
	if len(clients) == 0 {
		clients = []*mocks.Client{{}}
	}
	f := executorFixture{
		primary: clients[0],
		journal: ledger.NewMemoryJournal(),
		pub:     &recordingPublisher{},
	}
	f.exec = NewExecutor(testConfig(), newFailover(t, clients...), zaptest.NewLogger(t).Sugar(),
		WithJournal(f.journal),
		WithEventPublisher(f.pub),
		WithExecutorClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) }),
	)
	return f
}

func (f executorFixture) expectReads(t *testing.T, balance, allowance *big.Int) {
	t.Helper()
	f.primary.On("CodeAt", mock.Anything, bridgeAddr, mock.Anything).Return([]byte{0x60, 0x80}, nil).Once()
	f.primary.On("CallContract", mock.Anything, mocks.CallTo(sourceToken, balanceOfSig), mock.Anything).
		Return(mocks.BigWord(balance), nil).Once()
	f.primary.On("CallContract", mock.Anything, mocks.CallTo(sourceToken, allowanceSig), mock.Anything).
		Return(mocks.BigWord(allowance), nil).Once()
	f.primary.On("PendingNonceAt", mock.Anything, testAccount(t)).Return(uint64(7), nil).Once()
	f.primary.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(3_000_000_000), nil)
}

func validRequest(amount string) Request {
	return Request{PrivateKey: testKey, Amount: amount, TargetAddress: testTargetHex}
}

func TestExecute_ApprovesThenDeposits(t *testing.T) {
	t.Parallel()
	f := newExecutorFixture(t)
	f.expectReads(t, tokens(10), big.NewInt(0))

	var approveTx, depositTx *types.Transaction
	f.primary.On("SendTransaction", mock.Anything, mocks.SentTo(sourceToken, approveSig)).
		Run(func(args mock.Arguments) { approveTx = args.Get(1).(*types.Transaction) }).
		Return(nil).Once()
	f.primary.On("SendTransaction", mock.Anything, mocks.SentTo(bridgeAddr, depositSig)).
		Run(func(args mock.Arguments) { depositTx = args.Get(1).(*types.Transaction) }).
		Return(nil).Once()
	f.primary.On("TransactionReceipt", mock.Anything, mock.Anything).Return(okReceipt(), nil)

	got, err := f.exec.Execute(t.Context(), validRequest("2.5"))
	require.NoError(t, err)
	require.NotNil(t, approveTx)
	require.NotNil(t, depositTx)

	raw := new(big.Int).Div(tokens(25), big.NewInt(10))
	assert.Equal(t, uint64(7), approveTx.Nonce())
	assert.Equal(t, uint64(DefaultApprovalGas), approveTx.Gas())
	assert.Equal(t, 0, raw.Cmp(new(big.Int).SetBytes(approveTx.Data()[36:68])))
	assert.Equal(t, uint64(8), depositTx.Nonce())
	assert.Equal(t, uint64(DefaultDepositGas), depositTx.Gas())

	assert.Equal(t, depositTx.Hash().Hex(), got.TxHash)
	assert.Equal(t, approveTx.Hash().Hex(), got.ApprovalTxHash)
	assert.Equal(t, "321", got.BlockNumber)
	assert.Equal(t, "51234", got.GasUsed)
	assert.Equal(t, "2.5", got.Amount)
	assert.Equal(t, strings.ToLower(testTargetHex), got.TargetAddress)
	assert.Equal(t, IdempotencyKey(testAccount(t), testTargetHex, raw, 8), got.IdempotencyKey)

	attempts := f.journal.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, ledger.StatusSuccess, attempts[0].Status)
	assert.Equal(t, string(StageDeposit), attempts[0].Stage)
	assert.Equal(t, uint64(8), attempts[0].Nonce)
	assert.Equal(t, raw.String(), attempts[0].Amount)
	assert.Equal(t, int64(1_700_000_000_000), attempts[0].CreatedAt)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, events.BridgeSucceeded, f.pub.events[0].Type)
	var payload events.Bridge
	require.NoError(t, f.pub.events[0].Open(events.BridgeSucceeded, &payload))
	assert.Equal(t, got.IdempotencyKey, payload.IdempotencyKey)
	assert.Equal(t, got.TxHash, payload.TxHash)
}

func TestExecute_SufficientAllowanceSkipsApproval(t *testing.T) {
	t.Parallel()
	f := newExecutorFixture(t)
	f.expectReads(t, tokens(10), tokens(5))

	var depositTx *types.Transaction
	f.primary.On("SendTransaction", mock.Anything, mocks.SentTo(bridgeAddr, depositSig)).
		Run(func(args mock.Arguments) { depositTx = args.Get(1).(*types.Transaction) }).
		Return(nil).Once()
	f.primary.On("TransactionReceipt", mock.Anything, mock.Anything).Return(okReceipt(), nil).Once()

	got, err := f.exec.Execute(t.Context(), validRequest("5"))
	require.NoError(t, err)
	require.NotNil(t, depositTx)
	assert.Equal(t, uint64(7), depositTx.Nonce())
	assert.Empty(t, got.ApprovalTxHash)
	f.primary.AssertNumberOfCalls(t, "SendTransaction", 1)
	f.primary.AssertExpectations(t)
}

func TestExecute_InsufficientBalance(t *testing.T) {
	t.Parallel()
	f := newExecutorFixture(t)
	f.primary.On("CodeAt", mock.Anything, bridgeAddr, mock.Anything).Return([]byte{0x01}, nil).Once()
	f.primary.On("CallContract", mock.Anything, mocks.CallTo(sourceToken, balanceOfSig), mock.Anything).
		Return(mocks.BigWord(tokens(1)), nil).Once()

	_, err := f.exec.Execute(t.Context(), validRequest("5"))
	require.ErrorIs(t, err, ErrInsufficientBalance)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageBalanceCheck, stageErr.Stage)
	assert.Contains(t, err.Error(), "need 5, have 1")
	f.primary.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
	assert.Empty(t, f.journal.Attempts())
}

func TestExecute_BridgeContractMissing(t *testing.T) {
	t.Parallel()
	f := newExecutorFixture(t)
	f.primary.On("CodeAt", mock.Anything, bridgeAddr, mock.Anything).Return([]byte{}, nil).Once()

	_, err := f.exec.Execute(t.Context(), validRequest("1"))
	require.ErrorIs(t, err, ErrBridgeContractNotFound)
	assert.True(t, strings.HasPrefix(err.Error(), "contract check failed: "))
	f.primary.AssertNotCalled(t, "CallContract", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecute_BalanceReadFailsOver(t *testing.T) {
	t.Parallel()
	backup := &mocks.Client{}
	f := newExecutorFixture(t, &mocks.Client{}, backup)
	f.primary.On("CodeAt", mock.Anything, bridgeAddr, mock.Anything).Return([]byte{0x01}, nil).Once()
	f.primary.On("CallContract", mock.Anything, mocks.CallTo(sourceToken, balanceOfSig), mock.Anything).
		Return(nil, errors.New("503 service unavailable")).Once()
	backup.On("CallContract", mock.Anything, mocks.CallTo(sourceToken, balanceOfSig), mock.Anything).
		Return(mocks.BigWord(tokens(3)), nil).Once()
	f.primary.On("CallContract", mock.Anything, mocks.CallTo(sourceToken, allowanceSig), mock.Anything).
		Return(mocks.BigWord(tokens(3)), nil).Once()
	f.primary.On("PendingNonceAt", mock.Anything, testAccount(t)).Return(uint64(0), nil).Once()
	f.primary.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(1), nil)
	f.primary.On("SendTransaction", mock.Anything, mocks.SentTo(bridgeAddr, depositSig)).Return(nil).Once()
	f.primary.On("TransactionReceipt", mock.Anything, mock.Anything).Return(okReceipt(), nil).Once()

	_, err := f.exec.Execute(t.Context(), validRequest("3"))
	require.NoError(t, err)
	backup.AssertExpectations(t)
	backup.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
}

func TestExecute_ApprovalReverted(t *testing.T) {
	t.Parallel()
	f := newExecutorFixture(t)
	f.expectReads(t, tokens(10), big.NewInt(0))
	f.primary.On("SendTransaction", mock.Anything, mocks.SentTo(sourceToken, approveSig)).Return(nil).Once()
	f.primary.On("TransactionReceipt", mock.Anything, mock.Anything).Return(revertedReceipt(), nil).Once()

	_, err := f.exec.Execute(t.Context(), validRequest("1"))
	require.ErrorIs(t, err, ErrApprovalFailed)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageApproval, stageErr.Stage)
	f.primary.AssertNumberOfCalls(t, "SendTransaction", 1)

	attempts := f.journal.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, ledger.StatusFailed, attempts[0].Status)
	assert.Equal(t, string(StageApproval), attempts[0].Stage)
	assert.Contains(t, attempts[0].FailureReason, "approval failed")

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, events.BridgeFailed, f.pub.events[0].Type)
}

func TestExecute_DepositReverted(t *testing.T) {
	t.Parallel()
	f := newExecutorFixture(t)
	f.expectReads(t, tokens(10), tokens(10))
	f.primary.On("SendTransaction", mock.Anything, mocks.SentTo(bridgeAddr, depositSig)).Return(nil).Once()
	f.primary.On("TransactionReceipt", mock.Anything, mock.Anything).Return(revertedReceipt(), nil).Once()

	_, err := f.exec.Execute(t.Context(), validRequest("1"))
	require.ErrorIs(t, err, chain.ErrReceiptReverted)
	assert.NotErrorIs(t, err, ErrApprovalFailed)
	assert.Contains(t, err.Error(), "in block 322")

	attempts := f.journal.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, string(StageDeposit), attempts[0].Stage)
	assert.NotEmpty(t, attempts[0].TxHash)
}

func TestExecute_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"short key", Request{PrivateKey: "0x1234", Amount: "1", TargetAddress: testTargetHex}, "privateKey"},
		{"key without prefix", Request{PrivateKey: strings.TrimPrefix(testKey, "0x"), Amount: "1", TargetAddress: testTargetHex}, "privateKey"},
		{"not a number", validRequest("abc"), "amount"},
		{"below minimum", validRequest("0.00000001"), "amount"},
		{"above maximum", validRequest("1000000.5"), "amount"},
		{"zero", validRequest("0"), "amount"},
		{"bad target", Request{PrivateKey: testKey, Amount: "1", TargetAddress: "0x12"}, "targetAddress"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newExecutorFixture(t)

			_, err := f.exec.Execute(t.Context(), tt.req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			f.primary.AssertNotCalled(t, "CodeAt", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestValidateAmount_Bounds(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"0.0000001", "1", " 42.5 ", "1000000"} {
		_, err := ValidateAmount(s)
		require.NoError(t, err, s)
	}
}

func TestIdempotencyKey_Stable(t *testing.T) {
	t.Parallel()

	a := testAccount(t)
	k1 := IdempotencyKey(a, testTargetHex, big.NewInt(5), 1)
	assert.Len(t, k1, 64)
	assert.Equal(t, k1, IdempotencyKey(a, strings.ToLower(testTargetHex), big.NewInt(5), 1))
	assert.NotEqual(t, k1, IdempotencyKey(a, testTargetHex, big.NewInt(5), 2))
	assert.NotEqual(t, k1, IdempotencyKey(a, testTargetHex, big.NewInt(6), 1))
}
