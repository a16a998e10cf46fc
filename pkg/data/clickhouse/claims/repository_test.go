package claims

import (
	"database/sql"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/socchain/faucet/pkg/clickhouse/testutils"
	"github.com/socchain/faucet/pkg/ledger"
)

const testAddr = "0x00000000000000000000000000000000000000aa"

// rowMock populates scan destinations from a claim record.
type rowMock struct {
	rec ledger.ClaimRecord
	err error
}

func (r rowMock) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return fillClaim(r.rec, dest)
}

func (r rowMock) Err() error { return r.err }

func (r rowMock) ScanStruct(dest any) error { return r.Scan(dest) }

var (
	_ driver.Row  = rowMock{}
	_ driver.Rows = (*rowsMock)(nil)
)

type rowsMock struct {
	recs []ledger.ClaimRecord
	idx  int
	err  error
}

func (r *rowsMock) Next() bool {
	if r.idx >= len(r.recs) {
		return false
	}
	r.idx++
	return true
}

func (r *rowsMock) Scan(dest ...any) error { return fillClaim(r.recs[r.idx-1], dest) }

func (r *rowsMock) ScanStruct(dest any) error { return r.Scan(dest) }

func (r *rowsMock) ColumnTypes() []driver.ColumnType { return nil }

func (r *rowsMock) Totals(dest ...any) error { return nil }

func (r *rowsMock) Columns() []string { return nil }

func (r *rowsMock) Close() error { return nil }

func (r *rowsMock) Err() error { return r.err }

func fillClaim(rec ledger.ClaimRecord, dest []any) error {
	if len(dest) != 10 {
		return errors.New("unexpected dest len")
	}
	values := []any{
		rec.ID, rec.Address, rec.Chain, rec.TxHash, rec.Amount,
		rec.ClaimedAt, rec.NextAllowedAt, string(rec.Status), rec.FailureReason, rec.IP,
	}
	for i, v := range values {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

func contains(sub string) any {
	return mock.MatchedBy(func(q string) bool { return strings.Contains(q, sub) })
}

func newRepo(t *testing.T, conn *testutils.MockConn) *Repository {
	t.Helper()
	conn.On("Exec", mock.Anything, contains("CREATE TABLE IF NOT EXISTS default.claims")).Return(nil).Once()
	repo, err := NewRepository(t.Context(), testutils.NewTestClient(conn), "", "default", "claims")
	require.NoError(t, err)
	return repo
}

func TestNewRepository_CreateTableError(t *testing.T) {
	t.Parallel()
	conn := &testutils.MockConn{}
	ddlErr := errors.New("ddl failed")
	conn.On("Exec", mock.Anything, contains("ON CLUSTER faucet")).Return(ddlErr)

	repo, err := NewRepository(t.Context(), testutils.NewTestClient(conn), "ON CLUSTER faucet", "default", "claims")
	require.ErrorIs(t, err, ddlErr)
	assert.Nil(t, repo)
}

func TestRepository_Append(t *testing.T) {
	t.Parallel()
	conn := &testutils.MockConn{}
	repo := newRepo(t, conn)

	rec := ledger.NewSuccess(testAddr, "bsc", "0xabc", "100", 1000, 2000, "10.0.0.1")
	conn.On("Exec", mock.Anything, contains("INSERT INTO default.claims"),
		rec.ID, testAddr, "bsc", "0xabc", "100", int64(1000), int64(2000), "SUCCESS", "", "10.0.0.1",
	).Return(nil).Once()

	require.NoError(t, repo.Append(t.Context(), rec))
	conn.AssertExpectations(t)
}

func TestRepository_Append_Error(t *testing.T) {
	t.Parallel()
	conn := &testutils.MockConn{}
	repo := newRepo(t, conn)
	insertErr := errors.New("insert failed")

	conn.On("Exec", mock.Anything, contains("INSERT INTO default.claims"),
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, "FAILED", "rpc down", mock.Anything,
	).Return(insertErr).Once()

	err := repo.Append(t.Context(), ledger.NewFailure(testAddr, "bsc", "100", 1, 2, "rpc down", ""))
	require.ErrorIs(t, err, insertErr)
	require.ErrorIs(t, repo.Append(t.Context(), nil), ledger.ErrNilRecord)
}

func TestRepository_LastSuccess(t *testing.T) {
	t.Parallel()
	conn := &testutils.MockConn{}
	repo := newRepo(t, conn)

	want := ledger.ClaimRecord{
		ID:            uuid.New(),
		Address:       testAddr,
		Chain:         "socchain",
		TxHash:        "0xdef",
		Amount:        "100",
		ClaimedAt:     10,
		NextAllowedAt: 20,
		Status:        ledger.StatusSuccess,
	}
	conn.On("QueryRow", mock.Anything, contains("status = 'SUCCESS'"), testAddr, "socchain").
		Return(rowMock{rec: want}).Once()

	got, err := repo.LastSuccess(t.Context(), testAddr, "socchain")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestRepository_LastSuccess_NoRows(t *testing.T) {
	t.Parallel()
	conn := &testutils.MockConn{}
	repo := newRepo(t, conn)

	conn.On("QueryRow", mock.Anything, contains("FROM default.claims"), testAddr, "bsc").
		Return(rowMock{err: sql.ErrNoRows}).Once()

	got, err := repo.LastSuccess(t.Context(), testAddr, "bsc")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_LastSuccess_ScanError(t *testing.T) {
	t.Parallel()
	conn := &testutils.MockConn{}
	repo := newRepo(t, conn)
	scanErr := errors.New("connection reset")

	conn.On("QueryRow", mock.Anything, contains("FROM default.claims"), testAddr, "bsc").
		Return(rowMock{err: scanErr}).Once()

	got, err := repo.LastSuccess(t.Context(), testAddr, "bsc")
	require.ErrorIs(t, err, scanErr)
	assert.Nil(t, got)
}

func TestRepository_History(t *testing.T) {
	t.Parallel()
	conn := &testutils.MockConn{}
	repo := newRepo(t, conn)

	rows := &rowsMock{recs: []ledger.ClaimRecord{
		{ID: uuid.New(), Address: testAddr, Chain: "bsc", ClaimedAt: 2, Status: ledger.StatusFailed, TxHash: ledger.NoTxHash},
		{ID: uuid.New(), Address: testAddr, Chain: "bsc", ClaimedAt: 1, Status: ledger.StatusSuccess, TxHash: "0x1"},
	}}
	conn.On("Query", mock.Anything, contains("LIMIT ?"), testAddr, "bsc", uint64(defaultHistoryLimit)).
		Return(rows, nil).Once()

	got, err := repo.History(t.Context(), testAddr, "bsc", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ledger.StatusFailed, got[0].Status)
	assert.Equal(t, "0x1", got[1].TxHash)
}

func TestRepository_History_QueryError(t *testing.T) {
	t.Parallel()
	conn := &testutils.MockConn{}
	repo := newRepo(t, conn)
	queryErr := errors.New("timeout")

	conn.On("Query", mock.Anything, contains("LIMIT ?"), testAddr, "bsc", uint64(5)).
		Return(nil, queryErr).Once()

	_, err := repo.History(t.Context(), testAddr, "bsc", 5)
	require.ErrorIs(t, err, queryErr)
}

func TestJournal_Record(t *testing.T) {
	t.Parallel()
	conn := &testutils.MockConn{}
	conn.On("Exec", mock.Anything, contains("CREATE TABLE IF NOT EXISTS default.bridge_attempts")).Return(nil).Once()

	j, err := NewJournal(t.Context(), testutils.NewTestClient(conn), "", "default", "bridge_attempts")
	require.NoError(t, err)

	conn.On("Exec", mock.Anything, contains("INSERT INTO default.bridge_attempts"),
		mock.Anything, "key-1", "0xsigner", "0xtarget", "1.5", uint64(7), "deposit", "0xhash", "SUCCESS", "", int64(99),
	).Return(nil).Once()

	err = j.Record(t.Context(), &ledger.BridgeAttempt{
		IdempotencyKey: "key-1",
		Signer:         "0xsigner",
		Target:         "0xtarget",
		Amount:         "1.5",
		Nonce:          7,
		Stage:          "deposit",
		TxHash:         "0xhash",
		Status:         ledger.StatusSuccess,
		CreatedAt:      99,
	})
	require.NoError(t, err)
	require.ErrorIs(t, j.Record(t.Context(), nil), ledger.ErrNilRecord)
	conn.AssertExpectations(t)
}
