// Package claims stores faucet claim rows and bridge attempts in ClickHouse.
package claims

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/socchain/faucet/pkg/clickhouse"
	"github.com/socchain/faucet/pkg/ledger"
)

var (
	_ ledger.Ledger  = (*Repository)(nil)
	_ ledger.Journal = (*Journal)(nil)
)

//go:embed queries/create-claims-table.sql
var createClaimsTableQuery string

//go:embed queries/insert-claim.sql
var insertClaimQuery string

//go:embed queries/last-success.sql
var lastSuccessQuery string

//go:embed queries/history.sql
var historyQuery string

//go:embed queries/create-bridge-attempts-table.sql
var createBridgeAttemptsTableQuery string

//go:embed queries/insert-bridge-attempt.sql
var insertBridgeAttemptQuery string

const defaultHistoryLimit = 50

// Repository is the ClickHouse-backed ledger.Ledger.
// Rows are ordered by (chain, address, claimed_at) so the latest-success
// lookup reads a single primary key range.
type Repository struct {
	client    clickhouse.Client
	database  string
	tableName string
	onCluster string
}

// NewRepository creates the claims table if needed and returns the repository.
func NewRepository(
	ctx context.Context,
	client clickhouse.Client,
	onCluster, database, tableName string,
) (*Repository, error) {
	repo := &Repository{client: client, database: database, tableName: tableName, onCluster: onCluster}
	if err := repo.Initialize(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// Initialize ensures the claims table exists.
func (r *Repository) Initialize(ctx context.Context) error {
	query := fmt.Sprintf(createClaimsTableQuery, r.database, r.tableName, r.onCluster)
	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create claims table: %w", err)
	}
	return nil
}

func (r *Repository) Append(ctx context.Context, rec *ledger.ClaimRecord) error {
	if rec == nil {
		return ledger.ErrNilRecord
	}
	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	query := fmt.Sprintf(insertClaimQuery, r.database, r.tableName)
	err := r.client.Conn().Exec(ctx, query,
		id,
		rec.Address,
		rec.Chain,
		rec.TxHash,
		rec.Amount,
		rec.ClaimedAt,
		rec.NextAllowedAt,
		string(rec.Status),
		rec.FailureReason,
		rec.IP,
	)
	if err != nil {
		return fmt.Errorf("failed to insert claim: %w", err)
	}
	return nil
}

func (r *Repository) LastSuccess(ctx context.Context, address, chain string) (*ledger.ClaimRecord, error) {
	query := fmt.Sprintf(lastSuccessQuery, r.database, r.tableName)
	row := r.client.Conn().QueryRow(ctx, query, address, chain)
	if row == nil {
		return nil, errors.New("clickhouse returned no row handle")
	}

	rec, err := scanClaim(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read last successful claim: %w", err)
	}
	return rec, nil
}

func (r *Repository) History(ctx context.Context, address, chain string, limit int) ([]ledger.ClaimRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	query := fmt.Sprintf(historyQuery, r.database, r.tableName)
	rows, err := r.client.Conn().Query(ctx, query, address, chain, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query claim history: %w", err)
	}
	defer rows.Close()

	var out []ledger.ClaimRecord
	for rows.Next() {
		rec, err := scanClaim(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate claim history: %w", err)
	}
	return out, nil
}

func scanClaim(scan func(dest ...any) error) (*ledger.ClaimRecord, error) {
	var (
		rec    ledger.ClaimRecord
		status string
	)
	err := scan(
		&rec.ID,
		&rec.Address,
		&rec.Chain,
		&rec.TxHash,
		&rec.Amount,
		&rec.ClaimedAt,
		&rec.NextAllowedAt,
		&status,
		&rec.FailureReason,
		&rec.IP,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = ledger.Status(status)
	return &rec, nil
}

// Journal is the ClickHouse-backed ledger.Journal. Duplicate
// (idempotency_key, status) rows collapse on merge.
type Journal struct {
	client    clickhouse.Client
	database  string
	tableName string
	onCluster string
}

// NewJournal creates the bridge attempts table if needed.
func NewJournal(
	ctx context.Context,
	client clickhouse.Client,
	onCluster, database, tableName string,
) (*Journal, error) {
	j := &Journal{client: client, database: database, tableName: tableName, onCluster: onCluster}
	query := fmt.Sprintf(createBridgeAttemptsTableQuery, j.database, j.tableName, j.onCluster)
	if err := client.Conn().Exec(ctx, query); err != nil {
		return nil, fmt.Errorf("failed to create bridge attempts table: %w", err)
	}
	return j, nil
}

func (j *Journal) Record(ctx context.Context, a *ledger.BridgeAttempt) error {
	if a == nil {
		return ledger.ErrNilRecord
	}
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	query := fmt.Sprintf(insertBridgeAttemptQuery, j.database, j.tableName)
	err := j.client.Conn().Exec(ctx, query,
		id,
		a.IdempotencyKey,
		a.Signer,
		a.Target,
		a.Amount,
		a.Nonce,
		a.Stage,
		a.TxHash,
		string(a.Status),
		a.FailureReason,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bridge attempt: %w", err)
	}
	return nil
}
