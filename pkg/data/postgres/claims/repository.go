// Package claims stores faucet claim rows and bridge attempts in Postgres.
package claims

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

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

// DB is the subset of *pgxpool.Pool used by the repositories.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	db        DB
	tableName string
}

// NewRepository creates the claims table and its indexes if needed.
func NewRepository(ctx context.Context, db DB, tableName string) (*Repository, error) {
	if _, err := db.Exec(ctx, fmt.Sprintf(createClaimsTableQuery, tableName)); err != nil {
		return nil, fmt.Errorf("failed to create claims table: %w", err)
	}
	return &Repository{db: db, tableName: tableName}, nil
}

func (r *Repository) Append(ctx context.Context, rec *ledger.ClaimRecord) error {
	if rec == nil {
		return ledger.ErrNilRecord
	}
	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := r.db.Exec(ctx, fmt.Sprintf(insertClaimQuery, r.tableName),
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
	row := r.db.QueryRow(ctx, fmt.Sprintf(lastSuccessQuery, r.tableName), address, chain)
	rec, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	rows, err := r.db.Query(ctx, fmt.Sprintf(historyQuery, r.tableName), address, chain, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query claim history: %w", err)
	}
	defer rows.Close()

	var out []ledger.ClaimRecord
	for rows.Next() {
		rec, err := scanClaim(rows)
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

func scanClaim(row pgx.Row) (*ledger.ClaimRecord, error) {
	var (
		rec    ledger.ClaimRecord
		status string
	)
	err := row.Scan(
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

// Journal keeps the first row per (idempotency_key, status) via ON CONFLICT DO NOTHING.
type Journal struct {
	db        DB
	tableName string
}

func NewJournal(ctx context.Context, db DB, tableName string) (*Journal, error) {
	if _, err := db.Exec(ctx, fmt.Sprintf(createBridgeAttemptsTableQuery, tableName)); err != nil {
		return nil, fmt.Errorf("failed to create bridge attempts table: %w", err)
	}
	return &Journal{db: db, tableName: tableName}, nil
}

func (j *Journal) Record(ctx context.Context, a *ledger.BridgeAttempt) error {
	if a == nil {
		return ledger.ErrNilRecord
	}
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := j.db.Exec(ctx, fmt.Sprintf(insertBridgeAttemptQuery, j.tableName),
		id,
		a.IdempotencyKey,
		a.Signer,
		a.Target,
		a.Amount,
		int64(a.Nonce), //nolint:gosec // nonces never approach MaxInt64
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
