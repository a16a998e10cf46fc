package ledger

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	_ Ledger  = (*Memory)(nil)
	_ Journal = (*MemoryJournal)(nil)
)

var ErrNilRecord = errors.New("nil record")

type claimKey struct {
	address string
	chain   string
}

// Memory is a thread-safe in-process Ledger. It does not survive restarts and
// is meant for tests and single-node development runs.
type Memory struct {
	mu   sync.RWMutex
	rows map[claimKey][]ClaimRecord
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[claimKey][]ClaimRecord)}
}

func (m *Memory) Append(_ context.Context, rec *ClaimRecord) error {
	if rec == nil {
		return ErrNilRecord
	}
	row := *rec
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	k := claimKey{address: row.Address, chain: row.Chain}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[k] = append(m.rows[k], row)
	return nil
}

func (m *Memory) LastSuccess(_ context.Context, address, chain string) (*ClaimRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *ClaimRecord
	rows := m.rows[claimKey{address: address, chain: chain}]
	for i := range rows {
		if rows[i].Status != StatusSuccess {
			continue
		}
		if latest == nil || rows[i].ClaimedAt >= latest.ClaimedAt {
			latest = &rows[i]
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

func (m *Memory) History(_ context.Context, address, chain string, limit int) ([]ClaimRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.rows[claimKey{address: address, chain: chain}]
	out := make([]ClaimRecord, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, rows[i])
	}
	return out, nil
}

// Len returns the total number of stored rows.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, rows := range m.rows {
		n += len(rows)
	}
	return n
}

// MemoryJournal is a thread-safe in-process Journal.
type MemoryJournal struct {
	mu       sync.Mutex
	attempts []BridgeAttempt
	seen     map[string]struct{}
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{seen: make(map[string]struct{})}
}

func (j *MemoryJournal) Record(_ context.Context, a *BridgeAttempt) error {
	if a == nil {
		return ErrNilRecord
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	k := a.IdempotencyKey + "|" + string(a.Status)
	if _, ok := j.seen[k]; ok {
		return nil
	}
	j.seen[k] = struct{}{}
	row := *a
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	j.attempts = append(j.attempts, row)
	return nil
}

// Attempts returns a copy of the recorded attempts in insertion order.
func (j *MemoryJournal) Attempts() []BridgeAttempt {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]BridgeAttempt(nil), j.attempts...)
}
