// Package events defines the envelopes emitted after claims and bridge
// deposits and the publishers that deliver them.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type names the kind of event carried by an Envelope.
type Type string

const (
	ClaimSucceeded  Type = "claim.succeeded"
	ClaimFailed     Type = "claim.failed"
	BridgeSucceeded Type = "bridge.succeeded"
	BridgeFailed    Type = "bridge.failed"
)

// Version is the current envelope schema version.
const Version = 1

const Source = "socchain-faucet"

var ErrInvalidEnvelope = errors.New("invalid envelope")

// Envelope wraps an event payload with routing metadata. Key selects the
// Kafka partition so all events for one account stay ordered.
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Type       Type            `json:"type"`
	Version    int             `json:"version"`
	Source     string          `json:"source"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// New marshals data into an envelope stamped with a fresh id.
func New(t Type, key string, occurredAt time.Time, data any) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	return &Envelope{
		ID:         uuid.New(),
		Type:       t,
		Version:    Version,
		Source:     Source,
		Key:        key,
		OccurredAt: occurredAt.UTC(),
		Data:       raw,
	}, nil
}

// Open decodes the payload into dst after checking the envelope type.
func (e *Envelope) Open(want Type, dst any) error {
	if e == nil || e.Type != want {
		return fmt.Errorf("%w: want %s", ErrInvalidEnvelope, want)
	}
	if err := json.Unmarshal(e.Data, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	return nil
}

// Claim is the payload of claim.* events.
type Claim struct {
	Chain         string `json:"chain"`
	Address       string `json:"address"`
	Amount        string `json:"amount"`
	TxHash        string `json:"txHash,omitempty"`
	NextAllowedAt int64  `json:"nextAllowedAt"`
	Reason        string `json:"reason,omitempty"`
}

// Bridge is the payload of bridge.* events. It never carries key material.
type Bridge struct {
	IdempotencyKey string `json:"idempotencyKey"`
	Signer         string `json:"signer"`
	Target         string `json:"target"`
	Amount         string `json:"amount"`
	Stage          string `json:"stage,omitempty"`
	TxHash         string `json:"txHash,omitempty"`
	Reason         string `json:"reason,omitempty"`
}
