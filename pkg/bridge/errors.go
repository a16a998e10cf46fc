package bridge

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrApprovalFailed         = errors.New("approval failed")
	ErrBridgeContractNotFound = errors.New("bridge contract not found")
)

// ValidationError rejects a request before any chain access.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Stage names a step of the deposit sequence.
type Stage string

const (
	StageContractCheck Stage = "contract check"
	StageBalanceCheck  Stage = "balance check"
	StageApproval      Stage = "approval"
	StageDeposit       Stage = "deposit"
)

// StageError is a failure during one step; its message is prefixed with the stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(s Stage, err error) error {
	return &StageError{Stage: s, Err: err}
}
