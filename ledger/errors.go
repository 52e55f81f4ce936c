package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyChain         = errors.New("blockchain is empty")
	ErrChainIntegrity     = errors.New("chain integrity violation")
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrMiningInProgress   = errors.New("mining already in progress")
	ErrNonceExhausted     = errors.New("nonce limit reached before meeting difficulty")
	ErrBlockNotFound      = errors.New("block not found")
)

// IntegrityError reports the first block that fails verification.
type IntegrityError struct {
	Index  uint64
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("block %d invalid: %s", e.Index, e.Reason)
}

func (e *IntegrityError) Unwrap() error {
	return ErrChainIntegrity
}
