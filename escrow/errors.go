package escrow

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter = errors.New("invalid contract parameter")

	// ErrInvalidTransition is wrapped by every guard failure. The contract is
	// left untouched and no transaction is emitted.
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNotInitiated      = fmt.Errorf("%w: trade not in escrow", ErrInvalidTransition)
	ErrAlreadyInitiated  = fmt.Errorf("%w: trade already initiated", ErrInvalidTransition)
	ErrAlreadySettled    = fmt.Errorf("%w: trade already settled", ErrInvalidTransition)
	ErrNotDeliverable    = fmt.Errorf("%w: delivery time not reached", ErrInvalidTransition)
	ErrGraceNotElapsed   = fmt.Errorf("%w: grace period not elapsed", ErrInvalidTransition)
	ErrDeliveryPassed    = fmt.Errorf("%w: delivery time already passed", ErrInvalidTransition)
)
