package ledger

import (
	"encoding/json"
	"fmt"
	"math"
)

// Party identifies a sender or receiver of funds.
type Party string

const (
	// Mint is the absent sender of newly issued funds such as mining rewards.
	Mint Party = ""
	// Escrow holds funds on behalf of a trade until it settles.
	Escrow Party = "escrow"
)

// IsMint reports whether p is the absent sender.
func (p Party) IsMint() bool {
	return p == Mint
}

func (p Party) String() string {
	if p.IsMint() {
		return "<mint>"
	}
	return string(p)
}

// MarshalJSON encodes Mint as null and any other party as a string.
func (p Party) MarshalJSON() ([]byte, error) {
	if p.IsMint() {
		return []byte("null"), nil
	}
	return json.Marshal(string(p))
}

func (p *Party) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = Mint
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("party: %w", err)
	}
	*p = Party(s)
	return nil
}

// Transaction moves Amount from From to To.
type Transaction struct {
	From   Party   `json:"from"`
	To     Party   `json:"to"`
	Amount float64 `json:"amount"`
}

func (tx Transaction) validate() error {
	if tx.To.IsMint() {
		return fmt.Errorf("%w: missing recipient", ErrInvalidTransaction)
	}
	if math.IsNaN(tx.Amount) || math.IsInf(tx.Amount, 0) || tx.Amount < 0 {
		return fmt.Errorf("%w: amount %v", ErrInvalidTransaction, tx.Amount)
	}
	return nil
}
