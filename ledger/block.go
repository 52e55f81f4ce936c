package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"
)

// Block is a batch of transactions sealed into the chain.
type Block struct {
	Index        uint64        `json:"index"`
	PreviousHash string        `json:"previous_hash"`
	Transactions []Transaction `json:"transactions"`
	Timestamp    float64       `json:"timestamp"`
	Nonce        uint64        `json:"nonce"`
	Hash         string        `json:"hash"`
}

// NewBlock builds a block with nonce 0 and computes its hash.
// The transactions are copied.
func NewBlock(index uint64, previousHash string, txs []Transaction, timestamp float64) Block {
	b := Block{
		Index:        index,
		PreviousHash: previousHash,
		Transactions: slices.Clone(txs),
		Timestamp:    timestamp,
	}
	if b.Transactions == nil {
		b.Transactions = []Transaction{}
	}
	b.Hash = b.CalculateHash()
	return b
}

// CalculateHash returns the hex SHA-256 of the block's canonical encoding.
// The stored Hash field is not part of the digest.
func (b Block) CalculateHash() string {
	sum := sha256.Sum256(canonicalEncoding(b))
	return hex.EncodeToString(sum[:])
}

// MeetsDifficulty reports whether the stored hash starts with difficulty zeros.
func (b Block) MeetsDifficulty(difficulty uint) bool {
	return hasZeroPrefix(b.Hash, difficulty)
}

func (b Block) clone() Block {
	b.Transactions = slices.Clone(b.Transactions)
	return b
}

func (b Block) String() string {
	out, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(out)
}

func hasZeroPrefix(hash string, difficulty uint) bool {
	if uint(len(hash)) < difficulty {
		return false
	}
	return strings.Count(hash[:difficulty], "0") == int(difficulty)
}
