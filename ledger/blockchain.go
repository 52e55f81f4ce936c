package ledger

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// BlockStore receives a copy of every sealed block and serves lookups.
type BlockStore interface {
	PutBlock(b Block) error
	BlockByHash(hash string) (Block, error)
	BlockByIndex(index uint64) (Block, error)
}

type Blockchain struct {
	mu      sync.RWMutex
	blocks  []Block
	pending []Transaction
	cfg     Config
	mining  atomic.Bool
}

// NewBlockchain creates a blockchain holding only the genesis block.
func NewBlockchain(opts ...Option) (*Blockchain, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	if math.IsNaN(cfg.MiningReward) || math.IsInf(cfg.MiningReward, 0) || cfg.MiningReward < 0 {
		return nil, fmt.Errorf("%w: mining reward %v", ErrInvalidParameter, cfg.MiningReward)
	}
	if cfg.Difficulty > sha256.Size*2 {
		return nil, fmt.Errorf("%w: difficulty %d exceeds the %d hex digits of a hash", ErrInvalidParameter, cfg.Difficulty, sha256.Size*2)
	}
	if cfg.Clock == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("%w: clock and logger are required", ErrInvalidParameter)
	}
	bc := &Blockchain{
		blocks:  make([]Block, 0, 1),
		pending: []Transaction{},
		cfg:     cfg,
	}
	genesis := bc.CreateGenesisBlock()
	if cfg.Store != nil {
		if err := cfg.Store.PutBlock(genesis); err != nil {
			return nil, fmt.Errorf("storing genesis block: %w", err)
		}
	}
	bc.blocks = append(bc.blocks, genesis)
	cfg.Logger.Debug("genesis block created", "hash", genesis.Hash)
	return bc, nil
}

// CreateGenesisBlock returns a block with index 0, previous hash "0" and no
// transactions, stamped with the current time.
func (bc *Blockchain) CreateGenesisBlock() Block {
	return NewBlock(0, "0", nil, bc.now())
}

func (bc *Blockchain) now() float64 {
	return float64(bc.cfg.Clock.Now().UnixNano()) / float64(time.Second)
}

func (bc *Blockchain) Difficulty() uint {
	return bc.cfg.Difficulty
}

func (bc *Blockchain) MiningReward() float64 {
	return bc.cfg.MiningReward
}

// GetLatestBlock returns the most recently sealed block.
func (bc *Blockchain) GetLatestBlock() (Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if len(bc.blocks) == 0 {
		return Block{}, ErrEmptyChain
	}
	return bc.blocks[len(bc.blocks)-1].clone(), nil
}

// GetBlockByIndex retrieves a block by its position in the chain.
func (bc *Blockchain) GetBlockByIndex(index uint64) (Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if index >= uint64(len(bc.blocks)) {
		return Block{}, fmt.Errorf("%w: index %d out of range", ErrBlockNotFound, index)
	}
	return bc.blocks[index].clone(), nil
}

// GetBlockByHash looks the digest up in the store when one is configured and
// falls back to scanning the chain.
func (bc *Blockchain) GetBlockByHash(hash string) (Block, error) {
	if bc.cfg.Store != nil {
		b, err := bc.cfg.Store.BlockByHash(hash)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, ErrBlockNotFound) {
			return Block{}, err
		}
	}
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	for _, b := range bc.blocks {
		if b.Hash == hash {
			return b.clone(), nil
		}
	}
	return Block{}, fmt.Errorf("%w: hash %s", ErrBlockNotFound, hash)
}

// Blocks returns a copy of the chain.
func (bc *Blockchain) Blocks() []Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	out := make([]Block, len(bc.blocks))
	for i, b := range bc.blocks {
		out[i] = b.clone()
	}
	return out
}

func (bc *Blockchain) Len() int {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return len(bc.blocks)
}

// PendingTransactions returns a copy of the transactions waiting to be mined.
func (bc *Blockchain) PendingTransactions() []Transaction {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return slices.Clone(bc.pending)
}

// CreateTransaction appends tx to the pending buffer. Balances are not checked.
func (bc *Blockchain) CreateTransaction(tx Transaction) error {
	return bc.CreateTransactions(tx)
}

// CreateTransactions appends txs to the pending buffer as one unit: either
// all of them are queued or none.
func (bc *Blockchain) CreateTransactions(txs ...Transaction) error {
	for _, tx := range txs {
		if err := tx.validate(); err != nil {
			return err
		}
	}
	bc.mu.Lock()
	bc.pending = append(bc.pending, txs...)
	bc.mu.Unlock()

	for _, tx := range txs {
		bc.cfg.Logger.Debug("transaction queued", "from", tx.From.String(), "to", tx.To.String(), "amount", tx.Amount)
	}
	return nil
}

type powResult struct {
	block Block
	err   error
}

// ProofOfWork searches nonces 0, 1, 2, ... on its own goroutine until the
// digest has Difficulty leading zeros and returns the sealed copy of block.
func (bc *Blockchain) ProofOfWork(ctx context.Context, block Block) (Block, error) {
	result := make(chan powResult, 1)
	go func() {
		b, err := bc.searchNonce(ctx, block.clone())
		result <- powResult{block: b, err: err}
	}()
	select {
	case r := <-result:
		return r.block, r.err
	case <-ctx.Done():
		// The search notices cancellation within cancelCheckInterval nonces;
		// a block sealed in the meantime is still returned.
		if r := <-result; r.err == nil {
			return r.block, nil
		}
		return Block{}, ctx.Err()
	}
}

const cancelCheckInterval = 1024

func (bc *Blockchain) searchNonce(ctx context.Context, block Block) (Block, error) {
	difficulty := bc.cfg.Difficulty
	limit := bc.cfg.MaxNonce
	for nonce := uint64(0); ; nonce++ {
		if limit > 0 && nonce >= limit {
			return Block{}, fmt.Errorf("%w: tried %d nonces at difficulty %d", ErrNonceExhausted, limit, difficulty)
		}
		if nonce%cancelCheckInterval == 0 && ctx.Err() != nil {
			return Block{}, ctx.Err()
		}
		block.Nonce = nonce
		block.Hash = block.CalculateHash()
		if hasZeroPrefix(block.Hash, difficulty) {
			return block, nil
		}
	}
}

// MinePendingTransactions seals the pending transactions into a new block
// and replaces them with a reward for miner. Transactions queued while the
// nonce search runs stay pending after the reward. Only one mining call may
// run at a time; a concurrent call fails with ErrMiningInProgress.
func (bc *Blockchain) MinePendingTransactions(ctx context.Context, miner Party) (Block, error) {
	if miner.IsMint() {
		return Block{}, fmt.Errorf("%w: miner address is required", ErrInvalidParameter)
	}
	if !bc.mining.CompareAndSwap(false, true) {
		return Block{}, ErrMiningInProgress
	}
	defer bc.mining.Store(false)

	bc.mu.RLock()
	if len(bc.blocks) == 0 {
		bc.mu.RUnlock()
		return Block{}, ErrEmptyChain
	}
	sealedCount := len(bc.pending)
	candidate := NewBlock(
		uint64(len(bc.blocks)),
		bc.blocks[len(bc.blocks)-1].Hash,
		bc.pending[:sealedCount],
		bc.now(),
	)
	bc.mu.RUnlock()

	start := bc.cfg.Clock.Now()
	sealed, err := bc.ProofOfWork(ctx, candidate)
	if err != nil {
		return Block{}, fmt.Errorf("mining block %d: %w", candidate.Index, err)
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()
	if bc.cfg.Store != nil {
		if err := bc.cfg.Store.PutBlock(sealed); err != nil {
			return Block{}, fmt.Errorf("storing block %d: %w", sealed.Index, err)
		}
	}
	bc.blocks = append(bc.blocks, sealed)
	late := bc.pending[sealedCount:]
	pending := make([]Transaction, 0, len(late)+1)
	pending = append(pending, Transaction{From: Mint, To: miner, Amount: bc.cfg.MiningReward})
	bc.pending = append(pending, late...)

	bc.cfg.Logger.Info("block mined",
		"index", sealed.Index,
		"hash", sealed.Hash,
		"nonce", sealed.Nonce,
		"transactions", len(sealed.Transactions),
		"elapsed", bc.cfg.Clock.Since(start),
	)
	return sealed.clone(), nil
}

// IsChainValid reports whether Verify finds no violation.
func (bc *Blockchain) IsChainValid() bool {
	return bc.Verify() == nil
}

// Verify checks the genesis block and then every adjacent pair, stopping at
// the first violation. It never modifies the chain.
func (bc *Blockchain) Verify() error {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if len(bc.blocks) == 0 {
		return ErrEmptyChain
	}
	genesis := bc.blocks[0]
	if genesis.PreviousHash != "0" {
		return &IntegrityError{Index: 0, Reason: fmt.Sprintf("genesis previous hash is %q", genesis.PreviousHash)}
	}
	if len(genesis.Transactions) != 0 {
		return &IntegrityError{Index: 0, Reason: "genesis block carries transactions"}
	}
	if expected := genesis.CalculateHash(); genesis.Hash != expected {
		return &IntegrityError{Index: 0, Reason: fmt.Sprintf("invalid hash: expected %s, got %s", expected, genesis.Hash)}
	}
	for i := 1; i < len(bc.blocks); i++ {
		if err := validateBlock(uint64(i), bc.blocks[i], bc.blocks[i-1]); err != nil {
			return err
		}
	}
	return nil
}

// validateBlock checks index continuity, the stored hash and the hash link
// of the block at position pos against its predecessor.
func validateBlock(pos uint64, current, previous Block) error {
	fail := func(format string, args ...any) error {
		return &IntegrityError{Index: pos, Reason: fmt.Sprintf(format, args...)}
	}
	if current.Index != previous.Index+1 {
		return fail("invalid index: expected %d, got %d", previous.Index+1, current.Index)
	}
	if expected := current.CalculateHash(); current.Hash != expected {
		return fail("invalid hash: expected %s, got %s", expected, current.Hash)
	}
	if current.PreviousHash != previous.Hash {
		return fail("invalid previous hash: expected %s, got %s", previous.Hash, current.PreviousHash)
	}
	return nil
}
