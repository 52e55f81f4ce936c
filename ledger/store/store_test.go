package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/luca-patrignani/energy-ledger/ledger"
)

func newStore(t *testing.T) *LevelStore {
	t.Helper()
	s, err := NewMemory(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close failed: %v", err)
		}
	})
	return s
}

func TestPutAndLookup(t *testing.T) {
	s := newStore(t)
	if _, ok, err := s.Height(); err != nil || ok {
		t.Fatalf("empty store reported a height (ok=%v, err=%v)", ok, err)
	}
	b := ledger.NewBlock(1, "prev", []ledger.Transaction{
		{From: "Consumer B", To: ledger.Escrow, Amount: 500},
		{From: ledger.Mint, To: "Miner", Amount: 100},
	}, 1700000000.25)
	if err := s.PutBlock(b); err != nil {
		t.Fatal(err)
	}

	byIndex, err := s.BlockByIndex(1)
	if err != nil {
		t.Fatal(err)
	}
	if byIndex.Hash != b.Hash || byIndex.CalculateHash() != b.Hash {
		t.Fatalf("stored block does not round-trip: %s", byIndex)
	}
	if byIndex.Transactions[1].From != ledger.Mint {
		t.Fatalf("mint sender lost in storage: %+v", byIndex.Transactions[1])
	}
	byHash, err := s.BlockByHash(b.Hash)
	if err != nil || byHash.Index != 1 {
		t.Fatalf("BlockByHash = %d, %v", byHash.Index, err)
	}
	height, ok, err := s.Height()
	if err != nil || !ok || height != 1 {
		t.Fatalf("expected height 1, got %d (ok=%v, err=%v)", height, ok, err)
	}
}

func TestMissingBlocks(t *testing.T) {
	s := newStore(t)
	if _, err := s.BlockByIndex(7); !errors.Is(err, ledger.ErrBlockNotFound) {
		t.Fatalf("expected ErrBlockNotFound, got %v", err)
	}
	if _, err := s.BlockByHash("missing"); !errors.Is(err, ledger.ErrBlockNotFound) {
		t.Fatalf("expected ErrBlockNotFound, got %v", err)
	}
}

func TestHeightNeverDecreases(t *testing.T) {
	s := newStore(t)
	for _, i := range []uint64{2, 5, 3} {
		if err := s.PutBlock(ledger.NewBlock(i, "prev", nil, 1)); err != nil {
			t.Fatal(err)
		}
	}
	if height, _, _ := s.Height(); height != 5 {
		t.Fatalf("expected height 5, got %d", height)
	}
}

func TestTransactionsFor(t *testing.T) {
	s := newStore(t)
	blocks := []ledger.Block{
		ledger.NewBlock(1, "a", []ledger.Transaction{
			{From: "Consumer B", To: ledger.Escrow, Amount: 500},
		}, 1),
		ledger.NewBlock(2, "b", []ledger.Transaction{
			{From: ledger.Mint, To: "Miner", Amount: 100},
			{From: ledger.Escrow, To: "Producer A", Amount: 500},
		}, 2),
	}
	for _, b := range blocks {
		if err := s.PutBlock(b); err != nil {
			t.Fatal(err)
		}
	}
	escrow, err := s.TransactionsFor(ledger.Escrow)
	if err != nil {
		t.Fatal(err)
	}
	if len(escrow) != 2 || escrow[0].From != "Consumer B" || escrow[1].To != "Producer A" {
		t.Fatalf("unexpected escrow history %+v", escrow)
	}
	mint, err := s.TransactionsFor(ledger.Mint)
	if err != nil {
		t.Fatal(err)
	}
	if len(mint) != 1 || mint[0].To != "Miner" {
		t.Fatalf("unexpected mint history %+v", mint)
	}
	none, err := s.TransactionsFor("Nobody")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no transactions, got %v (%v)", none, err)
	}
}

// TestBlockchainWithLevelStore wires the store into a chain and checks that
// every sealed block can be found by digest through the chain.
func TestBlockchainWithLevelStore(t *testing.T) {
	s := newStore(t)
	bc, err := ledger.NewBlockchain(
		ledger.WithStore(s),
		ledger.WithClock(clockwork.NewFakeClockAt(time.Unix(1700000000, 0))),
		ledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatal(err)
	}
	for _i := 0; _i < 3; _i++ {
		if err := bc.CreateTransaction(ledger.Transaction{From: "A", To: "B", Amount: 1}); err != nil {
			t.Fatal(err)
		}
		if _, err := bc.MinePendingTransactions(context.Background(), "Miner"); err != nil {
			t.Fatal(err)
		}
	}
	for _, b := range bc.Blocks() {
		stored, err := s.BlockByHash(b.Hash)
		if err != nil {
			t.Fatalf("block %d missing from store: %v", b.Index, err)
		}
		if stored.Index != b.Index {
			t.Fatalf("expected index %d, got %d", b.Index, stored.Index)
		}
	}
	if height, _, _ := s.Height(); height != 3 {
		t.Fatalf("expected height 3, got %d", height)
	}
	rewards, err := s.TransactionsFor("Miner")
	if err != nil {
		t.Fatal(err)
	}
	if len(rewards) != 2 {
		t.Fatalf("expected two sealed rewards, got %d", len(rewards))
	}
}
