package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pterm/pterm"

	"github.com/luca-patrignani/energy-ledger/escrow"
	"github.com/luca-patrignani/energy-ledger/ledger"
)

// Spinner goroutines keep reading pterm's output switch after they stop, so
// it is turned off once for the whole package run.
func TestMain(m *testing.M) {
	pterm.DisableOutput()
	os.Exit(m.Run())
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(nil, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.producer != "Producer A" || cfg.consumer != "Consumer B" {
		t.Fatalf("unexpected parties %q and %q", cfg.producer, cfg.consumer)
	}
	if cfg.energy != 100 || cfg.price != 5 || cfg.delivery != 5*time.Second {
		t.Fatalf("unexpected trade %v x %v due in %v", cfg.energy, cfg.price, cfg.delivery)
	}
	if cfg.mode != escrow.ModeDynamic || cfg.difficulty != ledger.DefaultDifficulty || cfg.late {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestParseConfigErrors(t *testing.T) {
	tests := map[string][]string{
		"unknown mode":   {"-mode", "lunar"},
		"extra argument": {"surplus"},
		"negative grace": {"-grace", "-1s"},
		"bad number":     {"-energy", "lots"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := parseConfig(args, io.Discard); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
	if _, err := parseConfig([]string{"-h"}, io.Discard); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
}

func runDemo(t *testing.T, args ...string) outcome {
	t.Helper()
	cfg, err := parseConfig(append([]string{"-difficulty", "1", "-delivery", "20ms", "-refresh", "5ms"}, args...), io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	out, err := run(ctx, cfg, clockwork.NewRealClock(), logger)
	if out.store != nil {
		t.Cleanup(func() { out.store.Close() })
	}
	if err != nil {
		t.Fatalf("demo failed: %v", err)
	}
	return out
}

// TestRunOnTimeDelivery runs the whole demo on a short deadline and checks
// the sealed block releases the escrow to the producer.
func TestRunOnTimeDelivery(t *testing.T) {
	out := runDemo(t)
	if out.contract.Status() != escrow.Completed {
		t.Fatalf("expected Completed, got %s", out.contract.Status())
	}
	if out.chain.Len() != 2 || !out.chain.IsChainValid() {
		t.Fatalf("expected a valid chain of 2 blocks, got %d (%v)", out.chain.Len(), out.chain.Verify())
	}
	latest, err := out.chain.GetLatestBlock()
	if err != nil {
		t.Fatal(err)
	}
	if len(latest.Transactions) != 2 {
		t.Fatalf("expected payment and release sealed, got %+v", latest.Transactions)
	}
	if latest.Transactions[0].Amount != latest.Transactions[1].Amount {
		t.Fatalf("release %v differs from payment %v", latest.Transactions[1].Amount, latest.Transactions[0].Amount)
	}
	history, err := out.store.TransactionsFor(ledger.Escrow)
	if err != nil || len(history) != 2 {
		t.Fatalf("expected 2 escrow transactions in the store, got %d (%v)", len(history), err)
	}
}

func TestRunLateDelivery(t *testing.T) {
	out := runDemo(t, "-late", "-grace", "10ms", "-mode", "static", "-raw")
	if out.contract.Status() != escrow.Penalized {
		t.Fatalf("expected Penalized, got %s", out.contract.Status())
	}
	latest, err := out.chain.GetLatestBlock()
	if err != nil {
		t.Fatal(err)
	}
	want := []ledger.Transaction{
		{From: "Consumer B", To: ledger.Escrow, Amount: 500},
		{From: ledger.Escrow, To: "Consumer B", Amount: 450},
		{From: ledger.Escrow, To: "Producer A", Amount: 50},
	}
	if len(latest.Transactions) != len(want) {
		t.Fatalf("expected %d transactions, got %+v", len(want), latest.Transactions)
	}
	for i := range want {
		if latest.Transactions[i] != want[i] {
			t.Fatalf("transaction %d: expected %+v, got %+v", i, want[i], latest.Transactions[i])
		}
	}
	pending := out.chain.PendingTransactions()
	if len(pending) != 1 || pending[0].To != "Miner-address" {
		t.Fatalf("expected the miner reward pending, got %+v", pending)
	}
}
