package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"

	"github.com/luca-patrignani/energy-ledger/escrow"
	"github.com/luca-patrignani/energy-ledger/ledger"
	"github.com/luca-patrignani/energy-ledger/ledger/store"
)

type config struct {
	producer        string
	consumer        string
	energy          float64
	price           float64
	delivery        time.Duration
	grace           time.Duration
	refresh         time.Duration
	mode            escrow.Mode
	difficulty      uint
	reward          float64
	miner           string
	late            bool
	miningTimeout   time.Duration
	showBlocksAsRaw bool
}

func parseConfig(args []string, output io.Writer) (config, error) {
	var cfg config
	var mode string
	fs := flag.NewFlagSet("energy-ledger", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.producer, "producer", "Producer A", "producer `party`")
	fs.StringVar(&cfg.consumer, "consumer", "Consumer B", "consumer `party`")
	fs.Float64Var(&cfg.energy, "energy", 100, "energy units traded")
	fs.Float64Var(&cfg.price, "price", 5, "base price per unit")
	fs.DurationVar(&cfg.delivery, "delivery", 5*time.Second, "delivery deadline from now")
	fs.DurationVar(&cfg.grace, "grace", 0, "grace period after delivery before a penalty (0 uses the mode default)")
	fs.DurationVar(&cfg.refresh, "refresh", escrow.DefaultRefreshInterval, "price refresh interval")
	fs.StringVar(&mode, "mode", escrow.ModeDynamic.String(), "pricing mode: static or dynamic")
	fs.UintVar(&cfg.difficulty, "difficulty", ledger.DefaultDifficulty, "leading zeros required in block hashes")
	fs.Float64Var(&cfg.reward, "reward", ledger.DefaultMiningReward, "mining reward")
	fs.StringVar(&cfg.miner, "miner", "Miner-address", "miner `party` receiving the reward")
	fs.BoolVar(&cfg.late, "late", false, "never confirm delivery so the producer is penalised")
	fs.DurationVar(&cfg.miningTimeout, "mining-timeout", time.Minute, "give up mining after this long")
	fs.BoolVar(&cfg.showBlocksAsRaw, "raw", false, "print blocks as JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	if fs.NArg() > 0 {
		return config{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	m, err := escrow.ParseMode(mode)
	if err != nil {
		return config{}, err
	}
	cfg.mode = m
	if cfg.delivery < 0 || cfg.grace < 0 {
		return config{}, fmt.Errorf("delivery and grace must not be negative")
	}
	return cfg, nil
}

type outcome struct {
	chain    *ledger.Blockchain
	contract *escrow.Contract
	store    *store.LevelStore
}

func main() {
	// Create a new slog handler with the default PTerm logger
	handler := pterm.NewSlogHandler(&pterm.DefaultLogger)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	cfg, err := parseConfig(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		logger.Error("invalid arguments", "error", err)
		os.Exit(2)
	}

	pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("Energy ", pterm.FgGreen.ToStyle()),
		putils.LettersFromStringWithStyle("Ledger", pterm.FgDarkGray.ToStyle()),
	).Render()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out, err := run(ctx, cfg, clockwork.NewRealClock(), logger)
	if out.store != nil {
		err = errors.Join(err, out.store.Close())
	}
	if err != nil {
		logger.Error("demo failed", "error", err)
		os.Exit(1)
	}
}

// run trades energy through escrow, settles the trade, mines the resulting
// transactions and prints the chain.
func run(ctx context.Context, cfg config, clock clockwork.Clock, logger *slog.Logger) (outcome, error) {
	var out outcome
	s, err := store.NewMemory(logger)
	if err != nil {
		return out, err
	}
	out.store = s

	bc, err := ledger.NewBlockchain(
		ledger.WithDifficulty(cfg.difficulty),
		ledger.WithMiningReward(cfg.reward),
		ledger.WithStore(s),
		ledger.WithClock(clock),
		ledger.WithLogger(logger),
	)
	if err != nil {
		return out, err
	}
	out.chain = bc

	opts := []escrow.Option{
		escrow.WithMode(cfg.mode),
		escrow.WithRefreshInterval(cfg.refresh),
		escrow.WithClock(clock),
		escrow.WithLogger(logger),
	}
	if cfg.grace > 0 {
		opts = append(opts, escrow.WithGracePeriod(cfg.grace))
	}
	contract, err := escrow.NewContract(bc,
		ledger.Party(cfg.producer), ledger.Party(cfg.consumer),
		cfg.energy, cfg.price, clock.Now().Add(cfg.delivery), opts...)
	if err != nil {
		return out, err
	}
	out.contract = contract

	if err := contract.InitiateTrade(); err != nil {
		return out, err
	}
	printContract(contract.State(), "TRADE INITIATED")

	spinner, _ := pterm.DefaultSpinner.Start("Following the market until delivery ...")
	if err := contract.MonitorPrice(ctx); err != nil {
		spinner.Fail()
		return out, err
	}
	spinner.Success(fmt.Sprintf("Delivery time reached, latest total price %.2f (escrow %.2f)", contract.TotalPrice(), contract.Escrow()))

	if err := settle(ctx, cfg, clock, contract, logger); err != nil {
		return out, err
	}
	printContract(contract.State(), "TRADE SETTLED")

	miningCtx, cancel := context.WithTimeout(ctx, cfg.miningTimeout)
	defer cancel()
	spinner, _ = pterm.DefaultSpinner.Start("Mining pending transactions ...")
	block, err := bc.MinePendingTransactions(miningCtx, ledger.Party(cfg.miner))
	if err != nil {
		spinner.Fail()
		return out, err
	}
	spinner.Success(fmt.Sprintf("Block %d sealed with nonce %d", block.Index, block.Nonce))

	if cfg.showBlocksAsRaw {
		for _, b := range bc.Blocks() {
			pterm.Println(b.String())
		}
	} else if err := printChain(bc.Blocks()); err != nil {
		return out, err
	}
	if err := bc.Verify(); err != nil {
		return out, err
	}
	pterm.Success.Println("Chain verified")

	history, err := s.TransactionsFor(ledger.Escrow)
	if err != nil {
		return out, err
	}
	return out, printHistory(ledger.Escrow, history)
}

// settle confirms delivery, or in late mode waits out the grace period and
// penalises the producer. The other settlement is attempted afterwards to
// show that it is refused.
func settle(ctx context.Context, cfg config, clock clockwork.Clock, contract *escrow.Contract, logger *slog.Logger) error {
	if !cfg.late {
		if err := contract.ConfirmDelivery(); err != nil {
			return err
		}
		if err := contract.PenaliseProducer(); err != nil {
			logger.Warn("penalty refused", "error", err)
		}
		return nil
	}

	wait := contract.DeliveryTime().Add(contract.GracePeriod()).Sub(clock.Now())
	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Waiting %s for the grace period to end ...", wait.Round(time.Millisecond)))
	select {
	case <-ctx.Done():
		spinner.Fail()
		return ctx.Err()
	case <-clock.After(wait):
	}
	spinner.Success()
	if err := contract.PenaliseProducer(); err != nil {
		return err
	}
	if err := contract.ConfirmDelivery(); err != nil {
		logger.Warn("late confirmation refused", "error", err)
	}
	return nil
}
