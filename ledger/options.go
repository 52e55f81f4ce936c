package ledger

import (
	"log/slog"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultDifficulty   uint    = 2
	DefaultMiningReward float64 = 100
)

// Config holds the tunables of a Blockchain.
type Config struct {
	Difficulty   uint
	MiningReward float64
	// MaxNonce bounds the proof-of-work search; 0 means unbounded.
	MaxNonce uint64
	Clock    clockwork.Clock
	Logger   *slog.Logger
	Store    BlockStore
}

type Option func(Config) Config

func defaultConfig() Config {
	return Config{
		Difficulty:   DefaultDifficulty,
		MiningReward: DefaultMiningReward,
		Clock:        clockwork.NewRealClock(),
		Logger:       slog.Default(),
	}
}

func WithDifficulty(difficulty uint) Option {
	return func(c Config) Config {
		c.Difficulty = difficulty
		return c
	}
}

func WithMiningReward(reward float64) Option {
	return func(c Config) Config {
		c.MiningReward = reward
		return c
	}
}

func WithMaxNonce(limit uint64) Option {
	return func(c Config) Config {
		c.MaxNonce = limit
		return c
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(c Config) Config {
		c.Clock = clock
		return c
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c Config) Config {
		c.Logger = logger
		return c
	}
}

// WithStore mirrors every sealed block into store.
func WithStore(store BlockStore) Option {
	return func(c Config) Config {
		c.Store = store
		return c
	}
}
