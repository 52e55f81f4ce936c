package escrow

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Mode selects a pricing and grace preset.
type Mode int

const (
	// ModeStatic keeps the base price and waits a long grace period.
	ModeStatic Mode = iota
	// ModeDynamic reprices against the market and waits a short grace period.
	ModeDynamic
)

const (
	StaticGracePeriod      = 60 * time.Second
	DynamicGracePeriod     = 10 * time.Second
	DefaultRefreshInterval = time.Second
	DefaultPenaltyRate     = 0.1
)

func (m Mode) String() string {
	switch m {
	case ModeStatic:
		return "static"
	case ModeDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// ParseMode accepts the names returned by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "static":
		return ModeStatic, nil
	case "dynamic":
		return ModeDynamic, nil
	default:
		return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidParameter, s)
	}
}

func (m Mode) gracePeriod() time.Duration {
	if m == ModeDynamic {
		return DynamicGracePeriod
	}
	return StaticGracePeriod
}

// Config holds the tunables of a Contract. Unset grace period and pricer
// follow the mode.
type Config struct {
	Mode            Mode
	GracePeriod     time.Duration
	Pricer          Pricer
	PenaltyRate     float64
	RefreshInterval time.Duration
	Clock           clockwork.Clock
	Logger          *slog.Logger

	graceSet bool
}

type Option func(Config) Config

func defaultConfig() Config {
	return Config{
		Mode:            ModeStatic,
		PenaltyRate:     DefaultPenaltyRate,
		RefreshInterval: DefaultRefreshInterval,
		Clock:           clockwork.NewRealClock(),
		Logger:          slog.Default(),
	}
}

func WithMode(mode Mode) Option {
	return func(c Config) Config {
		c.Mode = mode
		return c
	}
}

// WithGracePeriod overrides the mode's grace period.
func WithGracePeriod(grace time.Duration) Option {
	return func(c Config) Config {
		c.GracePeriod = grace
		c.graceSet = true
		return c
	}
}

// WithPricer overrides the mode's pricing strategy.
func WithPricer(p Pricer) Option {
	return func(c Config) Config {
		c.Pricer = p
		return c
	}
}

func WithPenaltyRate(rate float64) Option {
	return func(c Config) Config {
		c.PenaltyRate = rate
		return c
	}
}

func WithRefreshInterval(interval time.Duration) Option {
	return func(c Config) Config {
		c.RefreshInterval = interval
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
