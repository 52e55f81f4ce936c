package escrow

import (
	"crypto/cipher"
	"fmt"
	"io"
	"math"
	"math/big"
	"sync"

	"go.dedis.ch/kyber/v4/util/random"
)

const (
	DefaultMarketLow  = 0.9
	DefaultMarketHigh = 1.1
)

// Pricer returns the multiplier applied to the base price per unit.
type Pricer interface {
	Factor() float64
}

// FixedFactor always returns the same multiplier.
type FixedFactor float64

func (f FixedFactor) Factor() float64 {
	return float64(f)
}

// PricerFunc adapts a plain function to Pricer.
type PricerFunc func() float64

func (f PricerFunc) Factor() float64 {
	return f()
}

// 2^53 keeps every draw exactly representable as a float64.
var unitScale = new(big.Int).Lsh(big.NewInt(1), 53)

// MarketPricer draws factors uniformly from [low, high).
type MarketPricer struct {
	mu     sync.Mutex
	low    float64
	high   float64
	stream cipher.Stream
}

// NewMarketPricer builds a MarketPricer over [low, high). Without readers it
// draws from the system randomness source.
func NewMarketPricer(low, high float64, readers ...io.Reader) (*MarketPricer, error) {
	if !(low > 0) || !(high > low) || math.IsInf(high, 0) {
		return nil, fmt.Errorf("%w: market range [%v, %v)", ErrInvalidParameter, low, high)
	}
	return &MarketPricer{low: low, high: high, stream: random.New(readers...)}, nil
}

func (m *MarketPricer) Factor() float64 {
	m.mu.Lock()
	n := random.Int(unitScale, m.stream)
	m.mu.Unlock()

	u := float64(n.Uint64()) / float64(unitScale.Uint64())
	f := m.low + (m.high-m.low)*u
	if f >= m.high {
		f = math.Nextafter(m.high, m.low)
	}
	return f
}
