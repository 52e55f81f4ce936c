package escrow

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/luca-patrignani/energy-ledger/ledger"
)

type Status string

const (
	Pending   Status = "Pending"
	InEscrow  Status = "InEscrow"
	Completed Status = "Completed"
	Penalized Status = "Penalized"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == Completed || s == Penalized
}

// Ledger accepts the transactions a contract emits. A batch is queued
// atomically.
type Ledger interface {
	CreateTransactions(txs ...ledger.Transaction) error
}

// Contract settles one energy trade between a producer and a consumer.
//
// The consumer's payment is held in escrow at initiation and released
// exactly once: to the producer on delivery, or split between consumer and
// producer when the producer is penalised after the grace period.
type Contract struct {
	mu sync.Mutex

	ledger           Ledger
	producer         ledger.Party
	consumer         ledger.Party
	energyAmount     float64
	basePricePerUnit float64
	pricePerUnit     float64
	deliveryTime     time.Time
	status           Status
	escrow           float64
	totalPrice       float64
	cfg              Config
}

// State is a point-in-time copy of a contract.
type State struct {
	Producer         ledger.Party  `json:"producer"`
	Consumer         ledger.Party  `json:"consumer"`
	EnergyAmount     float64       `json:"energy_amount"`
	BasePricePerUnit float64       `json:"base_price_per_unit"`
	PricePerUnit     float64       `json:"price_per_unit"`
	DeliveryTime     time.Time     `json:"delivery_time"`
	GracePeriod      string        `json:"grace_period"`
	Mode             string        `json:"mode"`
	Status           Status        `json:"status"`
	Escrow           float64       `json:"escrow"`
	TotalPrice       float64       `json:"total_price"`
	PenaltyRate      float64       `json:"penalty_rate"`
}

// NewContract creates a Pending contract. It fails with ErrInvalidParameter
// when an amount or price is not a positive finite number, when the parties
// are missing, reserved or identical, or when an option is out of range.
func NewContract(l Ledger, producer, consumer ledger.Party, energyAmount, basePricePerUnit float64, deliveryTime time.Time, opts ...Option) (*Contract, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	if !cfg.graceSet {
		cfg.GracePeriod = cfg.Mode.gracePeriod()
	}
	if cfg.Pricer == nil {
		p, err := defaultPricer(cfg.Mode)
		if err != nil {
			return nil, err
		}
		cfg.Pricer = p
	}

	switch {
	case l == nil:
		return nil, fmt.Errorf("%w: nil ledger", ErrInvalidParameter)
	case !positive(energyAmount):
		return nil, fmt.Errorf("%w: energy amount %v", ErrInvalidParameter, energyAmount)
	case !positive(basePricePerUnit):
		return nil, fmt.Errorf("%w: base price per unit %v", ErrInvalidParameter, basePricePerUnit)
	case !validParty(producer) || !validParty(consumer):
		return nil, fmt.Errorf("%w: parties %q and %q", ErrInvalidParameter, producer, consumer)
	case producer == consumer:
		return nil, fmt.Errorf("%w: producer and consumer are both %q", ErrInvalidParameter, producer)
	case deliveryTime.IsZero():
		return nil, fmt.Errorf("%w: missing delivery time", ErrInvalidParameter)
	case cfg.GracePeriod < 0:
		return nil, fmt.Errorf("%w: grace period %v", ErrInvalidParameter, cfg.GracePeriod)
	case math.IsNaN(cfg.PenaltyRate) || cfg.PenaltyRate < 0 || cfg.PenaltyRate > 1:
		return nil, fmt.Errorf("%w: penalty rate %v", ErrInvalidParameter, cfg.PenaltyRate)
	case cfg.RefreshInterval <= 0:
		return nil, fmt.Errorf("%w: refresh interval %v", ErrInvalidParameter, cfg.RefreshInterval)
	case cfg.Clock == nil || cfg.Logger == nil:
		return nil, fmt.Errorf("%w: clock and logger are required", ErrInvalidParameter)
	}

	return &Contract{
		ledger:           l,
		producer:         producer,
		consumer:         consumer,
		energyAmount:     energyAmount,
		basePricePerUnit: basePricePerUnit,
		pricePerUnit:     basePricePerUnit,
		deliveryTime:     deliveryTime,
		status:           Pending,
		cfg:              cfg,
	}, nil
}

func defaultPricer(m Mode) (Pricer, error) {
	if m == ModeDynamic {
		return NewMarketPricer(DefaultMarketLow, DefaultMarketHigh)
	}
	return FixedFactor(1), nil
}

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0)
}

func validParty(p ledger.Party) bool {
	return !p.IsMint() && p != ledger.Escrow
}

// reprice must be called with c.mu held.
func (c *Contract) reprice() error {
	factor := c.cfg.Pricer.Factor()
	price := c.basePricePerUnit * factor
	if !positive(price) {
		return fmt.Errorf("%w: pricer returned factor %v", ErrInvalidParameter, factor)
	}
	c.pricePerUnit = price
	c.totalPrice = c.energyAmount * price
	return nil
}

// InitiateTrade prices the trade and moves the consumer's payment into
// escrow.
func (c *Contract) InitiateTrade() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != Pending {
		return c.transitionError(ErrAlreadyInitiated, "initiate")
	}
	previousPrice, previousTotal := c.pricePerUnit, c.totalPrice
	if err := c.reprice(); err != nil {
		return err
	}
	payment := ledger.Transaction{From: c.consumer, To: ledger.Escrow, Amount: c.totalPrice}
	if err := c.ledger.CreateTransactions(payment); err != nil {
		c.pricePerUnit, c.totalPrice = previousPrice, previousTotal
		return fmt.Errorf("placing %v in escrow: %w", payment.Amount, err)
	}
	c.escrow = c.totalPrice
	c.status = InEscrow
	c.cfg.Logger.Info("trade initiated",
		"consumer", c.consumer.String(),
		"escrow", c.escrow,
		"price_per_unit", c.pricePerUnit,
	)
	return nil
}

// RefreshPrice recomputes the price per unit and the total price. The
// escrowed amount never changes.
func (c *Contract) RefreshPrice() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != InEscrow {
		return c.transitionError(ErrNotInitiated, "refresh price")
	}
	if !c.cfg.Clock.Now().Before(c.deliveryTime) {
		return c.transitionError(ErrDeliveryPassed, "refresh price")
	}
	if err := c.reprice(); err != nil {
		return err
	}
	c.cfg.Logger.Debug("price refreshed",
		"price_per_unit", c.pricePerUnit,
		"total_price", c.totalPrice,
		"escrow", c.escrow,
	)
	return nil
}

// ConfirmDelivery releases the escrowed amount to the producer once the
// delivery time is reached.
func (c *Contract) ConfirmDelivery() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireInEscrow("confirm delivery"); err != nil {
		return err
	}
	if c.cfg.Clock.Now().Before(c.deliveryTime) {
		return c.transitionError(ErrNotDeliverable, "confirm delivery")
	}
	release := ledger.Transaction{From: ledger.Escrow, To: c.producer, Amount: c.escrow}
	if err := c.ledger.CreateTransactions(release); err != nil {
		return fmt.Errorf("releasing escrow to %s: %w", c.producer, err)
	}
	c.escrow = 0
	c.status = Completed
	c.cfg.Logger.Info("delivery confirmed", "producer", c.producer.String(), "released", release.Amount)
	return nil
}

// PenaliseProducer refunds the consumer minus a penalty paid to the producer
// once the grace period after the delivery time has elapsed. The two
// transactions are queued together.
func (c *Contract) PenaliseProducer() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireInEscrow("penalise producer"); err != nil {
		return err
	}
	if c.cfg.Clock.Now().Before(c.deliveryTime.Add(c.cfg.GracePeriod)) {
		return c.transitionError(ErrGraceNotElapsed, "penalise producer")
	}
	penalty := c.escrow * c.cfg.PenaltyRate
	refund := ledger.Transaction{From: ledger.Escrow, To: c.consumer, Amount: c.escrow - penalty}
	fee := ledger.Transaction{From: ledger.Escrow, To: c.producer, Amount: penalty}
	if err := c.ledger.CreateTransactions(refund, fee); err != nil {
		return fmt.Errorf("splitting escrow: %w", err)
	}
	c.escrow = 0
	c.status = Penalized
	c.cfg.Logger.Info("producer penalised",
		"refund", refund.Amount,
		"penalty", fee.Amount,
	)
	return nil
}

func (c *Contract) requireInEscrow(op string) error {
	switch {
	case c.status == Pending:
		return c.transitionError(ErrNotInitiated, op)
	case c.status.Terminal():
		return c.transitionError(ErrAlreadySettled, op)
	}
	return nil
}

func (c *Contract) transitionError(kind error, op string) error {
	c.cfg.Logger.Debug("transition refused", "operation", op, "status", string(c.status), "reason", kind.Error())
	return fmt.Errorf("%s in status %s: %w", op, c.status, kind)
}

func (c *Contract) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Contract) Escrow() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.escrow
}

func (c *Contract) TotalPrice() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalPrice
}

func (c *Contract) PricePerUnit() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pricePerUnit
}

func (c *Contract) DeliveryTime() time.Time {
	return c.deliveryTime
}

func (c *Contract) GracePeriod() time.Duration {
	return c.cfg.GracePeriod
}

// State returns a copy of every field of the contract.
func (c *Contract) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Producer:         c.producer,
		Consumer:         c.consumer,
		EnergyAmount:     c.energyAmount,
		BasePricePerUnit: c.basePricePerUnit,
		PricePerUnit:     c.pricePerUnit,
		DeliveryTime:     c.deliveryTime,
		GracePeriod:      c.cfg.GracePeriod.String(),
		Mode:             c.cfg.Mode.String(),
		Status:           c.status,
		Escrow:           c.escrow,
		TotalPrice:       c.totalPrice,
		PenaltyRate:      c.cfg.PenaltyRate,
	}
}

func (c *Contract) String() string {
	out, err := json.MarshalIndent(c.State(), "", "    ")
	if err != nil {
		return err.Error()
	}
	return string(out)
}
