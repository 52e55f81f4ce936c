package escrow

import (
	"context"
	"errors"
)

// MonitorPrice refreshes the price immediately and then on every refresh
// interval until the delivery time is reached or the contract leaves
// InEscrow, in which case it returns nil. It returns ctx.Err() when ctx is
// cancelled first. The contract lock is held only for each refresh, so
// settlement calls are never blocked by a running monitor.
func (c *Contract) MonitorPrice(ctx context.Context) error {
	if done, err := c.refreshOnce(); done || err != nil {
		return err
	}
	clock := c.cfg.Clock
	remaining := c.deliveryTime.Sub(clock.Now())
	if remaining <= 0 {
		return nil
	}
	deadline := clock.NewTimer(remaining)
	defer deadline.Stop()
	ticker := clock.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.Chan():
			c.cfg.Logger.Debug("price monitor reached delivery time")
			return nil
		case <-ticker.Chan():
			if done, err := c.refreshOnce(); done || err != nil {
				return err
			}
		}
	}
}

// refreshOnce reports done when the monitor has nothing left to do.
func (c *Contract) refreshOnce() (done bool, err error) {
	err = c.RefreshPrice()
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, ErrInvalidTransition):
		return true, nil
	default:
		return true, err
	}
}
