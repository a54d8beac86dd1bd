package display

import (
	"context"
	"time"
)

// DefaultTickInterval is the refresh cadence for clock-driven modes.
const DefaultTickInterval = time.Second

// Ticker refreshes the display while the machine is in a clock-driven mode.
type Ticker struct {
	machine  *Machine
	interval time.Duration
}

// NewTicker binds a ticker to machine. Non-positive intervals fall back to
// DefaultTickInterval.
func NewTicker(machine *Machine, interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Ticker{machine: machine, interval: interval}
}

// Interval returns the refresh cadence.
func (t *Ticker) Interval() time.Duration {
	return t.interval
}

// Tick recomputes and pushes the display when the mode is Time or Date.
// Other modes are left untouched. It reports whether a push happened.
func (t *Ticker) Tick(ctx context.Context) bool {
	pushed := false
	t.machine.Update(ctx, func(tx *Tx) {
		if !tx.Mode().ClockDriven() {
			return
		}
		digits := RenderClock(tx.Now())
		if tx.Mode() == ModeDate {
			digits = RenderDate(tx.Now())
		}
		tx.SetDisplay(digits)
		tx.Send(tx.Display())
		pushed = true
	})
	return pushed
}
