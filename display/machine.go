package display

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Device control codes understood by the display firmware.
const (
	CodeReset     = "r" // reset every digit to zero
	CodeBlank     = "b" // blank the display
	CodeIncrement = "i" // increment marker
)

// TimestampLayout is the local timestamp format carried in bus payloads.
const TimestampLayout = "2006-01-02 15:04:05"

// Sink delivers control sequences to the physical display.
type Sink interface {
	Send(ctx context.Context, code string) error
}

// Notifier publishes state snapshots.
type Notifier interface {
	Notify(ctx context.Context, snap Snapshot) error
}

// Observer receives the outcome of every executed effect.
type Observer interface {
	RecordSend(err error)
	RecordNotify(err error)
}

// Snapshot is the read-only projection published on every mode change.
type Snapshot struct {
	Mode    Mode   `json:"mode"`
	At      string `json:"at"`
	Display string `json:"display"`
}

// EffectKind distinguishes the two external side effects of a transaction.
type EffectKind int

const (
	EffectSend EffectKind = iota
	EffectNotify
)

// Effect is one external side effect recorded by a transaction.
type Effect struct {
	Kind     EffectKind
	Code     string   // EffectSend
	Snapshot Snapshot // EffectNotify
}

// Options configures a Machine. Zero values fall back to the real clock,
// time.Local, and no external side effects.
type Options struct {
	Clock       clockwork.Clock
	Location    *time.Location
	Sink        Sink
	Notifier    Notifier
	Observer    Observer
	SendTimeout time.Duration
}

// Machine owns the display mode and digit string.
type Machine struct {
	clock       clockwork.Clock
	loc         *time.Location
	sink        Sink
	notifier    Notifier
	observer    Observer
	sendTimeout time.Duration

	mu      sync.Mutex
	mode    Mode
	display string
}

// NewMachine returns a machine in ModeTime showing all zeros.
func NewMachine(opts Options) *Machine {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Machine{
		clock:       clock,
		loc:         loc,
		sink:        opts.Sink,
		notifier:    opts.Notifier,
		observer:    opts.Observer,
		sendTimeout: opts.SendTimeout,
		mode:        ModeTime,
		display:     Zero,
	}
}

// Now returns the current time in the display's timezone.
func (m *Machine) Now() time.Time {
	return m.clock.Now().In(m.loc)
}

// Mode returns the current mode.
func (m *Machine) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Display returns the current digit string.
func (m *Machine) Display() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.display
}

// Snapshot returns a consistent copy of mode and display stamped with now.
func (m *Machine) Snapshot() Snapshot {
	now := m.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(now)
}

func (m *Machine) snapshotLocked(now time.Time) Snapshot {
	return Snapshot{
		Mode:    m.mode,
		At:      now.Format(TimestampLayout),
		Display: m.display,
	}
}

// Purpose: Apply one read-modify-write sequence to the display state.
// Key aspects: fn runs under the state lock; effects it records run after
// the lock is released, in recorded order, and are returned to the caller.
// Upstream: commands.Dispatcher and Ticker.
// Downstream: Sink.Send and Notifier.Notify.
func (m *Machine) Update(ctx context.Context, fn func(tx *Tx)) []Effect {
	tx := &Tx{m: m, now: m.Now()}
	m.mu.Lock()
	fn(tx)
	tx.m = nil
	m.mu.Unlock()

	for _, effect := range tx.effects {
		m.execute(ctx, effect)
	}
	return tx.effects
}

func (m *Machine) execute(ctx context.Context, effect Effect) {
	switch effect.Kind {
	case EffectSend:
		if m.sink == nil {
			return
		}
		sendCtx := ctx
		if m.sendTimeout > 0 {
			var cancel context.CancelFunc
			sendCtx, cancel = context.WithTimeout(ctx, m.sendTimeout)
			defer cancel()
		}
		err := m.sink.Send(sendCtx, effect.Code)
		if err != nil {
			log.Printf("Display: device send %q failed: %v", effect.Code, err)
		}
		if m.observer != nil {
			m.observer.RecordSend(err)
		}
	case EffectNotify:
		if m.notifier == nil {
			return
		}
		err := m.notifier.Notify(ctx, effect.Snapshot)
		if err != nil {
			log.Printf("Display: state publish failed: %v", err)
		}
		if m.observer != nil {
			m.observer.RecordNotify(err)
		}
	}
}

// Tx is the write view handed to Update callbacks. It must not be retained
// after the callback returns.
type Tx struct {
	m       *Machine
	now     time.Time
	effects []Effect
}

// Now is the time captured when the transaction started.
func (tx *Tx) Now() time.Time { return tx.now }

// Mode returns the mode as seen inside the transaction.
func (tx *Tx) Mode() Mode { return tx.m.mode }

// Display returns the digit string as seen inside the transaction.
func (tx *Tx) Display() string { return tx.m.display }

// SetDisplay renders raw and stores it.
func (tx *Tx) SetDisplay(raw string) {
	tx.m.display = RenderDigits(raw)
}

// SetMode switches mode and records exactly one snapshot emission.
func (tx *Tx) SetMode(mode Mode) {
	tx.m.mode = mode
	tx.Notify()
}

func (tx *Tx) ToReset()     { tx.SetMode(ModeReset) }
func (tx *Tx) ToDate()      { tx.SetMode(ModeDate) }
func (tx *Tx) ToTime()      { tx.SetMode(ModeTime) }
func (tx *Tx) ToIncrement() { tx.SetMode(ModeIncrement) }
func (tx *Tx) ToCustom()    { tx.SetMode(ModeCustom) }

// Notify records a snapshot of the current state without changing it.
func (tx *Tx) Notify() {
	tx.effects = append(tx.effects, Effect{Kind: EffectNotify, Snapshot: tx.m.snapshotLocked(tx.now)})
}

// Send records a control sequence for the device sink.
func (tx *Tx) Send(code string) {
	tx.effects = append(tx.effects, Effect{Kind: EffectSend, Code: code})
}
