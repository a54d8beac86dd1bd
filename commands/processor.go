// Package commands turns inbound bus commands into display state transitions.
// A static alias table resolves names to command groups; the Dispatcher applies
// each group as one display transaction so a command never interleaves with a
// clock refresh.
package commands

import (
	"context"
	"strconv"

	"segclock/display"
)

// Command is one inbound message: the topic remainder and the raw payload.
type Command struct {
	Name    string
	Payload []byte
}

// Recorder receives dispatch outcomes for status reporting.
type Recorder interface {
	RecordCommand(group string)
	RecordIgnored()
}

// Dispatcher applies commands to a display machine.
type Dispatcher struct {
	machine  *display.Machine
	recorder Recorder
}

// NewDispatcher wires a dispatcher to the shared display machine. recorder may
// be nil.
func NewDispatcher(machine *display.Machine, recorder Recorder) *Dispatcher {
	return &Dispatcher{
		machine:  machine,
		recorder: recorder,
	}
}

// Purpose: Apply one inbound command to the display.
// Key aspects: Unknown names are ignored without touching state; known groups
// run as a single machine transaction with ordered device/bus effects.
// Upstream: main controller loop.
// Downstream: display.Machine.Update.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (Group, bool) {
	group, ok := Lookup(cmd.Name)
	if !ok {
		if d.recorder != nil {
			d.recorder.RecordIgnored()
		}
		return 0, false
	}
	d.machine.Update(ctx, func(tx *display.Tx) {
		apply(tx, group, cmd.Payload)
	})
	if d.recorder != nil {
		d.recorder.RecordCommand(group.String())
	}
	return group, true
}

func apply(tx *display.Tx, group Group, payload []byte) {
	switch group {
	case GroupZero:
		tx.SetDisplay(display.Zero)
		tx.ToReset()
		tx.Send(display.CodeReset)
	case GroupClear:
		tx.SetDisplay(display.Zero)
		tx.ToReset()
		tx.Send(display.CodeBlank)
	case GroupIncrement:
		if tx.Mode() != display.ModeIncrement {
			tx.SetDisplay("000001")
			tx.Send(display.CodeBlank)
		} else {
			// Display is always six digits, so Atoi cannot fail.
			current, _ := strconv.Atoi(tx.Display())
			tx.SetDisplay(strconv.Itoa(current + 1))
		}
		tx.ToIncrement()
		tx.Send(display.CodeIncrement)
	case GroupTime:
		tx.SetDisplay(display.RenderClock(tx.Now()))
		tx.ToTime()
	case GroupDate:
		tx.SetDisplay(display.RenderDate(tx.Now()))
		tx.ToDate()
	case GroupInfo:
		tx.Notify()
	case GroupShow:
		tx.Send(display.CodeBlank)
		tx.SetDisplay(string(payload))
		tx.ToCustom()
		tx.Send(tx.Display())
	}
}
