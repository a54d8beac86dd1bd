package display

import "fmt"

// Mode is the operating behavior of the display.
type Mode int

const (
	ModeTime Mode = iota
	ModeDate
	ModeReset
	ModeIncrement
	ModeCustom
)

var modeNames = [...]string{
	ModeTime:      "time",
	ModeDate:      "date",
	ModeReset:     "reset",
	ModeIncrement: "increment",
	ModeCustom:    "custom",
}

// String returns the wire name published in state snapshots.
func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return modeNames[m]
}

// ClockDriven reports whether the ticker owns the display in this mode.
func (m Mode) ClockDriven() bool {
	return m == ModeTime || m == ModeDate
}

// MarshalText lets modes serialize by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
