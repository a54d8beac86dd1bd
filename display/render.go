// Package display holds the six-digit display state machine: the modes, the
// renderer that canonicalizes values into digit strings, the ticker that keeps
// clock-driven modes current, and the notifier that publishes snapshots.
//
// All writes to the state go through Machine.Update so a mode change and the
// display recomputation that accompanies it are observed together. External
// side effects (device control sequences, bus snapshots) are recorded during
// the update and executed in order once the lock is released.
package display

import (
	"strings"
	"time"
)

// Width is the number of digits on the physical display.
const Width = 6

// Zero is the all-zero display string.
const Zero = "000000"

const (
	clockLayout = "150405"
	dateLayout  = "020106"
)

// RenderDigits canonicalizes raw into exactly Width ASCII digits.
// Non-digits are dropped, short values are left-padded with '0', and long
// values keep their rightmost Width digits.
func RenderDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw) + Width)
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	digits := b.String()
	if len(digits) >= Width {
		return digits[len(digits)-Width:]
	}
	return strings.Repeat("0", Width-len(digits)) + digits
}

// RenderClock formats t as HHMMSS.
func RenderClock(t time.Time) string {
	return t.Format(clockLayout)
}

// RenderDate formats t as DDMMYY.
func RenderDate(t time.Time) string {
	return t.Format(dateLayout)
}
