// Package stats tracks dispatch and delivery counters for the periodic status
// line.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Tracker tracks command, tick, and delivery statistics
type Tracker struct {
	// counters live in sync.Map + atomic.Uint64 so the display loop and the
	// status logger never contend on a mutex
	commandCounts   sync.Map // group -> *atomic.Uint64
	start           atomic.Int64
	ignored         atomic.Uint64
	ticks           atomic.Uint64
	tickPushes      atomic.Uint64
	deviceSends     atomic.Uint64
	deviceFailures  atomic.Uint64
	publishes       atomic.Uint64
	publishFailures atomic.Uint64
}

// NewTracker creates a new stats tracker
func NewTracker() *Tracker {
	t := &Tracker{}
	t.start.Store(time.Now().UnixNano())
	return t
}

// RecordCommand increases the count for a dispatched command group.
func (t *Tracker) RecordCommand(group string) {
	incrementCounter(&t.commandCounts, group)
}

// RecordIgnored counts an inbound message that matched no alias.
func (t *Tracker) RecordIgnored() {
	t.ignored.Add(1)
}

// RecordTick counts a ticker wake-up and whether it pushed to the device.
func (t *Tracker) RecordTick(pushed bool) {
	t.ticks.Add(1)
	if pushed {
		t.tickPushes.Add(1)
	}
}

// RecordSend counts a device request and its failure, if any.
func (t *Tracker) RecordSend(err error) {
	t.deviceSends.Add(1)
	if err != nil {
		t.deviceFailures.Add(1)
	}
}

// RecordNotify counts a state publish and its failure, if any.
func (t *Tracker) RecordNotify(err error) {
	t.publishes.Add(1)
	if err != nil {
		t.publishFailures.Add(1)
	}
}

// CommandCounts returns a copy of per-group dispatch counts.
func (t *Tracker) CommandCounts() map[string]uint64 {
	counts := make(map[string]uint64)
	t.commandCounts.Range(func(key, value any) bool {
		counts[key.(string)] = value.(*atomic.Uint64).Load()
		return true
	})
	return counts
}

// Ignored returns the number of unrecognized commands.
func (t *Tracker) Ignored() uint64 { return t.ignored.Load() }

// Ticks returns total ticks and how many pushed to the device.
func (t *Tracker) Ticks() (total, pushed uint64) {
	return t.ticks.Load(), t.tickPushes.Load()
}

// DeviceSends returns total device requests and failures.
func (t *Tracker) DeviceSends() (total, failed uint64) {
	return t.deviceSends.Load(), t.deviceFailures.Load()
}

// Publishes returns total state publishes and failures.
func (t *Tracker) Publishes() (total, failed uint64) {
	return t.publishes.Load(), t.publishFailures.Load()
}

// Uptime returns how long the tracker has been running at now.
func (t *Tracker) Uptime(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, t.start.Load()))
}

// SnapshotLines returns human-readable stats ready for console display.
func (t *Tracker) SnapshotLines(now time.Time) []string {
	uptime := t.Uptime(now)
	started := now.Add(-uptime)
	ticks, pushed := t.Ticks()
	sends, sendFailed := t.DeviceSends()
	pubs, pubFailed := t.Publishes()
	return []string{
		fmt.Sprintf("Uptime: %s (since %s)", strings.TrimSpace(humanize.RelTime(started, now, "", "")), started.Format(time.RFC3339)),
		formatCounts("Commands", t.CommandCounts()) + fmt.Sprintf(" | ignored=%s", humanize.Comma(int64(t.Ignored()))),
		fmt.Sprintf("Ticks: %s (%s pushed) | Device: %s sent, %s failed | State: %s published, %s failed",
			humanize.Comma(int64(ticks)), humanize.Comma(int64(pushed)),
			humanize.Comma(int64(sends)), humanize.Comma(int64(sendFailed)),
			humanize.Comma(int64(pubs)), humanize.Comma(int64(pubFailed))),
	}
}

func formatCounts(label string, values map[string]uint64) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var builder strings.Builder
	builder.WriteString(label)
	builder.WriteString(": ")
	if len(keys) == 0 {
		builder.WriteString("(none)")
		return builder.String()
	}
	for i, k := range keys {
		if i > 0 {
			builder.WriteString(", ")
		}
		fmt.Fprintf(&builder, "%s=%s", k, humanize.Comma(int64(values[k])))
	}
	return builder.String()
}

func incrementCounter(m *sync.Map, key string) {
	if strings.TrimSpace(key) == "" {
		return
	}
	if value, ok := m.Load(key); ok {
		value.(*atomic.Uint64).Add(1)
		return
	}
	counter := &atomic.Uint64{}
	actual, loaded := m.LoadOrStore(key, counter)
	if loaded {
		actual.(*atomic.Uint64).Add(1)
		return
	}
	counter.Add(1)
}
