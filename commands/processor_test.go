package commands

import (
	"context"
	"sync"
	"testing"
	"time"

	"segclock/display"

	"github.com/jonboulle/clockwork"
)

type fakeSink struct {
	mu    sync.Mutex
	codes []string
}

func (s *fakeSink) Send(_ context.Context, code string) error {
	s.mu.Lock()
	s.codes = append(s.codes, code)
	s.mu.Unlock()
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	snaps []display.Snapshot
}

func (n *fakeNotifier) Notify(_ context.Context, snap display.Snapshot) error {
	n.mu.Lock()
	n.snaps = append(n.snaps, snap)
	n.mu.Unlock()
	return nil
}

type fakeRecorder struct {
	commands []string
	ignored  int
}

func (r *fakeRecorder) RecordCommand(group string) { r.commands = append(r.commands, group) }
func (r *fakeRecorder) RecordIgnored()             { r.ignored++ }

type harness struct {
	machine    *display.Machine
	dispatcher *Dispatcher
	sink       *fakeSink
	notifier   *fakeNotifier
	recorder   *fakeRecorder
	clock      *clockwork.FakeClock
}

func newHarness() *harness {
	h := &harness{
		sink:     &fakeSink{},
		notifier: &fakeNotifier{},
		recorder: &fakeRecorder{},
		clock:    clockwork.NewFakeClockAt(time.Date(2026, time.October, 16, 9, 8, 7, 0, time.UTC)),
	}
	h.machine = display.NewMachine(display.Options{
		Clock:    h.clock,
		Location: time.UTC,
		Sink:     h.sink,
		Notifier: h.notifier,
	})
	h.dispatcher = NewDispatcher(h.machine, h.recorder)
	return h
}

func (h *harness) dispatch(t *testing.T, name, payload string) {
	t.Helper()
	h.dispatcher.Dispatch(context.Background(), Command{Name: name, Payload: []byte(payload)})
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestZeroThenInfo(t *testing.T) {
	h := newHarness()
	h.dispatch(t, "zero", "")
	h.dispatch(t, "info", "")

	if len(h.notifier.snaps) != 2 {
		t.Fatalf("expected 2 snapshots (mode change + info), got %d", len(h.notifier.snaps))
	}
	info := h.notifier.snaps[1]
	if info.Mode != display.ModeReset || info.Display != "000000" {
		t.Fatalf("unexpected info snapshot: %+v", info)
	}
	if !equalStrings(h.sink.codes, []string{display.CodeReset}) {
		t.Fatalf("unexpected device codes: %v", h.sink.codes)
	}
}

func TestClearSendsBlank(t *testing.T) {
	h := newHarness()
	h.dispatch(t, "show", "123")
	h.sink.codes = nil
	h.dispatch(t, "cls", "")
	if h.machine.Mode() != display.ModeReset || h.machine.Display() != display.Zero {
		t.Fatalf("unexpected state: %v %q", h.machine.Mode(), h.machine.Display())
	}
	if !equalStrings(h.sink.codes, []string{display.CodeBlank}) {
		t.Fatalf("unexpected device codes: %v", h.sink.codes)
	}
}

func TestIncrementFromInitialState(t *testing.T) {
	h := newHarness()
	h.dispatch(t, "increment", "")
	if h.machine.Display() != "000001" || h.machine.Mode() != display.ModeIncrement {
		t.Fatalf("unexpected state after first increment: %v %q", h.machine.Mode(), h.machine.Display())
	}
	if !equalStrings(h.sink.codes, []string{display.CodeBlank, display.CodeIncrement}) {
		t.Fatalf("unexpected device codes after first increment: %v", h.sink.codes)
	}

	h.dispatch(t, "inc", "")
	if h.machine.Display() != "000002" {
		t.Fatalf("expected 000002 after second increment, got %q", h.machine.Display())
	}
	if !equalStrings(h.sink.codes, []string{display.CodeBlank, display.CodeIncrement, display.CodeIncrement}) {
		t.Fatalf("unexpected device codes after second increment: %v", h.sink.codes)
	}
	if len(h.notifier.snaps) != 2 {
		t.Fatalf("expected one snapshot per increment, got %d", len(h.notifier.snaps))
	}
}

func TestIncrementOverflowTruncates(t *testing.T) {
	h := newHarness()
	h.dispatch(t, "add", "")
	h.machine.Update(context.Background(), func(tx *display.Tx) {
		tx.SetDisplay("999999")
	})
	h.dispatch(t, "add", "")
	if h.machine.Display() != "000000" {
		t.Fatalf("expected overflow to truncate to 000000, got %q", h.machine.Display())
	}
}

func TestShowRendersPayload(t *testing.T) {
	h := newHarness()
	h.dispatch(t, "show", "abc12")
	if h.machine.Display() != "000012" || h.machine.Mode() != display.ModeCustom {
		t.Fatalf("unexpected state: %v %q", h.machine.Mode(), h.machine.Display())
	}
	if !equalStrings(h.sink.codes, []string{display.CodeBlank, "000012"}) {
		t.Fatalf("unexpected device codes: %v", h.sink.codes)
	}
}

func TestTimeAndDateCommands(t *testing.T) {
	h := newHarness()
	h.dispatch(t, "d", "")
	if h.machine.Display() != "161026" || h.machine.Mode() != display.ModeDate {
		t.Fatalf("unexpected date state: %v %q", h.machine.Mode(), h.machine.Display())
	}
	h.dispatch(t, "clock", "")
	if h.machine.Display() != "090807" || h.machine.Mode() != display.ModeTime {
		t.Fatalf("unexpected time state: %v %q", h.machine.Mode(), h.machine.Display())
	}
	if len(h.sink.codes) != 0 {
		t.Fatalf("time/date commands should leave pushing to the ticker, got %v", h.sink.codes)
	}
}

func TestUnknownCommandIsIgnored(t *testing.T) {
	h := newHarness()
	h.dispatch(t, "show", "55")
	before := h.machine.Snapshot()
	snapsBefore := len(h.notifier.snaps)
	codesBefore := len(h.sink.codes)

	group, ok := h.dispatcher.Dispatch(context.Background(), Command{Name: "state", Payload: []byte("{}")})
	if ok || group != 0 {
		t.Fatalf("expected unknown command to be rejected, got %v %t", group, ok)
	}
	after := h.machine.Snapshot()
	if after.Mode != before.Mode || after.Display != before.Display {
		t.Fatalf("state changed on unknown command: %+v -> %+v", before, after)
	}
	if len(h.notifier.snaps) != snapsBefore || len(h.sink.codes) != codesBefore {
		t.Fatalf("unknown command produced side effects")
	}
	if h.recorder.ignored != 1 {
		t.Fatalf("expected ignored counter 1, got %d", h.recorder.ignored)
	}
}

func TestEveryModeChangeEmitsOneSnapshot(t *testing.T) {
	h := newHarness()
	names := []string{"z", "r", "i", "t", "d", "s"}
	for _, name := range names {
		h.dispatch(t, name, "1")
	}
	if len(h.notifier.snaps) != len(names) {
		t.Fatalf("expected %d snapshots, got %d", len(names), len(h.notifier.snaps))
	}
	if !equalStrings(h.recorder.commands, []string{"zero", "clear", "increment", "time", "date", "show"}) {
		t.Fatalf("unexpected recorded groups: %v", h.recorder.commands)
	}
}
