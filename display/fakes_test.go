package display

import (
	"context"
	"errors"
	"sync"
)

type recordingSink struct {
	mu    sync.Mutex
	codes []string
	fail  bool
}

func (s *recordingSink) Send(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes = append(s.codes, code)
	if s.fail {
		return errors.New("device unreachable")
	}
	return nil
}

func (s *recordingSink) Codes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.codes...)
}

type recordingNotifier struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (n *recordingNotifier) Notify(_ context.Context, snap Snapshot) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.snaps = append(n.snaps, snap)
	return nil
}

func (n *recordingNotifier) Snapshots() []Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Snapshot(nil), n.snaps...)
}

type countingObserver struct {
	sends, sendFailures, notifies int
}

func (o *countingObserver) RecordSend(err error) {
	o.sends++
	if err != nil {
		o.sendFailures++
	}
}

func (o *countingObserver) RecordNotify(error) {
	o.notifies++
}
