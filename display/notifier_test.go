package display

import (
	"context"
	"errors"
	"testing"
)

type fakePublisher struct {
	connected bool
	topics    []string
	payloads  [][]byte
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return p.err
}

func (p *fakePublisher) IsConnected() bool { return p.connected }

func TestBusNotifierPublishesToStateTopic(t *testing.T) {
	pub := &fakePublisher{connected: true}
	n := NewBusNotifier(pub, "clock/")
	snap := Snapshot{Mode: ModeReset, At: "2026-10-16 10:00:00", Display: Zero}
	if err := n.Notify(context.Background(), snap); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(pub.topics) != 1 || pub.topics[0] != "clock/state" {
		t.Fatalf("unexpected topics: %v", pub.topics)
	}
	want := `{"mode":"reset","at":"2026-10-16 10:00:00","display":"000000"}`
	if string(pub.payloads[0]) != want {
		t.Fatalf("unexpected payload %s", pub.payloads[0])
	}
}

func TestBusNotifierSkipsWhenDisconnectedOrAbsent(t *testing.T) {
	pub := &fakePublisher{connected: false}
	if err := NewBusNotifier(pub, "clock").Notify(context.Background(), Snapshot{}); err != nil {
		t.Fatalf("expected silent skip, got %v", err)
	}
	if len(pub.topics) != 0 {
		t.Fatalf("expected no publish while disconnected")
	}
	if err := NewBusNotifier(nil, "clock").Notify(context.Background(), Snapshot{}); err != nil {
		t.Fatalf("expected nil publisher to be a no-op, got %v", err)
	}
	var nilNotifier *BusNotifier
	if err := nilNotifier.Notify(context.Background(), Snapshot{}); err != nil {
		t.Fatalf("expected nil notifier to be a no-op, got %v", err)
	}
}

func TestBusNotifierWrapsPublishError(t *testing.T) {
	boom := errors.New("broker gone")
	pub := &fakePublisher{connected: true, err: boom}
	err := NewBusNotifier(pub, "clock").Notify(context.Background(), Snapshot{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
}

func TestEncodeAnnouncement(t *testing.T) {
	payload, err := EncodeAnnouncement("2026-10-16 10:00:00")
	if err != nil {
		t.Fatalf("EncodeAnnouncement: %v", err)
	}
	if string(payload) != `{"at":"2026-10-16 10:00:00"}` {
		t.Fatalf("unexpected payload %s", payload)
	}
}
