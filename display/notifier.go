package display

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// StateSuffix is appended to the bus root to form the snapshot topic.
const StateSuffix = "state"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Publisher is the narrow bus capability the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

type connectionReporter interface {
	IsConnected() bool
}

// BusNotifier publishes snapshots to <root>/state.
type BusNotifier struct {
	pub   Publisher
	topic string
}

// NewBusNotifier returns a notifier publishing under root. A nil publisher
// yields a notifier that silently drops every snapshot.
func NewBusNotifier(pub Publisher, root string) *BusNotifier {
	return &BusNotifier{
		pub:   pub,
		topic: Topic(root, StateSuffix),
	}
}

// Topic joins the bus root and a suffix.
func Topic(root, suffix string) string {
	return strings.TrimRight(root, "/") + "/" + suffix
}

// Notify serializes snap and publishes it. It is a no-op when the bus is
// absent or currently disconnected.
func (n *BusNotifier) Notify(ctx context.Context, snap Snapshot) error {
	if n == nil || n.pub == nil {
		return nil
	}
	if reporter, ok := n.pub.(connectionReporter); ok && !reporter.IsConnected() {
		return nil
	}
	payload, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := n.pub.Publish(ctx, n.topic, payload); err != nil {
		return fmt.Errorf("publish %s: %w", n.topic, err)
	}
	return nil
}

// EncodeSnapshot renders the wire form {"mode":..,"at":..,"display":..}.
func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return payload, nil
}

// Announcement is the payload of the startup topics.
type Announcement struct {
	At string `json:"at"`
}

// EncodeAnnouncement renders {"at":..}.
func EncodeAnnouncement(at string) ([]byte, error) {
	payload, err := json.Marshal(Announcement{At: at})
	if err != nil {
		return nil, fmt.Errorf("encode announcement: %w", err)
	}
	return payload, nil
}
