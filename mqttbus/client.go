// Package mqttbus connects the display to an MQTT broker.
//
// Topic Structure:
//
//	<root>/<command>  inbound commands (subscribed as <root>/#)
//	<root>/state      outbound state snapshots
//	<root>/start      outbound startup announcement
//
// The command name is the topic remainder after "<root>/". Inbound messages are
// handed from paho's callback goroutine to a bounded queue that the display
// loop drains; when the queue is full the message is dropped and counted so a
// flood on the shared channel cannot stall the broker connection.
package mqttbus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"segclock/commands"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/zeebo/xxh3"
)

const (
	DefaultQueueSize      = 64
	DefaultPublishTimeout = 2 * time.Second
	DefaultMaxPayload     = 1024

	clientIDPrefix = "segclock-"
)

// ErrNotConnected is returned by Publish before Connect succeeds.
var ErrNotConnected = errors.New("mqtt: not connected")

// Options configures a Client.
type Options struct {
	Host           string
	Port           int
	Root           string
	Username       string
	Password       string
	ClientID       string
	QueueSize      int
	PublishTimeout time.Duration
	MaxPayload     int
	// PublishOnly skips the command subscription (used by clockctl).
	PublishOnly bool
}

// Client is a paho MQTT client bound to one command root.
//
// Thread Safety:
//   - paho invokes messageHandler on its own goroutine
//   - inbound is buffered and written with non-blocking sends
//   - Publish may be called from any goroutine
type Client struct {
	opts      Options
	newClient func(*mqtt.ClientOptions) session
	client    session
	inbound   chan commands.Command
	dropped   atomic.Uint64
	received  atomic.Uint64
}

// session is the subset of mqtt.Client the bus drives.
type session interface {
	Connect() mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
}

func newPahoSession(opts *mqtt.ClientOptions) session {
	return mqtt.NewClient(opts)
}

// NewClient applies defaults to opts and allocates the inbound queue.
func NewClient(opts Options) *Client {
	opts.Root = strings.Trim(strings.TrimSpace(opts.Root), "/")
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultPublishTimeout
	}
	if opts.MaxPayload <= 0 {
		opts.MaxPayload = DefaultMaxPayload
	}
	if strings.TrimSpace(opts.ClientID) == "" {
		opts.ClientID = ClientID(opts.Root)
	}
	return &Client{
		opts:      opts,
		newClient: newPahoSession,
		inbound:   make(chan commands.Command, opts.QueueSize),
	}
}

// ClientID derives a stable client identifier from the host name and root so
// a restarted process takes over its previous broker session.
func ClientID(root string) string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s%016x", clientIDPrefix, xxh3.HashString(hostname+"/"+root))
}

// BrokerURL returns the tcp URL for the configured broker.
func (c *Client) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.opts.Host, c.opts.Port)
}

// Root returns the normalized command root.
func (c *Client) Root() string {
	return c.opts.Root
}

// Purpose: Establish the broker connection.
// Key aspects: Single attempt; the caller decides whether to run without a bus.
// The command subscription is acknowledged before Connect returns, so anything
// published afterwards on <root>/ loops back. onConnect resubscribes after
// reconnects.
// Upstream: main startup.
// Downstream: paho Connect.
func (c *Client) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.BrokerURL())
	opts.SetClientID(c.opts.ClientID)
	if c.opts.Username != "" {
		opts.SetUsername(c.opts.Username)
	}
	if c.opts.Password != "" {
		opts.SetPassword(c.opts.Password)
	}

	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)

	// Once connected, ride out broker restarts; the initial attempt is not retried.
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.client = c.newClient(opts)

	log.Printf("MQTT: connecting to %s as %s...", c.BrokerURL(), c.opts.ClientID)

	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect to %s: %w", c.BrokerURL(), token.Error())
	}

	log.Printf("MQTT: connected to %s", c.BrokerURL())
	if c.opts.PublishOnly {
		return nil
	}
	if err := c.subscribe(c.client); err != nil {
		c.client.Disconnect(250)
		return err
	}
	return nil
}

// SubscriptionTopic is the wildcard filter covering every command.
func (c *Client) SubscriptionTopic() string {
	return c.opts.Root + "/#"
}

func (c *Client) onConnect(client mqtt.Client) {
	if c.opts.PublishOnly {
		return
	}
	if err := c.subscribe(client); err != nil {
		log.Print(err)
	}
}

func (c *Client) subscribe(s session) error {
	topic := c.SubscriptionTopic()
	token := s.Subscribe(topic, 0, c.messageHandler)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT: failed to subscribe to %s: %w", topic, token.Error())
	}
	log.Printf("MQTT: subscribed to %s", topic)
	return nil
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	log.Printf("MQTT: connection lost: %v", err)
	log.Println("MQTT: will attempt to reconnect...")
}

// CommandName strips "<root>/" from topic. Topics outside root, and the bare
// root itself, yield ok=false.
func CommandName(root, topic string) (string, bool) {
	prefix := root + "/"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	name := topic[len(prefix):]
	if name == "" {
		return "", false
	}
	return name, true
}

// messageHandler hands inbound messages to the queue without blocking paho.
func (c *Client) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	name, ok := CommandName(c.opts.Root, msg.Topic())
	if !ok {
		return
	}
	payload := msg.Payload()
	if len(payload) > c.opts.MaxPayload {
		c.dropped.Add(1)
		log.Printf("MQTT: dropping %s payload of %d bytes (limit %d)", msg.Topic(), len(payload), c.opts.MaxPayload)
		return
	}
	c.received.Add(1)
	cmd := commands.Command{
		Name:    name,
		Payload: append([]byte(nil), payload...),
	}
	select {
	case c.inbound <- cmd:
	default:
		c.dropped.Add(1)
		log.Printf("MQTT: command queue full, dropping %s", msg.Topic())
	}
}

// Commands returns the inbound command queue.
func (c *Client) Commands() <-chan commands.Command {
	return c.inbound
}

// Received returns how many commands were accepted from the broker.
func (c *Client) Received() uint64 {
	return c.received.Load()
}

// Dropped returns how many inbound messages were discarded.
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

// Purpose: Publish payload to topic at QoS 0.
// Key aspects: Waits for the token at most PublishTimeout or until ctx ends.
// Upstream: display.BusNotifier and startup announcements.
// Downstream: paho Publish.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if c.client == nil {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, 0, false, payload)
	timer := time.NewTimer(c.opts.PublishTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("publish %s: timed out after %s", topic, c.opts.PublishTimeout)
	}
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Stop unsubscribes and disconnects.
func (c *Client) Stop() {
	log.Println("MQTT: stopping client...")
	if c.client != nil && c.client.IsConnected() {
		c.client.Unsubscribe(c.SubscriptionTopic()).WaitTimeout(250 * time.Millisecond)
		// Wait up to 250ms for clean disconnect.
		c.client.Disconnect(250)
	}
	log.Println("MQTT: client stopped")
}
