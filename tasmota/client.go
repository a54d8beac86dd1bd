// Package tasmota sends display control sequences to a Tasmota serial bridge.
//
// Each control action is one HTTP GET against the device's command endpoint:
//
//	GET http://<host>/cm?cmnd=SerialSend2%20<payload>
//
// where payload is a single control code (r, b, i) or a six-digit string.
package tasmota

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultCommand is the Tasmota console command that writes to the
	// secondary serial port.
	DefaultCommand = "SerialSend2"
	// DefaultTimeout bounds a single request so a stalled device cannot hold
	// up the display loop.
	DefaultTimeout = 2 * time.Second

	commandPath  = "/cm"
	commandParam = "cmnd"
	maxDrain     = 4 << 10
)

// Client is a display sink backed by the Tasmota HTTP API.
type Client struct {
	endpoint string
	command  string
	http     *http.Client
}

// NewClient builds a client for host. host may be a bare address
// ("192.168.1.103", "display.lan:8080") or a full http(s) URL.
func NewClient(host, command string, timeout time.Duration) (*Client, error) {
	endpoint, err := endpointFor(host)
	if err != nil {
		return nil, err
	}
	command = strings.TrimSpace(command)
	if command == "" {
		command = DefaultCommand
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		command:  command,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

func endpointFor(host string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", fmt.Errorf("tasmota: host is empty")
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	parsed, err := url.Parse(host)
	if err != nil {
		return "", fmt.Errorf("tasmota: invalid host %q: %w", host, err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("tasmota: invalid host %q", host)
	}
	parsed.Path = commandPath
	parsed.RawQuery = ""
	return parsed.String(), nil
}

// Endpoint returns the command URL without query.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// RequestURL returns the full URL used to deliver payload.
func (c *Client) RequestURL(payload string) string {
	q := url.Values{}
	q.Set(commandParam, c.command+" "+payload)
	return c.endpoint + "?" + q.Encode()
}

// Purpose: Deliver one control sequence to the display.
// Key aspects: Bounded by the client timeout and ctx; non-2xx is an error.
// Upstream: display.Machine effect execution.
// Downstream: net/http GET to the device.
func (c *Client) Send(ctx context.Context, payload string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RequestURL(payload), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send %q: %w", payload, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("send %q: status %s", payload, resp.Status)
	}
	return nil
}
