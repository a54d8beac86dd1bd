package tasmota

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSendBuildsSerialSendRequest(t *testing.T) {
	var mu sync.Mutex
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cm" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		mu.Lock()
		got = append(got, r.URL.Query().Get("cmnd"))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"SerialSend":"Done"}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	for _, payload := range []string{"b", "000042"} {
		if err := client.Send(context.Background(), payload); err != nil {
			t.Fatalf("Send(%q): %v", payload, err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "SerialSend2 b" || got[1] != "SerialSend2 000042" {
		t.Fatalf("unexpected commands: %q", got)
	}
}

func TestSendReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, DefaultCommand, time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	err = client.Send(context.Background(), "r")
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestSendHonorsTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := NewClient(srv.URL, "", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	start := time.Now()
	if err := client.Send(context.Background(), "i"); err == nil {
		t.Fatalf("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("send blocked for %s", elapsed)
	}
}

func TestEndpointForBareHost(t *testing.T) {
	client, err := NewClient("192.168.1.103", "", 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.Endpoint() != "http://192.168.1.103/cm" {
		t.Fatalf("unexpected endpoint %q", client.Endpoint())
	}
	if got := client.RequestURL("r"); got != "http://192.168.1.103/cm?cmnd=SerialSend2+r" {
		t.Fatalf("unexpected request URL %q", got)
	}
	if _, err := NewClient("  ", "", 0); err == nil {
		t.Fatalf("expected empty host to be rejected")
	}
}
