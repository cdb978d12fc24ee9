package notify

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"promptpilot/internal/autopilot"
	"promptpilot/internal/eventbus"
	logx "promptpilot/pkg/logx"
)

type captureSink struct {
	mu   sync.Mutex
	msgs []string
}

func (c *captureSink) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	c.msgs = append(c.msgs, text)
	c.mu.Unlock()
	return nil
}

func (c *captureSink) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.msgs...)
}

func (c *captureSink) waitFor(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := c.all(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("sink received %d messages, want %d", len(c.all()), n)
	return nil
}

func newTestService(t *testing.T) (*Service, eventbus.Bus, *captureSink) {
	t.Helper()
	bus := eventbus.New()
	s := New(Config{Enabled: true, RatePerSec: 100}, logx.Nop(), bus)
	sink := &captureSink{}
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s, bus, sink
}

func TestRendersQueueEvents(t *testing.T) {
	t.Parallel()
	_, bus, sink := newTestService(t)

	bus.Publish(eventbus.Event{Type: autopilot.EventQueueCompleted, Data: autopilot.RunEvent{Total: 3}})
	bus.Publish(eventbus.Event{Type: autopilot.EventItemAbandoned, Data: autopilot.RunEvent{
		Prompt: "build it", Index: 1, Total: 3, Attempts: 3, Error: "socket closed",
	}})

	got := sink.waitFor(t, 2)
	if !strings.Contains(got[0], "all 3 prompts") {
		t.Fatalf("completion message = %q", got[0])
	}
	if !strings.Contains(got[1], "Prompt 2/3 abandoned after 3 attempts") || !strings.Contains(got[1], "socket closed") {
		t.Fatalf("abandon message = %q", got[1])
	}
}

func TestIgnoresUnknownEvents(t *testing.T) {
	t.Parallel()
	_, bus, sink := newTestService(t)

	bus.Publish(eventbus.Event{Type: "config.updated"})
	bus.Publish(eventbus.Event{Type: autopilot.EventQueueEmpty})

	got := sink.waitFor(t, 1)
	if len(got) != 1 || !strings.Contains(got[0], "no prompts") {
		t.Fatalf("messages = %v, want only the empty-queue one", got)
	}
}

func TestRateLimitDrops(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	s := New(Config{Enabled: true, RatePerSec: 1}, logx.Nop(), bus)
	sink := &captureSink{}
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()

	// Deliver directly so channel buffering can't mask the limiter.
	for i := 0; i < 5; i++ {
		s.deliver("burst")
	}
	if got := len(sink.all()); got != 1 {
		t.Fatalf("limiter let %d of 5 through, want 1", got)
	}
}

func TestDisabledServiceDoesNotSubscribe(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	s := New(Config{Enabled: false}, logx.Nop(), bus)
	s.Start(context.Background())
	if s.unsub != nil {
		t.Fatal("disabled service subscribed to the bus")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx) // must be a no-op
}

func TestStopEndsDelivery(t *testing.T) {
	t.Parallel()
	s, bus, sink := newTestService(t)

	bus.Publish(eventbus.Event{Type: autopilot.EventQueueCompleted, Data: autopilot.RunEvent{Total: 1}})
	sink.waitFor(t, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	bus.Publish(eventbus.Event{Type: autopilot.EventQueueCompleted, Data: autopilot.RunEvent{Total: 2}})
	time.Sleep(50 * time.Millisecond)
	if got := sink.all(); len(got) != 1 {
		t.Fatalf("delivery continued after Stop: %v", got)
	}
}
