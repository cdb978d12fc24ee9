package autopilot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"promptpilot/internal/eventbus"
	logx "promptpilot/pkg/logx"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeClient struct {
	mu          sync.Mutex
	unavailable bool
	sent        []string
	sendErr     error
	stats       Stats
	statsErr    error
}

func (f *fakeClient) IsAvailable(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.unavailable
}

func (f *fakeClient) SendPrompt(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return f.sendErr
}

func (f *fakeClient) Stats(ctx context.Context) (Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats, f.statsErr
}

func (f *fakeClient) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeClient) sentCopy() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeClient) setSendErr(err error) {
	f.mu.Lock()
	f.sendErr = err
	f.mu.Unlock()
}

func (f *fakeClient) setStats(st Stats) {
	f.mu.Lock()
	f.stats = st
	f.mu.Unlock()
}

// newTestService wires an autopilot with a fake clock, a fast retry delay and
// a silence-check loop that never fires on its own (ticks are driven by the
// tests directly).
func newTestService(t *testing.T, cfg Config, client *fakeClient) (*Service, *fakeClock, eventbus.Bus) {
	t.Helper()
	clock := newFakeClock()
	bus := eventbus.New()
	s := New(cfg, client, logx.Nop(), bus)
	s.now = clock.Now
	s.tickEvery = time.Hour
	s.retryWait = time.Millisecond
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s, clock, bus
}

var errSendBoom = errors.New("transport: send failed")

func waitEvent(t *testing.T, ch <-chan eventbus.Event, typ string) eventbus.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %q", typ)
		}
	}
}

func expectNoEvent(t *testing.T, ch <-chan eventbus.Event, typ string, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case ev := <-ch:
			if ev.Type == typ {
				t.Fatalf("unexpected event %q", typ)
			}
		case <-deadline:
			return
		}
	}
}
