package autopilot

import (
	"testing"
	"time"
)

func TestIntervalWithoutPromptSchedulesNothing(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	s, _, bus := newTestService(t, Config{Enabled: true, Mode: ModeInterval}, client)

	ch, unsub := bus.Subscribe(8)
	defer unsub()

	if err := s.StartInterval(); err != nil {
		t.Fatalf("StartInterval error: %v", err)
	}
	waitEvent(t, ch, EventIntervalNoop)

	if st := s.Status(); st.IntervalActive {
		t.Fatal("no timer must be scheduled without a prompt")
	}

	// A subsequent stop is a safe no-op.
	s.StopInterval()
}

func TestIntervalStartStop(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	cfg := Config{
		Enabled:        true,
		Mode:           ModeInterval,
		IntervalEvery:  time.Hour,
		IntervalPrompt: "keep going",
	}
	s, _, _ := newTestService(t, cfg, client)

	if err := s.StartInterval(); err != nil {
		t.Fatalf("StartInterval error: %v", err)
	}
	if st := s.Status(); !st.IntervalActive {
		t.Fatal("IntervalActive = false, want scheduled repeater")
	}

	// Restart replaces the existing timer rather than stacking a second one.
	if err := s.StartInterval(); err != nil {
		t.Fatalf("restart error: %v", err)
	}

	s.StopInterval()
	if st := s.Status(); st.IntervalActive {
		t.Fatal("IntervalActive = true after stop")
	}
}

func TestIntervalFireIsFireAndForget(t *testing.T) {
	t.Parallel()
	client := &fakeClient{sendErr: errSendBoom}
	s, _, bus := newTestService(t, Config{Enabled: true, Mode: ModeInterval}, client)

	ch, unsub := bus.Subscribe(8)
	defer unsub()

	s.intervalFire("keep going")
	waitEvent(t, ch, EventIntervalFailed)

	// One send, no retry, no queue state touched.
	if got := client.sentCount(); got != 1 {
		t.Fatalf("sent count = %d, want 1 (no retry)", got)
	}
	if st := s.Status(); st.Running {
		t.Fatal("interval sends must not affect queue state")
	}
}

func TestIntervalIndependentOfQueue(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	cfg := Config{
		Enabled:        true,
		IntervalEvery:  time.Hour,
		IntervalPrompt: "ping",
	}
	s, _, _ := newTestService(t, cfg, client)

	if err := s.StartQueue([]string{"alpha"}); err != nil {
		t.Fatalf("StartQueue error: %v", err)
	}
	if err := s.StartInterval(); err != nil {
		t.Fatalf("StartInterval error: %v", err)
	}

	// Stopping the queue leaves the repeater alone and vice versa.
	s.StopQueue()
	if st := s.Status(); !st.IntervalActive {
		t.Fatal("queue stop must not cancel the interval repeater")
	}
	s.StopInterval()
}
