package autopilot

import (
	"errors"
	"testing"
	"time"
)

func TestStartQueueSendsFirstItemImmediately(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	s, _, _ := newTestService(t, Config{Enabled: true}, client)

	if err := s.StartQueue([]string{"alpha", "beta"}); err != nil {
		t.Fatalf("StartQueue error: %v", err)
	}

	st := s.Status()
	if !st.Running || st.Paused {
		t.Fatalf("status = %+v, want running and not paused", st)
	}
	if st.QueueIndex != 0 || st.QueueLength != 2 {
		t.Fatalf("index/length = %d/%d, want 0/2", st.QueueIndex, st.QueueLength)
	}
	if st.CurrentPrompt != "alpha" {
		t.Fatalf("CurrentPrompt = %q, want alpha", st.CurrentPrompt)
	}
	if got := client.sentCopy(); len(got) != 1 || got[0] != "alpha" {
		t.Fatalf("sent = %v, want [alpha]", got)
	}
}

func TestStartQueueEmptyListWarnsAndStaysIdle(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	s, _, bus := newTestService(t, Config{Enabled: true}, client)

	ch, unsub := bus.Subscribe(8)
	defer unsub()

	err := s.StartQueue(nil)
	if !errors.Is(err, ErrNoPrompts) {
		t.Fatalf("StartQueue error = %v, want ErrNoPrompts", err)
	}
	if st := s.Status(); st.Running {
		t.Fatal("queue must not be running after an empty start")
	}
	if client.sentCount() != 0 {
		t.Fatal("nothing must be sent for an empty queue")
	}
	waitEvent(t, ch, EventQueueEmpty)
}

func TestStartQueueFallsBackToConfiguredPrompts(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	s, _, _ := newTestService(t, Config{Enabled: true, Prompts: []string{"from config"}}, client)

	if err := s.StartQueue(nil); err != nil {
		t.Fatalf("StartQueue error: %v", err)
	}
	if got := client.sentCopy(); len(got) != 1 || got[0] != "from config" {
		t.Fatalf("sent = %v, want configured prompt", got)
	}
}

func TestStartQueueRefusedWhenUnavailable(t *testing.T) {
	t.Parallel()
	client := &fakeClient{unavailable: true}
	s, _, _ := newTestService(t, Config{Enabled: true}, client)

	err := s.StartQueue([]string{"alpha"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("StartQueue error = %v, want ErrUnavailable", err)
	}
	if client.sentCount() != 0 {
		t.Fatal("nothing must be sent against an unavailable transport")
	}
}

func TestPauseIsIdempotentAndBlocksSends(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	s, _, _ := newTestService(t, Config{Enabled: true}, client)

	if err := s.StartQueue([]string{"alpha", "beta"}); err != nil {
		t.Fatalf("StartQueue error: %v", err)
	}

	s.PauseQueue()
	s.PauseQueue() // second call is a no-op
	st := s.Status()
	if !st.Running || !st.Paused {
		t.Fatalf("status = %+v, want running and paused", st)
	}

	// A tick while paused must neither poll forward nor send.
	before := client.sentCount()
	s.silenceTick()
	if client.sentCount() != before {
		t.Fatal("paused tick must not send")
	}
}

func TestResumeReExecutesCurrentItem(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	s, _, _ := newTestService(t, Config{Enabled: true}, client)

	if err := s.StartQueue([]string{"alpha", "beta"}); err != nil {
		t.Fatalf("StartQueue error: %v", err)
	}

	s.ResumeQueue() // not paused: no-op
	if got := client.sentCount(); got != 1 {
		t.Fatalf("sent count after no-op resume = %d, want 1", got)
	}

	s.PauseQueue()
	s.ResumeQueue()
	got := client.sentCopy()
	if len(got) != 2 || got[1] != "alpha" {
		t.Fatalf("sent = %v, want alpha re-sent on resume", got)
	}
	if st := s.Status(); st.Attempts != 0 {
		t.Fatalf("Attempts = %d, want retry budget reset on resume", st.Attempts)
	}
}

func TestSkipAdvancesAndCompletes(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	s, _, bus := newTestService(t, Config{Enabled: true}, client)

	ch, unsub := bus.Subscribe(8)
	defer unsub()

	if err := s.StartQueue([]string{"alpha", "beta"}); err != nil {
		t.Fatalf("StartQueue error: %v", err)
	}

	s.SkipPrompt()
	if got := client.sentCopy(); len(got) != 2 || got[1] != "beta" {
		t.Fatalf("sent = %v, want beta after skip", got)
	}
	sk := waitEvent(t, ch, EventItemSkipped)
	if re, ok := sk.Data.(RunEvent); !ok || re.Prompt != "alpha" || re.Index != 0 {
		t.Fatalf("skip payload = %+v", sk.Data)
	}

	s.SkipPrompt()
	ev := waitEvent(t, ch, EventQueueCompleted)
	re, ok := ev.Data.(RunEvent)
	if !ok || re.Total != 2 {
		t.Fatalf("completion payload = %+v, want Total=2", ev.Data)
	}
	if st := s.Status(); st.Running {
		t.Fatal("queue must be idle after completion")
	}

	// Completion fires exactly once per run.
	expectNoEvent(t, ch, EventQueueCompleted, 100*time.Millisecond)
}

func TestSkipWhenIdleIsNoop(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	s, _, _ := newTestService(t, Config{Enabled: true}, client)

	s.SkipPrompt()
	if client.sentCount() != 0 {
		t.Fatal("skip on an idle queue must not send")
	}
}

func TestStopEmitsNoCompletion(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	s, _, bus := newTestService(t, Config{Enabled: true}, client)

	ch, unsub := bus.Subscribe(8)
	defer unsub()

	if err := s.StartQueue([]string{"alpha"}); err != nil {
		t.Fatalf("StartQueue error: %v", err)
	}
	s.StopQueue()

	st := s.Status()
	if st.Running || st.Paused {
		t.Fatalf("status = %+v, want idle after stop", st)
	}
	if st.QueueLength != 0 {
		t.Fatalf("QueueLength = %d, want run state reset", st.QueueLength)
	}
	expectNoEvent(t, ch, EventQueueCompleted, 100*time.Millisecond)
}

func TestRetryExhaustionAbandonsItem(t *testing.T) {
	t.Parallel()
	client := &fakeClient{sendErr: errSendBoom}
	s, _, bus := newTestService(t, Config{Enabled: true}, client)

	ch, unsub := bus.Subscribe(16)
	defer unsub()

	if err := s.StartQueue([]string{"only"}); err != nil {
		t.Fatalf("StartQueue error: %v", err)
	}

	// Sole item fails every attempt: abandoned, then the queue (length 1)
	// completes immediately.
	ev := waitEvent(t, ch, EventItemAbandoned)
	re, ok := ev.Data.(RunEvent)
	if !ok || re.Attempts != maxAttempts {
		t.Fatalf("abandon payload = %+v, want Attempts=%d", ev.Data, maxAttempts)
	}
	waitEvent(t, ch, EventQueueCompleted)

	if got := client.sentCount(); got != maxAttempts {
		t.Fatalf("send attempts = %d, want exactly %d", got, maxAttempts)
	}
}

func TestRetrySuccessHandsOverToDetector(t *testing.T) {
	t.Parallel()
	client := &fakeClient{sendErr: errSendBoom}
	s, _, bus := newTestService(t, Config{Enabled: true}, client)

	ch, unsub := bus.Subscribe(16)
	defer unsub()

	if err := s.StartQueue([]string{"alpha", "beta"}); err != nil {
		t.Fatalf("StartQueue error: %v", err)
	}

	// First attempt failed; let the retry succeed.
	waitEvent(t, ch, EventSendFailed)
	client.setSendErr(nil)

	deadline := time.Now().Add(2 * time.Second)
	for client.sentCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := client.sentCount(); got != 2 {
		t.Fatalf("send attempts = %d, want 2 (fail + success)", got)
	}

	// A successful retry leaves the item in flight; the queue must not have
	// advanced on its own.
	st := s.Status()
	if !st.Running || st.QueueIndex != 0 {
		t.Fatalf("status = %+v, want still on item 0", st)
	}
}

func TestStartQueueRestartsActiveRun(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	s, _, bus := newTestService(t, Config{Enabled: true}, client)

	ch, unsub := bus.Subscribe(8)
	defer unsub()

	if err := s.StartQueue([]string{"alpha", "beta"}); err != nil {
		t.Fatalf("StartQueue error: %v", err)
	}
	if err := s.StartQueue([]string{"gamma"}); err != nil {
		t.Fatalf("restart error: %v", err)
	}

	st := s.Status()
	if st.QueueLength != 1 || st.CurrentPrompt != "gamma" {
		t.Fatalf("status = %+v, want fresh run over [gamma]", st)
	}
	// Abandoning the old run is a stop, not a completion.
	expectNoEvent(t, ch, EventQueueCompleted, 100*time.Millisecond)
}

func TestSkipWhilePausedAdvancesWithoutSending(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	s, _, _ := newTestService(t, Config{Enabled: true}, client)

	if err := s.StartQueue([]string{"alpha", "beta"}); err != nil {
		t.Fatalf("StartQueue error: %v", err)
	}

	s.PauseQueue()
	s.SkipPrompt()

	// The index moves, but the paused run must not send the next item.
	if got := client.sentCount(); got != 1 {
		t.Fatalf("sent count after paused skip = %d, want 1", got)
	}
	st := s.Status()
	if !st.Running || !st.Paused {
		t.Fatalf("status = %+v, want still running and paused", st)
	}
	if st.QueueIndex != 1 || st.CurrentPrompt != "beta" {
		t.Fatalf("status = %+v, want index on beta", st)
	}

	s.ResumeQueue()
	got := client.sentCopy()
	if len(got) != 2 || got[1] != "beta" {
		t.Fatalf("sent = %v, want beta sent on resume", got)
	}
}

func TestRetryTimerFiresAsNoopWhilePaused(t *testing.T) {
	t.Parallel()
	client := &fakeClient{sendErr: errSendBoom}
	s, _, _ := newTestService(t, Config{Enabled: true}, client)
	s.retryWait = time.Hour // keep the scheduled retry from firing on its own

	if err := s.StartQueue([]string{"alpha"}); err != nil {
		t.Fatalf("StartQueue error: %v", err)
	}
	if got := client.sentCount(); got != 1 {
		t.Fatalf("sent count = %d, want 1 failed attempt", got)
	}

	s.PauseQueue()

	// Fire the pending retry by hand: it stays scheduled across a pause but
	// must do nothing while the run is frozen.
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	s.execute(gen)

	if got := client.sentCount(); got != 1 {
		t.Fatalf("sent count after paused retry = %d, want 1", got)
	}
	if st := s.Status(); st.Attempts != 1 {
		t.Fatalf("Attempts = %d, want consumed attempt preserved", st.Attempts)
	}

	client.setSendErr(nil)
	s.ResumeQueue()
	if got := client.sentCount(); got != 2 {
		t.Fatalf("sent count after resume = %d, want 2", got)
	}
	if st := s.Status(); st.Attempts != 0 {
		t.Fatalf("Attempts = %d, want fresh budget after resume", st.Attempts)
	}
}
