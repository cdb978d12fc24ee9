package autopilot

import (
	"context"
	"time"

	"promptpilot/internal/eventbus"
	logx "promptpilot/pkg/logx"
)

// StartQueue begins a queue run over the given items, falling back to the
// configured prompt list when items is empty. An already-active run is
// stopped first (without a completion notification).
//
// The first item is sent synchronously before StartQueue returns; the
// silence-check loop starts afterwards.
func (s *Service) StartQueue(items []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	available := s.client.IsAvailable(ctx)
	cancel()
	if !available {
		s.log.Warn("queue start refused: automation transport unavailable")
		return ErrUnavailable
	}

	s.mu.Lock()
	resolved := items
	if len(resolved) == 0 {
		resolved = s.cfg.Prompts
	}
	if len(resolved) == 0 {
		s.mu.Unlock()
		s.log.Warn("queue start requested with no prompts")
		s.publish(EventQueueEmpty, RunEvent{})
		return ErrNoPrompts
	}

	s.resetRunLocked()

	s.queue = append([]string(nil), resolved...)
	s.index = 0
	s.attempt = 0
	s.timeout = s.cfg.SilenceTimeout
	s.running = true
	s.paused = false
	s.gen++
	gen := s.gen
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	total := len(s.queue)
	timeout := s.timeout
	s.mu.Unlock()

	s.log.Info("queue started", logx.Int("items", total), logx.Duration("silence_timeout", timeout))

	s.execute(gen)
	go s.watch(stopCh)
	return nil
}

// StopQueue aborts the run from any state. Unlike natural completion it
// emits no notification, so operators can tell the two apart.
func (s *Service) StopQueue() {
	s.mu.Lock()
	wasRunning := s.running
	s.resetRunLocked()
	s.mu.Unlock()

	if wasRunning {
		s.log.Info("queue stopped")
	}
}

// PauseQueue marks the run paused. Scheduled retry timers keep their slots
// but fire as no-ops; nothing is sent and nothing advances while paused.
func (s *Service) PauseQueue() {
	s.mu.Lock()
	if !s.running || s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = true
	idx := s.index
	s.mu.Unlock()
	s.log.Info("queue paused", logx.Int("index", idx))
}

// ResumeQueue unpauses and re-executes the current item from scratch: fresh
// send, fresh grace window, retry budget back to zero. Whatever silence or
// activity accrued before the pause is deliberately not trusted.
func (s *Service) ResumeQueue() {
	s.mu.Lock()
	if !s.running || !s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = false
	s.attempt = 0
	s.gen++
	gen := s.gen
	idx := s.index
	s.mu.Unlock()

	s.log.Info("queue resumed; re-sending current prompt", logx.Int("index", idx))
	s.execute(gen)
}

// SkipPrompt advances past the current item. Effective whenever a run is
// alive, paused or not; it is the one operation that moves the index while
// paused, so it performs the advance itself instead of going through
// advance (which drops moves on a paused run).
func (s *Service) SkipPrompt() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	idx := s.index
	item := s.queue[idx]
	total := len(s.queue)
	used := s.attempt
	paused := s.paused

	s.index++
	s.attempt = 0
	s.sentAt = time.Time{}
	s.gen++
	next := s.gen

	if s.index >= len(s.queue) {
		s.resetRunLocked()
		s.mu.Unlock()
		s.log.Info("skipping current prompt", logx.Int("index", idx))
		s.publish(EventItemSkipped, RunEvent{Prompt: item, Index: idx, Total: total, Attempts: used})
		s.log.Info("queue completed", logx.Int("items", total))
		s.publish(EventQueueCompleted, RunEvent{Index: total, Total: total})
		return
	}
	s.mu.Unlock()

	s.log.Info("skipping current prompt", logx.Int("index", idx))
	s.publish(EventItemSkipped, RunEvent{Prompt: item, Index: idx, Total: total, Attempts: used})
	if paused {
		// The run stays frozen; resume executes the new current item.
		return
	}
	s.execute(next)
}

// execute is the item execution routine: send the item at the current index
// and hand the outcome to the retry policy. It no-ops when the run is gone,
// paused, or the generation has moved on (a stale retry timer, say).
func (s *Service) execute(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.running || s.paused {
		s.mu.Unlock()
		return
	}
	if s.index >= len(s.queue) {
		// Nothing left; treat as completion.
		s.completeLocked()
		return
	}

	item := s.queue[s.index]
	idx := s.index
	total := len(s.queue)
	attempt := s.attempt
	now := s.now()
	s.sentAt = now
	s.watermark = now
	client := s.client
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	err := client.SendPrompt(ctx, item)
	cancel()

	s.mu.Lock()
	if gen != s.gen || !s.running || s.paused {
		// The queue advanced, stopped, or paused while the send was in
		// flight; this outcome belongs to an item that is no longer
		// current.
		s.mu.Unlock()
		return
	}
	if err == nil {
		s.mu.Unlock()
		s.log.Debug("prompt sent", logx.Int("index", idx), logx.Int("attempt", attempt+1))
		// In flight now; the silence detector alone decides when to advance.
		return
	}

	s.attempt = attempt + 1
	used := s.attempt
	if used < maxAttempts {
		wait := s.retryWait
		s.mu.Unlock()
		s.log.Warn("send failed; retry scheduled",
			logx.Int("index", idx),
			logx.Int("attempt", used),
			logx.Duration("delay", wait),
			logx.Err(err),
		)
		s.publish(EventSendFailed, RunEvent{Prompt: item, Index: idx, Total: total, Attempts: used, Error: err.Error()})
		time.AfterFunc(wait, func() { s.execute(gen) })
		return
	}
	s.mu.Unlock()

	s.log.Warn("prompt abandoned after repeated send failures",
		logx.Int("index", idx),
		logx.Int("attempts", used),
		logx.Err(err),
	)
	s.publish(EventItemAbandoned, RunEvent{Prompt: item, Index: idx, Total: total, Attempts: used, Error: err.Error()})
	s.advance(gen)
}

// advance moves the queue to the next item (or to completion) and executes
// it. gen must be the generation the caller observed; a mismatch, a stop,
// or a pause that landed in the meantime means the world already changed
// and the advance is dropped.
func (s *Service) advance(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.running || s.paused {
		s.mu.Unlock()
		return
	}
	s.index++
	s.attempt = 0
	s.sentAt = time.Time{}
	s.gen++
	next := s.gen

	if s.index >= len(s.queue) {
		s.completeLocked()
		return
	}
	s.mu.Unlock()

	s.execute(next)
}

// completeLocked finishes a run naturally: state reset plus a completion
// notification naming the total item count. Called with s.mu held; unlocks.
func (s *Service) completeLocked() {
	total := len(s.queue)
	s.resetRunLocked()
	s.mu.Unlock()

	s.log.Info("queue completed", logx.Int("items", total))
	s.publish(EventQueueCompleted, RunEvent{Index: total, Total: total})
}

// resetRunLocked tears down run state and invalidates every outstanding
// timer and in-flight send. Caller holds s.mu.
func (s *Service) resetRunLocked() {
	s.running = false
	s.paused = false
	s.queue = nil
	s.index = 0
	s.attempt = 0
	s.timeout = 0
	s.sentAt = time.Time{}
	s.watermark = time.Time{}
	s.gen++
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
}

func (s *Service) publish(typ string, ev RunEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: ev})
}
