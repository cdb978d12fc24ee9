package autopilot

import (
	"context"
	"time"

	logx "promptpilot/pkg/logx"
)

// watch runs the silence-check loop for one queue run. It exits when the
// run's stop channel closes (stop, completion, or restart).
func (s *Service) watch(stopCh <-chan struct{}) {
	t := time.NewTicker(s.tickEvery)
	defer t.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-t.C:
			s.silenceTick()
		}
	}
}

// silenceTick is one evaluation of the completion heuristic.
//
// It has no ground truth for "task done": only the hypothesis that a
// sustained absence of observed UI activity means the agent finished. The
// grace window and the monotonic watermark both exist to keep polling jitter
// and slow-starting responses from advancing the queue early.
func (s *Service) silenceTick() {
	s.mu.Lock()
	if !s.running || s.paused || s.sentAt.IsZero() {
		s.mu.Unlock()
		return
	}
	now := s.now()
	if now.Sub(s.sentAt) < gracePeriod {
		s.mu.Unlock()
		return
	}
	gen := s.gen
	client := s.client
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	st, err := client.Stats(ctx)
	cancel()

	s.mu.Lock()
	if gen != s.gen || !s.running || s.paused || s.sentAt.IsZero() {
		// Stopped, paused or advanced while the poll was in flight.
		s.mu.Unlock()
		return
	}
	if err != nil {
		// A failed poll reads as "no new activity observed": the watermark
		// stays put and the silence clock keeps running.
		s.log.Debug("activity poll failed", logx.Err(err))
	} else if latest := st.Latest(); latest > 0 {
		// Monotonic: activity only ever pushes the silence clock forward.
		// A later sample that is smaller (or zero) never lowers it.
		if t := time.UnixMilli(latest); t.After(s.watermark) {
			s.watermark = t
		}
	}

	silence := s.now().Sub(s.watermark)
	if silence < s.timeout {
		s.mu.Unlock()
		return
	}
	idx := s.index
	item := s.queue[idx]
	total := len(s.queue)
	used := s.attempt + 1
	s.mu.Unlock()

	s.log.Info("silence threshold reached; advancing queue",
		logx.Int("index", idx),
		logx.Duration("silence", silence),
	)
	s.publish(EventItemDone, RunEvent{Prompt: item, Index: idx, Total: total, Attempts: used})
	s.advance(gen)
}
