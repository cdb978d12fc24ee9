package autopilot

import (
	"context"
	"strings"

	"github.com/robfig/cron/v3"

	logx "promptpilot/pkg/logx"
)

// StartInterval (re)starts the interval repeater: the configured prompt is
// re-sent on a fixed period, fire-and-forget. An empty interval prompt is
// not an error; it just means there is nothing to schedule.
//
// The repeater is fully independent of queue state.
func (s *Service) StartInterval() error {
	s.mu.Lock()
	if s.ic != nil {
		s.ic.Stop()
		s.ic = nil
	}
	every := s.cfg.IntervalEvery
	prompt := strings.TrimSpace(s.cfg.IntervalPrompt)
	s.mu.Unlock()

	if prompt == "" {
		s.log.Info("interval mode has no prompt configured; nothing to schedule")
		s.publish(EventIntervalNoop, RunEvent{})
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc("@every "+every.String(), func() { s.intervalFire(prompt) }); err != nil {
		return err
	}

	s.mu.Lock()
	s.ic = c
	s.mu.Unlock()
	c.Start()

	s.log.Info("interval repeater started", logx.Duration("every", every))
	return nil
}

// StopInterval cancels the repeating timer. Safe to call when nothing is
// scheduled.
func (s *Service) StopInterval() {
	s.mu.Lock()
	c := s.ic
	s.ic = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.log.Info("interval repeater stopped")
}

// intervalFire sends the fixed prompt once. Each tick is independent: the
// outcome feeds no state and failed sends are not retried.
func (s *Service) intervalFire(prompt string) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := s.client.SendPrompt(ctx, prompt); err != nil {
		s.log.Warn("interval send failed", logx.Err(err))
		s.publish(EventIntervalFailed, RunEvent{Prompt: prompt, Error: err.Error()})
		return
	}
	s.log.Debug("interval prompt sent")
}
