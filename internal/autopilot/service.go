package autopilot

import (
	"context"

	logx "promptpilot/pkg/logx"
)

// Start brings the autopilot up according to the current config: queue mode
// starts a run over the configured prompts, interval mode starts the
// repeater. Disabled configs start nothing.
func (s *Service) Start(ctx context.Context) error {
	_ = ctx // reserved; sends carry their own timeouts

	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	if !cfg.Enabled {
		s.log.Debug("autopilot disabled; not starting")
		return nil
	}

	switch cfg.Mode {
	case ModeInterval:
		return s.StartInterval()
	default:
		return s.StartQueue(nil)
	}
}

// Stop performs full shutdown: queue run and interval repeater both halt.
func (s *Service) Stop(ctx context.Context) {
	_ = ctx
	s.StopQueue()
	s.StopInterval()
}

// Apply replaces the configuration snapshot. It takes effect on the next
// StartQueue/StartInterval; an in-flight queue run is never reset by a
// reload.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.log.Debug("autopilot config applied",
		logx.Bool("enabled", cfg.Enabled),
		logx.String("mode", string(cfg.Mode)),
		logx.Int("prompts", len(cfg.Prompts)),
	)
}

// Enabled reports the current config flag.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Status returns a read-only projection of the current state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:        s.running,
		Paused:         s.paused,
		Mode:           s.cfg.Mode,
		QueueIndex:     s.index,
		QueueLength:    len(s.queue),
		Prompts:        append([]string(nil), s.queue...),
		Attempts:       s.attempt,
		IntervalActive: s.ic != nil,
	}
	if s.running && s.index < len(s.queue) {
		st.CurrentPrompt = s.queue[s.index]
	}
	if s.running && !s.watermark.IsZero() {
		st.SilenceFor = s.now().Sub(s.watermark)
	}
	return st
}
