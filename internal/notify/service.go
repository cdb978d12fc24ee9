// Package notify renders scheduler events into operator-facing messages.
//
// The service subscribes to the event bus and forwards rendered messages to
// the configured sinks. Delivery is best-effort: a full rate bucket drops
// the message, a sink failure is logged and forgotten.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"promptpilot/internal/autopilot"
	"promptpilot/internal/eventbus"
	logx "promptpilot/pkg/logx"
)

const sinkTimeout = 10 * time.Second

// Service is the event-to-message pipeline.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log logx.Logger
	bus eventbus.Bus

	cfg     Config
	limiter *rate.Limiter
	sink    Sink

	unsub func()
	done  chan struct{}
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{log: log, bus: bus}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	s.cfg = cfg
	// Burst = rate per sec, so an event cluster at queue completion still
	// gets through.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)

	if cfg.Enabled && cfg.Telegram.Enabled {
		sink, err := newTelegramSink(cfg.Telegram)
		if err != nil {
			s.log.Warn("telegram sink unavailable", logx.Err(err))
			s.sink = nil
		} else {
			s.sink = sink
		}
	} else {
		s.sink = nil
	}
}

// Start subscribes to the bus. Idempotent.
func (s *Service) Start(ctx context.Context) {
	_ = ctx

	s.mu.Lock()
	if !s.cfg.Enabled || s.unsub != nil || s.bus == nil {
		s.mu.Unlock()
		return
	}
	ch, unsub := s.bus.Subscribe(64)
	s.unsub = unsub
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	go s.loop(ch, done)
}

// Stop unsubscribes and waits for the pipeline goroutine to drain.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	unsub := s.unsub
	done := s.done
	s.unsub = nil
	s.done = nil
	s.mu.Unlock()

	if unsub == nil {
		return
	}
	unsub()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
}

func (s *Service) loop(ch <-chan eventbus.Event, done chan struct{}) {
	defer close(done)
	for e := range ch {
		msg := render(e)
		if msg == "" {
			continue
		}
		s.deliver(msg)
	}
}

func (s *Service) deliver(msg string) {
	s.mu.Lock()
	limiter := s.limiter
	sink := s.sink
	s.mu.Unlock()

	if limiter != nil && !limiter.Allow() {
		s.log.Debug("notification dropped by rate limit", logx.String("msg", msg))
		return
	}

	s.log.Info("notify", logx.String("msg", msg))
	if sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	if err := sink.Send(ctx, msg); err != nil {
		s.log.Warn("notification sink failed", logx.Err(err))
	}
}

// render maps a scheduler event to its operator message. Unknown events
// render empty and are skipped.
func render(e eventbus.Event) string {
	re, _ := e.Data.(autopilot.RunEvent)
	switch e.Type {
	case autopilot.EventQueueEmpty:
		return "Queue run requested, but no prompts are configured."
	case autopilot.EventQueueCompleted:
		return fmt.Sprintf("Queue completed: all %d prompts processed.", re.Total)
	case autopilot.EventSendFailed:
		return fmt.Sprintf("Prompt %d/%d failed to send (attempt %d): %s. Retrying.",
			re.Index+1, re.Total, re.Attempts, re.Error)
	case autopilot.EventItemAbandoned:
		return fmt.Sprintf("Prompt %d/%d abandoned after %d attempts: %s. Moving on.",
			re.Index+1, re.Total, re.Attempts, re.Error)
	case autopilot.EventIntervalFailed:
		return fmt.Sprintf("Interval prompt failed to send: %s.", re.Error)
	default:
		return ""
	}
}
