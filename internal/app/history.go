package app

import (
	"context"
	"time"

	"promptpilot/internal/autopilot"
	"promptpilot/internal/eventbus"
	"promptpilot/internal/storage"
	logx "promptpilot/pkg/logx"
)

const appendTimeout = 2 * time.Second

// recordHistory drains bus events into the run-history store. Best-effort:
// a failed append is logged and the event dropped, never blocking the
// scheduler.
func recordHistory(ctx context.Context, store storage.Store, bus eventbus.Bus, log logx.Logger) {
	events, unsub := bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			entry, ok := historyEntry(e)
			if !ok {
				continue
			}
			actx, cancel := context.WithTimeout(context.Background(), appendTimeout)
			err := store.AppendRun(actx, entry)
			cancel()
			if err != nil {
				log.Warn("run history append failed", logx.Err(err))
			}
		}
	}
}

// historyEntry maps one bus event to its history record. Transient events
// (send.failed retries, queue lifecycle notifications) are not history.
func historyEntry(e eventbus.Event) (storage.RunEntry, bool) {
	re, _ := e.Data.(autopilot.RunEvent)
	entry := storage.RunEntry{
		At:       e.Time,
		Prompt:   re.Prompt,
		Index:    re.Index,
		Total:    re.Total,
		Attempts: re.Attempts,
		Error:    re.Error,
	}
	switch e.Type {
	case autopilot.EventItemDone:
		entry.Outcome = storage.OutcomeDone
		entry.Mode = "queue"
	case autopilot.EventItemSkipped:
		entry.Outcome = storage.OutcomeSkipped
		entry.Mode = "queue"
	case autopilot.EventItemAbandoned:
		entry.Outcome = storage.OutcomeAbandoned
		entry.Mode = "queue"
	case autopilot.EventIntervalFailed:
		entry.Outcome = storage.OutcomeInterval
		entry.Mode = "interval"
	default:
		return storage.RunEntry{}, false
	}
	return entry, true
}
