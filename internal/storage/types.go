package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RunEntry records one prompt delivery outcome.
// Keep it compact and schema-stable.
type RunEntry struct {
	At       time.Time
	Mode     string
	Prompt   string
	Index    int
	Total    int
	Attempts int
	Outcome  string
	Error    string
}

// Outcome values for RunEntry.
const (
	OutcomeDone      = "done"      // completion inferred, queue advanced
	OutcomeSkipped   = "skipped"   // operator skipped the item
	OutcomeAbandoned = "abandoned" // retry budget exhausted
	OutcomeInterval  = "interval"  // timer-driven send outside a queue run
)
