package autopilot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"promptpilot/internal/eventbus"
	logx "promptpilot/pkg/logx"
)

// Client is the automation surface the autopilot drives. Implementations are
// expected to be safe for concurrent use.
type Client interface {
	// IsAvailable reports whether the transport endpoint is reachable.
	// It may involve network I/O; any failure reads as false.
	IsAvailable(ctx context.Context) bool

	// SendPrompt delivers one prompt to the agent. A returned error is a
	// structured send outcome (transport down, evaluate failed, ...), not a
	// crash; callers decide whether to retry.
	SendPrompt(ctx context.Context, text string) error

	// Stats returns best-effort UI activity telemetry.
	Stats(ctx context.Context) (Stats, error)
}

// Stats carries activity timestamps in epoch milliseconds.
// Zero means no signal has been observed for that channel.
type Stats struct {
	LastActivity  int64
	LastDOMChange int64
}

// Latest returns the most recent of the two signals (0 if neither fired).
func (st Stats) Latest() int64 {
	if st.LastDOMChange > st.LastActivity {
		return st.LastDOMChange
	}
	return st.LastActivity
}

type Mode string

const (
	ModeQueue    Mode = "queue"
	ModeInterval Mode = "interval"
)

// ParseMode maps a config string to a Mode. Empty defaults to queue.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "queue":
		return ModeQueue, nil
	case "interval":
		return ModeInterval, nil
	default:
		return "", errors.New("unknown autopilot mode: " + s)
	}
}

// Config is the scheduler configuration snapshot. Apply() replaces it
// wholesale; a queue run keeps the values it started with.
type Config struct {
	Enabled bool
	Mode    Mode

	Prompts []string

	SilenceTimeout time.Duration

	IntervalEvery  time.Duration
	IntervalPrompt string
}

func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeQueue
	}
	if c.SilenceTimeout <= 0 {
		c.SilenceTimeout = 30 * time.Second
	}
	if c.IntervalEvery <= 0 {
		c.IntervalEvery = 10 * time.Minute
	}
	return c
}

const (
	// checkEvery is the silence-check cadence while a run is active.
	checkEvery = 5 * time.Second

	// gracePeriod is the minimum dwell time after a send before silence
	// detection may act. It suppresses false-positive advances while the
	// remote side is still spinning up its response.
	gracePeriod = 10 * time.Second

	// maxAttempts bounds sends per item (first try + retries).
	maxAttempts = 3

	// retryDelay is the fixed spacing between send attempts for one item.
	retryDelay = 3 * time.Second

	sendTimeout  = 30 * time.Second
	statsTimeout = 5 * time.Second
)

var (
	ErrNoPrompts   = errors.New("autopilot: no prompts to run")
	ErrUnavailable = errors.New("autopilot: automation transport unavailable")
)

// Event types published on the bus.
const (
	EventQueueEmpty     = "queue.empty"
	EventQueueCompleted = "queue.completed"
	EventSendFailed     = "send.failed"
	EventItemDone       = "item.done"
	EventItemSkipped    = "item.skipped"
	EventItemAbandoned  = "item.abandoned"
	EventIntervalNoop   = "interval.unconfigured"
	EventIntervalFailed = "interval.send_failed"
)

// RunEvent is the bus payload for queue/interval notifications.
type RunEvent struct {
	Prompt   string `json:"prompt,omitempty"`
	Index    int    `json:"index"`
	Total    int    `json:"total"`
	Attempts int    `json:"attempts,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Status is a read-only projection of the autopilot state.
type Status struct {
	Running bool
	Paused  bool
	Mode    Mode

	QueueIndex  int
	QueueLength int
	Prompts     []string

	// CurrentPrompt is the in-flight item, empty when nothing is running.
	CurrentPrompt string

	// Attempts is how many sends the current item has consumed so far.
	Attempts int

	// SilenceFor is how long the activity watermark has been quiet
	// (zero when no item is in flight).
	SilenceFor time.Duration

	IntervalActive bool
}

// Service composes the queue executor, silence detector, retry policy and
// interval repeater behind one mutex-guarded state machine.
type Service struct {
	mu  sync.Mutex
	cfg Config

	log    logx.Logger
	bus    eventbus.Bus
	client Client

	// Queue run state. Valid only while a run is alive; reset on stop and
	// on completion.
	running   bool
	paused    bool
	queue     []string
	index     int
	timeout   time.Duration // silence timeout snapshot for this run
	sentAt    time.Time     // zero = nothing in flight
	watermark time.Time     // monotonic high-water activity mark
	attempt   int           // sends consumed by the current item

	// gen invalidates timer callbacks and in-flight send outcomes whenever
	// the world they were scheduled in no longer exists.
	gen    uint64
	stopCh chan struct{}

	// Interval repeater, independent of queue state.
	ic *cron.Cron

	// Test seams; production values are the package constants.
	now       func() time.Time
	tickEvery time.Duration
	retryWait time.Duration
}

// New creates the autopilot. The config is applied with defaults; nothing
// runs until Start/StartQueue/StartInterval.
func New(cfg Config, client Client, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:       cfg.withDefaults(),
		log:       log,
		bus:       bus,
		client:    client,
		now:       time.Now,
		tickEvery: checkEvery,
		retryWait: retryDelay,
	}
}
