// Package autopilot drives an ordered queue of prompts into an interactive
// agent application through its remote-debugging automation channel.
//
// # Overview
//
// There is no explicit "done" event for a prompt: the agent's UI simply goes
// quiet when it has finished responding. The autopilot therefore infers
// completion from activity telemetry (last click time, last DOM mutation
// time) polled from the transport on a fixed cadence. When no activity has
// been observed for a configured silence window, the current item is treated
// as finished and the next one is sent.
//
// # Queue runs
//
// StartQueue snapshots the prompt list; later config edits never touch an
// in-flight run. One item is in flight at a time. Sends that fail are retried
// a bounded number of times with a fixed delay; an item that exhausts its
// attempts is abandoned and the queue advances. Pause keeps the run alive but
// makes every timer callback a no-op; resume re-sends the current item from
// scratch rather than trusting whatever silence had accrued before pausing.
//
// # Interval mode
//
// Independently of the queue, a single fixed prompt can be re-sent on a fixed
// period. Interval sends are fire-and-forget: no retry, no completion
// inference, no shared state between ticks.
//
// # Timers and staleness
//
// All state lives behind one mutex. Every advance, stop, start and resume
// bumps a generation counter; timer callbacks (silence ticks, retry firings)
// and send outcomes that arrive after the generation has moved on are
// discarded instead of mutating state for an item that is no longer current.
package autopilot
