// Package relaunch ensures the agent application runs with its
// remote-debugging port exposed.
//
// The scheduler cannot attach to an app launched without
// --remote-debugging-port. This package inspects the running process, and
// when the flag is missing terminates it and respawns the same command line
// with the flag appended. One-shot by design; the daemon never calls it.
package relaunch

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	logx "promptpilot/pkg/logx"
)

const debugFlag = "--remote-debugging-port"

var ErrNotRunning = errors.New("relaunch: application process not found")

// Config identifies the target application and the port to expose.
type Config struct {
	// App is the executable name (matched against the process name) or an
	// absolute path.
	App  string
	Port int

	// TermWait bounds how long a terminated process may take to exit
	// before the respawn proceeds anyway.
	TermWait time.Duration
}

// Outcome of an Ensure call.
type Outcome string

const (
	OutcomeAlreadySet Outcome = "already-set"
	OutcomeRelaunched Outcome = "relaunched"
	OutcomeNotRunning Outcome = "not-running"
)

// Result reports what Ensure did.
type Result struct {
	Outcome Outcome
	OldPID  int
	NewPID  int
	Port    int
	Args    []string
}

// DebugPort extracts the remote-debugging port from a command line.
// Returns 0 when the flag is absent.
func DebugPort(args []string) int {
	for i, a := range args {
		if a == debugFlag && i+1 < len(args) {
			p, _ := strconv.Atoi(args[i+1])
			return p
		}
		if v, ok := strings.CutPrefix(a, debugFlag+"="); ok {
			p, _ := strconv.Atoi(v)
			return p
		}
	}
	return 0
}

// stripDebugFlag removes any remote-debugging flag so the respawned command
// line carries exactly one.
func stripDebugFlag(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == debugFlag {
			i++ // skip the value
			continue
		}
		if strings.HasPrefix(a, debugFlag+"=") {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Ensure verifies the app exposes the configured port, relaunching it when
// needed.
func Ensure(cfg Config, log logx.Logger) (Result, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Result{}, fmt.Errorf("relaunch: invalid port %d", cfg.Port)
	}
	if cfg.TermWait <= 0 {
		cfg.TermWait = 10 * time.Second
	}

	proc, err := findProcess(cfg.App)
	if err != nil {
		return Result{Outcome: OutcomeNotRunning}, err
	}

	if got := DebugPort(proc.Args); got == cfg.Port {
		log.Info("debug port already exposed",
			logx.Int("pid", proc.PID), logx.Int("port", got))
		return Result{Outcome: OutcomeAlreadySet, OldPID: proc.PID, Port: got}, nil
	} else if got != 0 {
		log.Warn("debug port differs from configured",
			logx.Int("pid", proc.PID), logx.Int("have", got), logx.Int("want", cfg.Port))
	}

	args := stripDebugFlag(proc.Args[1:])
	args = append(args, fmt.Sprintf("%s=%d", debugFlag, cfg.Port))

	log.Info("terminating application for relaunch", logx.Int("pid", proc.PID))
	if err := terminate(proc.PID, cfg.TermWait); err != nil {
		return Result{}, fmt.Errorf("relaunch: terminate pid %d: %w", proc.PID, err)
	}

	pid, err := spawn(proc.Exe, args)
	if err != nil {
		return Result{}, err
	}
	log.Info("application relaunched",
		logx.Int("pid", pid), logx.Int("port", cfg.Port))
	return Result{
		Outcome: OutcomeRelaunched,
		OldPID:  proc.PID,
		NewPID:  pid,
		Port:    cfg.Port,
		Args:    args,
	}, nil
}

// spawn starts the replacement detached from this process.
func spawn(exe string, args []string) (int, error) {
	cmd := exec.Command(exe, args...)
	cmd.Env = os.Environ()
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("relaunch: spawn %s: %w", exe, err)
	}
	pid := cmd.Process.Pid
	// Reap the child in the background so it never zombies.
	go func() { _ = cmd.Wait() }()
	return pid, nil
}

// terminate sends SIGTERM and waits for the process to exit, escalating to
// SIGKILL when the wait budget runs out.
func terminate(pid int, wait time.Duration) error {
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if err := syscall.Kill(pid, 0); errors.Is(err, syscall.ESRCH) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}
