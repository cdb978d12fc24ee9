//go:build linux

package relaunch

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// procInfo describes one running process.
type procInfo struct {
	PID  int
	Exe  string
	Args []string // full command line, argv[0] included
}

// findProcess scans /proc for the newest process whose executable matches
// app (base name, or full path when app is absolute). Child renderer
// processes of the app carry --type= flags and are skipped; only the main
// process is a relaunch target.
func findProcess(app string) (procInfo, error) {
	app = strings.TrimSpace(app)
	if app == "" {
		return procInfo{}, fmt.Errorf("relaunch: app name is required")
	}
	wantPath := filepath.IsAbs(app)

	entries, err := os.ReadDir("/proc")
	if err != nil {
		return procInfo{}, err
	}

	var best procInfo
	for _, ent := range entries {
		pid, err := strconv.Atoi(ent.Name())
		if err != nil || pid == os.Getpid() {
			continue
		}
		args, err := readCmdline(pid)
		if err != nil || len(args) == 0 {
			continue
		}

		exe, _ := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
		if exe == "" {
			exe = args[0]
		}
		if wantPath {
			if exe != app {
				continue
			}
		} else if filepath.Base(exe) != app && filepath.Base(args[0]) != app {
			continue
		}
		if isHelperProcess(args) {
			continue
		}
		if pid > best.PID {
			best = procInfo{PID: pid, Exe: exe, Args: args}
		}
	}
	if best.PID == 0 {
		return procInfo{}, ErrNotRunning
	}
	return best, nil
}

func readCmdline(pid int) ([]string, error) {
	b, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return nil, err
	}
	parts := bytes.Split(bytes.TrimRight(b, "\x00"), []byte{0})
	args := make([]string, 0, len(parts))
	for _, p := range parts {
		args = append(args, string(p))
	}
	return args, nil
}

func isHelperProcess(args []string) bool {
	for _, a := range args[1:] {
		if strings.HasPrefix(a, "--type=") {
			return true
		}
	}
	return false
}
