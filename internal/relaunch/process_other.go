//go:build !linux

package relaunch

import "errors"

type procInfo struct {
	PID  int
	Exe  string
	Args []string
}

func findProcess(app string) (procInfo, error) {
	_ = app
	return procInfo{}, errors.New("relaunch: process inspection requires linux")
}
