package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"promptpilot/internal/relaunch"
	logx "promptpilot/pkg/logx"
)

func main() {
	var (
		appName  string
		port     int
		termWait time.Duration
	)
	flag.StringVar(&appName, "app", "", "application executable name or absolute path")
	flag.IntVar(&port, "port", 9222, "remote debugging port to expose")
	flag.DurationVar(&termWait, "term-wait", 10*time.Second, "how long to wait for the old process to exit")
	flag.Parse()

	if appName == "" {
		fmt.Fprintln(os.Stderr, "usage: relaunch -app <name> [-port N]")
		os.Exit(2)
	}

	log := logx.NewConsole("INFO").With(logx.String("comp", "relaunch"))
	res, err := relaunch.Ensure(relaunch.Config{
		App:      appName,
		Port:     port,
		TermWait: termWait,
	}, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "relaunch:", err)
		os.Exit(1)
	}

	switch res.Outcome {
	case relaunch.OutcomeAlreadySet:
		fmt.Printf("%s (pid %d) already exposes port %d\n", appName, res.OldPID, res.Port)
	case relaunch.OutcomeRelaunched:
		fmt.Printf("%s relaunched as pid %d with port %d\n", appName, res.NewPID, res.Port)
	default:
		fmt.Println(string(res.Outcome))
	}
}
