package config

import (
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
logging:
  level: DEBUG
  console: true
transport:
  port: 9222
  poll_every: 30s
autopilot:
  enabled: true
  mode: queue
  prompts:
    - "first task"
    - "second task"
  silence_timeout: 45s
`

func TestParseBytesYAML(t *testing.T) {
	t.Parallel()
	cfg, err := ParseBytes("config.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("ParseBytes error: %v", err)
	}
	if cfg.Transport.Port != 9222 {
		t.Fatalf("Port = %d, want 9222", cfg.Transport.Port)
	}
	if len(cfg.Autopilot.Prompts) != 2 || cfg.Autopilot.Prompts[1] != "second task" {
		t.Fatalf("unexpected prompts: %v", cfg.Autopilot.Prompts)
	}
	if cfg.Autopilot.SilenceTimeout != "45s" {
		t.Fatalf("SilenceTimeout = %q", cfg.Autopilot.SilenceTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func TestParseBytesRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	bad := strings.Replace(sampleYAML, "silence_timeout", "silence_timeoutt", 1)
	if _, err := ParseBytes("config.yaml", []byte(bad)); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseBytesJSONTrailingData(t *testing.T) {
	t.Parallel()
	_, err := ParseBytes("config.json", []byte(`{"transport":{"port":9222}} {}`))
	if err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "ok", mutate: func(c *Config) {}},
		{name: "port zero", mutate: func(c *Config) { c.Transport.Port = 0 }, wantErr: true},
		{name: "port high", mutate: func(c *Config) { c.Transport.Port = 70000 }, wantErr: true},
		{name: "bad mode", mutate: func(c *Config) { c.Autopilot.Mode = "slow" }, wantErr: true},
		{name: "mode omitted", mutate: func(c *Config) { c.Autopilot.Mode = "" }},
		{name: "bad duration", mutate: func(c *Config) { c.Autopilot.SilenceTimeout = "30 seconds" }, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Transport: TransportConfig{Port: 9222}, Autopilot: AutopilotConfig{Mode: "queue"}}
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("x", "", 30*time.Second)
	if err != nil || d != 30*time.Second {
		t.Fatalf("got (%v, %v), want 30s", d, err)
	}
	d, err = ParseDurationOrDefault("x", "2m", 30*time.Second)
	if err != nil || d != 2*time.Minute {
		t.Fatalf("got (%v, %v), want 2m", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
}
