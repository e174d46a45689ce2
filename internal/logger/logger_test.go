package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"prod", "local", "dev", "docker"} {
		if _, err := NewLogger(env, Options{}); err != nil {
			t.Errorf("NewLogger(%q): %v", env, err)
		}
	}
	if _, err := NewLogger("staging", Options{}); err == nil {
		t.Error("expected error for unknown environment")
	}
}

func TestNewLogger_LevelOverride(t *testing.T) {
	l, err := NewLogger("prod", Options{Level: "debug"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !l.Core().Enabled(-1) {
		t.Error("debug level should be enabled")
	}
	if _, err := NewLogger("prod", Options{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestNewLogger_CommandField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	l, err := NewLogger("prod", Options{Command: "replay", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.Info("Replay started")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var line map[string]any
	if err := json.Unmarshal(data, &line); err != nil {
		t.Fatalf("not a JSON line: %q", data)
	}
	if line["service"] != Service || line["command"] != "replay" {
		t.Errorf("line = %v", line)
	}
	if line["msg"] != "Replay started" {
		t.Errorf("msg = %v", line["msg"])
	}
}
