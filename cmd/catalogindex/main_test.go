package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kailas-cloud/catalogindex/internal/domain"
	"github.com/kailas-cloud/catalogindex/internal/repository/errlog"
	"github.com/kailas-cloud/catalogindex/internal/version"
)

func TestVersionCommand(t *testing.T) {
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out

	if err := app.Run([]string{"catalogindex", "version"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), version.Version) {
		t.Errorf("output %q does not contain version", out.String())
	}
}

func TestLoadCommand_CatalogRequired(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}

	err := app.Run([]string{"catalogindex", "load"})
	if err == nil || !strings.Contains(err.Error(), "catalog") {
		t.Fatalf("expected missing --catalog error, got %v", err)
	}
}

func TestLoadCommand_BadConfig(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}

	err := app.Run([]string{"catalogindex", "--config", t.TempDir() + "/none.yaml", "load", "--catalog", "x.json"})
	if err == nil || !strings.Contains(err.Error(), "failed to load config") {
		t.Fatalf("expected config error, got %v", err)
	}
}

// writeConfig writes a config whose artifacts live in dir. The index address
// is never dialed by the cases below.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	yml := fmt.Sprintf(`
index:
  addrs: ["127.0.0.1:1"]
embedding:
  api_key: test-key
loader:
  recovery_file: %[1]s/rest.json
pipeline:
  error_log: %[1]s/error.json
  ledger_file: %[1]s/tokenUse.json
`, dir)
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCommands_InputFailuresReachErrorLog(t *testing.T) {
	t.Setenv("ENV", "local")

	tests := []struct {
		name  string
		args  func(dir string) []string
		stage string
	}{
		{
			name: "missing catalog",
			args: func(dir string) []string {
				return []string{"load", "--catalog", filepath.Join(dir, "missing.json")}
			},
			stage: "read_catalog",
		},
		{
			name: "missing recovery file",
			args: func(dir string) []string {
				return []string{"replay", "--file", filepath.Join(dir, "missing.json")}
			},
			stage: "read_recovery",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			app := newApp()
			app.Writer = &bytes.Buffer{}

			args := append([]string{"catalogindex", "--config", writeConfig(t, dir)}, tc.args(dir)...)
			err := app.Run(args)
			if !errors.Is(err, domain.ErrInput) {
				t.Fatalf("expected ErrInput, got %v", err)
			}

			f, err := errlog.NewFile(filepath.Join(dir, "error.json")).Read()
			if err != nil {
				t.Fatalf("error log: %v", err)
			}
			if f.Kind != domain.KindInput || f.Stage != tc.stage {
				t.Errorf("failure = %+v", f)
			}
			if f.Message == "" || f.Time.IsZero() {
				t.Errorf("failure lacks context: %+v", f)
			}
		})
	}
}
