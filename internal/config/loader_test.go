package config

import (
	"flag"
	"os"
	"testing"
)

// resetFlags gives each test a clean flag.CommandLine so RegisterFlags
// can register its flags again without tripping the "already defined" guard.
func resetFlags(t *testing.T) {
	t.Helper()
	old := flag.CommandLine
	old2 := os.Args
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	os.Args = []string{old2[0]}
	t.Cleanup(func() {
		flag.CommandLine = old
		os.Args = old2
	})
}

func TestLoadAppliesDefaultsWhenNothingElseIsSet(t *testing.T) {
	resetFlags(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.App.Name != "recorder" {
		t.Fatalf("expected default app.name, got %q", cfg.App.Name)
	}
}

func TestLoadPrecedenceFileThenEnvThenFlags(t *testing.T) {
	resetFlags(t)

	dir := t.TempDir()
	path := dir + "/config.ini"
	writeFile(t, path, "[app]\nname = from-file\nlog_level = debug\n")

	t.Setenv("RECORDER_LOG_LEVEL", "warn")

	os.Args = []string{os.Args[0], "-c", path, "-app-name", "from-flag"}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.App.Name != "from-flag" {
		t.Fatalf("expected flag to win over file, got %q", cfg.App.Name)
	}
	if cfg.App.LogLevel != "warn" {
		t.Fatalf("expected env to win over file, got %q", cfg.App.LogLevel)
	}
}

func TestLoadReturnsErrorOnInvalidConfiguration(t *testing.T) {
	resetFlags(t)
	t.Setenv("RECORDER_LOG_LEVEL", "not-a-level")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation failure to propagate from Load")
	}
}
