package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CARDSCAN_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	return home
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("output missing %q:\n%s", want, output)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	setupHome(t)
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite must fail")
	}
	if _, err := runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init with --overwrite: %v", err)
	}
}

func TestConfigShowRedactsKey(t *testing.T) {
	setupHome(t)
	t.Setenv("CARDSCAN_API_KEY", "sk-or-v1-abcdef123456")

	out, err := runCLI(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "vision.api_key")
	if strings.Contains(out, "sk-or-v1-abcdef123456") {
		t.Fatal("api key must be redacted")
	}
}

func TestHistoryEmpty(t *testing.T) {
	setupHome(t)

	out, err := runCLI(t, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No scans recorded yet")
}

func TestMatchRequiresIndex(t *testing.T) {
	setupHome(t)

	img := filepath.Join(t.TempDir(), "missing.jpg")
	if _, err := runCLI(t, "match", img); err == nil {
		t.Fatal("match with a missing image must fail")
	}
}

func TestFeedbackUnknownScan(t *testing.T) {
	setupHome(t)

	if _, err := runCLI(t, "feedback", "no-such-scan", "correct"); err == nil {
		t.Fatal("feedback for an unknown scan must fail")
	}
}
