//go:build integration

package test_test

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("CHORDD_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "CHORDD_TEST_BIN not set; build chordd and point it at the binary")
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runChordd(t *testing.T, args ...string) (string, int) {
	t.Helper()
	logDir := t.TempDir()
	cmdArgs := append([]string{"-logpath", logDir}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Env = os.Environ()
	out, err := cmd.CombinedOutput()
	if exitErr, ok := err.(*exec.ExitError); ok {
		return string(out), exitErr.ExitCode()
	}
	if err != nil {
		t.Fatalf("chordd failed to run: %v", err)
	}
	return string(out), 0
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func requireDisplay(t *testing.T) {
	t.Helper()
	if os.Getenv("DISPLAY") == "" {
		t.Skip("DISPLAY not set")
	}
}

const sampleConfig = `
reset = "Escape"

[[binding]]
name = "touch"
keys = "super - {F5 | F6}"
run = "touch %s/fired-{branch}"
`

// --- Config checks ---

func TestVersion(t *testing.T) {
	out, code := runChordd(t, "-version")
	if code != 0 || !strings.HasPrefix(out, "chordd ") {
		t.Errorf("exit %d, output %q", code, out)
	}
}

func TestCheckPrintsPaths(t *testing.T) {
	cfg := writeConfig(t, fmt.Sprintf(sampleConfig, t.TempDir()))
	out, code := runChordd(t, "-config", cfg, "-check")
	if code != 0 {
		t.Fatalf("exit %d\n%s", code, out)
	}
	for _, want := range []string{"1 bindings", "touch", "F5", "[branch 2]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestCheckRejectsBadConfig(t *testing.T) {
	cfg := writeConfig(t, "[[binding]]\nkeys = \"super + NoSuchKey\"\nrun = \"true\"\n")
	out, code := runChordd(t, "-config", cfg, "-check")
	if code != 1 {
		t.Errorf("exit %d, want 1\n%s", code, out)
	}
	if !strings.Contains(out, "NoSuchKey") {
		t.Errorf("error does not name the key\n%s", out)
	}
}

func TestMissingConfigIsCreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chordd", "config.toml")
	if out, code := runChordd(t, "-config", path, "-check"); code != 0 {
		t.Fatalf("exit %d\n%s", code, out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("default config not written: %v", err)
	}
}

// --- Daemon ---

func TestDaemonSession(t *testing.T) {
	requireDisplay(t)
	marks := t.TempDir()
	cfg := writeConfig(t, fmt.Sprintf(sampleConfig, marks))
	logDir := t.TempDir()

	cmd := exec.Command(testBinary, "-logpath", logDir, "-config", cfg)
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(500 * time.Millisecond)

	if xdotool, err := exec.LookPath("xdotool"); err == nil {
		exec.Command(xdotool, "key", "Super_L", "F6").Run()
		time.Sleep(300 * time.Millisecond)
		if _, err := os.Stat(filepath.Join(marks, "fired-2")); err != nil {
			t.Errorf("binding did not fire: %v", err)
		}
	}

	cmd.Process.Signal(syscall.SIGTERM)
	if err := cmd.Wait(); err != nil {
		t.Fatalf("chordd exited with error: %v", err)
	}

	diag := readLog(t, logDir, "diagnostics_log.txt")
	for _, want := range []string{"session_start", "session_end", "backend=x11"} {
		if !strings.Contains(diag, want) {
			t.Errorf("diagnostics missing %q\n%s", want, diag)
		}
	}
}
