package log

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("CHORDD_LOG_PATH", "/tmp/chordd-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/chordd-env-log" {
		t.Errorf("got %q, want /tmp/chordd-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("CHORDD_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "chordd") {
		t.Errorf("default directory %q not namespaced", got)
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(false); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"diagnostics_log.txt", "actions_log.txt"} {
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestBindingFiredLine(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(false); err != nil {
		t.Fatal(err)
	}

	BindingFired("terminal", 2)

	data, err := os.ReadFile(filepath.Join(tmp, "actions_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	// format: "2006-01-02 15:04:05\t[pid]\tbinding\tbranch\n"
	fields := strings.Split(strings.TrimSuffix(line, "\n"), "\t")
	if len(fields) != 4 || fields[2] != "terminal" || fields[3] != "2" {
		t.Errorf("unexpected actions line %q", line)
	}
}

func TestDiagnosticsRecordsGrabFailure(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(false); err != nil {
		t.Fatal(err)
	}
	GrabFailed(errors.New("keycode 38 already grabbed"))
	ActionFailed("volume", errors.New("exit status 1"))

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"grab_failed", "keycode 38", "action_failed", "volume"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("diagnostics log missing %q: %s", want, data)
		}
	}
}

func TestNoopBeforeInit(t *testing.T) {
	Close()
	// must not panic or create files
	BindingFired("x", 0)
	GrabFailed(errors.New("x"))
	Info("x")
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(false); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}
