package doctor

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"chordd/config"
	"chordd/display"
	"chordd/display/fake"
)

func stubClipboard(t *testing.T) *string {
	t.Helper()
	clip := "previous"
	oldRead, oldWrite := readClip, writeClip
	readClip = func() (string, error) { return clip, nil }
	writeClip = func(s string) error { clip = s; return nil }
	t.Cleanup(func() { readClip, writeClip = oldRead, oldWrite })
	return &clip
}

func newClient() *fake.Client {
	c := fake.New()
	c.SetKey("Escape", 9)
	c.SetKey("Super_L", 133)
	c.SetKey("Super_R", 134)
	c.SetKey("a", 38)
	c.SetKey("b", 56)
	return c
}

func mustConfig(t *testing.T, text string) *config.Config {
	t.Helper()
	cfg, err := config.Parse(text)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

const twoBindings = `
[[binding]]
name = "first"
keys = "super - {a | b}"
run = "true"

[[binding]]
keys = "a + b"
copy = "x"
`

func TestRunAllPass(t *testing.T) {
	clip := stubClipboard(t)
	client := newClient()
	var out bytes.Buffer

	code := Run(client, mustConfig(t, twoBindings), Options{Out: &out})
	if code != 0 {
		t.Fatalf("exit code = %d\n%s", code, out.String())
	}
	if *clip != "previous" {
		t.Errorf("clipboard not restored: %q", *clip)
	}
	if client.GrabCount() != 0 {
		t.Errorf("grabs left behind: %d", client.GrabCount())
	}
	for _, want := range []string{"[1/3] Configuration", "first", "PASS: 2 bindings", "[2/3] Grabs", "keycode 133 (Super_L)", "All checks passed!"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q\n%s", want, out.String())
		}
	}
}

func TestRunReportsConflict(t *testing.T) {
	stubClipboard(t)
	client := newClient()
	client.FailGrab(display.Code{Source: display.Keyboard, Value: 56}, display.ErrAlreadyGrabbed)
	var out bytes.Buffer

	if code := Run(client, mustConfig(t, twoBindings), Options{Out: &out}); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(out.String(), "Another program holds") {
		t.Errorf("conflict hint missing\n%s", out.String())
	}
}

func TestRunWarnsOnUnmappedKey(t *testing.T) {
	stubClipboard(t)
	client := fake.New()
	client.SetKey("Escape", 9)
	var out bytes.Buffer

	code := Run(client, mustConfig(t, "[[binding]]\nkeys = \"a\"\nrun = \"true\"\n"), Options{Out: &out})
	if code != 0 {
		t.Fatalf("exit code = %d\n%s", code, out.String())
	}
	if !strings.Contains(out.String(), "WARN: a has no code") {
		t.Errorf("missing layout warning\n%s", out.String())
	}
}

func TestRunClipboardFailure(t *testing.T) {
	stubClipboard(t)
	writeClip = func(string) error { return errors.New("no selection owner") }
	var out bytes.Buffer

	if code := Run(newClient(), mustConfig(t, twoBindings), Options{Out: &out}); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(out.String(), "clipboard copy failed") {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestRunInteractiveDetectsChord(t *testing.T) {
	stubClipboard(t)
	client := newClient()
	client.SimKey(133)
	client.SimKey(56)
	var out bytes.Buffer

	code := Run(client, mustConfig(t, twoBindings), Options{Out: &out, Interactive: true, Timeout: 2 * time.Second})
	if code != 0 {
		t.Fatalf("exit code = %d\n%s", code, out.String())
	}
	if !strings.Contains(out.String(), "PASS: first fired (branch 2)") {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestRunInteractiveTimeout(t *testing.T) {
	stubClipboard(t)
	var out bytes.Buffer

	code := Run(newClient(), mustConfig(t, twoBindings), Options{Out: &out, Interactive: true, Timeout: 50 * time.Millisecond})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(out.String(), "timeout waiting for a chord") {
		t.Errorf("output:\n%s", out.String())
	}
}
