package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"chordd/chord"
	"chordd/display"
	"chordd/display/fake"
)

var keycodes = map[string]uint32{
	"Escape":  9,
	"q":       24,
	"r":       27,
	"p":       33,
	"a":       38,
	"s":       39,
	"d":       40,
	"h":       43,
	"j":       44,
	"l":       46,
	"Shift_L": 50,
	"x":       53,
	"c":       54,
	"n":       57,
	"Super_L": 133,
	"Menu":    135,
}

func key(name string) display.Code {
	return display.Code{Source: display.Keyboard, Value: keycodes[name]}
}

type fired struct {
	name   string
	branch int
}

type recorder struct {
	calls []fired
}

func record(name string) Callback[recorder] {
	return func(branch int, st *recorder) (Result, error) {
		st.calls = append(st.calls, fired{name, branch})
		return Advance, nil
	}
}

func newEngine(t *testing.T, bindings []Binding[recorder], opts ...Option) (*fake.Client, *Engine[recorder], *recorder) {
	t.Helper()
	fc := fake.New()
	for name, code := range keycodes {
		fc.SetKey(name, code)
	}
	st := &recorder{}
	e, err := New(fc, bindings, st, opts...)
	if err != nil {
		t.Fatal(err)
	}
	e.Acquire()
	return fc, e, st
}

func press(e *Engine[recorder], name string) display.Decision {
	return e.Step(display.Press(key(name)))
}

func release(e *Engine[recorder], name string) display.Decision {
	return e.Step(display.Release(key(name)))
}

func expectDecision(t *testing.T, got, want display.Decision, what string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %s, want %s", what, got, want)
	}
}

func TestSequenceFiresOnce(t *testing.T) {
	_, e, st := newEngine(t, []Binding[recorder]{{
		Name:   "launch",
		Expr:   chord.Then(chord.All(chord.Key("Super_L"), chord.Key("c")), chord.Key("n")),
		Action: record("launch"),
	}})

	expectDecision(t, press(e, "Super_L"), display.Replay, "press super")
	expectDecision(t, press(e, "c"), display.Hide, "press c")
	if name, ok := e.Pending(); !ok || name != "launch" {
		t.Fatalf("expected pending launch, got %q %v", name, ok)
	}
	if len(st.calls) != 0 {
		t.Fatal("fired before the sequence completed")
	}
	expectDecision(t, press(e, "n"), display.Hide, "press n")
	if _, ok := e.Pending(); ok {
		t.Error("still pending after completion")
	}

	expectDecision(t, release(e, "n"), display.Hide, "release n")
	expectDecision(t, release(e, "c"), display.Hide, "release c")
	expectDecision(t, release(e, "Super_L"), display.Replay, "release super")

	if len(st.calls) != 1 || st.calls[0] != (fired{"launch", 0}) {
		t.Errorf("calls = %v, want one launch with branch 0", st.calls)
	}
}

func TestSequenceNeedsEarlierEvent(t *testing.T) {
	_, e, st := newEngine(t, []Binding[recorder]{{
		Expr:   chord.Then(chord.Key("a"), chord.Key("s")),
		Action: record("seq"),
	}})

	// s is held before a; the second step only fires on a later press
	press(e, "s")
	press(e, "a")
	if len(st.calls) != 0 {
		t.Fatalf("second step fired on the first step's event: %v", st.calls)
	}
	release(e, "s")
	press(e, "s")
	if len(st.calls) != 1 {
		t.Errorf("calls = %v, want 1", st.calls)
	}
}

func TestAnyBranchUnderSequence(t *testing.T) {
	_, e, st := newEngine(t, []Binding[recorder]{{
		Name: "pick",
		Expr: chord.Then(
			chord.All(chord.Key("Super_L"), chord.Key("c")),
			chord.Any(chord.Key("p"), chord.Key("l"), chord.Key("r")),
		),
		Action: record("pick"),
	}})

	press(e, "Super_L")
	press(e, "c")
	expectDecision(t, press(e, "l"), display.Hide, "press l")
	if len(st.calls) != 1 || st.calls[0].branch != 2 {
		t.Errorf("calls = %v, want branch 2", st.calls)
	}
}

func TestAnyReportsSatisfiedBranch(t *testing.T) {
	_, e, st := newEngine(t, []Binding[recorder]{{
		Expr:   chord.Any(chord.Key("a"), chord.Key("s")),
		Action: record("any"),
	}})

	press(e, "s")
	if len(st.calls) != 1 || st.calls[0].branch != 2 {
		t.Errorf("calls = %v, want branch 2", st.calls)
	}
}

func TestModifierAlternativesDoNotDispatch(t *testing.T) {
	_, e, st := newEngine(t, []Binding[recorder]{{
		Expr: chord.All(
			chord.Any(chord.Key("Shift_L"), chord.Key("Super_L")),
			chord.Any(chord.Key("a"), chord.Key("s"), chord.Key("d")),
		),
		Action: record("mods"),
	}})

	press(e, "Super_L")
	press(e, "d")
	if len(st.calls) != 1 || st.calls[0].branch != 3 {
		t.Errorf("calls = %v, want branch 3", st.calls)
	}
}

func TestFirstMatchWins(t *testing.T) {
	_, e, st := newEngine(t, []Binding[recorder]{
		{Expr: chord.All(chord.Key("Super_L"), chord.Key("a")), Action: record("first")},
		{Expr: chord.Key("a"), Action: record("second")},
	})

	press(e, "Super_L")
	press(e, "a")
	if len(st.calls) != 1 || st.calls[0].name != "first" {
		t.Errorf("calls = %v, want only first", st.calls)
	}
}

func TestHeldChordDoesNotRefire(t *testing.T) {
	_, e, st := newEngine(t, []Binding[recorder]{
		{Expr: chord.All(chord.Key("Super_L"), chord.Key("a")), Action: record("combo")},
	})

	press(e, "Super_L")
	press(e, "a")
	expectDecision(t, press(e, "x"), display.Replay, "unrelated press at root")
	if len(st.calls) != 1 {
		t.Errorf("calls = %v, want 1", st.calls)
	}
}

func TestResetAbandonsPending(t *testing.T) {
	_, e, st := newEngine(t, []Binding[recorder]{{
		Expr:   chord.Then(chord.Key("Super_L"), chord.Key("n")),
		Action: record("seq"),
	}})

	press(e, "Super_L")
	release(e, "Super_L")
	expectDecision(t, press(e, "Escape"), display.Hide, "press reset")
	if _, ok := e.Pending(); ok {
		t.Fatal("still pending after reset")
	}
	expectDecision(t, release(e, "Escape"), display.Hide, "release reset")
	expectDecision(t, press(e, "n"), display.Replay, "press n at root")
	if len(st.calls) != 0 {
		t.Errorf("calls = %v, want none", st.calls)
	}
}

func TestResetWinsOverPendingStep(t *testing.T) {
	_, e, st := newEngine(t, []Binding[recorder]{{
		Expr:   chord.Then(chord.Key("a"), chord.Key("Escape")),
		Action: record("esc"),
	}})

	press(e, "a")
	press(e, "Escape")
	if _, ok := e.Pending(); ok || len(st.calls) != 0 {
		t.Errorf("reset did not abandon: pending=%v calls=%v", ok, st.calls)
	}
}

func TestCustomReset(t *testing.T) {
	_, e, _ := newEngine(t, []Binding[recorder]{{
		Expr: chord.Then(chord.Key("a"), chord.Key("s")),
	}}, WithReset(chord.Key("q").Atom().Input))

	press(e, "a")
	press(e, "Escape")
	if _, ok := e.Pending(); !ok {
		t.Fatal("escape reset a chord with a custom reset key")
	}
	press(e, "q")
	if _, ok := e.Pending(); ok {
		t.Error("custom reset ignored")
	}
}

func TestUnrelatedKeyWhilePending(t *testing.T) {
	_, e, st := newEngine(t, []Binding[recorder]{{
		Expr:   chord.Then(chord.Key("Super_L"), chord.Key("n")),
		Action: record("seq"),
	}})

	press(e, "Super_L")
	expectDecision(t, press(e, "x"), display.Hide, "unrelated press")
	expectDecision(t, release(e, "x"), display.Hide, "unrelated release")
	if _, ok := e.Pending(); !ok {
		t.Fatal("unrelated key abandoned the chord")
	}
	press(e, "n")
	if len(st.calls) != 1 {
		t.Errorf("calls = %v, want 1", st.calls)
	}
}

func TestReplayAtomWhilePending(t *testing.T) {
	_, e, _ := newEngine(t, []Binding[recorder]{{
		Expr: chord.Then(
			chord.Key("a"),
			chord.All(chord.Key("Shift_L"), chord.MustToggleReplay(chord.Key("x"))),
		),
	}})

	press(e, "a")
	expectDecision(t, press(e, "x"), display.Replay, "replay atom without shift")
	expectDecision(t, release(e, "x"), display.Replay, "release of replayed press")
	if _, ok := e.Pending(); !ok {
		t.Error("unmatched replay atom abandoned the chord")
	}
}

func TestReplayOnCompletion(t *testing.T) {
	_, e, st := newEngine(t, []Binding[recorder]{{
		Expr:   chord.MustToggleReplay(chord.Key("Menu")),
		Action: record("menu"),
	}})

	expectDecision(t, press(e, "Menu"), display.Replay, "press replay key")
	if len(st.calls) != 1 {
		t.Errorf("calls = %v, want 1", st.calls)
	}
}

func TestLayoutChangeWhilePending(t *testing.T) {
	fc, e, st := newEngine(t, []Binding[recorder]{{
		Expr:   chord.Then(chord.All(chord.Key("Super_L"), chord.Key("c")), chord.Key("n")),
		Action: record("seq"),
	}})

	press(e, "Super_L")
	press(e, "c")
	fc.SetKey("n", 99)
	e.Step(display.Event{Kind: display.LayoutChanged})

	if _, ok := e.Pending(); !ok {
		t.Fatal("layout change abandoned the chord")
	}
	if !e.Tracker().IsPressed(key("Super_L")) || !e.Tracker().IsPressed(key("c")) {
		t.Error("layout change cleared the pressed set")
	}
	if fc.IsGrabbed(key("n")) || !fc.IsGrabbed(display.Code{Value: 99}) {
		t.Error("grabs not refreshed")
	}
	e.Step(display.Press(display.Code{Value: 99}))
	if len(st.calls) != 1 {
		t.Errorf("calls = %v, want 1", st.calls)
	}
	if got := fc.Allowed(); len(got) != 0 {
		t.Errorf("Step must not allow events itself: %v", got)
	}
}

func TestGrabFailureIsolated(t *testing.T) {
	fc := fake.New()
	for name, code := range keycodes {
		fc.SetKey(name, code)
	}
	fc.FailGrab(key("a"), display.ErrAlreadyGrabbed)

	var obs grabObserver
	st := &recorder{}
	e, err := New(fc, []Binding[recorder]{
		{Expr: chord.Key("a"), Action: record("a")},
		{Expr: chord.Key("s"), Action: record("s")},
	}, st, WithObserver(&obs))
	if err != nil {
		t.Fatal(err)
	}
	if errs := e.Acquire(); len(errs) != 1 {
		t.Fatalf("Acquire errors = %v", errs)
	}
	if len(obs.failed) != 1 || !errors.Is(obs.failed[0], display.ErrAlreadyGrabbed) {
		t.Errorf("observer saw %v", obs.failed)
	}

	expectDecision(t, press(e, "a"), display.Replay, "press inert key")
	press(e, "s")
	if len(st.calls) != 1 || st.calls[0].name != "s" {
		t.Errorf("calls = %v, want only s", st.calls)
	}
}

type grabObserver struct {
	NopObserver
	failed []error
}

func (o *grabObserver) GrabFailed(err error) { o.failed = append(o.failed, err) }

func TestSharedPrefixAlternatives(t *testing.T) {
	_, e, st := newEngine(t, []Binding[recorder]{{
		Expr: chord.Then(chord.Key("Super_L"), chord.Any(
			chord.Key("n"),
			chord.Then(chord.Key("a"), chord.Key("a")),
			chord.Then(chord.Key("a"), chord.Key("j")),
			chord.Then(chord.Key("a"), chord.Key("s"), chord.Key("d")),
		)),
		Action: record("tree"),
	}})

	for _, k := range []string{"Super_L", "a", "s", "d"} {
		press(e, k)
		release(e, k)
	}
	press(e, "Super_L")
	press(e, "a")
	press(e, "j")

	want := []fired{{"tree", 4}, {"tree", 3}}
	if len(st.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", st.calls, want)
	}
	for i := range want {
		if st.calls[i] != want[i] {
			t.Errorf("call %d = %v, want %v", i, st.calls[i], want[i])
		}
	}
}

func TestRepeatAndRestart(t *testing.T) {
	restartOn := 3
	n := 0
	_, e, st := newEngine(t, []Binding[recorder]{{
		Expr:   chord.Then(chord.Key("Super_L"), chord.Any(chord.Key("h"), chord.Key("l"))),
		Repeat: true,
		Action: func(branch int, st *recorder) (Result, error) {
			n++
			st.calls = append(st.calls, fired{"resize", branch})
			if n == restartOn {
				return Restart, nil
			}
			return Advance, nil
		},
	}})

	press(e, "Super_L")
	release(e, "Super_L")
	for _, k := range []string{"h", "l", "h"} {
		press(e, k)
		release(e, k)
	}
	if _, ok := e.Pending(); ok {
		t.Error("restart did not return to root")
	}
	expectDecision(t, press(e, "h"), display.Replay, "press h at root")

	want := []int{1, 2, 1}
	if len(st.calls) != len(want) {
		t.Fatalf("calls = %v", st.calls)
	}
	for i, b := range want {
		if st.calls[i].branch != b {
			t.Errorf("call %d branch = %d, want %d", i, st.calls[i].branch, b)
		}
	}
}

func TestActionFailureReturnsToRoot(t *testing.T) {
	tests := []struct {
		name   string
		action Callback[recorder]
	}{
		{"error", func(int, *recorder) (Result, error) { return Advance, errors.New("boom") }},
		{"panic", func(int, *recorder) (Result, error) { panic("boom") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var obs failObserver
			_, e, _ := newEngine(t, []Binding[recorder]{{
				Name:   "bad",
				Expr:   chord.Then(chord.Key("a"), chord.Key("s")),
				Repeat: true,
				Action: tt.action,
			}}, WithObserver(&obs))

			press(e, "a")
			expectDecision(t, press(e, "s"), display.Hide, "failing completion")
			if _, ok := e.Pending(); ok {
				t.Error("failed action left the chord pending")
			}
			if len(obs.failed) != 1 || !strings.Contains(obs.failed[0].Error(), "boom") {
				t.Errorf("observer saw %v", obs.failed)
			}
		})
	}
}

type failObserver struct {
	NopObserver
	failed []error
}

func (o *failObserver) ActionFailed(_ string, err error) { o.failed = append(o.failed, err) }

func TestKeyboardLockWhilePending(t *testing.T) {
	fc, e, _ := newEngine(t, []Binding[recorder]{{
		Expr: chord.Then(chord.Key("a"), chord.Key("s")),
	}}, WithKeyboardLock(true))

	press(e, "a")
	if locked, _ := fc.Locked(); !locked {
		t.Fatal("keyboard not locked while pending")
	}
	press(e, "Escape")
	if locked, n := fc.Locked(); locked || n != 1 {
		t.Errorf("locked=%v count=%d after reset", locked, n)
	}
}

func TestRunAllowsEveryInputAndReleases(t *testing.T) {
	fc, e, st := newEngine(t, []Binding[recorder]{{
		Expr:   chord.Then(chord.All(chord.Key("Super_L"), chord.Key("c")), chord.Key("n")),
		Action: record("seq"),
	}})
	for _, k := range []string{"Super_L", "c", "n"} {
		fc.SimPress(key(k))
	}
	fc.SimLayoutChange()
	for _, k := range []string{"n", "c", "Super_L"} {
		fc.SimRelease(key(k))
	}
	fc.Disconnect()

	err := e.Run(context.Background())
	if !errors.Is(err, fake.ErrDisconnected) {
		t.Fatalf("Run err = %v, want ErrDisconnected", err)
	}
	if got := fc.GrabCount(); got != 0 {
		t.Errorf("%d grabs left after Run", got)
	}
	allowed := fc.Allowed()
	if len(allowed) != 6 {
		t.Fatalf("allowed %d events, want 6", len(allowed))
	}
	want := []display.Decision{display.Replay, display.Hide, display.Hide, display.Hide, display.Hide, display.Replay}
	for i, d := range want {
		if allowed[i].Decision != d {
			t.Errorf("event %d (%s) = %s, want %s", i, allowed[i].Event, allowed[i].Decision, d)
		}
	}
	if len(st.calls) != 1 {
		t.Errorf("calls = %v, want 1", st.calls)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	fc, e, _ := newEngine(t, []Binding[recorder]{{Expr: chord.Key("a")}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Run(ctx); err != nil {
		t.Errorf("Run after cancel = %v", err)
	}
	if got := fc.GrabCount(); got != 0 {
		t.Errorf("%d grabs left after cancel", got)
	}
}

func TestNewRejectsEmptyBinding(t *testing.T) {
	_, err := New(fake.New(), []Binding[recorder]{{Name: "empty"}}, &recorder{})
	if !errors.Is(err, ErrEmptyBinding) {
		t.Errorf("err = %v, want ErrEmptyBinding", err)
	}
}

func TestExplain(t *testing.T) {
	got := Explain(chord.Then(
		chord.All(chord.Any(chord.Key("Super_L"), chord.Key("Super_R")), chord.Key("c")),
		chord.Any(chord.Key("n"), chord.Then(chord.Key("a"), chord.Key("j"))),
	))
	want := []string{
		"Super_L + c -> n  [branch 1]",
		"Super_L + c -> a -> j  [branch 2]",
		"Super_R + c -> n  [branch 1]",
		"Super_R + c -> a -> j  [branch 2]",
	}
	if len(got) != len(want) {
		t.Fatalf("Explain = %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestShadows(t *testing.T) {
	super := chord.Any(chord.Key("Super_L"), chord.Key("Super_R"))
	digits := chord.Any(chord.Key("a"), chord.Key("s"))
	bindings := []Binding[recorder]{
		{Name: "term", Expr: chord.All(super, chord.Key("Menu"))},
		{Name: "desk", Expr: chord.Then(super, digits)},
		{Name: "apps", Expr: chord.Then(super, chord.Any(chord.Key("h"), chord.Key("l")))},
	}

	got := Shadows(bindings)
	want := []Shadow{
		{Binding: "apps", Step: "Super_L", By: "desk"},
	}
	if len(got) != len(want) || got[0] != want[0] {
		t.Fatalf("Shadows = %v, want %v", got, want)
	}

	// the bare modifier also claims a later chord that includes it
	bindings[0], bindings[1] = bindings[1], bindings[0]
	got = Shadows(bindings)
	if len(got) != 2 || got[0].Binding != "term" || got[1].Binding != "apps" || got[0].By != "desk" {
		t.Errorf("Shadows = %v", got)
	}
}

func TestShadowedBindingNeverFires(t *testing.T) {
	super := chord.Any(chord.Key("Super_L"), chord.Key("Super_R"))
	_, e, st := newEngine(t, []Binding[recorder]{
		{Name: "desk", Expr: chord.Then(super, chord.Key("a")), Action: record("desk")},
		{Name: "term", Expr: chord.All(super, chord.Key("Menu")), Action: record("term")},
	})

	expectDecision(t, press(e, "Super_L"), display.Hide, "press super")
	if name, _ := e.Pending(); name != "desk" {
		t.Fatalf("pending = %q, want desk", name)
	}
	expectDecision(t, press(e, "Menu"), display.Hide, "press menu")
	if len(st.calls) != 0 {
		t.Errorf("calls = %v, want none", st.calls)
	}
}

func TestShadowsNoneForDistinctPrefixes(t *testing.T) {
	super := chord.Any(chord.Key("Super_L"), chord.Key("Super_R"))
	got := Shadows([]Binding[recorder]{
		{Name: "term", Expr: chord.All(super, chord.Key("Menu"))},
		{Name: "desk", Expr: chord.All(super, chord.Any(chord.Key("a"), chord.Key("s")))},
		{Name: "apps", Expr: chord.Then(chord.All(super, chord.Key("x")), chord.Any(chord.Key("h"), chord.Key("l")))},
	})
	if len(got) != 0 {
		t.Errorf("Shadows = %v, want none", got)
	}
}

func TestReplaysWhilePending(t *testing.T) {
	bang := func(name string) chord.Expr { return chord.MustToggleReplay(chord.Key(name)) }
	cases := []struct {
		expr chord.Expr
		want bool
	}{
		{chord.Then(chord.Key("a"), bang("s")), true},
		{chord.Then(bang("a"), chord.Key("s")), false},
		{chord.All(chord.Key("Super_L"), bang("c")), false},
		{chord.Then(chord.Key("a"), chord.Any(chord.Key("h"), chord.Then(chord.Key("j"), bang("l")))), true},
	}
	for _, tc := range cases {
		if got := ReplaysWhilePending(tc.expr); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.expr, got, tc.want)
		}
	}
}
