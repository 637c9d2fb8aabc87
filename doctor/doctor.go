package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	cb "github.com/atotto/clipboard"

	"chordd/action"
	"chordd/chord"
	"chordd/config"
	"chordd/display"
	"chordd/engine"
	"chordd/grab"
	"chordd/keystate"
)

type Options struct {
	Out io.Writer
	// Interactive adds a check that waits for the user to type a chord.
	Interactive bool
	Timeout     time.Duration
}

// swapped in tests
var (
	readClip  = cb.ReadAll
	writeClip = cb.WriteAll
)

// Run executes diagnostic checks against a connected display and returns an
// exit code (0=all pass, 1=any fail).
func Run(client display.Client, cfg *config.Config, opts Options) int {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Interactive {
		resetTerminal()
		setupInterruptHandler()
	}
	d := &doctor{out: opts.Out, client: client, cfg: cfg, timeout: opts.Timeout}

	d.println("chordd doctor - grab and action diagnostics")
	d.println("===========================================")

	total := 3
	if opts.Interactive {
		total = 4
	}
	d.total = total

	allPass := true
	bindings, ok := d.checkConfig()
	if !ok {
		allPass = false
	}
	if ok && !d.checkGrabs(bindings) {
		allPass = false
	}
	if !d.checkClipboard() {
		allPass = false
	}
	if opts.Interactive && ok && !d.checkChord(bindings) {
		allPass = false
	}

	d.println()
	if allPass {
		d.println("All checks passed!")
		return 0
	}
	d.println("Some checks failed. See details above.")
	return 1
}

type doctor struct {
	out     io.Writer
	client  display.Client
	cfg     *config.Config
	timeout time.Duration
	step    int
	total   int
}

func (d *doctor) println(a ...any) { fmt.Fprintln(d.out, a...) }

func (d *doctor) printf(format string, a ...any) { fmt.Fprintf(d.out, format, a...) }

func (d *doctor) header(title string) {
	d.step++
	d.println()
	d.printf("[%d/%d] %s\n", d.step, d.total, title)
}

func (d *doctor) checkConfig() ([]engine.Binding[action.State], bool) {
	d.header("Configuration")
	if d.cfg.Path != "" {
		d.printf("  File: %s\n", d.cfg.Path)
	}
	for _, w := range d.cfg.Warnings {
		d.printf("  WARN: %s\n", w)
	}
	bindings, err := d.cfg.EngineBindings()
	if err != nil {
		d.printf("  FAIL: %v\n", err)
		return nil, false
	}
	for _, b := range bindings {
		d.printf("  %s\n", b.Name)
		for _, path := range engine.Explain(b.Expr) {
			d.printf("      %s\n", path)
		}
	}
	d.printf("  PASS: %d bindings\n", len(bindings))
	return bindings, true
}

func (d *doctor) inputs(bindings []engine.Binding[action.State]) ([]chord.Input, error) {
	reset, err := d.cfg.ResetInput()
	if err != nil {
		return nil, err
	}
	inputs := []chord.Input{reset}
	for _, b := range bindings {
		inputs = append(inputs, b.Expr.Inputs()...)
	}
	return inputs, nil
}

func (d *doctor) checkGrabs(bindings []engine.Binding[action.State]) bool {
	d.header("Grabs")
	inputs, err := d.inputs(bindings)
	if err != nil {
		d.printf("  FAIL: %v\n", err)
		return false
	}

	set := grab.New(d.client, inputs)
	tr := keystate.New()
	errs := set.Acquire(tr)
	defer func() {
		if err := set.Release(); err != nil {
			d.printf("  WARN: release: %v\n", err)
		}
	}()

	for _, in := range set.Inputs() {
		codes := tr.Codes(in)
		if len(codes) > 0 {
			d.printf("  %-14s %s\n", in, d.codeNames(codes))
			continue
		}
		if !failedInput(errs, in) {
			d.printf("  WARN: %s has no code on the current layout\n", in)
		}
	}
	for _, err := range errs {
		d.printf("  FAIL: %v\n", err)
		if errors.Is(err, display.ErrAlreadyGrabbed) {
			d.println("  Another program holds this combination; unbind it there or pick another chord.")
		}
	}
	if len(errs) > 0 {
		return false
	}
	d.printf("  PASS: %d codes grabbed for %d inputs\n", len(set.Held()), len(set.Inputs()))
	return true
}

func (d *doctor) codeNames(codes []display.Code) string {
	namer, _ := d.client.(display.Namer)
	names := make([]string, len(codes))
	for i, c := range codes {
		names[i] = c.String()
		if namer != nil {
			names[i] = fmt.Sprintf("%s (%s)", c, namer.CodeName(c))
		}
	}
	return strings.Join(names, ", ")
}

func failedInput(errs []error, in chord.Input) bool {
	for _, err := range errs {
		var ge *display.GrabError
		if errors.As(err, &ge) && ge.Input == in {
			return true
		}
	}
	return false
}

func (d *doctor) checkClipboard() bool {
	d.header("Clipboard")

	saved, err := readClip()
	if err != nil {
		d.printf("  FAIL: cannot read clipboard: %v\n", err)
		return false
	}
	defer func() {
		if err := writeClip(saved); err != nil {
			d.printf("  WARN: clipboard restore failed: %v\n", err)
		}
	}()

	const sentinel = "chordd-doctor-test"
	if err := writeClip(sentinel); err != nil {
		d.printf("  FAIL: clipboard copy failed: %v\n", err)
		return false
	}
	got, err := readClip()
	if err != nil {
		d.printf("  FAIL: could not read clipboard back: %v\n", err)
		return false
	}
	if got != sentinel {
		d.printf("  FAIL: clipboard round trip (got %q, want %q)\n", got, sentinel)
		return false
	}
	d.println("  PASS: clipboard round trip")
	return true
}

type fired struct {
	name   string
	branch int
}

// checkChord runs the engine with every action replaced by a recorder and
// waits for one binding to fire.
func (d *doctor) checkChord(bindings []engine.Binding[action.State]) bool {
	d.header("Chord detection")
	d.printf("Type any configured chord within %s...\n", d.timeout)

	hits := make(chan fired, 1)
	dry := make([]engine.Binding[struct{}], len(bindings))
	for i, b := range bindings {
		name := b.Name
		dry[i] = engine.Binding[struct{}]{
			Name: name,
			Expr: b.Expr,
			Action: func(branch int, _ *struct{}) (engine.Result, error) {
				select {
				case hits <- fired{name, branch}:
				default:
				}
				return engine.Advance, nil
			},
		}
	}

	reset, err := d.cfg.ResetInput()
	if err != nil {
		d.printf("  FAIL: %v\n", err)
		return false
	}
	eng, err := engine.New(d.client, dry, &struct{}{}, engine.WithReset(reset))
	if err != nil {
		d.printf("  FAIL: %v\n", err)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	var hit *fired
	select {
	case h := <-hits:
		hit = &h
	case <-ctx.Done():
	case err := <-done:
		d.printf("  FAIL: %v\n", err)
		return false
	}
	cancel()
	if err := <-done; err != nil {
		d.printf("  WARN: %v\n", err)
	}
	resetTerminal()

	if hit == nil {
		d.println("  FAIL: timeout waiting for a chord")
		return false
	}
	d.printf("  PASS: %s fired (branch %d)\n", hit.name, hit.branch)
	return true
}
