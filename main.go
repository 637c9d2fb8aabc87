package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"golang.org/x/term"

	"chordd/action"
	"chordd/beep"
	"chordd/chord"
	"chordd/config"
	"chordd/display"
	"chordd/doctor"
	"chordd/engine"
	"chordd/log"
	"chordd/shutdown"
)

var version = "dev"

// initCrashLog sends fatal runtime output to crash_log.txt in the default log
// directory. run() redirects it again once -logpath is known.
func initCrashLog() {
	dir, err := log.ResolveDir("")
	if err != nil {
		return
	}
	setCrashOutput(dir)
}

func setCrashOutput(dir string) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return
	}
	crashPath := filepath.Join(dir, "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	crashFile.Close()
}

func run() {
	configFlag := flag.String("config", "", "config file path (default: $CHORDD_CONFIG or $XDG_CONFIG_HOME/chordd/config.toml)")
	displayFlag := flag.String("display", "", "X display to connect to (default: $DISPLAY)")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	monitorFlag := flag.Bool("monitor", false, "Show a terminal monitor of chord progress")
	doctorFlag := flag.Bool("doctor", false, "Run grab diagnostics and exit")
	checkFlag := flag.Bool("check", false, "Validate the config, print the compiled bindings and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("chordd %s\n", version)
		os.Exit(0)
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	setCrashOutput(log.Dir())

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	cfgPath, err := config.Path(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	if *checkFlag {
		os.Exit(check(cfg))
	}

	client, backend, err := openClient(*displayFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot connect to display: %v\n", err)
		os.Exit(1)
	}

	if *doctorFlag {
		code := doctor.Run(client, cfg, doctor.Options{
			Out:         os.Stdout,
			Interactive: term.IsTerminal(int(os.Stdin.Fd())),
		})
		client.Close()
		os.Exit(code)
	}

	// Mirror diagnostics to the terminal unless the monitor owns it
	console := !*monitorFlag && term.IsTerminal(int(os.Stderr.Fd()))
	if err := log.Init(console); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	for _, w := range cfg.Warnings {
		log.Warnf("config: %s", w)
	}

	if cfg.Feedback {
		beep.Init()
	} else {
		beep.Disable()
	}

	os.Exit(serve(client, backend, cfg, *monitorFlag))
}

// serve runs the engine until a signal, the monitor quitting, or a display
// failure. It returns the process exit code.
func serve(client display.Client, backend string, cfg *config.Config, monitor bool) int {
	defer log.Close()

	bindings, err := cfg.EngineBindings()
	if err != nil {
		client.Close()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	reset, err := cfg.ResetInput()
	if err != nil {
		client.Close()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	state := action.NewState(cfg.LuaTimeout())
	defer state.Close()
	if fr, ok := client.(display.FocusReader); ok {
		state.SetFocusReader(fr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ui EventSink
	if monitor {
		names := make([]string, len(bindings))
		for i, b := range bindings {
			names[i] = b.Name
		}
		p := NewTUIProgram(names, backend, cfg.Reset)
		ui = tuiSink{p}
		go func() {
			if _, err := p.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
			}
			cancel()
		}()
		defer p.Quit()
	}
	obs := newObserver(ui)

	eng, err := engine.New(client, bindings, state,
		engine.WithReset(reset),
		engine.WithObserver(obs),
		engine.WithKeyboardLock(cfg.LockKeyboard),
	)
	if err != nil {
		client.Close()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	shutdown.Notify(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Infof("received %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	log.SessionStart(backend, cfg.Path, len(bindings), countInputs(bindings, reset))
	runErr := eng.Run(ctx)
	log.SessionEnd(obs.Fired())

	if err := client.Close(); err != nil {
		log.Warnf("close display: %v", err)
	}
	if runErr != nil {
		log.Errorf("engine stopped: %v", runErr)
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return 1
	}
	return 0
}

func countInputs(bindings []engine.Binding[action.State], reset chord.Input) int {
	seen := map[chord.Input]bool{reset: true}
	for _, b := range bindings {
		for _, in := range b.Expr.Inputs() {
			seen[in] = true
		}
	}
	return len(seen)
}

// check prints every binding with its compiled paths.
func check(cfg *config.Config) int {
	bindings, err := cfg.EngineBindings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("%s: %d bindings, reset %s\n", cfg.Path, len(bindings), cfg.Reset)
	for _, w := range cfg.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	for _, b := range bindings {
		fmt.Printf("\n%s  [%s]\n", b.Name, b.Expr)
		for _, path := range engine.Explain(b.Expr) {
			fmt.Printf("    %s\n", path)
		}
	}
	return 0
}
