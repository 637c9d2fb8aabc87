package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog     zerolog.Logger
	diagFile    *os.File
	actionsFile *os.File
	logMu       sync.Mutex
	logReady    bool
	pid         int
	dir         string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absPath(flagPath)
	}

	// Priority 2: CHORDD_LOG_PATH environment variable
	if envPath := os.Getenv("CHORDD_LOG_PATH"); envPath != "" {
		return absPath(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// Init opens the diagnostics and actions logs. With console set, records
// are mirrored to stderr.
func Init(console bool) error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	actionsPath := filepath.Join(dir, "actions_log.txt")
	actionsFile, err = os.OpenFile(actionsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	var out io.Writer = zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	if console {
		out = zerolog.MultiLevelWriter(out, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		})
	}
	diagLog = zerolog.New(out).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if actionsFile != nil {
		actionsFile.Close()
		actionsFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(backend, config string, bindings, inputs int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("backend", backend).
		Str("config", config).
		Int("bindings", bindings).
		Int("inputs", inputs).
		Msg("session_start")
}

func SessionEnd(fired int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("fired", fired).
		Msg("session_end")
}

func GrabFailed(err error) {
	if !logReady {
		return
	}
	diagLog.Warn().Err(err).Msg("grab_failed")
}

func LayoutChanged(grabbed int) {
	if !logReady {
		return
	}
	diagLog.Info().Int("grabbed", grabbed).Msg("layout_changed")
}

func ChordPending(binding string, depth int) {
	if !logReady {
		return
	}
	diagLog.Debug().Str("binding", binding).Int("depth", depth).Msg("chord_pending")
}

func ChordReset(binding string) {
	if !logReady {
		return
	}
	diagLog.Info().Str("binding", binding).Msg("chord_reset")
}

func ActionFailed(binding string, err error) {
	if !logReady {
		return
	}
	diagLog.Error().Str("binding", binding).Err(err).Msg("action_failed")
}

// BindingFired appends a line to actions_log.txt.
func BindingFired(binding string, branch int) {
	if !logReady {
		return
	}
	diagLog.Debug().Str("binding", binding).Int("branch", branch).Msg("binding_fired")

	logMu.Lock()
	defer logMu.Unlock()
	if actionsFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\t%d\n", time.Now().Format("2006-01-02 15:04:05"), pid, binding, branch)
	actionsFile.WriteString(line)
}
