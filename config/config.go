package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"chordd/action"
	"chordd/chord"
	"chordd/engine"
	"chordd/keysym"
)

var (
	ErrNoAction        = errors.New("binding has no action (run, lua, copy or send)")
	ErrMultipleActions = errors.New("binding has more than one action")
	ErrBadReset        = errors.New("reset must be a single key")
)

//go:embed default.toml
var defaultTemplate string

type Config struct {
	Reset        string            `toml:"reset"`
	Feedback     bool              `toml:"feedback"`
	LockKeyboard bool              `toml:"lock_keyboard"`
	LuaTimeoutMS int               `toml:"lua_timeout_ms"`
	Alias        map[string]string `toml:"alias"`
	Bindings     []BindingConfig   `toml:"binding"`

	// Path is the file the config was read from.
	Path string `toml:"-"`
	// Warnings lists unknown keys and bindings that cannot behave as
	// written.
	Warnings []string `toml:"-"`
}

type BindingConfig struct {
	Name   string   `toml:"name"`
	Keys   string   `toml:"keys"`
	Run    Commands `toml:"run"`
	Lua    string   `toml:"lua"`
	Copy   Commands `toml:"copy"`
	Send   string   `toml:"send"`
	Repeat bool     `toml:"repeat"`
}

// Commands is a string or an array of strings. An array gives one entry per
// branch.
type Commands []string

func (c *Commands) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case string:
		*c = Commands{v}
	case []any:
		out := make(Commands, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("entry %d: expected a string, got %T", i, item)
			}
			out = append(out, s)
		}
		*c = out
	default:
		return fmt.Errorf("expected a string or an array of strings, got %T", v)
	}
	return nil
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		Reset:        "Escape",
		Feedback:     false,
		LockKeyboard: false,
		LuaTimeoutMS: int(action.DefaultLuaTimeout / time.Millisecond),
	}
}

// Path resolves the config file: the -config flag, then CHORDD_CONFIG, then
// $XDG_CONFIG_HOME/chordd/config.toml.
func Path(flagPath string) (string, error) {
	if flagPath != "" {
		return flagPath, nil
	}
	if env := os.Getenv("CHORDD_CONFIG"); env != "" {
		return env, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		var err error
		base, err = os.UserConfigDir()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(base, "chordd", "config.toml"), nil
}

// Load reads the configuration at path. A missing file is created from the
// default template first.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	cfg := defaultConfig()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Path = path
	if err := cfg.finish(md); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a configuration from TOML text.
func Parse(text string) (*Config, error) {
	cfg := defaultConfig()
	md, err := toml.Decode(text, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.finish(md); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish validates a decoded config and collects its warnings.
func (c *Config) finish(md toml.MetaData) error {
	for _, key := range md.Undecoded() {
		c.Warnings = append(c.Warnings, fmt.Sprintf("unknown key %q", key.String()))
	}
	if err := c.Validate(); err != nil {
		return err
	}
	c.Warnings = append(c.Warnings, c.orderWarnings()...)
	return nil
}

// orderWarnings reports bindings that can never start because an earlier
// binding claims their first step, and pass-through keys that the keyboard
// lock would swallow. Only called on a valid config.
func (c *Config) orderWarnings() []string {
	p := c.parser()
	bindings := make([]engine.Binding[struct{}], len(c.Bindings))
	for i, b := range c.Bindings {
		expr, _ := p.Parse(b.Keys)
		bindings[i] = engine.Binding[struct{}]{Name: b.label(), Expr: expr}
	}

	var out []string
	for _, s := range engine.Shadows(bindings) {
		out = append(out, s.String())
	}
	if c.LockKeyboard {
		for _, b := range bindings {
			if engine.ReplaysWhilePending(b.Expr) {
				out = append(out, fmt.Sprintf("binding %q: lock_keyboard stops \"!\" keys after the first step from passing through", b.Name))
			}
		}
	}
	return out
}

func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(defaultTemplate), 0644)
}

func (c *Config) parser() *chord.Parser {
	aliases := chord.DefaultAliases()
	for name, src := range c.Alias {
		aliases[name] = src
	}
	return &chord.Parser{Aliases: aliases, KnownKey: keysym.Known}
}

// LuaTimeout returns the per-callback Lua deadline.
func (c *Config) LuaTimeout() time.Duration {
	return time.Duration(c.LuaTimeoutMS) * time.Millisecond
}

// ResetInput returns the input that abandons a pending chord.
func (c *Config) ResetInput() (chord.Input, error) {
	e, err := c.parser().Parse(c.Reset)
	if err != nil {
		return chord.Input{}, fmt.Errorf("reset: %w", err)
	}
	if e.Op() != chord.OpSingle || e.Atom().Kind != chord.KindKey {
		return chord.Input{}, fmt.Errorf("%w, got %q", ErrBadReset, c.Reset)
	}
	return e.Atom().Input, nil
}

// Validate checks every binding and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.ResetInput(); err != nil {
		errs = append(errs, err)
	}
	p := c.parser()
	for i, b := range c.Bindings {
		if _, err := p.Parse(b.Keys); err != nil {
			errs = append(errs, fmt.Errorf("binding %d (%s): %w", i+1, b.label(), err))
		}
		if err := b.checkAction(); err != nil {
			errs = append(errs, fmt.Errorf("binding %d (%s): %w", i+1, b.label(), err))
		}
	}
	return errors.Join(errs...)
}

func (b BindingConfig) label() string {
	if b.Name != "" {
		return b.Name
	}
	return strings.TrimSpace(b.Keys)
}

func (b BindingConfig) checkAction() error {
	n := 0
	for _, set := range []bool{len(b.Run) > 0, b.Lua != "", len(b.Copy) > 0, b.Send != ""} {
		if set {
			n++
		}
	}
	switch n {
	case 0:
		return ErrNoAction
	case 1:
		return nil
	}
	return ErrMultipleActions
}

// EngineBindings compiles the bindings for the engine, in file order.
func (c *Config) EngineBindings() ([]engine.Binding[action.State], error) {
	p := c.parser()
	out := make([]engine.Binding[action.State], 0, len(c.Bindings))
	for i, b := range c.Bindings {
		expr, err := p.Parse(b.Keys)
		if err != nil {
			return nil, fmt.Errorf("binding %d (%s): %w", i+1, b.label(), err)
		}
		cb, err := b.callback()
		if err != nil {
			return nil, fmt.Errorf("binding %d (%s): %w", i+1, b.label(), err)
		}
		out = append(out, engine.Binding[action.State]{
			Name:   b.label(),
			Expr:   expr,
			Action: cb,
			Repeat: b.Repeat,
		})
	}
	return out, nil
}

func (b BindingConfig) callback() (engine.Callback[action.State], error) {
	if err := b.checkAction(); err != nil {
		return nil, err
	}
	switch {
	case len(b.Run) > 0:
		return action.Shell(b.Run), nil
	case b.Lua != "":
		return action.Lua(b.label(), b.Lua)
	case len(b.Copy) > 0:
		return action.Copy(b.Copy), nil
	}
	return action.Send(b.Send)
}
