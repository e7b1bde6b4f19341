package aside

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Action is one of the controller's three operations.
type Action uint8

const (
	ActionRead Action = iota
	ActionWrite
	ActionRemove
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionWrite:
		return "write"
	case ActionRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Actions is a per-action flag set.
type Actions struct {
	Read   bool
	Write  bool
	Remove bool
}

func AllActions() Actions { return Actions{Read: true, Write: true, Remove: true} }

func (a Actions) Has(x Action) bool {
	switch x {
	case ActionRead:
		return a.Read
	case ActionWrite:
		return a.Write
	case ActionRemove:
		return a.Remove
	default:
		return false
	}
}

const DefaultSeparator = ":"

// Config is the controller configuration. It is a plain value: the With*
// methods return modified copies and never touch the receiver.
type Config struct {
	Separator  string
	DefaultTTL time.Duration // 0 => entries never expire
	Prefix     string
	Allowed    Actions // disabled actions never reach the backend
	Logged     Actions // actions whose successful outcomes are logged
}

// DefaultConfig allows every action, logs none and never expires entries.
func DefaultConfig() Config {
	return Config{Separator: DefaultSeparator, Allowed: AllActions()}
}

// WithPrefix extends the namespace: "app" + "user" => "app<sep>user".
func (c Config) WithPrefix(p string) Config {
	if c.Prefix == "" {
		c.Prefix = p
	} else {
		c.Prefix = c.Prefix + c.Separator + p
	}
	return c
}

func (c Config) WithSeparator(sep string) Config {
	c.Separator = sep
	return c
}

func (c Config) WithDefaultTTL(d time.Duration) Config {
	c.DefaultTTL = d
	return c
}

func (c Config) WithLogging(a Actions) Config {
	c.Logged = a
	return c
}

func (c Config) WithAllowance(a Actions) Config {
	c.Allowed = a
	return c
}

func (c Config) Validate() error {
	if c.DefaultTTL < 0 {
		return ErrNegativeTTL
	}
	return nil
}

type fileActions struct {
	Read   *bool `yaml:"read"`
	Write  *bool `yaml:"write"`
	Remove *bool `yaml:"remove"`
}

func (f fileActions) apply(a Actions) Actions {
	if f.Read != nil {
		a.Read = *f.Read
	}
	if f.Write != nil {
		a.Write = *f.Write
	}
	if f.Remove != nil {
		a.Remove = *f.Remove
	}
	return a
}

type fileConfig struct {
	Separator            *string     `yaml:"separator"`
	DefaultExpirySeconds int64       `yaml:"defaultExpirySeconds"`
	Prefix               string      `yaml:"prefix"`
	Allowed              fileActions `yaml:"allowed"`
	Logged               fileActions `yaml:"logged"`
}

// ParseConfig reads a YAML document:
//
//	separator: ":"
//	defaultExpirySeconds: 60
//	prefix: user
//	allowed: {read: true, write: true, remove: true}
//	logged: {read: false, write: false, remove: false}
//
// Omitted keys keep DefaultConfig values. Unknown keys are rejected.
func ParseConfig(b []byte) (Config, error) {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("aside: parse config: %w", err)
	}

	cfg := DefaultConfig()
	if fc.Separator != nil {
		cfg.Separator = *fc.Separator
	}
	if fc.DefaultExpirySeconds < 0 {
		return Config{}, ErrNegativeTTL
	}
	cfg.DefaultTTL = time.Duration(fc.DefaultExpirySeconds) * time.Second
	cfg.Prefix = fc.Prefix
	cfg.Allowed = fc.Allowed.apply(cfg.Allowed)
	cfg.Logged = fc.Logged.apply(cfg.Logged)
	return cfg, nil
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("aside: load config: %w", err)
	}
	return ParseConfig(b)
}
