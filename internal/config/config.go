package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/reactive/internal/errors"
	"github.com/vango-dev/reactive/pkg/reactive"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "reactive.json"

	DefaultHost        = "localhost"
	DefaultPort        = 7070
	DefaultTick        = "1s"
	DefaultEventBuffer = 256
	DefaultNamespace   = "reactive"
	DefaultTracerName  = "reactive"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

// Config is the content of reactive.json.
type Config struct {
	Runtime RuntimeConfig `json:"runtime"`
	Inspect InspectConfig `json:"inspect"`
	Metrics MetricsConfig `json:"metrics"`
	Tracing TracingConfig `json:"tracing"`
	Log     LogConfig     `json:"log"`

	configPath string
}

// RuntimeConfig holds the options of every Runtime the tools create.
type RuntimeConfig struct {
	// MaxEffectReruns is the per-update rerun limit of a single effect.
	MaxEffectReruns int `json:"maxEffectReruns,omitempty"`

	// DisposePolicy is "log" or "error".
	DisposePolicy string `json:"disposePolicy,omitempty"`

	// SkipEqualWrites makes signals drop writes of an equal value by
	// default.
	SkipEqualWrites bool `json:"skipEqualWrites,omitempty"`

	Debug bool `json:"debug,omitempty"`
}

// InspectConfig configures the inspector server.
type InspectConfig struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`

	// Tick is how often the inspected demo graph is updated, as a Go
	// duration string.
	Tick string `json:"tick,omitempty"`

	// EventBuffer is the number of events queued per stream client before
	// events are dropped for it.
	EventBuffer int `json:"eventBuffer,omitempty"`
}

// MetricsConfig configures the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace,omitempty"`
	Subsystem string `json:"subsystem,omitempty"`
}

// TracingConfig configures OpenTelemetry spans.
type TracingConfig struct {
	Enabled    bool   `json:"enabled"`
	TracerName string `json:"tracerName,omitempty"`
}

// LogConfig configures the slog logger of the tools.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// New returns a Config with every default filled in.
func New() *Config {
	c := &Config{
		Metrics: MetricsConfig{Enabled: true},
	}
	c.applyDefaults()
	return c
}

// Load reads reactive.json from dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads and validates the configuration at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("R101").
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path)).
				WithSuggestion("Run 'reactive config init' to create one")
		}
		return nil, errors.New("R102").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, parseError(path, data, err)
	}

	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseError(path string, data []byte, err error) error {
	e := errors.New("R102").Wrap(err)

	var syntax *json.SyntaxError
	var typ *json.UnmarshalTypeError
	switch {
	case stderrors.As(err, &syntax):
		e.WithOffset(path, data, syntax.Offset).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
	case stderrors.As(err, &typ):
		e.WithOffset(path, data, typ.Offset).
			WithSuggestion(fmt.Sprintf("%s must be a %s", typ.Field, typ.Type))
	}
	return e
}

// Save writes the configuration back to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return errors.New("R104").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("R104").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Marshal returns the indented JSON form of c with a trailing newline.
func (c *Config) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Path returns the file the config was loaded from, if any.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory of the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

func (c *Config) applyDefaults() {
	if c.Runtime.MaxEffectReruns == 0 {
		c.Runtime.MaxEffectReruns = reactive.DefaultMaxEffectReruns
	}
	if c.Runtime.DisposePolicy == "" {
		c.Runtime.DisposePolicy = reactive.DisposePolicyLog.String()
	}

	if c.Inspect.Host == "" {
		c.Inspect.Host = DefaultHost
	}
	if c.Inspect.Port == 0 {
		c.Inspect.Port = DefaultPort
	}
	if c.Inspect.Tick == "" {
		c.Inspect.Tick = DefaultTick
	}
	if c.Inspect.EventBuffer == 0 {
		c.Inspect.EventBuffer = DefaultEventBuffer
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = DefaultTracerName
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// Validate checks every value against its accepted range.
func (c *Config) Validate() error {
	if c.Runtime.MaxEffectReruns < 1 {
		return c.invalid("runtime.maxEffectReruns must be at least 1")
	}
	if _, ok := reactive.ParseDisposePolicy(c.Runtime.DisposePolicy); !ok {
		return c.invalid(`runtime.disposePolicy must be "log" or "error"`)
	}
	if c.Inspect.Port < 0 || c.Inspect.Port > 65535 {
		return c.invalid("inspect.port must be between 0 and 65535")
	}
	if d, err := time.ParseDuration(c.Inspect.Tick); err != nil || d <= 0 {
		return c.invalid(`inspect.tick must be a positive duration such as "500ms"`)
	}
	if c.Inspect.EventBuffer < 1 {
		return c.invalid("inspect.eventBuffer must be at least 1")
	}
	if _, ok := parseLevel(c.Log.Level); !ok {
		return c.invalid("log.level must be debug, info, warn or error")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return c.invalid(`log.format must be "text" or "json"`)
	}
	return nil
}

func (c *Config) invalid(detail string) error {
	e := errors.New("R103").WithDetail(detail)
	if c.configPath != "" {
		e.Location = &errors.Location{File: c.configPath}
	}
	return e
}

// RuntimeOptions converts the runtime section into reactive options. The
// config is expected to be valid.
func (c *Config) RuntimeOptions() []reactive.Option {
	policy, _ := reactive.ParseDisposePolicy(c.Runtime.DisposePolicy)
	return []reactive.Option{
		reactive.WithMaxEffectReruns(c.Runtime.MaxEffectReruns),
		reactive.WithDisposePolicy(policy),
		reactive.WithEqualitySkip(c.Runtime.SkipEqualWrites),
		reactive.WithDebug(c.Runtime.Debug),
	}
}

// InspectAddress returns host:port of the inspector.
func (c *Config) InspectAddress() string {
	return net.JoinHostPort(c.Inspect.Host, strconv.Itoa(c.Inspect.Port))
}

// TickInterval returns the parsed inspect.tick, or one second when it is
// invalid.
func (c *Config) TickInterval() time.Duration {
	d, err := time.ParseDuration(c.Inspect.Tick)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// Logger builds the logger described by the log section, writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Runtime.Debug {
		opts.Level = slog.LevelDebug
	}

	var h slog.Handler
	if c.Log.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Exists reports whether dir holds a reactive.json.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up from startDir to the first directory holding a
// reactive.json.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("R101").
				WithSuggestion("Run 'reactive config init' to create one")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads the nearest reactive.json above the working
// directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}
	return Load(root)
}

// LoadOrDefault loads the nearest reactive.json and falls back to the
// defaults when there is none. Other errors are returned.
func LoadOrDefault() (*Config, error) {
	cfg, err := LoadFromWorkingDir()
	if err != nil {
		if errors.Code(err) == "R101" {
			return New(), nil
		}
		return nil, err
	}
	return cfg, nil
}
