package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/agenticsdlc/agenticsdlc/core"
)

// DefaultEnvPrefix is the prefix recognized on environment variable overrides.
const DefaultEnvPrefix = "ASDLC_"

// Options configures construction of a Config.
type Options struct {
	// Path points at an optional YAML (.yaml/.yml) or JSON (.json)
	// configuration file.
	Path string

	// DotenvPath points at an optional dotenv file whose entries are treated
	// like environment variables. Real process environment variables take
	// precedence over dotenv entries.
	DotenvPath string

	// EnvPrefix selects which environment variables overlay the
	// configuration. Defaults to DefaultEnvPrefix. After stripping the
	// prefix, a double underscore separates nesting levels and the key is
	// lowercased: ASDLC_AGENT__MAX_ITERATIONS -> agent.max_iterations.
	EnvPrefix string
}

// Config is an explicitly constructed, injected configuration tree addressed
// with dot notation. Sources are layered with fixed precedence:
//
//	defaults < file < dotenv < environment < programmatic Set
//
// Config is never exposed as a package-level singleton; every component that
// needs configuration receives a *Config so tests can instantiate isolated
// configurations in parallel. All methods are safe for concurrent use.
type Config struct {
	mu     sync.RWMutex
	values map[string]any
}

// New builds a Config from defaults plus the configured overlay sources.
func New(optFns ...func(o *Options)) (*Config, error) {
	opts := Options{EnvPrefix: DefaultEnvPrefix}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = DefaultEnvPrefix
	}

	c := &Config{values: defaults()}

	if opts.Path != "" {
		fileCfg, err := loadFile(opts.Path)
		if err != nil {
			return nil, err
		}
		c.values = mergeMaps(c.values, fileValues(fileCfg))
	}

	env := map[string]string{}
	if opts.DotenvPath != "" {
		dotenv, err := godotenv.Read(opts.DotenvPath)
		if err != nil {
			return nil, core.NewConfigurationError("failed to read dotenv file").
				WithContext("path", opts.DotenvPath).
				Wrap(err)
		}
		for k, v := range dotenv {
			env[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	c.values = mergeMaps(c.values, fromEnv(env, opts.EnvPrefix))

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// defaults returns the lowest-precedence configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"logging": map[string]any{
			"level":  "info",
			"format": "json",
		},
		"workflow": map[string]any{
			"timeout": 300,
		},
		"agent": map[string]any{
			"max_iterations": 10,
		},
		"engine": map[string]any{
			"max_concurrent_runs": 10,
			"max_parallel_steps":  4,
			"event_buffer_size":   100,
		},
	}
}

func loadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewConfigurationError("failed to read config file").
			WithContext("path", path).
			Wrap(err)
	}

	out := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, core.NewConfigurationError("malformed YAML config file").
				WithContext("path", path).
				Wrap(err)
		}
	case ".json":
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, core.NewConfigurationError("malformed JSON config file").
				WithContext("path", path).
				Wrap(err)
		}
	default:
		return nil, core.NewConfigurationError("unsupported config file extension").
			WithContext("path", path).
			WithContext("extension", ext)
	}
	return out, nil
}

// fileValues normalizes nested YAML maps (which may decode with interface
// keys) into string-keyed maps.
func fileValues(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return fileValues(t)
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprintf("%v", k)] = normalize(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = normalize(val)
		}
		return s
	default:
		return v
	}
}

// fromEnv converts prefixed environment entries into a nested overlay map.
// Values are parsed as YAML scalars so "true", "42" and "1.5" arrive typed.
func fromEnv(env map[string]string, prefix string) map[string]any {
	overlay := map[string]any{}
	for name, raw := range env {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		key := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(name, prefix), "__", "."))
		if key == "" {
			continue
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		setPath(overlay, strings.Split(key, "."), value)
	}
	return overlay
}

func setPath(m map[string]any, path []string, value any) {
	for _, k := range path[:len(path)-1] {
		next, ok := m[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[k] = next
		}
		m = next
	}
	m[path[len(path)-1]] = value
}

// mergeMaps deep-merges override into base, returning a new map. Nested maps
// merge recursively; any other override value replaces the base value.
func mergeMaps(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if bm, ok := out[k].(map[string]any); ok {
			if om, ok := v.(map[string]any); ok {
				out[k] = mergeMaps(bm, om)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// Get returns the value at the dot-notation key, or nil if absent.
func (c *Config) Get(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var value any = c.values
	for _, k := range strings.Split(key, ".") {
		m, ok := value.(map[string]any)
		if !ok {
			return nil
		}
		value, ok = m[k]
		if !ok {
			return nil
		}
	}
	return value
}

// GetString returns the string at key, or def when absent or non-string.
func (c *Config) GetString(key, def string) string {
	if v, ok := c.Get(key).(string); ok {
		return v
	}
	return def
}

// GetInt returns the integer at key, coercing numeric types, or def.
func (c *Config) GetInt(key string, def int) int {
	switch v := c.Get(key).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// GetFloat returns the float at key, coercing numeric types, or def.
func (c *Config) GetFloat(key string, def float64) float64 {
	switch v := c.Get(key).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// GetBool returns the boolean at key, or def when absent or non-boolean.
func (c *Config) GetBool(key string, def bool) bool {
	if v, ok := c.Get(key).(bool); ok {
		return v
	}
	return def
}

// GetDuration interprets the value at key as seconds (numeric) or as a
// time.Duration string ("30s", "5m"), returning def otherwise.
func (c *Config) GetDuration(key string, def time.Duration) time.Duration {
	switch v := c.Get(key).(type) {
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		return def
	default:
		return def
	}
}

// Set stores value at the dot-notation key, creating intermediate maps as
// needed. Programmatic sets take the highest precedence.
func (c *Config) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	setPath(c.values, strings.Split(key, "."), value)
}

// Merge deep-merges the provided map into the configuration. Merging a map
// previously produced by ToMap reproduces an equivalent configuration.
func (c *Config) Merge(other map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = mergeMaps(c.values, fileValues(other))
}

// ToMap returns a deep copy of the configuration tree.
func (c *Config) ToMap() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return deepCopy(c.values)
}

func deepCopy(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if m, ok := v.(map[string]any); ok {
			out[k] = deepCopy(m)
			continue
		}
		if s, ok := v.([]any); ok {
			cp := make([]any, len(s))
			copy(cp, s)
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}

// Validate checks well-known keys against their constraints. Violations are
// reported as validation errors carrying the offending field.
func (c *Config) Validate() error {
	if v := c.GetInt("workflow.timeout", 300); v <= 0 {
		return core.NewValidationError("workflow.timeout must be positive").
			WithContext("field", "workflow.timeout").
			WithContext("value", v)
	}
	if v := c.GetInt("agent.max_iterations", 10); v <= 0 {
		return core.NewValidationError("agent.max_iterations must be positive").
			WithContext("field", "agent.max_iterations").
			WithContext("value", v)
	}
	if v := c.GetInt("engine.max_parallel_steps", 4); v <= 0 {
		return core.NewValidationError("engine.max_parallel_steps must be positive").
			WithContext("field", "engine.max_parallel_steps").
			WithContext("value", v)
	}

	level := c.GetString("logging.level", "info")
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return core.NewValidationError("invalid logging.level").
			WithContext("field", "logging.level").
			WithContext("value", level).
			WithContext("valid", "debug, info, warn, error")
	}

	format := c.GetString("logging.format", "json")
	if format != "json" && format != "text" {
		return core.NewValidationError("invalid logging.format").
			WithContext("field", "logging.format").
			WithContext("value", format).
			WithContext("valid", "json, text")
	}
	return nil
}
