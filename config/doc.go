// Package config provides dot-notation addressable configuration loaded from
// layered sources with fixed precedence: built-in defaults, an optional YAML
// or JSON file, an optional dotenv file, prefixed environment variables, and
// finally programmatic Set calls.
//
// A *Config is always constructed explicitly and passed to the components
// that need it; there is no package-level singleton.
package config
