// Package config loads, normalizes, and validates the TOML configuration
// shared by the labelpress daemon, the sender, and the CLI.
//
// Every component receives an explicit *Config at construction; nothing reads
// global state. Paths are tilde-expanded and made absolute during Load, so
// downstream code can treat them as ready to use.
package config
