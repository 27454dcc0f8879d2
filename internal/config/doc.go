// Package config loads, validates, and normalizes daemon configuration.
// Values come from a TOML file layered with environment overrides (including
// a .env file when present), mirroring how the daemon is deployed in
// containers.
package config
