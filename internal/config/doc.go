// Package config resolves the backend's settings snapshot from the process
// environment (optionally seeded by a .env dotfile), a YAML file and CLI
// flags. Unset variables always fall back to documented defaults; the result
// is a typed Config that is built once and never mutated.
package config
