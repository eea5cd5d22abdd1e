// Package config provides configuration loading and validation for Audiva.
// It handles YAML-based configuration layered over built-in defaults, with
// per-section validation and a small set of environment overrides.
package config
