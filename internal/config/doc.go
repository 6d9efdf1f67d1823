// Package config loads, validates, and defaults the worker configuration from
// a TOML file with environment overrides for secrets and endpoints.
package config
