// Package logging builds the slog loggers used across the worker and exposes
// the attribute helpers and standardized field keys stage code logs with.
package logging
