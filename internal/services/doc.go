// Package services defines shared utilities consumed by the worker stages and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job identifiers, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that keep failure messages
//     consistent across stages and classify them for the worker loop.
package services
