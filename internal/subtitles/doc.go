// Package subtitles normalizes, merges, and generates subtitle tracks for
// processed jobs.
//
// Key responsibilities:
//   - Track normalization: language tags, kind synonyms, label fallbacks.
//   - Deduplication and default-track selection with a bounded track count.
//   - Hybrid merging of caller-supplied and machine-generated track sets with
//     manual precedence.
//   - SRT to WebVTT conversion for caller-supplied caption files.
//   - Driving the external speech-to-text generator subprocess.
package subtitles
