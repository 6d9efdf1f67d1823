package worker

import "spool/internal/media/ffprobe"

// inspectSource is swapped out by tests to avoid spawning ffprobe.
var inspectSource = ffprobe.Inspect
