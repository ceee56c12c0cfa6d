// Package aligner wraps the ffsubsync command-line tool.
//
// Align never returns a Go error for the expected failure modes (tool
// missing, timeout, non-zero exit, empty output). Callers inspect
// Result.Success and move on to their next strategy. The subprocess runs in
// its own process group so a timeout kills ffsubsync together with the
// ffmpeg children it spawns.
package aligner
