// Package bulk builds dual-language subtitles for every eligible episode of
// a show.
//
// A Pipeline looks episodes up in a catalog, keeps those that carry both
// requested languages, and processes them one at a time: resolve a subtitle
// source per language (an external file, else an embedded stream extracted
// with ffmpeg), synchronize the pair, compose the two tracks and write
// "{base}.dual.{primary}-{secondary}.srt" beside the video. Item failures
// are recorded and the batch continues; cancellation is checked between
// items through the job Reporter.
//
// ProcessPair runs the same sync and compose steps for one explicit pair of
// files and backs the single subtitle sync job.
package bulk
