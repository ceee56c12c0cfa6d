// Package ffprobe decodes ffprobe JSON output for the two questions the
// subtitle pipeline asks of a video: how long it runs and which subtitle
// streams it carries.
package ffprobe
