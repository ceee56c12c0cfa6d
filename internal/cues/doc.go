// Package cues models timed subtitle cues and reads and writes them as SRT.
//
// Cue text stores line breaks as the `\N` marker so composition can join
// tracks without caring about the on-disk newline convention. ReadFile
// decodes UTF-8, UTF-16 (with BOM) and legacy Windows-1252 files.
package cues
