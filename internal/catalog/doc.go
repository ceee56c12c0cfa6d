// Package catalog lists the episodes and movies a batch can process, along
// with the embedded subtitle streams and external subtitle files each one
// carries.
//
// Two implementations exist: a Plex Media Server client speaking the XML
// library API, and a YAML manifest for offline libraries. Both are enriched
// by Scanner, which tags external subtitle files next to each video by their
// filename and can probe videos with ffprobe for embedded streams.
package catalog
