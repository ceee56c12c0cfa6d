package workflow

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"dualsub/internal/bulk"
	"dualsub/internal/jobs"
	"dualsub/internal/services"
)

// BulkRequest asks for dual subtitles across a show.
type BulkRequest struct {
	ShowID            string        `json:"show_id" yaml:"show_id"`
	ShowTitle         string        `json:"show_title,omitempty" yaml:"show_title"`
	PrimaryLanguage   string        `json:"primary_language,omitempty" yaml:"primary_language"`
	SecondaryLanguage string        `json:"secondary_language,omitempty" yaml:"secondary_language"`
	Token             string        `json:"token,omitempty" yaml:"token"`
	Options           *bulk.Options `json:"options,omitempty" yaml:"options"`
}

// SyncRequest asks for one dual subtitle from two subtitle files.
type SyncRequest struct {
	PrimaryPath       string        `json:"primary_path" yaml:"primary_path"`
	SecondaryPath     string        `json:"secondary_path" yaml:"secondary_path"`
	VideoPath         string        `json:"video_path,omitempty" yaml:"video_path"`
	OutputPath        string        `json:"output_path,omitempty" yaml:"output_path"`
	PrimaryLanguage   string        `json:"primary_language,omitempty" yaml:"primary_language"`
	SecondaryLanguage string        `json:"secondary_language,omitempty" yaml:"secondary_language"`
	Options           *bulk.Options `json:"options,omitempty" yaml:"options"`
}

// ExtractionRequest asks for one embedded stream as SRT.
type ExtractionRequest struct {
	VideoPath   string `json:"video_path" yaml:"video_path"`
	StreamIndex int    `json:"stream_index" yaml:"stream_index"`
	Codec       string `json:"codec,omitempty" yaml:"codec"`
	Language    string `json:"language,omitempty" yaml:"language"`
	OutputPath  string `json:"output_path,omitempty" yaml:"output_path"`
}

// Request is the typed envelope accepted by Submit. Exactly the section
// matching Type must be set.
type Request struct {
	Type       jobs.Type          `json:"type" yaml:"type"`
	Bulk       *BulkRequest       `json:"bulk,omitempty" yaml:"bulk"`
	Sync       *SyncRequest       `json:"sync,omitempty" yaml:"sync"`
	Extraction *ExtractionRequest `json:"extraction,omitempty" yaml:"extraction"`
}

// DecodeJSON parses a JSON request envelope.
func DecodeJSON(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, services.Wrap(services.ErrValidation, "workflow", "decode", "invalid request json", err)
	}
	return req, req.Validate()
}

// DecodeYAML parses a YAML request envelope.
func DecodeYAML(data []byte) (Request, error) {
	var req Request
	if err := yaml.Unmarshal(data, &req); err != nil {
		return Request{}, services.Wrap(services.ErrValidation, "workflow", "decode", "invalid request yaml", err)
	}
	return req, req.Validate()
}

// Validate checks that the section for Type is present and complete.
func (r Request) Validate() error {
	invalid := func(format string, args ...any) error {
		return services.Wrap(services.ErrValidation, "workflow", "validate", fmt.Sprintf(format, args...), nil)
	}
	switch r.Type {
	case jobs.TypeBulkDualSubtitle:
		if r.Bulk == nil {
			return invalid("%s request requires a bulk section", r.Type)
		}
		if strings.TrimSpace(r.Bulk.ShowID) == "" {
			return invalid("show_id is required")
		}
	case jobs.TypeSingleSubtitleSync:
		if r.Sync == nil {
			return invalid("%s request requires a sync section", r.Type)
		}
		if strings.TrimSpace(r.Sync.PrimaryPath) == "" || strings.TrimSpace(r.Sync.SecondaryPath) == "" {
			return invalid("primary_path and secondary_path are required")
		}
	case jobs.TypeSubtitleExtraction:
		if r.Extraction == nil {
			return invalid("%s request requires an extraction section", r.Type)
		}
		if strings.TrimSpace(r.Extraction.VideoPath) == "" {
			return invalid("video_path is required")
		}
		if r.Extraction.StreamIndex < 0 {
			return invalid("stream_index must be >= 0")
		}
	case "":
		return invalid("type is required")
	default:
		return invalid("unknown job type %q", r.Type)
	}
	return nil
}
