package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"dualsub/internal/language"
)

// Catalog is a source of shows, episodes and movies.
type Catalog interface {
	Libraries(ctx context.Context, token string) ([]Library, error)
	Show(ctx context.Context, token, showID string) (Show, error)
	Episodes(ctx context.Context, token, showID string) ([]Item, error)
	Movies(ctx context.Context, token, libraryID string) ([]Item, error)
}

// Library is a top-level section of the catalog.
type Library struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	Type  string `json:"type" yaml:"type"`
}

// Show is a series.
type Show struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	Year  int    `json:"year,omitempty" yaml:"year"`
}

// EmbeddedStream is a subtitle stream inside the video container.
type EmbeddedStream struct {
	Index        int    `json:"index" yaml:"index"`
	Language     string `json:"language" yaml:"language"`
	LanguageCode string `json:"language_code" yaml:"language_code"`
	Codec        string `json:"codec" yaml:"codec"`
	Forced       bool   `json:"forced" yaml:"forced"`
	Title        string `json:"title,omitempty" yaml:"title"`
}

// Code returns the stream's normalized language code.
func (s EmbeddedStream) Code() string {
	if code := language.Normalize(s.LanguageCode); code != "" {
		return code
	}
	return language.Normalize(s.Language)
}

// ExternalSubtitle is a subtitle file stored next to the video.
type ExternalSubtitle struct {
	Path     string `json:"path" yaml:"path"`
	Language string `json:"language" yaml:"language"`
	Forced   bool   `json:"forced" yaml:"forced"`
	SDH      bool   `json:"sdh" yaml:"sdh"`
}

// Code returns the file's normalized language code.
func (s ExternalSubtitle) Code() string {
	return language.Normalize(s.Language)
}

// Item is one episode or movie.
type Item struct {
	ID       string             `json:"id" yaml:"id"`
	Title    string             `json:"title" yaml:"title"`
	Show     string             `json:"show,omitempty" yaml:"show"`
	Season   int                `json:"season,omitempty" yaml:"season"`
	Episode  int                `json:"episode,omitempty" yaml:"episode"`
	FilePath string             `json:"file_path" yaml:"file"`
	Embedded []EmbeddedStream   `json:"embedded,omitempty" yaml:"embedded"`
	External []ExternalSubtitle `json:"external,omitempty" yaml:"external"`
}

// Label renders "S01E02: Title" for episodes and the title for movies.
func (it Item) Label() string {
	if it.Season == 0 && it.Episode == 0 {
		return it.Title
	}
	return fmt.Sprintf("S%02dE%02d: %s", it.Season, it.Episode, it.Title)
}

// EpisodeCode renders "S01E02", or "" for movies.
func (it Item) EpisodeCode() string {
	if it.Season == 0 && it.Episode == 0 {
		return ""
	}
	return fmt.Sprintf("S%02dE%02d", it.Season, it.Episode)
}

// BaseName is the video filename without extension.
func (it Item) BaseName() string {
	name := filepath.Base(it.FilePath)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Languages returns the union of external and embedded language codes.
func (it Item) Languages() []string {
	codes := make([]string, 0, len(it.External)+len(it.Embedded))
	for _, ext := range it.External {
		codes = append(codes, ext.Code())
	}
	for _, emb := range it.Embedded {
		codes = append(codes, emb.Code())
	}
	return language.NormalizeList(codes)
}

// HasLanguage reports whether any source carries lang. A plain "zh"
// request matches either Chinese variant.
func (it Item) HasLanguage(lang string) bool {
	want := language.Normalize(lang)
	if want == "" {
		return false
	}
	loose := isBareChinese(lang)
	for _, code := range it.Languages() {
		if code == want || (loose && language.SameBase(code, want)) {
			return true
		}
	}
	return false
}

// ExternalFor returns the best external file for lang.
func (it Item) ExternalFor(lang string) (ExternalSubtitle, bool) {
	candidates := it.ExternalCandidates(lang)
	if len(candidates) == 0 {
		return ExternalSubtitle{}, false
	}
	return candidates[0], true
}

// ExternalCandidates returns every external file for lang, best first: full
// subtitles, then SDH, then forced-only tracks. Ties keep catalog order.
func (it Item) ExternalCandidates(lang string) []ExternalSubtitle {
	want := language.Normalize(lang)
	loose := isBareChinese(lang)
	var out []ExternalSubtitle
	for _, ext := range it.External {
		code := ext.Code()
		if code != want && !(loose && language.SameBase(code, want)) {
			continue
		}
		out = append(out, ext)
	}
	sort.SliceStable(out, func(i, j int) bool { return externalRank(out[i]) > externalRank(out[j]) })
	return out
}

func externalRank(ext ExternalSubtitle) int {
	switch {
	case ext.Forced:
		return 0
	case ext.SDH:
		return 1
	}
	return 2
}

// EmbeddedFor returns the first non-forced embedded stream for lang, falling
// back to a forced stream.
func (it Item) EmbeddedFor(lang string) (EmbeddedStream, bool) {
	want := language.Normalize(lang)
	loose := isBareChinese(lang)
	var forced *EmbeddedStream
	for i := range it.Embedded {
		s := it.Embedded[i]
		code := s.Code()
		if code != want && !(loose && language.SameBase(code, want)) {
			continue
		}
		if !s.Forced {
			return s, true
		}
		if forced == nil {
			forced = &it.Embedded[i]
		}
	}
	if forced != nil {
		return *forced, true
	}
	return EmbeddedStream{}, false
}

func isBareChinese(lang string) bool {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "zh", "zho", "chi", "chinese":
		return true
	}
	return false
}
