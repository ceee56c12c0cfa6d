package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"dualsub/internal/services"
)

// Manifest is an offline catalog loaded from YAML:
//
//	shows:
//	  - id: "100"
//	    title: Example Show
//	    episodes:
//	      - id: "101"
//	        title: Pilot
//	        season: 1
//	        episode: 1
//	        file: /media/Example Show/S01E01.mkv
//	movies:
//	  - id: "200"
//	    title: Example Movie
//	    file: /media/Example Movie.mkv
//
// Tokens are ignored.
type Manifest struct {
	Shows      []ManifestShow `yaml:"shows"`
	MovieItems []Item         `yaml:"movies"`
	scanner    *Scanner
}

// ManifestShow is a show entry in a manifest.
type ManifestShow struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Year     int    `yaml:"year"`
	Episodes []Item `yaml:"episodes"`
}

// MoviesLibraryID is the library ID under which manifest movies are listed.
const MoviesLibraryID = "movies"

// LoadManifest reads a manifest file. scanner may be nil.
func LoadManifest(path string, scanner *Scanner) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "manifest", "load", "read manifest", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	m.scanner = scanner
	return m, nil
}

// ParseManifest decodes manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, services.Wrap(services.ErrValidation, "manifest", "parse", "invalid manifest yaml", err)
	}
	seen := make(map[string]struct{})
	for _, show := range m.Shows {
		if strings.TrimSpace(show.ID) == "" {
			return nil, services.Wrap(services.ErrValidation, "manifest", "parse",
				fmt.Sprintf("show %q has no id", show.Title), nil)
		}
		if _, dup := seen[show.ID]; dup {
			return nil, services.Wrap(services.ErrValidation, "manifest", "parse",
				fmt.Sprintf("duplicate show id %s", show.ID), nil)
		}
		seen[show.ID] = struct{}{}
	}
	return &m, nil
}

// Libraries returns a "shows" library and, when movies exist, a "movies" one.
func (m *Manifest) Libraries(context.Context, string) ([]Library, error) {
	libs := []Library{{ID: "shows", Title: "Shows", Type: "show"}}
	if len(m.MovieItems) > 0 {
		libs = append(libs, Library{ID: MoviesLibraryID, Title: "Movies", Type: "movie"})
	}
	return libs, nil
}

// Show looks up a show by ID.
func (m *Manifest) Show(_ context.Context, _ string, showID string) (Show, error) {
	show, ok := m.find(showID)
	if !ok {
		return Show{}, services.Wrap(services.ErrNotFound, "manifest", "show", fmt.Sprintf("show %s", showID), nil)
	}
	return Show{ID: show.ID, Title: show.Title, Year: show.Year}, nil
}

// Episodes returns a show's episodes in season/episode order.
func (m *Manifest) Episodes(ctx context.Context, _ string, showID string) ([]Item, error) {
	show, ok := m.find(showID)
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "manifest", "episodes", fmt.Sprintf("show %s", showID), nil)
	}
	items := make([]Item, len(show.Episodes))
	copy(items, show.Episodes)
	for i := range items {
		if items[i].Show == "" {
			items[i].Show = show.Title
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Season != items[j].Season {
			return items[i].Season < items[j].Season
		}
		return items[i].Episode < items[j].Episode
	})
	return m.enrich(ctx, items), nil
}

// Movies returns the manifest's movies for the movies library.
func (m *Manifest) Movies(ctx context.Context, _ string, libraryID string) ([]Item, error) {
	if libraryID != MoviesLibraryID {
		return nil, services.Wrap(services.ErrNotFound, "manifest", "movies", fmt.Sprintf("library %s", libraryID), nil)
	}
	items := make([]Item, len(m.MovieItems))
	copy(items, m.MovieItems)
	return m.enrich(ctx, items), nil
}

func (m *Manifest) find(id string) (ManifestShow, bool) {
	for _, show := range m.Shows {
		if show.ID == id {
			return show, true
		}
	}
	return ManifestShow{}, false
}

func (m *Manifest) enrich(ctx context.Context, items []Item) []Item {
	if m.scanner == nil {
		return items
	}
	return m.scanner.Enrich(ctx, items)
}
