package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dualsub/internal/services"
)

const manifestYAML = `
shows:
  - id: "100"
    title: Example Show
    year: 2020
    episodes:
      - id: "102"
        title: Second
        season: 1
        episode: 2
        file: /media/show/S01E02.mkv
        external:
          - path: /media/show/S01E02.en.srt
            language: en
      - id: "101"
        title: Pilot
        season: 1
        episode: 1
        file: /media/show/S01E01.mkv
        embedded:
          - index: 3
            language_code: fre
            codec: subrip
movies:
  - id: "200"
    title: Example Movie
    file: /media/movie.mkv
`

func TestManifestCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifestYAML), 0o644))
	m, err := LoadManifest(path, nil)
	require.NoError(t, err)
	ctx := context.Background()

	libs, err := m.Libraries(ctx, "")
	require.NoError(t, err)
	assert.Len(t, libs, 2)

	show, err := m.Show(ctx, "", "100")
	require.NoError(t, err)
	assert.Equal(t, Show{ID: "100", Title: "Example Show", Year: 2020}, show)

	episodes, err := m.Episodes(ctx, "", "100")
	require.NoError(t, err)
	require.Len(t, episodes, 2)
	assert.Equal(t, "101", episodes[0].ID)
	assert.Equal(t, "Example Show", episodes[0].Show)
	assert.True(t, episodes[0].HasLanguage("fr"))
	assert.True(t, episodes[1].HasLanguage("eng"))

	movies, err := m.Movies(ctx, "", MoviesLibraryID)
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, "Example Movie", movies[0].Label())

	_, err = m.Show(ctx, "", "nope")
	assert.ErrorIs(t, err, services.ErrNotFound)
	_, err = m.Movies(ctx, "", "shows")
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestParseManifestRejectsBadInput(t *testing.T) {
	_, err := ParseManifest([]byte("shows: [unterminated"))
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = ParseManifest([]byte("shows:\n  - title: No ID\n"))
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = ParseManifest([]byte("shows:\n  - id: a\n  - id: a\n"))
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.ErrorIs(t, err, services.ErrConfiguration)
}

func TestManifestMoviesThroughCatalog(t *testing.T) {
	m, err := ParseManifest([]byte(manifestYAML))
	require.NoError(t, err)
	var cat Catalog = m
	ctx := context.Background()

	libs, err := cat.Libraries(ctx, "")
	require.NoError(t, err)
	require.Len(t, libs, 2)
	assert.Equal(t, MoviesLibraryID, libs[1].ID)

	movies, err := cat.Movies(ctx, "", libs[1].ID)
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, "200", movies[0].ID)
	assert.Equal(t, "/media/movie.mkv", movies[0].FilePath)

	movies[0].Title = "changed"
	again, err := cat.Movies(ctx, "", MoviesLibraryID)
	require.NoError(t, err)
	assert.Equal(t, "Example Movie", again[0].Title)

	onlyShows, err := ParseManifest([]byte("shows:\n  - id: \"1\"\n    title: A\n"))
	require.NoError(t, err)
	libs, err = onlyShows.Libraries(ctx, "")
	require.NoError(t, err)
	assert.Len(t, libs, 1)
}
