package catalog

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"dualsub/internal/services"
)

const (
	plexUserAgent          = "dualsub/1.0"
	plexStreamTypeSubtitle = 3
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Plex reads a Plex Media Server library over its XML API.
type Plex struct {
	baseURL string
	client  HTTPDoer
	timeout time.Duration
	scanner *Scanner
}

// PlexOption configures a Plex catalog.
type PlexOption func(*Plex)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client HTTPDoer) PlexOption {
	return func(p *Plex) {
		if client != nil {
			p.client = client
		}
	}
}

// WithTimeout sets the request timeout of the default client.
func WithTimeout(timeout time.Duration) PlexOption {
	return func(p *Plex) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithScanner enriches listed items with on-disk subtitle discovery.
func WithScanner(scanner *Scanner) PlexOption {
	return func(p *Plex) {
		p.scanner = scanner
	}
}

// NewPlex constructs a Plex catalog for the server at baseURL.
func NewPlex(baseURL string, opts ...PlexOption) *Plex {
	p := &Plex{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: p.timeout}
	}
	return p
}

type plexContainer struct {
	Directories []plexDirectory `xml:"Directory"`
	Videos      []plexVideo     `xml:"Video"`
}

type plexDirectory struct {
	Key       string `xml:"key,attr"`
	RatingKey string `xml:"ratingKey,attr"`
	Title     string `xml:"title,attr"`
	Type      string `xml:"type,attr"`
	Year      int    `xml:"year,attr"`
}

type plexVideo struct {
	RatingKey        string      `xml:"ratingKey,attr"`
	Title            string      `xml:"title,attr"`
	Type             string      `xml:"type,attr"`
	Index            int         `xml:"index,attr"`
	ParentIndex      int         `xml:"parentIndex,attr"`
	GrandparentTitle string      `xml:"grandparentTitle,attr"`
	Media            []plexMedia `xml:"Media"`
}

type plexMedia struct {
	Parts []plexPart `xml:"Part"`
}

type plexPart struct {
	File    string       `xml:"file,attr"`
	Streams []plexStream `xml:"Stream"`
}

type plexStream struct {
	StreamType   int    `xml:"streamType,attr"`
	Index        string `xml:"index,attr"`
	Key          string `xml:"key,attr"`
	Language     string `xml:"language,attr"`
	LanguageCode string `xml:"languageCode,attr"`
	Codec        string `xml:"codec,attr"`
	Forced       string `xml:"forced,attr"`
	Title        string `xml:"title,attr"`
}

// Libraries lists library sections.
func (p *Plex) Libraries(ctx context.Context, token string) ([]Library, error) {
	var container plexContainer
	if err := p.get(ctx, token, "libraries", "/library/sections", &container); err != nil {
		return nil, err
	}
	out := make([]Library, 0, len(container.Directories))
	for _, dir := range container.Directories {
		if dir.Key == "" {
			continue
		}
		out = append(out, Library{ID: dir.Key, Title: dir.Title, Type: dir.Type})
	}
	return out, nil
}

// Show fetches a show's metadata.
func (p *Plex) Show(ctx context.Context, token, showID string) (Show, error) {
	var container plexContainer
	if err := p.get(ctx, token, "show", "/library/metadata/"+url.PathEscape(showID), &container); err != nil {
		return Show{}, err
	}
	for _, dir := range container.Directories {
		if dir.Type == "" || dir.Type == "show" {
			return Show{ID: firstNonEmpty(dir.RatingKey, showID), Title: dir.Title, Year: dir.Year}, nil
		}
	}
	return Show{}, services.Wrap(services.ErrNotFound, "plex", "show", fmt.Sprintf("show %s", showID), nil)
}

// Episodes lists every episode of a show in season/episode order.
func (p *Plex) Episodes(ctx context.Context, token, showID string) ([]Item, error) {
	var container plexContainer
	if err := p.get(ctx, token, "episodes", "/library/metadata/"+url.PathEscape(showID)+"/allLeaves", &container); err != nil {
		return nil, err
	}
	items, err := p.itemsFromVideos(ctx, token, container.Videos)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Season != items[j].Season {
			return items[i].Season < items[j].Season
		}
		return items[i].Episode < items[j].Episode
	})
	return items, nil
}

// Movies lists the movies of a library section.
func (p *Plex) Movies(ctx context.Context, token, libraryID string) ([]Item, error) {
	var container plexContainer
	if err := p.get(ctx, token, "movies", "/library/sections/"+url.PathEscape(libraryID)+"/all", &container); err != nil {
		return nil, err
	}
	return p.itemsFromVideos(ctx, token, container.Videos)
}

func (p *Plex) itemsFromVideos(ctx context.Context, token string, videos []plexVideo) ([]Item, error) {
	items := make([]Item, 0, len(videos))
	for _, video := range videos {
		if !hasStreams(video) {
			detailed, err := p.metadata(ctx, token, video.RatingKey)
			if err != nil {
				return nil, err
			}
			if detailed != nil {
				video.Media = detailed.Media
			}
		}
		items = append(items, itemFromVideo(video))
	}
	if p.scanner != nil {
		items = p.scanner.Enrich(ctx, items)
	}
	return items, nil
}

func (p *Plex) metadata(ctx context.Context, token, ratingKey string) (*plexVideo, error) {
	var container plexContainer
	if err := p.get(ctx, token, "metadata", "/library/metadata/"+url.PathEscape(ratingKey), &container); err != nil {
		return nil, err
	}
	if len(container.Videos) == 0 {
		return nil, nil
	}
	return &container.Videos[0], nil
}

func hasStreams(video plexVideo) bool {
	for _, media := range video.Media {
		for _, part := range media.Parts {
			if len(part.Streams) > 0 {
				return true
			}
		}
	}
	return false
}

func itemFromVideo(video plexVideo) Item {
	item := Item{
		ID:      video.RatingKey,
		Title:   video.Title,
		Show:    video.GrandparentTitle,
		Season:  video.ParentIndex,
		Episode: video.Index,
	}
	if video.Type == "movie" {
		item.Season, item.Episode = 0, 0
	}
	if len(video.Media) == 0 || len(video.Media[0].Parts) == 0 {
		return item
	}
	part := video.Media[0].Parts[0]
	item.FilePath = part.File
	item.Embedded = embeddedStreams(part.Streams)
	return item
}

// embeddedStreams keeps subtitle streams stored inside the container:
// external sidecars carry a key and no usable index.
func embeddedStreams(streams []plexStream) []EmbeddedStream {
	var out []EmbeddedStream
	for _, s := range streams {
		if s.StreamType != plexStreamTypeSubtitle || s.Key != "" {
			continue
		}
		index, err := strconv.Atoi(strings.TrimSpace(s.Index))
		if err != nil || index < 0 {
			continue
		}
		out = append(out, EmbeddedStream{
			Index:        index,
			Language:     s.Language,
			LanguageCode: s.LanguageCode,
			Codec:        s.Codec,
			Forced:       s.Forced == "1" || strings.EqualFold(s.Forced, "true"),
			Title:        s.Title,
		})
	}
	return out
}

func (p *Plex) get(ctx context.Context, token, operation, path string, out any) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return services.Wrap(services.ErrValidation, "plex", operation, "plex token required", nil)
	}
	if p.baseURL == "" {
		return services.Wrap(services.ErrConfiguration, "plex", operation, "plex url not configured", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "plex", operation, "build request", err)
	}
	req.Header.Set("X-Plex-Token", token)
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("User-Agent", plexUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrTransient, "plex", operation, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return services.Wrap(services.ErrValidation, "plex", operation, "token rejected", nil)
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return services.Wrap(services.ErrNotFound, "plex", operation, path, nil)
	case resp.StatusCode >= http.StatusBadRequest:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return services.Wrap(services.ErrTransient, "plex", operation,
			fmt.Sprintf("returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	if err := xml.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return services.Wrap(services.ErrTransient, "plex", operation, "decode response", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
