// Package search turns parsed queries into ranked song candidates.
package search

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/cantorbot/cantor/pkg/models"
)

const (
	// similarityBPMWindow is the tempo tolerance around a reference song.
	similarityBPMWindow = 20

	// Global sane tempo range used to clamp derived bounds.
	minSaneBPM = 60
	maxSaneBPM = 180
)

// Catalog is the slice of the song store the resolver needs.
type Catalog interface {
	SearchByTheme(ctx context.Context, theme string, limit int) ([]models.Song, error)
	SearchByText(ctx context.Context, query string, limit int) ([]models.Song, error)
	SearchLyrics(ctx context.Context, query string, limit int) ([]models.Song, error)
}

// Resolver executes the staged matching strategy against the catalog.
type Resolver struct {
	catalog    Catalog
	themeLimit int
}

// NewResolver creates a resolver with the given per-theme candidate cap.
func NewResolver(catalog Catalog, themeLimit int) *Resolver {
	return &Resolver{catalog: catalog, themeLimit: themeLimit}
}

// Resolve converts a parsed query plus an exclusion set into a deduplicated
// candidate list and the term that matched. Catalog failures degrade to an
// empty result; callers treat absence as "nothing found", never as an error.
func (r *Resolver) Resolve(ctx context.Context, query models.ParsedQuery, excludedTitles []string) ([]models.Song, string) {
	excluded := make(map[string]bool, len(excludedTitles))
	for _, t := range excludedTitles {
		excluded[t] = true
	}

	themes := query.Themes
	bpmMin, bpmMax := query.BPMMin, query.BPMMax

	// Similarity search reuses the reference song's themes and narrows
	// tempo to a window around the reference.
	if query.SimilarTo != "" {
		ref := r.findReference(ctx, query.SimilarTo)
		if ref != nil {
			excluded[ref.Title] = true
			if len(ref.Themes) > 0 {
				themes = ref.Themes
			}
			if ref.HasBPM() {
				bpmMin = clampBPM(ref.BPM - similarityBPMWindow)
				bpmMax = clampBPM(ref.BPM + similarityBPMWindow)
			}
		} else {
			log.Warn().Str("song", query.SimilarTo).Msg("Reference song not found, falling back to theme search")
		}
	}

	candidates, matched := r.stagedMatch(ctx, themes, query.RawQuery, excluded)
	if len(candidates) == 0 {
		return nil, ""
	}

	if bpmMin > 0 || bpmMax > 0 {
		candidates = filterByBPM(candidates, bpmMin, bpmMax)
	}
	if query.KeyPreference != "" {
		candidates = filterByKey(candidates, query.KeyPreference)
	}

	return candidates, matched
}

// stagedMatch tries theme association, then title/artist text, then lyric
// content. Each stage runs only when the previous produced zero candidates.
func (r *Resolver) stagedMatch(ctx context.Context, themes []string, rawQuery string, excluded map[string]bool) ([]models.Song, string) {
	// Stage 1: theme association, first theme that yields anything wins.
	// This is deliberately not a union across themes.
	for _, theme := range themes {
		rows, err := r.catalog.SearchByTheme(ctx, theme, r.themeLimit)
		if err != nil {
			log.Warn().Err(err).Str("theme", theme).Msg("Theme search failed")
			return nil, ""
		}
		if candidates := dedupe(rows, excluded); len(candidates) > 0 {
			return candidates, theme
		}
	}

	textQuery := rawQuery
	if textQuery == "" && len(themes) > 0 {
		textQuery = strings.Join(themes, " ")
	}
	if textQuery == "" {
		return nil, ""
	}

	// Stage 2: substring match on title and artist.
	rows, err := r.catalog.SearchByText(ctx, textQuery, r.themeLimit)
	if err != nil {
		log.Warn().Err(err).Str("query", textQuery).Msg("Text search failed")
		return nil, ""
	}
	if candidates := dedupe(rows, excluded); len(candidates) > 0 {
		return candidates, "text_match"
	}

	// Stage 3: lyric content match.
	rows, err = r.catalog.SearchLyrics(ctx, textQuery, r.themeLimit)
	if err != nil {
		log.Warn().Err(err).Str("query", textQuery).Msg("Lyrics search failed")
		return nil, ""
	}
	if candidates := dedupe(rows, excluded); len(candidates) > 0 {
		return candidates, "lyrics_match"
	}

	return nil, ""
}

// findReference resolves a "songs like X" reference by text search.
func (r *Resolver) findReference(ctx context.Context, name string) *models.Song {
	rows, err := r.catalog.SearchByText(ctx, name, 1)
	if err != nil {
		log.Warn().Err(err).Str("song", name).Msg("Reference lookup failed")
		return nil
	}
	if len(rows) == 0 {
		return nil
	}
	return &rows[0]
}

// dedupe drops excluded titles and keeps the first occurrence of each
// remaining title, preserving order.
func dedupe(songs []models.Song, excluded map[string]bool) []models.Song {
	seen := make(map[string]bool, len(songs))
	out := make([]models.Song, 0, len(songs))
	for _, song := range songs {
		if excluded[song.Title] || seen[song.Title] {
			continue
		}
		seen[song.Title] = true
		out = append(out, song)
	}
	return out
}

// filterByBPM keeps songs within the inclusive bounds. A song with unknown
// tempo is excluded whenever a bound is active.
func filterByBPM(songs []models.Song, bpmMin, bpmMax int) []models.Song {
	out := make([]models.Song, 0, len(songs))
	for _, song := range songs {
		if !song.HasBPM() {
			continue
		}
		if bpmMin > 0 && song.BPM < bpmMin {
			continue
		}
		if bpmMax > 0 && song.BPM > bpmMax {
			continue
		}
		out = append(out, song)
	}
	return out
}

// filterByKey keeps songs whose original key matches. An empty filter
// result falls back to the unfiltered set so a key mismatch never fully
// blocks a recommendation.
func filterByKey(songs []models.Song, key string) []models.Song {
	out := make([]models.Song, 0, len(songs))
	for _, song := range songs {
		if keysMatch(song.Key, key) {
			out = append(out, song)
		}
	}
	if len(out) == 0 {
		return songs
	}
	return out
}

// keysMatch compares musical keys after normalizing accidental notation.
// Only the original key is considered; transposed keys are not a match.
func keysMatch(k1, k2 string) bool {
	if k1 == "" || k2 == "" {
		return false
	}
	return normalizeKey(k1) == normalizeKey(k2)
}

// normalizeKey maps a key to an uppercase letter with a lowercase
// accidental suffix, e.g. "bb" -> "Bb", "f#" -> "F#".
func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	letter := strings.ToUpper(key[:1])
	suffix := key[1:]
	switch strings.ToLower(suffix) {
	case "b":
		return letter + "b"
	case "#":
		return letter + "#"
	default:
		return letter + suffix
	}
}

func clampBPM(bpm int) int {
	if bpm < minSaneBPM {
		return minSaneBPM
	}
	if bpm > maxSaneBPM {
		return maxSaneBPM
	}
	return bpm
}
