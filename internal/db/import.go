package db

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/cantorbot/cantor/pkg/models"
)

// CatalogEntry is one song in the JSON catalog export.
type CatalogEntry struct {
	Title        string         `json:"title"`
	Artist       string         `json:"artist"`
	OriginalKey  string         `json:"original_key"`
	BPM          int64          `json:"bpm,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	ResourceLink string         `json:"resource_link,omitempty"`
	CCLINumber   string         `json:"ccli_number,omitempty"`
	Themes       []string       `json:"themes,omitempty"`
	Lyrics       *CatalogLyrics `json:"lyrics,omitempty"`
}

// CatalogLyrics carries the indexed lyric sections for an entry.
type CatalogLyrics struct {
	FirstLine string `json:"first_line,omitempty"`
	Chorus    string `json:"chorus,omitempty"`
	Bridge    string `json:"bridge,omitempty"`
}

// ImportStats summarizes one catalog import run.
type ImportStats struct {
	Created int
	Updated int
}

// ImportCatalog loads the JSON catalog file at path and upserts its entries
// keyed by title+artist. Existing songs get their metadata refreshed and any
// missing theme mappings added; theme mappings are never removed by import.
func ImportCatalog(ctx context.Context, store *Store, songs *SongStore, path string) (ImportStats, error) {
	var stats ImportStats

	data, err := os.ReadFile(path)
	if err != nil {
		return stats, fmt.Errorf("read catalog: %w", err)
	}

	var entries []CatalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return stats, fmt.Errorf("parse catalog: %w", err)
	}

	for _, entry := range entries {
		if entry.Title == "" || entry.Artist == "" {
			log.Warn().Str("title", entry.Title).Msg("Skipping catalog entry without title/artist")
			continue
		}
		created, err := upsertEntry(ctx, store.DB, songs, entry)
		if err != nil {
			return stats, fmt.Errorf("import %q: %w", entry.Title, err)
		}
		if created {
			stats.Created++
		} else {
			stats.Updated++
		}
	}
	return stats, nil
}

func upsertEntry(ctx context.Context, db *gorm.DB, songs *SongStore, entry CatalogEntry) (bool, error) {
	var existing Song
	err := db.WithContext(ctx).
		Where("title = ? AND artist = ?", entry.Title, entry.Artist).
		First(&existing).Error

	if err == gorm.ErrRecordNotFound {
		row := Song{
			Title:        entry.Title,
			Artist:       entry.Artist,
			OriginalKey:  entry.OriginalKey,
			BPM:          nullInt64(entry.BPM),
			Tags:         models.JSONStringArray(entry.Tags),
			ResourceLink: nullString(entry.ResourceLink),
			CCLINumber:   nullString(entry.CCLINumber),
			IsActive:     true,
		}
		var lyrics *Lyrics
		if entry.Lyrics != nil {
			lyrics = &Lyrics{
				FirstLine: nullString(entry.Lyrics.FirstLine),
				Chorus:    nullString(entry.Lyrics.Chorus),
				Bridge:    nullString(entry.Lyrics.Bridge),
			}
		}
		_, err := songs.Create(ctx, &row, entry.Themes, lyrics)
		return true, err
	}
	if err != nil {
		return false, err
	}

	updates := map[string]interface{}{
		"original_key":     entry.OriginalKey,
		"bpm":              nullInt64(entry.BPM),
		"tags":             models.JSONStringArray(entry.Tags),
		"resource_link":    nullString(entry.ResourceLink),
		"ccli_number":      nullString(entry.CCLINumber),
		"is_active":        true,
		"updated_at_epoch": time.Now().UnixMilli(),
	}
	if err := db.WithContext(ctx).Model(&Song{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
		return false, err
	}

	for _, theme := range entry.Themes {
		var count int64
		if err := db.WithContext(ctx).
			Model(&ThemeMapping{}).
			Where("song_id = ? AND theme_name = ?", existing.ID, theme).
			Count(&count).Error; err != nil {
			return false, err
		}
		if count > 0 {
			continue
		}
		mapping := ThemeMapping{
			SongID:     existing.ID,
			ThemeName:  theme,
			Confidence: 1.0,
			Source:     "import",
		}
		if err := db.WithContext(ctx).Create(&mapping).Error; err != nil {
			return false, err
		}
	}
	return false, nil
}
