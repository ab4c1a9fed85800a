package db

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/gorm"

	"github.com/cantorbot/cantor/pkg/models"
)

// SongStore provides catalog operations.
type SongStore struct {
	db *gorm.DB
}

// NewSongStore creates a new song store.
func NewSongStore(store *Store) *SongStore {
	return &SongStore{db: store.DB}
}

// GetByID retrieves an active song by ID. Returns (nil, nil) when absent.
func (s *SongStore) GetByID(ctx context.Context, id int64) (*models.Song, error) {
	var row Song
	err := s.db.WithContext(ctx).First(&row, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.toModel(ctx, &row)
}

// GetByTitleArtist retrieves a song by its natural key. Returns (nil, nil)
// when absent.
func (s *SongStore) GetByTitleArtist(ctx context.Context, title, artist string) (*models.Song, error) {
	var row Song
	err := s.db.WithContext(ctx).
		Where("title = ? AND artist = ?", title, artist).
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.toModel(ctx, &row)
}

// GetByTitle retrieves the first active song with the given title. Returns
// (nil, nil) when absent. Feedback resolution only knows titles.
func (s *SongStore) GetByTitle(ctx context.Context, title string) (*models.Song, error) {
	var row Song
	err := s.db.WithContext(ctx).
		Where("title = ? AND is_active = ?", title, true).
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.toModel(ctx, &row)
}

// ListActive returns all active songs.
func (s *SongStore) ListActive(ctx context.Context) ([]models.Song, error) {
	var rows []Song
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("title ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return s.toModels(ctx, rows)
}

// CountActive returns the number of active songs.
func (s *SongStore) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Song{}).
		Where("is_active = ?", true).
		Count(&count).Error
	return count, err
}

// SearchByTheme returns active songs associated with the theme, highest
// confidence first. The theme matches as a substring, case-insensitively.
func (s *SongStore) SearchByTheme(ctx context.Context, theme string, limit int) ([]models.Song, error) {
	var rows []Song
	err := s.db.WithContext(ctx).
		Model(&Song{}).
		Joins("JOIN theme_mappings ON theme_mappings.song_id = songs.id").
		Where("theme_mappings.theme_name LIKE ? AND songs.is_active = ?", "%"+theme+"%", true).
		Order("theme_mappings.confidence DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return s.toModels(ctx, rows)
}

// SearchByText returns active songs whose title or artist contains the query.
func (s *SongStore) SearchByText(ctx context.Context, query string, limit int) ([]models.Song, error) {
	var rows []Song
	pattern := "%" + query + "%"
	err := s.db.WithContext(ctx).
		Where("(title LIKE ? OR artist LIKE ?) AND is_active = ?", pattern, pattern, true).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return s.toModels(ctx, rows)
}

// SearchLyrics returns active songs whose lyric sections contain the query.
func (s *SongStore) SearchLyrics(ctx context.Context, query string, limit int) ([]models.Song, error) {
	var rows []Song
	pattern := "%" + query + "%"
	err := s.db.WithContext(ctx).
		Model(&Song{}).
		Joins("JOIN lyrics ON lyrics.song_id = songs.id").
		Where("(lyrics.first_line LIKE ? OR lyrics.chorus LIKE ? OR lyrics.bridge LIKE ?) AND songs.is_active = ?",
			pattern, pattern, pattern, true).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return s.toModels(ctx, rows)
}

// ThemesForSong returns the song's theme labels, highest confidence first.
func (s *SongStore) ThemesForSong(ctx context.Context, songID int64) ([]string, error) {
	var mappings []ThemeMapping
	err := s.db.WithContext(ctx).
		Where("song_id = ?", songID).
		Order("confidence DESC").
		Find(&mappings).Error
	if err != nil {
		return nil, err
	}
	themes := make([]string, 0, len(mappings))
	for _, m := range mappings {
		themes = append(themes, m.ThemeName)
	}
	return themes, nil
}

// AllThemes returns all distinct theme labels in the catalog.
func (s *SongStore) AllThemes(ctx context.Context) ([]string, error) {
	var themes []string
	err := s.db.WithContext(ctx).
		Model(&ThemeMapping{}).
		Distinct("theme_name").
		Order("theme_name ASC").
		Pluck("theme_name", &themes).Error
	return themes, err
}

// Create inserts a song with its theme mappings and optional lyrics.
func (s *SongStore) Create(ctx context.Context, song *Song, themes []string, lyrics *Lyrics) (int64, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(song).Error; err != nil {
			return err
		}
		for _, theme := range themes {
			mapping := ThemeMapping{
				SongID:     song.ID,
				ThemeName:  theme,
				Confidence: 1.0,
				Source:     "import",
			}
			if err := tx.Create(&mapping).Error; err != nil {
				return err
			}
		}
		if lyrics != nil {
			lyrics.SongID = song.ID
			if err := tx.Create(lyrics).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return song.ID, nil
}

// SoftDelete marks a song inactive.
func (s *SongStore) SoftDelete(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).
		Model(&Song{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":        false,
			"updated_at_epoch": time.Now().UnixMilli(),
		}).Error
}

// toModel converts a catalog row to the domain model, loading its themes.
func (s *SongStore) toModel(ctx context.Context, row *Song) (*models.Song, error) {
	themes, err := s.ThemesForSong(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	song := toDomainSong(row)
	song.Themes = themes
	return &song, nil
}

func (s *SongStore) toModels(ctx context.Context, rows []Song) ([]models.Song, error) {
	out := make([]models.Song, 0, len(rows))
	for i := range rows {
		m, err := s.toModel(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

func toDomainSong(row *Song) models.Song {
	song := models.Song{
		ID:     row.ID,
		Title:  row.Title,
		Artist: row.Artist,
		Key:    row.OriginalKey,
		Tags:   []string(row.Tags),
	}
	if row.BPM.Valid {
		song.BPM = int(row.BPM.Int64)
	}
	if row.ResourceLink.Valid {
		song.URL = row.ResourceLink.String
	}
	return song
}

// nullString creates a sql.NullString from a string.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullInt64 creates a sql.NullInt64, treating 0 as unknown.
func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}
