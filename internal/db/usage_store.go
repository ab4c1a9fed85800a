package db

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/cantorbot/cantor/pkg/models"
)

// UsageEvent is one ledger row in domain form.
type UsageEvent struct {
	SongID   int64
	UsedAt   time.Time
	Category models.UsageCategory
	Note     string
}

// UsageStore provides append and read access to the usage ledger.
type UsageStore struct {
	db *gorm.DB
}

// NewUsageStore creates a new usage store.
func NewUsageStore(store *Store) *UsageStore {
	return &UsageStore{db: store.DB}
}

// Append inserts one usage event. A single insert is atomic; nothing else
// is transactional here.
func (s *UsageStore) Append(ctx context.Context, songID int64, usedAt time.Time, category models.UsageCategory, note string) error {
	row := SongUsage{
		SongID:      songID,
		UsedAtEpoch: usedAt.UnixMilli(),
		Category:    string(category),
		Note:        nullString(note),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// Recent returns up to limit events for the song, newest first.
func (s *UsageStore) Recent(ctx context.Context, songID int64, limit int) ([]UsageEvent, error) {
	var rows []SongUsage
	err := s.db.WithContext(ctx).
		Where("song_id = ?", songID).
		Order("used_at_epoch DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	events := make([]UsageEvent, 0, len(rows))
	for _, r := range rows {
		ev := UsageEvent{
			SongID:   r.SongID,
			UsedAt:   time.UnixMilli(r.UsedAtEpoch),
			Category: models.UsageCategory(r.Category),
		}
		if r.Note.Valid {
			ev.Note = r.Note.String
		}
		events = append(events, ev)
	}
	return events, nil
}

// CountForSong returns the number of ledger rows for the song.
func (s *UsageStore) CountForSong(ctx context.Context, songID int64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&SongUsage{}).
		Where("song_id = ?", songID).
		Count(&count).Error
	return count, err
}
