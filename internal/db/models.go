package db

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"github.com/cantorbot/cantor/pkg/models"
)

// Song is the catalog row. Title+artist pairs are expected unique among
// active songs; duplicates are a data-quality risk, not a constraint.
type Song struct {
	ID             int64                  `gorm:"primaryKey;autoIncrement"`
	Title          string                 `gorm:"index:idx_songs_title_artist,priority:1;not null"`
	Artist         string                 `gorm:"index:idx_songs_title_artist,priority:2;not null"`
	OriginalKey    string                 `gorm:"not null"`
	BPM            sql.NullInt64
	Tags           models.JSONStringArray `gorm:"type:text"`
	ResourceLink   sql.NullString         `gorm:"type:text"`
	CCLINumber     sql.NullString
	IsActive       bool   `gorm:"default:true;index"`
	CreatedAt      string `gorm:"not null"`
	CreatedAtEpoch int64  `gorm:"not null"`
	UpdatedAtEpoch int64
}

func (Song) TableName() string { return "songs" }

// BeforeCreate hook to ensure timestamps are set.
func (s *Song) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if s.CreatedAtEpoch == 0 {
		s.CreatedAtEpoch = now.UnixMilli()
	}
	if s.CreatedAt == "" {
		s.CreatedAt = now.Format(time.RFC3339)
	}
	return nil
}

// Lyrics holds the indexed lyric sections for one song.
type Lyrics struct {
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	SongID    int64          `gorm:"index;not null"`
	FirstLine sql.NullString `gorm:"type:text"`
	Chorus    sql.NullString `gorm:"type:text"`
	Bridge    sql.NullString `gorm:"type:text"`
	Language  string         `gorm:"default:'en'"`
}

func (Lyrics) TableName() string { return "lyrics" }

// ThemeMapping is the song-theme edge with a confidence weight and a
// provenance tag (manual/import/ml).
type ThemeMapping struct {
	ID         int64   `gorm:"primaryKey;autoIncrement"`
	SongID     int64   `gorm:"index:idx_theme_song;index:idx_theme_song_name,priority:1;not null"`
	ThemeName  string  `gorm:"index;index:idx_theme_song_name,priority:2;not null"`
	Confidence float64 `gorm:"type:real;default:1.0"`
	Source     string  `gorm:"default:'manual'"`
}

func (ThemeMapping) TableName() string { return "theme_mappings" }

// SongUsage is one append-only usage-ledger row. The familiarity scorer is
// its only consumer.
type SongUsage struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	SongID      int64  `gorm:"index:idx_usage_song_date,priority:1;not null"`
	UsedAtEpoch int64  `gorm:"index:idx_usage_song_date,priority:2,sort:desc;not null"`
	Category    string `gorm:"default:'worship'"`
	Note        sql.NullString
}

func (SongUsage) TableName() string { return "song_usage" }

// UserFeedback is the analytics record of a feedback interaction.
type UserFeedback struct {
	ID              int64                  `gorm:"primaryKey;autoIncrement"`
	TimestampEpoch  int64                  `gorm:"index;not null"`
	UserID          string                 `gorm:"index;not null"`
	SongID          int64                  `gorm:"index;not null"`
	Action          string                 `gorm:"not null"`
	ContextKeywords models.JSONStringArray `gorm:"type:text"`
	SearchParams    sql.NullString         `gorm:"type:text"`
}

func (UserFeedback) TableName() string { return "user_feedback" }

// MessageLog records every bot interaction for analytics.
type MessageLog struct {
	ID             int64          `gorm:"primaryKey;autoIncrement"`
	InteractionID  string         `gorm:"uniqueIndex;not null"`
	TimestampEpoch int64          `gorm:"index;not null"`
	UserID         string         `gorm:"index;not null"`
	MessageType    string         `gorm:"index;not null"`
	Message        string         `gorm:"type:text;not null"`
	Response       string         `gorm:"type:text;not null"`
	SessionContext sql.NullString `gorm:"type:text"`
}

func (MessageLog) TableName() string { return "message_logs" }
