package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cantorbot/cantor/pkg/models"
)

// FeedbackStore records feedback rows for analytics.
type FeedbackStore struct {
	db *gorm.DB
}

// NewFeedbackStore creates a new feedback store.
func NewFeedbackStore(store *Store) *FeedbackStore {
	return &FeedbackStore{db: store.DB}
}

// Create inserts one feedback row.
func (s *FeedbackStore) Create(ctx context.Context, userID string, songID int64, action models.FeedbackPolarity, at time.Time, contextKeywords []string) error {
	row := UserFeedback{
		TimestampEpoch:  at.UnixMilli(),
		UserID:          userID,
		SongID:          songID,
		Action:          string(action),
		ContextKeywords: models.JSONStringArray(contextKeywords),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// MessageLogStore records every interaction for analytics.
type MessageLogStore struct {
	db *gorm.DB
}

// NewMessageLogStore creates a new message log store.
func NewMessageLogStore(store *Store) *MessageLogStore {
	return &MessageLogStore{db: store.DB}
}

// Create inserts one interaction log row.
func (s *MessageLogStore) Create(ctx context.Context, userID, messageType, message, response, sessionContext string) error {
	row := MessageLog{
		InteractionID:  uuid.NewString(),
		TimestampEpoch: time.Now().UnixMilli(),
		UserID:         userID,
		MessageType:    messageType,
		Message:        message,
		Response:       response,
		SessionContext: nullString(sessionContext),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// TypeStats returns interaction counts per message type over the last N days.
func (s *MessageLogStore) TypeStats(ctx context.Context, days int) (map[string]int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days).UnixMilli()

	type typeCount struct {
		MessageType string
		Count       int64
	}
	var rows []typeCount
	err := s.db.WithContext(ctx).
		Model(&MessageLog{}).
		Select("message_type, COUNT(*) as count").
		Where("timestamp_epoch >= ?", cutoff).
		Group("message_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := make(map[string]int64, len(rows))
	for _, r := range rows {
		stats[r.MessageType] = r.Count
	}
	return stats, nil
}

// ActiveUsers returns the number of distinct users seen in the last N days.
func (s *MessageLogStore) ActiveUsers(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days).UnixMilli()
	var count int64
	err := s.db.WithContext(ctx).
		Model(&MessageLog{}).
		Where("timestamp_epoch >= ?", cutoff).
		Distinct("user_id").
		Count(&count).Error
	return count, err
}
