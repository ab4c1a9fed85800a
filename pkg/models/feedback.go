package models

import "time"

// FeedbackPolarity is the direction of a feedback signal.
type FeedbackPolarity string

const (
	FeedbackPositive FeedbackPolarity = "thumbs_up"
	FeedbackNegative FeedbackPolarity = "thumbs_down"
)

// FeedbackEvent references a song by its 1-based position in the user's
// last search result. It is consumed once by the feedback recorder.
type FeedbackEvent struct {
	UserID    string
	Position  int
	Polarity  FeedbackPolarity
	Timestamp time.Time
	SongTitle string
}

// UsageCategory labels why a usage-ledger row exists.
type UsageCategory string

const (
	UsageWorship          UsageCategory = "worship"
	UsageBaseline         UsageCategory = "baseline"
	UsagePositiveFeedback UsageCategory = "feedback_positive"
	UsageNegativeFeedback UsageCategory = "feedback_negative"
)
