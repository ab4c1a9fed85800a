package familiarity

import (
	"context"
	"errors"
	"fmt"

	"github.com/cantorbot/cantor/pkg/models"
)

// ErrHasHistory is returned when baseline seeding would touch a song that
// already has real usage rows.
var ErrHasHistory = errors.New("song already has usage history")

// baselineOffsets picks synthetic past-use offsets (in days) whose decayed
// contributions approximate the target score band.
func baselineOffsets(target float64) []int {
	switch {
	case target <= 2.0:
		return []int{7, 30}
	case target <= 4.0:
		return []int{3, 14, 45, 75}
	case target <= 6.0:
		return []int{2, 7, 21, 35, 60, 90}
	case target <= 8.0:
		return []int{0, 1, 2, 3, 5, 8, 12, 20}
	default:
		return []int{0, 1, 1, 2, 3, 4, 5, 7, 10, 14}
	}
}

// SeedBaseline bootstraps a cold-start familiarity score by appending
// synthetic ledger rows at past offsets. It refuses to run for songs with
// any existing history; baseline seeding must never mix with real usage.
func (s *Scorer) SeedBaseline(ctx context.Context, songID int64, target float64) error {
	if target < 0.0 || target > maxScore {
		return fmt.Errorf("baseline target %.1f out of range [0.0, %.1f]", target, maxScore)
	}
	if target == 0.0 {
		return nil
	}

	count, err := s.ledger.CountForSong(ctx, songID)
	if err != nil {
		return fmt.Errorf("check usage history: %w", err)
	}
	if count > 0 {
		return ErrHasHistory
	}

	now := s.now()
	note := fmt.Sprintf("baseline_familiarity_%.1f", target)
	for _, daysAgo := range baselineOffsets(target) {
		usedAt := now.AddDate(0, 0, -daysAgo)
		if err := s.ledger.Append(ctx, songID, usedAt, models.UsageBaseline, note); err != nil {
			return fmt.Errorf("append baseline event: %w", err)
		}
	}
	return nil
}
