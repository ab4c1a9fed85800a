package parser

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cantorbot/cantor/pkg/models"
)

// Tempo cutoffs for wording like "fast" and "slow". Worship sets treat
// anything over 120 BPM as upbeat and anything under 85 as contemplative.
const (
	fastBPMFloor   = 120
	slowBPMCeiling = 85
)

var (
	bpmMaxRe = regexp.MustCompile(`(?:under|below|less than|<)\s*(\d+)\s*bpm`)
	bpmMinRe = regexp.MustCompile(`(?:over|above|more than|>)\s*(\d+)\s*bpm`)
	keyRe    = regexp.MustCompile(`\b(?:in the key of|key of|in)\s+([a-g][#b]?)(?:[\s,.!?]|$)`)
	likeRe   = regexp.MustCompile(`(?:songs? like|similar to|something like)\s+(.+?)(?:\s*$|\s*[,.?!])`)
)

var feedbackMarkers = []string{
	"👍", "👎", "thumbs up", "thumbs down", "loved", "didn't like",
	"did not like", "was perfect", "worked well", "didn't work",
}

// FallbackParser is a deterministic rule-based parser. It backs the LLM
// parser when the model is unreachable and is the whole parser in mock
// mode.
type FallbackParser struct {
	synonyms map[string][]string
}

// NewFallbackParser builds a parser over a theme synonym table mapping
// canonical themes to the surface forms that should resolve to them.
func NewFallbackParser(synonyms map[string][]string) *FallbackParser {
	return &FallbackParser{synonyms: synonyms}
}

// Parse applies keyword and pattern rules to the query. It never inspects
// ctx; rule matching is immediate. When the query names no theme of its own
// and prior carries themes, the query inherits them.
func (p *FallbackParser) Parse(_ context.Context, query string, prior *models.ParsedQuery) *models.ParsedQuery {
	lower := strings.ToLower(strings.TrimSpace(query))

	if lower == "more" || strings.HasPrefix(lower, "more ") {
		return &models.ParsedQuery{
			Intent:     models.IntentMore,
			Confidence: 0.95,
			RawQuery:   query,
		}
	}
	if isFeedback(lower) {
		return &models.ParsedQuery{
			Intent:     models.IntentFeedback,
			Confidence: 0.9,
			RawQuery:   query,
		}
	}

	q := &models.ParsedQuery{
		Intent:     models.IntentSearch,
		Themes:     p.matchThemes(lower),
		Confidence: 0.8,
		RawQuery:   query,
	}

	if m := likeRe.FindStringSubmatch(lower); m != nil {
		q.SimilarTo = strings.TrimSpace(m[1])
	}

	q.BPMMin, q.BPMMax = extractBPM(lower)

	if m := keyRe.FindStringSubmatch(lower); m != nil {
		q.KeyPreference = strings.ToUpper(m[1][:1]) + m[1][1:]
	}

	if strings.Contains(lower, "haven't used") || strings.Contains(lower, "havent used") ||
		strings.Contains(lower, "not used lately") {
		q.ExcludeRecent = true
	}

	if len(q.Themes) == 0 && q.SimilarTo == "" {
		if prior != nil && len(prior.Themes) > 0 {
			// A vague follow-up stays on the conversation's themes.
			q.Themes = append([]string(nil), prior.Themes...)
			q.Confidence = 0.6
		} else {
			// Default theme keeps a vague search from returning nothing.
			q.Themes = []string{"worship"}
			q.Confidence = 0.5
		}
	}
	return q
}

// matchThemes returns matched themes ordered by where their first surface
// form appears in the query, so downstream first-theme-wins staging is
// deterministic.
func (p *FallbackParser) matchThemes(lower string) []string {
	type match struct {
		theme string
		at    int
	}
	var matches []match
	for theme, surfaces := range p.synonyms {
		at := -1
		for _, surface := range surfaces {
			if i := strings.Index(lower, surface); i >= 0 && (at < 0 || i < at) {
				at = i
			}
		}
		if at >= 0 {
			matches = append(matches, match{theme: theme, at: at})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].at != matches[j].at {
			return matches[i].at < matches[j].at
		}
		return matches[i].theme < matches[j].theme
	})
	themes := make([]string, 0, len(matches))
	for _, m := range matches {
		themes = append(themes, m.theme)
	}
	return themes
}

func extractBPM(lower string) (min, max int) {
	if m := bpmMaxRe.FindStringSubmatch(lower); m != nil {
		max, _ = strconv.Atoi(m[1])
		return 0, max
	}
	if m := bpmMinRe.FindStringSubmatch(lower); m != nil {
		min, _ = strconv.Atoi(m[1])
		return min, 0
	}
	switch {
	case strings.Contains(lower, "fast") || strings.Contains(lower, "upbeat"):
		return fastBPMFloor, 0
	case strings.Contains(lower, "slow") || strings.Contains(lower, "contemplative"):
		return 0, slowBPMCeiling
	}
	return 0, 0
}

func isFeedback(lower string) bool {
	for _, marker := range feedbackMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
