package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cantorbot/cantor/internal/config"
	"github.com/cantorbot/cantor/pkg/models"
)

func newTestParser() *FallbackParser {
	return NewFallbackParser(config.DefaultThemeSynonyms())
}

func TestFallback_MoreIntent(t *testing.T) {
	p := newTestParser()

	for _, input := range []string{"more", "More", " more ", "more songs"} {
		q := p.Parse(context.Background(), input, nil)
		assert.Equal(t, models.IntentMore, q.Intent, "input %q", input)
	}
}

func TestFallback_FeedbackIntent(t *testing.T) {
	p := newTestParser()

	for _, input := range []string{
		"👍 2",
		"👎 1",
		"thumbs up for the first one",
		"loved the second one",
		"didn't like song 3",
	} {
		q := p.Parse(context.Background(), input, nil)
		assert.Equal(t, models.IntentFeedback, q.Intent, "input %q", input)
	}
}

func TestFallback_ThemeSynonyms(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		input string
		theme string
	}{
		{"find songs on surrender", "surrender"},
		{"something about mercy", "grace"},
		{"songs for celebration", "joy"},
		{"we need praise music", "worship"},
		{"songs about the cross", "blood"},
	}
	for _, tc := range tests {
		q := p.Parse(context.Background(), tc.input, nil)
		assert.Equal(t, models.IntentSearch, q.Intent)
		assert.Contains(t, q.Themes, tc.theme, "input %q", tc.input)
	}
}

func TestFallback_BPMPhrases(t *testing.T) {
	p := newTestParser()
	ctx := context.Background()

	q := p.Parse(ctx, "worship songs under 85 bpm", nil)
	assert.Equal(t, 85, q.BPMMax)
	assert.Zero(t, q.BPMMin)

	q = p.Parse(ctx, "praise songs over 120 BPM", nil)
	assert.Equal(t, 120, q.BPMMin)
	assert.Zero(t, q.BPMMax)

	q = p.Parse(ctx, "fast songs for celebration", nil)
	assert.Equal(t, fastBPMFloor, q.BPMMin)

	q = p.Parse(ctx, "slow songs about grace", nil)
	assert.Equal(t, slowBPMCeiling, q.BPMMax)
}

func TestFallback_KeyExtraction(t *testing.T) {
	p := newTestParser()
	ctx := context.Background()

	q := p.Parse(ctx, "worship songs in the key of g", nil)
	assert.Equal(t, "G", q.KeyPreference)

	q = p.Parse(ctx, "praise songs in bb", nil)
	assert.Equal(t, "Bb", q.KeyPreference)

	q = p.Parse(ctx, "songs in f# about hope", nil)
	assert.Equal(t, "F#", q.KeyPreference)
}

func TestFallback_SimilarTo(t *testing.T) {
	p := newTestParser()

	q := p.Parse(context.Background(), "something like Amazing Grace", nil)
	assert.Equal(t, "amazing grace", q.SimilarTo)

	q = p.Parse(context.Background(), "songs like Oceans, but slower", nil)
	assert.Equal(t, "oceans", q.SimilarTo)
}

func TestFallback_ExcludeRecent(t *testing.T) {
	p := newTestParser()

	q := p.Parse(context.Background(), "worship songs we haven't used lately", nil)
	assert.True(t, q.ExcludeRecent)
}

func TestFallback_DefaultsToWorshipTheme(t *testing.T) {
	p := newTestParser()

	q := p.Parse(context.Background(), "give me something for sunday", nil)
	require.Equal(t, models.IntentSearch, q.Intent)
	assert.Equal(t, []string{"worship"}, q.Themes)
	assert.Equal(t, 0.5, q.Confidence)
}

func TestFallback_PreservesRawQuery(t *testing.T) {
	p := newTestParser()

	raw := "Find Songs About Grace"
	q := p.Parse(context.Background(), raw, nil)
	assert.Equal(t, raw, q.RawQuery)
}

func TestFallback_InheritsPriorThemes(t *testing.T) {
	p := newTestParser()
	prior := &models.ParsedQuery{Themes: []string{"hope", "faith"}}

	q := p.Parse(context.Background(), "give me something for sunday", prior)
	require.Equal(t, models.IntentSearch, q.Intent)
	assert.Equal(t, []string{"hope", "faith"}, q.Themes)
	assert.Equal(t, 0.6, q.Confidence)
}

func TestFallback_ExplicitThemesBeatPrior(t *testing.T) {
	p := newTestParser()
	prior := &models.ParsedQuery{Themes: []string{"hope"}}

	q := p.Parse(context.Background(), "songs about grace", prior)
	assert.Equal(t, []string{"grace"}, q.Themes)
}

func TestFallback_ThemeOrderFollowsQuery(t *testing.T) {
	p := newTestParser()

	q := p.Parse(context.Background(), "songs about joy and grace", nil)
	assert.Equal(t, []string{"joy", "grace"}, q.Themes)
}
