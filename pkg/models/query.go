package models

// Intent classifies what the user is asking for.
type Intent string

const (
	IntentSearch   Intent = "search"
	IntentMore     Intent = "more"
	IntentFeedback Intent = "feedback"
	IntentUnknown  Intent = "unknown"
)

// ParsedQuery is the structured form of a user request, produced either by
// the LLM parser or the deterministic fallback. It is treated as an
// immutable value by everything downstream.
type ParsedQuery struct {
	Themes        []string `json:"themes"`
	BPMMin        int      `json:"bpm_min,omitempty"`
	BPMMax        int      `json:"bpm_max,omitempty"`
	KeyPreference string   `json:"key_preference,omitempty"`
	Mood          string   `json:"mood,omitempty"`
	Intent        Intent   `json:"intent"`
	SimilarTo     string   `json:"similarity_song,omitempty"`
	ExcludeRecent bool     `json:"exclude_recent,omitempty"`
	Confidence    float64  `json:"confidence"`
	RawQuery      string   `json:"raw_query"`
}

// HasBPMFilter reports whether either tempo bound is set.
func (q ParsedQuery) HasBPMFilter() bool {
	return q.BPMMin > 0 || q.BPMMax > 0
}
