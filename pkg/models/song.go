// Package models contains domain models for cantor.
package models

// Song is the catalog entity as presented to users: metadata plus the
// theme labels it is associated with.
type Song struct {
	ID     int64    `json:"id"`
	Title  string   `json:"title"`
	Artist string   `json:"artist"`
	Key    string   `json:"key"`
	BPM    int      `json:"bpm,omitempty"` // 0 means unknown
	Tags   []string `json:"tags,omitempty"`
	URL    string   `json:"url,omitempty"`
	Themes []string `json:"themes,omitempty"`
}

// HasBPM reports whether the song carries a known tempo.
func (s Song) HasBPM() bool {
	return s.BPM > 0
}

// SearchResult is one page of resolved, ranked songs together with the
// term or theme that produced them.
type SearchResult struct {
	Songs       []Song `json:"songs"`
	MatchedTerm string `json:"matched_term"`
	Theme       string `json:"theme"`
}
