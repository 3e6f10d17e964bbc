package models

import (
	"errors"
	"time"
)

// ProfileRecord is the account-level data visible on a profile page.
// Counters keep the platform's display form ("12.3K"), never parsed.
type ProfileRecord struct {
	Username     string   `json:"username"`
	DisplayName  string   `json:"display_name,omitempty"`
	Biography    string   `json:"biography,omitempty"`
	ProfileImage string   `json:"profile_image,omitempty"`
	Links        []string `json:"links,omitempty"`
	Followers    string   `json:"followers,omitempty"`
	Following    string   `json:"following,omitempty"`
	Posts        string   `json:"posts,omitempty"`
}

// Comment is one visible comment on a media item.
type Comment struct {
	Author string `json:"author,omitempty"`
	Text   string `json:"text"`
}

// MediaItem is the data extracted from a single post or reel page.
type MediaItem struct {
	URL        string    `json:"url"`
	MediaURL   string    `json:"media_url,omitempty"`
	Thumbnail  string    `json:"thumbnail,omitempty"`
	Caption    string    `json:"caption,omitempty"`
	Engagement string    `json:"engagement,omitempty"`
	PostedAt   string    `json:"posted_at,omitempty"`
	Comments   []Comment `json:"comments,omitempty"`
}

// ErrorEnvelope is persisted in place of data when a run fails.
type ErrorEnvelope struct {
	Kind        string      `json:"kind"`
	Message     string      `json:"message"`
	Timestamp   time.Time   `json:"timestamp"`
	Diagnostics *Diagnostic `json:"diagnostics,omitempty"`
}

// Diagnostic points at the artifacts captured when a run failed.
type Diagnostic struct {
	HTML       string `json:"html,omitempty"`
	Screenshot string `json:"screenshot,omitempty"`
	Markdown   string `json:"markdown,omitempty"`
}

// ScrapeResult is the single output of a run: data or an error envelope.
type ScrapeResult struct {
	Account   string         `json:"account"`
	RunID     string         `json:"run_id,omitempty"`
	ScrapedAt time.Time      `json:"scraped_at"`
	Profile   *ProfileRecord `json:"profile,omitempty"`
	Media     []MediaItem    `json:"media,omitempty"`
	Error     *ErrorEnvelope `json:"error,omitempty"`
}

var (
	ErrEmptyResult     = errors.New("result carries neither profile data nor an error")
	ErrAmbiguousResult = errors.New("result carries both profile data and an error")
)

// Validate checks that exactly one of data or error is present.
func (r *ScrapeResult) Validate() error {
	hasData := r.Profile != nil
	hasErr := r.Error != nil
	switch {
	case hasData && hasErr:
		return ErrAmbiguousResult
	case !hasData && !hasErr:
		return ErrEmptyResult
	}
	return nil
}

// Failed reports whether the result is an error envelope.
func (r *ScrapeResult) Failed() bool {
	return r.Error != nil
}

// NewFailure builds an error result for account.
func NewFailure(account, runID, kind, message string, at time.Time) *ScrapeResult {
	return &ScrapeResult{
		Account:   account,
		RunID:     runID,
		ScrapedAt: at,
		Error: &ErrorEnvelope{
			Kind:      kind,
			Message:   message,
			Timestamp: at,
		},
	}
}
