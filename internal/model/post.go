// Package model defines the typed records that flow between pipeline stages.
package model

import (
	"strings"
	"time"
)

// Post is a tracked LinkedIn post, keyed by its URL.
type Post struct {
	ID             int64      `json:"id"`
	URL            string     `json:"post_url"`
	Name           string     `json:"post_name"`
	LastScrapedAt  *time.Time `json:"last_scraped_at,omitempty"`
	ScrapeCount    int        `json:"scrape_count"`
	TotalReactions int        `json:"total_reactions"`
	Enriched       bool       `json:"enriched"`
	EnrichedAt     *time.Time `json:"enriched_time,omitempty"`
	Media          PostMedia  `json:"media"`
}

// PostMedia holds the media descriptor of a post's first attachment.
// Video-only attributes stay empty for images and vice versa.
type PostMedia struct {
	Type      string `json:"media_type,omitempty"`
	Duration  string `json:"duration,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	VideoURL  string `json:"video_url,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
}

// Post media columns.
const (
	FieldMediaType Field = "media_type"
	FieldDuration  Field = "duration"
	FieldMimeType  Field = "mime_type"
	FieldThumbnail Field = "thumbnail"
	FieldVideoURL  Field = "video_url"
	FieldImageURL  Field = "image_url"
)

// MediaFields lists the post media columns in write order.
var MediaFields = []Field{
	FieldMediaType, FieldDuration, FieldMimeType, FieldThumbnail, FieldVideoURL, FieldImageURL,
}

// Values returns the descriptor keyed by column.
func (m PostMedia) Values() FieldValues {
	return FieldValues{
		FieldMediaType: m.Type,
		FieldDuration:  m.Duration,
		FieldMimeType:  m.MimeType,
		FieldThumbnail: m.Thumbnail,
		FieldVideoURL:  m.VideoURL,
		FieldImageURL:  m.ImageURL,
	}
}

// PostImport is one row of the tracking sheet.
type PostImport struct {
	URL  string
	Name string
}

// CanonicalPostURL trims whitespace and drops the query string, which
// LinkedIn appends to shared links (utm and tracking parameters).
func CanonicalPostURL(raw string) string {
	u := strings.TrimSpace(raw)
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	return u
}
