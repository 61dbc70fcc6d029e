package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Scrape event statuses. Failed scrapes never reach the store.
const (
	ScrapeStatusSuccess = "success"
	ScrapeStatusEmpty   = "empty"
)

// ErrNoReactions marks a scrape that came back empty. Callers treat it as
// nothing to do, not as a failure.
var ErrNoReactions = eris.New("model: scrape returned no reactions")

// Reaction is one reactor record returned by the reactions scraper.
type Reaction struct {
	ProfileURL     string `json:"profile_url"`
	Name           string `json:"name"`
	Headline       string `json:"headline"`
	ReactionType   string `json:"reaction_type"`
	PostURL        string `json:"post_url"`
	TotalReactions int    `json:"total_reactions"`
}

// ScrapeResult is a validated batch of reactions for a single post.
type ScrapeResult struct {
	PostURL        string
	RunID          string
	RanAt          time.Time
	TotalReactions int
	Cost           float64
	Status         string
	Reactions      []Reaction
	Dropped        int
}

// NewScrapeResult validates reactions scraped for postURL. The result is
// keyed on postURL, the URL the post is tracked under. Every reaction that
// carries a post URL must agree on its canonical form; reactions without a
// profile URL cannot be keyed and are dropped.
func NewScrapeResult(postURL string, reactions []Reaction) (ScrapeResult, error) {
	postURL = strings.TrimSpace(postURL)
	if postURL == "" {
		return ScrapeResult{}, eris.New("model: scrape result has no post url")
	}
	if len(reactions) == 0 {
		return ScrapeResult{}, ErrNoReactions
	}

	res := ScrapeResult{
		PostURL:   postURL,
		Status:    ScrapeStatusSuccess,
		Reactions: make([]Reaction, 0, len(reactions)),
	}

	var canonical string
	for _, r := range reactions {
		if u := CanonicalPostURL(r.PostURL); u != "" {
			if canonical == "" {
				canonical = u
			} else if u != canonical {
				return ScrapeResult{}, eris.Errorf("model: scrape result mixes posts %q and %q", canonical, u)
			}
		}
		if r.TotalReactions > res.TotalReactions {
			res.TotalReactions = r.TotalReactions
		}
		r.ProfileURL = strings.TrimSpace(r.ProfileURL)
		if r.ProfileURL == "" {
			res.Dropped++
			continue
		}
		r.PostURL = postURL
		res.Reactions = append(res.Reactions, r)
	}

	if len(res.Reactions) == 0 {
		return ScrapeResult{}, ErrNoReactions
	}
	if res.TotalReactions == 0 {
		res.TotalReactions = len(res.Reactions)
	}
	return res, nil
}
