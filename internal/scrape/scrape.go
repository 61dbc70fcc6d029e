// Package scrape runs the scraping actors and decodes their output into
// typed records: post reactions, profile jobs and post media.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/leadgen-cli/pkg/apify"
)

// Config names the actors and paging limits.
type Config struct {
	ReactionsActor string
	ProfileActor   string
	MediaActor     string
	PageSize       int
	MaxPages       int
	RunTimeout     time.Duration
}

// Scraper runs the three actors against one Apify client.
type Scraper struct {
	client apify.Client
	cfg    Config
	poll   []apify.PollOption
}

// New creates a Scraper. Poll options are passed to every actor call.
func New(client apify.Client, cfg Config, poll ...apify.PollOption) *Scraper {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	if cfg.RunTimeout > 0 {
		poll = append([]apify.PollOption{apify.WithPollTimeout(cfg.RunTimeout)}, poll...)
	}
	return &Scraper{client: client, cfg: cfg, poll: poll}
}

func (s *Scraper) call(ctx context.Context, actorID string, input any) (*apify.Run, []json.RawMessage, error) {
	return apify.CallActor(ctx, s.client, actorID, input, s.poll...)
}

// flexInt decodes a number that may arrive as a JSON string.
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = flexInt(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = flexInt(v)
	return nil
}

// flexString decodes a string or a bare number into its text form.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*s = flexString(num.String())
	return nil
}

// decodeEmbedded decodes raw into v, unwrapping one level of JSON-encoded
// string first. Anything else fails.
func decodeEmbedded(raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return err
		}
		raw = json.RawMessage(inner)
	}
	return json.Unmarshal(raw, v)
}
