package scrape

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

const (
	mediaVideo = "video"
	mediaImage = "image"
)

type mediaItem struct {
	Post  json.RawMessage `json:"post"`
	Media json.RawMessage `json:"media"`
}

type mediaPost struct {
	URL string `json:"url"`
}

type mediaEntry struct {
	Type      string     `json:"type"`
	Duration  flexString `json:"duration"`
	MimeType  string     `json:"mime_type"`
	Thumbnail string     `json:"thumbnail"`
	VideoURL  string     `json:"video_url"`
	URL       string     `json:"url"`
}

func (e mediaEntry) media() model.PostMedia {
	m := model.PostMedia{Type: e.Type}
	switch e.Type {
	case mediaVideo:
		m.Duration = string(e.Duration)
		m.MimeType = e.MimeType
		m.Thumbnail = e.Thumbnail
		m.VideoURL = e.VideoURL
	case mediaImage:
		m.ImageURL = e.URL
	}
	return m
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || string(raw) == "null"
}

// DecodeMedia picks the media descriptor for postURL out of the media actor
// items. Items are matched on the URL without query string; an item without
// a post URL matches any post. The first media entry describes the post.
// found is false when no item matches. A post or media value that is neither
// JSON nor a JSON-encoded string is an error.
func DecodeMedia(postURL string, items []json.RawMessage) (media model.PostMedia, found bool, err error) {
	want := model.CanonicalPostURL(postURL)
	for i, raw := range items {
		var it mediaItem
		if err := json.Unmarshal(raw, &it); err != nil {
			return model.PostMedia{}, false, eris.Wrapf(err, "scrape: decode media item %d", i)
		}

		if !isNull(it.Post) {
			var p mediaPost
			if err := decodeEmbedded(it.Post, &p); err != nil {
				return model.PostMedia{}, false, eris.Wrapf(err, "scrape: decode media item %d post", i)
			}
			if u := model.CanonicalPostURL(p.URL); u != "" && u != want {
				continue
			}
		}

		if isNull(it.Media) {
			return model.PostMedia{}, true, nil
		}
		var entries []mediaEntry
		if err := decodeEmbedded(it.Media, &entries); err != nil {
			return model.PostMedia{}, false, eris.Wrapf(err, "scrape: decode media item %d media", i)
		}
		if len(entries) == 0 {
			return model.PostMedia{}, true, nil
		}
		return entries[0].media(), true, nil
	}
	return model.PostMedia{}, false, nil
}

// Media scrapes a post's media descriptor. found is false when the actor
// returned nothing for the post.
func (s *Scraper) Media(ctx context.Context, postURL string) (model.PostMedia, bool, error) {
	_, items, err := s.call(ctx, s.cfg.MediaActor, map[string]string{"post_url": postURL})
	if err != nil {
		return model.PostMedia{}, false, eris.Wrapf(err, "scrape: media %s", postURL)
	}
	return DecodeMedia(postURL, items)
}
