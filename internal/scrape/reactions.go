package scrape

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
)

type reactionsInput struct {
	PostURL      string `json:"post_url"`
	PageNumber   int    `json:"page_number"`
	ReactionType string `json:"reaction_type"`
	Limit        int    `json:"limit"`
}

type reactionItem struct {
	ReactionType string `json:"reaction_type"`
	Reactor      struct {
		Name       string `json:"name"`
		Headline   string `json:"headline"`
		ProfileURL string `json:"profile_url"`
	} `json:"reactor"`
	Metadata struct {
		PostURL        string  `json:"post_url"`
		TotalReactions flexInt `json:"total_reactions"`
	} `json:"_metadata"`
}

func (it reactionItem) reaction() model.Reaction {
	return model.Reaction{
		ProfileURL:     it.Reactor.ProfileURL,
		Name:           it.Reactor.Name,
		Headline:       it.Reactor.Headline,
		ReactionType:   it.ReactionType,
		PostURL:        it.Metadata.PostURL,
		TotalReactions: int(it.Metadata.TotalReactions),
	}
}

// DecodeReactions decodes a page of reactions actor items.
func DecodeReactions(items []json.RawMessage) ([]model.Reaction, error) {
	out := make([]model.Reaction, 0, len(items))
	for i, raw := range items {
		var it reactionItem
		if err := json.Unmarshal(raw, &it); err != nil {
			return nil, eris.Wrapf(err, "scrape: decode reaction item %d", i)
		}
		out = append(out, it.reaction())
	}
	return out, nil
}

// Reactions scrapes every reaction on a post. Pages are requested until one
// comes back short or empty, or MaxPages is reached. The returned result
// carries the summed run cost; RunID and RanAt are left to the caller.
func (s *Scraper) Reactions(ctx context.Context, postURL string) (model.ScrapeResult, error) {
	var (
		all  []model.Reaction
		cost float64
	)
	log := zap.L().With(zap.String("post_url", postURL))

	for page := 1; page <= s.cfg.MaxPages; page++ {
		run, items, err := s.call(ctx, s.cfg.ReactionsActor, reactionsInput{
			PostURL:      postURL,
			PageNumber:   page,
			ReactionType: "ALL",
			Limit:        s.cfg.PageSize,
		})
		if run != nil {
			cost += run.UsageTotalUSD
		}
		if err != nil {
			return model.ScrapeResult{}, eris.Wrapf(err, "scrape: reactions page %d", page)
		}

		reactions, err := DecodeReactions(items)
		if err != nil {
			return model.ScrapeResult{}, err
		}
		log.Debug("scrape: reactions page", zap.Int("page", page), zap.Int("items", len(reactions)))
		all = append(all, reactions...)

		if len(reactions) < s.cfg.PageSize {
			break
		}
		if page == s.cfg.MaxPages {
			log.Warn("scrape: reactions page cap reached", zap.Int("max_pages", s.cfg.MaxPages))
		}
	}

	res, err := model.NewScrapeResult(postURL, all)
	if err != nil {
		return model.ScrapeResult{}, err
	}
	res.Cost = cost
	if res.Dropped > 0 {
		log.Warn("scrape: dropped reactions without profile url", zap.Int("dropped", res.Dropped))
	}
	return res, nil
}
