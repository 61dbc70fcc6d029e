package pipeline

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// ScrapeDetail lists the per-post outcomes of a scrape stage.
type ScrapeDetail struct {
	Posts     []string `json:"posts"`
	Inserted  int      `json:"inserted"`
	Duplicate int      `json:"duplicates"`
	Cost      float64  `json:"cost"`
}

// Scrape scrapes every due post in turn and ingests its reactions. A post
// that fails is logged and skipped; only the due-post query and
// cancellation are fatal. Courtesy delays separate consecutive posts.
func (r *Runner) Scrape(ctx context.Context) (*StageResult, error) {
	if r.deps.Scraper == nil {
		return nil, eris.New("pipeline: scrape: no scraper configured")
	}
	return r.run(ctx, StageScrape, func(ctx context.Context, res *StageResult) error {
		urls, err := r.store.DuePosts(ctx, store.DueFilter{
			MaxScrapes: r.cfg.MaxScrapes,
			Cooldown:   r.cfg.Cooldown,
			Limit:      r.cfg.BatchSize,
			Now:        r.now(),
		})
		if err != nil {
			return eris.Wrap(err, "pipeline: due posts")
		}

		detail := &ScrapeDetail{Posts: urls}
		res.Detail = detail
		for i, url := range urls {
			res.Processed++
			delay := r.cfg.PostDelay
			if err := r.scrapeOne(ctx, res.RunID, url, res, detail); err != nil {
				res.Failed++
				delay = r.cfg.ErrorDelay
				zap.L().Error("pipeline: scrape post failed", zap.String("post_url", url), zap.Error(err))
			}
			if i == len(urls)-1 {
				break
			}
			if err := r.sleep(ctx, delay.pick()); err != nil {
				return eris.Wrap(err, "pipeline: scrape interrupted")
			}
		}
		return nil
	})
}

// scrapeOne returns an error only for failures; an empty scrape is counted
// as skipped once recorded.
func (r *Runner) scrapeOne(ctx context.Context, runID, url string, res *StageResult, detail *ScrapeDetail) error {
	log := zap.L().With(zap.String("post_url", url))

	scraped, err := r.deps.Scraper.Reactions(ctx, url)
	if errors.Is(err, model.ErrNoReactions) {
		return r.recordEmpty(ctx, log, runID, url, scraped.Cost, res)
	}
	if err != nil {
		return err
	}
	scraped.RunID = runID
	scraped.RanAt = r.now()

	ing, err := r.store.IngestScrape(ctx, scraped)
	if err != nil {
		return err
	}
	res.Succeeded++
	detail.Inserted += ing.Inserted
	detail.Duplicate += ing.Duplicates
	detail.Cost += scraped.Cost
	log.Info("pipeline: post scraped",
		zap.Int64("scrape_id", ing.ScrapeID),
		zap.Int("scrape_count", ing.ScrapeCount),
		zap.Int("reactions", len(scraped.Reactions)),
		zap.Int("inserted", ing.Inserted),
		zap.Int("duplicates", ing.Duplicates),
		zap.Float64("cost", scraped.Cost),
	)
	return nil
}

// recordEmpty starts the post's cooldown without counting the scrape, so a
// post with no reactions does not hold a batch slot on every run.
func (r *Runner) recordEmpty(ctx context.Context, log *zap.Logger, runID, url string, cost float64, res *StageResult) error {
	id, err := r.store.RecordEmptyScrape(ctx, model.ScrapeResult{
		PostURL: url,
		RunID:   runID,
		RanAt:   r.now(),
		Cost:    cost,
		Status:  model.ScrapeStatusEmpty,
	})
	if err != nil {
		return err
	}
	res.Skipped++
	log.Warn("pipeline: scrape returned no reactions", zap.Int64("scrape_id", id))
	return nil
}
