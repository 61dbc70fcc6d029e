// Package pipeline runs the lead pipeline stages: scrape post reactions,
// enrich posts, enrich contacts and sync the CRM.
package pipeline

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/crm"
	"github.com/sells-group/leadgen-cli/internal/enrich"
	"github.com/sells-group/leadgen-cli/internal/metrics"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// Stage names.
const (
	StageScrape         = "scrape"
	StageEnrichPosts    = "enrich_posts"
	StageEnrichContacts = "enrich_contacts"
	StageSyncCRM        = "sync_crm"
)

// ReactionScraper fetches the reactions of one post.
type ReactionScraper interface {
	Reactions(ctx context.Context, postURL string) (model.ScrapeResult, error)
}

// Enricher runs the post and contact enrichment passes.
type Enricher interface {
	Posts(ctx context.Context) (*enrich.Result, error)
	Contacts(ctx context.Context) (*enrich.ContactsResult, error)
}

// Syncer reconciles contacts with the CRM.
type Syncer interface {
	Sync(ctx context.Context) (*crm.Result, error)
}

// Delay is a uniform random wait range.
type Delay struct {
	Min time.Duration
	Max time.Duration
}

func (d Delay) pick() time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + rand.N(d.Max-d.Min+1)
}

// Config holds the scrape scheduling rules and courtesy delays.
type Config struct {
	MaxScrapes int
	Cooldown   time.Duration
	BatchSize  int
	PostDelay  Delay // after each scraped post
	ErrorDelay Delay // after a failed post
}

// StageResult summarizes one stage run.
type StageResult struct {
	Stage     string        `json:"stage"`
	RunID     string        `json:"run_id"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`
	Processed int           `json:"processed"`
	Succeeded int           `json:"succeeded"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Detail    any           `json:"detail,omitempty"`
}

// Deps are the stage dependencies. A nil dependency disables its stage.
type Deps struct {
	Scraper  ReactionScraper
	Enricher Enricher
	Syncer   Syncer
}

// Runner executes the stages against one store.
type Runner struct {
	store store.Store
	deps  Deps
	cfg   Config

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates a Runner.
func New(st store.Store, deps Deps, cfg Config) *Runner {
	return &Runner{
		store: st,
		deps:  deps,
		cfg:   cfg,
		sleep: sleepCtx,
		now:   time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// run wraps a stage body with its run id, timing, metrics and summary log.
func (r *Runner) run(ctx context.Context, stage string, body func(ctx context.Context, res *StageResult) error) (*StageResult, error) {
	res := &StageResult{Stage: stage, RunID: uuid.NewString(), Started: r.now()}
	log := zap.L().With(zap.String("stage", stage), zap.String("run_id", res.RunID))
	log.Info("pipeline: stage starting")

	err := body(ctx, res)
	res.Duration = time.Since(res.Started)

	metrics.ObserveItems(stage, metrics.OutcomeOK, res.Succeeded)
	metrics.ObserveItems(stage, metrics.OutcomeSkipped, res.Skipped)
	metrics.ObserveItems(stage, metrics.OutcomeFailed, res.Failed)
	metrics.ObserveStage(stage, res.Started, err)

	if err != nil {
		log.Error("pipeline: stage failed", zap.Duration("duration", res.Duration), zap.Error(err))
		return res, err
	}
	log.Info("pipeline: stage complete",
		zap.Int("processed", res.Processed),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// EnrichPosts runs the post media pass.
func (r *Runner) EnrichPosts(ctx context.Context) (*StageResult, error) {
	if r.deps.Enricher == nil {
		return nil, eris.New("pipeline: enrich posts: no enricher configured")
	}
	return r.run(ctx, StageEnrichPosts, func(ctx context.Context, res *StageResult) error {
		out, err := r.deps.Enricher.Posts(ctx)
		if err != nil {
			return err
		}
		res.Processed = out.Candidates
		res.Succeeded = out.Updated + out.Unchanged
		res.Skipped = out.Skipped
		res.Failed = out.Failed
		res.Detail = out
		return nil
	})
}

// EnrichContacts promotes engagers and runs the contact enrichment passes.
func (r *Runner) EnrichContacts(ctx context.Context) (*StageResult, error) {
	if r.deps.Enricher == nil {
		return nil, eris.New("pipeline: enrich contacts: no enricher configured")
	}
	return r.run(ctx, StageEnrichContacts, func(ctx context.Context, res *StageResult) error {
		out, err := r.deps.Enricher.Contacts(ctx)
		if err != nil {
			return err
		}
		for _, pass := range []enrich.Result{out.CompanyTitle, out.Audience} {
			res.Processed += pass.Candidates
			res.Succeeded += pass.Updated + pass.Unchanged
			res.Skipped += pass.Skipped
			res.Failed += pass.Failed
		}
		res.Detail = out
		return nil
	})
}

// SyncCRM reconciles contacts with the CRM list.
func (r *Runner) SyncCRM(ctx context.Context) (*StageResult, error) {
	if r.deps.Syncer == nil {
		return nil, eris.New("pipeline: sync crm: no crm configured")
	}
	return r.run(ctx, StageSyncCRM, func(ctx context.Context, res *StageResult) error {
		out, err := r.deps.Syncer.Sync(ctx)
		if out != nil {
			res.Processed = out.Local
			res.Succeeded = out.Created + out.Updated + out.Backfilled
			res.Skipped = out.NonPerson + out.AlreadyPushed
			res.Failed = out.CreateFailed + out.UpdateFailed
			res.Detail = out
		}
		return err
	})
}

// RunAll runs every stage in order, stopping at the first fatal error.
func (r *Runner) RunAll(ctx context.Context) ([]*StageResult, error) {
	stages := []func(context.Context) (*StageResult, error){
		r.Scrape, r.EnrichPosts, r.EnrichContacts, r.SyncCRM,
	}
	results := make([]*StageResult, 0, len(stages))
	for _, stage := range stages {
		res, err := stage(ctx)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			return results, err
		}
	}

	if stats, err := r.store.Stats(ctx); err == nil {
		zap.L().Info("pipeline: totals",
			zap.Int("posts", stats.Posts),
			zap.Int("scraped_posts", stats.ScrapedPosts),
			zap.Int("total_reactions", stats.TotalReactions),
			zap.Int("engagers", stats.Engagers),
			zap.Int("contacts", stats.Contacts),
			zap.Int("pushed", stats.Pushed),
		)
	}
	return results, nil
}
