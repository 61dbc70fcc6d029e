// Package enrich fills missing contact and post attributes from external
// sources, writing only values that are non-empty and actually change
// something.
package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/classify"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/scrape"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// ProfileScraper returns the current job of a person profile.
type ProfileScraper interface {
	Profile(ctx context.Context, profileURL string) (scrape.Profile, error)
}

// MediaScraper returns a post's media descriptor; found is false when the
// source had nothing for the post.
type MediaScraper interface {
	Media(ctx context.Context, postURL string) (media model.PostMedia, found bool, err error)
}

// Classifier assigns an audience and position. It never fails; coerced is
// true when the fallback or a partial fallback was applied.
type Classifier interface {
	Classify(ctx context.Context, in classify.Input) (c classify.Classification, coerced bool)
}

// Limits caps the work of one pass.
type Limits struct {
	CompanyTitle int
	Audience     int
	Posts        int
	CommitEvery  int
}

// Result counts the outcome of one pass. Candidates = Updated + Unchanged +
// Skipped + Failed.
type Result struct {
	Candidates int `json:"candidates"`
	Updated    int `json:"updated"`
	Unchanged  int `json:"unchanged"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	Coerced    int `json:"coerced,omitempty"`
}

// Enricher runs the enrichment passes against a store.
type Enricher struct {
	store      store.Store
	profiles   ProfileScraper
	classifier Classifier
	media      MediaScraper
	limits     Limits
	now        func() time.Time
}

// Deps are the enrichment sources. A nil source disables its pass.
type Deps struct {
	Profiles   ProfileScraper
	Classifier Classifier
	Media      MediaScraper
}

// New creates an Enricher.
func New(st store.Store, deps Deps, limits Limits) *Enricher {
	if limits.CommitEvery <= 0 {
		limits.CommitEvery = 10
	}
	return &Enricher{
		store:      st,
		profiles:   deps.Profiles,
		classifier: deps.Classifier,
		media:      deps.Media,
		limits:     limits,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ContactsResult summarizes one enrich-contacts run.
type ContactsResult struct {
	Promote      store.PromoteResult `json:"promote"`
	CompanyTitle Result              `json:"company_title"`
	Audience     Result              `json:"audience"`
}

// Contacts promotes new engagers to contacts, then runs the company/title
// pass followed by the audience pass.
func (e *Enricher) Contacts(ctx context.Context) (*ContactsResult, error) {
	promoted, err := e.store.PromoteEngagers(ctx)
	if err != nil {
		return nil, err
	}
	zap.L().Info("enrich: promoted engagers",
		zap.Int("candidates", promoted.Candidates),
		zap.Int("non_person", promoted.NonPerson),
		zap.Int64("promoted", promoted.Promoted),
	)

	out := &ContactsResult{Promote: *promoted}
	if e.profiles != nil {
		res, err := e.CompanyTitle(ctx)
		if err != nil {
			return out, err
		}
		out.CompanyTitle = *res
	}
	if e.classifier != nil {
		res, err := e.Audience(ctx)
		if err != nil {
			return out, err
		}
		out.Audience = *res
	}
	return out, nil
}

// CompanyTitle scrapes the current job of contacts missing company or
// title.
func (e *Enricher) CompanyTitle(ctx context.Context) (*Result, error) {
	if e.profiles == nil {
		return nil, eris.New("enrich: no profile scraper configured")
	}
	contacts, err := e.store.ContactsMissingCompanyTitle(ctx, e.limits.CompanyTitle)
	if err != nil {
		return nil, err
	}
	return e.applyContacts(ctx, "company_title", true, contacts, func(ctx context.Context, c model.Contact) (model.FieldValues, bool, error) {
		p, err := e.profiles.Profile(ctx, c.LinkedInURL)
		if err != nil {
			return nil, false, err
		}
		return p.Values(), false, nil
	})
}

// Audience classifies contacts that have company and title but lack an
// audience or position.
func (e *Enricher) Audience(ctx context.Context) (*Result, error) {
	if e.classifier == nil {
		return nil, eris.New("enrich: no classifier configured")
	}
	contacts, err := e.store.ContactsMissingAudience(ctx, e.limits.Audience)
	if err != nil {
		return nil, err
	}
	return e.applyContacts(ctx, "audience", false, contacts, func(ctx context.Context, c model.Contact) (model.FieldValues, bool, error) {
		cl, coerced := e.classifier.Classify(ctx, classify.Input{
			Company:  c.Company,
			Title:    c.Title,
			Name:     c.Name,
			Headline: c.Headline,
		})
		return model.FieldValues{
			model.FieldAudience: cl.Audience,
			model.FieldPosition: cl.Position,
		}, coerced, nil
	})
}

type contactSource func(ctx context.Context, c model.Contact) (proposed model.FieldValues, coerced bool, err error)

// applyContacts runs source over each contact. With stamp set, every
// attempt is recorded whatever its outcome.
func (e *Enricher) applyContacts(ctx context.Context, pass string, stamp bool, contacts []model.Contact, source contactSource) (*Result, error) {
	res := &Result{Candidates: len(contacts)}
	log := zap.L().With(zap.String("pass", pass))
	if len(contacts) == 0 {
		log.Info("enrich: nothing to enrich")
		return res, nil
	}

	batch, err := e.store.BeginBatch(ctx, e.limits.CommitEvery)
	if err != nil {
		return nil, err
	}
	defer batch.Rollback(ctx) //nolint:errcheck

	attemptedAt := e.now()
	for _, c := range contacts {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "enrich: cancelled")
		}
		e.applyContact(ctx, log, batch, c, source, res)
		if stamp {
			if err := batch.MarkProfileAttempted(ctx, c.ID, attemptedAt); err != nil {
				log.Warn("enrich: mark attempted failed", zap.Int64("contact_id", c.ID), zap.Error(err))
			}
		}
	}

	if err := batch.Commit(ctx); err != nil {
		return res, err
	}
	log.Info("enrich: pass complete",
		zap.Int("candidates", res.Candidates),
		zap.Int("updated", res.Updated),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("failed", res.Failed),
		zap.Int("coerced", res.Coerced),
	)
	return res, nil
}

func (e *Enricher) applyContact(ctx context.Context, log *zap.Logger, batch store.Batch, c model.Contact, source contactSource, res *Result) {
	proposed, coerced, err := source(ctx, c)
	if coerced {
		res.Coerced++
	}
	if err != nil {
		res.Failed++
		log.Warn("enrich: source failed", zap.Int64("contact_id", c.ID), zap.String("linkedin_url", c.LinkedInURL), zap.Error(err))
		return
	}

	changes := model.Changes(c.Values(), proposed)
	if len(changes) == 0 {
		res.Unchanged++
		return
	}
	if err := batch.UpdateContact(ctx, c.ID, changes); err != nil {
		res.Failed++
		log.Error("enrich: update failed", zap.Int64("contact_id", c.ID), zap.Error(err))
		return
	}
	res.Updated++
}

// Posts scrapes media descriptors for posts not yet enriched. A post the
// source returns nothing for is skipped and stays unenriched. Every other
// post is flagged enriched with one timestamp for the pass, writing only the
// media fields that change.
func (e *Enricher) Posts(ctx context.Context) (*Result, error) {
	if e.media == nil {
		return nil, eris.New("enrich: no media scraper configured")
	}
	posts, err := e.store.PostsToEnrich(ctx, e.limits.Posts)
	if err != nil {
		return nil, err
	}
	res := &Result{Candidates: len(posts)}
	log := zap.L().With(zap.String("pass", "post_media"))
	if len(posts) == 0 {
		log.Info("enrich: nothing to enrich")
		return res, nil
	}

	batch, err := e.store.BeginBatch(ctx, e.limits.CommitEvery)
	if err != nil {
		return nil, err
	}
	defer batch.Rollback(ctx) //nolint:errcheck

	enrichedAt := e.now()
	for _, p := range posts {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "enrich: cancelled")
		}
		media, found, err := e.media.Media(ctx, p.URL)
		if err != nil {
			res.Failed++
			log.Warn("enrich: media scrape failed", zap.String("post_url", p.URL), zap.Error(err))
			continue
		}
		if !found {
			res.Skipped++
			log.Warn("enrich: no media data returned", zap.String("post_url", p.URL))
			continue
		}

		changes := model.Changes(p.Media.Values(), media.Values())
		n, err := batch.UpdatePostMedia(ctx, p.URL, changes, enrichedAt)
		if err != nil {
			res.Failed++
			log.Error("enrich: post update failed", zap.String("post_url", p.URL), zap.Error(err))
			continue
		}
		if n == 0 {
			res.Skipped++
			log.Warn("enrich: post row not matched", zap.String("post_url", p.URL))
			continue
		}
		if len(changes) == 0 {
			res.Unchanged++
		} else {
			res.Updated++
		}
	}

	if err := batch.Commit(ctx); err != nil {
		return res, err
	}
	log.Info("enrich: pass complete",
		zap.Int("candidates", res.Candidates),
		zap.Int("updated", res.Updated),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}
