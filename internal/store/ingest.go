package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// IngestScrape merges one scrape into the store in a single transaction:
// the post's counters advance by one, one scrape event is appended, and one
// engager row is inserted per new (profile, post) pair. Reactions already on
// record are left as first written. Any failure rolls back all three.
func (s *PostgresStore) IngestScrape(ctx context.Context, res model.ScrapeResult) (*IngestResult, error) {
	if res.PostURL == "" {
		return nil, eris.New("postgres: ingest: missing post url")
	}
	ranAt := res.RanAt
	if ranAt.IsZero() {
		ranAt = time.Now().UTC()
	}
	status := res.Status
	if status == "" {
		status = model.ScrapeStatusSuccess
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: ingest: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	out := &IngestResult{}

	err = tx.QueryRow(ctx,
		`INSERT INTO linkedin_posts (post_url, last_scraped_at, scrape_count, total_reactions)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (post_url) DO UPDATE SET
			scrape_count = linkedin_posts.scrape_count + 1,
			last_scraped_at = EXCLUDED.last_scraped_at,
			total_reactions = EXCLUDED.total_reactions
		RETURNING scrape_count`,
		res.PostURL, ranAt, res.TotalReactions,
	).Scan(&out.ScrapeCount)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: ingest: upsert post %s", res.PostURL)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO linkedin_posts_scrapes (post_url, run_id, ran_at, reactions_count, cost, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		res.PostURL, nullIfEmpty(res.RunID), ranAt, res.TotalReactions, res.Cost, status,
	).Scan(&out.ScrapeID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: ingest: insert scrape %s", res.PostURL)
	}

	for _, r := range res.Reactions {
		tag, err := tx.Exec(ctx,
			`INSERT INTO linkedin_engagers_by_post (scrape_id, linkedin_url, name, headline, engagement_type, post_url)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (linkedin_url, post_url) DO NOTHING`,
			out.ScrapeID, r.ProfileURL, nullIfEmpty(r.Name), nullIfEmpty(r.Headline), nullIfEmpty(r.ReactionType), res.PostURL,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: ingest: insert engager %s", r.ProfileURL)
		}
		if tag.RowsAffected() > 0 {
			out.Inserted++
		} else {
			out.Duplicates++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: ingest: commit tx")
	}
	return out, nil
}

// RecordEmptyScrape notes a scrape that returned no reactions. The post's
// last_scraped_at advances so the cooldown applies, but its scrape count and
// reaction total are left alone. An "empty" scrape event is appended.
func (s *PostgresStore) RecordEmptyScrape(ctx context.Context, res model.ScrapeResult) (int64, error) {
	if res.PostURL == "" {
		return 0, eris.New("postgres: record empty scrape: missing post url")
	}
	ranAt := res.RanAt
	if ranAt.IsZero() {
		ranAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: record empty scrape: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE linkedin_posts SET last_scraped_at = $2 WHERE post_url = $1`,
		res.PostURL, ranAt,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: record empty scrape: update post %s", res.PostURL)
	}
	if tag.RowsAffected() == 0 {
		return 0, eris.Errorf("postgres: record empty scrape: post %s not tracked", res.PostURL)
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO linkedin_posts_scrapes (post_url, run_id, ran_at, reactions_count, cost, status)
		VALUES ($1, $2, $3, 0, $4, $5)
		RETURNING id`,
		res.PostURL, nullIfEmpty(res.RunID), ranAt, res.Cost, model.ScrapeStatusEmpty,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: record empty scrape: insert scrape %s", res.PostURL)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: record empty scrape: commit tx")
	}
	return id, nil
}
