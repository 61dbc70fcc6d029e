package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/db"
	"github.com/sells-group/leadgen-cli/internal/model"
)

// UpsertPosts registers tracked posts. New posts start unscraped; existing
// posts only get their display name refreshed. Duplicate URLs keep the last
// name seen.
func (s *PostgresStore) UpsertPosts(ctx context.Context, posts []model.PostImport) (int64, error) {
	index := make(map[string]int, len(posts))
	rows := make([][]any, 0, len(posts))
	for _, p := range posts {
		url := strings.TrimSpace(p.URL)
		if url == "" {
			continue
		}
		row := []any{url, nullIfEmpty(strings.TrimSpace(p.Name)), 0, 0}
		if i, ok := index[url]; ok {
			rows[i] = row
			continue
		}
		index[url] = len(rows)
		rows = append(rows, row)
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "linkedin_posts",
		Columns:      []string{"post_url", "post_name", "scrape_count", "total_reactions"},
		ConflictKeys: []string{"post_url"},
		UpdateCols:   []string{"post_name"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert posts")
	}
	return n, nil
}

// DuePosts returns the URLs of posts eligible for a new scrape: below the
// scrape cap and outside the cooldown window. Never-scraped posts come first,
// then the newest.
func (s *PostgresStore) DuePosts(ctx context.Context, filter DueFilter) ([]string, error) {
	if filter.Now.IsZero() {
		filter.Now = time.Now()
	}

	rows, err := s.pool.Query(ctx,
		`SELECT post_url, scrape_count, last_scraped_at FROM linkedin_posts
		WHERE scrape_count < $1
		  AND (last_scraped_at IS NULL OR last_scraped_at < $2)
		ORDER BY CASE WHEN last_scraped_at IS NULL THEN 0 ELSE 1 END, created_at DESC, id DESC
		LIMIT $3`,
		filter.MaxScrapes, filter.cutoff(), filter.Limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: due posts")
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var (
			url         string
			count       int
			lastScraped *time.Time
		)
		if err := rows.Scan(&url, &count, &lastScraped); err != nil {
			return nil, eris.Wrap(err, "postgres: scan due post")
		}
		if filter.Due(count, lastScraped) {
			urls = append(urls, url)
		}
	}
	return urls, eris.Wrap(rows.Err(), "postgres: iterate due posts")
}

// PostsToEnrich returns posts whose media has not been enriched yet.
func (s *PostgresStore) PostsToEnrich(ctx context.Context, limit int) ([]model.Post, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, post_url, COALESCE(post_name, ''), scrape_count, total_reactions,
			COALESCE(media_type, ''), COALESCE(duration::text, ''), COALESCE(mime_type, ''),
			COALESCE(thumbnail, ''), COALESCE(video_url, ''), COALESCE(image_url, '')
		FROM linkedin_posts
		WHERE enriched = FALSE
		ORDER BY id
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: posts to enrich")
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(&p.ID, &p.URL, &p.Name, &p.ScrapeCount, &p.TotalReactions,
			&p.Media.Type, &p.Media.Duration, &p.Media.MimeType,
			&p.Media.Thumbnail, &p.Media.VideoURL, &p.Media.ImageURL); err != nil {
			return nil, eris.Wrap(err, "postgres: scan post")
		}
		posts = append(posts, p)
	}
	return posts, eris.Wrap(rows.Err(), "postgres: iterate posts")
}
