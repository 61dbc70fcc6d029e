package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func dueFilter() DueFilter {
	return DueFilter{MaxScrapes: 5, Cooldown: 48 * time.Hour, Limit: 5, Now: testNow}
}

func TestDueFilter_Due(t *testing.T) {
	f := dueFilter()
	recent := testNow.Add(-24 * time.Hour)
	stale := testNow.Add(-72 * time.Hour)

	tests := []struct {
		name  string
		count int
		last  *time.Time
		want  bool
	}{
		{"never scraped", 0, nil, true},
		{"stale and under the cap", 2, &stale, true},
		{"inside the cooldown window", 1, &recent, false},
		{"at the cap, cooldown elapsed", 5, &stale, false},
		{"over the cap, never scraped", 6, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Due(tt.count, tt.last))
		})
	}
}

func TestPostgresStore_DuePosts(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	f := dueFilter()
	recent := testNow.Add(-time.Hour)
	stale := testNow.Add(-96 * time.Hour)
	var never *time.Time

	mock.ExpectQuery(`SELECT post_url, scrape_count, last_scraped_at FROM linkedin_posts\s+WHERE scrape_count < \$1`).
		WithArgs(5, testNow.Add(-48*time.Hour), 5).
		WillReturnRows(pgxmock.NewRows([]string{"post_url", "scrape_count", "last_scraped_at"}).
			AddRow("https://www.linkedin.com/posts/new", 0, never).
			AddRow("https://www.linkedin.com/posts/stale", 3, &stale).
			AddRow("https://www.linkedin.com/posts/cooling", 1, &recent).
			AddRow("https://www.linkedin.com/posts/maxed", 5, &stale))

	urls, err := s.DuePosts(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://www.linkedin.com/posts/new",
		"https://www.linkedin.com/posts/stale",
	}, urls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DuePosts_OrdersNeverScrapedFirst(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`ORDER BY CASE WHEN last_scraped_at IS NULL THEN 0 ELSE 1 END, created_at DESC, id DESC\s+LIMIT \$3`).
		WithArgs(5, testNow.Add(-48*time.Hour), 5).
		WillReturnRows(pgxmock.NewRows([]string{"post_url", "scrape_count", "last_scraped_at"}))

	urls, err := s.DuePosts(context.Background(), dueFilter())
	require.NoError(t, err)
	assert.Empty(t, urls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DuePosts_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT post_url`).WillReturnError(errors.New("connection refused"))

	_, err := s.DuePosts(context.Background(), dueFilter())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: due posts")
}

func TestPostgresStore_UpsertPosts(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	cols := []string{"post_url", "post_name", "scrape_count", "total_reactions"}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_linkedin_posts"`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_linkedin_posts"}, cols).WillReturnResult(2)
	mock.ExpectExec(`ON CONFLICT \("post_url"\) DO UPDATE SET "post_name" = EXCLUDED."post_name"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := s.UpsertPosts(context.Background(), []model.PostImport{
		{URL: "https://www.linkedin.com/posts/a", Name: "Launch"},
		{URL: "  ", Name: "blank link"},
		{URL: "https://www.linkedin.com/posts/b", Name: "Webinar"},
		{URL: "https://www.linkedin.com/posts/a", Name: "Launch (final)"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertPosts_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	n, err := s.UpsertPosts(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PostsToEnrich(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM linkedin_posts\s+WHERE enriched = FALSE`).
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "post_url", "post_name", "scrape_count", "total_reactions",
			"media_type", "duration", "mime_type", "thumbnail", "video_url", "image_url"}).
			AddRow(int64(3), "https://www.linkedin.com/posts/a", "Launch", 2, 80, "", "", "", "", "", "").
			AddRow(int64(4), "https://www.linkedin.com/posts/b", "", 1, 12, "video", "31.5", "video/mp4", "", "", ""))

	posts, err := s.PostsToEnrich(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "Launch", posts[0].Name)
	assert.Equal(t, "video", posts[1].Media.Type)
	assert.Equal(t, "31.5", posts[1].Media.Duration)
	assert.NoError(t, mock.ExpectationsWereMet())
}
