package store

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
)

const testPost = "https://www.linkedin.com/posts/acme-launch-123"

func threeReactions(t *testing.T) model.ScrapeResult {
	t.Helper()
	res, err := model.NewScrapeResult(testPost, []model.Reaction{
		{ProfileURL: "https://www.linkedin.com/in/ann", Name: "Ann Lee", Headline: "CEO at Acme", ReactionType: "LIKE", PostURL: testPost, TotalReactions: 3},
		{ProfileURL: "https://www.linkedin.com/in/bob", Name: "Bob Ray", ReactionType: "PRAISE", PostURL: testPost, TotalReactions: 3},
		{ProfileURL: "https://www.linkedin.com/in/cat", Name: "Cat Poe", ReactionType: "LIKE", PostURL: testPost, TotalReactions: 3},
	})
	require.NoError(t, err)
	res.RanAt = testNow
	res.RunID = "run-1"
	res.Cost = 0.012
	return res
}

func expectIngest(mock pgxmock.PgxPoolIface, res model.ScrapeResult, newCount int, scrapeID int64, affected []int64) {
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO linkedin_posts \(post_url, last_scraped_at, scrape_count, total_reactions\)[\s\S]*scrape_count = linkedin_posts.scrape_count \+ 1`).
		WithArgs(res.PostURL, res.RanAt, res.TotalReactions).
		WillReturnRows(pgxmock.NewRows([]string{"scrape_count"}).AddRow(newCount))
	mock.ExpectQuery(`INSERT INTO linkedin_posts_scrapes`).
		WithArgs(res.PostURL, "run-1", res.RanAt, res.TotalReactions, res.Cost, model.ScrapeStatusSuccess).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(scrapeID))
	for i, r := range res.Reactions {
		mock.ExpectExec(`INSERT INTO linkedin_engagers_by_post[\s\S]*ON CONFLICT \(linkedin_url, post_url\) DO NOTHING`).
			WithArgs(scrapeID, r.ProfileURL, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), res.PostURL).
			WillReturnResult(pgxmock.NewResult("INSERT", affected[i]))
	}
	mock.ExpectCommit()
}

func TestPostgresStore_IngestScrape_FirstScrape(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	res := threeReactions(t)

	expectIngest(mock, res, 1, 7, []int64{1, 1, 1})

	out, err := s.IngestScrape(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, &IngestResult{ScrapeID: 7, ScrapeCount: 1, Inserted: 3}, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IngestScrape_RepeatIsIdempotentForEngagers(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	res := threeReactions(t)

	expectIngest(mock, res, 1, 7, []int64{1, 1, 1})
	expectIngest(mock, res, 2, 8, []int64{0, 0, 0})

	first, err := s.IngestScrape(context.Background(), res)
	require.NoError(t, err)
	second, err := s.IngestScrape(context.Background(), res)
	require.NoError(t, err)

	assert.Equal(t, 1, first.ScrapeCount)
	assert.Equal(t, 2, second.ScrapeCount)
	assert.Equal(t, int64(8), second.ScrapeID)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, 3, second.Duplicates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IngestScrape_RollsBackOnEngagerFailure(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	res := threeReactions(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO linkedin_posts`).
		WillReturnRows(pgxmock.NewRows([]string{"scrape_count"}).AddRow(3))
	mock.ExpectQuery(`INSERT INTO linkedin_posts_scrapes`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectExec(`INSERT INTO linkedin_engagers_by_post`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO linkedin_engagers_by_post`).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	_, err := s.IngestScrape(context.Background(), res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert engager https://www.linkedin.com/in/bob")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IngestScrape_BeginFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	_, err := s.IngestScrape(context.Background(), threeReactions(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
}

func TestPostgresStore_IngestScrape_RequiresPostURL(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	_, err := s.IngestScrape(context.Background(), model.ScrapeResult{})
	require.Error(t, err)
}

func TestPostgresStore_RecordEmptyScrape(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	res := model.ScrapeResult{PostURL: testPost, RunID: "run-2", RanAt: testNow, Cost: 0.004}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE linkedin_posts SET last_scraped_at = \$2 WHERE post_url = \$1`).
		WithArgs(testPost, testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO linkedin_posts_scrapes[\s\S]*VALUES \(\$1, \$2, \$3, 0, \$4, \$5\)`).
		WithArgs(testPost, "run-2", testNow, 0.004, model.ScrapeStatusEmpty).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(12)))
	mock.ExpectCommit()

	id, err := s.RecordEmptyScrape(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordEmptyScrape_UnknownPost(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE linkedin_posts`).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	_, err := s.RecordEmptyScrape(context.Background(), model.ScrapeResult{PostURL: testPost, RanAt: testNow})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not tracked")
	assert.NoError(t, mock.ExpectationsWereMet())
}
