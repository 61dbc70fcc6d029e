package store

import (
	"context"
	"time"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// DueFilter specifies which posts are eligible for a new scrape.
type DueFilter struct {
	MaxScrapes int           // posts at or above this count are done
	Cooldown   time.Duration // minimum time since the last scrape
	Limit      int           // batch size
	Now        time.Time     // zero means time.Now()
}

func (f DueFilter) cutoff() time.Time {
	return f.Now.Add(-f.Cooldown)
}

// Due reports whether a post with the given scrape history passes the filter.
func (f DueFilter) Due(scrapeCount int, lastScrapedAt *time.Time) bool {
	if scrapeCount >= f.MaxScrapes {
		return false
	}
	return lastScrapedAt == nil || lastScrapedAt.Before(f.cutoff())
}

// IngestResult reports the effect of one ingested scrape.
type IngestResult struct {
	ScrapeID    int64 `json:"scrape_id"`
	ScrapeCount int   `json:"scrape_count"`
	Inserted    int   `json:"inserted"`
	Duplicates  int   `json:"duplicates"`
}

// PromoteResult reports the effect of promoting engagers to contacts.
type PromoteResult struct {
	Candidates int   `json:"candidates"`
	NonPerson  int   `json:"non_person"`
	Promoted   int64 `json:"promoted"`
}

// Stats is a snapshot of table sizes for summary logs.
type Stats struct {
	Posts          int `json:"posts"`
	ScrapedPosts   int `json:"scraped_posts"`
	TotalReactions int `json:"total_reactions"`
	Engagers       int `json:"engagers"`
	Contacts       int `json:"contacts"`
	Pushed         int `json:"pushed"`
}

// Batch groups enrichment writes into transactions that are committed every
// N successful updates. Each update runs under its own savepoint so a failed
// statement rolls back only itself.
type Batch interface {
	UpdateContact(ctx context.Context, contactID int64, changes model.FieldValues) error
	UpdatePostMedia(ctx context.Context, postURL string, changes model.FieldValues, enrichedAt time.Time) (int64, error)
	MarkProfileAttempted(ctx context.Context, contactID int64, at time.Time) error
	// Commit flushes the pending tail. The batch stays usable afterwards.
	Commit(ctx context.Context) error
	// Rollback discards uncommitted updates. Safe to call after Commit.
	Rollback(ctx context.Context) error
}

// Store defines the persistence interface for the lead pipeline.
type Store interface {
	// Posts
	UpsertPosts(ctx context.Context, posts []model.PostImport) (int64, error)
	DuePosts(ctx context.Context, filter DueFilter) ([]string, error)
	PostsToEnrich(ctx context.Context, limit int) ([]model.Post, error)

	// Ingestion
	IngestScrape(ctx context.Context, res model.ScrapeResult) (*IngestResult, error)
	RecordEmptyScrape(ctx context.Context, res model.ScrapeResult) (int64, error)

	// Contacts
	PromoteEngagers(ctx context.Context) (*PromoteResult, error)
	ContactsMissingCompanyTitle(ctx context.Context, limit int) ([]model.Contact, error)
	ContactsMissingAudience(ctx context.Context, limit int) ([]model.Contact, error)
	ContactsForSync(ctx context.Context) ([]model.Contact, error)
	MarkPushed(ctx context.Context, contactID int64, crmID string) error

	// Writes
	BeginBatch(ctx context.Context, commitEvery int) (Batch, error)

	// Lifecycle
	Stats(ctx context.Context) (*Stats, error)
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
