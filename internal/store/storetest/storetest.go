// Package storetest provides store test doubles shared by the pipeline
// packages.
package storetest

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// Store is a testify mock of store.Store. BeginBatch is not mocked: it
// returns the Batch recorder, creating one on first use.
type Store struct {
	mock.Mock
	Batch    *Batch
	BeginErr error
}

func (m *Store) UpsertPosts(ctx context.Context, posts []model.PostImport) (int64, error) {
	args := m.Called(ctx, posts)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Store) DuePosts(ctx context.Context, filter store.DueFilter) ([]string, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *Store) PostsToEnrich(ctx context.Context, limit int) ([]model.Post, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Post), args.Error(1)
}

func (m *Store) IngestScrape(ctx context.Context, res model.ScrapeResult) (*store.IngestResult, error) {
	args := m.Called(ctx, res)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.IngestResult), args.Error(1)
}

func (m *Store) RecordEmptyScrape(ctx context.Context, res model.ScrapeResult) (int64, error) {
	args := m.Called(ctx, res)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Store) PromoteEngagers(ctx context.Context) (*store.PromoteResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.PromoteResult), args.Error(1)
}

func (m *Store) ContactsMissingCompanyTitle(ctx context.Context, limit int) ([]model.Contact, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Contact), args.Error(1)
}

func (m *Store) ContactsMissingAudience(ctx context.Context, limit int) ([]model.Contact, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Contact), args.Error(1)
}

func (m *Store) ContactsForSync(ctx context.Context) ([]model.Contact, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Contact), args.Error(1)
}

func (m *Store) MarkPushed(ctx context.Context, contactID int64, crmID string) error {
	return m.Called(ctx, contactID, crmID).Error(0)
}

func (m *Store) BeginBatch(_ context.Context, commitEvery int) (store.Batch, error) {
	if m.BeginErr != nil {
		return nil, m.BeginErr
	}
	if m.Batch == nil {
		m.Batch = &Batch{}
	}
	m.Batch.Every = commitEvery
	return m.Batch, nil
}

func (m *Store) Stats(ctx context.Context) (*store.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Stats), args.Error(1)
}

func (m *Store) Ping(ctx context.Context) error    { return m.Called(ctx).Error(0) }
func (m *Store) Migrate(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *Store) Close() error                      { return nil }

type ContactUpdate struct {
	ID      int64
	Changes model.FieldValues
}

type PostUpdate struct {
	URL        string
	Changes    model.FieldValues
	EnrichedAt time.Time
}

// Batch records the writes made through a store.Batch.
type Batch struct {
	Every      int
	Contacts   []ContactUpdate
	Posts      []PostUpdate
	FailIDs    map[int64]error  // UpdateContact fails for these ids
	Matched    map[string]int64 // UpdatePostMedia row counts; default 1
	Attempted  []int64
	AttemptAt  time.Time
	Commits    int
	RolledBack bool
}

func (b *Batch) UpdateContact(_ context.Context, id int64, changes model.FieldValues) error {
	if err := b.FailIDs[id]; err != nil {
		return err
	}
	b.Contacts = append(b.Contacts, ContactUpdate{ID: id, Changes: changes})
	return nil
}

func (b *Batch) UpdatePostMedia(_ context.Context, url string, changes model.FieldValues, at time.Time) (int64, error) {
	b.Posts = append(b.Posts, PostUpdate{URL: url, Changes: changes, EnrichedAt: at})
	if n, ok := b.Matched[url]; ok {
		return n, nil
	}
	return 1, nil
}

func (b *Batch) MarkProfileAttempted(_ context.Context, id int64, at time.Time) error {
	b.Attempted = append(b.Attempted, id)
	b.AttemptAt = at
	return nil
}

func (b *Batch) Commit(context.Context) error {
	b.Commits++
	return nil
}

func (b *Batch) Rollback(context.Context) error {
	b.RolledBack = true
	return nil
}

var _ store.Store = (*Store)(nil)
