package enrich

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/classify"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/scrape"
	"github.com/sells-group/leadgen-cli/internal/store"
	"github.com/sells-group/leadgen-cli/internal/store/storetest"
)

var passTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestEnricher(st *storetest.Store, deps Deps) *Enricher {
	e := New(st, deps, Limits{CompanyTitle: 50, Audience: 100, Posts: 50, CommitEvery: 10})
	e.now = func() time.Time { return passTime }
	return e
}

func TestCompanyTitle_WritesOnlyRealChanges(t *testing.T) {
	st := &storetest.Store{}
	st.On("ContactsMissingCompanyTitle", mock.Anything, 50).Return([]model.Contact{
		{ID: 1, LinkedInURL: "https://www.linkedin.com/in/a"},
		{ID: 2, LinkedInURL: "https://www.linkedin.com/in/b", Company: "Acme"},
		{ID: 3, LinkedInURL: "https://www.linkedin.com/in/c", Company: "Kept"},
		{ID: 4, LinkedInURL: "https://www.linkedin.com/in/d"},
	}, nil)

	profiles := &fakeProfiles{
		profiles: map[string]scrape.Profile{
			"https://www.linkedin.com/in/a": {Company: "Fund", Title: "Partner"},
			"https://www.linkedin.com/in/b": {Company: "Acme", Title: "CTO"},
			// Transient blank result must not clear the stored company.
			"https://www.linkedin.com/in/c": {},
		},
		errs: map[string]error{"https://www.linkedin.com/in/d": errors.New("actor failed")},
	}

	e := newTestEnricher(st, Deps{Profiles: profiles})
	res, err := e.CompanyTitle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Result{Candidates: 4, Updated: 2, Unchanged: 1, Failed: 1}, *res)
	assert.Equal(t, []storetest.ContactUpdate{
		{ID: 1, Changes: model.FieldValues{model.FieldCompany: "Fund", model.FieldTitle: "Partner"}},
		{ID: 2, Changes: model.FieldValues{model.FieldTitle: "CTO"}},
	}, st.Batch.Contacts)
	assert.Equal(t, 10, st.Batch.Every)
	assert.Equal(t, 1, st.Batch.Commits)
	assert.Len(t, profiles.calls, 4)
	assert.Equal(t, []int64{1, 2, 3, 4}, st.Batch.Attempted, "every lookup is stamped, failed or not")
	assert.Equal(t, passTime, st.Batch.AttemptAt)
}

// rotatingStore orders company/title candidates the way the SQL selector
// does: never attempted first, then by attempt time, then id.
type rotatingStore struct {
	*storetest.Store
	contacts []model.Contact
}

func (s *rotatingStore) ContactsMissingCompanyTitle(_ context.Context, limit int) ([]model.Contact, error) {
	attempted := make(map[int64]int)
	if s.Batch != nil {
		for i, id := range s.Batch.Attempted {
			attempted[id] = i + 1
		}
	}
	out := append([]model.Contact(nil), s.contacts...)
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := attempted[out[i].ID], attempted[out[j].ID]
		if (ai == 0) != (aj == 0) {
			return ai == 0
		}
		if ai != aj {
			return ai < aj
		}
		return out[i].ID < out[j].ID
	})
	return out[:min(limit, len(out))], nil
}

func TestCompanyTitle_UnfillableContactsRotateOut(t *testing.T) {
	st := &rotatingStore{Store: &storetest.Store{}, contacts: []model.Contact{
		{ID: 1, LinkedInURL: "private-1"},
		{ID: 2, LinkedInURL: "private-2"},
		{ID: 3, LinkedInURL: "fresh"},
	}}
	profiles := &fakeProfiles{profiles: map[string]scrape.Profile{
		"fresh": {Company: "Acme", Title: "CEO"},
	}}
	e := New(st, Deps{Profiles: profiles}, Limits{CompanyTitle: 2, CommitEvery: 10})

	first, err := e.CompanyTitle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Candidates: 2, Unchanged: 2}, *first)

	second, err := e.CompanyTitle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Updated)
	assert.Equal(t, []storetest.ContactUpdate{
		{ID: 3, Changes: model.FieldValues{model.FieldCompany: "Acme", model.FieldTitle: "CEO"}},
	}, st.Batch.Contacts)
}

func TestCompanyTitle_UpdateFailureContinues(t *testing.T) {
	st := &storetest.Store{Batch: &storetest.Batch{FailIDs: map[int64]error{1: errors.New("constraint")}}}
	st.On("ContactsMissingCompanyTitle", mock.Anything, 50).Return([]model.Contact{
		{ID: 1, LinkedInURL: "a"},
		{ID: 2, LinkedInURL: "b"},
	}, nil)
	profiles := &fakeProfiles{profiles: map[string]scrape.Profile{
		"a": {Company: "A", Title: "T"},
		"b": {Company: "B", Title: "T"},
	}}

	res, err := newTestEnricher(st, Deps{Profiles: profiles}).CompanyTitle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Updated)
	require.Len(t, st.Batch.Contacts, 1)
	assert.Equal(t, int64(2), st.Batch.Contacts[0].ID)
}

func TestCompanyTitle_SelectorErrorIsFatal(t *testing.T) {
	st := &storetest.Store{}
	st.On("ContactsMissingCompanyTitle", mock.Anything, 50).Return(nil, errors.New("db down"))

	_, err := newTestEnricher(st, Deps{Profiles: &fakeProfiles{}}).CompanyTitle(context.Background())
	assert.Error(t, err)
	assert.Nil(t, st.Batch)
}

func TestCompanyTitle_NoCandidates(t *testing.T) {
	st := &storetest.Store{}
	st.On("ContactsMissingCompanyTitle", mock.Anything, 50).Return([]model.Contact{}, nil)

	res, err := newTestEnricher(st, Deps{Profiles: &fakeProfiles{}}).CompanyTitle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, *res)
	assert.Nil(t, st.Batch, "no transaction for an empty pass")
}

func TestAudience_ClassifiesAndCountsFallbacks(t *testing.T) {
	st := &storetest.Store{}
	st.On("ContactsMissingAudience", mock.Anything, 100).Return([]model.Contact{
		{ID: 1, Company: "Sequoia", Title: "Partner"},
		{ID: 2, Company: "Mystery", Title: "Wizard"},
		{ID: 3, Company: "Agency", Title: "CEO", Audience: "Marketing Agency"},
	}, nil)

	cl := &fakeClassifier{answers: map[string]classify.Classification{
		"Sequoia": {Audience: "Venture Capital Related", Position: "Partner"},
		"Agency":  {Audience: "Marketing Agency", Position: "CEO, Founder, or CoFounder at a Marketing Agency"},
	}}

	res, err := newTestEnricher(st, Deps{Classifier: cl}).Audience(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Candidates: 3, Updated: 3, Coerced: 1}, *res)
	assert.Equal(t, []storetest.ContactUpdate{
		{ID: 1, Changes: model.FieldValues{model.FieldAudience: "Venture Capital Related", model.FieldPosition: "Partner"}},
		{ID: 2, Changes: model.FieldValues{model.FieldAudience: "Other", model.FieldPosition: "Other"}},
		{ID: 3, Changes: model.FieldValues{model.FieldPosition: "CEO, Founder, or CoFounder at a Marketing Agency"}},
	}, st.Batch.Contacts)
	assert.Empty(t, st.Batch.Attempted)
}

func TestContacts_RunsAllPasses(t *testing.T) {
	st := &storetest.Store{}
	st.On("PromoteEngagers", mock.Anything).Return(&store.PromoteResult{Candidates: 3, NonPerson: 1, Promoted: 2}, nil)
	st.On("ContactsMissingCompanyTitle", mock.Anything, 50).Return([]model.Contact{}, nil)
	st.On("ContactsMissingAudience", mock.Anything, 100).Return([]model.Contact{}, nil)

	res, err := newTestEnricher(st, Deps{Profiles: &fakeProfiles{}, Classifier: &fakeClassifier{}}).Contacts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Promote.Promoted)
	st.AssertExpectations(t)
}

func TestContacts_PromoteErrorIsFatal(t *testing.T) {
	st := &storetest.Store{}
	st.On("PromoteEngagers", mock.Anything).Return(nil, errors.New("db down"))

	_, err := newTestEnricher(st, Deps{Profiles: &fakeProfiles{}}).Contacts(context.Background())
	assert.Error(t, err)
	st.AssertNotCalled(t, "ContactsMissingCompanyTitle", mock.Anything, mock.Anything)
}

func TestPosts(t *testing.T) {
	st := &storetest.Store{Batch: &storetest.Batch{Matched: map[string]int64{"https://www.linkedin.com/posts/gone": 0}}}
	st.On("PostsToEnrich", mock.Anything, 50).Return([]model.Post{
		{URL: "https://www.linkedin.com/posts/video?x=1"},
		{URL: "https://www.linkedin.com/posts/text"},
		{URL: "https://www.linkedin.com/posts/empty"},
		{URL: "https://www.linkedin.com/posts/broken"},
		{URL: "https://www.linkedin.com/posts/gone"},
		{URL: "https://www.linkedin.com/posts/same", Media: model.PostMedia{Type: "image", ImageURL: "i"}},
	}, nil)

	media := &fakeMedia{answers: map[string]mediaAnswer{
		"https://www.linkedin.com/posts/video?x=1": {media: model.PostMedia{Type: "video", Duration: "12.5", VideoURL: "v"}, found: true},
		"https://www.linkedin.com/posts/text":      {found: true},
		"https://www.linkedin.com/posts/empty":     {},
		"https://www.linkedin.com/posts/broken":    {err: errors.New("decode")},
		"https://www.linkedin.com/posts/gone":      {found: true},
		"https://www.linkedin.com/posts/same":      {media: model.PostMedia{Type: "image", ImageURL: "i"}, found: true},
	}}

	res, err := newTestEnricher(st, Deps{Media: media}).Posts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Candidates: 6, Updated: 1, Unchanged: 2, Skipped: 2, Failed: 1}, *res)

	require.Len(t, st.Batch.Posts, 4)
	assert.Equal(t, storetest.PostUpdate{
		URL:        "https://www.linkedin.com/posts/video?x=1",
		Changes:    model.FieldValues{model.FieldMediaType: "video", model.FieldDuration: "12.5", model.FieldVideoURL: "v"},
		EnrichedAt: passTime,
	}, st.Batch.Posts[0])
	assert.Nil(t, st.Batch.Posts[1].Changes, "a post without media is still flagged enriched")
	for _, p := range st.Batch.Posts {
		assert.Equal(t, passTime, p.EnrichedAt)
	}
	assert.Equal(t, 1, st.Batch.Commits)
}

func TestPassesRequireSource(t *testing.T) {
	e := newTestEnricher(&storetest.Store{}, Deps{})
	_, err := e.CompanyTitle(context.Background())
	assert.Error(t, err)
	_, err = e.Audience(context.Background())
	assert.Error(t, err)
	_, err = e.Posts(context.Background())
	assert.Error(t, err)
}
