package enrich

import (
	"context"

	"github.com/sells-group/leadgen-cli/internal/classify"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/scrape"
)

// --- Source fakes ---

type fakeProfiles struct {
	profiles map[string]scrape.Profile
	errs     map[string]error
	calls    []string
}

func (f *fakeProfiles) Profile(_ context.Context, url string) (scrape.Profile, error) {
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return scrape.Profile{URL: url}, err
	}
	p := f.profiles[url]
	p.URL = url
	return p, nil
}

type fakeClassifier struct {
	answers map[string]classify.Classification
}

func (f *fakeClassifier) Classify(_ context.Context, in classify.Input) (classify.Classification, bool) {
	if c, ok := f.answers[in.Company]; ok {
		return c, false
	}
	return classify.Classification{Audience: "Other", Position: "Other"}, true
}

type mediaAnswer struct {
	media model.PostMedia
	found bool
	err   error
}

type fakeMedia struct {
	answers map[string]mediaAnswer
}

func (f *fakeMedia) Media(_ context.Context, url string) (model.PostMedia, bool, error) {
	a := f.answers[url]
	return a.media, a.found, a.err
}
