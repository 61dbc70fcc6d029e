package scrape

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Profile is the current job scraped from a person profile.
type Profile struct {
	URL     string
	Company string
	Title   string
}

// Values returns the profile as contact field values.
func (p Profile) Values() model.FieldValues {
	return model.FieldValues{
		model.FieldCompany: p.Company,
		model.FieldTitle:   p.Title,
	}
}

type profileItem struct {
	BasicInfo struct {
		CurrentCompany string `json:"current_company"`
	} `json:"basic_info"`
	Experience []struct {
		Title     string `json:"title"`
		Company   string `json:"company"`
		IsCurrent bool   `json:"is_current"`
	} `json:"experience"`
}

// DecodeProfile picks company and title from the first profile item. The
// first current job wins, else the first listed one. basic_info's current
// company is preferred over the job's company. No items yields an empty
// profile.
func DecodeProfile(url string, items []json.RawMessage) (Profile, error) {
	p := Profile{URL: url}
	if len(items) == 0 {
		return p, nil
	}

	var it profileItem
	if err := json.Unmarshal(items[0], &it); err != nil {
		return p, eris.Wrap(err, "scrape: decode profile item")
	}

	p.Company = strings.TrimSpace(it.BasicInfo.CurrentCompany)
	if len(it.Experience) == 0 {
		return p, nil
	}
	job := it.Experience[0]
	for _, e := range it.Experience {
		if e.IsCurrent {
			job = e
			break
		}
	}
	p.Title = strings.TrimSpace(job.Title)
	if p.Company == "" {
		p.Company = strings.TrimSpace(job.Company)
	}
	return p, nil
}

// Profile scrapes a person profile for its current company and title.
func (s *Scraper) Profile(ctx context.Context, profileURL string) (Profile, error) {
	_, items, err := s.call(ctx, s.cfg.ProfileActor, map[string]string{"username": profileURL})
	if err != nil {
		return Profile{URL: profileURL}, eris.Wrapf(err, "scrape: profile %s", profileURL)
	}
	return DecodeProfile(profileURL, items)
}
