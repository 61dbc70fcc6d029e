package model

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Contact enrichment columns.
const (
	FieldCompany  Field = "company"
	FieldTitle    Field = "title"
	FieldAudience Field = "engager_audience"
	FieldPosition Field = "engager_bucketed_position"
)

// ContactFields lists the enrichable contact columns.
var ContactFields = []Field{FieldCompany, FieldTitle, FieldAudience, FieldPosition}

// Engager is one reaction of one person to one post.
type Engager struct {
	ID             int64  `json:"id"`
	ScrapeID       int64  `json:"scrape_id"`
	LinkedInURL    string `json:"linkedin_url"`
	Name           string `json:"name"`
	Headline       string `json:"headline"`
	EngagementType string `json:"engagement_type"`
	PostURL        string `json:"post_url"`
}

// Contact is a person promoted from their engagements, unique by identity key.
type Contact struct {
	ID          int64      `json:"id"`
	IdentityKey string     `json:"identity_key"`
	LinkedInURL string     `json:"linkedin_url"`
	Name        string     `json:"name"`
	Headline    string     `json:"headline"`
	PostName    string     `json:"post_name"`
	Company     string     `json:"company"`
	Title       string     `json:"title"`
	Audience    string     `json:"engager_audience"`
	Position    string     `json:"engager_bucketed_position"`
	PushedToCRM bool       `json:"pushed_to_crm"`
	CRMID       string     `json:"crm_id,omitempty"`
	PushedAt    *time.Time `json:"pushed_at,omitempty"`
}

// Values returns the enrichable columns of c.
func (c Contact) Values() FieldValues {
	return FieldValues{
		FieldCompany:  c.Company,
		FieldTitle:    c.Title,
		FieldAudience: c.Audience,
		FieldPosition: c.Position,
	}
}

// FirstLastName splits Name on the first space. A single word is all first name.
func (c Contact) FirstLastName() (string, string) {
	name := strings.Join(strings.Fields(c.Name), " ")
	first, last, _ := strings.Cut(name, " ")
	return first, last
}

// IdentityKey normalizes a profile URL for matching: surrounding whitespace
// is trimmed and the result is Unicode case-folded. A Caser is stateful, so
// one is built per call.
func IdentityKey(profileURL string) string {
	return cases.Fold().String(strings.TrimSpace(profileURL))
}

// IsPersonProfile reports whether the URL points at a member profile rather
// than a company or showcase page.
func IsPersonProfile(profileURL string) bool {
	return strings.Contains(IdentityKey(profileURL), "/in/")
}
