// Package crm reconciles local contacts with a CRM contact list: it pushes
// new person profiles, updates enrichment fields the CRM lacks or has stale,
// and backfills local gaps from values the CRM already holds.
package crm

import (
	"context"
	"strings"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Logical CRM property names. Backends map them to their own field names.
const (
	PropLinkedInURL = "hs_linkedin_url"
	PropFirstName   = "firstname"
	PropLastName    = "lastname"
	PropHeadline    = "phantombuster_linkedin_headline"
	PropPostName    = "post_name"
	PropCompany     = "company"
	PropJobTitle    = "jobtitle"
	PropAudience    = "engager_audience"
	PropPosition    = "engager_bucketed_position"
)

// Properties maps logical property names to values.
type Properties map[string]string

// RemoteContact is one contact in the CRM list.
type RemoteContact struct {
	ID         string
	Properties Properties
}

// LinkedInURL returns the contact's profile URL property.
func (r RemoteContact) LinkedInURL() string {
	return r.Properties[PropLinkedInURL]
}

// Client is a CRM backend scoped to one contact list.
type Client interface {
	// ListContacts returns every contact in the list. A failure on any
	// page fails the call.
	ListContacts(ctx context.Context) ([]RemoteContact, error)
	// CreateContact creates a contact and returns its id. A non-empty id
	// with an error means the contact exists but a follow-up step failed.
	CreateContact(ctx context.Context, props Properties) (string, error)
	UpdateContact(ctx context.Context, id string, props Properties) error
	// AddToList appends contacts to the list.
	AddToList(ctx context.Context, ids []string) error
}

// updateFields maps the contact columns the sync may write remotely (and
// backfill locally) to their CRM properties.
var updateFields = []struct {
	Field model.Field
	Prop  string
}{
	{model.FieldCompany, PropCompany},
	{model.FieldTitle, PropJobTitle},
	{model.FieldAudience, PropAudience},
	{model.FieldPosition, PropPosition},
}

// ReadProperties are the properties requested when listing contacts.
var ReadProperties = []string{PropLinkedInURL, PropCompany, PropJobTitle, PropAudience, PropPosition}

// CreateProperties maps a local contact onto the properties of a new CRM
// contact. Empty values are omitted.
func CreateProperties(c model.Contact) Properties {
	first, last := c.FirstLastName()
	props := Properties{
		PropLinkedInURL: strings.TrimSpace(c.LinkedInURL),
		PropFirstName:   first,
		PropLastName:    last,
		PropHeadline:    c.Headline,
		PropPostName:    c.PostName,
	}
	values := c.Values()
	for _, uf := range updateFields {
		props[uf.Prop] = values[uf.Field]
	}
	for k, v := range props {
		if strings.TrimSpace(v) == "" {
			delete(props, k)
		}
	}
	return props
}
