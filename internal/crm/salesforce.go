package crm

import (
	"context"
	"strings"

	sf "github.com/sells-group/leadgen-cli/pkg/salesforce"
)

// Placeholder fills Lead fields Salesforce requires when the value is
// unknown. It reads back as empty.
const Placeholder = "[not provided]"

var leadFieldByProp = map[string]string{
	PropLinkedInURL: sf.FieldLinkedInURL,
	PropFirstName:   sf.FieldFirstName,
	PropLastName:    sf.FieldLastName,
	PropHeadline:    sf.FieldHeadline,
	PropPostName:    sf.FieldPostName,
	PropCompany:     sf.FieldCompany,
	PropJobTitle:    sf.FieldTitle,
	PropAudience:    sf.FieldAudience,
	PropPosition:    sf.FieldPosition,
}

// Salesforce is a Client over the Leads of one Campaign.
type Salesforce struct {
	client     sf.Client
	campaignID string
}

// NewSalesforce scopes a Salesforce client to a campaign.
func NewSalesforce(client sf.Client, campaignID string) *Salesforce {
	return &Salesforce{client: client, campaignID: campaignID}
}

// ListContacts returns the campaign's leads.
func (s *Salesforce) ListContacts(ctx context.Context) ([]RemoteContact, error) {
	leads, err := sf.CampaignLeads(ctx, s.client, s.campaignID)
	if err != nil {
		return nil, err
	}
	out := make([]RemoteContact, 0, len(leads))
	for _, l := range leads {
		fields := l.Fields()
		props := Properties{}
		for prop, field := range leadFieldByProp {
			if v := fields[field]; v != "" && v != Placeholder {
				props[prop] = v
			}
		}
		out = append(out, RemoteContact{ID: l.ID, Properties: props})
	}
	return out, nil
}

// CreateContact creates a lead and adds it to the campaign. A lead that was
// created but not added is returned with its id and the membership error.
func (s *Salesforce) CreateContact(ctx context.Context, props Properties) (string, error) {
	fields := leadFields(props)
	for _, req := range []string{sf.FieldLastName, sf.FieldCompany} {
		if fields[req] == nil {
			fields[req] = Placeholder
		}
	}
	id, err := sf.CreateLead(ctx, s.client, fields)
	if err != nil {
		return "", err
	}
	if err := sf.AddToCampaign(ctx, s.client, s.campaignID, id); err != nil {
		return id, err
	}
	return id, nil
}

// UpdateContact writes props to an existing lead.
func (s *Salesforce) UpdateContact(ctx context.Context, id string, props Properties) error {
	return sf.UpdateLead(ctx, s.client, id, leadFields(props))
}

// AddToList is a no-op: CreateContact already joins the campaign.
func (s *Salesforce) AddToList(context.Context, []string) error {
	return nil
}

func leadFields(props Properties) map[string]any {
	fields := make(map[string]any, len(props))
	for prop, v := range props {
		field, ok := leadFieldByProp[prop]
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		fields[field] = v
	}
	return fields
}

var _ Client = (*Salesforce)(nil)
var _ Client = (*HubSpot)(nil)
