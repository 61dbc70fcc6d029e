package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Lead field API names.
const (
	FieldFirstName   = "FirstName"
	FieldLastName    = "LastName"
	FieldCompany     = "Company"
	FieldTitle       = "Title"
	FieldLinkedInURL = "LinkedIn_URL__c"
	FieldHeadline    = "LinkedIn_Headline__c"
	FieldPostName    = "Post_Name__c"
	FieldAudience    = "Engager_Audience__c"
	FieldPosition    = "Engager_Bucketed_Position__c"
)

// Lead represents a Salesforce Lead record.
type Lead struct {
	ID          string `json:"Id" salesforce:"Id"`
	FirstName   string `json:"FirstName" salesforce:"FirstName"`
	LastName    string `json:"LastName" salesforce:"LastName"`
	Company     string `json:"Company" salesforce:"Company"`
	Title       string `json:"Title" salesforce:"Title"`
	LinkedInURL string `json:"LinkedIn_URL__c" salesforce:"LinkedIn_URL__c"`
	Headline    string `json:"LinkedIn_Headline__c" salesforce:"LinkedIn_Headline__c"`
	PostName    string `json:"Post_Name__c" salesforce:"Post_Name__c"`
	Audience    string `json:"Engager_Audience__c" salesforce:"Engager_Audience__c"`
	Position    string `json:"Engager_Bucketed_Position__c" salesforce:"Engager_Bucketed_Position__c"`
}

// Fields returns the lead's values keyed by field API name.
func (l Lead) Fields() map[string]string {
	return map[string]string{
		FieldFirstName:   l.FirstName,
		FieldLastName:    l.LastName,
		FieldCompany:     l.Company,
		FieldTitle:       l.Title,
		FieldLinkedInURL: l.LinkedInURL,
		FieldHeadline:    l.Headline,
		FieldPostName:    l.PostName,
		FieldAudience:    l.Audience,
		FieldPosition:    l.Position,
	}
}

// leadFields are the SOQL fields selected for Lead queries.
var leadFields = []string{
	"Id", FieldFirstName, FieldLastName, FieldCompany, FieldTitle,
	FieldLinkedInURL, FieldHeadline, FieldPostName, FieldAudience, FieldPosition,
}

// CampaignLeads returns every Lead that is a member of the campaign.
func CampaignLeads(ctx context.Context, c Client, campaignID string) ([]Lead, error) {
	if campaignID == "" {
		return nil, eris.New("sf: campaign id is required")
	}
	soql := fmt.Sprintf(
		"SELECT %s FROM Lead WHERE Id IN (SELECT LeadId FROM CampaignMember WHERE CampaignId = '%s') ORDER BY CreatedDate",
		strings.Join(leadFields, ", "),
		escapeSoql(campaignID),
	)

	var leads []Lead
	if err := c.Query(ctx, soql, &leads); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: campaign leads %s", campaignID))
	}
	return leads, nil
}

// CreateLead creates a Lead and returns its ID. Salesforce requires LastName
// and Company.
func CreateLead(ctx context.Context, c Client, fields map[string]any) (string, error) {
	for _, req := range []string{FieldLastName, FieldCompany} {
		if v, _ := fields[req].(string); strings.TrimSpace(v) == "" {
			return "", eris.Errorf("sf: lead %s is required", req)
		}
	}
	id, err := c.InsertOne(ctx, "Lead", fields)
	if err != nil {
		return "", eris.Wrap(err, "sf: create lead")
	}
	return id, nil
}

// UpdateLead updates a Lead with the given fields.
func UpdateLead(ctx context.Context, c Client, leadID string, fields map[string]any) error {
	if leadID == "" {
		return eris.New("sf: lead id is required")
	}
	if len(fields) == 0 {
		return eris.New("sf: no fields to update")
	}
	if err := c.UpdateOne(ctx, "Lead", leadID, fields); err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: update lead %s", leadID))
	}
	return nil
}

// AddToCampaign makes the lead a member of the campaign.
func AddToCampaign(ctx context.Context, c Client, campaignID, leadID string) error {
	_, err := c.InsertOne(ctx, "CampaignMember", map[string]any{
		"CampaignId": campaignID,
		"LeadId":     leadID,
	})
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: add lead %s to campaign %s", leadID, campaignID))
	}
	return nil
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
