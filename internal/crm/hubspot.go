package crm

import (
	"context"

	"github.com/sells-group/leadgen-cli/pkg/hubspot"
)

// HubSpot is a Client over one HubSpot static list. Logical property names
// are HubSpot's own.
type HubSpot struct {
	client hubspot.Client
	listID string
}

// NewHubSpot scopes a HubSpot client to a contact list.
func NewHubSpot(client hubspot.Client, listID string) *HubSpot {
	return &HubSpot{client: client, listID: listID}
}

// ListContacts returns every member of the list.
func (h *HubSpot) ListContacts(ctx context.Context) ([]RemoteContact, error) {
	contacts, err := h.client.ListContacts(ctx, h.listID, ReadProperties)
	if err != nil {
		return nil, err
	}
	out := make([]RemoteContact, len(contacts))
	for i, c := range contacts {
		out[i] = RemoteContact{ID: c.ID, Properties: Properties(c.Properties)}
	}
	return out, nil
}

// CreateContact creates a contact. List membership is a separate call.
func (h *HubSpot) CreateContact(ctx context.Context, props Properties) (string, error) {
	return h.client.CreateContact(ctx, props)
}

// UpdateContact writes props to an existing contact.
func (h *HubSpot) UpdateContact(ctx context.Context, id string, props Properties) error {
	return h.client.UpdateContact(ctx, id, props)
}

// AddToList appends contacts to the list.
func (h *HubSpot) AddToList(ctx context.Context, ids []string) error {
	return h.client.AddToList(ctx, h.listID, ids)
}
