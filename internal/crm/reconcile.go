package crm

import (
	"strings"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Update is a set of property writes for one existing CRM contact.
type Update struct {
	RemoteID   string
	ContactID  int64
	Properties Properties
}

// Backfill is a set of local column fills taken from the CRM.
type Backfill struct {
	ContactID int64
	Changes   model.FieldValues
}

// Link records that a local contact exists remotely under RemoteID.
type Link struct {
	ContactID int64
	RemoteID  string
}

// Plan is the outcome of comparing local contacts with the CRM list.
type Plan struct {
	Create    []model.Contact
	Updates   []Update
	Backfills []Backfill
	Links     []Link

	NonPerson        int
	AlreadyPushed    int
	Matched          int
	LocalDuplicates  int
	RemoteDuplicates int
}

// Reconcile compares local contacts with the remote list. Contacts match on
// the identity key of their profile URL, or on a stored CRM id. Pure: it
// performs no I/O.
//
// An unmatched person profile becomes a create candidate unless it was
// already pushed. For a matched contact each whitelisted field is written
// remotely when the local value is non-empty and differs, and filled locally
// when the local value is empty and the remote one is not.
func Reconcile(local []model.Contact, remote []RemoteContact) Plan {
	var plan Plan

	byKey := make(map[string]RemoteContact, len(remote))
	byID := make(map[string]RemoteContact, len(remote))
	for _, r := range remote {
		byID[r.ID] = r
		key := model.IdentityKey(r.LinkedInURL())
		if key == "" {
			continue
		}
		if _, dup := byKey[key]; dup {
			plan.RemoteDuplicates++
			continue
		}
		byKey[key] = r
	}

	seen := make(map[string]bool, len(local))
	for _, c := range local {
		key := model.IdentityKey(c.LinkedInURL)
		if !model.IsPersonProfile(c.LinkedInURL) {
			plan.NonPerson++
			continue
		}
		if seen[key] {
			plan.LocalDuplicates++
			continue
		}
		seen[key] = true

		r, ok := byKey[key]
		if !ok && c.CRMID != "" {
			r, ok = byID[c.CRMID]
		}
		if !ok {
			if c.PushedToCRM {
				plan.AlreadyPushed++
				continue
			}
			plan.Create = append(plan.Create, c)
			continue
		}

		plan.Matched++
		if !c.PushedToCRM || c.CRMID != r.ID {
			plan.Links = append(plan.Links, Link{ContactID: c.ID, RemoteID: r.ID})
		}

		push, fill := diff(c, r)
		if len(push) > 0 {
			plan.Updates = append(plan.Updates, Update{RemoteID: r.ID, ContactID: c.ID, Properties: push})
		}
		if len(fill) > 0 {
			plan.Backfills = append(plan.Backfills, Backfill{ContactID: c.ID, Changes: fill})
		}
	}
	return plan
}

func diff(c model.Contact, r RemoteContact) (Properties, model.FieldValues) {
	var (
		push Properties
		fill model.FieldValues
	)
	values := c.Values()
	for _, uf := range updateFields {
		lv := strings.TrimSpace(values[uf.Field])
		rv := strings.TrimSpace(r.Properties[uf.Prop])
		switch {
		case lv != "" && lv != rv:
			if push == nil {
				push = Properties{}
			}
			push[uf.Prop] = lv
		case lv == "" && rv != "":
			if fill == nil {
				fill = model.FieldValues{}
			}
			fill[uf.Field] = rv
		}
	}
	return push, fill
}
