package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/db"
	"github.com/sells-group/leadgen-cli/internal/model"
)

const contactColumns = `id, identity_key, linkedin_url, COALESCE(name, ''), COALESCE(headline, ''),
	COALESCE(post_name, ''), COALESCE(company, ''), COALESCE(title, ''),
	COALESCE(engager_audience, ''), COALESCE(engager_bucketed_position, ''),
	pushed_to_crm, COALESCE(crm_id, ''), pushed_at`

// PromoteEngagers copies engagers not yet known as contacts into
// linkedin_contacts, one row per identity key. The earliest engagement wins
// for name, headline and post name. Company and showcase pages are skipped.
func (s *PostgresStore) PromoteEngagers(ctx context.Context) (*PromoteResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT e.linkedin_url, COALESCE(e.name, ''), COALESCE(e.headline, ''), COALESCE(p.post_name, '')
		FROM linkedin_engagers_by_post e
		LEFT JOIN linkedin_posts p ON p.post_url = e.post_url
		WHERE e.linkedin_url <> ''
		  AND NOT EXISTS (SELECT 1 FROM linkedin_contacts c WHERE c.linkedin_url = e.linkedin_url)
		ORDER BY e.id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: promote engagers: select")
	}
	defer rows.Close()

	res := &PromoteResult{}
	seen := make(map[string]bool)
	var batch [][]any
	for rows.Next() {
		var url, name, headline, postName string
		if err := rows.Scan(&url, &name, &headline, &postName); err != nil {
			return nil, eris.Wrap(err, "postgres: promote engagers: scan")
		}
		res.Candidates++
		if !model.IsPersonProfile(url) {
			res.NonPerson++
			continue
		}
		key := model.IdentityKey(url)
		if seen[key] {
			continue
		}
		seen[key] = true
		batch = append(batch, []any{key, url, nullIfEmpty(name), nullIfEmpty(headline), nullIfEmpty(postName)})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: promote engagers: iterate")
	}
	rows.Close()

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "linkedin_contacts",
		Columns:      []string{"identity_key", "linkedin_url", "name", "headline", "post_name"},
		ConflictKeys: []string{"identity_key"},
		DoNothing:    true,
	}, batch)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: promote engagers")
	}
	res.Promoted = n
	return res, nil
}

// ContactsMissingCompanyTitle returns contacts lacking a company or a title.
// Contacts never looked up come first, then the least recently attempted, so
// profiles that cannot be filled rotate out of the batch.
func (s *PostgresStore) ContactsMissingCompanyTitle(ctx context.Context, limit int) ([]model.Contact, error) {
	return s.queryContacts(ctx, "contacts missing company/title",
		`SELECT `+contactColumns+` FROM linkedin_contacts
		WHERE company IS NULL OR company = '' OR title IS NULL OR title = ''
		ORDER BY company_title_attempted_at NULLS FIRST, id
		LIMIT $1`, limit)
}

// ContactsMissingAudience returns contacts that have both company and title
// but lack an audience or position bucket.
func (s *PostgresStore) ContactsMissingAudience(ctx context.Context, limit int) ([]model.Contact, error) {
	return s.queryContacts(ctx, "contacts missing audience",
		`SELECT `+contactColumns+` FROM linkedin_contacts
		WHERE company <> '' AND title <> ''
		  AND (engager_audience IS NULL OR engager_audience = ''
		    OR engager_bucketed_position IS NULL OR engager_bucketed_position = '')
		ORDER BY id
		LIMIT $1`, limit)
}

// ContactsForSync returns every contact for CRM reconciliation.
func (s *PostgresStore) ContactsForSync(ctx context.Context) ([]model.Contact, error) {
	return s.queryContacts(ctx, "contacts for sync",
		`SELECT `+contactColumns+` FROM linkedin_contacts ORDER BY id`)
}

// MarkPushed records that a contact exists in the CRM. An empty crmID keeps
// any id already stored; the first push time is preserved.
func (s *PostgresStore) MarkPushed(ctx context.Context, contactID int64, crmID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE linkedin_contacts SET
			pushed_to_crm = TRUE,
			crm_id = COALESCE($2, crm_id),
			pushed_at = COALESCE(pushed_at, now()),
			updated_at = now()
		WHERE id = $1`,
		contactID, nullIfEmpty(crmID),
	)
	return eris.Wrapf(err, "postgres: mark pushed %d", contactID)
}

func (s *PostgresStore) queryContacts(ctx context.Context, op, sql string, args ...any) ([]model.Contact, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	contacts, err := pgx.CollectRows(rows, scanContact)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: scan %s", op)
	}
	return contacts, nil
}

func scanContact(row pgx.CollectableRow) (model.Contact, error) {
	var c model.Contact
	err := row.Scan(&c.ID, &c.IdentityKey, &c.LinkedInURL, &c.Name, &c.Headline,
		&c.PostName, &c.Company, &c.Title, &c.Audience, &c.Position,
		&c.PushedToCRM, &c.CRMID, &c.PushedAt)
	return c, err
}
