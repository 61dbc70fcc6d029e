package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

var (
	contactColumnSet = columnSet(model.ContactFields)
	mediaColumnSet   = columnSet(model.MediaFields)
)

func columnSet(fields []model.Field) map[model.Field]int {
	m := make(map[model.Field]int, len(fields))
	for i, f := range fields {
		m[f] = i
	}
	return m
}

// pgBatch is a Batch over a lazily opened transaction.
type pgBatch struct {
	store   *PostgresStore
	every   int
	tx      pgx.Tx
	pending int
}

// BeginBatch returns a Batch that commits after every commitEvery
// successful updates. Values below 1 commit after each update.
func (s *PostgresStore) BeginBatch(_ context.Context, commitEvery int) (Batch, error) {
	if commitEvery < 1 {
		commitEvery = 1
	}
	return &pgBatch{store: s, every: commitEvery}, nil
}

func (b *pgBatch) UpdateContact(ctx context.Context, contactID int64, changes model.FieldValues) error {
	if len(changes) == 0 {
		return nil
	}
	set, args, err := setClause(changes, contactColumnSet, 2)
	if err != nil {
		return eris.Wrapf(err, "postgres: update contact %d", contactID)
	}
	sql := fmt.Sprintf("UPDATE linkedin_contacts SET %s, updated_at = now() WHERE id = $1", set)
	_, err = b.exec(ctx, true, sql, append([]any{contactID}, args...)...)
	return eris.Wrapf(err, "postgres: update contact %d", contactID)
}

// MarkProfileAttempted stamps a profile lookup so the contact moves behind
// those not yet tried. It does not count toward the commit interval.
func (b *pgBatch) MarkProfileAttempted(ctx context.Context, contactID int64, at time.Time) error {
	_, err := b.exec(ctx, false,
		"UPDATE linkedin_contacts SET company_title_attempted_at = $2 WHERE id = $1",
		contactID, at)
	return eris.Wrapf(err, "postgres: mark profile attempted %d", contactID)
}

// UpdatePostMedia writes changed media columns and flags the post enriched.
// The match ignores any query string on either side.
func (b *pgBatch) UpdatePostMedia(ctx context.Context, postURL string, changes model.FieldValues, enrichedAt time.Time) (int64, error) {
	set, args, err := setClause(changes, mediaColumnSet, 3)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: update post media %s", postURL)
	}
	assignments := "enriched = TRUE, enriched_time = $2"
	if set != "" {
		assignments = set + ", " + assignments
	}
	sql := fmt.Sprintf("UPDATE linkedin_posts SET %s WHERE split_part(post_url, '?', 1) = $1", assignments)
	n, err := b.exec(ctx, true, sql, append([]any{model.CanonicalPostURL(postURL), enrichedAt}, args...)...)
	return n, eris.Wrapf(err, "postgres: update post media %s", postURL)
}

// exec runs one statement inside a savepoint. Counted statements commit the
// transaction once enough have accumulated.
func (b *pgBatch) exec(ctx context.Context, counted bool, sql string, args ...any) (int64, error) {
	if b.tx == nil {
		tx, err := b.store.pool.Begin(ctx)
		if err != nil {
			return 0, eris.Wrap(err, "begin tx")
		}
		b.tx = tx
	}

	if _, err := b.tx.Exec(ctx, "SAVEPOINT batch_item"); err != nil {
		return 0, eris.Wrap(err, "savepoint")
	}
	tag, err := b.tx.Exec(ctx, sql, args...)
	if err != nil {
		if _, rbErr := b.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT batch_item"); rbErr != nil {
			return 0, eris.Wrap(rbErr, "rollback to savepoint")
		}
		return 0, err
	}
	if _, err := b.tx.Exec(ctx, "RELEASE SAVEPOINT batch_item"); err != nil {
		return 0, eris.Wrap(err, "release savepoint")
	}

	if !counted {
		return tag.RowsAffected(), nil
	}
	b.pending++
	if b.pending >= b.every {
		if err := b.Commit(ctx); err != nil {
			return 0, err
		}
	}
	return tag.RowsAffected(), nil
}

func (b *pgBatch) Commit(ctx context.Context) error {
	if b.tx == nil {
		return nil
	}
	tx := b.tx
	b.tx = nil
	b.pending = 0
	return eris.Wrap(tx.Commit(ctx), "postgres: batch commit")
}

func (b *pgBatch) Rollback(ctx context.Context) error {
	if b.tx == nil {
		return nil
	}
	tx := b.tx
	b.tx = nil
	b.pending = 0
	return eris.Wrap(tx.Rollback(ctx), "postgres: batch rollback")
}

// setClause renders "col = $n" assignments in the column order of allowed,
// numbering placeholders from first. Unknown columns are rejected.
func setClause(changes model.FieldValues, allowed map[model.Field]int, first int) (string, []any, error) {
	if len(changes) == 0 {
		return "", nil, nil
	}
	ordered := make([]model.Field, len(allowed))
	present := make([]bool, len(allowed))
	for f := range changes {
		i, ok := allowed[f]
		if !ok {
			return "", nil, eris.Errorf("unknown column %q", f)
		}
		ordered[i] = f
		present[i] = true
	}

	var parts []string
	var args []any
	for i, f := range ordered {
		if !present[i] {
			continue
		}
		val, err := columnValue(f, changes[f])
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, fmt.Sprintf("%s = $%d", f, first+len(args)))
		args = append(args, val)
	}
	return strings.Join(parts, ", "), args, nil
}

// columnValue converts a string value to the column's SQL type.
func columnValue(f model.Field, v string) (any, error) {
	if f != model.FieldDuration {
		return v, nil
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return nil, eris.Wrapf(err, "parse duration %q", v)
	}
	return d, nil
}
