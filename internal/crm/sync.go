package crm

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// Result summarizes one sync pass.
type Result struct {
	Local         int `json:"local"`
	Remote        int `json:"remote"`
	Matched       int `json:"matched"`
	Created       int `json:"created"`
	CreateFailed  int `json:"create_failed"`
	Updated       int `json:"updated"`
	UpdateFailed  int `json:"update_failed"`
	Linked        int `json:"linked"`
	Backfilled    int `json:"backfilled"`
	NonPerson     int `json:"non_person"`
	AlreadyPushed int `json:"already_pushed"`
}

// Syncer reconciles the contact table against one CRM list.
type Syncer struct {
	client      Client
	store       store.Store
	addToList   bool
	commitEvery int
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithAddToList appends created contacts to the list after creation.
func WithAddToList(enabled bool) Option {
	return func(s *Syncer) { s.addToList = enabled }
}

// WithCommitEvery sets the backfill commit interval.
func WithCommitEvery(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.commitEvery = n
		}
	}
}

// NewSyncer creates a Syncer over the given CRM client and store.
func NewSyncer(client Client, st store.Store, opts ...Option) *Syncer {
	s := &Syncer{client: client, store: st, commitEvery: 10}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Sync pushes missing contacts, then updates stale remote fields and
// backfills local gaps. A failure to read the remote list aborts the pass
// before any write, and so does failing to record a created contact's id.
// Other per-contact write failures are counted and skipped.
func (s *Syncer) Sync(ctx context.Context) (*Result, error) {
	log := zap.L().With(zap.String("stage", "sync_crm"))

	local, err := s.store.ContactsForSync(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "crm: load contacts")
	}
	remote, err := s.client.ListContacts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "crm: list contacts")
	}

	res := &Result{Local: len(local)}
	plan := Reconcile(local, remote)
	res.NonPerson = plan.NonPerson
	res.AlreadyPushed = plan.AlreadyPushed
	if plan.RemoteDuplicates > 0 {
		log.Warn("duplicate profile urls in crm list, first match wins",
			zap.Int("duplicates", plan.RemoteDuplicates))
	}

	if len(plan.Create) > 0 {
		created, markErr := s.create(ctx, plan.Create, res)
		if s.addToList && len(created) > 0 {
			if err := s.client.AddToList(ctx, created); err != nil {
				log.Warn("add to list failed", zap.Int("contacts", len(created)), zap.Error(err))
			}
		}
		if markErr != nil {
			return res, markErr
		}

		// Re-read so updates and backfill see the contacts just created.
		if local, err = s.store.ContactsForSync(ctx); err != nil {
			return res, eris.Wrap(err, "crm: reload contacts")
		}
		if remote, err = s.client.ListContacts(ctx); err != nil {
			return res, eris.Wrap(err, "crm: re-list contacts")
		}
		plan = Reconcile(local, remote)
	}
	res.Remote = len(remote)
	res.Matched = plan.Matched

	for _, u := range plan.Updates {
		if err := s.client.UpdateContact(ctx, u.RemoteID, u.Properties); err != nil {
			res.UpdateFailed++
			log.Warn("update failed", zap.Int64("contact_id", u.ContactID),
				zap.String("crm_id", u.RemoteID), zap.Error(err))
			continue
		}
		res.Updated++
	}

	for _, l := range plan.Links {
		if err := s.store.MarkPushed(ctx, l.ContactID, l.RemoteID); err != nil {
			log.Warn("link failed", zap.Int64("contact_id", l.ContactID), zap.Error(err))
			continue
		}
		res.Linked++
	}

	if err := s.backfill(ctx, plan.Backfills, res); err != nil {
		return res, err
	}

	log.Info("crm sync complete",
		zap.Int("local", res.Local),
		zap.Int("remote", res.Remote),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("backfilled", res.Backfilled),
		zap.Int("failed", res.CreateFailed+res.UpdateFailed),
	)
	return res, nil
}

// create pushes each contact and records the remote id locally. Failing to
// record an id stops the pass: the contact would be created again next run.
func (s *Syncer) create(ctx context.Context, contacts []model.Contact, res *Result) ([]string, error) {
	var ids []string
	for _, c := range contacts {
		id, err := s.client.CreateContact(ctx, CreateProperties(c))
		if id == "" {
			res.CreateFailed++
			zap.L().Warn("crm: create failed", zap.Int64("contact_id", c.ID), zap.Error(err))
			continue
		}
		if err != nil {
			zap.L().Warn("crm: created with errors", zap.Int64("contact_id", c.ID),
				zap.String("crm_id", id), zap.Error(err))
		}
		res.Created++
		ids = append(ids, id)
		if err := s.store.MarkPushed(ctx, c.ID, id); err != nil {
			zap.L().Error("crm: mark pushed failed", zap.Int64("contact_id", c.ID),
				zap.String("crm_id", id), zap.Error(err))
			return ids, eris.Wrapf(err, "crm: record crm id %s for contact %d", id, c.ID)
		}
	}
	return ids, nil
}

func (s *Syncer) backfill(ctx context.Context, fills []Backfill, res *Result) error {
	if len(fills) == 0 {
		return nil
	}
	batch, err := s.store.BeginBatch(ctx, s.commitEvery)
	if err != nil {
		return eris.Wrap(err, "crm: begin backfill")
	}
	defer batch.Rollback(ctx) //nolint:errcheck

	for _, f := range fills {
		if err := batch.UpdateContact(ctx, f.ContactID, f.Changes); err != nil {
			zap.L().Warn("crm: backfill failed", zap.Int64("contact_id", f.ContactID), zap.Error(err))
			continue
		}
		res.Backfilled++
	}
	return eris.Wrap(batch.Commit(ctx), "crm: commit backfill")
}
