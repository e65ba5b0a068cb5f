package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/marcus/shelf/internal/models"
)

// RecordError is one record's failure inside a batch.
type RecordError struct {
	ID  int64
	Op  string
	Err error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("book %d: %s: %v", e.ID, e.Op, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

func joinFailures(failures []*RecordError) error {
	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// SyncResult reports what an upload did.
type SyncResult struct {
	Created   int
	Updated   int
	Rekeyed   int
	Refreshed int // synced local copies replaced by newer remote values
	Dropped   int // local edits to records the remote has deleted
	Unchanged int
	Failures  []*RecordError
}

// OK is true when every pending record was uploaded or already matched.
func (r SyncResult) OK() bool { return len(r.Failures) == 0 }

// Writes is the number of remote writes that succeeded.
func (r SyncResult) Writes() int { return r.Created + r.Updated }

// Err joins the per-record failures, or returns nil.
func (r SyncResult) Err() error { return joinFailures(r.Failures) }

// Sync uploads local changes to the remote. Only records changed locally
// since they last matched the remote are pushed:
//
//   - a record created locally is created on the remote. The server keeps
//     its id when free; otherwise the local copy is re-keyed to the id the
//     server assigned.
//   - a cached record edited locally overwrites the remote copy. If the
//     remote has deleted it meanwhile the local edit is dropped.
//
// Synced local copies that differ from the remote are refreshed from it.
// Remote-only records are left alone. Per-record failures do not stop the
// batch and leave the record pending for the next run. The returned error
// is reserved for failures that prevent the batch from running at all:
// offline, or a listing failed.
func (s *Service) Sync(ctx context.Context) (SyncResult, error) {
	var res SyncResult
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if !s.prober.IsOnline(ctx) {
		return res, fmt.Errorf("sync: remote unreachable: %w", models.ErrNetwork)
	}

	remoteBooks, err := s.remote.ListBooks(ctx)
	if err != nil {
		return res, fmt.Errorf("sync: list remote: %w", err)
	}
	localBooks, err := s.local.ListBooks(ctx)
	if err != nil {
		return res, fmt.Errorf("sync: list local: %w", err)
	}
	pending, err := s.local.PendingChanges(ctx)
	if err != nil {
		return res, fmt.Errorf("sync: list pending: %w", err)
	}

	run := &syncRun{
		res:     &res,
		remote:  make(map[int64]models.Book, len(remoteBooks)),
		pending: pending,
		current: map[int64]int64{},
		origin:  map[int64]int64{},
	}
	for _, b := range remoteBooks {
		run.remote[b.ID] = b
	}

	for _, lb := range localBooks {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		id, ok := run.resolve(lb.ID)
		if !ok {
			continue
		}
		lb.ID = id
		rb, onRemote := run.remote[id]

		switch change := run.pending[id]; {
		case change == models.ChangeCreated:
			s.upload(ctx, run, lb, onRemote)
		case change == models.ChangeModified && !onRemote:
			s.drop(ctx, run, id)
		case change == models.ChangeModified:
			if !lb.SameFields(rb) {
				if _, err := s.remote.UpdateBook(ctx, id, lb.Fields()); err != nil {
					s.fail(&res.Failures, id, "update remote", err)
					continue
				}
				res.Updated++
			} else {
				res.Unchanged++
			}
			if err := s.local.MarkSynced(ctx, id); err != nil {
				s.fail(&res.Failures, id, "mark synced", err)
			}
		case !onRemote:
			// Deleted on the remote; Pull removes the stale copy.
		case !lb.SameFields(rb):
			if err := s.local.PutBook(ctx, rb); err != nil {
				s.fail(&res.Failures, id, "refresh local", err)
				continue
			}
			res.Refreshed++
		default:
			res.Unchanged++
		}
	}

	s.log.Info("catalog: sync finished",
		"created", res.Created, "updated", res.Updated, "rekeyed", res.Rekeyed,
		"refreshed", res.Refreshed, "dropped", res.Dropped,
		"unchanged", res.Unchanged, "failed", len(res.Failures))
	return res, nil
}

// syncRun follows local records that change id while a sync is running.
type syncRun struct {
	res     *SyncResult
	remote  map[int64]models.Book
	pending map[int64]models.Change // by current id
	current map[int64]int64         // listed id -> current id, 0 once deleted
	origin  map[int64]int64         // current id -> listed id
}

func (r *syncRun) resolve(listed int64) (int64, bool) {
	if id, moved := r.current[listed]; moved {
		return id, id != 0
	}
	return listed, true
}

// move records that the local row at from now lives at to, or is gone when to is 0.
func (r *syncRun) move(from, to int64) {
	listed, ok := r.origin[from]
	if !ok {
		listed = from
	}
	delete(r.origin, from)
	r.current[listed] = to
	if to != 0 {
		r.origin[to] = listed
		if c, ok := r.pending[from]; ok {
			r.pending[to] = c
		}
	}
	delete(r.pending, from)
}

// upload creates a locally created record on the remote. When its id is
// already taken there the server picks one.
func (s *Service) upload(ctx context.Context, run *syncRun, lb models.Book, taken bool) {
	out := lb
	if taken {
		out.ID = 0
	}
	created, err := s.remote.CreateBook(ctx, out)
	if err != nil {
		s.fail(&run.res.Failures, lb.ID, "create remote", err)
		return
	}
	run.remote[created.ID] = created

	if created.ID != lb.ID {
		if err := s.rekey(ctx, run, lb.ID, created.ID); err != nil {
			s.fail(&run.res.Failures, lb.ID, fmt.Sprintf("rekey local to %d", created.ID), err)
			s.retract(ctx, run, created.ID)
			return
		}
		s.log.Debug("catalog: re-keyed local book", "from", lb.ID, "to", created.ID)
		run.res.Rekeyed++
	}

	if err := s.local.MarkSynced(ctx, created.ID); err != nil {
		s.fail(&run.res.Failures, created.ID, "mark synced", err)
		s.retract(ctx, run, created.ID)
		return
	}
	run.res.Created++
}

// rekey moves a local record to the id the server assigned, first moving
// whatever already holds that id locally.
func (s *Service) rekey(ctx context.Context, run *syncRun, from, to int64) error {
	if _, err := s.local.GetBook(ctx, to); err == nil {
		moved, err := s.vacate(ctx, to, run.pending[to])
		if err != nil {
			return err
		}
		if moved == 0 && run.pending[to] == models.ChangeModified {
			run.res.Dropped++
		}
		run.move(to, moved)
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	if err := s.local.RekeyBook(ctx, from, to); err != nil {
		return err
	}
	run.move(from, to)
	return nil
}

// retract deletes a record just created on the remote whose local copy
// could not be settled, so the next sync does not create it twice.
func (s *Service) retract(ctx context.Context, run *syncRun, id int64) {
	if err := s.remote.DeleteBook(ctx, id); err != nil {
		s.log.Warn("catalog: could not retract remote copy", "id", id, "err", err)
		return
	}
	delete(run.remote, id)
}

// drop discards a local edit to a record the remote no longer has.
func (s *Service) drop(ctx context.Context, run *syncRun, id int64) {
	if _, err := s.local.DeleteBook(ctx, id); err != nil {
		s.fail(&run.res.Failures, id, "drop local", err)
		return
	}
	s.log.Info("catalog: dropped local edit to a book deleted on the remote", "id", id)
	run.move(id, 0)
	run.res.Dropped++
}

func (s *Service) fail(failures *[]*RecordError, id int64, op string, err error) {
	s.log.Warn("catalog: record failed", "id", id, "op", op, "err", err)
	*failures = append(*failures, &RecordError{ID: id, Op: op, Err: err})
}

// PullResult reports what a download did.
type PullResult struct {
	Stored    int
	Unchanged int
	Pending   int // remote records kept back because the local copy has unsynced changes
	Pruned    int // synced local copies of records the remote has deleted
	Failures  []*RecordError
}

// OK is true when every remote record is now cached locally.
func (r PullResult) OK() bool { return len(r.Failures) == 0 }

// Err joins the per-record failures, or returns nil.
func (r PullResult) Err() error { return joinFailures(r.Failures) }

// Pull mirrors the remote catalog into the local store so it can be
// browsed offline. Every remote record is cached under its remote id as
// synced, except where the local copy has unsynced changes, which are kept
// for the next Sync. Synced local copies the remote no longer has are
// removed.
func (s *Service) Pull(ctx context.Context) (PullResult, error) {
	var res PullResult
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if !s.prober.IsOnline(ctx) {
		return res, fmt.Errorf("pull: remote unreachable: %w", models.ErrNetwork)
	}

	remoteBooks, err := s.remote.ListBooks(ctx)
	if err != nil {
		return res, fmt.Errorf("pull: list remote: %w", err)
	}
	localBooks, err := s.local.ListBooks(ctx)
	if err != nil {
		return res, fmt.Errorf("pull: list local: %w", err)
	}
	pending, err := s.local.PendingChanges(ctx)
	if err != nil {
		return res, fmt.Errorf("pull: list pending: %w", err)
	}

	byID := make(map[int64]models.Book, len(localBooks))
	for _, b := range localBooks {
		byID[b.ID] = b
	}

	onRemote := make(map[int64]bool, len(remoteBooks))
	for _, rb := range remoteBooks {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		onRemote[rb.ID] = true

		if pending[rb.ID] != models.Synced {
			res.Pending++
			continue
		}
		if lb, ok := byID[rb.ID]; ok && lb.SameFields(rb) {
			res.Unchanged++
			continue
		}
		if err := s.local.PutBook(ctx, rb); err != nil {
			s.fail(&res.Failures, rb.ID, "store local", err)
			continue
		}
		res.Stored++
	}

	for _, lb := range localBooks {
		if onRemote[lb.ID] || pending[lb.ID] != models.Synced {
			continue
		}
		if _, err := s.local.DeleteBook(ctx, lb.ID); err != nil {
			s.fail(&res.Failures, lb.ID, "prune local", err)
			continue
		}
		res.Pruned++
	}

	s.log.Info("catalog: pull finished",
		"stored", res.Stored, "unchanged", res.Unchanged, "pending", res.Pending,
		"pruned", res.Pruned, "failed", len(res.Failures))
	return res, nil
}

// FullSyncResult pairs the upload and download halves of a full sync.
type FullSyncResult struct {
	Upload   SyncResult
	Download PullResult
}

// OK is true when both halves completed without record failures.
func (r FullSyncResult) OK() bool { return r.Upload.OK() && r.Download.OK() }

// Err joins the failures of both halves, or returns nil.
func (r FullSyncResult) Err() error { return errors.Join(r.Upload.Err(), r.Download.Err()) }

// FullSync uploads local changes and then pulls the remote catalog, leaving
// both stores with the same records. The pull still runs when some uploads
// failed; those records stay pending.
func (s *Service) FullSync(ctx context.Context) (FullSyncResult, error) {
	var res FullSyncResult
	up, err := s.Sync(ctx)
	res.Upload = up
	if err != nil {
		return res, err
	}
	down, err := s.Pull(ctx)
	res.Download = down
	if err != nil {
		return res, err
	}
	return res, nil
}
