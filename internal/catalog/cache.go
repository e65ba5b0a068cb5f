package catalog

import (
	"context"
	"errors"

	"github.com/marcus/shelf/internal/models"
)

// The remote write has already succeeded when these run, so a local
// failure is logged and the caller still sees success.

// cache stores a record the remote returned as a synced local copy.
func (s *Service) cache(ctx context.Context, op string, b models.Book) {
	if err := s.local.PutBook(ctx, b); err != nil {
		s.log.Warn("catalog: local copy not updated", "op", op, "id", b.ID, "err", err)
	}
}

// cacheCreated caches a record the remote just created. Anything already
// stored locally under that id is a different record and is cleared first.
func (s *Service) cacheCreated(ctx context.Context, b models.Book) {
	if err := s.clear(ctx, b.ID); err != nil {
		s.log.Warn("catalog: local copy not updated", "op", "add", "id", b.ID, "err", err)
		return
	}
	s.cache(ctx, "add", b)
}

func (s *Service) clear(ctx context.Context, id int64) error {
	if _, err := s.local.GetBook(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}
	pending, err := s.local.PendingChanges(ctx)
	if err != nil {
		return err
	}
	_, err = s.vacate(ctx, id, pending[id])
	return err
}

// vacate frees a local id the remote has just assigned to a new record.
// A record created locally moves to a fresh id, which is returned. Anything
// else stored there is a copy of a record the remote has deleted, and is
// removed; the returned id is then 0.
func (s *Service) vacate(ctx context.Context, id int64, change models.Change) (int64, error) {
	if change != models.ChangeCreated {
		if _, err := s.local.DeleteBook(ctx, id); err != nil {
			return 0, err
		}
		s.log.Debug("catalog: removed local copy of a book deleted on the remote", "id", id)
		return 0, nil
	}
	moved, err := s.local.RelocateBook(ctx, id)
	if err != nil {
		return 0, err
	}
	s.log.Debug("catalog: moved local book to a free id", "from", id, "to", moved)
	return moved, nil
}

// uncache drops the local copy of a record deleted on the remote.
func (s *Service) uncache(ctx context.Context, id int64) {
	if _, err := s.local.DeleteBook(ctx, id); err != nil {
		s.log.Warn("catalog: local copy not removed", "op", "delete", "id", id, "err", err)
	}
}
