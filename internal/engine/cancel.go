package engine

import (
	"context"

	"github.com/antrikuy/antrikuy-backend/internal/model"
	"github.com/antrikuy/antrikuy-backend/internal/repository"
)

// CancelResult reports how a cancellation was carried out.
type CancelResult struct {
	// PreOrder is true when the entry was hard-deleted before the
	// session started rather than archived.
	PreOrder bool
}

// Cancel releases the user's slot.  Before the session starts the entry
// is removed outright and, when it holds the latest issued number, the
// counter is wound back so the number can be reused.  Once the session
// is live the entry is archived as DIBATALKAN instead; its number is
// burned but the capacity slot is returned either way.
func (e *Engine) Cancel(ctx context.Context, entryID, userID uint64, reason string) (*CancelResult, error) {
	entry, err := e.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, repository.ErrForbidden
	}
	ev, err := e.events.GetByID(ctx, entry.EventID)
	if err != nil {
		return nil, err
	}

	now := e.Now()
	if err := e.events.DecrementSlots(ctx, ev.ID); err != nil {
		return nil, err
	}

	if model.DeriveStatus(ev, now) == model.StatusPreOrder {
		if err := e.entries.Delete(ctx, entry.ID); err != nil {
			return nil, err
		}
		// only the newest number can be reclaimed without renumbering
		if entry.TicketNumber == ev.LastNumberIssued {
			if err := e.events.ReleaseLatestNumber(ctx, ev.ID, entry.TicketNumber); err != nil {
				return nil, err
			}
		}
		return &CancelResult{PreOrder: true}, nil
	}

	if reason == "" {
		reason = "Dibatalkan oleh pengguna"
	}
	if err := e.entries.Cancel(ctx, entry.ID, reason, now); err != nil {
		return nil, err
	}
	return &CancelResult{}, nil
}

// CancelAllByUser force-cancels every active entry a user holds across
// all events, releasing each slot.  It returns how many were cancelled.
func (e *Engine) CancelAllByUser(ctx context.Context, userID uint64, reason string) (int, error) {
	entries, err := e.entries.ActiveByUserAllEvents(ctx, userID)
	if err != nil {
		return 0, err
	}
	if reason == "" {
		reason = "Dibatalkan oleh admin"
	}
	now := e.Now()
	cancelled := 0
	for i := range entries {
		entry := &entries[i]
		if err := e.entries.Cancel(ctx, entry.ID, reason, now); err != nil {
			return cancelled, err
		}
		if err := e.events.DecrementSlots(ctx, entry.EventID); err != nil {
			return cancelled, err
		}
		cancelled++
	}
	return cancelled, nil
}
