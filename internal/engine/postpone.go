package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/antrikuy/antrikuy-backend/internal/model"
	"github.com/antrikuy/antrikuy-backend/internal/repository"
)

// PostponeRequest flags the user's waiting ticket as REQ_TUNDA so an
// operator can decide whether to push it back.  Only MENUNGGU tickets
// can ask.
func (e *Engine) PostponeRequest(ctx context.Context, entryID, userID uint64, reason string) error {
	entry, err := e.entries.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.UserID != userID {
		return repository.ErrForbidden
	}
	if reason == "" {
		reason = "User Request"
	}
	ok, err := e.entries.SetPostponeRequested(ctx, entry.ID, reason)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPostponeOnlyWaiting
	}
	return nil
}

// RespondPostpone resolves a REQ_TUNDA ticket.  Approval archives the old
// entry as TERLEWAT and re-registers the user at the back of the line
// with a freshly issued number; rejection puts the entry back to
// MENUNGGU at its original position.
func (e *Engine) RespondPostpone(ctx context.Context, entryID uint64, approve bool) (*model.QueueEntry, error) {
	entry, err := e.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != model.TicketPostponeRequested {
		return nil, ErrPostponeAlreadyHandled
	}

	if !approve {
		if err := e.entries.RevertToWaiting(ctx, entry.ID); err != nil {
			return nil, err
		}
		e.notify.NotifyUser(entry.UserID, "Permintaan Tunda Ditolak",
			fmt.Sprintf("Nomor antrean Anda tetap #%d.", entry.TicketNumber), nil)
		entry.Status = model.TicketWaiting
		return entry, nil
	}

	reason := entry.PostponeReason + " (Tunda disetujui)"
	now := e.Now()
	if err := e.entries.MarkMissed(ctx, entry.ID, reason, now); err != nil {
		return nil, err
	}

	ev, err := e.events.IssueTicket(ctx, entry.EventID)
	if err != nil {
		return nil, err
	}
	fresh := &model.QueueEntry{
		EventID:        entry.EventID,
		UserID:         entry.UserID,
		TicketNumber:   ev.LastNumberIssued,
		Batch:          ev.CurrentBatch,
		Status:         model.TicketWaiting,
		Postponed:      true,
		PostponeReason: reason,
		RequestedAt:    now,
	}
	if err := e.entries.Create(ctx, fresh); err != nil {
		if rbErr := e.events.RollbackIssue(ctx, entry.EventID); rbErr != nil {
			e.Log.Error().Err(rbErr).Uint64("event_id", entry.EventID).
				Msg("postpone compensation failed, counters inflated")
		}
		return nil, err
	}

	e.notify.NotifyUser(entry.UserID, "Permintaan Tunda Disetujui",
		fmt.Sprintf("Nomor #%d dilewatkan, Anda kini di nomor #%d.",
			entry.TicketNumber, fresh.TicketNumber),
		map[string]string{"queueId": strconv.FormatUint(fresh.ID, 10)})
	return fresh, nil
}
