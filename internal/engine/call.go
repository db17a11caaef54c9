package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/antrikuy/antrikuy-backend/internal/model"
	"github.com/antrikuy/antrikuy-backend/internal/repository"
)

// CallResult is the outcome of CallNext.  When AlreadyActive is set the
// returned entry is the one still being handled, not a new call.
type CallResult struct {
	Entry         *model.QueueEntry
	AlreadyActive bool
	GraceMinutes  int
}

// CallNext calls the lowest waiting ticket of the event's current batch.
// The event must have registration locked or the stage closed before
// calling starts.  If a ticket is already DIPANGGIL or DILAYANI that
// entry is returned unchanged so the operator finishes it first.
func (e *Engine) CallNext(ctx context.Context, eventID uint64) (*CallResult, error) {
	ev, err := e.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := e.Now()
	if model.DeriveStatus(ev, now) == model.StatusFinished {
		return nil, ErrSessionOver
	}
	if !ev.Locked && ev.Stage != model.StageClosing {
		return nil, ErrNotLocked
	}

	if active, err := e.entries.CurrentlyCalledOrServing(ctx, eventID); err == nil {
		return &CallResult{Entry: active, AlreadyActive: true}, nil
	} else if !errors.Is(err, repository.ErrEntryNotFound) {
		return nil, err
	}

	grace := graceMinutes(ev)
	entry, err := e.entries.CallNextWaiting(ctx, eventID, ev.CurrentBatch,
		now, now.Add(time.Duration(grace)*time.Minute))
	if errors.Is(err, repository.ErrEntryNotFound) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		return nil, err
	}

	e.notify.NotifyUser(entry.UserID, "Giliran Anda! 🔔",
		fmt.Sprintf("Nomor antrean #%d dipanggil. Batas hadir %d menit.", entry.TicketNumber, grace),
		map[string]string{
			"queueId": strconv.FormatUint(entry.ID, 10),
			"eventId": strconv.FormatUint(eventID, 10),
		})
	e.notifyNextInLine(ctx, eventID, ev.CurrentBatch, entry.TicketNumber)

	return &CallResult{Entry: entry, GraceMinutes: grace}, nil
}

// notifyNextInLine gives the lowest still-waiting ticket a heads-up that
// the number ahead of it was just called.  Best-effort: a failed lookup
// never fails the call itself.
func (e *Engine) notifyNextInLine(ctx context.Context, eventID uint64, batch, calledNumber int) {
	waiting, err := e.entries.ListByStatus(ctx, eventID, batch, model.TicketWaiting)
	if err != nil {
		e.Log.Warn().Err(err).Uint64("event_id", eventID).Msg("next-in-line lookup failed")
		return
	}
	if len(waiting) == 0 {
		return
	}
	up := &waiting[0]
	e.notify.NotifyUser(up.UserID, "Bersiap, Anda Berikutnya",
		fmt.Sprintf("Nomor #%d sedang dipanggil. Nomor Anda #%d berikutnya.", calledNumber, up.TicketNumber),
		map[string]string{
			"queueId": strconv.FormatUint(up.ID, 10),
			"eventId": strconv.FormatUint(eventID, 10),
		})
}

// SkipResult pairs the skipped entry with the one called in its place,
// if any.
type SkipResult struct {
	Skipped    *model.QueueEntry
	NextCalled *model.QueueEntry
}

// Skip archives the given entry as TERLEWAT and immediately calls the
// next waiting ticket with the event's average service time as its
// deadline.  The event must have registration locked.
func (e *Engine) Skip(ctx context.Context, eventID, entryID uint64) (*SkipResult, error) {
	ev, err := e.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ev.Locked {
		return nil, ErrEventMustBeLocked
	}

	entry, err := e.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	now := e.Now()
	if err := e.entries.MarkMissed(ctx, entry.ID, entry.PostponeReason, now); err != nil {
		return nil, err
	}
	entry.Status = model.TicketMissed

	res := &SkipResult{Skipped: entry}
	next, err := e.entries.CallNextWaiting(ctx, eventID, ev.CurrentBatch,
		now, now.Add(time.Duration(avgMinutes(ev))*time.Minute))
	if err != nil && !errors.Is(err, repository.ErrEntryNotFound) {
		return nil, err
	}
	if next != nil {
		res.NextCalled = next
		e.notify.NotifyUser(next.UserID, "Giliran Anda! 🔔",
			fmt.Sprintf("Nomor antrean #%d dipanggil.", next.TicketNumber),
			map[string]string{
				"queueId": strconv.FormatUint(next.ID, 10),
				"eventId": strconv.FormatUint(eventID, 10),
			})
	}
	return res, nil
}
