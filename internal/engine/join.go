package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/antrikuy/antrikuy-backend/internal/model"
	"github.com/antrikuy/antrikuy-backend/internal/repository"
)

// Join takes a slot in the event's current batch for the given user and
// returns the created entry with its ticket token.
//
// The counter increment happens optimistically before any check: both
// counters go up in one atomic statement, and every rejection path rolls
// them back.  That ordering is what serializes concurrent joins; the
// unique (event, batch, ticket_number) index backstops a lost rollback.
func (e *Engine) Join(ctx context.Context, eventID uint64, user *model.User) (*model.QueueEntry, error) {
	ev, err := e.events.IssueTicket(ctx, eventID)
	if err != nil {
		return nil, err
	}

	rollback := func() {
		if err := e.events.RollbackIssue(ctx, eventID); err != nil {
			e.Log.Error().Err(err).Uint64("event_id", eventID).
				Msg("join compensation failed, counters inflated")
		}
	}

	if user.SchoolID == nil {
		rollback()
		return nil, ErrNoSchool
	}
	if *user.SchoolID != ev.SchoolID {
		rollback()
		return nil, ErrWrongSchool
	}

	now := e.Now()
	status := model.DeriveStatus(ev, now)
	overbooked := ev.Capacity != nil && ev.SlotsTaken > *ev.Capacity
	if status == model.StatusClosing || status == model.StatusFinished || overbooked {
		rollback()
		if overbooked {
			return nil, ErrEventFull
		}
		return nil, stateErr(http.StatusForbidden,
			fmt.Sprintf("Gagal! Pendaftaran sedang %s.", status))
	}

	if _, err := e.entries.ActiveByUser(ctx, eventID, user.ID, ev.CurrentBatch); err == nil {
		rollback()
		return nil, ErrAlreadyQueued
	} else if !errors.Is(err, repository.ErrEntryNotFound) {
		rollback()
		return nil, err
	}

	entry := &model.QueueEntry{
		EventID:      eventID,
		UserID:       user.ID,
		TicketNumber: ev.LastNumberIssued,
		Batch:        ev.CurrentBatch,
		Status:       model.TicketWaiting,
		RequestedAt:  now,
	}
	if err := e.entries.Create(ctx, entry); err != nil {
		rollback()
		if repository.IsDuplicateKey(err) {
			return nil, ErrCounterBusy
		}
		return nil, err
	}

	// From here on the entry and its counter slot are committed.  A
	// failure below leaves the ticket valid but without a QR token;
	// RefreshTicketToken issues one on demand, so no rollback.
	token, err := e.signer.SignTicket(entry.ID, eventID, TicketTokenTTL)
	if err != nil {
		return nil, err
	}
	expiry := now.Add(TicketTokenTTL)
	if err := e.entries.UpdateToken(ctx, entry.ID, token, expiry); err != nil {
		return nil, err
	}
	entry.TicketToken = token
	entry.TokenExpiresAt = &expiry
	return entry, nil
}

// RefreshTicketToken reissues the short-lived QR token for an entry the
// user owns.
func (e *Engine) RefreshTicketToken(ctx context.Context, entryID, userID uint64) (*model.QueueEntry, error) {
	entry, err := e.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, repository.ErrForbidden
	}
	token, err := e.signer.SignTicket(entry.ID, entry.EventID, TicketTokenTTL)
	if err != nil {
		return nil, err
	}
	expiry := e.Now().Add(TicketTokenTTL)
	if err := e.entries.UpdateToken(ctx, entry.ID, token, expiry); err != nil {
		return nil, err
	}
	entry.TicketToken = token
	entry.TokenExpiresAt = &expiry
	return entry, nil
}
