package engine

import (
	"context"
	"fmt"
	"net/http"

	"github.com/antrikuy/antrikuy-backend/internal/model"
)

// ScanResult is what the operator's scanner screen shows after a QR is
// accepted.
type ScanResult struct {
	Entry *model.QueueEntry
}

// ValidateTicket verifies a scanned QR token against the event and, when
// the holder is actually next in line, starts their service.  A ticket
// already DILAYANI scans through idempotently.
func (e *Engine) ValidateTicket(ctx context.Context, eventID uint64, token string) (*ScanResult, error) {
	ev, err := e.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := e.Now()
	switch model.DeriveStatus(ev, now) {
	case model.StatusPreOrder:
		return nil, stateErr(http.StatusForbidden, ErrSessionNotStarted.Message)
	case model.StatusFinished:
		return nil, stateErr(http.StatusForbidden, ErrSessionEnded.Message)
	}

	entryID, _, err := e.signer.ParseTicket(token)
	if err != nil {
		return nil, ErrTicketInvalid
	}
	entry, err := e.entries.GetByID(ctx, entryID)
	if err != nil || entry.EventID != eventID {
		return nil, stateErr(http.StatusNotFound, "QR tidak ditemukan di kegiatan ini")
	}

	if model.IsTerminalTicketStatus(entry.Status) {
		return nil, stateErr(http.StatusBadRequest,
			fmt.Sprintf("Antrean sudah %s", entry.Status))
	}

	if entry.Status != model.TicketServing {
		ahead, err := e.entries.CountAhead(ctx, eventID, entry.Batch, entry.TicketNumber)
		if err != nil {
			return nil, err
		}
		if ahead > 0 {
			return nil, stateErr(http.StatusBadRequest,
				fmt.Sprintf("Belum giliran. Ada %d orang di depan.", ahead))
		}
		if err := e.entries.StartService(ctx, entry.ID, now); err != nil {
			return nil, err
		}
		entry.Status = model.TicketServing
		entry.ServiceStartedAt = &now
	}
	return &ScanResult{Entry: entry}, nil
}

// ServeManual starts service for a DIPANGGIL ticket without the position
// check, for when the operator matches the QR by eye.
func (e *Engine) ServeManual(ctx context.Context, token string) (*model.QueueEntry, error) {
	entry, err := e.entries.GetByToken(ctx, token)
	if err != nil {
		return nil, stateErr(http.StatusNotFound, "QR Code tidak valid.")
	}
	if entry.Status != model.TicketCalled {
		return nil, stateErr(http.StatusBadRequest,
			fmt.Sprintf("Status %s, harus DIPANGGIL.", entry.Status))
	}
	now := e.Now()
	if err := e.entries.StartService(ctx, entry.ID, now); err != nil {
		return nil, err
	}
	entry.Status = model.TicketServing
	entry.ServiceStartedAt = &now
	entry.CallExpiresAt = nil
	return entry, nil
}

// Complete closes out a ticket as SELESAI and, when a service start was
// recorded, folds the measured duration into the event's rolling
// average.  Durations are floored at MinServiceSeconds so quick taps do
// not distort the estimate.
func (e *Engine) Complete(ctx context.Context, entryID uint64) error {
	entry, err := e.entries.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	now := e.Now()
	if err := e.entries.Complete(ctx, entry.ID, now); err != nil {
		return err
	}
	if entry.ServiceStartedAt == nil {
		return nil
	}
	seconds := int64(now.Sub(*entry.ServiceStartedAt).Seconds())
	if seconds < MinServiceSeconds {
		seconds = MinServiceSeconds
	}
	return e.events.AccumulateService(ctx, entry.EventID, seconds)
}
