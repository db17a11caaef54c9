package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/antrikuy/antrikuy-backend/internal/model"
	"github.com/antrikuy/antrikuy-backend/internal/repository"
)

// FormatWaitTime renders an estimate in minutes the way the mobile app
// displays it: "Segera" under a minute, minutes under an hour, then
// hours and minutes.
func FormatWaitTime(totalMinutes int) string {
	if totalMinutes < 1 {
		return "Segera"
	}
	if totalMinutes < 60 {
		return fmt.Sprintf("%d m", totalMinutes)
	}
	hours := totalMinutes / 60
	mins := totalMinutes % 60
	if mins > 0 {
		return fmt.Sprintf("%d j %d m", hours, mins)
	}
	return fmt.Sprintf("%d j", hours)
}

// TicketDetail is the user-facing view of one entry: the entry itself
// plus its live position and wait estimate.
type TicketDetail struct {
	Entry            *model.QueueEntry
	Event            *model.Event
	PeopleAhead      int
	EstimatedMinutes int
	EstimatedAt      time.Time
	WaitLabel        string
}

// Detail returns the ticket with its position in line and the estimated
// service time derived from the event's rolling average.
func (e *Engine) Detail(ctx context.Context, entryID, userID uint64) (*TicketDetail, error) {
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
	ahead, err := e.entries.CountWaitingAhead(ctx, entry.EventID, entry.Batch, entry.TicketNumber)
	if err != nil {
		return nil, err
	}
	est := ahead * avgMinutes(ev)
	now := e.Now()
	return &TicketDetail{
		Entry:            entry,
		Event:            ev,
		PeopleAhead:      ahead,
		EstimatedMinutes: est,
		EstimatedAt:      now.Add(time.Duration(est) * time.Minute),
		WaitLabel:        FormatWaitTime(est),
	}, nil
}

// DashboardSummary holds the per-status counts shown above the operator
// board.  Total reflects slots taken, so completed tickets keep counting
// against capacity.
type DashboardSummary struct {
	Waiting          int `json:"menunggu"`
	PostponeRequests int `json:"reqTunda"`
	Called           int `json:"dipanggil"`
	Serving          int `json:"dilayani"`
	Total            int `json:"total"`
}

// Dashboard is the operator's live board for the current batch.
type Dashboard struct {
	Serving          *model.QueueEntry
	Called           *model.QueueEntry
	Waiting          []model.QueueEntry
	CurrentBatch     int
	LastNumberIssued int
	Summary          DashboardSummary
}

// LoadDashboard assembles the operator board: the ticket being served,
// the one called, and the waiting list including postpone requests.
func (e *Engine) LoadDashboard(ctx context.Context, eventID uint64) (*Dashboard, error) {
	ev, err := e.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	waiting, err := e.entries.ListByStatus(ctx, eventID, ev.CurrentBatch,
		model.TicketWaiting, model.TicketPostponeRequested)
	if err != nil {
		return nil, err
	}
	served, err := e.entries.ListByStatus(ctx, eventID, ev.CurrentBatch, model.TicketServing)
	if err != nil {
		return nil, err
	}
	called, err := e.entries.ListByStatus(ctx, eventID, ev.CurrentBatch, model.TicketCalled)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		Waiting:          waiting,
		CurrentBatch:     ev.CurrentBatch,
		LastNumberIssued: ev.LastNumberIssued,
	}
	if len(served) > 0 {
		d.Serving = &served[0]
		d.Summary.Serving = 1
	}
	if len(called) > 0 {
		d.Called = &called[0]
		d.Summary.Called = 1
	}
	for i := range waiting {
		if waiting[i].Status == model.TicketPostponeRequested {
			d.Summary.PostponeRequests++
		} else {
			d.Summary.Waiting++
		}
	}
	d.Summary.Total = ev.SlotsTaken
	return d, nil
}
