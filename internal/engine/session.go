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

// ResetResult describes what a batch reset did.
type ResetResult struct {
	// Reopened means the batch was empty so registration simply
	// reopened without a rollover.
	Reopened     bool
	CurrentBatch int
	Archived     int64
}

// ResetBatch either reopens an untouched batch or rolls the event over
// to the next batch: active tickets are archived, every per-batch
// counter returns to zero and registration unlocks.  A positive newAvg
// replaces the learned average service time.
func (e *Engine) ResetBatch(ctx context.Context, eventID uint64, newAvg *int) (*ResetResult, error) {
	ev, err := e.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if ev.SlotsTaken == 0 && ev.LastNumberIssued == 0 {
		reopened, err := e.events.Reopen(ctx, eventID, newAvg)
		if err != nil {
			return nil, err
		}
		return &ResetResult{Reopened: true, CurrentBatch: reopened.CurrentBatch}, nil
	}

	archived, err := e.entries.MarkMissedBulk(ctx, eventID,
		"Admin memulai Sesi/Batch Baru", e.Now())
	if err != nil {
		return nil, err
	}
	rolled, err := e.events.StartNewBatch(ctx, eventID, newAvg)
	if err != nil {
		return nil, err
	}
	return &ResetResult{CurrentBatch: rolled.CurrentBatch, Archived: archived}, nil
}

// FinishEvent ends the session by hand: the stage moves to SELESAI,
// registration locks and every still-active ticket is archived.
func (e *Engine) FinishEvent(ctx context.Context, eventID uint64) (int64, error) {
	ev, err := e.events.GetByID(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if err := e.events.MarkFinished(ctx, eventID); err != nil {
		return 0, err
	}
	archived, err := e.entries.MarkMissedBulk(ctx, eventID,
		"Sesi diakhiri petugas", e.Now())
	if err != nil {
		return 0, err
	}
	e.notify.NotifyTopic(model.SchoolTopic(ev.SchoolID), "Update Layanan 🔔",
		fmt.Sprintf("Layanan %s kini berstatus: %s", ev.Name, model.StatusFinished),
		map[string]string{"eventId": strconv.FormatUint(eventID, 10), "status": model.StatusFinished})
	return archived, nil
}

// SweepReport summarizes one scheduler pass.
type SweepReport struct {
	Checked     int
	AutoSkipped int
	AutoCalled  int
	Finished    int
	Errs        []error
}

// Sweep runs the automatic actions over every live locked event: expired
// calls become TERLEWAT and the next ticket gets called, then sessions
// whose end time has passed are terminated wholesale.  One failing event
// never blocks the others.
func (e *Engine) Sweep(ctx context.Context) SweepReport {
	var report SweepReport
	events, err := e.events.ListSweepable(ctx)
	if err != nil {
		report.Errs = append(report.Errs, err)
		return report
	}
	report.Checked = len(events)
	for i := range events {
		if err := e.sweepEvent(ctx, &events[i], &report); err != nil {
			report.Errs = append(report.Errs, fmt.Errorf("event %d: %w", events[i].ID, err))
		}
	}
	return report
}

func (e *Engine) sweepEvent(ctx context.Context, ev *model.Event, report *SweepReport) error {
	now := e.Now()

	expired, err := e.entries.ExpiredCalled(ctx, ev.ID, now)
	if err != nil && !errors.Is(err, repository.ErrEntryNotFound) {
		return err
	}
	if expired != nil {
		if err := e.entries.MarkMissed(ctx, expired.ID, "Tidak hadir (Auto-Skip)", now); err != nil {
			return err
		}
		report.AutoSkipped++

		next, err := e.entries.CallNextWaiting(ctx, ev.ID, ev.CurrentBatch,
			now, now.Add(time.Duration(avgMinutes(ev))*time.Minute))
		if err != nil && !errors.Is(err, repository.ErrEntryNotFound) {
			return err
		}
		if next != nil {
			report.AutoCalled++
			e.notify.NotifyUser(next.UserID, "Giliran Anda! 🔔",
				fmt.Sprintf("Nomor antrean #%d dipanggil.", next.TicketNumber),
				map[string]string{
					"queueId": strconv.FormatUint(next.ID, 10),
					"eventId": strconv.FormatUint(ev.ID, 10),
				})
		}
	}

	if ev.EndsAt == nil || !now.After(*ev.EndsAt) {
		return nil
	}
	if err := e.events.MarkFinished(ctx, ev.ID); err != nil {
		return err
	}
	if _, err := e.entries.MarkMissedBulk(ctx, ev.ID,
		"Waktu layanan berakhir otomatis", now); err != nil {
		return err
	}
	report.Finished++
	return nil
}
