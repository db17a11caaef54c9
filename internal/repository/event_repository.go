package repository

import (
	"context"
	"database/sql"

	"github.com/antrikuy/antrikuy-backend/internal/model"
)

// EventRepo provides persistence for events.  Counter mutations
// (IssueTicket, RollbackIssue, DecrementSlots, ReleaseLatestNumber) are
// expressed as single atomic UPDATE statements against the event row, never
// as load-mutate-save in application code, so concurrent joiners always
// receive distinct ticket numbers.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns an EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying handle for callers that need to open a
// transaction spanning multiple repositories.
func (r *EventRepo) DB() *sql.DB { return r.db }

const eventColumns = `id, school_id, code, name, category, location, description,
	stage, is_locked, capacity, starts_at, ends_at, current_batch, slots_taken,
	last_number_issued, total_served, total_service_seconds, avg_service_minutes,
	grace_period_minutes, created_at, updated_at`

type eventScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row eventScanner) (*model.Event, error) {
	var ev model.Event
	var capacity sql.NullInt64
	var startsAt, endsAt sql.NullTime
	err := row.Scan(
		&ev.ID, &ev.SchoolID, &ev.Code, &ev.Name, &ev.Category, &ev.Location,
		&ev.Description, &ev.Stage, &ev.Locked, &capacity, &startsAt, &endsAt,
		&ev.CurrentBatch, &ev.SlotsTaken, &ev.LastNumberIssued, &ev.TotalServed,
		&ev.TotalServiceSeconds, &ev.AvgServiceMinutes, &ev.GracePeriodMinutes,
		&ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if capacity.Valid {
		n := int(capacity.Int64)
		ev.Capacity = &n
	}
	if startsAt.Valid {
		t := startsAt.Time
		ev.StartsAt = &t
	}
	if endsAt.Valid {
		t := endsAt.Time
		ev.EndsAt = &t
	}
	return &ev, nil
}

// Create inserts a new event and populates the generated ID.  A duplicate
// external code yields ErrEventCodeExists.
func (r *EventRepo) Create(ctx context.Context, ev *model.Event) error {
	const q = `INSERT INTO events
		(school_id, code, name, category, location, description, stage, is_locked,
		 capacity, starts_at, ends_at, current_batch, avg_service_minutes, grace_period_minutes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var capacity any
	if ev.Capacity != nil {
		capacity = *ev.Capacity
	}
	var startsAt, endsAt any
	if ev.StartsAt != nil {
		startsAt = ev.StartsAt.UTC()
	}
	if ev.EndsAt != nil {
		endsAt = ev.EndsAt.UTC()
	}
	res, err := r.db.ExecContext(ctx, q,
		ev.SchoolID, ev.Code, ev.Name, ev.Category, ev.Location, ev.Description,
		ev.Stage, ev.Locked, capacity, startsAt, endsAt, ev.CurrentBatch,
		ev.AvgServiceMinutes, ev.GracePeriodMinutes,
	)
	if err != nil {
		if IsDuplicateKey(err) {
			return ErrEventCodeExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ev.ID = uint64(id)
	return nil
}

// GetByID retrieves an event by its primary key.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	ev, err := scanEvent(r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	return ev, err
}

// GetByCode retrieves an event by its external human-readable code.
func (r *EventRepo) GetByCode(ctx context.Context, code string) (*model.Event, error) {
	ev, err := scanEvent(r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE code = ?`, code))
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	return ev, err
}

// ListBySchool returns all events of a school, newest first.
func (r *EventRepo) ListBySchool(ctx context.Context, schoolID uint64) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE school_id = ? ORDER BY created_at DESC`,
		schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// IssueTicket atomically increments last_number_issued and slots_taken by
// one and returns the updated event.  The increment and the read-back run
// in one transaction so two concurrent joiners can never observe the same
// ticket number.
func (r *EventRepo) IssueTicket(ctx context.Context, id uint64) (*model.Event, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx,
		`UPDATE events SET last_number_issued = last_number_issued + 1,
			slots_taken = slots_taken + 1 WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrEventNotFound
	}
	ev, err := scanEvent(tx.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return ev, nil
}

// RollbackIssue compensates a rejected join: both counters go back down by
// one.  GREATEST keeps slots_taken from ever dropping below zero if a
// compensation races with a reset.
func (r *EventRepo) RollbackIssue(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE events SET last_number_issued = GREATEST(last_number_issued - 1, 0),
			slots_taken = GREATEST(slots_taken - 1, 0) WHERE id = ?`, id)
	return err
}

// DecrementSlots releases one slot (ticket cancelled).
func (r *EventRepo) DecrementSlots(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE events SET slots_taken = GREATEST(slots_taken - 1, 0) WHERE id = ?`, id)
	return err
}

// ReleaseLatestNumber rolls back last_number_issued after a pre-order
// cancellation, but only when the cancelled ticket is still the latest one
// issued; otherwise the statement matches no row and the counter is kept.
func (r *EventRepo) ReleaseLatestNumber(ctx context.Context, id uint64, ticketNumber int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE events SET last_number_issued = last_number_issued - 1
		 WHERE id = ? AND last_number_issued = ?`, id, ticketNumber)
	return err
}

// UpdateDetails persists admin-editable fields of an event.
func (r *EventRepo) UpdateDetails(ctx context.Context, ev *model.Event) error {
	var capacity any
	if ev.Capacity != nil {
		capacity = *ev.Capacity
	}
	var startsAt, endsAt any
	if ev.StartsAt != nil {
		startsAt = ev.StartsAt.UTC()
	}
	if ev.EndsAt != nil {
		endsAt = ev.EndsAt.UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE events SET name = ?, category = ?, location = ?, description = ?,
			stage = ?, is_locked = ?, capacity = ?, starts_at = ?, ends_at = ?,
			avg_service_minutes = ?, grace_period_minutes = ?
		 WHERE id = ?`,
		ev.Name, ev.Category, ev.Location, ev.Description, ev.Stage, ev.Locked,
		capacity, startsAt, endsAt, ev.AvgServiceMinutes, ev.GracePeriodMinutes,
		ev.ID)
	return err
}

// SetLocked flips the registration lock.
func (r *EventRepo) SetLocked(ctx context.Context, id uint64, locked bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET is_locked = ? WHERE id = ?`, locked, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

// MarkFinished forces the stage to SELESAI and locks registration.
func (r *EventRepo) MarkFinished(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE events SET stage = ?, is_locked = TRUE WHERE id = ?`,
		model.StageFinished, id)
	return err
}

// Reopen resumes an empty batch: the stage goes back to TERBUKA, the lock
// and the session window are cleared, counters stay.  A positive newAvg
// overrides the average service time.
func (r *EventRepo) Reopen(ctx context.Context, id uint64, newAvg *int) (*model.Event, error) {
	q := `UPDATE events SET stage = ?, is_locked = FALSE, starts_at = NULL, ends_at = NULL`
	args := []any{model.StageOpen}
	if newAvg != nil {
		q += `, avg_service_minutes = ?`
		args = append(args, *newAvg)
	}
	q += ` WHERE id = ?`
	args = append(args, id)
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// StartNewBatch performs the batch rollover: increments current_batch,
// zeroes every per-batch counter, reopens registration and clears the
// session window.  A positive newAvg overrides the average service time.
func (r *EventRepo) StartNewBatch(ctx context.Context, id uint64, newAvg *int) (*model.Event, error) {
	q := `UPDATE events SET current_batch = current_batch + 1,
		last_number_issued = 0, slots_taken = 0, total_served = 0,
		total_service_seconds = 0, stage = ?, is_locked = FALSE,
		starts_at = NULL, ends_at = NULL`
	args := []any{model.StageOpen}
	if newAvg != nil {
		q += `, avg_service_minutes = ?`
		args = append(args, *newAvg)
	}
	q += ` WHERE id = ?`
	args = append(args, id)
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// AccumulateService folds one completed service of the given duration into
// the event totals and recomputes the rolling average as
// ceil(totalSeconds / 60 / totalServed), all in a single statement.
func (r *EventRepo) AccumulateService(ctx context.Context, id uint64, seconds int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE events SET total_served = total_served + 1,
			total_service_seconds = total_service_seconds + ?,
			avg_service_minutes = CEILING((total_service_seconds + ?) / 60 / (total_served + 1))
		 WHERE id = ?`, seconds, seconds, id)
	return err
}

// ListSweepable returns the events the auto-scheduler must inspect: stage
// TERBUKA or DITUTUP and registration locked.
func (r *EventRepo) ListSweepable(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE stage IN (?, ?) AND is_locked = TRUE`,
		model.StageOpen, model.StageClosing)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// Delete removes an event and cascades to all of its queue entries.
func (r *EventRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM queue_entries WHERE event_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// EventQueueStats is the per-event aggregation attached to browse
// listings: how many tickets wait and which number is being called.
type EventQueueStats struct {
	TotalWaiting  int
	CurrentNumber int
}

// QueueStats aggregates waiting counts and the highest called number for a
// set of events in one query, keyed by event id.
func (r *EventRepo) QueueStats(ctx context.Context, eventIDs []uint64) (map[uint64]EventQueueStats, error) {
	stats := make(map[uint64]EventQueueStats, len(eventIDs))
	if len(eventIDs) == 0 {
		return stats, nil
	}
	q := `SELECT e.id,
		SUM(CASE WHEN qe.status = ? THEN 1 ELSE 0 END),
		MAX(CASE WHEN qe.status = ? THEN qe.ticket_number ELSE 0 END)
	 FROM events e
	 JOIN queue_entries qe ON qe.event_id = e.id AND qe.batch = e.current_batch
	 WHERE e.id IN (`
	args := []any{model.TicketWaiting, model.TicketCalled}
	for i, id := range eventIDs {
		if i > 0 {
			q += ","
		}
		q += "?"
		args = append(args, id)
	}
	q += `) GROUP BY e.id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		var s EventQueueStats
		if err := rows.Scan(&id, &s.TotalWaiting, &s.CurrentNumber); err != nil {
			return nil, err
		}
		stats[id] = s
	}
	return stats, rows.Err()
}
