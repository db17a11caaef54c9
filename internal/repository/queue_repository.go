package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/antrikuy/antrikuy-backend/internal/model"
)

// QueueRepo provides persistence for queue entries.  Status transitions
// are status-guarded UPDATEs: the WHERE clause repeats the expected current
// status so that when two writers race, only one matches the row and the
// loser simply affects zero rows.  That guard, not locking, is what keeps
// an entry from being called twice.
type QueueRepo struct {
	db *sql.DB
}

// NewQueueRepo returns a QueueRepo bound to the given database.
func NewQueueRepo(db *sql.DB) *QueueRepo { return &QueueRepo{db: db} }

const entryColumns = `id, event_id, user_id, ticket_number, batch, status,
	call_expires_at, is_postponed, postpone_reason, cancel_reason, ticket_token,
	token_expires_at, requested_at, called_at, service_started_at,
	service_ended_at, ended_at, created_at, updated_at`

func scanEntry(row eventScanner) (*model.QueueEntry, error) {
	var e model.QueueEntry
	var callExpires, tokenExpires, calledAt, serviceStart, serviceEnd, endedAt sql.NullTime
	var postponeReason, cancelReason, token sql.NullString
	err := row.Scan(
		&e.ID, &e.EventID, &e.UserID, &e.TicketNumber, &e.Batch, &e.Status,
		&callExpires, &e.Postponed, &postponeReason, &cancelReason, &token,
		&tokenExpires, &e.RequestedAt, &calledAt, &serviceStart, &serviceEnd,
		&endedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.PostponeReason = postponeReason.String
	e.CancelReason = cancelReason.String
	e.TicketToken = token.String
	setNullTime := func(dst **time.Time, src sql.NullTime) {
		if src.Valid {
			t := src.Time
			*dst = &t
		}
	}
	setNullTime(&e.CallExpiresAt, callExpires)
	setNullTime(&e.TokenExpiresAt, tokenExpires)
	setNullTime(&e.CalledAt, calledAt)
	setNullTime(&e.ServiceStartedAt, serviceStart)
	setNullTime(&e.ServiceEndedAt, serviceEnd)
	setNullTime(&e.EndedAt, endedAt)
	return &e, nil
}

func statusPlaceholders(statuses []string) (string, []any) {
	ph := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, s := range statuses {
		ph[i] = "?"
		args[i] = s
	}
	return strings.Join(ph, ","), args
}

// Create inserts a freshly issued ticket.  The (event, batch,
// ticket_number) uniqueness constraint makes a lost counter race surface
// here as a duplicate-key error.
func (r *QueueRepo) Create(ctx context.Context, e *model.QueueEntry) error {
	const q = `INSERT INTO queue_entries
		(event_id, user_id, ticket_number, batch, status, is_postponed,
		 postpone_reason, ticket_token, token_expires_at, requested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var tokenExpires any
	if e.TokenExpiresAt != nil {
		tokenExpires = e.TokenExpiresAt.UTC()
	}
	res, err := r.db.ExecContext(ctx, q,
		e.EventID, e.UserID, e.TicketNumber, e.Batch, e.Status, e.Postponed,
		e.PostponeReason, e.TicketToken, tokenExpires, e.RequestedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// GetByID retrieves an entry by primary key.
func (r *QueueRepo) GetByID(ctx context.Context, id uint64) (*model.QueueEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM queue_entries WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrEntryNotFound
	}
	return e, err
}

// GetByToken retrieves an entry by its current ticket token.
func (r *QueueRepo) GetByToken(ctx context.Context, token string) (*model.QueueEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM queue_entries WHERE ticket_token = ?`, token))
	if err == sql.ErrNoRows {
		return nil, ErrEntryNotFound
	}
	return e, err
}

// ActiveByUser returns the user's active entry in the given event and
// batch, or ErrEntryNotFound when there is none.
func (r *QueueRepo) ActiveByUser(ctx context.Context, eventID, userID uint64, batch int) (*model.QueueEntry, error) {
	ph, args := statusPlaceholders(model.ActiveTicketStatuses)
	q := `SELECT ` + entryColumns + ` FROM queue_entries
		WHERE event_id = ? AND user_id = ? AND batch = ? AND status IN (` + ph + `) LIMIT 1`
	e, err := scanEntry(r.db.QueryRowContext(ctx, q,
		append([]any{eventID, userID, batch}, args...)...))
	if err == sql.ErrNoRows {
		return nil, ErrEntryNotFound
	}
	return e, err
}

// CurrentlyCalledOrServing returns the event's single DIPANGGIL/DILAYANI
// entry if one exists.
func (r *QueueRepo) CurrentlyCalledOrServing(ctx context.Context, eventID uint64) (*model.QueueEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM queue_entries
		 WHERE event_id = ? AND status IN (?, ?) LIMIT 1`,
		eventID, model.TicketCalled, model.TicketServing))
	if err == sql.ErrNoRows {
		return nil, ErrEntryNotFound
	}
	return e, err
}

// CallNextWaiting selects the lowest-numbered MENUNGGU entry of the
// current batch and transitions it to DIPANGGIL with the given expiry.
// Selection and transition race-protect each other through the status
// guard: when a concurrent caller wins the UPDATE, the loop retries with
// the next candidate.  ErrEntryNotFound means the waiting list is empty.
func (r *QueueRepo) CallNextWaiting(ctx context.Context, eventID uint64, batch int, now, expiresAt time.Time) (*model.QueueEntry, error) {
	for {
		var id uint64
		err := r.db.QueryRowContext(ctx,
			`SELECT id FROM queue_entries
			 WHERE event_id = ? AND batch = ? AND status = ?
			 ORDER BY ticket_number ASC LIMIT 1`,
			eventID, batch, model.TicketWaiting).Scan(&id)
		if err == sql.ErrNoRows {
			return nil, ErrEntryNotFound
		}
		if err != nil {
			return nil, err
		}
		res, err := r.db.ExecContext(ctx,
			`UPDATE queue_entries SET status = ?, called_at = ?, call_expires_at = ?
			 WHERE id = ? AND status = ?`,
			model.TicketCalled, now.UTC(), expiresAt.UTC(), id, model.TicketWaiting)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 1 {
			return r.GetByID(ctx, id)
		}
		// lost the race; candidate is no longer MENUNGGU, pick again
	}
}

// ExpiredCalled returns the event's DIPANGGIL entry whose no-show deadline
// already passed, or ErrEntryNotFound.
func (r *QueueRepo) ExpiredCalled(ctx context.Context, eventID uint64, now time.Time) (*model.QueueEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM queue_entries
		 WHERE event_id = ? AND status = ? AND call_expires_at < ? LIMIT 1`,
		eventID, model.TicketCalled, now.UTC()))
	if err == sql.ErrNoRows {
		return nil, ErrEntryNotFound
	}
	return e, err
}

// MarkMissed archives one entry as TERLEWAT with a reason, stamping the
// generic close time and clearing the call deadline.
func (r *QueueRepo) MarkMissed(ctx context.Context, id uint64, reason string, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE queue_entries SET status = ?, postpone_reason = ?,
			ended_at = ?, call_expires_at = NULL
		 WHERE id = ?`,
		model.TicketMissed, reason, now.UTC(), id)
	return err
}

// MarkMissedBulk archives every active entry of an event as TERLEWAT and
// returns how many rows were affected.
func (r *QueueRepo) MarkMissedBulk(ctx context.Context, eventID uint64, reason string, now time.Time) (int64, error) {
	ph, args := statusPlaceholders(model.ActiveTicketStatuses)
	q := `UPDATE queue_entries SET status = ?, postpone_reason = ?,
		ended_at = ?, call_expires_at = NULL
	 WHERE event_id = ? AND status IN (` + ph + `)`
	res, err := r.db.ExecContext(ctx, q,
		append([]any{model.TicketMissed, reason, now.UTC(), eventID}, args...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountAhead counts MENUNGGU/DIPANGGIL entries of the batch with a smaller
// ticket number, i.e. the people the FIFO rule requires to be served first.
func (r *QueueRepo) CountAhead(ctx context.Context, eventID uint64, batch, ticketNumber int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queue_entries
		 WHERE event_id = ? AND batch = ? AND status IN (?, ?) AND ticket_number < ?`,
		eventID, batch, model.TicketWaiting, model.TicketCalled, ticketNumber).Scan(&n)
	return n, err
}

// CountWaitingAhead counts only MENUNGGU entries with a smaller ticket
// number; used for position and wait-time estimates.
func (r *QueueRepo) CountWaitingAhead(ctx context.Context, eventID uint64, batch, ticketNumber int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queue_entries
		 WHERE event_id = ? AND batch = ? AND status = ? AND ticket_number < ?`,
		eventID, batch, model.TicketWaiting, ticketNumber).Scan(&n)
	return n, err
}

// StartService transitions an entry to DILAYANI, stamping the service
// start and clearing the no-show deadline.
func (r *QueueRepo) StartService(ctx context.Context, id uint64, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE queue_entries SET status = ?, service_started_at = ?, call_expires_at = NULL
		 WHERE id = ?`,
		model.TicketServing, now.UTC(), id)
	return err
}

// Complete transitions an entry to SELESAI: service end stamped, ticket
// token cleared so the QR can no longer be replayed.
func (r *QueueRepo) Complete(ctx context.Context, id uint64, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE queue_entries SET status = ?, service_ended_at = ?,
			ticket_token = NULL, token_expires_at = NULL
		 WHERE id = ?`,
		model.TicketDone, now.UTC(), id)
	return err
}

// SetPostponeRequested moves a MENUNGGU entry to REQ_TUNDA.  The status
// guard rejects the transition from any other state.
func (r *QueueRepo) SetPostponeRequested(ctx context.Context, id uint64, reason string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE queue_entries SET status = ?, postpone_reason = ?
		 WHERE id = ? AND status = ?`,
		model.TicketPostponeRequested, reason, id, model.TicketWaiting)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// RevertToWaiting puts a REQ_TUNDA entry back in the waiting list.
func (r *QueueRepo) RevertToWaiting(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE queue_entries SET status = ? WHERE id = ? AND status = ?`,
		model.TicketWaiting, id, model.TicketPostponeRequested)
	return err
}

// Cancel soft-cancels an entry: status DIBATALKAN, reason and close time
// stamped.
func (r *QueueRepo) Cancel(ctx context.Context, id uint64, reason string, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE queue_entries SET status = ?, cancel_reason = ?, ended_at = ?,
			call_expires_at = NULL
		 WHERE id = ?`,
		model.TicketCancelled, reason, now.UTC(), id)
	return err
}

// ActiveByUserAllEvents lists a user's active entries across every event,
// for the admin bulk-cancel path.
func (r *QueueRepo) ActiveByUserAllEvents(ctx context.Context, userID uint64) ([]model.QueueEntry, error) {
	ph, args := statusPlaceholders(model.ActiveTicketStatuses)
	q := `SELECT ` + entryColumns + ` FROM queue_entries
		WHERE user_id = ? AND status IN (` + ph + `)`
	rows, err := r.db.QueryContext(ctx, q, append([]any{userID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]model.QueueEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Delete hard-removes an entry.  Only the pre-order cancellation path uses
// this; everywhere else entries are archived in place.
func (r *QueueRepo) Delete(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM queue_entries WHERE id = ?`, id)
	return err
}

// UpdateToken stores a reissued ticket token and its expiry.
func (r *QueueRepo) UpdateToken(ctx context.Context, id uint64, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE queue_entries SET ticket_token = ?, token_expires_at = ? WHERE id = ?`,
		token, expiresAt.UTC(), id)
	return err
}

// ListByUser returns all of a user's entries, newest first, for the
// current-vs-history split on the my-queues screen.
func (r *QueueRepo) ListByUser(ctx context.Context, userID uint64) ([]model.QueueEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM queue_entries
		 WHERE user_id = ? ORDER BY requested_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]model.QueueEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// ListByStatus returns the batch's entries in one status ordered by ticket
// number; the admin dashboard builds its columns from this.
func (r *QueueRepo) ListByStatus(ctx context.Context, eventID uint64, batch int, statuses ...string) ([]model.QueueEntry, error) {
	ph, args := statusPlaceholders(statuses)
	q := `SELECT ` + entryColumns + ` FROM queue_entries
		WHERE event_id = ? AND batch = ? AND status IN (` + ph + `)
		ORDER BY ticket_number ASC`
	rows, err := r.db.QueryContext(ctx, q, append([]any{eventID, batch}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]model.QueueEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// ListByEvent returns every entry of an event across batches, ordered by
// batch then ticket number; used for the admin list and report export
// projection.
func (r *QueueRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.QueueEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM queue_entries
		 WHERE event_id = ? ORDER BY batch ASC, ticket_number ASC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]model.QueueEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}
