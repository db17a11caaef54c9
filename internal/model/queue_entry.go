package model

import "time"

// Ticket lifecycle statuses as persisted in queue_entries.status.  The
// values are the operator-facing Indonesian terms the mobile apps display
// verbatim.
const (
	TicketWaiting           = "MENUNGGU"
	TicketCalled            = "DIPANGGIL"
	TicketServing           = "DILAYANI"
	TicketDone              = "SELESAI"
	TicketCancelled         = "DIBATALKAN"
	TicketMissed            = "TERLEWAT"
	TicketPostponeRequested = "REQ_TUNDA"
)

// ActiveTicketStatuses are the statuses that occupy a slot and block a user
// from joining the same event again within the current batch.
var ActiveTicketStatuses = []string{
	TicketWaiting,
	TicketCalled,
	TicketServing,
	TicketPostponeRequested,
}

// IsActiveTicketStatus reports whether s counts as an active (slot-holding)
// status.
func IsActiveTicketStatus(s string) bool {
	for _, a := range ActiveTicketStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// IsTerminalTicketStatus reports whether s is one of the closed states a
// ticket can never leave.
func IsTerminalTicketStatus(s string) bool {
	return s == TicketDone || s == TicketCancelled || s == TicketMissed
}

// QueueEntry is a single ticket: one user's claim to a position in an
// event's current batch.  Entries are archived in place by status change,
// never deleted, with the single exception of the pre-order cancellation
// path which removes the latest ticket to allow number rollback.
//
// Fields:
//  ID               – primary key identifier.
//  EventID          – event this ticket belongs to.
//  UserID           – ticket owner.
//  TicketNumber     – ordinal, unique within (event, batch).
//  Batch            – batch the ticket was issued in.
//  Status           – see the Ticket* constants.
//  CallExpiresAt    – no-show deadline while CALLED (nullable).
//  Postponed        – true when the entry was created by a postpone approval.
//  PostponeReason   – reason attached to REQ_TUNDA / MISSED transitions.
//  CancelReason     – reason attached to DIBATALKAN transitions.
//  TicketToken      – short-lived signed token for scan verification.
//  TokenExpiresAt   – expiry of TicketToken.
//  RequestedAt      – when the ticket was issued.
//  CalledAt         – when the ticket was last called.
//  ServiceStartedAt – when serving began.
//  ServiceEndedAt   – when serving completed.
//  EndedAt          – generic close time for cancel/miss transitions.
type QueueEntry struct {
	ID               uint64     // queue_entries.id
	EventID          uint64     // queue_entries.event_id
	UserID           uint64     // queue_entries.user_id
	TicketNumber     int        // queue_entries.ticket_number
	Batch            int        // queue_entries.batch
	Status           string     // queue_entries.status
	CallExpiresAt    *time.Time // queue_entries.call_expires_at (nullable)
	Postponed        bool       // queue_entries.is_postponed
	PostponeReason   string     // queue_entries.postpone_reason
	CancelReason     string     // queue_entries.cancel_reason
	TicketToken      string     // queue_entries.ticket_token
	TokenExpiresAt   *time.Time // queue_entries.token_expires_at (nullable)
	RequestedAt      time.Time  // queue_entries.requested_at
	CalledAt         *time.Time // queue_entries.called_at (nullable)
	ServiceStartedAt *time.Time // queue_entries.service_started_at (nullable)
	ServiceEndedAt   *time.Time // queue_entries.service_ended_at (nullable)
	EndedAt          *time.Time // queue_entries.ended_at (nullable)
	CreatedAt        time.Time  // queue_entries.created_at
	UpdatedAt        time.Time  // queue_entries.updated_at
}
