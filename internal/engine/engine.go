// Package engine implements the queue state machine: ticket issuance,
// calling, service tracking, postponement and batch lifecycle.  It works
// against small store interfaces so the rules can be tested without a
// database; the repository package provides the MySQL implementations.
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/antrikuy/antrikuy-backend/internal/model"
)

// EventStore is the slice of event persistence the engine needs.
type EventStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Event, error)
	IssueTicket(ctx context.Context, id uint64) (*model.Event, error)
	RollbackIssue(ctx context.Context, id uint64) error
	DecrementSlots(ctx context.Context, id uint64) error
	ReleaseLatestNumber(ctx context.Context, id uint64, ticketNumber int) error
	MarkFinished(ctx context.Context, id uint64) error
	Reopen(ctx context.Context, id uint64, newAvg *int) (*model.Event, error)
	StartNewBatch(ctx context.Context, id uint64, newAvg *int) (*model.Event, error)
	AccumulateService(ctx context.Context, id uint64, seconds int64) error
	ListSweepable(ctx context.Context) ([]model.Event, error)
}

// EntryStore is the slice of queue-entry persistence the engine needs.
type EntryStore interface {
	Create(ctx context.Context, e *model.QueueEntry) error
	GetByID(ctx context.Context, id uint64) (*model.QueueEntry, error)
	GetByToken(ctx context.Context, token string) (*model.QueueEntry, error)
	ActiveByUser(ctx context.Context, eventID, userID uint64, batch int) (*model.QueueEntry, error)
	ActiveByUserAllEvents(ctx context.Context, userID uint64) ([]model.QueueEntry, error)
	CurrentlyCalledOrServing(ctx context.Context, eventID uint64) (*model.QueueEntry, error)
	CallNextWaiting(ctx context.Context, eventID uint64, batch int, now, expiresAt time.Time) (*model.QueueEntry, error)
	ExpiredCalled(ctx context.Context, eventID uint64, now time.Time) (*model.QueueEntry, error)
	MarkMissed(ctx context.Context, id uint64, reason string, now time.Time) error
	MarkMissedBulk(ctx context.Context, eventID uint64, reason string, now time.Time) (int64, error)
	CountAhead(ctx context.Context, eventID uint64, batch, ticketNumber int) (int, error)
	CountWaitingAhead(ctx context.Context, eventID uint64, batch, ticketNumber int) (int, error)
	StartService(ctx context.Context, id uint64, now time.Time) error
	Complete(ctx context.Context, id uint64, now time.Time) error
	SetPostponeRequested(ctx context.Context, id uint64, reason string) (bool, error)
	RevertToWaiting(ctx context.Context, id uint64) error
	Cancel(ctx context.Context, id uint64, reason string, now time.Time) error
	Delete(ctx context.Context, id uint64) error
	UpdateToken(ctx context.Context, id uint64, token string, expiresAt time.Time) error
	ListByStatus(ctx context.Context, eventID uint64, batch int, statuses ...string) ([]model.QueueEntry, error)
}

// Notifier pushes messages to users and school topics.  Implementations
// must not block the caller; delivery is best-effort.
type Notifier interface {
	NotifyUser(userID uint64, title, body string, data map[string]string)
	NotifyTopic(topic, title, body string, data map[string]string)
}

// TicketSigner mints and verifies the short-lived tokens embedded in
// ticket QR codes.
type TicketSigner interface {
	SignTicket(entryID, eventID uint64, ttl time.Duration) (string, error)
	ParseTicket(token string) (entryID, eventID uint64, err error)
}

// Engine evaluates queue operations against the state machine.
type Engine struct {
	events  EventStore
	entries EntryStore
	notify  Notifier
	signer  TicketSigner

	// Now is swapped for a fixed clock in tests.
	Now func() time.Time
	// Log records compensation failures that never surface to callers.
	Log zerolog.Logger
}

// TicketTokenTTL is the lifetime of a ticket QR token.
const TicketTokenTTL = 5 * time.Minute

// DefaultGraceMinutes is used when an event carries no grace period of
// its own; it bounds how long a called ticket stays claimable.
const DefaultGraceMinutes = 5

// MinServiceSeconds is the floor applied when folding a completed
// service into the rolling average, so instant taps do not drag the
// estimate to zero.
const MinServiceSeconds = 60

func New(events EventStore, entries EntryStore, notify Notifier, signer TicketSigner) *Engine {
	return &Engine{
		events:  events,
		entries: entries,
		notify:  notify,
		signer:  signer,
		Now:     func() time.Time { return time.Now().UTC() },
		Log:     zerolog.Nop(),
	}
}

func graceMinutes(ev *model.Event) int {
	if ev.GracePeriodMinutes > 0 {
		return ev.GracePeriodMinutes
	}
	return DefaultGraceMinutes
}

func avgMinutes(ev *model.Event) int {
	if ev.AvgServiceMinutes > 0 {
		return ev.AvgServiceMinutes
	}
	return DefaultGraceMinutes
}
