package model

import "time"

// Event stages as persisted in events.stage.  The stage is the
// admin/scheduler-controlled half of an event's state; the other half is
// computed on the fly by DeriveStatus.
const (
	StageOpen     = "TERBUKA"
	StageClosing  = "DITUTUP"
	StageFinished = "SELESAI"
)

// Derived (never persisted) session phases returned by DeriveStatus.
const (
	StatusPreOrder = "PRE-ORDER"
	StatusOpen     = "TERBUKA"
	StatusFull     = "PENUH"
	StatusClosing  = "DITUTUP"
	StatusFinished = "SELESAI"
)

// closingWindow is how long before EndsAt an event is already considered
// CLOSING, and also the forced remaining lifetime applied when an admin
// transitions an event to the CLOSING stage.
const closingWindow = 15 * time.Minute

// MinSessionDuration is the smallest allowed gap between StartsAt and
// EndsAt when both are supplied.
const MinSessionDuration = 15 * time.Minute

// Event represents one service session of a school (a counseling day, a
// library desk, an admin office window).  It owns the capacity and timing
// of the session plus the counters the queue engine mutates on every
// ticket operation.
//
// Fields:
//  ID                  – primary key identifier.
//  SchoolID            – owning school.
//  Code                – human-readable external code, unique.
//  Name                – display name of the session.
//  Category            – service category label.
//  Location            – free-form location hint.
//  Description         – optional description.
//  Stage               – persisted stage (TERBUKA/DITUTUP/SELESAI).
//  Locked              – registration frozen; serving may start.
//  Capacity            – max slots; nil means unlimited.
//  StartsAt, EndsAt    – optional session window (>= 15 min apart).
//  CurrentBatch        – batch counter, starts at 1.
//  SlotsTaken          – slots currently consumed (active or DONE tickets).
//  LastNumberIssued    – monotonic ticket counter within the current batch.
//  TotalServed         – completed tickets in the current batch.
//  TotalServiceSeconds – accumulated service time for the avg computation.
//  AvgServiceMinutes   – rolling average service time, recomputed per completion.
//  GracePeriodMinutes  – time a called ticket has to appear before auto-skip.
type Event struct {
	ID                  uint64     // events.id
	SchoolID            uint64     // events.school_id
	Code                string     // events.code
	Name                string     // events.name
	Category            string     // events.category
	Location            string     // events.location
	Description         string     // events.description
	Stage               string     // events.stage
	Locked              bool       // events.is_locked
	Capacity            *int       // events.capacity (nullable)
	StartsAt            *time.Time // events.starts_at (nullable)
	EndsAt              *time.Time // events.ends_at (nullable)
	CurrentBatch        int        // events.current_batch
	SlotsTaken          int        // events.slots_taken
	LastNumberIssued    int        // events.last_number_issued
	TotalServed         int        // events.total_served
	TotalServiceSeconds int64      // events.total_service_seconds
	AvgServiceMinutes   int        // events.avg_service_minutes
	GracePeriodMinutes  int        // events.grace_period_minutes
	CreatedAt           time.Time  // events.created_at
	UpdatedAt           time.Time  // events.updated_at
}

// DeriveStatus computes the session phase of an event at the given instant.
// The result is never stored; every reader evaluates it fresh to avoid
// staleness.  Check order is significant and must not change:
// FINISHED > CLOSING > PRE-ORDER > FULL > OPEN.
func DeriveStatus(ev *Event, now time.Time) string {
	if ev.Stage == StageFinished || (ev.EndsAt != nil && now.After(*ev.EndsAt)) {
		return StatusFinished
	}
	if ev.Stage == StageClosing {
		return StatusClosing
	}
	if ev.EndsAt != nil && now.After(ev.EndsAt.Add(-closingWindow)) {
		return StatusClosing
	}
	if ev.StartsAt != nil && now.Before(*ev.StartsAt) {
		return StatusPreOrder
	}
	if ev.Capacity != nil && ev.SlotsTaken >= *ev.Capacity {
		return StatusFull
	}
	return StatusOpen
}

// ValidateWindow checks the start/end pair of an event.  Both may be nil;
// when both are set the session must last at least MinSessionDuration.
func ValidateWindow(startsAt, endsAt *time.Time) bool {
	if startsAt == nil || endsAt == nil {
		return true
	}
	return endsAt.Sub(*startsAt) >= MinSessionDuration
}
