package engine

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/antrikuy/antrikuy-backend/internal/model"
	"github.com/antrikuy/antrikuy-backend/internal/repository"
)

// fakeEventStore keeps events in a map and mimics the counter semantics
// of the MySQL repository.
type fakeEventStore struct {
	events map[uint64]*model.Event
}

func newFakeEventStore(evs ...*model.Event) *fakeEventStore {
	s := &fakeEventStore{events: make(map[uint64]*model.Event)}
	for _, ev := range evs {
		s.events[ev.ID] = ev
	}
	return s
}

func (s *fakeEventStore) get(id uint64) (*model.Event, error) {
	ev, ok := s.events[id]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	return ev, nil
}

func (s *fakeEventStore) GetByID(_ context.Context, id uint64) (*model.Event, error) {
	ev, err := s.get(id)
	if err != nil {
		return nil, err
	}
	cp := *ev
	return &cp, nil
}

func (s *fakeEventStore) IssueTicket(_ context.Context, id uint64) (*model.Event, error) {
	ev, err := s.get(id)
	if err != nil {
		return nil, err
	}
	ev.LastNumberIssued++
	ev.SlotsTaken++
	cp := *ev
	return &cp, nil
}

func (s *fakeEventStore) RollbackIssue(_ context.Context, id uint64) error {
	ev, err := s.get(id)
	if err != nil {
		return err
	}
	if ev.LastNumberIssued > 0 {
		ev.LastNumberIssued--
	}
	if ev.SlotsTaken > 0 {
		ev.SlotsTaken--
	}
	return nil
}

func (s *fakeEventStore) DecrementSlots(_ context.Context, id uint64) error {
	ev, err := s.get(id)
	if err != nil {
		return err
	}
	if ev.SlotsTaken > 0 {
		ev.SlotsTaken--
	}
	return nil
}

func (s *fakeEventStore) ReleaseLatestNumber(_ context.Context, id uint64, ticketNumber int) error {
	ev, err := s.get(id)
	if err != nil {
		return err
	}
	if ev.LastNumberIssued == ticketNumber {
		ev.LastNumberIssued--
	}
	return nil
}

func (s *fakeEventStore) MarkFinished(_ context.Context, id uint64) error {
	ev, err := s.get(id)
	if err != nil {
		return err
	}
	ev.Stage = model.StageFinished
	ev.Locked = true
	return nil
}

func (s *fakeEventStore) Reopen(_ context.Context, id uint64, newAvg *int) (*model.Event, error) {
	ev, err := s.get(id)
	if err != nil {
		return nil, err
	}
	ev.Stage = model.StageOpen
	ev.Locked = false
	ev.StartsAt = nil
	ev.EndsAt = nil
	if newAvg != nil {
		ev.AvgServiceMinutes = *newAvg
	}
	cp := *ev
	return &cp, nil
}

func (s *fakeEventStore) StartNewBatch(_ context.Context, id uint64, newAvg *int) (*model.Event, error) {
	ev, err := s.get(id)
	if err != nil {
		return nil, err
	}
	ev.CurrentBatch++
	ev.LastNumberIssued = 0
	ev.SlotsTaken = 0
	ev.TotalServed = 0
	ev.TotalServiceSeconds = 0
	ev.Stage = model.StageOpen
	ev.Locked = false
	ev.StartsAt = nil
	ev.EndsAt = nil
	if newAvg != nil {
		ev.AvgServiceMinutes = *newAvg
	}
	cp := *ev
	return &cp, nil
}

func (s *fakeEventStore) AccumulateService(_ context.Context, id uint64, seconds int64) error {
	ev, err := s.get(id)
	if err != nil {
		return err
	}
	ev.TotalServed++
	ev.TotalServiceSeconds += seconds
	denom := int64(60 * ev.TotalServed)
	ev.AvgServiceMinutes = int((ev.TotalServiceSeconds + denom - 1) / denom)
	return nil
}

func (s *fakeEventStore) ListSweepable(_ context.Context) ([]model.Event, error) {
	var out []model.Event
	for _, ev := range s.events {
		if (ev.Stage == model.StageOpen || ev.Stage == model.StageClosing) && ev.Locked {
			out = append(out, *ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeEntryStore keeps entries in insertion order and enforces the
// (event, batch, ticket_number) uniqueness the schema provides.
type fakeEntryStore struct {
	entries        []*model.QueueEntry
	nextID         uint64
	updateTokenErr error
}

func newFakeEntryStore() *fakeEntryStore { return &fakeEntryStore{nextID: 1} }

func (s *fakeEntryStore) Create(_ context.Context, e *model.QueueEntry) error {
	for _, ex := range s.entries {
		if ex.EventID == e.EventID && ex.Batch == e.Batch && ex.TicketNumber == e.TicketNumber {
			return fmt.Errorf("Error 1062: Duplicate entry")
		}
	}
	e.ID = s.nextID
	s.nextID++
	cp := *e
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *fakeEntryStore) find(id uint64) (*model.QueueEntry, error) {
	for _, e := range s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, repository.ErrEntryNotFound
}

func (s *fakeEntryStore) GetByID(_ context.Context, id uint64) (*model.QueueEntry, error) {
	e, err := s.find(id)
	if err != nil {
		return nil, err
	}
	cp := *e
	return &cp, nil
}

func (s *fakeEntryStore) GetByToken(_ context.Context, token string) (*model.QueueEntry, error) {
	for _, e := range s.entries {
		if e.TicketToken == token && token != "" {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrEntryNotFound
}

func (s *fakeEntryStore) ActiveByUser(_ context.Context, eventID, userID uint64, batch int) (*model.QueueEntry, error) {
	for _, e := range s.entries {
		if e.EventID == eventID && e.UserID == userID && e.Batch == batch &&
			model.IsActiveTicketStatus(e.Status) {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrEntryNotFound
}

func (s *fakeEntryStore) ActiveByUserAllEvents(_ context.Context, userID uint64) ([]model.QueueEntry, error) {
	var out []model.QueueEntry
	for _, e := range s.entries {
		if e.UserID == userID && model.IsActiveTicketStatus(e.Status) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *fakeEntryStore) CurrentlyCalledOrServing(_ context.Context, eventID uint64) (*model.QueueEntry, error) {
	for _, e := range s.entries {
		if e.EventID == eventID &&
			(e.Status == model.TicketCalled || e.Status == model.TicketServing) {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrEntryNotFound
}

func (s *fakeEntryStore) CallNextWaiting(_ context.Context, eventID uint64, batch int, now, expiresAt time.Time) (*model.QueueEntry, error) {
	var next *model.QueueEntry
	for _, e := range s.entries {
		if e.EventID == eventID && e.Batch == batch && e.Status == model.TicketWaiting {
			if next == nil || e.TicketNumber < next.TicketNumber {
				next = e
			}
		}
	}
	if next == nil {
		return nil, repository.ErrEntryNotFound
	}
	next.Status = model.TicketCalled
	t1, t2 := now, expiresAt
	next.CalledAt = &t1
	next.CallExpiresAt = &t2
	cp := *next
	return &cp, nil
}

func (s *fakeEntryStore) ExpiredCalled(_ context.Context, eventID uint64, now time.Time) (*model.QueueEntry, error) {
	for _, e := range s.entries {
		if e.EventID == eventID && e.Status == model.TicketCalled &&
			e.CallExpiresAt != nil && e.CallExpiresAt.Before(now) {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrEntryNotFound
}

func (s *fakeEntryStore) MarkMissed(_ context.Context, id uint64, reason string, now time.Time) error {
	e, err := s.find(id)
	if err != nil {
		return err
	}
	e.Status = model.TicketMissed
	e.PostponeReason = reason
	t := now
	e.EndedAt = &t
	e.CallExpiresAt = nil
	return nil
}

func (s *fakeEntryStore) MarkMissedBulk(_ context.Context, eventID uint64, reason string, now time.Time) (int64, error) {
	var n int64
	for _, e := range s.entries {
		if e.EventID == eventID && model.IsActiveTicketStatus(e.Status) {
			e.Status = model.TicketMissed
			e.PostponeReason = reason
			t := now
			e.EndedAt = &t
			e.CallExpiresAt = nil
			n++
		}
	}
	return n, nil
}

func (s *fakeEntryStore) CountAhead(_ context.Context, eventID uint64, batch, ticketNumber int) (int, error) {
	n := 0
	for _, e := range s.entries {
		if e.EventID == eventID && e.Batch == batch && e.TicketNumber < ticketNumber &&
			(e.Status == model.TicketWaiting || e.Status == model.TicketCalled) {
			n++
		}
	}
	return n, nil
}

func (s *fakeEntryStore) CountWaitingAhead(_ context.Context, eventID uint64, batch, ticketNumber int) (int, error) {
	n := 0
	for _, e := range s.entries {
		if e.EventID == eventID && e.Batch == batch && e.TicketNumber < ticketNumber &&
			e.Status == model.TicketWaiting {
			n++
		}
	}
	return n, nil
}

func (s *fakeEntryStore) StartService(_ context.Context, id uint64, now time.Time) error {
	e, err := s.find(id)
	if err != nil {
		return err
	}
	e.Status = model.TicketServing
	t := now
	e.ServiceStartedAt = &t
	e.CallExpiresAt = nil
	return nil
}

func (s *fakeEntryStore) Complete(_ context.Context, id uint64, now time.Time) error {
	e, err := s.find(id)
	if err != nil {
		return err
	}
	e.Status = model.TicketDone
	t := now
	e.ServiceEndedAt = &t
	e.TicketToken = ""
	e.TokenExpiresAt = nil
	return nil
}

func (s *fakeEntryStore) SetPostponeRequested(_ context.Context, id uint64, reason string) (bool, error) {
	e, err := s.find(id)
	if err != nil {
		return false, err
	}
	if e.Status != model.TicketWaiting {
		return false, nil
	}
	e.Status = model.TicketPostponeRequested
	e.PostponeReason = reason
	return true, nil
}

func (s *fakeEntryStore) RevertToWaiting(_ context.Context, id uint64) error {
	e, err := s.find(id)
	if err != nil {
		return err
	}
	if e.Status == model.TicketPostponeRequested {
		e.Status = model.TicketWaiting
	}
	return nil
}

func (s *fakeEntryStore) Cancel(_ context.Context, id uint64, reason string, now time.Time) error {
	e, err := s.find(id)
	if err != nil {
		return err
	}
	e.Status = model.TicketCancelled
	e.CancelReason = reason
	t := now
	e.EndedAt = &t
	e.CallExpiresAt = nil
	return nil
}

func (s *fakeEntryStore) Delete(_ context.Context, id uint64) error {
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return repository.ErrEntryNotFound
}

func (s *fakeEntryStore) UpdateToken(_ context.Context, id uint64, token string, expiresAt time.Time) error {
	if s.updateTokenErr != nil {
		return s.updateTokenErr
	}
	e, err := s.find(id)
	if err != nil {
		return err
	}
	e.TicketToken = token
	t := expiresAt
	e.TokenExpiresAt = &t
	return nil
}

func (s *fakeEntryStore) ListByStatus(_ context.Context, eventID uint64, batch int, statuses ...string) ([]model.QueueEntry, error) {
	var out []model.QueueEntry
	for _, e := range s.entries {
		for _, st := range statuses {
			if e.EventID == eventID && e.Batch == batch && e.Status == st {
				out = append(out, *e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketNumber < out[j].TicketNumber })
	return out, nil
}

// fakeNotifier records every push for assertions.
type fakeNotifier struct {
	userPushes  []string
	topicPushes []string
}

func (n *fakeNotifier) NotifyUser(userID uint64, title, body string, _ map[string]string) {
	n.userPushes = append(n.userPushes, fmt.Sprintf("%d:%s", userID, title))
}

func (n *fakeNotifier) NotifyTopic(topic, title, body string, _ map[string]string) {
	n.topicPushes = append(n.topicPushes, topic+":"+title)
}

// fakeSigner produces parseable tokens without real crypto.
type fakeSigner struct{}

func (fakeSigner) SignTicket(entryID, eventID uint64, _ time.Duration) (string, error) {
	return fmt.Sprintf("tok-%d-%d", entryID, eventID), nil
}

func (fakeSigner) ParseTicket(token string) (uint64, uint64, error) {
	parts := strings.Split(token, "-")
	if len(parts) != 3 || parts[0] != "tok" {
		return 0, 0, fmt.Errorf("malformed token")
	}
	qid, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	eid, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return qid, eid, nil
}
