package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antrikuy/antrikuy-backend/internal/model"
	"github.com/antrikuy/antrikuy-backend/internal/repository"
)

var baseTime = time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, evs ...*model.Event) (*Engine, *fakeEventStore, *fakeEntryStore, *fakeNotifier) {
	t.Helper()
	events := newFakeEventStore(evs...)
	entries := newFakeEntryStore()
	notifier := &fakeNotifier{}
	e := New(events, entries, notifier, fakeSigner{})
	e.Now = func() time.Time { return baseTime }
	return e, events, entries, notifier
}

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func testEvent(id uint64) *model.Event {
	return &model.Event{
		ID:           id,
		SchoolID:     1,
		Code:         "BK-01",
		Name:         "Konseling BK",
		Stage:        model.StageOpen,
		CurrentBatch: 1,
	}
}

func testUser(id uint64) *model.User {
	school := uint64(1)
	return &model.User{ID: id, SchoolID: &school, Role: model.RoleUser}
}

func TestJoinIssuesSequentialNumbers(t *testing.T) {
	e, events, _, _ := newTestEngine(t, testEvent(1))
	ctx := context.Background()

	first, err := e.Join(ctx, 1, testUser(10))
	require.NoError(t, err)
	second, err := e.Join(ctx, 1, testUser(11))
	require.NoError(t, err)

	assert.Equal(t, 1, first.TicketNumber)
	assert.Equal(t, 2, second.TicketNumber)
	assert.Equal(t, model.TicketWaiting, first.Status)
	assert.NotEmpty(t, first.TicketToken)
	require.NotNil(t, first.TokenExpiresAt)
	assert.Equal(t, baseTime.Add(TicketTokenTTL), *first.TokenExpiresAt)

	ev, _ := events.GetByID(ctx, 1)
	assert.Equal(t, 2, ev.SlotsTaken)
	assert.Equal(t, 2, ev.LastNumberIssued)
}

func TestJoinCapacityTwo(t *testing.T) {
	ev := testEvent(1)
	ev.Capacity = intPtr(2)
	e, events, _, _ := newTestEngine(t, ev)
	ctx := context.Background()

	_, err := e.Join(ctx, 1, testUser(10))
	require.NoError(t, err)
	_, err = e.Join(ctx, 1, testUser(11))
	require.NoError(t, err)

	_, err = e.Join(ctx, 1, testUser(12))
	var serr *StateError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 403, serr.Code)

	// rejection must leave the counters where they were
	got, _ := events.GetByID(ctx, 1)
	assert.Equal(t, 2, got.SlotsTaken)
	assert.Equal(t, 2, got.LastNumberIssued)
}

func TestJoinRejectsSecondActiveTicket(t *testing.T) {
	e, events, _, _ := newTestEngine(t, testEvent(1))
	ctx := context.Background()

	_, err := e.Join(ctx, 1, testUser(10))
	require.NoError(t, err)
	_, err = e.Join(ctx, 1, testUser(10))
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	got, _ := events.GetByID(ctx, 1)
	assert.Equal(t, 1, got.SlotsTaken)
}

func TestJoinTokenWriteFailureKeepsTicket(t *testing.T) {
	e, events, entries, _ := newTestEngine(t, testEvent(1))
	ctx := context.Background()

	entries.updateTokenErr = errors.New("write timeout")
	_, err := e.Join(ctx, 1, testUser(10))
	require.Error(t, err)

	// ticket and slot stay committed, only the QR token is missing
	got, _ := events.GetByID(ctx, 1)
	assert.Equal(t, 1, got.SlotsTaken)
	assert.Equal(t, 1, got.LastNumberIssued)

	waiting, err := entries.ListByStatus(ctx, 1, 1, model.TicketWaiting)
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Empty(t, waiting[0].TicketToken)

	// refresh reissues the token for the committed ticket
	entries.updateTokenErr = nil
	fresh, err := e.RefreshTicketToken(ctx, waiting[0].ID, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, fresh.TicketToken)
}

func TestJoinRejectsWrongSchool(t *testing.T) {
	e, events, _, _ := newTestEngine(t, testEvent(1))
	ctx := context.Background()

	other := testUser(10)
	school := uint64(99)
	other.SchoolID = &school
	_, err := e.Join(ctx, 1, other)
	assert.ErrorIs(t, err, ErrWrongSchool)

	noSchool := testUser(11)
	noSchool.SchoolID = nil
	_, err = e.Join(ctx, 1, noSchool)
	assert.ErrorIs(t, err, ErrNoSchool)

	got, _ := events.GetByID(ctx, 1)
	assert.Equal(t, 0, got.SlotsTaken)
	assert.Equal(t, 0, got.LastNumberIssued)
}

func TestJoinRejectsClosingAndFinished(t *testing.T) {
	closing := testEvent(1)
	closing.Stage = model.StageClosing
	finished := testEvent(2)
	finished.EndsAt = timePtr(baseTime.Add(-time.Hour))
	e, events, _, _ := newTestEngine(t, closing, finished)
	ctx := context.Background()

	_, err := e.Join(ctx, 1, testUser(10))
	var serr *StateError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Message, model.StatusClosing)

	_, err = e.Join(ctx, 2, testUser(10))
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Message, model.StatusFinished)

	for _, id := range []uint64{1, 2} {
		got, _ := events.GetByID(ctx, id)
		assert.Equal(t, 0, got.SlotsTaken)
	}
}

func TestJoinAllowedDuringPreOrder(t *testing.T) {
	ev := testEvent(1)
	ev.StartsAt = timePtr(baseTime.Add(2 * time.Hour))
	ev.EndsAt = timePtr(baseTime.Add(5 * time.Hour))
	e, _, _, _ := newTestEngine(t, ev)

	entry, err := e.Join(context.Background(), 1, testUser(10))
	require.NoError(t, err)
	assert.Equal(t, model.TicketWaiting, entry.Status)
}

func TestCallNextRequiresLock(t *testing.T) {
	e, _, _, _ := newTestEngine(t, testEvent(1))
	_, err := e.CallNext(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotLocked)
}

func TestCallNextCallsLowestWaiting(t *testing.T) {
	ev := testEvent(1)
	ev.Locked = true
	ev.GracePeriodMinutes = 7
	e, _, entries, notifier := newTestEngine(t, ev)
	ctx := context.Background()

	seedWaiting(t, entries, 1, 10, 1)
	seedWaiting(t, entries, 1, 11, 2)

	res, err := e.CallNext(ctx, 1)
	require.NoError(t, err)
	assert.False(t, res.AlreadyActive)
	assert.Equal(t, 1, res.Entry.TicketNumber)
	assert.Equal(t, model.TicketCalled, res.Entry.Status)
	assert.Equal(t, 7, res.GraceMinutes)
	require.NotNil(t, res.Entry.CallExpiresAt)
	assert.Equal(t, baseTime.Add(7*time.Minute), *res.Entry.CallExpiresAt)

	// the called user and the next waiting ticket both hear about it
	require.Len(t, notifier.userPushes, 2)
	assert.Equal(t, "10:Giliran Anda! 🔔", notifier.userPushes[0])
	assert.Equal(t, "11:Bersiap, Anda Berikutnya", notifier.userPushes[1])

	// while one ticket is live, calling again returns it unchanged
	again, err := e.CallNext(ctx, 1)
	require.NoError(t, err)
	assert.True(t, again.AlreadyActive)
	assert.Equal(t, res.Entry.ID, again.Entry.ID)
	assert.Len(t, notifier.userPushes, 2)
}

func TestCallNextLastWaitingHasNoUpNext(t *testing.T) {
	ev := testEvent(1)
	ev.Locked = true
	e, _, entries, notifier := newTestEngine(t, ev)

	seedWaiting(t, entries, 1, 10, 1)

	_, err := e.CallNext(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, notifier.userPushes, 1)
	assert.Equal(t, "10:Giliran Anda! 🔔", notifier.userPushes[0])
}

func TestCallNextEmptyQueue(t *testing.T) {
	ev := testEvent(1)
	ev.Locked = true
	e, _, _, _ := newTestEngine(t, ev)
	_, err := e.CallNext(context.Background(), 1)
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestCallNextAfterSessionEnd(t *testing.T) {
	ev := testEvent(1)
	ev.Locked = true
	ev.EndsAt = timePtr(baseTime.Add(-time.Minute))
	e, _, _, _ := newTestEngine(t, ev)
	_, err := e.CallNext(context.Background(), 1)
	assert.ErrorIs(t, err, ErrSessionOver)
}

func TestSkipAdvancesQueue(t *testing.T) {
	ev := testEvent(1)
	ev.Locked = true
	ev.AvgServiceMinutes = 4
	e, _, entries, _ := newTestEngine(t, ev)
	ctx := context.Background()

	seedWaiting(t, entries, 1, 10, 1)
	seedWaiting(t, entries, 1, 11, 2)

	res, err := e.CallNext(ctx, 1)
	require.NoError(t, err)

	skipRes, err := e.Skip(ctx, 1, res.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketMissed, skipRes.Skipped.Status)
	require.NotNil(t, skipRes.NextCalled)
	assert.Equal(t, 2, skipRes.NextCalled.TicketNumber)
	require.NotNil(t, skipRes.NextCalled.CallExpiresAt)
	assert.Equal(t, baseTime.Add(4*time.Minute), *skipRes.NextCalled.CallExpiresAt)
}

func TestValidateTicketOutOfTurn(t *testing.T) {
	ev := testEvent(1)
	ev.Locked = true
	e, _, entries, _ := newTestEngine(t, ev)
	ctx := context.Background()

	seedWaiting(t, entries, 1, 10, 1)
	second := seedWaiting(t, entries, 1, 11, 2)
	tok, _ := fakeSigner{}.SignTicket(second.ID, 1, TicketTokenTTL)
	require.NoError(t, entries.UpdateToken(ctx, second.ID, tok, baseTime.Add(TicketTokenTTL)))

	_, err := e.ValidateTicket(ctx, 1, tok)
	var serr *StateError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Message, "Belum giliran")
}

func TestValidateTicketStartsService(t *testing.T) {
	ev := testEvent(1)
	ev.Locked = true
	e, _, entries, _ := newTestEngine(t, ev)
	ctx := context.Background()

	entry := seedWaiting(t, entries, 1, 10, 1)
	tok, _ := fakeSigner{}.SignTicket(entry.ID, 1, TicketTokenTTL)
	require.NoError(t, entries.UpdateToken(ctx, entry.ID, tok, baseTime.Add(TicketTokenTTL)))

	res, err := e.ValidateTicket(ctx, 1, tok)
	require.NoError(t, err)
	assert.Equal(t, model.TicketServing, res.Entry.Status)
	require.NotNil(t, res.Entry.ServiceStartedAt)

	// a second scan is a no-op, not an error
	res2, err := e.ValidateTicket(ctx, 1, tok)
	require.NoError(t, err)
	assert.Equal(t, model.TicketServing, res2.Entry.Status)
}

func TestValidateTicketRejectsTerminal(t *testing.T) {
	ev := testEvent(1)
	e, _, entries, _ := newTestEngine(t, ev)
	ctx := context.Background()

	entry := seedWaiting(t, entries, 1, 10, 1)
	require.NoError(t, entries.Cancel(ctx, entry.ID, "x", baseTime))
	tok, _ := fakeSigner{}.SignTicket(entry.ID, 1, TicketTokenTTL)
	require.NoError(t, entries.UpdateToken(ctx, entry.ID, tok, baseTime.Add(TicketTokenTTL)))

	_, err := e.ValidateTicket(ctx, 1, tok)
	var serr *StateError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Message, model.TicketCancelled)
}

func TestValidateTicketOutsideSessionWindow(t *testing.T) {
	pre := testEvent(1)
	pre.StartsAt = timePtr(baseTime.Add(time.Hour))
	pre.EndsAt = timePtr(baseTime.Add(4 * time.Hour))
	done := testEvent(2)
	done.Stage = model.StageFinished
	e, _, _, _ := newTestEngine(t, pre, done)
	ctx := context.Background()

	var serr *StateError
	_, err := e.ValidateTicket(ctx, 1, "tok-1-1")
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Message, "belum dimulai")

	_, err = e.ValidateTicket(ctx, 2, "tok-1-2")
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Message, "sudah berakhir")
}

func TestCompleteAccumulatesAverage(t *testing.T) {
	ev := testEvent(1)
	ev.Locked = true
	e, events, entries, _ := newTestEngine(t, ev)
	ctx := context.Background()

	entry := seedWaiting(t, entries, 1, 10, 1)
	started := baseTime.Add(-10 * time.Minute)
	require.NoError(t, entries.StartService(ctx, entry.ID, started))

	require.NoError(t, e.Complete(ctx, entry.ID))

	got, _ := entries.GetByID(ctx, entry.ID)
	assert.Equal(t, model.TicketDone, got.Status)
	assert.Empty(t, got.TicketToken)

	updated, _ := events.GetByID(ctx, 1)
	assert.Equal(t, 1, updated.TotalServed)
	assert.Equal(t, int64(600), updated.TotalServiceSeconds)
	assert.Equal(t, 10, updated.AvgServiceMinutes)
}

func TestCompleteFloorsShortService(t *testing.T) {
	e, events, entries, _ := newTestEngine(t, testEvent(1))
	ctx := context.Background()

	entry := seedWaiting(t, entries, 1, 10, 1)
	require.NoError(t, entries.StartService(ctx, entry.ID, baseTime.Add(-5*time.Second)))
	require.NoError(t, e.Complete(ctx, entry.ID))

	updated, _ := events.GetByID(ctx, 1)
	assert.Equal(t, int64(MinServiceSeconds), updated.TotalServiceSeconds)
}

func TestCompleteWithoutServiceStartSkipsAverage(t *testing.T) {
	e, events, entries, _ := newTestEngine(t, testEvent(1))
	ctx := context.Background()

	entry := seedWaiting(t, entries, 1, 10, 1)
	require.NoError(t, e.Complete(ctx, entry.ID))

	updated, _ := events.GetByID(ctx, 1)
	assert.Equal(t, 0, updated.TotalServed)
}

func TestPostponeRequestOnlyWaiting(t *testing.T) {
	e, _, entries, _ := newTestEngine(t, testEvent(1))
	ctx := context.Background()

	entry := seedWaiting(t, entries, 1, 10, 1)
	require.NoError(t, entries.StartService(ctx, entry.ID, baseTime))

	err := e.PostponeRequest(ctx, entry.ID, 10, "ada keperluan")
	assert.ErrorIs(t, err, ErrPostponeOnlyWaiting)
}

func TestPostponeRequestChecksOwnership(t *testing.T) {
	e, _, entries, _ := newTestEngine(t, testEvent(1))
	entry := seedWaiting(t, entries, 1, 10, 1)
	err := e.PostponeRequest(context.Background(), entry.ID, 99, "")
	assert.ErrorIs(t, err, repository.ErrForbidden)
}

func TestRespondPostponeApproveReissuesAtBack(t *testing.T) {
	ev := testEvent(1)
	ev.SlotsTaken = 5
	ev.LastNumberIssued = 5
	e, events, entries, notifier := newTestEngine(t, ev)
	ctx := context.Background()

	entry := seedWaiting(t, entries, 1, 10, 3)
	require.NoError(t, e.PostponeRequest(ctx, entry.ID, 10, "ada keperluan"))

	fresh, err := e.RespondPostpone(ctx, entry.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 6, fresh.TicketNumber)
	assert.True(t, fresh.Postponed)
	assert.Equal(t, model.TicketWaiting, fresh.Status)

	old, _ := entries.GetByID(ctx, entry.ID)
	assert.Equal(t, model.TicketMissed, old.Status)
	assert.Contains(t, old.PostponeReason, "Tunda disetujui")

	// the old slot stays burned: both counters advanced
	updated, _ := events.GetByID(ctx, 1)
	assert.Equal(t, 6, updated.SlotsTaken)
	assert.Equal(t, 6, updated.LastNumberIssued)
	assert.Len(t, notifier.userPushes, 1)
}

func TestRespondPostponeReject(t *testing.T) {
	e, _, entries, _ := newTestEngine(t, testEvent(1))
	ctx := context.Background()

	entry := seedWaiting(t, entries, 1, 10, 1)
	require.NoError(t, e.PostponeRequest(ctx, entry.ID, 10, ""))

	back, err := e.RespondPostpone(ctx, entry.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.TicketWaiting, back.Status)
	assert.Equal(t, 1, back.TicketNumber)

	_, err = e.RespondPostpone(ctx, entry.ID, false)
	assert.ErrorIs(t, err, ErrPostponeAlreadyHandled)
}

func TestCancelPreOrderReclaimsLatestNumber(t *testing.T) {
	ev := testEvent(1)
	ev.StartsAt = timePtr(baseTime.Add(time.Hour))
	ev.EndsAt = timePtr(baseTime.Add(4 * time.Hour))
	e, events, entries, _ := newTestEngine(t, ev)
	ctx := context.Background()

	_, err := e.Join(ctx, 1, testUser(10))
	require.NoError(t, err)
	last, err := e.Join(ctx, 1, testUser(11))
	require.NoError(t, err)

	res, err := e.Cancel(ctx, last.ID, 11, "")
	require.NoError(t, err)
	assert.True(t, res.PreOrder)

	_, err = entries.GetByID(ctx, last.ID)
	assert.ErrorIs(t, err, repository.ErrEntryNotFound)

	updated, _ := events.GetByID(ctx, 1)
	assert.Equal(t, 1, updated.SlotsTaken)
	assert.Equal(t, 1, updated.LastNumberIssued)

	// the freed number is reissued to the next joiner
	again, err := e.Join(ctx, 1, testUser(12))
	require.NoError(t, err)
	assert.Equal(t, 2, again.TicketNumber)
}

func TestCancelPreOrderMiddleNumberStaysBurned(t *testing.T) {
	ev := testEvent(1)
	ev.StartsAt = timePtr(baseTime.Add(time.Hour))
	ev.EndsAt = timePtr(baseTime.Add(4 * time.Hour))
	e, events, _, _ := newTestEngine(t, ev)
	ctx := context.Background()

	first, err := e.Join(ctx, 1, testUser(10))
	require.NoError(t, err)
	_, err = e.Join(ctx, 1, testUser(11))
	require.NoError(t, err)

	_, err = e.Cancel(ctx, first.ID, 10, "")
	require.NoError(t, err)

	updated, _ := events.GetByID(ctx, 1)
	assert.Equal(t, 1, updated.SlotsTaken)
	assert.Equal(t, 2, updated.LastNumberIssued)
}

func TestCancelActiveArchivesEntry(t *testing.T) {
	e, events, entries, _ := newTestEngine(t, testEvent(1))
	ctx := context.Background()

	entry, err := e.Join(ctx, 1, testUser(10))
	require.NoError(t, err)

	res, err := e.Cancel(ctx, entry.ID, 10, "")
	require.NoError(t, err)
	assert.False(t, res.PreOrder)

	got, _ := entries.GetByID(ctx, entry.ID)
	assert.Equal(t, model.TicketCancelled, got.Status)
	assert.Equal(t, "Dibatalkan oleh pengguna", got.CancelReason)

	updated, _ := events.GetByID(ctx, 1)
	assert.Equal(t, 0, updated.SlotsTaken)
	assert.Equal(t, 1, updated.LastNumberIssued)
}

func TestCancelChecksOwnership(t *testing.T) {
	e, _, _, _ := newTestEngine(t, testEvent(1))
	ctx := context.Background()
	entry, err := e.Join(ctx, 1, testUser(10))
	require.NoError(t, err)
	_, err = e.Cancel(ctx, entry.ID, 99, "")
	assert.ErrorIs(t, err, repository.ErrForbidden)
}

func TestCancelAllByUser(t *testing.T) {
	e, events, _, _ := newTestEngine(t, testEvent(1), testEvent(2))
	ctx := context.Background()

	_, err := e.Join(ctx, 1, testUser(10))
	require.NoError(t, err)
	_, err = e.Join(ctx, 2, testUser(10))
	require.NoError(t, err)

	n, err := e.CancelAllByUser(ctx, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []uint64{1, 2} {
		got, _ := events.GetByID(ctx, id)
		assert.Equal(t, 0, got.SlotsTaken)
	}
}

func TestResetBatchReopensWhenUntouched(t *testing.T) {
	ev := testEvent(1)
	ev.Stage = model.StageClosing
	ev.Locked = true
	e, events, _, _ := newTestEngine(t, ev)

	res, err := e.ResetBatch(context.Background(), 1, intPtr(8))
	require.NoError(t, err)
	assert.True(t, res.Reopened)
	assert.Equal(t, 1, res.CurrentBatch)

	got, _ := events.GetByID(context.Background(), 1)
	assert.Equal(t, model.StageOpen, got.Stage)
	assert.False(t, got.Locked)
	assert.Equal(t, 8, got.AvgServiceMinutes)
}

func TestResetBatchRollsOver(t *testing.T) {
	e, events, entries, _ := newTestEngine(t, testEvent(1))
	ctx := context.Background()

	first, err := e.Join(ctx, 1, testUser(10))
	require.NoError(t, err)
	_, err = e.Join(ctx, 1, testUser(11))
	require.NoError(t, err)

	res, err := e.ResetBatch(ctx, 1, nil)
	require.NoError(t, err)
	assert.False(t, res.Reopened)
	assert.Equal(t, 2, res.CurrentBatch)
	assert.Equal(t, int64(2), res.Archived)

	archived, _ := entries.GetByID(ctx, first.ID)
	assert.Equal(t, model.TicketMissed, archived.Status)
	assert.Equal(t, "Admin memulai Sesi/Batch Baru", archived.PostponeReason)

	got, _ := events.GetByID(ctx, 1)
	assert.Equal(t, 2, got.CurrentBatch)
	assert.Equal(t, 0, got.SlotsTaken)
	assert.Equal(t, 0, got.LastNumberIssued)

	// numbering restarts in the new batch
	fresh, err := e.Join(ctx, 1, testUser(10))
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.TicketNumber)
	assert.Equal(t, 2, fresh.Batch)
}

func TestFinishEventArchivesActive(t *testing.T) {
	e, events, entries, notifier := newTestEngine(t, testEvent(1))
	ctx := context.Background()

	entry, err := e.Join(ctx, 1, testUser(10))
	require.NoError(t, err)

	archived, err := e.FinishEvent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), archived)

	got, _ := entries.GetByID(ctx, entry.ID)
	assert.Equal(t, model.TicketMissed, got.Status)
	assert.Equal(t, "Sesi diakhiri petugas", got.PostponeReason)

	ev, _ := events.GetByID(ctx, 1)
	assert.Equal(t, model.StageFinished, ev.Stage)
	require.Len(t, notifier.topicPushes, 1)
	assert.Contains(t, notifier.topicPushes[0], "school_1")
}

func TestSweepAutoSkipsExpiredCall(t *testing.T) {
	ev := testEvent(1)
	ev.Locked = true
	ev.AvgServiceMinutes = 3
	e, _, entries, notifier := newTestEngine(t, ev)
	ctx := context.Background()

	seedWaiting(t, entries, 1, 10, 1)
	seedWaiting(t, entries, 1, 11, 2)

	res, err := e.CallNext(ctx, 1)
	require.NoError(t, err)

	// advance past the grace deadline
	e.Now = func() time.Time { return baseTime.Add(10 * time.Minute) }

	report := e.Sweep(ctx)
	assert.Empty(t, report.Errs)
	assert.Equal(t, 1, report.AutoSkipped)
	assert.Equal(t, 1, report.AutoCalled)

	missed, _ := entries.GetByID(ctx, res.Entry.ID)
	assert.Equal(t, model.TicketMissed, missed.Status)
	assert.Equal(t, "Tidak hadir (Auto-Skip)", missed.PostponeReason)

	next, _ := entries.CurrentlyCalledOrServing(ctx, 1)
	assert.Equal(t, 2, next.TicketNumber)
	require.NotNil(t, next.CallExpiresAt)
	assert.Equal(t, baseTime.Add(10*time.Minute).Add(3*time.Minute), *next.CallExpiresAt)
	assert.Len(t, notifier.userPushes, 3)
}

func TestSweepTerminatesPastEndSession(t *testing.T) {
	ev := testEvent(1)
	ev.Locked = true
	ev.EndsAt = timePtr(baseTime.Add(-time.Minute))
	e, events, entries, _ := newTestEngine(t, ev)
	ctx := context.Background()

	entry := seedWaiting(t, entries, 1, 10, 1)

	report := e.Sweep(ctx)
	assert.Empty(t, report.Errs)
	assert.Equal(t, 1, report.Finished)

	got, _ := entries.GetByID(ctx, entry.ID)
	assert.Equal(t, model.TicketMissed, got.Status)
	assert.Equal(t, "Waktu layanan berakhir otomatis", got.PostponeReason)

	updated, _ := events.GetByID(ctx, 1)
	assert.Equal(t, model.StageFinished, updated.Stage)

	// a finished event drops out of the next sweep
	second := e.Sweep(ctx)
	assert.Equal(t, 0, second.Checked)
}

func TestSweepIgnoresUnlockedEvents(t *testing.T) {
	e, _, _, _ := newTestEngine(t, testEvent(1))
	report := e.Sweep(context.Background())
	assert.Equal(t, 0, report.Checked)
}

func TestDetailEstimatesWait(t *testing.T) {
	ev := testEvent(1)
	ev.AvgServiceMinutes = 5
	e, _, entries, _ := newTestEngine(t, ev)
	ctx := context.Background()

	seedWaiting(t, entries, 1, 10, 1)
	seedWaiting(t, entries, 1, 11, 2)
	mine := seedWaiting(t, entries, 1, 12, 3)

	detail, err := e.Detail(ctx, mine.ID, 12)
	require.NoError(t, err)
	assert.Equal(t, 2, detail.PeopleAhead)
	assert.Equal(t, 10, detail.EstimatedMinutes)
	assert.Equal(t, baseTime.Add(10*time.Minute), detail.EstimatedAt)
	assert.Equal(t, "10 m", detail.WaitLabel)
}

func TestLoadDashboard(t *testing.T) {
	ev := testEvent(1)
	ev.Locked = true
	ev.SlotsTaken = 4
	ev.LastNumberIssued = 4
	e, _, entries, _ := newTestEngine(t, ev)
	ctx := context.Background()

	seedWaiting(t, entries, 1, 10, 1)
	postponed := seedWaiting(t, entries, 1, 11, 2)
	serving := seedWaiting(t, entries, 1, 12, 3)
	seedWaiting(t, entries, 1, 13, 4)
	_, err := entries.SetPostponeRequested(ctx, postponed.ID, "nanti")
	require.NoError(t, err)
	require.NoError(t, entries.StartService(ctx, serving.ID, baseTime))

	d, err := e.LoadDashboard(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, d.Serving)
	assert.Equal(t, 3, d.Serving.TicketNumber)
	assert.Nil(t, d.Called)
	assert.Len(t, d.Waiting, 3)
	assert.Equal(t, 2, d.Summary.Waiting)
	assert.Equal(t, 1, d.Summary.PostponeRequests)
	assert.Equal(t, 1, d.Summary.Serving)
	assert.Equal(t, 0, d.Summary.Called)
	assert.Equal(t, 4, d.Summary.Total)
	assert.Equal(t, 4, d.LastNumberIssued)
}

func TestFormatWaitTime(t *testing.T) {
	cases := []struct {
		minutes int
		want    string
	}{
		{0, "Segera"},
		{1, "1 m"},
		{59, "59 m"},
		{60, "1 j"},
		{75, "1 j 15 m"},
		{120, "2 j"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatWaitTime(tc.minutes))
	}
}

// seedWaiting inserts a MENUNGGU entry directly, bypassing Join, for
// tests that only exercise the serving side.
func seedWaiting(t *testing.T, s *fakeEntryStore, eventID, userID uint64, number int) *model.QueueEntry {
	t.Helper()
	e := &model.QueueEntry{
		EventID:      eventID,
		UserID:       userID,
		TicketNumber: number,
		Batch:        1,
		Status:       model.TicketWaiting,
		RequestedAt:  baseTime,
	}
	if err := s.Create(context.Background(), e); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	return e
}
