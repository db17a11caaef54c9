package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/antrikuy/antrikuy-backend/internal/engine"
	"github.com/antrikuy/antrikuy-backend/internal/model"
	"github.com/antrikuy/antrikuy-backend/internal/monitoring"
	"github.com/antrikuy/antrikuy-backend/internal/repository"
)

// EventHandler serves event CRUD and the public discovery endpoints.
type EventHandler struct {
	Events  *repository.EventRepo
	Schools *repository.SchoolRepo
	Entries *repository.QueueRepo
	Notify  engine.Notifier
	Now     func() time.Time
}

func NewEventHandler(ev *repository.EventRepo, sc *repository.SchoolRepo, qr *repository.QueueRepo, n engine.Notifier) *EventHandler {
	return &EventHandler{Events: ev, Schools: sc, Entries: qr, Notify: n, Now: time.Now}
}

type eventReq struct {
	Code               string     `json:"code"`
	Name               string     `json:"name"`
	Category           string     `json:"category"`
	Location           string     `json:"location"`
	Description        string     `json:"description"`
	Stage              string     `json:"stage"`
	Capacity           *int       `json:"capacity"`
	StartsAt           *time.Time `json:"starts_at"`
	EndsAt             *time.Time `json:"ends_at"`
	AvgServiceMinutes  int        `json:"avg_service_minutes"`
	GracePeriodMinutes int        `json:"grace_period_minutes"`
}

// Create registers a new event under the admin's school.
func (h *EventHandler) Create(c echo.Context) error {
	schoolID, ok := getSchoolID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Admin sekolah belum terkait data sekolah"})
	}
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}
	if req.Code == "" || req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "idKegiatan dan namaKegiatan wajib diisi"})
	}
	if !model.ValidateWindow(req.StartsAt, req.EndsAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Waktu selesai minimal 15 menit setelah waktu mulai"})
	}

	ev := &model.Event{
		SchoolID:           schoolID,
		Code:               req.Code,
		Name:               req.Name,
		Category:           req.Category,
		Location:           req.Location,
		Description:        req.Description,
		Stage:              req.Stage,
		Capacity:           req.Capacity,
		StartsAt:           req.StartsAt,
		EndsAt:             req.EndsAt,
		CurrentBatch:       1,
		AvgServiceMinutes:  req.AvgServiceMinutes,
		GracePeriodMinutes: req.GracePeriodMinutes,
	}
	if ev.Category == "" {
		ev.Category = "LAINNYA"
	}
	if ev.Stage == "" {
		ev.Stage = model.StageOpen
	}
	if ev.AvgServiceMinutes <= 0 {
		ev.AvgServiceMinutes = 5
	}
	if ev.GracePeriodMinutes <= 0 {
		ev.GracePeriodMinutes = engine.DefaultGraceMinutes
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Events.Create(ctx, ev); err != nil {
		if errors.Is(err, repository.ErrEventCodeExists) {
			return c.JSON(http.StatusConflict, echo.Map{"message": "ID Kegiatan sudah terdaftar"})
		}
		return respondErr(c, err)
	}
	monitoring.ObserveOperation("event_create", "ok")
	return c.JSON(http.StatusCreated, eventJSON(ev, h.Now()))
}

// List returns the events visible to the caller.  Admins are scoped to
// their own school; super admins may pass ?school_id= to inspect any.
func (h *EventHandler) List(c echo.Context) error {
	schoolID, ok := getSchoolID(c)
	if !ok {
		if qid, err := paramQuery(c, "school_id"); err == nil {
			schoolID = qid
		} else {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "school_id wajib diisi"})
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	events, err := h.Events.ListBySchool(ctx, schoolID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"events": h.withQueueStats(ctx, c, events)})
}

// withQueueStats decorates event listings with live queue aggregates the
// way every discovery screen expects them.
func (h *EventHandler) withQueueStats(ctx context.Context, c echo.Context, events []model.Event) []echo.Map {
	now := h.Now()
	ids := make([]uint64, 0, len(events))
	for i := range events {
		ids = append(ids, events[i].ID)
	}
	stats, err := h.Events.QueueStats(ctx, ids)
	if err != nil {
		c.Logger().Errorf("queue stats: %v", err)
		stats = map[uint64]repository.EventQueueStats{}
	}
	out := make([]echo.Map, 0, len(events))
	for i := range events {
		ev := &events[i]
		st := stats[ev.ID]
		j := eventJSON(ev, now)
		j["total_waiting"] = st.TotalWaiting
		if st.CurrentNumber > 0 {
			j["current_number"] = st.CurrentNumber
		} else {
			j["current_number"] = nil
		}
		avg := ev.AvgServiceMinutes
		if avg <= 0 {
			avg = 5
		}
		j["estimated_wait_minutes"] = st.TotalWaiting * avg
		out = append(out, j)
	}
	return out
}

// Browse lists every school together with its events and queue stats, the
// landing screen for users who have not picked a school yet.
func (h *EventHandler) Browse(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	schools, err := h.Schools.List(ctx)
	if err != nil {
		return respondErr(c, err)
	}
	out := make([]echo.Map, 0, len(schools))
	for i := range schools {
		s := &schools[i]
		events, err := h.Events.ListBySchool(ctx, s.ID)
		if err != nil {
			return respondErr(c, err)
		}
		out = append(out, echo.Map{
			"id":     s.ID,
			"code":   s.Code,
			"name":   s.Name,
			"events": h.withQueueStats(ctx, c, events),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"schools": out})
}

// GetByCode is the pre-join lookup: the event plus live queue context so
// the client can show the current number and waiting count before the
// user commits to a ticket.
func (h *EventHandler) GetByCode(c echo.Context) error {
	code := c.Param("code")
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	ev, err := h.Events.GetByCode(ctx, code)
	if err != nil {
		return respondErr(c, err)
	}
	stats, err := h.Events.QueueStats(ctx, []uint64{ev.ID})
	if err != nil {
		return respondErr(c, err)
	}
	st := stats[ev.ID]
	j := eventJSON(ev, h.Now())
	j["total_waiting"] = st.TotalWaiting
	if st.CurrentNumber > 0 {
		j["current_number"] = st.CurrentNumber
	} else {
		j["current_number"] = nil
	}
	return c.JSON(http.StatusOK, j)
}

// Get returns a single event by ID, school-scoped for admins.
func (h *EventHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		return respondErr(c, err)
	}
	if !h.canManage(c, ev) {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "DILARANG: Anda tidak memiliki akses ke event sekolah lain."})
	}
	return c.JSON(http.StatusOK, eventJSON(ev, h.Now()))
}

// canManage reports whether the caller may administer the event.  Super
// admins (no school scope in the token) may touch everything.
func (h *EventHandler) canManage(c echo.Context, ev *model.Event) bool {
	schoolID, ok := getSchoolID(c)
	if !ok {
		return true
	}
	return schoolID == ev.SchoolID
}

// Update edits event details and applies stage transition side effects:
//
//	TERBUKA  – clears the session window and the lock (fresh registration).
//	DITUTUP  – locks registration and forces the session to end in 15 min.
//	SELESAI  – locks and archives every still-active queue entry.
//
// Any stage change is broadcast to the school topic.
func (h *EventHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid event id"})
	}
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		return respondErr(c, err)
	}
	if !h.canManage(c, ev) {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "DILARANG: Anda tidak memiliki akses ke event sekolah lain."})
	}

	if req.Name != "" {
		ev.Name = req.Name
	}
	if req.Category != "" {
		ev.Category = req.Category
	}
	if req.Location != "" {
		ev.Location = req.Location
	}
	if req.Description != "" {
		ev.Description = req.Description
	}
	if req.Capacity != nil {
		ev.Capacity = req.Capacity
	}
	if req.StartsAt != nil {
		ev.StartsAt = req.StartsAt
	}
	if req.EndsAt != nil {
		ev.EndsAt = req.EndsAt
	}
	if req.AvgServiceMinutes > 0 {
		ev.AvgServiceMinutes = req.AvgServiceMinutes
	}
	if req.GracePeriodMinutes > 0 {
		ev.GracePeriodMinutes = req.GracePeriodMinutes
	}
	if !model.ValidateWindow(ev.StartsAt, ev.EndsAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Waktu selesai minimal 15 menit setelah waktu mulai"})
	}

	stageChanged := req.Stage != "" && req.Stage != ev.Stage
	now := h.Now()
	switch {
	case req.Stage == model.StageOpen:
		ev.Stage = model.StageOpen
		ev.StartsAt = nil
		ev.EndsAt = nil
		ev.Locked = false
	case req.Stage == model.StageClosing && ev.Stage != model.StageClosing:
		ev.Stage = model.StageClosing
		ends := now.Add(15 * time.Minute)
		ev.EndsAt = &ends
		ev.Locked = true
	case req.Stage == model.StageFinished:
		ev.Stage = model.StageFinished
		ev.Locked = true
		if _, err := h.Entries.MarkMissedBulk(ctx, ev.ID, "Sesi pelayanan berakhir.", now); err != nil {
			return respondErr(c, err)
		}
	}

	if err := h.Events.UpdateDetails(ctx, ev); err != nil {
		return respondErr(c, err)
	}
	if stageChanged {
		h.Notify.NotifyTopic(model.SchoolTopic(ev.SchoolID), "Update Layanan 🔔",
			fmt.Sprintf("Layanan %s kini berstatus: %s", ev.Name, req.Stage),
			map[string]string{"eventId": strconv.FormatUint(ev.ID, 10), "status": req.Stage})
	}
	monitoring.ObserveOperation("event_update", "ok")
	return c.JSON(http.StatusOK, echo.Map{"message": "Berhasil diperbarui", "event": eventJSON(ev, now)})
}

type lockReq struct {
	Locked bool `json:"is_locked"`
}

// SetLocked freezes or resumes registration without touching the stage.
func (h *EventHandler) SetLocked(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid event id"})
	}
	var req lockReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		return respondErr(c, err)
	}
	if !h.canManage(c, ev) {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "DILARANG: Bukan sekolah Anda."})
	}
	if err := h.Events.SetLocked(ctx, id, req.Locked); err != nil {
		return respondErr(c, err)
	}
	ev.Locked = req.Locked
	state := "DIBUKA"
	if req.Locked {
		state = "DIKUNCI"
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": fmt.Sprintf("Layanan %s.", state),
		"data":    eventJSON(ev, h.Now()),
	})
}

// Delete removes an event and all of its queue entries.
func (h *EventHandler) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		return respondErr(c, err)
	}
	if !h.canManage(c, ev) {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "DILARANG: Anda tidak berhak menghapus event sekolah lain."})
	}
	if err := h.Events.Delete(ctx, id); err != nil {
		return respondErr(c, err)
	}
	monitoring.ObserveOperation("event_delete", "ok")
	return c.JSON(http.StatusOK, echo.Map{"message": "Kegiatan dan semua antrean terkait berhasil dihapus"})
}
