package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/antrikuy/antrikuy-backend/internal/engine"
	"github.com/antrikuy/antrikuy-backend/internal/model"
	"github.com/antrikuy/antrikuy-backend/internal/monitoring"
	"github.com/antrikuy/antrikuy-backend/internal/repository"
)

// QueueAdminHandler serves the operator side of the queue: the live
// board, calling and serving tickets, batch resets and session control.
type QueueAdminHandler struct {
	Engine  *engine.Engine
	Events  *repository.EventRepo
	Entries *repository.QueueRepo
}

func NewQueueAdminHandler(e *engine.Engine, ev *repository.EventRepo, q *repository.QueueRepo) *QueueAdminHandler {
	return &QueueAdminHandler{Engine: e, Events: ev, Entries: q}
}

// scopedEvent loads the event and rejects admins of other schools.
// Super admin tokens carry no school scope and pass through.
func (h *QueueAdminHandler) scopedEvent(ctx context.Context, c echo.Context, eventID uint64) (*model.Event, error) {
	ev, err := h.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if schoolID, ok := getSchoolID(c); ok && schoolID != ev.SchoolID {
		return nil, repository.ErrForbidden
	}
	return ev, nil
}

// Dashboard returns the operator's live board for the current batch.
func (h *QueueAdminHandler) Dashboard(c echo.Context) error {
	eventID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if _, err := h.scopedEvent(ctx, c, eventID); err != nil {
		return respondErr(c, err)
	}
	d, err := h.Engine.LoadDashboard(ctx, eventID)
	if err != nil {
		return respondErr(c, err)
	}
	resp := echo.Map{
		"current_batch":      d.CurrentBatch,
		"last_number_issued": d.LastNumberIssued,
		"waiting":            entryListJSON(d.Waiting),
		"summary":            d.Summary,
	}
	if d.Serving != nil {
		resp["serving"] = entryJSON(d.Serving)
	} else {
		resp["serving"] = nil
	}
	if d.Called != nil {
		resp["called"] = entryJSON(d.Called)
	} else {
		resp["called"] = nil
	}
	return c.JSON(http.StatusOK, resp)
}

// QueueList returns every entry of the event across batches, for the
// operator's history view.
func (h *QueueAdminHandler) QueueList(c echo.Context) error {
	eventID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if _, err := h.scopedEvent(ctx, c, eventID); err != nil {
		return respondErr(c, err)
	}
	entries, err := h.Entries.ListByEvent(ctx, eventID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, entryListJSON(entries))
}

// CallNext calls the lowest waiting number, or reports the ticket the
// operator must finish first.
func (h *QueueAdminHandler) CallNext(c echo.Context) error {
	eventID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if _, err := h.scopedEvent(ctx, c, eventID); err != nil {
		return respondErr(c, err)
	}
	res, err := h.Engine.CallNext(ctx, eventID)
	if err != nil {
		monitoring.ObserveOperation("call_next", "rejected")
		return respondErr(c, err)
	}
	monitoring.ObserveOperation("call_next", "ok")
	if res.AlreadyActive {
		return c.JSON(http.StatusOK, echo.Map{
			"message":      fmt.Sprintf("Selesaikan antrean nomor #%d terlebih dahulu.", res.Entry.TicketNumber),
			"currentQueue": entryJSON(res.Entry),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": fmt.Sprintf("Memanggil #%d. Batas hadir %d menit.", res.Entry.TicketNumber, res.GraceMinutes),
		"data":    entryJSON(res.Entry),
	})
}

type skipReq struct {
	QueueID uint64 `json:"queue_id"`
}

// Skip marks a ticket TERLEWAT and immediately calls the next one.
func (h *QueueAdminHandler) Skip(c echo.Context) error {
	eventID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid event id"})
	}
	var req skipReq
	if err := c.Bind(&req); err != nil || req.QueueID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "queue_id wajib diisi"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if _, err := h.scopedEvent(ctx, c, eventID); err != nil {
		return respondErr(c, err)
	}
	res, err := h.Engine.Skip(ctx, eventID, req.QueueID)
	if err != nil {
		monitoring.ObserveOperation("skip", "rejected")
		return respondErr(c, err)
	}
	monitoring.ObserveOperation("skip", "ok")
	resp := echo.Map{
		"message": "Antrean dilewatkan. Memanggil berikutnya.",
		"skipped": entryJSON(res.Skipped),
	}
	if res.NextCalled != nil {
		resp["nextCalled"] = entryJSON(res.NextCalled)
	} else {
		resp["nextCalled"] = nil
	}
	return c.JSON(http.StatusOK, resp)
}

type completeReq struct {
	QueueID uint64 `json:"queue_id"`
}

// Complete finishes the ticket being served and folds its duration into
// the event's rolling average.
func (h *QueueAdminHandler) Complete(c echo.Context) error {
	var req completeReq
	if err := c.Bind(&req); err != nil || req.QueueID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "queue_id wajib diisi"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	entry, err := h.Entries.GetByID(ctx, req.QueueID)
	if err != nil {
		return respondErr(c, err)
	}
	if _, err := h.scopedEvent(ctx, c, entry.EventID); err != nil {
		return respondErr(c, err)
	}
	if err := h.Engine.Complete(ctx, req.QueueID); err != nil {
		monitoring.ObserveOperation("complete", "rejected")
		return respondErr(c, err)
	}
	monitoring.ObserveOperation("complete", "ok")
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Layanan selesai, kuota pendaftaran tetap terisi (Status 1).",
	})
}

type respondPostponeReq struct {
	Action string `json:"action"`
}

// RespondPostpone approves or rejects a pending postpone request.  On
// approval the old number is skipped and a fresh ticket is issued at the
// back of the line.
func (h *QueueAdminHandler) RespondPostpone(c echo.Context) error {
	entryID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid queue id"})
	}
	var req respondPostponeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	entry, err := h.Entries.GetByID(ctx, entryID)
	if err != nil {
		return respondErr(c, err)
	}
	if _, err := h.scopedEvent(ctx, c, entry.EventID); err != nil {
		return respondErr(c, err)
	}

	approve := req.Action == "APPROVE"
	fresh, err := h.Engine.RespondPostpone(ctx, entryID, approve)
	if err != nil {
		return respondErr(c, err)
	}
	if !approve {
		return c.JSON(http.StatusOK, echo.Map{
			"message": "Permintaan tunda ditolak. User kembali ke daftar tunggu.",
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": fmt.Sprintf("Berhasil. Nomor #%d dilewatkan, User kini di nomor #%d.",
			entry.TicketNumber, fresh.TicketNumber),
		"data": entryJSON(fresh),
	})
}

type scanReq struct {
	Token string `json:"token"`
}

// Scan validates a presented QR token and, when it is the holder's turn,
// starts their service.
func (h *QueueAdminHandler) Scan(c echo.Context) error {
	eventID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"valid": false, "message": "invalid event id"})
	}
	var req scanReq
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"valid": false, "message": "token wajib diisi"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if _, err := h.scopedEvent(ctx, c, eventID); err != nil {
		return respondErr(c, err)
	}
	res, err := h.Engine.ValidateTicket(ctx, eventID, req.Token)
	if err != nil {
		monitoring.ObserveOperation("scan", "rejected")
		var serr *engine.StateError
		if errors.As(err, &serr) {
			return c.JSON(serr.Code, echo.Map{"valid": false, "message": serr.Message})
		}
		return respondErr(c, err)
	}
	monitoring.ObserveOperation("scan", "ok")
	return c.JSON(http.StatusOK, echo.Map{
		"valid":   true,
		"message": "Berhasil memuat data layanan",
		"data": echo.Map{
			"queueId":       res.Entry.ID,
			"nomorAntrian":  res.Entry.TicketNumber,
			"status":        res.Entry.Status,
			"service_start": res.Entry.ServiceStartedAt,
		},
	})
}

type serveManualReq struct {
	TicketToken string `json:"ticket_token"`
}

// ServeManual starts service for a called ticket without a scan, keyed
// by the token shown on the holder's screen.
func (h *QueueAdminHandler) ServeManual(c echo.Context) error {
	var req serveManualReq
	if err := c.Bind(&req); err != nil || req.TicketToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "ticket_token wajib diisi"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	entry, err := h.Engine.ServeManual(ctx, req.TicketToken)
	if err != nil {
		return respondErr(c, err)
	}
	monitoring.ObserveOperation("serve_manual", "ok")
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Layanan dimulai secara manual.",
		"data":    entryJSON(entry),
	})
}

type resetReq struct {
	NewAvgMinutes *int `json:"new_avg_minutes"`
}

// ResetBatch reopens an untouched batch or rolls the event over to a
// fresh one, archiving whatever was still active.
func (h *QueueAdminHandler) ResetBatch(c echo.Context) error {
	eventID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid event id"})
	}
	var req resetReq
	_ = c.Bind(&req)
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if _, err := h.scopedEvent(ctx, c, eventID); err != nil {
		return respondErr(c, err)
	}
	res, err := h.Engine.ResetBatch(ctx, eventID, req.NewAvgMinutes)
	if err != nil {
		return respondErr(c, err)
	}
	monitoring.ObserveOperation("reset_batch", "ok")
	if res.Reopened {
		return c.JSON(http.StatusOK, echo.Map{
			"success":      true,
			"message":      fmt.Sprintf("Layanan dibuka kembali (Melanjutkan Batch #%d).", res.CurrentBatch),
			"currentBatch": res.CurrentBatch,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":      true,
		"message":      fmt.Sprintf("Sesi Baru Batch #%d dimulai!", res.CurrentBatch),
		"currentBatch": res.CurrentBatch,
	})
}

// Finish ends the session for good: the stage becomes SELESAI and every
// still-active ticket is archived.
func (h *QueueAdminHandler) Finish(c echo.Context) error {
	eventID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if _, err := h.scopedEvent(ctx, c, eventID); err != nil {
		return respondErr(c, err)
	}
	archived, err := h.Engine.FinishEvent(ctx, eventID)
	if err != nil {
		return respondErr(c, err)
	}
	monitoring.ObserveOperation("finish", "ok")
	return c.JSON(http.StatusOK, echo.Map{
		"message":  "Sesi layanan diakhiri.",
		"archived": archived,
	})
}

type cancelAllReq struct {
	UserID uint64 `json:"user_id"`
	Reason string `json:"reason"`
}

// CancelAll cancels every active ticket of one user, a support action
// for duplicate or stuck registrations.
func (h *QueueAdminHandler) CancelAll(c echo.Context) error {
	var req cancelAllReq
	if err := c.Bind(&req); err != nil || req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "User ID wajib dikirim."})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	n, err := h.Engine.CancelAllByUser(ctx, req.UserID, req.Reason)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":   fmt.Sprintf("%d antrean aktif dibatalkan.", n),
		"cancelled": n,
	})
}
