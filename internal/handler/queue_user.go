package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/antrikuy/antrikuy-backend/internal/engine"
	"github.com/antrikuy/antrikuy-backend/internal/model"
	"github.com/antrikuy/antrikuy-backend/internal/monitoring"
	"github.com/antrikuy/antrikuy-backend/internal/repository"
)

// QueueUserHandler serves the ticket-holder side of the queue: joining,
// inspecting and cancelling one's own tickets.
type QueueUserHandler struct {
	Engine  *engine.Engine
	Users   *repository.UserRepo
	Entries *repository.QueueRepo
}

func NewQueueUserHandler(e *engine.Engine, u *repository.UserRepo, q *repository.QueueRepo) *QueueUserHandler {
	return &QueueUserHandler{Engine: e, Users: u, Entries: q}
}

// Join takes a ticket in the event's current batch.
func (h *QueueUserHandler) Join(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	eventID, err := paramID(c, "eventId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid event id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	user, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return respondErr(c, err)
	}
	entry, err := h.Engine.Join(ctx, eventID, user)
	if err != nil {
		monitoring.ObserveOperation("join", "rejected")
		return respondErr(c, err)
	}
	monitoring.ObserveOperation("join", "ok")
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Berhasil mendaftar antrean.",
		"data":    entryJSON(entry),
	})
}

// MyQueues lists the caller's tickets split into the active one(s) and
// the archive.
func (h *QueueUserHandler) MyQueues(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	entries, err := h.Entries.ListByUser(ctx, userID)
	if err != nil {
		return respondErr(c, err)
	}
	current := make([]model.QueueEntry, 0)
	history := make([]model.QueueEntry, 0, len(entries))
	for _, e := range entries {
		if model.IsActiveTicketStatus(e.Status) {
			current = append(current, e)
		} else {
			history = append(history, e)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"current": entryListJSON(current),
		"history": entryListJSON(history),
	})
}

// Detail shows one ticket with its live position and wait estimate.
func (h *QueueUserHandler) Detail(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	entryID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid queue id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	d, err := h.Engine.Detail(ctx, entryID, userID)
	if err != nil {
		return respondErr(c, err)
	}
	j := entryJSON(d.Entry)
	j["event"] = eventJSON(d.Event, h.Engine.Now())
	j["people_ahead"] = d.PeopleAhead
	j["estimated_wait_minutes"] = d.EstimatedMinutes
	j["estimated_service_at"] = d.EstimatedAt
	j["wait_label"] = d.WaitLabel
	return c.JSON(http.StatusOK, j)
}

// RefreshTicketToken re-signs the short-lived QR token for an active
// ticket, typically after the previous one expired on screen.
func (h *QueueUserHandler) RefreshTicketToken(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	entryID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid queue id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	entry, err := h.Engine.RefreshTicketToken(ctx, entryID, userID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ticket_token":     entry.TicketToken,
		"token_expires_at": entry.TokenExpiresAt,
	})
}

type postponeReq struct {
	Reason string `json:"reason"`
}

// PostponeRequest asks the operator to push this ticket to the back of
// the line.
func (h *QueueUserHandler) PostponeRequest(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	entryID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid queue id"})
	}
	var req postponeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Engine.PostponeRequest(ctx, entryID, userID, req.Reason); err != nil {
		return respondErr(c, err)
	}
	monitoring.ObserveOperation("postpone_request", "ok")
	return c.JSON(http.StatusOK, echo.Map{"message": "Permintaan tunda dikirim. Menunggu persetujuan petugas."})
}

type cancelReq struct {
	Reason string `json:"reason"`
}

// Cancel releases the caller's ticket and its capacity slot.
func (h *QueueUserHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	entryID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid queue id"})
	}
	var req cancelReq
	_ = c.Bind(&req)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	res, err := h.Engine.Cancel(ctx, entryID, userID, req.Reason)
	if err != nil {
		return respondErr(c, err)
	}
	monitoring.ObserveOperation("cancel", "ok")
	msg := "Antrean aktif berhasil dibatalkan. Slot dikembalikan."
	if res.PreOrder {
		msg = "Pendaftaran Pre-Order berhasil dibatalkan. Slot dikembalikan."
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg})
}
