// Package handler contains the Echo HTTP handlers.  Handlers stay thin:
// they bind and validate the request, delegate to the engine or a
// repository, and translate errors into JSON responses.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/antrikuy/antrikuy-backend/internal/engine"
	"github.com/antrikuy/antrikuy-backend/internal/model"
	"github.com/antrikuy/antrikuy-backend/internal/repository"
)

const dbTimeout = 5 * time.Second

// getUserID extracts the authenticated user's ID from the context.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// getSchoolID extracts the admin's school scope, when present.
func getSchoolID(c echo.Context) (uint64, bool) {
	switch t := c.Get("school_id").(type) {
	case uint64:
		return t, true
	case int64:
		return uint64(t), true
	case float64:
		return uint64(t), true
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// paramID parses a numeric path parameter.
func paramID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

// paramQuery parses a numeric query parameter.
func paramQuery(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.QueryParam(name), 10, 64)
}

// respondErr maps engine and repository errors onto HTTP responses.
func respondErr(c echo.Context, err error) error {
	var serr *engine.StateError
	if errors.As(err, &serr) {
		return c.JSON(serr.Code, echo.Map{"message": serr.Message})
	}
	switch {
	case errors.Is(err, repository.ErrEventNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Layanan tidak ditemukan"})
	case errors.Is(err, repository.ErrEntryNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Antrean tidak ditemukan"})
	case errors.Is(err, repository.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Pengguna tidak ditemukan"})
	case errors.Is(err, repository.ErrSchoolNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Sekolah tidak ditemukan"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"message": "Akses ditolak."})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// eventJSON renders an event with its derived status, the shape every
// client screen consumes.
func eventJSON(ev *model.Event, now time.Time) echo.Map {
	return echo.Map{
		"id":                   ev.ID,
		"school_id":            ev.SchoolID,
		"code":                 ev.Code,
		"name":                 ev.Name,
		"category":             ev.Category,
		"location":             ev.Location,
		"description":          ev.Description,
		"status":               model.DeriveStatus(ev, now),
		"is_locked":            ev.Locked,
		"capacity":             ev.Capacity,
		"starts_at":            ev.StartsAt,
		"ends_at":              ev.EndsAt,
		"current_batch":        ev.CurrentBatch,
		"slots_taken":          ev.SlotsTaken,
		"last_number_issued":   ev.LastNumberIssued,
		"avg_service_minutes":  ev.AvgServiceMinutes,
		"grace_period_minutes": ev.GracePeriodMinutes,
	}
}

// entryJSON renders a queue entry for API responses.
func entryJSON(e *model.QueueEntry) echo.Map {
	return echo.Map{
		"id":               e.ID,
		"event_id":         e.EventID,
		"user_id":          e.UserID,
		"ticket_number":    e.TicketNumber,
		"batch":            e.Batch,
		"status":           e.Status,
		"is_postponed":     e.Postponed,
		"postpone_reason":  e.PostponeReason,
		"cancel_reason":    e.CancelReason,
		"ticket_token":     e.TicketToken,
		"token_expires_at": e.TokenExpiresAt,
		"call_expires_at":  e.CallExpiresAt,
		"requested_at":     e.RequestedAt,
		"called_at":        e.CalledAt,
	}
}

func entryListJSON(entries []model.QueueEntry) []echo.Map {
	out := make([]echo.Map, 0, len(entries))
	for i := range entries {
		out = append(out, entryJSON(&entries[i]))
	}
	return out
}
