package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/quadrille/attribution/internal/attribution"
	"github.com/quadrille/attribution/internal/rekey"
	"github.com/quadrille/attribution/internal/repository"
	"github.com/quadrille/attribution/internal/scheduler"
)

// AdminHandler exposes the engine's manual entry points over HTTP:
// running the attribution batch, previewing the best candidate of a
// session, and running the rekey.  The endpoints are thin triggers;
// every decision lives in the attribution and rekey packages.  Runs
// go through the same mutex as the scheduler so a manual trigger can
// never overlap a scheduled batch.  Authentication is left to the
// deployment's gateway.
type AdminHandler struct {
	Selector *attribution.Selector
	Rekeyer  *rekey.Rekeyer
	Lock     *scheduler.Mutex
}

// NewAdminHandler constructs an AdminHandler.  Selector and rekeyer
// must be non-nil; lock must be the instance the scheduler uses.
func NewAdminHandler(selector *attribution.Selector, rekeyer *rekey.Rekeyer, lock *scheduler.Mutex) *AdminHandler {
	if selector == nil || rekeyer == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Selector: selector, Rekeyer: rekeyer, Lock: lock}
}

// RunAttribution handles POST /v1/admin/attribution/run.  It executes
// one batch immediately and returns the run report, or 409 when a
// scheduled or concurrent manual run holds the lock.  Per-session
// failures are counted in the report; only a failed candidate query
// yields a 500.
func (h *AdminHandler) RunAttribution(c echo.Context) error {
	ctx := c.Request().Context()
	var (
		report attribution.Report
		runErr error
	)
	if err := h.Lock.TryRun(ctx, func() { report, runErr = h.Selector.Run(ctx) }); errors.Is(err, scheduler.ErrLockHeld) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "another run is in progress"})
	}
	if runErr != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": runErr.Error()})
	}
	return c.JSON(http.StatusOK, report)
}

// BestCandidate handles GET /v1/admin/sessions/:id/best.  It returns
// the scorecard of the best-ranked eligible application for the
// session, bypassing the batch deadline, or 404 when the session is
// unknown, locked, granted, or without eligible applications.
func (h *AdminHandler) BestCandidate(c echo.Context) error {
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || sessionID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	card, err := h.Selector.Best(c.Request().Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		case errors.Is(err, attribution.ErrNoCandidate):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no eligible candidate"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
	}
	return c.JSON(http.StatusOK, card)
}

// RunRekey handles POST /v1/admin/rekey.  It renumbers session ids
// into chronological order and returns how many sessions moved, or
// 409 when a scheduled or concurrent manual run holds the lock.  A
// failure means the transaction rolled back and the store is
// untouched; it is reported as a 500 for operator review, never
// retried automatically.
func (h *AdminHandler) RunRekey(c echo.Context) error {
	ctx := c.Request().Context()
	var (
		moves  int
		runErr error
	)
	if err := h.Lock.TryRun(ctx, func() { moves, runErr = h.Rekeyer.Run(ctx) }); errors.Is(err, scheduler.ErrLockHeld) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "another run is in progress"})
	}
	if runErr != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": runErr.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"moves": moves})
}
