package delivery

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	calusecase "steward-backend/internal/calendar/usecase"
	"steward-backend/internal/planner/usecase"
	sessiondomain "steward-backend/internal/session/domain"
	sessionusecase "steward-backend/internal/session/usecase"
)

// Diagnoser reports mailbox transport health.
type Diagnoser interface {
	Diagnostics() map[string]interface{}
}

// PlannerHandler handles planning, undo and calendar HTTP requests.
type PlannerHandler struct {
	planner    *usecase.Planner
	reconciler *calusecase.Reconciler
	engine     *sessionusecase.Engine
	diagnoser  Diagnoser
}

// NewPlannerHandler creates a new PlannerHandler.
func NewPlannerHandler(planner *usecase.Planner, reconciler *calusecase.Reconciler, engine *sessionusecase.Engine, diagnoser Diagnoser) *PlannerHandler {
	return &PlannerHandler{
		planner:    planner,
		reconciler: reconciler,
		engine:     engine,
		diagnoser:  diagnoser,
	}
}

// WhatIf returns the decisions a run would make without applying any
// GET /api/what-if
func (h *PlannerHandler) WhatIf(c *gin.Context) {
	result, err := h.planner.Plan(c.Request.Context(), usecase.ModePreview, sessiondomain.TriggerFullSort)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// FullSort runs a commit pass over the whole inbox
// POST /api/full-sort
func (h *PlannerHandler) FullSort(c *gin.Context) {
	h.commitRun(c, sessiondomain.TriggerFullSort)
}

// Process runs one commit pass, same as the background poller does
// POST /api/process
func (h *PlannerHandler) Process(c *gin.Context) {
	h.commitRun(c, sessiondomain.TriggerPoll)
}

func (h *PlannerHandler) commitRun(c *gin.Context, trigger sessiondomain.TriggerKind) {
	result, err := h.planner.Plan(c.Request.Context(), usecase.ModeCommit, trigger)
	if err != nil {
		if errors.Is(err, usecase.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Undo reverses the session behind the token
// POST /api/undo/:token
func (h *PlannerHandler) Undo(c *gin.Context) {
	token := c.Param("token")

	session, err := h.planner.Undo(token)
	if err != nil {
		if errors.Is(err, sessionusecase.ErrUndoTokenInvalid) {
			c.JSON(http.StatusGone, gin.H{"error": "undo token is invalid, expired or already used"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Session undone",
		"session": session,
	})
}

// GetSession reports one session and its action records
// GET /api/sessions/:id
func (h *PlannerHandler) GetSession(c *gin.Context) {
	session, records, err := h.engine.Describe(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session": session,
		"actions": records,
	})
}

// GetEvents lists the active calendar events
// GET /api/events
func (h *PlannerHandler) GetEvents(c *gin.Context) {
	events, err := h.reconciler.ActiveEvents()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"total":  len(events),
	})
}

// GetConflicts lists unresolved calendar conflicts
// GET /api/conflicts
func (h *PlannerHandler) GetConflicts(c *gin.Context) {
	conflicts, err := h.reconciler.OpenConflicts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conflicts": conflicts,
		"total":     len(conflicts),
	})
}

// ResolveConflict marks a conflict as handled
// POST /api/conflicts/:id/resolve
func (h *PlannerHandler) ResolveConflict(c *gin.Context) {
	if err := h.reconciler.ResolveConflict(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conflict resolved"})
}

// Diagnostics reports mailbox connectivity and folder counts
// GET /api/diagnostics
func (h *PlannerHandler) Diagnostics(c *gin.Context) {
	c.JSON(http.StatusOK, h.diagnoser.Diagnostics())
}
