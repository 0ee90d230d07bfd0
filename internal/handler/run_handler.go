package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/middleware"
	"github.com/stemsi/exstem-runner/internal/response"
	"github.com/stemsi/exstem-runner/internal/validator"
	ws "github.com/stemsi/exstem-runner/internal/websocket"
)

// RunCanceller abandons runs.
type RunCanceller interface {
	Cancel(ctx context.Context, testSessionID string) error
}

// SelectRequest is the body of POST /runs/:id/select.
type SelectRequest struct {
	Option *int `json:"option" binding:"required,min=0"`
}

// GoToRequest is the body of POST /runs/:id/goto.
type GoToRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}

// EndRequest is the optional body of POST /runs/:id/end.
type EndRequest struct {
	Mode string `json:"mode" binding:"omitempty,oneof=ask submit_as_is fill_unanswered"`
}

// RunHandler handles the in-progress run endpoints. Routes are mounted behind
// middleware.LoadRun.
type RunHandler struct {
	runs RunCanceller
	log  zerolog.Logger
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(runs RunCanceller, log zerolog.Logger) *RunHandler {
	return &RunHandler{
		runs: runs,
		log:  log.With().Str("component", "run_handler").Logger(),
	}
}

// Get godoc
// GET /api/v1/runs/:id
// Returns the run view.
func (h *RunHandler) Get(c *gin.Context) {
	h.act(c, ws.RequestPayload{Action: ws.ActionView})
}

// Select godoc
// POST /api/v1/runs/:id/select
// Records the chosen option for the current question. Nothing is sent yet.
func (h *RunHandler) Select(c *gin.Context) {
	var req SelectRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.act(c, ws.RequestPayload{Action: ws.ActionSelect, Option: req.Option})
}

// Next godoc
// POST /api/v1/runs/:id/next
func (h *RunHandler) Next(c *gin.Context) {
	h.act(c, ws.RequestPayload{Action: ws.ActionNext})
}

// Prev godoc
// POST /api/v1/runs/:id/prev
func (h *RunHandler) Prev(c *gin.Context) {
	h.act(c, ws.RequestPayload{Action: ws.ActionPrev})
}

// GoTo godoc
// POST /api/v1/runs/:id/goto
// Jumps to a question by zero-based index.
func (h *RunHandler) GoTo(c *gin.Context) {
	var req GoToRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.act(c, ws.RequestPayload{Action: ws.ActionGoTo, Index: req.Index})
}

// Flag godoc
// POST /api/v1/runs/:id/flag
// Toggles the bookmark on the current question.
func (h *RunHandler) Flag(c *gin.Context) {
	h.act(c, ws.RequestPayload{Action: ws.ActionFlag})
}

// Submit godoc
// POST /api/v1/runs/:id/submit
// Sends the current answer and advances to the next unsubmitted question.
func (h *RunHandler) Submit(c *gin.Context) {
	h.act(c, ws.RequestPayload{Action: ws.ActionSubmit})
}

// End godoc
// POST /api/v1/runs/:id/end
// Submits the remaining answers and finalizes. In ask mode (the default) a run
// with unanswered questions answers 409 DECISION_REQUIRED.
func (h *RunHandler) End(c *gin.Context) {
	var req EndRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, validator.TranslateErrors(err))
		return
	}
	h.act(c, ws.RequestPayload{Action: ws.ActionEnd, Mode: req.Mode})
}

// Retry godoc
// POST /api/v1/runs/:id/retry
// Retries a finalization that failed after the batch went out.
func (h *RunHandler) Retry(c *gin.Context) {
	h.act(c, ws.RequestPayload{Action: ws.ActionRetry})
}

// Pause godoc
// POST /api/v1/runs/:id/pause
func (h *RunHandler) Pause(c *gin.Context) {
	h.act(c, ws.RequestPayload{Action: ws.ActionPause})
}

// Resume godoc
// POST /api/v1/runs/:id/resume
func (h *RunHandler) Resume(c *gin.Context) {
	h.act(c, ws.RequestPayload{Action: ws.ActionResume})
}

// Cancel godoc
// DELETE /api/v1/runs/:id
// Cancels the session server-side and discards local progress.
func (h *RunHandler) Cancel(c *gin.Context) {
	r := middleware.GetRun(c)
	if r == nil {
		response.Fail(c, http.StatusNotFound, response.ErrRunNotFound)
		return
	}

	if err := h.runs.Cancel(c.Request.Context(), r.TestSessionID()); err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// act performs the action on the run from the context and responds with its
// result plus the updated view. Network calls outlive a disconnected page.
func (h *RunHandler) act(c *gin.Context, req ws.RequestPayload) {
	r := middleware.GetRun(c)
	if r == nil {
		response.Fail(c, http.StatusNotFound, response.ErrRunNotFound)
		return
	}

	out, err := perform(context.WithoutCancel(c.Request.Context()), r, req)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	out["run"] = r.View()
	response.Success(c, http.StatusOK, out)
}
