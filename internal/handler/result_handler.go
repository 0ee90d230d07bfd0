package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/middleware"
	"github.com/stemsi/exstem-runner/internal/response"
	"github.com/stemsi/exstem-runner/internal/results"
)

// ResultSource reads scored sessions.
type ResultSource interface {
	Detail(ctx context.Context, testSessionID string, flagged []string) (*results.Summary, error)
	History(ctx context.Context) ([]results.Entry, error)
}

// ResultHandler handles result and history endpoints.
type ResultHandler struct {
	results ResultSource
	runs    middleware.RunLookup
	log     zerolog.Logger
}

// NewResultHandler creates a new ResultHandler. runs supplies bookmarks for a
// result whose run is still open.
func NewResultHandler(results ResultSource, runs middleware.RunLookup, log zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		results: results,
		runs:    runs,
		log:     log.With().Str("component", "result_handler").Logger(),
	}
}

// List godoc
// GET /api/v1/results
// Returns past tests, newest first.
func (h *ResultHandler) List(c *gin.Context) {
	entries, err := h.results.History(c.Request.Context())
	if err != nil {
		fail(c, h.log, err)
		return
	}

	if entries == nil {
		entries = []results.Entry{}
	}

	response.Success(c, http.StatusOK, gin.H{"results": entries})
}

// Detail godoc
// GET /api/v1/results/:id
// Returns the score, breakdowns and per-question review of one test.
func (h *ResultHandler) Detail(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var flagged []string
	if h.runs != nil {
		if r, err := h.runs.Get(id); err == nil {
			flagged = r.Flagged()
		}
	}

	sum, err := h.results.Detail(c.Request.Context(), id, flagged)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": sum})
}
