package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/response"
	"github.com/stemsi/exstem-runner/internal/runner"
	"github.com/stemsi/exstem-runner/internal/store"
	"github.com/stemsi/exstem-runner/internal/validator"
)

// CatalogSource serves the selector pickers.
type CatalogSource interface {
	Catalog(ctx context.Context) (*model.Catalog, error)
	Preview(ctx context.Context, cr model.Criteria) (*model.QuestionPool, error)
}

// RunStarter opens runs.
type RunStarter interface {
	Start(ctx context.Context, cr model.Criteria, count, duration int) (*runner.Runner, error)
	Resume(ctx context.Context, testSessionID string) (*runner.Runner, error)
	Active(ctx context.Context) (string, error)
}

// StartTestRequest is the body of POST /api/v1/tests.
type StartTestRequest struct {
	Criteria model.Criteria `json:"criteria"`
	Count    int            `json:"count" binding:"required,min=1,max=200"`
	// Duration in seconds. Zero starts an untimed run.
	Duration int `json:"duration" binding:"min=0,max=86400"`
}

// TestHandler handles test selection and run start endpoints.
type TestHandler struct {
	catalog CatalogSource
	runs    RunStarter
	log     zerolog.Logger
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(catalog CatalogSource, runs RunStarter, log zerolog.Logger) *TestHandler {
	return &TestHandler{
		catalog: catalog,
		runs:    runs,
		log:     log.With().Str("component", "test_handler").Logger(),
	}
}

// Catalog godoc
// GET /api/v1/catalog
// Returns the category → subject → topic tree.
func (h *TestHandler) Catalog(c *gin.Context) {
	cat, err := h.catalog.Catalog(c.Request.Context())
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"catalog": cat})
}

// Preview godoc
// POST /api/v1/tests/preview
// Reports how many questions the criteria match.
func (h *TestHandler) Preview(c *gin.Context) {
	var cr model.Criteria
	if fields := validator.BindSchema(c, &cr); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	pool, err := h.catalog.Preview(c.Request.Context(), cr)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"pool": pool})
}

// Start godoc
// POST /api/v1/tests
// Creates a test session server-side and opens a run on it.
func (h *TestHandler) Start(c *gin.Context) {
	var req StartTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	r, err := h.runs.Start(c.Request.Context(), req.Criteria, req.Count, req.Duration)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"run": r.View()})
}

// Resume godoc
// POST /api/v1/tests/:id/resume
// Reopens a run from its saved progress after checking it against the server.
func (h *TestHandler) Resume(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	r, err := h.runs.Resume(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"run": r.View()})
}

// Active godoc
// GET /api/v1/tests/active
// Returns the id of the run with saved progress, if any.
func (h *TestHandler) Active(c *gin.Context) {
	id, err := h.runs.Active(c.Request.Context())
	if errors.Is(err, store.ErrNotFound) {
		response.FailWithMessage(c, http.StatusNotFound, response.ErrNotFound, "No test in progress")
		return
	}
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test_session_id": id})
}
