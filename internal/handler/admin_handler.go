package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/admin"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/response"
	"github.com/stemsi/exstem-runner/internal/validator"
)

// AdminService is the administrative surface.
type AdminService interface {
	ListUsers(ctx context.Context, q admin.Query) ([]model.User, *response.Pagination, error)
	UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
	ListQuestions(ctx context.Context, cr model.Criteria, q admin.Query) ([]model.Question, *response.Pagination, error)
	GetQuestion(ctx context.Context, id string) (*model.Question, error)
	CreateQuestion(ctx context.Context, in model.QuestionInput) (*model.Question, error)
	UpdateQuestion(ctx context.Context, id string, in model.QuestionInput) (*model.Question, error)
	DeleteQuestion(ctx context.Context, id string) error
}

// AdminHandler handles user and question management endpoints.
type AdminHandler struct {
	svc AdminService
	log zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(svc AdminService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		svc: svc,
		log: log.With().Str("component", "admin_handler").Logger(),
	}
}

// ─── Users ──────────────────────────────────────────────────────────

// ListUsers godoc
// GET /api/v1/admin/users?search=&sort_by=&order=&page=&per_page=
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var q admin.Query
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	users, page, err := h.svc.ListUsers(c.Request.Context(), q)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"users": users}, page)
}

// UpdateUser godoc
// PUT /api/v1/admin/users/:id
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	var upd model.UserUpdate
	if fields := validator.BindSchema(c, &upd); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.svc.UpdateUser(c.Request.Context(), c.Param("id"), upd)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// DeleteUser godoc
// DELETE /api/v1/admin/users/:id
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.svc.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ─── Questions ──────────────────────────────────────────────────────

// ListQuestions godoc
// GET /api/v1/admin/questions?category=&subject=&topic=&difficulty=&search=&sort_by=&order=&page=&per_page=
func (h *AdminHandler) ListQuestions(c *gin.Context) {
	var q admin.Query
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	var cr model.Criteria
	if fields := validator.BindQuery(c, &cr); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, page, err := h.svc.ListQuestions(c.Request.Context(), cr, q)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"questions": questions}, page)
}

// GetQuestion godoc
// GET /api/v1/admin/questions/:id
func (h *AdminHandler) GetQuestion(c *gin.Context) {
	q, err := h.svc.GetQuestion(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": q})
}

// CreateQuestion godoc
// POST /api/v1/admin/questions
func (h *AdminHandler) CreateQuestion(c *gin.Context) {
	var in model.QuestionInput
	if fields := validator.BindSchema(c, &in); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, err := h.svc.CreateQuestion(c.Request.Context(), in)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question": q})
}

// UpdateQuestion godoc
// PUT /api/v1/admin/questions/:id
func (h *AdminHandler) UpdateQuestion(c *gin.Context) {
	var in model.QuestionInput
	if fields := validator.BindSchema(c, &in); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, err := h.svc.UpdateQuestion(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": q})
}

// DeleteQuestion godoc
// DELETE /api/v1/admin/questions/:id
func (h *AdminHandler) DeleteQuestion(c *gin.Context) {
	if err := h.svc.DeleteQuestion(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
