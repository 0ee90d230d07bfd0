package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/admin"
	"github.com/stemsi/exstem-runner/internal/apiclient"
	"github.com/stemsi/exstem-runner/internal/filter"
	"github.com/stemsi/exstem-runner/internal/response"
	"github.com/stemsi/exstem-runner/internal/runner"
	"github.com/stemsi/exstem-runner/internal/service"
	"github.com/stemsi/exstem-runner/internal/session"
	"github.com/stemsi/exstem-runner/internal/validator"
)

// classify maps a service error to an HTTP status and error body. Upstream
// messages are kept verbatim.
func classify(err error) (int, *response.ErrorBody) {
	body := func(code response.ErrCode) *response.ErrorBody {
		return &response.ErrorBody{Code: code}
	}

	// Session loss wins over everything, including a batch that hit a 401.
	switch {
	case errors.Is(err, apiclient.ErrUnauthorized):
		return http.StatusUnauthorized, &response.ErrorBody{Code: response.ErrSessionInvalidated, Redirect: response.LoginPath}
	case errors.Is(err, session.ErrNotAuthenticated):
		return http.StatusUnauthorized, &response.ErrorBody{Code: response.ErrTokenRequired, Redirect: response.LoginPath}
	case errors.Is(err, session.ErrTokenExpired):
		return http.StatusUnauthorized, &response.ErrorBody{Code: response.ErrTokenExpired, Redirect: response.LoginPath}
	}

	var decision *runner.DecisionRequiredError
	if errors.As(err, &decision) {
		b := body(response.ErrDecisionRequired)
		b.Details = gin.H{"unanswered": decision.Unanswered}
		return http.StatusConflict, b
	}
	var batch *runner.BatchError
	if errors.As(err, &batch) {
		b := body(response.ErrBatchPartial)
		b.Details = batch.Result
		return http.StatusBadGateway, b
	}

	switch {
	case errors.Is(err, service.ErrRunNotFound):
		return http.StatusNotFound, body(response.ErrRunNotFound)
	case errors.Is(err, runner.ErrNotRunning):
		return http.StatusConflict, body(response.ErrRunNotInProgress)
	case errors.Is(err, runner.ErrSubmitPending):
		return http.StatusConflict, body(response.ErrSubmitPending)
	case errors.Is(err, runner.ErrAlreadySubmitted):
		return http.StatusConflict, body(response.ErrAlreadySubmitted)
	case errors.Is(err, runner.ErrEndInProgress):
		return http.StatusConflict, body(response.ErrEndInProgress)
	case errors.Is(err, runner.ErrInvalidOption):
		return http.StatusUnprocessableEntity, body(response.ErrInvalidOption)
	case errors.Is(err, runner.ErrMalformedTestData), errors.Is(err, runner.ErrMissingSession):
		return http.StatusBadGateway, body(response.ErrMalformedTestData)
	case errors.Is(err, runner.ErrSnapshotMissing):
		return http.StatusNotFound, body(response.ErrSnapshotMissing)
	case errors.Is(err, runner.ErrSnapshotDiverged):
		return http.StatusConflict, body(response.ErrSnapshotDiverged)
	case errors.Is(err, runner.ErrSessionClosed):
		return http.StatusGone, body(response.ErrSessionClosed)
	case errors.Is(err, filter.ErrNoQuestions):
		return http.StatusNotFound, body(response.ErrNoQuestions)
	case errors.Is(err, filter.ErrInvalidCount):
		return http.StatusBadRequest, &response.ErrorBody{Code: response.ErrValidation, Fields: map[string]string{"count": err.Error()}}
	case errors.Is(err, admin.ErrNotAdmin):
		return http.StatusForbidden, body(response.ErrAdminAccessOnly)
	case errors.Is(err, errInvalidAction):
		return http.StatusBadRequest, &response.ErrorBody{Code: response.ErrInvalidPayload, Message: err.Error()}
	}

	var schemaErr *validator.SchemaError
	if errors.Is(err, filter.ErrInvalidCriteria) {
		b := body(response.ErrValidation)
		if errors.As(err, &schemaErr) {
			b.Fields = schemaErr.Fields
		} else {
			b.Message = err.Error()
		}
		return http.StatusBadRequest, b
	}

	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		status, code := apiErr.Status, response.ErrUpstream
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		if status == http.StatusUnauthorized {
			code = response.ErrInvalidCredentials
		}
		return status, &response.ErrorBody{Code: code, Message: apiclient.Message(err)}
	}
	var netErr *apiclient.NetworkError
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, body(response.ErrUpstreamUnreachable)
	}
	if errors.As(err, &schemaErr) {
		// A response that failed its schema check.
		return http.StatusBadGateway, &response.ErrorBody{Code: response.ErrUpstream, Message: err.Error()}
	}

	return http.StatusInternalServerError, body(response.ErrInternal)
}

// fail writes the classified error. Unexpected errors are logged.
func fail(c *gin.Context, log zerolog.Logger, err error) {
	status, b := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Int("status", status).Msg("Request failed")
	}
	response.FailWith(c, status, b)
}
