package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden        ErrCode = "FORBIDDEN"
	ErrAdminAccessOnly  ErrCode = "ADMIN_ACCESS_ONLY"
	ErrPermissionDenied ErrCode = "PERMISSION_DENIED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Run-specific ──────────────────────────────────────────────────
	ErrRunNotFound       ErrCode = "RUN_NOT_FOUND"
	ErrRunNotInProgress  ErrCode = "RUN_NOT_IN_PROGRESS"
	ErrDecisionRequired  ErrCode = "DECISION_REQUIRED"
	ErrSubmitPending     ErrCode = "SUBMIT_PENDING"
	ErrAlreadySubmitted  ErrCode = "ALREADY_SUBMITTED"
	ErrInvalidOption     ErrCode = "INVALID_OPTION"
	ErrEndInProgress     ErrCode = "END_IN_PROGRESS"
	ErrBatchPartial      ErrCode = "BATCH_PARTIAL_FAILURE"
	ErrMalformedTestData ErrCode = "MALFORMED_TEST_DATA"
	ErrSnapshotMissing   ErrCode = "SNAPSHOT_MISSING"
	ErrSnapshotDiverged  ErrCode = "SNAPSHOT_DIVERGED"
	ErrSessionClosed     ErrCode = "SESSION_CLOSED"
	ErrNoQuestions       ErrCode = "NO_QUESTIONS"

	// ─── Upstream API ──────────────────────────────────────────────────
	ErrUpstream            ErrCode = "UPSTREAM_ERROR"
	ErrUpstreamUnreachable ErrCode = "UPSTREAM_UNREACHABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Incorrect email or password."
	case ErrSessionInvalidated:
		return "Your session has expired. Please log in again."
	case ErrTokenRequired:
		return "You need to log in first."
	case ErrTokenExpired:
		return "Your login has expired. Please log in again."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have access to this resource."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."
	case ErrPermissionDenied:
		return "Permission denied."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Run-specific ──────────────────────────────────────────────────
	case ErrRunNotFound:
		return "No open test with this ID. Resume it first."
	case ErrRunNotInProgress:
		return "This test is not in progress."
	case ErrDecisionRequired:
		return "Some questions are unanswered. Submit as-is or mark them as skipped."
	case ErrSubmitPending:
		return "This answer is already being submitted."
	case ErrAlreadySubmitted:
		return "This question has already been submitted."
	case ErrInvalidOption:
		return "That option does not exist for this question."
	case ErrEndInProgress:
		return "The test is already being submitted."
	case ErrBatchPartial:
		return "Some answers could not be submitted. The test was not finalized; try again."
	case ErrMalformedTestData:
		return "The test data is malformed."
	case ErrSnapshotMissing:
		return "No saved progress was found for this test."
	case ErrSnapshotDiverged:
		return "Saved progress no longer matches the server and was discarded."
	case ErrSessionClosed:
		return "This test has already been closed."
	case ErrNoQuestions:
		return "No questions match the selected filters."

	// ─── Upstream API ──────────────────────────────────────────────────
	case ErrUpstream:
		return "The quiz server rejected the request."
	case ErrUpstreamUnreachable:
		return "Could not reach the quiz server. Check your connection and try again."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal error occurred."
	default:
		return "An unexpected error occurred."
	}
}
