package model

import "time"

// TestStatus enumerates test session states as reported by the server.
type TestStatus string

const (
	TestStatusInProgress TestStatus = "in_progress"
	TestStatusSucceeded  TestStatus = "succeeded"
	TestStatusCanceled   TestStatus = "canceled"
)

// SkippedAnswer is the wire value meaning "no answer given".
const SkippedAnswer = -1

// TestSession is the server's record of one test attempt. It is authoritative for scoring.
type TestSession struct {
	ID          string     `json:"id" validate:"required"`
	QuestionIDs []string   `json:"questionIds"`
	Questions   []Question `json:"questions,omitempty" validate:"dive"`
	// Duration in seconds. Zero means untimed.
	Duration int        `json:"duration,omitempty" validate:"min=0"`
	Status   TestStatus `json:"status" validate:"required,oneof=in_progress succeeded canceled"`

	// Populated only after finalization.
	Score            *float64     `json:"score,omitempty"`
	CorrectAnswers   *int         `json:"correctAnswers,omitempty"`
	IncorrectAnswers *int         `json:"incorrectAnswers,omitempty"`
	TotalQuestions   int          `json:"totalQuestions"`
	Review           []ReviewItem `json:"review,omitempty"`

	// Answers already accepted by the server for an in-progress session.
	Answers []SubmittedAnswer `json:"answers,omitempty"`

	Criteria    *Criteria  `json:"criteria,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Finalized reports whether the server has closed the session.
func (s *TestSession) Finalized() bool {
	return s.Status != TestStatusInProgress
}

// QuestionIDList returns the question ids in run order, preferring the explicit id list.
func (s *TestSession) QuestionIDList() []string {
	if len(s.QuestionIDs) > 0 {
		return s.QuestionIDs
	}
	ids := make([]string, 0, len(s.Questions))
	for _, q := range s.Questions {
		ids = append(ids, q.ID)
	}
	return ids
}

// SubmittedAnswer is an answer the server has recorded.
type SubmittedAnswer struct {
	QuestionID     string `json:"questionId"`
	SelectedAnswer int    `json:"selectedAnswer"`
	TimeTaken      int    `json:"timeTaken"`
}

// ReviewItem is per-question review data echoed from the server after scoring.
type ReviewItem struct {
	QuestionID     string    `json:"questionId" validate:"required"`
	SelectedAnswer int       `json:"selectedAnswer"`
	CorrectAnswer  int       `json:"correctAnswer"`
	IsCorrect      bool      `json:"isCorrect"`
	TimeTaken      int       `json:"timeTaken"`
	Question       *Question `json:"question,omitempty"`
}

// CreateTestRequest starts a run from filter criteria.
type CreateTestRequest struct {
	Criteria    Criteria `json:"criteria"`
	Count       int      `json:"count" validate:"min=1,max=200"`
	QuestionIDs []string `json:"questionIds,omitempty"`
	Duration    int      `json:"duration,omitempty" validate:"min=0"`
}

// CreateTestResult is what the selector hands to the runner.
type CreateTestResult struct {
	TestSessionID string     `json:"testSessionId" validate:"required"`
	Questions     []Question `json:"questions" validate:"required,min=1"`
	Duration      int        `json:"duration,omitempty"`
}

// SubmitAnswerRequest records one answer. SelectedAnswer is never null on the wire.
type SubmitAnswerRequest struct {
	TestSessionID  string `json:"testSessionId"`
	QuestionID     string `json:"questionId"`
	SelectedAnswer int    `json:"selectedAnswer"`
	TimeTaken      int    `json:"timeTaken"`
}

// Ack is the acknowledgement body of write-only calls.
type Ack struct {
	Message string `json:"message,omitempty"`
}
