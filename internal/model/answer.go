package model

// AnswerRecord is the client-local answer state of one question. One per question for
// the lifetime of a run.
type AnswerRecord struct {
	QuestionID string `json:"questionId"`
	// SelectedOptionIndex is nil while unanswered. After submission without a choice it
	// holds SkippedAnswer.
	SelectedOptionIndex *int `json:"selectedOptionIndex"`
	TimeTakenSeconds    int  `json:"timeTakenSeconds"`
}

// IsUnanswered reports whether the user has made no choice and nothing was submitted.
func (a AnswerRecord) IsUnanswered() bool {
	return a.SelectedOptionIndex == nil
}

// IsSkipped reports whether the answer went to the server as the skipped sentinel.
func (a AnswerRecord) IsSkipped() bool {
	return a.SelectedOptionIndex != nil && *a.SelectedOptionIndex == SkippedAnswer
}

// WireAnswer returns the value to send as selectedAnswer.
func (a AnswerRecord) WireAnswer() int {
	if a.SelectedOptionIndex == nil {
		return SkippedAnswer
	}
	return *a.SelectedOptionIndex
}
