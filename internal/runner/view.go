package runner

import "github.com/stemsi/exstem-runner/internal/model"

// ItemView is the per-question status strip. Flagged and unanswered/skipped are
// independent; the renderer decides how to combine them.
type ItemView struct {
	QuestionID      string `json:"questionId"`
	IsFlaggedByUser bool   `json:"isFlaggedByUser"`
	IsUnanswered    bool   `json:"isUnanswered"`
	IsSkipped       bool   `json:"isSkipped"`
	IsSubmitted     bool   `json:"isSubmitted"`
	IsPending       bool   `json:"isPending"`
}

// View is a read-only copy of the run for renderers.
type View struct {
	State         State               `json:"state"`
	TestSessionID string              `json:"testSessionId"`
	Current       int                 `json:"current"`
	Total         int                 `json:"total"`
	Question      *model.Question     `json:"question,omitempty"`
	Answer        *model.AnswerRecord `json:"answer,omitempty"`
	Items         []ItemView          `json:"items"`
	Duration      int                 `json:"duration"`
	Remaining     int                 `json:"remaining"`
	Paused        bool                `json:"paused"`
	Unanswered    int                 `json:"unanswered"`
	Submitted     int                 `json:"submitted"`
	LastError     string              `json:"lastError,omitempty"`
	Result        *model.TestSession  `json:"result,omitempty"`
}

// View returns the current state for display.
func (r *Runner) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := View{
		State:         r.state,
		TestSessionID: r.sessionID,
		Current:       r.current,
		Total:         len(r.questions),
		Items:         make([]ItemView, 0, len(r.answers)),
		Duration:      r.duration,
		Remaining:     r.remaining,
		Paused:        r.paused,
		Submitted:     len(r.submitted),
		Result:        r.result,
	}
	if r.current >= 0 && r.current < len(r.questions) {
		q := r.questions[r.current]
		v.Question = &q
		a := r.answers[r.current]
		v.Answer = &a
	}
	for _, a := range r.answers {
		_, pending := r.pending[a.QuestionID]
		item := ItemView{
			QuestionID:      a.QuestionID,
			IsFlaggedByUser: r.flagged[a.QuestionID],
			IsUnanswered:    a.IsUnanswered(),
			IsSkipped:       a.IsSkipped(),
			IsSubmitted:     r.submitted[a.QuestionID],
			IsPending:       pending,
		}
		if item.IsUnanswered {
			v.Unanswered++
		}
		v.Items = append(v.Items, item)
	}
	if r.lastErr != nil {
		v.LastError = r.lastErr.Error()
	}
	return v
}

// Answers returns a copy of every answer record in question order.
func (r *Runner) Answers() []model.AnswerRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.AnswerRecord, len(r.answers))
	copy(out, r.answers)
	return out
}

// Submitted returns the ids accepted by the server so far.
func (r *Runner) Submitted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return setKeys(r.submitted)
}

// Flagged returns the ids bookmarked by the user.
func (r *Runner) Flagged() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return setKeys(r.flagged)
}
