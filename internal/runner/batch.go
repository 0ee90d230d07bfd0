package runner

import (
	"context"
	"sort"

	"github.com/stemsi/exstem-runner/internal/apiclient"
	"github.com/stemsi/exstem-runner/internal/model"
	"golang.org/x/sync/errgroup"
)

type batchTask struct {
	questionID string
	answer     int
}

// batchTasksLocked lists the unsubmitted questions End must send. Answered questions
// go with their local choice; unanswered ones only in fill mode, as skipped.
func (r *Runner) batchTasksLocked(mode EndMode) []batchTask {
	var tasks []batchTask
	for _, a := range r.answers {
		if r.submitted[a.QuestionID] {
			continue
		}
		if a.IsUnanswered() && mode != EndFillUnanswered {
			continue
		}
		tasks = append(tasks, batchTask{questionID: a.QuestionID, answer: a.WireAnswer()})
	}
	return tasks
}

func taskAnswer(tasks []batchTask, id string) int {
	for _, t := range tasks {
		if t.questionID == id {
			return t.answer
		}
	}
	return model.SkippedAnswer
}

// runBatch fires every task concurrently (bounded) and waits for all of them. No
// ordering between the calls is assumed; one failure does not cancel the others.
func (r *Runner) runBatch(ctx context.Context, tasks []batchTask) BatchResult {
	r.mu.Lock()
	sessionID := r.sessionID
	r.mu.Unlock()

	errs := make([]error, len(tasks))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, t := range tasks {
		g.Go(func() error {
			errs[i] = r.api.SubmitAnswer(ctx, model.SubmitAnswerRequest{
				TestSessionID:  sessionID,
				QuestionID:     t.questionID,
				SelectedAnswer: t.answer,
				TimeTaken:      0,
			})
			return nil
		})
	}
	_ = g.Wait()

	res := BatchResult{Succeeded: []string{}, Failed: []SubmitFailure{}}
	for i, t := range tasks {
		if errs[i] != nil {
			res.Failed = append(res.Failed, SubmitFailure{
				QuestionID: t.questionID,
				Err:        errs[i],
				Message:    apiclient.Message(errs[i]),
			})
			continue
		}
		res.Succeeded = append(res.Succeeded, t.questionID)
	}
	sort.Strings(res.Succeeded)

	r.log.Info().
		Int("succeeded", len(res.Succeeded)).
		Int("failed", len(res.Failed)).
		Msg("Batch submission done")
	return res
}
