package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/results"
	"github.com/stemsi/exstem-runner/internal/runner"
	ws "github.com/stemsi/exstem-runner/internal/websocket"
)

// errInvalidAction is returned for an unknown action or one missing its argument.
var errInvalidAction = errors.New("invalid action")

// perform applies one run action. HTTP routes and the run stream share it, so both
// surfaces behave the same. The returned map holds action-specific results.
func perform(ctx context.Context, r *runner.Runner, req ws.RequestPayload) (gin.H, error) {
	out := gin.H{}

	switch req.Action {
	case ws.ActionView:
		return out, nil

	case ws.ActionSelect:
		if req.Option == nil {
			return nil, fmt.Errorf("%w: select needs an option", errInvalidAction)
		}
		return out, r.Select(*req.Option)

	case ws.ActionNext, ws.ActionPrev, ws.ActionGoTo:
		if r.State() != runner.StateRunning {
			return nil, runner.ErrNotRunning
		}
		var moved bool
		switch req.Action {
		case ws.ActionNext:
			moved = r.Next()
		case ws.ActionPrev:
			moved = r.Prev()
		default:
			if req.Index == nil {
				return nil, fmt.Errorf("%w: goto needs an index", errInvalidAction)
			}
			moved = r.GoTo(*req.Index)
		}
		out["moved"] = moved
		return out, nil

	case ws.ActionFlag:
		on, err := r.ToggleFlag()
		if err != nil {
			return nil, err
		}
		out["flagged"] = on
		return out, nil

	case ws.ActionSubmit:
		return out, r.Submit(ctx)

	case ws.ActionEnd:
		mode, err := runner.ParseEndMode(req.Mode)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidAction, err)
		}
		sum, err := summarize(r, func() (*model.TestSession, error) { return r.End(ctx, mode) })
		if err != nil {
			return nil, err
		}
		out["result"] = sum
		return out, nil

	case ws.ActionRetry:
		sum, err := summarize(r, func() (*model.TestSession, error) { return r.Retry(ctx) })
		if err != nil {
			return nil, err
		}
		out["result"] = sum
		return out, nil

	case ws.ActionPause:
		return out, r.Pause()

	case ws.ActionResume:
		return out, r.Resume()

	default:
		return nil, fmt.Errorf("%w: unknown action %q", errInvalidAction, req.Action)
	}
}

// summarize runs a finalizing call and builds the result view from its session.
func summarize(r *runner.Runner, finalize func() (*model.TestSession, error)) (*results.Summary, error) {
	s, err := finalize()
	if err != nil {
		return nil, err
	}
	sum := results.Summarize(s, r.Flagged())
	return &sum, nil
}
