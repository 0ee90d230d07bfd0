package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/stemsi/exstem-runner/internal/apiclient"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/results"
	"github.com/stemsi/exstem-runner/internal/runner"
)

const helpLine = "1-9 select  n/p next/prev  g N go to  f flag  s submit  e end  z pause  r retry  v view  q quit"

// warnAt are the remaining-seconds marks that print a countdown warning.
var warnAt = map[int]bool{300: true, 60: true, 30: true, 10: true}

// play drives one run from the terminal until it completes or the user quits.
func (a *app) play(ctx context.Context, r *runner.Runner) error {
	id := r.TestSessionID()
	sub, unsubscribe := a.hub.Subscribe(id)
	defer unsubscribe()

	lines := make(chan string)
	quit := make(chan struct{})
	defer close(quit)
	go readLines(a.in, lines, quit)

	printView(r.View())
	promptLine(r)

	for {
		select {
		case <-ctx.Done():
			r.Close()
			fmt.Printf("\nProgress saved. Continue with: quiz resume %s\n", id)
			return nil

		case e := <-sub.C:
			switch e.Type {
			case runner.EventTick:
				if warnAt[e.Remaining] {
					fmt.Printf("\n*** %s left ***\n", clock(e.Remaining))
					promptLine(r)
				}
			case runner.EventCompleted:
				if res := r.Result(); res != nil {
					fmt.Println("\nTime is up. Your answers were submitted.")
					sum := results.Summarize(res, r.Flagged())
					printSummary(&sum, false)
					return nil
				}
			case runner.EventError:
				fmt.Printf("\n! %s\n", e.Message)
				promptLine(r)
			}

		case line, ok := <-lines:
			if !ok {
				line = "q"
			}
			done, err := a.handle(ctx, r, line, lines)
			if err != nil {
				if errors.Is(err, apiclient.ErrUnauthorized) {
					r.Close()
					return err
				}
				fmt.Printf("! %s\n", apiclient.Message(err))
			}
			if done {
				return nil
			}
			promptLine(r)
		}
	}
}

// handle applies one command line. done ends the loop.
func (a *app) handle(ctx context.Context, r *runner.Runner, line string, lines <-chan string) (bool, error) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")

	if n, err := strconv.Atoi(cmd); err == nil {
		if err := r.Select(n - 1); err != nil {
			return false, err
		}
		printView(r.View())
		return false, nil
	}

	switch strings.ToLower(cmd) {
	case "":
		return false, nil
	case "n":
		if !r.Next() {
			fmt.Println("Already at the last question.")
		}
	case "p":
		if !r.Prev() {
			fmt.Println("Already at the first question.")
		}
	case "g":
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || !r.GoTo(n-1) {
			fmt.Println("Usage: g <question number>")
			return false, nil
		}
	case "f":
		on, err := r.ToggleFlag()
		if err != nil {
			return false, err
		}
		if on {
			fmt.Println("Flagged for review.")
		} else {
			fmt.Println("Flag removed.")
		}
		return false, nil
	case "s":
		if err := r.Submit(ctx); err != nil {
			return false, err
		}
	case "e":
		return a.end(ctx, r, runner.EndAsk, lines)
	case "r":
		res, err := r.Retry(ctx)
		if err != nil {
			return false, err
		}
		sum := results.Summarize(res, r.Flagged())
		printSummary(&sum, false)
		return true, nil
	case "z":
		var err error
		if r.View().Paused {
			err = r.Resume()
		} else {
			err = r.Pause()
		}
		if err != nil {
			return false, err
		}
	case "v":
	case "h", "?":
		fmt.Println(helpLine)
		return false, nil
	case "q":
		r.Close()
		fmt.Printf("Progress saved. Continue with: quiz resume %s\n", r.TestSessionID())
		return true, nil
	default:
		fmt.Println(helpLine)
		return false, nil
	}

	printView(r.View())
	return false, nil
}

// end finalizes, asking what to do with unanswered questions when needed.
func (a *app) end(ctx context.Context, r *runner.Runner, mode runner.EndMode, lines <-chan string) (bool, error) {
	res, err := r.End(ctx, mode)

	var decision *runner.DecisionRequiredError
	if errors.As(err, &decision) {
		fmt.Printf("%d question(s) are unanswered.\n", len(decision.Unanswered))
		fmt.Print("[a] submit answered only  [f] fill the rest as skipped  [c] keep going: ")
		choice, ok := <-lines
		if !ok {
			return true, nil
		}
		switch strings.ToLower(strings.TrimSpace(choice)) {
		case "a":
			return a.end(ctx, r, runner.EndSubmitAsIs, lines)
		case "f":
			return a.end(ctx, r, runner.EndFillUnanswered, lines)
		default:
			return false, nil
		}
	}
	if err != nil {
		var batch *runner.BatchError
		if errors.As(err, &batch) {
			fmt.Printf("%d answer(s) could not be sent; nothing was finalized. Try `e` again.\n", len(batch.Result.Failed))
		}
		return false, err
	}

	sum := results.Summarize(res, r.Flagged())
	printSummary(&sum, false)
	return true, nil
}

// readLines feeds stdin lines to out until EOF or until quit is closed.
func readLines(in *bufio.Reader, out chan<- string, quit <-chan struct{}) {
	defer close(out)
	for {
		line, err := in.ReadString('\n')
		if line != "" || err == nil {
			select {
			case out <- line:
			case <-quit:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				fmt.Println("! input:", err)
			}
			return
		}
	}
}

func promptLine(r *runner.Runner) {
	v := r.View()
	timer := ""
	if v.Duration > 0 {
		timer = " " + clock(v.Remaining)
		if v.Paused {
			timer += " (paused)"
		}
	}
	fmt.Printf("[%d/%d%s] > ", v.Current+1, v.Total, timer)
}

func printView(v runner.View) {
	fmt.Println()
	if v.Question == nil {
		fmt.Printf("State: %s\n", v.State)
		return
	}
	q := v.Question
	item := v.Items[v.Current]

	var tags []string
	if item.IsFlaggedByUser {
		tags = append(tags, "flagged")
	}
	if item.IsSubmitted {
		tags = append(tags, "submitted")
	}
	if item.IsPending {
		tags = append(tags, "sending")
	}
	header := fmt.Sprintf("Question %d of %d", v.Current+1, v.Total)
	if q.Subject != "" {
		header += " | " + q.Subject
	}
	if len(tags) > 0 {
		header += " [" + strings.Join(tags, ", ") + "]"
	}
	fmt.Println(header)
	fmt.Println(q.Prompt)

	selected := -1
	if v.Answer != nil && v.Answer.SelectedOptionIndex != nil {
		selected = *v.Answer.SelectedOptionIndex
	}
	for i, o := range q.Options {
		mark := " "
		if i == selected {
			mark = ">"
		}
		fmt.Printf("%s %d) %s\n", mark, i+1, o.Text)
	}
	if selected == model.SkippedAnswer {
		fmt.Println("  (skipped)")
	}
	if q.CorrectOption != nil && item.IsSubmitted {
		fmt.Printf("Correct answer: %d\n", *q.CorrectOption+1)
		if q.Explanation != nil && q.Explanation.Text != "" {
			fmt.Println(q.Explanation.Text)
		}
	}

	fmt.Printf("Answered %d/%d, submitted %d\n", v.Total-v.Unanswered, v.Total, v.Submitted)
	if v.LastError != "" {
		fmt.Printf("Last error: %s\n", v.LastError)
	}
}

func clock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
