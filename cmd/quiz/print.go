package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/response"
	"github.com/stemsi/exstem-runner/internal/results"
)

func table() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func printUser(u *model.User) {
	if u == nil {
		fmt.Println("Not logged in.")
		return
	}
	fmt.Printf("%s <%s>\nRole: %s\n", u.Name, u.Email, u.Role)
	if u.Plan != "" {
		fmt.Printf("Plan: %s\n", u.Plan)
	}
}

func printCatalog(cat *model.Catalog) {
	for _, c := range cat.Categories {
		fmt.Println(c.Name)
		for _, s := range c.Subjects {
			fmt.Printf("  %s\n", s.Name)
			for _, t := range s.Topics {
				fmt.Printf("    %s\n", t)
			}
		}
	}
}

func printHistory(entries []results.Entry) {
	if len(entries) == 0 {
		fmt.Println("No tests yet.")
		return
	}
	w := table()
	fmt.Fprintln(w, "ID\tDATE\tSTATUS\tQUESTIONS\tSCORE")
	for _, e := range entries {
		score := "-"
		if e.Score != nil {
			score = fmt.Sprintf("%.0f%%", *e.Score)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", e.TestSessionID, e.CreatedAt.Format("2006-01-02 15:04"), e.Status, e.TotalQuestions, score)
	}
	_ = w.Flush()
}

func printSummary(s *results.Summary, review bool) {
	fmt.Println()
	fmt.Println("=== Result ===")
	if s.Score != nil {
		fmt.Printf("Score: %.0f%%\n", *s.Score)
	}
	fmt.Printf("Correct %d, incorrect %d, skipped %d of %d (accuracy %.1f%%)\n",
		s.Correct, s.Incorrect, s.Skipped, s.Total, s.Accuracy)
	fmt.Printf("Time %ds, %.1fs per question\n", s.TotalTime, s.AverageTime)

	if len(s.ByCategory) > 1 || len(s.BySubject) > 1 || len(s.ByDifficulty) > 1 {
		w := table()
		fmt.Fprintln(w, "\nGROUP\tCORRECT\tTOTAL\tACCURACY")
		for _, group := range [][]results.Breakdown{s.ByCategory, s.BySubject, s.ByDifficulty} {
			for _, b := range group {
				fmt.Fprintf(w, "%s\t%d\t%d\t%.1f%%\n", b.Key, b.Correct, b.Total, b.Accuracy)
			}
		}
		_ = w.Flush()
	}

	if len(s.Flagged) > 0 {
		fmt.Printf("Flagged: %s\n", strings.Join(s.Flagged, ", "))
	}
	if !review {
		return
	}
	for i, it := range s.Items {
		mark := "x"
		switch {
		case it.Skipped:
			mark = "-"
		case it.IsCorrect:
			mark = "v"
		}
		fmt.Printf("%s %2d. %s", mark, i+1, it.QuestionID)
		if !it.Skipped {
			fmt.Printf("  chose %d, correct %d", it.SelectedAnswer+1, it.CorrectAnswer+1)
		}
		fmt.Println()
	}
}

func printPage(p *response.Pagination) {
	if p == nil {
		return
	}
	fmt.Printf("Page %d of %d (%d total)\n", p.Page, p.TotalPages, p.TotalItems)
}

func printUsers(users []model.User, p *response.Pagination) {
	w := table()
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tPLAN")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role, u.Plan)
	}
	_ = w.Flush()
	printPage(p)
}

func printQuestions(qs []model.Question, p *response.Pagination) {
	w := table()
	fmt.Fprintln(w, "ID\tSUBJECT\tTOPIC\tDIFFICULTY\tQUESTION")
	for _, q := range qs {
		prompt := q.Prompt
		if len(prompt) > 60 {
			prompt = prompt[:57] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", q.ID, q.Subject, q.Topic, q.Difficulty, prompt)
	}
	_ = w.Flush()
	printPage(p)
}
