// Package results builds the result and history views from the server's scored
// sessions. Correctness always comes from the server's review data.
package results

import (
	"sort"
	"strings"

	"github.com/stemsi/exstem-runner/internal/model"
)

// Breakdown aggregates review items sharing a category, subject or difficulty.
type Breakdown struct {
	Key       string  `json:"key"`
	Total     int     `json:"total"`
	Correct   int     `json:"correct"`
	Incorrect int     `json:"incorrect"`
	Skipped   int     `json:"skipped"`
	Accuracy  float64 `json:"accuracy"`
}

// Item is one reviewed question annotated with the user's local flag.
type Item struct {
	model.ReviewItem
	Flagged bool `json:"flagged"`
	Skipped bool `json:"skipped"`
}

// Summary is the result page of one finalized session.
type Summary struct {
	TestSessionID string           `json:"testSessionId"`
	Status        model.TestStatus `json:"status"`
	Score         *float64         `json:"score,omitempty"`
	Total         int              `json:"total"`
	Correct       int              `json:"correct"`
	Incorrect     int              `json:"incorrect"`
	Skipped       int              `json:"skipped"`
	// Accuracy is correct over answered (skipped excluded), in percent.
	Accuracy     float64     `json:"accuracy"`
	TotalTime    int         `json:"totalTime"`
	AverageTime  float64     `json:"averageTime"`
	ByCategory   []Breakdown `json:"byCategory"`
	BySubject    []Breakdown `json:"bySubject"`
	ByDifficulty []Breakdown `json:"byDifficulty"`
	Flagged      []string    `json:"flagged"`
	SkippedIDs   []string    `json:"skippedIds"`
	Items        []Item      `json:"items"`
}

// Summarize builds the Summary of a scored session. flagged holds the question ids
// the user bookmarked during the run; it may be empty.
func Summarize(s *model.TestSession, flagged []string) Summary {
	sum := Summary{
		TestSessionID: s.ID,
		Status:        s.Status,
		Score:         s.Score,
		Total:         s.TotalQuestions,
		Flagged:       []string{},
		SkippedIDs:    []string{},
		Items:         make([]Item, 0, len(s.Review)),
	}

	isFlagged := make(map[string]bool, len(flagged))
	for _, id := range flagged {
		isFlagged[id] = true
	}
	byID := make(map[string]*model.Question, len(s.Questions))
	for i := range s.Questions {
		byID[s.Questions[i].ID] = &s.Questions[i]
	}

	cats := newGroup()
	subs := newGroup()
	diffs := newGroup()

	for _, r := range s.Review {
		item := Item{
			ReviewItem: r,
			Flagged:    isFlagged[r.QuestionID],
			Skipped:    r.SelectedAnswer == model.SkippedAnswer,
		}
		q := r.Question
		if q == nil {
			q = byID[r.QuestionID]
		}

		switch {
		case item.Skipped:
			sum.Skipped++
			sum.SkippedIDs = append(sum.SkippedIDs, r.QuestionID)
		case r.IsCorrect:
			sum.Correct++
		default:
			sum.Incorrect++
		}
		if item.Flagged {
			sum.Flagged = append(sum.Flagged, r.QuestionID)
		}
		sum.TotalTime += r.TimeTaken

		if q != nil {
			cats.add(q.Category, item)
			subs.add(q.Subject, item)
			diffs.add(string(q.Difficulty), item)
		}
		sum.Items = append(sum.Items, item)
	}

	// Server totals win over counts derived from the review list.
	if s.CorrectAnswers != nil {
		sum.Correct = *s.CorrectAnswers
	}
	if s.IncorrectAnswers != nil {
		sum.Incorrect = *s.IncorrectAnswers
	}
	if sum.Total == 0 {
		sum.Total = len(s.Review)
	}

	sum.Accuracy = percent(sum.Correct, sum.Correct+sum.Incorrect)
	if len(s.Review) > 0 {
		sum.AverageTime = float64(sum.TotalTime) / float64(len(s.Review))
	}
	sum.ByCategory = cats.list()
	sum.BySubject = subs.list()
	sum.ByDifficulty = diffs.list()
	return sum
}

type group struct {
	order []string
	by    map[string]*Breakdown
}

func newGroup() *group {
	return &group{by: make(map[string]*Breakdown)}
}

func (g *group) add(key string, it Item) {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "uncategorized"
	}
	b, ok := g.by[key]
	if !ok {
		b = &Breakdown{Key: key}
		g.by[key] = b
		g.order = append(g.order, key)
	}
	b.Total++
	switch {
	case it.Skipped:
		b.Skipped++
	case it.IsCorrect:
		b.Correct++
	default:
		b.Incorrect++
	}
}

func (g *group) list() []Breakdown {
	out := make([]Breakdown, 0, len(g.order))
	for _, k := range g.order {
		b := *g.by[k]
		b.Accuracy = percent(b.Correct, b.Correct+b.Incorrect)
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) * 100 / float64(d)
}
