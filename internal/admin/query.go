package admin

import (
	"cmp"
	"slices"
	"strings"

	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/response"
)

// Query is the client-side search/sort/page state of an admin list.
type Query struct {
	Search  string `form:"search" json:"search"`
	SortBy  string `form:"sort_by" json:"sortBy"`
	Order   string `form:"order" json:"order" binding:"omitempty,oneof=asc desc"`
	Page    int    `form:"page" json:"page"`
	PerPage int    `form:"per_page" json:"perPage"`
}

// Desc reports whether the list is sorted descending.
func (q Query) Desc() bool {
	return strings.EqualFold(q.Order, "desc")
}

// SearchUsers keeps users whose name or email contains term, case-insensitively.
func SearchUsers(users []model.User, term string) []model.User {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return users
	}
	out := make([]model.User, 0, len(users))
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Name), term) ||
			strings.Contains(strings.ToLower(u.Email), term) {
			out = append(out, u)
		}
	}
	return out
}

// SortUsers sorts in place by name, email, role, plan or createdAt. Unknown fields
// keep the server order.
func SortUsers(users []model.User, field string, desc bool) {
	var less func(a, b model.User) int
	switch field {
	case "name":
		less = func(a, b model.User) int { return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)) }
	case "email":
		less = func(a, b model.User) int { return cmp.Compare(strings.ToLower(a.Email), strings.ToLower(b.Email)) }
	case "role":
		less = func(a, b model.User) int { return cmp.Compare(a.Role, b.Role) }
	case "plan":
		less = func(a, b model.User) int { return cmp.Compare(a.Plan, b.Plan) }
	case "createdAt", "created_at":
		less = func(a, b model.User) int {
			switch {
			case a.CreatedAt == nil && b.CreatedAt == nil:
				return 0
			case a.CreatedAt == nil:
				return -1
			case b.CreatedAt == nil:
				return 1
			}
			return a.CreatedAt.Compare(*b.CreatedAt)
		}
	default:
		return
	}
	slices.SortStableFunc(users, direction(less, desc))
}

// SearchQuestions keeps questions whose prompt, category, subject, topic or tags
// contain term, case-insensitively.
func SearchQuestions(qs []model.Question, term string) []model.Question {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return qs
	}
	out := make([]model.Question, 0, len(qs))
	for _, q := range qs {
		if questionMatches(q, term) {
			out = append(out, q)
		}
	}
	return out
}

func questionMatches(q model.Question, term string) bool {
	for _, s := range []string{q.Prompt, q.Category, q.Subject, q.Topic} {
		if strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	for _, tag := range q.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

var difficultyRank = map[model.Difficulty]int{
	model.DifficultyEasy:   1,
	model.DifficultyMedium: 2,
	model.DifficultyHard:   3,
}

// SortQuestions sorts in place by question, category, subject, topic or difficulty.
func SortQuestions(qs []model.Question, field string, desc bool) {
	var less func(a, b model.Question) int
	switch field {
	case "question", "prompt":
		less = func(a, b model.Question) int { return cmp.Compare(strings.ToLower(a.Prompt), strings.ToLower(b.Prompt)) }
	case "category":
		less = func(a, b model.Question) int { return cmp.Compare(a.Category, b.Category) }
	case "subject":
		less = func(a, b model.Question) int { return cmp.Compare(a.Subject, b.Subject) }
	case "topic":
		less = func(a, b model.Question) int { return cmp.Compare(a.Topic, b.Topic) }
	case "difficulty":
		less = func(a, b model.Question) int {
			return cmp.Compare(difficultyRank[a.Difficulty], difficultyRank[b.Difficulty])
		}
	default:
		return
	}
	slices.SortStableFunc(qs, direction(less, desc))
}

func direction[T any](f func(a, b T) int, desc bool) func(a, b T) int {
	if !desc {
		return f
	}
	return func(a, b T) int { return f(b, a) }
}

// Paginate slices items the way the list endpoints page: page starts at 1, per
// page defaults to 10 and caps at 100.
func Paginate[T any](items []T, page, perPage int) ([]T, *response.Pagination) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	total := len(items)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	return items[start:end], &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
}
