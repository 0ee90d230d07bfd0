package model

// QuestionStatus filters the bank by the student's history with each question.
type QuestionStatus string

const (
	QuestionStatusAll         QuestionStatus = "all"
	QuestionStatusUnattempted QuestionStatus = "unattempted"
	QuestionStatusAttempted   QuestionStatus = "attempted"
	QuestionStatusIncorrect   QuestionStatus = "incorrect"
	QuestionStatusSkipped     QuestionStatus = "skipped"
)

// Criteria selects a pool of questions.
type Criteria struct {
	Category   string         `json:"category,omitempty" form:"category"`
	Subject    string         `json:"subject,omitempty" form:"subject"`
	Topic      string         `json:"topic,omitempty" form:"topic"`
	Difficulty Difficulty     `json:"difficulty,omitempty" form:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Status     QuestionStatus `json:"status,omitempty" form:"status" validate:"omitempty,oneof=all unattempted attempted incorrect skipped"`
}

// Catalog is the category → subject → topic tree used by the selector pickers.
type Catalog struct {
	Categories []CatalogCategory `json:"categories"`
}

type CatalogCategory struct {
	Name     string           `json:"name" validate:"required"`
	Subjects []CatalogSubject `json:"subjects"`
}

type CatalogSubject struct {
	Name   string   `json:"name" validate:"required"`
	Topics []string `json:"topics"`
}

// QuestionPool is the response of a question id query.
type QuestionPool struct {
	QuestionIDs []string `json:"questionIds"`
	Total       int      `json:"total"`
}
