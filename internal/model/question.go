package model

// Difficulty levels accepted by the question bank.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Media is a reference to an uploaded asset attached to a prompt, option or explanation.
type Media struct {
	URL  string `json:"url" validate:"required"`
	Type string `json:"type"`
	Alt  string `json:"alt,omitempty"`
}

// Option is one choice of a multiple-choice question.
type Option struct {
	Text  string  `json:"text"`
	Media []Media `json:"media,omitempty" validate:"dive"`
}

// Explanation is shown after the question has been answered.
type Explanation struct {
	Text  string  `json:"text"`
	Media []Media `json:"media,omitempty" validate:"dive"`
}

// Question is immutable from the client's perspective during a run.
type Question struct {
	ID      string   `json:"id" validate:"required"`
	Prompt  string   `json:"question"`
	Media   []Media  `json:"media,omitempty" validate:"dive"`
	Options []Option `json:"options" validate:"dive"`
	// CorrectOption is only populated by the server once the question was submitted.
	CorrectOption *int         `json:"correctOption,omitempty"`
	Explanation   *Explanation `json:"explanation,omitempty"`
	Category      string       `json:"category"`
	Subject       string       `json:"subject"`
	Topic         string       `json:"topic"`
	Tags          []string     `json:"tags,omitempty"`
	Difficulty    Difficulty   `json:"difficulty"`
}

// Normalize fills absent optional collections so renderers never branch on nil.
func (q *Question) Normalize() {
	if q.Media == nil {
		q.Media = []Media{}
	}
	if q.Options == nil {
		q.Options = []Option{}
	}
	for i := range q.Options {
		if q.Options[i].Media == nil {
			q.Options[i].Media = []Media{}
		}
	}
	if q.Explanation != nil && q.Explanation.Media == nil {
		q.Explanation.Media = []Media{}
	}
	if q.Tags == nil {
		q.Tags = []string{}
	}
}

// QuestionInput is the admin payload for creating or updating a question.
type QuestionInput struct {
	Prompt        string       `json:"question" validate:"required,max=4000"`
	Options       []Option     `json:"options" validate:"required,min=2,max=10,dive"`
	CorrectOption int          `json:"correctOption" validate:"min=0"`
	Explanation   *Explanation `json:"explanation,omitempty"`
	Category      string       `json:"category" validate:"required"`
	Subject       string       `json:"subject" validate:"required"`
	Topic         string       `json:"topic"`
	Tags          []string     `json:"tags,omitempty"`
	Difficulty    Difficulty   `json:"difficulty" validate:"required,oneof=easy medium hard"`
}
