package entity

import (
	"errors"
	"time"
)

type VotingMethod string

const (
	MethodSingleChoice   VotingMethod = "single_choice"
	MethodMultipleChoice VotingMethod = "multiple_choice"
	MethodRanking        VotingMethod = "ranking"
	MethodSurvey         VotingMethod = "survey"
)

type QuestionType string

const (
	QuestionSingleChoice   QuestionType = "single_choice"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionOrdering       QuestionType = "ordering"
)

var ErrEndDateNotExtended = errors.New("new end date must be after current end date")

type Poll struct {
	ID          int64
	Title       string
	Description string
	CreatorID   int64
	Method      VotingMethod
	Scope       LocationScope
	Options     []Option
	Questions   []Question
	IsActive    bool
	StartDate   time.Time
	EndDate     time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Option struct {
	ID   int64
	Text string
}

type Question struct {
	ID       int64
	ParentID *int64
	Type     QuestionType
	Text     string
	Required bool
	Answers  []Option
}

// IsOpenAt reports whether a ballot may be cast at the given instant.
func (p Poll) IsOpenAt(t time.Time) bool {
	if !p.IsActive {
		return false
	}
	if t.Before(p.StartDate) || t.After(p.EndDate) {
		return false
	}
	return true
}

// ExtendEndDate pushes the end date forward. An end date never moves
// backward; a violating extension is rejected, not clamped.
func (p *Poll) ExtendEndDate(newEnd time.Time) error {
	if !newEnd.After(p.EndDate) {
		return ErrEndDateNotExtended
	}
	p.EndDate = newEnd
	return nil
}

// HasOption reports whether id belongs to the poll's option set.
func (p Poll) HasOption(id int64) bool {
	for _, o := range p.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// QuestionByID returns the declared question with the given id.
func (p Poll) QuestionByID(id int64) (Question, bool) {
	for _, q := range p.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// HasAnswer reports whether id belongs to the question's answer set.
func (q Question) HasAnswer(id int64) bool {
	for _, a := range q.Answers {
		if a.ID == id {
			return true
		}
	}
	return false
}
