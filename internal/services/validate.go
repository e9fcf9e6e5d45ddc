package services

import (
	"fmt"

	"github.com/civiclab/agora/internal/entity"
)

// QuestionError scopes a structural rejection to the offending survey
// question. It unwraps to the underlying rejection kind.
type QuestionError struct {
	QuestionID int64
	Err        error
}

func (e *QuestionError) Error() string {
	return fmt.Sprintf("question %d: %s", e.QuestionID, e.Err)
}

func (e *QuestionError) Unwrap() error {
	return e.Err
}

// validateBallot checks the payload shape against the poll's voting method.
// It runs after the eligibility, uniqueness and temporal gates.
func validateBallot(poll entity.Poll, payload entity.BallotPayload) error {
	switch poll.Method {
	case entity.MethodSingleChoice:
		return validateChoices(poll.HasOption, payload.Choices, true)
	case entity.MethodMultipleChoice:
		return validateChoices(poll.HasOption, payload.Choices, false)
	case entity.MethodRanking:
		return validateRanks(poll.HasOption, payload.Ranks)
	case entity.MethodSurvey:
		return validateSurvey(poll, payload.Answers)
	}
	return fmt.Errorf("%w: unknown voting method %q", ErrValidation, poll.Method)
}

// validateChoices enforces the choice-set rules: exactly one id for single
// choice, distinct ids referencing declared options otherwise. An empty
// selection is valid for multiple choice.
func validateChoices(hasOption func(int64) bool, choices []int64, exactlyOne bool) error {
	if exactlyOne && len(choices) != 1 {
		return ErrInvalidChoice
	}

	seen := make(map[int64]struct{}, len(choices))
	for _, id := range choices {
		if _, dup := seen[id]; dup {
			return ErrInvalidChoice
		}
		seen[id] = struct{}{}
		if !hasOption(id) {
			return ErrInvalidChoice
		}
	}

	return nil
}

// validateRanks enforces injectivity: positive ranks, no rank assigned
// twice, every ranked id declared. Ranks may be sparse; they need not
// cover all options.
func validateRanks(hasOption func(int64) bool, ranks map[int64]int) error {
	if len(ranks) == 0 {
		return ErrInvalidRanking
	}

	seen := make(map[int]struct{}, len(ranks))
	for id, rank := range ranks {
		if rank < 1 {
			return ErrInvalidRanking
		}
		if _, dup := seen[rank]; dup {
			return ErrInvalidRanking
		}
		seen[rank] = struct{}{}
		if !hasOption(id) {
			return ErrInvalidRanking
		}
	}

	return nil
}

func validateSurvey(poll entity.Poll, answers map[int64]entity.QuestionAnswer) error {
	for _, q := range poll.Questions {
		answer, present := answers[q.ID]
		if !present || answer.Empty() {
			if q.Required {
				return &QuestionError{QuestionID: q.ID, Err: ErrMissingRequiredAnswer}
			}
			continue
		}

		var err error
		switch q.Type {
		case entity.QuestionSingleChoice:
			err = validateChoices(q.HasAnswer, answer.Choices, true)
		case entity.QuestionMultipleChoice:
			err = validateChoices(q.HasAnswer, answer.Choices, false)
		case entity.QuestionOrdering:
			err = validateRanks(q.HasAnswer, answer.Ranks)
		default:
			err = ErrValidation
		}
		if err != nil {
			return &QuestionError{QuestionID: q.ID, Err: err}
		}
	}

	// answers to undeclared questions are rejected, scoped to that id
	for id := range answers {
		if _, ok := poll.QuestionByID(id); !ok {
			return &QuestionError{QuestionID: id, Err: ErrInvalidChoice}
		}
	}

	return nil
}
