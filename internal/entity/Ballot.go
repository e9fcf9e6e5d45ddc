package entity

import "time"

// BallotPayload carries the voter's choices for every voting method. Simple
// polls fill Choices, ranking polls fill Ranks (option id -> 1-based rank),
// surveys fill Answers keyed by question id.
type BallotPayload struct {
	Choices []int64                  `json:"choices,omitempty"`
	Ranks   map[int64]int            `json:"ranks,omitempty"`
	Answers map[int64]QuestionAnswer `json:"answers,omitempty"`
}

type QuestionAnswer struct {
	Choices []int64       `json:"choices,omitempty"`
	Ranks   map[int64]int `json:"ranks,omitempty"`
}

// Empty reports whether the answer carries no selection at all.
func (a QuestionAnswer) Empty() bool {
	return len(a.Choices) == 0 && len(a.Ranks) == 0
}

// Ballot is an accepted, immutable vote record. At most one ballot exists
// per (PollID, VoterID).
type Ballot struct {
	ID          string
	PollID      int64
	VoterID     int64
	SubmittedAt time.Time
	Payload     BallotPayload
}
