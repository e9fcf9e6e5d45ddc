package entity

import "time"

// OptionResult holds the aggregates for a single option. The ranking fields
// are zero-valued for simple polls.
type OptionResult struct {
	OptionID         int64       `json:"option_id"`
	Text             string      `json:"text"`
	VoteCount        int         `json:"vote_count"`
	Percentage       float64     `json:"percentage"`
	TotalPoints      int         `json:"total_points,omitempty"`
	FirstPlaceVotes  int         `json:"first_place_votes,omitempty"`
	AverageRank      float64     `json:"average_rank,omitempty"`
	RankDistribution map[int]int `json:"rank_distribution,omitempty"`
}

type QuestionResult struct {
	QuestionID int64          `json:"question_id"`
	Type       QuestionType   `json:"type"`
	Text       string         `json:"text"`
	Answered   int            `json:"answered"`
	Options    []OptionResult `json:"options"`
}

// ResultSet is recomputed from the accepted ballots on every request;
// ballots stay the source of truth.
type ResultSet struct {
	PollID       int64            `json:"poll_id"`
	Method       VotingMethod     `json:"method"`
	TotalBallots int              `json:"total_ballots"`
	Options      []OptionResult   `json:"options,omitempty"`
	Questions    []QuestionResult `json:"questions,omitempty"`
	ComputedAt   time.Time        `json:"computed_at"`
}
