package services

import (
	"context"
	"fmt"

	"github.com/civiclab/agora/internal/entity"
)

// Results recomputes a poll's result set from its full accepted-ballot set.
// Read only; safe to call concurrently with ballot submission. The listing
// is a storage-level snapshot and may trail the newest ballots.
func (v *Voting) Results(ctx context.Context, pollID int64) (entity.ResultSet, error) {
	const op = "Voting.Results"

	poll, err := v.pollStorage.GetPollByID(ctx, pollID)
	if err != nil {
		return entity.ResultSet{}, fmt.Errorf("%s: %w", op, err)
	}

	ballots, err := v.ballotStorage.ListBallots(ctx, pollID)
	if err != nil {
		return entity.ResultSet{}, fmt.Errorf("%s: %w", op, err)
	}

	rs := entity.ResultSet{
		PollID:       poll.ID,
		Method:       poll.Method,
		TotalBallots: len(ballots),
		ComputedAt:   v.now(),
	}

	switch poll.Method {
	case entity.MethodSingleChoice, entity.MethodMultipleChoice:
		selections := make([][]int64, 0, len(ballots))
		for _, b := range ballots {
			selections = append(selections, b.Payload.Choices)
		}
		rs.Options = tallyChoices(poll.Options, selections)

	case entity.MethodRanking:
		rankings := make([]map[int64]int, 0, len(ballots))
		for _, b := range ballots {
			rankings = append(rankings, b.Payload.Ranks)
		}
		rs.Options = tallyRanks(poll.Options, rankings, v.scorer)

	case entity.MethodSurvey:
		rs.Questions = tallySurvey(poll.Questions, ballots, v.scorer)
	}

	return rs, nil
}

// tallyChoices counts votes per option. Percentages are relative to the
// number of ballots, zero-filled when there are none. The returned slice
// follows the poll's canonical option order.
func tallyChoices(options []entity.Option, selections [][]int64) []entity.OptionResult {
	declared := optionSet(options)

	counts := make(map[int64]int, len(options))
	for _, selection := range selections {
		for _, id := range selection {
			if _, ok := declared[id]; ok {
				counts[id]++
			}
		}
	}

	total := len(selections)
	results := make([]entity.OptionResult, 0, len(options))
	for _, option := range options {
		r := entity.OptionResult{
			OptionID:  option.ID,
			Text:      option.Text,
			VoteCount: counts[option.ID],
		}
		if total > 0 {
			r.Percentage = float64(r.VoteCount) / float64(total) * 100
		}
		results = append(results, r)
	}

	return results
}

// tallyRanks computes the point-based aggregates for a ranking poll.
// AverageRank only covers ballots that ranked the option; unranked options
// contribute no points and no rank samples. Canonical option order doubles
// as the stable tie-break for equal point totals.
func tallyRanks(options []entity.Option, rankings []map[int64]int, scorer RankScorer) []entity.OptionResult {
	declared := optionSet(options)

	points := make(map[int64]int, len(options))
	firstPlace := make(map[int64]int, len(options))
	rankSum := make(map[int64]int, len(options))
	rankCount := make(map[int64]int, len(options))
	distribution := make(map[int64]map[int]int, len(options))

	for _, ranks := range rankings {
		k := len(ranks)
		for id, rank := range ranks {
			if _, ok := declared[id]; !ok {
				continue
			}
			points[id] += scorer(k, rank)
			rankSum[id] += rank
			rankCount[id]++
			if rank == 1 {
				firstPlace[id]++
			}
			if distribution[id] == nil {
				distribution[id] = make(map[int]int)
			}
			distribution[id][rank]++
		}
	}

	totalPoints := 0
	for _, p := range points {
		totalPoints += p
	}

	results := make([]entity.OptionResult, 0, len(options))
	for _, option := range options {
		r := entity.OptionResult{
			OptionID:         option.ID,
			Text:             option.Text,
			VoteCount:        rankCount[option.ID],
			TotalPoints:      points[option.ID],
			FirstPlaceVotes:  firstPlace[option.ID],
			RankDistribution: distribution[option.ID],
		}
		if totalPoints > 0 {
			r.Percentage = float64(r.TotalPoints) / float64(totalPoints) * 100
		}
		if rankCount[option.ID] > 0 {
			r.AverageRank = float64(rankSum[option.ID]) / float64(rankCount[option.ID])
		}
		results = append(results, r)
	}

	return results
}

// tallySurvey aggregates every question independently with the rule matching
// its type. Sub-questions carry no special weighting. Percentages are
// relative to the ballots that answered the question.
func tallySurvey(questions []entity.Question, ballots []entity.Ballot, scorer RankScorer) []entity.QuestionResult {
	results := make([]entity.QuestionResult, 0, len(questions))

	for _, q := range questions {
		var selections [][]int64
		var rankings []map[int64]int

		for _, b := range ballots {
			answer, ok := b.Payload.Answers[q.ID]
			if !ok || answer.Empty() {
				continue
			}
			switch q.Type {
			case entity.QuestionSingleChoice, entity.QuestionMultipleChoice:
				selections = append(selections, answer.Choices)
			case entity.QuestionOrdering:
				rankings = append(rankings, answer.Ranks)
			}
		}

		qr := entity.QuestionResult{
			QuestionID: q.ID,
			Type:       q.Type,
			Text:       q.Text,
		}
		switch q.Type {
		case entity.QuestionOrdering:
			qr.Answered = len(rankings)
			qr.Options = tallyRanks(q.Answers, rankings, scorer)
		default:
			qr.Answered = len(selections)
			qr.Options = tallyChoices(q.Answers, selections)
		}

		results = append(results, qr)
	}

	return results
}

func optionSet(options []entity.Option) map[int64]struct{} {
	set := make(map[int64]struct{}, len(options))
	for _, o := range options {
		set[o.ID] = struct{}{}
	}
	return set
}
