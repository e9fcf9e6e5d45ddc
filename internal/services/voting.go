package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/civiclab/agora/internal/eligibility"
	"github.com/civiclab/agora/internal/entity"
	"github.com/civiclab/agora/internal/location"
	"github.com/civiclab/agora/internal/repo"
)

var (
	ErrValidation            = errors.New("validation error")
	ErrNotEligible           = errors.New("voter is not eligible for this poll")
	ErrAlreadyVoted          = errors.New("voter has already cast a ballot in this poll")
	ErrPollClosed            = errors.New("poll is not open for voting")
	ErrInvalidChoice         = errors.New("invalid choice")
	ErrInvalidRanking        = errors.New("invalid ranking")
	ErrMissingRequiredAnswer = errors.New("missing required answer")
	ErrNotPollOwner          = errors.New("user is not the poll owner")
)

type PollStorage interface {
	SavePoll(ctx context.Context, poll entity.Poll) (int64, error)
	GetPollByID(ctx context.Context, id int64) (entity.Poll, error)
	GetPolls(ctx context.Context) ([]entity.Poll, error)
	UpdatePoll(ctx context.Context, poll entity.Poll) error
}

type BallotStorage interface {
	InsertBallotIfAbsent(ctx context.Context, ballot entity.Ballot) error
	HasBallot(ctx context.Context, pollID, voterID int64) (bool, error)
	ListBallots(ctx context.Context, pollID int64) ([]entity.Ballot, error)
}

type LogStorage interface {
	SaveLog(ctx context.Context, log *entity.Log) (int64, error)
	GetLogs(ctx context.Context) ([]entity.Log, error)
}

type LocationResolver interface {
	Resolve(ctx context.Context, in location.Input) (entity.VoterLocation, error)
}

// RankScorer converts a 1-based rank from a ballot that ranked k options
// into points for the ranked option.
type RankScorer func(k, rank int) int

// BordaScore is the default scorer: top rank earns k points, the last
// ranked option earns 1, unranked options earn nothing.
func BordaScore(k, rank int) int {
	return k - rank + 1
}

type Voting struct {
	log           *slog.Logger
	pollStorage   PollStorage
	ballotStorage BallotStorage
	logStorage    LogStorage
	resolver      LocationResolver
	scorer        RankScorer
	now           func() time.Time
}

func NewVoting(
	log *slog.Logger,
	pollStorage PollStorage,
	ballotStorage BallotStorage,
	logStorage LogStorage,
	resolver LocationResolver,
) *Voting {
	return &Voting{
		log:           log,
		pollStorage:   pollStorage,
		ballotStorage: ballotStorage,
		logStorage:    logStorage,
		resolver:      resolver,
		scorer:        BordaScore,
		now:           time.Now,
	}
}

func (v *Voting) CreatePoll(ctx context.Context, poll entity.Poll) (int64, error) {
	const op = "Voting.CreatePoll"

	if poll.Title == "" {
		return 0, fmt.Errorf("%w: title is empty", ErrValidation)
	}
	if err := poll.Scope.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if !poll.EndDate.After(poll.StartDate) {
		return 0, fmt.Errorf("%w: end date must be after start date", ErrValidation)
	}
	switch poll.Method {
	case entity.MethodSurvey:
		if len(poll.Questions) == 0 {
			return 0, fmt.Errorf("%w: survey needs at least one question", ErrValidation)
		}
	case entity.MethodSingleChoice, entity.MethodMultipleChoice, entity.MethodRanking:
		if len(poll.Options) == 0 {
			return 0, fmt.Errorf("%w: poll needs at least one option", ErrValidation)
		}
	default:
		return 0, fmt.Errorf("%w: unknown voting method %q", ErrValidation, poll.Method)
	}

	pollID, err := v.pollStorage.SavePoll(ctx, poll)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	v.saveLog(ctx, &entity.Log{PollID: &pollID, UserID: poll.CreatorID, Action: op})

	return pollID, nil
}

func (v *Voting) GetPollByID(ctx context.Context, id int64) (entity.Poll, error) {
	const op = "Voting.GetPollByID"

	poll, err := v.pollStorage.GetPollByID(ctx, id)
	if err != nil {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	return poll, nil
}

func (v *Voting) GetPolls(ctx context.Context) ([]entity.Poll, error) {
	const op = "Voting.GetPolls"

	polls, err := v.pollStorage.GetPolls(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return polls, nil
}

// ExtendPoll pushes a poll's end date forward. Only the owner may extend,
// and the new end date must be strictly after the current one.
func (v *Voting) ExtendPoll(ctx context.Context, pollID int64, userID int64, newEnd time.Time) error {
	const op = "Voting.ExtendPoll"

	poll, err := v.pollStorage.GetPollByID(ctx, pollID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if poll.CreatorID != userID {
		return fmt.Errorf("%s: %w", op, ErrNotPollOwner)
	}

	if err := poll.ExtendEndDate(newEnd); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := v.pollStorage.UpdatePoll(ctx, poll); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	v.saveLog(ctx, &entity.Log{PollID: &pollID, UserID: userID, Action: op})

	return nil
}

func (v *Voting) DeactivatePoll(ctx context.Context, pollID int64, userID int64) error {
	const op = "Voting.DeactivatePoll"

	poll, err := v.pollStorage.GetPollByID(ctx, pollID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if poll.CreatorID != userID {
		return fmt.Errorf("%s: %w", op, ErrNotPollOwner)
	}

	poll.IsActive = false
	if err := v.pollStorage.UpdatePoll(ctx, poll); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	v.saveLog(ctx, &entity.Log{PollID: &pollID, UserID: userID, Action: op})

	return nil
}

// CastBallot runs the full submission pipeline: eligibility, uniqueness,
// temporal and structural gates, then atomic acceptance. A persistence
// conflict on (poll, voter) is reported as ErrAlreadyVoted.
func (v *Voting) CastBallot(
	ctx context.Context,
	pollID int64,
	voterID int64,
	loc location.Input,
	payload entity.BallotPayload,
) (entity.Ballot, error) {
	const op = "Voting.CastBallot"

	poll, err := v.pollStorage.GetPollByID(ctx, pollID)
	if err != nil {
		return entity.Ballot{}, fmt.Errorf("%s: %w", op, err)
	}

	// Resolution failures leave the ids absent and eligibility fails
	// closed below; only Global skips resolution entirely.
	var voterLoc entity.VoterLocation
	if poll.Scope.Kind != entity.ScopeGlobal {
		voterLoc, err = v.resolver.Resolve(ctx, loc)
		if err != nil {
			v.log.Warn("location resolution degraded",
				slog.Int64("poll_id", pollID), slog.String("error", err.Error()))
		}
	}

	if !eligibility.Eligible(poll.Scope, voterLoc) {
		return entity.Ballot{}, fmt.Errorf("%s: %w", op, ErrNotEligible)
	}

	// Advisory fast path; the unique constraint at insert time is the
	// authoritative gate under concurrency.
	voted, err := v.ballotStorage.HasBallot(ctx, pollID, voterID)
	if err != nil {
		return entity.Ballot{}, fmt.Errorf("%s: %w", op, err)
	}
	if voted {
		return entity.Ballot{}, fmt.Errorf("%s: %w", op, ErrAlreadyVoted)
	}

	if !poll.IsOpenAt(v.now()) {
		return entity.Ballot{}, fmt.Errorf("%s: %w", op, ErrPollClosed)
	}

	if err := validateBallot(poll, payload); err != nil {
		return entity.Ballot{}, fmt.Errorf("%s: %w", op, err)
	}

	ballot := entity.Ballot{
		ID:          uuid.NewString(),
		PollID:      pollID,
		VoterID:     voterID,
		SubmittedAt: v.now(),
		Payload:     payload,
	}

	if err := v.ballotStorage.InsertBallotIfAbsent(ctx, ballot); err != nil {
		if errors.Is(err, repo.ErrBallotConflict) {
			return entity.Ballot{}, fmt.Errorf("%s: %w", op, ErrAlreadyVoted)
		}
		return entity.Ballot{}, fmt.Errorf("%s: %w", op, err)
	}

	v.saveLog(ctx, &entity.Log{PollID: &pollID, UserID: voterID, Action: op, BallotID: &ballot.ID})

	return ballot, nil
}

func (v *Voting) GetLogs(ctx context.Context) ([]entity.Log, error) {
	const op = "Voting.GetLogs"

	logs, err := v.logStorage.GetLogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return logs, nil
}

// saveLog records an audit entry; logging failures never fail the action.
func (v *Voting) saveLog(ctx context.Context, log *entity.Log) {
	if _, err := v.logStorage.SaveLog(ctx, log); err != nil {
		v.log.Error("failed to save action log",
			slog.String("action", log.Action), slog.String("error", err.Error()))
	}
}
