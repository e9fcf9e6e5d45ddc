package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civiclab/agora/internal/entity"
	"github.com/civiclab/agora/internal/location"
)

func TestCreatePoll_Validation(t *testing.T) {
	f := newTestVoting()
	ctx := context.Background()

	t.Run("empty title", func(t *testing.T) {
		poll := openPoll(entity.MethodSingleChoice, globalScope())
		poll.Title = ""
		_, err := f.voting.CreatePoll(ctx, poll)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("geofence without radius", func(t *testing.T) {
		poll := openPoll(entity.MethodSingleChoice, entity.LocationScope{Kind: entity.ScopeGeofenced})
		_, err := f.voting.CreatePoll(ctx, poll)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("end before start", func(t *testing.T) {
		poll := openPoll(entity.MethodSingleChoice, globalScope())
		poll.EndDate = poll.StartDate.Add(-time.Minute)
		_, err := f.voting.CreatePoll(ctx, poll)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("survey without questions", func(t *testing.T) {
		poll := openPoll(entity.MethodSurvey, globalScope())
		poll.Questions = nil
		_, err := f.voting.CreatePoll(ctx, poll)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("valid poll", func(t *testing.T) {
		id, err := f.voting.CreatePoll(ctx, openPoll(entity.MethodSingleChoice, globalScope()))
		require.NoError(t, err)
		assert.NotZero(t, id)
	})
}

func TestCastBallot_GlobalSingleChoice(t *testing.T) {
	f := newTestVoting()
	ctx := context.Background()

	pollID, err := f.voting.CreatePoll(ctx, openPoll(entity.MethodSingleChoice, globalScope()))
	require.NoError(t, err)

	ballot, err := f.voting.CastBallot(ctx, pollID, 42, location.Input{},
		entity.BallotPayload{Choices: []int64{2}})
	require.NoError(t, err)
	assert.NotEmpty(t, ballot.ID)
	assert.Equal(t, int64(42), ballot.VoterID)
}

func TestCastBallot_EligibilityGate(t *testing.T) {
	f := newTestVoting()
	ctx := context.Background()

	scope := entity.LocationScope{Kind: entity.ScopeCountry, CountryID: "gr"}
	pollID, err := f.voting.CreatePoll(ctx, openPoll(entity.MethodSingleChoice, scope))
	require.NoError(t, err)

	t.Run("wrong country", func(t *testing.T) {
		_, err := f.voting.CastBallot(ctx, pollID, 1, location.Input{CountryID: "de"},
			entity.BallotPayload{Choices: []int64{1}})
		assert.ErrorIs(t, err, ErrNotEligible)
	})

	t.Run("no location at all fails closed", func(t *testing.T) {
		_, err := f.voting.CastBallot(ctx, pollID, 1, location.Input{},
			entity.BallotPayload{Choices: []int64{1}})
		assert.ErrorIs(t, err, ErrNotEligible)
	})

	t.Run("matching country passes", func(t *testing.T) {
		_, err := f.voting.CastBallot(ctx, pollID, 1, location.Input{CountryID: "gr"},
			entity.BallotPayload{Choices: []int64{1}})
		assert.NoError(t, err)
	})
}

func TestCastBallot_GeocodingFailureFailsClosed(t *testing.T) {
	f := newTestVoting()
	ctx := context.Background()

	scope := entity.LocationScope{Kind: entity.ScopeCountry, CountryID: "gr"}
	pollID, err := f.voting.CreatePoll(ctx, openPoll(entity.MethodSingleChoice, scope))
	require.NoError(t, err)

	f.voting.resolver = &fakeResolver{err: location.ErrGeocodingUnavailable}

	coord := &entity.Coordinate{Latitude: 37.9838, Longitude: 23.7275}
	_, err = f.voting.CastBallot(ctx, pollID, 1, location.Input{Coordinate: coord},
		entity.BallotPayload{Choices: []int64{1}})
	assert.ErrorIs(t, err, ErrNotEligible,
		"degraded geocoding narrows eligibility, never widens it")
}

func TestCastBallot_GeofencedScope(t *testing.T) {
	f := newTestVoting()
	ctx := context.Background()

	scope := entity.LocationScope{
		Kind:     entity.ScopeGeofenced,
		Center:   entity.Coordinate{Latitude: 37.9838, Longitude: 23.7275},
		RadiusKm: 5,
	}
	pollID, err := f.voting.CreatePoll(ctx, openPoll(entity.MethodSingleChoice, scope))
	require.NoError(t, err)

	inside := &entity.Coordinate{Latitude: 37.9838, Longitude: 23.7275}
	_, err = f.voting.CastBallot(ctx, pollID, 1, location.Input{Coordinate: inside},
		entity.BallotPayload{Choices: []int64{1}})
	assert.NoError(t, err)

	outside := &entity.Coordinate{Latitude: 38.035, Longitude: 23.7275}
	_, err = f.voting.CastBallot(ctx, pollID, 2, location.Input{Coordinate: outside},
		entity.BallotPayload{Choices: []int64{1}})
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestCastBallot_UniquenessGate(t *testing.T) {
	f := newTestVoting()
	ctx := context.Background()

	pollID, err := f.voting.CreatePoll(ctx, openPoll(entity.MethodSingleChoice, globalScope()))
	require.NoError(t, err)

	payload := entity.BallotPayload{Choices: []int64{1}}

	_, err = f.voting.CastBallot(ctx, pollID, 7, location.Input{}, payload)
	require.NoError(t, err)

	_, err = f.voting.CastBallot(ctx, pollID, 7, location.Input{}, payload)
	assert.ErrorIs(t, err, ErrAlreadyVoted)
}

func TestCastBallot_ConcurrentSameVoterExactlyOneAccepted(t *testing.T) {
	f := newTestVoting()
	ctx := context.Background()

	pollID, err := f.voting.CreatePoll(ctx, openPoll(entity.MethodSingleChoice, globalScope()))
	require.NoError(t, err)

	const attempts = 16
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.voting.CastBallot(ctx, pollID, 99, location.Input{},
				entity.BallotPayload{Choices: []int64{1}})
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyVoted)
		}
	}
	assert.Equal(t, 1, accepted, "exactly one concurrent submission may win")
}

func TestCastBallot_TemporalGate(t *testing.T) {
	f := newTestVoting()
	ctx := context.Background()

	t.Run("after end date", func(t *testing.T) {
		poll := openPoll(entity.MethodSingleChoice, globalScope())
		pollID, err := f.voting.CreatePoll(ctx, poll)
		require.NoError(t, err)

		f.voting.now = func() time.Time { return poll.EndDate.Add(time.Minute) }
		defer func() { f.voting.now = time.Now }()

		_, err = f.voting.CastBallot(ctx, pollID, 1, location.Input{},
			entity.BallotPayload{Choices: []int64{1}})
		assert.ErrorIs(t, err, ErrPollClosed)
	})

	t.Run("before start date", func(t *testing.T) {
		poll := openPoll(entity.MethodSingleChoice, globalScope())
		pollID, err := f.voting.CreatePoll(ctx, poll)
		require.NoError(t, err)

		f.voting.now = func() time.Time { return poll.StartDate.Add(-time.Minute) }
		defer func() { f.voting.now = time.Now }()

		_, err = f.voting.CastBallot(ctx, pollID, 1, location.Input{},
			entity.BallotPayload{Choices: []int64{1}})
		assert.ErrorIs(t, err, ErrPollClosed)
	})

	t.Run("inactive poll", func(t *testing.T) {
		poll := openPoll(entity.MethodSingleChoice, globalScope())
		poll.IsActive = false
		pollID, err := f.voting.CreatePoll(ctx, poll)
		require.NoError(t, err)

		_, err = f.voting.CastBallot(ctx, pollID, 1, location.Input{},
			entity.BallotPayload{Choices: []int64{1}})
		assert.ErrorIs(t, err, ErrPollClosed)
	})
}

func TestCastBallot_ClosedPollRejectedEvenWhenOtherwiseValid(t *testing.T) {
	f := newTestVoting()
	ctx := context.Background()

	poll := openPoll(entity.MethodSingleChoice, globalScope())
	pollID, err := f.voting.CreatePoll(ctx, poll)
	require.NoError(t, err)

	f.voting.now = func() time.Time { return poll.EndDate.Add(24 * time.Hour) }

	// eligible voter, structurally valid ballot, still rejected
	_, err = f.voting.CastBallot(ctx, pollID, 5, location.Input{},
		entity.BallotPayload{Choices: []int64{2}})
	assert.ErrorIs(t, err, ErrPollClosed)
}

func TestCastBallot_StructuralGate(t *testing.T) {
	f := newTestVoting()
	ctx := context.Background()

	t.Run("single choice needs exactly one", func(t *testing.T) {
		pollID, err := f.voting.CreatePoll(ctx, openPoll(entity.MethodSingleChoice, globalScope()))
		require.NoError(t, err)

		_, err = f.voting.CastBallot(ctx, pollID, 1, location.Input{},
			entity.BallotPayload{Choices: []int64{1, 2}})
		assert.ErrorIs(t, err, ErrInvalidChoice)

		_, err = f.voting.CastBallot(ctx, pollID, 1, location.Input{}, entity.BallotPayload{})
		assert.ErrorIs(t, err, ErrInvalidChoice)
	})

	t.Run("unknown option id", func(t *testing.T) {
		pollID, err := f.voting.CreatePoll(ctx, openPoll(entity.MethodSingleChoice, globalScope()))
		require.NoError(t, err)

		_, err = f.voting.CastBallot(ctx, pollID, 1, location.Input{},
			entity.BallotPayload{Choices: []int64{404}})
		assert.ErrorIs(t, err, ErrInvalidChoice)
	})

	t.Run("multiple choice allows empty and distinct", func(t *testing.T) {
		pollID, err := f.voting.CreatePoll(ctx, openPoll(entity.MethodMultipleChoice, globalScope()))
		require.NoError(t, err)

		_, err = f.voting.CastBallot(ctx, pollID, 1, location.Input{}, entity.BallotPayload{})
		assert.NoError(t, err)

		_, err = f.voting.CastBallot(ctx, pollID, 2, location.Input{},
			entity.BallotPayload{Choices: []int64{1, 1}})
		assert.ErrorIs(t, err, ErrInvalidChoice)

		_, err = f.voting.CastBallot(ctx, pollID, 3, location.Input{},
			entity.BallotPayload{Choices: []int64{1, 3}})
		assert.NoError(t, err)
	})

	t.Run("ranking rejects duplicate ranks", func(t *testing.T) {
		pollID, err := f.voting.CreatePoll(ctx, openPoll(entity.MethodRanking, globalScope()))
		require.NoError(t, err)

		_, err = f.voting.CastBallot(ctx, pollID, 1, location.Input{},
			entity.BallotPayload{Ranks: map[int64]int{1: 1, 2: 1}})
		assert.ErrorIs(t, err, ErrInvalidRanking)

		_, err = f.voting.CastBallot(ctx, pollID, 1, location.Input{},
			entity.BallotPayload{Ranks: map[int64]int{1: 0}})
		assert.ErrorIs(t, err, ErrInvalidRanking)

		// sparse ranks over a subset are fine
		_, err = f.voting.CastBallot(ctx, pollID, 1, location.Input{},
			entity.BallotPayload{Ranks: map[int64]int{1: 1, 3: 4}})
		assert.NoError(t, err)
	})
}

func TestCastBallot_Survey(t *testing.T) {
	f := newTestVoting()
	ctx := context.Background()

	poll := openPoll(entity.MethodSurvey, globalScope())
	poll.Options = nil
	poll.Questions = []entity.Question{
		{
			ID: 10, Type: entity.QuestionSingleChoice, Required: true,
			Answers: []entity.Option{{ID: 101, Text: "yes"}, {ID: 102, Text: "no"}},
		},
		{
			ID: 20, Type: entity.QuestionOrdering, Required: false,
			Answers: []entity.Option{{ID: 201, Text: "x"}, {ID: 202, Text: "y"}},
		},
	}
	pollID, err := f.voting.CreatePoll(ctx, poll)
	require.NoError(t, err)

	t.Run("missing required answer reports the question", func(t *testing.T) {
		_, err := f.voting.CastBallot(ctx, pollID, 1, location.Input{},
			entity.BallotPayload{Answers: map[int64]entity.QuestionAnswer{}})
		assert.ErrorIs(t, err, ErrMissingRequiredAnswer)

		var qerr *QuestionError
		require.ErrorAs(t, err, &qerr)
		assert.Equal(t, int64(10), qerr.QuestionID)
	})

	t.Run("answer id outside question", func(t *testing.T) {
		_, err := f.voting.CastBallot(ctx, pollID, 1, location.Input{},
			entity.BallotPayload{Answers: map[int64]entity.QuestionAnswer{
				10: {Choices: []int64{999}},
			}})
		assert.ErrorIs(t, err, ErrInvalidChoice)

		var qerr *QuestionError
		require.ErrorAs(t, err, &qerr)
		assert.Equal(t, int64(10), qerr.QuestionID)
	})

	t.Run("undeclared question id", func(t *testing.T) {
		_, err := f.voting.CastBallot(ctx, pollID, 1, location.Input{},
			entity.BallotPayload{Answers: map[int64]entity.QuestionAnswer{
				10: {Choices: []int64{101}},
				77: {Choices: []int64{1}},
			}})
		var qerr *QuestionError
		require.ErrorAs(t, err, &qerr)
		assert.Equal(t, int64(77), qerr.QuestionID)
	})

	t.Run("optional question may be skipped", func(t *testing.T) {
		_, err := f.voting.CastBallot(ctx, pollID, 1, location.Input{},
			entity.BallotPayload{Answers: map[int64]entity.QuestionAnswer{
				10: {Choices: []int64{101}},
			}})
		assert.NoError(t, err)
	})

	t.Run("full answer set", func(t *testing.T) {
		_, err := f.voting.CastBallot(ctx, pollID, 2, location.Input{},
			entity.BallotPayload{Answers: map[int64]entity.QuestionAnswer{
				10: {Choices: []int64{102}},
				20: {Ranks: map[int64]int{201: 1, 202: 2}},
			}})
		assert.NoError(t, err)
	})
}

func TestExtendPoll(t *testing.T) {
	f := newTestVoting()
	ctx := context.Background()

	poll := openPoll(entity.MethodSingleChoice, globalScope())
	pollID, err := f.voting.CreatePoll(ctx, poll)
	require.NoError(t, err)

	t.Run("earlier end date rejected, not clamped", func(t *testing.T) {
		err := f.voting.ExtendPoll(ctx, pollID, poll.CreatorID, poll.EndDate.Add(-time.Minute))
		assert.ErrorIs(t, err, entity.ErrEndDateNotExtended)

		stored, err := f.voting.GetPollByID(ctx, pollID)
		require.NoError(t, err)
		assert.Equal(t, poll.EndDate.Unix(), stored.EndDate.Unix())
	})

	t.Run("non-owner rejected", func(t *testing.T) {
		err := f.voting.ExtendPoll(ctx, pollID, poll.CreatorID+1, poll.EndDate.Add(time.Hour))
		assert.ErrorIs(t, err, ErrNotPollOwner)
	})

	t.Run("forward extension applied", func(t *testing.T) {
		newEnd := poll.EndDate.Add(48 * time.Hour)
		require.NoError(t, f.voting.ExtendPoll(ctx, pollID, poll.CreatorID, newEnd))

		stored, err := f.voting.GetPollByID(ctx, pollID)
		require.NoError(t, err)
		assert.Equal(t, newEnd.Unix(), stored.EndDate.Unix())
	})
}

func TestCastBallot_WritesActionLog(t *testing.T) {
	f := newTestVoting()
	ctx := context.Background()

	pollID, err := f.voting.CreatePoll(ctx, openPoll(entity.MethodSingleChoice, globalScope()))
	require.NoError(t, err)

	ballot, err := f.voting.CastBallot(ctx, pollID, 3, location.Input{},
		entity.BallotPayload{Choices: []int64{1}})
	require.NoError(t, err)

	logs, err := f.voting.GetLogs(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, logs)

	last := logs[len(logs)-1]
	assert.Equal(t, "Voting.CastBallot", last.Action)
	require.NotNil(t, last.BallotID)
	assert.Equal(t, ballot.ID, *last.BallotID)
}
