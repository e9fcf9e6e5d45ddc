package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/civiclab/agora/internal/entity"
	"github.com/civiclab/agora/internal/location"
	"github.com/civiclab/agora/internal/repo"
)

type fakePollStorage struct {
	mu    sync.Mutex
	polls map[int64]entity.Poll
	next  int64
}

func newFakePollStorage() *fakePollStorage {
	return &fakePollStorage{polls: make(map[int64]entity.Poll)}
}

func (s *fakePollStorage) SavePoll(_ context.Context, poll entity.Poll) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	poll.ID = s.next
	s.polls[poll.ID] = poll
	return poll.ID, nil
}

func (s *fakePollStorage) GetPollByID(_ context.Context, id int64) (entity.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	poll, ok := s.polls[id]
	if !ok {
		return entity.Poll{}, repo.ErrPollNotFound
	}
	return poll, nil
}

func (s *fakePollStorage) GetPolls(_ context.Context) ([]entity.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	polls := make([]entity.Poll, 0, len(s.polls))
	for _, p := range s.polls {
		polls = append(polls, p)
	}
	return polls, nil
}

func (s *fakePollStorage) UpdatePoll(_ context.Context, poll entity.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.polls[poll.ID]; !ok {
		return repo.ErrPollNotFound
	}
	s.polls[poll.ID] = poll
	return nil
}

// fakeBallotStorage mirrors the unique (poll_id, voter_id) index: the
// check-and-insert is atomic under its mutex.
type fakeBallotStorage struct {
	mu      sync.Mutex
	ballots map[string]entity.Ballot
}

func newFakeBallotStorage() *fakeBallotStorage {
	return &fakeBallotStorage{ballots: make(map[string]entity.Ballot)}
}

func ballotKey(pollID, voterID int64) string {
	return fmt.Sprintf("%d/%d", pollID, voterID)
}

func (s *fakeBallotStorage) InsertBallotIfAbsent(_ context.Context, ballot entity.Ballot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ballotKey(ballot.PollID, ballot.VoterID)
	if _, exists := s.ballots[key]; exists {
		return repo.ErrBallotConflict
	}
	s.ballots[key] = ballot
	return nil
}

func (s *fakeBallotStorage) HasBallot(_ context.Context, pollID, voterID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.ballots[ballotKey(pollID, voterID)]
	return exists, nil
}

func (s *fakeBallotStorage) ListBallots(_ context.Context, pollID int64) ([]entity.Ballot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Ballot
	for _, b := range s.ballots {
		if b.PollID == pollID {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeLogStorage struct {
	mu   sync.Mutex
	logs []entity.Log
}

func (s *fakeLogStorage) SaveLog(_ context.Context, log *entity.Log) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *log)
	return int64(len(s.logs)), nil
}

func (s *fakeLogStorage) GetLogs(_ context.Context) ([]entity.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.Log(nil), s.logs...), nil
}

// fakeResolver passes explicit ids through and keeps coordinates, the same
// contract as location.Resolver minus the geocoder.
type fakeResolver struct {
	err error
}

func (r *fakeResolver) Resolve(_ context.Context, in location.Input) (entity.VoterLocation, error) {
	if r.err != nil {
		return entity.VoterLocation{Coordinate: in.Coordinate}, r.err
	}
	return entity.VoterLocation{
		Coordinate: in.Coordinate,
		CountryID:  in.CountryID,
		RegionID:   in.RegionID,
		CityID:     in.CityID,
	}, nil
}

type votingFixture struct {
	voting  *Voting
	polls   *fakePollStorage
	ballots *fakeBallotStorage
	logs    *fakeLogStorage
}

func newTestVoting() *votingFixture {
	polls := newFakePollStorage()
	ballots := newFakeBallotStorage()
	logs := &fakeLogStorage{}
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	return &votingFixture{
		voting:  NewVoting(log, polls, ballots, logs, &fakeResolver{}),
		polls:   polls,
		ballots: ballots,
		logs:    logs,
	}
}

func openPoll(method entity.VotingMethod, scope entity.LocationScope) entity.Poll {
	now := time.Now()
	return entity.Poll{
		Title:     "test poll",
		CreatorID: 1,
		Method:    method,
		Scope:     scope,
		Options: []entity.Option{
			{ID: 1, Text: "A"},
			{ID: 2, Text: "B"},
			{ID: 3, Text: "C"},
		},
		IsActive:  true,
		StartDate: now.Add(-time.Hour),
		EndDate:   now.Add(time.Hour),
	}
}

func globalScope() entity.LocationScope {
	return entity.LocationScope{Kind: entity.ScopeGlobal}
}
