package repo

import "errors"

var (
	ErrPollNotFound = errors.New("poll not found")
	// ErrBallotConflict signals that the (poll_id, voter_id) unique
	// constraint fired; the services layer maps it to AlreadyVoted.
	ErrBallotConflict = errors.New("ballot already exists for voter and poll")
)
