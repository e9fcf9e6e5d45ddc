package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/civiclab/agora/internal/entity"
	"github.com/civiclab/agora/internal/repo"
)

// uniqueViolation is the postgres error code raised when the
// (poll_id, voter_id) unique index rejects a second ballot.
const uniqueViolation = "23505"

type Storage struct {
	db *sql.DB
}

func New(postgresURL string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) SavePoll(ctx context.Context, poll entity.Poll) (int64, error) {
	const op = "storage.postgres.SavePoll"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	query := `INSERT INTO polls
		(title, description, creator_id, method, scope_kind, scope_country, scope_region, scope_city,
		 center_lat, center_lon, radius_km, is_active, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	var id int64
	err = tx.QueryRowContext(ctx, query,
		poll.Title, poll.Description, poll.CreatorID, poll.Method,
		poll.Scope.Kind, poll.Scope.CountryID, poll.Scope.RegionID, poll.Scope.CityID,
		poll.Scope.Center.Latitude, poll.Scope.Center.Longitude, poll.Scope.RadiusKm,
		poll.IsActive, poll.StartDate, poll.EndDate,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	for position, option := range poll.Options {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO options (poll_id, text, position) VALUES ($1, $2, $3)`,
			id, option.Text, position,
		)
		if err != nil {
			return 0, fmt.Errorf("%s: option: %w", op, err)
		}
	}

	for position, question := range poll.Questions {
		var questionID int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO questions (poll_id, parent_id, type, text, required, position)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			id, question.ParentID, question.Type, question.Text, question.Required, position,
		).Scan(&questionID)
		if err != nil {
			return 0, fmt.Errorf("%s: question: %w", op, err)
		}

		for answerPos, answer := range question.Answers {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO question_answers (question_id, text, position) VALUES ($1, $2, $3)`,
				questionID, answer.Text, answerPos,
			)
			if err != nil {
				return 0, fmt.Errorf("%s: answer: %w", op, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", op, err)
	}

	return id, nil
}

func (s *Storage) GetPollByID(ctx context.Context, id int64) (entity.Poll, error) {
	const op = "storage.postgres.GetPollByID"

	query := `SELECT id, title, description, creator_id, method,
		scope_kind, scope_country, scope_region, scope_city, center_lat, center_lon, radius_km,
		is_active, start_date, end_date, created_at, updated_at
		FROM polls WHERE id = $1`

	var poll entity.Poll
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&poll.ID, &poll.Title, &poll.Description, &poll.CreatorID, &poll.Method,
		&poll.Scope.Kind, &poll.Scope.CountryID, &poll.Scope.RegionID, &poll.Scope.CityID,
		&poll.Scope.Center.Latitude, &poll.Scope.Center.Longitude, &poll.Scope.RadiusKm,
		&poll.IsActive, &poll.StartDate, &poll.EndDate, &poll.CreatedAt, &poll.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Poll{}, fmt.Errorf("%s: %w", op, repo.ErrPollNotFound)
		}
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	poll.Options, err = s.getOptions(ctx, id)
	if err != nil {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	poll.Questions, err = s.getQuestions(ctx, id)
	if err != nil {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	return poll, nil
}

func (s *Storage) GetPolls(ctx context.Context) ([]entity.Poll, error) {
	const op = "storage.postgres.GetPolls"

	query := `SELECT id, title, description, creator_id, method,
		scope_kind, scope_country, scope_region, scope_city, center_lat, center_lon, radius_km,
		is_active, start_date, end_date, created_at, updated_at
		FROM polls ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var polls []entity.Poll
	for rows.Next() {
		var poll entity.Poll
		if err := rows.Scan(
			&poll.ID, &poll.Title, &poll.Description, &poll.CreatorID, &poll.Method,
			&poll.Scope.Kind, &poll.Scope.CountryID, &poll.Scope.RegionID, &poll.Scope.CityID,
			&poll.Scope.Center.Latitude, &poll.Scope.Center.Longitude, &poll.Scope.RadiusKm,
			&poll.IsActive, &poll.StartDate, &poll.EndDate, &poll.CreatedAt, &poll.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		polls = append(polls, poll)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return polls, nil
}

func (s *Storage) UpdatePoll(ctx context.Context, poll entity.Poll) error {
	const op = "storage.postgres.UpdatePoll"

	const query = `UPDATE polls SET end_date = $1, is_active = $2, updated_at = NOW() WHERE id = $3`

	res, err := s.db.ExecContext(ctx, query, poll.EndDate, poll.IsActive, poll.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, repo.ErrPollNotFound)
	}
	return nil
}

func (s *Storage) getOptions(ctx context.Context, pollID int64) ([]entity.Option, error) {
	const op = "storage.postgres.getOptions"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text FROM options WHERE poll_id = $1 ORDER BY position`, pollID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var options []entity.Option
	for rows.Next() {
		var option entity.Option
		if err := rows.Scan(&option.ID, &option.Text); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		options = append(options, option)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return options, nil
}

func (s *Storage) getQuestions(ctx context.Context, pollID int64) ([]entity.Question, error) {
	const op = "storage.postgres.getQuestions"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, parent_id, type, text, required FROM questions WHERE poll_id = $1 ORDER BY position`,
		pollID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var questions []entity.Question
	for rows.Next() {
		var question entity.Question
		if err := rows.Scan(&question.ID, &question.ParentID, &question.Type, &question.Text, &question.Required); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		questions = append(questions, question)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	for i := range questions {
		answers, err := s.getAnswers(ctx, questions[i].ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		questions[i].Answers = answers
	}

	return questions, nil
}

func (s *Storage) getAnswers(ctx context.Context, questionID int64) ([]entity.Option, error) {
	const op = "storage.postgres.getAnswers"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text FROM question_answers WHERE question_id = $1 ORDER BY position`, questionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var answers []entity.Option
	for rows.Next() {
		var answer entity.Option
		if err := rows.Scan(&answer.ID, &answer.Text); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		answers = append(answers, answer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return answers, nil
}

// InsertBallotIfAbsent inserts the ballot, relying on the unique index on
// (poll_id, voter_id) as the atomic uniqueness gate. A unique violation is
// reported as repo.ErrBallotConflict, never as a generic failure.
func (s *Storage) InsertBallotIfAbsent(ctx context.Context, ballot entity.Ballot) error {
	const op = "storage.postgres.InsertBallotIfAbsent"

	payload, err := json.Marshal(ballot.Payload)
	if err != nil {
		return fmt.Errorf("%s: marshal payload: %w", op, err)
	}

	query := `INSERT INTO ballots (id, poll_id, voter_id, submitted_at, payload)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = s.db.ExecContext(ctx, query,
		ballot.ID, ballot.PollID, ballot.VoterID, ballot.SubmittedAt, payload)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w", op, repo.ErrBallotConflict)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) HasBallot(ctx context.Context, pollID, voterID int64) (bool, error) {
	const op = "storage.postgres.HasBallot"

	query := `SELECT EXISTS (SELECT 1 FROM ballots WHERE poll_id = $1 AND voter_id = $2)`

	var exists bool
	err := s.db.QueryRowContext(ctx, query, pollID, voterID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

func (s *Storage) ListBallots(ctx context.Context, pollID int64) ([]entity.Ballot, error) {
	const op = "storage.postgres.ListBallots"

	query := `SELECT id, poll_id, voter_id, submitted_at, payload FROM ballots
		WHERE poll_id = $1 ORDER BY submitted_at`

	rows, err := s.db.QueryContext(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var ballots []entity.Ballot
	for rows.Next() {
		var ballot entity.Ballot
		var payload []byte
		if err := rows.Scan(&ballot.ID, &ballot.PollID, &ballot.VoterID, &ballot.SubmittedAt, &payload); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		if err := json.Unmarshal(payload, &ballot.Payload); err != nil {
			return nil, fmt.Errorf("%s: unmarshal payload: %w", op, err)
		}
		ballots = append(ballots, ballot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return ballots, nil
}

func (s *Storage) SaveLog(ctx context.Context, log *entity.Log) (int64, error) {
	const op = "storage.postgres.SaveLog"

	query := `INSERT INTO action_log (user_id, action, poll_id, ballot_id) VALUES ($1, $2, $3, $4) RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query, log.UserID, log.Action, log.PollID, log.BallotID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) GetLogs(ctx context.Context) ([]entity.Log, error) {
	const op = "storage.postgres.GetLogs"

	query := `SELECT id, user_id, action, poll_id, ballot_id, created_at FROM action_log ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var logs []entity.Log
	for rows.Next() {
		var log entity.Log
		if err := rows.Scan(&log.ID, &log.UserID, &log.Action, &log.PollID, &log.BallotID, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return logs, nil
}
