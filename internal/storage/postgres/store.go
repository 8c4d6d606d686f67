// Package postgres stores sessions and scores in Postgres. A submission locks the session row
// before flipping its answered flag, which serializes scoring per conversant.
package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/scamquiz/internal/domain"
	"github.com/victornm/scamquiz/internal/errors"
	"github.com/victornm/scamquiz/internal/score"
)

type Config struct {
	DB *pgxpool.Pool
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(c Config) *Store {
	return &Store{
		db: c.DB,
	}
}

func (s *Store) GetSession(ctx context.Context, conversantID string) (*domain.Session, error) {
	const stmt = `
SELECT question_id, displayed_text, alternate_text, is_scam, answered, issued_at, answered_at
FROM sessions
WHERE conversant_id = $1;`

	ss := &domain.Session{ConversantID: conversantID}
	var answeredAt *time.Time
	err := s.db.QueryRow(ctx, stmt, conversantID).Scan(
		&ss.QuestionID, &ss.DisplayedText, &ss.AlternateText, &ss.IsScam, &ss.Answered, &ss.IssuedAt, &answeredAt,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}

	if answeredAt != nil {
		ss.AnsweredAt = *answeredAt
	}
	return ss, nil
}

// PutSession replaces the conversant's session.
func (s *Store) PutSession(ctx context.Context, ss domain.Session) error {
	const stmt = `
INSERT INTO sessions (conversant_id, question_id, displayed_text, alternate_text, is_scam, answered, issued_at, answered_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (conversant_id) DO UPDATE SET
	question_id = EXCLUDED.question_id,
	displayed_text = EXCLUDED.displayed_text,
	alternate_text = EXCLUDED.alternate_text,
	is_scam = EXCLUDED.is_scam,
	answered = EXCLUDED.answered,
	issued_at = EXCLUDED.issued_at,
	answered_at = EXCLUDED.answered_at;`

	var answeredAt *time.Time
	if !ss.AnsweredAt.IsZero() {
		answeredAt = &ss.AnsweredAt
	}

	_, err := s.db.Exec(ctx, stmt,
		ss.ConversantID, ss.QuestionID, ss.DisplayedText, ss.AlternateText, ss.IsScam, ss.Answered, ss.IssuedAt, answeredAt,
	)
	if err != nil {
		return unavailable(err)
	}

	return nil
}

// CommitAnswer marks the session answered and applies the score delta in one transaction.
func (s *Store) CommitAnswer(ctx context.Context, c domain.AnswerCommit) (total int, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, unavailable(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const (
		lockSessionStmt = `SELECT question_id, answered FROM sessions WHERE conversant_id = $1 FOR UPDATE;`
		lockScoreStmt   = `SELECT score FROM scores WHERE conversant_id = $1 FOR UPDATE;`
		answerStmt      = `UPDATE sessions SET answered = TRUE, answered_at = $2 WHERE conversant_id = $1;`
		upsertScoreStmt = `
INSERT INTO scores (conversant_id, score, update_time)
VALUES ($1, $2, $3)
ON CONFLICT (conversant_id) DO UPDATE SET score = EXCLUDED.score, update_time = EXCLUDED.update_time;`
	)

	var (
		questionID string
		answered   bool
	)
	err = tx.QueryRow(ctx, lockSessionStmt, c.ConversantID).Scan(&questionID, &answered)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return 0, errors.Extend(domain.ErrNoActiveQuestion, errors.WithCause(domain.ErrSessionNotFound))
	}
	if err != nil {
		return 0, unavailable(fmt.Errorf("lock session: %w", err))
	}

	if questionID != c.QuestionID {
		return 0, errors.Extend(domain.ErrNoActiveQuestion,
			errors.WithMessagef("question %s is not the active question", c.QuestionID))
	}
	if answered {
		return 0, domain.ErrAlreadyAnswered
	}

	var current int
	err = tx.QueryRow(ctx, lockScoreStmt, c.ConversantID).Scan(&current)
	if err != nil && !stderrors.Is(err, pgx.ErrNoRows) {
		return 0, unavailable(fmt.Errorf("lock score: %w", err))
	}
	total = score.Apply(current, c.Delta)

	if _, err = tx.Exec(ctx, answerStmt, c.ConversantID, c.AnsweredAt); err != nil {
		return 0, unavailable(fmt.Errorf("mark answered: %w", err))
	}
	if _, err = tx.Exec(ctx, upsertScoreStmt, c.ConversantID, total, c.AnsweredAt); err != nil {
		return 0, unavailable(fmt.Errorf("upsert score: %w", err))
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, unavailable(fmt.Errorf("commit: %w", err))
	}

	return total, nil
}

func (s *Store) GetScore(ctx context.Context, conversantID string) (int, error) {
	const stmt = `SELECT score FROM scores WHERE conversant_id = $1;`

	var v int
	err := s.db.QueryRow(ctx, stmt, conversantID).Scan(&v)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable(err)
	}

	return v, nil
}

// ListScores returns every score ordered by conversant ID.
func (s *Store) ListScores(ctx context.Context) ([]domain.Score, error) {
	const stmt = `SELECT conversant_id, score FROM scores ORDER BY conversant_id COLLATE "C";`

	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return nil, unavailable(err)
	}

	scores, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Score, error) {
		var sc domain.Score
		if err := r.Scan(&sc.ConversantID, &sc.Value); err != nil {
			return domain.Score{}, err
		}
		return sc, nil
	})
	if err != nil {
		return nil, unavailable(err)
	}

	return scores, nil
}

func unavailable(err error) error {
	return errors.Extend(domain.ErrStoreUnavailable, errors.WithCause(err))
}
