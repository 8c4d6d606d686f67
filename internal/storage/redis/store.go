// Package redis stores sessions and scores in Redis.
//
// Layout:
//
//	{prefix}:session:{conversantID}  JSON session record
//	{prefix}:score                   hash, field {conversantID} -> integer score
//
// A session's answered flag and the score are updated in one MULTI/EXEC guarded by a WATCH on
// the session key, so only one submission per question can apply a score delta.
package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/scamquiz/internal/domain"
	"github.com/victornm/scamquiz/internal/errors"
	"github.com/victornm/scamquiz/internal/score"
)

const defaultMaxRetries = 10

// reader is satisfied by both the client and a WATCH transaction.
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

type Config struct {
	Redis  redis.UniversalClient
	Prefix string
	// MaxRetries bounds optimistic transaction retries when the watched session changes.
	MaxRetries int
}

type Store struct {
	redis      redis.UniversalClient
	prefix     string
	maxRetries int
}

func NewStore(c Config) *Store {
	retries := c.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	return &Store{
		redis:      c.Redis,
		prefix:     c.Prefix,
		maxRetries: retries,
	}
}

// GetSession returns domain.ErrSessionNotFound when the conversant has no session
// and domain.ErrMalformedRecord when the stored record cannot be read.
func (s *Store) GetSession(ctx context.Context, conversantID string) (*domain.Session, error) {
	return s.getSession(ctx, s.redis, conversantID)
}

func (s *Store) getSession(ctx context.Context, c reader, conversantID string) (*domain.Session, error) {
	raw, err := c.Get(ctx, s.getSessionKey(conversantID)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}

	return decodeSession(conversantID, raw)
}

// PutSession overwrites the conversant's session.
func (s *Store) PutSession(ctx context.Context, ss domain.Session) error {
	b, err := encodeSession(ss)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.getSessionKey(ss.ConversantID), b, 0).Err(); err != nil {
		return unavailable(err)
	}

	return nil
}

// CommitAnswer marks the session answered and applies the score delta in one transaction.
// It fails with domain.ErrNoActiveQuestion when the session is missing or holds another
// question, and with domain.ErrAlreadyAnswered when the question was already scored.
func (s *Store) CommitAnswer(ctx context.Context, c domain.AnswerCommit) (int, error) {
	key := s.getSessionKey(c.ConversantID)

	var total int
	txf := func(tx *redis.Tx) error {
		ss, err := s.getSession(ctx, tx, c.ConversantID)
		if stderrors.Is(err, domain.ErrSessionNotFound) || stderrors.Is(err, domain.ErrMalformedRecord) {
			return errors.Extend(domain.ErrNoActiveQuestion, errors.WithCause(err))
		}
		if err != nil {
			return err
		}

		if ss.QuestionID != c.QuestionID {
			return errors.Extend(domain.ErrNoActiveQuestion,
				errors.WithMessagef("question %s is not the active question", c.QuestionID))
		}
		if ss.Answered {
			return domain.ErrAlreadyAnswered
		}

		current, err := s.getScore(ctx, tx, c.ConversantID)
		if err != nil {
			return err
		}
		total = score.Apply(current, c.Delta)

		ss.Answered = true
		ss.AnsweredAt = c.AnsweredAt
		b, err := encodeSession(*ss)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			pipe.HSet(ctx, s.getScoreKey(), c.ConversantID, total)
			return nil
		})
		return err
	}

	for i := 0; i < s.maxRetries; i++ {
		err := s.redis.Watch(ctx, txf, key)
		if err == nil {
			return total, nil
		}
		if stderrors.Is(err, redis.TxFailedErr) {
			continue
		}

		var e *errors.Error
		if stderrors.As(err, &e) {
			return 0, err
		}
		return 0, unavailable(err)
	}

	return 0, unavailable(fmt.Errorf("commit answer: %d retries exhausted: %w", s.maxRetries, redis.TxFailedErr))
}

// GetScore returns the stored score, 0 when there is none or it cannot be parsed.
func (s *Store) GetScore(ctx context.Context, conversantID string) (int, error) {
	return s.getScore(ctx, s.redis, conversantID)
}

func (s *Store) getScore(ctx context.Context, c reader, conversantID string) (int, error) {
	raw, err := c.HGet(ctx, s.getScoreKey(), conversantID).Result()
	if stderrors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable(err)
	}

	return parseScore(ctx, conversantID, raw), nil
}

// ListScores returns every score ordered by conversant ID.
func (s *Store) ListScores(ctx context.Context) ([]domain.Score, error) {
	m, err := s.redis.HGetAll(ctx, s.getScoreKey()).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	scores := make([]domain.Score, 0, len(m))
	for id, raw := range m {
		scores = append(scores, domain.Score{
			ConversantID: id,
			Value:        parseScore(ctx, id, raw),
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		return scores[i].ConversantID < scores[j].ConversantID
	})

	return scores, nil
}

func (s *Store) getSessionKey(conversantID string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, conversantID)
}

func (s *Store) getScoreKey() string {
	return fmt.Sprintf("%s:score", s.prefix)
}

func parseScore(ctx context.Context, conversantID, raw string) int {
	if v, err := strconv.Atoi(raw); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(f)
	}

	slog.WarnContext(ctx, "redis: malformed score record, reading as 0",
		"conversant", conversantID,
		"value", raw,
	)
	return 0
}

func unavailable(err error) error {
	return errors.Extend(domain.ErrStoreUnavailable, errors.WithCause(err))
}

type sessionRecord struct {
	QuestionID    string     `json:"question_id"`
	DisplayedText string     `json:"displayed_text,omitempty"`
	AlternateText string     `json:"alternate_text,omitempty"`
	IsScam        *bool      `json:"is_scam"`
	Answered      bool       `json:"answered"`
	IssuedAt      time.Time  `json:"issued_at"`
	AnsweredAt    *time.Time `json:"answered_at,omitempty"`

	// Older records stored both variants and let is_scam pick the shown one.
	ScamText  string `json:"scam_text,omitempty"`
	LegitText string `json:"legit_text,omitempty"`
}

func encodeSession(ss domain.Session) ([]byte, error) {
	rec := sessionRecord{
		QuestionID:    ss.QuestionID,
		DisplayedText: ss.DisplayedText,
		AlternateText: ss.AlternateText,
		IsScam:        &ss.IsScam,
		Answered:      ss.Answered,
		IssuedAt:      ss.IssuedAt,
	}
	if !ss.AnsweredAt.IsZero() {
		rec.AnsweredAt = &ss.AnsweredAt
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("encode session: %w", err))
	}
	return b, nil
}

func decodeSession(conversantID string, raw []byte) (*domain.Session, error) {
	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, errors.Extend(domain.ErrMalformedRecord, errors.WithCause(err))
	}

	if rec.DisplayedText == "" && rec.IsScam != nil {
		if *rec.IsScam {
			rec.DisplayedText, rec.AlternateText = rec.ScamText, rec.LegitText
		} else {
			rec.DisplayedText, rec.AlternateText = rec.LegitText, rec.ScamText
		}
	}

	if rec.QuestionID == "" || rec.DisplayedText == "" || rec.IsScam == nil {
		return nil, errors.Extend(domain.ErrMalformedRecord,
			errors.WithMessagef("session record of %s is missing required fields", conversantID))
	}

	ss := &domain.Session{
		ConversantID:  conversantID,
		QuestionID:    rec.QuestionID,
		DisplayedText: rec.DisplayedText,
		AlternateText: rec.AlternateText,
		IsScam:        *rec.IsScam,
		Answered:      rec.Answered,
		IssuedAt:      rec.IssuedAt,
	}
	if rec.AnsweredAt != nil {
		ss.AnsweredAt = *rec.AnsweredAt
	}

	return ss, nil
}
