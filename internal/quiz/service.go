package quiz

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/scamquiz/internal/domain"
	"github.com/victornm/scamquiz/internal/errors"
	"github.com/victornm/scamquiz/internal/event"
	"github.com/victornm/scamquiz/internal/score"
)

// SessionStore persists one session per conversant.
type SessionStore interface {
	// GetSession returns domain.ErrSessionNotFound or domain.ErrMalformedRecord when there is
	// no usable session.
	GetSession(ctx context.Context, conversantID string) (*domain.Session, error)
	// PutSession replaces the conversant's session.
	PutSession(ctx context.Context, ss domain.Session) error
	// CommitAnswer flips answered from false to true for the commit's question and applies
	// its delta to the score in the same atomic step, returning the new score. It fails with
	// domain.ErrAlreadyAnswered when another submission flipped the flag first.
	CommitAnswer(ctx context.Context, c domain.AnswerCommit) (int, error)
}

// Generator produces a scam and a legitimate message on a common topic.
type Generator interface {
	Generate(ctx context.Context, hint string) (domain.Example, error)
}

// Analyzer explains why a message is or is not a scam.
type Analyzer interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest) (string, error)
}

type Config struct {
	EventBus  *event.Bus
	Sessions  SessionStore
	Score     *score.Service
	Generator Generator
	Analyzer  Analyzer

	// ShowScam decides whether the scam variant is displayed. Defaults to a fair coin.
	ShowScam func() bool
	// NewQuestionID defaults to UUIDv7.
	NewQuestionID func() (string, error)
	Now           func() time.Time
}

type Service struct {
	eb        *event.Bus
	sessions  SessionStore
	score     *score.Service
	generator Generator
	analyzer  Analyzer

	showScam      func() bool
	newQuestionID func() (string, error)
	now           func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		eb:            c.EventBus,
		sessions:      c.Sessions,
		score:         c.Score,
		generator:     c.Generator,
		analyzer:      c.Analyzer,
		showScam:      c.ShowScam,
		newQuestionID: c.NewQuestionID,
		now:           c.Now,
	}

	if s.showScam == nil {
		s.showScam = func() bool { return rand.IntN(2) == 0 }
	}
	if s.newQuestionID == nil {
		s.newQuestionID = func() (string, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		}
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

type IssueQuestionRequest struct {
	ConversantID string
	// TopicHint optionally steers the generator.
	TopicHint string
}

// IssueQuestion generates a new example pair, displays one of them at random and replaces the
// conversant's session, abandoning any unanswered question.
func (s *Service) IssueQuestion(ctx context.Context, req IssueQuestionRequest) (*domain.Session, error) {
	ex, err := s.generator.Generate(ctx, req.TopicHint)
	if err != nil {
		return nil, as(domain.ErrGenerationFailed, err)
	}
	if ex.ScamText == "" || ex.LegitText == "" {
		return nil, errors.Extend(domain.ErrGenerationFailed, errors.WithMessagef("generator returned an empty example"))
	}

	id, err := s.newQuestionID()
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("generate question ID: %w", err))
	}

	ss := domain.Session{
		ConversantID: req.ConversantID,
		QuestionID:   id,
		IsScam:       s.showScam(),
		IssuedAt:     s.now(),
	}
	if ss.IsScam {
		ss.DisplayedText, ss.AlternateText = ex.ScamText, ex.LegitText
	} else {
		ss.DisplayedText, ss.AlternateText = ex.LegitText, ex.ScamText
	}

	if err := s.sessions.PutSession(ctx, ss); err != nil {
		return nil, as(domain.ErrStoreUnavailable, err)
	}

	slog.InfoContext(ctx, "quiz: question issued",
		"conversant", ss.ConversantID,
		"question", ss.QuestionID,
	)
	s.eb.Publish(ctx, domain.EventQuestionIssued{
		ConversantID: ss.ConversantID,
		QuestionID:   ss.QuestionID,
		IsScam:       ss.IsScam,
	})

	return &ss, nil
}

type SubmitAnswerRequest struct {
	ConversantID string
	// QuestionID binds the answer to a specific question. Empty means the pending one.
	QuestionID string
	// Guess is true when the conversant believes the message is a scam.
	Guess bool
}

type SubmitAnswerResponse struct {
	QuestionID    string
	DisplayedText string
	IsScam        bool
	Correct       bool
	Delta         int
	Score         int
	// Analysis is set only for wrong answers.
	Analysis string
}

// SubmitAnswer scores a guess at most once per question. The analysis for a wrong guess is
// produced before anything is written, so a failing analyzer leaves session and score intact.
func (s *Service) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) (*SubmitAnswerResponse, error) {
	ss, err := s.activeSession(ctx, req.ConversantID)
	if err != nil {
		s.reject(ctx, req, err)
		return nil, err
	}

	if req.QuestionID != "" && req.QuestionID != ss.QuestionID {
		err := errors.Extend(domain.ErrNoActiveQuestion,
			errors.WithMessagef("question %s is no longer active", req.QuestionID))
		s.reject(ctx, req, err)
		return nil, err
	}

	if ss.Answered {
		s.reject(ctx, req, domain.ErrAlreadyAnswered)
		return nil, domain.ErrAlreadyAnswered
	}

	resp := &SubmitAnswerResponse{
		QuestionID:    ss.QuestionID,
		DisplayedText: ss.DisplayedText,
		IsScam:        ss.IsScam,
		Correct:       req.Guess == ss.IsScam,
	}
	resp.Delta = score.Delta(resp.Correct)

	if !resp.Correct {
		resp.Analysis, err = s.analyzer.Analyze(ctx, domain.AnalysisRequest{
			Text:      ss.DisplayedText,
			IsScam:    ss.IsScam,
			UserGuess: req.Guess,
		})
		if err != nil {
			return nil, as(domain.ErrAnalysisFailed, err)
		}
	}

	resp.Score, err = s.sessions.CommitAnswer(ctx, domain.AnswerCommit{
		ConversantID: req.ConversantID,
		QuestionID:   ss.QuestionID,
		Delta:        resp.Delta,
		AnsweredAt:   s.now(),
	})
	switch {
	case err == nil:
	case stderrors.Is(err, domain.ErrAlreadyAnswered):
		err = errors.Extend(domain.ErrConcurrentSubmission, errors.WithCause(err))
		s.reject(ctx, req, err)
		return nil, err
	case stderrors.Is(err, domain.ErrNoActiveQuestion):
		s.reject(ctx, req, err)
		return nil, err
	case stderrors.Is(err, domain.ErrMalformedRecord):
		slog.WarnContext(ctx, "quiz: session became unreadable before commit",
			"conversant", req.ConversantID,
			"error", err,
		)
		err = errors.Extend(domain.ErrNoActiveQuestion, errors.WithCause(err))
		s.reject(ctx, req, err)
		return nil, err
	default:
		s.reject(ctx, req, err)
		return nil, as(domain.ErrStoreUnavailable, err)
	}

	slog.InfoContext(ctx, "quiz: answer scored",
		"conversant", req.ConversantID,
		"question", ss.QuestionID,
		"correct", resp.Correct,
		"score", resp.Score,
	)
	s.eb.Publish(ctx, domain.EventAnswerScored{
		ConversantID: req.ConversantID,
		QuestionID:   ss.QuestionID,
		Correct:      resp.Correct,
		Delta:        resp.Delta,
		Score:        resp.Score,
	})

	return resp, nil
}

type RequestAnalysisRequest struct {
	ConversantID string
}

type RequestAnalysisResponse struct {
	QuestionID    string
	DisplayedText string
	IsScam        bool
	Analysis      string
}

// RequestAnalysis explains the current question, answered or not. It never writes.
func (s *Service) RequestAnalysis(ctx context.Context, req RequestAnalysisRequest) (*RequestAnalysisResponse, error) {
	ss, err := s.activeSession(ctx, req.ConversantID)
	if err != nil {
		return nil, err
	}

	analysis, err := s.analyzer.Analyze(ctx, domain.AnalysisRequest{
		Text:      ss.DisplayedText,
		IsScam:    ss.IsScam,
		UserGuess: ss.IsScam,
	})
	if err != nil {
		return nil, as(domain.ErrAnalysisFailed, err)
	}

	return &RequestAnalysisResponse{
		QuestionID:    ss.QuestionID,
		DisplayedText: ss.DisplayedText,
		IsScam:        ss.IsScam,
		Analysis:      analysis,
	}, nil
}

type QueryScoreRequest struct {
	ConversantID string
}

func (s *Service) QueryScore(ctx context.Context, req QueryScoreRequest) (*domain.Score, error) {
	sc, err := s.score.GetScore(ctx, score.GetScoreRequest{ConversantID: req.ConversantID})
	if err != nil {
		return nil, as(domain.ErrStoreUnavailable, err)
	}

	return sc, nil
}

// activeSession maps a missing or unreadable session to domain.ErrNoActiveQuestion.
func (s *Service) activeSession(ctx context.Context, conversantID string) (*domain.Session, error) {
	ss, err := s.sessions.GetSession(ctx, conversantID)
	switch {
	case err == nil:
		return ss, nil
	case stderrors.Is(err, domain.ErrSessionNotFound):
		return nil, errors.Extend(domain.ErrNoActiveQuestion, errors.WithCause(err))
	case stderrors.Is(err, domain.ErrMalformedRecord):
		slog.WarnContext(ctx, "quiz: discarding malformed session",
			"conversant", conversantID,
			"error", err,
		)
		return nil, errors.Extend(domain.ErrNoActiveQuestion, errors.WithCause(err))
	default:
		return nil, as(domain.ErrStoreUnavailable, err)
	}
}

func (s *Service) reject(ctx context.Context, req SubmitAnswerRequest, err error) {
	s.eb.Publish(ctx, domain.EventAnswerRejected{
		ConversantID: req.ConversantID,
		QuestionID:   req.QuestionID,
		Reason:       errors.Convert(err).Reason,
	})
}

// as returns err when it already is of kind base, otherwise base with err as cause.
func as(base *errors.Error, err error) error {
	if stderrors.Is(err, base) {
		return err
	}
	return errors.Extend(base, errors.WithCause(err))
}
