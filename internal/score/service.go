package score

import (
	"context"

	"github.com/victornm/scamquiz/internal/domain"
)

const (
	// Reward is added for a correct answer and subtracted for a wrong one.
	Reward = 50
	// Floor is the lowest score a conversant can hold.
	Floor = 0
)

// Delta returns the score change for an answer.
func Delta(correct bool) int {
	if correct {
		return Reward
	}
	return -Reward
}

// Apply adds delta to current and clamps the result at Floor.
func Apply(current, delta int) int {
	return Clamp(Clamp(current) + delta)
}

// Clamp raises v to Floor.
func Clamp(v int) int {
	if v < Floor {
		return Floor
	}
	return v
}

type Store interface {
	// GetScore returns 0 for a conversant without a record.
	GetScore(ctx context.Context, conversantID string) (int, error)
	// ListScores returns every score ordered by conversant ID.
	ListScores(ctx context.Context) ([]domain.Score, error)
}

type Config struct {
	Store Store
}

type Service struct {
	store Store
}

func NewService(c Config) *Service {
	return &Service{
		store: c.Store,
	}
}

type GetScoreRequest struct {
	ConversantID string
}

// GetScore returns the score of a conversant, 0 when none was recorded yet.
func (s *Service) GetScore(ctx context.Context, req GetScoreRequest) (*domain.Score, error) {
	v, err := s.store.GetScore(ctx, req.ConversantID)
	if err != nil {
		return nil, err
	}

	return &domain.Score{
		ConversantID: req.ConversantID,
		Value:        Clamp(v),
	}, nil
}

type ListScoresRequest struct{}

// ListScores returns all recorded scores in the store's key order.
func (s *Service) ListScores(ctx context.Context, _ ListScoresRequest) ([]domain.Score, error) {
	scores, err := s.store.ListScores(ctx)
	if err != nil {
		return nil, err
	}

	for i := range scores {
		scores[i].Value = Clamp(scores[i].Value)
	}

	return scores, nil
}
