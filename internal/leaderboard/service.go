package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/victornm/scamquiz/internal/domain"
	"github.com/victornm/scamquiz/internal/score"
)

const (
	defaultSize = 10
	nameWidth   = 12
)

// EmptyText is rendered instead of a table when nobody has a score yet.
const EmptyText = "目前還沒有人上榜，輸入「出題」開始挑戰吧！"

type Config struct {
	Score *score.Service
	// Size is the number of rows rendered before the requester's own row.
	Size int
}

type Service struct {
	score *score.Service
	size  int
}

func NewService(c Config) *Service {
	size := c.Size
	if size <= 0 {
		size = defaultSize
	}

	return &Service{
		score: c.Score,
		size:  size,
	}
}

type GetLeaderboardRequest struct{}

// GetLeaderboard ranks every recorded score, highest first. Equal scores are ordered by
// ascending conversant ID, which is also the key order of the score stores. Ranks are
// 1-based positions, so tied conversants get consecutive ranks.
func (s *Service) GetLeaderboard(ctx context.Context, _ GetLeaderboardRequest) (*domain.Leaderboard, error) {
	scores, err := s.score.ListScores(ctx, score.ListScoresRequest{})
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Value != scores[j].Value {
			return scores[i].Value > scores[j].Value
		}
		return scores[i].ConversantID < scores[j].ConversantID
	})

	entries := make([]domain.LeaderboardEntry, 0, len(scores))
	for i, sc := range scores {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:         i + 1,
			ConversantID: sc.ConversantID,
			Score:        sc.Value,
		})
	}

	return &domain.Leaderboard{Entries: entries}, nil
}

type RankOfRequest struct {
	ConversantID string
}

type RankOfResponse struct {
	// Rank is 0 when the conversant has no score record.
	Rank  int
	Total int
}

func (s *Service) RankOf(ctx context.Context, req RankOfRequest) (*RankOfResponse, error) {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{})
	if err != nil {
		return nil, err
	}

	resp := &RankOfResponse{Total: len(l.Entries)}
	for _, e := range l.Entries {
		if e.ConversantID == req.ConversantID {
			resp.Rank = e.Rank
			break
		}
	}

	return resp, nil
}

type ComputeRankingRequest struct {
	ConversantID string
}

// ComputeRanking renders the leaderboard as a fixed-width table with the requester's row marked.
func (s *Service) ComputeRanking(ctx context.Context, req ComputeRankingRequest) (string, error) {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{})
	if err != nil {
		return "", err
	}

	return Render(l, req.ConversantID, s.size), nil
}

// Render draws at most size rows. When highlight ranks below them, its row is appended
// after an ellipsis line.
func Render(l *domain.Leaderboard, highlight string, size int) string {
	if l == nil || len(l.Entries) == 0 {
		return EmptyText
	}

	var b strings.Builder
	b.WriteString("🏆 排行榜\n")
	fmt.Fprintf(&b, "  %4s  %-*s %6s\n", "Rank", nameWidth, "Player", "Score")

	var own *domain.LeaderboardEntry
	for i := range l.Entries {
		e := &l.Entries[i]
		if e.ConversantID == highlight {
			own = e
		}
		if i < size {
			writeRow(&b, *e, e.ConversantID == highlight)
		}
	}

	if own != nil && own.Rank > size {
		b.WriteString("  ....\n")
		writeRow(&b, *own, true)
	}

	fmt.Fprintf(&b, "共 %d 位參與者", len(l.Entries))
	return b.String()
}

func writeRow(b *strings.Builder, e domain.LeaderboardEntry, mine bool) {
	marker := "  "
	if mine {
		marker = "> "
	}
	fmt.Fprintf(b, "%s%4d  %-*s %6d\n", marker, e.Rank, nameWidth, displayName(e.ConversantID), e.Score)
}

// displayName shortens an identifier to nameWidth runes, keeping its head and tail.
func displayName(id string) string {
	r := []rune(id)
	if len(r) <= nameWidth {
		return id
	}

	head := (nameWidth - 1) / 2
	tail := nameWidth - 1 - head
	return string(r[:head]) + "…" + string(r[len(r)-tail:])
}
