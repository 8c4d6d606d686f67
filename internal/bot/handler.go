package bot

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/victornm/scamquiz/internal/command"
	"github.com/victornm/scamquiz/internal/domain"
	"github.com/victornm/scamquiz/internal/errors"
	"github.com/victornm/scamquiz/internal/leaderboard"
	"github.com/victornm/scamquiz/internal/quiz"
	"github.com/victornm/scamquiz/internal/score"
	"github.com/victornm/scamquiz/internal/telemetry"
)

const (
	TextHelp = "未能識別的指令，請輸入「出題」生成一個詐騙訊息範例，或輸入「解析」來分析上一個生成的範例。\n" +
		"輸入「分數」查看目前分數，輸入「排行榜」查看排名。"

	TextNoQuestionToAnswer  = "目前沒有待回答的題目，請先輸入「出題」生成一個範例。"
	TextNoQuestionToAnalyze = "目前沒有可供解析的訊息，請先輸入「出題」生成一個範例。"
	TextAlreadyAnswered     = "這題已經回答過了，輸入「出題」挑戰下一題，或輸入「解析」查看分析。"
	TextGenerationFailed    = "目前無法產生題目，請稍後再試一次。"
	TextAnalysisFailed      = "目前無法產生解析，請稍後再試一次。"
	TextAnswerNotRecorded   = "目前無法產生解析，這次的答案尚未記錄，請稍後再回答一次。"
	TextUnavailable         = "系統忙碌中，請稍後再試一次。"
)

type Config struct {
	Quiz        *quiz.Service
	Leaderboard *leaderboard.Service
	Metrics     *telemetry.Metrics
}

// Handler turns classified chat commands into reply texts. It never returns an error: every
// outcome, failures included, becomes a message for the conversant.
type Handler struct {
	quiz        *quiz.Service
	leaderboard *leaderboard.Service
	metrics     *telemetry.Metrics
}

func NewHandler(c Config) *Handler {
	return &Handler{
		quiz:        c.Quiz,
		leaderboard: c.Leaderboard,
		metrics:     c.Metrics,
	}
}

type Message struct {
	ConversantID string
	Command      command.Command
}

type Reply struct {
	Text string
	// Prompt is the question the reply asks the conversant to classify, empty when the reply
	// expects no answer.
	Prompt string
}

func (h *Handler) Handle(ctx context.Context, m Message) Reply {
	h.metrics.CountCommand(m.Command.Kind.String())

	switch m.Command.Kind {
	case command.NewQuestion:
		return h.issueQuestion(ctx, m)
	case command.Answer:
		return h.submitAnswer(ctx, m)
	case command.RequestAnalysis:
		return h.requestAnalysis(ctx, m)
	case command.QueryScore:
		return h.queryScore(ctx, m)
	case command.ShowLeaderboard:
		return h.showLeaderboard(ctx, m)
	default:
		return Reply{Text: TextHelp}
	}
}

func (h *Handler) issueQuestion(ctx context.Context, m Message) Reply {
	ss, err := h.quiz.IssueQuestion(ctx, quiz.IssueQuestionRequest{ConversantID: m.ConversantID})
	if err != nil {
		return h.failure(ctx, m, err)
	}

	return Reply{
		Text:   fmt.Sprintf("請判斷以下訊息是否為詐騙：\n\n%s\n\n是詐騙請回覆「是」，不是詐騙請回覆「否」。", ss.DisplayedText),
		Prompt: ss.QuestionID,
	}
}

func (h *Handler) submitAnswer(ctx context.Context, m Message) Reply {
	resp, err := h.quiz.SubmitAnswer(ctx, quiz.SubmitAnswerRequest{
		ConversantID: m.ConversantID,
		QuestionID:   m.Command.QuestionID,
		Guess:        m.Command.Guess,
	})
	if err != nil {
		return h.failure(ctx, m, err)
	}

	if resp.Correct {
		return Reply{Text: fmt.Sprintf("答對了！這則訊息%s。\n獲得 %d 分，目前總分：%d 分。\n\n輸入「出題」繼續挑戰，或輸入「解析」查看詳細分析。",
			label(resp.IsScam), score.Reward, resp.Score)}
	}

	return Reply{Text: fmt.Sprintf("答錯了！這則訊息%s。\n扣除 %d 分，目前總分：%d 分。\n\n詐騙訊息分析:\n\n%s\n\n輸入「出題」繼續挑戰。",
		label(resp.IsScam), score.Reward, resp.Score, resp.Analysis)}
}

func (h *Handler) requestAnalysis(ctx context.Context, m Message) Reply {
	resp, err := h.quiz.RequestAnalysis(ctx, quiz.RequestAnalysisRequest{ConversantID: m.ConversantID})
	if err != nil {
		return h.failure(ctx, m, err)
	}

	return Reply{Text: "詐騙訊息分析:\n\n" + resp.Analysis}
}

func (h *Handler) queryScore(ctx context.Context, m Message) Reply {
	sc, err := h.quiz.QueryScore(ctx, quiz.QueryScoreRequest{ConversantID: m.ConversantID})
	if err != nil {
		return h.failure(ctx, m, err)
	}

	rank, err := h.leaderboard.RankOf(ctx, leaderboard.RankOfRequest{ConversantID: m.ConversantID})
	if err != nil {
		return h.failure(ctx, m, err)
	}

	if rank.Rank == 0 {
		return Reply{Text: fmt.Sprintf("您目前的分數：%d 分\n還沒有排名，輸入「出題」開始挑戰吧！", sc.Value)}
	}
	return Reply{Text: fmt.Sprintf("您目前的分數：%d 分\n排名 %d/%d", sc.Value, rank.Rank, rank.Total)}
}

func (h *Handler) showLeaderboard(ctx context.Context, m Message) Reply {
	text, err := h.leaderboard.ComputeRanking(ctx, leaderboard.ComputeRankingRequest{ConversantID: m.ConversantID})
	if err != nil {
		return h.failure(ctx, m, err)
	}

	return Reply{Text: text}
}

func (h *Handler) failure(ctx context.Context, m Message, err error) Reply {
	switch {
	case stderrors.Is(err, domain.ErrNoActiveQuestion):
		if m.Command.Kind == command.RequestAnalysis {
			return Reply{Text: TextNoQuestionToAnalyze}
		}
		return Reply{Text: TextNoQuestionToAnswer}
	case stderrors.Is(err, domain.ErrAlreadyAnswered):
		slog.InfoContext(ctx, "bot: duplicate answer",
			"conversant", m.ConversantID,
			"reason", errors.Convert(err).Reason,
		)
		return Reply{Text: TextAlreadyAnswered}
	case stderrors.Is(err, domain.ErrGenerationFailed):
		return Reply{Text: TextGenerationFailed}
	case stderrors.Is(err, domain.ErrAnalysisFailed):
		if m.Command.Kind == command.Answer {
			return Reply{Text: TextAnswerNotRecorded}
		}
		return Reply{Text: TextAnalysisFailed}
	}

	slog.ErrorContext(ctx, "bot: handle command failed",
		"conversant", m.ConversantID,
		"command", m.Command.Kind.String(),
		"error", err,
	)
	return Reply{Text: TextUnavailable}
}

func label(isScam bool) string {
	if isScam {
		return "是詐騙訊息"
	}
	return "不是詐騙訊息"
}
