package bot_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/scamquiz/internal/bot"
	"github.com/victornm/scamquiz/internal/command"
	"github.com/victornm/scamquiz/internal/domain"
	"github.com/victornm/scamquiz/internal/leaderboard"
	"github.com/victornm/scamquiz/internal/quiz"
	"github.com/victornm/scamquiz/internal/score"
	redisstore "github.com/victornm/scamquiz/internal/storage/redis"
	"github.com/victornm/scamquiz/internal/telemetry"
)

const scamText = "【台灣銀行】您的帳戶異常，請點擊連結驗證身分。"

func TestHandler_EndToEnd(t *testing.T) {
	ctx := context.Background()
	h, _ := makeHandler(t)

	reply := h.Handle(ctx, say("u1", "出題"))
	assert.Contains(t, reply.Text, scamText)
	assert.Equal(t, "q1", reply.Prompt, "a question reply should offer answer buttons")

	reply = h.Handle(ctx, say("u1", "是"))
	assert.Contains(t, reply.Text, "答對了")
	assert.Contains(t, reply.Text, "目前總分：50 分")
	assert.Empty(t, reply.Prompt)

	reply = h.Handle(ctx, say("u1", "是"))
	assert.Equal(t, bot.TextAlreadyAnswered, reply.Text)

	reply = h.Handle(ctx, say("u1", "分數"))
	assert.Equal(t, "您目前的分數：50 分\n排名 1/1", reply.Text)
}

func TestHandler_WrongAnswer(t *testing.T) {
	ctx := context.Background()
	h, mr := makeHandler(t)
	mr.HSet("test:score", "u1", "30")

	h.Handle(ctx, say("u1", "出題"))
	reply := h.Handle(ctx, say("u1", "否"))

	assert.Contains(t, reply.Text, "答錯了！這則訊息是詐騙訊息。")
	assert.Contains(t, reply.Text, "目前總分：0 分")
	assert.Contains(t, reply.Text, "1. 連結網址不是官方網域")
}

func TestHandler_PostbackAnswer(t *testing.T) {
	ctx := context.Background()
	h, _ := makeHandler(t)

	first := h.Handle(ctx, say("u1", "出題"))
	h.Handle(ctx, say("u1", "出題"))

	stale := h.Handle(ctx, bot.Message{ConversantID: "u1", Command: command.ParsePostback(command.AnswerData(first.Prompt, true))})
	assert.Equal(t, bot.TextNoQuestionToAnswer, stale.Text, "buttons of an abandoned question are inert")

	current := h.Handle(ctx, bot.Message{ConversantID: "u1", Command: command.ParsePostback(command.AnswerData("q2", true))})
	assert.Contains(t, current.Text, "答對了")
}

func TestHandler_Replies(t *testing.T) {
	tests := map[string]struct {
		arrange func(t *testing.T, h *bot.Handler, mr *miniredis.Miniredis)
		text    string
		want    string
	}{
		"unrecognized text returns help": {
			text: "你好",
			want: bot.TextHelp,
		},
		"answer without a question": {
			text: "是",
			want: bot.TextNoQuestionToAnswer,
		},
		"analysis without a question": {
			text: "解析",
			want: bot.TextNoQuestionToAnalyze,
		},
		"analysis of the current question": {
			arrange: func(t *testing.T, h *bot.Handler, _ *miniredis.Miniredis) {
				h.Handle(context.Background(), say("u1", "出題"))
			},
			text: "解析",
			want: "詐騙訊息分析:\n\n1. 連結網址不是官方網域",
		},
		"score without any record": {
			text: "分數",
			want: "您目前的分數：0 分\n還沒有排名，輸入「出題」開始挑戰吧！",
		},
		"empty leaderboard": {
			text: "排行榜",
			want: leaderboard.EmptyText,
		},
		"store unavailable": {
			arrange: func(t *testing.T, _ *bot.Handler, mr *miniredis.Miniredis) {
				mr.Close()
			},
			text: "分數",
			want: bot.TextUnavailable,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h, mr := makeHandler(t)
			if tt.arrange != nil {
				tt.arrange(t, h, mr)
			}

			reply := h.Handle(context.Background(), say("u1", tt.text))
			assert.Equal(t, tt.want, reply.Text)
			assert.Empty(t, reply.Prompt)
		})
	}
}

func TestHandler_CollaboratorFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("generation", func(t *testing.T) {
		h, _ := makeHandler(t, withGenerator(fakeGenerator{err: stderrors.New("quota")}))
		reply := h.Handle(ctx, say("u1", "出題"))
		assert.Equal(t, bot.TextGenerationFailed, reply.Text)
		assert.Empty(t, reply.Prompt)
	})

	t.Run("analysis on a wrong answer", func(t *testing.T) {
		h, _ := makeHandler(t, withAnalyzer(fakeAnalyzer{err: stderrors.New("overloaded")}))
		h.Handle(ctx, say("u1", "出題"))

		reply := h.Handle(ctx, say("u1", "否"))
		assert.Equal(t, bot.TextAnswerNotRecorded, reply.Text)

		reply = h.Handle(ctx, say("u1", "分數"))
		assert.Contains(t, reply.Text, "您目前的分數：0 分")
	})

	t.Run("analysis on request", func(t *testing.T) {
		h, _ := makeHandler(t, withAnalyzer(fakeAnalyzer{err: stderrors.New("overloaded")}))
		h.Handle(ctx, say("u1", "出題"))

		reply := h.Handle(ctx, say("u1", "解析"))
		assert.Equal(t, bot.TextAnalysisFailed, reply.Text)
	})
}

func TestHandler_Leaderboard(t *testing.T) {
	ctx := context.Background()
	h, mr := makeHandler(t)
	mr.HSet("test:score", "A", "100")
	mr.HSet("test:score", "B", "50")
	mr.HSet("test:score", "C", "100")

	reply := h.Handle(ctx, say("B", "排行榜"))
	assert.Contains(t, reply.Text, "🏆 排行榜")
	assert.Contains(t, reply.Text, ">    3  B")

	reply = h.Handle(ctx, say("C", "分數"))
	assert.Equal(t, "您目前的分數：100 分\n排名 2/3", reply.Text)
}

func TestHandler_CountsCommands(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := telemetry.NewMetrics(reg)
	require.NoError(t, err)

	h, _ := makeHandler(t, withMetrics(m))
	h.Handle(context.Background(), say("u1", "出題"))
	h.Handle(context.Background(), say("u1", "分數"))
	h.Handle(context.Background(), say("u1", "hello"))

	n, err := testutil.GatherAndCount(reg, "scamquiz_commands_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func say(conversantID, text string) bot.Message {
	return bot.Message{ConversantID: conversantID, Command: command.Parse(text)}
}

type handlerConfig struct {
	generator quiz.Generator
	analyzer  quiz.Analyzer
	metrics   *telemetry.Metrics
}

type options func(c *handlerConfig)

func withGenerator(g quiz.Generator) options {
	return func(c *handlerConfig) { c.generator = g }
}

func withAnalyzer(a quiz.Analyzer) options {
	return func(c *handlerConfig) { c.analyzer = a }
}

func withMetrics(m *telemetry.Metrics) options {
	return func(c *handlerConfig) { c.metrics = m }
}

func makeHandler(t *testing.T, opts ...options) (*bot.Handler, *miniredis.Miniredis) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	mr := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:      []string{mr.Addr()},
		MaxRetries: -1,
	})
	t.Cleanup(func() { _ = rc.Close() })
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	c := handlerConfig{
		generator: fakeGenerator{example: domain.Example{ScamText: scamText, LegitText: "【台灣銀行】您的信用卡帳單已出帳。"}},
		analyzer:  fakeAnalyzer{analysis: "1. 連結網址不是官方網域"},
	}
	for _, opt := range opts {
		opt(&c)
	}

	store := redisstore.NewStore(redisstore.Config{Redis: rc, Prefix: "test"})
	scores := score.NewService(score.Config{Store: store})

	var seq int
	q := quiz.NewService(quiz.Config{
		Sessions:  store,
		Score:     scores,
		Generator: c.generator,
		Analyzer:  c.analyzer,
		ShowScam:  func() bool { return true },
		NewQuestionID: func() (string, error) {
			seq++
			return fmt.Sprintf("q%d", seq), nil
		},
	})

	return bot.NewHandler(bot.Config{
		Quiz:        q,
		Leaderboard: leaderboard.NewService(leaderboard.Config{Score: scores}),
		Metrics:     c.metrics,
	}), mr
}

type fakeGenerator struct {
	example domain.Example
	err     error
}

func (g fakeGenerator) Generate(context.Context, string) (domain.Example, error) {
	return g.example, g.err
}

type fakeAnalyzer struct {
	analysis string
	err      error
}

func (a fakeAnalyzer) Analyze(context.Context, domain.AnalysisRequest) (string, error) {
	return a.analysis, a.err
}
