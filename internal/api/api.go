package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/scamquiz/internal/bot"
	"github.com/victornm/scamquiz/internal/command"
	"github.com/victornm/scamquiz/internal/errors"
	"github.com/victornm/scamquiz/internal/line"
	"github.com/victornm/scamquiz/internal/telemetry"
)

const defaultConcurrency = 8

const (
	eventTypeMessage  = "message"
	eventTypePostback = "postback"
	eventTypeOther    = "other"
)

type Replier interface {
	Reply(ctx context.Context, replyToken string, messages ...*messaging_api.TextMessage) error
}

type Config struct {
	ChannelSecret string
	Bot           *bot.Handler
	Replier       Replier
	Metrics       *telemetry.Metrics
	// Concurrency bounds the events of one webhook delivery handled at once.
	Concurrency int
}

type API struct {
	secret      string
	bot         *bot.Handler
	replier     Replier
	metrics     *telemetry.Metrics
	concurrency int
}

func New(c Config) *API {
	a := &API{
		secret:      c.ChannelSecret,
		bot:         c.Bot,
		replier:     c.Replier,
		metrics:     c.Metrics,
		concurrency: c.Concurrency,
	}

	if a.concurrency <= 0 {
		a.concurrency = defaultConcurrency
	}

	return a
}

func (a *API) Register(r gin.IRouter) {
	r.POST("/webhooks/line", a.HandleLineWebhook)
	r.GET("/healthz", a.Healthz)
}

// HandleLineWebhook verifies a delivery, then handles and replies to each of its events.
// A failed reply is logged and never fails the delivery.
func (a *API) HandleLineWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	cb, err := line.ParseRequest(a.secret, c.Request)
	if err != nil {
		e := errors.Convert(err)
		slog.WarnContext(ctx, "api: webhook rejected", "error", err)
		c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
		return
	}

	ctx = context.WithoutCancel(ctx)

	var eg errgroup.Group
	eg.SetLimit(a.concurrency)
	for _, ev := range cb.Events {
		ev := ev
		eg.Go(func() error {
			a.handleEvent(ctx, ev)
			return nil
		})
	}
	_ = eg.Wait()

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *API) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (a *API) handleEvent(ctx context.Context, ev webhook.EventInterface) {
	var (
		cmd        command.Command
		source     webhook.SourceInterface
		replyToken string
	)
	switch e := ev.(type) {
	case webhook.MessageEvent:
		a.metrics.CountWebhookEvent(eventTypeMessage)
		text, ok := e.Message.(webhook.TextMessageContent)
		if !ok || e.Mode != line.ModeActive {
			return
		}
		cmd, source, replyToken = command.Parse(text.Text), e.Source, e.ReplyToken
	case webhook.PostbackEvent:
		a.metrics.CountWebhookEvent(eventTypePostback)
		if e.Postback == nil || e.Mode != line.ModeActive {
			return
		}
		cmd, source, replyToken = command.ParsePostback(e.Postback.Data), e.Source, e.ReplyToken
	default:
		a.metrics.CountWebhookEvent(eventTypeOther)
		return
	}

	if replyToken == "" {
		return
	}

	conversantID := line.ConversantID(source)
	reply := a.bot.Handle(ctx, bot.Message{ConversantID: conversantID, Command: cmd})

	msg := line.NewTextMessage(reply.Text)
	if reply.Prompt != "" {
		msg.QuickReply = line.AnswerQuickReply(reply.Prompt)
	}

	if err := a.replier.Reply(ctx, replyToken, msg); err != nil {
		slog.ErrorContext(ctx, "api: deliver reply failed",
			"conversant", conversantID,
			"command", cmd.Kind.String(),
			"error", err,
		)
	}
}
