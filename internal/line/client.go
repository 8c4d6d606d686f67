package line

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/victornm/scamquiz/internal/command"
	"github.com/victornm/scamquiz/internal/domain"
	"github.com/victornm/scamquiz/internal/errors"
)

const (
	DefaultEndpoint = "https://api.line.me"

	maxTextRunes   = 5000
	maxMessages    = 5
	defaultTimeout = 10 * time.Second
)

type Config struct {
	Endpoint    string
	AccessToken string
	HTTPClient  *http.Client
}

// Client sends replies through the LINE Messaging API.
type Client struct {
	api *messaging_api.MessagingApiAPI
}

func NewClient(c Config) (*Client, error) {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}

	api, err := messaging_api.NewMessagingApiAPI(c.AccessToken,
		messaging_api.WithEndpoint(c.Endpoint),
		messaging_api.WithHTTPClient(c.HTTPClient),
	)
	if err != nil {
		return nil, fmt.Errorf("line: new messaging api: %w", err)
	}

	return &Client{api: api}, nil
}

// NewTextMessage truncates text to the longest message LINE accepts.
func NewTextMessage(text string) *messaging_api.TextMessage {
	if r := []rune(text); len(r) > maxTextRunes {
		text = string(r[:maxTextRunes-1]) + "…"
	}

	return &messaging_api.TextMessage{Text: text}
}

// AnswerQuickReply offers yes and no buttons bound to questionID plus a shortcut to the analysis.
func AnswerQuickReply(questionID string) *messaging_api.QuickReply {
	return &messaging_api.QuickReply{Items: []messaging_api.QuickReplyItem{
		{Type: "action", Action: &messaging_api.PostbackAction{
			Label:       command.TextYes,
			Data:        command.AnswerData(questionID, true),
			DisplayText: command.TextYes,
		}},
		{Type: "action", Action: &messaging_api.PostbackAction{
			Label:       command.TextNo,
			Data:        command.AnswerData(questionID, false),
			DisplayText: command.TextNo,
		}},
		{Type: "action", Action: &messaging_api.MessageAction{
			Label: command.TextAnalysis,
			Text:  command.TextAnalysis,
		}},
	}}
}

// Reply answers the event identified by replyToken. Reply tokens are single-use.
// Cancellation is bounded by the HTTP client timeout.
func (c *Client) Reply(ctx context.Context, replyToken string, messages ...*messaging_api.TextMessage) error {
	if len(messages) == 0 {
		return nil
	}
	if len(messages) > maxMessages {
		messages = messages[:maxMessages]
	}

	req := &messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   make([]messaging_api.MessageInterface, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, m)
	}

	if _, err := c.api.ReplyMessage(req); err != nil {
		slog.WarnContext(ctx, "line: reply rejected", "error", err)
		return errors.Extend(domain.ErrDeliveryFailed, errors.WithCause(err))
	}

	return nil
}
