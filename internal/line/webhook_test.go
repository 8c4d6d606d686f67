package line_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/scamquiz/internal/domain"
	"github.com/victornm/scamquiz/internal/errors"
	"github.com/victornm/scamquiz/internal/line"
)

const secret = "channel-secret"

const body = `{
  "destination": "Ubot",
  "events": [
    {
      "type": "message",
      "mode": "active",
      "timestamp": 1714557600000,
      "webhookEventId": "e1",
      "deliveryContext": {"isRedelivery": false},
      "replyToken": "token-1",
      "source": {"type": "user", "userId": "U1"},
      "message": {"id": "m1", "type": "text", "quoteToken": "qt1", "text": "出題"}
    },
    {
      "type": "postback",
      "mode": "active",
      "timestamp": 1714557601000,
      "webhookEventId": "e2",
      "deliveryContext": {"isRedelivery": false},
      "replyToken": "token-2",
      "source": {"type": "group", "groupId": "G1", "userId": "U2"},
      "postback": {"data": "action=answer&guess=yes&qid=q1"}
    }
  ]
}`

func TestParseRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/webhooks/line", strings.NewReader(body))
	r.Header.Set(line.SignatureHeader, sign(secret, body))

	got, err := line.ParseRequest(secret, r)
	require.NoError(t, err)
	require.Len(t, got.Events, 2)

	msg, ok := got.Events[0].(webhook.MessageEvent)
	require.True(t, ok, "first event should be a message, got %T", got.Events[0])
	assert.Equal(t, "token-1", msg.ReplyToken)
	assert.EqualValues(t, line.ModeActive, msg.Mode)
	assert.Equal(t, "U1", line.ConversantID(msg.Source))
	text, ok := msg.Message.(webhook.TextMessageContent)
	require.True(t, ok, "message should be text, got %T", msg.Message)
	assert.Equal(t, "出題", text.Text)

	pb, ok := got.Events[1].(webhook.PostbackEvent)
	require.True(t, ok, "second event should be a postback, got %T", got.Events[1])
	assert.Equal(t, "G1", line.ConversantID(pb.Source), "a group is scored as one conversant")
	require.NotNil(t, pb.Postback)
	assert.Equal(t, "action=answer&guess=yes&qid=q1", pb.Postback.Data)
}

func TestParseRequest_Rejects(t *testing.T) {
	tests := map[string]struct {
		body      string
		signature string
		errIs     error
		code      errors.Code
	}{
		"bad signature": {
			body:      body,
			signature: sign("other", body),
			errIs:     domain.ErrInvalidSignature,
			code:      errors.CodeUnauthenticated,
		},
		"tampered body": {
			body:      body + " ",
			signature: sign(secret, body),
			errIs:     domain.ErrInvalidSignature,
			code:      errors.CodeUnauthenticated,
		},
		"missing signature": {
			body:  body,
			errIs: domain.ErrInvalidSignature,
			code:  errors.CodeUnauthenticated,
		},
		"signed garbage": {
			body:      "not json",
			signature: sign(secret, "not json"),
			code:      errors.CodeInvalidArgument,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodPost, "/webhooks/line", strings.NewReader(tt.body))
			if tt.signature != "" {
				r.Header.Set(line.SignatureHeader, tt.signature)
			}

			_, err := line.ParseRequest(secret, r)
			require.Error(t, err)
			if tt.errIs != nil {
				require.ErrorIs(t, err, tt.errIs)
			}
			assert.Equal(t, tt.code, errors.Convert(err).Code)
		})
	}
}

func TestConversantID(t *testing.T) {
	tests := map[string]struct {
		source webhook.SourceInterface
		want   string
	}{
		"user":             {source: webhook.UserSource{UserId: "U1"}, want: "U1"},
		"group":            {source: webhook.GroupSource{GroupId: "G1", UserId: "U1"}, want: "G1"},
		"room":             {source: webhook.RoomSource{RoomId: "R1", UserId: "U1"}, want: "R1"},
		"group without id": {source: webhook.GroupSource{UserId: "U1"}, want: "U1"},
		"no source":        {source: nil, want: ""},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, line.ConversantID(tt.source))
		})
	}
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
