package line

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/victornm/scamquiz/internal/domain"
	"github.com/victornm/scamquiz/internal/errors"
)

const SignatureHeader = "X-Line-Signature"

// ModeActive is the only channel mode in which events carry a usable reply token.
const ModeActive = "active"

const maxBodySize = 1 << 20

// ParseRequest verifies and decodes a webhook delivery. The body is never decoded before the
// signature matches.
func ParseRequest(secret string, r *http.Request) (*webhook.CallbackRequest, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodySize)

	cb, err := webhook.ParseRequest(secret, r)
	switch {
	case stderrors.Is(err, webhook.ErrInvalidSignature):
		return nil, domain.ErrInvalidSignature
	case err != nil:
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("decode webhook: %v", err), errors.WithCause(fmt.Errorf("parse: %w", err)))
	}

	return cb, nil
}

// ConversantID identifies whoever the bot is talking to. A group or room is one conversant
// regardless of which member wrote.
func ConversantID(src webhook.SourceInterface) string {
	switch s := src.(type) {
	case webhook.GroupSource:
		if s.GroupId != "" {
			return s.GroupId
		}
		return s.UserId
	case webhook.RoomSource:
		if s.RoomId != "" {
			return s.RoomId
		}
		return s.UserId
	case webhook.UserSource:
		return s.UserId
	default:
		return ""
	}
}
