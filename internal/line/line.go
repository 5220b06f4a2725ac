// Package line adapts the LINE Messaging API to the bot's inbound and outbound types.
package line

import (
	"context"
	"fmt"
	"net/http"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/khayami66/study-support-bot/internal/apperror"
	"github.com/khayami66/study-support-bot/internal/model"
)

// ErrInvalidSignature is returned when the X-Line-Signature header does not match the body.
var ErrInvalidSignature = webhook.ErrInvalidSignature

// Parser verifies a webhook request and extracts its text messages.
type Parser struct {
	secret string
}

// NewParser returns a Parser for the channel secret.
func NewParser(channelSecret string) *Parser {
	return &Parser{secret: channelSecret}
}

// Parse returns the text messages carried by r. Other event types are ignored.
func (p *Parser) Parse(r *http.Request) ([]model.InboundMessage, error) {
	cb, err := webhook.ParseRequest(p.secret, r)
	if err != nil {
		return nil, err
	}

	var msgs []model.InboundMessage
	for _, event := range cb.Events {
		e, ok := event.(webhook.MessageEvent)
		if !ok {
			continue
		}
		text, ok := e.Message.(webhook.TextMessageContent)
		if !ok {
			continue
		}
		in := model.InboundMessage{
			UserID:     sourceUserID(e.Source),
			Text:       text.Text,
			ReplyToken: e.ReplyToken,
			EventID:    e.WebhookEventId,
		}
		if e.DeliveryContext != nil {
			in.Redelivery = e.DeliveryContext.IsRedelivery
		}
		msgs = append(msgs, in)
	}
	return msgs, nil
}

func sourceUserID(src webhook.SourceInterface) string {
	switch s := src.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	default:
		return ""
	}
}

// Client sends replies and pushes through the Messaging API. A Client built without a
// channel access token has no API and fails every send with apperror.ErrMessagingNotConfigured.
type Client struct {
	api *messaging_api.MessagingApiAPI
}

// NewClient creates a Client authenticated with the channel access token.
func NewClient(channelAccessToken string) (*Client, error) {
	if channelAccessToken == "" {
		return &Client{}, nil
	}
	api, err := messaging_api.NewMessagingApiAPI(channelAccessToken)
	if err != nil {
		return nil, fmt.Errorf("create messaging api client: %w", err)
	}
	return &Client{api: api}, nil
}

// Configured reports whether the client can reach the Messaging API.
func (c *Client) Configured() bool {
	return c.api != nil
}

// Reply answers the event identified by replyToken.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	if c.api == nil {
		return fmt.Errorf("reply message: %w", apperror.ErrMessagingNotConfigured)
	}
	_, err := c.api.WithContext(ctx).ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   []messaging_api.MessageInterface{messaging_api.TextMessage{Text: text}},
	})
	if err != nil {
		return fmt.Errorf("reply message: %w", err)
	}
	return nil
}

// Push sends an unsolicited message to a user.
func (c *Client) Push(ctx context.Context, to, text, retryKey string) error {
	if c.api == nil {
		return fmt.Errorf("push message: %w", apperror.ErrMessagingNotConfigured)
	}
	_, err := c.api.WithContext(ctx).PushMessage(&messaging_api.PushMessageRequest{
		To:       to,
		Messages: []messaging_api.MessageInterface{messaging_api.TextMessage{Text: text}},
	}, retryKey)
	if err != nil {
		return fmt.Errorf("push message: %w", err)
	}
	return nil
}
