// Package gmail reads unread messages through the Gmail API and marks them
// read once they are on the sheet.
package gmail

import (
	"context"
	"encoding/base64"
	"strings"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/bassamadnan/mailsheet/mail"
	"github.com/bassamadnan/mailsheet/retry"
)

const (
	user = "me"

	DefaultQuery      = "is:unread"
	DefaultMaxResults = 100

	unreadLabel = "UNREAD"
)

// Client is the mailbox gateway for the Gmail API.
type Client struct {
	srv        *gmail.Service
	query      string
	maxResults int64
}

// NewClient builds the gateway. opts carry the authorized HTTP client, or an
// endpoint override in tests.
func NewClient(ctx context.Context, query string, maxResults int64, opts ...option.ClientOption) (*Client, error) {
	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, retry.Provider("gmail: create service", err)
	}
	if query == "" {
		query = DefaultQuery
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Client{srv: srv, query: query, maxResults: maxResults}, nil
}

// ListUnread returns the ids of the first page of messages matching the query.
func (c *Client) ListUnread(ctx context.Context) ([]string, error) {
	resp, err := c.srv.Users.Messages.List(user).
		Q(c.query).
		MaxResults(c.maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, retry.Provider("gmail: list messages", err)
	}
	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// Fetch returns the full message with id.
func (c *Client) Fetch(ctx context.Context, id string) (*mail.Message, error) {
	msg, err := c.srv.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, retry.Provider("gmail: get message "+id, err)
	}
	return convertMessage(msg), nil
}

// MarkRead removes the UNREAD label from id.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	req := &gmail.ModifyMessageRequest{RemoveLabelIds: []string{unreadLabel}}
	if _, err := c.srv.Users.Messages.Modify(user, id, req).Context(ctx).Do(); err != nil {
		return retry.Provider("gmail: mark read "+id, err)
	}
	return nil
}

func convertMessage(msg *gmail.Message) *mail.Message {
	if msg == nil {
		return nil
	}
	out := &mail.Message{ID: msg.Id}
	if msg.Payload == nil {
		return out
	}
	for _, h := range msg.Payload.Headers {
		out.Headers = append(out.Headers, mail.Header{Name: h.Name, Value: h.Value})
	}
	p := convertPart(msg.Payload)
	out.Payload = &p
	return out
}

func convertPart(p *gmail.MessagePart) mail.Part {
	part := mail.Part{MimeType: p.MimeType}
	if p.Body != nil && p.Body.Data != "" {
		part.Body = decodeBody(p.Body.Data)
	}
	for _, child := range p.Parts {
		if child == nil {
			continue
		}
		part.Parts = append(part.Parts, convertPart(child))
	}
	return part
}

// decodeBody decodes base64url data with or without padding. Undecodable
// data yields an empty body.
func decodeBody(data string) []byte {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return nil
	}
	return b
}
