// Package mail turns provider messages into the records written to the sheet.
package mail

import (
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// MaxBodyLength is the number of characters of body kept in a sheet row.
const MaxBodyLength = 1000

// ErrParse is returned for messages that cannot be turned into a record.
var ErrParse = errors.New("unparseable message")

// Parse extracts sender, subject, date and plain-text body from msg.
func Parse(msg *Message) (*EmailRecord, error) {
	if msg == nil {
		return nil, errors.Wrap(ErrParse, "nil message")
	}
	if msg.Payload == nil {
		return nil, errors.Wrapf(ErrParse, "message %s has no payload", msg.ID)
	}

	body, err := extractBody(msg.Payload)
	if err != nil {
		return nil, errors.Wrapf(err, "message %s", msg.ID)
	}

	return &EmailRecord{
		From:    headerValue(msg.Headers, "From"),
		Subject: headerValue(msg.Headers, "Subject"),
		Date:    headerValue(msg.Headers, "Date"),
		Body:    strings.TrimSpace(body),
	}, nil
}

// headerValue returns the first header named exactly name, or "".
func headerValue(headers []Header, name string) string {
	for _, h := range headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

// extractBody picks the text of the payload. In a multipart payload the first
// text/plain part wins; failing that the last text/html part is converted.
// Only the payload's direct children are considered, so a nested
// multipart/alternative (as under multipart/mixed with an attachment)
// yields an empty body.
func extractBody(payload *Part) (string, error) {
	if len(payload.Parts) == 0 {
		if len(payload.Body) == 0 {
			return "", nil
		}
		text, err := decodeText(payload.Body)
		if err != nil {
			return "", err
		}
		if strings.EqualFold(payload.MimeType, "text/html") {
			return HTMLToText(text), nil
		}
		return text, nil
	}

	var html []byte
	for _, part := range payload.Parts {
		if len(part.Body) == 0 {
			continue
		}
		switch strings.ToLower(part.MimeType) {
		case "text/plain":
			return decodeText(part.Body)
		case "text/html":
			html = part.Body
		}
	}
	if html == nil {
		return "", nil
	}
	text, err := decodeText(html)
	if err != nil {
		return "", err
	}
	return HTMLToText(text), nil
}

func decodeText(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", errors.Wrap(ErrParse, "body is not valid UTF-8")
	}
	return string(b), nil
}

// Truncate cuts s to at most max characters.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
