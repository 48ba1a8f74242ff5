package mail

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headers(from, subject, date string) []Header {
	return []Header{
		{Name: "Delivered-To", Value: "me@example.com"},
		{Name: "From", Value: from},
		{Name: "Subject", Value: subject},
		{Name: "Date", Value: date},
	}
}

func TestParse_Headers(t *testing.T) {
	msg := &Message{
		ID:      "m1",
		Headers: headers("Ada <ada@example.com>", "Weekly Invoice #4", "Tue, 1 Oct 2024 09:00:00 +0000"),
		Payload: &Part{MimeType: "text/plain", Body: []byte("hi")},
	}

	rec, err := Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, "Ada <ada@example.com>", rec.From)
	assert.Equal(t, "Weekly Invoice #4", rec.Subject)
	assert.Equal(t, "Tue, 1 Oct 2024 09:00:00 +0000", rec.Date)
	assert.Equal(t, "hi", rec.Body)
}

func TestParse_MissingHeadersAreEmpty(t *testing.T) {
	msg := &Message{
		ID:      "m1",
		Headers: []Header{{Name: "from", Value: "lowercase does not match"}},
		Payload: &Part{MimeType: "text/plain", Body: []byte("body")},
	}

	rec, err := Parse(msg)
	require.NoError(t, err)
	assert.Empty(t, rec.From)
	assert.Empty(t, rec.Subject)
	assert.Empty(t, rec.Date)
}

func TestParse_PlainPartBeatsHTML(t *testing.T) {
	msg := &Message{
		ID:      "m1",
		Headers: headers("a", "b", "c"),
		Payload: &Part{
			MimeType: "multipart/alternative",
			Parts: []Part{
				{MimeType: "text/html", Body: []byte("<p>from html</p>")},
				{MimeType: "text/plain", Body: []byte("  from plain\n")},
				{MimeType: "text/html", Body: []byte("<p>later html</p>")},
			},
		},
	}

	rec, err := Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, "from plain", rec.Body)
}

func TestParse_LastHTMLPartWins(t *testing.T) {
	msg := &Message{
		ID: "m1",
		Payload: &Part{
			MimeType: "multipart/mixed",
			Parts: []Part{
				{MimeType: "text/html", Body: []byte("<p>first</p>")},
				{MimeType: "image/png", Body: []byte{0x89, 0x50}},
				{MimeType: "text/html", Body: []byte("<p>second</p>")},
			},
		},
	}

	rec, err := Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, "second", rec.Body)
}

func TestParse_PlainPartWithoutDataIsIgnored(t *testing.T) {
	msg := &Message{
		ID: "m1",
		Payload: &Part{
			MimeType: "multipart/alternative",
			Parts: []Part{
				{MimeType: "text/plain"},
				{MimeType: "text/html", Body: []byte("<span>html only</span>")},
			},
		},
	}

	rec, err := Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, "html only", rec.Body)
}

func TestParse_SinglePartHTMLIsStripped(t *testing.T) {
	msg := &Message{
		ID: "m1",
		Payload: &Part{
			MimeType: "text/html",
			Body:     []byte(`<html><body><h1>Hello</h1><p>See <a href="https://example.com/x">the report</a></p></body></html>`),
		},
	}

	rec, err := Parse(msg)
	require.NoError(t, err)
	assert.NotContains(t, rec.Body, "<")
	assert.Contains(t, rec.Body, "Hello")
	assert.Contains(t, rec.Body, "the report")
	assert.Contains(t, rec.Body, "https://example.com/x")
}

func TestParse_NoTextPartsGivesEmptyBody(t *testing.T) {
	msg := &Message{
		ID: "m1",
		Payload: &Part{
			MimeType: "multipart/mixed",
			Parts:    []Part{{MimeType: "application/pdf", Body: []byte("%PDF")}},
		},
	}

	rec, err := Parse(msg)
	require.NoError(t, err)
	assert.Empty(t, rec.Body)
}

func TestParse_Failures(t *testing.T) {
	_, err := Parse(nil)
	assert.True(t, errors.Is(err, ErrParse))

	_, err = Parse(&Message{ID: "no-payload"})
	assert.True(t, errors.Is(err, ErrParse))

	_, err = Parse(&Message{ID: "latin1", Payload: &Part{MimeType: "text/plain", Body: []byte{0xff, 0xfe, 'a'}}})
	assert.True(t, errors.Is(err, ErrParse))
}

func TestParse_IsDeterministic(t *testing.T) {
	msg := &Message{
		ID:      "m1",
		Headers: headers("a", "b", "c"),
		Payload: &Part{MimeType: "text/html", Body: []byte("<div>same <span>input</span></div>")},
	}

	first, err := Parse(msg)
	require.NoError(t, err)
	second, err := Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRow_TruncatesBody(t *testing.T) {
	long := strings.Repeat("é", MaxBodyLength+25)
	row := EmailRecord{From: "f", Subject: "s", Date: "d", Body: long}.Row()

	require.Len(t, row, 4)
	assert.Equal(t, []string{"f", "s", "d"}, row[:3])
	assert.Equal(t, MaxBodyLength, len([]rune(row[3])))

	short := "short body"
	assert.Equal(t, short, EmailRecord{Body: short}.Row()[3])

	exact := strings.Repeat("x", MaxBodyLength)
	assert.Equal(t, exact, EmailRecord{Body: exact}.Row()[3])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "日本", Truncate("日本語", 2))
}
