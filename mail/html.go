package mail

import (
	"regexp"

	"github.com/jaytaylor/html2text"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

var fromString = html2text.FromString

// HTMLToText renders an HTML body as readable text, keeping link targets
// inline. If the document cannot be converted the tags are stripped instead.
func HTMLToText(html string) string {
	text, err := fromString(html, html2text.Options{OmitLinks: false})
	if err != nil {
		return tagPattern.ReplaceAllString(html, "")
	}
	return text
}
