// Package htmlsanitize strips markup from user-entered text.
package htmlsanitize

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// strict removes every element. Content of script, style and similar
// elements is dropped along with the tags.
var strict = bluemonday.StrictPolicy()

// PlainText removes all HTML from s and returns the remaining text with
// entities decoded. The result is plain text, not safe HTML; callers that
// render it into markup must escape it.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return html.UnescapeString(strict.Sanitize(s))
}
