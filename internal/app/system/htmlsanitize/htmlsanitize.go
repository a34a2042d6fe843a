// Package htmlsanitize provides HTML sanitization for post content.
// It uses bluemonday with an explicit allow-list and goldmark for posts authored in Markdown.
package htmlsanitize

import (
	"bytes"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	// policy is the shared bluemonday policy for post content.
	policy     *bluemonday.Policy
	policyOnce sync.Once

	md = goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.Linkify))
)

// AllowedTags lists every element that survives sanitization.
var AllowedTags = []string{
	"p", "br", "strong", "em", "u",
	"h1", "h2", "h3", "h4", "h5", "h6",
	"ul", "ol", "li", "blockquote", "code", "pre",
	"a", "img",
}

// getPolicy returns the shared sanitization policy, creating it on first use.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		// Start from an empty policy; nothing is allowed unless listed here.
		policy = bluemonday.NewPolicy()

		policy.AllowElements(AllowedTags...)

		// Links and images keep only their content attributes.
		policy.AllowAttrs("href").OnElements("a")
		policy.AllowAttrs("src", "alt", "title").OnElements("img")

		policy.AllowURLSchemes("http", "https", "mailto")
		policy.AllowRelativeURLs(true)
		policy.RequireParseableURLs(true)
	})
	return policy
}

// Sanitizer satisfies the content sanitizer boundary used by the post services.
type Sanitizer struct{}

// Sanitize cleans HTML using the shared policy.
func (Sanitizer) Sanitize(html string) string {
	return Sanitize(html)
}

// Sanitize cleans HTML input, removing every element and attribute outside the allow-list.
// Applying it twice yields the same output as applying it once.
func Sanitize(html string) string {
	if html == "" {
		return ""
	}
	return getPolicy().Sanitize(html)
}

// MarkdownToHTML renders Markdown to sanitized HTML.
func MarkdownToHTML(src string) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return Sanitize(buf.String()), nil
}
