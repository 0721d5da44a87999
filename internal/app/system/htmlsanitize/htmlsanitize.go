// internal/app/system/htmlsanitize/htmlsanitize.go

// Package htmlsanitize strips unsafe markup from user-supplied content
// before it is persisted (chat messages, notification bodies).
package htmlsanitize

import (
	"html/template"

	"github.com/microcosm-cc/bluemonday"
)

// policy allows common user-generated formatting (links, emphasis,
// lists) while removing scripts, event handlers, and javascript: URLs.
var policy = bluemonday.UGCPolicy()

// Sanitize returns content with unsafe HTML removed.
func Sanitize(content string) string {
	return policy.Sanitize(content)
}

// SanitizeHTML returns sanitized content ready to embed in templates.
func SanitizeHTML(content string) template.HTML {
	return template.HTML(policy.Sanitize(content)) // #nosec G203 -- sanitized above
}
