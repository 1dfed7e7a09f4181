package services

import (
	"html"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// SanitizeText strips markup from free-form user text such as remarks.
// Entities the policy escapes are decoded again, so the stored value is
// plain text and output layers do their own escaping.
func SanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// CleanFileName reduces an uploaded file name to its last path element.
// Names are stored verbatim otherwise, so one with control characters is
// rejected instead of rewritten.
func CleanFileName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return "", ValidationError("file name is required")
	}
	name = filepath.Base(filepath.FromSlash(name))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", ValidationError("file name is required")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", ValidationError("file name %q contains control characters", name)
		}
	}
	return name, nil
}
