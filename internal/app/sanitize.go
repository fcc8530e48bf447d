/**
 * @description
 * Free-text sanitization and input-shape validation. Guest names and
 * messages are rendered back to the couple's dashboard and echoed into
 * notification email bodies, so markup-significant characters are escaped
 * before anything is persisted.
 */

package app

import (
	"regexp"
	"strings"
)

const (
	maxGuestNameLength = 100
	maxMessageLength   = 500

	slugMinLength = 3
	slugMaxLength = 50
)

var (
	// Basic shape check only; deliverability is the email provider's problem.
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$`)

	// Slugs that collide with application routes.
	reservedSlugs = map[string]struct{}{
		"dashboard":       {},
		"api":             {},
		"login":           {},
		"register":        {},
		"forgot-password": {},
		"reset-password":  {},
		"admin":           {},
		"settings":        {},
		"privacy":         {},
		"voorwaarden":     {},
		"contact":         {},
	}
)

// Sanitize escapes markup-significant characters and trims whitespace.
func Sanitize(input string) string {
	replacer := strings.NewReplacer(
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#x27;",
	)
	return strings.TrimSpace(replacer.Replace(input))
}

// ValidEmail reports whether the input matches a basic email shape.
func ValidEmail(input string) bool {
	return emailPattern.MatchString(strings.TrimSpace(input))
}

// ValidSlug reports whether the slug has valid length and characters and
// does not collide with a reserved application route.
func ValidSlug(slug string) bool {
	slug = strings.TrimSpace(slug)
	if len(slug) < slugMinLength || len(slug) > slugMaxLength {
		return false
	}
	if _, reserved := reservedSlugs[slug]; reserved {
		return false
	}
	return slugPattern.MatchString(slug)
}
