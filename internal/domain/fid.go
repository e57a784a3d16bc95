package domain

import (
	"strings"
	"unicode"

	"antbox-backend/internal/domain/filters"

	"github.com/google/uuid"
)

// NewUUID generates a node uuid.
func NewUUID() string {
	return uuid.New().String()
}

// FIDFromTitle derives a human-friendly stable identifier from a title:
// lowercase, diacritics folded, runs of non-alphanumerics collapsed to a
// single dash.
func FIDFromTitle(title string) string {
	folded := filters.Fold(title)
	var b strings.Builder
	lastDash := true
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// UniqueFID appends a short random suffix, used when the plain slug collides
// within the tenant.
func UniqueFID(slug string) string {
	suffix := uuid.New().String()[:8]
	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}
