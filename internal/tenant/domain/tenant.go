package domain

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

// Tenant is the isolation boundary. Tenants are never hard-deleted; they are deactivated.
type Tenant struct {
	ID            string
	Name          string
	Slug          string
	Active        bool
	CreatedAt     time.Time
	DeactivatedAt *time.Time
}

// ErrSlugTaken is returned by Create when another tenant already owns the slug.
var ErrSlugTaken = errors.New("tenant slug already taken")

// maxSlugLength bounds derived slugs; a collision suffix is appended after truncation.
const maxSlugLength = 48

// Validate validates the tenant for persistence. Returns an error describing the first validation failure.
func (t *Tenant) Validate() error {
	if t.Name == "" {
		return errors.New("name is required")
	}
	if t.Slug == "" {
		return errors.New("slug is required")
	}
	return nil
}

// Slugify derives a URL-safe slug from a display name: lower-case ASCII letters and digits
// separated by single hyphens. Returns "tenant" when nothing usable remains.
func Slugify(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		default:
			pendingHyphen = true
		}
		if b.Len() >= maxSlugLength {
			break
		}
	}
	s := strings.Trim(b.String(), "-")
	if len(s) > maxSlugLength {
		s = strings.TrimRight(s[:maxSlugLength], "-")
	}
	if s == "" {
		return "tenant"
	}
	return s
}
