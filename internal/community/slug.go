package community

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const fallbackSlugBase = "community"

// Slugify lower-cases name and collapses every run of characters that are
// not ASCII letters or digits into a single "-". Accents are folded first,
// so "Café Akita" becomes "cafe-akita". Names with no ASCII alphanumerics
// produce "".
func Slugify(name string) string {
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// SaltedSlug appends the creation time in base-36 milliseconds to base.
func SaltedSlug(base string, at time.Time) string {
	if base == "" {
		base = fallbackSlugBase
	}
	return base + "-" + strconv.FormatInt(at.UnixMilli(), 36)
}
