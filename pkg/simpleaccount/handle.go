package simpleaccount

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Handle length limits, including the random suffix of derived handles.
const (
	MinHandleLength = 3
	MaxHandleLength = 30

	handleSuffixLength = 6
	handleAlphabet     = "abcdefghijklmnopqrstuvwxyz0123456789"
	fallbackHandleBase = "user"
)

var handlePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// HandleGenerator derives a handle from a display name. Results must be
// URL safe and should be unlikely to collide.
type HandleGenerator func(displayName string) string

// DeriveHandle transliterates displayName to lowercase ASCII, keeps letters,
// digits and underscores, and appends an underscore and a random suffix.
// "Zoë Åström" becomes something like "zoe_astrom_k3x9qa".
func DeriveHandle(displayName string) string {
	base := handleBase(displayName)
	maxBase := MaxHandleLength - handleSuffixLength - 1
	if len(base) > maxBase {
		base = strings.TrimRight(base[:maxBase], "_")
	}
	if base == "" {
		base = fallbackHandleBase
	}
	return base + "_" + randomSuffix(handleSuffixLength)
}

// NormalizeHandle lowercases and trims a client supplied handle.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// ValidateHandle checks a normalized handle.
func ValidateHandle(handle string) error {
	if len(handle) < MinHandleLength || len(handle) > MaxHandleLength {
		return &ValidationError{Field: "handle", Reason: "must be between 3 and 30 characters"}
	}
	if !handlePattern.MatchString(handle) {
		return &ValidationError{Field: "handle", Reason: "may only contain lowercase letters, digits and underscores"}
	}
	return nil
}

func handleBase(displayName string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, displayName)
	if err != nil {
		folded = displayName
	}

	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			underscore = false
		case r == '_' || unicode.IsSpace(r) || r == '-' || r == '.':
			if b.Len() > 0 && !underscore {
				b.WriteByte('_')
				underscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = handleAlphabet[rand.IntN(len(handleAlphabet))]
	}
	return string(buf)
}
