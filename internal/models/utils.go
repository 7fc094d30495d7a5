package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName converts a free-text name to a simplified, comparable form:
// unicode-folded, lowercased, with everything except letters and digits
// stripped. Used as the fallback location component of deduplication keys.
func NormalizeName(name string) string {
	if name == "" {
		return ""
	}

	folded := foldText(name)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeTokens splits text into a set of comparison tokens: unicode-folded,
// lowercased, with non-alphanumeric runs treated as separators.
func NormalizeTokens(text string) map[string]bool {
	folded := foldText(text)

	tokens := make(map[string]bool)
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens[b.String()] = true
			b.Reset()
		}
	}
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// foldText lowercases and removes combining marks so accented venue names
// compare equal to their ASCII spellings.
func foldText(text string) string {
	decomposed := norm.NFKD.String(strings.ToLower(text))
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// GenerateRunID creates a unique ID for a collection run.
func GenerateRunID(timestamp time.Time) string {
	return fmt.Sprintf("run_%s_%s", timestamp.UTC().Format("20060102T150405Z"), uuid.NewString()[:8])
}
