package deckimport

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Fingerprint returns a stable hex digest of a card's content. Whitespace,
// case, and line-ending differences do not change the fingerprint, so an
// edited-then-reverted source file does not duplicate cards.
func Fingerprint(question, answer string) string {
	normalize := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}
	// Joined with a newline so "ab"+"c" and "a"+"bc" hash differently.
	normalized := normalize(question) + "\n" + normalize(answer)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(normalized)))
}
