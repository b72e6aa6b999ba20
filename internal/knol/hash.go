// Package knol derives stable identities for flashcards from their content.
package knol

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/conorfennell/studyhash/internal/domain"
)

// idLength is the number of hex characters kept for card IDs.
const idLength = 32

// Normalize concatenates the card's content after cleaning each part.
// It trims whitespace, lowercases, and normalizes line endings for each field
// before joining them.
func Normalize(card domain.SourceCard) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return strings.TrimSpace(p)
	}

	// Joined with a newline so "question" and "answer" never run together.
	return strings.Join([]string{
		normalizePart(card.Question),
		normalizePart(card.Answer),
		normalizePart(card.Context),
	}, "\n")
}

// Hash returns the SHA-256 of the normalized card as a hex string.
func Hash(card domain.SourceCard) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return hex.EncodeToString(sum[:])
}

// CardID scopes a card's content hash to a project, so identical cards in two
// projects get distinct IDs while re-imports of the same card keep theirs.
func CardID(projectID string, card domain.SourceCard) string {
	sum := sha256.Sum256([]byte(projectID + "\n" + Normalize(card)))
	return hex.EncodeToString(sum[:])[:idLength]
}

// GroupID derives a stable group ID from a project and a deck path.
func GroupID(projectID, deckPath string) string {
	sum := sha256.Sum256([]byte(projectID + "\n" + strings.ToLower(deckPath)))
	return hex.EncodeToString(sum[:])[:idLength]
}
