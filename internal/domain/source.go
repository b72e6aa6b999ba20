package domain

import "time"

// SourceCard is a question-answer-context entry parsed from a markdown deck
// before it is stored as a Flashcard.
type SourceCard struct {
	Question string
	Answer   string
	Context  string
	Hash     string
}

// Back renders the answer followed by the optional context paragraph.
func (c SourceCard) Back() string {
	if c.Context == "" {
		return c.Answer
	}
	return c.Answer + "\n\n" + c.Context
}

// DeckSource is a directory or git URL registered as a deck source of a
// project. LastScanned is nil until the first successful import.
type DeckSource struct {
	ProjectID   string     `json:"project_id"`
	Path        string     `json:"path"`
	LastScanned *time.Time `json:"last_scanned,omitempty"`
}
