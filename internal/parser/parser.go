// Package parser extracts flashcards from markdown decks.
//
// A card starts at a "Q:" line and may carry "A:" and "C:" (context) blocks;
// each block runs until the next marker, a "---" separator or the next card.
// The first "# " heading of a file names the deck.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/studyhash/internal/domain"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	contextPrefix  = "C:"
	headingPrefix  = "# "
	separator      = "---"
)

type field int

const (
	none field = iota
	question
	answer
	context
)

// Deck is the content of one markdown file.
type Deck struct {
	Title string
	Cards []domain.SourceCard
}

// ParseFile reads a deck from the given path.
func ParseFile(path string) (Deck, error) {
	file, err := os.Open(path)
	if err != nil {
		return Deck{}, err
	}
	defer file.Close()

	return Parse(file)
}

type builder struct {
	deck    Deck
	card    domain.SourceCard
	current field
	lines   []string
}

// flushField stores the lines collected so far into the open field.
func (b *builder) flushField() {
	if b.current != none && len(b.lines) > 0 {
		content := strings.TrimRight(strings.Join(b.lines, "\n"), "\n ")
		switch b.current {
		case question:
			b.card.Question = content
		case answer:
			b.card.Answer = content
		case context:
			b.card.Context = content
		}
	}
	b.lines = nil
}

func (b *builder) finishCard() {
	b.flushField()
	if b.card.Question != "" {
		b.deck.Cards = append(b.deck.Cards, b.card)
	}
	b.card = domain.SourceCard{}
	b.current = none
}

func (b *builder) open(f field, rest string) {
	b.flushField()
	b.current = f
	b.lines = append(b.lines, strings.TrimPrefix(rest, " "))
}

// Parse reads a deck from r.
func Parse(r io.Reader) (Deck, error) {
	scanner := bufio.NewScanner(r)
	var b builder

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		switch {
		case line == separator:
			b.finishCard()
		case strings.HasPrefix(line, questionPrefix):
			// A new question always starts a new card.
			b.finishCard()
			b.open(question, line[len(questionPrefix):])
		case strings.HasPrefix(line, answerPrefix):
			b.open(answer, line[len(answerPrefix):])
		case strings.HasPrefix(line, contextPrefix):
			b.open(context, line[len(contextPrefix):])
		case b.current == none && b.deck.Title == "" && strings.HasPrefix(line, headingPrefix):
			b.deck.Title = strings.TrimSpace(line[len(headingPrefix):])
		case b.current != none:
			b.lines = append(b.lines, line)
		}
	}
	b.finishCard()

	if err := scanner.Err(); err != nil {
		return Deck{}, err
	}
	return b.deck, nil
}
