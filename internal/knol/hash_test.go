package knol

import (
	"testing"

	"github.com/conorfennell/studyhash/internal/domain"
)

func TestNormalize(t *testing.T) {
	card := domain.SourceCard{
		Question: "  What is HTMX? \r\n",
		Answer:   "A library for AJAX.",
		Context:  "Web Development",
	}
	expected := "what is htmx?\na library for ajax.\nweb development"
	normalized := Normalize(card)

	if normalized != expected {
		t.Errorf("Expected normalized string to be '%s', but got '%s'", expected, normalized)
	}
}

func TestHash(t *testing.T) {
	t.Run("generates correct hash", func(t *testing.T) {
		card := domain.SourceCard{
			Question: "Q",
			Answer:   "A",
			Context:  "C",
		}
		// Hash for "q\na\nc"
		expectedHash := "eb2456c1ee4f36305069dd0f63a30e92d5443129f5e8fd9a5ec490fbc4d4d8a2"
		hash := Hash(card)

		if hash != expectedHash {
			t.Errorf("Expected hash '%s', but got '%s'", expectedHash, hash)
		}
	})

	t.Run("normalization produces same hash", func(t *testing.T) {
		card1 := domain.SourceCard{Question: "  what is go? ", Answer: "A programming language."}
		card2 := domain.SourceCard{Question: "What Is Go?", Answer: "A programming language."}
		if Hash(card1) != Hash(card2) {
			t.Error("Expected hashes to be the same after normalization, but they were different.")
		}
	})

	t.Run("different cards have different hashes", func(t *testing.T) {
		card1 := domain.SourceCard{Question: "Card 1"}
		card2 := domain.SourceCard{Question: "Card 2"}
		if Hash(card1) == Hash(card2) {
			t.Error("Expected hashes for different cards to be different")
		}
	})
}

func TestCardID(t *testing.T) {
	card := domain.SourceCard{Question: "What is Go?", Answer: "A language."}

	id := CardID("p1", card)
	if len(id) != idLength {
		t.Fatalf("Expected an ID of %d characters, got %q", idLength, id)
	}
	if CardID("p1", domain.SourceCard{Question: " what is go?", Answer: "a language. "}) != id {
		t.Error("Expected the ID to survive whitespace and case edits")
	}
	if CardID("p2", card) == id {
		t.Error("Expected IDs to differ across projects")
	}
}

func TestGroupID(t *testing.T) {
	if GroupID("p1", "biology/cells.md") != GroupID("p1", "Biology/Cells.md") {
		t.Error("Expected group IDs to ignore path case")
	}
	if GroupID("p1", "a.md") == GroupID("p1", "b.md") {
		t.Error("Expected distinct decks to get distinct group IDs")
	}
}
