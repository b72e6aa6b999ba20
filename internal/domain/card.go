package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Stage is the coarse scheduling phase of a flashcard.
// The numeric values are what the cards table stores.
type Stage int

const (
	New        Stage = 0
	Learning   Stage = 1
	Review     Stage = 2
	Relearning Stage = 3
)

var (
	stageNames  = [...]string{New: "New", Learning: "Learning", Review: "Review", Relearning: "Relearning"}
	stageByName = map[string]Stage{
		"New":        New,
		"Learning":   Learning,
		"Review":     Review,
		"Relearning": Relearning,
	}
)

// IsValid reports whether s is one of the four known stages.
func (s Stage) IsValid() bool {
	return s >= New && s <= Relearning
}

func (s Stage) String() string {
	if s.IsValid() {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid stage: %d", int(s))
	}
	return []byte(stageNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	v, ok := stageByName[string(text)]
	if !ok {
		return fmt.Errorf("invalid stage: %q", text)
	}
	*s = v
	return nil
}

// Rating is the user's response to a card review.
// 1: Again (Incorrect)
// 2: Hard
// 3: Good
// 4: Easy
type Rating int

const (
	Again Rating = 1
	Hard  Rating = 2
	Good  Rating = 3
	Easy  Rating = 4
)

var (
	ratingNames  = [...]string{Again: "Again", Hard: "Hard", Good: "Good", Easy: "Easy"}
	ratingByName = map[string]Rating{
		"Again": Again,
		"Hard":  Hard,
		"Good":  Good,
		"Easy":  Easy,
	}
)

// IsValid reports whether r is a valid rating (Again through Easy).
func (r Rating) IsValid() bool {
	return r >= Again && r <= Easy
}

func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// MarshalText implements encoding.TextMarshaler.
func (r Rating) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return []byte(ratingNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rating) UnmarshalText(text []byte) error {
	v, ok := ratingByName[string(text)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidRating, text)
	}
	*r = v
	return nil
}

// ParseRating accepts either a rating name ("Good") or its grade ("3").
func ParseRating(s string) (Rating, error) {
	var r Rating
	if err := r.UnmarshalText([]byte(s)); err == nil {
		return r, nil
	}
	if grade, err := strconv.Atoi(s); err == nil && Rating(grade).IsValid() {
		return Rating(grade), nil
	}
	return 0, &ValidationError{Field: "rating", Message: fmt.Sprintf("unknown rating %q", s)}
}

// SchedulingState is the part of a card the scheduler reads and writes.
type SchedulingState struct {
	Stage        Stage      `json:"stage"`
	DueAt        *time.Time `json:"due_at"` // nil while New.
	IntervalDays int        `json:"interval_days"`
	Ease         float64    `json:"ease"` // 0 until the card first graduates.
	Lapses       int        `json:"lapses"`
}

// IsDue reports whether the card is scheduled and due at now.
func (s SchedulingState) IsDue(now time.Time) bool {
	return s.Stage != New && s.DueAt != nil && !s.DueAt.After(now)
}

// Flashcard is a single front/back card together with its scheduling state.
type Flashcard struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	GroupID   *string `json:"group_id,omitempty"`
	Front     string  `json:"front"`
	Back      string  `json:"back"`
	SchedulingState
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FlashcardGroup is an ordered grouping of cards inside a project.
type FlashcardGroup struct {
	ID        string `json:"id" db:"id"`
	ProjectID string `json:"project_id" db:"project_id"`
	Title     string `json:"title" db:"title"`
	Position  int    `json:"position" db:"position"`
}

// ReviewLog records a single persisted rating.
type ReviewLog struct {
	CardID      string    `json:"card_id"`
	UserID      string    `json:"user_id"`
	Rating      Rating    `json:"rating"`
	StageBefore Stage     `json:"stage_before"`
	StageAfter  Stage     `json:"stage_after"`
	ReviewedAt  time.Time `json:"reviewed_at"`
}
