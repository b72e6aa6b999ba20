package domain

import "time"

// AgendaGroupRow summarizes one flashcard group. It is derived on demand and
// never stored.
type AgendaGroupRow struct {
	GroupID     string     `json:"group_id"`
	GroupTitle  string     `json:"group_title"`
	TotalCards  int        `json:"total_cards"`
	NewCount    int        `json:"new_count"`
	DueLearning int        `json:"due_learning"`
	DueReview   int        `json:"due_review"`
	NextDueAt   *time.Time `json:"next_due_at"`
}

// AgendaDayRow holds the learning and review load for one calendar day.
type AgendaDayRow struct {
	Day         Date `json:"day"`
	DueLearning int  `json:"due_learning"`
	DueReview   int  `json:"due_review"`
}

// Total is the number of cards falling due that day.
func (r AgendaDayRow) Total() int {
	return r.DueLearning + r.DueReview
}

// Date is a calendar date without a time of day. It serializes as YYYY-MM-DD.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Start returns midnight of the date in loc.
func (d Date) Start(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) String() string {
	return d.Start(time.UTC).Format(time.DateOnly)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(text []byte) error {
	t, err := time.Parse(time.DateOnly, string(text))
	if err != nil {
		return err
	}
	*d = DateOf(t)
	return nil
}
