// Package agenda summarizes a project's cards into the per-group and per-day
// counts that drive the study agenda.
package agenda

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/conorfennell/studyhash/internal/domain"
)

// DefaultDays is the histogram horizon used when the caller passes zero.
const DefaultDays = 7

// MaxDays bounds the histogram horizon.
const MaxDays = 366

// CardSource is the read side of the card store the aggregator needs.
type CardSource interface {
	ListGroups(ctx context.Context, projectID string) ([]domain.FlashcardGroup, error)
	ListProjectCards(ctx context.Context, projectID string) ([]domain.Flashcard, error)
}

// Aggregator computes agenda views from a snapshot of the card store.
type Aggregator struct {
	src CardSource
	loc *time.Location
}

// New returns an Aggregator that buckets days in loc. A nil loc means UTC.
func New(src CardSource, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{src: src, loc: loc}
}

// Location is the fixed zone used for day bucketing.
func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// GroupCounts returns one row per group of the project.
func (a *Aggregator) GroupCounts(ctx context.Context, projectID string, now time.Time) ([]domain.AgendaGroupRow, error) {
	groups, err := a.src.ListGroups(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("agenda groups for project %s: %w", projectID, err)
	}
	cards, err := a.src.ListProjectCards(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("agenda cards for project %s: %w", projectID, err)
	}
	return SummarizeGroups(groups, cards, now), nil
}

// DueByDay returns the forward-looking load histogram of the project.
func (a *Aggregator) DueByDay(ctx context.Context, projectID string, now time.Time, days int) ([]domain.AgendaDayRow, error) {
	days, err := normalizeDays(days)
	if err != nil {
		return nil, err
	}
	cards, err := a.src.ListProjectCards(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("agenda cards for project %s: %w", projectID, err)
	}
	return BucketByDay(cards, now, days, a.loc), nil
}

func normalizeDays(days int) (int, error) {
	if days == 0 {
		return DefaultDays, nil
	}
	if days < 1 || days > MaxDays {
		return 0, &domain.ValidationError{Field: "days", Message: fmt.Sprintf("must be between 1 and %d, got %d", MaxDays, days)}
	}
	return days, nil
}

// SummarizeGroups counts cards per group. Cards without a group, or whose
// group is not listed, are ignored. Rows are ordered by next due time with
// unscheduled groups last, ties broken by group position and then ID.
func SummarizeGroups(groups []domain.FlashcardGroup, cards []domain.Flashcard, now time.Time) []domain.AgendaGroupRow {
	rows := make([]domain.AgendaGroupRow, len(groups))
	byID := make(map[string]int, len(groups))
	for i, g := range groups {
		rows[i] = domain.AgendaGroupRow{GroupID: g.ID, GroupTitle: g.Title}
		byID[g.ID] = i
	}

	for _, c := range cards {
		if c.GroupID == nil {
			continue
		}
		i, ok := byID[*c.GroupID]
		if !ok {
			continue
		}
		row := &rows[i]
		row.TotalCards++

		if c.Stage == domain.New {
			row.NewCount++
			continue
		}
		if c.DueAt == nil {
			continue
		}
		if row.NextDueAt == nil || c.DueAt.Before(*row.NextDueAt) {
			due := *c.DueAt
			row.NextDueAt = &due
		}
		if !c.DueAt.After(now) {
			if c.Stage == domain.Review {
				row.DueReview++
			} else {
				row.DueLearning++
			}
		}
	}

	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		a, b := rows[order[x]], rows[order[y]]
		switch {
		case a.NextDueAt == nil && b.NextDueAt != nil:
			return false
		case a.NextDueAt != nil && b.NextDueAt == nil:
			return true
		case a.NextDueAt != nil && !a.NextDueAt.Equal(*b.NextDueAt):
			return a.NextDueAt.Before(*b.NextDueAt)
		}
		ga, gb := groups[order[x]], groups[order[y]]
		if ga.Position != gb.Position {
			return ga.Position < gb.Position
		}
		return ga.ID < gb.ID
	})

	sorted := make([]domain.AgendaGroupRow, len(rows))
	for i, idx := range order {
		sorted[i] = rows[idx]
	}
	return sorted
}

// BucketByDay counts scheduled cards per calendar day in loc over days days
// starting today. Each day covers [00:00, 24:00) local time; cards already
// overdue land in today's bucket, cards due after the horizon are dropped.
func BucketByDay(cards []domain.Flashcard, now time.Time, days int, loc *time.Location) []domain.AgendaDayRow {
	today := domain.DateOf(now.In(loc))
	rows := make([]domain.AgendaDayRow, days)
	ends := make([]time.Time, days)
	for i := range rows {
		start := time.Date(today.Year, today.Month, today.Day+i, 0, 0, 0, 0, loc)
		rows[i].Day = domain.DateOf(start)
		ends[i] = HorizonEnd(now, i+1, loc)
	}

	for _, c := range cards {
		if c.Stage == domain.New || c.DueAt == nil {
			continue
		}
		// First day whose end is after the due time.
		i := sort.Search(days, func(i int) bool { return c.DueAt.Before(ends[i]) })
		if i == days {
			continue
		}
		if c.Stage == domain.Review {
			rows[i].DueReview++
		} else {
			rows[i].DueLearning++
		}
	}
	return rows
}

// HorizonEnd is the exclusive end of the last bucket BucketByDay produces.
func HorizonEnd(now time.Time, days int, loc *time.Location) time.Time {
	today := domain.DateOf(now.In(loc))
	return time.Date(today.Year, today.Month, today.Day+days, 0, 0, 0, 0, loc)
}
