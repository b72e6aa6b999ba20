package scheduler

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/studyhash/internal/domain"
)

const day = 24 * time.Hour

// Policy computes the next scheduling state of a card from its current state
// and a review rating. Implementations must be pure.
type Policy interface {
	Schedule(state domain.SchedulingState, rating domain.Rating, now time.Time) (domain.SchedulingState, error)
}

// Params holds the constants of the reference ease/interval policy.
type Params struct {
	// Steps used when a New card is first rated.
	AgainStep time.Duration
	HardStep  time.Duration
	GoodStep  time.Duration
	EasyStep  time.Duration

	// LearningAgainStep is the retry delay for a Learning card rated Again.
	LearningAgainStep time.Duration
	// RelearningStep is the delay after a lapse and while relearning.
	RelearningStep time.Duration

	// Graduating intervals in days when leaving Learning.
	GraduateHard int
	GraduateGood int
	GraduateEasy int

	InitialEase float64
	MinEase     float64
	MaxEase     float64

	LapseEaseFactor    float64 // ease multiplier on Review + Again
	HardIntervalFactor float64
	HardEasePenalty    float64
	EasyBonus          float64 // extra interval multiplier on Review + Easy
	EasyEaseBonus      float64
	RelearnFactor      float64 // share of the pre-lapse interval kept on recovery

	MaximumInterval int // days
}

// DefaultParams provides the reference policy.
func DefaultParams() *Params {
	return &Params{
		AgainStep:          time.Minute,
		HardStep:           6 * time.Minute,
		GoodStep:           10 * time.Minute,
		EasyStep:           day,
		LearningAgainStep:  time.Minute,
		RelearningStep:     10 * time.Minute,
		GraduateHard:       1,
		GraduateGood:       1,
		GraduateEasy:       4,
		InitialEase:        2.5,
		MinEase:            1.3,
		MaxEase:            5.0,
		LapseEaseFactor:    0.8,
		HardIntervalFactor: 1.2,
		HardEasePenalty:    0.15,
		EasyBonus:          1.3,
		EasyEaseBonus:      0.15,
		RelearnFactor:      0.5,
		MaximumInterval:    36500,
	}
}

var _ Policy = (*Params)(nil)

// Schedule applies one review to the given state and returns the new state.
// The input is not mutated.
func (p *Params) Schedule(state domain.SchedulingState, rating domain.Rating, now time.Time) (domain.SchedulingState, error) {
	if !rating.IsValid() {
		return state, fmt.Errorf("%w: %d", domain.ErrInvalidRating, int(rating))
	}

	next := state
	if rating == domain.Again {
		next.Lapses++
	}

	switch state.Stage {
	case domain.New:
		next.Stage = domain.Learning
		next.IntervalDays = 0
		next.DueAt = at(now, p.shortStep(rating))

	case domain.Learning:
		if rating == domain.Again {
			next.IntervalDays = 0
			next.DueAt = at(now, p.LearningAgainStep)
			break
		}
		next.Stage = domain.Review
		next.IntervalDays = p.capInterval(p.graduatingInterval(rating))
		next.Ease = p.clampEase(p.easeOrDefault(state.Ease))
		next.DueAt = dueAfter(now, next.IntervalDays)

	case domain.Review:
		p.review(&next, rating, now)

	case domain.Relearning:
		if rating == domain.Again {
			next.DueAt = at(now, p.RelearningStep)
			break
		}
		next.Stage = domain.Review
		next.IntervalDays = p.capInterval(max(1, round(float64(state.IntervalDays)*p.RelearnFactor)))
		next.Ease = p.clampEase(p.easeOrDefault(state.Ease))
		next.DueAt = dueAfter(now, next.IntervalDays)

	default:
		return state, &domain.ValidationError{Field: "stage", Message: fmt.Sprintf("unknown stage %d", int(state.Stage))}
	}

	return next, nil
}

// review applies a rating to a card that is in the Review stage.
func (p *Params) review(next *domain.SchedulingState, rating domain.Rating, now time.Time) {
	ease := p.easeOrDefault(next.Ease)
	interval := max(1, next.IntervalDays)

	switch rating {
	case domain.Again:
		next.Stage = domain.Relearning
		next.Ease = p.clampEase(ease * p.LapseEaseFactor)
		next.DueAt = at(now, p.RelearningStep)
		// IntervalDays is kept so relearning can resume from it.
		return
	case domain.Hard:
		interval = max(1, round(float64(interval)*p.HardIntervalFactor))
		ease = ease - p.HardEasePenalty
	case domain.Good:
		interval = max(interval+1, round(float64(interval)*ease))
	case domain.Easy:
		interval = max(interval+1, round(float64(interval)*ease*p.EasyBonus))
		ease = ease + p.EasyEaseBonus
	}

	next.Stage = domain.Review
	next.Ease = p.clampEase(ease)
	next.IntervalDays = p.capInterval(interval)
	next.DueAt = dueAfter(now, next.IntervalDays)
}

func (p *Params) shortStep(rating domain.Rating) time.Duration {
	switch rating {
	case domain.Again:
		return p.AgainStep
	case domain.Hard:
		return p.HardStep
	case domain.Good:
		return p.GoodStep
	default:
		return p.EasyStep
	}
}

func (p *Params) graduatingInterval(rating domain.Rating) int {
	switch rating {
	case domain.Hard:
		return p.GraduateHard
	case domain.Easy:
		return p.GraduateEasy
	default:
		return p.GraduateGood
	}
}

func (p *Params) easeOrDefault(ease float64) float64 {
	if ease <= 0 {
		return p.InitialEase
	}
	return ease
}

func (p *Params) clampEase(ease float64) float64 {
	return math.Max(p.MinEase, math.Min(p.MaxEase, ease))
}

func (p *Params) capInterval(interval int) int {
	if p.MaximumInterval > 0 && interval > p.MaximumInterval {
		return p.MaximumInterval
	}
	return interval
}

// NextDueDate returns the due time for an interval of the given number of days.
func NextDueDate(now time.Time, intervalDays int) time.Time {
	return now.Add(days(intervalDays))
}

func dueAfter(now time.Time, intervalDays int) *time.Time {
	t := NextDueDate(now, intervalDays)
	return &t
}

func days(n int) time.Duration {
	return time.Duration(n) * day
}

func at(now time.Time, d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func round(v float64) int {
	return int(math.Round(v))
}
