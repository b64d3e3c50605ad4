// Package scheduler implements the Leitner spaced-repetition policy:
// six compartments, tri-state review outcomes, and day-based review
// intervals. Everything here is pure computation; persistence and sync
// live elsewhere.
package scheduler

import (
	"math"
	"sort"

	"github.com/conorfennell/leitsync/internal/domain"
)

const (
	MinCompartment = 1
	MaxCompartment = 6

	dayMillis     = int64(86_400_000)
	halfDayMillis = dayMillis / 2

	// Maintenance intervals for mastered (compartment 6) cards.
	correctMaintenanceDays = 90
	almostMaintenanceDays  = 30

	wrongDemotionCompartment = 3
	wrongDemotionDays        = 3
)

// baseIntervalDays maps a compartment to its review interval in days.
var baseIntervalDays = map[int]float64{
	1: 0,
	2: 1,
	3: 3,
	4: 7,
	5: 14,
	6: 30,
}

// IntervalDays returns the base review interval for a compartment.
// Out-of-range compartments degrade to 0 rather than failing: scheduling
// state can originate from partially migrated records and a review must
// never hard-fail on it.
func IntervalDays(compartment int) float64 {
	return baseIntervalDays[compartment]
}

// daysToMillis converts a day count to milliseconds, rounding rather than
// truncating so repeated halvings do not drift the schedule.
func daysToMillis(days float64) int64 {
	return int64(math.Round(days * float64(dayMillis)))
}

func clampCompartment(c int) int {
	if c < MinCompartment {
		return MinCompartment
	}
	if c > MaxCompartment {
		return MaxCompartment
	}
	return c
}

// ScheduleAfterReview applies a review outcome to a card and returns the
// rescheduled card. The input is never mutated.
//
// correct promotes one compartment (capped at 6) and schedules the new
// compartment's base interval out; a mastered card stays at 6 on a 90-day
// maintenance interval. almost keeps the compartment and halves the current
// interval with a 1-day floor, except at compartment 1 where the zero base
// interval is replaced by a 12-hour floor, and at compartment 6 which gets a
// 30-day maintenance interval. wrong demotes to compartment 1 and 1 day out,
// softened to compartment 3 and 3 days for mastered cards.
func ScheduleAfterReview(card domain.Card, outcome domain.Outcome, now int64) domain.Card {
	next := card

	switch outcome {
	case domain.Correct:
		if card.Compartment == MaxCompartment {
			next.NextReviewAt = now + daysToMillis(correctMaintenanceDays)
		} else {
			promoted := clampCompartment(card.Compartment + 1)
			next.Compartment = promoted
			next.NextReviewAt = now + daysToMillis(IntervalDays(promoted))
		}
		next.CorrectAnswers++

	case domain.Almost:
		switch card.Compartment {
		case MaxCompartment:
			next.NextReviewAt = now + daysToMillis(almostMaintenanceDays)
		case MinCompartment:
			// Compartment 1 has a 0-day base interval which would collapse
			// the halving formula to "now"; use a 12-hour floor instead.
			next.NextReviewAt = now + halfDayMillis
		default:
			halved := daysToMillis(IntervalDays(card.Compartment) / 2)
			if halved < dayMillis {
				halved = dayMillis
			}
			next.NextReviewAt = now + halved
		}
		next.Compartment = clampCompartment(card.Compartment)

	case domain.Wrong:
		if card.Compartment == MaxCompartment {
			next.Compartment = wrongDemotionCompartment
			next.NextReviewAt = now + daysToMillis(wrongDemotionDays)
		} else {
			next.Compartment = MinCompartment
			next.NextReviewAt = now + daysToMillis(1)
		}
	}

	next.TotalReviews++
	next.UpdatedAt = now
	return next
}

// InitialReviewAt returns the first review time for a newly created card.
// With delayFirstReview the card becomes due a day after creation instead
// of immediately.
func InitialReviewAt(now int64, delayFirstReview bool) int64 {
	if delayFirstReview {
		return now + dayMillis
	}
	return now
}

// IsDue reports whether a card should be offered for review: not deleted,
// not archived, and its scheduled time has arrived.
func IsDue(card domain.Card, now int64) bool {
	return !card.Deleted() && !card.Archived && card.NextReviewAt <= now
}

// DueCards filters cards down to the due set. excludeMastered additionally
// drops compartment-6 cards, for daily flows that deprioritise mastered
// material.
func DueCards(cards []domain.Card, now int64, excludeMastered bool) []domain.Card {
	var due []domain.Card
	for _, card := range cards {
		if !IsDue(card, now) {
			continue
		}
		if excludeMastered && card.Compartment == MaxCompartment {
			continue
		}
		due = append(due, card)
	}
	return due
}

// OrderDue sorts a due-card set into the deterministic review order:
// cards from older collections first, then by card UpdatedAt ascending,
// then by card id. A card whose collection is not in the given list sorts
// last. The result does not depend on the input order and the input slice
// is left untouched.
func OrderDue(cards []domain.Card, collections []domain.Collection) []domain.Card {
	collectionCreatedAt := make(map[string]int64, len(collections))
	for _, col := range collections {
		collectionCreatedAt[col.ID] = col.CreatedAt
	}

	ordered := make([]domain.Card, len(cards))
	copy(ordered, cards)

	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		aCreated, aKnown := collectionCreatedAt[a.CollectionID]
		bCreated, bKnown := collectionCreatedAt[b.CollectionID]
		if aKnown != bKnown {
			return aKnown
		}
		if aKnown && aCreated != bCreated {
			return aCreated < bCreated
		}
		if a.UpdatedAt != b.UpdatedAt {
			return a.UpdatedAt < b.UpdatedAt
		}
		return a.ID < b.ID
	})
	return ordered
}
