package scheduler

import (
	"reflect"
	"testing"

	"github.com/conorfennell/leitsync/internal/domain"
)

const (
	day  = int64(86_400_000)
	hour = int64(3_600_000)
)

func testCard(compartment int) domain.Card {
	return domain.Card{
		ID:           "card-1",
		UserID:       "user-1",
		CollectionID: "col-1",
		Question:     "capital of France?",
		Answer:       "Paris",
		Compartment:  compartment,
		NextReviewAt: 1_000,
		CreatedAt:    1_000,
		UpdatedAt:    1_000,
	}
}

func TestScheduleAfterReviewCorrect(t *testing.T) {
	now := int64(10_000_000)

	expectedIntervals := map[int]int64{
		1: 1 * day,  // promoted to 2
		2: 3 * day,  // promoted to 3
		3: 7 * day,  // promoted to 4
		4: 14 * day, // promoted to 5
		5: 30 * day, // promoted to 6
	}

	for c := 1; c <= 5; c++ {
		next := ScheduleAfterReview(testCard(c), domain.Correct, now)
		if next.Compartment != c+1 {
			t.Errorf("correct at %d: expected compartment %d, got %d", c, c+1, next.Compartment)
		}
		if got, want := next.NextReviewAt, now+expectedIntervals[c]; got != want {
			t.Errorf("correct at %d: expected next review at %d, got %d", c, want, got)
		}
	}

	t.Run("mastered card stays at 6 with 90 day maintenance", func(t *testing.T) {
		next := ScheduleAfterReview(testCard(6), domain.Correct, now)
		if next.Compartment != 6 {
			t.Errorf("expected compartment 6, got %d", next.Compartment)
		}
		if got, want := next.NextReviewAt, now+90*day; got != want {
			t.Errorf("expected next review at %d, got %d", want, got)
		}
	})

	t.Run("counters increment", func(t *testing.T) {
		next := ScheduleAfterReview(testCard(2), domain.Correct, now)
		if next.CorrectAnswers != 1 || next.TotalReviews != 1 {
			t.Errorf("expected counters 1/1, got %d/%d", next.CorrectAnswers, next.TotalReviews)
		}
	})
}

func TestScheduleAfterReviewAlmost(t *testing.T) {
	now := int64(10_000_000)

	t.Run("compartment 1 gets the 12 hour floor", func(t *testing.T) {
		next := ScheduleAfterReview(testCard(1), domain.Almost, now)
		if next.Compartment != 1 {
			t.Errorf("expected compartment to stay at 1, got %d", next.Compartment)
		}
		if got, want := next.NextReviewAt, now+12*hour; got != want {
			t.Errorf("expected next review at %d, got %d", want, got)
		}
	})

	t.Run("compartment 2 halving is dominated by the 1 day floor", func(t *testing.T) {
		next := ScheduleAfterReview(testCard(2), domain.Almost, now)
		if got, want := next.NextReviewAt, now+1*day; got != want {
			t.Errorf("expected next review at %d, got %d", want, got)
		}
	})

	t.Run("larger intervals are halved", func(t *testing.T) {
		cases := map[int]int64{
			3: 3 * day / 2,  // 1.5 days
			4: 7 * day / 2,  // 3.5 days
			5: 14 * day / 2, // 7 days
		}
		for c, interval := range cases {
			next := ScheduleAfterReview(testCard(c), domain.Almost, now)
			if next.Compartment != c {
				t.Errorf("almost at %d: expected compartment unchanged, got %d", c, next.Compartment)
			}
			if got, want := next.NextReviewAt, now+interval; got != want {
				t.Errorf("almost at %d: expected next review at %d, got %d", c, want, got)
			}
		}
	})

	t.Run("mastered card gets the shorter 30 day maintenance", func(t *testing.T) {
		next := ScheduleAfterReview(testCard(6), domain.Almost, now)
		if next.Compartment != 6 {
			t.Errorf("expected compartment 6, got %d", next.Compartment)
		}
		if got, want := next.NextReviewAt, now+30*day; got != want {
			t.Errorf("expected next review at %d, got %d", want, got)
		}
	})

	t.Run("almost is not counted as correct", func(t *testing.T) {
		next := ScheduleAfterReview(testCard(3), domain.Almost, now)
		if next.CorrectAnswers != 0 || next.TotalReviews != 1 {
			t.Errorf("expected counters 0/1, got %d/%d", next.CorrectAnswers, next.TotalReviews)
		}
	})
}

func TestScheduleAfterReviewWrong(t *testing.T) {
	now := int64(10_000_000)

	for c := 1; c <= 5; c++ {
		next := ScheduleAfterReview(testCard(c), domain.Wrong, now)
		if next.Compartment != 1 {
			t.Errorf("wrong at %d: expected demotion to 1, got %d", c, next.Compartment)
		}
		if got, want := next.NextReviewAt, now+1*day; got != want {
			t.Errorf("wrong at %d: expected next review at %d, got %d", c, want, got)
		}
	}

	t.Run("mastered card drops to 3 with 3 days", func(t *testing.T) {
		next := ScheduleAfterReview(testCard(6), domain.Wrong, now)
		if next.Compartment != 3 {
			t.Errorf("expected compartment 3, got %d", next.Compartment)
		}
		if got, want := next.NextReviewAt, now+3*day; got != want {
			t.Errorf("expected next review at %d, got %d", want, got)
		}
	})
}

func TestScheduleAfterReviewCompartmentStaysInRange(t *testing.T) {
	now := int64(10_000_000)
	outcomes := []domain.Outcome{domain.Correct, domain.Almost, domain.Wrong}

	// Includes out-of-range inputs from corrupted or partially migrated
	// records: they must degrade, never escape the valid range or panic.
	for _, c := range []int{-1, 0, 1, 2, 3, 4, 5, 6, 7, 99} {
		for _, outcome := range outcomes {
			next := ScheduleAfterReview(testCard(c), outcome, now)
			if next.Compartment < MinCompartment || next.Compartment > MaxCompartment {
				t.Errorf("compartment %d with %s produced out-of-range compartment %d",
					c, outcome, next.Compartment)
			}
			if next.UpdatedAt != now {
				t.Errorf("compartment %d with %s: expected updated_at %d, got %d",
					c, outcome, now, next.UpdatedAt)
			}
		}
	}
}

func TestScheduleAfterReviewDoesNotMutateInput(t *testing.T) {
	card := testCard(3)
	before := card

	ScheduleAfterReview(card, domain.Correct, 99_999_999)

	if !reflect.DeepEqual(card, before) {
		t.Errorf("input card was mutated: before %+v, after %+v", before, card)
	}
}

func TestDueCards(t *testing.T) {
	now := int64(5_000)
	deletedAt := int64(4_000)
	cards := []domain.Card{
		{ID: "due", NextReviewAt: 5_000, Compartment: 2},
		{ID: "future", NextReviewAt: 5_001, Compartment: 2},
		{ID: "archived", NextReviewAt: 1_000, Compartment: 2, Archived: true},
		{ID: "deleted", NextReviewAt: 1_000, Compartment: 2, DeletedAt: &deletedAt},
		{ID: "mastered", NextReviewAt: 1_000, Compartment: 6},
	}

	due := DueCards(cards, now, false)
	if len(due) != 2 || due[0].ID != "due" || due[1].ID != "mastered" {
		t.Fatalf("expected [due mastered], got %v", cardIDs(due))
	}

	withoutMastered := DueCards(cards, now, true)
	if len(withoutMastered) != 1 || withoutMastered[0].ID != "due" {
		t.Fatalf("expected [due], got %v", cardIDs(withoutMastered))
	}
}

func TestOrderDueIsDeterministic(t *testing.T) {
	collections := []domain.Collection{
		{ID: "old", CreatedAt: 100},
		{ID: "new", CreatedAt: 200},
	}
	cards := []domain.Card{
		{ID: "b", CollectionID: "new", UpdatedAt: 10},
		{ID: "c", CollectionID: "old", UpdatedAt: 50},
		{ID: "a", CollectionID: "new", UpdatedAt: 10},
		{ID: "d", CollectionID: "missing", UpdatedAt: 1},
		{ID: "e", CollectionID: "old", UpdatedAt: 20},
	}

	// Older collection first, then updated_at, then id; orphans last.
	want := []string{"e", "c", "a", "b", "d"}

	got := cardIDs(OrderDue(cards, collections))
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected order %v, got %v", want, got)
	}

	t.Run("independent of input order", func(t *testing.T) {
		reversed := make([]domain.Card, len(cards))
		for i, card := range cards {
			reversed[len(cards)-1-i] = card
		}
		got := cardIDs(OrderDue(reversed, collections))
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("expected order %v for reversed input, got %v", want, got)
		}
	})

	t.Run("input slice is untouched", func(t *testing.T) {
		inputIDs := cardIDs(cards)
		OrderDue(cards, collections)
		if !reflect.DeepEqual(cardIDs(cards), inputIDs) {
			t.Fatal("OrderDue reordered its input slice")
		}
	})
}

func cardIDs(cards []domain.Card) []string {
	ids := make([]string, len(cards))
	for i, card := range cards {
		ids[i] = card.ID
	}
	return ids
}
