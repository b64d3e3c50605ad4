package domain

import (
	"fmt"
	"time"
)

// Outcome is the user's response to a card review.
type Outcome int

const (
	Wrong Outcome = iota
	Almost
	Correct
)

// String returns the stable lowercase name persisted in review logs.
func (o Outcome) String() string {
	switch o {
	case Wrong:
		return "wrong"
	case Almost:
		return "almost"
	case Correct:
		return "correct"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// ParseOutcome converts a persisted outcome name back to an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "wrong":
		return Wrong, nil
	case "almost":
		return Almost, nil
	case "correct":
		return Correct, nil
	}
	return Wrong, fmt.Errorf("unknown outcome %q", s)
}

// ReviewLog records a single review event for a card. Logs are immutable
// and append-only; they are never synced or soft-deleted.
type ReviewLog struct {
	ID         string
	CardID     string
	SessionID  string
	Outcome    Outcome
	ReviewedAt int64
}

// ReviewSession aggregates one sitting of reviews.
type ReviewSession struct {
	ID        string
	UserID    string
	StartedAt int64
	EndedAt   *int64
	Reviewed  int
	Correct   int
	Wrong     int
}

// Clock supplies the current time as epoch milliseconds. Scheduler and
// sync calls take a Clock so time-based behaviour is deterministic in tests.
type Clock func() int64

// SystemClock reads the real wall clock.
func SystemClock() int64 { return time.Now().UnixMilli() }
