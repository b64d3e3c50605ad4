// Package review runs review sessions: it hands the scheduler each
// outcome, persists the rescheduled card, and keeps the immutable review
// log and per-session aggregates.
package review

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/conorfennell/leitsync/internal/domain"
	"github.com/conorfennell/leitsync/internal/scheduler"
)

// Store is the slice of the storage layer a session needs.
type Store interface {
	FindCardByID(ctx context.Context, id string) (*domain.Card, error)
	UpdateCard(ctx context.Context, card domain.Card) error
	DueCards(ctx context.Context, userID string, now int64, excludeMastered bool) ([]domain.Card, error)
	CollectionsForUser(ctx context.Context, userID string) ([]domain.Collection, error)
	InsertReviewLog(ctx context.Context, log domain.ReviewLog) error
	InsertReviewSession(ctx context.Context, s domain.ReviewSession) error
	UpdateReviewSession(ctx context.Context, s domain.ReviewSession) error
}

// Session is one sitting of reviews for a user.
type Session struct {
	store  Store
	clock  domain.Clock
	userID string
	state  domain.ReviewSession
}

// Start opens a new session and persists its row.
func Start(ctx context.Context, store Store, userID string, clock domain.Clock) (*Session, error) {
	if clock == nil {
		clock = domain.SystemClock
	}
	s := &Session{
		store:  store,
		clock:  clock,
		userID: userID,
		state: domain.ReviewSession{
			ID:        uuid.NewString(),
			UserID:    userID,
			StartedAt: clock(),
		},
	}
	if err := store.InsertReviewSession(ctx, s.state); err != nil {
		return nil, fmt.Errorf("failed to start review session: %w", err)
	}
	return s, nil
}

// Queue returns the due cards in deterministic review order.
func (s *Session) Queue(ctx context.Context, excludeMastered bool) ([]domain.Card, error) {
	now := s.clock()
	due, err := s.store.DueCards(ctx, s.userID, now, excludeMastered)
	if err != nil {
		return nil, fmt.Errorf("failed to load due cards: %w", err)
	}
	collections, err := s.store.CollectionsForUser(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load collections: %w", err)
	}
	return scheduler.OrderDue(due, collections), nil
}

// Answer records an outcome for a card: the card is rescheduled and
// persisted, a review log row is appended, and the session counters
// advance. It returns the rescheduled card.
func (s *Session) Answer(ctx context.Context, cardID string, outcome domain.Outcome) (domain.Card, error) {
	card, err := s.store.FindCardByID(ctx, cardID)
	if err != nil {
		return domain.Card{}, fmt.Errorf("failed to load card %s: %w", cardID, err)
	}
	if card == nil {
		return domain.Card{}, fmt.Errorf("card %s not found", cardID)
	}

	now := s.clock()
	next := scheduler.ScheduleAfterReview(*card, outcome, now)
	if err := s.store.UpdateCard(ctx, next); err != nil {
		return domain.Card{}, fmt.Errorf("failed to persist review of card %s: %w", cardID, err)
	}

	if err := s.store.InsertReviewLog(ctx, domain.ReviewLog{
		ID:         uuid.NewString(),
		CardID:     cardID,
		SessionID:  s.state.ID,
		Outcome:    outcome,
		ReviewedAt: now,
	}); err != nil {
		return domain.Card{}, fmt.Errorf("failed to log review of card %s: %w", cardID, err)
	}

	s.state.Reviewed++
	switch outcome {
	case domain.Correct:
		s.state.Correct++
	case domain.Wrong:
		s.state.Wrong++
	}
	if err := s.store.UpdateReviewSession(ctx, s.state); err != nil {
		return domain.Card{}, fmt.Errorf("failed to update review session: %w", err)
	}
	return next, nil
}

// Finish stamps the session's end time.
func (s *Session) Finish(ctx context.Context) error {
	endedAt := s.clock()
	s.state.EndedAt = &endedAt
	if err := s.store.UpdateReviewSession(ctx, s.state); err != nil {
		return fmt.Errorf("failed to finish review session: %w", err)
	}
	return nil
}

// Summary returns the session aggregates recorded so far.
func (s *Session) Summary() domain.ReviewSession { return s.state }
