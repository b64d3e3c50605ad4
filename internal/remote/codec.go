// Package remote is the client for the record-oriented backend service.
// The remote side stores timestamps as ISO-8601 strings and booleans as
// real booleans; this package owns the conversion to and from the local
// epoch-millisecond representation.
package remote

import (
	"fmt"
	"time"

	"github.com/conorfennell/leitsync/internal/domain"
)

// isoLayout always renders milliseconds so conversion round-trips at
// millisecond precision.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// MillisToISO formats an epoch-millisecond timestamp as an ISO-8601
// string in UTC.
func MillisToISO(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(isoLayout)
}

// ISOToMillis parses an ISO-8601 timestamp into epoch milliseconds.
func ISOToMillis(s string) (int64, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t.UnixMilli(), nil
}

func millisToISOPtr(ms *int64) *string {
	if ms == nil {
		return nil
	}
	s := MillisToISO(*ms)
	return &s
}

func isoToMillisPtr(s *string) (*int64, error) {
	if s == nil {
		return nil, nil
	}
	ms, err := ISOToMillis(*s)
	if err != nil {
		return nil, err
	}
	return &ms, nil
}

// Card is the wire shape of a card.
type Card struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	CollectionID   string  `json:"collection_id"`
	Question       string  `json:"question"`
	Answer         string  `json:"answer"`
	Compartment    int     `json:"compartment"`
	NextReviewAt   string  `json:"next_review_at"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
	DeletedAt      *string `json:"deleted_at,omitempty"`
	Archived       bool    `json:"archived"`
	CorrectAnswers int     `json:"correct_answers"`
	TotalReviews   int     `json:"total_reviews"`
}

// Collection is the wire shape of a collection.
type Collection struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Name      string  `json:"name"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
	DeletedAt *string `json:"deleted_at,omitempty"`
}

// Profile is the wire shape of the user profile.
type Profile struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// EncodeCard converts a local card to its wire shape.
func EncodeCard(c domain.Card) Card {
	return Card{
		ID:             c.ID,
		UserID:         c.UserID,
		CollectionID:   c.CollectionID,
		Question:       c.Question,
		Answer:         c.Answer,
		Compartment:    c.Compartment,
		NextReviewAt:   MillisToISO(c.NextReviewAt),
		CreatedAt:      MillisToISO(c.CreatedAt),
		UpdatedAt:      MillisToISO(c.UpdatedAt),
		DeletedAt:      millisToISOPtr(c.DeletedAt),
		Archived:       c.Archived,
		CorrectAnswers: c.CorrectAnswers,
		TotalReviews:   c.TotalReviews,
	}
}

// DecodeCard converts a wire card to the local representation.
func DecodeCard(c Card) (domain.Card, error) {
	nextReviewAt, err := ISOToMillis(c.NextReviewAt)
	if err != nil {
		return domain.Card{}, fmt.Errorf("card %s next_review_at: %w", c.ID, err)
	}
	createdAt, err := ISOToMillis(c.CreatedAt)
	if err != nil {
		return domain.Card{}, fmt.Errorf("card %s created_at: %w", c.ID, err)
	}
	updatedAt, err := ISOToMillis(c.UpdatedAt)
	if err != nil {
		return domain.Card{}, fmt.Errorf("card %s updated_at: %w", c.ID, err)
	}
	deletedAt, err := isoToMillisPtr(c.DeletedAt)
	if err != nil {
		return domain.Card{}, fmt.Errorf("card %s deleted_at: %w", c.ID, err)
	}
	return domain.Card{
		ID:             c.ID,
		UserID:         c.UserID,
		CollectionID:   c.CollectionID,
		Question:       c.Question,
		Answer:         c.Answer,
		Compartment:    c.Compartment,
		NextReviewAt:   nextReviewAt,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
		Archived:       c.Archived,
		CorrectAnswers: c.CorrectAnswers,
		TotalReviews:   c.TotalReviews,
	}, nil
}

// EncodeCollection converts a local collection to its wire shape.
func EncodeCollection(c domain.Collection) Collection {
	return Collection{
		ID:        c.ID,
		UserID:    c.UserID,
		Name:      c.Name,
		CreatedAt: MillisToISO(c.CreatedAt),
		UpdatedAt: MillisToISO(c.UpdatedAt),
		DeletedAt: millisToISOPtr(c.DeletedAt),
	}
}

// DecodeCollection converts a wire collection to the local representation.
func DecodeCollection(c Collection) (domain.Collection, error) {
	createdAt, err := ISOToMillis(c.CreatedAt)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("collection %s created_at: %w", c.ID, err)
	}
	updatedAt, err := ISOToMillis(c.UpdatedAt)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("collection %s updated_at: %w", c.ID, err)
	}
	deletedAt, err := isoToMillisPtr(c.DeletedAt)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("collection %s deleted_at: %w", c.ID, err)
	}
	return domain.Collection{
		ID:        c.ID,
		UserID:    c.UserID,
		Name:      c.Name,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
	}, nil
}

// EncodeProfile converts a local profile to its wire shape.
func EncodeProfile(p domain.Profile) Profile {
	return Profile{
		UserID:    p.UserID,
		Name:      p.Name,
		Email:     p.Email,
		CreatedAt: MillisToISO(p.CreatedAt),
		UpdatedAt: MillisToISO(p.UpdatedAt),
	}
}

// DecodeProfile converts a wire profile to the local representation.
func DecodeProfile(p Profile) (domain.Profile, error) {
	createdAt, err := ISOToMillis(p.CreatedAt)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("profile %s created_at: %w", p.UserID, err)
	}
	updatedAt, err := ISOToMillis(p.UpdatedAt)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("profile %s updated_at: %w", p.UserID, err)
	}
	return domain.Profile{
		UserID:    p.UserID,
		Name:      p.Name,
		Email:     p.Email,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}
