package domain

// Card is the unit being learned: a question/answer pair owned by one user
// and grouped into exactly one Collection.
//
// All timestamps are epoch milliseconds. Compartment and NextReviewAt are
// scheduling state and only change through the scheduler package.
type Card struct {
	ID             string `validate:"required"`
	UserID         string `validate:"required"`
	CollectionID   string `validate:"required"`
	Question       string
	Answer         string
	Compartment    int
	NextReviewAt   int64
	CreatedAt      int64
	UpdatedAt      int64
	DeletedAt      *int64
	Archived       bool
	CorrectAnswers int
	TotalReviews   int
}

// Deleted reports whether the card is soft-deleted.
func (c Card) Deleted() bool { return c.DeletedAt != nil }
