package domain

// Collection is a named grouping of Cards owned by a user.
// Deleting a collection cascades a soft-delete to all of its cards,
// stamped with the same DeletedAt.
type Collection struct {
	ID        string `validate:"required"`
	UserID    string `validate:"required"`
	Name      string `validate:"required"`
	CreatedAt int64
	UpdatedAt int64
	DeletedAt *int64
}

// Deleted reports whether the collection is soft-deleted.
func (c Collection) Deleted() bool { return c.DeletedAt != nil }

// Profile is the per-user singleton record carried through sync alongside
// collections and cards.
type Profile struct {
	UserID    string `validate:"required"`
	Name      string
	Email     string `validate:"omitempty,email"`
	CreatedAt int64
	UpdatedAt int64
}
