// Package storage is the local persistent store: a SQLite database holding
// collections, cards, the user profile, and review history. Timestamps are
// epoch milliseconds and booleans are 0/1 integers; the conversion to the
// remote representation happens at the sync boundary, not here.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/conorfennell/leitsync/internal/domain"
)

// DB wraps the shared SQLite handle. The connection is created lazily on
// first use; concurrent callers share the same in-flight initialization.
type DB struct {
	dsn string

	once    sync.Once
	conn    *sql.DB
	initErr error

	validate *validator.Validate

	dueMu       sync.Mutex
	dueCount    int
	dueCountSet bool
}

// New returns a DB for the given DSN without touching the database yet.
func New(dsn string) *DB {
	return &DB{
		dsn:      dsn,
		validate: validator.New(),
	}
}

// Open creates a DB and eagerly initializes the connection and schema.
func Open(dsn string) (*DB, error) {
	db := New(dsn)
	if _, err := db.handle(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) handle() (*sql.DB, error) {
	db.once.Do(func() {
		conn, err := sql.Open("sqlite", db.dsn)
		if err != nil {
			db.initErr = fmt.Errorf("failed to open database: %w", err)
			return
		}
		if err := conn.Ping(); err != nil {
			db.initErr = fmt.Errorf("failed to connect to database: %w", err)
			return
		}
		if _, err := conn.Exec(schema); err != nil {
			db.initErr = fmt.Errorf("failed to apply schema: %w", err)
			return
		}
		db.conn = conn
	})
	return db.conn, db.initErr
}

// Close closes the database connection if it was ever opened.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

func nullableMillis(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func millisPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	ms := v.Int64
	return &ms
}

// --- Collections ---

// InsertCollection stores a new collection. The record is validated here,
// once, at the store boundary.
func (db *DB) InsertCollection(ctx context.Context, col domain.Collection) error {
	conn, err := db.handle()
	if err != nil {
		return err
	}
	if err := db.validate.Struct(col); err != nil {
		return fmt.Errorf("invalid collection %s: %w", col.ID, err)
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO collections (id, user_id, name, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, col.ID, col.UserID, col.Name, col.CreatedAt, col.UpdatedAt, nullableMillis(col.DeletedAt))
	if err != nil {
		return fmt.Errorf("failed to insert collection %s: %w", col.ID, err)
	}
	return nil
}

// UpdateCollection rewrites an existing collection's mutable fields.
func (db *DB) UpdateCollection(ctx context.Context, col domain.Collection) error {
	conn, err := db.handle()
	if err != nil {
		return err
	}
	if err := db.validate.Struct(col); err != nil {
		return fmt.Errorf("invalid collection %s: %w", col.ID, err)
	}
	_, err = conn.ExecContext(ctx, `
		UPDATE collections
		SET name = ?, created_at = ?, updated_at = ?, deleted_at = ?
		WHERE id = ?
	`, col.Name, col.CreatedAt, col.UpdatedAt, nullableMillis(col.DeletedAt), col.ID)
	if err != nil {
		return fmt.Errorf("failed to update collection %s: %w", col.ID, err)
	}
	return nil
}

// FindCollectionByID returns the collection or nil when not found.
func (db *DB) FindCollectionByID(ctx context.Context, id string) (*domain.Collection, error) {
	conn, err := db.handle()
	if err != nil {
		return nil, err
	}
	row := conn.QueryRowContext(ctx, `
		SELECT id, user_id, name, created_at, updated_at, deleted_at
		FROM collections WHERE id = ?
	`, id)
	col, err := scanCollection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find collection %s: %w", id, err)
	}
	return col, nil
}

// CollectionsForUser returns every collection for the user, including
// soft-deleted ones — sync needs deletions too.
func (db *DB) CollectionsForUser(ctx context.Context, userID string) ([]domain.Collection, error) {
	conn, err := db.handle()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, `
		SELECT id, user_id, name, created_at, updated_at, deleted_at
		FROM collections WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query collections for user %s: %w", userID, err)
	}
	defer rows.Close()

	var cols []domain.Collection
	for rows.Next() {
		col, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection row: %w", err)
		}
		cols = append(cols, *col)
	}
	return cols, rows.Err()
}

// DeleteCollection soft-deletes a collection and cascades the same
// deletion timestamp to every card in it.
func (db *DB) DeleteCollection(ctx context.Context, id string, now int64) error {
	conn, err := db.handle()
	if err != nil {
		return err
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete of collection %s: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE collections SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL
	`, now, now, id); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE cards SET deleted_at = ?, updated_at = ? WHERE collection_id = ? AND deleted_at IS NULL
	`, now, now, id); err != nil {
		return fmt.Errorf("failed to delete cards of collection %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete of collection %s: %w", id, err)
	}
	db.InvalidateDueCount()
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (*domain.Collection, error) {
	var col domain.Collection
	var deletedAt sql.NullInt64
	if err := row.Scan(&col.ID, &col.UserID, &col.Name, &col.CreatedAt, &col.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	col.DeletedAt = millisPtr(deletedAt)
	return &col, nil
}

// --- Cards ---

func (db *DB) InsertCard(ctx context.Context, card domain.Card) error {
	conn, err := db.handle()
	if err != nil {
		return err
	}
	if err := db.validate.Struct(card); err != nil {
		return fmt.Errorf("invalid card %s: %w", card.ID, err)
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO cards (id, user_id, collection_id, question, answer, compartment,
			next_review_at, created_at, updated_at, deleted_at, archived,
			correct_answers, total_reviews)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		card.ID, card.UserID, card.CollectionID, card.Question, card.Answer,
		card.Compartment, card.NextReviewAt, card.CreatedAt, card.UpdatedAt,
		nullableMillis(card.DeletedAt), boolToInt(card.Archived),
		card.CorrectAnswers, card.TotalReviews,
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	db.InvalidateDueCount()
	return nil
}

func (db *DB) UpdateCard(ctx context.Context, card domain.Card) error {
	conn, err := db.handle()
	if err != nil {
		return err
	}
	if err := db.validate.Struct(card); err != nil {
		return fmt.Errorf("invalid card %s: %w", card.ID, err)
	}
	_, err = conn.ExecContext(ctx, `
		UPDATE cards
		SET user_id = ?, collection_id = ?, question = ?, answer = ?, compartment = ?,
			next_review_at = ?, created_at = ?, updated_at = ?, deleted_at = ?,
			archived = ?, correct_answers = ?, total_reviews = ?
		WHERE id = ?
	`,
		card.UserID, card.CollectionID, card.Question, card.Answer, card.Compartment,
		card.NextReviewAt, card.CreatedAt, card.UpdatedAt, nullableMillis(card.DeletedAt),
		boolToInt(card.Archived), card.CorrectAnswers, card.TotalReviews, card.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update card %s: %w", card.ID, err)
	}
	db.InvalidateDueCount()
	return nil
}

// FindCardByID returns the card or nil when not found.
func (db *DB) FindCardByID(ctx context.Context, id string) (*domain.Card, error) {
	conn, err := db.handle()
	if err != nil {
		return nil, err
	}
	row := conn.QueryRowContext(ctx, selectCards+` WHERE id = ?`, id)
	card, err := scanCard(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find card %s: %w", id, err)
	}
	return card, nil
}

const selectCards = `
	SELECT id, user_id, collection_id, question, answer, compartment,
		next_review_at, created_at, updated_at, deleted_at, archived,
		correct_answers, total_reviews
	FROM cards`

// CardsForUser returns every card for the user, including soft-deleted
// and archived ones.
func (db *DB) CardsForUser(ctx context.Context, userID string) ([]domain.Card, error) {
	conn, err := db.handle()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, selectCards+` WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards for user %s: %w", userID, err)
	}
	defer rows.Close()
	return collectCards(rows)
}

// CardsForCollection returns the live cards of one collection.
func (db *DB) CardsForCollection(ctx context.Context, collectionID string) ([]domain.Card, error) {
	conn, err := db.handle()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx,
		selectCards+` WHERE collection_id = ? AND deleted_at IS NULL`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards for collection %s: %w", collectionID, err)
	}
	defer rows.Close()
	return collectCards(rows)
}

// DueCards returns the user's due cards: live, not archived, scheduled at
// or before now. excludeMastered drops compartment-6 cards.
func (db *DB) DueCards(ctx context.Context, userID string, now int64, excludeMastered bool) ([]domain.Card, error) {
	conn, err := db.handle()
	if err != nil {
		return nil, err
	}
	query := selectCards + `
		WHERE user_id = ? AND deleted_at IS NULL AND archived = 0 AND next_review_at <= ?`
	args := []any{userID, now}
	if excludeMastered {
		query += ` AND compartment < 6`
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query due cards for user %s: %w", userID, err)
	}
	defer rows.Close()
	return collectCards(rows)
}

// DueCount returns the number of due cards, cached until the next card
// write or sync pull invalidates it.
func (db *DB) DueCount(ctx context.Context, userID string, now int64) (int, error) {
	db.dueMu.Lock()
	if db.dueCountSet {
		count := db.dueCount
		db.dueMu.Unlock()
		return count, nil
	}
	db.dueMu.Unlock()

	cards, err := db.DueCards(ctx, userID, now, false)
	if err != nil {
		return 0, err
	}

	db.dueMu.Lock()
	db.dueCount = len(cards)
	db.dueCountSet = true
	db.dueMu.Unlock()
	return len(cards), nil
}

// InvalidateDueCount drops the cached due count so the next DueCount call
// recomputes it against fresh data.
func (db *DB) InvalidateDueCount() {
	db.dueMu.Lock()
	db.dueCountSet = false
	db.dueMu.Unlock()
}

func collectCards(rows *sql.Rows) ([]domain.Card, error) {
	var cards []domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

func scanCard(row rowScanner) (*domain.Card, error) {
	var card domain.Card
	var deletedAt sql.NullInt64
	var archived int
	if err := row.Scan(
		&card.ID, &card.UserID, &card.CollectionID, &card.Question, &card.Answer,
		&card.Compartment, &card.NextReviewAt, &card.CreatedAt, &card.UpdatedAt,
		&deletedAt, &archived, &card.CorrectAnswers, &card.TotalReviews,
	); err != nil {
		return nil, err
	}
	card.DeletedAt = millisPtr(deletedAt)
	card.Archived = archived != 0
	return &card, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// --- Profile ---

// FindProfileByUserID returns the user's profile or nil when not found.
func (db *DB) FindProfileByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	conn, err := db.handle()
	if err != nil {
		return nil, err
	}
	var p domain.Profile
	err = conn.QueryRowContext(ctx, `
		SELECT user_id, name, email, created_at, updated_at
		FROM profiles WHERE user_id = ?
	`, userID).Scan(&p.UserID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile for user %s: %w", userID, err)
	}
	return &p, nil
}

func (db *DB) InsertProfile(ctx context.Context, p domain.Profile) error {
	conn, err := db.handle()
	if err != nil {
		return err
	}
	if err := db.validate.Struct(p); err != nil {
		return fmt.Errorf("invalid profile for user %s: %w", p.UserID, err)
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO profiles (user_id, name, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.UserID, p.Name, p.Email, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert profile for user %s: %w", p.UserID, err)
	}
	return nil
}

func (db *DB) UpdateProfile(ctx context.Context, p domain.Profile) error {
	conn, err := db.handle()
	if err != nil {
		return err
	}
	if err := db.validate.Struct(p); err != nil {
		return fmt.Errorf("invalid profile for user %s: %w", p.UserID, err)
	}
	_, err = conn.ExecContext(ctx, `
		UPDATE profiles SET name = ?, email = ?, created_at = ?, updated_at = ?
		WHERE user_id = ?
	`, p.Name, p.Email, p.CreatedAt, p.UpdatedAt, p.UserID)
	if err != nil {
		return fmt.Errorf("failed to update profile for user %s: %w", p.UserID, err)
	}
	return nil
}

// --- Review history ---

func (db *DB) InsertReviewLog(ctx context.Context, log domain.ReviewLog) error {
	conn, err := db.handle()
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO review_logs (id, card_id, session_id, outcome, reviewed_at)
		VALUES (?, ?, ?, ?, ?)
	`, log.ID, log.CardID, log.SessionID, log.Outcome.String(), log.ReviewedAt)
	if err != nil {
		return fmt.Errorf("failed to insert review log %s: %w", log.ID, err)
	}
	return nil
}

// ReviewLogsForSession returns a session's logs in review order.
func (db *DB) ReviewLogsForSession(ctx context.Context, sessionID string) ([]domain.ReviewLog, error) {
	conn, err := db.handle()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, `
		SELECT id, card_id, session_id, outcome, reviewed_at
		FROM review_logs WHERE session_id = ? ORDER BY reviewed_at
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query review logs for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var log domain.ReviewLog
		var outcome string
		if err := rows.Scan(&log.ID, &log.CardID, &log.SessionID, &outcome, &log.ReviewedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review log row: %w", err)
		}
		if log.Outcome, err = domain.ParseOutcome(outcome); err != nil {
			return nil, fmt.Errorf("failed to scan review log %s: %w", log.ID, err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (db *DB) InsertReviewSession(ctx context.Context, s domain.ReviewSession) error {
	conn, err := db.handle()
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO review_sessions (id, user_id, started_at, ended_at, reviewed, correct, wrong)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.UserID, s.StartedAt, nullableMillis(s.EndedAt), s.Reviewed, s.Correct, s.Wrong)
	if err != nil {
		return fmt.Errorf("failed to insert review session %s: %w", s.ID, err)
	}
	return nil
}

func (db *DB) UpdateReviewSession(ctx context.Context, s domain.ReviewSession) error {
	conn, err := db.handle()
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `
		UPDATE review_sessions SET ended_at = ?, reviewed = ?, correct = ?, wrong = ?
		WHERE id = ?
	`, nullableMillis(s.EndedAt), s.Reviewed, s.Correct, s.Wrong, s.ID)
	if err != nil {
		return fmt.Errorf("failed to update review session %s: %w", s.ID, err)
	}
	return nil
}
