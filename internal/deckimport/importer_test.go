package deckimport

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/conorfennell/leitsync/internal/domain"
	"github.com/conorfennell/leitsync/internal/storage"
)

func setupImport(t *testing.T) (*Importer, *storage.DB, string) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "import.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InsertCollection(context.Background(), domain.Collection{
		ID: "c1", UserID: "user-1", Name: "Deck", CreatedAt: 1_000, UpdatedAt: 1_000,
	}); err != nil {
		t.Fatalf("failed to insert collection: %v", err)
	}

	imp := NewImporter(db)
	imp.Clock = func() int64 { return 1_700_000_000_000 }
	imp.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	deckDir := t.TempDir()
	deck := `Q: What is the capital of France?
A: Paris
---
Q: What is 2+2?
A: 4
`
	if err := os.WriteFile(filepath.Join(deckDir, "deck.md"), []byte(deck), 0o644); err != nil {
		t.Fatalf("failed to write deck file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(deckDir, "notes.txt"), []byte("not a deck"), 0o644); err != nil {
		t.Fatalf("failed to write notes file: %v", err)
	}

	return imp, db, deckDir
}

func TestImportDirInsertsNewCards(t *testing.T) {
	imp, db, deckDir := setupImport(t)
	ctx := context.Background()

	result, err := imp.ImportDir(ctx, deckDir, "user-1", "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Files != 1 || result.Parsed != 2 || result.Inserted != 2 || result.Skipped != 0 {
		t.Errorf("unexpected result: %+v", result)
	}

	cards, err := db.CardsForCollection(ctx, "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(cards))
	}
	for _, card := range cards {
		if card.Compartment != 1 {
			t.Errorf("expected new card in compartment 1, got %d", card.Compartment)
		}
		if card.NextReviewAt != 1_700_000_000_000 {
			t.Errorf("expected the card due immediately, got %d", card.NextReviewAt)
		}
	}
}

func TestImportDirIsIdempotent(t *testing.T) {
	imp, _, deckDir := setupImport(t)
	ctx := context.Background()

	if _, err := imp.ImportDir(ctx, deckDir, "user-1", "c1"); err != nil {
		t.Fatalf("first import: %v", err)
	}
	result, err := imp.ImportDir(ctx, deckDir, "user-1", "c1")
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if result.Inserted != 0 || result.Skipped != 2 {
		t.Errorf("expected the second import to skip everything, got %+v", result)
	}
}

func TestImportDirDelaysFirstReview(t *testing.T) {
	imp, db, deckDir := setupImport(t)
	imp.DelayFirstReview = true
	ctx := context.Background()

	if _, err := imp.ImportDir(ctx, deckDir, "user-1", "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cards, err := db.CardsForCollection(ctx, "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := int64(1_700_000_000_000 + 86_400_000)
	for _, card := range cards {
		if card.NextReviewAt != want {
			t.Errorf("expected first review at %d, got %d", want, card.NextReviewAt)
		}
	}
}

func TestImportIntoMissingCollectionFails(t *testing.T) {
	imp, _, deckDir := setupImport(t)
	if _, err := imp.ImportDir(context.Background(), deckDir, "user-1", "nope"); err == nil {
		t.Error("expected an error for an unknown collection")
	}
}
