package deckimport

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/conorfennell/leitsync/internal/domain"
	"github.com/conorfennell/leitsync/internal/scheduler"
)

// Store is the slice of the storage layer the importer needs.
type Store interface {
	FindCollectionByID(ctx context.Context, id string) (*domain.Collection, error)
	CardsForCollection(ctx context.Context, collectionID string) ([]domain.Card, error)
	InsertCard(ctx context.Context, card domain.Card) error
}

// Importer loads parsed cards into a collection.
type Importer struct {
	store Store

	// Clock and Logger default to the system clock and slog.Default.
	Clock  domain.Clock
	Logger *slog.Logger

	// DelayFirstReview schedules imported cards a day out instead of
	// making them due immediately.
	DelayFirstReview bool
}

// NewImporter returns an Importer writing through the given store.
func NewImporter(store Store) *Importer {
	return &Importer{
		store:  store,
		Clock:  domain.SystemClock,
		Logger: slog.Default(),
	}
}

// Result summarises one import run.
type Result struct {
	Files    int
	Parsed   int
	Inserted int
	Skipped  int
}

// ImportDir walks a directory tree, parses every .md file, and inserts the
// cards that are not already present in the collection. Presence is decided
// by content fingerprint, so running the same import twice inserts nothing
// the second time.
func (imp *Importer) ImportDir(ctx context.Context, dir, userID, collectionID string) (Result, error) {
	var result Result

	col, err := imp.store.FindCollectionByID(ctx, collectionID)
	if err != nil {
		return result, fmt.Errorf("import into %s: %w", collectionID, err)
	}
	if col == nil || col.Deleted() {
		return result, fmt.Errorf("import into %s: collection not found", collectionID)
	}

	existing, err := imp.store.CardsForCollection(ctx, collectionID)
	if err != nil {
		return result, fmt.Errorf("import into %s: %w", collectionID, err)
	}
	seen := make(map[string]bool, len(existing))
	for _, card := range existing {
		seen[Fingerprint(card.Question, card.Answer)] = true
	}

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		result.Files++

		parsed, err := ParseFile(path)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		result.Parsed += len(parsed)

		for _, pc := range parsed {
			fp := Fingerprint(pc.Question, pc.Answer)
			if seen[fp] {
				result.Skipped++
				continue
			}
			seen[fp] = true

			now := imp.Clock()
			card := domain.Card{
				ID:           uuid.NewString(),
				UserID:       userID,
				CollectionID: collectionID,
				Question:     pc.Question,
				Answer:       pc.Answer,
				Compartment:  scheduler.MinCompartment,
				NextReviewAt: scheduler.InitialReviewAt(now, imp.DelayFirstReview),
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := imp.store.InsertCard(ctx, card); err != nil {
				return fmt.Errorf("inserting card from %s: %w", path, err)
			}
			result.Inserted++
		}
		return nil
	})
	if walkErr != nil {
		return result, fmt.Errorf("import into %s: %w", collectionID, walkErr)
	}

	imp.Logger.Info("import complete",
		"collection_id", collectionID,
		"files", result.Files,
		"parsed", result.Parsed,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
	)
	return result, nil
}
