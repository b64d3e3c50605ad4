package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/conorfennell/leitsync/internal/config"
	"github.com/conorfennell/leitsync/internal/deckimport"
	"github.com/conorfennell/leitsync/internal/domain"
	"github.com/conorfennell/leitsync/internal/gitsource"
	"github.com/conorfennell/leitsync/internal/remote"
	"github.com/conorfennell/leitsync/internal/review"
	"github.com/conorfennell/leitsync/internal/storage"
	"github.com/conorfennell/leitsync/internal/sync"
)

func main() {
	flags := pflag.NewFlagSet("leitsync", pflag.ExitOnError)
	configPath := flags.String("config", "leitsync.yaml", "Path to the YAML config file")
	flags.String("db_path", "leitsync.db", "Path to the SQLite database file")
	flags.String("user_id", "", "User the local database belongs to")
	flags.Bool("delay_first_review", false, "Schedule new cards a day out instead of immediately")

	addCollection := flags.String("add-collection", "", "Create a collection with the given name")
	deleteCollection := flags.String("delete-collection", "", "Soft-delete the collection with the given id")
	importSource := flags.String("import", "", "Import cards from a directory or git URL")
	collectionID := flags.String("collection", "", "Target collection id for --import")
	runSync := flags.Bool("sync", false, "Synchronize with the remote backend and exit")
	runReview := flags.Bool("review", false, "Review due cards interactively")

	if err := flags.Parse(os.Args[1:]); err != nil {
		fatal("failed to parse flags", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		fatal("failed to load config", err)
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		fatal("failed to open database", err)
	}
	defer db.Close()

	ctx := context.Background()

	var orchestrator *sync.Orchestrator
	if cfg.SyncEnabled() {
		token := remote.TokenSource([]byte(cfg.Remote.AuthSecret), cfg.UserID)
		client := remote.NewClient(cfg.Remote.BaseURL, token)
		orchestrator = sync.NewOrchestrator(sync.New(db, client, cfg.UserID))
	}

	switch {
	case *addCollection != "":
		now := domain.SystemClock()
		col := domain.Collection{
			ID:        uuid.NewString(),
			UserID:    cfg.UserID,
			Name:      *addCollection,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := db.InsertCollection(ctx, col); err != nil {
			fatal("failed to create collection", err)
		}
		fmt.Printf("Created collection %s (%s)\n", col.Name, col.ID)

	case *deleteCollection != "":
		if err := db.DeleteCollection(ctx, *deleteCollection, domain.SystemClock()); err != nil {
			fatal("failed to delete collection", err)
		}
		fmt.Printf("Deleted collection %s\n", *deleteCollection)

	case *importSource != "":
		if *collectionID == "" {
			fatal("missing flag", fmt.Errorf("--import requires --collection"))
		}
		dir := *importSource
		if gitsource.IsGitURL(dir) {
			localPath, err := gitsource.LocalPath(cfg.ReposDir, dir)
			if err != nil {
				fatal("failed to resolve deck repository", err)
			}
			if err := gitsource.Fetch(ctx, dir, localPath); err != nil {
				fatal("failed to fetch deck repository", err)
			}
			dir = localPath
		}
		importer := deckimport.NewImporter(db)
		importer.DelayFirstReview = cfg.DelayFirstReview
		result, err := importer.ImportDir(ctx, dir, cfg.UserID, *collectionID)
		if err != nil {
			fatal("import failed", err)
		}
		fmt.Printf("Imported %d cards (%d files, %d parsed, %d already present)\n",
			result.Inserted, result.Files, result.Parsed, result.Skipped)

	case *runSync:
		if orchestrator == nil {
			fatal("sync not configured", fmt.Errorf("set remote.base_url to enable sync"))
		}
		if err := orchestrator.Run(ctx); err != nil {
			slog.Error("sync pull failed, local data unchanged", "error", err)
		}
		orchestrator.Wait()

	case *runReview:
		// Pull fresh data first when a backend is configured; a sync
		// failure falls back to whatever is already local.
		if orchestrator != nil {
			if err := orchestrator.Run(ctx); err != nil {
				slog.Warn("sync failed, reviewing local data", "error", err)
			}
		}
		if err := reviewLoop(ctx, db, cfg.UserID); err != nil {
			fatal("review failed", err)
		}
		if orchestrator != nil {
			if err := orchestrator.Push(ctx); err != nil {
				slog.Warn("failed to push reviews, will retry on next sync", "error", err)
			}
		}

	default:
		count, err := db.DueCount(ctx, cfg.UserID, domain.SystemClock())
		if err != nil {
			fatal("failed to count due cards", err)
		}
		fmt.Printf("%d cards due\n", count)
	}

	if orchestrator != nil {
		orchestrator.Wait()
	}
}

func reviewLoop(ctx context.Context, db *storage.DB, userID string) error {
	session, err := review.Start(ctx, db, userID, nil)
	if err != nil {
		return err
	}

	queue, err := session.Queue(ctx, false)
	if err != nil {
		return err
	}
	if len(queue) == 0 {
		fmt.Println("Nothing due. Come back later.")
		return session.Finish(ctx)
	}

	stdin := bufio.NewScanner(os.Stdin)
	for _, card := range queue {
		fmt.Printf("\nQ: %s\n[enter] to reveal, q to quit: ", card.Question)
		if !stdin.Scan() || strings.TrimSpace(stdin.Text()) == "q" {
			break
		}
		fmt.Printf("A: %s\n", card.Answer)

		outcome, quit := promptOutcome(stdin)
		if quit {
			break
		}
		if _, err := session.Answer(ctx, card.ID, outcome); err != nil {
			return err
		}
	}

	if err := session.Finish(ctx); err != nil {
		return err
	}
	summary := session.Summary()
	fmt.Printf("\nReviewed %d cards: %d correct, %d wrong.\n",
		summary.Reviewed, summary.Correct, summary.Wrong)
	return nil
}

func promptOutcome(stdin *bufio.Scanner) (domain.Outcome, bool) {
	for {
		fmt.Print("(c)orrect / (a)lmost / (w)rong / (q)uit: ")
		if !stdin.Scan() {
			return domain.Wrong, true
		}
		switch strings.TrimSpace(strings.ToLower(stdin.Text())) {
		case "c":
			return domain.Correct, false
		case "a":
			return domain.Almost, false
		case "w":
			return domain.Wrong, false
		case "q":
			return domain.Wrong, true
		}
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
