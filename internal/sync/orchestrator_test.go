package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/conorfennell/leitsync/internal/domain"
	"github.com/conorfennell/leitsync/internal/remote"
)

func TestRunPullsCardsOnlyAfterCollectionsComplete(t *testing.T) {
	local, rem := newFakeLocal(), newFakeRemote()
	events := &eventLog{}
	local.events = events
	rem.events = events
	rem.collections["c1"] = remoteCollection("c1", 1_700_000_000_000)
	rem.cards["k1"] = remote.EncodeCard(domain.Card{
		ID: "k1", UserID: testUser, CollectionID: "c1",
		Question: "q", Answer: "a", Compartment: 1,
		UpdatedAt: 1_700_000_000_000,
	})
	// Slow the collections fetch down so an accidental concurrent cards
	// fetch would overtake it.
	rem.collectionsFetchBarrier = func() { time.Sleep(30 * time.Millisecond) }

	o := NewOrchestrator(newTestReconciler(local, rem))
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o.Wait()

	colApplied := events.index("local.InsertCollection")
	cardsFetched := events.index("remote.CardsForUser")
	if colApplied == -1 || cardsFetched == -1 {
		t.Fatalf("expected both events, got applied=%d fetched=%d", colApplied, cardsFetched)
	}
	if cardsFetched < colApplied {
		t.Errorf("cards were fetched (event %d) before collections finished applying (event %d)",
			cardsFetched, colApplied)
	}
	if _, ok := local.cards["k1"]; !ok {
		t.Error("expected the remote card to be pulled")
	}
}

func TestRunIsolatesEntityFailures(t *testing.T) {
	local, rem := newFakeLocal(), newFakeRemote()
	events := &eventLog{}
	rem.events = events
	rem.collectionsErr = errors.New("collections endpoint down")
	remP := remote.EncodeProfile(domain.Profile{UserID: testUser, Name: "Ada", UpdatedAt: 5})
	rem.profile = &remP

	o := NewOrchestrator(newTestReconciler(local, rem))
	err := o.Run(context.Background())
	o.Wait()

	if err == nil {
		t.Fatal("expected the awaited pull to propagate the failure")
	}
	if !errors.Is(err, rem.collectionsErr) {
		t.Errorf("expected the collections error in the join, got %v", err)
	}
	if local.profile == nil || local.profile.Name != "Ada" {
		t.Error("profile pull should have proceeded despite the collections failure")
	}
	if events.index("remote.CardsForUser") == -1 {
		t.Error("cards pull should still be attempted after a failed collections pull")
	}

	status, lastErr := o.Status()
	if status != StatusFailed || lastErr == nil {
		t.Errorf("expected failed status with an error, got %v / %v", status, lastErr)
	}
}

func TestRunPushesLocalChangesInBackground(t *testing.T) {
	local, rem := newFakeLocal(), newFakeRemote()
	local.cards["k1"] = domain.Card{
		ID: "k1", UserID: testUser, CollectionID: "c1",
		Question: "q", Answer: "a", Compartment: 2,
		UpdatedAt: 1_700_000_000_000,
	}

	o := NewOrchestrator(newTestReconciler(local, rem))
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o.Wait()

	if rem.upsertedCards != 1 {
		t.Errorf("expected the local card to be pushed in the background, got %d", rem.upsertedCards)
	}

	status, lastErr := o.Status()
	if status != StatusIdle || lastErr != nil {
		t.Errorf("expected idle status, got %v / %v", status, lastErr)
	}
}

func TestRunInvalidatesDueCountAfterPull(t *testing.T) {
	local, rem := newFakeLocal(), newFakeRemote()

	o := NewOrchestrator(newTestReconciler(local, rem))
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o.Wait()

	if local.invalidations == 0 {
		t.Error("expected the cached due count to be invalidated after the pull phase")
	}
}

func TestPushFailureIsSilentToRun(t *testing.T) {
	local, rem := newFakeLocal(), newFakeRemote()
	local.cards["k1"] = domain.Card{
		ID: "k1", UserID: testUser, CollectionID: "c1",
		Question: "q", Answer: "a", Compartment: 1,
		UpdatedAt: 1_700_000_000_000,
	}
	rem.cardsErr = errors.New("cards endpoint down")

	o := NewOrchestrator(newTestReconciler(local, rem))
	err := o.Run(context.Background())
	o.Wait()

	// The pull phase reads cards too, so the pull fails; the push failure
	// on top of it must not surface anywhere beyond the log.
	if err == nil {
		t.Fatal("expected the pull-phase cards failure to propagate")
	}

	if awaited := o.Push(context.Background()); awaited == nil {
		t.Error("an explicitly awaited push must propagate its error")
	}
}
