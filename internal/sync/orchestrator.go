package sync

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Status describes what the orchestrator is currently doing.
type Status int

const (
	StatusIdle Status = iota
	StatusInFlight
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusInFlight:
		return "in-flight"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Orchestrator sequences the per-entity sync passes. On Run it pulls the
// profile and collections concurrently, pulls cards once collections have
// completed (cards reference collection ids that must exist locally), then
// fires the push passes in the background. Each entity pass fails
// independently: a sibling's error is recorded and logged, never fatal to
// the others.
type Orchestrator struct {
	rec *Reconciler

	mu      sync.Mutex
	status  Status
	lastErr error
	pushWG  sync.WaitGroup
}

// NewOrchestrator wraps a Reconciler.
func NewOrchestrator(rec *Reconciler) *Orchestrator {
	return &Orchestrator{rec: rec}
}

// Status returns the current status and, when failed, the last error.
func (o *Orchestrator) Status() (Status, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status, o.lastErr
}

func (o *Orchestrator) setStatus(s Status, err error) {
	o.mu.Lock()
	o.status = s
	o.lastErr = err
	o.mu.Unlock()
}

// Run performs the startup synchronization. The pull phase is awaited and
// its joined error returned so a foreground caller can fall back to
// local-only data; the push phase runs in the background and is only
// logged, surviving cancellation of the caller's context.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.setStatus(StatusInFlight, nil)

	err := o.pull(ctx)

	o.pushWG.Add(1)
	go func() {
		defer o.pushWG.Done()
		o.pushBackground(context.WithoutCancel(ctx))
	}()

	if err != nil {
		o.setStatus(StatusFailed, err)
		return err
	}
	o.setStatus(StatusIdle, nil)
	return nil
}

func (o *Orchestrator) pull(ctx context.Context) error {
	var profileErr, collectionsErr, cardsErr error

	// Profile and collections are independent; errgroup here is used for
	// the join only, each pass records its own error.
	g := new(errgroup.Group)
	g.Go(func() error {
		profileErr = o.rec.ProfileFromRemote(ctx)
		return nil
	})
	g.Go(func() error {
		collectionsErr = o.rec.CollectionsFromRemote(ctx)
		return nil
	})
	_ = g.Wait()

	// Cards wait for the collections pass to complete, not merely start.
	// A failed collections pass does not stop the attempt: the card merge
	// is idempotent and repairs itself on the next run.
	cardsErr = o.rec.CardsFromRemote(ctx)

	for _, err := range []error{profileErr, collectionsErr, cardsErr} {
		if err != nil {
			o.rec.Logger.Error("sync pull pass failed", "error", err)
		}
	}

	// Aggregates cached against stale data are recomputed lazily.
	o.rec.local.InvalidateDueCount()

	return errors.Join(profileErr, collectionsErr, cardsErr)
}

// Push runs all three to-remote passes and waits for them, returning the
// joined error. The passes are mutually independent and run concurrently.
func (o *Orchestrator) Push(ctx context.Context) error {
	var profileErr, collectionsErr, cardsErr error
	g := new(errgroup.Group)
	g.Go(func() error {
		profileErr = o.rec.ProfileToRemote(ctx)
		return nil
	})
	g.Go(func() error {
		collectionsErr = o.rec.CollectionsToRemote(ctx)
		return nil
	})
	g.Go(func() error {
		cardsErr = o.rec.CardsToRemote(ctx)
		return nil
	})
	_ = g.Wait()
	return errors.Join(profileErr, collectionsErr, cardsErr)
}

func (o *Orchestrator) pushBackground(ctx context.Context) {
	if err := o.Push(ctx); err != nil {
		// Background pushes are silent to the user; the change is pushed
		// again on the next natural trigger.
		o.rec.Logger.Warn("background sync push failed", "error", err)
	}
}

// Wait blocks until any in-flight background push has finished. Tests and
// orderly shutdown use it; ordinary callers never need to.
func (o *Orchestrator) Wait() {
	o.pushWG.Wait()
}
