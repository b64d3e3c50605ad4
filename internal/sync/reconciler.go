// Package sync reconciles the local store against the remote backend with
// per-record last-write-wins merging. Each entity type syncs in each
// direction as an independent pass; a record wins only when its normalized
// updated_at is strictly greater, so re-running a pass with no intervening
// change writes nothing.
package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/conorfennell/leitsync/internal/domain"
	"github.com/conorfennell/leitsync/internal/remote"
)

// LocalStore is the slice of the storage layer the reconciler needs.
// Reads return all records for the user, soft-deleted ones included.
type LocalStore interface {
	CollectionsForUser(ctx context.Context, userID string) ([]domain.Collection, error)
	FindCollectionByID(ctx context.Context, id string) (*domain.Collection, error)
	InsertCollection(ctx context.Context, col domain.Collection) error
	UpdateCollection(ctx context.Context, col domain.Collection) error

	CardsForUser(ctx context.Context, userID string) ([]domain.Card, error)
	FindCardByID(ctx context.Context, id string) (*domain.Card, error)
	InsertCard(ctx context.Context, card domain.Card) error
	UpdateCard(ctx context.Context, card domain.Card) error

	FindProfileByUserID(ctx context.Context, userID string) (*domain.Profile, error)
	InsertProfile(ctx context.Context, p domain.Profile) error
	UpdateProfile(ctx context.Context, p domain.Profile) error

	InvalidateDueCount()
}

// RemoteStore is the slice of the remote client the reconciler needs.
type RemoteStore interface {
	CollectionsForUser(ctx context.Context, userID string) ([]remote.Collection, error)
	UpsertCollections(ctx context.Context, cols []remote.Collection) error

	CardsForUser(ctx context.Context, userID string) ([]remote.Card, error)
	UpsertCards(ctx context.Context, cards []remote.Card) error

	ProfileForUser(ctx context.Context, userID string) (*remote.Profile, error)
	UpsertProfile(ctx context.Context, p remote.Profile) error
}

// Reconciler runs the per-entity sync passes for one user.
type Reconciler struct {
	local  LocalStore
	remote RemoteStore
	userID string

	// Clock and Logger default to the system clock and slog.Default.
	Clock  domain.Clock
	Logger *slog.Logger
}

// New returns a Reconciler for the given user.
func New(local LocalStore, rem RemoteStore, userID string) *Reconciler {
	return &Reconciler{
		local:  local,
		remote: rem,
		userID: userID,
		Clock:  domain.SystemClock,
		Logger: slog.Default(),
	}
}

// remoteUpdatedAt normalizes a remote updated_at string to epoch
// milliseconds. An unparseable timestamp normalizes to 0 so the local side
// wins; bad remote data must not abort a whole pass.
func (r *Reconciler) remoteUpdatedAt(entity, id, iso string) int64 {
	ms, err := remote.ISOToMillis(iso)
	if err != nil {
		r.Logger.Warn("unparseable remote timestamp, treating record as stale",
			"entity", entity, "id", id, "error", err)
		return 0
	}
	return ms
}

// CollectionsToRemote pushes every local collection that is strictly newer
// than (or missing from) its remote counterpart. The local store is never
// written during a to-remote pass.
func (r *Reconciler) CollectionsToRemote(ctx context.Context) error {
	locals, err := r.local.CollectionsForUser(ctx, r.userID)
	if err != nil {
		return fmt.Errorf("collections to remote: %w", err)
	}
	remotes, err := r.remote.CollectionsForUser(ctx, r.userID)
	if err != nil {
		return fmt.Errorf("collections to remote: %w", err)
	}

	remoteUpdated := make(map[string]int64, len(remotes))
	for _, rc := range remotes {
		remoteUpdated[rc.ID] = r.remoteUpdatedAt("collection", rc.ID, rc.UpdatedAt)
	}

	var winners []remote.Collection
	for _, lc := range locals {
		remoteTS, exists := remoteUpdated[lc.ID]
		if exists && lc.UpdatedAt <= remoteTS {
			continue
		}
		winners = append(winners, remote.EncodeCollection(lc))
	}
	if len(winners) == 0 {
		return nil
	}
	if err := r.remote.UpsertCollections(ctx, winners); err != nil {
		return fmt.Errorf("collections to remote: %w", err)
	}
	r.Logger.Info("pushed collections", "count", len(winners))
	return nil
}

// CollectionsFromRemote pulls every remote collection that is strictly
// newer than (or missing from) its local counterpart. Local rows are never
// deleted; a remote soft-delete arrives as a plain field update.
func (r *Reconciler) CollectionsFromRemote(ctx context.Context) error {
	remotes, err := r.remote.CollectionsForUser(ctx, r.userID)
	if err != nil {
		return fmt.Errorf("collections from remote: %w", err)
	}

	var applied int
	for _, rc := range remotes {
		col, err := remote.DecodeCollection(rc)
		if err != nil {
			r.Logger.Warn("skipping undecodable remote collection", "id", rc.ID, "error", err)
			continue
		}
		existing, err := r.local.FindCollectionByID(ctx, col.ID)
		if err != nil {
			return fmt.Errorf("collections from remote: %w", err)
		}
		switch {
		case existing == nil:
			if err := r.local.InsertCollection(ctx, col); err != nil {
				return fmt.Errorf("collections from remote: %w", err)
			}
			applied++
		case col.UpdatedAt > existing.UpdatedAt:
			if err := r.local.UpdateCollection(ctx, col); err != nil {
				return fmt.Errorf("collections from remote: %w", err)
			}
			applied++
		}
	}
	if applied > 0 {
		r.Logger.Info("pulled collections", "count", applied)
	}
	return nil
}

// CardsToRemote pushes every local card that is strictly newer than (or
// missing from) its remote counterpart.
func (r *Reconciler) CardsToRemote(ctx context.Context) error {
	locals, err := r.local.CardsForUser(ctx, r.userID)
	if err != nil {
		return fmt.Errorf("cards to remote: %w", err)
	}
	remotes, err := r.remote.CardsForUser(ctx, r.userID)
	if err != nil {
		return fmt.Errorf("cards to remote: %w", err)
	}

	remoteUpdated := make(map[string]int64, len(remotes))
	for _, rc := range remotes {
		remoteUpdated[rc.ID] = r.remoteUpdatedAt("card", rc.ID, rc.UpdatedAt)
	}

	var winners []remote.Card
	for _, lc := range locals {
		remoteTS, exists := remoteUpdated[lc.ID]
		if exists && lc.UpdatedAt <= remoteTS {
			continue
		}
		winners = append(winners, remote.EncodeCard(lc))
	}
	if len(winners) == 0 {
		return nil
	}
	if err := r.remote.UpsertCards(ctx, winners); err != nil {
		return fmt.Errorf("cards to remote: %w", err)
	}
	r.Logger.Info("pushed cards", "count", len(winners))
	return nil
}

// CardsFromRemote pulls every remote card that is strictly newer than (or
// missing from) its local counterpart. Collections must already have been
// pulled: a new card references a collection_id that has to exist locally
// to be displayable.
func (r *Reconciler) CardsFromRemote(ctx context.Context) error {
	remotes, err := r.remote.CardsForUser(ctx, r.userID)
	if err != nil {
		return fmt.Errorf("cards from remote: %w", err)
	}

	var applied int
	for _, rc := range remotes {
		card, err := remote.DecodeCard(rc)
		if err != nil {
			r.Logger.Warn("skipping undecodable remote card", "id", rc.ID, "error", err)
			continue
		}
		existing, err := r.local.FindCardByID(ctx, card.ID)
		if err != nil {
			return fmt.Errorf("cards from remote: %w", err)
		}
		switch {
		case existing == nil:
			if err := r.local.InsertCard(ctx, card); err != nil {
				return fmt.Errorf("cards from remote: %w", err)
			}
			applied++
		case card.UpdatedAt > existing.UpdatedAt:
			if err := r.local.UpdateCard(ctx, card); err != nil {
				return fmt.Errorf("cards from remote: %w", err)
			}
			applied++
		}
	}
	if applied > 0 {
		r.Logger.Info("pulled cards", "count", applied)
	}
	return nil
}

// ProfileToRemote pushes the local profile if it is strictly newer than
// the remote one, or if the remote has none.
func (r *Reconciler) ProfileToRemote(ctx context.Context) error {
	local, err := r.local.FindProfileByUserID(ctx, r.userID)
	if err != nil {
		return fmt.Errorf("profile to remote: %w", err)
	}
	if local == nil {
		return nil
	}
	rem, err := r.remote.ProfileForUser(ctx, r.userID)
	if err != nil {
		return fmt.Errorf("profile to remote: %w", err)
	}
	if rem != nil {
		remoteTS := r.remoteUpdatedAt("profile", rem.UserID, rem.UpdatedAt)
		if local.UpdatedAt <= remoteTS {
			return nil
		}
	}
	if err := r.remote.UpsertProfile(ctx, remote.EncodeProfile(*local)); err != nil {
		return fmt.Errorf("profile to remote: %w", err)
	}
	r.Logger.Info("pushed profile")
	return nil
}

// ProfileFromRemote pulls the remote profile if it is strictly newer than
// the local one, or if there is no local one yet.
func (r *Reconciler) ProfileFromRemote(ctx context.Context) error {
	rem, err := r.remote.ProfileForUser(ctx, r.userID)
	if err != nil {
		return fmt.Errorf("profile from remote: %w", err)
	}
	if rem == nil {
		return nil
	}
	profile, err := remote.DecodeProfile(*rem)
	if err != nil {
		r.Logger.Warn("skipping undecodable remote profile", "user_id", rem.UserID, "error", err)
		return nil
	}
	existing, err := r.local.FindProfileByUserID(ctx, r.userID)
	if err != nil {
		return fmt.Errorf("profile from remote: %w", err)
	}
	switch {
	case existing == nil:
		if err := r.local.InsertProfile(ctx, profile); err != nil {
			return fmt.Errorf("profile from remote: %w", err)
		}
	case profile.UpdatedAt > existing.UpdatedAt:
		if err := r.local.UpdateProfile(ctx, profile); err != nil {
			return fmt.Errorf("profile from remote: %w", err)
		}
	default:
		return nil
	}
	r.Logger.Info("pulled profile")
	return nil
}
