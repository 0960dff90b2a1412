package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/apryandito/taskrelay/internal/store"
)

// ErrUnauthorized is an expected control-flow outcome, not a fault: the caller
// simply lacks the role for the action.
var ErrUnauthorized = errors.New("unauthorized")

// Guard decides whether a principal may perform owner-only or
// registered-user-only actions. The owner id is configured out of band and is
// implicitly registered; everyone else must have a row in the user store.
type Guard struct {
	ownerID int64
	store   store.Store
}

func NewGuard(ownerID int64, st store.Store) *Guard {
	return &Guard{ownerID: ownerID, store: st}
}

func (g *Guard) OwnerID() int64 {
	return g.ownerID
}

func (g *Guard) IsOwner(id int64) bool {
	return id == g.ownerID
}

func (g *Guard) IsRegistered(ctx context.Context, id int64) (bool, error) {
	if g.IsOwner(id) {
		return true, nil
	}
	_, err := g.store.GetUser(ctx, id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("check registration: %w", err)
}

func (g *Guard) RequireOwner(id int64) error {
	if !g.IsOwner(id) {
		return ErrUnauthorized
	}
	return nil
}

func (g *Guard) RequireRegistered(ctx context.Context, id int64) error {
	ok, err := g.IsRegistered(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}
