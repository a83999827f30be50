// Package repository declares the persistence interfaces the core depends on.
//
// The membership service is written against these interfaces, never against
// a concrete store. The sqlite subpackage is the reference implementation;
// tests inject in-memory mocks. Swapping the backing store is a change in
// main, not in the business logic.
package repository

import (
	"context"

	"github.com/sakif/roster/internal/model"
)

// UserRepository is the user half of the membership store.
//
// Find methods return apperror.ErrNotFound (wrapped) when no row matches.
// FindAllByID is the exception: it returns the subset of users that exist
// and never fails on missing ids — bulk membership operations are
// best-effort over the caller-supplied id set.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id int64) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindAllByID(ctx context.Context, ids []int64) ([]*model.User, error)
	// Save persists the user's attributes, role set, and group memberships.
	Save(ctx context.Context, user *model.User) error
}

// GroupRepository is the group half of the membership store.
type GroupRepository interface {
	Create(ctx context.Context, group *model.Group) error
	FindByID(ctx context.Context, id int64) (*model.Group, error)
	List(ctx context.Context) ([]*model.Group, error)
	// Save persists the group's attributes and member set.
	Save(ctx context.Context, group *model.Group) error
	// Delete removes the group record and its membership rows.
	// Member users themselves are never deleted.
	Delete(ctx context.Context, group *model.Group) error
}
