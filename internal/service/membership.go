// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
// Code is organised into three layers:
//
//	Caller (HTTP / CLI)       → parses input, renders output
//	Service (Business layer)  → enforces the membership rules
//	Repository (Data layer)   → reads/writes the database
//
// MembershipService is the ONLY code allowed to mutate the user↔group
// relation. Callers hand it plain ids and role values; it resolves the
// entities through the repository interfaces, applies the change on BOTH
// sides of the relation, persists the touched aggregates, and hands back a
// typed error on failure.
//
// THE INVARIANT IT GUARDS:
// For every user u: u holds RoleTeacher ⟺ u is a member of the Teaching
// Staff group. The rule holds at the END of every successful operation —
// mid-operation the two sides are allowed to disagree briefly, which is why
// nothing else may reach around this service and write memberships itself.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/sakif/roster/internal/apperror"
	"github.com/sakif/roster/internal/model"
	"github.com/sakif/roster/internal/repository"
)

// MembershipService keeps a user's role set and a group's member set
// mutually consistent, including the special semantics of the two
// reserved groups.
//
// DEPENDENCIES (injected via NewMembershipService):
//   - users  repository.UserRepository  → resolve/persist users
//   - groups repository.GroupRepository → resolve/persist groups
//   - logger *slog.Logger               → structured logging
type MembershipService struct {
	users  repository.UserRepository
	groups repository.GroupRepository
	logger *slog.Logger

	// Per-entity locks. Two concurrent mutations of the same group (or the
	// same user) would otherwise both read the aggregate before either
	// writes it back, silently dropping one change. Group ids and user ids
	// are locked separately: mutations on different groups still run in
	// parallel, but a user shared between them is serialised too, since
	// persisting a user rewrites that user's whole membership row set.
	//
	// Lock ordering: group before users, user ids ascending. No code path
	// takes a group lock while holding a user lock, so this cannot deadlock.
	//
	// The maps only ever grow, bounded by the number of distinct ids
	// touched — fine for this system's scale.
	mu         sync.Mutex
	groupLocks map[int64]*sync.Mutex
	userLocks  map[int64]*sync.Mutex
}

// NewMembershipService creates a MembershipService with all required
// dependencies. Call this when wiring the dependency graph in main.
func NewMembershipService(
	users repository.UserRepository,
	groups repository.GroupRepository,
	logger *slog.Logger,
) *MembershipService {
	return &MembershipService{
		users:      users,
		groups:     groups,
		logger:     logger,
		groupLocks: make(map[int64]*sync.Mutex),
		userLocks:  make(map[int64]*sync.Mutex),
	}
}

func keyedLock(mu *sync.Mutex, locks map[int64]*sync.Mutex, id int64) *sync.Mutex {
	mu.Lock()
	defer mu.Unlock()

	l, ok := locks[id]
	if !ok {
		l = &sync.Mutex{}
		locks[id] = l
	}
	return l
}

// groupLock returns the mutex serialising mutations of the given group id.
func (s *MembershipService) groupLock(groupID int64) *sync.Mutex {
	return keyedLock(&s.mu, s.groupLocks, groupID)
}

// lockUsers acquires the locks for every id in userIDs (deduplicated,
// ascending) and returns the function releasing them. Must be called with
// no user lock already held; holding the group lock is fine.
func (s *MembershipService) lockUsers(userIDs []int64) func() {
	ids := make([]int64, 0, len(userIDs))
	seen := make(map[int64]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	slices.Sort(ids)

	held := make([]*sync.Mutex, 0, len(ids))
	for _, id := range ids {
		l := keyedLock(&s.mu, s.userLocks, id)
		l.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// AddRoleToUser grants role to the user with the given id.
//
// Idempotent: granting an already-held role is a no-op, not an error.
// If the role maps to a reserved group (currently only RoleTeacher →
// Teaching Staff), the user is also added to that group's member set and
// both aggregates are persisted — user first, then group.
//
// Returns apperror.ErrNotFound if no such user exists. A missing RESERVED
// group, by contrast, is a broken deployment (the migration seeds it), so
// that surfaces as a plain configuration error, never as NotFound.
func (s *MembershipService) AddRoleToUser(ctx context.Context, userID int64, role model.Role) error {
	if role == model.RoleUnrecognized {
		return apperror.ValidationFailed("role", "cannot grant an unrecognized role")
	}

	gid, reserved := model.ReservedGroupID(role)
	if reserved {
		l := s.groupLock(gid)
		l.Lock()
		defer l.Unlock()
	}
	defer s.lockUsers([]int64{userID})()

	// Nothing is mutated before this check — a missing user leaves no
	// partial state behind.
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	user.Roles.Add(role)

	if !reserved {
		if err := s.users.Save(ctx, user); err != nil {
			return fmt.Errorf("saving user %d: %w", userID, err)
		}
		s.logger.Info("role granted",
			slog.Int64("userID", userID),
			slog.String("role", string(role)),
		)
		return nil
	}

	group, err := s.groups.FindByID(ctx, gid)
	if err != nil {
		return fmt.Errorf("reserved group %d is missing from the store: %v", gid, err)
	}

	// Both sides of the relation, in memory, before any persistence.
	user.Groups.Add(gid)
	group.Members.Add(userID)

	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("saving user %d: %w", userID, err)
	}
	if err := s.groups.Save(ctx, group); err != nil {
		return fmt.Errorf("saving group %d: %w", gid, err)
	}

	s.logger.Info("role granted",
		slog.Int64("userID", userID),
		slog.String("role", string(role)),
		slog.Int64("reservedGroupID", gid),
	)
	return nil
}

// RemoveRoleFromUser revokes role from the user with the given id.
//
// Idempotent: revoking an unheld role is a no-op. If the role maps to a
// reserved group the user is also removed from that group's member set.
//
// A user's role set MAY become empty through this operation. The engine
// deliberately does not forbid that — any "must have at least one role"
// policy belongs to the caller. TestRemoveRole_LastRole pins this down.
func (s *MembershipService) RemoveRoleFromUser(ctx context.Context, userID int64, role model.Role) error {
	gid, reserved := model.ReservedGroupID(role)
	if reserved {
		l := s.groupLock(gid)
		l.Lock()
		defer l.Unlock()
	}
	defer s.lockUsers([]int64{userID})()

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	user.Roles.Remove(role)

	if !reserved {
		if err := s.users.Save(ctx, user); err != nil {
			return fmt.Errorf("saving user %d: %w", userID, err)
		}
		s.logger.Info("role revoked",
			slog.Int64("userID", userID),
			slog.String("role", string(role)),
		)
		return nil
	}

	group, err := s.groups.FindByID(ctx, gid)
	if err != nil {
		return fmt.Errorf("reserved group %d is missing from the store: %v", gid, err)
	}

	user.Groups.Remove(gid)
	group.Members.Remove(userID)

	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("saving user %d: %w", userID, err)
	}
	if err := s.groups.Save(ctx, group); err != nil {
		return fmt.Errorf("saving group %d: %w", gid, err)
	}

	s.logger.Info("role revoked",
		slog.Int64("userID", userID),
		slog.String("role", string(role)),
		slog.Int64("reservedGroupID", gid),
	)
	return nil
}

// AddUsersToGroup adds every resolvable user in userIDs to the group.
//
// BEST-EFFORT OVER THE ID SET:
// A missing GROUP is a hard failure (apperror.ErrNotFound, before anything
// is mutated). Ids inside userIDs that resolve to no user are silently
// skipped — the valid subset is always fully applied, and there is no
// rollback on partial application.
//
// Adding users to the Teaching Staff group is also how a user gains
// RoleTeacher: the invariant is maintained from either direction of
// mutation. The Members Without a Group pseudo-group is computed, not
// managed, so direct mutation of it is rejected.
func (s *MembershipService) AddUsersToGroup(ctx context.Context, groupID int64, userIDs []int64) error {
	return s.mutateMembers(ctx, groupID, userIDs, true)
}

// RemoveUsersFromGroup is the mirror of AddUsersToGroup: every resolvable
// user is removed from the group, unresolvable ids are skipped, and leaving
// the Teaching Staff group also revokes RoleTeacher.
func (s *MembershipService) RemoveUsersFromGroup(ctx context.Context, groupID int64, userIDs []int64) error {
	return s.mutateMembers(ctx, groupID, userIDs, false)
}

// mutateMembers applies a bulk membership change in one direction.
// Both public wrappers share it because the two operations are exact
// mirrors — only the set operation and the Teaching Staff side effect flip.
func (s *MembershipService) mutateMembers(ctx context.Context, groupID int64, userIDs []int64, add bool) error {
	if groupID == model.MembersWithoutAGroupID {
		return apperror.Forbidden("the Members Without a Group set is derived and cannot be edited directly")
	}

	l := s.groupLock(groupID)
	l.Lock()
	defer l.Unlock()
	defer s.lockUsers(userIDs)()

	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		return err
	}

	users, err := s.users.FindAllByID(ctx, userIDs)
	if err != nil {
		return fmt.Errorf("resolving users for group %d: %w", groupID, err)
	}

	for _, user := range users {
		if add {
			user.Groups.Add(groupID)
			group.Members.Add(user.ID)
			if groupID == model.TeachingStaffGroupID {
				user.Roles.Add(model.RoleTeacher)
			}
		} else {
			user.Groups.Remove(groupID)
			group.Members.Remove(user.ID)
			if groupID == model.TeachingStaffGroupID {
				user.Roles.Remove(model.RoleTeacher)
			}
		}
	}

	// Persist users first, the group last. If a save fails partway the
	// already-saved users stay applied (documented best-effort semantics);
	// the group row is only written once every member change landed.
	for _, user := range users {
		if err := s.users.Save(ctx, user); err != nil {
			return fmt.Errorf("saving user %d: %w", user.ID, err)
		}
	}
	if err := s.groups.Save(ctx, group); err != nil {
		return fmt.Errorf("saving group %d: %w", groupID, err)
	}

	verb := "added to"
	if !add {
		verb = "removed from"
	}
	s.logger.Info("group membership changed",
		slog.Int64("groupID", groupID),
		slog.String("change", verb),
		slog.Int("requested", len(userIDs)),
		slog.Int("applied", len(users)),
	)
	return nil
}

// DeleteGroup deletes a non-reserved group.
//
// The reserved check comes FIRST: deleting group 0 or 1 is Forbidden no
// matter what state the store is in, even if the row were somehow missing.
// Deleting a group never deletes its member users — each member is loaded,
// detached from the group, and re-persisted before the group record goes.
func (s *MembershipService) DeleteGroup(ctx context.Context, groupID int64) error {
	if model.IsReservedGroup(groupID) {
		return apperror.Forbidden(fmt.Sprintf("group %d is reserved and cannot be deleted", groupID))
	}

	l := s.groupLock(groupID)
	l.Lock()
	defer l.Unlock()

	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		return err
	}

	defer s.lockUsers(group.Members.Slice())()

	members, err := s.users.FindAllByID(ctx, group.Members.Slice())
	if err != nil {
		return fmt.Errorf("resolving members of group %d: %w", groupID, err)
	}

	for _, user := range members {
		user.Groups.Remove(groupID)
		if err := s.users.Save(ctx, user); err != nil {
			return fmt.Errorf("detaching user %d from group %d: %w", user.ID, groupID, err)
		}
	}

	if err := s.groups.Delete(ctx, group); err != nil {
		return fmt.Errorf("deleting group %d: %w", groupID, err)
	}

	s.logger.Info("group deleted",
		slog.Int64("groupID", groupID),
		slog.Int("detachedMembers", len(members)),
	)
	return nil
}
