package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/roster/internal/apperror"
	"github.com/sakif/roster/internal/model"
	"github.com/sakif/roster/internal/repository"
)

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

// UserStore persists users, their role set, and their group memberships.
type UserStore struct {
	db *DB
}

// Create inserts a new user and fills in the store-assigned ID and CreatedAt.
//
// The role set and group memberships present on the struct are written in
// the same transaction, so a freshly created user is never visible without
// its roles.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning tx: %w", err)
	}
	// Rollback is a no-op after Commit — safe to always defer.
	defer tx.Rollback()

	user.CreatedAt = time.Now()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (username, secret, first_name, middle_name, last_name,
		                    nickname, pronouns, bio, email, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Secret,
		user.FirstName,
		user.MiddleName,
		user.LastName,
		user.Nickname,
		user.Pronouns,
		user.Bio,
		user.Email,
		user.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	user.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}

	if err := replaceUserRoles(ctx, tx, user); err != nil {
		return err
	}
	if err := replaceUserMemberships(ctx, tx, user); err != nil {
		return err
	}

	return tx.Commit()
}

// FindByID retrieves a user by their id, including roles and group ids.
// Returns apperror.ErrNotFound if no user exists with that id.
func (s *UserStore) FindByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.scanUser(ctx, `WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.UserNotFound(id)
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return user, nil
}

// FindByUsername retrieves a user by their unique username.
func (s *UserStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := s.scanUser(ctx, `WHERE username = ?`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.UserNotFoundByUsername(username)
		}
		return nil, fmt.Errorf("sqlite: getting user %q: %w", username, err)
	}
	return user, nil
}

// FindAllByID returns the users whose ids appear in ids, silently skipping
// ids that match nothing. Bulk membership changes are best-effort over the
// caller-supplied id set, so a missing id is not an error here.
func (s *UserStore) FindAllByID(ctx context.Context, ids []int64) ([]*model.User, error) {
	users := make([]*model.User, 0, len(ids))
	seen := make(map[int64]bool, len(ids))

	for _, id := range ids {
		if seen[id] {
			continue // tolerate duplicate ids in the input
		}
		seen[id] = true

		user, err := s.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				continue
			}
			return nil, err
		}
		users = append(users, user)
	}

	return users, nil
}

// Save persists the user's attributes, role set, and group memberships.
//
// Roles and memberships are written with a delete-then-insert of the user's
// rows inside one transaction. That keeps the join table exactly in line
// with the struct the service hands us, whatever the previous state was.
func (s *UserStore) Save(ctx context.Context, user *model.User) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET username = ?, secret = ?, first_name = ?, middle_name = ?,
		                  last_name = ?, nickname = ?, pronouns = ?, bio = ?, email = ?
		 WHERE id = ?`,
		user.Username,
		user.Secret,
		user.FirstName,
		user.MiddleName,
		user.LastName,
		user.Nickname,
		user.Pronouns,
		user.Bio,
		user.Email,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %d: %w", user.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.UserNotFound(user.ID)
	}

	if err := replaceUserRoles(ctx, tx, user); err != nil {
		return err
	}
	if err := replaceUserMemberships(ctx, tx, user); err != nil {
		return err
	}

	return tx.Commit()
}

// scanUser loads one user row plus its roles and group ids.
// where must start with "WHERE" and reference exactly one row.
func (s *UserStore) scanUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User

	err := s.db.conn.QueryRowContext(ctx,
		`SELECT id, username, secret, first_name, middle_name, last_name,
		        nickname, pronouns, bio, email, created_at
		 FROM users `+where,
		arg,
	).Scan(
		&u.ID,
		&u.Username,
		&u.Secret,
		&u.FirstName,
		&u.MiddleName,
		&u.LastName,
		&u.Nickname,
		&u.Pronouns,
		&u.Bio,
		&u.Email,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Roles = make(model.RoleSet)
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT role FROM user_roles WHERE user_id = ?`, u.ID)
	if err != nil {
		return nil, fmt.Errorf("loading roles for user %d: %w", u.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		u.Roles.Add(model.ParseRole(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	u.Groups = make(model.IDSet)
	grows, err := s.db.conn.QueryContext(ctx,
		`SELECT group_id FROM group_members WHERE user_id = ?`, u.ID)
	if err != nil {
		return nil, fmt.Errorf("loading groups for user %d: %w", u.ID, err)
	}
	defer grows.Close()
	for grows.Next() {
		var gid int64
		if err := grows.Scan(&gid); err != nil {
			return nil, err
		}
		u.Groups.Add(gid)
	}
	if err := grows.Err(); err != nil {
		return nil, err
	}

	return &u, nil
}

// replaceUserRoles rewrites the user_roles rows for user inside tx.
func replaceUserRoles(ctx context.Context, tx *sql.Tx, user *model.User) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = ?`, user.ID); err != nil {
		return fmt.Errorf("sqlite: clearing roles for user %d: %w", user.ID, err)
	}
	for role := range user.Roles {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_roles (user_id, role) VALUES (?, ?)`,
			user.ID, string(role)); err != nil {
			return fmt.Errorf("sqlite: writing role %s for user %d: %w", role, user.ID, err)
		}
	}
	return nil
}

// replaceUserMemberships rewrites this user's group_members rows inside tx.
func replaceUserMemberships(ctx context.Context, tx *sql.Tx, user *model.User) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM group_members WHERE user_id = ?`, user.ID); err != nil {
		return fmt.Errorf("sqlite: clearing memberships for user %d: %w", user.ID, err)
	}
	for gid := range user.Groups {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id) VALUES (?, ?)`,
			gid, user.ID); err != nil {
			return fmt.Errorf("sqlite: writing membership of user %d in group %d: %w",
				user.ID, gid, err)
		}
	}
	return nil
}
