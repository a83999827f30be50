package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/roster/internal/apperror"
	"github.com/sakif/roster/internal/model"
	"github.com/sakif/roster/internal/repository"
)

// compile-time check that *GroupStore implements repository.GroupRepository
var _ repository.GroupRepository = (*GroupStore)(nil)

// GroupStore persists groups and their member sets.
type GroupStore struct {
	db *DB
}

// Create inserts a new group and fills in the store-assigned ID.
// Reserved groups are seeded by the migration, never created through here.
func (s *GroupStore) Create(ctx context.Context, group *model.Group) error {
	res, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO groups (short_name, long_name) VALUES (?, ?)`,
		group.ShortName, group.LongName,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting group %q: %w", group.ShortName, err)
	}

	group.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new group id: %w", err)
	}
	if group.Members == nil {
		group.Members = make(model.IDSet)
	}
	return nil
}

// FindByID retrieves a group by id with its member set populated from the
// join table. Returns apperror.ErrNotFound if no group exists with that id.
func (s *GroupStore) FindByID(ctx context.Context, id int64) (*model.Group, error) {
	var g model.Group

	err := s.db.conn.QueryRowContext(ctx,
		`SELECT id, short_name, long_name FROM groups WHERE id = ?`, id,
	).Scan(&g.ID, &g.ShortName, &g.LongName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.GroupNotFound(id)
		}
		return nil, fmt.Errorf("sqlite: getting group %d: %w", id, err)
	}

	g.Members = make(model.IDSet)
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT user_id FROM group_members WHERE group_id = ?`, g.ID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading members of group %d: %w", g.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		g.Members.Add(uid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &g, nil
}

// List returns all groups ordered by id, member sets included.
//
// Member sets are loaded with a single query over the whole join table
// rather than one query per group — N+1 queries would hurt once the group
// list grows.
func (s *GroupStore) List(ctx context.Context) ([]*model.Group, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, short_name, long_name FROM groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing groups: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*model.Group)
	var groups []*model.Group
	for rows.Next() {
		g := &model.Group{Members: make(model.IDSet)}
		if err := rows.Scan(&g.ID, &g.ShortName, &g.LongName); err != nil {
			return nil, err
		}
		byID[g.ID] = g
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	mrows, err := s.db.conn.QueryContext(ctx,
		`SELECT group_id, user_id FROM group_members`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading memberships: %w", err)
	}
	defer mrows.Close()
	for mrows.Next() {
		var gid, uid int64
		if err := mrows.Scan(&gid, &uid); err != nil {
			return nil, err
		}
		if g, ok := byID[gid]; ok {
			g.Members.Add(uid)
		}
	}
	if err := mrows.Err(); err != nil {
		return nil, err
	}

	return groups, nil
}

// Save persists the group's attributes and member set.
// Membership rows for this group are rewritten inside one transaction —
// same delete-then-insert approach as UserStore.Save, from the other side
// of the relation.
func (s *GroupStore) Save(ctx context.Context, group *model.Group) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE groups SET short_name = ?, long_name = ? WHERE id = ?`,
		group.ShortName, group.LongName, group.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating group %d: %w", group.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.GroupNotFound(group.ID)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = ?`, group.ID); err != nil {
		return fmt.Errorf("sqlite: clearing members of group %d: %w", group.ID, err)
	}
	for uid := range group.Members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id) VALUES (?, ?)`,
			group.ID, uid); err != nil {
			return fmt.Errorf("sqlite: writing member %d of group %d: %w", uid, group.ID, err)
		}
	}

	return tx.Commit()
}

// Delete removes the group record. The ON DELETE CASCADE on group_members
// takes the membership rows with it; member users are untouched.
//
// The service layer guards reserved groups before calling this — the store
// itself deletes whatever it's told to.
func (s *GroupStore) Delete(ctx context.Context, group *model.Group) error {
	res, err := s.db.conn.ExecContext(ctx,
		`DELETE FROM groups WHERE id = ?`, group.ID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting group %d: %w", group.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.GroupNotFound(group.ID)
	}
	return nil
}
