// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import (
	"encoding/json"
	"slices"
	"time"
)

// User represents a registered member of the platform.
//
// The ID is an integer assigned by the store on creation (AUTOINCREMENT),
// not generated in application code — callers pass users around by this id.
//
// WHY Secret `json:"-"`?
// The credential secret is opaque to this core: we never inspect it, and it
// must never leak outward through serialization. The `json:"-"` tag makes
// encoding/json skip the field entirely.
//
// MEMBERSHIP:
// Groups holds the ids of the groups this user belongs to. It is one side
// of a bidirectional relation — the other side is Group.Members — and the
// membership service is the only code allowed to mutate either side. In
// storage both sides collapse into a single group_members join table, so
// there is exactly one source of truth to derive them from.
type User struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Secret     string    `json:"-"`
	FirstName  string    `json:"firstName"`
	MiddleName string    `json:"middleName,omitempty"`
	LastName   string    `json:"lastName"`
	Nickname   string    `json:"nickname,omitempty"`
	Pronouns   string    `json:"pronouns,omitempty"`
	Bio        string    `json:"bio,omitempty"`
	Email      string    `json:"email"`
	Roles      RoleSet   `json:"roles"`
	Groups     IDSet     `json:"groups"`
	CreatedAt  time.Time `json:"createdAt"`
}

// HasRole reports whether the user currently holds role.
func (u *User) HasRole(role Role) bool {
	return u.Roles.Has(role)
}

// InGroup reports whether the user is a member of the group with the given id.
func (u *User) InGroup(groupID int64) bool {
	return u.Groups.Has(groupID)
}

// IDSet is a set of entity ids, used for both a user's group ids and a
// group's member ids. A nil IDSet behaves as empty for reads; use
// make(IDSet) before writing.
type IDSet map[int64]struct{}

// Has reports whether id is in the set.
func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id; inserting an existing id is a no-op.
func (s IDSet) Add(id int64) { s[id] = struct{}{} }

// Remove deletes id; deleting an absent id is a no-op.
func (s IDSet) Remove(id int64) { delete(s, id) }

// Slice returns the ids in unspecified order.
func (s IDSet) Slice() []int64 {
	out := make([]int64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// MarshalJSON encodes the set as a sorted JSON array of ids.
func (s IDSet) MarshalJSON() ([]byte, error) {
	out := s.Slice()
	slices.Sort(out)
	return json.Marshal(out)
}

// UnmarshalJSON decodes a JSON array of ids.
func (s *IDSet) UnmarshalJSON(data []byte) error {
	var raw []int64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	set := make(IDSet, len(raw))
	for _, id := range raw {
		set.Add(id)
	}
	*s = set
	return nil
}
