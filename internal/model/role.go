package model

import (
	"encoding/json"
	"sort"
)

// Role is an enumerated permission level a user can hold.
//
// WHY A STRING TYPE (not iota)?
// Roles cross process boundaries: they are stored in the database, carried
// inside token claims, and printed in admin tooling. A string survives all
// of those without a translation table, and an unknown value degrades to
// RoleUnrecognized instead of silently aliasing another role the way a
// stale integer would.
type Role string

const (
	RoleStudent             Role = "STUDENT"
	RoleTeacher             Role = "TEACHER"
	RoleCourseAdministrator Role = "COURSE_ADMINISTRATOR"

	// RoleUnrecognized is the sentinel for a role value this build does not
	// know about (e.g. a claim written by a newer deployment). It is a real
	// member of the enum so callers can hold on to it and round-trip it.
	RoleUnrecognized Role = "UNRECOGNIZED"
)

// ParseRole maps a raw string onto the Role enum.
// Unknown values come back as RoleUnrecognized, never an error — claim
// parsing and DB scans must stay forward-compatible with roles added later.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleStudent, RoleTeacher, RoleCourseAdministrator:
		return Role(s)
	default:
		return RoleUnrecognized
	}
}

// reservedGroupByRole is the static table stating which roles correspond to
// a reserved group. Holding the role and being a member of the mapped group
// are kept equivalent by the membership service.
//
// New reserved mappings are additions to this table, not new code paths.
var reservedGroupByRole = map[Role]int64{
	RoleTeacher: TeachingStaffGroupID,
}

// ReservedGroupID returns the reserved group tied to role, if any.
// Most roles have no mapping and return ok=false.
func ReservedGroupID(role Role) (int64, bool) {
	id, ok := reservedGroupByRole[role]
	return id, ok
}

// RoleSet is a set of roles. The zero value is not usable — construct with
// NewRoleSet or make(RoleSet).
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Has reports whether role is in the set.
func (s RoleSet) Has(role Role) bool {
	_, ok := s[role]
	return ok
}

// Add inserts role into the set. Adding a role already present is a no-op.
func (s RoleSet) Add(role Role) { s[role] = struct{}{} }

// Remove deletes role from the set. Removing an absent role is a no-op.
func (s RoleSet) Remove(role Role) { delete(s, role) }

// Clone returns an independent copy of the set.
func (s RoleSet) Clone() RoleSet {
	c := make(RoleSet, len(s))
	for r := range s {
		c[r] = struct{}{}
	}
	return c
}

// MarshalJSON encodes the set as a sorted JSON array — ["STUDENT","TEACHER"]
// reads a lot better in API payloads than a map of empty objects, and the
// sorting keeps output deterministic.
func (s RoleSet) MarshalJSON() ([]byte, error) {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return json.Marshal(out)
}

// UnmarshalJSON decodes a JSON array of role strings. Unknown values map to
// RoleUnrecognized, mirroring ParseRole.
func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	set := make(RoleSet, len(raw))
	for _, r := range raw {
		set.Add(ParseRole(r))
	}
	*s = set
	return nil
}
