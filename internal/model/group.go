package model

// Reserved group ids. These two groups are created by the store migration
// and exist for the lifetime of the system — they can never be deleted.
const (
	// TeachingStaffGroupID is the group every TEACHER belongs to.
	// Membership in this group and holding RoleTeacher are kept equivalent.
	TeachingStaffGroupID int64 = 0

	// MembersWithoutAGroupID is a pseudo-group standing for "users in no
	// other group". It exists so UIs have something to render, but the
	// membership service refuses to delete it like any other reserved group.
	MembersWithoutAGroupID int64 = 1
)

// IsReservedGroup reports whether id is one of the system-created groups.
func IsReservedGroup(id int64) bool {
	return id == TeachingStaffGroupID || id == MembersWithoutAGroupID
}

// Group is a named collection of users.
//
// Members holds the ids of the users in the group — the mirror of
// User.Groups. See the User doc comment for how the two sides are kept
// consistent.
type Group struct {
	ID        int64  `json:"id"`
	ShortName string `json:"shortName"`
	LongName  string `json:"longName"`
	Members   IDSet  `json:"members"`
}

// HasMember reports whether the user with the given id is in the group.
func (g *Group) HasMember(userID int64) bool {
	return g.Members.Has(userID)
}
