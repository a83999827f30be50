package model

import (
	"encoding/json"
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"STUDENT", RoleStudent},
		{"TEACHER", RoleTeacher},
		{"COURSE_ADMINISTRATOR", RoleCourseAdministrator},
		{"UNRECOGNIZED", RoleUnrecognized},
		{"teacher", RoleUnrecognized}, // case-sensitive on purpose
		{"", RoleUnrecognized},
		{"SITH_LORD", RoleUnrecognized},
	}

	for _, tt := range tests {
		if got := ParseRole(tt.in); got != tt.want {
			t.Errorf("ParseRole(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestReservedGroupID(t *testing.T) {
	// Only TEACHER maps to a reserved group today; everything else must
	// report no mapping rather than a zero id (0 is a real group id!).
	gid, ok := ReservedGroupID(RoleTeacher)
	if !ok || gid != TeachingStaffGroupID {
		t.Errorf("ReservedGroupID(TEACHER) = (%d, %v), want (%d, true)", gid, ok, TeachingStaffGroupID)
	}

	for _, r := range []Role{RoleStudent, RoleCourseAdministrator, RoleUnrecognized} {
		if _, ok := ReservedGroupID(r); ok {
			t.Errorf("ReservedGroupID(%v) reported a mapping, want none", r)
		}
	}
}

func TestIsReservedGroup(t *testing.T) {
	if !IsReservedGroup(TeachingStaffGroupID) || !IsReservedGroup(MembersWithoutAGroupID) {
		t.Error("reserved ids must report reserved")
	}
	if IsReservedGroup(2) || IsReservedGroup(-1) {
		t.Error("ordinary ids must not report reserved")
	}
}

func TestRoleSet(t *testing.T) {
	s := NewRoleSet(RoleStudent)

	s.Add(RoleTeacher)
	s.Add(RoleTeacher) // idempotent
	if !s.Has(RoleTeacher) || len(s) != 2 {
		t.Errorf("set = %v, want {STUDENT, TEACHER}", s)
	}

	s.Remove(RoleTeacher)
	s.Remove(RoleTeacher) // idempotent
	if s.Has(RoleTeacher) || len(s) != 1 {
		t.Errorf("set = %v, want {STUDENT}", s)
	}

	c := s.Clone()
	c.Add(RoleCourseAdministrator)
	if s.Has(RoleCourseAdministrator) {
		t.Error("mutating a clone leaked into the original")
	}
}

func TestRoleSetJSON(t *testing.T) {
	s := NewRoleSet(RoleTeacher, RoleStudent)

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	// Sorted array, not a map of empty objects.
	if string(data) != `["STUDENT","TEACHER"]` {
		t.Errorf("Marshal() = %s, want sorted array", data)
	}

	var back RoleSet
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !back.Has(RoleStudent) || !back.Has(RoleTeacher) || len(back) != 2 {
		t.Errorf("round trip = %v, want {STUDENT, TEACHER}", back)
	}
}

func TestIDSetJSON(t *testing.T) {
	s := make(IDSet)
	s.Add(10)
	s.Add(3)

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `[3,10]` {
		t.Errorf("Marshal() = %s, want [3,10]", data)
	}

	var back IDSet
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !back.Has(3) || !back.Has(10) || len(back) != 2 {
		t.Errorf("round trip = %v, want {3, 10}", back)
	}
}
