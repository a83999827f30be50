package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/roster/internal/apperror"
	"github.com/sakif/roster/internal/model"
)

// =========================================================================
// MIGRATION / RESERVED GROUP TESTS
// =========================================================================

func TestMigrate_SeedsReservedGroups(t *testing.T) {
	db := newTestDB(t)
	s := db.Groups()

	staff, err := s.FindByID(context.Background(), model.TeachingStaffGroupID)
	if err != nil {
		t.Fatalf("teaching staff group missing after migration: %v", err)
	}
	if staff.ShortName != "Teaching Staff" {
		t.Errorf("ShortName = %q, want %q", staff.ShortName, "Teaching Staff")
	}

	if _, err := s.FindByID(context.Background(), model.MembersWithoutAGroupID); err != nil {
		t.Fatalf("members-without-a-group missing after migration: %v", err)
	}
}

// TestMigrate_AutoincrementSkipsReservedIDs guards the id-0 seeding trick:
// ordinary groups created after the migration must never collide with the
// reserved ids.
func TestMigrate_AutoincrementSkipsReservedIDs(t *testing.T) {
	db := newTestDB(t)
	s := db.Groups()

	g := &model.Group{ShortName: "Chess Club"}
	if err := s.Create(context.Background(), g); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if model.IsReservedGroup(g.ID) {
		t.Errorf("new group got reserved id %d", g.ID)
	}
}

// =========================================================================
// CRUD TESTS
// =========================================================================

func TestGroupCreateAndFind(t *testing.T) {
	db := newTestDB(t)
	s := db.Groups()

	g := &model.Group{ShortName: "Robotics", LongName: "Robotics Club"}
	if err := s.Create(context.Background(), g); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if g.ID == 0 {
		t.Error("Create() did not set group.ID")
	}

	found, err := s.FindByID(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if found.LongName != "Robotics Club" {
		t.Errorf("LongName = %q, want %q", found.LongName, "Robotics Club")
	}
	if len(found.Members) != 0 {
		t.Errorf("Members = %v, want empty", found.Members)
	}
}

func TestGroupFindByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Groups().FindByID(context.Background(), 42)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if got := err.Error(); got != "There is no group with id 42" {
		t.Errorf("message = %q, want the legacy wording", got)
	}
}

func TestGroupSave_Members(t *testing.T) {
	db := newTestDB(t)
	gs := db.Groups()
	us := db.Users()

	user := createTestUser(t, us, "ada", model.RoleStudent)
	g := &model.Group{ShortName: "Robotics"}
	if err := gs.Create(context.Background(), g); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	g.Members.Add(user.ID)
	if err := gs.Save(context.Background(), g); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Visible from the group side...
	found, _ := gs.FindByID(context.Background(), g.ID)
	if !found.HasMember(user.ID) {
		t.Errorf("Members = %v, want {%d}", found.Members, user.ID)
	}
	// ...and from the user side, through the same join table.
	u, _ := us.FindByID(context.Background(), user.ID)
	if !u.InGroup(g.ID) {
		t.Errorf("user groups = %v, want {%d}", u.Groups, g.ID)
	}

	// Save with the member removed rewrites the join rows.
	found.Members.Remove(user.ID)
	if err := gs.Save(context.Background(), found); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	again, _ := gs.FindByID(context.Background(), g.ID)
	if len(again.Members) != 0 {
		t.Errorf("Members = %v, want empty after removal", again.Members)
	}
}

func TestGroupList(t *testing.T) {
	db := newTestDB(t)
	gs := db.Groups()

	g := &model.Group{ShortName: "Robotics"}
	if err := gs.Create(context.Background(), g); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	user := createTestUser(t, db.Users(), "ada", model.RoleStudent)
	g.Members.Add(user.ID)
	if err := gs.Save(context.Background(), g); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	groups, err := gs.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	// Two reserved groups from the migration plus the one created here.
	if len(groups) != 3 {
		t.Fatalf("len = %d, want 3", len(groups))
	}
	// Ordered by id: reserved groups first.
	if groups[0].ID != model.TeachingStaffGroupID || groups[1].ID != model.MembersWithoutAGroupID {
		t.Errorf("order = [%d %d %d], want reserved groups first",
			groups[0].ID, groups[1].ID, groups[2].ID)
	}
	if !groups[2].HasMember(user.ID) {
		t.Errorf("listed group members = %v, want {%d}", groups[2].Members, user.ID)
	}
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestGroupDelete_KeepsUsers(t *testing.T) {
	db := newTestDB(t)
	gs := db.Groups()
	us := db.Users()

	user := createTestUser(t, us, "ada", model.RoleStudent)
	g := &model.Group{ShortName: "Robotics"}
	if err := gs.Create(context.Background(), g); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	g.Members.Add(user.ID)
	if err := gs.Save(context.Background(), g); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := gs.Delete(context.Background(), g); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := gs.FindByID(context.Background(), g.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("group should be gone, got %v", err)
	}
	// Deleting a group removes membership rows (CASCADE), never the user.
	u, err := us.FindByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("user must survive group deletion: %v", err)
	}
	if u.InGroup(g.ID) {
		t.Errorf("user groups = %v, deleted group should be gone", u.Groups)
	}
}

func TestGroupDelete_NotFound(t *testing.T) {
	db := newTestDB(t)

	ghost := &model.Group{ID: 404, Members: make(model.IDSet)}
	err := db.Groups().Delete(context.Background(), ghost)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}
