package tasks

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryUpsertUserKeepsStatusOnPassiveSighting(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	if _, err := s.UpsertUser(ctx, UserObservation{UserID: 1, ChatID: 100, FullName: "Alice", Status: MemberStatusAdministrator}); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	got, err := s.UpsertUser(ctx, UserObservation{UserID: 1, ChatID: 100, FullName: "Alice B."})
	if err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	if got.Status != MemberStatusAdministrator {
		t.Fatalf("Status = %q, want %q", got.Status, MemberStatusAdministrator)
	}
	if got.FullName != "Alice B." {
		t.Fatalf("FullName = %q, want refreshed name", got.FullName)
	}

	creator, err := s.UpsertUser(ctx, UserObservation{UserID: 2, ChatID: 100, Status: MemberStatusCreator})
	if err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	again, _ := s.UpsertUser(ctx, UserObservation{UserID: 2, ChatID: 100, Username: "bob"})
	if again.Status != MemberStatusCreator || creator.FirstSeen != again.FirstSeen {
		t.Fatalf("passive sighting changed creator: before %+v after %+v", creator, again)
	}
}

func TestInMemoryUpsertUserDefaultsToMember(t *testing.T) {
	s := NewInMemoryStore()
	got, err := s.UpsertUser(context.Background(), UserObservation{UserID: 3, ChatID: 100})
	if err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	if got.Status != MemberStatusMember {
		t.Fatalf("Status = %q, want %q", got.Status, MemberStatusMember)
	}
}

func TestInMemoryExplicitStatusChangeApplies(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	_, _ = s.UpsertUser(ctx, UserObservation{UserID: 1, ChatID: 100, Status: MemberStatusAdministrator})
	got, err := s.UpsertUser(ctx, UserObservation{UserID: 1, ChatID: 100, Status: MemberStatusLeft})
	if err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	if got.Status != MemberStatusLeft {
		t.Fatalf("Status = %q, want %q", got.Status, MemberStatusLeft)
	}
}

func TestInMemoryInsertTaskRequiresOwner(t *testing.T) {
	s := NewInMemoryStore()
	_, err := s.InsertTask(context.Background(), NewTask{UserID: 9, ChatID: 100, Description: "x"})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("InsertTask() error = %v, want ErrUserNotFound", err)
	}
}

func TestInMemoryListTasksFilters(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	_, _ = s.UpsertUser(ctx, UserObservation{UserID: 1, ChatID: 100, FullName: "Bob"})
	_, _ = s.UpsertUser(ctx, UserObservation{UserID: 1, ChatID: 200, FullName: "Bob"})

	overdue, _ := s.InsertTask(ctx, NewTask{UserID: 1, ChatID: 100, Start: now.Add(-48 * time.Hour), End: now.Add(-24 * time.Hour), Description: "late"})
	soon, _ := s.InsertTask(ctx, NewTask{UserID: 1, ChatID: 200, Start: now.Add(-time.Hour), End: now.Add(30 * time.Minute), Description: "soon"})
	later, _ := s.InsertTask(ctx, NewTask{UserID: 1, ChatID: 100, Start: now, End: now.Add(5 * time.Hour), Description: "later"})
	done, _ := s.InsertTask(ctx, NewTask{UserID: 1, ChatID: 100, Start: now.Add(-48 * time.Hour), End: now.Add(-time.Hour), Description: "done"})
	if _, err := s.UpdateTask(ctx, done.ID, TaskPatch{Completed: Bool(true)}); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}

	got, err := s.ListTasks(ctx, TaskFilter{Completed: Bool(false), DueBefore: now, WithUser: true})
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != overdue.ID {
		t.Fatalf("overdue = %+v, want only task %d", got, overdue.ID)
	}
	if got[0].User == nil || got[0].User.FullName != "Bob" {
		t.Fatalf("overdue task owner not attached: %+v", got[0].User)
	}

	got, err = s.ListTasks(ctx, TaskFilter{Completed: Bool(false), DueFrom: now, DueUntil: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != soon.ID {
		t.Fatalf("upcoming = %+v, want only task %d", got, soon.ID)
	}

	got, _ = s.ListTasks(ctx, TaskFilter{UserID: 1})
	if len(got) != 4 {
		t.Fatalf("len(all) = %d, want 4", len(got))
	}
	if got[0].ChatID != 100 || got[len(got)-1].ID != soon.ID {
		t.Fatalf("tasks not ordered by chat then deadline: %+v", got)
	}
	_ = later
}

func TestInMemoryUpdateAndDeleteTask(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	_, _ = s.UpsertUser(ctx, UserObservation{UserID: 1, ChatID: 100})
	task, _ := s.InsertTask(ctx, NewTask{UserID: 1, ChatID: 100, Description: "old"})

	desc := "new"
	updated, err := s.UpdateTask(ctx, task.ID, TaskPatch{Description: &desc})
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if updated.Description != "new" || updated.Completed {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	if err := s.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if _, err := s.GetTask(ctx, task.ID, false); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("GetTask() error = %v, want ErrTaskNotFound", err)
	}
	if err := s.DeleteTask(ctx, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("second DeleteTask() error = %v, want ErrTaskNotFound", err)
	}
}

func TestListChatIDsDistinct(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	_, _ = s.UpsertUser(ctx, UserObservation{UserID: 1, ChatID: 200})
	_, _ = s.UpsertUser(ctx, UserObservation{UserID: 2, ChatID: 100})
	_, _ = s.UpsertUser(ctx, UserObservation{UserID: 1, ChatID: 100})

	ids, err := s.ListChatIDs(ctx)
	if err != nil {
		t.Fatalf("ListChatIDs() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != 100 || ids[1] != 200 {
		t.Fatalf("ids = %v, want [100 200]", ids)
	}
}
