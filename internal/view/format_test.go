package view

import (
	"strings"
	"testing"
	"time"

	"github.com/ent0n29/taskbot/internal/policy"
	"github.com/ent0n29/taskbot/internal/tasks"
)

func sampleTask() tasks.Task {
	return tasks.Task{
		ID:          5,
		UserID:      2,
		ChatID:      100,
		Start:       time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 1, 10, 17, 0, 0, 0, time.UTC),
		Description: "Ship <report>",
		User:        &tasks.User{UserID: 2, ChatID: 100, FullName: "Bob"},
	}
}

func buttonKinds(t *testing.T, rows [][]string) []Kind {
	t.Helper()
	var kinds []Kind
	for _, r := range rows {
		for _, data := range r {
			cb, err := DecodeCallback(data)
			if err != nil {
				t.Fatalf("DecodeCallback(%q) error = %v", data, err)
			}
			kinds = append(kinds, cb.Kind)
		}
	}
	return kinds
}

func TestTaskCardButtonsByRole(t *testing.T) {
	f := NewFormatter(time.UTC)
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	text, kb := f.TaskCard(sampleTask(), policy.RoleOwner, now)
	if !strings.Contains(text, "Task #5") || !strings.Contains(text, "10.01.2024 17:00") {
		t.Fatalf("unexpected card text: %q", text)
	}
	if !strings.Contains(text, "Ship &lt;report&gt;") {
		t.Fatalf("description not escaped: %q", text)
	}
	if !strings.Contains(text, "❌ Not completed") {
		t.Fatalf("unexpected status: %q", text)
	}
	got := buttonKinds(t, dataRows(kb))
	if len(got) != 2 || got[0] != KindCompleteTask || got[1] != KindEditTask {
		t.Fatalf("owner buttons = %v", got)
	}

	_, kb = f.TaskCard(sampleTask(), policy.RoleAdmin, now)
	got = buttonKinds(t, dataRows(kb))
	want := []Kind{KindCompleteTask, KindEditTask, KindDeleteTask, KindMessageTask}
	if len(got) != len(want) {
		t.Fatalf("admin buttons = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("admin buttons = %v, want %v", got, want)
		}
	}
}

func TestTaskCardStatus(t *testing.T) {
	f := NewFormatter(time.UTC)
	late := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)

	text, _ := f.TaskCard(sampleTask(), policy.RoleOwner, late)
	if !strings.Contains(text, "(overdue)") {
		t.Fatalf("expected overdue marker: %q", text)
	}

	done := sampleTask()
	done.Completed = true
	text, kb := f.TaskCard(done, policy.RoleOwner, late)
	if !strings.Contains(text, "✅ Completed") {
		t.Fatalf("expected completed status: %q", text)
	}
	for _, k := range buttonKinds(t, dataRows(kb)) {
		if k == KindCompleteTask {
			t.Fatalf("completed task still offers completion")
		}
	}

	orphan := sampleTask()
	orphan.User = nil
	if text, _ := f.TaskCard(orphan, policy.RoleAdmin, late); !strings.Contains(text, "Assignee: Unknown") {
		t.Fatalf("missing assignee fallback: %q", text)
	}
}

func TestDeadlineNotice(t *testing.T) {
	f := NewFormatter(time.UTC)
	text, kb := f.DeadlineNotice(NoticeOverdue, sampleTask())
	if !strings.Contains(text, "Task overdue!") || !strings.Contains(text, "Was due:</b> 10.01.2024 17:00") {
		t.Fatalf("unexpected overdue text: %q", text)
	}
	if got := buttonKinds(t, dataRows(kb)); len(got) != 3 {
		t.Fatalf("notice buttons = %v", got)
	}

	text, _ = f.DeadlineNotice(NoticeUpcoming, sampleTask())
	if !strings.Contains(text, "Deadline approaching!") || !strings.Contains(text, "Due:</b>") {
		t.Fatalf("unexpected upcoming text: %q", text)
	}
}

func TestChatTitleFallback(t *testing.T) {
	if got := ChatTitle("  ", -100); got != "ID: -100" {
		t.Fatalf("ChatTitle() = %q", got)
	}
	if got := ChatTitle("Team", -100); got != "Team" {
		t.Fatalf("ChatTitle() = %q", got)
	}
}

func TestFormatterUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	f := NewFormatter(loc)
	if got := f.DateTime(time.Date(2024, 1, 10, 21, 30, 0, 0, time.UTC)); got != "11.01.2024 00:30" {
		t.Fatalf("DateTime() = %q", got)
	}
}
