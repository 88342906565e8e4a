package tasks

import "time"

// MemberStatus mirrors the chat membership states reported by the messaging platform.
type MemberStatus string

const (
	MemberStatusCreator       MemberStatus = "creator"
	MemberStatusAdministrator MemberStatus = "administrator"
	MemberStatusMember        MemberStatus = "member"
	MemberStatusLeft          MemberStatus = "left"
	MemberStatusKicked        MemberStatus = "kicked"
)

// Active reports whether the status still belongs to someone inside the chat.
func (s MemberStatus) Active() bool {
	switch s {
	case MemberStatusCreator, MemberStatusAdministrator, MemberStatusMember:
		return true
	default:
		return false
	}
}

// User is a participant observed in one chat. (UserID, ChatID) is unique.
type User struct {
	UserID    int64        `json:"user_id"`
	ChatID    int64        `json:"chat_id"`
	Username  string       `json:"username,omitempty"`
	FullName  string       `json:"full_name"`
	Status    MemberStatus `json:"status"`
	FirstSeen time.Time    `json:"first_seen"`
	LastSeen  time.Time    `json:"last_seen"`
}

// DisplayName prefers the full name and falls back to the handle, then the id.
func (u User) DisplayName() string {
	switch {
	case u.FullName != "":
		return u.FullName
	case u.Username != "":
		return "@" + u.Username
	default:
		return "user " + itoa(u.UserID)
	}
}

// UserObservation is an upsert request. An empty Status keeps the stored one
// (and means "member" for a user seen for the first time).
type UserObservation struct {
	UserID   int64
	ChatID   int64
	Username string
	FullName string
	Status   MemberStatus
	SeenAt   time.Time
}

type Task struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	ChatID      int64     `json:"chat_id"`
	Start       time.Time `json:"start_at"`
	End         time.Time `json:"end_at"`
	Description string    `json:"description"`
	Completed   bool      `json:"is_completed"`

	// User is populated when the task is loaded with its owner.
	User *User `json:"user,omitempty"`
}

// NewTask is the payload for InsertTask. The store assigns the id.
type NewTask struct {
	UserID      int64
	ChatID      int64
	Start       time.Time
	End         time.Time
	Description string
}

// TaskPatch carries the fields to change; nil fields are left untouched.
type TaskPatch struct {
	Description *string
	End         *time.Time
	Completed   *bool
}

func (p TaskPatch) empty() bool {
	return p.Description == nil && p.End == nil && p.Completed == nil
}

// TaskFilter narrows ListTasks. Zero values mean "no constraint".
type TaskFilter struct {
	UserID    int64
	ChatID    int64
	Completed *bool
	// DueBefore selects tasks with End strictly before the instant.
	DueBefore time.Time
	// DueFrom and DueUntil select tasks with DueFrom <= End <= DueUntil.
	DueFrom  time.Time
	DueUntil time.Time
	WithUser bool
	Limit    int
}

func (f TaskFilter) matches(t Task) bool {
	if f.UserID != 0 && t.UserID != f.UserID {
		return false
	}
	if f.ChatID != 0 && t.ChatID != f.ChatID {
		return false
	}
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	if !f.DueBefore.IsZero() && !t.End.Before(f.DueBefore) {
		return false
	}
	if !f.DueFrom.IsZero() && t.End.Before(f.DueFrom) {
		return false
	}
	if !f.DueUntil.IsZero() && t.End.After(f.DueUntil) {
		return false
	}
	return true
}

// Bool is a small helper for building filters and patches.
func Bool(v bool) *bool { return &v }
