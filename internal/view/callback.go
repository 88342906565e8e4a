package view

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ent0n29/taskbot/internal/calendar"
)

// Kind tags a decoded callback payload.
type Kind string

const (
	KindCalendar        Kind = "calendar"
	KindSetAdminContext Kind = "set_admin_ctx"
	KindAssignUser      Kind = "assign_user"
	KindViewUser        Kind = "view_user"
	KindConfirmTask     Kind = "task_confirm"
	KindCancelTask      Kind = "task_cancel"
	KindCompleteTask    Kind = "complete_task"
	KindEditTask        Kind = "edit_task"
	KindDeleteTask      Kind = "delete_task"
	KindMessageTask     Kind = "message_task"
	KindEditField       Kind = "edit_choice"
	KindAbort           Kind = "abort"
)

// EditField selects what an edit workflow changes.
type EditField string

const (
	FieldDescription EditField = "desc"
	FieldEnd         EditField = "end_dt"
)

var ErrUnknownCallback = errors.New("unknown callback payload")

// Callback is the single decoded form of every inline button press.
type Callback struct {
	Kind     Kind
	ID       int64
	Field    EditField
	Calendar calendar.Payload
}

func (c Callback) Encode() string {
	switch c.Kind {
	case KindCalendar:
		return c.Calendar.Encode()
	case KindConfirmTask, KindCancelTask, KindAbort:
		return string(c.Kind)
	case KindEditField:
		return fmt.Sprintf("%s|%d|%s", c.Kind, c.ID, c.Field)
	default:
		return fmt.Sprintf("%s|%d", c.Kind, c.ID)
	}
}

// DecodeCallback parses raw button data. Unknown or malformed payloads
// return ErrUnknownCallback so stale buttons can be acknowledged silently.
func DecodeCallback(data string) (Callback, error) {
	if calendar.IsPayload(data) {
		p, err := calendar.Decode(data)
		if err != nil {
			return Callback{}, fmt.Errorf("%w: %v", ErrUnknownCallback, err)
		}
		return Callback{Kind: KindCalendar, Calendar: p}, nil
	}

	parts := strings.Split(data, "|")
	kind := Kind(parts[0])
	switch kind {
	case KindConfirmTask, KindCancelTask, KindAbort:
		if len(parts) != 1 {
			return Callback{}, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
		}
		return Callback{Kind: kind}, nil
	case KindSetAdminContext, KindAssignUser, KindViewUser,
		KindCompleteTask, KindEditTask, KindDeleteTask, KindMessageTask:
		if len(parts) != 2 {
			return Callback{}, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return Callback{}, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
		}
		return Callback{Kind: kind, ID: id}, nil
	case KindEditField:
		if len(parts) != 3 {
			return Callback{}, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return Callback{}, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
		}
		field := EditField(parts[2])
		if field != FieldDescription && field != FieldEnd {
			return Callback{}, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
		}
		return Callback{Kind: kind, ID: id, Field: field}, nil
	default:
		return Callback{}, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
	}
}
