package bot

import (
	"context"
	"strings"

	"github.com/ent0n29/taskbot/internal/gateway"
	"github.com/ent0n29/taskbot/internal/session"
	"github.com/ent0n29/taskbot/internal/view"
)

// event is an update with its callback payload decoded and the sender's
// session snapshot attached.
type event struct {
	upd     gateway.Update
	userID  int64
	msg     *gateway.Message
	cb      *gateway.Callback
	data    view.Callback
	dataErr error
	sess    *session.Session
}

func (b *Bot) newEvent(upd gateway.Update) *event {
	ev := &event{upd: upd, userID: upd.SenderID(), msg: upd.Message, cb: upd.Callback}
	if ev.cb != nil {
		ev.data, ev.dataErr = view.DecodeCallback(ev.cb.Data)
	}
	ev.sess = b.sessions.Get(ev.userID)
	return ev
}

func (e *event) kind() string {
	switch {
	case e.upd.Membership != nil:
		return "membership"
	case e.cb != nil:
		return "callback"
	case e.msg != nil:
		return "message"
	default:
		return "unknown"
	}
}

// replyChat is where answers to this event go.
func (e *event) replyChat() int64 {
	switch {
	case e.msg != nil:
		return e.msg.Chat.ID
	case e.cb != nil && e.cb.Message != nil:
		return e.cb.Message.Chat.ID
	default:
		return e.userID
	}
}

func (e *event) private() bool {
	return e.msg != nil && e.msg.Chat.IsPrivate()
}

func (e *event) group() bool {
	return e.msg != nil && (e.msg.Chat.Kind == gateway.ChatGroup || e.msg.Chat.Kind == gateway.ChatSupergroup)
}

func (e *event) command(name string) bool {
	return e.msg != nil && e.msg.Command == name
}

func (e *event) label(text string) bool {
	return e.private() && e.msg.Command == "" && strings.TrimSpace(e.msg.Text) == text
}

func (e *event) callback(kinds ...view.Kind) bool {
	if e.cb == nil || e.dataErr != nil {
		return false
	}
	for _, k := range kinds {
		if e.data.Kind == k {
			return true
		}
	}
	return false
}

func (e *event) at(w session.Workflow, steps ...session.Step) bool {
	for _, s := range steps {
		if e.sess.In(w, s) {
			return true
		}
	}
	return false
}

// textAt matches free text typed in the private chat during a step.
func (e *event) textAt(w session.Workflow, step session.Step) bool {
	return e.private() && e.msg.Command == "" && e.msg.Text != "" && e.at(w, step)
}

type route struct {
	name   string
	match  func(*event) bool
	handle func(context.Context, *event) error
}

// routeTable lists routes in priority order. The first match wins, and
// passive observation of group chatter is always last.
func (b *Bot) routeTable() []route {
	return []route{
		{"membership", func(e *event) bool { return e.upd.Membership != nil }, b.handleMembership},

		{"cancel", func(e *event) bool {
			return (e.private() && e.command("cancel")) || e.label(view.LabelCancel) || e.callback(view.KindAbort)
		}, b.handleCancel},

		{"start_group", func(e *event) bool { return e.group() && e.command("start") }, b.handleStartGroup},
		{"start_private", func(e *event) bool { return e.private() && e.command("start") }, b.handleStartPrivate},
		{"admin_group", func(e *event) bool { return e.group() && e.command("admin") }, b.handleAdminGroup},
		{"set_admin_context", func(e *event) bool { return e.callback(view.KindSetAdminContext) }, b.handleSetAdminContext},

		{"new_task", func(e *event) bool {
			return (e.private() && e.command("newtask")) || e.label(view.LabelNewTask)
		}, b.handleNewTask},
		{"view_users", func(e *event) bool { return e.label(view.LabelViewUsers) }, b.handleViewUsers},
		{"my_tasks", func(e *event) bool {
			return (e.private() && e.command("mytasks")) || e.label(view.LabelMyTasks)
		}, b.handleMyTasks},

		{"assign_user", func(e *event) bool {
			return e.callback(view.KindAssignUser) && e.at(session.WorkflowCreateTask, session.StepSelectingAssignee)
		}, b.handleAssignUser},
		{"calendar", func(e *event) bool {
			return e.callback(view.KindCalendar) && (e.at(session.WorkflowCreateTask, session.StepSelectingStartDate, session.StepSelectingEndDate) ||
				e.at(session.WorkflowEditTask, session.StepSelectingEndDate))
		}, b.handleCalendar},
		{"start_time", func(e *event) bool {
			return e.textAt(session.WorkflowCreateTask, session.StepEnteringStartTime)
		}, b.handleStartTime},
		{"end_time", func(e *event) bool {
			return e.textAt(session.WorkflowCreateTask, session.StepEnteringEndTime)
		}, b.handleEndTime},
		{"description", func(e *event) bool {
			return e.textAt(session.WorkflowCreateTask, session.StepEnteringDescription)
		}, b.handleDescription},
		{"confirm", func(e *event) bool {
			return e.callback(view.KindConfirmTask, view.KindCancelTask) && e.at(session.WorkflowCreateTask, session.StepAwaitingConfirm)
		}, b.handleConfirm},

		{"complete_task", func(e *event) bool { return e.callback(view.KindCompleteTask) }, b.handleCompleteTask},
		{"delete_task", func(e *event) bool { return e.callback(view.KindDeleteTask) }, b.handleDeleteTask},
		{"edit_task", func(e *event) bool { return e.callback(view.KindEditTask) }, b.handleEditTask},
		{"edit_field", func(e *event) bool {
			return e.callback(view.KindEditField) && e.at(session.WorkflowEditTask, session.StepChoosingField)
		}, b.handleEditField},
		{"edit_description", func(e *event) bool {
			return e.textAt(session.WorkflowEditTask, session.StepEditingDescription)
		}, b.handleEditDescription},
		{"edit_end_time", func(e *event) bool {
			return e.textAt(session.WorkflowEditTask, session.StepEnteringEndTime)
		}, b.handleEditEndTime},

		{"view_user", func(e *event) bool {
			return e.callback(view.KindViewUser) && e.at(session.WorkflowViewTasks, session.StepSelectingUser)
		}, b.handleViewUser},
		{"message_task", func(e *event) bool { return e.callback(view.KindMessageTask) }, b.handleMessageTask},
		{"message_text", func(e *event) bool {
			return e.textAt(session.WorkflowSendMessage, session.StepEnteringMessage)
		}, b.handleMessageText},

		{"stale_callback", func(e *event) bool { return e.cb != nil }, b.handleStaleCallback},
		{"observe", func(e *event) bool { return e.group() && !e.msg.From.IsBot }, b.handleObserve},
	}
}
