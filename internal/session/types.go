package session

import "time"

// Workflow names the multi-step conversation a user is in.
type Workflow string

const (
	WorkflowNone         Workflow = ""
	WorkflowCreateTask   Workflow = "create_task"
	WorkflowEditTask     Workflow = "edit_task"
	WorkflowAdminContext Workflow = "admin_context"
	WorkflowViewTasks    Workflow = "view_tasks"
	WorkflowSendMessage  Workflow = "send_message"
)

// Step is the position inside a workflow.
type Step string

const (
	StepIdle                Step = "idle"
	StepSelectingAssignee   Step = "selecting_assignee"
	StepSelectingStartDate  Step = "selecting_start_date"
	StepEnteringStartTime   Step = "entering_start_time"
	StepSelectingEndDate    Step = "selecting_end_date"
	StepEnteringEndTime     Step = "entering_end_time"
	StepEnteringDescription Step = "entering_description"
	StepAwaitingConfirm     Step = "awaiting_confirmation"
	StepChoosingField       Step = "choosing_field"
	StepEditingDescription  Step = "editing_description"
	StepChoosingChat        Step = "choosing_chat"
	StepSelectingUser       Step = "selecting_user"
	StepEnteringMessage     Step = "entering_message_text"
)

// ChatRef identifies the group an administrator is currently managing.
type ChatRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Draft accumulates the values collected by a workflow. Fields a workflow
// does not use stay zero.
type Draft struct {
	ChatID       int64     `json:"chat_id,omitempty"`
	AssigneeID   int64     `json:"assignee_id,omitempty"`
	AssigneeName string    `json:"assignee_name,omitempty"`
	StartDate    time.Time `json:"start_date,omitempty"`
	Start        time.Time `json:"start,omitempty"`
	EndDate      time.Time `json:"end_date,omitempty"`
	End          time.Time `json:"end,omitempty"`
	Description  string    `json:"description,omitempty"`
	TaskID       int64     `json:"task_id,omitempty"`
	// Candidates is the set of chats offered during admin context selection.
	Candidates []ChatRef `json:"candidates,omitempty"`
}

type Session struct {
	UserID         int64     `json:"user_id"`
	Workflow       Workflow  `json:"workflow"`
	Step           Step      `json:"step"`
	Draft          Draft     `json:"draft"`
	AdminContext   *ChatRef  `json:"admin_context,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Idle reports whether the user is outside any workflow.
func (s *Session) Idle() bool {
	return s.Workflow == WorkflowNone
}

// In reports whether the session sits at the given workflow step.
func (s *Session) In(w Workflow, step Step) bool {
	return s.Workflow == w && s.Step == step
}
