package session

import (
	"context"
	"sync"
	"time"
)

// Manager owns the per-user conversation state. All access goes through it;
// callers only ever see copies.
type Manager struct {
	mu                sync.RWMutex
	sessions          map[int64]*Session
	inactivityTimeout time.Duration
	onExpire          func(*Session)
	now               func() time.Time
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 24 * time.Hour
	}
	return &Manager{
		sessions:          make(map[int64]*Session),
		inactivityTimeout: inactivityTimeout,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// SetExpireHook registers a callback invoked after the janitor abandons a stale workflow.
func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Get returns the user's session, or an idle one if none exists yet.
func (m *Manager) Get(userID int64) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[userID]; ok {
		return clone(s)
	}
	return &Session{UserID: userID, Step: StepIdle}
}

// Begin enters a workflow, replacing any in-flight draft.
func (m *Manager) Begin(userID int64, workflow Workflow, step Step, draft Draft) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.ensureLocked(userID)
	now := m.now()
	s.Workflow = workflow
	s.Step = step
	s.Draft = cloneDraft(draft)
	s.StartedAt = now
	s.LastActivityAt = now
	return clone(s)
}

// Advance moves to step and lets mutate adjust the draft in the same critical section.
func (m *Manager) Advance(userID int64, step Step, mutate func(*Draft)) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.ensureLocked(userID)
	if mutate != nil {
		mutate(&s.Draft)
	}
	s.Step = step
	s.LastActivityAt = m.now()
	return clone(s)
}

// Reset ends the current workflow. The admin context survives.
func (m *Manager) Reset(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return
	}
	resetLocked(s)
	s.LastActivityAt = m.now()
}

func (m *Manager) SetAdminContext(userID int64, ref ChatRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.ensureLocked(userID)
	s.AdminContext = &ref
	s.LastActivityAt = m.now()
}

func (m *Manager) ClearAdminContext(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		s.AdminContext = nil
	}
}

func (m *Manager) AdminContext(userID int64) (ChatRef, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok || s.AdminContext == nil {
		return ChatRef{}, false
	}
	return *s.AdminContext, true
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

// ActiveCount returns the number of users currently inside a workflow.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if !s.Idle() {
			count++
		}
	}
	return count
}

func (m *Manager) expireInactive() {
	now := m.now()
	var expired []*Session

	m.mu.Lock()
	for _, s := range m.sessions {
		if s.Idle() {
			continue
		}
		if now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		expired = append(expired, clone(s))
		resetLocked(s)
		s.LastActivityAt = now
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func (m *Manager) ensureLocked(userID int64) *Session {
	s, ok := m.sessions[userID]
	if !ok {
		now := m.now()
		s = &Session{UserID: userID, Step: StepIdle, StartedAt: now, LastActivityAt: now}
		m.sessions[userID] = s
	}
	return s
}

func resetLocked(s *Session) {
	s.Workflow = WorkflowNone
	s.Step = StepIdle
	s.Draft = Draft{}
}

func clone(s *Session) *Session {
	c := *s
	c.Draft = cloneDraft(s.Draft)
	if s.AdminContext != nil {
		ref := *s.AdminContext
		c.AdminContext = &ref
	}
	return &c
}

func cloneDraft(d Draft) Draft {
	d.Candidates = append([]ChatRef(nil), d.Candidates...)
	return d
}
