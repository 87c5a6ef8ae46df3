package bot

import (
	"sync"

	"quizbot/internal/broadcast"
	"quizbot/internal/quiz"
)

// createStep tracks where a user is in the quiz-creation conversation.
type createStep int

const (
	stepQuestion createStep = iota
	stepOptions
	stepCorrect
	stepConfirm
)

type createState struct {
	step  createStep
	draft quiz.Draft
}

// sessions holds per-user conversational state: the quiz-creation flow and
// the admin's single pending broadcast job (none → pending → none).
type sessions struct {
	mu       sync.Mutex
	creating map[int64]*createState
	pending  map[int64]*broadcast.Job
}

func newSessions() *sessions {
	return &sessions{
		creating: map[int64]*createState{},
		pending:  map[int64]*broadcast.Job{},
	}
}

func (s *sessions) startCreate(userID int64) *createState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &createState{step: stepQuestion}
	s.creating[userID] = st
	return st
}

func (s *sessions) create(userID int64) (*createState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.creating[userID]
	return st, ok
}

func (s *sessions) endCreate(userID int64) {
	s.mu.Lock()
	delete(s.creating, userID)
	s.mu.Unlock()
}

// setPending installs a new pending broadcast job for the admin, replacing
// any prior one (a fresh /broadcast discards the previous preview).
func (s *sessions) setPending(adminID int64, job *broadcast.Job) {
	s.mu.Lock()
	s.pending[adminID] = job
	s.mu.Unlock()
}

// takePending removes and returns the admin's pending job. The transfer is
// one-shot: once taken (confirm) or dropped (cancel), the slot is empty.
func (s *sessions) takePending(adminID int64) (*broadcast.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.pending[adminID]
	if ok {
		delete(s.pending, adminID)
	}
	return job, ok
}

func (s *sessions) clearPending(adminID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[adminID]; !ok {
		return false
	}
	delete(s.pending, adminID)
	return true
}
