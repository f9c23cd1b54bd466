package store

import (
	"context"
	"sync"

	"github.com/tbxark/intakeagent/agent"
)

// MemoryRecorder keeps submissions in process memory.
type MemoryRecorder struct {
	mu   sync.RWMutex
	subs []*agent.Submission
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (m *MemoryRecorder) Record(ctx context.Context, sub *agent.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	cp.Record = sub.Record.Clone()
	m.subs = append(m.subs, &cp)
	return nil
}

// Submissions returns the recorded submissions, oldest first.
func (m *MemoryRecorder) Submissions() []*agent.Submission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*agent.Submission(nil), m.subs...)
}

var _ agent.Recorder = (*MemoryRecorder)(nil)
