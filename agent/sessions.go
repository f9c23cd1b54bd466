package agent

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/tbxark/intakeagent/types"
)

// Sessions is the session boundary. Actions on one session run one at a
// time; a failed action leaves the stored state untouched.
type Sessions struct {
	flow   *IntakeFlow
	store  StateReadWriter
	logger *slog.Logger
	locks  sync.Map
}

func NewSessions(flow *IntakeFlow, store StateReadWriter, logger *slog.Logger) *Sessions {
	if store == nil {
		store = NewMemoryStateReadWriter()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{flow: flow, store: store, logger: logger}
}

func (s *Sessions) Flow() *IntakeFlow {
	return s.flow
}

func (s *Sessions) lock(id string) func() {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Start creates a session and returns its greeting. An empty id gets a new uuid.
func (s *Sessions) Start(ctx context.Context, id string, formType types.FormType) (*Response, error) {
	if id == "" {
		id = uuid.NewString()
	}
	unlock := s.lock(id)
	defer unlock()
	st, err := s.flow.NewState(id, formType)
	if err != nil {
		return nil, err
	}
	if err = s.store.Write(WithStateKey(ctx, id), st); err != nil {
		return nil, err
	}
	s.logger.Info("session started", "session", id, "form_type", formType)
	return &Response{Message: Greeting(formType), State: st}, nil
}

func (s *Sessions) do(ctx context.Context, id string, action func(ctx context.Context, st *State) (*Response, error)) (*Response, error) {
	unlock := s.lock(id)
	defer unlock()
	ctx = WithStateKey(ctx, id)
	current, err := s.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := action(ctx, current.Clone())
	if err != nil {
		return nil, err
	}
	if err = s.store.Write(ctx, resp.State); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Sessions) SubmitTurn(ctx context.Context, id, text string) (*Response, error) {
	return s.do(ctx, id, func(ctx context.Context, st *State) (*Response, error) {
		return s.flow.SubmitTurn(ctx, st, text)
	})
}

func (s *Sessions) Undo(ctx context.Context, id string) (*Response, error) {
	return s.do(ctx, id, s.flow.Undo)
}

func (s *Sessions) AddMoreDetails(ctx context.Context, id string) (*Response, error) {
	return s.do(ctx, id, s.flow.AddMoreDetails)
}

func (s *Sessions) SubmitRecord(ctx context.Context, id string) (*Response, error) {
	return s.do(ctx, id, s.flow.SubmitRecord)
}

func (s *Sessions) Reset(ctx context.Context, id string) (*Response, error) {
	return s.do(ctx, id, s.flow.Reset)
}

func (s *Sessions) SwitchFormType(ctx context.Context, id string, formType types.FormType) (*Response, error) {
	return s.do(ctx, id, func(ctx context.Context, st *State) (*Response, error) {
		return s.flow.SwitchFormType(ctx, st, formType)
	})
}

func (s *Sessions) View(ctx context.Context, id string) (*View, error) {
	unlock := s.lock(id)
	defer unlock()
	st, err := s.store.Read(WithStateKey(ctx, id))
	if err != nil {
		return nil, err
	}
	return s.flow.View(st)
}

func (s *Sessions) Remove(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()
	ctx = WithStateKey(ctx, id)
	if _, err := s.store.Read(ctx); err != nil {
		return err
	}
	if err := s.store.Remove(ctx); err != nil {
		return err
	}
	s.locks.Delete(id)
	return nil
}
