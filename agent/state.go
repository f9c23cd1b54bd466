package agent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tbxark/intakeagent/types"
)

// StateReadWriter persists session states, routed by the key in ctx.
type StateReadWriter interface {
	InitState(ctx context.Context, formType types.FormType) *State
	Remove(ctx context.Context) error
	Read(ctx context.Context) (*State, error)
	Write(ctx context.Context, state *State) error
}

type stateKeyContext struct{}

// WithStateKey sets a routing key for state storage in the context.
func WithStateKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, stateKeyContext{}, key)
}

// StateKeyFromContext gets the routing key from the context.
func StateKeyFromContext(ctx context.Context) (string, bool) {
	value := ctx.Value(stateKeyContext{})
	if value == nil {
		return "", false
	}
	key, ok := value.(string)
	return key, ok && key != ""
}

var errNoStateKey = errors.New("no session key in context")

const sessionNamespace = "intake:session"

// CacheStateReadWriter stores states in any Cache under the "intake:session" namespace.
type CacheStateReadWriter struct {
	core Cache[*State]
	now  func() time.Time
}

func NewCacheStateReadWriter(core Cache[*State]) *CacheStateReadWriter {
	return &CacheStateReadWriter{core: core, now: time.Now}
}

func sessionKey(ctx context.Context) (string, error) {
	id, ok := StateKeyFromContext(ctx)
	if !ok {
		return "", errNoStateKey
	}
	return sessionNamespace + ":" + id, nil
}

// NewMemoryStateReadWriter is an in-memory store for tests and local usage.
func NewMemoryStateReadWriter() *CacheStateReadWriter {
	return NewCacheStateReadWriter(NewMemoryCore[*State]())
}

func (m *CacheStateReadWriter) InitState(ctx context.Context, formType types.FormType) *State {
	id, ok := StateKeyFromContext(ctx)
	if !ok {
		id = uuid.NewString()
	}
	return newState(id, formType, m.now())
}

func (m *CacheStateReadWriter) Read(ctx context.Context) (*State, error) {
	key, err := sessionKey(ctx)
	if err != nil {
		return nil, err
	}
	state, ok, err := m.core.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok || state == nil {
		return nil, ErrSessionNotFound
	}
	return state, nil
}

func (m *CacheStateReadWriter) Write(ctx context.Context, state *State) error {
	if state == nil {
		return errors.New("nil state")
	}
	if state.Phase == "" {
		state.Phase = types.PhaseCollecting
	}
	key, err := sessionKey(ctx)
	if err != nil {
		return err
	}
	return m.core.Set(ctx, key, state)
}

func (m *CacheStateReadWriter) Remove(ctx context.Context) error {
	key, err := sessionKey(ctx)
	if err != nil {
		return err
	}
	return m.core.Del(ctx, key)
}

var _ StateReadWriter = (*CacheStateReadWriter)(nil)
