package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/types"
)

var _ adk.Agent = (*Agent)(nil)

// Agent exposes the submit-turn action of a session as an adk agent. The
// session is picked from the state key in ctx and started on first use.
type Agent struct {
	name        string
	description string
	formType    types.FormType
	sessions    *Sessions
}

func NewAgent(name, description string, formType types.FormType, sessions *Sessions) *Agent {
	return &Agent{
		name:        name,
		description: description,
		formType:    formType,
		sessions:    sessions,
	}
}

func (a *Agent) Name(ctx context.Context) string {
	return a.name
}

func (a *Agent) Description(ctx context.Context) string {
	return a.description
}

func (a *Agent) Run(ctx context.Context, input *adk.AgentInput, options ...adk.AgentRunOption) *adk.AsyncIterator[*adk.AgentEvent] {
	iter, gen := adk.NewAsyncIteratorPair[*adk.AgentEvent]()
	go func() {
		defer func() {
			e := recover()
			if e != nil {
				gen.Send(&adk.AgentEvent{
					Err: fmt.Errorf("recover from panic: %v", e),
				})
			}
			gen.Close()
		}()
		if len(input.Messages) == 0 {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("no messages in input"),
			})
			return
		}
		id, ok := StateKeyFromContext(ctx)
		if !ok {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("no session key in context"),
			})
			return
		}
		resp, err := a.sessions.SubmitTurn(ctx, id, input.Messages[len(input.Messages)-1].Content)
		if errors.Is(err, ErrSessionNotFound) {
			if _, err = a.sessions.Start(ctx, id, a.formType); err == nil {
				resp, err = a.sessions.SubmitTurn(ctx, id, input.Messages[len(input.Messages)-1].Content)
			}
		}
		if err != nil {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("submit turn failed: %w", err),
			})
			return
		}
		gen.Send(&adk.AgentEvent{
			Output: &adk.AgentOutput{
				MessageOutput: &adk.MessageVariant{
					IsStreaming: false,
					Message:     schema.AssistantMessage(resp.Message, nil),
					Role:        schema.Assistant,
				},
			},
		})
	}()
	return iter
}
