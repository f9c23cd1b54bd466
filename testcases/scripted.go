package testcases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Responder answers one model call. prompt is the last user message.
type Responder func(prompt string) (string, error)

var ErrScriptExhausted = errors.New("scripted model: no response queued")

var _ model.ToolCallingChatModel = (*ScriptedModel)(nil)

// ScriptedModel is a ToolCallingChatModel that routes calls by the tool name
// mentioned in the system prompt. Calls that mention no registered tool are
// answered as plain text.
type ScriptedModel struct {
	mu     sync.Mutex
	tools  map[string]Responder
	queues map[string][]string
	text   Responder
	calls  map[string]int
}

func NewScriptedModel() *ScriptedModel {
	return &ScriptedModel{
		tools:  map[string]Responder{},
		queues: map[string][]string{},
		calls:  map[string]int{},
	}
}

// OnTool answers every call for the tool with fn.
func (m *ScriptedModel) OnTool(name string, fn Responder) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools[name] = fn
	return m
}

// QueueTool answers successive calls for the tool with the given arguments JSON.
func (m *ScriptedModel) QueueTool(name string, args ...string) *ScriptedModel {
	m.mu.Lock()
	m.queues[name] = append(m.queues[name], args...)
	m.mu.Unlock()
	return m.OnTool(name, func(string) (string, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		q := m.queues[name]
		if len(q) == 0 {
			return "", ErrScriptExhausted
		}
		m.queues[name] = q[1:]
		return q[0], nil
	})
}

// OnText answers calls that do not target a tool.
func (m *ScriptedModel) OnText(fn Responder) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = fn
	return m
}

// Calls reports how many calls were routed to name ("" for text calls).
func (m *ScriptedModel) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *ScriptedModel) route(input []*schema.Message) (string, Responder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	system := ""
	for _, msg := range input {
		if msg != nil && msg.Role == schema.System {
			system += msg.Content
		}
	}
	for name, fn := range m.tools {
		if strings.Contains(system, "'"+name+"'") {
			m.calls[name]++
			return name, fn
		}
	}
	m.calls[""]++
	return "", m.text
}

func lastUserContent(input []*schema.Message) string {
	for i := len(input) - 1; i >= 0; i-- {
		if input[i] != nil && input[i].Role == schema.User {
			return input[i].Content
		}
	}
	return ""
}

func (m *ScriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, fn := m.route(input)
	if fn == nil {
		return nil, fmt.Errorf("scripted model: no responder for %q", name)
	}
	out, err := fn(lastUserContent(input))
	if err != nil {
		return nil, err
	}
	if name == "" {
		return schema.AssistantMessage(out, nil), nil
	}
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:   "call_" + name,
			Type: "function",
			Function: schema.FunctionCall{
				Name:      name,
				Arguments: out,
			},
		}},
	}, nil
}

func (m *ScriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *ScriptedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}
