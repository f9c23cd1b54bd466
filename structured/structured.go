package structured

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

type PromptBuilder[TInput any] func(ctx context.Context, input TInput) ([]*schema.Message, error)

// CallConfig bounds a single model call.
type CallConfig struct {
	Timeout     time.Duration
	Temperature *float32
	MaxTokens   *int
}

func (c CallConfig) options() []model.Option {
	var opts []model.Option
	if c.Temperature != nil {
		opts = append(opts, model.WithTemperature(*c.Temperature))
	}
	if c.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*c.MaxTokens))
	}
	return opts
}

// WithDeadline applies the configured timeout to ctx.
func (c CallConfig) WithDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.Timeout)
}

// Options returns the sampling options followed by extra.
func (c CallConfig) Options(extra ...model.Option) []model.Option {
	return append(c.options(), extra...)
}

func Float32(v float32) *float32 { return &v }
func Int(v int) *int             { return &v }

type Chain[TInput, TOutput any] struct {
	PromptBuilder PromptBuilder[TInput]
	ChatModel     model.ToolCallingChatModel
	ToolInfo      *schema.ToolInfo
	Call          CallConfig
}

func NewChain[TInput, TOutput any](
	chatModel model.ToolCallingChatModel,
	promptBuilder PromptBuilder[TInput],
	toolName string,
	toolDesc string,
	call CallConfig,
) (*Chain[TInput, TOutput], error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	toolInfo, err := utils.GoStruct2ToolInfo[TOutput](toolName, toolDesc)
	if err != nil {
		return nil, fmt.Errorf("convert tool info failed: %w", err)
	}
	return &Chain[TInput, TOutput]{
		PromptBuilder: promptBuilder,
		ChatModel:     chatModel,
		ToolInfo:      toolInfo,
		Call:          call,
	}, nil
}

func (s *Chain[TInput, TOutput]) Invoke(ctx context.Context, input TInput) (*TOutput, error) {
	messages, err := s.PromptBuilder(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("build prompt failed: %w", err)
	}

	ctx, cancel := s.Call.WithDeadline(ctx)
	defer cancel()
	response, err := s.ChatModel.Generate(ctx, messages, s.Call.Options(
		model.WithTools([]*schema.ToolInfo{s.ToolInfo}),
		model.WithToolChoice(schema.ToolChoiceForced, s.ToolInfo.Name),
	)...)
	if err != nil {
		return nil, fmt.Errorf("call model failed: %w", err)
	}
	if response == nil || len(response.ToolCalls) == 0 {
		content := ""
		if response != nil {
			content = response.Content
		}
		return nil, fmt.Errorf("no ToolCall found in model response: %s", content)
	}

	var result TOutput
	if err := sonic.UnmarshalString(response.ToolCalls[0].Function.Arguments, &result); err != nil {
		return nil, fmt.Errorf("parse ToolCall arguments failed: %w", err)
	}

	return &result, nil
}

func (s *Chain[TInput, TOutput]) GetToolInfo() *schema.ToolInfo {
	return s.ToolInfo
}
