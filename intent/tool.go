package intent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/structured"
	"github.com/tbxark/intakeagent/types"
)

const (
	classifyIntentToolName        = "classify_intent"
	classifyIntentToolDescription = "Classify the user's latest message as affirm, decline, skip or none."
)

// DefaultIntentSystemPromptTemplate may contain a single "%s" placeholder for the tool name.
const DefaultIntentSystemPromptTemplate = `
You assist an intake bot that collects a vehicle complaint or feedback record.

Read the recent conversation and classify only the user's latest message:
- affirm: the user agrees to what the assistant just asked (for example unlocking a confirmed field).
- decline: the user refuses what the assistant just asked.
- skip: the user says they do not know or do not want to answer the current question.
- none: anything else, including messages that provide new information.

Providing a value is never skip. Judge the answer together with the assistant's question.

Call the '%s' tool with the result.
`

type PromptBuilder func(systemPrompt string) structured.PromptBuilder[*types.ToolRequest]

type recognizerOptions struct {
	systemPromptTemplate string
	promptBuilder        PromptBuilder
	call                 structured.CallConfig
}

type RecognizerOption func(*recognizerOptions)

func WithIntentSystemPromptTemplate(systemPromptTemplate string) RecognizerOption {
	return func(o *recognizerOptions) {
		o.systemPromptTemplate = systemPromptTemplate
	}
}

func WithIntentPromptBuilder(promptBuilder PromptBuilder) RecognizerOption {
	return func(o *recognizerOptions) {
		o.promptBuilder = promptBuilder
	}
}

func WithIntentCall(call structured.CallConfig) RecognizerOption {
	return func(o *recognizerOptions) {
		o.call = call
	}
}

func defaultPromptBuilder(systemPrompt string) structured.PromptBuilder[*types.ToolRequest] {
	return func(ctx context.Context, req *types.ToolRequest) ([]*schema.Message, error) {
		message, err := types.FormatToolRequest(&types.ToolRequest{
			FormType:  req.FormType,
			Phase:     req.Phase,
			Record:    req.Record,
			Recent:    req.Recent,
			UserInput: req.UserInput,
		})
		if err != nil {
			return nil, fmt.Errorf("convert to prompt message failed: %w", err)
		}
		return []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(message),
		}, nil
	}
}

type classifyIntentArgs struct {
	Intent Intent `json:"intent" jsonschema:"required,enum=affirm,enum=decline,enum=skip,enum=none,description=The intent of the user's latest message"`
}

type ToolBasedIntentRecognizer struct {
	chain *structured.Chain[*types.ToolRequest, classifyIntentArgs]
}

func NewToolBasedIntentRecognizer(chatModel model.ToolCallingChatModel, opts ...RecognizerOption) (*ToolBasedIntentRecognizer, error) {
	options := recognizerOptions{
		systemPromptTemplate: DefaultIntentSystemPromptTemplate,
		promptBuilder:        defaultPromptBuilder,
	}
	for _, o := range opts {
		if o != nil {
			o(&options)
		}
	}
	chain, err := structured.NewChain[*types.ToolRequest, classifyIntentArgs](
		chatModel,
		options.promptBuilder(fmt.Sprintf(options.systemPromptTemplate, classifyIntentToolName)),
		classifyIntentToolName,
		classifyIntentToolDescription,
		options.call,
	)
	if err != nil {
		return nil, err
	}
	return &ToolBasedIntentRecognizer{chain: chain}, nil
}

func (p *ToolBasedIntentRecognizer) RecognizeIntent(ctx context.Context, req *types.ToolRequest) (Intent, error) {
	result, err := p.chain.Invoke(ctx, req)
	if err != nil {
		return None, err
	}
	switch result.Intent {
	case Affirm, Decline, Skip, None:
		return result.Intent, nil
	default:
		return None, fmt.Errorf("unexpected intent %q returned by %s", result.Intent, classifyIntentToolName)
	}
}
