package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/structured"
	"github.com/tbxark/intakeagent/types"
)

type ToolBasedDialogueGenerator struct {
	Lang                 string
	systemPrompt         string
	systemPromptTemplate string
	chatModel            model.ToolCallingChatModel
	call                 structured.CallConfig
}

// DefaultDialogueSystemPromptTemplate may contain a single "%s" placeholder for the language.
const DefaultDialogueSystemPromptTemplate = `You are a friendly intake assistant helping someone file a vehicle safety complaint or general feedback.
Write the next reply of the conversation. The "Next action" section says what the reply must do:
- correction: explain kindly what was wrong with each rejected value and ask for it again.
- ack_and_ask: briefly acknowledge what was just recorded, then ask for the first missing field.
- redirect: the user said nothing usable; acknowledge them warmly and steer back to the first missing field.
- generic: acknowledge and invite more details.
Ask for at most one or two fields at a time. Never claim something was recorded unless it is listed as just recorded.
Keep it to two or three short sentences. Reply in %s.
`

type dialogueGeneratorOptions struct {
	lang                 string
	systemPrompt         string
	systemPromptTemplate string
	call                 structured.CallConfig
}

type GeneratorOption func(*dialogueGeneratorOptions)

func WithDialogueLang(lang string) GeneratorOption {
	return func(o *dialogueGeneratorOptions) {
		o.lang = lang
	}
}

// WithDialogueSystemPrompt overrides the system prompt used by ToolBasedDialogueGenerator.
func WithDialogueSystemPrompt(systemPrompt string) GeneratorOption {
	return func(o *dialogueGeneratorOptions) {
		o.systemPrompt = systemPrompt
	}
}

// WithDialogueSystemPromptTemplate overrides the system prompt template.
// If the template contains "%s", it will be formatted with the language.
func WithDialogueSystemPromptTemplate(systemPromptTemplate string) GeneratorOption {
	return func(o *dialogueGeneratorOptions) {
		o.systemPromptTemplate = systemPromptTemplate
	}
}

func WithDialogueCall(call structured.CallConfig) GeneratorOption {
	return func(o *dialogueGeneratorOptions) {
		o.call = call
	}
}

func NewToolBasedDialogueGenerator(chatModel model.ToolCallingChatModel, opts ...GeneratorOption) *ToolBasedDialogueGenerator {
	options := dialogueGeneratorOptions{
		lang:                 "English",
		systemPromptTemplate: DefaultDialogueSystemPromptTemplate,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.lang == "" {
		options.lang = "English"
	}
	return &ToolBasedDialogueGenerator{
		Lang:                 options.lang,
		systemPrompt:         options.systemPrompt,
		systemPromptTemplate: options.systemPromptTemplate,
		chatModel:            chatModel,
		call:                 options.call,
	}
}

func (g *ToolBasedDialogueGenerator) GenerateDialogue(ctx context.Context, req *types.ToolRequest) (string, error) {
	messages, err := g.buildDialoguePrompt(req)
	if err != nil {
		return "", fmt.Errorf("build dialogue prompt: %w", err)
	}

	ctx, cancel := g.call.WithDeadline(ctx)
	defer cancel()
	response, err := g.chatModel.Generate(ctx, messages, g.call.Options()...)
	if err != nil {
		return "", fmt.Errorf("LLM call failed: %w", err)
	}
	if response == nil {
		return "", fmt.Errorf("LLM returned no message")
	}
	return strings.TrimSpace(response.Content), nil
}

func (g *ToolBasedDialogueGenerator) buildDialoguePrompt(req *types.ToolRequest) ([]*schema.Message, error) {
	message, err := types.FormatToolRequest(req)
	if err != nil {
		return nil, fmt.Errorf("convert to prompt message failed: %w", err)
	}

	systemPrompt := g.systemPrompt
	if systemPrompt == "" {
		tpl := g.systemPromptTemplate
		if tpl == "" {
			tpl = DefaultDialogueSystemPromptTemplate
		}
		if strings.Contains(tpl, "%s") {
			systemPrompt = fmt.Sprintf(tpl, g.Lang)
		} else {
			systemPrompt = tpl
		}
	}

	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(message),
	}, nil
}
