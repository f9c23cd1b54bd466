package extract

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/structured"
	"github.com/tbxark/intakeagent/types"
)

const (
	extractFieldsToolName        = "extract_fields"
	extractFieldsToolDescription = "Report the record fields the user mentioned in their latest message."
)

// DefaultExtractSystemPrompt may contain a single "%s" placeholder for the tool name.
const DefaultExtractSystemPrompt = `You extract structured data for an intake record from a chat message.

Rules:
- Only report fields listed under "Fields in scope". Never invent other field names.
- Only report values the user actually stated or that follow directly from what they said (for example the brand of a named model).
- Leave out anything not mentioned. Never report empty, null or placeholder values.
- Use the record JSON for context but do not repeat values that are already filled.
- Counts such as injuries or deaths: "no injuries" means 0.
- Dates use YYYY-MM-DD. State codes use the 2-letter abbreviation.

Call the '%s' tool with the result.`

type ToolBasedExtractor struct {
	chain *structured.Chain[*types.ToolRequest, extractFieldsArgs]
}

func NewToolBasedExtractor(chatModel model.ToolCallingChatModel, call structured.CallConfig) (*ToolBasedExtractor, error) {
	systemPrompt := fmt.Sprintf(DefaultExtractSystemPrompt, extractFieldsToolName)
	chain, err := structured.NewChain[*types.ToolRequest, extractFieldsArgs](
		chatModel,
		func(ctx context.Context, req *types.ToolRequest) ([]*schema.Message, error) {
			message, err := types.FormatToolRequest(req)
			if err != nil {
				return nil, fmt.Errorf("convert to prompt message failed: %w", err)
			}
			return []*schema.Message{
				schema.SystemMessage(systemPrompt),
				schema.UserMessage(message),
			}, nil
		},
		extractFieldsToolName,
		extractFieldsToolDescription,
		call,
	)
	if err != nil {
		return nil, err
	}
	return &ToolBasedExtractor{chain: chain}, nil
}

func (e *ToolBasedExtractor) Extract(ctx context.Context, req *types.ToolRequest) (Result, error) {
	args, err := e.chain.Invoke(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("LLM call failed: %w", err)
	}
	out := Result{}
	if args == nil {
		return out, nil
	}
	for _, f := range args.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			continue
		}
		if v := stringify(f.Value); v != "" {
			out[name] = v
		}
	}
	return out, nil
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(val)
		switch strings.ToLower(s) {
		case "null", "n/a", "unknown":
			return ""
		}
		return s
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
