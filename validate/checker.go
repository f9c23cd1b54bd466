package validate

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/form"
	"github.com/tbxark/intakeagent/structured"
	"github.com/tbxark/intakeagent/types"
)

// CheckRequest is a value that already passed its format rule.
type CheckRequest struct {
	Field  form.Descriptor
	Value  string
	Record types.Record
}

type CheckResult struct {
	Valid      bool   `json:"valid" jsonschema:"required,description=Whether the value is plausible for the field"`
	Normalized string `json:"normalized,omitempty" jsonschema:"description=Cleaned-up value when valid (proper capitalization or spelling)"`
	Reason     string `json:"reason,omitempty" jsonschema:"description=Short explanation for the user when invalid"`
}

// Checker gives a second opinion on a value. An error means no verdict.
type Checker interface {
	Check(ctx context.Context, req *CheckRequest) (*CheckResult, error)
}

const (
	checkFieldToolName        = "check_field"
	checkFieldToolDescription = "Decide whether a value is plausible for a vehicle complaint or feedback field."
)

const defaultCheckSystemPrompt = `You double-check values collected for an intake record.
The value already passed basic format checks. Reject it only when it is clearly wrong for the field,
for example a vehicle make that does not exist or a model that the make never produced.
When valid, return the value with standard spelling and capitalization.
Call the '%s' tool with the verdict.`

type ToolBasedChecker struct {
	chain *structured.Chain[*CheckRequest, CheckResult]
}

func NewToolBasedChecker(chatModel model.ToolCallingChatModel, call structured.CallConfig) (*ToolBasedChecker, error) {
	systemPrompt := fmt.Sprintf(defaultCheckSystemPrompt, checkFieldToolName)
	chain, err := structured.NewChain[*CheckRequest, CheckResult](
		chatModel,
		func(ctx context.Context, req *CheckRequest) ([]*schema.Message, error) {
			record, err := types.FormatToolRequest(&types.ToolRequest{Record: req.Record})
			if err != nil {
				return nil, err
			}
			user := fmt.Sprintf("# Field:\n%s (%s)\n\n# Value:\n%s\n\n%s", req.Field.Name, req.Field.Description, req.Value, record)
			return []*schema.Message{
				schema.SystemMessage(systemPrompt),
				schema.UserMessage(user),
			}, nil
		},
		checkFieldToolName,
		checkFieldToolDescription,
		call,
	)
	if err != nil {
		return nil, err
	}
	return &ToolBasedChecker{chain: chain}, nil
}

func (c *ToolBasedChecker) Check(ctx context.Context, req *CheckRequest) (*CheckResult, error) {
	res, err := c.chain.Invoke(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("LLM call failed: %w", err)
	}
	if res == nil {
		return nil, fmt.Errorf("empty verdict returned by %s", checkFieldToolName)
	}
	if !res.Valid && res.Reason == "" {
		return nil, fmt.Errorf("rejection without reason returned by %s", checkFieldToolName)
	}
	return res, nil
}
