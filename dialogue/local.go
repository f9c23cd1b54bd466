package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/tbxark/intakeagent/types"
)

// StaticFallback is the reply used when no generator produced text.
const StaticFallback = "Thanks! Let me know if you have any other details to share."

const reviewMessage = "Perfect! I have all the information I need. Please review the details below and submit when you're ready."

// MaxDirectiveFields caps how many missing fields a directive lists.
const MaxDirectiveFields = 3

func ReviewMessage() string {
	return reviewMessage
}

func describe(f types.FieldInfo) string {
	if f.Description == "" {
		return f.Name
	}
	return f.Description
}

// DirectiveMessage lists exactly what is still needed.
func DirectiveMessage(missing []types.FieldInfo) string {
	if len(missing) > MaxDirectiveFields {
		missing = missing[:MaxDirectiveFields]
	}
	var sb strings.Builder
	sb.WriteString("Let me be more specific. Here's exactly what I still need:\n")
	var examples []string
	for _, f := range missing {
		sb.WriteString(fmt.Sprintf("• **%s**: %s\n", f.Name, describe(f)))
		if f.Example != "" {
			examples = append(examples, fmt.Sprintf("%s: %s", f.Name, f.Example))
		}
	}
	if len(examples) > 0 {
		sb.WriteString(fmt.Sprintf("\nFor example: \"%s\"", strings.Join(examples, ", ")))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// CriticalReminder is the fixed escalation for a required field that keeps failing.
func CriticalReminder(field types.FieldInfo, issues []types.FieldIssue) string {
	msg := fmt.Sprintf("⚠️ I still need the **%s** (%s). This is required to proceed.", field.Name, describe(field))
	if len(issues) > 0 {
		msg += "\n" + issueLines(issues)
	}
	return msg
}

func UnlockMessage(field types.FieldInfo) string {
	return fmt.Sprintf("Okay, %s is unlocked. What is the correct value? (%s)", field.Name, describe(field))
}

func issueLines(issues []types.FieldIssue) string {
	lines := make([]string, 0, len(issues))
	for _, is := range issues {
		lines = append(lines, fmt.Sprintf("• %s: %s", is.Field, is.Reason))
	}
	return strings.Join(lines, "\n")
}

// LocalDialogueGenerator produces static text for every action.
type LocalDialogueGenerator struct{}

func (g *LocalDialogueGenerator) GenerateDialogue(ctx context.Context, req *types.ToolRequest) (string, error) {
	next := ""
	if len(req.MissingFields) > 0 {
		next = describe(req.MissingFields[0])
	}
	switch req.Action {
	case types.ActionCorrection:
		msg := "I couldn't accept part of that:\n" + issueLines(req.Issues)
		return msg + "\nCould you double-check and send it again?", nil
	case types.ActionAckAndAsk:
		ack := "Got it, thanks!"
		if len(req.Accepted) > 0 {
			ack = fmt.Sprintf("Got it, I've noted the %s.", strings.Join(req.Accepted, ", "))
		}
		if next == "" {
			return ack, nil
		}
		return fmt.Sprintf("%s Next, could you tell me %s?", ack, next), nil
	case types.ActionReview:
		return reviewMessage, nil
	case types.ActionDirective:
		return DirectiveMessage(req.MissingFields), nil
	case types.ActionRedirect:
		if next == "" {
			return fmt.Sprintf("I'm here to help with your %s. What else can you tell me?", req.FormType), nil
		}
		return fmt.Sprintf("I'm here to help with your %s. Could you tell me %s?", req.FormType, next), nil
	default:
		return StaticFallback, nil
	}
}

type FailbackDialogueGenerator struct {
	generators []Generator
}

func NewFailbackDialogueGenerator(generators ...Generator) *FailbackDialogueGenerator {
	return &FailbackDialogueGenerator{generators: generators}
}

func (g *FailbackDialogueGenerator) GenerateDialogue(ctx context.Context, req *types.ToolRequest) (string, error) {
	var lastErr error
	for _, generator := range g.generators {
		text, err := generator.GenerateDialogue(ctx, req)
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text), nil
		}
		if err == nil {
			err = fmt.Errorf("empty reply")
		}
		lastErr = err
	}
	return "", fmt.Errorf("all dialogue generators failed: %w", lastErr)
}
