package intent

import (
	"context"

	"github.com/tbxark/intakeagent/types"
)

type Intent string

const (
	Affirm  Intent = "affirm"
	Decline Intent = "decline"
	Skip    Intent = "skip"
	None    Intent = "none"
)

// Recognizer classifies the latest user message.
type Recognizer interface {
	RecognizeIntent(ctx context.Context, req *types.ToolRequest) (Intent, error)
}
