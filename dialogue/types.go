package dialogue

import (
	"context"

	"github.com/tbxark/intakeagent/types"
)

// Generator phrases the controller's decision as a reply. It must not change state.
type Generator interface {
	GenerateDialogue(ctx context.Context, req *types.ToolRequest) (string, error)
}
