package dialogue

import (
	"context"
	"log/slog"

	"github.com/tbxark/intakeagent/types"
)

// Composer turns a decision into reply text. It never fails.
type Composer struct {
	generator Generator
	local     *LocalDialogueGenerator
	logger    *slog.Logger
}

// NewComposer uses generator for free phrasing; nil means static text only.
func NewComposer(generator Generator, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{generator: generator, local: &LocalDialogueGenerator{}, logger: logger}
}

func (c *Composer) Compose(ctx context.Context, req *types.ToolRequest) string {
	switch req.Action {
	case types.ActionReview, types.ActionDirective:
		text, _ := c.local.GenerateDialogue(ctx, req)
		return text
	}
	if c.generator != nil {
		text, err := c.generator.GenerateDialogue(ctx, req)
		if err == nil && text != "" {
			return text
		}
		c.logger.Warn("dialogue generation failed, using static reply", "action", req.Action, "error", err)
	}
	text, err := c.local.GenerateDialogue(ctx, req)
	if err != nil || text == "" {
		return StaticFallback
	}
	return text
}
