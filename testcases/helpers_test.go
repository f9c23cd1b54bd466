package testcases

import (
	"io"
	"log/slog"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/intakeagent/agent"
	"github.com/tbxark/intakeagent/store"
)

const validVIN = "1HGCM82633A004352"

func newTestSessions(t *testing.T, chatModel model.ToolCallingChatModel, cfg agent.ModelConfig) (*agent.Sessions, *store.MemoryRecorder) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := store.NewMemoryRecorder()
	flow, err := agent.NewToolBasedIntakeFlow(chatModel, rec, cfg, agent.WithLogger(logger))
	require.NoError(t, err)
	return agent.NewSessions(flow, agent.NewMemoryStateReadWriter(), logger), rec
}

func acceptAll(string) (string, error) {
	return `{"valid":true}`, nil
}

func reply(text string) Responder {
	return func(string) (string, error) { return text, nil }
}
