package testcases

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/intakeagent/agent"
	"github.com/tbxark/intakeagent/types"
)

var errUnavailable = errors.New("model unavailable")

func failing(string) (string, error) {
	return "", errUnavailable
}

// TestModelOutageKeepsConversationGoing runs turns while every model call fails.
func TestModelOutageKeepsConversationGoing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fake := NewScriptedModel().
		OnTool("extract_fields", failing).
		OnTool("check_field", failing).
		OnText(failing)
	sessions, _ := newTestSessions(t, fake, agent.DefaultModelConfig())
	_, err := sessions.Start(ctx, "outage-1", types.FormComplaint)
	require.NoError(t, err)

	for i, want := range []types.Action{types.ActionRedirect, types.ActionRedirect, types.ActionDirective} {
		resp, err := sessions.SubmitTurn(ctx, "outage-1", "hello?")
		require.NoError(t, err, "turn %d", i+1)
		assert.Equal(t, want, resp.Decision.Action, "turn %d", i+1)
		assert.NotEmpty(t, resp.Message, "turn %d", i+1)
		assert.Empty(t, resp.State.Record, "turn %d", i+1)
	}
}

// TestCheckerFailureFailsOpen accepts a well-formed value when the checker errors.
func TestCheckerFailureFailsOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fake := NewScriptedModel().
		QueueTool("extract_fields", `{"fields":[{"name":"Make","value":"Toyota"},{"name":"Model_Year","value":"1850"}]}`).
		OnTool("check_field", failing).
		OnText(reply("ok"))
	sessions, _ := newTestSessions(t, fake, agent.DefaultModelConfig())
	_, err := sessions.Start(ctx, "open-1", types.FormComplaint)
	require.NoError(t, err)

	resp, err := sessions.SubmitTurn(ctx, "open-1", "a Toyota from 1850")
	require.NoError(t, err)
	assert.Equal(t, "Toyota", resp.State.Record["Make"])
	assert.False(t, resp.State.Record.Has("Model_Year"))
	require.Len(t, resp.Decision.Issues, 1)
	assert.Equal(t, "Model_Year", resp.Decision.Issues[0].Field)
}

// TestModelValidationDisabled never calls the checker.
func TestModelValidationDisabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fake := NewScriptedModel().
		QueueTool("extract_fields", `{"fields":[{"name":"Make","value":"Ford"}]}`).
		OnTool("check_field", acceptAll).
		OnText(reply("ok"))
	cfg := agent.DefaultModelConfig()
	cfg.ModelValidation = false
	sessions, _ := newTestSessions(t, fake, cfg)
	_, err := sessions.Start(ctx, "nocheck-1", types.FormComplaint)
	require.NoError(t, err)

	resp, err := sessions.SubmitTurn(ctx, "nocheck-1", "Ford")
	require.NoError(t, err)
	assert.Equal(t, "Ford", resp.State.Record["Make"])
	assert.Zero(t, fake.Calls("check_field"))
}
