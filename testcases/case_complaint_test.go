package testcases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/intakeagent/agent"
	"github.com/tbxark/intakeagent/types"
)

// TestComplaintIntake fills a complaint over two turns, reviews it and submits it.
func TestComplaintIntake(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fake := NewScriptedModel().
		QueueTool("extract_fields",
			`{"fields":[{"name":"Make","value":"honda"},{"name":"Model","value":"Civic"},{"name":"Model_Year","value":2019},{"name":"VIN","value":"`+validVIN+`"}]}`,
			`{"fields":[
				{"name":"City","value":"Los Angeles"},{"name":"State","value":"California"},
				{"name":"Speed","value":45},{"name":"Crash","value":false},{"name":"Fire","value":false},
				{"name":"Injured","value":0},{"name":"Deaths","value":0},
				{"name":"Description","value":"The brakes stopped responding on the freeway"},
				{"name":"Component","value":"Brakes"},{"name":"Mileage","value":42000},
				{"name":"Date_Complaint","value":"2024-03-15"}]}`,
		).
		OnTool("check_field", func(string) (string, error) {
			return `{"valid":true}`, nil
		}).
		OnText(reply("Thanks, where did this happen?"))
	sessions, rec := newTestSessions(t, fake, agent.DefaultModelConfig())

	resp, err := sessions.Start(ctx, "complaint-1", types.FormComplaint)
	require.NoError(t, err)
	assert.Equal(t, agent.Greeting(types.FormComplaint), resp.Message)

	resp, err = sessions.SubmitTurn(ctx, "complaint-1", "My 2019 Honda Civic, VIN "+validVIN)
	require.NoError(t, err)
	assert.Equal(t, types.ActionAckAndAsk, resp.Decision.Action)
	assert.Equal(t, []string{"Make", "Model", "Model_Year", "VIN"}, resp.Decision.Accepted)
	assert.Equal(t, "Thanks, where did this happen?", resp.Message)

	resp, err = sessions.SubmitTurn(ctx, "complaint-1", "In LA going 45, brakes failed, no crash, nobody hurt, 42k miles, March 15 2024")
	require.NoError(t, err)
	assert.Equal(t, types.ActionReview, resp.Decision.Action)
	assert.Equal(t, types.PhaseReview, resp.State.Phase)
	assert.Equal(t, "CA", resp.State.Record["State"])
	assert.Equal(t, "No", resp.State.Record["Crash"])

	view, err := sessions.View(ctx, "complaint-1")
	require.NoError(t, err)
	assert.Contains(t, view.Summary, "Civic")
	assert.InDelta(t, 1.0, view.Completion, 0.001)

	resp, err = sessions.SubmitRecord(ctx, "complaint-1")
	require.NoError(t, err)
	assert.False(t, resp.Retryable)
	assert.Equal(t, types.PhaseSubmitted, resp.State.Phase)
	assert.NotEmpty(t, resp.Metadata["reference"])

	subs := rec.Submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "complaint-1", subs[0].SessionID)
	assert.NotEmpty(t, subs[0].Record["Timestamp"])
	assert.NotEmpty(t, subs[0].Record["Input_Length"])
	assert.Equal(t, 2, fake.Calls("extract_fields"))
	assert.Positive(t, fake.Calls("check_field"))
	t.Logf("final record: %v", subs[0].Record)
}

// TestLockedFieldUnlock changes a locked VIN, confirms the unlock and supplies a new one.
func TestLockedFieldUnlock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	const newVIN = "2T1BURHE0JC012345"
	fake := NewScriptedModel().
		QueueTool("extract_fields",
			`{"fields":[{"name":"Make","value":"Honda"},{"name":"VIN","value":"`+validVIN+`"}]}`,
			`{"fields":[{"name":"VIN","value":"`+newVIN+`"}]}`,
			`{"fields":[{"name":"VIN","value":"`+newVIN+`"}]}`,
		).
		OnTool("check_field", acceptAll).
		OnText(reply("Got it."))
	sessions, _ := newTestSessions(t, fake, agent.DefaultModelConfig())
	_, err := sessions.Start(ctx, "lock-1", types.FormComplaint)
	require.NoError(t, err)

	_, err = sessions.SubmitTurn(ctx, "lock-1", "Honda, VIN "+validVIN)
	require.NoError(t, err)

	resp, err := sessions.SubmitTurn(ctx, "lock-1", "actually the VIN is "+newVIN)
	require.NoError(t, err)
	assert.Equal(t, types.ActionCorrection, resp.Decision.Action)
	require.Len(t, resp.Decision.Issues, 1)
	assert.Equal(t, "VIN", resp.Decision.Issues[0].Field)
	assert.Equal(t, validVIN, resp.State.Record["VIN"])

	resp, err = sessions.SubmitTurn(ctx, "lock-1", "yes")
	require.NoError(t, err)
	assert.Equal(t, types.ActionUnlock, resp.Decision.Action)
	assert.False(t, resp.State.Record.Has("VIN"))
	assert.Equal(t, 2, fake.Calls("extract_fields"))

	resp, err = sessions.SubmitTurn(ctx, "lock-1", newVIN)
	require.NoError(t, err)
	assert.Equal(t, newVIN, resp.State.Record["VIN"])
	assert.Contains(t, resp.Decision.Accepted, "VIN")
}

// TestModelRejectionOverridesReply shows the critical reminder when the checker rejects a make.
func TestModelRejectionOverridesReply(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fake := NewScriptedModel().
		QueueTool("extract_fields", `{"fields":[{"name":"Make","value":"Hondaa"}]}`).
		OnTool("check_field", reply(`{"valid":false,"reason":"Hondaa is not a vehicle make"}`)).
		OnText(reply("composed text"))
	sessions, _ := newTestSessions(t, fake, agent.DefaultModelConfig())
	_, err := sessions.Start(ctx, "reject-1", types.FormComplaint)
	require.NoError(t, err)

	resp, err := sessions.SubmitTurn(ctx, "reject-1", "it's a Hondaa")
	require.NoError(t, err)
	assert.Equal(t, types.ActionCorrection, resp.Decision.Action)
	assert.Equal(t, "Make", resp.Decision.Override)
	assert.NotEqual(t, "composed text", resp.Message)
	assert.Contains(t, resp.Message, "Hondaa is not a vehicle make")
	assert.False(t, resp.State.Record.Has("Make"))
}
