package testcases

import (
	"context"
	"testing"

	"github.com/tbxark/intakeagent/agent"
	"github.com/tbxark/intakeagent/types"
)

// TestLiveComplaint talks to a real model. Results depend on the model, so it only logs.
func TestLiveComplaint(t *testing.T) {
	t.Parallel()
	chatModel := InitChatModel(t)
	ctx := context.Background()
	sessions, _ := newTestSessions(t, chatModel, agent.DefaultModelConfig())
	if _, err := sessions.Start(ctx, "live-1", types.FormComplaint); err != nil {
		t.Fatalf("start: %v", err)
	}

	for _, input := range []string{
		"Hi, my 2019 Honda Civic's brakes failed on the freeway in Los Angeles, CA.",
		"I was going about 45 mph, nobody was hurt and there was no crash or fire.",
		"VIN is 1HGCM82633A004352, it has 42000 miles. It happened on 2024-03-15.",
	} {
		resp, err := sessions.SubmitTurn(ctx, "live-1", input)
		if err != nil {
			t.Fatalf("turn failed: %v", err)
		}
		t.Logf("user: %s", input)
		t.Logf("assistant (%s): %s", resp.Decision.Action, resp.Message)
		t.Logf("record: %v", resp.State.Record)
	}
}
