// Package store persists submitted records and session snapshots.
package store

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/tbxark/intakeagent/agent"
	"github.com/tbxark/intakeagent/form"
)

// encodeSubmission returns the record as a JSON object and as a JSON array in
// the shared column layout.
func encodeSubmission(sub *agent.Submission) (recordJSON, rowJSON string, err error) {
	recordJSON, err = sonic.MarshalString(sub.Record)
	if err != nil {
		return "", "", fmt.Errorf("marshal record: %w", err)
	}
	rowJSON, err = sonic.MarshalString(form.Row(sub.Record))
	if err != nil {
		return "", "", fmt.Errorf("marshal row: %w", err)
	}
	return recordJSON, rowJSON, nil
}
