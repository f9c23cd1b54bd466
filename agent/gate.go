package agent

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/tbxark/intakeagent/form"
	"github.com/tbxark/intakeagent/types"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	referenceLayout = "20060102-150405"
)

// Reference is the report reference shown to the user after submission.
func Reference(at time.Time) string {
	return at.Format(referenceLayout)
}

// Finalize returns a copy of record with every system field computed.
// The input record is left untouched so a failed save can be retried.
func Finalize(s *form.Schema, record types.Record, now time.Time) (types.Record, error) {
	for _, f := range s.SystemFields() {
		if record.Has(f.Name) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyFinalized, f.Name)
		}
	}
	if s.Filled(record) == 0 {
		return nil, ErrEmptyRecord
	}
	if missing := s.Missing(record); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrIncompleteRecord, missing[0].Name)
	}

	out := record.Clone()
	for _, f := range s.SystemFields() {
		if f.Compute == form.ComputeTimestamp {
			out[f.Name] = now.Format(timestampLayout)
		}
	}
	// The length covers every value present once the timestamp is written.
	inputLength := 0
	for _, value := range out {
		inputLength += utf8.RuneCountInString(value)
	}

	for _, f := range s.SystemFields() {
		switch f.Compute {
		case form.ComputeTimestamp:
		case form.ComputeInputLength:
			out[f.Name] = fmt.Sprint(inputLength)
		case form.ComputeConstant:
			out[f.Name] = f.Value
		case form.ComputeBlank:
			out[f.Name] = ""
		default:
			return nil, fmt.Errorf("field %s: unknown compute directive %q", f.Name, f.Compute)
		}
	}
	return out, nil
}
