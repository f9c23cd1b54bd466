package agent

import (
	"fmt"
	"sort"

	"github.com/tbxark/intakeagent/form"
	"github.com/tbxark/intakeagent/patch"
	"github.com/tbxark/intakeagent/types"
)

// SkippedValue is stored for a non-critical field the user chose to skip.
const SkippedValue = "N/A"

// Policy holds the controller thresholds.
type Policy struct {
	// NoProgressLimit is the number of silent turns before a directive prompt.
	NoProgressLimit int `json:"no_progress_limit"`
	// SkipAfter is the attempt count at which a skip request on a non-critical field is granted.
	SkipAfter int `json:"skip_after"`
	// ContextMessages is how many log messages are sent to the model.
	ContextMessages int `json:"context_messages"`
}

func DefaultPolicy() Policy {
	return Policy{NoProgressLimit: 3, SkipAfter: 2, ContextMessages: 3}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.NoProgressLimit <= 0 {
		p.NoProgressLimit = def.NoProgressLimit
	}
	if p.SkipAfter <= 0 {
		p.SkipAfter = def.SkipAfter
	}
	if p.ContextMessages < 0 {
		p.ContextMessages = def.ContextMessages
	}
	return p
}

// turnOutcome is what extraction and validation produced for one turn.
type turnOutcome struct {
	accepted  map[string]string
	issues    []types.FieldIssue
	extracted int
}

// skipOutcome applies the skip policy to the focus field.
func (p Policy) skipOutcome(st *State, focus form.Descriptor, input string) turnOutcome {
	out := turnOutcome{extracted: 1}
	switch {
	case focus.Critical:
		out.issues = []types.FieldIssue{{
			Field:  focus.Name,
			Value:  input,
			Reason: fmt.Sprintf("%s is required and can't be skipped", focus.Name),
		}}
	case st.Attempts[focus.Name]+1 >= p.SkipAfter:
		out.accepted = map[string]string{focus.Name: SkippedValue}
	default:
		out.issues = []types.FieldIssue{{
			Field:  focus.Name,
			Value:  input,
			Reason: fmt.Sprintf("if you really don't know the %s, say skip again and I'll mark it %s", focus.Name, SkippedValue),
		}}
	}
	return out
}

// decide updates the record and counters from a turn outcome and picks the next action.
func (p Policy) decide(st *State, s *form.Schema, out turnOutcome) (*Decision, error) {
	if st.Attempts == nil {
		st.Attempts = map[string]int{}
	}
	d := &Decision{Extracted: out.extracted, Issues: out.issues}

	if len(out.accepted) > 0 {
		userFields := make([]string, 0, len(s.Fields))
		for _, f := range s.UserFields() {
			userFields = append(userFields, f.Name)
		}
		record, err := patch.Merge(st.Record, out.accepted, userFields)
		if err != nil {
			return nil, fmt.Errorf("failed to merge accepted fields: %w", err)
		}
		st.Record = record
		for name := range out.accepted {
			delete(st.Attempts, name)
			d.Accepted = append(d.Accepted, name)
		}
		sort.Slice(d.Accepted, func(i, j int) bool {
			return fieldOrder(s, d.Accepted[i]) < fieldOrder(s, d.Accepted[j])
		})
		st.NoProgress = 0
	}
	for _, issue := range out.issues {
		st.Attempts[issue.Field]++
		st.NoProgress = 0
	}

	missing := s.Missing(st.Record)
	switch {
	case len(out.issues) > 0:
		d.Action = types.ActionCorrection
	case len(out.accepted) > 0 && len(missing) > 0:
		d.Action = types.ActionAckAndAsk
	case len(missing) == 0:
		d.Action = types.ActionReview
		st.Phase = types.PhaseReview
	case out.extracted == 0:
		st.NoProgress++
		if st.NoProgress >= p.NoProgressLimit {
			d.Action = types.ActionDirective
			st.NoProgress = 0
		} else {
			d.Action = types.ActionRedirect
		}
	default:
		d.Action = types.ActionGeneric
	}

	d.NextUp = form.Infos(missing)
	if d.Action != types.ActionReview {
		for _, f := range missing {
			if f.Critical && st.Attempts[f.Name] > 0 {
				d.Override = f.Name
				break
			}
		}
	}
	return d, nil
}

func fieldOrder(s *form.Schema, name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return len(s.Fields)
}
