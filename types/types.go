package types

import "github.com/cloudwego/eino/schema"

type Phase string

const (
	PhaseCollecting Phase = "collecting"
	PhaseReview     Phase = "review"
	PhaseSubmitted  Phase = "submitted"
)

type FormType string

const (
	FormComplaint FormType = "complaint"
	FormFeedback  FormType = "feedback"
)

func (f FormType) Valid() bool {
	return f == FormComplaint || f == FormFeedback
}

// Action is the controller's choice for the next reply.
type Action string

const (
	ActionCorrection Action = "correction"
	ActionAckAndAsk  Action = "ack_and_ask"
	ActionReview     Action = "review"
	ActionDirective  Action = "directive"
	ActionRedirect   Action = "redirect"
	ActionGeneric    Action = "generic"
	ActionUnlock     Action = "unlock"
)

// Record maps a field name to its value. An absent key is a null value.
type Record map[string]string

func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (r Record) Has(name string) bool {
	_, ok := r[name]
	return ok
}

type FieldInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Example     string `json:"example,omitempty"`
	Critical    bool   `json:"critical"`
}

// FieldIssue is a rejected candidate value and the reason shown to the user.
type FieldIssue struct {
	Field  string `json:"field"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

// ToolRequest is the prompt context shared by every model-backed component.
type ToolRequest struct {
	FormType  FormType
	Phase     Phase
	Action    Action
	Record    Record
	UserInput string
	Recent    []*schema.Message

	Scope         []FieldInfo
	ScopeSchema   string
	MissingFields []FieldInfo
	Issues        []FieldIssue
	Accepted      []string
	Locked        []string
}
