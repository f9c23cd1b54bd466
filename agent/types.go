package agent

import (
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/intakeagent/types"
	"github.com/tbxark/intakeagent/validate"
)

// State is everything one session owns.
type State struct {
	ID            string            `json:"id"`
	FormType      types.FormType    `json:"form_type"`
	Phase         types.Phase       `json:"phase"`
	Record        types.Record      `json:"record"`
	Locks         validate.LockSet  `json:"locks,omitempty"`
	Attempts      map[string]int    `json:"attempts,omitempty"`
	NoProgress    int               `json:"no_progress"`
	Log           []*schema.Message `json:"log,omitempty"`
	PendingUnlock string            `json:"pending_unlock,omitempty"`
	Reference     string            `json:"reference,omitempty"`
	LastDecision  *Decision         `json:"last_decision,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func newState(id string, formType types.FormType, createdAt time.Time) *State {
	return &State{
		ID:        id,
		FormType:  formType,
		Phase:     types.PhaseCollecting,
		Record:    types.Record{},
		Locks:     validate.LockSet{},
		Attempts:  map[string]int{},
		CreatedAt: createdAt,
	}
}

// Clone copies the mutable parts of the state. Log messages are shared; they are never edited.
func (s *State) Clone() *State {
	out := *s
	out.Record = s.Record.Clone()
	out.Locks = make(validate.LockSet, len(s.Locks))
	for k, v := range s.Locks {
		out.Locks[k] = v
	}
	out.Attempts = make(map[string]int, len(s.Attempts))
	for k, v := range s.Attempts {
		out.Attempts[k] = v
	}
	out.Log = append([]*schema.Message(nil), s.Log...)
	if s.LastDecision != nil {
		d := *s.LastDecision
		out.LastDecision = &d
	}
	return &out
}

// Decision records what the controller chose on the last collecting turn.
type Decision struct {
	Action    types.Action       `json:"action"`
	Accepted  []string           `json:"accepted,omitempty"`
	Issues    []types.FieldIssue `json:"issues,omitempty"`
	NextUp    []types.FieldInfo  `json:"next_up,omitempty"`
	Extracted int                `json:"extracted"`
	// Override names the critical field whose fixed reminder replaced the reply.
	Override string `json:"override,omitempty"`
}

type Response struct {
	Message   string            `json:"message"`
	State     *State            `json:"-"`
	Decision  *Decision         `json:"decision,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// View is the session snapshot exposed to a UI.
type View struct {
	ID         string            `json:"id"`
	FormType   types.FormType    `json:"form_type"`
	Phase      types.Phase       `json:"phase"`
	Record     types.Record      `json:"record"`
	Log        []Turn            `json:"log"`
	Completion float64           `json:"completion"`
	Missing    []types.FieldInfo `json:"missing"`
	Locked     []string          `json:"locked"`
	Reference  string            `json:"reference,omitempty"`
	Summary    string            `json:"summary,omitempty"`
}

// Submission is a finalized record handed to the persistence collaborator.
type Submission struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	FormType    types.FormType `json:"form_type"`
	Reference   string         `json:"reference"`
	Record      types.Record   `json:"record"`
	SubmittedAt time.Time      `json:"submitted_at"`
}
