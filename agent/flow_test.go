package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/intakeagent/dialogue"
	"github.com/tbxark/intakeagent/extract"
	"github.com/tbxark/intakeagent/form"
	"github.com/tbxark/intakeagent/types"
	"github.com/tbxark/intakeagent/validate"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const validVIN = "1HGCM82633A004352"

// queueExtractor returns queued results in order; a nil entry simulates a model failure.
type queueExtractor struct {
	mu      sync.Mutex
	results []extract.Result
	reqs    []*types.ToolRequest
}

func (q *queueExtractor) push(results ...extract.Result) {
	q.mu.Lock()
	q.results = append(q.results, results...)
	q.mu.Unlock()
}

func (q *queueExtractor) Extract(ctx context.Context, req *types.ToolRequest) (extract.Result, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reqs = append(q.reqs, req)
	if len(q.results) == 0 {
		return extract.Result{}, nil
	}
	next := q.results[0]
	q.results = q.results[1:]
	if next == nil {
		return nil, errors.New("model unavailable")
	}
	return next, nil
}

func (q *queueExtractor) lastRequest() *types.ToolRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.reqs) == 0 {
		return nil
	}
	return q.reqs[len(q.reqs)-1]
}

// flakyRecorder fails the first failures calls.
type flakyRecorder struct {
	mu       sync.Mutex
	failures int
	subs     []*Submission
}

func (r *flakyRecorder) Record(ctx context.Context, sub *Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return errors.New("sheet unavailable")
	}
	r.subs = append(r.subs, sub)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFlow(t *testing.T, ext extract.Extractor, rec Recorder, opts ...Option) *IntakeFlow {
	t.Helper()
	if rec == nil {
		rec = &flakyRecorder{}
	}
	base := []Option{WithClock(func() time.Time { return fixedNow }), WithLogger(discardLogger())}
	flow, err := NewIntakeFlow(Components{
		Extractors: map[types.FormType]extract.Extractor{
			types.FormComplaint: ext,
			types.FormFeedback:  ext,
		},
		Recorder: rec,
	}, append(base, opts...)...)
	require.NoError(t, err)
	return flow
}

func completeComplaint() types.Record {
	return types.Record{
		"Make":           "Honda",
		"Model":          "Civic",
		"Model_Year":     "2019",
		"VIN":            validVIN,
		"City":           "Los Angeles",
		"State":          "CA",
		"Speed":          "45",
		"Crash":          "No",
		"Fire":           "No",
		"Injured":        "0",
		"Deaths":         "0",
		"Description":    "The brakes stopped responding on the freeway",
		"Component":      "Brakes",
		"Mileage":        "42000",
		"Date_Complaint": "2024-03-15",
	}
}

func newComplaintState(t *testing.T, flow *IntakeFlow) *State {
	t.Helper()
	st, err := flow.NewState("s-1", types.FormComplaint)
	require.NoError(t, err)
	return st
}

func TestNewIntakeFlowRequiresCollaborators(t *testing.T) {
	_, err := NewIntakeFlow(Components{Extractors: map[types.FormType]extract.Extractor{}})
	require.Error(t, err)
	_, err = NewIntakeFlow(Components{
		Extractors: map[types.FormType]extract.Extractor{types.FormComplaint: &queueExtractor{}},
		Recorder:   &flakyRecorder{},
	})
	require.Error(t, err)
}

func TestPartialExtractionStaysCollecting(t *testing.T) {
	ext := &queueExtractor{}
	ext.push(extract.Result{
		"Make": "Honda", "Model": "Civic", "Model_Year": "2019", "Component": "Brakes",
		"City": "Los Angeles", "State": "CA", "Injured": "0",
	})
	flow := newTestFlow(t, ext, nil)
	st := newComplaintState(t, flow)
	before := len(form.MustLoad(types.FormComplaint).Missing(st.Record))

	resp, err := flow.SubmitTurn(context.Background(), st, "2019 Honda Civic, brakes failed, Los Angeles CA, no injuries")
	require.NoError(t, err)

	assert.Equal(t, types.PhaseCollecting, st.Phase)
	assert.Equal(t, types.ActionAckAndAsk, resp.Decision.Action)
	assert.Equal(t, []string{"Make", "Model", "Model_Year", "City", "State", "Injured", "Component"}, resp.Decision.Accepted)
	for k, v := range map[string]string{"Make": "Honda", "Model": "Civic", "Model_Year": "2019", "City": "Los Angeles", "State": "CA", "Injured": "0", "Component": "Brakes"} {
		assert.Equal(t, v, st.Record[k], k)
	}
	missing := form.MustLoad(types.FormComplaint).Missing(st.Record)
	assert.Equal(t, before-7, len(missing))
	assert.False(t, st.Record.Has("Description"))
	assert.False(t, st.Record.Has("VIN"))
	assert.Equal(t, 0, st.NoProgress)
	require.Len(t, st.Log, 2)
	assert.Equal(t, resp.Message, st.Log[1].Content)

	scope := ext.lastRequest().Scope
	assert.Len(t, scope, before)
	assert.NotEmpty(t, ext.lastRequest().ScopeSchema)
}

func TestInvalidVINThreeTimes(t *testing.T) {
	ext := &queueExtractor{}
	flow := newTestFlow(t, ext, nil)
	st := newComplaintState(t, flow)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		ext.push(extract.Result{"VIN": "1HGCM82633A00435"})
		resp, err := flow.SubmitTurn(ctx, st, "my vin is 1HGCM82633A00435")
		require.NoError(t, err)
		assert.Equal(t, types.ActionCorrection, resp.Decision.Action)
		assert.Equal(t, i, st.Attempts["VIN"])
		assert.Contains(t, resp.Message, "17 characters")
		assert.Contains(t, resp.Message, "I still need the **VIN**")
		assert.False(t, st.Record.Has("VIN"))
		assert.False(t, st.Locks.Has("VIN"))
	}
}

func TestNoProgressCounter(t *testing.T) {
	ext := &queueExtractor{}
	flow := newTestFlow(t, ext, nil)
	st := newComplaintState(t, flow)
	ctx := context.Background()

	// A failing extractor counts as an empty turn.
	ext.push(extract.Result{}, nil)

	resp, err := flow.SubmitTurn(ctx, st, "hello")
	require.NoError(t, err)
	assert.Equal(t, types.ActionRedirect, resp.Decision.Action)
	assert.Equal(t, 1, st.NoProgress)

	resp, err = flow.SubmitTurn(ctx, st, "how are you")
	require.NoError(t, err)
	assert.Equal(t, types.ActionRedirect, resp.Decision.Action)
	assert.Equal(t, 2, st.NoProgress)

	resp, err = flow.SubmitTurn(ctx, st, "nice weather")
	require.NoError(t, err)
	assert.Equal(t, types.ActionDirective, resp.Decision.Action)
	assert.Equal(t, 0, st.NoProgress)
	assert.Contains(t, resp.Message, "Here's exactly what I still need")
	assert.Equal(t, dialogue.MaxDirectiveFields, strings.Count(resp.Message, "• **"))

	// A rejection is progress.
	resp, err = flow.SubmitTurn(ctx, st, "hmm")
	require.NoError(t, err)
	assert.Equal(t, 1, st.NoProgress)
	ext.push(extract.Result{"State": "ZZ"})
	_, err = flow.SubmitTurn(ctx, st, "state ZZ")
	require.NoError(t, err)
	assert.Equal(t, 0, st.NoProgress)
}

func TestNoProgressLimitFromPolicy(t *testing.T) {
	ext := &queueExtractor{}
	flow := newTestFlow(t, ext, nil, WithPolicy(Policy{NoProgressLimit: 1}))
	st := newComplaintState(t, flow)
	resp, err := flow.SubmitTurn(context.Background(), st, "hello")
	require.NoError(t, err)
	assert.Equal(t, types.ActionDirective, resp.Decision.Action)
}

func TestCriticalOverridePersistsUntilFilled(t *testing.T) {
	ext := &queueExtractor{}
	flow := newTestFlow(t, ext, nil)
	st := newComplaintState(t, flow)
	ctx := context.Background()

	ext.push(extract.Result{"VIN": "123"})
	resp, err := flow.SubmitTurn(ctx, st, "vin 123")
	require.NoError(t, err)
	assert.Equal(t, "VIN", resp.Decision.Override)

	ext.push(extract.Result{"City": "Austin"})
	resp, err = flow.SubmitTurn(ctx, st, "it was in Austin")
	require.NoError(t, err)
	assert.Equal(t, types.ActionAckAndAsk, resp.Decision.Action)
	assert.Equal(t, "VIN", resp.Decision.Override)
	assert.True(t, strings.HasPrefix(resp.Message, "⚠️ I still need the **VIN**"))
	assert.Equal(t, "Austin", st.Record["City"])

	resp, err = flow.SubmitTurn(ctx, st, "nothing")
	require.NoError(t, err)
	assert.Equal(t, types.ActionRedirect, resp.Decision.Action)
	assert.Equal(t, "VIN", resp.Decision.Override)

	ext.push(extract.Result{"VIN": validVIN})
	resp, err = flow.SubmitTurn(ctx, st, "vin "+validVIN)
	require.NoError(t, err)
	assert.Empty(t, resp.Decision.Override)
	assert.NotContains(t, resp.Message, "I still need the **VIN**")
	assert.Zero(t, st.Attempts["VIN"])
}

func TestLockedFieldRequiresUnlock(t *testing.T) {
	ext := &queueExtractor{}
	flow := newTestFlow(t, ext, nil)
	st := newComplaintState(t, flow)
	ctx := context.Background()

	ext.push(extract.Result{"VIN": validVIN})
	_, err := flow.SubmitTurn(ctx, st, "vin "+validVIN)
	require.NoError(t, err)
	require.True(t, st.Locks.Has("VIN"))

	ext.push(extract.Result{"VIN": "2HGCM82633A004352"})
	resp, err := flow.SubmitTurn(ctx, st, "actually it's 2HGCM82633A004352")
	require.NoError(t, err)
	assert.Contains(t, resp.Message, validate.LockedMessage("VIN"))
	assert.Equal(t, validVIN, st.Record["VIN"])
	assert.Equal(t, "VIN", st.PendingUnlock)
	assert.Contains(t, ext.lastRequest().Locked, "VIN")

	// Declining keeps the lock and processes the turn normally.
	_, err = flow.SubmitTurn(ctx, st, "no")
	require.NoError(t, err)
	assert.Empty(t, st.PendingUnlock)
	assert.True(t, st.Locks.Has("VIN"))

	ext.push(extract.Result{"VIN": "2HGCM82633A004352"})
	_, err = flow.SubmitTurn(ctx, st, "it's 2HGCM82633A004352")
	require.NoError(t, err)
	require.Equal(t, "VIN", st.PendingUnlock)

	resp, err = flow.SubmitTurn(ctx, st, "yes")
	require.NoError(t, err)
	assert.Equal(t, types.ActionUnlock, resp.Decision.Action)
	assert.False(t, st.Locks.Has("VIN"))
	assert.False(t, st.Record.Has("VIN"))
	assert.Zero(t, st.Attempts["VIN"])

	ext.push(extract.Result{"VIN": "2HGCM82633A004352"})
	_, err = flow.SubmitTurn(ctx, st, "2HGCM82633A004352")
	require.NoError(t, err)
	assert.Equal(t, "2HGCM82633A004352", st.Record["VIN"])
	assert.True(t, st.Locks.Has("VIN"))
}

func TestSkipPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("critical", func(t *testing.T) {
		flow := newTestFlow(t, &queueExtractor{}, nil)
		st := newComplaintState(t, flow)
		resp, err := flow.SubmitTurn(ctx, st, "skip")
		require.NoError(t, err)
		assert.Equal(t, types.ActionCorrection, resp.Decision.Action)
		assert.Contains(t, resp.Message, "can't be skipped")
		assert.False(t, st.Record.Has("Make"))
		assert.Equal(t, 1, st.Attempts["Make"])
	})

	t.Run("optional", func(t *testing.T) {
		flow := newTestFlow(t, &queueExtractor{}, nil)
		st := newComplaintState(t, flow)
		st.Record = types.Record{"Make": "Honda", "Model": "Civic", "Model_Year": "2019", "VIN": validVIN}

		resp, err := flow.SubmitTurn(ctx, st, "I don't know")
		require.NoError(t, err)
		assert.Equal(t, types.ActionCorrection, resp.Decision.Action)
		assert.False(t, st.Record.Has("City"))

		resp, err = flow.SubmitTurn(ctx, st, "skip")
		require.NoError(t, err)
		assert.Equal(t, SkippedValue, st.Record["City"])
		assert.Equal(t, types.ActionAckAndAsk, resp.Decision.Action)
		assert.Zero(t, st.Attempts["City"])
	})
}

func TestCompletingRecordTransitionsToReview(t *testing.T) {
	ext := &queueExtractor{}
	flow := newTestFlow(t, ext, nil)
	st := newComplaintState(t, flow)
	ctx := context.Background()
	st.Record = completeComplaint()
	delete(st.Record, "Mileage")

	ext.push(extract.Result{"Mileage": "42,000 miles"})
	resp, err := flow.SubmitTurn(ctx, st, "about 42,000 miles")
	require.NoError(t, err)
	assert.Equal(t, types.ActionReview, resp.Decision.Action)
	assert.Equal(t, types.PhaseReview, st.Phase)
	assert.Equal(t, dialogue.ReviewMessage(), resp.Message)
	assert.Equal(t, "42000", st.Record["Mileage"])

	snapshot := st.Record.Clone()
	ext.push(extract.Result{"City": "Boston"})
	resp, err = flow.SubmitTurn(ctx, st, "it was in Boston")
	require.NoError(t, err)
	assert.Nil(t, resp.Decision)
	assert.Equal(t, snapshot, st.Record)
	assert.Equal(t, types.PhaseReview, st.Phase)
}

func TestAddMoreDetails(t *testing.T) {
	ext := &queueExtractor{}
	flow := newTestFlow(t, ext, nil)
	st := newComplaintState(t, flow)
	ctx := context.Background()

	_, err := flow.AddMoreDetails(ctx, st)
	require.ErrorIs(t, err, ErrInvalidTransition)

	st.Record = completeComplaint()
	st.Phase = types.PhaseReview
	st.Attempts["Speed"] = 1
	_, err = flow.AddMoreDetails(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, types.PhaseCollecting, st.Phase)
	assert.Equal(t, completeComplaint(), st.Record)
	assert.Equal(t, 1, st.Attempts["Speed"])

	ext.push(extract.Result{"Description": "The brakes failed twice, the second time at a stop light"})
	resp, err := flow.SubmitTurn(ctx, st, "it happened again at a stop light")
	require.NoError(t, err)
	assert.Equal(t, types.ActionReview, resp.Decision.Action)
	assert.Contains(t, st.Record["Description"], "stop light")
	assert.Len(t, ext.lastRequest().Scope, len(form.MustLoad(types.FormComplaint).UserFields()))
}

func TestSystemFieldsStayEmptyWhileCollecting(t *testing.T) {
	ext := &queueExtractor{}
	ext.push(extract.Result{"Timestamp": "2020-01-01 00:00:00", "Suspicion_Score": "9", "Make": "Ford"})
	flow := newTestFlow(t, ext, nil)
	st := newComplaintState(t, flow)

	_, err := flow.SubmitTurn(context.Background(), st, "Ford")
	require.NoError(t, err)
	assert.Equal(t, "Ford", st.Record["Make"])
	for _, f := range form.MustLoad(types.FormComplaint).SystemFields() {
		assert.False(t, st.Record.Has(f.Name), f.Name)
	}
}

func TestEmptyInputDoesNotTouchState(t *testing.T) {
	flow := newTestFlow(t, &queueExtractor{}, nil)
	st := newComplaintState(t, flow)
	resp, err := flow.SubmitTurn(context.Background(), st, "   ")
	require.NoError(t, err)
	assert.Equal(t, emptyInputMessage, resp.Message)
	assert.Empty(t, st.Log)
	assert.Zero(t, st.NoProgress)
}

func TestRecentContextIsTrimmed(t *testing.T) {
	ext := &queueExtractor{}
	flow := newTestFlow(t, ext, nil)
	st := newComplaintState(t, flow)
	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		_, err := flow.SubmitTurn(ctx, st, text)
		require.NoError(t, err)
	}
	recent := ext.lastRequest().Recent
	require.Len(t, recent, 3)
	assert.Equal(t, "two", recent[1].Content)
}

func TestUndo(t *testing.T) {
	ext := &queueExtractor{}
	flow := newTestFlow(t, ext, nil)
	st := newComplaintState(t, flow)
	ctx := context.Background()

	resp, err := flow.Undo(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, nothingToUndo, resp.Message)

	ext.push(extract.Result{"Make": "Honda"})
	_, err = flow.SubmitTurn(ctx, st, "Honda")
	require.NoError(t, err)
	_, err = flow.SubmitTurn(ctx, st, "hello")
	require.NoError(t, err)
	require.Len(t, st.Log, 4)

	resp, err = flow.Undo(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, "2", resp.Metadata["removed"])
	assert.Len(t, st.Log, 2)
	assert.Equal(t, "Honda", st.Record["Make"])
}

func TestSubmitRecordGuards(t *testing.T) {
	flow := newTestFlow(t, &queueExtractor{}, nil)
	ctx := context.Background()

	st := newComplaintState(t, flow)
	_, err := flow.SubmitRecord(ctx, st)
	require.ErrorIs(t, err, ErrInvalidTransition)

	st.Phase = types.PhaseReview
	resp, err := flow.SubmitRecord(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, "empty_record", resp.Metadata["error"])
	assert.Equal(t, types.PhaseCollecting, st.Phase)

	st.Phase = types.PhaseReview
	st.Record = completeComplaint()
	delete(st.Record, "Speed")
	resp, err = flow.SubmitRecord(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, "incomplete_record", resp.Metadata["error"])
	assert.Equal(t, types.PhaseCollecting, st.Phase)
	assert.Contains(t, resp.Message, "**Speed**")
}

func TestSubmitRecordRetriesAfterFailure(t *testing.T) {
	rec := &flakyRecorder{failures: 1}
	flow := newTestFlow(t, &queueExtractor{}, rec)
	st := newComplaintState(t, flow)
	st.Record = completeComplaint()
	st.Phase = types.PhaseReview
	ctx := context.Background()

	resp, err := flow.SubmitRecord(ctx, st)
	require.NoError(t, err)
	assert.True(t, resp.Retryable)
	assert.Equal(t, "sheet unavailable", resp.Metadata["error"])
	assert.Equal(t, types.PhaseReview, st.Phase)
	assert.Equal(t, completeComplaint(), st.Record)

	resp, err = flow.SubmitRecord(ctx, st)
	require.NoError(t, err)
	assert.False(t, resp.Retryable)
	assert.Equal(t, types.PhaseSubmitted, st.Phase)
	assert.Equal(t, "20250601-120000", st.Reference)
	assert.Equal(t, "2025-06-01 12:00:00", st.Record["Timestamp"])
	require.Len(t, rec.subs, 1)
	assert.Equal(t, st.Record, rec.subs[0].Record)
	assert.Equal(t, "s-1", rec.subs[0].SessionID)

	resp, err = flow.SubmitTurn(ctx, st, "one more thing")
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "20250601-120000")
	_, err = flow.SubmitRecord(ctx, st)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResetIsIdempotent(t *testing.T) {
	ext := &queueExtractor{}
	ext.push(extract.Result{"VIN": validVIN})
	flow := newTestFlow(t, ext, nil)
	st := newComplaintState(t, flow)
	ctx := context.Background()
	_, err := flow.SubmitTurn(ctx, st, validVIN)
	require.NoError(t, err)

	once, err := flow.Reset(ctx, st)
	require.NoError(t, err)
	twice, err := flow.Reset(ctx, once.State)
	require.NoError(t, err)
	assert.Equal(t, once.State, twice.State)
	assert.Empty(t, twice.State.Record)
	assert.Empty(t, twice.State.Locks)
	assert.Empty(t, twice.State.Log)
	assert.Equal(t, st.ID, twice.State.ID)
	assert.Equal(t, Greeting(types.FormComplaint), twice.Message)
}

func TestSwitchFormTypeDiscardsSession(t *testing.T) {
	ext := &queueExtractor{}
	ext.push(extract.Result{"VIN": validVIN, "Make": "Honda"})
	flow := newTestFlow(t, ext, nil)
	st := newComplaintState(t, flow)
	ctx := context.Background()
	_, err := flow.SubmitTurn(ctx, st, "Honda "+validVIN)
	require.NoError(t, err)

	resp, err := flow.SwitchFormType(ctx, st, types.FormFeedback)
	require.NoError(t, err)
	next := resp.State
	assert.Equal(t, types.FormFeedback, next.FormType)
	assert.Equal(t, types.PhaseCollecting, next.Phase)
	assert.Empty(t, next.Record)
	assert.Empty(t, next.Locks)
	assert.Empty(t, next.Attempts)
	assert.Empty(t, next.Log)

	_, err = flow.SwitchFormType(ctx, st, types.FormType("survey"))
	require.Error(t, err)
}

func TestView(t *testing.T) {
	flow := newTestFlow(t, &queueExtractor{}, nil)
	st := newComplaintState(t, flow)
	st.Record = types.Record{"Make": "Honda", "VIN": validVIN}
	st.Locks.Add("VIN")

	v, err := flow.View(st)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/15.0, v.Completion, 1e-9)
	assert.Equal(t, []string{"VIN"}, v.Locked)
	assert.Len(t, v.Missing, 13)
	assert.Empty(t, v.Summary)

	st.Phase = types.PhaseReview
	v, err = flow.View(st)
	require.NoError(t, err)
	assert.Contains(t, v.Summary, "- Make: Honda")
}
