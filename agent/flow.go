package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/tbxark/intakeagent/dialogue"
	"github.com/tbxark/intakeagent/extract"
	"github.com/tbxark/intakeagent/form"
	"github.com/tbxark/intakeagent/intent"
	"github.com/tbxark/intakeagent/patch"
	"github.com/tbxark/intakeagent/structured"
	"github.com/tbxark/intakeagent/types"
	"github.com/tbxark/intakeagent/validate"
)

const (
	emptyInputMessage = "I didn't catch that. Could you tell me a bit more?"
	reviewTurnMessage = "Your report is ready for review. Submit it when you're ready, or choose \"add more details\" to change something."
	addDetailsMessage = "Sure! What else would you like to add?"
	nothingToUndo     = "There is nothing to undo."
	undoneMessage     = "Okay, I removed the last message."
	emptyRecordReply  = "There's nothing to submit yet. Tell me what happened and I'll fill in the details."
	saveFailedReply   = "Sorry, I couldn't save your report just now. Your answers are kept, please try submitting again."
)

var greetings = map[types.FormType]string{
	types.FormComplaint: "Hi! I'll help you file a vehicle safety complaint. What happened with your vehicle?",
	types.FormFeedback:  "Thanks for taking the time to share feedback! What would you like to tell us about?",
}

// Greeting is the opening message for a new session.
func Greeting(formType types.FormType) string {
	return greetings[formType]
}

// Components are the collaborators of an IntakeFlow.
type Components struct {
	// Extractors maps every form type to its extraction adapter.
	Extractors map[types.FormType]extract.Extractor
	// Checker is the optional model second opinion for field values.
	Checker    validate.Checker
	Recognizer intent.Recognizer
	// Dialogue phrases free-form replies; nil means static text only.
	Dialogue dialogue.Generator
	Recorder Recorder
}

type flowOptions struct {
	logger  *slog.Logger
	now     func() time.Time
	policy  Policy
	trimmer Trimmer
}

type Option func(*flowOptions)

func WithLogger(logger *slog.Logger) Option {
	return func(o *flowOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *flowOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func WithPolicy(policy Policy) Option {
	return func(o *flowOptions) {
		o.policy = policy.withDefaults()
	}
}

// WithTrimmer overrides how much of the log is sent to the model.
func WithTrimmer(trimmer Trimmer) Option {
	return func(o *flowOptions) {
		o.trimmer = trimmer
	}
}

// IntakeFlow runs the dialogue controller over a session state.
// Every method mutates the state it is given; callers pass a copy when they
// need to discard the result.
type IntakeFlow struct {
	schemas    map[types.FormType]*form.Schema
	extractors map[types.FormType]*extract.Guard
	validators map[types.FormType]*validate.Validator
	recognizer intent.Recognizer
	composer   *dialogue.Composer
	recorder   Recorder
	policy     Policy
	trimmer    Trimmer
	logger     *slog.Logger
	now        func() time.Time
}

func NewIntakeFlow(c Components, opts ...Option) (*IntakeFlow, error) {
	o := &flowOptions{
		logger: slog.Default(),
		now:    time.Now,
		policy: DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.trimmer == nil {
		o.trimmer = KeepSystemLastNTrimmer{N: o.policy.ContextMessages}
	}
	if c.Recorder == nil {
		return nil, errors.New("recorder is required")
	}
	if c.Recognizer == nil {
		c.Recognizer = intent.NewLocalIntentRecognizer()
	}

	f := &IntakeFlow{
		schemas:    map[types.FormType]*form.Schema{},
		extractors: map[types.FormType]*extract.Guard{},
		validators: map[types.FormType]*validate.Validator{},
		recognizer: c.Recognizer,
		composer:   dialogue.NewComposer(c.Dialogue, o.logger),
		recorder:   c.Recorder,
		policy:     o.policy,
		trimmer:    o.trimmer,
		logger:     o.logger,
		now:        o.now,
	}
	for _, ft := range []types.FormType{types.FormComplaint, types.FormFeedback} {
		s, err := form.Load(ft)
		if err != nil {
			return nil, err
		}
		extractor, ok := c.Extractors[ft]
		if !ok || extractor == nil {
			return nil, fmt.Errorf("no extractor for form type %s", ft)
		}
		vopts := []validate.Option{validate.WithLogger(o.logger), validate.WithClock(o.now)}
		if c.Checker != nil {
			vopts = append(vopts, validate.WithChecker(c.Checker))
		}
		f.schemas[ft] = s
		f.extractors[ft] = extract.NewGuard(extractor, o.logger)
		f.validators[ft] = validate.New(s, vopts...)
	}
	return f, nil
}

// ModelConfig tunes the model-backed components.
type ModelConfig struct {
	Extract  structured.CallConfig
	Validate structured.CallConfig
	Intent   structured.CallConfig
	Compose  structured.CallConfig
	// ModelValidation adds the check_field second opinion after the rules.
	ModelValidation bool
	// ModelIntent asks the model when keyword intent matching finds nothing.
	ModelIntent bool
	Lang        string
}

func DefaultModelConfig() ModelConfig {
	timeout := 8 * time.Second
	return ModelConfig{
		Extract:  structured.CallConfig{Timeout: timeout, Temperature: structured.Float32(0.1), MaxTokens: structured.Int(300)},
		Validate: structured.CallConfig{Timeout: timeout, Temperature: structured.Float32(0), MaxTokens: structured.Int(100)},
		Intent:   structured.CallConfig{Timeout: timeout, Temperature: structured.Float32(0), MaxTokens: structured.Int(50)},
		Compose:  structured.CallConfig{Timeout: timeout, Temperature: structured.Float32(0.7), MaxTokens: structured.Int(150)},

		ModelValidation: true,
		Lang:            "English",
	}
}

func NewToolBasedIntakeFlow(chatModel model.ToolCallingChatModel, recorder Recorder, cfg ModelConfig, opts ...Option) (*IntakeFlow, error) {
	toolExtractor, err := extract.NewToolBasedExtractor(chatModel, cfg.Extract)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool-based extractor: %w", err)
	}
	c := Components{
		Extractors: map[types.FormType]extract.Extractor{
			types.FormComplaint: toolExtractor,
			types.FormFeedback:  extract.NewFailbackExtractor(extract.NewFeedbackKeywordExtractor(), toolExtractor),
		},
		Recorder: recorder,
	}
	if cfg.ModelValidation {
		checker, cErr := validate.NewToolBasedChecker(chatModel, cfg.Validate)
		if cErr != nil {
			return nil, fmt.Errorf("failed to create tool-based checker: %w", cErr)
		}
		c.Checker = checker
	}
	local := intent.NewLocalIntentRecognizer()
	c.Recognizer = local
	if cfg.ModelIntent {
		recognizer, rErr := intent.NewToolBasedIntentRecognizer(chatModel, intent.WithIntentCall(cfg.Intent))
		if rErr != nil {
			return nil, fmt.Errorf("failed to create tool-based intent recognizer: %w", rErr)
		}
		c.Recognizer = intent.NewFailbackRecognizer(local, recognizer)
	}
	generatorOpts := []dialogue.GeneratorOption{dialogue.WithDialogueCall(cfg.Compose)}
	if cfg.Lang != "" {
		generatorOpts = append(generatorOpts, dialogue.WithDialogueLang(cfg.Lang))
	}
	c.Dialogue = dialogue.NewFailbackDialogueGenerator(
		dialogue.NewToolBasedDialogueGenerator(chatModel, generatorOpts...),
		&dialogue.LocalDialogueGenerator{},
	)
	return NewIntakeFlow(c, opts...)
}

// Schema returns the declaration for a form type.
func (f *IntakeFlow) Schema(formType types.FormType) (*form.Schema, error) {
	s, ok := f.schemas[formType]
	if !ok {
		return nil, fmt.Errorf("unknown form type %q", formType)
	}
	return s, nil
}

// NewState creates an empty collecting session.
func (f *IntakeFlow) NewState(id string, formType types.FormType) (*State, error) {
	if !formType.Valid() {
		return nil, fmt.Errorf("unknown form type %q", formType)
	}
	if id == "" {
		id = uuid.NewString()
	}
	return newState(id, formType, f.now()), nil
}

// SubmitTurn processes one user message.
func (f *IntakeFlow) SubmitTurn(ctx context.Context, st *State, input string) (*Response, error) {
	s, err := f.Schema(st.FormType)
	if err != nil {
		return nil, err
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return &Response{Message: emptyInputMessage, State: st}, nil
	}
	switch st.Phase {
	case types.PhaseReview:
		return f.reply(st, input, reviewTurnMessage, nil), nil
	case types.PhaseSubmitted:
		msg := fmt.Sprintf("Your report was already submitted (reference %s). Reset the session to start a new one.", st.Reference)
		return f.reply(st, input, msg, nil), nil
	case types.PhaseCollecting, "":
		st.Phase = types.PhaseCollecting
	default:
		return nil, fmt.Errorf("unknown phase %q", st.Phase)
	}
	return f.collect(ctx, st, s, input)
}

func (f *IntakeFlow) reply(st *State, input, message string, d *Decision) *Response {
	if input != "" {
		st.Log = appendHistory(st.Log, schema.UserMessage(input))
	}
	st.Log = appendHistory(st.Log, schema.AssistantMessage(message, nil))
	return &Response{Message: message, State: st, Decision: d}
}

func (f *IntakeFlow) toolRequest(st *State, s *form.Schema, input string, recent []*schema.Message) *types.ToolRequest {
	return &types.ToolRequest{
		FormType:      st.FormType,
		Phase:         st.Phase,
		Record:        st.Record,
		UserInput:     input,
		Recent:        recent,
		MissingFields: form.Infos(s.Missing(st.Record)),
		Locked:        st.Locks.List(),
	}
}

// scope is the extraction scope: missing fields plus locked ones, so that a
// restated locked value reaches the validator and offers an unlock. Once
// nothing is missing every user field is in scope for added details.
func (f *IntakeFlow) scope(st *State, s *form.Schema) []form.Descriptor {
	if len(s.Missing(st.Record)) == 0 {
		return s.UserFields()
	}
	var out []form.Descriptor
	for _, d := range s.UserFields() {
		if !st.Record.Has(d.Name) || st.Locks.Has(d.Name) {
			out = append(out, d)
		}
	}
	return out
}

func (f *IntakeFlow) recognize(ctx context.Context, req *types.ToolRequest) intent.Intent {
	it, err := f.recognizer.RecognizeIntent(ctx, req)
	if err != nil {
		f.logger.Warn("intent recognition failed", "error", err)
		return intent.None
	}
	return it
}

func (f *IntakeFlow) collect(ctx context.Context, st *State, s *form.Schema, input string) (*Response, error) {
	recent := f.trimmer.Trim(st.Log)
	req := f.toolRequest(st, s, input, recent)

	f.logger.Debug("Recognizing intent", "session", st.ID)
	it := f.recognize(ctx, req)
	if pending := st.PendingUnlock; pending != "" {
		st.PendingUnlock = ""
		if it == intent.Affirm {
			return f.unlock(st, s, input, pending)
		}
	}

	var out turnOutcome
	if missing := s.Missing(st.Record); it == intent.Skip && len(missing) > 0 {
		f.logger.Debug("Applying skip policy", "field", missing[0].Name)
		out = f.policy.skipOutcome(st, missing[0], input)
	} else {
		out = f.extractAndValidate(ctx, st, s, req)
	}

	d, err := f.policy.decide(st, s, out)
	if err != nil {
		return nil, err
	}
	st.LastDecision = d
	f.logger.Debug("Decided next action", "action", d.Action, "accepted", d.Accepted, "issues", len(d.Issues), "no_progress", st.NoProgress)

	req.Phase = st.Phase
	req.Action = d.Action
	req.Record = st.Record
	req.MissingFields = d.NextUp
	req.Issues = d.Issues
	req.Accepted = d.Accepted
	req.Locked = st.Locks.List()

	var message string
	if d.Override != "" {
		field, _ := s.Field(d.Override)
		message = dialogue.CriticalReminder(field.Info(), d.Issues)
	} else {
		message = f.composer.Compose(ctx, req)
	}
	return f.reply(st, input, message, d), nil
}

func (f *IntakeFlow) extractAndValidate(ctx context.Context, st *State, s *form.Schema, req *types.ToolRequest) turnOutcome {
	scope := f.scope(st, s)
	names := make([]string, len(scope))
	for i, d := range scope {
		names[i] = d.Name
	}
	req.Scope = form.Infos(scope)
	if scopeSchema, err := s.JSONSchemaString(names...); err == nil {
		req.ScopeSchema = scopeSchema
	} else {
		f.logger.Warn("failed to render scope schema", "error", err)
	}

	f.logger.Debug("Extracting fields", "scope", names)
	res := f.extractors[st.FormType].Extract(ctx, req)

	out := turnOutcome{accepted: map[string]string{}, extracted: len(res)}
	validator := f.validators[st.FormType]
	for _, name := range names {
		value, ok := res[name]
		if !ok {
			continue
		}
		verdict := validator.Validate(ctx, &st.Locks, st.Record, name, value)
		if verdict.Accepted {
			out.accepted[name] = verdict.Value
			continue
		}
		if verdict.Locked {
			st.PendingUnlock = name
		}
		out.issues = append(out.issues, verdict.Issue())
	}
	f.logger.Debug("Validated fields", "accepted", len(out.accepted), "rejected", len(out.issues))
	return out
}

func (f *IntakeFlow) unlock(st *State, s *form.Schema, input, field string) (*Response, error) {
	record, err := patch.Remove(st.Record, field)
	if err != nil {
		return nil, fmt.Errorf("failed to clear %s: %w", field, err)
	}
	st.Record = record
	st.Locks.Remove(field)
	delete(st.Attempts, field)
	st.NoProgress = 0
	d := &Decision{
		Action: types.ActionUnlock,
		NextUp: form.Infos(s.Missing(st.Record)),
	}
	st.LastDecision = d
	info, _ := s.Field(field)
	f.logger.Debug("Unlocked field", "field", field)
	return f.reply(st, input, dialogue.UnlockMessage(info.Info()), d), nil
}

// Undo removes the last exchange from the log. The record is not reverted.
func (f *IntakeFlow) Undo(ctx context.Context, st *State) (*Response, error) {
	log, n := undoTail(st.Log)
	if n == 0 {
		return &Response{Message: nothingToUndo, State: st}, nil
	}
	st.Log = log
	return &Response{Message: undoneMessage, State: st, Metadata: map[string]string{"removed": fmt.Sprint(n)}}, nil
}

// AddMoreDetails returns a reviewed record to collecting, keeping record and counters.
func (f *IntakeFlow) AddMoreDetails(ctx context.Context, st *State) (*Response, error) {
	if st.Phase != types.PhaseReview {
		return nil, fmt.Errorf("%w: add details from %s", ErrInvalidTransition, st.Phase)
	}
	st.Phase = types.PhaseCollecting
	return f.reply(st, "", addDetailsMessage, nil), nil
}

// SubmitRecord finalizes the record and hands it to the recorder.
func (f *IntakeFlow) SubmitRecord(ctx context.Context, st *State) (*Response, error) {
	if st.Phase != types.PhaseReview {
		return nil, fmt.Errorf("%w: submit from %s", ErrInvalidTransition, st.Phase)
	}
	s, err := f.Schema(st.FormType)
	if err != nil {
		return nil, err
	}
	now := f.now()
	final, err := Finalize(s, st.Record, now)
	switch {
	case errors.Is(err, ErrEmptyRecord):
		st.Phase = types.PhaseCollecting
		resp := f.reply(st, "", emptyRecordReply, nil)
		resp.Metadata = map[string]string{"error": "empty_record"}
		return resp, nil
	case errors.Is(err, ErrIncompleteRecord):
		st.Phase = types.PhaseCollecting
		resp := f.reply(st, "", dialogue.DirectiveMessage(form.Infos(s.Missing(st.Record))), nil)
		resp.Metadata = map[string]string{"error": "incomplete_record"}
		return resp, nil
	case err != nil:
		return nil, err
	}

	sub := &Submission{
		ID:          uuid.NewString(),
		SessionID:   st.ID,
		FormType:    st.FormType,
		Reference:   Reference(now),
		Record:      final,
		SubmittedAt: now,
	}
	f.logger.Debug("Recording submission", "session", st.ID, "reference", sub.Reference)
	if err = f.recorder.Record(ctx, sub); err != nil {
		f.logger.Error("failed to record submission", "session", st.ID, "error", err)
		return &Response{
			Message:   saveFailedReply,
			State:     st,
			Retryable: true,
			Metadata:  map[string]string{"error": err.Error()},
		}, nil
	}

	st.Record = final
	st.Phase = types.PhaseSubmitted
	st.Reference = sub.Reference
	msg := fmt.Sprintf("✅ Your %s has been submitted. Reference: %s", st.FormType, sub.Reference)
	resp := f.reply(st, "", msg, nil)
	resp.Metadata = map[string]string{"reference": sub.Reference, "submission_id": sub.ID}
	return resp, nil
}

// Reset returns an empty session with the same id and form type.
func (f *IntakeFlow) Reset(ctx context.Context, st *State) (*Response, error) {
	fresh := newState(st.ID, st.FormType, st.CreatedAt)
	return &Response{Message: Greeting(fresh.FormType), State: fresh}, nil
}

// SwitchFormType discards the whole session and starts the other form.
func (f *IntakeFlow) SwitchFormType(ctx context.Context, st *State, formType types.FormType) (*Response, error) {
	fresh, err := f.NewState(st.ID, formType)
	if err != nil {
		return nil, err
	}
	return &Response{Message: Greeting(formType), State: fresh}, nil
}

// View builds the UI snapshot of a session.
func (f *IntakeFlow) View(st *State) (*View, error) {
	s, err := f.Schema(st.FormType)
	if err != nil {
		return nil, err
	}
	v := &View{
		ID:         st.ID,
		FormType:   st.FormType,
		Phase:      st.Phase,
		Record:     st.Record.Clone(),
		Log:        toTurns(st.Log),
		Completion: s.Completion(st.Record),
		Missing:    form.Infos(s.Missing(st.Record)),
		Locked:     st.Locks.List(),
		Reference:  st.Reference,
	}
	if st.Phase != types.PhaseCollecting {
		v.Summary = Summary(s, st.Record)
	}
	return v, nil
}
