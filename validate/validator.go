// Package validate decides whether an extracted value may enter the record.
package validate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tbxark/intakeagent/form"
	"github.com/tbxark/intakeagent/types"
)

type Verdict struct {
	Field    string `json:"field"`
	Value    string `json:"value"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	// Locked is set when the field was rejected because it is already confirmed.
	Locked bool `json:"locked,omitempty"`
}

func (v Verdict) Issue() types.FieldIssue {
	return types.FieldIssue{Field: v.Field, Value: v.Value, Reason: v.Reason}
}

// LockedMessage is the rejection reason for a confirmed field.
func LockedMessage(field string) string {
	return fmt.Sprintf("❌ %s is already confirmed. (Type 'yes' to unlock)", field)
}

type Validator struct {
	schema  *form.Schema
	checker Checker
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Validator)

// WithChecker adds a model second opinion. Checker failures accept the value as-is.
func WithChecker(c Checker) Option {
	return func(v *Validator) { v.checker = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

func New(s *form.Schema, opts ...Option) *Validator {
	v := &Validator{schema: s, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Validate checks the lock set, then the field's rule, then the optional checker.
// Accepting a lockable field adds it to locks.
func (v *Validator) Validate(ctx context.Context, locks *LockSet, record types.Record, field, value string) Verdict {
	verdict := Verdict{Field: field, Value: value}
	if locks != nil && locks.Has(field) {
		verdict.Reason = LockedMessage(field)
		verdict.Locked = true
		return verdict
	}
	d, ok := v.schema.Field(field)
	if !ok || d.System {
		verdict.Reason = fmt.Sprintf("%s cannot be set in conversation", field)
		return verdict
	}

	normalized := strings.TrimSpace(value)
	if rule, ok := rules[d.Rule]; ok {
		out, err := rule(d, value, v.now())
		if err != nil {
			verdict.Reason = err.Error()
			return verdict
		}
		normalized = out
	} else if normalized == "" {
		verdict.Reason = fmt.Sprintf("%s cannot be empty", field)
		return verdict
	}

	if v.checker != nil {
		res, err := v.checker.Check(ctx, &CheckRequest{Field: d, Value: normalized, Record: record})
		switch {
		case err != nil:
			// No verdict: keep the rule-checked value.
			v.logger.Warn("field check unavailable, accepting value as-is", "field", field, "error", err)
		case !res.Valid:
			verdict.Reason = res.Reason
			return verdict
		case d.Rule == form.RuleText && strings.TrimSpace(res.Normalized) != "":
			normalized = strings.TrimSpace(res.Normalized)
		}
	}

	verdict.Accepted = true
	verdict.Value = normalized
	if d.Lockable && locks != nil {
		locks.Add(field)
	}
	return verdict
}
