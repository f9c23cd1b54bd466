// Package form declares the record shape of each form type.
package form

import (
	"embed"
	"fmt"
	"sync"

	"github.com/tbxark/intakeagent/types"
	"gopkg.in/yaml.v3"
)

//go:embed forms/*.yaml
var formFiles embed.FS

// Rule names understood by the validate package.
const (
	RuleText    = "text"
	RuleVIN     = "vin"
	RuleUSState = "us_state"
	RuleYear    = "year"
	RuleNumber  = "number"
	RuleCount   = "count"
	RuleYesNo   = "yes_no"
	RuleDate    = "date"
)

// Compute directives for system fields.
const (
	ComputeTimestamp   = "timestamp"
	ComputeInputLength = "input_length"
	ComputeConstant    = "constant"
	ComputeBlank       = "blank"
)

// Descriptor declares one field of a record.
type Descriptor struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Example     string   `yaml:"example"`
	Rule        string   `yaml:"rule"`
	Min         *float64 `yaml:"min"`
	Max         *float64 `yaml:"max"`
	Critical    bool     `yaml:"critical"`
	Lockable    bool     `yaml:"lockable"`
	System      bool     `yaml:"system"`
	Compute     string   `yaml:"compute"`
	Value       string   `yaml:"value"`
}

func (d Descriptor) Info() types.FieldInfo {
	return types.FieldInfo{
		Name:        d.Name,
		Description: d.Description,
		Example:     d.Example,
		Critical:    d.Critical,
	}
}

type Schema struct {
	Type   types.FormType `yaml:"type"`
	Title  string         `yaml:"title"`
	Fields []Descriptor   `yaml:"fields"`

	index map[string]int
}

// Parse decodes a YAML form declaration.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode form: %w", err)
	}
	if !s.Type.Valid() {
		return nil, fmt.Errorf("unknown form type %q", s.Type)
	}
	s.index = make(map[string]int, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name == "" {
			return nil, fmt.Errorf("form %s: field %d has no name", s.Type, i)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("form %s: duplicate field %q", s.Type, f.Name)
		}
		if f.System && f.Compute == "" {
			return nil, fmt.Errorf("form %s: system field %q has no compute directive", s.Type, f.Name)
		}
		if f.Lockable && f.System {
			return nil, fmt.Errorf("form %s: system field %q cannot be lockable", s.Type, f.Name)
		}
		s.index[f.Name] = i
	}
	return &s, nil
}

var (
	loadOnce sync.Once
	loaded   map[types.FormType]*Schema
	loadErr  error
)

func loadAll() {
	loaded = make(map[types.FormType]*Schema)
	for _, name := range []string{"forms/complaint.yaml", "forms/feedback.yaml"} {
		data, err := formFiles.ReadFile(name)
		if err != nil {
			loadErr = fmt.Errorf("read %s: %w", name, err)
			return
		}
		s, err := Parse(data)
		if err != nil {
			loadErr = fmt.Errorf("parse %s: %w", name, err)
			return
		}
		loaded[s.Type] = s
	}
}

// Load returns the schema declared for the form type.
func Load(formType types.FormType) (*Schema, error) {
	loadOnce.Do(loadAll)
	if loadErr != nil {
		return nil, loadErr
	}
	s, ok := loaded[formType]
	if !ok {
		return nil, fmt.Errorf("unknown form type %q", formType)
	}
	return s, nil
}

// MustLoad is Load for the embedded forms, which are known to parse.
func MustLoad(formType types.FormType) *Schema {
	s, err := Load(formType)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Field(name string) (Descriptor, bool) {
	i, ok := s.index[name]
	if !ok {
		return Descriptor{}, false
	}
	return s.Fields[i], true
}

func (s *Schema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// UserFields returns the fields tracked for completion, in declaration order.
func (s *Schema) UserFields() []Descriptor {
	out := make([]Descriptor, 0, len(s.Fields))
	for _, f := range s.Fields {
		if !f.System {
			out = append(out, f)
		}
	}
	return out
}

func (s *Schema) SystemFields() []Descriptor {
	out := make([]Descriptor, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.System {
			out = append(out, f)
		}
	}
	return out
}

func (s *Schema) IsUserField(name string) bool {
	f, ok := s.Field(name)
	return ok && !f.System
}

// Missing returns user fields with no value.
func (s *Schema) Missing(record types.Record) []Descriptor {
	var out []Descriptor
	for _, f := range s.UserFields() {
		if !record.Has(f.Name) {
			out = append(out, f)
		}
	}
	return out
}

// Filled counts user fields that hold a value.
func (s *Schema) Filled(record types.Record) int {
	n := 0
	for _, f := range s.UserFields() {
		if record.Has(f.Name) {
			n++
		}
	}
	return n
}

// Completion is the filled fraction of user fields.
func (s *Schema) Completion(record types.Record) float64 {
	total := len(s.UserFields())
	if total == 0 {
		return 0
	}
	return float64(s.Filled(record)) / float64(total)
}

func Infos(fields []Descriptor) []types.FieldInfo {
	out := make([]types.FieldInfo, len(fields))
	for i, f := range fields {
		out[i] = f.Info()
	}
	return out
}
