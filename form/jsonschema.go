package form

import (
	"encoding/json"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/eino-contrib/jsonschema"
	"github.com/tbxark/intakeagent/types"
)

var usStatePattern = "^[A-Z]{2}$"

func fieldSchema(d Descriptor) *jsonschema.Schema {
	fs := &jsonschema.Schema{
		Type:        "string",
		Title:       d.Name,
		Description: d.Description,
	}
	if d.Example != "" {
		fs.Examples = []any{d.Example}
	}
	switch d.Rule {
	case RuleVIN:
		length := uint64(17)
		fs.MinLength = &length
		fs.MaxLength = &length
		fs.Pattern = "^[A-HJ-NPR-Z0-9]{17}$"
	case RuleUSState:
		fs.Pattern = usStatePattern
	case RuleYesNo:
		fs.Enum = []any{"Yes", "No"}
	case RuleDate:
		fs.Format = "date"
	case RuleYear, RuleNumber, RuleCount:
		fs.Type = "number"
		if d.Min != nil {
			fs.Minimum = json.Number(strconv.FormatFloat(*d.Min, 'f', -1, 64))
		} else if d.Rule == RuleCount {
			fs.Minimum = "0"
		}
		if d.Max != nil {
			fs.Maximum = json.Number(strconv.FormatFloat(*d.Max, 'f', -1, 64))
		}
	case RuleText:
		if d.Min != nil && *d.Min > 0 {
			n := uint64(*d.Min)
			fs.MinLength = &n
		}
	}
	return fs
}

// JSONSchema describes the given user fields, or every user field when none are named.
func (s *Schema) JSONSchema(names ...string) *jsonschema.Schema {
	fields := s.UserFields()
	if len(names) > 0 {
		fields = fields[:0:0]
		for _, name := range names {
			if d, ok := s.Field(name); ok && !d.System {
				fields = append(fields, d)
			}
		}
	}
	root := &jsonschema.Schema{
		Type:        "object",
		Title:       s.Title,
		Properties:  jsonschema.NewProperties(),
		Description: "Fields of a " + string(s.Type) + " record. Omit fields that were not mentioned.",
	}
	for _, d := range fields {
		root.Properties.Set(d.Name, fieldSchema(d))
	}
	return root
}

func (s *Schema) JSONSchemaString(names ...string) (string, error) {
	return sonic.MarshalString(s.JSONSchema(names...))
}

// Columns is the storage row layout shared by every form type.
func Columns() []string {
	var cols []string
	for _, ft := range []types.FormType{types.FormComplaint, types.FormFeedback} {
		cols = append(cols, MustLoad(ft).Names()...)
	}
	return cols
}

// Row lays the record out in Columns order, blank-padded.
func Row(record types.Record) []string {
	cols := Columns()
	row := make([]string, len(cols))
	for i, c := range cols {
		row[i] = record[c]
	}
	return row
}
