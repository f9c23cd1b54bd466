package patch

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/tbxark/intakeagent/types"
)

// Pointer returns the JSON pointer of a top-level record field.
func Pointer(field string) string {
	field = strings.ReplaceAll(field, "~", "~0")
	field = strings.ReplaceAll(field, "/", "~1")
	return "/" + field
}

func fieldFromPointer(path string) (string, bool) {
	if !strings.HasPrefix(path, "/") || strings.Count(path, "/") != 1 {
		return "", false
	}
	token := path[1:]
	token = strings.ReplaceAll(token, "~1", "/")
	token = strings.ReplaceAll(token, "~0", "~")
	return token, true
}

// ApplyRFC6902 applies ops to a copy of the record.
func ApplyRFC6902(current types.Record, ops []Operation) (types.Record, error) {
	if current == nil {
		current = types.Record{}
	}
	if len(ops) == 0 {
		return current.Clone(), nil
	}

	currentJSON, err := sonic.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	ops = FixOperation(current, ops)
	if len(ops) == 0 {
		return current.Clone(), nil
	}

	patchJSON, err := sonic.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal patch operations: %w", err)
	}

	p, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode patch: %w", err)
	}

	modifiedJSON, err := p.Apply(currentJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to apply patch: %w", err)
	}

	var result types.Record
	if err := sonic.Unmarshal(modifiedJSON, &result); err != nil {
		return nil, fmt.Errorf("patch produced a non-string record: %w", err)
	}
	if result == nil {
		result = types.Record{}
	}
	return result, nil
}

// FixOperation turns replace on an absent field into add and drops removes of absent fields.
func FixOperation(current types.Record, ops []Operation) []Operation {
	fixed := make([]Operation, 0, len(ops))
	for _, op := range ops {
		field, ok := fieldFromPointer(op.Path)
		exists := ok && current.Has(field)
		switch op.Op {
		case OperationReplace:
			if !exists {
				op.Op = OperationAdd
			}
			fixed = append(fixed, op)
		case OperationRemove:
			if exists {
				fixed = append(fixed, op)
			}
		default:
			fixed = append(fixed, op)
		}
	}
	return fixed
}
