package patch

import (
	"fmt"
	"sort"

	"github.com/tbxark/intakeagent/types"
)

func allowedSet(fields []string) map[string]bool {
	allowed := make(map[string]bool, len(fields))
	for _, f := range fields {
		allowed[f] = true
	}
	return allowed
}

// Merge writes accepted values into a copy of the record. Only allowed fields may be written.
func Merge(record types.Record, values map[string]string, allowed []string) (types.Record, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	ops := make([]Operation, 0, len(names))
	for _, name := range names {
		ops = append(ops, Operation{Op: OperationReplace, Path: Pointer(name), Value: values[name]})
	}
	if err := ValidatePatchOperations(ops, allowedSet(allowed)); err != nil {
		return nil, fmt.Errorf("merge rejected: %w", err)
	}
	return ApplyRFC6902(record, ops)
}

// Remove clears fields from a copy of the record.
func Remove(record types.Record, fields ...string) (types.Record, error) {
	ops := make([]Operation, 0, len(fields))
	for _, f := range fields {
		ops = append(ops, Operation{Op: OperationRemove, Path: Pointer(f)})
	}
	if err := ValidatePatchOperations(ops, nil); err != nil {
		return nil, err
	}
	return ApplyRFC6902(record, ops)
}
