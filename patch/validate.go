package patch

import (
	"fmt"
)

// ValidatePatchOperations checks that every op targets an allowed top-level field.
// An empty allowed set permits any field.
func ValidatePatchOperations(ops []Operation, allowed map[string]bool) error {
	for i, op := range ops {
		switch op.Op {
		case OperationAdd, OperationReplace, OperationRemove:
		default:
			return fmt.Errorf("operation %d: unsupported op %q", i, op.Op)
		}
		field, ok := fieldFromPointer(op.Path)
		if !ok {
			return fmt.Errorf("operation %d: path %q is not a top-level field", i, op.Path)
		}
		if len(allowed) > 0 && !allowed[field] {
			return fmt.Errorf("operation %d: field %q is not in the allowed set", i, field)
		}
		if op.Op != OperationRemove {
			if _, isString := op.Value.(string); !isString {
				return fmt.Errorf("operation %d: value for %q must be a string", i, field)
			}
		}
	}
	return nil
}
