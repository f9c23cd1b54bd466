package patch

import (
	"testing"

	"github.com/tbxark/intakeagent/types"
)

func TestMergeAddsAndReplaces(t *testing.T) {
	record := types.Record{"Make": "Honda"}
	out, err := Merge(record, map[string]string{"Make": "Toyota", "Model": "Camry"}, []string{"Make", "Model"})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if out["Make"] != "Toyota" || out["Model"] != "Camry" {
		t.Errorf("unexpected record %v", out)
	}
	if record["Make"] != "Honda" || record.Has("Model") {
		t.Errorf("input record mutated: %v", record)
	}
}

func TestMergeRejectsDisallowedField(t *testing.T) {
	_, err := Merge(types.Record{}, map[string]string{"Timestamp": "now"}, []string{"Make"})
	if err == nil {
		t.Fatal("expected system field write to be rejected")
	}
}

func TestMergeNilRecord(t *testing.T) {
	out, err := Merge(nil, map[string]string{"City": "Austin"}, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if out["City"] != "Austin" {
		t.Errorf("unexpected record %v", out)
	}
}

func TestRemove(t *testing.T) {
	out, err := Remove(types.Record{"VIN": "1HGCM82633A004352", "Make": "Honda"}, "VIN", "Model")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if out.Has("VIN") || out["Make"] != "Honda" {
		t.Errorf("unexpected record %v", out)
	}
}

func TestPointerEscaping(t *testing.T) {
	if got := Pointer("a/b~c"); got != "/a~1b~0c" {
		t.Errorf("Pointer = %s", got)
	}
	field, ok := fieldFromPointer("/a~1b~0c")
	if !ok || field != "a/b~c" {
		t.Errorf("fieldFromPointer = %q %v", field, ok)
	}
	if _, ok := fieldFromPointer("/a/b"); ok {
		t.Error("nested pointer should not be a field")
	}
}

func TestValidatePatchOperations(t *testing.T) {
	cases := []struct {
		name    string
		ops     []Operation
		wantErr bool
	}{
		{"ok", []Operation{{Op: OperationAdd, Path: "/Make", Value: "Ford"}}, false},
		{"bad op", []Operation{{Op: "move", Path: "/Make"}}, true},
		{"nested", []Operation{{Op: OperationAdd, Path: "/Make/x", Value: "Ford"}}, true},
		{"non-string", []Operation{{Op: OperationAdd, Path: "/Speed", Value: 45}}, true},
		{"not allowed", []Operation{{Op: OperationAdd, Path: "/Deaths", Value: "0"}}, true},
	}
	allowed := map[string]bool{"Make": true, "Speed": true}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePatchOperations(tc.ops, allowed)
			if (err != nil) != tc.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
