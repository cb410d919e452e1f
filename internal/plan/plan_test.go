package plan

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestWriteFiles(t *testing.T) {
	p := Plan{
		AgentID:       "agent-1",
		FilesToModify: []string{"b.go", "a.go"},
		FilesToCreate: []string{"c.go", "a.go"},
		FilesToRead:   []string{"z.go"},
	}

	got := p.WriteFiles()
	want := []string{"a.go", "b.go", "c.go"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("WriteFiles() = %v, want %v", got, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		plan    Plan
		wantErr bool
	}{
		{
			name: "valid with modify only",
			plan: Plan{AgentID: "agent-1", FilesToModify: []string{"a.go"}},
		},
		{
			name: "valid with create only",
			plan: Plan{AgentID: "agent-1", FilesToCreate: []string{"a.go"}},
		},
		{
			name:    "no files",
			plan:    Plan{AgentID: "agent-1", FilesToRead: []string{"a.go"}},
			wantErr: true,
		},
		{
			name:    "empty agent id",
			plan:    Plan{FilesToModify: []string{"a.go"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUnknownFieldsRoundTrip(t *testing.T) {
	in := []byte(`{
		"agent_id": "agent-1",
		"files_to_modify": ["a.go"],
		"files_to_create": [],
		"priority": 7,
		"annotations": {"team": "infra"}
	}`)

	var p Plan
	if err := json.Unmarshal(in, &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.AgentID != "agent-1" {
		t.Errorf("AgentID = %q, want agent-1", p.AgentID)
	}

	out, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var round map[string]json.RawMessage
	if err := json.Unmarshal(out, &round); err != nil {
		t.Fatalf("Unmarshal round-trip: %v", err)
	}
	if string(round["priority"]) != "7" {
		t.Errorf("priority not preserved: %s", round["priority"])
	}
	if _, ok := round["annotations"]; !ok {
		t.Error("annotations not preserved through round-trip")
	}
}

func TestMarshalWithoutExtras(t *testing.T) {
	p := Plan{AgentID: "agent-1", FilesToModify: []string{"a.go"}}
	out, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m["agent_id"] != "agent-1" {
		t.Errorf("agent_id = %v", m["agent_id"])
	}
}
