package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

type echoTool struct{ name string }

func (t *echoTool) Name() string        { return t.name }
func (t *echoTool) Description() string { return "echoes its input" }

func (t *echoTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "text": {"type": "string"},
    "count": {"type": "integer", "minimum": 1}
  },
  "required": ["text"]
}`)
}

func (t *echoTool) Execute(_ context.Context, params json.RawMessage) (*ToolResult, error) {
	var input struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return &ToolResult{Content: err.Error(), IsError: true}, nil
	}
	return &ToolResult{Content: input.Text}, nil
}

func TestRegistry_RegisterAndList(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&echoTool{name: "beta"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(&echoTool{name: "alpha"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(&echoTool{name: "alpha"}); err == nil {
		t.Error("duplicate Register() did not fail")
	}

	names := r.List()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("List() = %v, want sorted [alpha beta]", names)
	}
}

func TestRegistry_Execute(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&echoTool{name: "echo"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	result, err := r.Execute(context.Background(), "echo", json.RawMessage(`{"text":"hallo"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.IsError || result.Content != "hallo" {
		t.Errorf("result = %+v", result)
	}
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()

	result, err := r.Execute(context.Background(), "missing", nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.IsError || !strings.Contains(result.Content, "Unknown tool") {
		t.Errorf("result = %+v, want unknown-tool error", result)
	}
}

func TestRegistry_SchemaValidation(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&echoTool{name: "echo"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name    string
		params  string
		wantErr bool
	}{
		{"valid", `{"text":"x","count":2}`, false},
		{"missing required", `{"count":2}`, true},
		{"wrong type", `{"text":42}`, true},
		{"below minimum", `{"text":"x","count":0}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := r.Execute(context.Background(), "echo", json.RawMessage(tt.params))
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if result.IsError != tt.wantErr {
				t.Errorf("IsError = %v, want %v (content: %s)", result.IsError, tt.wantErr, result.Content)
			}
		})
	}
}

func TestValidateParams_MalformedJSON(t *testing.T) {
	schema := json.RawMessage(`{"type":"object"}`)
	if err := ValidateParams(schema, json.RawMessage(`{not json`)); err == nil {
		t.Error("ValidateParams() accepted malformed JSON")
	}
	if err := ValidateParams(schema, nil); err != nil {
		t.Errorf("ValidateParams() rejected empty params: %v", err)
	}
}
