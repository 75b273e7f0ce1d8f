package coordinator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"nutrimind"
	"nutrimind/tools"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"go.opentelemetry.io/otel/sdk/trace"
)

// Mock LLM Client
type mockLLMClient struct {
	responses []Response
	callCount int
	shouldErr bool
}

func (m *mockLLMClient) Invoke(ctx context.Context, prompt Prompt) (Response, error) {
	if m.shouldErr {
		return Response{}, errors.New("mock LLM error")
	}

	if m.callCount >= len(m.responses) {
		// Keep replaying the last configured response so iteration-cap tests can
		// simulate a model that never stops calling tools.
		if len(m.responses) == 0 {
			return Response{}, nil
		}
		return m.responses[len(m.responses)-1], nil
	}

	response := m.responses[m.callCount]
	m.callCount++
	return response, nil
}

// Mock Tool Provider
type mockToolProvider struct {
	tools []tools.Tool
}

func (m *mockToolProvider) GetTools() []tools.Tool {
	return m.tools
}

func (m *mockToolProvider) GetTool(name string) (tools.Tool, error) {
	for _, tool := range m.tools {
		if tool.Name() == name {
			return tool, nil
		}
	}
	return nil, fmt.Errorf("tool not found: %s", name)
}

// Mock Tool
type mockTool struct {
	name      string
	shouldErr bool
	callCount int
	result    map[string]any
}

func (m *mockTool) Name() string        { return m.name }
func (m *mockTool) Title() string       { return m.name + " Tool" }
func (m *mockTool) Description() string { return "Mock tool for testing" }

func (m *mockTool) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"food_name":  {Type: "string"},
			"expression": {Type: "string"},
		},
	}
}

func (m *mockTool) OutputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"result": {Type: "string"},
		},
	}
}

func (m *mockTool) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	m.callCount++
	if m.shouldErr {
		return nil, fmt.Errorf("mock tool error: %s", m.name)
	}
	if m.result != nil {
		return m.result, nil
	}
	return map[string]any{"result": fmt.Sprintf("Mock result from %s", m.name)}, nil
}

func newTestCoordinator(llm *mockLLMClient, tp *mockToolProvider, maxIter int) *Coordinator {
	return NewCoordinator(llm, tp, maxIter, nutrimind.NewNoOpCoordinationLogger(), trace.NewTracerProvider())
}

func TestNewCoordinator(t *testing.T) {
	llm := &mockLLMClient{}
	tp := &mockToolProvider{}
	logger := nutrimind.NewNoOpCoordinationLogger()
	tracerProvider := trace.NewTracerProvider()

	coord := NewCoordinator(llm, tp, 5, logger, tracerProvider)

	if coord.llm != llm {
		t.Error("Expected LLM client to be set")
	}
	if coord.toolProvider != tp {
		t.Error("Expected tool provider to be set")
	}
	if coord.maxIterations != 5 {
		t.Error("Expected max iterations to be 5")
	}
	if coord.logger != logger {
		t.Error("Expected logger to be set")
	}
}

func TestCoordinator_Decompose(t *testing.T) {
	eggDecomposition := `{"mentions": [{"name": "egg", "quantity": "2 boiled eggs"}], "ambiguous": false, "notes": ""}`

	tests := []struct {
		name          string
		llmResponses  []Response
		llmShouldErr  bool
		tools         []tools.Tool
		expectError   bool
		wantMentions  int
		wantAmbiguous bool
	}{
		{
			name: "direct decomposition without tools",
			llmResponses: []Response{
				{Content: eggDecomposition},
			},
			wantMentions: 1,
		},
		{
			name: "tool call then decomposition",
			llmResponses: []Response{
				{ToolCalls: []ToolCall{{Name: "reference_lookup", Args: map[string]any{"food_name": "egg"}}}},
				{Content: eggDecomposition},
			},
			tools: []tools.Tool{
				&mockTool{name: "reference_lookup", result: map[string]any{"found": true, "match_name": "Egg, whole, boiled"}},
			},
			wantMentions: 1,
		},
		{
			name:         "LLM error propagates",
			llmShouldErr: true,
			expectError:  true,
		},
		{
			name: "ambiguous input yields a question",
			llmResponses: []Response{
				{Content: `{"mentions": [], "ambiguous": true, "clarification_question": "What did you eat for lunch?"}`},
			},
			wantAmbiguous: true,
		},
		{
			name: "unparseable content is nudged then accepted",
			llmResponses: []Response{
				{Content: "Sure! Here is my thinking about the meal..."},
				{Content: eggDecomposition},
			},
			wantMentions: 1,
		},
		{
			name: "tool failure does not abort the loop",
			llmResponses: []Response{
				{ToolCalls: []ToolCall{{Name: "reference_lookup", Args: map[string]any{"food_name": "egg"}}}},
				{Content: eggDecomposition},
			},
			tools: []tools.Tool{
				&mockTool{name: "reference_lookup", shouldErr: true},
			},
			wantMentions: 1,
		},
		{
			name: "unknown tool does not abort the loop",
			llmResponses: []Response{
				{ToolCalls: []ToolCall{{Name: "nonexistent_tool", Args: map[string]any{}}}},
				{Content: eggDecomposition},
			},
			wantMentions: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &mockLLMClient{responses: tt.llmResponses, shouldErr: tt.llmShouldErr}
			tp := &mockToolProvider{tools: tt.tools}
			coord := newTestCoordinator(llm, tp, 5)

			decomp, err := coord.Decompose(context.Background(), "2 boiled eggs", nil, nil)

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			if len(decomp.Mentions) != tt.wantMentions {
				t.Errorf("Expected %d mentions, got %d", tt.wantMentions, len(decomp.Mentions))
			}
			if decomp.Ambiguous != tt.wantAmbiguous {
				t.Errorf("Expected ambiguous=%v, got %v", tt.wantAmbiguous, decomp.Ambiguous)
			}
			if decomp.Ambiguous && decomp.ClarificationQuestion == "" {
				t.Error("Ambiguous decomposition must carry a question")
			}
		})
	}
}

func TestCoordinator_Decompose_BudgetExhaustion(t *testing.T) {
	// A model that never stops calling tools must still produce a structured,
	// non-error outcome once the iteration cap is reached.
	lookupTool := &mockTool{name: "reference_lookup", result: map[string]any{"found": true}}
	tp := &mockToolProvider{tools: []tools.Tool{lookupTool}}
	llm := &mockLLMClient{
		responses: []Response{
			{ToolCalls: []ToolCall{{Name: "reference_lookup", Args: map[string]any{"food_name": "egg"}}}},
		},
	}

	coord := newTestCoordinator(llm, tp, 25)

	decomp, err := coord.Decompose(context.Background(), "something complicated", nil, nil)
	if err != nil {
		t.Fatalf("Expected no error at budget exhaustion, got: %v", err)
	}
	if !decomp.Ambiguous {
		t.Error("Expected an ambiguous decomposition at budget exhaustion")
	}
	if decomp.ClarificationQuestion == "" {
		t.Error("Expected a clarification question at budget exhaustion")
	}
	if lookupTool.callCount != 25 {
		t.Errorf("Expected the tool to run once per iteration (25), ran %d times", lookupTool.callCount)
	}
}

func TestCoordinator_Decompose_ToolRunsOnce(t *testing.T) {
	lookupTool := &mockTool{name: "reference_lookup", result: map[string]any{"found": true}}
	tp := &mockToolProvider{tools: []tools.Tool{lookupTool}}
	llm := &mockLLMClient{
		responses: []Response{
			{ToolCalls: []ToolCall{
				{Name: "reference_lookup", Args: map[string]any{"food_name": "egg"}},
				{Name: "reference_lookup", Args: map[string]any{"food_name": "egg"}}, // duplicate
			}},
			{Content: `{"mentions": [{"name": "egg", "quantity": "1 egg"}], "ambiguous": false}`},
		},
	}

	coord := newTestCoordinator(llm, tp, 5)

	if _, err := coord.Decompose(context.Background(), "an egg", nil, nil); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if lookupTool.callCount != 1 {
		t.Errorf("Expected reference_lookup to be called once after dedupe, was called %d times", lookupTool.callCount)
	}
}

func TestDedupeToolCalls(t *testing.T) {
	tests := []struct {
		name     string
		input    []ToolCall
		expected int
	}{
		{
			name: "no duplicates",
			input: []ToolCall{
				{Name: "reference_lookup", Args: map[string]any{"food_name": "egg"}},
				{Name: "evaluate_expression", Args: map[string]any{"expression": "155*2"}},
			},
			expected: 2,
		},
		{
			name: "exact duplicates",
			input: []ToolCall{
				{Name: "reference_lookup", Args: map[string]any{"food_name": "egg"}},
				{Name: "reference_lookup", Args: map[string]any{"food_name": "egg"}},
			},
			expected: 1,
		},
		{
			name: "same tool different args",
			input: []ToolCall{
				{Name: "reference_lookup", Args: map[string]any{"food_name": "egg"}},
				{Name: "reference_lookup", Args: map[string]any{"food_name": "butter"}},
			},
			expected: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := dedupeToolCalls(tt.input)
			if len(result) != tt.expected {
				t.Errorf("Expected %d calls after dedup, got %d", tt.expected, len(result))
			}
		})
	}
}
