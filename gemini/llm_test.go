package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrimind/coordinator"
)

func TestToGenaiContents(t *testing.T) {
	messages := []coordinator.Message{
		{Role: "system", Content: "You are NutriMind."},
		{Role: "user", Content: "2 boiled eggs"},
		{Role: "assistant", ToolCalls: []coordinator.ToolCall{
			{Name: "reference_lookup", Args: map[string]any{"food_name": "egg"}},
		}},
		{Role: "tool", Name: "reference_lookup", Content: `{"found": true}`},
		{Role: "user", Content: "Continue."},
	}

	system, history, last, err := toGenaiContents(messages)
	require.NoError(t, err)

	require.NotNil(t, system)
	assert.Equal(t, genai.Text("You are NutriMind."), system.Parts[0])

	require.Len(t, history, 3)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	call, ok := history[1].Parts[0].(genai.FunctionCall)
	require.True(t, ok)
	assert.Equal(t, "reference_lookup", call.Name)

	assert.Equal(t, "function", history[2].Role)
	fr, ok := history[2].Parts[0].(genai.FunctionResponse)
	require.True(t, ok)
	assert.Equal(t, "reference_lookup", fr.Name)
	assert.Equal(t, true, fr.Response["found"])

	require.NotNil(t, last)
	assert.Equal(t, "user", last.Role)
	assert.Equal(t, genai.Text("Continue."), last.Parts[0])
}

func TestToGenaiContentsRejectsUnknownRole(t *testing.T) {
	_, _, _, err := toGenaiContents([]coordinator.Message{{Role: "narrator", Content: "hm"}})
	assert.Error(t, err)
}

func TestToGenaiContentsToolPayloadFallback(t *testing.T) {
	// Non-JSON tool output still reaches the model, wrapped as raw text.
	_, history, last, err := toGenaiContents([]coordinator.Message{
		{Role: "tool", Name: "evaluate_expression", Content: "not json"},
		{Role: "user", Content: "go on"},
	})
	require.NoError(t, err)
	require.Len(t, history, 1)
	fr := history[0].Parts[0].(genai.FunctionResponse)
	assert.Equal(t, "not json", fr.Response["raw"])
	require.NotNil(t, last)
}

func TestToGenaiSchema(t *testing.T) {
	schema := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"food_name": {Type: "string", Description: "ingredient name"},
			"count":     {Type: "integer"},
			"flags":     {Type: "array", Items: &jsonschema.Schema{Type: "boolean"}},
		},
		Required: []string{"food_name"},
	}

	got := toGenaiSchema(schema)
	require.NotNil(t, got)
	assert.Equal(t, genai.TypeObject, got.Type)
	assert.Equal(t, []string{"food_name"}, got.Required)
	assert.Equal(t, genai.TypeString, got.Properties["food_name"].Type)
	assert.Equal(t, "ingredient name", got.Properties["food_name"].Description)
	assert.Equal(t, genai.TypeInteger, got.Properties["count"].Type)
	assert.Equal(t, genai.TypeArray, got.Properties["flags"].Type)
	assert.Equal(t, genai.TypeBoolean, got.Properties["flags"].Items.Type)

	assert.Nil(t, toGenaiSchema(nil))
}

func TestClampEstimated(t *testing.T) {
	assert.Equal(t, 0.75, clampEstimated(0.1))
	assert.Equal(t, 0.85, clampEstimated(0.99))
	assert.Equal(t, 0.8, clampEstimated(0.8))
}
