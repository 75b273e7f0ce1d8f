package coordinator

import (
	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// Message is one turn in the reasoning transcript. The coordinator speaks this
// neutral shape; provider clients translate it to their wire formats.
type Message struct {
	Role      string     `json:"role"` // system, user, assistant, tool
	Content   string     `json:"content,omitempty"`
	Name      string     `json:"name,omitempty"`        // tool name on tool messages
	ToolUseID string     `json:"tool_use_id,omitempty"` // provider correlation id, if any
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`  // assistant-requested tool invocations
}

// Prompt is the transcript plus the tool surface offered to the model.
type Prompt struct {
	Messages []Message `json:"messages"`
	Tools    []Tool    `json:"tools,omitempty"`
}

// HasToolResult returns true if a tool result for the given tool name exists in the
// prompt's message history.
func (p *Prompt) HasToolResult(tool string) bool {
	for _, msg := range p.Messages {
		if msg.Role == "tool" && msg.Name == tool {
			return true
		}
	}
	return false
}

// Tool is the neutral tool description handed to provider clients.
type Tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Response is a single model turn: either tool calls, final content, or both.
type Response struct {
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Mention is one decomposed ingredient with its informal quantity description.
type Mention struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
}

// Decomposition is the structured object the reasoning provider must return once it
// has broken the dish down. Ambiguous inputs carry a question instead of mentions.
type Decomposition struct {
	Mentions              []Mention `json:"mentions"`
	Ambiguous             bool      `json:"ambiguous"`
	ClarificationQuestion string    `json:"clarification_question,omitempty"`
	Notes                 string    `json:"notes,omitempty"`
}

// ResolvedIngredient is the per-mention resolution outcome, pre-grouping. It is
// request-scoped and discarded once aggregated into the final result.
type ResolvedIngredient struct {
	Name       string  // normalized ingredient name, the grouping key
	Grams      float64 // resolved weight
	Kcal       float64
	ProteinG   float64
	CarbsG     float64
	FatsG      float64
	Confidence float64
	Source     string // Verified or Estimated
}
