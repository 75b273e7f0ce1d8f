package coordinator

import (
	"fmt"
	"sort"
	"strings"

	"nutrimind"
)

// NewPrompt builds the initial transcript for one analysis run: the decomposition
// system prompt, the user's meal description, and the tool surface. Preference
// overrides and corrective feedback (from a failed validation pass) are injected
// as additional user turns so every provider sees them the same way.
func NewPrompt(input string, prefs map[string]string, feedback []string, tp nutrimind.ToolProvider) (Prompt, error) {
	var tools []Tool
	for _, tool := range tp.GetTools() {
		tools = append(tools, Tool{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.InputSchema(),
		})
	}

	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: input},
	}

	if len(prefs) > 0 {
		keys := make([]string, 0, len(prefs))
		for k := range prefs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString("Known user preferences (use these when interpreting vague quantities):\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s = %s\n", k, prefs[k])
		}
		messages = append(messages, Message{Role: "user", Content: b.String()})
	}

	if len(feedback) > 0 {
		messages = append(messages, Message{
			Role: "user",
			Content: "Your previous decomposition produced implausible numbers:\n- " +
				strings.Join(feedback, "\n- ") +
				"\nRe-check the ingredient names and quantities and return a corrected JSON object.",
		})
	}

	return Prompt{Messages: messages, Tools: tools}, nil
}

const systemPrompt string = `You are NutriMind, a nutrition analysis assistant.

GOAL
Break the user's meal description into simple base ingredients with their quantities. You do NOT compute macros yourself; a downstream resolver does that from a verified nutrient reference.

OUTPUT CONTRACT
- Your final response must be ONE valid JSON object only (no extra text, no markdown, no code fences). Start with '{' and end with '}'.
- Shape:
{
  "mentions": [
    { "name": string, "quantity": string }   // e.g. {"name": "egg", "quantity": "2 boiled eggs"}
  ],
  "ambiguous": boolean,
  "clarification_question": string|null,     // set only when ambiguous is true
  "notes": string                            // <= 200 chars, assumptions you made
}

DECOMPOSITION RULES
- Composite dishes become their ingredients: "egg sandwich" -> egg, bread, butter.
- Simple foods stay as one mention: "2 boiled eggs" -> one mention, name "egg".
- "name" is the bare ingredient in singular lowercase ("egg", not "2 Boiled Eggs").
- "quantity" preserves the user's own wording, including counts and units.
- Keep cooking-state qualifiers that change nutrition ("rice, cooked", "fried egg").
- If the description is too vague to decompose at all (e.g. "some food", "lunch"),
  set ambiguous=true and ask ONE short clarification question instead of guessing.
- A vague but workable quantity ("a bowl of dal") is NOT ambiguous; note the assumption.

TOOLS
- reference_lookup tells you whether an ingredient name has a verified match and
  what its standard portions are. Use it to pick names the reference will recognize
  (e.g. prefer "rice, white, cooked" over "rice" if unsure).
- evaluate_expression does exact arithmetic if you need it.
- Call tools natively; never print a JSON blob describing a call.
- Do not re-call a tool with the same arguments.

REMINDERS
- Final answer MUST be just the JSON object.
- Do not echo tool results.
- Never invent macro numbers; that is the resolver's job.`
