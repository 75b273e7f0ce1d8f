package coordinator

import (
	"encoding/json"
	"fmt"
	"strings"

	"nutrimind"
)

// ExtractJSON pulls the outermost JSON object out of a model response. Models
// wrap output in markdown fences or prose often enough that going straight to
// json.Unmarshal loses too many otherwise-usable responses.
func ExtractJSON(text string) (string, bool) {
	s := strings.TrimSpace(text)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// ParseDecomposition parses a model turn into a Decomposition. It fails when the
// text holds no JSON object, the JSON is malformed, or the object carries neither
// mentions nor an ambiguity signal (the model is probably still thinking out loud).
func ParseDecomposition(text string) (*Decomposition, error) {
	raw, ok := ExtractJSON(text)
	if !ok {
		return nil, fmt.Errorf("no JSON object found in model output")
	}

	var d Decomposition
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("failed to parse decomposition JSON: %w", err)
	}

	if len(d.Mentions) == 0 && !d.Ambiguous {
		return nil, fmt.Errorf("decomposition has no mentions and is not marked ambiguous")
	}
	for _, m := range d.Mentions {
		if strings.TrimSpace(m.Name) == "" {
			return nil, fmt.Errorf("decomposition contains a mention with an empty name")
		}
	}
	if d.Ambiguous && strings.TrimSpace(d.ClarificationQuestion) == "" {
		d.ClarificationQuestion = "Could you describe what you ate in a bit more detail?"
	}
	return &d, nil
}

// ParseAnalysis parses a fully-formed analysis object from model output. This is
// the fallback contract used by the direct estimation path, where the model is
// asked for macros itself instead of a decomposition.
func ParseAnalysis(text string) (*nutrimind.AnalysisResult, error) {
	raw, ok := ExtractJSON(text)
	if !ok {
		return nil, fmt.Errorf("no JSON object found in model output")
	}

	var result nutrimind.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("failed to parse analysis JSON: %w", err)
	}
	if !result.IsValid() {
		return nil, fmt.Errorf("analysis JSON failed structural validation")
	}
	return &result, nil
}
