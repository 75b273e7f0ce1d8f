package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"nutrimind/reference"
)

// LookupResolver is the similarity-search entry point the tool exposes to the
// reasoning provider. A nil record means no verified match.
type LookupResolver interface {
	Resolve(ctx context.Context, name string) (*reference.Record, float64)
}

type ReferenceLookup struct{ resolver LookupResolver }

func NewReferenceLookup(resolver LookupResolver) *ReferenceLookup {
	return &ReferenceLookup{resolver: resolver}
}

func (t *ReferenceLookup) Name() string  { return "reference_lookup" }
func (t *ReferenceLookup) Title() string { return "Reference Nutrient Lookup" }
func (t *ReferenceLookup) Description() string {
	return "Looks up verified per-100g macros for a single simple ingredient (e.g. 'egg', 'rice, white, cooked', 'butter'). Returns found=false when nothing matches confidently; estimate from your own knowledge in that case."
}

func (t *ReferenceLookup) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"food_name": {
				Type:        "string",
				Description: "Name of a single, simple ingredient.",
			},
		},
		Required: []string{"food_name"},
	}
}

func (t *ReferenceLookup) OutputSchema() *jsonschema.Schema {
	minVal := 0.0
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"found":             {Type: "boolean"},
			"match_name":        {Type: "string"},
			"kcal_per_100g":     {Type: "number", Minimum: &minVal},
			"protein_per_100g":  {Type: "number", Minimum: &minVal},
			"carbs_per_100g":    {Type: "number", Minimum: &minVal},
			"fats_per_100g":     {Type: "number", Minimum: &minVal},
			"similarity":        {Type: "number"},
			"standard_portions": {Type: "array"},
			"message":           {Type: "string"},
		},
		Required: []string{"found"},
	}
}

func (t *ReferenceLookup) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	name, ok := input["food_name"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("reference_lookup: food_name is required")
	}

	record, score := t.resolver.Resolve(ctx, name)
	if record == nil {
		return map[string]any{
			"found":   false,
			"message": fmt.Sprintf("No verified match for %q. Estimate using your own knowledge and mark the item Estimated.", name),
		}, nil
	}

	out := struct {
		Found      bool    `json:"found"`
		MatchName  string  `json:"match_name"`
		Kcal       float64 `json:"kcal_per_100g"`
		Protein    float64 `json:"protein_per_100g"`
		Carbs      float64 `json:"carbs_per_100g"`
		Fats       float64 `json:"fats_per_100g"`
		Similarity float64 `json:"similarity"`
		Portions   []struct {
			Label string  `json:"label"`
			Grams float64 `json:"grams"`
		} `json:"standard_portions,omitempty"`
	}{
		Found:      true,
		MatchName:  record.Description,
		Kcal:       record.Kcal,
		Protein:    record.Protein,
		Carbs:      record.Carbs,
		Fats:       record.Fats,
		Similarity: score,
	}
	for _, p := range record.Portions {
		out.Portions = append(out.Portions, struct {
			Label string  `json:"label"`
			Grams float64 `json:"grams"`
		}{Label: p.Label, Grams: p.Grams})
	}

	// marshal -> map[string]any to keep outputs uniform
	b, _ := json.Marshal(out)
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	return m, nil
}
