package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrimind/reference"
)

type stubResolver struct {
	records map[string]*reference.Record
	score   float64
}

func (s *stubResolver) Resolve(ctx context.Context, name string) (*reference.Record, float64) {
	if rec, ok := s.records[name]; ok {
		return rec, s.score
	}
	return nil, 0
}

func TestReferenceLookupRun(t *testing.T) {
	resolver := &stubResolver{
		score: 0.91,
		records: map[string]*reference.Record{
			"rice": {
				ID:          "20045",
				Description: "Rice, white, cooked",
				Kcal:        130,
				Protein:     2.69,
				Carbs:       28.17,
				Fats:        0.28,
				Portions:    []reference.Portion{{Label: "1 cup", Grams: 186}},
			},
		},
	}
	tool := NewReferenceLookup(resolver)
	ctx := context.Background()

	t.Run("hit returns per-100g macros and portions", func(t *testing.T) {
		out, err := tool.Run(ctx, map[string]any{"food_name": "rice"})
		require.NoError(t, err)

		assert.Equal(t, true, out["found"])
		assert.Equal(t, "Rice, white, cooked", out["match_name"])
		assert.InDelta(t, 130, out["kcal_per_100g"].(float64), 1e-9)
		assert.InDelta(t, 0.91, out["similarity"].(float64), 1e-9)

		portions, ok := out["standard_portions"].([]any)
		require.True(t, ok)
		require.Len(t, portions, 1)
		portion := portions[0].(map[string]any)
		assert.Equal(t, "1 cup", portion["label"])
		assert.InDelta(t, 186, portion["grams"].(float64), 1e-9)
	})

	t.Run("miss returns found=false with guidance", func(t *testing.T) {
		out, err := tool.Run(ctx, map[string]any{"food_name": "unknown_fictional_food_xyz"})
		require.NoError(t, err)

		assert.Equal(t, false, out["found"])
		assert.Contains(t, out["message"], "unknown_fictional_food_xyz")
	})

	t.Run("missing food_name is a hard error", func(t *testing.T) {
		_, err := tool.Run(ctx, map[string]any{})
		assert.Error(t, err)
	})
}

func TestRegistry(t *testing.T) {
	registry, err := NewRegistry(&stubResolver{})
	require.NoError(t, err)

	assert.Len(t, registry.GetTools(), 2)

	lookup, err := registry.GetTool("reference_lookup")
	require.NoError(t, err)
	assert.Equal(t, "reference_lookup", lookup.Name())

	calc, err := registry.GetTool("evaluate_expression")
	require.NoError(t, err)
	assert.Equal(t, "evaluate_expression", calc.Name())

	_, err = registry.GetTool("nonexistent_tool")
	assert.Error(t, err)
}
