package nutrition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrimind"
)

func item(name string, kcal, protein float64) nutrimind.FoodItem {
	return nutrimind.FoodItem{
		Name:       name,
		Kcal:       kcal,
		ProteinG:   protein,
		Confidence: 0.95,
		Source:     nutrimind.SourceVerified,
	}
}

func TestValidatorRules(t *testing.T) {
	validator := NewValidator(nutrimind.ValidationConfig{})

	tests := []struct {
		name      string
		items     []nutrimind.FoodItem
		wantRules []string
	}{
		{
			name:      "plausible meal passes",
			items:     []nutrimind.FoodItem{item("2 Boiled Eggs (100g)", 155, 12.56)},
			wantRules: nil,
		},
		{
			name:      "overcaloric chai flagged",
			items:     []nutrimind.FoodItem{item("1 Cup Chai (240ml)", 320, 8)},
			wantRules: []string{RuleBeverageKcal},
		},
		{
			name:      "lassi is a rich beverage and exempt",
			items:     []nutrimind.FoodItem{item("Mango Lassi (300ml)", 280, 7)},
			wantRules: nil,
		},
		{
			name:      "milkshake exempt from the beverage rule",
			items:     []nutrimind.FoodItem{item("Chocolate Milkshake", 450, 10)},
			wantRules: nil,
		},
		{
			name:      "implausible single item kcal",
			items:     []nutrimind.FoodItem{item("Paneer Butter Masala", 1800, 60)},
			wantRules: []string{RuleItemKcal},
		},
		{
			name:      "implausible single item protein",
			items:     []nutrimind.FoodItem{item("Chicken Breast (400g)", 660, 124)},
			wantRules: []string{RuleItemProtein},
		},
		{
			name:      "zero calorie anomaly",
			items:     []nutrimind.FoodItem{item("Aloo Paratha", 0, 0)},
			wantRules: []string{RuleZeroKcal},
		},
		{
			name: "water and tea exempt from zero calorie rule",
			items: []nutrimind.FoodItem{
				item("Glass of Water", 0, 0),
				item("Black Tea", 0, 0),
				item("Salt and Pepper", 0, 0),
			},
			wantRules: nil,
		},
		{
			name: "rules are independent and all reported",
			items: []nutrimind.FoodItem{
				item("Sweet Cold Coffee (500ml)", 400, 9),
				item("Mystery Gravy", 1600, 12),
			},
			wantRules: []string{RuleBeverageKcal, RuleItemKcal},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := validator.Validate(nutrimind.AnalysisResult{Items: tt.items})

			var rules []string
			for _, v := range violations {
				rules = append(rules, v.Rule)
			}
			assert.Equal(t, tt.wantRules, rules)
		})
	}
}

func TestValidatorIsPure(t *testing.T) {
	validator := NewValidator(nutrimind.ValidationConfig{})
	result := nutrimind.AnalysisResult{Items: []nutrimind.FoodItem{item("1 Cup Chai", 320, 8)}}

	first := validator.Validate(result)
	second := validator.Validate(result)
	assert.Equal(t, first, second)
	require.Len(t, first, 1)
	assert.NotEmpty(t, first[0].Message)
}

func TestValidatorConfigurableCeilings(t *testing.T) {
	validator := NewValidator(nutrimind.ValidationConfig{
		BeverageKcalCeiling: 300,
		ItemKcalCeiling:     2000,
		ItemProteinCeiling:  150,
	})

	violations := validator.Validate(nutrimind.AnalysisResult{Items: []nutrimind.FoodItem{
		item("1 Cup Chai", 250, 8),          // under the raised beverage ceiling
		item("Family Biryani", 1800, 120),   // under the raised item ceilings
	}})
	assert.Empty(t, violations)
}
