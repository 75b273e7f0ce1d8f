package nutrition

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"nutrimind/reference"
)

func TestScaleIdentityAt100g(t *testing.T) {
	records := []reference.Record{
		{Description: "Egg, whole, cooked, hard-boiled", Kcal: 155, Protein: 12.56, Carbs: 1.12, Fats: 10.58},
		{Description: "Butter, salted", Kcal: 717, Protein: 0.85, Carbs: 0.06, Fats: 81.11},
		{Description: "Ghee (clarified butter)", Kcal: 897, Protein: 0, Carbs: 0, Fats: 99.5},
	}

	for _, rec := range records {
		m := Scale(&rec, 100)
		assert.Equal(t, rec.Kcal, m.Kcal, rec.Description)
		assert.Equal(t, rec.Protein, m.ProteinG, rec.Description)
		assert.Equal(t, rec.Carbs, m.CarbsG, rec.Description)
		assert.Equal(t, rec.Fats, m.FatsG, rec.Description)
	}
}

func TestScaleIsLinear(t *testing.T) {
	butter := &reference.Record{Description: "Butter, salted", Kcal: 717, Protein: 0.85, Carbs: 0.06, Fats: 81.11}

	m := Scale(butter, 15)
	assert.InDelta(t, 107.55, m.Kcal, 1e-9)
	assert.InDelta(t, 0.1275, m.ProteinG, 1e-9)

	zero := Scale(butter, 0)
	assert.Zero(t, zero.Kcal)
	assert.Zero(t, zero.FatsG)
}
