package nutrition

import "nutrimind/reference"

// Macros is one set of macro values at a concrete weight.
type Macros struct {
	Kcal     float64
	ProteinG float64
	CarbsG   float64
	FatsG    float64
}

// Scale converts a record's per-100g values to the given weight. Pure linear
// scaling with no rounding; the rounding policy is applied once when a result's
// totals are finalized, so error never compounds across many small ingredients.
func Scale(record *reference.Record, grams float64) Macros {
	factor := grams / 100
	return Macros{
		Kcal:     record.Kcal * factor,
		ProteinG: record.Protein * factor,
		CarbsG:   record.Carbs * factor,
		FatsG:    record.Fats * factor,
	}
}
