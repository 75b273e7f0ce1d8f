package reference

// Portion is a standard serving attached to a record, e.g. "1 cup" -> 186g.
type Portion struct {
	Label string  `json:"label"`
	Grams float64 `json:"grams"`
}

// Record is a single food-composition entry. Macro values are per 100g edible
// portion. Records are created during ingestion and read-only afterwards.
type Record struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Kcal        float64   `json:"kcal"`
	Protein     float64   `json:"protein"`
	Carbs       float64   `json:"carbs"`
	Fats        float64   `json:"fats"`
	Portions    []Portion `json:"portions,omitempty"`

	// Table names the source table the record came from. Diagnostics only; it
	// affects no lookup behavior.
	Table string `json:"table,omitempty"`
}
