package ingest

import "nutrimind/reference"

// RegionalRecords returns the curated supplement table: everyday South Asian
// foods the USDA exports cover poorly or not at all. Macros are per 100g of the
// prepared food; portion weights follow household convention.
func RegionalRecords() []reference.Record {
	return []reference.Record{
		{
			ID: "r-0001", Description: "Roti, whole wheat, dry roasted",
			Kcal: 264, Protein: 8.8, Carbs: 52.3, Fats: 3.2,
			Portions: []reference.Portion{{Label: "1 roti", Grams: 60}},
			Table:    "regional_supplement",
		},
		{
			ID: "r-0002", Description: "Paratha, plain, pan fried",
			Kcal: 320, Protein: 6.4, Carbs: 43.9, Fats: 13.2,
			Portions: []reference.Portion{{Label: "1 paratha", Grams: 80}},
			Table:    "regional_supplement",
		},
		{
			ID: "r-0003", Description: "Dal, lentil curry, cooked",
			Kcal: 116, Protein: 6.8, Carbs: 17.5, Fats: 2.3,
			Portions: []reference.Portion{{Label: "1 katori", Grams: 150}},
			Table:    "regional_supplement",
		},
		{
			ID: "r-0004", Description: "Idli, steamed rice cake",
			Kcal: 132, Protein: 4.0, Carbs: 27.6, Fats: 0.4,
			Portions: []reference.Portion{{Label: "1 idli", Grams: 40}},
			Table:    "regional_supplement",
		},
		{
			ID: "r-0005", Description: "Dosa, plain",
			Kcal: 168, Protein: 3.9, Carbs: 29.0, Fats: 3.7,
			Portions: []reference.Portion{{Label: "1 dosa", Grams: 120}},
			Table:    "regional_supplement",
		},
		{
			ID: "r-0006", Description: "Poha, flattened rice, cooked",
			Kcal: 130, Protein: 2.6, Carbs: 26.9, Fats: 1.5,
			Portions: []reference.Portion{{Label: "1 plate", Grams: 200}},
			Table:    "regional_supplement",
		},
		{
			ID: "r-0007", Description: "Paneer, fresh cheese",
			Kcal: 265, Protein: 18.3, Carbs: 1.2, Fats: 20.8,
			Portions: []reference.Portion{{Label: "1 cube", Grams: 20}},
			Table:    "regional_supplement",
		},
		{
			ID: "r-0008", Description: "Chai, tea with milk and sugar",
			Kcal: 45, Protein: 1.5, Carbs: 6.8, Fats: 1.4,
			Portions: []reference.Portion{{Label: "1 cup", Grams: 150}, {Label: "1 glass", Grams: 200}},
			Table:    "regional_supplement",
		},
		{
			ID: "r-0009", Description: "Sambar, vegetable lentil stew",
			Kcal: 65, Protein: 3.1, Carbs: 10.2, Fats: 1.4,
			Portions: []reference.Portion{{Label: "1 katori", Grams: 150}},
			Table:    "regional_supplement",
		},
		{
			ID: "r-0010", Description: "Curd, plain yogurt, whole milk",
			Kcal: 61, Protein: 3.5, Carbs: 4.7, Fats: 3.3,
			Portions: []reference.Portion{{Label: "1 katori", Grams: 150}},
			Table:    "regional_supplement",
		},
		{
			ID: "r-0011", Description: "Upma, semolina, cooked",
			Kcal: 155, Protein: 3.6, Carbs: 25.3, Fats: 4.4,
			Portions: []reference.Portion{{Label: "1 plate", Grams: 200}},
			Table:    "regional_supplement",
		},
		{
			ID: "r-0012", Description: "Biryani, chicken, cooked",
			Kcal: 170, Protein: 9.1, Carbs: 18.4, Fats: 6.5,
			Portions: []reference.Portion{{Label: "1 plate", Grams: 300}},
			Table:    "regional_supplement",
		},
	}
}
