package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"nutrimind/reference"
)

// USDA FoodData Central nutrient numbers for the four tracked macros.
const (
	nutrientEnergyKcal = 1008
	nutrientProtein    = 1003
	nutrientCarbs      = 1005
	nutrientFat        = 1004
)

// defaultDataTypes are the USDA data types worth indexing: curated entries with
// lab-grade macros. Survey and branded foods are noisy and duplicate-heavy.
var defaultDataTypes = map[string]bool{
	"foundation_food": true,
	"sr_legacy_food":  true,
}

// ParseUSDA reads the three FoodData Central CSV exports and joins them into
// reference records. Foods missing an energy value are dropped; missing macro
// components default to zero, matching the source convention.
func ParseUSDA(foods, nutrients, portions io.Reader) ([]reference.Record, error) {
	byID, order, err := parseFoods(foods)
	if err != nil {
		return nil, fmt.Errorf("food.csv: %w", err)
	}
	if err := parseNutrients(nutrients, byID); err != nil {
		return nil, fmt.Errorf("food_nutrient.csv: %w", err)
	}
	if portions != nil {
		if err := parsePortions(portions, byID); err != nil {
			return nil, fmt.Errorf("food_portion.csv: %w", err)
		}
	}

	records := make([]reference.Record, 0, len(order))
	for _, id := range order {
		rec := byID[id]
		if !rec.hasEnergy {
			continue
		}
		records = append(records, rec.Record)
	}
	return records, nil
}

type pendingRecord struct {
	reference.Record
	hasEnergy bool
}

func parseFoods(r io.Reader) (map[string]*pendingRecord, []string, error) {
	rows, idx, err := newCSVReader(r, "fdc_id", "data_type", "description")
	if err != nil {
		return nil, nil, err
	}

	byID := map[string]*pendingRecord{}
	var order []string
	for {
		row, err := rows.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		if !defaultDataTypes[row[idx["data_type"]]] {
			continue
		}
		id := row[idx["fdc_id"]]
		desc := strings.TrimSpace(row[idx["description"]])
		if id == "" || desc == "" {
			continue
		}
		byID[id] = &pendingRecord{Record: reference.Record{
			ID:          id,
			Description: desc,
			Table:       row[idx["data_type"]],
		}}
		order = append(order, id)
	}
	return byID, order, nil
}

func parseNutrients(r io.Reader, byID map[string]*pendingRecord) error {
	rows, idx, err := newCSVReader(r, "fdc_id", "nutrient_id", "amount")
	if err != nil {
		return err
	}

	for {
		row, err := rows.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		rec, ok := byID[row[idx["fdc_id"]]]
		if !ok {
			continue
		}
		nutrientID, err := strconv.Atoi(row[idx["nutrient_id"]])
		if err != nil {
			continue
		}
		amount, err := strconv.ParseFloat(row[idx["amount"]], 64)
		if err != nil || amount < 0 {
			continue
		}

		switch nutrientID {
		case nutrientEnergyKcal:
			rec.Kcal = amount
			rec.hasEnergy = true
		case nutrientProtein:
			rec.Protein = amount
		case nutrientCarbs:
			rec.Carbs = amount
		case nutrientFat:
			rec.Fats = amount
		}
	}
}

func parsePortions(r io.Reader, byID map[string]*pendingRecord) error {
	rows, idx, err := newCSVReader(r, "fdc_id", "amount", "modifier", "gram_weight")
	if err != nil {
		return err
	}

	for {
		row, err := rows.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		rec, ok := byID[row[idx["fdc_id"]]]
		if !ok {
			continue
		}
		grams, err := strconv.ParseFloat(row[idx["gram_weight"]], 64)
		if err != nil || grams <= 0 {
			continue
		}
		label := portionLabel(row[idx["amount"]], row[idx["modifier"]])
		if label == "" {
			continue
		}
		rec.Portions = append(rec.Portions, reference.Portion{Label: label, Grams: grams})
	}
}

// portionLabel renders amount=1, modifier="cup" as "1 cup". Trailing ".0" on
// whole amounts is dropped to keep labels matchable against user phrasing.
func portionLabel(amount, modifier string) string {
	modifier = strings.TrimSpace(modifier)
	if modifier == "" {
		return ""
	}
	amount = strings.TrimSpace(amount)
	if v, err := strconv.ParseFloat(amount, 64); err == nil && v == float64(int(v)) {
		amount = strconv.Itoa(int(v))
	}
	if amount == "" {
		return modifier
	}
	return amount + " " + modifier
}

// newCSVReader wraps a csv.Reader and resolves the required header columns.
func newCSVReader(r io.Reader, required ...string) (*csv.Reader, map[string]int, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	idx := map[string]int{}
	for i, col := range header {
		idx[strings.TrimSpace(strings.ToLower(col))] = i
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, nil, fmt.Errorf("missing required column %q", col)
		}
	}
	return cr, idx, nil
}
