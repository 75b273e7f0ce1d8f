package nutrition

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"nutrimind/reference"
)

// WeightEstimator supplies a model-estimated gram weight when neither the record's
// standard portions nor the colloquial defaults cover the quantity description.
type WeightEstimator func(ctx context.Context, foodName, quantity string) (float64, error)

// fallbackGrams is used when even the estimator is unavailable or fails.
const fallbackGrams = 100

type unitWeight struct {
	unit  string
	grams float64
}

// defaultUnitWeights maps colloquial units to regionally-conventional gram weights.
// These are deliberate approximations for Indian-style portions; a caller preference
// with a matching key (e.g. "bowl_size") overrides the entry. Ordered so that a
// description naming several units resolves deterministically to the first listed.
var defaultUnitWeights = []unitWeight{
	{"egg", 50}, // without shell
	{"roti", 60},
	{"chapati", 60},
	{"paratha", 80},
	{"idli", 40},
	{"bowl", 150}, // cooked rice bowl as the reference bowl
	{"katori", 150},
	{"plate", 250},
	{"glass", 258}, // 250ml milk
	{"cup", 240},
	{"slice", 25},
	{"piece", 50},
	{"tbsp", 15},
	{"tsp", 5},
}

var (
	gramsPattern   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(kg|g|gm|gms|gram|grams|ml)\b`)
	numberPattern  = regexp.MustCompile(`(\d+(?:\.\d+)?)(?:\s*/\s*(\d+(?:\.\d+)?))?`)
	nonWordPattern = regexp.MustCompile(`[^a-z0-9/.\s]`)
)

// ResolveWeight determines the gram weight for one resolved ingredient mention.
// Precedence:
//  1. an explicit weight in the description ("15g butter", "0.5 kg");
//  2. a record standard portion whose unit appears in the description, scaled by the
//     stated multiplier ("2 cups" with a "1 cup = 186g" portion -> 372g);
//  3. a caller preference override for a colloquial unit ("bowl_size" -> "300ml");
//  4. the built-in colloquial default table;
//  5. the estimator hook, falling back to 100g.
//
// foodName is only used for estimator context and logging. The function never fails;
// ambiguity resolves to the most conventional reading.
func ResolveWeight(ctx context.Context, record *reference.Record, foodName, quantity string, prefs map[string]string, estimate WeightEstimator) float64 {
	q := normalizeQuantity(quantity)

	// 1) Explicit weight.
	if m := gramsPattern.FindStringSubmatch(q); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		if m[2] == "kg" {
			v *= 1000
		}
		return v
	}

	multiplier := parseMultiplier(q)

	// 2) Record standard portions, in their stored order.
	if record != nil {
		for _, p := range record.Portions {
			if portionMatches(p.Label, q) {
				return p.Grams * multiplier
			}
		}
	}

	// 3+4) Colloquial units, with preference overrides beating the defaults.
	for _, uw := range defaultUnitWeights {
		if !containsUnit(q, uw.unit) {
			continue
		}
		if override, ok := prefs[uw.unit+"_size"]; ok {
			if v := parseLooseGrams(override); v > 0 {
				return v * multiplier
			}
		}
		return uw.grams * multiplier
	}

	// 5) Model estimate.
	if estimate != nil {
		if v, err := estimate(ctx, foodName, quantity); err == nil && v > 0 {
			return v
		} else if err != nil {
			slog.Warn("PORTION: Weight estimator failed, using fallback", "food", foodName, "error", err)
		}
	}
	return fallbackGrams * multiplier
}

func normalizeQuantity(quantity string) string {
	q := strings.ToLower(strings.TrimSpace(quantity))
	return nonWordPattern.ReplaceAllString(q, " ")
}

// parseMultiplier reads the first number in the description, including simple
// fractions ("1/2 cup" -> 0.5). No number means one unit.
func parseMultiplier(q string) float64 {
	m := numberPattern.FindStringSubmatch(q)
	if m == nil {
		return 1
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v <= 0 {
		return 1
	}
	if m[2] != "" {
		d, err := strconv.ParseFloat(m[2], 64)
		if err == nil && d > 0 {
			v /= d
		}
	}
	return v
}

// portionMatches reports whether a standard-portion label's unit word appears in the
// quantity description. The label's own leading count is skipped: "1 cup" matches
// "2 cups" via "cup".
func portionMatches(label, q string) bool {
	for _, w := range strings.Fields(normalizeQuantity(label)) {
		if numberPattern.MatchString(w) {
			continue
		}
		if containsUnit(q, w) {
			return true
		}
	}
	return false
}

func containsUnit(q, unit string) bool {
	for _, w := range strings.Fields(q) {
		if w == unit || w == unit+"s" || w == unit+"es" {
			return true
		}
	}
	return false
}

// parseLooseGrams extracts a number out of a preference value like "300ml" or
// "about 200 g". ml is taken as grams one-to-one.
func parseLooseGrams(v string) float64 {
	m := numberPattern.FindStringSubmatch(strings.ToLower(v))
	if m == nil {
		return 0
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	if strings.Contains(v, "kg") {
		f *= 1000
	}
	return f
}
