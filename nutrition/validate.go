package nutrition

import (
	"fmt"
	"strings"

	"nutrimind"
)

// Rule identifiers for violations.
const (
	RuleBeverageKcal = "beverage_kcal"
	RuleItemKcal     = "item_kcal"
	RuleItemProtein  = "item_protein"
	RuleZeroKcal     = "zero_kcal"
)

// Violation is one advisory sanity-check failure. Violations never block a response;
// they drive one corrective re-run and, at most, a caveat in the result notes.
type Violation struct {
	Item    string
	Rule    string
	Message string
}

var beverageKeywords = []string{
	"tea", "chai", "coffee", "juice", "milk", "buttermilk", "chaas",
	"soda", "cola", "drink", "lemonade", "sharbat", "coconut water",
}

// Beverages that genuinely carry a full meal's worth of calories.
var richBeverageKeywords = []string{"lassi", "milkshake", "shake", "smoothie"}

var zeroKcalExemptKeywords = []string{"water", "tea", "spice", "salt", "pepper"}

// Validator applies the rule-based post-check to an analysis result. It is a pure
// function of the result: the same unmodified result always yields the same
// violation list.
type Validator struct {
	cfg nutrimind.ValidationConfig
}

func NewValidator(cfg nutrimind.ValidationConfig) *Validator {
	if cfg.BeverageKcalCeiling == 0 {
		cfg.BeverageKcalCeiling = 150
	}
	if cfg.ItemKcalCeiling == 0 {
		cfg.ItemKcalCeiling = 1500
	}
	if cfg.ItemProteinCeiling == 0 {
		cfg.ItemProteinCeiling = 100
	}
	return &Validator{cfg: cfg}
}

// Validate runs every rule independently and returns all violations found.
func (v *Validator) Validate(result nutrimind.AnalysisResult) []Violation {
	var violations []Violation

	for _, item := range result.Items {
		name := strings.ToLower(item.Name)

		if containsAny(name, beverageKeywords) && !containsAny(name, richBeverageKeywords) &&
			item.Kcal > v.cfg.BeverageKcalCeiling {
			violations = append(violations, Violation{
				Item: item.Name,
				Rule: RuleBeverageKcal,
				Message: fmt.Sprintf("%q is a beverage at %.0f kcal, above the %.0f kcal ceiling; check the milk/sugar assumptions",
					item.Name, item.Kcal, v.cfg.BeverageKcalCeiling),
			})
		}

		if item.Kcal > v.cfg.ItemKcalCeiling {
			violations = append(violations, Violation{
				Item: item.Name,
				Rule: RuleItemKcal,
				Message: fmt.Sprintf("%q at %.0f kcal exceeds the plausible single-item ceiling of %.0f kcal",
					item.Name, item.Kcal, v.cfg.ItemKcalCeiling),
			})
		}

		if item.ProteinG > v.cfg.ItemProteinCeiling {
			violations = append(violations, Violation{
				Item: item.Name,
				Rule: RuleItemProtein,
				Message: fmt.Sprintf("%q at %.1fg protein exceeds the plausible single-item ceiling of %.0fg",
					item.Name, item.ProteinG, v.cfg.ItemProteinCeiling),
			})
		}

		if item.Kcal == 0 && !containsAny(name, zeroKcalExemptKeywords) {
			violations = append(violations, Violation{
				Item:    item.Name,
				Rule:    RuleZeroKcal,
				Message: fmt.Sprintf("%q reports exactly 0 kcal, which is implausible for a non-exempt food", item.Name),
			})
		}
	}

	return violations
}

// Messages flattens violations into corrective-context lines for a re-run.
func Messages(violations []Violation) []string {
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Message)
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
