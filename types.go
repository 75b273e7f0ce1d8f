package nutrimind

import (
	"context"
	"math"
	"net/http"
	"time"

	"nutrimind/tools"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type ToolProvider interface {
	GetTools() []tools.Tool
	GetTool(name string) (tools.Tool, error)
}

// PreferenceProvider returns a user's key/value overrides (e.g. "bowl_size" -> "300ml").
// The engine takes one snapshot per request; later writes do not affect in-flight requests.
type PreferenceProvider interface {
	GetPreferences(ctx context.Context, userKey string) (map[string]string, error)
}

// SessionStore tracks pending clarification sessions, one per user. A session is
// created when an analysis comes back ambiguous and cleared once the user answers
// (or explicitly cancels).
type SessionStore interface {
	SavePending(ctx context.Context, session PendingClarification) error
	GetPending(ctx context.Context, userKey string) (*PendingClarification, error)
	ClearPending(ctx context.Context, userKey string) error
}

// PendingClarification is the stored state of an unresolved ambiguous analysis.
type PendingClarification struct {
	UserKey       string    `json:"user_key"`
	Question      string    `json:"question"`
	PartialResult string    `json:"partial_result"` // serialized AnalysisResult
	OriginalInput string    `json:"original_input"`
	CreatedAt     time.Time `json:"created_at"`
}

// Source tags for line items.
const (
	SourceVerified  = "Verified"  // macros came from a matched reference record
	SourceEstimated = "Estimated" // macros are an unverified model estimate
)

// Confidence policy: verified items are pinned, estimated items are clamped.
const (
	ConfidenceVerified     = 0.95
	ConfidenceEstimatedMin = 0.75
	ConfidenceEstimatedMax = 0.85
)

// IngredientEstimate is a model-estimated weight and macro set for one ingredient
// mention, used when the verified reference has no confident match.
type IngredientEstimate struct {
	Grams      float64 `json:"grams"`
	Kcal       float64 `json:"kcal"`
	ProteinG   float64 `json:"protein_g"`
	CarbsG     float64 `json:"carbs_g"`
	FatsG      float64 `json:"fats_g"`
	Confidence float64 `json:"confidence"`
}

// FoodItem is one line item in an analysis result.
type FoodItem struct {
	Name       string  `json:"name"`
	Kcal       float64 `json:"kcal"`
	ProteinG   float64 `json:"protein_g"`
	CarbsG     float64 `json:"carbs_g"`
	FatsG      float64 `json:"fats_g"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// AnalysisResult is the output contract of the engine. When ClarificationNeeded is
// true the totals are meaningless and must not be persisted as a logged meal.
type AnalysisResult struct {
	Items                 []FoodItem `json:"items"`
	ClarificationNeeded   bool       `json:"clarification_needed"`
	ClarificationQuestion string     `json:"clarification_question,omitempty"`
	TotalKcal             int        `json:"total_kcal"`
	TotalProteinG         float64    `json:"total_protein_g"`
	TotalCarbsG           float64    `json:"total_carbs_g"`
	TotalFatsG            float64    `json:"total_fats_g"`
	Notes                 string     `json:"notes,omitempty"`
}

// IsValid checks if the AnalysisResult meets basic structural requirements.
func (r *AnalysisResult) IsValid() bool {
	if r.ClarificationNeeded {
		// A clarification result stands on its question alone.
		return r.ClarificationQuestion != ""
	}

	if len(r.Items) == 0 {
		return false
	}

	for _, item := range r.Items {
		if item.Name == "" {
			return false
		}
		if item.Kcal < 0 || item.ProteinG < 0 || item.CarbsG < 0 || item.FatsG < 0 {
			return false
		}
		if item.Confidence < 0 || item.Confidence > 1 {
			return false
		}
		if item.Source != SourceVerified && item.Source != SourceEstimated {
			return false
		}
	}

	return true
}

// FinalizeTotals recomputes the aggregate totals from the line items and applies the
// rounding policy exactly once: two decimals for gram values, whole numbers for total
// kcal. Item macros are rounded to two decimals as well so the totals stay the exact
// sum of the visible line items.
func (r *AnalysisResult) FinalizeTotals() {
	var kcal, protein, carbs, fats float64
	for i := range r.Items {
		r.Items[i].Kcal = round2(r.Items[i].Kcal)
		r.Items[i].ProteinG = round2(r.Items[i].ProteinG)
		r.Items[i].CarbsG = round2(r.Items[i].CarbsG)
		r.Items[i].FatsG = round2(r.Items[i].FatsG)

		kcal += r.Items[i].Kcal
		protein += r.Items[i].ProteinG
		carbs += r.Items[i].CarbsG
		fats += r.Items[i].FatsG
	}
	r.TotalKcal = int(math.Round(kcal))
	r.TotalProteinG = round2(protein)
	r.TotalCarbsG = round2(carbs)
	r.TotalFatsG = round2(fats)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ClarificationResult builds a result that carries only a question back to the user.
func ClarificationResult(question, notes string) AnalysisResult {
	return AnalysisResult{
		Items:                 []FoodItem{},
		ClarificationNeeded:   true,
		ClarificationQuestion: question,
		Notes:                 notes,
	}
}
