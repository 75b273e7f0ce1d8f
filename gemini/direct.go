package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"nutrimind"
	"nutrimind/coordinator"
)

const directSystemPrompt = `You are NutriMind, a nutrition estimation assistant.
Estimate the nutrition of the described meal from your own knowledge.

Respond with ONE JSON object only, no markdown:
{
  "items": [
    {"name": string, "kcal": number, "protein_g": number, "carbs_g": number,
     "fats_g": number, "confidence": number, "source": "Estimated"}
  ],
  "clarification_needed": boolean,
  "clarification_question": string|null,
  "total_kcal": integer, "total_protein_g": number,
  "total_carbs_g": number, "total_fats_g": number,
  "notes": string
}
Item names include the assumed weight, e.g. "Egg (100g)". If the description is
too vague to estimate, set clarification_needed=true with ONE short question.`

const ingredientSystemPrompt = `You estimate nutrition for a single ingredient.
Respond with ONE JSON object only, no markdown:
{"grams": number, "kcal": number, "protein_g": number, "carbs_g": number,
 "fats_g": number, "confidence": number}
grams is the edible weight implied by the quantity; the macro fields are for that
whole weight, not per 100g. confidence is your certainty in [0,1].`

// EstimateMeal asks the model for a complete analysis in one shot. This is the
// degraded path used when the reasoning loop itself fails; every item comes back
// Estimated with clamped confidence.
func (c *Client) EstimateMeal(ctx context.Context, input string, prefs map[string]string) (*nutrimind.AnalysisResult, error) {
	text, err := c.generateJSON(ctx, directSystemPrompt, userTextWithPrefs(input, prefs))
	if err != nil {
		return nil, err
	}

	result, err := coordinator.ParseAnalysis(text)
	if err != nil {
		return nil, fmt.Errorf("gemini: direct estimation: %w", err)
	}

	for i := range result.Items {
		result.Items[i].Source = nutrimind.SourceEstimated
		result.Items[i].Confidence = clampEstimated(result.Items[i].Confidence)
	}
	result.FinalizeTotals()
	return result, nil
}

// EstimateIngredient asks the model for one ingredient's weight and macros.
func (c *Client) EstimateIngredient(ctx context.Context, name, quantity string) (*nutrimind.IngredientEstimate, error) {
	user := fmt.Sprintf("Ingredient: %s\nQuantity: %s", name, quantity)
	text, err := c.generateJSON(ctx, ingredientSystemPrompt, user)
	if err != nil {
		return nil, err
	}

	raw, ok := coordinator.ExtractJSON(text)
	if !ok {
		return nil, fmt.Errorf("gemini: ingredient estimation returned no JSON")
	}
	var est nutrimind.IngredientEstimate
	if err := json.Unmarshal([]byte(raw), &est); err != nil {
		return nil, fmt.Errorf("gemini: ingredient estimation: %w", err)
	}
	if est.Grams <= 0 || est.Kcal < 0 {
		return nil, fmt.Errorf("gemini: ingredient estimation returned implausible values")
	}
	est.Confidence = clampEstimated(est.Confidence)
	return &est, nil
}

// EstimateWeight satisfies the portion resolver's estimator hook: given a food
// name and an unrecognized quantity phrase, return grams.
func (c *Client) EstimateWeight(ctx context.Context, foodName, quantity string) (float64, error) {
	est, err := c.EstimateIngredient(ctx, foodName, quantity)
	if err != nil {
		return 0, err
	}
	return est.Grams, nil
}

// generateJSON runs one JSON-mode completion against the configured model.
func (c *Client) generateJSON(ctx context.Context, system, user string) (string, error) {
	model := c.genai.GenerativeModel(strings.TrimSpace(c.cfg.ModelID))
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(float32(c.cfg.Temperature)),
		ResponseMIMEType: "application/json",
	}
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", fmt.Errorf("gemini: generate failed: %w", err)
	}
	text := firstText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	return text, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok && strings.TrimSpace(string(t)) != "" {
				return string(t)
			}
		}
	}
	return ""
}

func userTextWithPrefs(input string, prefs map[string]string) string {
	if len(prefs) == 0 {
		return input
	}
	keys := make([]string, 0, len(prefs))
	for k := range prefs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(input)
	b.WriteString("\n\nUser preferences:\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s = %s\n", k, prefs[k])
	}
	return b.String()
}

func clampEstimated(v float64) float64 {
	if v < nutrimind.ConfidenceEstimatedMin {
		return nutrimind.ConfidenceEstimatedMin
	}
	if v > nutrimind.ConfidenceEstimatedMax {
		return nutrimind.ConfidenceEstimatedMax
	}
	return v
}
