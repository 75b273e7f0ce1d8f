// Package engine is the analysis entry point: it snapshots user preferences,
// asks the coordinator for a decomposition, resolves every mention against the
// verified reference, aggregates line items, and validates the totals.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"nutrimind"
	"nutrimind/coordinator"
	"nutrimind/nutrition"
	"nutrimind/reference"
)

// Decomposer turns a meal description into ingredient mentions. Satisfied by
// coordinator.Coordinator.
type Decomposer interface {
	Decompose(ctx context.Context, input string, prefs map[string]string, feedback []string) (*coordinator.Decomposition, error)
}

// Resolver finds verified reference records. Satisfied by reference.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, name string) (*reference.Record, float64)
}

// Estimator covers the model's own-knowledge paths: whole-meal estimation when
// the reasoning loop fails, per-ingredient estimation on reference misses, and
// weight estimation for unrecognized quantity phrases. Satisfied by gemini.Client.
type Estimator interface {
	EstimateMeal(ctx context.Context, input string, prefs map[string]string) (*nutrimind.AnalysisResult, error)
	EstimateIngredient(ctx context.Context, name, quantity string) (*nutrimind.IngredientEstimate, error)
	EstimateWeight(ctx context.Context, foodName, quantity string) (float64, error)
}

type Engine struct {
	decomposer Decomposer
	resolver   Resolver
	estimator  Estimator
	validator  *nutrition.Validator
	prefs      nutrimind.PreferenceProvider
	sessions   nutrimind.SessionStore
}

func NewEngine(decomposer Decomposer, resolver Resolver, estimator Estimator, validator *nutrition.Validator, prefs nutrimind.PreferenceProvider, sessions nutrimind.SessionStore) *Engine {
	return &Engine{
		decomposer: decomposer,
		resolver:   resolver,
		estimator:  estimator,
		validator:  validator,
		prefs:      prefs,
		sessions:   sessions,
	}
}

// Analyze runs one meal description through the full pipeline. It returns an
// error only when every path, including direct estimation, has failed.
func (e *Engine) Analyze(ctx context.Context, userKey, input string) (nutrimind.AnalysisResult, error) {
	ctx, span := otel.Tracer(nutrimind.TracerNameEngine).Start(ctx, "Engine.Analyze")
	defer span.End()

	slog.Info("ENGINE: Starting analysis", "user", userKey, "input", input)

	prefs := e.snapshotPreferences(ctx, userKey)

	decomp, err := e.decomposer.Decompose(ctx, input, prefs, nil)
	if err != nil {
		slog.Warn("ENGINE: Decomposition failed, falling back to direct estimation", "error", err)
		return e.estimateDirect(ctx, userKey, input, prefs, err)
	}

	if decomp.Ambiguous {
		result := nutrimind.ClarificationResult(decomp.ClarificationQuestion, decomp.Notes)
		e.savePending(ctx, userKey, input, result)
		return result, nil
	}

	result := e.buildResult(ctx, decomp, prefs)

	// One corrective re-run when the numbers look implausible.
	if violations := e.validator.Validate(result); len(violations) > 0 {
		messages := nutrition.Messages(violations)
		slog.Warn("ENGINE: Validation flagged result, re-running once", "violations", messages)

		retryDecomp, err := e.decomposer.Decompose(ctx, input, prefs, messages)
		if err == nil && !retryDecomp.Ambiguous {
			retry := e.buildResult(ctx, retryDecomp, prefs)
			if len(e.validator.Validate(retry)) == 0 {
				result = retry
			} else {
				result = retry
				result.Notes = appendNote(result.Notes, caveatNote)
			}
		} else {
			result.Notes = appendNote(result.Notes, caveatNote)
		}
	}

	e.clearPending(ctx, userKey)
	slog.Info("ENGINE: Analysis complete",
		"user", userKey,
		"items", len(result.Items),
		"total_kcal", result.TotalKcal,
	)
	return result, nil
}

const caveatNote = "Some values look unusual for this kind of food and may be inaccurate."

// ResolveClarification merges a pending question's answer with the original
// input and re-runs the analysis. Returns (nil result, false) when the user has
// no pending session.
func (e *Engine) ResolveClarification(ctx context.Context, userKey, reply string) (nutrimind.AnalysisResult, bool, error) {
	if e.sessions == nil {
		return nutrimind.AnalysisResult{}, false, nil
	}

	pending, err := e.sessions.GetPending(ctx, userKey)
	if err != nil {
		return nutrimind.AnalysisResult{}, false, fmt.Errorf("failed to load pending session: %w", err)
	}
	if pending == nil {
		return nutrimind.AnalysisResult{}, false, nil
	}

	if err := e.sessions.ClearPending(ctx, userKey); err != nil {
		slog.Warn("ENGINE: Failed to clear pending session", "user", userKey, "error", err)
	}

	combined := fmt.Sprintf("%s (%s)", pending.OriginalInput, reply)
	result, err := e.Analyze(ctx, userKey, combined)
	return result, true, err
}

// snapshotPreferences takes the one preference read for this request. A failed
// read degrades to no overrides rather than failing the analysis.
func (e *Engine) snapshotPreferences(ctx context.Context, userKey string) map[string]string {
	if e.prefs == nil {
		return map[string]string{}
	}
	prefs, err := e.prefs.GetPreferences(ctx, userKey)
	if err != nil {
		slog.Warn("ENGINE: Preference lookup failed, proceeding without overrides", "user", userKey, "error", err)
		return map[string]string{}
	}
	return prefs
}

// buildResult resolves every mention and aggregates the line items.
func (e *Engine) buildResult(ctx context.Context, decomp *coordinator.Decomposition, prefs map[string]string) nutrimind.AnalysisResult {
	resolved := make([]coordinator.ResolvedIngredient, 0, len(decomp.Mentions))
	for _, mention := range decomp.Mentions {
		resolved = append(resolved, e.resolveMention(ctx, mention, prefs))
	}

	result := nutrimind.AnalysisResult{
		Items: groupIngredients(resolved),
		Notes: decomp.Notes,
	}
	result.FinalizeTotals()
	return result
}

// resolveMention produces one resolved ingredient. It never fails: a reference
// miss falls to model estimation, and an estimation failure yields a zero-macro
// Estimated item so the rest of the meal still gets analyzed.
func (e *Engine) resolveMention(ctx context.Context, mention coordinator.Mention, prefs map[string]string) coordinator.ResolvedIngredient {
	record, score := e.resolver.Resolve(ctx, mention.Name)
	if record != nil {
		grams := nutrition.ResolveWeight(ctx, record, mention.Name, mention.Quantity, prefs, e.weightEstimator())
		macros := nutrition.Scale(record, grams)
		slog.Info("ENGINE: Resolved verified ingredient",
			"name", mention.Name, "match", record.Description, "score", score, "grams", grams)
		return coordinator.ResolvedIngredient{
			Name:       mention.Name,
			Grams:      grams,
			Kcal:       macros.Kcal,
			ProteinG:   macros.ProteinG,
			CarbsG:     macros.CarbsG,
			FatsG:      macros.FatsG,
			Confidence: nutrimind.ConfidenceVerified,
			Source:     nutrimind.SourceVerified,
		}
	}

	if e.estimator != nil {
		est, err := e.estimator.EstimateIngredient(ctx, mention.Name, mention.Quantity)
		if err == nil {
			slog.Info("ENGINE: Estimated unverified ingredient", "name", mention.Name, "grams", est.Grams)
			return coordinator.ResolvedIngredient{
				Name:       mention.Name,
				Grams:      est.Grams,
				Kcal:       est.Kcal,
				ProteinG:   est.ProteinG,
				CarbsG:     est.CarbsG,
				FatsG:      est.FatsG,
				Confidence: clampEstimated(est.Confidence),
				Source:     nutrimind.SourceEstimated,
			}
		}
		slog.Warn("ENGINE: Ingredient estimation failed, emitting zero-macro item",
			"name", mention.Name, "error", err)
	}

	grams := nutrition.ResolveWeight(ctx, nil, mention.Name, mention.Quantity, prefs, nil)
	return coordinator.ResolvedIngredient{
		Name:       mention.Name,
		Grams:      grams,
		Confidence: nutrimind.ConfidenceEstimatedMin,
		Source:     nutrimind.SourceEstimated,
	}
}

// weightEstimator adapts the estimator to the portion resolver's hook shape.
func (e *Engine) weightEstimator() nutrition.WeightEstimator {
	if e.estimator == nil {
		return nil
	}
	return e.estimator.EstimateWeight
}

// estimateDirect is the degraded path: the model estimates the whole meal from
// its own knowledge. The original loop error is surfaced when this fails too.
func (e *Engine) estimateDirect(ctx context.Context, userKey, input string, prefs map[string]string, loopErr error) (nutrimind.AnalysisResult, error) {
	if e.estimator == nil {
		return nutrimind.AnalysisResult{}, fmt.Errorf("analysis failed with no estimator available: %w", loopErr)
	}

	result, err := e.estimator.EstimateMeal(ctx, input, prefs)
	if err != nil {
		return nutrimind.AnalysisResult{}, fmt.Errorf("analysis failed (%v); direct estimation also failed: %w", loopErr, err)
	}

	if result.ClarificationNeeded {
		e.savePending(ctx, userKey, input, *result)
	} else {
		result.Notes = appendNote(result.Notes, "Estimated without verified reference data.")
		e.clearPending(ctx, userKey)
	}
	return *result, nil
}

func (e *Engine) savePending(ctx context.Context, userKey, input string, result nutrimind.AnalysisResult) {
	if e.sessions == nil {
		return
	}
	partial, _ := json.Marshal(result)
	err := e.sessions.SavePending(ctx, nutrimind.PendingClarification{
		UserKey:       userKey,
		Question:      result.ClarificationQuestion,
		PartialResult: string(partial),
		OriginalInput: input,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		slog.Warn("ENGINE: Failed to save pending session", "user", userKey, "error", err)
	}
}

func (e *Engine) clearPending(ctx context.Context, userKey string) {
	if e.sessions == nil {
		return
	}
	if err := e.sessions.ClearPending(ctx, userKey); err != nil {
		slog.Warn("ENGINE: Failed to clear pending session", "user", userKey, "error", err)
	}
}

// groupIngredients merges resolved mentions that name the same ingredient,
// preserving first-occurrence order. A group is Verified only when every member
// is; its confidence is the weakest member's.
func groupIngredients(resolved []coordinator.ResolvedIngredient) []nutrimind.FoodItem {
	groups := map[string]*coordinator.ResolvedIngredient{}
	var order []string
	for _, ing := range resolved {
		key := normalizeName(ing.Name)
		g, ok := groups[key]
		if !ok {
			ing := ing
			groups[key] = &ing
			order = append(order, key)
			continue
		}
		g.Grams += ing.Grams
		g.Kcal += ing.Kcal
		g.ProteinG += ing.ProteinG
		g.CarbsG += ing.CarbsG
		g.FatsG += ing.FatsG
		if ing.Source == nutrimind.SourceEstimated {
			g.Source = nutrimind.SourceEstimated
		}
		if ing.Confidence < g.Confidence {
			g.Confidence = ing.Confidence
		}
	}

	items := make([]nutrimind.FoodItem, 0, len(order))
	for _, key := range order {
		g := groups[key]
		items = append(items, nutrimind.FoodItem{
			Name:       displayName(g.Name, g.Grams),
			Kcal:       g.Kcal,
			ProteinG:   g.ProteinG,
			CarbsG:     g.CarbsG,
			FatsG:      g.FatsG,
			Confidence: g.Confidence,
			Source:     g.Source,
		})
	}
	return items
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// displayName renders "egg" at 100g as "Egg (100g)".
func displayName(name string, grams float64) string {
	name = normalizeName(name)
	words := strings.Fields(name)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return fmt.Sprintf("%s (%.0fg)", strings.Join(words, " "), math.Round(grams))
}

func appendNote(notes, extra string) string {
	if notes == "" {
		return extra
	}
	if strings.Contains(notes, extra) {
		return notes
	}
	return notes + " " + extra
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
