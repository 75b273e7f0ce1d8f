package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"nutrimind"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
)

// budgetExhaustedQuestion is returned when the reasoning loop hits its iteration
// cap without producing a decomposition. The caller gets a structured clarification
// instead of an error so the user sees a question, not a stack trace.
const budgetExhaustedQuestion = "I couldn't break that meal down reliably. Could you list the foods and rough quantities, e.g. '2 rotis and a bowl of dal'?"

// Coordinator manages the interaction between the reasoning provider and the tools,
// driving the loop until the model yields a decomposition or the budget runs out.
type Coordinator struct {
	llm            llmClient
	toolProvider   nutrimind.ToolProvider
	maxIterations  int
	logger         nutrimind.CoordinationLogger
	tracerProvider *trace.TracerProvider
}

// llmClient is the provider-neutral invocation interface. Gemini and Bedrock
// clients both satisfy it.
type llmClient interface {
	Invoke(ctx context.Context, prompt Prompt) (Response, error)
}

func NewCoordinator(llm llmClient, tp nutrimind.ToolProvider, maxIter int, log nutrimind.CoordinationLogger, tracerProvider *trace.TracerProvider) *Coordinator {
	return &Coordinator{
		llm:            llm,
		toolProvider:   tp,
		maxIterations:  maxIter,
		logger:         log,
		tracerProvider: tracerProvider,
	}
}

// Decompose runs the bounded reasoning loop over the user's meal description and
// returns the model's decomposition. feedback carries validator messages from a
// prior pass when this is a corrective re-run.
//
// Errors are reserved for provider failures; a model that exhausts the iteration
// budget or stays ambiguous still yields a non-nil Decomposition.
func (c *Coordinator) Decompose(ctx context.Context, input string, prefs map[string]string, feedback []string) (*Decomposition, error) {
	ctx, span := otel.Tracer(nutrimind.TracerNameCoordinator).Start(ctx, "Coordinator.Decompose")
	defer span.End()

	slog.Info("COORDINATOR: Starting decomposition", "input", input, "corrective", len(feedback) > 0)

	prompt, err := NewPrompt(input, prefs, feedback, c.toolProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	for iter := 0; iter < c.maxIterations; iter++ {
		iterLog := nutrimind.IterationLog{Iteration: iter + 1, Timestamp: time.Now()}

		if b, merr := json.Marshal(prompt); merr == nil {
			iterLog.LLMInput = string(b)
			slog.Info("COORDINATOR: Sending prompt to LLM",
				"iteration", iter+1,
				"messages_count", len(prompt.Messages),
				"tools_count", len(prompt.Tools),
				"prompt_size_bytes", len(b),
			)
		}

		res, err := c.llm.Invoke(ctx, prompt)
		if err != nil {
			iterLog.Error = err.Error()
			c.logIteration(iterLog)
			return nil, fmt.Errorf("failed to invoke LLM: %w", err)
		}
		iterLog.LLMOutput = res

		slog.Info("COORDINATOR: LLM response received",
			"iteration", iter+1,
			"content_length", len(res.Content),
			"tool_calls", len(res.ToolCalls),
		)

		// Final-content path.
		if len(res.ToolCalls) == 0 && res.Content != "" {
			decomp, perr := ParseDecomposition(res.Content)
			if perr != nil {
				slog.Info("COORDINATOR: Unparseable final content; nudging model", "iteration", iter+1, "error", perr)
				prompt.Messages = append(prompt.Messages,
					Message{Role: "assistant", Content: res.Content},
					Message{
						Role:    "user",
						Content: "That was not the required JSON object. Return ONLY one JSON object with the fields mentions, ambiguous, clarification_question and notes.",
					},
				)
				c.logIteration(iterLog)
				continue
			}

			slog.Info("COORDINATOR: Decomposition accepted",
				"iteration", iter+1,
				"mentions", len(decomp.Mentions),
				"ambiguous", decomp.Ambiguous,
			)
			c.logIteration(iterLog)
			return decomp, nil
		}

		// Empty turn: neither tool calls nor content.
		if len(res.ToolCalls) == 0 {
			slog.Info("COORDINATOR: Empty model turn; nudging", "iteration", iter+1)
			prompt.Messages = append(prompt.Messages, Message{
				Role:    "user",
				Content: "Continue. Return the decomposition JSON object now.",
			})
			c.logIteration(iterLog)
			continue
		}

		// Tool-call path.
		toolCalls := dedupeToolCalls(res.ToolCalls)
		if len(toolCalls) < len(res.ToolCalls) {
			slog.Info("COORDINATOR: Deduped tool calls", "requested", len(res.ToolCalls), "kept", len(toolCalls))
		}

		// Providers need the assistant's request on the transcript before the results.
		prompt.Messages = append(prompt.Messages, Message{
			Role:      "assistant",
			Content:   res.Content,
			ToolCalls: toolCalls,
		})

		var toolCallLogs []nutrimind.ToolCallLog
		for _, call := range toolCalls {
			slog.Info("COORDINATOR: Handling tool call", "name", call.Name, "iteration", iter+1)
			toolLog := nutrimind.ToolCallLog{Name: call.Name, Input: call.Args}

			result := c.runTool(ctx, call, &toolLog)
			toolCallLogs = append(toolCallLogs, toolLog)

			payload, merr := json.Marshal(result)
			if merr != nil {
				payload = []byte(fmt.Sprintf(`{"error":%q}`, merr.Error()))
			}
			prompt.Messages = append(prompt.Messages, Message{
				Role:      "tool",
				Name:      call.Name,
				ToolUseID: call.ID,
				Content:   string(payload),
			})
		}

		iterLog.ToolCalls = toolCallLogs
		c.logIteration(iterLog)
	}

	slog.Warn("COORDINATOR: Iteration budget exhausted", "max_iterations", c.maxIterations)
	return &Decomposition{
		Ambiguous:             true,
		ClarificationQuestion: budgetExhaustedQuestion,
		Notes:                 "analysis stopped at the iteration limit",
	}, nil
}

// runTool executes one tool call. Failures become an error payload on the
// transcript rather than aborting the loop: the model should see what went wrong
// and route around it.
func (c *Coordinator) runTool(ctx context.Context, call ToolCall, toolLog *nutrimind.ToolCallLog) map[string]any {
	tool, err := c.toolProvider.GetTool(call.Name)
	if err != nil {
		toolLog.Error = err.Error()
		slog.Warn("COORDINATOR: Unknown tool requested", "name", call.Name)
		return map[string]any{"error": fmt.Sprintf("unknown tool %q", call.Name)}
	}

	result, err := tool.Run(ctx, call.Args)
	if err != nil {
		toolLog.Error = err.Error()
		slog.Warn("COORDINATOR: Tool execution failed", "name", call.Name, "error", err)
		return map[string]any{"error": err.Error()}
	}

	toolLog.Output = result
	return result
}

// dedupeToolCalls keeps only the first call per (name, args) pair. Models can be
// eager and request the same lookup several times in one turn.
func dedupeToolCalls(calls []ToolCall) []ToolCall {
	seen := map[string]bool{}
	out := make([]ToolCall, 0, len(calls))
	for _, c := range calls {
		b, _ := json.Marshal(c.Args)
		key := c.Name + ":" + string(b)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

func (c *Coordinator) logIteration(iteration nutrimind.IterationLog) {
	if c.logger != nil {
		if err := c.logger.LogIteration(iteration); err != nil {
			slog.Error("Failed to log coordination iteration", "error", err, "iteration", iteration.Iteration)
		}
	}
}
