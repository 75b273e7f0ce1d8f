// Package gemini adapts Google's Generative AI API to the coordinator's neutral
// client interface and provides the embedding and direct-estimation services that
// run on the same credentials.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"google.golang.org/api/option"

	"nutrimind"
	"nutrimind/coordinator"
)

// Client wraps a genai client for one reasoning model.
type Client struct {
	genai *genai.Client
	cfg   nutrimind.ModelConfig
}

func NewClient(ctx context.Context, cfg nutrimind.ModelConfig) (*Client, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("gemini: API key is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}
	return &Client{genai: cl, cfg: cfg}, nil
}

func (c *Client) Close() error { return c.genai.Close() }

// Invoke sends the transcript to the model and maps the reply back to the
// neutral response shape. Function calls come back as tool calls.
func (c *Client) Invoke(ctx context.Context, prompt coordinator.Prompt) (coordinator.Response, error) {
	model := c.genai.GenerativeModel(strings.TrimSpace(c.cfg.ModelID))
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     ptrFloat32(float32(c.cfg.Temperature)),
		TopP:            ptrFloat32(float32(c.cfg.TopP)),
		MaxOutputTokens: ptrInt32(int32(c.cfg.MaxTokens)),
	}

	if tools := toGenaiTools(prompt.Tools); len(tools) > 0 {
		model.Tools = tools
	}

	system, history, last, err := toGenaiContents(prompt.Messages)
	if err != nil {
		return coordinator.Response{}, err
	}
	if last == nil {
		return coordinator.Response{}, fmt.Errorf("gemini: prompt has no sendable message")
	}
	model.SystemInstruction = system

	cs := model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return coordinator.Response{}, fmt.Errorf("gemini: generate failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return coordinator.Response{}, fmt.Errorf("gemini: empty response")
	}

	var out coordinator.Response
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			out.Content += string(p)
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, coordinator.ToolCall{
				Name: p.Name,
				Args: p.Args,
			})
		default:
			slog.Warn("GEMINI: Ignoring unexpected part type in response", "type", fmt.Sprintf("%T", part))
		}
	}
	return out, nil
}

// toGenaiContents splits the transcript into the system instruction, chat
// history, and the message to send.
func toGenaiContents(messages []coordinator.Message) (*genai.Content, []*genai.Content, *genai.Content, error) {
	var system *genai.Content
	var contents []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = &genai.Content{
				Parts: []genai.Part{genai.Text(msg.Content)},
			}
		case "user":
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(msg.Content)},
			})
		case "assistant":
			content := &genai.Content{Role: "model"}
			if msg.Content != "" {
				content.Parts = append(content.Parts, genai.Text(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				content.Parts = append(content.Parts, genai.FunctionCall{
					Name: call.Name,
					Args: call.Args,
				})
			}
			contents = append(contents, content)
		case "tool":
			var response map[string]any
			if err := jsonUnmarshalLenient(msg.Content, &response); err != nil {
				response = map[string]any{"raw": msg.Content}
			}
			contents = append(contents, &genai.Content{
				Role: "function",
				Parts: []genai.Part{genai.FunctionResponse{
					Name:     msg.Name,
					Response: response,
				}},
			})
		default:
			return nil, nil, nil, fmt.Errorf("gemini: unsupported message role %q", msg.Role)
		}
	}
	if len(contents) == 0 {
		return system, nil, nil, nil
	}
	return system, contents[:len(contents)-1], contents[len(contents)-1], nil
}

func toGenaiTools(tools []coordinator.Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  toGenaiSchema(tool.InputSchema),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// toGenaiSchema converts the JSON-schema tool contract to genai's schema type.
// Only the subset the tools actually use is mapped.
func toGenaiSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}

	out := &genai.Schema{Description: schema.Description}
	switch schema.Type {
	case "object":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	default:
		out.Type = genai.TypeUnspecified
	}

	if len(schema.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(schema.Properties))
		for name, prop := range schema.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	out.Required = schema.Required
	if schema.Items != nil {
		out.Items = toGenaiSchema(schema.Items)
	}
	return out
}

func jsonUnmarshalLenient(s string, v *map[string]any) error {
	if strings.TrimSpace(s) == "" {
		*v = map[string]any{}
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

func ptrFloat32(v float32) *float32 { return &v }
func ptrInt32(v int32) *int32       { return &v }
