package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// EvaluateExpression is a restricted arithmetic evaluator for exact macro totals.
// Anything outside digits, decimal points, + - * / ( ) and whitespace is stripped
// before evaluation. Bad input yields an error string in the output, never a Go
// error: the reasoning provider should see the failure and move on.
type EvaluateExpression struct{}

func NewEvaluateExpression() *EvaluateExpression { return &EvaluateExpression{} }

func (t *EvaluateExpression) Name() string  { return "evaluate_expression" }
func (t *EvaluateExpression) Title() string { return "Arithmetic Evaluator" }
func (t *EvaluateExpression) Description() string {
	return "Evaluates a math expression like '78*5 + 150 + 40' or '265 * 1.5'. Only numbers and + - * / ( ) are supported. Use this for computing macro totals instead of doing arithmetic yourself."
}

func (t *EvaluateExpression) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"expression": {
				Type:        "string",
				Description: "Arithmetic expression over numbers and + - * / ( ).",
			},
		},
		Required: []string{"expression"},
	}
}

func (t *EvaluateExpression) OutputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"result": {Type: "number"},
			"error":  {Type: "string"},
		},
	}
}

func (t *EvaluateExpression) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	expr, _ := input["expression"].(string)

	result, err := Evaluate(expr)
	if err != nil {
		return map[string]any{"error": "Error: " + err.Error()}, nil
	}
	return map[string]any{"result": math.Round(result*100) / 100}, nil
}

// Evaluate sanitizes and evaluates an arithmetic expression.
func Evaluate(expr string) (float64, error) {
	cleaned := sanitize(expr)
	if strings.TrimSpace(cleaned) == "" {
		return 0, fmt.Errorf("invalid expression")
	}

	p := &exprParser{input: cleaned}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("expression did not evaluate to a finite number")
	}
	return v, nil
}

func sanitize(expr string) string {
	var b strings.Builder
	for _, r := range expr {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' || r == '-' || r == '*' || r == '/' || r == '(' || r == ')' || r == '.':
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// exprParser is a small recursive-descent parser over the sanitized input:
//
//	expr   = term   { ("+" | "-") term }
//	term   = factor { ("*" | "/") factor }
//	factor = number | "(" expr ")" | ("+" | "-") factor
type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) parseExpr() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.input) {
			return v, nil
		}
		switch p.input[p.pos] {
		case '+':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v += rhs
		case '-':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	v, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.input) {
			return v, nil
		}
		switch p.input[p.pos] {
		case '*':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case '/':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			v /= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseFactor() (float64, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0, fmt.Errorf("unexpected end of expression")
	}

	switch c := p.input[p.pos]; {
	case c == '+':
		p.pos++
		return p.parseFactor()
	case c == '-':
		p.pos++
		v, err := p.parseFactor()
		return -v, err
	case c == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	default:
		return p.parseNumber()
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9' || p.input[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected a number at position %d", start)
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return v, nil
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case ' ', '\t', '\n':
			p.pos++
		default:
			return
		}
	}
}
