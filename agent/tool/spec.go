package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Param declares one tool argument. Params are rendered to the model in the
// order they are declared on the Spec.
type Param struct {
	Name     string
	Desc     string
	Type     schema.DataType
	Default  string
	Required bool
}

type Spec struct {
	Name   string
	Desc   string
	Params []Param
}

// Args holds decoded tool arguments with defaults already applied.
type Args map[string]string

func (a Args) Get(name string) string {
	return a[name]
}

type Handler func(ctx context.Context, args Args) string

// Tool binds a Spec to a handler and satisfies eino's InvokableTool.
type Tool struct {
	spec    Spec
	handler Handler
}

var _ einotool.InvokableTool = (*Tool)(nil)

func New(spec Spec, handler Handler) *Tool {
	return &Tool{spec: spec, handler: handler}
}

func (t *Tool) Name() string {
	return t.spec.Name
}

func (t *Tool) Spec() Spec {
	return t.spec
}

func (t *Tool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return t.spec.ToolInfo(), nil
}

// InvokableRun decodes the model supplied arguments and runs the handler.
// Argument problems are reported back as text, never as an error, so the
// model can correct itself on the next step.
func (t *Tool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...einotool.Option) (string, error) {
	args, err := t.spec.Decode(argumentsInJSON)
	if err != nil {
		return fmt.Sprintf("Error parsing arguments for %s: %s", t.spec.Name, err), nil
	}
	return t.handler(ctx, args), nil
}

func (s Spec) ToolInfo() *schema.ToolInfo {
	info := &schema.ToolInfo{
		Name: s.Name,
		Desc: s.Desc,
	}
	if len(s.Params) == 0 {
		return info
	}

	params := make(map[string]*schema.ParameterInfo, len(s.Params))
	for _, p := range s.Params {
		typ := p.Type
		if typ == "" {
			typ = schema.String
		}
		params[p.Name] = &schema.ParameterInfo{
			Type:     typ,
			Desc:     paramDesc(p),
			Required: p.Required,
		}
	}
	info.ParamsOneOf = schema.NewParamsOneOfByParams(params)
	return info
}

func paramDesc(p Param) string {
	if p.Required {
		return p.Desc
	}
	return fmt.Sprintf("%s (default %q)", p.Desc, p.Default)
}

// Decode parses a JSON argument object against the declared params. Missing
// optional params take their default; non-string scalars are stringified.
func (s Spec) Decode(argumentsInJSON string) (Args, error) {
	raw := map[string]any{}
	if trimmed := strings.TrimSpace(argumentsInJSON); trimmed != "" {
		if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
	}

	args := make(Args, len(s.Params))
	for _, p := range s.Params {
		v, ok := raw[p.Name]
		if !ok || v == nil {
			if p.Required {
				return nil, fmt.Errorf("%s is required", p.Name)
			}
			args[p.Name] = p.Default
			continue
		}
		switch val := v.(type) {
		case string:
			args[p.Name] = val
		case float64, bool:
			args[p.Name] = fmt.Sprint(val)
		default:
			return nil, fmt.Errorf("%s must be a string", p.Name)
		}
	}
	return args, nil
}
