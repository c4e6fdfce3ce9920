package ai

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// ToolHandler executes one tool call. The returned map is handed back to the
// model verbatim as the function response.
type ToolHandler func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error)

// ToolParam describes one parameter of a tool in a provider-neutral form.
type ToolParam struct {
	Type        string // "string" or "number"
	Description string
	Required    bool
}

// Tool is a callable capability exposed to the generation model. The
// orchestrator computes the tool list once per request and passes it in as
// data; providers translate the declarations into their own wire format.
type Tool struct {
	Name        string
	Description string
	Params      map[string]ToolParam
	Handler     ToolHandler
}

// dispatch runs the named tool. Tool failures never fail generation: the
// error text is returned to the model so it can explain the degraded
// capability in its answer.
func dispatch(ctx context.Context, tools []Tool, name string, args map[string]interface{}) map[string]interface{} {
	for _, tool := range tools {
		if tool.Name != name {
			continue
		}
		result, err := tool.Handler(ctx, args)
		if err != nil {
			logutil.GetLogger(ctx).Warn("tool execution failed",
				zap.String("tool", name), zap.Error(err))
			return map[string]interface{}{"error": err.Error()}
		}
		return result
	}
	logutil.GetLogger(ctx).Warn("model requested unknown tool", zap.String("tool", name))
	return map[string]interface{}{"error": "unknown tool: " + name}
}
