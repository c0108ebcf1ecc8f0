package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/memoria/internal/memory"
	"github.com/HendryAvila/memoria/internal/memtools"
)

// chain applies mws so that mws[0] runs first, the same order
// mcpserver.WithToolHandlerMiddleware uses.
func chain(h mcpserver.ToolHandlerFunc, mws ...mcpserver.ToolHandlerMiddleware) mcpserver.ToolHandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// recoverTools turns a handler panic into a StorageFailure result so the
// caller still gets a response.
func recoverTools(logger *slog.Logger) mcpserver.ToolHandlerMiddleware {
	return func(next mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (res *mcp.CallToolResult, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("tool handler panic",
						"tool", req.Params.Name,
						"panic", r,
						"stack", string(debug.Stack()),
					)
					res, err = memtools.Fault(memory.KindStorage, "internal error in %s", req.Params.Name), nil
				}
			}()
			return next(ctx, req)
		}
	}
}

// logCalls logs every tool call with a call id, its duration and, for
// error results, the error kind.
func logCalls(logger *slog.Logger) mcpserver.ToolHandlerMiddleware {
	return func(next mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := time.Now()
			log := logger.With("tool", req.Params.Name, "call_id", uuid.NewString())
			res, err := next(ctx, req)
			switch {
			case err != nil:
				log.Error("tool call failed", "duration", time.Since(start), "error", err)
			case res != nil && res.IsError:
				log.Info("tool call rejected", "duration", time.Since(start), "kind", memtools.ErrorKind(res))
			default:
				log.Debug("tool call", "duration", time.Since(start))
			}
			return res, err
		}
	}
}

// validateArguments checks each call against the declared input schema of
// its tool before the handler runs. Handlers only ever see a
// map[string]any whose numbers are float64.
func validateArguments(schemas map[string]mcp.ToolInputSchema) mcpserver.ToolHandlerMiddleware {
	return func(next mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			schema, ok := schemas[req.Params.Name]
			if !ok {
				return memtools.Fault(memory.KindProtocol, "unknown tool %q", req.Params.Name), nil
			}
			args, err := normalizeArguments(req.Params.Arguments)
			if err != nil {
				return memtools.Fault(memory.KindProtocol, "%s: %v", req.Params.Name, err), nil
			}
			if res := checkSchema(schema, args); res != nil {
				return res, nil
			}
			req.Params.Arguments = args
			return next(ctx, req)
		}
	}
}

// normalizeArguments accepts the shapes a request envelope can carry and
// returns a fresh argument map.
func normalizeArguments(raw any) (map[string]any, error) {
	var args map[string]any
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		args = make(map[string]any, len(v))
		for k, val := range v {
			args[k] = val
		}
	case json.RawMessage:
		return decodeArguments(v)
	case []byte:
		return decodeArguments(v)
	default:
		return nil, fmt.Errorf("arguments must be an object, got %T", raw)
	}
	for k, val := range args {
		args[k] = normalizeValue(val)
	}
	return args, nil
}

func decodeArguments(b []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(b)) == 0 || bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(b, &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func normalizeValue(v any) any {
	switch n := v.(type) {
	case []string:
		out := make([]any, len(n))
		for i, s := range n {
			out[i] = s
		}
		return out
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return v
}

// checkSchema returns an InvalidArgument result for the first violation,
// or nil when args conform.
func checkSchema(schema mcp.ToolInputSchema, args map[string]any) *mcp.CallToolResult {
	for _, name := range schema.Required {
		if v, ok := args[name]; !ok || v == nil {
			return memtools.Fault(memory.KindInvalidArgument, "'%s' is required", name)
		}
	}
	for name, v := range args {
		if v == nil {
			continue
		}
		prop, ok := schema.Properties[name].(map[string]any)
		if !ok {
			continue
		}
		if res := checkProperty(name, prop, v); res != nil {
			return res
		}
	}
	return nil
}

func checkProperty(name string, prop map[string]any, v any) *mcp.CallToolResult {
	typ, _ := prop["type"].(string)
	if !hasType(typ, v) {
		return memtools.Fault(memory.KindInvalidArgument, "'%s' must be a %s, got %s", name, typ, jsonType(v))
	}
	if enum, ok := prop["enum"].([]string); ok {
		s, _ := v.(string)
		if !slices.Contains(enum, s) {
			return memtools.Fault(memory.KindInvalidArgument, "'%s' must be one of %v, got %q", name, enum, s)
		}
	}
	if typ == "array" {
		items, _ := prop["items"].(map[string]any)
		itemType, _ := items["type"].(string)
		for i, item := range v.([]any) {
			if !hasType(itemType, item) {
				return memtools.Fault(memory.KindInvalidArgument, "'%s[%d]' must be a %s, got %s", name, i, itemType, jsonType(item))
			}
		}
	}
	return nil
}

func hasType(typ string, v any) bool {
	switch typ {
	case "":
		return true
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		_, ok := normalizeValue(v).(float64)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	}
	return false
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
