// Package memtools provides MCP tool handlers for the memory subsystem.
//
// Each tool handler follows the same pattern:
//   - A struct with its dependencies injected via constructor
//   - Definition() returns the mcp.Tool schema
//   - Handle() processes the request and returns a result
//
// Successful calls return a single JSON text payload. Failures the caller
// can recover from are returned as results with IsError set and a JSON
// body of the form {"error":{"kind":"...","message":"..."}}; Handle never
// returns a Go error for them.
package memtools

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/memoria/internal/memory"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	switch {
	case v >= math.MaxInt64:
		return math.MaxInt
	case v <= math.MinInt64:
		return math.MinInt
	}
	return int(v)
}

// idArg extracts a required positive integral id. Fractions, negatives and
// missing values produce an InvalidArgument result.
func idArg(req mcp.CallToolRequest, key string) (int64, *mcp.CallToolResult) {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return 0, Fault(memory.KindInvalidArgument, "'%s' is required and must be a number", key)
	}
	if v != math.Trunc(v) || v < 1 || v >= math.MaxInt64 {
		return 0, Fault(memory.KindInvalidArgument, "'%s' must be a positive integer, got %v", key, v)
	}
	return int64(v), nil
}

// optionalIDArg is idArg for optional fields: absent or null means nil.
func optionalIDArg(req mcp.CallToolRequest, key string) (*int64, *mcp.CallToolResult) {
	if v, ok := req.GetArguments()[key]; !ok || v == nil {
		return nil, nil
	}
	id, res := idArg(req, key)
	if res != nil {
		return nil, res
	}
	return &id, nil
}

// errorBody is the JSON shape of every error result.
type errorBody struct {
	Error struct {
		Kind    memory.Kind `json:"kind"`
		Message string      `json:"message"`
	} `json:"error"`
}

// Fault builds an error result of the given kind.
func Fault(kind memory.Kind, format string, args ...any) *mcp.CallToolResult {
	var body errorBody
	body.Error.Kind = kind
	body.Error.Message = fmt.Sprintf(format, args...)
	b, err := json.Marshal(body)
	if err != nil {
		return mcp.NewToolResultError(body.Error.Message)
	}
	return mcp.NewToolResultError(string(b))
}

// errorResult maps an error from a delegate to an error result. Errors
// without a Kind are storage failures.
func errorResult(err error) *mcp.CallToolResult {
	var e *memory.Error
	if errors.As(err, &e) {
		return Fault(e.Kind, "%s", e.Error())
	}
	return Fault(memory.KindStorage, "%v", err)
}

// jsonResult wraps v as the single JSON text payload of a success result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	res, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return Fault(memory.KindStorage, "encode result: %v", err), nil
	}
	return res, nil
}

// ErrorKind extracts the kind from an error result produced by this
// package. It returns "" for success results or foreign payloads.
func ErrorKind(res *mcp.CallToolResult) memory.Kind {
	if res == nil || !res.IsError {
		return ""
	}
	for _, c := range res.Content {
		tc, ok := c.(mcp.TextContent)
		if !ok {
			continue
		}
		var body errorBody
		if json.Unmarshal([]byte(tc.Text), &body) == nil {
			return body.Error.Kind
		}
	}
	return ""
}
