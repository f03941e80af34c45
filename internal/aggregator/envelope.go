package aggregator

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"hangar/internal/hangarerr"
)

// jsonResult marshals v as the tool's successful JSON payload.
func jsonResult(v interface{}) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return errorResult(hangarerr.New(hangarerr.KindInternal, "marshal_result", "failed to marshal result: %v", err))
	}
	return mcp.NewToolResultText(string(b))
}

// errorResult renders an error as the spec's error envelope:
// {error, kind, provider_id?, group_id?, operation?, details?, recovery_hints?}.
func errorResult(err error) *mcp.CallToolResult {
	herr, ok := err.(*hangarerr.Error)
	if !ok {
		herr = hangarerr.Wrap(hangarerr.KindInternal, "unknown", err, "%v", err)
	}
	envelope := map[string]interface{}{
		"error": herr.Message,
		"kind":  herr.Kind,
	}
	if herr.ProviderID != "" {
		envelope["provider_id"] = herr.ProviderID
	}
	if herr.GroupID != "" {
		envelope["group_id"] = herr.GroupID
	}
	if herr.Operation != "" {
		envelope["operation"] = herr.Operation
	}
	if herr.Details != "" {
		envelope["details"] = herr.Details
	}
	if len(herr.RecoveryHints) > 0 {
		envelope["recovery_hints"] = herr.RecoveryHints
	}
	b, _ := json.Marshal(envelope)
	result := mcp.NewToolResultText(string(b))
	result.IsError = true
	return result
}

// argString fetches a required string argument.
func argString(args map[string]interface{}, key string) (string, *hangarerr.Error) {
	v, ok := args[key]
	if !ok {
		return "", hangarerr.New(hangarerr.KindValidation, key, "%q is required", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", hangarerr.New(hangarerr.KindValidation, key, "%q must be a non-empty string", key)
	}
	return s, nil
}

func argStringDefault(args map[string]interface{}, key, def string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

func argBool(args map[string]interface{}, key string, def bool) bool {
	if v, ok := args[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func argFloat(args map[string]interface{}, key string, def float64) float64 {
	if v, ok := args[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return def
}
