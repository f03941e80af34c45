package aggregator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hangar/internal/config"
	"hangar/internal/events"
	"hangar/internal/registry"
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	cfg, err := config.Parse([]byte(`
providers:
  a:
    mode: subprocess
    command: echo
    args: ["hello"]
`))
	require.NoError(t, err)
	reg := registry.New(events.NewBus())
	reg.Load(cfg)
	return reg
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := newTestRegistry(t)
	cfg := config.AggregatorConfig{Host: "127.0.0.1", Port: 0, Transport: "stdio"}
	return New(cfg, reg, nil)
}

func callReq(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: struct {
			Name      string    `json:"name"`
			Arguments any       `json:"arguments,omitempty"`
			Meta      *mcp.Meta `json:"_meta,omitempty"`
		}{
			Arguments: args,
		},
	}
}

func decodeText(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func TestHandleListReturnsConfiguredProviders(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleList(context.Background(), callReq(nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	text, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0]["ProviderID"])
}

func TestHandleStartRequiresProviderArgument(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleStart(context.Background(), callReq(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	out := decodeText(t, res)
	assert.Equal(t, "validation", out["kind"])
}

func TestHandleStartUnknownProviderReturnsNotFoundEnvelope(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleStart(context.Background(), callReq(map[string]interface{}{"provider": "missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	out := decodeText(t, res)
	assert.Equal(t, "not_found", out["kind"])
	assert.Equal(t, "start", out["operation"])
}

func TestHandleStartOnNonMCPCommandSurfacesLaunchFailure(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleStart(context.Background(), callReq(map[string]interface{}{"provider": "a"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	out := decodeText(t, res)
	assert.Equal(t, "a", out["provider_id"])
}

func TestHandleToolsUnknownProviderReturnsError(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleTools(context.Background(), callReq(map[string]interface{}{"provider": "missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleDetailsWithoutProviderReturnsEveryProvider(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleDetails(context.Background(), callReq(nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	text, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	var details []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &details))
	require.Len(t, details, 1)
}

func TestHandleStatusWithNoGroupsReturnsEmptyArray(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleStatus(context.Background(), callReq(nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	text, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	assert.Equal(t, "[]", text.Text)
}

func TestHandleWarmRequiresProvidersArgument(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleWarm(context.Background(), callReq(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleWarmSplitsCommaSeparatedIDs(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleWarm(context.Background(), callReq(map[string]interface{}{"providers": "a, missing"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	text, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	var results []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0]["ProviderID"])
	assert.Equal(t, "missing", results[1]["ProviderID"])
	assert.False(t, results[1]["OK"].(bool))
}

func TestHandleReloadConfigWithoutReloadWorkerReportsConfigurationError(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleReloadConfig(context.Background(), callReq(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	out := decodeText(t, res)
	assert.Equal(t, "configuration", out["kind"])
}

func TestHandleCallRejectsEmptyCallsArray(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleCall(context.Background(), callReq(map[string]interface{}{"calls": []interface{}{}}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	out := decodeText(t, res)
	assert.Equal(t, "validation", out["kind"])
}

func TestHandleCallRejectsUnknownProviderTarget(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleCall(context.Background(), callReq(map[string]interface{}{
		"calls": []interface{}{
			map[string]interface{}{"provider": "missing", "tool": "echo"},
		},
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	out := decodeText(t, res)
	assert.Equal(t, false, out["success"])
	assert.NotEmpty(t, out["validation_errors"])
}
