package transport

import (
	"context"
	"encoding/base64"
	"fmt"

	"hangar/pkg/logging"

	"github.com/mark3labs/mcp-go/client"
	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// RemoteAuth carries the auth options recognised for a remote provider
// (API key header, Bearer token, or Basic credentials). All three resolve
// to headers set on every outbound request.
type RemoteAuth struct {
	APIKeyHeader string
	APIKeyValue  string
	BearerToken  string
	BasicUser    string
	BasicPass    string
}

func (a RemoteAuth) headers() map[string]string {
	h := make(map[string]string)
	if a.APIKeyHeader != "" && a.APIKeyValue != "" {
		h[a.APIKeyHeader] = a.APIKeyValue
	}
	if a.BearerToken != "" {
		h["Authorization"] = "Bearer " + a.BearerToken
	}
	if a.BasicUser != "" {
		token := base64.StdEncoding.EncodeToString([]byte(a.BasicUser + ":" + a.BasicPass))
		h["Authorization"] = "Basic " + token
	}
	return h
}

// RemoteTLS carries the TLS options recognised for a remote provider.
// When either option is set, buildTLSHTTPClient gives the transport its own
// HTTP client: InsecureSkipVerify disables verification, and CACertPEM
// becomes the only root pool (the system pool is not added). With neither
// set, the transport's default HTTP client and the system pool are used.
type RemoteTLS struct {
	InsecureSkipVerify bool
	CACertPEM          []byte
}

// StreamableHTTPClient implements the MCPClient interface using StreamableHTTP transport.
// It connects to remote MCP servers using HTTP with streaming support, falling back to
// Server-Sent Events to consume long-running tool responses.
type StreamableHTTPClient struct {
	baseMCPClient
	url  string
	auth RemoteAuth
	tls  RemoteTLS
}

// NewStreamableHTTPClient creates a new StreamableHTTP-based MCP client for a remote provider.
func NewStreamableHTTPClient(url string, auth RemoteAuth, tlsOpts RemoteTLS) *StreamableHTTPClient {
	return &StreamableHTTPClient{url: url, auth: auth, tls: tlsOpts}
}

// Initialize establishes the connection and performs protocol handshake
func (c *StreamableHTTPClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	logging.Debug("StreamableHTTPClient", "connecting to %s", c.url)

	var opts []mcptransport.StreamableHTTPCOption
	if headers := c.auth.headers(); len(headers) > 0 {
		opts = append(opts, mcptransport.WithHTTPHeaders(headers))
	}
	if httpClient := buildTLSHTTPClient(c.tls); httpClient != nil {
		opts = append(opts, mcptransport.WithHTTPBasicClient(httpClient))
	}

	mcpClient, err := client.NewStreamableHttpClient(c.url, opts...)
	if err != nil {
		return fmt.Errorf("failed to create streamable-http client: %w", err)
	}

	initResult, err := mcpClient.Initialize(ctx, mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: "2024-11-05",
			ClientInfo: mcp.Implementation{
				Name:    "hangar",
				Version: "1.0.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		_ = mcpClient.Close()
		return fmt.Errorf("failed to initialize MCP protocol: %w", err)
	}

	c.client = mcpClient
	c.connected = true

	logging.Debug("StreamableHTTPClient", "connected to %s (%s %s)", c.url,
		initResult.ServerInfo.Name, initResult.ServerInfo.Version)

	return nil
}

// Close cleanly shuts down the client connection
func (c *StreamableHTTPClient) Close() error {
	return c.closeClient()
}

// ListTools returns all available tools from the server
func (c *StreamableHTTPClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return c.listTools(ctx)
}

// CallTool executes a specific tool and returns the result
func (c *StreamableHTTPClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return c.callTool(ctx, name, args)
}

// ListResources returns all available resources from the server
func (c *StreamableHTTPClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	return c.listResources(ctx)
}

// ReadResource retrieves a specific resource
func (c *StreamableHTTPClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return c.readResource(ctx, uri)
}

// ListPrompts returns all available prompts from the server
func (c *StreamableHTTPClient) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	return c.listPrompts(ctx)
}

// GetPrompt retrieves a specific prompt
func (c *StreamableHTTPClient) GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	return c.getPrompt(ctx, name, args)
}

// Ping checks if the server is responsive
func (c *StreamableHTTPClient) Ping(ctx context.Context) error {
	return c.ping(ctx)
}
