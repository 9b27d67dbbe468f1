package tools

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Register adds every kv tool to s.
func Register(s *server.MCPServer, kv KV) {
	s.AddTool(mcp.NewTool("kv-get",
		mcp.WithDescription("Reads a key. Returns (null) when the key is missing or expired."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Key to read; no whitespace")),
	), GetHandler(kv))

	s.AddTool(mcp.NewTool("kv-set",
		mcp.WithDescription("Stores a value under a key, optionally expiring after ttl seconds."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Key to write; no whitespace")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Value to store; no whitespace")),
		mcp.WithNumber("ttl", mcp.Description("Seconds until expiry; negative or omitted never expires")),
	), SetHandler(kv))

	s.AddTool(mcp.NewTool("kv-del",
		mcp.WithDescription("Deletes a key. Deleting a missing key succeeds."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Key to delete")),
	), DeleteHandler(kv))

	s.AddTool(mcp.NewTool("kv-stats",
		mcp.WithDescription("Lists every live key with its value and absolute expiry."),
	), StatsHandler(kv))

	s.AddTool(mcp.NewTool("kv-ping",
		mcp.WithDescription("Checks that the store is reachable."),
	), PingHandler(kv))
}
