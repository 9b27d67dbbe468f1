package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/UltraSive/ttlkv/internal/datastore"
	"github.com/UltraSive/ttlkv/internal/handler"
)

// KV is the part of the ttlkv client the tools need.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl int64) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) (string, error)
	Stats(ctx context.Context) ([]datastore.Entry, error)
}

type toolHandler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// GetHandler returns the handler for the "kv-get" tool.
func GetHandler(kv KV) toolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		v, ok, err := kv.Get(ctx, key)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !ok {
			return mcp.NewToolResultText(handler.Null), nil
		}
		return mcp.NewToolResultText(v), nil
	}
}

// SetHandler returns the handler for the "kv-set" tool.
func SetHandler(kv KV) toolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		value, err := req.RequireString("value")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		ttl := req.GetInt("ttl", -1)
		if err := kv.Set(ctx, key, value, int64(ttl)); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(handler.Ack), nil
	}
}

// DeleteHandler returns the handler for the "kv-del" tool.
func DeleteHandler(kv KV) toolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := kv.Delete(ctx, key); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(handler.Ack), nil
	}
}

// PingHandler returns the handler for the "kv-ping" tool.
func PingHandler(kv KV) toolHandler {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := kv.Ping(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}

// StatsHandler returns the handler for the "kv-stats" tool. Entries that
// were read are still listed when part of the reply could not be parsed.
func StatsHandler(kv KV) toolHandler {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entries, err := kv.Stats(ctx)
		if err != nil && len(entries) == 0 {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out := formatStats(entries)
		if err != nil {
			out += "\nskipped: " + err.Error()
		}
		return mcp.NewToolResultText(out), nil
	}
}

// formatStats renders one entry per line.
func formatStats(entries []datastore.Entry) string {
	if len(entries) == 0 {
		return "No live keys."
	}
	var sb strings.Builder
	for i, e := range entries {
		sb.WriteString(handler.FormatEntry(e))
		if i < len(entries)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
