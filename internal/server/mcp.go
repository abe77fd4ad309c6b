package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v3"

	"docrag/internal/domain"
	"docrag/internal/usecase"
)

const (
	mcpProtocolVersion = "2024-11-05"
	ragToolName        = "rag_data"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// TextContent is one entry of a tool result.
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult is the result of tools/call.
type CallToolResult struct {
	Content []TextContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// SearchArgs are the arguments of the rag_data tool.
type SearchArgs struct {
	Query       string `json:"query"`
	TopK        int    `json:"top_k,omitempty"`
	UseReranker *bool  `json:"use_reranker,omitempty"`
}

func (a SearchArgs) Validate() error {
	if strings.TrimSpace(a.Query) == "" {
		return errors.New("query is required")
	}
	if a.TopK < 0 {
		return fmt.Errorf("top_k must not be negative, got %d", a.TopK)
	}
	return nil
}

var ragToolSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {"type": "string", "description": "Text to search the ingested documents for"},
		"top_k": {"type": "integer", "minimum": 1, "description": "Number of results to return"},
		"use_reranker": {"type": "boolean", "description": "Refine the order with the configured reranker"}
	},
	"required": ["query"]
}`)

func (s *Server) handleRPC(c fiber.Ctx) error {
	var req JSONRPCRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return writeError(c, nil, codeParseError, "parse error")
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return writeError(c, req.ID, codeInvalidRequest, "invalid request")
	}

	// Notifications carry no id and get no response body.
	if len(req.ID) == 0 {
		slog.Debug("mcp notification", "method", req.Method)
		c.Status(fiber.StatusAccepted)
		return nil
	}

	switch req.Method {
	case "initialize":
		return writeResult(c, req.ID, map[string]any{
			"protocolVersion": mcpProtocolVersion,
			"serverInfo": map[string]string{
				"name":    appName,
				"version": "1.0.0",
			},
			"capabilities": map[string]any{
				"tools": map[string]bool{"listChanged": false},
			},
		})
	case "ping":
		return writeResult(c, req.ID, map[string]any{})
	case "tools/list":
		return writeResult(c, req.ID, map[string]any{
			"tools": []Tool{{
				Name:        ragToolName,
				Description: "Search the ingested documents and return the most relevant chunks",
				InputSchema: ragToolSchema,
			}},
		})
	case "tools/call":
		return s.callTool(c, req)
	default:
		return writeError(c, req.ID, codeMethodNotFound, "method not found")
	}
}

func (s *Server) callTool(c fiber.Ctx, req JSONRPCRequest) error {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return writeError(c, req.ID, codeInvalidParams, "invalid params")
	}
	if params.Name != ragToolName {
		return writeError(c, req.ID, codeInvalidParams, fmt.Sprintf("unknown tool: %s", params.Name))
	}

	var args SearchArgs
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return writeError(c, req.ID, codeInvalidParams, fmt.Sprintf("invalid arguments: %v", err))
		}
	}
	if err := args.Validate(); err != nil {
		return writeError(c, req.ID, codeInvalidParams, err.Error())
	}

	ctx := c.Context()
	stats, err := s.retrieve.Stats(ctx)
	if err != nil {
		return writeResult(c, req.ID, toolError(err))
	}
	if stats.Chunks == 0 {
		return writeResult(c, req.ID, toolText(usecase.EmptyCorpusMessage))
	}
	slog.Debug("rag_data call", "chunks", stats.Chunks, "documents", stats.Documents)

	results, err := s.search.Search(ctx, s.request(args.Query, args.TopK, args.UseReranker))
	if err != nil {
		var invalid *domain.InvalidRequestError
		if errors.As(err, &invalid) {
			return writeError(c, req.ID, codeInvalidParams, invalid.Error())
		}
		return writeResult(c, req.ID, toolError(err))
	}

	return writeResult(c, req.ID, toolText(usecase.FormatResults(results)))
}

func toolText(text string) CallToolResult {
	return CallToolResult{Content: []TextContent{{Type: "text", Text: text}}}
}

func toolError(err error) CallToolResult {
	slog.Warn("rag_data failed", "error", err)
	return CallToolResult{
		Content: []TextContent{{Type: "text", Text: "Search failed: " + err.Error()}},
		IsError: true,
	}
}

func writeResult(c fiber.Ctx, id json.RawMessage, result any) error {
	return c.JSON(JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(c fiber.Ctx, id json.RawMessage, code int, message string) error {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return c.JSON(JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}})
}
