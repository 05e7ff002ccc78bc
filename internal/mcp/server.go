package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rirtools/whois-mcp/internal/engine"
	"github.com/rirtools/whois-mcp/internal/rir"
)

const sessionHeader = "Mcp-Session-Id"

// Server dispatches MCP requests to the engine's tool operations. One
// Server handles any number of concurrent sessions; all shared state
// lives in the engine (cache, backend table) or behind the session map's
// mutex.
type Server struct {
	engine *engine.Engine
	log    *slog.Logger

	tools    []Tool
	handlers map[string]toolHandler

	mu       sync.Mutex
	sessions map[string]time.Time
}

// NewServer builds a Server and registers the tool surface for the
// engine's enabled registries.
func NewServer(e *engine.Engine, logger *slog.Logger) *Server {
	s := &Server{
		engine:   e,
		log:      logger,
		handlers: make(map[string]toolHandler),
		sessions: make(map[string]time.Time),
	}
	s.registerTools()
	return s
}

func (s *Server) addTool(t Tool, h toolHandler) {
	s.tools = append(s.tools, t)
	s.handlers[t.Name] = h
}

// --- dispatch ---

func (s *Server) dispatch(ctx context.Context, req *jsonrpcRequest) *jsonrpcResponse {
	switch req.Method {
	case "initialize":
		return result(req, initializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      serverInfo{Name: serverName, Version: serverVersion},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		})
	case "notifications/initialized", "notifications/cancelled":
		// Notifications get no response.
		return nil
	case "ping":
		return result(req, map[string]any{})
	case "tools/list":
		return result(req, listToolsResult{Tools: s.tools})
	case "tools/call":
		return s.callTool(ctx, req)
	default:
		return rpcError(req, codeMethodNotFound, "method not found: "+req.Method)
	}
}

func (s *Server) callTool(ctx context.Context, req *jsonrpcRequest) *jsonrpcResponse {
	var params callToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return rpcError(req, codeInvalidParams, "invalid tools/call params")
	}
	handler, ok := s.handlers[params.Name]
	if !ok {
		return rpcError(req, codeInvalidParams, "unknown tool: "+params.Name)
	}

	start := time.Now()
	data, err := handler(ctx, params.Arguments)
	if err != nil {
		s.log.Warn("tool call failed",
			"tool", params.Name,
			"error_kind", rir.KindName(err),
			"err", err,
			"elapsed", time.Since(start))
		return result(req, errorEnvelope(err))
	}

	s.log.Info("tool call completed", "tool", params.Name, "elapsed", time.Since(start))
	return result(req, okEnvelope(data))
}

// okEnvelope wraps a tool payload in the {"ok":true,"data":...} shape
// serialized as a single text content block.
func okEnvelope(data any) callToolResult {
	body, err := json.Marshal(map[string]any{"ok": true, "data": data})
	if err != nil {
		return errorEnvelope(rir.WrapErr(rir.ErrBackend, rir.CodeNone, err, "encode tool result"))
	}
	return callToolResult{Content: []contentBlock{{Type: "text", Text: string(body)}}}
}

func errorEnvelope(err error) callToolResult {
	body, _ := json.Marshal(map[string]any{
		"ok":     false,
		"error":  rir.KindName(err),
		"detail": err.Error(),
	})
	return callToolResult{
		Content: []contentBlock{{Type: "text", Text: string(body)}},
		IsError: true,
	}
}

func result(req *jsonrpcRequest, res any) *jsonrpcResponse {
	if req.ID == nil {
		return nil
	}
	return &jsonrpcResponse{JSONRPC: "2.0", ID: req.ID, Result: res}
}

func rpcError(req *jsonrpcRequest, code int, msg string) *jsonrpcResponse {
	return &jsonrpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &jsonrpcError{Code: code, Message: msg}}
}

// --- streamable HTTP transport ---

// Handler returns the HTTP transport: POST /mcp for JSON-RPC messages,
// GET /healthz for liveness.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.logMiddleware)
	r.Post("/mcp", s.handleMCP)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return r
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	var req jsonrpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, rpcError(&jsonrpcRequest{}, codeParseError, "parse error"))
		return
	}
	if req.JSONRPC != "2.0" {
		writeJSON(w, http.StatusBadRequest, rpcError(&req, codeInvalidRequest, "jsonrpc must be \"2.0\""))
		return
	}

	// Sessions: initialize mints one; later calls carry it back in the
	// header. Unknown/absent sessions are tolerated (stateless hosts).
	if req.Method == "initialize" {
		id := uuid.NewString()
		s.mu.Lock()
		s.sessions[id] = time.Now()
		s.mu.Unlock()
		w.Header().Set(sessionHeader, id)
	} else if id := r.Header.Get(sessionHeader); id != "" {
		s.mu.Lock()
		s.sessions[id] = time.Now()
		s.mu.Unlock()
	}

	resp := s.dispatch(r.Context(), &req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// --- middleware ---

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"elapsed", time.Since(start))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("panic in handler", "panic", rec, "stack", string(debug.Stack()))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
