package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const treeURI = "canopy://tree"

// ItemResponse is the structured result of node tools.
type ItemResponse struct {
	Node    domain.NodeView  `json:"node" jsonschema_description:"The node after the operation"`
	Value   *domain.Snapshot `json:"value" jsonschema_description:"Checked, expanded and activated identities of the tree"`
	Message string           `json:"message,omitempty" jsonschema_description:"Why nothing changed, if the request was rejected"`
}

// Server wraps a tree and exposes it as an MCP Server.
type Server struct {
	engine    ports.TreeEngine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance.
func NewServer(engine ports.TreeEngine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		engine:    engine,
		logger:    logger,
		mcpServer: server.NewMCPServer("canopy-mcp", strings.TrimSpace(canopy.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("List the nodes of the tree with their checked, expanded and activated flags."),
		mcp.WithBoolean("visible", mcp.Description("Only list nodes whose ancestors are all expanded")),
	), s.handleGetTree)

	s.mcpServer.AddTool(mcp.NewTool("set_item",
		mcp.WithDescription("Check, expand or activate a node. Omitted flags are left untouched."),
		mcp.WithString("value", mcp.Required(), mcp.Description("Identity of the node")),
		mcp.WithBoolean("checked", mcp.Description("Check (true) or uncheck (false) the node, cascading to its subtree")),
		mcp.WithBoolean("expanded", mcp.Description("Expand or collapse the node; lazy nodes load their children")),
		mcp.WithBoolean("activated", mcp.Description("Activate or deactivate the node")),
		mcp.WithOutputSchema[ItemResponse](),
	), mcp.NewStructuredToolHandler(s.handleSetItem))

	s.mcpServer.AddTool(mcp.NewTool("set_value",
		mcp.WithDescription("Replace the checked, expanded and activated identity lists without emitting change events."),
		mcp.WithString("checked", mcp.Description("JSON array of checked identities")),
		mcp.WithString("expanded", mcp.Description("JSON array of expanded identities")),
		mcp.WithString("activated", mcp.Description("JSON array of activated identities")),
		mcp.WithOutputSchema[domain.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleSetValue))
}

func (s *Server) handleGetTree(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodes := s.engine.Nodes()
	if visible, _ := request.GetArguments()["visible"].(bool); visible {
		nodes = s.engine.Visible()
	}
	jsonBytes, err := json.Marshal(nodes)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func boolArg(args map[string]interface{}, key string) *bool {
	if b, ok := args[key].(bool); ok {
		return &b
	}
	return nil
}

func (s *Server) handleSetItem(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ItemResponse, error) {
	value, _ := args["value"].(string)
	v := domain.Value(value)
	patch := domain.ItemPatch{
		Checked:   boolArg(args, "checked"),
		Expanded:  boolArg(args, "expanded"),
		Activated: boolArg(args, "activated"),
	}

	var resp ItemResponse
	if err := s.engine.SetItem(v, patch); err != nil {
		if errors.Is(err, domain.ErrNodeNotFound) {
			return ItemResponse{}, err
		}
		s.logger.Warn("MCP set_item rejected", "node", v, "err", err)
		resp.Message = err.Error()
	}

	node, err := s.engine.Get(v)
	if err != nil {
		return ItemResponse{}, err
	}
	resp.Node = node
	resp.Value = s.engine.Snapshot()
	return resp, nil
}

func listArg(args map[string]interface{}, key string, fallback []domain.Value) ([]domain.Value, error) {
	raw, ok := args[key].(string)
	if !ok || raw == "" {
		return fallback, nil
	}
	var out []domain.Value
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%s: expected a JSON array of strings: %w", key, err)
	}
	return out, nil
}

func (s *Server) handleSetValue(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (domain.Snapshot, error) {
	current := s.engine.Snapshot()
	next := domain.NewSnapshot("")
	var err error
	if next.Checked, err = listArg(args, "checked", current.Checked); err != nil {
		return domain.Snapshot{}, err
	}
	if next.Expanded, err = listArg(args, "expanded", current.Expanded); err != nil {
		return domain.Snapshot{}, err
	}
	if next.Activated, err = listArg(args, "activated", current.Activated); err != nil {
		return domain.Snapshot{}, err
	}
	if err := s.engine.Restore(next); err != nil {
		return domain.Snapshot{}, err
	}
	return *s.engine.Snapshot(), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(treeURI, "Current Tree",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.engine.Nodes())
		if err != nil {
			return nil, fmt.Errorf("failed to encode tree: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      treeURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
