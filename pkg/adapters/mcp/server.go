package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/cvflow"
	"github.com/aretw0/cvflow/internal/dto"
	"github.com/aretw0/cvflow/internal/logging"
	"github.com/aretw0/cvflow/internal/presentation/graph"
	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

const (
	graphURI   = "cvflow://graph"
	mermaidURI = "cvflow://graph.mmd"
)

// Server exposes one pipeline as an MCP server.
type Server struct {
	pipeline  ports.Pipeline
	store     ports.GraphStore
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables the save_pipeline, load_pipeline and list_pipelines tools.
func WithStore(store ports.GraphStore) Option {
	return func(s *Server) {
		s.store = store
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(p ports.Pipeline, opts ...Option) *Server {
	s := &Server{
		pipeline:  p,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("cvflow-mcp", cvflow.Version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, e.g. for in-process transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// NodeResult is returned by add_node.
type NodeResult struct {
	ID string `json:"id" jsonschema_description:"The id of the placed node"`
}

// StateResult reports the controller state after a command.
type StateResult struct {
	State    domain.RunState   `json:"state" jsonschema_description:"idle, running or stopping"`
	Failures []dto.FailureInfo `json:"failures,omitempty" jsonschema_description:"Nodes that failed on the last cycle"`
}

type args = map[string]any

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_node_types",
		mcp.WithDescription("List the registered node types and menu actions, grouped by category."),
	), mcp.NewStructuredToolHandler(s.handleListNodeTypes))

	s.mcpServer.AddTool(mcp.NewTool("add_node",
		mcp.WithDescription("Place a node of a registered type in the graph."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Node type id, e.g. GausKernel")),
		mcp.WithString("id", mcp.Description("Node id (generated when omitted)")),
		mcp.WithString("category", mcp.Description("Category, when the type id is ambiguous")),
		mcp.WithObject("properties", mcp.Description("Initial property values")),
		mcp.WithOutputSchema[NodeResult](),
	), mcp.NewStructuredToolHandler(s.handleAddNode))

	s.mcpServer.AddTool(mcp.NewTool("remove_node",
		mcp.WithDescription("Remove a node and all of its connections."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
	), mcp.NewStructuredToolHandler(s.handleRemoveNode))

	connOpts := []mcp.ToolOption{
		mcp.WithString("source", mcp.Required(), mcp.Description("Source node id")),
		mcp.WithNumber("source_port", mcp.Description("Source port index (default 0)")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Target node id")),
		mcp.WithNumber("target_port", mcp.Description("Target port index (default 0)")),
	}
	s.mcpServer.AddTool(mcp.NewTool("connect",
		append([]mcp.ToolOption{mcp.WithDescription("Connect a source port to a target port. Rejected if it would create a cycle.")}, connOpts...)...,
	), mcp.NewStructuredToolHandler(s.handleConnect))
	s.mcpServer.AddTool(mcp.NewTool("disconnect",
		append([]mcp.ToolOption{mcp.WithDescription("Remove a connection.")}, connOpts...)...,
	), mcp.NewStructuredToolHandler(s.handleDisconnect))

	s.mcpServer.AddTool(mcp.NewTool("get_properties",
		mcp.WithDescription("Get the property values of a node."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node id")),
	), mcp.NewStructuredToolHandler(s.handleGetProperties))

	s.mcpServer.AddTool(mcp.NewTool("set_property",
		mcp.WithDescription("Set one property of a node. Values must match the declared kind."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node id")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Property name")),
		mcp.WithString("value", mcp.Required(), mcp.Description("JSON-encoded value, e.g. 1.5 or [[0,1],[1,0]]")),
	), mcp.NewStructuredToolHandler(s.handleSetProperty))

	s.mcpServer.AddTool(mcp.NewTool("step",
		mcp.WithDescription("Run exactly one cycle. Fails while the pipeline is running."),
		mcp.WithOutputSchema[StateResult](),
	), mcp.NewStructuredToolHandler(s.handleStep))

	s.mcpServer.AddTool(mcp.NewTool("run",
		mcp.WithDescription("Start running cycles continuously."),
		mcp.WithOutputSchema[StateResult](),
	), mcp.NewStructuredToolHandler(s.handleRun))

	s.mcpServer.AddTool(mcp.NewTool("stop",
		mcp.WithDescription("Stop after the in-flight cycle."),
		mcp.WithOutputSchema[StateResult](),
	), mcp.NewStructuredToolHandler(s.handleStop))

	s.mcpServer.AddTool(mcp.NewTool("get_outputs",
		mcp.WithDescription("Get the buffers a node emitted on the last completed cycle."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node id")),
	), mcp.NewStructuredToolHandler(s.handleGetOutputs))

	s.mcpServer.AddTool(mcp.NewTool("get_failures",
		mcp.WithDescription("List nodes whose last invocation failed."),
		mcp.WithOutputSchema[StateResult](),
	), mcp.NewStructuredToolHandler(s.handleGetFailures))

	s.mcpServer.AddTool(mcp.NewTool("trigger_action",
		mcp.WithDescription("Run a registered menu action."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Action id, e.g. clear-failures")),
	), mcp.NewStructuredToolHandler(s.handleTrigger))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the pipeline document (nodes, properties, connections)."),
	), mcp.NewStructuredToolHandler(s.handleGetGraph))

	if s.store == nil {
		return
	}
	s.mcpServer.AddTool(mcp.NewTool("list_pipelines",
		mcp.WithDescription("List stored pipelines."),
	), mcp.NewStructuredToolHandler(s.handleListPipelines))
	s.mcpServer.AddTool(mcp.NewTool("save_pipeline",
		mcp.WithDescription("Store the live graph under a name."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Pipeline name")),
	), mcp.NewStructuredToolHandler(s.handleSavePipeline))
	s.mcpServer.AddTool(mcp.NewTool("load_pipeline",
		mcp.WithDescription("Replace the live graph with a stored pipeline. The pipeline must be idle."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Pipeline name")),
	), mcp.NewStructuredToolHandler(s.handleLoadPipeline))
}

func (s *Server) handleListNodeTypes(ctx context.Context, _ mcp.CallToolRequest, _ args) ([]dto.CategoryInfo, error) {
	return dto.Categories(s.pipeline.Categories()), nil
}

func (s *Server) handleAddNode(ctx context.Context, _ mcp.CallToolRequest, in args) (NodeResult, error) {
	var node dto.NodeArgs
	if err := dto.DecodeArgs(in, &node); err != nil {
		return NodeResult{}, fmt.Errorf("invalid arguments: %w", err)
	}
	id, err := s.pipeline.AddNode(node.Spec())
	if err != nil {
		return NodeResult{}, err
	}
	return NodeResult{ID: id}, nil
}

func (s *Server) handleRemoveNode(ctx context.Context, _ mcp.CallToolRequest, in args) (NodeResult, error) {
	id, _ := in["id"].(string)
	return NodeResult{ID: id}, s.pipeline.RemoveNode(id)
}

func (s *Server) connection(in args) (domain.Connection, error) {
	var c dto.ConnectionArgs
	if err := dto.DecodeArgs(in, &c); err != nil {
		return domain.Connection{}, fmt.Errorf("invalid arguments: %w", err)
	}
	return c.Connection(), nil
}

func (s *Server) handleConnect(ctx context.Context, _ mcp.CallToolRequest, in args) (domain.Connection, error) {
	c, err := s.connection(in)
	if err != nil {
		return c, err
	}
	return c, s.pipeline.Connect(c)
}

func (s *Server) handleDisconnect(ctx context.Context, _ mcp.CallToolRequest, in args) (domain.Connection, error) {
	c, err := s.connection(in)
	if err != nil {
		return c, err
	}
	return c, s.pipeline.Disconnect(c)
}

func (s *Server) handleGetProperties(ctx context.Context, _ mcp.CallToolRequest, in args) (map[string]any, error) {
	id, _ := in["node_id"].(string)
	return s.pipeline.Properties(id)
}

// handleSetProperty decodes value as JSON; text that is not valid JSON is
// taken as a plain string.
func (s *Server) handleSetProperty(ctx context.Context, _ mcp.CallToolRequest, in args) (map[string]any, error) {
	id, _ := in["node_id"].(string)
	name, _ := in["name"].(string)

	var value any
	switch raw := in["value"].(type) {
	case string:
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
	default:
		value = raw
	}

	if err := s.pipeline.SetProperty(id, name, value); err != nil {
		s.logger.Debug("MCP set_property rejected", "node_id", id, "name", name, "err", err)
		return nil, err
	}
	return s.pipeline.Properties(id)
}

func (s *Server) state() StateResult {
	return StateResult{State: s.pipeline.State(), Failures: dto.Failures(s.pipeline.Failures())}
}

func (s *Server) handleStep(ctx context.Context, _ mcp.CallToolRequest, _ args) (StateResult, error) {
	if err := s.pipeline.Step(ctx); err != nil {
		return StateResult{}, err
	}
	return s.state(), nil
}

// handleRun detaches the run from the request so it continues after the reply.
func (s *Server) handleRun(ctx context.Context, _ mcp.CallToolRequest, _ args) (StateResult, error) {
	s.pipeline.Run(context.WithoutCancel(ctx))
	return s.state(), nil
}

func (s *Server) handleStop(ctx context.Context, _ mcp.CallToolRequest, _ args) (StateResult, error) {
	s.pipeline.Stop()
	return s.state(), nil
}

func (s *Server) handleGetOutputs(ctx context.Context, _ mcp.CallToolRequest, in args) ([]dto.OutputInfo, error) {
	id, _ := in["node_id"].(string)
	buffers, err := s.pipeline.Outputs(id)
	if err != nil {
		return nil, err
	}
	return dto.Outputs(buffers), nil
}

func (s *Server) handleGetFailures(ctx context.Context, _ mcp.CallToolRequest, _ args) (StateResult, error) {
	return s.state(), nil
}

func (s *Server) handleTrigger(ctx context.Context, _ mcp.CallToolRequest, in args) (StateResult, error) {
	id, _ := in["id"].(string)
	if err := s.pipeline.Trigger(ctx, id); err != nil {
		return StateResult{}, err
	}
	return s.state(), nil
}

func (s *Server) handleGetGraph(ctx context.Context, _ mcp.CallToolRequest, _ args) (*domain.GraphDocument, error) {
	return s.pipeline.Export(), nil
}

func (s *Server) handleListPipelines(ctx context.Context, _ mcp.CallToolRequest, _ args) ([]string, error) {
	return s.store.List(ctx)
}

func (s *Server) handleSavePipeline(ctx context.Context, _ mcp.CallToolRequest, in args) (*domain.GraphDocument, error) {
	name, _ := in["name"].(string)
	doc := s.pipeline.Export()
	doc.Name = name
	return doc, s.store.Save(ctx, name, doc)
}

func (s *Server) handleLoadPipeline(ctx context.Context, _ mcp.CallToolRequest, in args) (*domain.GraphDocument, error) {
	name, _ := in["name"].(string)
	doc, err := s.store.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.pipeline.Import(doc); err != nil {
		return nil, err
	}
	return s.pipeline.Export(), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(graphURI, "Pipeline Document",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.pipeline.Export())
		if err != nil {
			return nil, fmt.Errorf("failed to encode graph: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: graphURI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})

	s.mcpServer.AddResource(mcp.NewResource(mermaidURI, "Pipeline Flowchart",
		mcp.WithMIMEType("text/vnd.mermaid"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		text := graph.GenerateMermaid(s.pipeline.Export(), graph.OverlayFromFailures(s.pipeline.Failures()))
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: mermaidURI, MIMEType: "text/vnd.mermaid", Text: text},
		}, nil
	})
}
