package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/cvflow"
	"github.com/aretw0/cvflow/internal/dto"
	"github.com/aretw0/cvflow/internal/logging"
	"github.com/aretw0/cvflow/internal/presentation/graph"
	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes one pipeline over HTTP.
type Server struct {
	Pipeline ports.Pipeline
	Store    ports.GraphStore
	Streams  *StreamManager
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables the /pipelines routes backed by store.
func WithStore(store ports.GraphStore) Option {
	return func(s *Server) {
		s.Store = store
	}
}

// WithMetrics serves the gatherer's metrics on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithStreams shares a stream manager whose Hooks are already wired into the engine.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server for p. /events only carries data once the
// stream manager's Hooks are merged into the engine's lifecycle hooks.
func NewServer(p ports.Pipeline, opts ...Option) *Server {
	s := &Server{Pipeline: p, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}
	return s
}

// NewHandler is a shortcut for NewServer(p, opts...).Handler().
func NewHandler(p ports.Pipeline, opts ...Option) http.Handler {
	return NewServer(p, opts...).Handler()
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Get("/categories", s.getCategories)

	r.Get("/graph", s.getGraph)
	r.Put("/graph", s.putGraph)

	r.Post("/nodes", s.postNode)
	r.Route("/nodes/{id}", func(r chi.Router) {
		r.Delete("/", s.deleteNode)
		r.Get("/properties", s.getProperties)
		r.Put("/properties/{name}", s.putProperty)
		r.Get("/outputs", s.getOutputs)
	})

	r.Post("/connections", s.postConnection)
	r.Delete("/connections", s.deleteConnection)

	r.Get("/state", s.getState)
	r.Post("/run", s.postRun)
	r.Post("/stop", s.postStop)
	r.Post("/step", s.postStep)
	r.Get("/failures", s.getFailures)
	r.Post("/actions/{id}", s.postAction)

	if s.Store != nil {
		r.Get("/pipelines", s.listPipelines)
		r.Put("/pipelines/{name}", s.savePipeline)
		r.Post("/pipelines/{name}/load", s.loadPipeline)
		r.Delete("/pipelines/{name}", s.deletePipeline)
	}

	r.Get("/events", s.subscribeEvents)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StateResponse reports the controller state.
type StateResponse struct {
	State domain.RunState `json:"state"`
}

// PropertyRequest is the body of PUT /nodes/{id}/properties/{name}.
type PropertyRequest struct {
	Value any `json:"value"`
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "cvflow-http",
		"version": cvflow.Version,
	})
}

func (s *Server) getCategories(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, dto.Categories(s.Pipeline.Categories()))
}

// getGraph returns the pipeline document, or a Mermaid flowchart with
// failed nodes highlighted when ?format=mermaid.
func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	doc := s.Pipeline.Export()
	if r.URL.Query().Get("format") == "mermaid" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, graph.GenerateMermaid(doc, graph.OverlayFromFailures(s.Pipeline.Failures())))
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) putGraph(w http.ResponseWriter, r *http.Request) {
	var doc domain.GraphDocument
	if err := decode(r, &doc); err != nil {
		s.badRequest(w, err)
		return
	}
	if err := s.Pipeline.Import(&doc); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postNode(w http.ResponseWriter, r *http.Request) {
	var args dto.NodeArgs
	if err := decode(r, &args); err != nil {
		s.badRequest(w, err)
		return
	}
	id, err := s.Pipeline.AddNode(args.Spec())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) deleteNode(w http.ResponseWriter, r *http.Request) {
	if err := s.Pipeline.RemoveNode(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getProperties(w http.ResponseWriter, r *http.Request) {
	props, err := s.Pipeline.Properties(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, props)
}

func (s *Server) putProperty(w http.ResponseWriter, r *http.Request) {
	var body PropertyRequest
	if err := decode(r, &body); err != nil {
		s.badRequest(w, err)
		return
	}
	if err := s.Pipeline.SetProperty(chi.URLParam(r, "id"), chi.URLParam(r, "name"), body.Value); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getOutputs(w http.ResponseWriter, r *http.Request) {
	buffers, err := s.Pipeline.Outputs(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, dto.Outputs(buffers))
}

func (s *Server) postConnection(w http.ResponseWriter, r *http.Request) {
	var args dto.ConnectionArgs
	if err := decode(r, &args); err != nil {
		s.badRequest(w, err)
		return
	}
	if err := s.Pipeline.Connect(args.Connection()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) deleteConnection(w http.ResponseWriter, r *http.Request) {
	var args dto.ConnectionArgs
	if err := decode(r, &args); err != nil {
		s.badRequest(w, err)
		return
	}
	if err := s.Pipeline.Disconnect(args.Connection()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, StateResponse{State: s.Pipeline.State()})
}

// postRun starts a continuous run that outlives the request.
func (s *Server) postRun(w http.ResponseWriter, r *http.Request) {
	s.Pipeline.Run(context.WithoutCancel(r.Context()))
	s.writeJSON(w, http.StatusAccepted, StateResponse{State: s.Pipeline.State()})
}

func (s *Server) postStop(w http.ResponseWriter, r *http.Request) {
	s.Pipeline.Stop()
	s.writeJSON(w, http.StatusAccepted, StateResponse{State: s.Pipeline.State()})
}

func (s *Server) postStep(w http.ResponseWriter, r *http.Request) {
	if err := s.Pipeline.Step(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, dto.Failures(s.Pipeline.Failures()))
}

func (s *Server) getFailures(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, dto.Failures(s.Pipeline.Failures()))
}

func (s *Server) postAction(w http.ResponseWriter, r *http.Request) {
	if err := s.Pipeline.Trigger(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listPipelines(w http.ResponseWriter, r *http.Request) {
	names, err := s.Store.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, names)
}

// savePipeline stores the live graph under the given name.
func (s *Server) savePipeline(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	doc := s.Pipeline.Export()
	doc.Name = name
	if err := s.Store.Save(r.Context(), name, doc); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadPipeline replaces the live graph with a stored one.
func (s *Server) loadPipeline(w http.ResponseWriter, r *http.Request) {
	doc, err := s.Store.Load(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Pipeline.Import(doc); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.Pipeline.Export())
}

func (s *Server) deletePipeline(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// subscribeEvents streams lifecycle events (SSE) until the client disconnects.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel := s.Streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data)
			flusher.Flush()
		}
	}
}
