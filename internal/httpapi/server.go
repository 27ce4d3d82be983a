// Package httpapi exposes the engine over HTTP. Every response body is an
// api.Response envelope.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/petrijr/packflow/internal/dispatch"
	"github.com/petrijr/packflow/internal/wizard"
	"github.com/petrijr/packflow/pkg/api"
	"github.com/petrijr/packflow/pkg/worker"
)

// Actor headers.
const (
	HeaderRole = "X-Actor-Role"
	HeaderName = "X-Actor-Name"
)

const maxBodyBytes = 1 << 20

// Options configures a Server. Engine is required.
type Options struct {
	Engine api.Engine

	// Worker, if set, enables ?async=true on operation routes.
	Worker *worker.Worker

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	Logger *slog.Logger
}

// Server routes HTTP requests to the engine.
type Server struct {
	engine  api.Engine
	worker  *worker.Worker
	metrics http.Handler
	logger  *slog.Logger
	mux     *http.ServeMux
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:  opts.Engine,
		worker:  opts.Worker,
		metrics: opts.Metrics,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/flows/{flow}/get", s.handleGet)
	s.mux.HandleFunc("GET /api/flows/{flow}/list", s.handleList)
	s.mux.HandleFunc("GET /api/flows/{flow}/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/flows/{flow}/operations", s.handleOperations)
	s.mux.HandleFunc("POST /api/flows/{flow}/{op}", s.handleOperation)
	s.mux.HandleFunc("GET /api/guards/{stage}", s.handleGuards)
	s.mux.HandleFunc("GET /api/wizard/{id}", s.handleWizard)
	s.mux.HandleFunc("GET /api/version", s.handleVersion)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
}

// ServeHTTP logs every request after it has been served.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.logger.LogAttrs(r.Context(), slog.LevelDebug, "http_request",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", rec.status),
		slog.Duration("duration", time.Since(start)),
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// StatusOf maps an error code to an HTTP status.
func StatusOf(code api.ErrorCode) int {
	switch code {
	case api.CodeBadRequest:
		return http.StatusBadRequest
	case api.CodeForbidden:
		return http.StatusForbidden
	case api.CodeNotFound:
		return http.StatusNotFound
	case api.CodeStateConflict, api.CodeVersionConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, resp api.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("http_encode_failed", slog.Any("error", err))
	}
}

func (s *Server) ok(w http.ResponseWriter, status int, data any) {
	s.writeJSON(w, status, api.Respond(data))
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	code := api.CodeOf(err)
	if code == api.CodeInternal {
		s.logger.Error("http_internal_error", slog.Any("error", err))
	}
	s.writeJSON(w, StatusOf(code), api.Fail(err))
}

// actor reads the caller's identity from the request headers.
func actor(r *http.Request) (api.Actor, error) {
	role := strings.ToUpper(strings.TrimSpace(r.Header.Get(HeaderRole)))
	if role == "" {
		return api.Actor{}, api.BadRequest("Missing %s header", HeaderRole)
	}
	return api.Actor{Role: api.Role(role), Name: strings.TrimSpace(r.Header.Get(HeaderName))}, nil
}

func flowParam(r *http.Request) (api.FlowID, error) {
	raw := r.PathValue("flow")
	flow, ok := api.ParseFlow(raw)
	if !ok {
		return "", api.BadRequest("Unknown flow %q", raw)
	}
	return flow, nil
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	flow, err := flowParam(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	a, err := actor(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	op := r.PathValue("op")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, api.BadRequest("Request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.fail(w, api.BadRequest("Unreadable request body: %v", err))
		return
	}

	if r.URL.Query().Get("async") == "true" {
		if s.worker == nil {
			s.fail(w, api.BadRequest("Async execution is not enabled"))
			return
		}
		// The body is queued as-is so numbers keep their exact encoding.
		var req any
		if len(body) > 0 {
			if !json.Valid(body) {
				s.fail(w, api.BadRequest("Malformed request body"))
				return
			}
			req = json.RawMessage(body)
		}
		id, err := s.worker.Enqueue(r.Context(), flow, op, a, req)
		if err != nil {
			s.fail(w, err)
			return
		}
		s.ok(w, http.StatusAccepted, map[string]string{"commandId": id})
		return
	}

	inst, err := dispatch.Run(r.Context(), s.engine, flow, op, a, body)
	if err != nil {
		s.fail(w, err)
		return
	}
	status := http.StatusOK
	if op == "create" {
		status = http.StatusCreated
	}
	s.ok(w, status, inst)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	flow, err := flowParam(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	id := r.URL.Query().Get("id")
	inst, err := s.engine.Get(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	if inst.Flow() != flow {
		s.fail(w, api.NotFound("Flow not found: %s", id))
		return
	}
	s.ok(w, http.StatusOK, inst)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	flow, err := flowParam(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	list, err := s.engine.List(r.Context(), flow)
	if err != nil {
		s.fail(w, err)
		return
	}
	if list == nil {
		list = []api.Instance{}
	}
	s.ok(w, http.StatusOK, list)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if _, err := flowParam(r); err != nil {
		s.fail(w, err)
		return
	}
	events, err := s.engine.History(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, http.StatusOK, events)
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	flow, err := flowParam(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, http.StatusOK, dispatch.Operations(flow))
}

func (s *Server) handleGuards(w http.ResponseWriter, r *http.Request) {
	stage, ok := dispatch.ParseStage(r.PathValue("stage"))
	if !ok {
		s.fail(w, api.BadRequest("Unknown stage %q", r.PathValue("stage")))
		return
	}
	a, err := actor(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	report, err := dispatch.EvaluateStage(r.Context(), s.engine, stage, a.Role, r.URL.Query().Get("focus"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, http.StatusOK, report)
}

// WizardView is the body of /api/wizard/{id}.
type WizardView struct {
	InstanceID string      `json:"instanceId"`
	FlowID     api.FlowID  `json:"flowId"`
	State      string      `json:"state"`
	Step       wizard.Step `json:"step"`
}

func (s *Server) handleWizard(w http.ResponseWriter, r *http.Request) {
	inst, err := s.engine.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, http.StatusOK, WizardView{
		InstanceID: inst.Meta().InstanceID,
		FlowID:     inst.Flow(),
		State:      inst.StateName(),
		Step:       wizard.Resolve(inst),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	v, err := s.engine.StoreVersion(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, http.StatusOK, v)
}
