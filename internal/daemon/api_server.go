package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"flowline/internal/api"
	"flowline/internal/config"
	"flowline/internal/flow"
	"flowline/internal/logging"
	"flowline/internal/logs"
)

type apiServer struct {
	bind   string
	logDir string
	logger *slog.Logger
	daemon *Daemon
	svc    *flow.Service

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logDir: cfg.Paths.LogDir,
		logger: logger,
		daemon: d,
		svc:    d.svc,
	}

	token := cfg.Paths.APIToken
	guard := func(h http.HandlerFunc) http.HandlerFunc {
		return correlationMiddleware(authMiddleware(token, h))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/queues", guard(srv.handleQueues))
	mux.HandleFunc("/api/queues/", guard(srv.handleQueueSubtree))
	mux.HandleFunc("/api/tickets", guard(srv.handleTickets))
	mux.HandleFunc("/api/tickets/", guard(srv.handleTicketSubtree))
	mux.HandleFunc("/api/tasks", guard(srv.handleTasks))
	mux.HandleFunc("/api/tasks/", guard(srv.handleTaskSubtree))
	mux.HandleFunc("/api/flow/move", guard(srv.handleMove))
	mux.HandleFunc("/api/flow/bulk-move", guard(srv.handleBulkMove))
	mux.HandleFunc("/api/flow/batch-enqueue", guard(srv.handleBatchEnqueue))
	mux.HandleFunc("/api/flow/reorder", guard(srv.handleReorder))
	mux.HandleFunc("/api/flow/process/start", guard(srv.handleProcessStart))
	mux.HandleFunc("/api/flow/process/complete", guard(srv.handleProcessComplete))
	mux.HandleFunc("/api/flow/process/fail", guard(srv.handleProcessFail))
	mux.HandleFunc("/api/projects/", guard(srv.handleProjectSubtree))
	mux.HandleFunc("/api/status", guard(srv.handleStatus))
	mux.HandleFunc("/api/health", guard(srv.handleHealth))
	mux.HandleFunc("/api/logs", guard(srv.handleLogs))
	mux.HandleFunc("/api/notify/test", guard(srv.handleTestNotify))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Totals:       api.FromHealthSummary(status.Totals),
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = status.StartedAt.UTC().Format(time.RFC3339)
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	health, err := s.daemon.store.CheckHealth(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromHealth(&health))
}

// maxLogWait keeps blocking log reads well inside the server write timeout.
const maxLogWait = 10 * time.Second

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	opts := logs.TailOptions{Offset: -1}
	query := r.URL.Query()
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		opts.Offset = offset
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = limit
	}
	if raw := query.Get("wait_ms"); raw != "" {
		waitMillis, err := strconv.Atoi(raw)
		if err != nil || waitMillis < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid wait_ms")
			return
		}
		opts.Wait = time.Duration(waitMillis) * time.Millisecond
		if opts.Wait > maxLogWait {
			opts.Wait = maxLogWait
		}
	}

	result, err := logs.Tail(r.Context(), logs.CurrentPath(s.logDir), opts)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.LogTailResponse{Lines: result.Lines, Offset: result.Offset})
}

func (s *apiServer) handleTestNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sent, message, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, fmt.Sprintf("%s: %v", message, err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.TestNotifyResponse{Sent: sent, Message: message})
}

// decodeJSON fills dst from the request body. An empty body leaves dst at
// its zero value so domain validation reports the missing fields.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

// writeFlowError maps a flow error onto its transport status and uniform
// payload.
func (s *apiServer) writeFlowError(w http.ResponseWriter, err error) {
	code := flow.CodeOf(err)
	s.writeJSON(w, flow.HTTPStatus(code), api.ErrorResponse{
		Error: err.Error(),
		Code:  string(code),
	})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}
