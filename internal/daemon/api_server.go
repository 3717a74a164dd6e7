package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"captioner/internal/api"
	"captioner/internal/fileutil"
	"captioner/internal/logging"
	"captioner/internal/pipeline"
	"captioner/internal/runlog"
	"captioner/internal/services"
)

const (
	// uploadFormField is the multipart field holding the video.
	uploadFormField = "file"
	// multipartOverhead allows for part headers and boundaries on top of the
	// configured upload limit.
	multipartOverhead = 1 << 20

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var errNoFile = errors.New("no file provided")

type apiServer struct {
	bind           string
	token          string
	maxUploadBytes int64
	logger         *slog.Logger
	daemon         *Daemon
	runner         Runner
	journal        Journal
	events         *pipeline.EventHub
	upgrader       websocket.Upgrader
	router         *mux.Router

	listener net.Listener
	server   *http.Server
}

func newAPIServer(d *Daemon, gatherer prometheus.Gatherer) *apiServer {
	cfg := d.cfg
	srv := &apiServer{
		bind:           strings.TrimSpace(cfg.Server.Bind),
		token:          strings.TrimSpace(cfg.Server.APIToken),
		maxUploadBytes: cfg.MaxUploadBytes(),
		logger:         logging.NewComponentLogger(d.logger, "api-server"),
		daemon:         d,
		runner:         d.runner,
		journal:        d.journal,
		events:         d.events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}

	router := mux.NewRouter()
	router.Use(correlationMiddleware(srv.logger))
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		srv.writeError(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		srv.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	auth := func(h http.HandlerFunc) http.HandlerFunc { return authMiddleware(srv.token, h) }
	router.HandleFunc("/healthz", srv.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/subtitles", auth(srv.handleSubtitles)).Methods(http.MethodPost)
	router.HandleFunc("/generate-subtitles", auth(srv.handleSubtitles)).Methods(http.MethodPost)
	router.HandleFunc("/api/status", auth(srv.handleStatus)).Methods(http.MethodGet)
	router.HandleFunc("/api/runs", auth(srv.handleRuns)).Methods(http.MethodGet)
	router.HandleFunc("/api/runs/{id}", auth(srv.handleRun)).Methods(http.MethodGet)
	router.HandleFunc("/api/events", auth(srv.handleEvents)).Methods(http.MethodGet)
	if gatherer != nil {
		metrics := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
		router.HandleFunc("/metrics", auth(metrics.ServeHTTP)).Methods(http.MethodGet)
	}
	srv.router = router
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	// Runs can take as long as the stage timeouts allow, so the server sets
	// no read or write deadline beyond headers.
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.server = server

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil || s.listener == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown incomplete", logging.Error(err))
	}
	s.listener = nil
	s.server = nil
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok\n")
}

// handleSubtitles streams one multipart upload into a pipeline run. Each
// request is exactly one run and the upload body is consumed once.
func (s *apiServer) handleSubtitles(w http.ResponseWriter, r *http.Request) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverhead)
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		s.writeRejection(w, http.StatusUnsupportedMediaType, "expected multipart/form-data with a file field")
		return
	}
	reader, err := r.MultipartReader()
	if err != nil {
		s.writeRejection(w, http.StatusBadRequest, "malformed multipart body")
		return
	}
	part, err := nextFilePart(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			s.writeRejection(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
		case errors.Is(err, errNoFile):
			s.writeRejection(w, http.StatusBadRequest, "no file provided")
		default:
			s.writeRejection(w, http.StatusBadRequest, "malformed multipart body")
		}
		return
	}
	defer part.Close()

	result, runErr := s.runner.Run(r.Context(), pipeline.Upload{
		Body:     part,
		Filename: part.FileName(),
		Source:   runlog.SourceAPI,
	})
	if runErr != nil {
		s.writeRunFailure(w, result.RunID, runErr)
		return
	}
	segments := result.Segments
	s.writeJSON(w, http.StatusOK, api.SubtitleResponse{
		Success:  true,
		VideoURL: result.VideoURL,
		RunID:    result.RunID,
		Segments: &segments,
	})
}

func nextFilePart(reader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoFile
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == uploadFormField {
			return part, nil
		}
		_ = part.Close()
	}
}

func (s *apiServer) writeRejection(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, api.SubtitleResponse{
		Error:  api.FailureMessage,
		Stage:  pipeline.StageInput,
		Kind:   string(services.KindClient),
		Detail: detail,
	})
}

func (s *apiServer) writeRunFailure(w http.ResponseWriter, runID string, err error) {
	status := statusForRunError(err)
	resp := api.SubtitleResponse{
		Error: api.FailureMessage,
		Stage: pipeline.FailedStage(err),
		Kind:  string(services.KindInternal),
		RunID: runID,
	}
	if pipeline.IsClientError(err) || status == http.StatusRequestEntityTooLarge {
		resp.Kind = string(services.KindClient)
		resp.Detail = clientDetail(err)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	s.writeJSON(w, status, resp)
}

// statusForRunError maps a run failure onto an HTTP status.
func statusForRunError(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, services.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, fileutil.ErrTooLarge), errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, pipeline.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case pipeline.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, services.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func clientDetail(err error) string {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, fileutil.ErrTooLarge), errors.As(err, &maxErr):
		return "upload exceeds size limit"
	case errors.Is(err, pipeline.ErrUnsupportedMedia):
		return "upload is not a video"
	default:
		return "invalid upload"
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeJSON(w, http.StatusOK, api.RunListResponse{Runs: []api.Run{}})
		return
	}
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	var statuses []runlog.Status
	for _, value := range query["status"] {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			statuses = append(statuses, runlog.Status(trimmed))
		}
	}
	runs, err := s.journal.List(r.Context(), limit, statuses...)
	if err != nil {
		s.logger.Error("list runs failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "run journal unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, api.RunListResponse{Runs: api.FromRuns(runs)})
}

func (s *apiServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	id := mux.Vars(r)["id"]
	run, err := s.journal.Get(r.Context(), id)
	if errors.Is(err, services.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get run failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "run journal unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, api.RunResponse{Run: api.FromRun(*run)})
}

// handleEvents streams run progress events over a websocket. Clients may
// resume with ?since=<seq>.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		s.writeError(w, http.StatusNotFound, "event stream disabled")
		return
	}
	since, _ := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		fetchCtx, fetchCancel := context.WithTimeout(ctx, pingPeriod)
		events, _, _ := s.events.Fetch(fetchCtx, since, 100, true)
		fetchCancel()
		if ctx.Err() != nil {
			return
		}
		if len(events) == 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}
		for _, evt := range events {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}
		since = events[len(events)-1].Sequence
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
