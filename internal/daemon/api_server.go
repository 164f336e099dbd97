package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"strikearr/internal/api"
	"strikearr/internal/config"
	"strikearr/internal/ledger"
	"strikearr/internal/logging"
	"strikearr/internal/metrics"
	"strikearr/internal/strike"
)

const maxActionsLimit = 1000

// querySource is the daemon surface served over HTTP.
type querySource interface {
	Status(ctx context.Context) Status
	Strikes(ctx context.Context, filter ledger.Filter) ([]strike.Record, error)
	Actions(ctx context.Context, limit int) ([]strike.Action, error)
	TestNotification(ctx context.Context) ([]string, error)
}

type apiServer struct {
	bind   string
	logger *slog.Logger
	source querySource
	router chi.Router

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg config.API, source querySource, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Bind),
		logger: logger,
		source: source,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(srv.observe)

	r.Get("/healthz", srv.handleHealth)
	r.Handle("/metrics", metrics.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(cfg.Token))
		r.Get("/status", srv.handleStatus)
		r.Get("/strikes", srv.handleStrikes)
		r.Get("/actions", srv.handleActions)
		r.Post("/test-notify", srv.handleTestNotify)
	})
	srv.router = r

	srv.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil || s.bind == "" {
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

// observe records request metrics keyed by route pattern.
func (s *apiServer) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		metrics.ObserveAPIRequest(route, status, elapsed)
		s.log().Debug("api request",
			logging.String("method", r.Method),
			logging.String("route", route),
			logging.Int("status", status),
			logging.Duration("duration", elapsed),
			logging.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.source.Status(r.Context())
	payload := api.StatusResponse{
		Running:        status.Running,
		PID:            status.PID,
		StartedAt:      api.FormatTime(status.StartedAt),
		ConfigPath:     status.ConfigPath,
		ConfigLoadedAt: api.FormatTime(status.ConfigLoadedAt),
		LockPath:       status.LockPath,
		Channels:       status.Channels,
		Instances:      make([]api.InstanceStatus, 0, len(status.Instances)),
		Totals:         api.FromTotals(status.Totals),
		Database:       api.FromDatabaseHealth(status.Database),
	}
	if payload.Channels == nil {
		payload.Channels = []string{}
	}
	for _, inst := range status.Instances {
		payload.Instances = append(payload.Instances, api.FromPollerStatus(inst))
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleStrikes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := ledger.Filter{
		InstanceID: strings.TrimSpace(query.Get("instance")),
		Identity:   strings.TrimSpace(query.Get("identity")),
	}
	if raw := strings.TrimSpace(query.Get("category")); raw != "" {
		category, err := strike.ParseCategory(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Category = category
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	records, err := s.source.Strikes(r.Context(), filter)
	if err != nil {
		s.log().Warn("list strikes failed", logging.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list strikes")
		return
	}
	writeJSON(w, http.StatusOK, api.StrikesResponse{Records: api.FromRecords(records)})
}

func (s *apiServer) handleActions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = min(parsed, maxActionsLimit)
	}
	actions, err := s.source.Actions(r.Context(), limit)
	if err != nil {
		s.log().Warn("list actions failed", logging.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list actions")
		return
	}
	writeJSON(w, http.StatusOK, api.ActionsResponse{Actions: api.FromActions(actions)})
}

func (s *apiServer) handleTestNotify(w http.ResponseWriter, r *http.Request) {
	channels, err := s.source.TestNotification(r.Context())
	if channels == nil {
		channels = []string{}
	}
	if len(channels) == 0 {
		writeJSON(w, http.StatusOK, api.TestNotifyResponse{
			Channels: channels,
			Message:  "no notification channels are enabled",
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.TestNotifyResponse{
		Sent:     true,
		Channels: channels,
		Message:  "test notification sent",
	})
}

func (s *apiServer) log() *slog.Logger {
	if s == nil || s.logger == nil {
		return logging.NewNop()
	}
	return s.logger
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg})
}
