package httpx

import (
	"bufio"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/buildboard/buildboard/internal/domain"
	"github.com/buildboard/buildboard/internal/repository"
	"github.com/buildboard/buildboard/internal/service/jenkins"
	"github.com/buildboard/buildboard/internal/ws"
)

// Resolver locates the release artifact for a build. It never fails; the
// result itself tells the caller how much was found.
type Resolver interface {
	Resolve(ctx context.Context, projectPath string, buildNumber int) domain.ExtractionResult
}

// BuildLister serves a job's build history.
type BuildLister interface {
	ListBuilds(ctx context.Context, projectPath string, limit int) ([]jenkins.BuildInfo, error)
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux          *http.ServeMux
	logger       *slog.Logger
	resolver     Resolver
	builds       BuildLister
	records      repository.DeploymentPathRepository
	hub          *ws.Hub
	upgrader     websocket.Upgrader
	limiter      RateLimiter
	serviceToken string
	dbHealth     func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitResolve   = 30
	rateLimitRead      = 120
	rateLimitWebsocket = 30
	healthCheckTimeout = 2 * time.Second
	defaultHistory     = 25
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, resolver Resolver, builds BuildLister, records repository.DeploymentPathRepository, hub *ws.Hub, limiter RateLimiter, serviceToken string, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		resolver: resolver,
		builds:   builds,
		records:  records,
		hub:      hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:      limiter,
		serviceToken: strings.TrimSpace(serviceToken),
		dbHealth:     dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit(r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/api/deployments/resolve", r.audit(r.requireAuth(r.withRateLimit(rateLimitResolve, rateWindowDefault, r.handleResolve))))
	r.mux.HandleFunc("/api/deployments/recent", r.audit(r.requireAuth(r.withRateLimit(rateLimitRead, rateWindowDefault, r.handleRecent))))
	r.mux.HandleFunc("/api/builds/", r.audit(r.requireAuth(r.withRateLimit(rateLimitRead, rateWindowDefault, r.handleBuilds))))
	r.mux.HandleFunc("/ws/resolutions", r.audit(r.requireAuth(r.withRateLimit(rateLimitWebsocket, rateWindowRealtime, r.handleResolutionsWS))))
}

func (r *Router) handleResolve(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		ProjectPath string `json:"project_path"`
		BuildNumber int    `json:"build_number"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	payload.ProjectPath = strings.Trim(strings.TrimSpace(payload.ProjectPath), "/")
	if payload.ProjectPath == "" {
		writeError(w, http.StatusBadRequest, "project_path is required")
		return
	}
	if payload.BuildNumber <= 0 {
		writeError(w, http.StatusBadRequest, "build_number must be positive")
		return
	}
	// The engine always answers; an unlocated artifact shows up as empty
	// fields, not as an HTTP failure.
	result := r.resolver.Resolve(req.Context(), payload.ProjectPath, payload.BuildNumber)
	writeJSON(w, http.StatusOK, result)
}

func (r *Router) handleRecent(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = defaultHistory
	}
	records, err := r.records.ListRecentDeploymentPaths(req.Context(), limit)
	if err != nil {
		r.logger.Error("recent deployments query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load recent deployments")
		return
	}
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, map[string]any{
			"projectPath":  rec.ProjectPath,
			"version":      rec.Version,
			"buildNumber":  rec.BuildNumber,
			"buildDate":    rec.BuildDate,
			"nasPath":      rec.NASPath,
			"downloadFile": rec.DownloadFile,
			"allFiles":     rec.AllFiles,
			"createdAt":    rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (r *Router) handleBuilds(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	projectPath := strings.Trim(strings.TrimPrefix(req.URL.Path, "/api/builds/"), "/")
	if projectPath == "" {
		r.notFound(w)
		return
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = defaultHistory
	}
	builds, err := r.builds.ListBuilds(req.Context(), projectPath, limit)
	if err != nil {
		r.logger.Error("build history fetch failed", "project_path", projectPath, "error", err)
		writeError(w, http.StatusBadGateway, "could not load build history from Jenkins")
		return
	}
	version := domain.VersionFromProjectPath(projectPath)
	out := make([]map[string]any, 0, len(builds))
	for _, b := range builds {
		entry := map[string]any{
			"number":    b.Number,
			"result":    b.Result,
			"timestamp": b.Timestamp,
			"resolved":  false,
		}
		if rec, err := r.records.FindDeploymentPath(req.Context(), projectPath, version, b.Number); err == nil {
			entry["resolved"] = true
			entry["nasPath"] = rec.NASPath
			entry["downloadFile"] = rec.DownloadFile
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, out)
}

func (r *Router) handleResolutionsWS(w http.ResponseWriter, req *http.Request) {
	projectPath := strings.Trim(req.URL.Query().Get("project_path"), "/")
	if projectPath == "" {
		writeError(w, http.StatusBadRequest, "project_path query parameter required")
		return
	}
	if r.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "live updates unavailable")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(projectPath, client)
	go func() {
		defer func() {
			r.hub.Unregister(projectPath, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{"status": "down", "error": err.Error()}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// requireAuth checks the configured service token. An empty configured token
// disables the check (local development).
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if r.serviceToken == "" {
			next(w, req)
			return
		}
		token := strings.TrimSpace(req.Header.Get("X-Service-Token"))
		if token == "" {
			if header := req.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
				token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			}
		}
		if token == "" {
			token = strings.TrimSpace(req.URL.Query().Get("service_token"))
		}
		if len(token) != len(r.serviceToken) || subtle.ConstantTimeCompare([]byte(token), []byte(r.serviceToken)) != 1 {
			r.logger.Warn("service token mismatch", "path", req.URL.Path)
			writeError(w, http.StatusUnauthorized, "invalid service token")
			return
		}
		next(w, req)
	}
}

func (r *Router) audit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
		r.recordRequestMetrics(req.Method, req.URL.Path, status, duration)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps websocket upgrades working through the audit wrapper.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
