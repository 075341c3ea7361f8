// Package server implements the HTTP API of the channel console. Every /v1
// route is authenticated with a bearer JWT whose subject selects the caller's
// workspace.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/relaycore/channel-console/internal/channel"
	errordefs "github.com/relaycore/channel-console/internal/errors"
	"github.com/relaycore/channel-console/internal/event"
	"github.com/relaycore/channel-console/internal/jwks"
	"github.com/relaycore/channel-console/internal/journal"
	"github.com/relaycore/channel-console/internal/metrics"
	"github.com/relaycore/channel-console/internal/mirth"
	"github.com/relaycore/channel-console/internal/model"
	"github.com/relaycore/channel-console/internal/schema"
	"github.com/relaycore/channel-console/internal/storage"
	"github.com/relaycore/channel-console/internal/view"
	"github.com/relaycore/channel-console/internal/workflow"
	"github.com/relaycore/channel-console/internal/workspace"
)

// ContextKey is used for context values to avoid collisions
// when storing values in request context
type ContextKey string

const (
	ContextKeySubject       ContextKey = "subject"       // Subject of the verified JWT
	ContextKeyCorrelationID ContextKey = "correlationId" // Unique ID for request tracking
)

// Engine is the part of the engine API the handlers call directly.
type Engine interface {
	PortsInUse(ctx context.Context) ([]model.Port, error)
	Events(ctx context.Context, name string) ([]model.Event, error)
	GlobalScripts(ctx context.Context) (*model.GlobalScripts, error)
	SetGlobalScripts(ctx context.Context, g *model.GlobalScripts) error
	Lifecycle(ctx context.Context, id string, action mirth.Action) error
	Deploy(ctx context.Context, id string, opts mirth.DeployOptions) error
	ClearStatistics(ctx context.Context, ids []string, opts mirth.ClearOptions) error
	ConnectorNames(ctx context.Context, id string) ([]model.ConnectorName, error)
}

// TokenVerifier verifies bearer tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, token, issuer, audience string) (*jwks.Claims, error)
}

// ExportLinker hands out download links for channel exports.
type ExportLinker interface {
	ExportURL(ctx context.Context, channelID string, expires time.Duration) (string, error)
}

// Deps are the collaborators of the HTTP API. Exports may be nil.
type Deps struct {
	Engine      Engine
	Workspaces  *workspace.Manager
	Journal     *journal.Journal
	Store       storage.Store
	Exports     ExportLinker
	Verifier    TokenVerifier
	Validator   *schema.Validator
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	JWTIssuer   string
	JWTAudience string

	CORSAllowedOrigins []string
	// StreamRefresh is how often an open workspace stream reruns the list workflow.
	StreamRefresh time.Duration
}

// Mux handles HTTP requests for the console.
type Mux struct {
	mux      *http.ServeMux
	deps     Deps
	logger   *slog.Logger
	validate *validator.Validate
}

// exportLinkTTL is the lifetime of presigned export links.
const exportLinkTTL = 15 * time.Minute

var tracer = otel.Tracer("github.com/relaycore/channel-console/internal/server")

// NewMux creates the console HTTP handler with every route registered.
func NewMux(d Deps) *http.ServeMux {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewMetrics()
	}
	m := &Mux{
		mux:      http.NewServeMux(),
		deps:     d,
		logger:   d.Logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	// Health endpoints
	m.mux.HandleFunc("GET /healthz", m.handleHealthz)
	m.mux.HandleFunc("GET /readyz", m.handleReadyz)
	m.mux.Handle("GET /metrics", promhttp.Handler())

	// Channel list and engine operations
	m.handle("GET /v1/channels", m.handleListChannels)
	m.handle("POST /v1/channels", m.handleCreateChannel)
	m.handle("POST /v1/channels/refresh", m.handleRefreshChannels)
	m.handle("POST /v1/channels/statistics/clear", m.handleClearStatistics)
	m.handle("POST /v1/channels/{id}/{action}", m.handleLifecycle)
	m.handle("GET /v1/channels/{id}/connectors", m.handleConnectorNames)
	m.handle("GET /v1/channels/{id}/snapshots", m.handleListSnapshots)
	m.handle("GET /v1/channels/{id}/snapshots/{snapshotId}", m.handleGetSnapshot)
	m.handle("GET /v1/channels/{id}/export", m.handleExportLink)
	m.handle("GET /v1/events", m.handleEvents)
	m.handle("GET /v1/ports", m.handlePorts)
	m.handle("GET /v1/global-scripts", m.handleGetGlobalScripts)
	m.handle("PUT /v1/global-scripts", m.handlePutGlobalScript)
	m.handle("GET /v1/options", m.handleOptions)

	// Workspace document
	m.handle("GET /v1/workspace", m.handleGetWorkspace)
	m.handle("POST /v1/workspace/load", m.handleLoad)
	m.handle("POST /v1/workspace/actions", m.handleAction)
	m.handle("POST /v1/workspace/source-type", m.handleSourceType)
	m.handle("POST /v1/workspace/save", m.handleSave)
	m.handle("GET /v1/workspace/stream", m.handleStream)
	m.handle("POST /v1/workspace/filter/rules", m.handleAddFilterRule)
	m.handle("PUT /v1/workspace/filter/rules/{seq}", m.handleReplaceFilterRule)
	m.handle("DELETE /v1/workspace/filter/rules/{seq}", m.handleDeleteFilterRule)
	m.handle("POST /v1/workspace/transformer/steps", m.handleAddTransformerStep)
	m.handle("PUT /v1/workspace/transformer/steps/{seq}", m.handleReplaceTransformerStep)
	m.handle("DELETE /v1/workspace/transformer/steps/{seq}", m.handleDeleteTransformerStep)
	m.handle("GET /v1/workspace/tables/{table}", m.handleGetTable)
	m.handle("PUT /v1/workspace/tables/{table}", m.handlePutTable)

	// CORS preflight for every /v1 route
	m.mux.HandleFunc("OPTIONS /v1/", m.handlePreflight)

	return m.mux
}

// handle registers an authenticated route.
func (m *Mux) handle(pattern string, h http.HandlerFunc) {
	m.mux.HandleFunc(pattern, m.withMiddleware(pattern, h))
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Hijack hands the connection to the websocket upgrader.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	s.status = http.StatusSwitchingProtocols
	return http.NewResponseController(s.ResponseWriter).Hijack()
}

// withMiddleware applies CORS, correlation ids, authentication, tracing,
// metrics and request logging.
func (m *Mux) withMiddleware(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.setCORS(w, r)

		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), ContextKeyCorrelationID, correlationID)
		ctx = event.WithCorrelationID(ctx, correlationID)
		w.Header().Set("X-Correlation-Id", correlationID)

		ctx, span := tracer.Start(ctx, route)
		defer span.End()
		span.SetAttributes(attribute.String("correlation_id", correlationID))
		r = r.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			m.deps.Metrics.ObserveHTTP(r.Method, routePath(route), rec.status, time.Since(start))
			if rec.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rec.status))
			}
		}()

		subject, err := m.authenticate(r)
		if err != nil {
			var def *errordefs.Error
			if !errors.As(err, &def) {
				def = errordefs.New(errordefs.CC_AUTHN, err.Error(), "")
			}
			def.CorrelationID = correlationID
			m.writeErrorDef(rec, def)
			m.logRequest(r, def.HTTPStatus, time.Since(start), correlationID, err)
			return
		}
		r = r.WithContext(context.WithValue(r.Context(), ContextKeySubject, subject))
		span.SetAttributes(attribute.String("subject", subject))

		h(rec, r)
		m.logRequest(r, rec.status, time.Since(start), correlationID, nil)
	}
}

// routePath drops the method from a route pattern.
func routePath(route string) string {
	if i := strings.IndexByte(route, ' '); i >= 0 {
		return route[i+1:]
	}
	return route
}

func (m *Mux) originAllowed(origin string) bool {
	for _, allowed := range m.deps.CORSAllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (m *Mux) setCORS(w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); origin != "" && m.originAllowed(origin) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
	}
}

func (m *Mux) handlePreflight(w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); origin != "" && m.originAllowed(origin) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Correlation-Id")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours
	}
	w.WriteHeader(http.StatusNoContent)
}

// authenticate verifies the bearer token and returns its subject. The
// workspace stream may pass the token as access_token since browsers cannot
// set headers on a WebSocket handshake.
func (m *Mux) authenticate(r *http.Request) (string, error) {
	var token string
	if h := r.Header.Get("Authorization"); h != "" {
		if !strings.HasPrefix(h, "Bearer ") {
			return "", errordefs.New(errordefs.CC_AUTHN, "invalid Authorization header format", "")
		}
		token = strings.TrimPrefix(h, "Bearer ")
	} else if r.URL.Path == "/v1/workspace/stream" {
		token = r.URL.Query().Get("access_token")
	}
	if token == "" {
		return "", errordefs.New(errordefs.CC_AUTHN, "missing Authorization header", "")
	}

	claims, err := m.deps.Verifier.Verify(r.Context(), token, m.deps.JWTIssuer, m.deps.JWTAudience)
	switch {
	case err == nil:
		return claims.Subject, nil
	case errors.Is(err, jwks.ErrExpired):
		return "", errordefs.New(errordefs.CC_JWT_EXPIRED, "JWT token expired", "")
	case errors.Is(err, jwks.ErrMalformed):
		return "", errordefs.New(errordefs.CC_JWT_MALFORMED, err.Error(), "")
	case errors.Is(err, jwks.ErrUnknownKey):
		return "", errordefs.New(errordefs.CC_JWT_INVALID, "failed to get key for JWT validation", "")
	default:
		return "", errordefs.New(errordefs.CC_JWT_INVALID, fmt.Sprintf("failed to validate JWT: %v", err), "")
	}
}

func subjectOf(r *http.Request) string {
	s, _ := r.Context().Value(ContextKeySubject).(string)
	return s
}

func correlationOf(r *http.Request) string {
	s, _ := r.Context().Value(ContextKeyCorrelationID).(string)
	return s
}

// writeSuccess writes a successful response
func (m *Mux) writeSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

// writeErrorDef writes an error response using the error definitions package
func (m *Mux) writeErrorDef(w http.ResponseWriter, err *errordefs.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": err})
}

// fail maps err to the console error taxonomy and writes it. Unclassified
// errors are internal.
func (m *Mux) fail(w http.ResponseWriter, r *http.Request, err error) {
	m.failAs(w, r, err, errordefs.CC_INTERNAL)
}

// failUpstream is fail for errors of engine calls: unclassified errors are
// reported as upstream failures with their message.
func (m *Mux) failUpstream(w http.ResponseWriter, r *http.Request, err error) {
	m.failAs(w, r, err, errordefs.CC_UPSTREAM)
}

func (m *Mux) failAs(w http.ResponseWriter, r *http.Request, err error, fallback errordefs.ErrorCode) {
	def := classify(err, correlationOf(r), fallback)
	if def.HTTPStatus >= http.StatusInternalServerError {
		m.logger.Error("request failed", "path", r.URL.Path, "correlation_id", def.CorrelationID, "error", err)
	}
	m.writeErrorDef(w, def)
}

// classify maps domain errors to error definitions.
func classify(err error, correlationID string, fallback errordefs.ErrorCode) *errordefs.Error {
	var def *errordefs.Error
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &def):
		out := *def
		out.CorrelationID = correlationID
		return &out
	case errors.As(err, &verrs):
		details := make([]map[string]string, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, map[string]string{"field": fe.Field(), "rule": fe.Tag()})
		}
		return errordefs.NewWithDetails(errordefs.CC_VALIDATION, "invalid request", correlationID, details)
	case errors.Is(err, workspace.ErrNoDocument):
		return errordefs.New(errordefs.CC_NO_DOCUMENT, err.Error(), correlationID)
	case errors.Is(err, channel.ErrUnknownAction):
		return errordefs.New(errordefs.CC_UNKNOWN_ACTION, err.Error(), correlationID)
	case errors.Is(err, channel.ErrInvalidValue), errors.Is(err, channel.ErrMissingTarget),
		errors.Is(err, view.ErrUnknownTable):
		return errordefs.New(errordefs.CC_VALIDATION, err.Error(), correlationID)
	case errors.Is(err, workflow.ErrNameRequired), errors.Is(err, workflow.ErrNameTaken),
		errors.Is(err, workflow.ErrNameTooLong), errors.Is(err, workflow.ErrNameInvalid):
		return errordefs.New(errordefs.CC_VALIDATION, err.Error(), correlationID)
	case errors.Is(err, schema.ErrInvalid):
		return errordefs.NewWithDetails(errordefs.CC_SCHEMA_REJECT, "channel document rejected", correlationID, err.Error())
	case errors.Is(err, storage.ErrInvalidCursor):
		return errordefs.New(errordefs.CC_CURSOR_INVALID, err.Error(), correlationID)
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, mirth.ErrNotFound):
		return errordefs.New(errordefs.CC_NOT_FOUND, err.Error(), correlationID)
	case errors.Is(err, storage.ErrConflict):
		return errordefs.New(errordefs.CC_CONFLICT, err.Error(), correlationID)
	case errors.Is(err, mirth.ErrForbidden):
		return errordefs.New(errordefs.CC_AUTHZ, err.Error(), correlationID)
	case errors.Is(err, mirth.ErrUnavailable):
		return errordefs.New(errordefs.CC_UNAVAILABLE, err.Error(), correlationID)
	case fallback == errordefs.CC_INTERNAL:
		return errordefs.New(errordefs.CC_INTERNAL, "internal error", correlationID)
	default:
		return errordefs.New(fallback, err.Error(), correlationID)
	}
}

// decode reads a JSON body into dst and validates it.
func (m *Mux) decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 8<<20))
	if err := dec.Decode(dst); err != nil {
		return errordefs.New(errordefs.CC_BAD_REQUEST, "invalid JSON", "")
	}
	if err := m.validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

// logRequest logs request details
func (m *Mux) logRequest(r *http.Request, status int, duration time.Duration, correlationID string, err error) {
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
		slog.String("user_agent", r.UserAgent()),
		slog.String("remote_addr", r.RemoteAddr),
	}
	if correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}
	if subject := subjectOf(r); subject != "" {
		attrs = append(attrs, slog.String("subject", subject))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		m.logger.LogAttrs(r.Context(), slog.LevelWarn, "request rejected", attrs...)
		return
	}
	m.logger.LogAttrs(r.Context(), slog.LevelInfo, "request completed", attrs...)
}

// handleHealthz handles liveness health check requests
func (m *Mux) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz reports whether the store is reachable
func (m *Mux) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if m.deps.Store != nil {
		if err := m.deps.Store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
