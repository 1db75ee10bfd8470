package httpapi

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	apperrors "github.com/louisbranch/medvault/internal/platform/errors"
	"github.com/louisbranch/medvault/internal/platform/requestctx"
	"github.com/louisbranch/medvault/internal/vault/auth"
	"github.com/louisbranch/medvault/internal/vault/observability/audit"
	"github.com/louisbranch/medvault/internal/vault/observability/audit/events"
	"github.com/louisbranch/medvault/internal/vault/storage"
)

const (
	requestIDHeader = "X-Request-Id"
	tracerName      = "medvault/httpapi"

	requestsPerSecond = rate.Limit(25)
	requestBurst      = 50
	limiterIdleTTL    = 10 * time.Minute
)

// Middleware assembles the request-scoped layers shared by registry routes.
type Middleware struct {
	limiter *multiLimiter
	emitter *audit.Emitter
	now     func() time.Time
}

// NewMiddleware creates the middleware stack. The emitter may be nil, in
// which case audit emission is a no-op.
func NewMiddleware(emitter *audit.Emitter, now func() time.Time) *Middleware {
	if now == nil {
		now = time.Now
	}
	return &Middleware{
		limiter: newMultiLimiter(requestsPerSecond, requestBurst, limiterIdleTTL),
		emitter: emitter,
		now:     now,
	}
}

// Public wraps open routes with request identity, tracing, rate limiting,
// and audit emission.
func (m *Middleware) Public(next http.HandlerFunc) http.HandlerFunc {
	return m.withRequestID(m.withSpan(m.withRateLimit(m.withAudit(next))))
}

// Protected additionally authenticates the bearer token. Authentication runs
// before rate limiting so the limiter keys on the verified principal rather
// than the client address.
func (m *Middleware) Protected(next http.HandlerFunc) http.HandlerFunc {
	return m.withRequestID(m.withSpan(m.withAuth(m.withRateLimit(m.withAudit(next)))))
}

func (m *Middleware) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		next(w, r.WithContext(requestctx.WithRequestID(r.Context(), requestID)))
	}
}

func (m *Middleware) withSpan(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := otel.Tracer(tracerName).Start(r.Context(), spanName(r))
		defer span.End()
		next(w, r.WithContext(ctx))
	}
}

func (m *Middleware) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, apperrors.New(apperrors.CodeAccessTokenInvalid, "bearer token is required"))
			return
		}
		cfg, err := auth.LoadAccessTokenConfigFromEnv(m.now)
		if err != nil {
			writeError(w, apperrors.Wrap(apperrors.CodeAccessTokenInvalid, "access token verification is not configured", err))
			return
		}
		claims, err := auth.VerifyAccessToken(token, cfg)
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r.WithContext(requestctx.WithPrincipal(r.Context(), claims.Subject)))
	}
}

func (m *Middleware) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := requestctx.PrincipalFromContext(r.Context())
		if key == "" {
			key = getClientIP(r)
		}
		if !m.limiter.allow(key) {
			tooMany(w, 1)
			return
		}
		next(w, r)
	}
}

// withAudit records one durable audit event per handled request. Emission
// failures are logged and never affect the response.
func (m *Middleware) withAudit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r)

		eventName := events.HTTPWrite
		if r.Method == http.MethodGet {
			eventName = events.HTTPRead
		}
		severity := audit.SeverityInfo
		switch {
		case recorder.status >= http.StatusInternalServerError:
			severity = audit.SeverityError
		case recorder.status >= http.StatusBadRequest:
			severity = audit.SeverityWarn
		}

		evt := audit.WithContextIdentity(r.Context(), storage.AuditEvent{
			EventName: eventName,
			Severity:  string(severity),
			EntryID:   auditEntryID(r),
			Attributes: map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
				"status": recorder.status,
			},
		})
		if err := m.emitter.Emit(r.Context(), evt); err != nil {
			log.Printf("audit emit %s %s: %v", r.Method, r.URL.Path, err)
		}
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// auditEntryID extracts the entry id path value when the matched route has
// one. Unparseable values record as zero.
func auditEntryID(r *http.Request) uint64 {
	raw := strings.TrimSpace(r.PathValue("entryID"))
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// spanName names the span after the matched route pattern, which already
// carries the method, falling back to method plus raw path when the mux has
// not resolved one.
func spanName(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return r.Method + " " + r.URL.Path
}

// statusRecorder captures the response status for audit emission.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}
