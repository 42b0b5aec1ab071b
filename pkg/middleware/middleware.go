// Package middleware carries the HTTP request plumbing: request ids,
// principal resolution, role gates, and request logging. Identity is
// resolved upstream by the campus gateway and passed in trusted
// headers; these middlewares translate it into a Principal and fail
// closed when it is missing.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/bursar/pkg/auth"
	"github.com/campuskit/bursar/pkg/contextkeys"
	"github.com/campuskit/bursar/pkg/httputil"
	"github.com/campuskit/bursar/pkg/observability"
)

// Headers set by the upstream campus gateway
const (
	HeaderTenantID  = "X-Tenant-ID"
	HeaderUserID    = "X-User-ID"
	HeaderRoles     = "X-Roles"
	HeaderRequestID = "X-Request-ID"
)

// RequestID attaches a request id to the context and response,
// generating one when the caller did not send one
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(HeaderRequestID, requestID)
		ctx := contextkeys.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate resolves the gateway identity headers into a Principal.
// Requests without a user id are rejected.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.Header.Get(HeaderUserID), 10, 64)
		if err != nil || userID <= 0 {
			httputil.WriteUnauthorized(w, "missing or invalid user identity")
			return
		}

		principal := &auth.Principal{UserID: userID}

		if raw := r.Header.Get(HeaderTenantID); raw != "" {
			tenantID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || tenantID <= 0 {
				httputil.WriteUnauthorized(w, "invalid tenant identity")
				return
			}
			principal.TenantID = tenantID
		}

		for _, raw := range strings.Split(r.Header.Get(HeaderRoles), ",") {
			role := auth.Role(strings.TrimSpace(raw))
			if role.Valid() {
				principal.Roles = append(principal.Roles, role)
			}
		}

		// tenant-scoped callers must belong to a tenant
		if principal.TenantID == 0 && !principal.IsSuperAdmin() {
			httputil.WriteUnauthorized(w, "missing tenant identity")
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects requests whose principal holds none of the roles
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := contextkeys.Principal(r.Context())
			if principal == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}
			if !principal.HasAnyRole(roles...) {
				httputil.WriteForbidden(w, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging logs one line per request with latency and status
func Logging(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			ctx := contextkeys.WithLogger(r.Context(), logger)
			next.ServeHTTP(recorder, r.WithContext(ctx))

			logger.WithFields(map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      recorder.status,
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  contextkeys.RequestID(ctx),
			}).Info("request handled")
		})
	}
}
