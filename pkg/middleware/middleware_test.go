package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/bursar/pkg/auth"
	"github.com/campuskit/bursar/pkg/contextkeys"
)

func TestRequestID(t *testing.T) {
	t.Run("generates an id when absent", func(t *testing.T) {
		var seen string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = contextkeys.RequestID(r.Context())
		}))

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, recorder.Header().Get(HeaderRequestID))
	})

	t.Run("keeps the caller's id", func(t *testing.T) {
		var seen string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = contextkeys.RequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "req-123")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "req-123", seen)
	})
}

func TestAuthenticate(t *testing.T) {
	run := func(t *testing.T, headers map[string]string) (*httptest.ResponseRecorder, *auth.Principal) {
		t.Helper()
		var principal *auth.Principal
		handler := Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal = contextkeys.Principal(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		return recorder, principal
	}

	t.Run("resolves a tenant principal", func(t *testing.T) {
		recorder, principal := run(t, map[string]string{
			HeaderUserID:   "7",
			HeaderTenantID: "42",
			HeaderRoles:    "tenant_admin, accountant",
		})

		assert.Equal(t, http.StatusOK, recorder.Code)
		require.NotNil(t, principal)
		assert.Equal(t, int64(7), principal.UserID)
		assert.Equal(t, int64(42), principal.TenantID)
		assert.True(t, principal.HasRole(auth.RoleTenantAdmin))
		assert.True(t, principal.HasRole(auth.RoleAccountant))
	})

	t.Run("super admin needs no tenant", func(t *testing.T) {
		recorder, principal := run(t, map[string]string{
			HeaderUserID: "1",
			HeaderRoles:  "super_admin",
		})

		assert.Equal(t, http.StatusOK, recorder.Code)
		require.NotNil(t, principal)
		assert.True(t, principal.IsSuperAdmin())
	})

	t.Run("missing user id is rejected", func(t *testing.T) {
		recorder, _ := run(t, map[string]string{HeaderTenantID: "42"})
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("tenant caller without tenant id is rejected", func(t *testing.T) {
		recorder, _ := run(t, map[string]string{
			HeaderUserID: "7",
			HeaderRoles:  "staff",
		})
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("unknown roles are dropped", func(t *testing.T) {
		_, principal := run(t, map[string]string{
			HeaderUserID:   "7",
			HeaderTenantID: "42",
			HeaderRoles:    "staff, janitor",
		})

		require.NotNil(t, principal)
		assert.Equal(t, []auth.Role{auth.RoleStaff}, principal.Roles)
	})
}

func TestRequireRole(t *testing.T) {
	protected := RequireRole(auth.RoleTenantAdmin, auth.RoleAccountant)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
	)

	request := func(principal *auth.Principal) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if principal != nil {
			req = req.WithContext(contextkeys.WithPrincipal(req.Context(), principal))
		}
		recorder := httptest.NewRecorder()
		protected.ServeHTTP(recorder, req)
		return recorder
	}

	t.Run("allows a matching role", func(t *testing.T) {
		recorder := request(&auth.Principal{UserID: 7, TenantID: 42, Roles: []auth.Role{auth.RoleAccountant}})
		assert.Equal(t, http.StatusNoContent, recorder.Code)
	})

	t.Run("rejects a non-matching role", func(t *testing.T) {
		recorder := request(&auth.Principal{UserID: 7, TenantID: 42, Roles: []auth.Role{auth.RoleStaff}})
		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})

	t.Run("rejects missing principal", func(t *testing.T) {
		recorder := request(nil)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}
