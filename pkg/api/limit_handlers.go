package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/campuskit/bursar/pkg/httputil"
	"github.com/campuskit/bursar/pkg/limits"
)

// LimitHandlers exposes plan limit checks to the campus services that
// gate enrollment and staffing actions
type LimitHandlers struct {
	limits limits.Checker
}

// NewLimitHandlers creates a new LimitHandlers
func NewLimitHandlers(checker limits.Checker) *LimitHandlers {
	return &LimitHandlers{limits: checker}
}

// RegisterRoutes registers limit routes
func (h *LimitHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/limits/{resource}/check", h.Check).Methods("GET")
}

// Check handles GET /limits/{resource}/check. 200 means one more of the
// resource may be added; 409 carries the exceeded limit.
func (h *LimitHandlers) Check(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok := resolveTenant(w, r, principal)
	if !ok {
		return
	}

	var err error
	switch limits.Resource(mux.Vars(r)["resource"]) {
	case limits.ResourceStudents:
		err = h.limits.CheckStudentLimit(r.Context(), tenantID)
	case limits.ResourceTeachers:
		err = h.limits.CheckTeacherLimit(r.Context(), tenantID)
	case limits.ResourceDepartments:
		err = h.limits.CheckDepartmentLimit(r.Context(), tenantID)
	default:
		httputil.WriteBadRequest(w, "unknown resource")
		return
	}

	var exceeded *limits.LimitExceededError
	switch {
	case err == nil:
		httputil.WriteSuccess(w, map[string]bool{"allowed": true})
	case errors.As(err, &exceeded):
		httputil.WriteJSON(w, http.StatusConflict, map[string]interface{}{
			"allowed":  false,
			"resource": exceeded.Resource,
			"current":  exceeded.Current,
			"limit":    exceeded.Limit,
		})
	default:
		httputil.WriteInternalError(w, err)
	}
}
