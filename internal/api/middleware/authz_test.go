package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/huddlehq/huddle/internal/api/middleware"
	"github.com/huddlehq/huddle/internal/auth"
)

func serveAs(h http.Handler, method string, identity *auth.Identity) int {
	req := httptest.NewRequest(method, "/", nil)
	if identity != nil {
		req = req.WithContext(middleware.WithIdentity(req.Context(), identity))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code
}

func TestRequirePlatformAdmin(t *testing.T) {
	h := middleware.RequirePlatformAdmin()(okHandler())
	admin := &auth.Identity{UserID: uuid.New(), IsPlatformAdmin: true}

	assert.Equal(t, http.StatusOK, serveAs(h, http.MethodGet, admin))
	assert.Equal(t, http.StatusForbidden, serveAs(h, http.MethodGet, coachIdentity(auth.RoleHeadCoach)))
	assert.Equal(t, http.StatusUnauthorized, serveAs(h, http.MethodGet, nil))
}

func TestRequireRole(t *testing.T) {
	h := middleware.RequireRole(auth.RoleHeadCoach, auth.RoleCoach)(okHandler())

	assert.Equal(t, http.StatusOK, serveAs(h, http.MethodGet, coachIdentity(auth.RoleHeadCoach)))
	assert.Equal(t, http.StatusOK, serveAs(h, http.MethodGet, coachIdentity(auth.RoleCoach)))
	assert.Equal(t, http.StatusForbidden, serveAs(h, http.MethodGet, coachIdentity(auth.RoleViewer)))
	assert.Equal(t, http.StatusForbidden, serveAs(h, http.MethodGet, &auth.Identity{UserID: uuid.New(), IsPlatformAdmin: true}))
	assert.Equal(t, http.StatusUnauthorized, serveAs(h, http.MethodGet, nil))
}

func TestRequireWriteMethods(t *testing.T) {
	h := middleware.RequireWriteMethods(auth.RoleHeadCoach, auth.RoleCoach)(okHandler())
	viewer := coachIdentity(auth.RoleViewer)

	assert.Equal(t, http.StatusOK, serveAs(h, http.MethodGet, viewer))
	assert.Equal(t, http.StatusForbidden, serveAs(h, http.MethodPost, viewer))
	assert.Equal(t, http.StatusForbidden, serveAs(h, http.MethodDelete, viewer))
	assert.Equal(t, http.StatusOK, serveAs(h, http.MethodPatch, coachIdentity(auth.RoleCoach)))
}
