package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tipjar/internal/middleware"
)

func callGuarded(t *testing.T, role any) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if role != nil {
		c.Set("role", role)
	}

	h := middleware.AdminGuard(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func TestAdminGuardAllowsAdmin(t *testing.T) {
	rec := callGuarded(t, "admin")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
}

func TestAdminGuardRejectsOthers(t *testing.T) {
	for _, role := range []any{"creator", "", nil, 42} {
		rec := callGuarded(t, role)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403 for role %v, got %d", role, rec.Code)
		}
	}
}
