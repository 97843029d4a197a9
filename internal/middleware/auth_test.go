package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "s3cret"

func serve(t *testing.T, authHeader string, mw ...echo.MiddlewareFunc) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}

	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, c
}

func TestAuthMiddleware_AcceptsValidToken(t *testing.T) {
	tok, err := IssueToken(secret, "seller-1", "seller", time.Minute)
	require.NoError(t, err)

	rec, c := serve(t, "Bearer "+tok, AuthMiddleware(secret))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "seller-1", c.Get(UserIDKey))
	assert.Equal(t, "seller", c.Get(RoleKey))
}

func TestAuthMiddleware_DefaultsToCustomer(t *testing.T) {
	tok, err := IssueToken(secret, "c1", "", time.Minute)
	require.NoError(t, err)

	_, c := serve(t, "bearer "+tok, AuthMiddleware(secret))
	assert.Equal(t, "customer", c.Get(RoleKey))
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	expired, err := IssueToken(secret, "c1", "customer", -time.Minute)
	require.NoError(t, err)

	forged, err := IssueToken("other", "c1", "admin", time.Minute)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: "admin"}).SignedString([]byte(secret))
	require.NoError(t, err)

	tests := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"garbage":        "Bearer not.a.token",
		"expired":        "Bearer " + expired,
		"wrong secret":   "Bearer " + forged,
		"no subject":     "Bearer " + noSubject,
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			rec, _ := serve(t, header, AuthMiddleware(secret))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	admin, err := IssueToken(secret, "root", "admin", time.Minute)
	require.NoError(t, err)
	customer, err := IssueToken(secret, "c1", "customer", time.Minute)
	require.NoError(t, err)

	rec, _ := serve(t, "Bearer "+admin, AuthMiddleware(secret), RequireRole("admin", "seller"))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = serve(t, "Bearer "+customer, AuthMiddleware(secret), RequireRole("admin", "seller"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
