package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ngdi-portal/internal/models"
	"ngdi-portal/internal/repository"
	"ngdi-portal/internal/token"
)

const testCookie = "ngdi_session"

// fakeUsers satisfies repository.UserRepository for the lookups the
// middleware performs; everything else panics if reached.
type fakeUsers struct {
	repository.UserRepository
	byID map[string]*models.User
}

func (f *fakeUsers) GetUserByID(id string) (*models.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

func newMiddlewareFixture(t *testing.T) (*token.Issuer, *fakeUsers, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	issuer := token.NewIssuer(token.Config{
		Secret:    []byte("test-secret"),
		AccessTTL: time.Hour,
	}, nil, zap.NewNop())

	users := &fakeUsers{byID: map[string]*models.User{}}

	router := gin.New()
	router.GET("/protected",
		AuthMiddleware(issuer, users, testCookie, zap.NewNop()),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"user_id": CurrentUser(c).ID})
		})
	router.GET("/admin",
		AuthMiddleware(issuer, users, testCookie, zap.NewNop()),
		RequireRole(models.RoleAdmin),
		func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
	router.GET("/catalog",
		OptionalAuth(issuer, users, testCookie, zap.NewNop()),
		func(c *gin.Context) {
			user := CurrentUser(c)
			if user == nil {
				c.JSON(http.StatusOK, gin.H{"role": ""})
				return
			}
			c.JSON(http.StatusOK, gin.H{"role": user.Role})
		})

	return issuer, users, router
}

func signFor(t *testing.T, issuer *token.Issuer, user *models.User) string {
	t.Helper()
	signed, _, err := issuer.Issue(user, "device", time.Time{}, 0)
	require.NoError(t, err)
	return signed
}

func get(router *gin.Engine, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareBearerHeader(t *testing.T) {
	issuer, users, router := newMiddlewareFixture(t)

	user := &models.User{ID: "user-1", Email: "a@example.com", Role: models.RoleUser}
	users.byID[user.ID] = user
	signed := signFor(t, issuer, user)

	w := get(router, "/protected", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+signed)
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "user-1")
}

func TestAuthMiddlewareCookie(t *testing.T) {
	issuer, users, router := newMiddlewareFixture(t)

	user := &models.User{ID: "user-1", Role: models.RoleUser}
	users.byID[user.ID] = user
	signed := signFor(t, issuer, user)

	w := get(router, "/protected", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: testCookie, Value: signed})
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddlewareNonBearerHeaderFallsBackToCookie(t *testing.T) {
	issuer, users, router := newMiddlewareFixture(t)

	user := &models.User{ID: "user-1", Role: models.RoleUser}
	users.byID[user.ID] = user
	signed := signFor(t, issuer, user)

	w := get(router, "/protected", func(r *http.Request) {
		r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		r.AddCookie(&http.Cookie{Name: testCookie, Value: signed})
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "user-1")
}

func TestAuthMiddlewareRejections(t *testing.T) {
	issuer, users, router := newMiddlewareFixture(t)

	disabled := &models.User{ID: "user-2", Role: models.RoleUser, Disabled: true}
	users.byID[disabled.ID] = disabled

	gone := &models.User{ID: "user-3", Role: models.RoleUser}

	cases := []struct {
		name   string
		mutate func(*http.Request)
		status int
	}{
		{"no token", nil, http.StatusUnauthorized},
		{"garbage token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer not-a-jwt")
		}, http.StatusUnauthorized},
		{"malformed header", func(r *http.Request) {
			r.Header.Set("Authorization", "Token abc")
		}, http.StatusUnauthorized},
		{"deleted user", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signFor(t, issuer, gone))
		}, http.StatusUnauthorized},
		{"disabled user", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signFor(t, issuer, disabled))
		}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := get(router, "/protected", tc.mutate)
			require.Equal(t, tc.status, w.Code)
		})
	}
}

func TestAuthMiddlewareRejectsErroredSession(t *testing.T) {
	issuer, users, router := newMiddlewareFixture(t)

	user := &models.User{ID: "user-1", Role: models.RoleUser}
	users.byID[user.ID] = user

	// A session whose upstream refresh failed carries the error flag and is
	// unauthenticated for protected routes.
	_, claims, err := issuer.Issue(user, "device", time.Now().Add(-time.Minute), 0)
	require.NoError(t, err)
	signed, _, err := issuer.Ensure(t.Context(), claims, "")
	require.NoError(t, err)

	w := get(router, "/protected", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+signed)
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	issuer, users, router := newMiddlewareFixture(t)

	admin := &models.User{ID: "admin-1", Role: models.RoleAdmin}
	regular := &models.User{ID: "user-1", Role: models.RoleUser}
	users.byID[admin.ID] = admin
	users.byID[regular.ID] = regular

	w := get(router, "/admin", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+signFor(t, issuer, admin))
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = get(router, "/admin", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+signFor(t, issuer, regular))
	})
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestOptionalAuth(t *testing.T) {
	issuer, users, router := newMiddlewareFixture(t)

	officer := &models.User{ID: "officer-1", Role: models.RoleNodeOfficer}
	users.byID[officer.ID] = officer

	w := get(router, "/catalog", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"role": ""}`, w.Body.String())

	w = get(router, "/catalog", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+signFor(t, issuer, officer))
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"role": "NODE_OFFICER"}`, w.Body.String())

	// A bad token degrades to anonymous instead of rejecting.
	w = get(router, "/catalog", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer garbage")
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"role": ""}`, w.Body.String())
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(SecurityHeaders(false))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := get(router, "/", nil)
	require.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	require.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'self'")
	require.Empty(t, w.Header().Get("Strict-Transport-Security"))

	prod := gin.New()
	prod.Use(SecurityHeaders(true))
	prod.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w = get(prod, "/", nil)
	require.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=")
}
