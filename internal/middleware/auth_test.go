package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/leaselink-backend/internal/reqctx"
	"github.com/stretchr/testify/assert"
)

type stubVerifier map[string]string

func (s stubVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	uid, ok := s[idToken]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &auth.Token{UID: uid}, nil
}

func echoUID(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	return c.String(http.StatusOK, uid+"|"+reqctx.UID(c.Request().Context()))
}

func TestRequireAuth(t *testing.T) {
	m := NewAuthMiddlewareWithVerifier(stubVerifier{"good": "user-1"})
	tests := []struct {
		name     string
		target   string
		header   string
		upgrade  bool
		wantCode int
		wantBody string
	}{
		{"bearer", "/", "Bearer good", false, http.StatusOK, "user-1|user-1"},
		{"query token on upgrade", "/?token=good", "", true, http.StatusOK, "user-1|user-1"},
		{"query token without upgrade", "/?token=good", "", false, http.StatusUnauthorized, ""},
		{"missing", "/", "", false, http.StatusUnauthorized, ""},
		{"not bearer", "/", "Basic good", false, http.StatusUnauthorized, ""},
		{"invalid", "/", "Bearer nope", false, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			if tt.upgrade {
				req.Header.Set("Connection", "Upgrade")
				req.Header.Set("Upgrade", "websocket")
			}
			rec := httptest.NewRecorder()
			err := m.RequireAuth(echoUID)(e.NewContext(req, rec))
			assert.NoError(t, err)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	m := NewAuthMiddlewareWithVerifier(stubVerifier{"good": "user-1"})
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	assert.NoError(t, m.OptionalAuth(echoUID)(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "|", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer nope")
	rec = httptest.NewRecorder()
	assert.NoError(t, m.OptionalAuth(echoUID)(e.NewContext(req, rec)))
	assert.Equal(t, "|", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer good")
	rec = httptest.NewRecorder()
	assert.NoError(t, m.OptionalAuth(echoUID)(e.NewContext(req, rec)))
	assert.Equal(t, "user-1|user-1", rec.Body.String())
}

func TestRequestContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Response().Header().Set(echo.HeaderXRequestID, "rid-9")
	err := RequestContext(func(c echo.Context) error {
		return c.String(http.StatusOK, reqctx.RID(c.Request().Context()))
	})(c)
	assert.NoError(t, err)
	assert.Equal(t, "rid-9", rec.Body.String())
}

func TestNewAuthMiddleware_RequiresProject(t *testing.T) {
	_, err := NewAuthMiddleware(context.Background(), "")
	assert.Error(t, err)
}
