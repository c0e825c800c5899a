package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"authgate/internal/models"
	"authgate/internal/service"
	"authgate/internal/session"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	registerUser *models.User
	registerErr  error
	loginUser    *models.User
	loginErr     error

	lastRegisterUsername string
	lastRegisterPassword string
	lastLoginClientKey   string
	lastLoginUsername    string
	lastLoginPassword    string
}

func (m *mockAuth) Register(_ context.Context, username, password string) (*models.User, error) {
	m.lastRegisterUsername = username
	m.lastRegisterPassword = password
	return m.registerUser, m.registerErr
}

func (m *mockAuth) Login(_ context.Context, clientKey, username, password string) (*models.User, error) {
	m.lastLoginClientKey = clientKey
	m.lastLoginUsername = username
	m.lastLoginPassword = password
	return m.loginUser, m.loginErr
}

// ---- Shared Test Helpers ----

var testSessionOptions = session.Options{
	Name:   "sid",
	Secret: []byte("test-secret-test-secret-test-sec"),
	MaxAge: time.Hour,
}

func newTestRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, session.NewCookieManager(testSessionOptions), nil, Options{})
	return h.InitRoutes()
}

// doJSON sends body (may be empty) with the given cookies.
func doJSON(r http.Handler, method, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	r.ServeHTTP(w, req)
	return w
}
