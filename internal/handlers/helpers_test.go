package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"equipment_service/internal/service"

	"github.com/gin-gonic/gin"
)

// mockAuth implements service.Authorization.
type mockAuth struct {
	signUpID  int
	signUpErr error
	lastInput service.SignUpInput

	genTokenToken string
	genTokenErr   error

	parseID        int
	parseErr       error
	lastParseToken string

	allowed    map[service.Action]bool
	allowAll   bool
	allowedErr error
}

func (m *mockAuth) SignUp(_ context.Context, in service.SignUpInput) (int, error) {
	m.lastInput = in
	return m.signUpID, m.signUpErr
}

func (m *mockAuth) GenerateToken(context.Context, string, string) (string, error) {
	return m.genTokenToken, m.genTokenErr
}

func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

func (m *mockAuth) CallerAllowed(_ context.Context, _ int, action service.Action) (bool, error) {
	if m.allowedErr != nil {
		return false, m.allowedErr
	}
	return m.allowAll || m.allowed[action], nil
}

func newTestRouter(s *service.Service, opts ...Option) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewHandler(s, nil, opts...).InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

// do sends body as JSON (when non-nil) with an optional bearer token.
func do(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		for k, vv := range authHeader(token) {
			for _, v := range vv {
				req.Header.Add(k, v)
			}
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	return decodeBytes[T](t, w.Body.Bytes())
}

func decodeBytes[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal %q: %v", b, err)
	}
	return out
}
