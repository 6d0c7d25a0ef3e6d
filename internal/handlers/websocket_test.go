package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"equipment_service/internal/models"
	"equipment_service/internal/notify"
	"equipment_service/internal/service"

	"github.com/gorilla/websocket"
)

type envelope struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func alertsURL(t *testing.T, srv *httptest.Server, token string) string {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	u.Scheme = "ws"
	u.Path = "/ws/alerts"
	if token != "" {
		q := u.Query()
		q.Set("access_token", token)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func TestWebSocket_AlertStream(t *testing.T) {
	hub := notify.NewHub(4)
	auth := &mockAuth{parseID: 3, allowAll: true}
	srv := httptest.NewServer(newTestRouter(&service.Service{Authorization: auth}, WithAlertHub(hub)))
	defer srv.Close()

	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial(alertsURL(t, srv, "tok"), nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if env.Type != "subscribed" {
		t.Fatalf("expected subscribed, got %+v", env)
	}
	if auth.lastParseToken != "tok" {
		t.Fatalf("token from query not used, got %q", auth.lastParseToken)
	}

	_ = hub.Notify(context.Background(), notify.Notification{
		Type:     notify.TypeEmergencyProtocol,
		Entity:   models.EntityContingency,
		EntityID: "c-1",
		Message:  "critical failure",
	})

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	env = envelope{}
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read alert: %v", err)
	}
	if env.Type != notify.TypeEmergencyProtocol {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	var n notify.Notification
	if err := json.Unmarshal(env.Data, &n); err != nil {
		t.Fatalf("unmarshal alert: %v", err)
	}
	if n.EntityID != "c-1" || n.Entity != models.EntityContingency {
		t.Fatalf("unexpected alert: %+v", n)
	}
}

func TestWebSocket_ReleasesSubscriptionOnClose(t *testing.T) {
	hub := notify.NewHub(4)
	srv := httptest.NewServer(newTestRouter(&service.Service{Authorization: &mockAuth{allowAll: true}}, WithAlertHub(hub)))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(alertsURL(t, srv, "tok"), nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if hub.Subscribers() != 1 {
		t.Fatalf("subscribers=%d, want 1", hub.Subscribers())
	}
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription not released after client closed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocket_HandshakeRejections(t *testing.T) {
	cases := []struct {
		name  string
		hub   *notify.Hub
		auth  *mockAuth
		token string
		want  int
	}{
		{"no hub", nil, &mockAuth{allowAll: true}, "tok", http.StatusServiceUnavailable},
		{"no token", notify.NewHub(1), &mockAuth{allowAll: true}, "", http.StatusUnauthorized},
		{"bad token", notify.NewHub(1), &mockAuth{parseErr: errors.New("expired")}, "tok", http.StatusUnauthorized},
		{"not allowed", notify.NewHub(1), &mockAuth{}, "tok", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var opts []Option
			if tc.hub != nil {
				opts = append(opts, WithAlertHub(tc.hub))
			}
			srv := httptest.NewServer(newTestRouter(&service.Service{Authorization: tc.auth}, opts...))
			defer srv.Close()

			_, resp, err := websocket.DefaultDialer.Dial(alertsURL(t, srv, tc.token), nil)
			if err == nil {
				t.Fatal("expected handshake failure")
			}
			if resp == nil || resp.StatusCode != tc.want {
				t.Fatalf("status=%v, want %d", resp, tc.want)
			}
		})
	}
}
