package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"equipment_service/internal/models"
	"equipment_service/internal/service"
)

type mockActivity struct {
	resp []models.Activity
	err  error
	last service.ActivityFilter
}

func (m *mockActivity) List(_ context.Context, f service.ActivityFilter) ([]models.Activity, error) {
	m.last = f
	return m.resp, m.err
}

func TestLogsHandler_ListAndValidation(t *testing.T) {
	auth := &mockAuth{parseID: 99, allowAll: true}
	now := time.Now().UTC().Truncate(time.Second)
	entries := []models.Activity{
		{ID: "a1", OccurredAt: now, Entity: models.EntityTicket, EntityID: "TK-2025-0001", Type: "CREATED"},
		{ID: "a2", OccurredAt: now.Add(time.Second), Entity: models.EntityTicket, EntityID: "TK-2025-0001", Type: "ESCALATED"},
	}
	logs := &mockActivity{resp: entries}
	s := &service.Service{Authorization: auth, Activity: logs}
	r := newTestRouter(s)

	// Missing/invalid 'from' → 400
	w := do(t, r, http.MethodGet, "/api/v1/logs/?from=notatime", "valid", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid 'from', got %d", w.Code)
	}

	// from after to → 400
	w = do(t, r, http.MethodGet, "/api/v1/logs/?from=2025-02-01&to=2025-01-01", "valid", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d", w.Code)
	}

	q := "/api/v1/logs/?from=" + now.Format(time.RFC3339) + "&to=" + now.Add(2*time.Second).Format(time.RFC3339) +
		"&type=escalated&entity=ticket&entity_id=TK-2025-0001"
	w = do(t, r, http.MethodGet, q, "valid", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logs status=%d, body=%s", w.Code, w.Body.String())
	}
	out := decode[struct {
		Count  int               `json:"count"`
		Events []models.Activity `json:"events"`
	}](t, w)
	if out.Count != 2 || len(out.Events) != 2 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if logs.last.Type != "escalated" || logs.last.Entity != "ticket" || logs.last.EntityID != "TK-2025-0001" {
		t.Fatalf("unexpected filter passed through: %+v", logs.last)
	}
}

func TestLogsHandler_DateOnlyToIsEndOfDay(t *testing.T) {
	logs := &mockActivity{}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{allowAll: true}, Activity: logs})

	w := do(t, r, http.MethodGet, "/api/v1/logs/?to=2025-08-31", "valid", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	want := time.Date(2025, 8, 31, 23, 59, 59, 999999999, time.UTC)
	if !logs.last.To.Equal(want) {
		t.Fatalf("to=%v, want %v", logs.last.To, want)
	}
}

func TestLogsHandler_ServiceErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unknown entity", &service.ValidationError{Field: "entity", Reason: "unknown entity X"}, http.StatusBadRequest},
		{"store failure", &service.InfrastructureError{Op: "list activity", Err: errors.New("boom")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logs := &mockActivity{err: tc.err}
			r := newTestRouter(&service.Service{Authorization: &mockAuth{allowAll: true}, Activity: logs})
			w := do(t, r, http.MethodGet, "/api/v1/logs/?entity=x", "valid", nil)
			if w.Code != tc.want {
				t.Fatalf("status=%d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestParseQueryTime(t *testing.T) {
	for _, s := range []string{"2025-08-27T15:04:05Z", "2025-08-27 15:04:05", "2025-08-27"} {
		if _, err := parseQueryTime(s); err != nil {
			t.Errorf("parseQueryTime(%q): %v", s, err)
		}
	}
	if _, err := parseQueryTime("27/08/2025"); err == nil {
		t.Error("expected error for unsupported layout")
	}
}
