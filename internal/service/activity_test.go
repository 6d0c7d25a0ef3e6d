package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"equipment_service/internal/models"
	"equipment_service/internal/repository"
)

// fakeActivityRepo is a minimal stub that satisfies repository.ActivityRepo.
type fakeActivityRepo struct {
	got repository.ActivityFilter

	entries []models.Activity
	err     error

	calls int
}

func (f *fakeActivityRepo) List(_ context.Context, q repository.ActivityFilter) ([]models.Activity, error) {
	f.calls++
	f.got = q
	return f.entries, f.err
}

func (f *fakeActivityRepo) Append(context.Context, models.Activity) error { return nil }

func mustTimeIn(loc *time.Location, y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, loc)
}

func Test_normalizeToUTC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   time.Time
		want func(time.Time) bool
	}{
		{
			name: "zero time remains zero",
			in:   time.Time{},
			want: func(out time.Time) bool { return out.IsZero() },
		},
		{
			name: "non-UTC converted to UTC preserving instant",
			in:   mustTimeIn(time.FixedZone("UTC+3", 3*3600), 2025, time.August, 1, 12, 34, 56),
			want: func(out time.Time) bool {
				exp := time.Date(2025, time.August, 1, 9, 34, 56, 0, time.UTC)
				return out.Location() == time.UTC && out.Equal(exp)
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := normalizeToUTC(tc.in)
			if !tc.want(got) {
				t.Fatalf("unexpected normalizeToUTC result: %v (loc=%v)", got, got.Location())
			}
		})
	}
}

func Test_normalizeToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		exp  string
	}{
		{name: "empty stays empty", in: "", exp: ""},
		{name: "trim spaces", in: "  SCHEDULED ", exp: "SCHEDULED"},
		{name: "uppercase", in: "stock_in", exp: "STOCK_IN"},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			if got := normalizeToken(c.in); got != c.exp {
				t.Fatalf("normalizeToken(%q) = %q; want %q", c.in, got, c.exp)
			}
		})
	}
}

func Test_normalizeAndValidateFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		in        ActivityFilter
		wantField string
	}{
		{name: "empty ok", in: ActivityFilter{}},
		{
			name: "from after to",
			in: ActivityFilter{
				From: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC),
			},
			wantField: "from",
		},
		{name: "unknown entity", in: ActivityFilter{Entity: "boiler"}, wantField: "entity"},
		{name: "known entity lowercase", in: ActivityFilter{Entity: " ticket "}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := normalizeAndValidateFilter(tc.in)
			if tc.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.wantField {
				t.Fatalf("expected ValidationError on %q; got %v", tc.wantField, err)
			}
		})
	}
}

func TestActivityService_List_DelegatesNormalizedParams(t *testing.T) {
	t.Parallel()

	frepo := &fakeActivityRepo{entries: []models.Activity{{ID: "1"}}}
	svc := NewActivityService(frepo)

	out, err := svc.List(context.Background(), ActivityFilter{
		From:     mustTimeIn(time.FixedZone("UTC+5", 5*3600), 2025, time.October, 1, 10, 0, 0),
		To:       mustTimeIn(time.FixedZone("UTC-2", -2*3600), 2025, time.October, 1, 12, 30, 0),
		Type:     "  escalated ",
		Entity:   "contingency",
		EntityID: " c-1 ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].ID != "1" {
		t.Fatalf("unexpected entries: %+v", out)
	}
	if frepo.calls != 1 {
		t.Fatalf("repo List should be called once, got %d", frepo.calls)
	}

	want := repository.ActivityFilter{
		From:     time.Date(2025, time.October, 1, 5, 0, 0, 0, time.UTC),
		To:       time.Date(2025, time.October, 1, 14, 30, 0, 0, time.UTC),
		Type:     "ESCALATED",
		Entity:   models.EntityContingency,
		EntityID: "c-1",
	}
	if !frepo.got.From.Equal(want.From) || !frepo.got.To.Equal(want.To) {
		t.Fatalf("repo got range %v..%v; want %v..%v", frepo.got.From, frepo.got.To, want.From, want.To)
	}
	if frepo.got.Type != want.Type || frepo.got.Entity != want.Entity || frepo.got.EntityID != want.EntityID {
		t.Fatalf("repo got %+v; want %+v", frepo.got, want)
	}
}

func TestActivityService_List_ValidationSkipsRepo(t *testing.T) {
	t.Parallel()

	frepo := &fakeActivityRepo{}
	svc := NewActivityService(frepo)

	_, err := svc.List(context.Background(), ActivityFilter{
		From: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC),
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError; got %v", err)
	}
	if frepo.calls != 0 {
		t.Fatalf("repo should not be called on validation error, calls=%d", frepo.calls)
	}
}

func TestActivityService_List_RepoErrorWrapped(t *testing.T) {
	t.Parallel()

	frepo := &fakeActivityRepo{err: errors.New("db down")}
	svc := NewActivityService(frepo)

	_, err := svc.List(context.Background(), ActivityFilter{})
	var ie *InfrastructureError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InfrastructureError; got %v", err)
	}
	if !errors.Is(err, frepo.err) {
		t.Fatalf("expected repo error to be wrapped; got %v", err)
	}
}
