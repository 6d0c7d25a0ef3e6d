package service

import (
	"context"
	"strings"
	"time"

	"equipment_service/internal/models"
	"equipment_service/internal/repository"
)

// ActivityFilter supports history filtering by time range, type and entity.
type ActivityFilter struct {
	From     time.Time // inclusive; zero means no lower bound
	To       time.Time // inclusive; zero means no upper bound
	Type     string    // "", "SCHEDULED", "COMPLETED", "ESCALATED", "STOCK_IN" ...
	Entity   string
	EntityID string
}

type ActivityService struct {
	repo repository.ActivityRepo
}

func NewActivityService(repo repository.ActivityRepo) *ActivityService {
	return &ActivityService{repo: repo}
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeToken trims spaces and uppercases a type or entity filter.
func normalizeToken(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f ActivityFilter) (repository.ActivityFilter, error) {
	out := repository.ActivityFilter{
		From:     normalizeToUTC(f.From),
		To:       normalizeToUTC(f.To),
		Type:     normalizeToken(f.Type),
		Entity:   models.EntityKind(normalizeToken(f.Entity)),
		EntityID: strings.TrimSpace(f.EntityID),
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.From.After(out.To) {
		return repository.ActivityFilter{}, &ValidationError{Field: "from", Reason: "must be <= to"}
	}
	if out.Entity != "" && !out.Entity.Valid() {
		return repository.ActivityFilter{}, &ValidationError{Field: "entity", Reason: "unknown entity " + string(out.Entity)}
	}
	return out, nil
}

func (s *ActivityService) List(ctx context.Context, f ActivityFilter) ([]models.Activity, error) {
	q, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	out, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, storeErr("list activity", err)
	}
	return out, nil
}
