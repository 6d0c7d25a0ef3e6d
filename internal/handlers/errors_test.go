package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"equipment_service/internal/models"
	"equipment_service/internal/service"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&service.ValidationError{Field: "code", Reason: "is required"}, http.StatusBadRequest},
		{&service.InsufficientStockError{PartID: "p", Requested: 5, OnHand: 1}, http.StatusBadRequest},
		{&service.NotFoundError{Entity: models.EntityEquipment, ID: "x"}, http.StatusNotFound},
		{&service.ConflictError{Reason: "dup"}, http.StatusConflict},
		{&service.InvalidStateError{Entity: models.EntityTicket, ID: "t", State: "CLOSED", Op: "resolve"}, http.StatusConflict},
		{&service.NoAgentAvailableError{Category: "it"}, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", &service.NotFoundError{Entity: models.EntityTicket, ID: "t"}), http.StatusNotFound},
		{&service.InfrastructureError{Op: "x", Err: errors.New("boom")}, http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
