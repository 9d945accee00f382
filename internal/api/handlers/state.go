package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Golani45/uthgard/internal/engine"
)

// StateReporter assembles the operator-facing state dump.
type StateReporter interface {
	StateReport(ctx context.Context) (*engine.StateReport, error)
}

// StateHandler serves the health snapshot.
type StateHandler struct {
	reporter StateReporter
}

// NewStateHandler creates a new StateHandler.
func NewStateHandler(r StateReporter) *StateHandler {
	return &StateHandler{reporter: r}
}

// StateOutput wraps the state report.
type StateOutput struct {
	Body engine.StateReport
}

// State returns cooldowns, penalties, metrics counters, baselines, and the
// stored snapshot's age.
func (h *StateHandler) State(ctx context.Context, _ *struct{}) (*StateOutput, error) {
	report, err := h.reporter.StateReport(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("assembling state failed: " + err.Error())
	}
	return &StateOutput{Body: *report}, nil
}

// RegisterStateRoutes registers the state endpoint with the Huma API.
func RegisterStateRoutes(api huma.API, h *StateHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-state",
		Method:      http.MethodGet,
		Path:        "/api/v1/state",
		Summary:     "Read the alerter state snapshot",
		Tags:        []string{"admin"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.State)
}
