package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// AdminEngine exposes the state-mutating operations behind the admin
// endpoint. Implementations share the exact code paths the pipeline uses.
type AdminEngine interface {
	SetStrictDelivery(ctx context.Context, on bool) error
	ClearCooldowns(ctx context.Context) (int, error)
	ClearMetrics(ctx context.Context) (int, error)
	ResetUA(ctx context.Context, keepID string) error
	ResetAllUA(ctx context.Context) (int, error)
	ClearCapture(ctx context.Context, keepID, realm, prev string) error
}

// AdminHandler handles state-mutating admin actions.
type AdminHandler struct {
	engine AdminEngine
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(e AdminEngine) *AdminHandler {
	return &AdminHandler{engine: e}
}

// AdminInput selects the action and its parameters.
type AdminInput struct {
	Action string `query:"action" enum:"strict-on,strict-off,clear-cooldowns,clear-metrics,reset-all-ua,reset-ua,clear-cap" doc:"Admin action to run"`
	Keep   string `query:"keep"   required:"false" doc:"Keep id (reset-ua, clear-cap)"`
	Realm  string `query:"realm"  required:"false" doc:"New owner realm (clear-cap)"`
	Prev   string `query:"prev"   required:"false" doc:"Previous owner realm (clear-cap)"`
}

// AdminOutput reports the action result.
type AdminOutput struct {
	Body struct {
		OK      bool   `json:"ok"`
		Action  string `json:"action"`
		Cleared int    `json:"cleared,omitempty"`
	}
}

// Admin dispatches one admin action.
func (h *AdminHandler) Admin(ctx context.Context, in *AdminInput) (*AdminOutput, error) {
	resp := &AdminOutput{}
	resp.Body.Action = in.Action

	var err error
	switch in.Action {
	case "strict-on":
		err = h.engine.SetStrictDelivery(ctx, true)
	case "strict-off":
		err = h.engine.SetStrictDelivery(ctx, false)
	case "clear-cooldowns":
		resp.Body.Cleared, err = h.engine.ClearCooldowns(ctx)
	case "clear-metrics":
		resp.Body.Cleared, err = h.engine.ClearMetrics(ctx)
	case "reset-all-ua":
		resp.Body.Cleared, err = h.engine.ResetAllUA(ctx)
	case "reset-ua":
		if in.Keep == "" {
			return nil, huma.Error400BadRequest("reset-ua requires the keep parameter")
		}
		err = h.engine.ResetUA(ctx, in.Keep)
	case "clear-cap":
		if in.Keep == "" || in.Realm == "" {
			return nil, huma.Error400BadRequest("clear-cap requires keep and realm parameters")
		}
		err = h.engine.ClearCapture(ctx, in.Keep, in.Realm, in.Prev)
	default:
		return nil, huma.Error400BadRequest(fmt.Sprintf("unknown action %q", in.Action))
	}
	if err != nil {
		return nil, huma.Error500InternalServerError(in.Action + " failed: " + err.Error())
	}

	resp.Body.OK = true
	return resp, nil
}

// RegisterAdminRoutes registers the admin endpoint with the Huma API.
func RegisterAdminRoutes(api huma.API, h *AdminHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "admin-action",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin",
		Summary:     "Run an admin action against the alerter state",
		Tags:        []string{"admin"},
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, h.Admin)
}
