package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domain "github.com/Golani45/uthgard/pkg/types"
)

// Simulator drives the production detectors with synthetic input.
type Simulator interface {
	SimulateUnderAttack(ctx context.Context, keepName string, realm domain.Realm) int
	SimulateCaptureEvent(ctx context.Context, keepName string, newOwner domain.Realm, leader string) int
	SimulateOwnershipFlip(ctx context.Context, keepName string, prev, next domain.Realm) int
	SimulatePlayerPing(ctx context.Context, playerID string, delta int64) bool
}

// SimulateHandler handles alert-path simulations.
type SimulateHandler struct {
	sim Simulator
}

// NewSimulateHandler creates a new SimulateHandler.
func NewSimulateHandler(s Simulator) *SimulateHandler {
	return &SimulateHandler{sim: s}
}

// SimulateInput selects the alert path to exercise.
type SimulateInput struct {
	Mode   string `query:"mode" enum:"ua,capture,flip,player" doc:"Alert path to simulate"`
	Keep   string `query:"keep"   required:"false" doc:"Keep name (ua, capture, flip)"`
	Realm  string `query:"realm"  required:"false" doc:"Realm (ua, capture, flip)"`
	Prev   string `query:"prev"   required:"false" doc:"Previous owner (flip)"`
	Leader string `query:"leader" required:"false" doc:"Capture leader (capture)"`
	Player string `query:"player" required:"false" doc:"Player id (player)"`
	Delta  int64  `query:"delta"  required:"false" doc:"Realm point delta (player)"`
}

// SimulateOutput reports how many alerts the simulated path produced.
type SimulateOutput struct {
	Body struct {
		OK   bool   `json:"ok"`
		Mode string `json:"mode"`
		Sent int    `json:"sent"`
	}
}

// Simulate synthesizes a snapshot and runs the selected detector.
func (h *SimulateHandler) Simulate(ctx context.Context, in *SimulateInput) (*SimulateOutput, error) {
	resp := &SimulateOutput{}
	resp.Body.Mode = in.Mode

	realm, realmOK := domain.ParseRealm(in.Realm)

	switch in.Mode {
	case "ua", "capture":
		if in.Keep == "" || !realmOK {
			return nil, huma.Error400BadRequest(in.Mode + " requires keep and realm parameters")
		}
		if in.Mode == "ua" {
			resp.Body.Sent = h.sim.SimulateUnderAttack(ctx, in.Keep, realm)
		} else {
			resp.Body.Sent = h.sim.SimulateCaptureEvent(ctx, in.Keep, realm, in.Leader)
		}

	case "flip":
		prev, prevOK := domain.ParseRealm(in.Prev)
		if in.Keep == "" || !realmOK || !prevOK {
			return nil, huma.Error400BadRequest("flip requires keep, realm, and prev parameters")
		}
		resp.Body.Sent = h.sim.SimulateOwnershipFlip(ctx, in.Keep, prev, realm)

	case "player":
		if in.Player == "" {
			return nil, huma.Error400BadRequest("player mode requires the player parameter")
		}
		delta := in.Delta
		if delta <= 0 {
			delta = 100
		}
		if h.sim.SimulatePlayerPing(ctx, in.Player, delta) {
			resp.Body.Sent = 1
		}

	default:
		return nil, huma.Error400BadRequest(fmt.Sprintf("unknown mode %q", in.Mode))
	}

	resp.Body.OK = true
	return resp, nil
}

// RegisterSimulateRoutes registers the simulate endpoint with the Huma API.
func RegisterSimulateRoutes(api huma.API, h *SimulateHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "simulate-alert",
		Method:      http.MethodPost,
		Path:        "/api/v1/simulate",
		Summary:     "Simulate an alert path through the production detectors",
		Tags:        []string{"admin"},
		Errors:      []int{http.StatusBadRequest},
	}, h.Simulate)
}
