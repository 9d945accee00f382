package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Ticker triggers one pipeline run.
type Ticker interface {
	RunTick(ctx context.Context) error
}

// PlayerScanner triggers one tracked-player scan.
type PlayerScanner interface {
	RunPlayerScan(ctx context.Context) error
}

// TriggerHandler handles manual tick and player-scan requests.
type TriggerHandler struct {
	ticker  Ticker
	scanner PlayerScanner
}

// NewTriggerHandler creates a new TriggerHandler.
func NewTriggerHandler(t Ticker, s PlayerScanner) *TriggerHandler {
	return &TriggerHandler{ticker: t, scanner: s}
}

// TickOutput is the response body for the tick endpoint.
type TickOutput struct {
	Body struct {
		Status string `json:"status" example:"tick completed" doc:"Tick status"`
	}
}

// Tick runs the full pipeline once. Upstream failures map to 502: the tick
// could not observe the world, which is the scheduler's retry case.
func (h *TriggerHandler) Tick(ctx context.Context, _ *struct{}) (*TickOutput, error) {
	if err := h.ticker.RunTick(ctx); err != nil {
		return nil, huma.Error502BadGateway("tick failed: " + err.Error())
	}

	resp := &TickOutput{}
	resp.Body.Status = "tick completed"
	return resp, nil
}

// ScanOutput is the response body for the player-scan endpoint.
type ScanOutput struct {
	Body struct {
		Status string `json:"status" example:"player scan completed" doc:"Scan status"`
	}
}

// Scan runs the tracked-player scan once.
func (h *TriggerHandler) Scan(ctx context.Context, _ *struct{}) (*ScanOutput, error) {
	if err := h.scanner.RunPlayerScan(ctx); err != nil {
		return nil, huma.Error500InternalServerError("player scan failed: " + err.Error())
	}

	resp := &ScanOutput{}
	resp.Body.Status = "player scan completed"
	return resp, nil
}

// RegisterTriggerRoutes registers trigger endpoints with the Huma API.
func RegisterTriggerRoutes(api huma.API, h *TriggerHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "trigger-tick",
		Method:      http.MethodPost,
		Path:        "/api/v1/tick",
		Summary:     "Trigger a pipeline tick",
		Description: "Runs the full pipeline: fetch the warmap, parse, diff, " +
			"deliver alerts, persist the snapshot.",
		Tags:   []string{"pipeline"},
		Errors: []int{http.StatusBadGateway},
	}, h.Tick)

	huma.Register(api, huma.Operation{
		OperationID: "trigger-player-scan",
		Method:      http.MethodPost,
		Path:        "/api/v1/players/scan",
		Summary:     "Trigger a tracked-player scan",
		Tags:        []string{"players"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.Scan)
}
