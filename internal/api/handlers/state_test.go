package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Golani45/uthgard/internal/api/handlers"
	"github.com/Golani45/uthgard/internal/engine"
)

type mockStateReporter struct {
	report *engine.StateReport
	err    error
}

func (m *mockStateReporter) StateReport(_ context.Context) (*engine.StateReport, error) {
	return m.report, m.err
}

func TestState_Success(t *testing.T) {
	t.Parallel()

	report := &engine.StateReport{
		SnapshotHash:   "abc123",
		SnapshotKeeps:  24,
		StrictDelivery: true,
		Baselines:      map[string]string{"own:caer-benowyc": "Midgard"},
		Cooldowns:      map[string]string{},
		Penalties:      map[string]string{},
		Metrics:        map[string]string{},
		PlayerBaselines: map[string]string{
			"rp:saz": "10000",
		},
	}

	_, api := humatest.New(t)
	handlers.RegisterStateRoutes(api, handlers.NewStateHandler(&mockStateReporter{report: report}))

	resp := api.Get("/api/v1/state")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "abc123")
	assert.Contains(t, resp.Body.String(), "own:caer-benowyc")
	assert.Contains(t, resp.Body.String(), `"strict_delivery":true`)
}

func TestState_Error(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	handlers.RegisterStateRoutes(api,
		handlers.NewStateHandler(&mockStateReporter{err: errors.New("kv down")}))

	resp := api.Get("/api/v1/state")
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}
