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
)

type mockPipeline struct {
	tickErr error
	scanErr error
	ticks   int
	scans   int
}

func (m *mockPipeline) RunTick(_ context.Context) error {
	m.ticks++
	return m.tickErr
}

func (m *mockPipeline) RunPlayerScan(_ context.Context) error {
	m.scans++
	return m.scanErr
}

func newTriggerAPI(t *testing.T, m *mockPipeline) humatest.TestAPI {
	t.Helper()
	_, api := humatest.New(t)
	handlers.RegisterTriggerRoutes(api, handlers.NewTriggerHandler(m, m))
	return api
}

func TestTick_Success(t *testing.T) {
	t.Parallel()

	m := &mockPipeline{}
	api := newTriggerAPI(t, m)

	resp := api.Post("/api/v1/tick")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "tick completed")
	assert.Equal(t, 1, m.ticks)
}

func TestTick_UpstreamFailureMapsTo502(t *testing.T) {
	t.Parallel()

	api := newTriggerAPI(t, &mockPipeline{tickErr: errors.New("herald returned status 503")})

	resp := api.Post("/api/v1/tick")
	assert.Equal(t, http.StatusBadGateway, resp.Code)
}

func TestPlayerScan_Success(t *testing.T) {
	t.Parallel()

	m := &mockPipeline{}
	api := newTriggerAPI(t, m)

	resp := api.Post("/api/v1/players/scan")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, m.scans)
}

func TestPlayerScan_Failure(t *testing.T) {
	t.Parallel()

	api := newTriggerAPI(t, &mockPipeline{scanErr: errors.New("boom")})

	resp := api.Post("/api/v1/players/scan")
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}
