package handlers_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Golani45/uthgard/internal/api/handlers"
	domain "github.com/Golani45/uthgard/pkg/types"
)

type mockSimulator struct {
	lastMode string
	lastKeep string
	lastPrev domain.Realm
	lastNext domain.Realm
}

func (m *mockSimulator) SimulateUnderAttack(_ context.Context, keep string, realm domain.Realm) int {
	m.lastMode, m.lastKeep, m.lastNext = "ua", keep, realm
	return 1
}

func (m *mockSimulator) SimulateCaptureEvent(_ context.Context, keep string, realm domain.Realm, _ string) int {
	m.lastMode, m.lastKeep, m.lastNext = "capture", keep, realm
	return 1
}

func (m *mockSimulator) SimulateOwnershipFlip(_ context.Context, keep string, prev, next domain.Realm) int {
	m.lastMode, m.lastKeep, m.lastPrev, m.lastNext = "flip", keep, prev, next
	return 1
}

func (m *mockSimulator) SimulatePlayerPing(_ context.Context, playerID string, _ int64) bool {
	m.lastMode, m.lastKeep = "player", playerID
	return true
}

func newSimulateAPI(t *testing.T, m *mockSimulator) humatest.TestAPI {
	t.Helper()
	_, api := humatest.New(t)
	handlers.RegisterSimulateRoutes(api, handlers.NewSimulateHandler(m))
	return api
}

func TestSimulate_UA(t *testing.T) {
	t.Parallel()

	m := &mockSimulator{}
	api := newSimulateAPI(t, m)

	resp := api.Post("/api/v1/simulate?mode=ua&keep=Caer+Benowyc&realm=alb")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ua", m.lastMode)
	assert.Equal(t, "Caer Benowyc", m.lastKeep)
	assert.Equal(t, domain.RealmAlbion, m.lastNext)
	assert.Contains(t, resp.Body.String(), `"sent":1`)
}

func TestSimulate_Flip(t *testing.T) {
	t.Parallel()

	m := &mockSimulator{}
	api := newSimulateAPI(t, m)

	resp := api.Post("/api/v1/simulate?mode=flip&keep=Caer+Benowyc&realm=mid&prev=alb")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, domain.RealmAlbion, m.lastPrev)
	assert.Equal(t, domain.RealmMidgard, m.lastNext)
}

func TestSimulate_Player(t *testing.T) {
	t.Parallel()

	m := &mockSimulator{}
	api := newSimulateAPI(t, m)

	resp := api.Post("/api/v1/simulate?mode=player&player=saz&delta=450")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "player", m.lastMode)
	assert.Equal(t, "saz", m.lastKeep)
}

func TestSimulate_MissingParams(t *testing.T) {
	t.Parallel()

	api := newSimulateAPI(t, &mockSimulator{})

	resp := api.Post("/api/v1/simulate?mode=ua")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = api.Post("/api/v1/simulate?mode=flip&keep=X&realm=mid")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = api.Post("/api/v1/simulate?mode=player")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
