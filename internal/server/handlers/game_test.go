package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/minesync/pkg/api"
)

func TestGameHandler_GameData(t *testing.T) {
	handler := NewGameHandler(setupTestLogger(), setupTestStorage(t))

	w := httptest.NewRecorder()
	handler.GetGameData(w, newRequest(t, http.MethodGet, "/api/v1/game-data", "player_1", "", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	body := api.GameData{GameData: json.RawMessage(`{"balance":12,"last_update":5000}`), LastUpdated: 5000}
	w = httptest.NewRecorder()
	handler.PutGameData(w, newRequest(t, http.MethodPut, "/api/v1/game-data", "player_1", "", body))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	handler.GetGameData(w, newRequest(t, http.MethodGet, "/api/v1/game-data", "player_1", "", nil))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[api.GameData](t, w)
	assert.JSONEq(t, `{"balance":12,"last_update":5000}`, string(resp.GameData))
	assert.Equal(t, int64(5000), resp.LastUpdated)
}

func TestGameHandler_PutGameData_RejectsNonSnapshot(t *testing.T) {
	handler := NewGameHandler(setupTestLogger(), setupTestStorage(t))

	for _, raw := range []string{`[1,2]`, `"text"`} {
		w := httptest.NewRecorder()
		handler.PutGameData(w, newRequest(t, http.MethodPut, "/api/v1/game-data", "player_1", "",
			api.GameData{GameData: json.RawMessage(raw)}))
		assert.Equal(t, http.StatusBadRequest, w.Code, raw)
	}
}

func TestGameHandler_Synergy(t *testing.T) {
	handler := NewGameHandler(setupTestLogger(), setupTestStorage(t))

	w := httptest.NewRecorder()
	handler.PutSynergy(w, newRequest(t, http.MethodPut, "/api/v1/synergy", "player_1", "op-1",
		api.SynergyRequest{Synergy: map[string]float64{"drill": -1}}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	handler.PutSynergy(w, newRequest(t, http.MethodPut, "/api/v1/synergy", "player_1", "op-2",
		api.SynergyRequest{Synergy: map[string]float64{"drill": 1.5}}))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	handler.GetSynergy(w, newRequest(t, http.MethodGet, "/api/v1/synergy", "player_1", "", nil))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[api.SynergyRequest](t, w)
	assert.Equal(t, map[string]float64{"drill": 1.5}, resp.Synergy)
}
