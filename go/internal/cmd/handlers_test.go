package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine is an in-memory game engine speaking the REST contracts.
type fakeEngine struct {
	mu          sync.Mutex
	gameFetches int
	triggers    int
	chatBodies  []map[string]any
	chatStatus  int
	chatReply   string
	csrfHeaders []string
}

func (e *fakeEngine) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/games/{gid}/{$}", func(w http.ResponseWriter, r *http.Request) {
		e.mu.Lock()
		e.gameFetches++
		e.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"id": 1, "current_season": 6})
	})
	mux.HandleFunc("GET /api/games/{gid}/negotiations/active/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"active": true,
			"session": map[string]any{
				"id": 11, "event_type": "ANNEXATION", "agent_name": "张员外",
				"current_round": 2, "max_rounds": 8, "status": "active",
			},
		})
	})
	mux.HandleFunc("GET /api/games/{gid}/negotiations/{sid}/chat/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"messages": []map[string]any{{"role": "agent", "content": "大人有何吩咐"}},
			"session":  map[string]any{"id": 11, "current_round": 2, "max_rounds": 8, "status": "active"},
		})
	})
	mux.HandleFunc("POST /api/games/{gid}/negotiations/{sid}/chat/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)

		e.mu.Lock()
		e.chatBodies = append(e.chatBodies, body)
		e.csrfHeaders = append(e.csrfHeaders, r.Header.Get("X-CSRFToken"))
		status, reply := e.chatStatus, e.chatReply
		e.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]any{"error": reply})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"dialogue": reply, "round": 3, "max_rounds": 8, "agent_name": "张员外",
			"status": "resolved", "final_decision": "stop_annexation",
		})
	})
	mux.HandleFunc("POST /api/games/{gid}/advance/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"season": 7, "game_over": false, "events": []string{"秋收"}})
	})
	mux.HandleFunc("POST /api/games/{gid}/neighbors/precompute/", func(w http.ResponseWriter, r *http.Request) {
		e.mu.Lock()
		e.triggers++
		e.mu.Unlock()
		writeJSON(w, http.StatusAccepted, map[string]any{"status": "computing"})
	})
	mux.HandleFunc("GET /api/games/{gid}/neighbors/precompute/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "computing", "completed": []any{}})
	})

	return mux
}

func (e *fakeEngine) counts() (gameFetches, triggers int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gameFetches, e.triggers
}

func newTestAPI(t *testing.T) (*fakeEngine, *httptest.Server, *Services) {
	t.Helper()
	engine := &fakeEngine{chatReply: "也罢，依大人所言"}
	engineSrv := httptest.NewServer(engine.handler())
	t.Cleanup(engineSrv.Close)

	config := defaultConfig()
	config.GameAPIBaseURL = engineSrv.URL + "/api"
	config.CSRFToken = "csrf-abc"
	config.PrecomputePollInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	services, err := setupServices(ctx, config)
	require.NoError(t, err)

	srv := httptest.NewServer(newHandler(services))
	t.Cleanup(func() {
		srv.Close()
		services.Precompute.Stop()
		cancel()
	})
	return engine, srv, services
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestNegotiationFlow(t *testing.T) {
	engine, srv, services := newTestAPI(t)

	resp := post(t, srv.URL+"/api/games/1/negotiation/open", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	opened := decodeBody(t, resp)
	assert.Equal(t, "2/8", opened["round_display"])
	assert.Equal(t, "active", opened["state"])

	resp = post(t, srv.URL+"/api/games/1/negotiation/send", map[string]any{"content": "请停止兼并", "speaker_role": "PLAYER"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sent := decodeBody(t, resp)
	assert.Equal(t, "stop_annexation", sent["final_decision"])
	assert.Equal(t, "resolved", sent["state"])
	assert.Equal(t, "3/8", sent["round_display"])

	fetches, _ := engine.counts()
	assert.Equal(t, 1, fetches)
	assert.Equal(t, 6, services.State.CurrentGame().CurrentSeason)
	assert.Equal(t, []string{"csrf-abc"}, engine.csrfHeaders)

	resp = post(t, srv.URL+"/api/games/1/negotiation/send", map[string]any{"content": "再议"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = post(t, srv.URL+"/api/games/1/negotiation/close", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	fetches, _ = engine.counts()
	assert.Equal(t, 2, fetches)
}

func TestSendValidationError(t *testing.T) {
	engine, srv, _ := newTestAPI(t)
	require.Equal(t, http.StatusOK, post(t, srv.URL+"/api/games/1/negotiation/open", nil).StatusCode)

	resp := post(t, srv.URL+"/api/games/1/negotiation/send", map[string]any{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, engine.chatBodies)
}

func TestEngineErrorIsRelayed(t *testing.T) {
	engine, srv, services := newTestAPI(t)
	engine.chatStatus = http.StatusBadRequest
	engine.chatReply = "谈判已结束"
	require.Equal(t, http.StatusOK, post(t, srv.URL+"/api/games/1/negotiation/open", nil).StatusCode)

	resp := post(t, srv.URL+"/api/games/1/negotiation/send", map[string]any{"content": "请停止兼并"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "谈判已结束", decodeBody(t, resp)["error"])
	assert.Equal(t, "2/8", services.Negotiations.RoundDisplay())
}

func TestDelegatedSendBody(t *testing.T) {
	engine, srv, _ := newTestAPI(t)
	require.Equal(t, http.StatusOK, post(t, srv.URL+"/api/games/1/negotiation/open", nil).StatusCode)

	resp := post(t, srv.URL+"/api/games/1/negotiation/send", map[string]any{"speaker_role": "DEPUTY"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, engine.chatBodies, 1)
	assert.Equal(t, "DEPUTY", engine.chatBodies[0]["speaker_role"])
	assert.NotEmpty(t, engine.chatBodies[0]["message"])
}

func TestAdvanceTriggersPrecompute(t *testing.T) {
	engine, srv, services := newTestAPI(t)

	resp := post(t, srv.URL+"/api/games/1/advance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decodeBody(t, resp)
	assert.Equal(t, float64(7), report["season"])
	assert.Contains(t, report, "events")

	fetches, triggers := engine.counts()
	assert.Equal(t, 1, fetches)
	assert.Equal(t, 1, triggers)
	assert.True(t, services.Precompute.Running())
	assert.NotNil(t, services.State.ActiveNegotiation())
}

func TestSyncIsOncePerActionID(t *testing.T) {
	engine, srv, _ := newTestAPI(t)

	body := map[string]any{"action": "tax_change", "action_id": "tax-42"}
	require.Equal(t, http.StatusOK, post(t, srv.URL+"/api/games/1/sync", body).StatusCode)
	require.Equal(t, http.StatusOK, post(t, srv.URL+"/api/games/1/sync", body).StatusCode)

	fetches, _ := engine.counts()
	assert.Equal(t, 1, fetches)

	resp := post(t, srv.URL+"/api/games/1/sync", map[string]any{"action": "turn_advance"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	_, srv, _ := newTestAPI(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
