package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/crayonmonsters/server/api/rest"
	"github.com/kasuganosora/crayonmonsters/server/game/match"
	"github.com/kasuganosora/crayonmonsters/server/game/player"
	"github.com/kasuganosora/crayonmonsters/server/scheduler"
	"github.com/kasuganosora/crayonmonsters/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nopLogger() *zap.Logger { return zap.NewNop() }

type adminRig struct {
	router  *gin.Engine
	sm      *player.SessionManager
	matches *match.Manager
	sched   *scheduler.Scheduler
}

func newAdminRouter(t *testing.T, adminKey string) *adminRig {
	t.Helper()
	c, _ := testutil.SetupTestCache(t)
	sm := player.NewSessionManager(nopLogger())
	mgr := match.NewManager(c, nil, nil, match.Config{}, nopLogger())
	sched := scheduler.New(nopLogger())
	t.Cleanup(sched.Stop)
	h := rest.NewAdminHandler(sm, mgr, sched, nopLogger())

	r := gin.New()
	r.Use(rest.AdminAuth(adminKey))
	r.GET("/api/admin/metrics", h.Metrics)
	r.GET("/api/admin/players", h.ListPlayers)
	r.POST("/api/admin/kick/:id", h.KickPlayer)
	r.GET("/api/admin/scheduler", h.ListSchedulerTasks)
	r.POST("/api/admin/scheduler/:name/run", h.RunSchedulerTask)

	return &adminRig{router: r, sm: sm, matches: mgr, sched: sched}
}

func adminGet(r *gin.Engine, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set("X-Admin-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func adminPost(r *gin.Engine, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-Admin-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func connectedSession(playerID string) *player.Session {
	return &player.Session{
		PlayerID: playerID,
		SendChan: make(chan []byte, 8),
		Done:     make(chan struct{}),
	}
}

// ---- AdminAuth ----

func TestAdminAuth_NoKey_Disabled(t *testing.T) {
	// An empty admin key must disable admin endpoints entirely.
	rig := newAdminRouter(t, "")
	w := adminGet(rig.router, "/api/admin/metrics", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminAuth_WrongKey(t *testing.T) {
	rig := newAdminRouter(t, "secret")
	w := adminGet(rig.router, "/api/admin/metrics", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth_MissingKey(t *testing.T) {
	rig := newAdminRouter(t, "secret")
	w := adminGet(rig.router, "/api/admin/metrics", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth_CorrectKey(t *testing.T) {
	rig := newAdminRouter(t, "secret")
	w := adminGet(rig.router, "/api/admin/metrics", "secret")
	assert.Equal(t, http.StatusOK, w.Code)
}

// ---- Metrics ----

func TestMetrics_Structure(t *testing.T) {
	rig := newAdminRouter(t, "test-key")
	_, err := rig.matches.Create(context.Background(), "alice", "bob")
	require.NoError(t, err)
	rig.sm.Register(connectedSession("alice"))

	w := adminGet(rig.router, "/api/admin/metrics", "test-key")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["online_players"])
	assert.Equal(t, float64(1), resp["matches"])
	assert.Contains(t, resp, "scheduler_tasks")
}

// ---- ListPlayers ----

func TestListPlayers_Empty(t *testing.T) {
	rig := newAdminRouter(t, "test-key")
	w := adminGet(rig.router, "/api/admin/players", "test-key")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(0), resp["count"])
}

func TestListPlayers_Connected(t *testing.T) {
	rig := newAdminRouter(t, "test-key")
	s := connectedSession("alice")
	s.Watch("m-1", func() {})
	rig.sm.Register(s)

	w := adminGet(rig.router, "/api/admin/players", "test-key")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Players []player.Info `json:"players"`
		Count   int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "alice", resp.Players[0].PlayerID)
	assert.Equal(t, "m-1", resp.Players[0].MatchID)
}

// ---- KickPlayer ----

func TestKickPlayer_NotFound(t *testing.T) {
	rig := newAdminRouter(t, "test-key")
	w := adminPost(rig.router, "/api/admin/kick/nobody", "test-key", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestKickPlayer_Success(t *testing.T) {
	rig := newAdminRouter(t, "test-key")
	s := connectedSession("alice")
	rig.sm.Register(s)

	w := adminPost(rig.router, "/api/admin/kick/alice", "test-key", `{"reason":"cheating"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, s.IsClosed())

	var pkt player.Packet
	require.NoError(t, json.Unmarshal(<-s.SendChan, &pkt))
	assert.Equal(t, "kicked", pkt.Type)
	assert.JSONEq(t, `{"reason":"cheating"}`, string(pkt.Payload))
}

// ---- Scheduler ----

func TestListSchedulerTasks(t *testing.T) {
	rig := newAdminRouter(t, "test-key")
	rig.sched.AddTicker("match_reaper", time.Hour, func(context.Context) {})

	w := adminGet(rig.router, "/api/admin/scheduler", "test-key")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tasks []scheduler.TaskInfo `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, "match_reaper", resp.Tasks[0].Name)
	assert.Equal(t, time.Hour, resp.Tasks[0].Interval)
}

func TestRunSchedulerTask(t *testing.T) {
	rig := newAdminRouter(t, "test-key")
	var runs int32
	rig.sched.AddTicker("match_reaper", time.Hour, func(context.Context) { atomic.AddInt32(&runs, 1) })

	w := adminPost(rig.router, "/api/admin/scheduler/match_reaper/run", "test-key", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))

	w = adminPost(rig.router, "/api/admin/scheduler/nope/run", "test-key", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
