package rest_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/crayonmonsters/server/api/rest"
	"github.com/kasuganosora/crayonmonsters/server/config"
	mw "github.com/kasuganosora/crayonmonsters/server/middleware"
	"github.com/kasuganosora/crayonmonsters/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testSec = config.SecurityConfig{
	JWTSecret: "test-secret",
	JWTTTLH:   72 * time.Hour,
}

func newTokenRouter(t *testing.T) *gin.Engine {
	t.Helper()
	c, _ := testutil.SetupTestCache(t)
	h := rest.NewTokenHandler(c, testSec, nopLogger())
	r := gin.New()
	r.POST("/api/tokens", h.Issue)
	r.DELETE("/api/tokens", h.Revoke)
	r.GET("/me", mw.Auth(testSec, c), func(c *gin.Context) {
		c.String(http.StatusOK, mw.GetPlayerID(c))
	})
	return r
}

func sendJSON(r *gin.Engine, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func issue(t *testing.T, r *gin.Engine, playerID string) string {
	t.Helper()
	w := sendJSON(r, http.MethodPost, "/api/tokens", map[string]string{"player_id": playerID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, playerID, resp["player_id"])
	_, err := time.Parse(time.RFC3339, resp["expires_at"])
	require.NoError(t, err)
	require.NotEmpty(t, resp["token"])
	return resp["token"]
}

func TestIssueToken(t *testing.T) {
	r := newTokenRouter(t)
	tok := issue(t, r, "alice")

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", w.Body.String())
}

func TestIssueToken_MissingPlayer(t *testing.T) {
	r := newTokenRouter(t)
	w := sendJSON(r, http.MethodPost, "/api/tokens", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRevokeToken(t *testing.T) {
	r := newTokenRouter(t)
	tok := issue(t, r, "alice")

	w := sendJSON(r, http.MethodDelete, "/api/tokens", map[string]string{"token": tok})
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRevokeToken_Invalid(t *testing.T) {
	r := newTokenRouter(t)
	w := sendJSON(r, http.MethodDelete, "/api/tokens", map[string]string{"token": "garbage"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = sendJSON(r, http.MethodDelete, "/api/tokens", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
