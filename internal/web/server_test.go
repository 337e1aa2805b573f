package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perflens/perflens/internal/report"
	"github.com/perflens/perflens/internal/store"
)

func newTestAPI(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()

	st, err := store.NewStore(t.TempDir())
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer(st, 0).router())
	t.Cleanup(srv.Close)
	return srv, st
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestAPI(t)

	var body map[string]string
	resp := getJSON(t, srv.URL+"/api/health", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestSessionsEmpty(t *testing.T) {
	srv, _ := newTestAPI(t)

	var infos []store.SessionInfo
	resp := getJSON(t, srv.URL+"/api/sessions", &infos)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, infos)
}

func TestSessionRoundTrip(t *testing.T) {
	srv, st := newTestAPI(t)

	id, err := st.Save(&report.Report{PageURL: "https://example.com", Complete: true})
	require.NoError(t, err)

	var infos []store.SessionInfo
	getJSON(t, srv.URL+"/api/sessions", &infos)
	require.Len(t, infos, 1)
	assert.Equal(t, id, infos[0].ID)

	var rep report.Report
	resp := getJSON(t, srv.URL+"/api/sessions/"+id, &rep)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://example.com", rep.PageURL)

	resp, err = http.Get(srv.URL + "/api/sessions/" + id + "/markdown")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/markdown")
}

func TestSessionNotFound(t *testing.T) {
	srv, _ := newTestAPI(t)

	resp := getJSON(t, srv.URL+"/api/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
