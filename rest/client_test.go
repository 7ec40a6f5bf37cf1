package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient spins up an httptest server and returns a Client pointed at it.
func testClient(t *testing.T, password string, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	host := strings.TrimPrefix(srv.URL, "http://")
	return NewClient(host, password)
}

func TestClient_InfoHandshake(t *testing.T) {
	c := testClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/info", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Password"))
		w.Write([]byte(`{"product":"Ultimate 64","firmware_version":"3.11","hostname":"u64","unique_id":"abc123","core_version":"1.44"}`))
	})

	info, err := c.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ultimate 64", info.Product)
	assert.Equal(t, "3.11", info.FirmwareVersion)
	assert.Equal(t, "abc123", info.UniqueID)
}

func TestClient_EmptyPasswordOmitsHeader(t *testing.T) {
	c := testClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header["X-Password"]
		assert.False(t, present, "X-Password sent with empty password")
		w.Write([]byte(`{"version":"0.1"}`))
	})

	v, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.1", v)
}

func TestClient_Unauthorized(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		c := testClient(t, "wrong", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
		_, err := c.Info(context.Background())
		assert.ErrorIs(t, err, ErrUnauthorized, "status %d", status)
	}
}

func TestClient_ProtocolError(t *testing.T) {
	c := testClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := c.Reset(context.Background())
	require.Error(t, err)

	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusInternalServerError, perr.Status)
	assert.Contains(t, perr.Op, "/v1/machine:reset")
}

func TestClient_ConnectionRefused(t *testing.T) {
	// A freshly closed server port refuses connections.
	srv := httptest.NewServer(http.NotFoundHandler())
	host := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	c := NewClient(host, "", WithTimeout(time.Second))
	_, err := c.Info(context.Background())
	assert.ErrorIs(t, err, ErrRefused)
}

func TestClient_ContextTimeout(t *testing.T) {
	c := testClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Info(ctx)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestClient_StartStreamQuery(t *testing.T) {
	var gotPath, gotIP string
	c := testClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotIP = r.URL.Query().Get("ip")
	})

	require.NoError(t, c.StartStream(context.Background(), "video", "192.168.1.50:11000"))
	assert.Equal(t, "/v1/streams/video:start", gotPath)
	assert.Equal(t, "192.168.1.50:11000", gotIP)

	require.NoError(t, c.StopStream(context.Background(), "video"))
	assert.Equal(t, "/v1/streams/video:stop", gotPath)
}

func TestClient_RunnerAndMountQueries(t *testing.T) {
	type call struct {
		method, path string
		query        map[string]string
	}
	var last call
	c := testClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		q := map[string]string{}
		for k := range r.URL.Query() {
			q[k] = r.URL.Query().Get(k)
		}
		last = call{method: r.Method, path: r.URL.Path, query: q}
	})
	ctx := context.Background()

	require.NoError(t, c.Run(ctx, SidPlay, "/Usb0/music.sid"))
	assert.Equal(t, call{http.MethodPut, "/v1/runners:sidplay", map[string]string{"file": "/Usb0/music.sid"}}, last)

	require.NoError(t, c.MountDisk(ctx, "a", "/Usb0/game.d64", MountReadOnly))
	assert.Equal(t, call{http.MethodPut, "/v1/drives/a:mount", map[string]string{"image": "/Usb0/game.d64", "mode": "readonly"}}, last)

	require.NoError(t, c.RemoveDisk(ctx, "b"))
	assert.Equal(t, "/v1/drives/b:remove", last.path)
	assert.Empty(t, last.query)
}

func TestClient_Configs(t *testing.T) {
	c := testClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/configs" && r.Method == http.MethodGet:
			w.Write([]byte(`{"categories":["U64 Specific Settings","Audio Mixer"]}`))
		case r.URL.Path == "/v1/configs/Audio Mixer/*":
			w.Write([]byte(`{"Volume":{"name":"Volume","current":6,"default":4,"min":0,"max":10}}`))
		case r.URL.Path == "/v1/configs" && r.Method == http.MethodPost:
			var body map[string]map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "HDMI", body["U64 Specific Settings"]["Digital Video Mode"])
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})
	ctx := context.Background()

	cats, err := c.ConfigCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"U64 Specific Settings", "Audio Mixer"}, cats)

	items, err := c.ConfigCategory(ctx, "Audio Mixer")
	require.NoError(t, err)
	require.Contains(t, items, "Volume")
	assert.EqualValues(t, 6, items["Volume"].Value)
	require.NotNil(t, items["Volume"].Max)
	assert.Equal(t, 10, *items["Volume"].Max)

	err = c.SetConfigs(ctx, map[string]map[string]any{
		"U64 Specific Settings": {"Digital Video Mode": "HDMI"},
	})
	require.NoError(t, err)
}

func TestClient_BadJSONIsProtocolError(t *testing.T) {
	c := testClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := c.Info(context.Background())
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Error(t, perr.Err)
}
