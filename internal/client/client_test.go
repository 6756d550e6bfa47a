package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvald/omcli/internal/protocol"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return New(ts.URL, "test-key")
}

func TestClient_CommandSendsBearerAndBody(t *testing.T) {
	var gotAuth string
	var gotReq protocol.CommandRequest

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/command", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(protocol.CommandResponse{ID: "c1", Status: "ok"})
	})

	resp, err := c.Command(context.Background(), "alarm.start", map[string]any{"sound": "loud"}, "d1")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "alarm.start", gotReq.Command)
	assert.Equal(t, "d1", gotReq.DeviceID)
	assert.JSONEq(t, `{"sound":"loud"}`, string(gotReq.Params))
}

func TestClient_ErrorResponse(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Multiple devices connected, specify --device", http.StatusBadRequest)
	})

	_, err := c.Command(context.Background(), "alarm.start", nil, "")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "Multiple devices connected")
}

func TestClient_Pair(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/devices/pair", r.URL.Path)
		var req protocol.PairRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "123456", req.Code)
		json.NewEncoder(w).Encode(protocol.PairResponse{DeviceID: "d1", Name: "Phone"})
	})

	resp, err := c.Pair(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, "d1", resp.DeviceID)
	assert.Equal(t, "Phone", resp.Name)
}

func TestClient_Devices(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]protocol.DeviceInfo{
			{ID: "d1", Name: "Phone", Online: true},
		})
	})

	list, err := c.Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Online)
}

func TestClient_DeleteDevice(t *testing.T) {
	var gotPath string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteDevice(context.Background(), "d1"))
	assert.Equal(t, "/api/devices/d1", gotPath)
}

func TestClient_Status(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(protocol.ServerStatus{
			Version: "0.3.0", UptimeSecs: 42, DevicesOnline: 1, DevicesTotal: 2,
		})
	})

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.3.0", status.Version)
	assert.Equal(t, int64(42), status.UptimeSecs)
}

func TestClient_TrimsTrailingSlash(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/status", r.URL.Path)
		json.NewEncoder(w).Encode(protocol.ServerStatus{})
	}))
	defer ts.Close()

	c := New(ts.URL+"/", "key")
	_, err := c.Status(context.Background())
	require.NoError(t, err)
}
