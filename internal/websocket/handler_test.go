package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmapulse/pkg/contracts/events"
)

func dial(t *testing.T, server *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	return websocket.DefaultDialer.Dial(url, header)
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHandlerBroadcastRoundTrip(t *testing.T) {
	hub := newStartedHub(t)
	server := httptest.NewServer(NewHandler(hub, nil, quietLogger()))
	defer server.Close()

	conn, _, err := dial(t, server, nil)
	require.NoError(t, err)
	defer conn.Close()

	ev := readEvent(t, conn)
	assert.Equal(t, events.TypeConnection, ev.Type)
	assert.NotEmpty(t, ev.TraceID)
	registered(t, hub, 1)

	hub.Broadcast("ingest.completed", map[string]interface{}{"files": 3})
	ev = readEvent(t, conn)
	assert.Equal(t, "ingest.completed", ev.Type)
	assert.EqualValues(t, 3, ev.Data.(map[string]interface{})["files"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, events.TypePong, readEvent(t, conn).Type)

	conn.Close()
	registered(t, hub, 0)
}

func TestHandlerCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		ok      bool
	}{
		{"no origin", nil, "", true},
		{"listed origin", []string{"http://dashboard.local"}, "http://dashboard.local", true},
		{"wildcard", []string{"*"}, "http://anything.example", true},
		{"foreign origin", []string{"http://dashboard.local"}, "http://evil.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := newStartedHub(t)
			server := httptest.NewServer(NewHandler(hub, tt.allowed, quietLogger()))
			defer server.Close()

			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := dial(t, server, header)
			if tt.ok {
				require.NoError(t, err)
				conn.Close()
				return
			}
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}

func TestHandlerAllowsSameHostOrigin(t *testing.T) {
	hub := newStartedHub(t)
	server := httptest.NewServer(NewHandler(hub, nil, quietLogger()))
	defer server.Close()

	header := http.Header{}
	header.Set("Origin", server.URL)
	conn, _, err := dial(t, server, header)
	require.NoError(t, err)
	conn.Close()
}

func TestHandlerRejectsPlainHTTP(t *testing.T) {
	hub := newStartedHub(t)
	rec := httptest.NewRecorder()
	NewHandler(hub, nil, quietLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, hub.ClientCount())
}
