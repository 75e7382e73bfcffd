package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplane/core/pkg/models"
)

type fakeInjector struct {
	lastEnv *models.Envelope
	err     error
}

func (f *fakeInjector) InjectMessage(env *models.Envelope) error {
	f.lastEnv = env
	return f.err
}

func dialWS(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	return conn
}

func TestServerRejectsMissingTokenWhenAnonymousDisallowed(t *testing.T) {
	srv := NewServer(&fakeInjector{}, nil, false, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServerEchosInvalidFormatFrame(t *testing.T) {
	srv := NewServer(&fakeInjector{}, nil, true, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn := dialWS(t, ts, "")
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Invalid message format"}`, string(raw))
}

func TestServerShutdownSendsGoingAwayCloseCode(t *testing.T) {
	srv := NewServer(&fakeInjector{}, nil, true, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn := dialWS(t, ts, "")
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		srv.Router.mu.RLock()
		n := len(srv.Router.sessions)
		srv.Router.mu.RUnlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv.Shutdown("agentplaned shutting down")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected a websocket close error, got %T: %v", err, err)
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)
}

func TestServerForwardsValidEnvelopeToInjector(t *testing.T) {
	injector := &fakeInjector{}
	srv := NewServer(injector, nil, true, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn := dialWS(t, ts, "")
	defer conn.Close()

	payload := `{"id":"evt-1","source":"agent://a1","target":"agent://a2"}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if injector.lastEnv != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.NotNil(t, injector.lastEnv)
	assert.Equal(t, "evt-1", injector.lastEnv.ID)
}
