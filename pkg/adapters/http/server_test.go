package http

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, opts ...canopy.Option) (*httptest.Server, *canopy.Tree) {
	t.Helper()
	tree, err := canopy.New([]domain.NodeSpec{
		{Value: "t1", Children: []domain.NodeSpec{{Value: "1"}, {Value: "2"}}},
		{Value: "t2", Children: []domain.NodeSpec{{Value: "3"}, {Value: "4"}}},
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tree.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := httptest.NewServer(NewHandler(ctx, tree))
	t.Cleanup(srv.Close)
	return srv, tree
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestServer_Nodes(t *testing.T) {
	srv, tree := newServer(t)

	resp, body := do(t, "GET", srv.URL+"/nodes", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var nodes []domain.NodeView
	require.NoError(t, json.Unmarshal(body, &nodes))
	assert.Len(t, nodes, 6)

	resp, body = do(t, "GET", srv.URL+"/nodes?visible=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &nodes))
	assert.Len(t, nodes, 2, "collapsed roots hide their children")

	require.NoError(t, tree.SetExpanded("t1", true))
	_, body = do(t, "GET", srv.URL+"/nodes?visible=true", "")
	require.NoError(t, json.Unmarshal(body, &nodes))
	assert.Len(t, nodes, 4)

	resp, _ = do(t, "GET", srv.URL+"/nodes/ghost", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_PatchNode(t *testing.T) {
	srv, tree := newServer(t, canopy.WithMax(2))

	resp, body := do(t, "PATCH", srv.URL+"/nodes/t1", `{"checked": true, "expanded": true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var node domain.NodeView
	require.NoError(t, json.Unmarshal(body, &node))
	assert.True(t, node.Checked)
	assert.True(t, node.Expanded)
	assert.Equal(t, domain.Values("1", "2"), tree.Checked())

	resp, _ = do(t, "PATCH", srv.URL+"/nodes/3", `{"checked": true}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "max reached")

	resp, _ = do(t, "PATCH", srv.URL+"/nodes/3", `{"expanded": true}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = do(t, "PATCH", srv.URL+"/nodes/3", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Value(t *testing.T) {
	srv, tree := newServer(t)

	resp, body := do(t, "PUT", srv.URL+"/value", `{"checked": ["3", "4"], "expanded": ["t2"], "activated": ["t2"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, domain.Values("3", "4"), tree.Checked())
	assert.Equal(t, domain.Values("t2"), tree.Expanded())
	assert.Equal(t, domain.Values("t2"), tree.Activated())

	_, body = do(t, "GET", srv.URL+"/value", "")
	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, domain.Values("3", "4"), snap.Checked)
}

func TestServer_HealthAndInfo(t *testing.T) {
	srv, _ := newServer(t)

	resp, body := do(t, "GET", srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"ok"`)

	_, body = do(t, "GET", srv.URL+"/info", "")
	assert.Contains(t, string(body), strings.TrimSpace(canopy.Version))

	resp, _ = do(t, "OPTIONS", srv.URL+"/nodes", "")
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_SubscribeEvents(t *testing.T) {
	srv, tree := newServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/events?types=change", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case line == "":
				return name, data
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
	}

	name, _ := readEvent()
	require.Equal(t, "ping", name)

	// Filtered out: only change events were requested.
	require.NoError(t, tree.SetExpanded("t1", true))
	_, err = tree.SetChecked("t2", true)
	require.NoError(t, err)

	name, data := readEvent()
	assert.Equal(t, "change", name)
	var ev WireEvent
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, domain.Values("3", "4"), ev.Values)
	assert.Equal(t, domain.Value("t2"), ev.Node)
	assert.Equal(t, domain.TriggerAPI, ev.Trigger)
}

func TestStreamManager_SlowClientDropsMessages(t *testing.T) {
	sm := NewStreamManager(logging.NewNop())
	ch, cancel := sm.Subscribe()
	defer cancel()

	for i := 0; i < 100; i++ {
		sm.Broadcast(WireEvent{Type: domain.EventChange})
	}
	assert.Len(t, ch, cap(ch))

	cancel()
	cancel()
	assert.Zero(t, sm.Len())
}
