package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/overseer/model/approval"
	"github.com/viant/overseer/model/checkpoint"
	gateway "github.com/viant/overseer/service/approval"
	"github.com/viant/overseer/service/dao/blob"
	"github.com/viant/overseer/service/notify"
)

func newFixture(t *testing.T) (*gateway.Gateway, *httptest.Server) {
	g := gateway.New(blob.NewMemory(), &gateway.Config{TimeoutMinutes: 30, DefaultAction: checkpoint.ActionPause, PollInterval: 10 * time.Millisecond})
	ts := httptest.NewServer(New(g, Options{}).Handler())
	t.Cleanup(ts.Close)
	return g, ts
}

func post(t *testing.T, url string, body any, header map[string]string) int {
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestServer_PostResponse(t *testing.T) {
	type testCase struct {
		name     string
		callback func(req *approval.Request) approval.Callback
		path     func(req *approval.Request) string
		header   func(req *approval.Request) map[string]string
		expected int
	}
	testCases := []testCase{
		{
			name: "accepted",
			callback: func(req *approval.Request) approval.Callback {
				return approval.Callback{RequestID: req.ID, ApprovalToken: req.Token, Approved: true, Action: checkpoint.ActionContinue, Channel: approval.ChannelSlack}
			},
			expected: http.StatusAccepted,
		},
		{
			name: "request id from path and bearer token",
			callback: func(req *approval.Request) approval.Callback {
				return approval.Callback{Action: checkpoint.ActionAbort}
			},
			header: func(req *approval.Request) map[string]string {
				return map[string]string{"Authorization": "Bearer " + req.Token}
			},
			expected: http.StatusAccepted,
		},
		{
			name: "wrong token",
			callback: func(req *approval.Request) approval.Callback {
				return approval.Callback{RequestID: req.ID, ApprovalToken: "guess", Approved: true}
			},
			expected: http.StatusForbidden,
		},
		{
			name: "id mismatch",
			callback: func(req *approval.Request) approval.Callback {
				return approval.Callback{RequestID: "other", ApprovalToken: req.Token, Approved: true}
			},
			expected: http.StatusForbidden,
		},
		{
			name: "unknown action",
			callback: func(req *approval.Request) approval.Callback {
				return approval.Callback{RequestID: req.ID, ApprovalToken: req.Token, Action: "bogus"}
			},
			expected: http.StatusForbidden,
		},
		{
			name: "redirect without instructions",
			callback: func(req *approval.Request) approval.Callback {
				return approval.Callback{RequestID: req.ID, ApprovalToken: req.Token, Approved: true, Action: checkpoint.ActionRedirect}
			},
			expected: http.StatusForbidden,
		},
		{
			name: "unknown request",
			callback: func(req *approval.Request) approval.Callback {
				return approval.Callback{ApprovalToken: req.Token, Approved: true}
			},
			path:     func(*approval.Request) string { return "/approvals/unknown/response" },
			expected: http.StatusForbidden,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g, ts := newFixture(t)
			req, err := g.RequestApproval(context.Background(), "cp", checkpoint.KindDeploy, nil)
			require.NoError(t, err)
			path := "/approvals/" + req.ID + "/response"
			if tc.path != nil {
				path = tc.path(req)
			}
			var header map[string]string
			if tc.header != nil {
				header = tc.header(req)
			}
			assert.Equal(t, tc.expected, post(t, ts.URL+path, tc.callback(req), header))
		})
	}
}

func TestServer_PostResponseOnce(t *testing.T) {
	g, ts := newFixture(t)
	req, err := g.RequestApproval(context.Background(), "cp", checkpoint.KindDeploy, nil)
	require.NoError(t, err)
	cb := approval.Callback{RequestID: req.ID, ApprovalToken: req.Token, Approved: true}
	url := ts.URL + "/approvals/" + req.ID + "/response"
	assert.Equal(t, http.StatusAccepted, post(t, url, cb, nil))
	assert.Equal(t, http.StatusForbidden, post(t, url, cb, nil))

	resp, err := http.Post(url, "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_RespondLink(t *testing.T) {
	g, ts := newFixture(t)
	ctx := context.Background()
	req, err := g.RequestApproval(ctx, "cp", checkpoint.KindGitPush, nil)
	require.NoError(t, err)

	msg := notify.NewMessage(req, ts.URL)
	link, ok := msg.Links[checkpoint.ActionContinue]
	require.True(t, ok)

	resp, err := http.Get(link)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(link)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	outcome, err := g.WaitForApproval(ctx, req.ID, nil)
	require.NoError(t, err)
	assert.True(t, outcome.Approved)
	assert.Equal(t, checkpoint.ActionContinue, outcome.Action)

	resp, err = http.Get(ts.URL + "/approvals/" + req.ID + "/respond?action=launch&token=" + req.Token)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Events(t *testing.T) {
	g, ts := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/events", nil)
	require.NoError(t, err)
	defer ws.Close(websocket.StatusNormalClosure, "test finished")
	require.Eventually(t, func() bool { return g.Events().Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	req, err := g.RequestApproval(ctx, "cp", checkpoint.KindBlocker, nil)
	require.NoError(t, err)

	var event approval.Event
	require.NoError(t, wsjson.Read(ctx, ws, &event))
	assert.Equal(t, approval.TopicRequestCreated, event.Topic)
	assert.Equal(t, req.ID, event.RequestID)
}

func TestServer_Serve(t *testing.T) {
	g, _ := newFixture(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := New(g, Options{Addr: listener.Addr().String()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, listener) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Second, 10*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
