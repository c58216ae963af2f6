package websocket_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/domkit"
	"github.com/fwojciec/domkit/websocket"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/time/rate"
)

// wireMsg mirrors the JSON messages exchanged with the host.
type wireMsg struct {
	ID     uint64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *wireErr        `json:"error,omitempty"`
}

type wireErr struct {
	Message string `json:"message"`
}

// fakeHost accepts websocket connections and hands the server side of each
// one to the test.
type fakeHost struct {
	srv   *httptest.Server
	conns chan *gorilla.Conn
}

func newFakeHost() *fakeHost {
	f := &fakeHost{conns: make(chan *gorilla.Conn, 1)}
	upgrader := gorilla.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.conns <- conn
	}))
	return f
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// connect dials the fake host and returns both ends of the connection.
func connect(t *testing.T, opts ...websocket.Option) (*websocket.Host, *gorilla.Conn) {
	t.Helper()

	f := newFakeHost()
	t.Cleanup(f.srv.Close)

	opts = append([]websocket.Option{websocket.WithRetryDelays(nil)}, opts...)
	host, err := websocket.Dial(context.Background(), wsURL(f.srv), opts...)
	require.NoError(t, err)
	server := <-f.conns

	t.Cleanup(func() {
		_ = host.Close()
		_ = server.Close()
	})
	return host, server
}

func readMsg(t *testing.T, conn *gorilla.Conn) wireMsg {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg wireMsg
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func writeMsg(t *testing.T, conn *gorilla.Conn, msg wireMsg) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

type callResult struct {
	payload json.RawMessage
	err     error
}

func TestHost_FetchPayload(t *testing.T) {
	t.Parallel()

	t.Run("returns the host's result", func(t *testing.T) {
		t.Parallel()

		host, server := connect(t)
		done := make(chan callResult, 1)
		go func() {
			p, err := host.FetchPayload(context.Background())
			done <- callResult{p, err}
		}()

		req := readMsg(t, server)
		assert.Equal(t, "fetchPayload", req.Method)
		assert.NotZero(t, req.ID)
		writeMsg(t, server, wireMsg{ID: req.ID, Result: json.RawMessage(`{"data": [{"children": []}]}`)})

		got := <-done
		require.NoError(t, got.err)
		assert.JSONEq(t, `{"data": [{"children": []}]}`, string(got.payload))
	})

	t.Run("fails pending requests when the connection drops", func(t *testing.T) {
		t.Parallel()

		host, server := connect(t)
		done := make(chan callResult, 1)
		go func() {
			p, err := host.FetchPayload(context.Background())
			done <- callResult{p, err}
		}()

		readMsg(t, server)
		require.NoError(t, server.Close())

		got := <-done
		require.Error(t, got.err)
		assert.Equal(t, domkit.EUNAVAILABLE, domkit.ErrorCode(got.err))
		<-host.Done()
		assert.Error(t, host.Err())
	})

	t.Run("fails after close", func(t *testing.T) {
		t.Parallel()

		host, _ := connect(t)
		require.NoError(t, host.Close())

		_, err := host.FetchPayload(context.Background())

		assert.Equal(t, domkit.EUNAVAILABLE, domkit.ErrorCode(err))
	})

	t.Run("honors context cancellation", func(t *testing.T) {
		t.Parallel()

		host, server := connect(t)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan callResult, 1)
		go func() {
			p, err := host.FetchPayload(ctx)
			done <- callResult{p, err}
		}()

		readMsg(t, server)
		cancel()

		got := <-done
		assert.ErrorIs(t, got.err, context.Canceled)
	})
}

func TestHost_DeliverResult(t *testing.T) {
	t.Parallel()

	t.Run("correlates concurrent responses by id", func(t *testing.T) {
		t.Parallel()

		host, server := connect(t)
		results := map[string]chan error{"a": make(chan error, 1), "b": make(chan error, 1)}
		for name, ch := range results {
			go func() {
				ch <- host.DeliverResult(context.Background(), domkit.ResultPayload{
					Data: domkit.ExtractionResult{{domkit.StringPtr(name)}},
				})
			}()
		}

		first, second := readMsg(t, server), readMsg(t, server)
		for _, req := range []wireMsg{second, first} {
			assert.Equal(t, "deliverResult", req.Method)
			if strings.Contains(string(req.Params), `"a"`) {
				writeMsg(t, server, wireMsg{ID: req.ID, Error: &wireErr{Message: "rejected"}})
				continue
			}
			writeMsg(t, server, wireMsg{ID: req.ID, Result: json.RawMessage(`true`)})
		}

		errA := <-results["a"]
		require.Error(t, errA)
		assert.Equal(t, domkit.EUNAVAILABLE, domkit.ErrorCode(errA))
		assert.Contains(t, domkit.ErrorMessage(errA), "rejected")
		assert.NoError(t, <-results["b"])
	})

	t.Run("sends the payload as params", func(t *testing.T) {
		t.Parallel()

		host, server := connect(t)
		done := make(chan error, 1)
		go func() {
			done <- host.DeliverResult(context.Background(), domkit.StatusPayload{Data: domkit.Status{Built: 2, Failed: 1}})
		}()

		req := readMsg(t, server)
		assert.JSONEq(t, `{"data": {"built": 2, "failed": 1}}`, string(req.Params))
		writeMsg(t, server, wireMsg{ID: req.ID, Result: json.RawMessage(`null`)})

		assert.NoError(t, <-done)
	})
}

func TestHost_Notifications(t *testing.T) {
	t.Parallel()

	t.Run("sends log and invoke without an id", func(t *testing.T) {
		t.Parallel()

		host, server := connect(t)

		host.Log(context.Background(), "head loaded")
		require.NoError(t, host.Invoke(context.Background(), "save", []any{1, "x"}, map[string]any{"k": "v"}))

		logMsg := readMsg(t, server)
		assert.Zero(t, logMsg.ID)
		assert.Equal(t, "log", logMsg.Method)
		assert.JSONEq(t, `{"message": "head loaded"}`, string(logMsg.Params))

		invoke := readMsg(t, server)
		assert.Zero(t, invoke.ID)
		assert.Equal(t, "invoke", invoke.Method)
		assert.JSONEq(t, `{"route": "save", "args": [1, "x"], "kwargs": {"k": "v"}}`, string(invoke.Params))
	})

	t.Run("drops logs over the rate limit", func(t *testing.T) {
		t.Parallel()

		host, server := connect(t, websocket.WithLogRate(rate.Every(time.Hour), 1))

		host.Log(context.Background(), "one")
		host.Log(context.Background(), "two")
		host.Log(context.Background(), "three")
		require.NoError(t, host.Invoke(context.Background(), "after", nil, nil))

		assert.JSONEq(t, `{"message": "one"}`, string(readMsg(t, server).Params))
		assert.Equal(t, "invoke", readMsg(t, server).Method)
	})

	t.Run("surfaces dispatched operations in order", func(t *testing.T) {
		t.Parallel()

		host, server := connect(t)

		for _, op := range []string{"loading", "create", "read"} {
			writeMsg(t, server, wireMsg{Method: "dispatch", Params: json.RawMessage(`{"op": "` + op + `"}`)})
		}
		require.NoError(t, server.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, "")))

		var ops []string
		for op := range host.Operations() {
			ops = append(ops, op)
		}
		assert.Equal(t, []string{"loading", "create", "read"}, ops)
		assert.NoError(t, host.Err())
	})
}

func TestDial(t *testing.T) {
	t.Parallel()

	t.Run("retries until the host accepts", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32
		upgrader := gorilla.Upgrader{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) < 3 {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			_ = conn.Close()
		}))
		t.Cleanup(srv.Close)

		host, err := websocket.Dial(context.Background(), wsURL(srv),
			websocket.WithRetryDelays([]time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}))

		require.NoError(t, err)
		t.Cleanup(func() { _ = host.Close() })
		assert.Equal(t, int32(3), attempts.Load())
	})

	t.Run("gives up after the last delay", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			http.Error(w, "down", http.StatusServiceUnavailable)
		}))
		t.Cleanup(srv.Close)

		_, err := websocket.Dial(context.Background(), wsURL(srv),
			websocket.WithRetryDelays([]time.Duration{time.Millisecond}))

		require.Error(t, err)
		assert.Equal(t, domkit.EUNAVAILABLE, domkit.ErrorCode(err))
		assert.Equal(t, int32(2), attempts.Load())
	})
}

// Not parallel: goleak inspects every goroutine in the process.
func TestHost_Close_StopsGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newFakeHost()
	host, err := websocket.Dial(context.Background(), wsURL(f.srv), websocket.WithRetryDelays(nil))
	require.NoError(t, err)
	server := <-f.conns

	done := make(chan callResult, 1)
	go func() {
		p, err := host.FetchPayload(context.Background())
		done <- callResult{p, err}
	}()
	req := readMsg(t, server)
	writeMsg(t, server, wireMsg{ID: req.ID, Result: json.RawMessage(`{}`)})
	require.NoError(t, (<-done).err)

	require.NoError(t, host.Close())
	_ = server.Close()
	f.srv.Close()
}
