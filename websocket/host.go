// Package websocket implements domkit.Host over a websocket connection to
// the embedding application.
//
// Messages are JSON objects. Requests carry an id and expect a response
// with the same id:
//
//	{"id": 1, "method": "fetchPayload"}
//	{"id": 1, "result": {"data": [...]}}
//
// Log and Invoke are fire-and-forget notifications without an id. The
// host pushes operations as notifications:
//
//	{"method": "dispatch", "params": {"op": "create"}}
package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fwojciec/domkit"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Ensure Host implements domkit.Host at compile time.
var _ domkit.Host = (*Host)(nil)

// Wire methods.
const (
	methodFetchPayload  = "fetchPayload"
	methodDeliverResult = "deliverResult"
	methodLog           = "log"
	methodInvoke        = "invoke"
	methodDispatch      = "dispatch"
)

// DefaultRetryDelays returns the backoff delays for dial retries: 250ms,
// 500ms, 1s.
func DefaultRetryDelays() []time.Duration {
	return []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second}
}

type message struct {
	ID     uint64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type invokeParams struct {
	Route  string         `json:"route"`
	Args   []any          `json:"args"`
	Kwargs map[string]any `json:"kwargs"`
}

type logParams struct {
	Message string `json:"message"`
}

type dispatchParams struct {
	Op string `json:"op"`
}

// Host is a connection to the embedding application. Requests may be
// issued concurrently; responses are matched by id.
type Host struct {
	conn    *websocket.Conn
	logger  *slog.Logger
	limiter *rate.Limiter

	outbox  chan []byte
	ops     chan string
	notify  chan struct{}
	done    chan struct{}
	closing chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan message
	queue   []string
	err     error

	closeOnce sync.Once
	stopOnce  sync.Once
}

type config struct {
	logger     *slog.Logger
	logLimit   rate.Limit
	logBurst   int
	outboxSize int
	delays     []time.Duration
	dialer     *websocket.Dialer
}

// Option configures a Host.
type Option func(*config)

// WithLogger sets the logger for transport events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithLogRate throttles Log notifications. Messages over the limit are
// dropped.
func WithLogRate(limit rate.Limit, burst int) Option {
	return func(c *config) {
		c.logLimit = limit
		c.logBurst = burst
	}
}

// WithOutboxSize sets how many outgoing messages may be queued before
// senders block (and Log starts dropping).
func WithOutboxSize(n int) Option {
	return func(c *config) {
		c.outboxSize = n
	}
}

// WithRetryDelays sets the delays between dial attempts. An empty slice
// disables retries.
func WithRetryDelays(delays []time.Duration) Option {
	return func(c *config) {
		c.delays = delays
	}
}

// WithDialer sets the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *config) {
		c.dialer = d
	}
}

func newConfig(opts []Option) *config {
	c := &config{
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		logLimit:   rate.Limit(50),
		logBurst:   100,
		outboxSize: 64,
		delays:     DefaultRetryDelays(),
		dialer:     websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to the host at url, retrying failed attempts with the
// configured delays.
func Dial(ctx context.Context, url string, opts ...Option) (*Host, error) {
	c := newConfig(opts)

	var lastErr error
	for attempt := 0; attempt <= len(c.delays); attempt++ {
		conn, _, err := c.dialer.DialContext(ctx, url, nil)
		if err == nil {
			return newHost(conn, c), nil
		}
		lastErr = err

		if attempt == len(c.delays) {
			break
		}
		c.logger.Debug("dial failed, retrying", "url", url, "attempt", attempt+2, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.delays[attempt]):
		}
	}
	return nil, domkit.Errorf(domkit.EUNAVAILABLE, "dial %s: %v", url, lastErr)
}

// New wraps an established connection.
func New(conn *websocket.Conn, opts ...Option) *Host {
	return newHost(conn, newConfig(opts))
}

func newHost(conn *websocket.Conn, c *config) *Host {
	h := &Host{
		conn:    conn,
		logger:  c.logger,
		limiter: rate.NewLimiter(c.logLimit, c.logBurst),
		outbox:  make(chan []byte, c.outboxSize),
		ops:     make(chan string),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
		pending: make(map[uint64]chan message),
	}
	h.wg.Add(3)
	go h.readLoop()
	go h.writeLoop()
	go h.pump()
	return h
}

// Operations returns the operation names pushed by the host, in arrival
// order. The channel is closed when the connection ends.
func (h *Host) Operations() <-chan string {
	return h.ops
}

// Done is closed when the connection ends.
func (h *Host) Done() <-chan struct{} {
	return h.done
}

// Err returns why the connection ended, or nil while it is open or after
// a clean Close.
func (h *Host) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Close sends a close frame, tears down the connection and waits for the
// background goroutines to exit.
func (h *Host) Close() error {
	_ = h.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	h.stopOnce.Do(func() { close(h.closing) })
	h.shutdown(nil)
	h.wg.Wait()
	return nil
}

// FetchPayload asks the host for the current operation's payload.
func (h *Host) FetchPayload(ctx context.Context) (json.RawMessage, error) {
	return h.call(ctx, methodFetchPayload, nil)
}

// DeliverResult sends result to the host and waits for acknowledgement.
func (h *Host) DeliverResult(ctx context.Context, result any) error {
	_, err := h.call(ctx, methodDeliverResult, result)
	return err
}

// Log sends a log notification. It never blocks: messages are dropped when
// the rate limit is exceeded or the outbox is full.
func (h *Host) Log(ctx context.Context, msg string) {
	if !h.limiter.Allow() {
		h.logger.Debug("host log throttled", "message", msg)
		return
	}
	data, err := encode(message{Method: methodLog}, logParams{Message: msg})
	if err != nil {
		return
	}
	select {
	case h.outbox <- data:
	case <-h.done:
	default:
		h.logger.Debug("host log dropped", "message", msg)
	}
}

// Invoke sends an invoke notification for route.
func (h *Host) Invoke(ctx context.Context, route string, args []any, kwargs map[string]any) error {
	data, err := encode(message{Method: methodInvoke}, invokeParams{Route: route, Args: args, Kwargs: kwargs})
	if err != nil {
		return err
	}
	return h.send(ctx, data)
}

func (h *Host) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	h.mu.Lock()
	if h.isDone() {
		h.mu.Unlock()
		return nil, h.closedError()
	}
	h.nextID++
	id := h.nextID
	ch := make(chan message, 1)
	h.pending[id] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.pending, id)
		h.mu.Unlock()
	}()

	data, err := encode(message{ID: id, Method: method}, params)
	if err != nil {
		return nil, err
	}
	if err := h.send(ctx, data); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, domkit.Errorf(domkit.EUNAVAILABLE, "host %s: %s", method, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return nil, h.closedError()
	}
}

func (h *Host) send(ctx context.Context, data []byte) error {
	select {
	case h.outbox <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return h.closedError()
	}
}

func encode(msg message, params any) ([]byte, error) {
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, domkit.Errorf(domkit.EINVALID, "encoding %s params: %v", msg.Method, err)
		}
		msg.Params = raw
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, domkit.Errorf(domkit.EINVALID, "encoding %s: %v", msg.Method, err)
	}
	return data, nil
}

func (h *Host) readLoop() {
	defer h.wg.Done()
	for {
		_, data, err := h.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("host connection lost", "error", err)
				h.shutdown(err)
			} else {
				h.shutdown(nil)
			}
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("malformed host message", "error", err)
			continue
		}

		switch {
		case msg.Method == methodDispatch:
			var p dispatchParams
			if err := json.Unmarshal(msg.Params, &p); err != nil {
				h.logger.Warn("malformed dispatch", "error", err)
				continue
			}
			h.enqueue(p.Op)
		case msg.Method == "" && msg.ID != 0:
			h.mu.Lock()
			ch, ok := h.pending[msg.ID]
			h.mu.Unlock()
			if !ok {
				h.logger.Debug("response for unknown request", "id", msg.ID)
				continue
			}
			select {
			case ch <- msg:
			default:
				h.logger.Debug("duplicate response", "id", msg.ID)
			}
		default:
			h.logger.Debug("ignoring host message", "method", msg.Method)
		}
	}
}

func (h *Host) writeLoop() {
	defer h.wg.Done()
	for {
		select {
		case data := <-h.outbox:
			if err := h.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn("host write failed", "error", err)
				h.shutdown(err)
				return
			}
		case <-h.done:
			return
		}
	}
}

func (h *Host) enqueue(op string) {
	h.mu.Lock()
	h.queue = append(h.queue, op)
	h.mu.Unlock()
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// pump feeds queued operations to Operations so the read loop never
// blocks on a slow consumer. Operations received before the connection
// dropped are still delivered; Close discards them.
func (h *Host) pump() {
	defer h.wg.Done()
	defer close(h.ops)
	for {
		h.mu.Lock()
		if len(h.queue) > 0 {
			op := h.queue[0]
			h.queue = h.queue[1:]
			h.mu.Unlock()
			select {
			case h.ops <- op:
			case <-h.closing:
				return
			}
			continue
		}
		h.mu.Unlock()

		select {
		case <-h.notify:
		case <-h.closing:
			return
		case <-h.done:
			h.mu.Lock()
			empty := len(h.queue) == 0
			h.mu.Unlock()
			if empty {
				return
			}
		}
	}
}

func (h *Host) shutdown(err error) {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
		close(h.done)
		_ = h.conn.Close()
	})
}

// isDone reports whether the connection has ended.
func (h *Host) isDone() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Host) closedError() error {
	if err := h.Err(); err != nil {
		return domkit.Errorf(domkit.EUNAVAILABLE, "host connection lost: %v", err)
	}
	return domkit.Errorf(domkit.EUNAVAILABLE, "host connection closed")
}
