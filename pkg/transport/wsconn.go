package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSState is one of the five states spec.md §4.1 names explicitly.
type WSState int

const (
	Disconnected WSState = iota
	Connecting
	Connected
	Reconnecting
	CircuitOpen
)

func (s WSState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case CircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// BlockEvent is one new-block notification forwarded from a WS endpoint.
type BlockEvent struct {
	Number      uint64
	Hash        string
	TimestampMs int64
}

// WSConnConfig bundles one connection's tunables, all from spec.md §4.1.
type WSConnConfig struct {
	InitialConnectionTimeout time.Duration
	InitialConnectionRetries int
	HeartbeatInterval        time.Duration
	HeartbeatTimeout         time.Duration
	ReconnectBaseDelay       time.Duration
	ReconnectMaxDelay        time.Duration
	MaxReconnectAttempts     int
	CircuitBreakerCooldown   time.Duration
	ProactiveRefreshInterval time.Duration
	JitterFactor             float64
}

// DefaultWSConnConfig matches spec.md §4.1's named defaults.
func DefaultWSConnConfig() WSConnConfig {
	return WSConnConfig{
		InitialConnectionTimeout: 15 * time.Second,
		InitialConnectionRetries: 3,
		HeartbeatInterval:        15 * time.Second,
		HeartbeatTimeout:         5 * time.Second,
		ReconnectBaseDelay:       1 * time.Second,
		ReconnectMaxDelay:        5 * time.Minute,
		MaxReconnectAttempts:     10,
		CircuitBreakerCooldown:   5 * time.Minute,
		ProactiveRefreshInterval: 30 * time.Minute,
		JitterFactor:             0.2,
	}
}

// WSConn drives one WebSocket endpoint through its state machine. It owns
// its socket exclusively; the WSManager only reads BlockEvents and Score.
type WSConn struct {
	url    string
	cfg    WSConnConfig
	logger *zap.Logger

	mu    sync.Mutex
	state WSState
	conn  *websocket.Conn

	score             int
	consecutive429    int
	frameErrorStreak  int
	reconnectAttempts int
	heartbeatFailures int

	blockCh chan BlockEvent

	shutdownFlag atomic.Bool
	connectLock  sync.Mutex // prevents two overlapping connect attempts on this URL

	nextID atomic.Int64
}

// NewWSConn builds a connection in the Disconnected state; call Run to
// start its lifecycle.
func NewWSConn(url string, cfg WSConnConfig, logger *zap.Logger) *WSConn {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSConn{
		url:     url,
		cfg:     cfg,
		logger:  logger,
		state:   Disconnected,
		score:   100,
		blockCh: make(chan BlockEvent, 64),
	}
}

// State returns the current state.
func (c *WSConn) State() WSState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Score returns the current endpoint score (0-100).
func (c *WSConn) Score() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.score
}

func (c *WSConn) setState(s WSState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Blocks returns the channel of forwarded block events.
func (c *WSConn) Blocks() <-chan BlockEvent { return c.blockCh }

// Run drives the full state machine lifecycle until Shutdown is called.
// It is meant to be started in its own goroutine by the WSManager.
func (c *WSConn) Run(ctx context.Context) {
	for {
		if c.shutdownFlag.Load() || ctx.Err() != nil {
			c.closeSocket()
			c.setState(Disconnected)
			return
		}

		switch c.State() {
		case Disconnected:
			c.setState(Connecting)
		case Connecting:
			if c.connect(ctx) {
				c.setState(Connected)
				c.reconnectAttempts = 0
			} else {
				c.reconnectAttempts++
				if c.reconnectAttempts >= c.cfg.MaxReconnectAttempts {
					c.setState(CircuitOpen)
				} else {
					c.setState(Reconnecting)
				}
			}
		case Connected:
			c.runConnected(ctx)
		case Reconnecting:
			c.waitReconnectDelay(ctx)
			if c.shutdownFlag.Load() {
				return
			}
			c.setState(Connecting)
		case CircuitOpen:
			c.waitCircuitCooldown(ctx)
			if c.shutdownFlag.Load() {
				return
			}
			c.reconnectAttempts = 0
			c.setState(Disconnected)
		}
	}
}

// connect dials the endpoint and confirms liveness with a block-number
// query within InitialConnectionTimeout, per spec.md §4.1.
func (c *WSConn) connect(ctx context.Context) bool {
	c.connectLock.Lock()
	defer c.connectLock.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.InitialConnectionTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		c.logger.Warn("ws dial failed", zap.String("url", c.url), zap.Error(err))
		c.applyFailurePenalty()
		if rateLimitMessage(err.Error()) {
			c.consecutive429++
		}
		return false
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if _, err := c.request(dialCtx, "eth_blockNumber", nil); err != nil {
		c.logger.Warn("ws handshake probe failed", zap.String("url", c.url), zap.Error(err))
		c.closeSocket()
		c.applyFailurePenalty()
		return false
	}

	if _, err := c.request(dialCtx, "eth_subscribe", []any{"newHeads"}); err != nil {
		c.logger.Warn("ws newHeads subscribe failed", zap.String("url", c.url), zap.Error(err))
		c.closeSocket()
		c.applyFailurePenalty()
		return false
	}

	c.consecutive429 = 0
	c.frameErrorStreak = 0
	c.applySuccessBonus()
	return true
}

// runConnected reads frames, forwards block notifications, and heartbeats
// every HeartbeatInterval; two consecutive heartbeat failures or any read
// error forces Reconnecting.
func (c *WSConn) runConnected(ctx context.Context) {
	heartbeat := time.NewTicker(c.cfg.HeartbeatInterval)
	refresh := time.NewTicker(c.cfg.ProactiveRefreshInterval)
	defer heartbeat.Stop()
	defer refresh.Stop()

	msgCh := make(chan []byte, 16)
	errCh := make(chan error, 1)
	go c.readLoop(msgCh, errCh)

	for {
		select {
		case <-ctx.Done():
			c.closeSocket()
			c.setState(Disconnected)
			return
		case err := <-errCh:
			c.logger.Warn("ws read loop ended", zap.String("url", c.url), zap.Error(err))
			c.closeSocket()
			c.applyFailurePenalty()
			c.setState(Reconnecting)
			return
		case msg := <-msgCh:
			if event, ok := parseNewHeadsNotification(msg); ok {
				select {
				case c.blockCh <- event:
				default:
					c.logger.Warn("block event channel full, dropping", zap.String("url", c.url))
				}
			}
		case <-heartbeat.C:
			hbCtx, cancel := context.WithTimeout(ctx, c.cfg.HeartbeatTimeout)
			_, err := c.request(hbCtx, "eth_blockNumber", nil)
			cancel()
			if err != nil {
				c.heartbeatFailures++
				c.logger.Warn("ws heartbeat failed", zap.String("url", c.url), zap.Int("failures", c.heartbeatFailures))
				if c.heartbeatFailures >= 2 {
					c.closeSocket()
					c.applyFailurePenalty()
					c.setState(Reconnecting)
					return
				}
			} else {
				c.heartbeatFailures = 0
				c.applySuccessBonus()
			}
		case <-refresh.C:
			if c.State() == Connected {
				c.logger.Info("ws proactive refresh", zap.String("url", c.url))
				c.closeSocket()
				c.setState(Reconnecting)
				return
			}
		}
	}
}

func (c *WSConn) readLoop(out chan<- []byte, errCh chan<- error) {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			errCh <- fmt.Errorf("ws connection closed")
			return
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			errCh <- err
			return
		}
		select {
		case out <- msg:
		default:
		}
	}
}

// waitReconnectDelay implements spec.md §4.1's adaptive backoff: base *
// 2^attempts + jitter, doubled on frame errors, multiplied by
// 2^consecutive_429s (capped at 5 min) on rate-limit errors, capped at
// ReconnectMaxDelay.
func (c *WSConn) waitReconnectDelay(ctx context.Context) {
	base := c.cfg.ReconnectBaseDelay
	if c.frameErrorStreak > 0 {
		base *= time.Duration(1 << uint(min(c.frameErrorStreak, 10)))
	}

	delay := base * time.Duration(1<<uint(min(c.reconnectAttempts, 20)))
	if c.consecutive429 > 0 {
		multiplier := time.Duration(1 << uint(min(c.consecutive429, 10)))
		delay = base * multiplier
	}
	if delay > c.cfg.ReconnectMaxDelay {
		delay = c.cfg.ReconnectMaxDelay
	}

	jitter := time.Duration(rand.Float64() * c.cfg.JitterFactor * float64(delay))
	total := delay + jitter

	select {
	case <-ctx.Done():
	case <-time.After(total):
	}
}

func (c *WSConn) waitCircuitCooldown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.cfg.CircuitBreakerCooldown):
	}
}

func (c *WSConn) applySuccessBonus() {
	c.mu.Lock()
	c.score += 5
	if c.score > 100 {
		c.score = 100
	}
	c.mu.Unlock()
}

func (c *WSConn) applyFailurePenalty() {
	c.mu.Lock()
	c.score -= 20
	if c.score < 0 {
		c.score = 0
	}
	c.mu.Unlock()
}

// closeSocket closes the socket whenever one exists, including during a
// failed handshake in connect; with no socket it does nothing.
func (c *WSConn) closeSocket() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Shutdown is idempotent and gates all further scheduled reconnects.
func (c *WSConn) Shutdown() {
	c.shutdownFlag.Store(true)
	c.closeSocket()
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// request sends one JSON-RPC 2.0 request over the live socket and waits
// synchronously for its matching response. The WS sub-pool needs this raw
// control (rather than ethclient's subscription wrapper) precisely because
// the state machine must observe handshake/heartbeat failures directly.
func (c *WSConn) request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("ws: not connected")
	}

	id := c.nextID.Add(1)
	req := jsonRPCRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		_ = conn.SetReadDeadline(deadline)
	}

	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("ws write: %w", err)
	}

	var resp jsonRPCResponse
	if err := conn.ReadJSON(&resp); err != nil {
		c.frameErrorStreak++
		return nil, fmt.Errorf("%w: %v", ErrWSFrame, err)
	}
	c.frameErrorStreak = 0
	if resp.Error != nil {
		if rateLimitMessage(resp.Error.Message) {
			c.consecutive429++
		}
		return nil, fmt.Errorf("ws rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

// ErrWSFrame marks a frame decode failure in request; it is not mapped to
// types.ErrWsFrameError.
var ErrWSFrame = fmt.Errorf("ws frame error")

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// parseNewHeadsNotification decodes a raw WS message as an eth_subscribe
// "newHeads" notification, returning the decoded block event.
func parseNewHeadsNotification(raw []byte) (BlockEvent, bool) {
	var env struct {
		Method string `json:"method"`
		Params struct {
			Result struct {
				Number string `json:"number"`
				Hash   string `json:"hash"`
			} `json:"result"`
		} `json:"params"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || env.Method != "eth_subscription" {
		return BlockEvent{}, false
	}
	num, ok := parseHexU64(env.Params.Result.Number)
	if !ok {
		return BlockEvent{}, false
	}
	return BlockEvent{Number: num, Hash: env.Params.Result.Hash, TimestampMs: time.Now().UnixMilli()}, true
}

func parseHexU64(s string) (uint64, bool) {
	if len(s) < 3 || s[0] != '0' || s[1] != 'x' {
		return 0, false
	}
	var v uint64
	for _, c := range s[2:] {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint64(c - '0')
		case c >= 'a' && c <= 'f':
			v |= uint64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v |= uint64(c-'A') + 10
		default:
			return 0, false
		}
	}
	return v, true
}
