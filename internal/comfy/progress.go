package comfy

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ProgressEvent is one advisory progress update from the backend's
// websocket.  Progress is informational only; run completion is always
// decided by the polling state machine, never by these events.
type ProgressEvent struct {
	JobID string
	Node  string
	Value int
	Max   int
	Done  bool
}

// ProgressListener maintains a websocket connection to the backend's /ws
// endpoint and forwards progress events for a client id.  Connection loss is
// retried with exponential backoff.
type ProgressListener struct {
	wsURL     string
	onEvent   func(ProgressEvent)
	conn      *websocket.Conn
	done      chan struct{}
	baseDelay time.Duration
	maxDelay  time.Duration
	maxRetry  int
	retries   int
	mu        sync.Mutex
}

// NewProgressListener builds a listener for the backend at baseURL using the
// given client id.  Events are delivered on the reader goroutine.
func NewProgressListener(baseURL, clientID string, onEvent func(ProgressEvent)) *ProgressListener {
	ws := strings.Replace(strings.TrimRight(baseURL, "/"), "http", "ws", 1)
	return &ProgressListener{
		wsURL:     ws + "/ws?clientId=" + url.QueryEscape(clientID),
		onEvent:   onEvent,
		done:      make(chan struct{}),
		baseDelay: time.Second,
		maxDelay:  time.Minute,
		maxRetry:  5,
	}
}

// Start connects and begins reading in a background goroutine.
func (p *ProgressListener) Start() error {
	conn, _, err := websocket.DefaultDialer.Dial(p.wsURL, nil)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
	go p.readLoop()
	return nil
}

// Close tears down the connection and stops reconnecting.
func (p *ProgressListener) Close() {
	close(p.done)
	p.mu.Lock()
	if p.conn != nil {
		p.conn.Close()
	}
	p.mu.Unlock()
}

func (p *ProgressListener) readLoop() {
	for {
		_, message, err := p.conn.ReadMessage()
		if err != nil {
			select {
			case <-p.done:
				return
			default:
			}
			slog.Warn("progress socket read error", "error", err)
			if !p.reconnect() {
				return
			}
			continue
		}
		p.handleMessage(message)
	}
}

func (p *ProgressListener) reconnect() bool {
	for {
		p.retries++
		if p.retries > p.maxRetry {
			slog.Error("progress socket gave up reconnecting", "retries", p.maxRetry)
			return false
		}
		delay := p.baseDelay * time.Duration(math.Pow(2, float64(p.retries-1)))
		if delay > p.maxDelay {
			delay = p.maxDelay
		}
		select {
		case <-p.done:
			return false
		case <-time.After(delay):
		}
		conn, _, err := websocket.DefaultDialer.Dial(p.wsURL, nil)
		if err != nil {
			slog.Warn("progress socket reconnect failed", "error", err, "attempt", p.retries)
			continue
		}
		p.mu.Lock()
		p.conn = conn
		p.mu.Unlock()
		p.retries = 0
		return true
	}
}

func (p *ProgressListener) handleMessage(raw []byte) {
	var msg struct {
		Type string `json:"type"`
		Data struct {
			PromptID string  `json:"prompt_id"`
			Node     *string `json:"node"`
			Value    int     `json:"value"`
			Max      int     `json:"max"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Debug("unparseable progress message", "error", err)
		return
	}
	if p.onEvent == nil {
		return
	}

	switch msg.Type {
	case "progress":
		p.onEvent(ProgressEvent{
			JobID: msg.Data.PromptID,
			Value: msg.Data.Value,
			Max:   msg.Data.Max,
		})
	case "executing":
		if msg.Data.Node == nil {
			p.onEvent(ProgressEvent{JobID: msg.Data.PromptID, Done: true})
		} else {
			p.onEvent(ProgressEvent{JobID: msg.Data.PromptID, Node: *msg.Data.Node})
		}
	}
}
