// Package server exposes a running decode over HTTP: /status, /config and
// /healthz for polling, /ws for a live feed of frame records and progress
// snapshots.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Monitor struct {
	upgrader   websocket.Upgrader
	clients    map[*websocket.Conn]*sync.Mutex
	mu         sync.Mutex
	statusFn   func() map[string]any
	snapshotFn func() any
	configFn   func() map[string]any
}

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

// New builds a monitor. statusFn backs /status, configFn backs /config and
// the greeting sent to each websocket client, snapshotFn answers a client's
// {"type":"snapshot_request"}. Any of them may be nil.
func New(statusFn func() map[string]any, snapshotFn func() any, configFn func() map[string]any) *Monitor {
	return &Monitor{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:    make(map[*websocket.Conn]*sync.Mutex),
		statusFn:   statusFn,
		snapshotFn: snapshotFn,
		configFn:   configFn,
	}
}

func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", m.handleWS)
	mux.HandleFunc("/healthz", m.handleHealth)
	mux.HandleFunc("/config", m.handleConfig)
	mux.HandleFunc("/status", m.handleStatus)
	return mux
}

// Run serves on port until ctx is done, relaying every value from messages
// to all websocket clients as JSON.
func (m *Monitor) Run(ctx context.Context, port int, messages <-chan any) error {
	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	go m.Broadcast(ctx, messages)

	logrus.WithFields(logrus.Fields{
		"function": "Run",
		"port":     port,
	}).Info("Monitor listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (m *Monitor) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	writeMu := &sync.Mutex{}
	m.mu.Lock()
	m.clients[conn] = writeMu
	m.mu.Unlock()

	greeting := map[string]any{"type": "config"}
	if m.configFn != nil {
		for k, v := range m.configFn() {
			greeting[k] = v
		}
	}
	_ = writeJSON(conn, writeMu, greeting)

	go func() {
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(pingEvery)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if err := writeMessage(conn, writeMu, websocket.PingMessage, nil); err != nil {
						_ = conn.Close()
						return
					}
				}
			}
		}()
		defer close(done)
		defer m.removeClient(conn)
		for {
			messageType, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			var request struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(payload, &request); err != nil {
				continue
			}
			if request.Type != "snapshot_request" || m.snapshotFn == nil {
				continue
			}
			if snapshot := m.snapshotFn(); snapshot != nil {
				_ = writeJSON(conn, writeMu, snapshot)
			}
		}
	}()
}

func (m *Monitor) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (m *Monitor) handleConfig(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	payload := map[string]any{}
	if m.configFn != nil {
		payload = m.configFn()
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func (m *Monitor) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	payload := map[string]any{}
	if m.statusFn != nil {
		payload = m.statusFn()
	}
	payload["ws_clients"] = m.ClientCount()
	_ = json.NewEncoder(w).Encode(payload)
}

// Broadcast relays messages until ctx is done or messages closes. Clients
// that fail a write are dropped.
func (m *Monitor) Broadcast(ctx context.Context, messages <-chan any) {
	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-messages:
			if !ok {
				return
			}
			payload, err := json.Marshal(message)
			if err != nil {
				continue
			}
			var stale []*websocket.Conn
			m.mu.Lock()
			for conn, writeMu := range m.clients {
				if err := writeMessage(conn, writeMu, websocket.TextMessage, payload); err != nil {
					stale = append(stale, conn)
				}
			}
			m.mu.Unlock()
			for _, conn := range stale {
				m.removeClient(conn)
			}
		}
	}
}

func (m *Monitor) removeClient(conn *websocket.Conn) {
	m.mu.Lock()
	delete(m.clients, conn)
	m.mu.Unlock()
	conn.Close()
}

func (m *Monitor) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

func writeJSON(conn *websocket.Conn, writeMu *sync.Mutex, payload any) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(payload)
}

func writeMessage(conn *websocket.Conn, writeMu *sync.Mutex, messageType int, payload []byte) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, payload)
}
