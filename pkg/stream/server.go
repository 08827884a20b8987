// Package stream serves bridge measurements to off-loop consumers over HTTP
// and WebSocket. REST endpoints answer one-shot queries; the WebSocket
// endpoint speaks JSON-RPC 2.0 and pushes notify_sensor_update notifications
// to subscribed clients at a fixed rate.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/multierr"

	"sensor-bridge-go/pkg/log"
)

// Version reported by server.info.
const Version = "sensor-bridge-go-0.1.0"

// Server publishes bridge snapshots over HTTP and WebSocket.
type Server struct {
	log    *log.Logger
	source BridgeSource

	httpServer *http.Server
	addr       string

	metricsHandler http.Handler

	wsUpgrader websocket.Upgrader
	wsClients  map[int64]*WSClient
	wsClientMu sync.RWMutex
	nextWSID   int64

	// clientID -> sensor key -> fields ("" key subscribes to everything)
	subscriptions map[int64]map[string][]string
	subMu         sync.RWMutex

	broadcastInterval time.Duration
	running           atomic.Bool
	startTime         time.Time
}

// Config holds server configuration.
type Config struct {
	// Addr is the HTTP listen address (e.g. ":8551").
	Addr string

	// Source supplies bridge state and sensor snapshots.
	Source BridgeSource

	// BroadcastInterval is the notify_sensor_update period. Zero selects
	// 250ms.
	BroadcastInterval time.Duration

	// MetricsHandler, when set, is mounted at /metrics.
	MetricsHandler http.Handler
}

// New creates a streaming server.
func New(cfg Config) *Server {
	interval := cfg.BroadcastInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	s := &Server{
		log:               log.GetLogger("stream"),
		source:            cfg.Source,
		addr:              cfg.Addr,
		metricsHandler:    cfg.MetricsHandler,
		wsClients:         make(map[int64]*WSClient),
		subscriptions:     make(map[int64]map[string][]string),
		broadcastInterval: interval,
		startTime:         time.Now(),
	}
	s.wsUpgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return s
}

// Handler builds the HTTP routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/jsonrpc", s.handleJSONRPC)
	mux.HandleFunc("/websocket", s.handleWebSocket)

	mux.HandleFunc("/server/info", s.handleServerInfo)
	mux.HandleFunc("/bridge/info", s.handleBridgeInfo)
	mux.HandleFunc("/bridge/sensors/list", s.handleSensorsList)
	mux.HandleFunc("/bridge/sensors/query", s.handleSensorsQuery)

	if s.metricsHandler != nil {
		mux.Handle("/metrics", s.metricsHandler)
	}

	return s.corsMiddleware(mux)
}

// Start runs the server. It blocks until the listener fails or Stop is
// called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	s.running.Store(true)
	s.log.Info("streaming server starting on %s", s.addr)

	go s.broadcastLoop()

	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down, closing every WebSocket client.
func (s *Server) Stop() error {
	s.running.Store(false)

	var errs error
	s.wsClientMu.Lock()
	for _, client := range s.wsClients {
		errs = multierr.Append(errs, client.Close())
	}
	s.wsClients = make(map[int64]*WSClient)
	s.wsClientMu.Unlock()

	if s.httpServer != nil {
		errs = multierr.Append(errs, s.httpServer.Close())
	}
	return errs
}

// ClientCount returns the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.wsClientMu.RLock()
	defer s.wsClientMu.RUnlock()
	return len(s.wsClients)
}

// JSON-RPC 2.0 structures

type jsonRPCRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
	ID      any            `json:"id,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	Result  any           `json:"result,omitempty"`
	Error   *jsonRPCError `json:"error,omitempty"`
	ID      any           `json:"id,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req jsonRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONRPCError(w, nil, -32700, "Parse error")
		return
	}

	result, err := s.dispatchMethod(req.Method, req.Params, nil)
	if err != nil {
		s.writeJSONRPCError(w, req.ID, -32000, err.Error())
		return
	}

	s.writeJSONRPCResult(w, req.ID, result)
}

func (s *Server) dispatchMethod(method string, params map[string]any, client *WSClient) (any, error) {
	switch method {
	case "server.info":
		return s.methodServerInfo()
	case "bridge.info":
		return s.methodBridgeInfo()
	case "sensors.list":
		return s.methodSensorsList()
	case "sensors.query":
		return s.methodSensorsQuery(params)
	case "sensors.subscribe":
		return s.methodSensorsSubscribe(params, client)
	case "server.connection.identify":
		return s.methodIdentify(params)
	default:
		return nil, fmt.Errorf("method not found: %s", method)
	}
}

func (s *Server) methodServerInfo() (any, error) {
	hostname, _ := os.Hostname()
	state := s.source.BridgeState()

	return map[string]any{
		"bridge_connected": state == "ready",
		"bridge_state":     state,
		"websocket_count":  s.ClientCount(),
		"server_version":   Version,
		"api_version":      []int{1, 0, 0},
		"hostname":         hostname,
	}, nil
}

func (s *Server) methodBridgeInfo() (any, error) {
	hostname, _ := os.Hostname()
	state := s.source.BridgeState()
	message := "Bridge is ready"
	if state != "ready" {
		message = "Bridge is not ready"
	}

	return map[string]any{
		"state":         state,
		"state_message": message,
		"sensor_count":  len(s.source.SensorKeys()),
		"hostname":      hostname,
	}, nil
}

func (s *Server) methodSensorsList() (any, error) {
	return map[string]any{"sensors": s.source.SensorKeys()}, nil
}

// parseSensorParams extracts the sensor key -> fields selection from
// request params. A null field list selects all fields.
func parseSensorParams(params map[string]any) (map[string][]string, error) {
	sensorsParam, ok := params["sensors"]
	if !ok {
		return nil, fmt.Errorf("missing 'sensors' parameter")
	}
	sensors, ok := sensorsParam.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("'sensors' must be an object")
	}

	selection := make(map[string][]string, len(sensors))
	for key, fieldsVal := range sensors {
		var fields []string
		if fieldList, ok := fieldsVal.([]any); ok {
			for _, f := range fieldList {
				if str, ok := f.(string); ok {
					fields = append(fields, str)
				}
			}
		}
		selection[key] = fields
	}
	return selection, nil
}

func (s *Server) methodSensorsQuery(params map[string]any) (any, error) {
	selection, err := parseSensorParams(params)
	if err != nil {
		return nil, err
	}

	status := make(map[string]any)
	for key, fields := range selection {
		if entry := s.source.SensorStatus(key, fields); entry != nil {
			status[key] = entry
		}
	}

	return map[string]any{
		"eventtime": s.eventtime(),
		"status":    status,
	}, nil
}

func (s *Server) methodSensorsSubscribe(params map[string]any, client *WSClient) (any, error) {
	if client == nil {
		return nil, fmt.Errorf("subscription requires WebSocket connection")
	}

	selection, err := parseSensorParams(params)
	if err != nil {
		return nil, err
	}

	s.subMu.Lock()
	s.subscriptions[client.id] = selection
	s.subMu.Unlock()

	// Return the initial snapshot of the subscribed sensors.
	return s.methodSensorsQuery(params)
}

func (s *Server) methodIdentify(params map[string]any) (any, error) {
	clientName := "unknown"
	if name, ok := params["client_name"].(string); ok {
		clientName = name
	}
	s.log.Info("client identified as %s", clientName)
	return map[string]any{
		"connection_id": atomic.AddInt64(&s.nextWSID, 0),
	}, nil
}

func (s *Server) eventtime() float64 {
	return float64(time.Since(s.startTime).Milliseconds()) / 1000.0
}

// REST endpoint handlers

func (s *Server) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	result, err := s.methodServerInfo()
	if err != nil {
		s.writeJSONError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"result": result})
}

func (s *Server) handleBridgeInfo(w http.ResponseWriter, r *http.Request) {
	result, err := s.methodBridgeInfo()
	if err != nil {
		s.writeJSONError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"result": result})
}

func (s *Server) handleSensorsList(w http.ResponseWriter, r *http.Request) {
	result, err := s.methodSensorsList()
	if err != nil {
		s.writeJSONError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"result": result})
}

func (s *Server) handleSensorsQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var params map[string]any
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeJSONError(w, err)
		return
	}

	result, err := s.methodSensorsQuery(params)
	if err != nil {
		s.writeJSONError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"result": result})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// JSON response helpers

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeJSONError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    -32000,
			"message": err.Error(),
		},
	})
}

func (s *Server) writeJSONRPCResult(w http.ResponseWriter, id any, result any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jsonRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	})
}

func (s *Server) writeJSONRPCError(w http.ResponseWriter, id any, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jsonRPCResponse{
		JSONRPC: "2.0",
		Error:   &jsonRPCError{Code: code, Message: message},
		ID:      id,
	})
}

// WSClient represents a WebSocket client connection.
type WSClient struct {
	id     int64
	conn   *websocket.Conn
	server *Server
	sendCh chan any
	done   chan struct{}
	mu     sync.Mutex
}

func (s *Server) newWSClient(conn *websocket.Conn) *WSClient {
	id := atomic.AddInt64(&s.nextWSID, 1)
	return &WSClient{
		id:     id,
		conn:   conn,
		server: s,
		sendCh: make(chan any, 64),
		done:   make(chan struct{}),
	}
}

// Send queues a message for the client, dropping it when the queue is full.
func (c *WSClient) Send(msg any) {
	select {
	case c.sendCh <- msg:
	case <-c.done:
	default:
		c.server.log.Warn("dropping message to client %d (channel full)", c.id)
	}
}

// Close closes the client connection.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return nil // Already closed
	default:
		close(c.done)
	}

	return c.conn.Close()
}

// readPump reads messages from the WebSocket connection.
func (c *WSClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.Close()
	}()

	c.conn.SetReadLimit(512 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.log.WithError(err).Warn("websocket read error")
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump sends queued messages and keepalive pings to the connection.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				c.server.log.WithError(err).Warn("websocket write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var req jsonRPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendError(nil, -32700, "Parse error")
		return
	}

	result, err := c.server.dispatchMethod(req.Method, req.Params, c)
	if err != nil {
		c.sendError(req.ID, -32000, err.Error())
		return
	}

	c.Send(jsonRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      req.ID,
	})
}

func (c *WSClient) sendError(id any, code int, message string) {
	c.Send(jsonRPCResponse{
		JSONRPC: "2.0",
		Error:   &jsonRPCError{Code: code, Message: message},
		ID:      id,
	})
}

// handleWebSocket upgrades the connection and runs the client pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := s.newWSClient(conn)

	s.wsClientMu.Lock()
	s.wsClients[client.id] = client
	s.wsClientMu.Unlock()

	s.log.Info("websocket client %d connected", client.id)

	go client.writePump()

	client.readPump() // Blocks until the connection closes
}

func (s *Server) removeClient(client *WSClient) {
	s.wsClientMu.Lock()
	delete(s.wsClients, client.id)
	s.wsClientMu.Unlock()

	s.subMu.Lock()
	delete(s.subscriptions, client.id)
	s.subMu.Unlock()

	s.log.Info("websocket client %d disconnected", client.id)
}

// broadcastLoop pushes sensor updates to subscribed clients at the
// configured rate.
func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(s.broadcastInterval)
	defer ticker.Stop()

	for s.running.Load() {
		<-ticker.C
		s.broadcastSensorUpdates()
	}
}

func (s *Server) broadcastSensorUpdates() {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	eventtime := s.eventtime()

	for clientID, selection := range s.subscriptions {
		s.wsClientMu.RLock()
		client, ok := s.wsClients[clientID]
		s.wsClientMu.RUnlock()

		if !ok {
			continue
		}

		status := make(map[string]any)
		for key, fields := range selection {
			if entry := s.source.SensorStatus(key, fields); entry != nil {
				status[key] = entry
			}
		}
		if len(status) == 0 {
			continue
		}

		client.Send(map[string]any{
			"jsonrpc": "2.0",
			"method":  "notify_sensor_update",
			"params":  []any{status, eventtime},
		})
	}
}
