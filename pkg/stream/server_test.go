// Tests for the streaming server
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package stream

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func publishedSource() *SnapshotSource {
	src := NewSnapshotSource()
	src.Publish(map[string]any{
		"bridge": map[string]any{"state": "ready", "valid": true},
		"imu/head_imu": map[string]any{
			"values":    []float64{0.1, 0.2, 0.3, 1, 2, 3, 4, 5, 6, 7, 8, 9},
			"timestamp": 12.5,
		},
		"joints": map[string]any{
			"names":      []string{"hip", "knee"},
			"positions":  []float64{0.5, -0.5},
			"velocities": []float64{0, 0},
			"timestamp":  12.5,
		},
	})
	return src
}

func newTestServer() *Server {
	return New(Config{
		Addr:              ":8551",
		Source:            publishedSource(),
		BroadcastInterval: 20 * time.Millisecond,
	})
}

func TestSnapshotSource(t *testing.T) {
	src := publishedSource()
	if src.BridgeState() != "ready" {
		t.Errorf("state = %q", src.BridgeState())
	}
	keys := src.SensorKeys()
	if len(keys) != 2 || keys[0] != "imu/head_imu" || keys[1] != "joints" {
		t.Errorf("keys = %v", keys)
	}
	full := src.SensorStatus("imu/head_imu", nil)
	if full == nil || full["timestamp"] != 12.5 {
		t.Errorf("full status = %v", full)
	}
	filtered := src.SensorStatus("joints", []string{"positions"})
	if len(filtered) != 1 {
		t.Errorf("filtered status = %v", filtered)
	}
	if src.SensorStatus("nope", nil) != nil {
		t.Error("unknown key should return nil")
	}

	empty := NewSnapshotSource()
	if empty.BridgeState() != "unconfigured" {
		t.Errorf("empty state = %q", empty.BridgeState())
	}
}

func TestServerInfo(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest("GET", "/server/info", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	result, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatal("response missing 'result' field")
	}
	if result["bridge_state"] != "ready" {
		t.Errorf("expected bridge_state 'ready', got %v", result["bridge_state"])
	}
	if result["bridge_connected"] != true {
		t.Errorf("expected bridge_connected true, got %v", result["bridge_connected"])
	}
}

func TestBridgeInfo(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest("GET", "/bridge/info", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	result := resp["result"].(map[string]any)
	if result["state"] != "ready" {
		t.Errorf("expected state 'ready', got %v", result["state"])
	}
	if result["sensor_count"].(float64) != 2 {
		t.Errorf("expected sensor_count 2, got %v", result["sensor_count"])
	}
}

func TestSensorsList(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest("GET", "/bridge/sensors/list", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	result := resp["result"].(map[string]any)
	sensors, ok := result["sensors"].([]any)
	if !ok || len(sensors) != 2 {
		t.Fatalf("sensors = %v", result["sensors"])
	}
}

func TestSensorsQuery(t *testing.T) {
	s := newTestServer()
	body := bytes.NewBufferString(`{"sensors":{"imu/head_imu":null,"joints":["positions"],"missing":null}}`)
	req := httptest.NewRequest("POST", "/bridge/sensors/query", body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	result := resp["result"].(map[string]any)
	status, ok := result["status"].(map[string]any)
	if !ok {
		t.Fatal("result missing 'status' field")
	}
	if _, ok := status["imu/head_imu"]; !ok {
		t.Error("status missing imu entry")
	}
	joints, ok := status["joints"].(map[string]any)
	if !ok {
		t.Fatal("status missing joints entry")
	}
	if _, ok := joints["timestamp"]; ok {
		t.Error("field filter should have dropped 'timestamp'")
	}
	if _, ok := status["missing"]; ok {
		t.Error("unknown sensors must be absent from the result")
	}
}

func TestSensorsQueryBadRequest(t *testing.T) {
	s := newTestServer()
	body := bytes.NewBufferString(`{"sensors": "not-an-object"}`)
	req := httptest.NewRequest("POST", "/bridge/sensors/query", body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestJSONRPC(t *testing.T) {
	s := newTestServer()

	testCases := []struct {
		name   string
		method string
		params map[string]any
	}{
		{"server.info", "server.info", nil},
		{"bridge.info", "bridge.info", nil},
		{"sensors.list", "sensors.list", nil},
		{"sensors.query", "sensors.query", map[string]any{"sensors": map[string]any{"joints": nil}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reqBody := map[string]any{
				"jsonrpc": "2.0",
				"method":  tc.method,
				"id":      1,
			}
			if tc.params != nil {
				reqBody["params"] = tc.params
			}

			bodyBytes, _ := json.Marshal(reqBody)
			req := httptest.NewRequest("POST", "/jsonrpc", bytes.NewReader(bodyBytes))
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rec.Code)
			}

			var resp jsonRPCResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.JSONRPC != "2.0" {
				t.Errorf("expected jsonrpc '2.0', got %s", resp.JSONRPC)
			}
			if resp.Error != nil {
				t.Errorf("unexpected error: %v", resp.Error)
			}
			if resp.Result == nil {
				t.Error("expected result, got nil")
			}
		})
	}
}

func TestJSONRPCUnknownMethod(t *testing.T) {
	s := newTestServer()
	body := bytes.NewBufferString(`{"jsonrpc":"2.0","method":"sensors.teleport","id":1}`)
	req := httptest.NewRequest("POST", "/jsonrpc", body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp jsonRPCResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error == nil {
		t.Fatal("expected a JSON-RPC error")
	}
}

func TestWebSocket(t *testing.T) {
	s := newTestServer()
	s.running.Store(true)

	server := httptest.NewServer(s.Handler())
	defer server.Close()

	wsURL := "ws" + server.URL[4:] + "/websocket"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect WebSocket: %v", err)
	}
	defer conn.Close()

	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "server.info",
		"id":      1,
	}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("failed to send message: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}

	var resp jsonRPCResponse
	if err := json.Unmarshal(message, &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error != nil {
		t.Errorf("unexpected error: %v", resp.Error)
	}
	if resp.Result == nil {
		t.Error("expected result, got nil")
	}
}

func TestWebSocketSubscription(t *testing.T) {
	s := newTestServer()
	s.running.Store(true)
	go s.broadcastLoop()
	defer s.running.Store(false)

	server := httptest.NewServer(s.Handler())
	defer server.Close()

	wsURL := "ws" + server.URL[4:] + "/websocket"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect WebSocket: %v", err)
	}
	defer conn.Close()

	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "sensors.subscribe",
		"params": map[string]any{
			"sensors": map[string]any{
				"imu/head_imu": nil,
				"joints":       []string{"positions"},
			},
		},
		"id": 1,
	}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("failed to send message: %v", err)
	}

	// Initial response carries the subscribed snapshot.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var resp jsonRPCResponse
	if err := json.Unmarshal(message, &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	// The broadcast loop follows with notify_sensor_update.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("no sensor update received: %v", err)
	}
	var notification map[string]any
	if err := json.Unmarshal(message, &notification); err != nil {
		t.Fatalf("failed to decode notification: %v", err)
	}
	if notification["method"] != "notify_sensor_update" {
		t.Errorf("expected method 'notify_sensor_update', got %v", notification["method"])
	}
	params, ok := notification["params"].([]any)
	if !ok || len(params) != 2 {
		t.Fatalf("params = %v", notification["params"])
	}
	status := params[0].(map[string]any)
	if _, ok := status["imu/head_imu"]; !ok {
		t.Error("update missing subscribed imu entry")
	}
}
