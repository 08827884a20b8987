// bridgectl is a command line client for the sensor-bridge streaming API.
//
// The server address comes from the --server flag, the BRIDGECTL_SERVER
// environment variable or a bridgectl config file, in that order.
//
// Examples:
//
//	# Bridge state and sensor count
//	bridgectl status
//
//	# List every published sensor key
//	bridgectl sensors
//
//	# One-shot read of a sensor
//	bridgectl read imu/head_imu
//
//	# Stream updates for two sensors
//	bridgectl watch joints six_axis_force_torque/ft_left
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bridgectl",
		Short:         "Query and watch a running sensor-bridge daemon",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().String("server", "http://localhost:7130", "bridge API address")
	viper.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	viper.SetDefault("server", "http://localhost:7130")
	viper.SetEnvPrefix("bridgectl")
	viper.AutomaticEnv()

	if home, err := os.UserHomeDir(); err == nil {
		viper.SetConfigName(".bridgectl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(home)
		_ = viper.ReadInConfig()
	}

	root.AddCommand(newStatusCmd(), newSensorsCmd(), newReadCmd(), newWatchCmd())
	return root
}

func serverURL() string {
	return strings.TrimRight(viper.GetString("server"), "/")
}

// apiResponse is the REST endpoints' envelope.
type apiResponse struct {
	Result map[string]any `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeAPIResponse(resp *http.Response) (map[string]any, error) {
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("server error %d: %s", out.Error.Code, out.Error.Message)
	}
	return out.Result, nil
}

func apiGet(path string) (map[string]any, error) {
	resp, err := http.Get(serverURL() + path)
	if err != nil {
		return nil, err
	}
	return decodeAPIResponse(resp)
}

func apiPost(path string, body any) (map[string]any, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL()+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return decodeAPIResponse(resp)
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show bridge state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := apiGet("/bridge/info")
			if err != nil {
				return err
			}
			srv, err := apiGet("/server/info")
			if err != nil {
				return err
			}

			fmt.Printf("State:    %v\n", info["state"])
			fmt.Printf("Message:  %v\n", info["state_message"])
			fmt.Printf("Sensors:  %v\n", info["sensor_count"])
			fmt.Printf("Host:     %v\n", info["hostname"])
			fmt.Printf("Server:   %v\n", srv["server_version"])
			fmt.Printf("Clients:  %v\n", srv["websocket_count"])
			return nil
		},
	}
}

func newSensorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sensors",
		Short: "List published sensor keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := apiGet("/bridge/sensors/list")
			if err != nil {
				return err
			}
			sensors, _ := result["sensors"].([]any)
			for _, s := range sensors {
				fmt.Println(s)
			}
			return nil
		},
	}
}

func newReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read KEY [KEY...]",
		Short: "Read the latest sample of one or more sensors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selection := make(map[string]any, len(args))
			for _, key := range args {
				selection[key] = nil
			}

			result, err := apiPost("/bridge/sensors/query", map[string]any{"sensors": selection})
			if err != nil {
				return err
			}
			status, _ := result["status"].(map[string]any)

			for _, key := range args {
				entry, ok := status[key].(map[string]any)
				if !ok {
					return fmt.Errorf("unknown sensor: %s", key)
				}
				fmt.Printf("%s:\n", key)
				printEntry(entry, "  ")
			}
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [KEY...]",
		Short: "Stream sensor updates (all sensors when no keys given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := args
			if len(keys) == 0 {
				result, err := apiGet("/bridge/sensors/list")
				if err != nil {
					return err
				}
				sensors, _ := result["sensors"].([]any)
				for _, s := range sensors {
					if key, ok := s.(string); ok {
						keys = append(keys, key)
					}
				}
			}
			if len(keys) == 0 {
				return fmt.Errorf("no sensors published")
			}
			return watchSensors(keys)
		},
	}
}

// watchSensors subscribes over WebSocket and prints updates until
// interrupted.
func watchSensors(keys []string) error {
	wsURL, err := websocketURL(serverURL())
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", wsURL, err)
	}
	defer conn.Close()

	selection := make(map[string]any, len(keys))
	for _, key := range keys {
		selection[key] = nil
	}
	subscribe := map[string]any{
		"jsonrpc": "2.0",
		"method":  "sensors.subscribe",
		"params":  map[string]any{"sensors": selection},
		"id":      1,
	}
	if err := conn.WriteJSON(subscribe); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	msgCh := make(chan map[string]any)
	errCh := make(chan error, 1)
	go func() {
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				errCh <- err
				return
			}
			msgCh <- msg
		}
	}()

	for {
		select {
		case <-sigCh:
			return nil
		case err := <-errCh:
			return err
		case msg := <-msgCh:
			printUpdate(msg)
		}
	}
}

// websocketURL converts the HTTP server address to the WebSocket endpoint.
func websocketURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server address %q: %w", server, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/websocket"
	return u.String(), nil
}

// printUpdate renders one message from the subscription stream.
func printUpdate(msg map[string]any) {
	now := time.Now().Format("15:04:05.000")

	// Initial subscribe response carries the snapshot under result.status.
	if result, ok := msg["result"].(map[string]any); ok {
		if status, ok := result["status"].(map[string]any); ok {
			printStatus(now, status)
		}
		return
	}

	if msg["method"] != "notify_sensor_update" {
		return
	}
	params, ok := msg["params"].([]any)
	if !ok || len(params) == 0 {
		return
	}
	status, ok := params[0].(map[string]any)
	if !ok {
		return
	}
	printStatus(now, status)
}

func printStatus(stamp string, status map[string]any) {
	keys := make([]string, 0, len(status))
	for key := range status {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		entry, ok := status[key].(map[string]any)
		if !ok {
			continue
		}
		fmt.Printf("[%s] %s:\n", stamp, key)
		printEntry(entry, "  ")
	}
}

func printEntry(entry map[string]any, indent string) {
	fields := make([]string, 0, len(entry))
	for f := range entry {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, f := range fields {
		value, err := json.Marshal(entry[f])
		if err != nil {
			continue
		}
		fmt.Printf("%s%s: %s\n", indent, f, value)
	}
}
