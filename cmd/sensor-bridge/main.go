// sensor-bridge is the robot sensor bridge daemon.
// It attaches a configured sensor inventory to a device pool, polls every
// attached sensor on a fixed-rate control loop and publishes the samples
// over an HTTP/WebSocket streaming API.
//
// Usage:
//
//	sensor-bridge -config bridge.cfg [options]
//
// Options:
//
//	-config string  Bridge configuration file, .cfg or .yaml (required)
//	-addr string    Streaming API address (default ":7130")
//	-sim            Use simulated devices from [sim_device] sections
//	-poll duration  Sensor polling period (default 10ms)
//	-watch          Reload and re-attach when the config file changes
//	-logfile string Log file path (default: stdout)
//
// Examples:
//
//	# Run against simulated devices
//	sensor-bridge -config bridge.cfg -sim
//
//	# Run against serial sensor heads, re-attaching on config edits
//	sensor-bridge -config bridge.yaml -watch
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sensor-bridge-go/pkg/bridge"
	"sensor-bridge-go/pkg/config"
	"sensor-bridge-go/pkg/driver"
	"sensor-bridge-go/pkg/driver/serialimu"
	"sensor-bridge-go/pkg/metrics"
	"sensor-bridge-go/pkg/reactor"
	"sensor-bridge-go/pkg/serial"
	"sensor-bridge-go/pkg/sim"
	"sensor-bridge-go/pkg/stream"
)

func main() {
	configFile := flag.String("config", "", "Bridge configuration file (required)")
	addr := flag.String("addr", ":7130", "Streaming API address")
	simulate := flag.Bool("sim", false, "Use simulated devices from [sim_device] sections")
	poll := flag.Duration("poll", 10*time.Millisecond, "Sensor polling period")
	broadcast := flag.Duration("broadcast", 250*time.Millisecond, "WebSocket notify period")
	watch := flag.Bool("watch", false, "Reload and re-attach when the config file changes")
	logFile := flag.String("logfile", "", "Log file path (default: stdout)")

	flag.Parse()

	if *configFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -config is required\n")
		flag.Usage()
		os.Exit(1)
	}

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	log.Println("========================================")
	log.Println("Sensor Bridge Starting")
	log.Println("========================================")

	cfg, err := config.LoadFile(*configFile)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	log.Printf("Config: %s", *configFile)
	log.Printf("API: %s", *addr)
	log.Printf("Poll period: %s", *poll)

	br := bridge.New()
	if err := br.Initialize(cfg); err != nil {
		log.Fatalf("Error configuring bridge: %v", err)
	}

	m := metrics.New()

	pool, closePool, err := buildPool(cfg, *simulate)
	if err != nil {
		log.Fatalf("Error building device pool: %v", err)
	}
	defer closePool()
	log.Printf("Device pool: %v", pool.Keys())

	attachStart := time.Now()
	attachErr := br.SetDriverList(pool)
	m.ObserveAttach(time.Since(attachStart), attachErr)
	if attachErr != nil {
		// Stay up in the attach-failed state so the API reports it; a
		// config reload can recover without a restart.
		log.Printf("Attach failed: %v", attachErr)
	} else {
		recordBindings(m, br)
		log.Printf("Attached: %d joints, %d IMUs, %d F/T sensors, %d cameras",
			len(br.JointNames()), len(br.IMUNames()),
			len(br.SixAxisForceTorqueNames()),
			len(br.RGBCameraNames())+len(br.DepthCameraNames()))
	}

	source := stream.NewSnapshotSource()
	source.Publish(br.StatusSnapshot())

	server := stream.New(stream.Config{
		Addr:              *addr,
		Source:            source,
		BroadcastInterval: *broadcast,
		MetricsHandler:    m.Handler(),
	})
	m.RegisterClientCount(server.ClientCount)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Start()
	}()

	// The reactor's dispatch goroutine owns the bridge: polling and
	// re-attaches both run on it.
	r := reactor.New()
	pollPeriod := poll.Seconds()
	r.RegisterTimer(func(eventtime float64) float64 {
		pollOnce(br, m, source)
		return eventtime + pollPeriod
	}, reactor.NOW)
	r.Run()

	var watcher *config.Watcher
	if *watch {
		watcher, err = config.NewWatcher(*configFile, 0, func() {
			if !r.RunAsync(func(eventtime float64) {
				reload(*configFile, *simulate, br, m, source, &pool, &closePool)
			}) {
				log.Printf("Reload dropped: control loop queue full")
			}
		})
		if err != nil {
			log.Fatalf("Error watching config: %v", err)
		}
		defer watcher.Close()
		log.Printf("Watching %s for changes", watcher.Path())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Println("========================================")
	log.Println("Sensor Bridge Ready")
	log.Printf("Streaming API: http://localhost%s", *addr)
	log.Println("Press Ctrl+C to stop")
	log.Println("========================================")

	select {
	case sig := <-sigCh:
		log.Printf("Received %v, shutting down...", sig)
	case err := <-serverErrCh:
		log.Printf("Streaming server stopped: %v", err)
	}

	r.End()
	r.Wait()
	if err := server.Stop(); err != nil {
		log.Printf("Error stopping server: %v", err)
	}
	log.Println("Sensor bridge stopped")
}

// pollOnce advances the bridge one step and publishes the result.
func pollOnce(br *bridge.SensorBridge, m *metrics.Metrics, source *stream.SnapshotSource) {
	if !br.IsValid() {
		return
	}
	start := time.Now()
	err := br.Advance()
	m.ObserveAdvance(time.Since(start), err)
	if err != nil {
		log.Printf("Poll step failed: %v", err)
	}

	snapshot := br.StatusSnapshot()
	for key := range snapshot {
		if key == "bridge" {
			continue
		}
		category := key
		if idx := strings.IndexByte(key, '/'); idx > 0 {
			category = key[:idx]
		}
		m.ObserveRead(category, nil)
	}
	source.Publish(snapshot)
	m.SnapshotsTotal.Inc()
}

// reload re-reads the config, rebuilds the device pool and re-attaches.
// Runs on the control loop goroutine. On failure the bridge is left in
// whatever state the attach sequence reached; the next edit can retry.
func reload(path string, simulate bool, br *bridge.SensorBridge, m *metrics.Metrics,
	source *stream.SnapshotSource, pool *driver.List, closePool *func()) {
	log.Printf("Config changed, reloading %s", path)

	cfg, err := config.LoadFile(path)
	if err != nil {
		log.Printf("Reload failed: %v", err)
		return
	}
	if err := br.Initialize(cfg); err != nil {
		log.Printf("Reload failed: %v", err)
		return
	}

	newPool, newClose, err := buildPool(cfg, simulate)
	if err != nil {
		log.Printf("Reload failed: %v", err)
		return
	}

	(*closePool)()
	*pool = newPool
	*closePool = newClose

	attachStart := time.Now()
	attachErr := br.SetDriverList(newPool)
	m.ObserveAttach(time.Since(attachStart), attachErr)
	if attachErr != nil {
		log.Printf("Re-attach failed: %v", attachErr)
	} else {
		recordBindings(m, br)
		log.Printf("Re-attached to %d devices", len(newPool))
	}
	source.Publish(br.StatusSnapshot())
}

// recordBindings exports the per-category sensor counts.
func recordBindings(m *metrics.Metrics, br *bridge.SensorBridge) {
	m.SetBound(bridge.CategoryJoints, len(br.JointNames()))
	m.SetBound(bridge.CategoryIMU, len(br.IMUNames()))
	m.SetBound(bridge.CategoryAccelerometer, len(br.AccelerometerNames()))
	m.SetBound(bridge.CategoryGyroscope, len(br.GyroscopeNames()))
	m.SetBound(bridge.CategoryMagnetometer, len(br.MagnetometerNames()))
	m.SetBound(bridge.CategoryOrientationSensor, len(br.OrientationSensorNames()))
	m.SetBound(bridge.CategorySixAxisForceTorque, len(br.SixAxisForceTorqueNames()))
	m.SetBound(bridge.CategoryCartesianWrench, len(br.CartesianWrenchNames()))
	m.SetBound(bridge.CategoryRGBCamera, len(br.RGBCameraNames()))
	m.SetBound(bridge.CategoryDepthCamera, len(br.DepthCameraNames()))
}

// buildPool assembles the driver pool. In sim mode devices come from
// [sim_device] sections; otherwise each [serial_device NAME] section opens a
// serial sensor head whose pool key is NAME.
func buildPool(cfg *config.Config, simulate bool) (driver.List, func(), error) {
	if simulate {
		pool, err := sim.PoolFromConfig(cfg)
		return pool, func() {}, err
	}

	var pool driver.List
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}

	for _, sec := range cfg.GetPrefixSections("serial_device ") {
		name := strings.TrimSpace(strings.TrimPrefix(sec.GetName(), "serial_device "))
		devType, err := sec.Get("type", "imu")
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		switch devType {
		case "imu":
			device, err := sec.Get("device")
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			baud, err := sec.GetInt("baud", 921600)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			tickFreq, err := sec.GetFloat("tick_freq", 1000000)
			if err != nil {
				closeAll()
				return nil, nil, err
			}

			scfg := serial.DefaultConfig()
			scfg.Device = device
			scfg.BaudRate = baud
			imu, err := serialimu.Open(scfg, tickFreq)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("[%s]: %w", sec.GetName(), err)
			}
			pool = append(pool, &driver.Handle{Key: name, Device: imu})
			closers = append(closers, imu)
		default:
			closeAll()
			return nil, nil, fmt.Errorf("[%s]: unknown device type %q", sec.GetName(), devType)
		}
	}

	if len(pool) == 0 {
		return nil, nil, fmt.Errorf("no devices configured (use -sim or add [serial_device] sections)")
	}
	return pool, closeAll, nil
}
