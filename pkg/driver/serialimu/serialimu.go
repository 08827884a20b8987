// Serial IMU driver
//
// Reads the framed binary stream of a serial inertial measurement unit and
// exposes it to the bridge as a 12-channel generic sensor. Each frame
// carries the device's 32-bit tick and twelve float32 channels (rpy,
// angular velocity, linear acceleration, magnetometer). Device ticks are
// mapped onto the host timeline with a clock estimator so sample stamps
// stay comparable with the rest of the bridge.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package serialimu

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	"sensor-bridge-go/pkg/log"
	"sensor-bridge-go/pkg/protocol"
	"sensor-bridge-go/pkg/serial"
	"sensor-bridge-go/pkg/timesync"
)

// Channels is the number of channels in the IMU stream.
const Channels = 12

// payloadSize is one tick stamp plus Channels float32 values.
const payloadSize = 4 + Channels*4

// IMU is a serial-attached inertial measurement unit. A background goroutine
// decodes the device's frame stream; getters serve the latest sample.
type IMU struct {
	logger *log.Logger
	conn   io.ReadCloser
	clock  *timesync.Estimator
	mono   *timesync.MonotonicTime

	mu         sync.RWMutex
	sample     [Channels]float64
	sampleTime float64
	frames     uint64
	dropped    uint64
	lastSeq    int
	haveSeq    bool
	closed     bool

	wg sync.WaitGroup
}

// Open opens the serial port described by cfg and starts reading from the
// device. tickFreq is the device's nominal tick frequency in Hz.
func Open(cfg serial.Config, tickFreq float64) (*IMU, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	return New(port, tickFreq), nil
}

// New starts an IMU reading from an already open connection. Useful for
// sockets and tests; Open is the serial-port entry point.
func New(conn io.ReadCloser, tickFreq float64) *IMU {
	d := &IMU{
		logger: log.GetLogger("serialimu"),
		conn:   conn,
		clock:  timesync.New(tickFreq),
		mono:   timesync.NewMonotonicTime(),
	}
	d.wg.Add(1)
	go d.readLoop()
	return d
}

// readLoop decodes frames from the connection until it is closed.
func (d *IMU) readLoop() {
	defer d.wg.Done()

	var pending []byte
	chunk := make([]byte, 4096)
	for {
		n, err := d.conn.Read(chunk)
		if n > 0 {
			pending = append(pending, chunk[:n]...)
			pending = d.drainFrames(pending)
		}
		if err != nil {
			d.mu.RLock()
			closed := d.closed
			d.mu.RUnlock()
			if !closed && err != io.EOF {
				d.logger.WithError(err).Warn("imu read failed, stopping reader")
			}
			return
		}
	}
}

// drainFrames consumes every complete frame in buf and returns the leftover.
func (d *IMU) drainFrames(buf []byte) []byte {
	for {
		payload, seq, n := protocol.CheckFrame(buf)
		if n == 0 {
			return buf
		}
		buf = buf[n:]
		if payload == nil {
			d.logger.Debug("skipped %d bytes of corrupt frame data", n)
			continue
		}
		d.handleFrame(payload, seq)
	}
}

// handleFrame decodes one sample payload and publishes it.
func (d *IMU) handleFrame(payload []byte, seq int) {
	if len(payload) != payloadSize {
		d.logger.Warn("unexpected frame payload size %d, want %d", len(payload), payloadSize)
		return
	}

	tick32 := binary.LittleEndian.Uint32(payload[:4])
	now := d.mono.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frames == 0 {
		d.clock.Initialize(int64(tick32), now)
	} else {
		d.clock.HandleProbe(tick32, now, now)
		// Gap 0 is a retransmitted sequence number, not a loss.
		gap := (seq - d.lastSeq) & protocol.FrameSeqMask
		if d.haveSeq && gap > 1 {
			d.dropped += uint64(gap - 1)
		}
	}
	d.lastSeq = seq
	d.haveSeq = true

	for i := 0; i < Channels; i++ {
		bits := binary.LittleEndian.Uint32(payload[4+i*4 : 8+i*4])
		d.sample[i] = float64(math.Float32frombits(bits))
	}
	d.sampleTime = d.clock.HostTime(d.clock.LastTick())
	d.frames++
}

// GenericSensorChannels returns the channel count of the stream.
func (d *IMU) GenericSensorChannels() (int, error) {
	return Channels, nil
}

// ReadGenericSensor copies the latest sample into dst and returns the sample
// receive time on the host timeline.
func (d *IMU) ReadGenericSensor(dst []float64) (float64, error) {
	if len(dst) != Channels {
		return 0, fmt.Errorf("serialimu: destination has %d channels, want %d", len(dst), Channels)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.frames == 0 {
		return 0, fmt.Errorf("serialimu: no sample received yet")
	}
	copy(dst, d.sample[:])
	return d.sampleTime, nil
}

// Frames returns the number of valid frames decoded so far.
func (d *IMU) Frames() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.frames
}

// Dropped returns the number of frames lost to sequence gaps.
func (d *IMU) Dropped() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dropped
}

// TimeSync returns the device clock estimator for diagnostics.
func (d *IMU) TimeSync() *timesync.Estimator {
	return d.clock
}

// Close stops the reader and closes the connection.
func (d *IMU) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	err := d.conn.Close()
	d.wg.Wait()
	return err
}
