// Simulated driver devices for the sensor bridge
//
// Every capability interface in pkg/driver has a simulated implementation
// here, used by the daemon's sim mode and by package tests. Samples are
// deterministic: callers set values explicitly or let the devices synthesize
// slow sinusoids from a tick counter.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package sim

import (
	"fmt"
	"math"
	"sync"
	"time"

	"sensor-bridge-go/pkg/driver"
)

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// ControlBoard simulates a joint control board with a fixed physical axis
// ordering. It implements driver.AxisInfo and driver.EncodersTimed.
type ControlBoard struct {
	mu        sync.Mutex
	axisNames []string
	positions []float64
	speeds    []float64
	tick      int
}

// NewControlBoard creates a board whose physical ordering is the given axis
// name list.
func NewControlBoard(axisNames []string) *ControlBoard {
	return &ControlBoard{
		axisNames: append([]string(nil), axisNames...),
		positions: make([]float64, len(axisNames)),
		speeds:    make([]float64, len(axisNames)),
	}
}

// SetAxis sets the simulated position and speed of one physical axis.
func (cb *ControlBoard) SetAxis(idx int, position, speed float64) {
	cb.mu.Lock()
	cb.positions[idx] = position
	cb.speeds[idx] = speed
	cb.mu.Unlock()
}

func (cb *ControlBoard) Axes() int {
	return len(cb.axisNames)
}

func (cb *ControlBoard) AxisName(idx int) (string, error) {
	if idx < 0 || idx >= len(cb.axisNames) {
		return "", fmt.Errorf("sim: axis index %d out of range", idx)
	}
	return cb.axisNames[idx], nil
}

func (cb *ControlBoard) ReadEncoders(dst []float64) (float64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if len(dst) != len(cb.positions) {
		return 0, fmt.Errorf("sim: encoder destination size %d, board has %d axes", len(dst), len(cb.positions))
	}
	cb.tick++
	copy(dst, cb.positions)
	return nowSeconds(), nil
}

func (cb *ControlBoard) ReadEncoderSpeeds(dst []float64) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if len(dst) != len(cb.speeds) {
		return fmt.Errorf("sim: speed destination size %d, board has %d axes", len(dst), len(cb.speeds))
	}
	copy(dst, cb.speeds)
	return nil
}

// namedChannel is one simulated sensor behind an array.
type namedChannel struct {
	name   string
	values []float64
}

// SensorArrayDevice simulates a multi-sensor-array remapper serving one or
// more array kinds behind a single handle. It implements driver.ArrayDevice.
type SensorArrayDevice struct {
	mu     sync.Mutex
	arrays map[driver.ArrayKind][]namedChannel
}

// NewSensorArrayDevice creates an empty array device.
func NewSensorArrayDevice() *SensorArrayDevice {
	return &SensorArrayDevice{arrays: make(map[driver.ArrayKind][]namedChannel)}
}

// AddSensor registers a named sensor of the given kind, zero-initialized.
func (d *SensorArrayDevice) AddSensor(kind driver.ArrayKind, name string) {
	d.mu.Lock()
	d.arrays[kind] = append(d.arrays[kind], namedChannel{
		name:   name,
		values: make([]float64, kind.Channels()),
	})
	d.mu.Unlock()
}

// SetSensor sets the simulated sample of a named sensor.
func (d *SensorArrayDevice) SetSensor(kind driver.ArrayKind, name string, values []float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.arrays[kind] {
		if d.arrays[kind][i].name == name {
			copy(d.arrays[kind][i].values, values)
			return
		}
	}
}

// Array returns the view for the requested kind, or nil when this device
// serves no sensors of that kind.
func (d *SensorArrayDevice) Array(kind driver.ArrayKind) driver.SensorArray {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.arrays[kind]) == 0 {
		return nil
	}
	return &arrayView{device: d, kind: kind}
}

type arrayView struct {
	device *SensorArrayDevice
	kind   driver.ArrayKind
}

func (v *arrayView) Kind() driver.ArrayKind { return v.kind }

func (v *arrayView) Size() int {
	v.device.mu.Lock()
	defer v.device.mu.Unlock()
	return len(v.device.arrays[v.kind])
}

func (v *arrayView) SensorName(idx int) (string, error) {
	v.device.mu.Lock()
	defer v.device.mu.Unlock()
	sensors := v.device.arrays[v.kind]
	if idx < 0 || idx >= len(sensors) {
		return "", fmt.Errorf("sim: %s array index %d out of range", v.kind, idx)
	}
	return sensors[idx].name, nil
}

func (v *arrayView) ReadSensor(idx int, dst []float64) (float64, error) {
	v.device.mu.Lock()
	defer v.device.mu.Unlock()
	sensors := v.device.arrays[v.kind]
	if idx < 0 || idx >= len(sensors) {
		return 0, fmt.Errorf("sim: %s array index %d out of range", v.kind, idx)
	}
	copy(dst, sensors[idx].values)
	return nowSeconds(), nil
}

// GenericDevice simulates a generic scalar-channel sensor with a fixed
// channel count. It implements driver.GenericSensor.
type GenericDevice struct {
	mu       sync.Mutex
	channels int
	values   []float64
	readErr  error
}

// NewGenericDevice creates a zeroed generic device with the given channel
// count.
func NewGenericDevice(channels int) *GenericDevice {
	return &GenericDevice{channels: channels, values: make([]float64, channels)}
}

// SetValues sets the simulated sample.
func (d *GenericDevice) SetValues(values []float64) {
	d.mu.Lock()
	copy(d.values, values)
	d.mu.Unlock()
}

// FailReads makes every subsequent read return err (nil restores reads).
func (d *GenericDevice) FailReads(err error) {
	d.mu.Lock()
	d.readErr = err
	d.mu.Unlock()
}

func (d *GenericDevice) GenericSensorChannels() (int, error) {
	return d.channels, nil
}

func (d *GenericDevice) ReadGenericSensor(dst []float64) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readErr != nil {
		return 0, d.readErr
	}
	copy(dst, d.values)
	return nowSeconds(), nil
}

// AnalogDevice simulates an analog scalar-channel sensor. It implements
// driver.AnalogSensor.
type AnalogDevice struct {
	mu       sync.Mutex
	channels int
	values   []float64
	readErr  error
}

// NewAnalogDevice creates a zeroed analog device with the given channel
// count.
func NewAnalogDevice(channels int) *AnalogDevice {
	return &AnalogDevice{channels: channels, values: make([]float64, channels)}
}

// SetValues sets the simulated sample.
func (d *AnalogDevice) SetValues(values []float64) {
	d.mu.Lock()
	copy(d.values, values)
	d.mu.Unlock()
}

// FailReads makes every subsequent read return err (nil restores reads).
func (d *AnalogDevice) FailReads(err error) {
	d.mu.Lock()
	d.readErr = err
	d.mu.Unlock()
}

func (d *AnalogDevice) AnalogSensorChannels() int {
	return d.channels
}

func (d *AnalogDevice) ReadAnalogSensor(dst []float64) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readErr != nil {
		return 0, d.readErr
	}
	copy(dst, d.values)
	return nowSeconds(), nil
}

// Camera simulates a frame grabber producing a moving diagonal gradient test
// pattern. The same type backs RGB and depth streams; the pool builder
// registers it under the matching capability.
type Camera struct {
	mu     sync.Mutex
	width  int
	height int
	tick   int
}

// NewCamera creates a camera with the given native resolution.
func NewCamera(width, height int) *Camera {
	return &Camera{width: width, height: height}
}

func (c *Camera) capture(img *driver.Image) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick++
	phase := float64(c.tick) * 0.05
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			img.Set(x, y, math.Abs(math.Sin(phase+float64(x+y)*0.1)))
		}
	}
	return nowSeconds(), nil
}

func (c *Camera) ImageSize() (int, int) { return c.width, c.height }

func (c *Camera) CaptureImage(img *driver.Image) (float64, error) {
	return c.capture(img)
}

// DepthCamera simulates a depth stream. It implements driver.DepthGrabber.
type DepthCamera struct {
	cam Camera
}

// NewDepthCamera creates a depth camera with the given native resolution.
func NewDepthCamera(width, height int) *DepthCamera {
	return &DepthCamera{cam: Camera{width: width, height: height}}
}

func (c *DepthCamera) DepthSize() (int, int) { return c.cam.width, c.cam.height }

func (c *DepthCamera) CaptureDepth(img *driver.Image) (float64, error) {
	return c.cam.capture(img)
}
