// Package bridge reconciles a user-declared inventory of robot sensors and
// joints against a pool of borrowed hardware driver handles and exposes a
// uniform polling surface over the result.
//
// Lifecycle: New -> Initialize (configuration snapshot) -> SetDriverList
// (attach) -> polling getters. Attach validates every declared sensor
// against the pool and fails atomically: on any failure the bridge refuses
// to serve data until a later attach succeeds.
//
// The bridge performs no internal locking. Attach and the getters must be
// called from one control-loop goroutine; off-loop consumers read published
// snapshots instead.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package bridge

import (
	"fmt"

	"sensor-bridge-go/pkg/config"
	"sensor-bridge-go/pkg/driver"
	berrors "sensor-bridge-go/pkg/errors"
	"sensor-bridge-go/pkg/log"
	"sensor-bridge-go/pkg/pool"
)

// State is the bridge lifecycle state.
type State int

const (
	StateUnconfigured State = iota
	StateConfigured
	StateAttachFailed
	StateReady
)

// String returns the state name used in status reporting.
func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StateAttachFailed:
		return "attach_failed"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// SensorBridge is the facade owning the configuration snapshot, the resolved
// handle maps and the measurement buffers.
type SensorBridge struct {
	log     *log.Logger
	meta    MetaData
	state   State
	handles *handleMaps
	buffers *measurementBuffers
}

// New creates an unconfigured bridge.
func New() *SensorBridge {
	return &SensorBridge{
		log:     log.GetLogger("bridge"),
		state:   StateUnconfigured,
		handles: newHandleMaps(),
		buffers: newMeasurementBuffers(),
	}
}

// Initialize loads the configuration snapshot. It must be called before
// SetDriverList; calling it again replaces the snapshot and drops any
// previous attach.
func (b *SensorBridge) Initialize(cfg *config.Config) error {
	meta, err := loadMetaData(cfg)
	if err != nil {
		b.state = StateUnconfigured
		return err
	}
	b.meta = meta
	b.handles = newHandleMaps()
	b.buffers = newMeasurementBuffers()
	b.state = StateConfigured
	b.log.WithFields(log.Fields{
		"joints":        meta.Options.Joints,
		"imus":          len(meta.Lists.IMUs),
		"force_torques": len(meta.Lists.SixAxisForceTorques),
		"rgb_cameras":   len(meta.Lists.RGBCameras),
		"depth_cameras": len(meta.Lists.DepthCameras),
	}).Info("bridge configured")
	return nil
}

// SetDriverList attaches the bridge to a driver pool, running the full
// resolution and validation sequence. It is idempotent: every call discards
// all previously borrowed handles and buffers before resolving anew, so no
// handle aliases across attach generations. On failure the bridge enters
// the attach-failed state and partially populated maps stay unreachable
// through the facade.
func (b *SensorBridge) SetDriverList(pool driver.List) error {
	if b.state == StateUnconfigured {
		return berrors.NotReadyError("SetDriverList")
	}

	b.handles = newHandleMaps()
	b.buffers = newMeasurementBuffers()

	if err := b.attachAll(pool); err != nil {
		b.state = StateAttachFailed
		b.log.WithError(err).Error("attach failed")
		return err
	}
	b.state = StateReady
	b.log.Info("all sensor categories attached")
	return nil
}

// IsValid reports whether the bridge has been initialized and every enabled
// category attached. Only then may the polling getters be called.
func (b *SensorBridge) IsValid() bool {
	return b.state == StateReady
}

// State returns the current lifecycle state.
func (b *SensorBridge) State() State {
	return b.state
}

// MetaData returns a copy of the configuration snapshot.
func (b *SensorBridge) MetaData() MetaData {
	return b.meta.clone()
}

// Advance runs one polling step, refreshing every attached sensor's buffer
// in place. Per-sensor read failures are aggregated and returned; buffers of
// failed sensors keep their previous sample.
func (b *SensorBridge) Advance() error {
	if !b.IsValid() {
		return berrors.NotReadyError("Advance")
	}
	return b.readAll()
}

func (b *SensorBridge) checkValid(operation string) error {
	if !b.IsValid() {
		return berrors.NotReadyError(operation)
	}
	return nil
}

// checkJoints extends checkValid for the joint getters: with joint streaming
// disabled no control board is attached and there is nothing to read.
func (b *SensorBridge) checkJoints(operation string) error {
	if err := b.checkValid(operation); err != nil {
		return err
	}
	if b.handles.encoders == nil {
		return berrors.New(berrors.ErrNotReady, operation+": joint streaming is not enabled")
	}
	return nil
}

// Name-list accessors. All return copies.

func (b *SensorBridge) JointNames() []string        { return copyStrings(b.meta.Lists.Joints) }
func (b *SensorBridge) IMUNames() []string          { return copyStrings(b.meta.Lists.IMUs) }
func (b *SensorBridge) AccelerometerNames() []string { return copyStrings(b.meta.Lists.Accelerometers) }
func (b *SensorBridge) GyroscopeNames() []string    { return copyStrings(b.meta.Lists.Gyroscopes) }
func (b *SensorBridge) OrientationSensorNames() []string {
	return copyStrings(b.meta.Lists.OrientationSensors)
}
func (b *SensorBridge) MagnetometerNames() []string { return copyStrings(b.meta.Lists.Magnetometers) }
func (b *SensorBridge) SixAxisForceTorqueNames() []string {
	return copyStrings(b.meta.Lists.SixAxisForceTorques)
}
func (b *SensorBridge) CartesianWrenchNames() []string {
	return copyStrings(b.meta.Lists.CartesianWrenches)
}
func (b *SensorBridge) RGBCameraNames() []string   { return copyStrings(b.meta.Lists.RGBCameras) }
func (b *SensorBridge) DepthCameraNames() []string { return copyStrings(b.meta.Lists.DepthCameras) }

// JointPositions reads the latest joint positions into dst in declared
// joint order and returns the sample receive time.
func (b *SensorBridge) JointPositions(dst []float64) (float64, error) {
	if err := b.checkJoints("JointPositions"); err != nil {
		return 0, err
	}
	if len(dst) != b.meta.Options.Joints {
		return 0, fmt.Errorf("bridge: destination holds %d joints, %d declared", len(dst), b.meta.Options.Joints)
	}
	if err := b.readJoints(); err != nil {
		return 0, err
	}
	copy(dst, b.buffers.jointPositions)
	return b.buffers.jointsStamp, nil
}

// JointVelocities reads the latest joint velocities into dst in declared
// joint order and returns the sample receive time.
func (b *SensorBridge) JointVelocities(dst []float64) (float64, error) {
	if err := b.checkJoints("JointVelocities"); err != nil {
		return 0, err
	}
	if len(dst) != b.meta.Options.Joints {
		return 0, fmt.Errorf("bridge: destination holds %d joints, %d declared", len(dst), b.meta.Options.Joints)
	}
	if err := b.readJoints(); err != nil {
		return 0, err
	}
	copy(dst, b.buffers.jointVelocities)
	return b.buffers.jointsStamp, nil
}

// JointPosition reads a single declared joint's position by name.
func (b *SensorBridge) JointPosition(name string) (float64, float64, error) {
	if err := b.checkJoints("JointPosition"); err != nil {
		return 0, 0, err
	}
	for declared, joint := range b.meta.Lists.Joints {
		if joint == name {
			if err := b.readJoints(); err != nil {
				return 0, 0, err
			}
			return b.buffers.jointPositions[declared], b.buffers.jointsStamp, nil
		}
	}
	return 0, 0, berrors.UnknownSensorError(CategoryJoints, name)
}

// IMUMeasurement reads the 12-channel IMU sample (rpy, accelerometer,
// gyroscope, magnetometer) for the named sensor into dst.
func (b *SensorBridge) IMUMeasurement(name string, dst []float64) (float64, error) {
	if err := b.checkValid("IMUMeasurement"); err != nil {
		return 0, err
	}
	sensor, ok := b.handles.imus[name]
	if !ok {
		return 0, berrors.UnknownSensorError(CategoryIMU, name)
	}
	buf := b.buffers.imus[name]
	if err := b.readGeneric(CategoryIMU, name, sensor, buf); err != nil {
		return 0, err
	}
	copy(dst, buf.data)
	return buf.stamp, nil
}

func (b *SensorBridge) readArraySensor(operation, category string, binding *arrayBinding,
	buffers map[string]*scalarBuffer, name string, dst []float64) (float64, error) {
	if err := b.checkValid(operation); err != nil {
		return 0, err
	}
	if binding == nil {
		return 0, berrors.UnknownSensorError(category, name)
	}
	idx, ok := binding.index[name]
	if !ok {
		return 0, berrors.UnknownSensorError(category, name)
	}
	buf := buffers[name]
	stamp, err := binding.array.ReadSensor(idx, buf.data)
	if err != nil {
		return 0, berrors.SensorReadError(category, name, err)
	}
	buf.stamp = stamp
	copy(dst, buf.data)
	return buf.stamp, nil
}

// LinearAccelerometerMeasurement reads the named three-axis accelerometer.
func (b *SensorBridge) LinearAccelerometerMeasurement(name string, dst []float64) (float64, error) {
	return b.readArraySensor("LinearAccelerometerMeasurement", CategoryAccelerometer,
		b.handles.accelerometers, b.buffers.accelerometers, name, dst)
}

// GyroscopeMeasurement reads the named three-axis gyroscope.
func (b *SensorBridge) GyroscopeMeasurement(name string, dst []float64) (float64, error) {
	return b.readArraySensor("GyroscopeMeasurement", CategoryGyroscope,
		b.handles.gyroscopes, b.buffers.gyroscopes, name, dst)
}

// MagnetometerMeasurement reads the named three-axis magnetometer.
func (b *SensorBridge) MagnetometerMeasurement(name string, dst []float64) (float64, error) {
	return b.readArraySensor("MagnetometerMeasurement", CategoryMagnetometer,
		b.handles.magnetometers, b.buffers.magnetometers, name, dst)
}

// OrientationSensorMeasurement reads the named orientation sensor (rpy).
func (b *SensorBridge) OrientationSensorMeasurement(name string, dst []float64) (float64, error) {
	return b.readArraySensor("OrientationSensorMeasurement", CategoryOrientationSensor,
		b.handles.orientations, b.buffers.orientations, name, dst)
}

// SixAxisForceTorqueMeasurement reads the named force/torque sensor from
// whichever source it resolved against at attach time.
func (b *SensorBridge) SixAxisForceTorqueMeasurement(name string, dst []float64) (float64, error) {
	if err := b.checkValid("SixAxisForceTorqueMeasurement"); err != nil {
		return 0, err
	}
	if b.handles.ftArray != nil {
		if _, ok := b.handles.ftArray.index[name]; ok {
			return b.readArraySensor("SixAxisForceTorqueMeasurement", CategorySixAxisForceTorque,
				b.handles.ftArray, b.buffers.forceTorques, name, dst)
		}
	}
	sensor, ok := b.handles.analogFTs[name]
	if !ok {
		return 0, berrors.UnknownSensorError(CategorySixAxisForceTorque, name)
	}
	buf := b.buffers.forceTorques[name]
	stamp, err := sensor.ReadAnalogSensor(buf.data)
	if err != nil {
		return 0, berrors.SensorReadError(CategorySixAxisForceTorque, name, err)
	}
	buf.stamp = stamp
	copy(dst, buf.data)
	return buf.stamp, nil
}

// CartesianWrenchMeasurement reads the named 6-channel cartesian wrench.
func (b *SensorBridge) CartesianWrenchMeasurement(name string, dst []float64) (float64, error) {
	if err := b.checkValid("CartesianWrenchMeasurement"); err != nil {
		return 0, err
	}
	sensor, ok := b.handles.wrenches[name]
	if !ok {
		return 0, berrors.UnknownSensorError(CategoryCartesianWrench, name)
	}
	buf := b.buffers.wrenches[name]
	if err := b.readGeneric(CategoryCartesianWrench, name, sensor, buf); err != nil {
		return 0, err
	}
	copy(dst, buf.data)
	return buf.stamp, nil
}

// ColorImage captures the latest frame of the named RGB camera into img.
func (b *SensorBridge) ColorImage(name string, img *driver.Image) (float64, error) {
	if err := b.checkValid("ColorImage"); err != nil {
		return 0, err
	}
	cam, ok := b.handles.rgb[name]
	if !ok {
		return 0, berrors.UnknownSensorError(CategoryRGBCamera, name)
	}
	buf := b.buffers.rgbImages[name]
	stamp, err := cam.CaptureImage(buf.img)
	if err != nil {
		return 0, berrors.SensorReadError(CategoryRGBCamera, name, err)
	}
	buf.stamp = stamp
	img.CopyFrom(buf.img)
	return buf.stamp, nil
}

// DepthImage captures the latest frame of the named depth camera into img.
func (b *SensorBridge) DepthImage(name string, img *driver.Image) (float64, error) {
	if err := b.checkValid("DepthImage"); err != nil {
		return 0, err
	}
	cam, ok := b.handles.depth[name]
	if !ok {
		return 0, berrors.UnknownSensorError(CategoryDepthCamera, name)
	}
	buf := b.buffers.depthImages[name]
	stamp, err := cam.CaptureDepth(buf.img)
	if err != nil {
		return 0, berrors.SensorReadError(CategoryDepthCamera, name, err)
	}
	buf.stamp = stamp
	img.CopyFrom(buf.img)
	return buf.stamp, nil
}

// StatusSnapshot returns the latest buffered samples keyed "category/name".
// It reads only the buffers (refreshed by Advance), never the handles, so
// the control loop can publish the result to off-loop consumers. The map
// comes from the status pool; whoever retires the snapshot may return it.
func (b *SensorBridge) StatusSnapshot() map[string]any {
	status := pool.GetStatusMap()
	status["bridge"] = map[string]any{
		"state": b.state.String(),
		"valid": b.IsValid(),
	}
	if !b.IsValid() {
		return status
	}

	if b.meta.Options.KinematicsEnabled {
		status[CategoryJoints] = map[string]any{
			"names":      copyStrings(b.meta.Lists.Joints),
			"positions":  copyFloats(b.buffers.jointPositions),
			"velocities": copyFloats(b.buffers.jointVelocities),
			"timestamp":  b.buffers.jointsStamp,
		}
	}
	scalarGroups := []struct {
		category string
		buffers  map[string]*scalarBuffer
	}{
		{CategoryIMU, b.buffers.imus},
		{CategoryAccelerometer, b.buffers.accelerometers},
		{CategoryGyroscope, b.buffers.gyroscopes},
		{CategoryMagnetometer, b.buffers.magnetometers},
		{CategoryOrientationSensor, b.buffers.orientations},
		{CategorySixAxisForceTorque, b.buffers.forceTorques},
		{CategoryCartesianWrench, b.buffers.wrenches},
	}
	for _, g := range scalarGroups {
		for name, buf := range g.buffers {
			status[g.category+"/"+name] = map[string]any{
				"values":    copyFloats(buf.data),
				"timestamp": buf.stamp,
			}
		}
	}
	for name, buf := range b.buffers.rgbImages {
		status[CategoryRGBCamera+"/"+name] = map[string]any{
			"width":     buf.img.Width,
			"height":    buf.img.Height,
			"timestamp": buf.stamp,
		}
	}
	for name, buf := range b.buffers.depthImages {
		status[CategoryDepthCamera+"/"+name] = map[string]any{
			"width":     buf.img.Width,
			"height":    buf.img.Height,
			"timestamp": buf.stamp,
		}
	}
	return status
}

func copyFloats(src []float64) []float64 {
	out := make([]float64, len(src))
	copy(out, src)
	return out
}
