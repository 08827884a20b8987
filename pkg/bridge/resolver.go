// Capability resolution against the borrowed driver pool
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package bridge

import (
	"sensor-bridge-go/pkg/driver"
	berrors "sensor-bridge-go/pkg/errors"
)

// Channel-count identity constants. A scalar sensor handle carries no type
// field: the channel count it reports is the only proof that the declared
// sensor class is actually wired to that key. A 12-channel generic stream is
// taken to be an IMU (rpy, accelerometer, gyroscope, magnetometer packed
// 4x3); a 6-channel generic stream is a cartesian wrench; a 6-channel analog
// stream is a six-axis force/torque sensor.
const (
	IMUChannels               = 12
	CartesianWrenchChannels   = 6
	AnalogForceTorqueChannels = 6
)

// Sensor category names used in error reporting and status keys.
const (
	CategoryJoints             = "joints"
	CategoryIMU                = "imu"
	CategoryAccelerometer      = "accelerometer"
	CategoryGyroscope          = "gyroscope"
	CategoryOrientationSensor  = "orientation_sensor"
	CategoryMagnetometer       = "magnetometer"
	CategorySixAxisForceTorque = "six_axis_force_torque"
	CategoryCartesianWrench    = "cartesian_wrench"
	CategoryRGBCamera          = "rgb_camera"
	CategoryDepthCamera        = "depth_camera"
)

// resolveGenericSensor finds the pool handle whose key equals the logical
// sensor name and exposes the generic scalar-channel capability with the
// expected channel count. A key match without the capability is always an
// error, never a silent skip.
func resolveGenericSensor(pool driver.List, category, name string, wantChannels int) (driver.GenericSensor, error) {
	h := pool.FindKey(name)
	if h == nil {
		return nil, berrors.ResolutionError(category, name, "no driver handle with matching key")
	}
	sensor, ok := h.Device.(driver.GenericSensor)
	if !ok {
		return nil, berrors.CapabilityViewError(category, name, "generic scalar-channel")
	}
	channels, err := sensor.GenericSensorChannels()
	if err != nil {
		return nil, berrors.SensorReadError(category, name, err)
	}
	if channels != wantChannels {
		return nil, berrors.ChannelMismatchError(category, name, wantChannels, channels)
	}
	return sensor, nil
}

// resolveAnalogSensor is the analog scalar-channel counterpart of
// resolveGenericSensor.
func resolveAnalogSensor(pool driver.List, category, name string, wantChannels int) (driver.AnalogSensor, error) {
	h := pool.FindKey(name)
	if h == nil {
		return nil, berrors.ResolutionError(category, name, "no driver handle with matching key")
	}
	sensor, ok := h.Device.(driver.AnalogSensor)
	if !ok {
		return nil, berrors.CapabilityViewError(category, name, "analog scalar-channel")
	}
	if channels := sensor.AnalogSensorChannels(); channels != wantChannels {
		return nil, berrors.ChannelMismatchError(category, name, wantChannels, channels)
	}
	return sensor, nil
}

// resolveSensorArray finds the single pool handle serving the requested
// multi-sensor-array kind. At most one such handle is expected; the first
// match wins. The bool reports whether any handle served the kind - a
// missing array is not an error by itself (the force/torque fallback
// depends on that).
func resolveSensorArray(pool driver.List, kind driver.ArrayKind) (driver.SensorArray, bool) {
	for _, h := range pool {
		if h == nil {
			continue
		}
		dev, ok := h.Device.(driver.ArrayDevice)
		if !ok {
			continue
		}
		if arr := dev.Array(kind); arr != nil {
			return arr, true
		}
	}
	return nil, false
}

// arrayNames enumerates the sensor names reported by an array. Entries whose
// name cannot be read are skipped; the declared-name check downstream turns
// any resulting gap into an attach failure.
func arrayNames(arr driver.SensorArray) []string {
	names := make([]string, 0, arr.Size())
	for i := 0; i < arr.Size(); i++ {
		name, err := arr.SensorName(i)
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	return names
}

// arrayBinding ties a resolved multi-sensor array to the declared names it
// serves, mapping each logical name to its index inside the array.
type arrayBinding struct {
	array driver.SensorArray
	index map[string]int
}

// bindArray resolves every declared name to its index in the array. Any
// declared name the array does not enumerate fails the binding; the final
// count check keeps duplicated declared names from slipping through.
func bindArray(arr driver.SensorArray, category string, declared []string) (*arrayBinding, error) {
	b := &arrayBinding{array: arr, index: make(map[string]int, len(declared))}

	byName := make(map[string]int, arr.Size())
	for i := 0; i < arr.Size(); i++ {
		name, err := arr.SensorName(i)
		if err != nil {
			continue
		}
		byName[name] = i
	}

	for _, name := range declared {
		idx, ok := byName[name]
		if !ok {
			return nil, berrors.ResolutionError(category, name, "not reported by the multi-sensor array")
		}
		b.index[name] = idx
	}
	if len(b.index) != len(declared) {
		return nil, berrors.CompletenessError(category, len(declared), len(b.index))
	}
	return b, nil
}

// resolveControlBoard finds the single pool handle exposing both the
// axis-naming and the timed-encoder capabilities.
func resolveControlBoard(pool driver.List) (driver.AxisInfo, driver.EncodersTimed, string, error) {
	for _, h := range pool {
		if h == nil {
			continue
		}
		axis, okAxis := h.Device.(driver.AxisInfo)
		encoders, okEnc := h.Device.(driver.EncodersTimed)
		if okAxis && okEnc {
			return axis, encoders, h.Key, nil
		}
	}
	return nil, nil, "", berrors.ResolutionError(CategoryJoints, "",
		"no driver handle exposes both axis-info and timed-encoder capabilities")
}

// resolveFrameGrabber resolves a declared RGB camera name by exact key match.
func resolveFrameGrabber(pool driver.List, name string) (driver.FrameGrabber, error) {
	h := pool.FindKey(name)
	if h == nil {
		return nil, berrors.ResolutionError(CategoryRGBCamera, name, "no driver handle with matching key")
	}
	cam, ok := h.Device.(driver.FrameGrabber)
	if !ok {
		return nil, berrors.CapabilityViewError(CategoryRGBCamera, name, "frame-grabber")
	}
	return cam, nil
}

// resolveDepthGrabber resolves a declared depth camera name by exact key match.
func resolveDepthGrabber(pool driver.List, name string) (driver.DepthGrabber, error) {
	h := pool.FindKey(name)
	if h == nil {
		return nil, berrors.ResolutionError(CategoryDepthCamera, name, "no driver handle with matching key")
	}
	cam, ok := h.Device.(driver.DepthGrabber)
	if !ok {
		return nil, berrors.CapabilityViewError(CategoryDepthCamera, name, "depth-camera")
	}
	return cam, nil
}
