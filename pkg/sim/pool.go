// Config-driven simulated driver pool
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package sim

import (
	"fmt"
	"strings"

	"sensor-bridge-go/pkg/config"
	"sensor-bridge-go/pkg/driver"
)

// SectionPrefix marks the config sections describing simulated devices.
// Each [sim_device <key>] section becomes one pool handle whose key is the
// part after the prefix.
const SectionPrefix = "sim_device "

// PoolFromConfig builds a driver pool from the sim_device sections of a
// config. The section's type option selects the simulated device:
//
//	control_board        axes: <list>
//	sensor_array         accelerometers/gyroscopes/magnetometers/
//	                     orientation_sensors/force_torque_sensors: <lists>
//	imu                  12-channel generic stream
//	cartesian_wrench     6-channel generic stream
//	analog_force_torque  6-channel analog stream
//	rgb_camera           width: <int>  height: <int>
//	depth_camera         width: <int>  height: <int>
func PoolFromConfig(cfg *config.Config) (driver.List, error) {
	var pool driver.List
	for _, section := range cfg.GetPrefixSections(SectionPrefix) {
		key := strings.TrimSpace(strings.TrimPrefix(section.GetName(), SectionPrefix))
		if key == "" {
			return nil, fmt.Errorf("sim: section [%s] has no device key", section.GetName())
		}
		dev, err := buildDevice(key, section)
		if err != nil {
			return nil, err
		}
		pool = append(pool, &driver.Handle{Key: key, Device: dev})
	}
	return pool, nil
}

func buildDevice(key string, section *config.Section) (any, error) {
	devType, err := section.Get("type")
	if err != nil {
		return nil, err
	}
	switch devType {
	case "control_board":
		axes, err := section.GetList("axes", ",")
		if err != nil {
			return nil, err
		}
		if len(axes) == 0 {
			return nil, fmt.Errorf("sim: control board %q declares no axes", key)
		}
		return NewControlBoard(axes), nil
	case "sensor_array":
		return buildArrayDevice(key, section)
	case "imu":
		return NewGenericDevice(12), nil
	case "cartesian_wrench":
		return NewGenericDevice(6), nil
	case "analog_force_torque":
		return NewAnalogDevice(6), nil
	case "rgb_camera":
		w, h, err := cameraDims(section)
		if err != nil {
			return nil, err
		}
		return NewCamera(w, h), nil
	case "depth_camera":
		w, h, err := cameraDims(section)
		if err != nil {
			return nil, err
		}
		return NewDepthCamera(w, h), nil
	}
	return nil, fmt.Errorf("sim: device %q has unknown type %q", key, devType)
}

// arrayKindOptions maps a sensor_array section option to the array kind its
// names register under.
var arrayKindOptions = []struct {
	option string
	kind   driver.ArrayKind
}{
	{"accelerometers", driver.ArrayAccelerometers},
	{"gyroscopes", driver.ArrayGyroscopes},
	{"magnetometers", driver.ArrayMagnetometers},
	{"orientation_sensors", driver.ArrayOrientationSensors},
	{"force_torque_sensors", driver.ArraySixAxisForceTorque},
}

func buildArrayDevice(key string, section *config.Section) (*SensorArrayDevice, error) {
	dev := NewSensorArrayDevice()
	total := 0
	for _, opt := range arrayKindOptions {
		if !section.HasOption(opt.option) {
			continue
		}
		names, err := section.GetList(opt.option, ",")
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			dev.AddSensor(opt.kind, name)
			total++
		}
	}
	if total == 0 {
		return nil, fmt.Errorf("sim: sensor array %q declares no sensors", key)
	}
	return dev, nil
}

func cameraDims(section *config.Section) (int, int, error) {
	w, err := section.GetInt("width")
	if err != nil {
		return 0, 0, err
	}
	h, err := section.GetInt("height")
	if err != nil {
		return 0, 0, err
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("sim: camera size %dx%d is not positive", w, h)
	}
	return w, h, nil
}
