// Sensor bridge configuration snapshot
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package bridge

import (
	"sensor-bridge-go/pkg/config"
	berrors "sensor-bridge-go/pkg/errors"
)

// Configuration surface. One section per stream group; the [sensor_bridge]
// section carries the per-group enable flags. An absent enable flag leaves
// the group disabled; a missing required key inside an enabled group is a
// configuration error.
const (
	SectionBridge       = "sensor_bridge"
	SectionControlBoard = "remote_control_board"
	SectionInertials    = "inertial_sensors"
	SectionForceTorque  = "six_axis_force_torque_sensors"
	SectionWrenches     = "cartesian_wrenches"
	SectionCameras      = "cameras"
)

// ImageDim holds camera pixel dimensions from configuration.
type ImageDim struct {
	Width  int
	Height int
}

// SensorLists holds the user-declared logical sensor names per category.
// Order is insertion order from configuration; for joints it defines the
// public index space.
type SensorLists struct {
	Joints              []string
	IMUs                []string
	Accelerometers      []string
	Gyroscopes          []string
	OrientationSensors  []string
	Magnetometers       []string
	SixAxisForceTorques []string
	CartesianWrenches   []string
	RGBCameras          []string
	DepthCameras        []string
}

// Options is the derived per-category configuration, immutable after
// Initialize.
type Options struct {
	KinematicsEnabled         bool
	IMUEnabled                bool
	AccelerometerEnabled      bool
	GyroscopeEnabled          bool
	OrientationSensorEnabled  bool
	MagnetometerEnabled       bool
	SixAxisForceTorqueEnabled bool
	CartesianWrenchEnabled    bool
	CameraEnabled             bool

	// Joints is the declared joint count (len of the joints list).
	Joints int

	// ImageDimensions maps camera logical name to its declared pixel
	// dimensions. Every declared camera must have an entry.
	ImageDimensions map[string]ImageDim

	// VerifyStreamsOnAttach runs one read of every resolved sensor at the
	// end of attach and fails the attach if any stream is broken.
	VerifyStreamsOnAttach bool
}

// MetaData is the configuration snapshot owned by the bridge. Pure data.
type MetaData struct {
	Lists   SensorLists
	Options Options
}

// clone returns a deep copy so facade accessors never alias bridge state.
func (m *MetaData) clone() MetaData {
	out := *m
	out.Lists.Joints = copyStrings(m.Lists.Joints)
	out.Lists.IMUs = copyStrings(m.Lists.IMUs)
	out.Lists.Accelerometers = copyStrings(m.Lists.Accelerometers)
	out.Lists.Gyroscopes = copyStrings(m.Lists.Gyroscopes)
	out.Lists.OrientationSensors = copyStrings(m.Lists.OrientationSensors)
	out.Lists.Magnetometers = copyStrings(m.Lists.Magnetometers)
	out.Lists.SixAxisForceTorques = copyStrings(m.Lists.SixAxisForceTorques)
	out.Lists.CartesianWrenches = copyStrings(m.Lists.CartesianWrenches)
	out.Lists.RGBCameras = copyStrings(m.Lists.RGBCameras)
	out.Lists.DepthCameras = copyStrings(m.Lists.DepthCameras)
	out.Options.ImageDimensions = make(map[string]ImageDim, len(m.Options.ImageDimensions))
	for k, v := range m.Options.ImageDimensions {
		out.Options.ImageDimensions[k] = v
	}
	return out
}

func copyStrings(src []string) []string {
	if src == nil {
		return nil
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// loadMetaData populates a MetaData from the configuration tree.
func loadMetaData(cfg *config.Config) (MetaData, error) {
	meta := MetaData{
		Options: Options{ImageDimensions: make(map[string]ImageDim)},
	}

	sec := cfg.GetSectionOptional(SectionBridge)
	if sec == nil {
		// No bridge section at all: everything stays disabled.
		return meta, nil
	}

	verify, err := sec.GetBool("verify_streams_on_attach", false)
	if err != nil {
		return meta, err
	}
	meta.Options.VerifyStreamsOnAttach = verify

	type group struct {
		flag   string
		loader func(*config.Section, *MetaData) error
	}
	groups := []group{
		{"stream_joint_states", loadControlBoardGroup},
		{"stream_inertials", loadInertialsGroup},
		{"stream_forcetorque_sensors", loadForceTorqueGroup},
		{"stream_cartesian_wrenches", loadWrenchesGroup},
		{"stream_cameras", loadCamerasGroup},
	}
	sections := []string{
		SectionControlBoard,
		SectionInertials,
		SectionForceTorque,
		SectionWrenches,
		SectionCameras,
	}

	for i, g := range groups {
		enabled, err := sec.GetBool(g.flag, false)
		if err != nil {
			return meta, err
		}
		if !enabled {
			continue
		}
		groupSec := cfg.GetSectionOptional(sections[i])
		if groupSec == nil {
			return meta, berrors.ConfigSectionError(sections[i])
		}
		if err := g.loader(groupSec, &meta); err != nil {
			return meta, err
		}
	}

	return meta, nil
}

func loadControlBoardGroup(sec *config.Section, meta *MetaData) error {
	joints, err := sec.GetList("joints_list", ",")
	if err != nil {
		return berrors.ConfigOptionError(sec.GetName(), "joints_list")
	}
	meta.Lists.Joints = joints
	meta.Options.KinematicsEnabled = true
	meta.Options.Joints = len(joints)
	return nil
}

// loadInertialsGroup enables each inertial subcategory independently by the
// presence of its list; none of the lists is individually required.
func loadInertialsGroup(sec *config.Section, meta *MetaData) error {
	if sec.HasOption("imu_list") {
		list, err := sec.GetList("imu_list", ",")
		if err != nil {
			return err
		}
		meta.Lists.IMUs = list
		meta.Options.IMUEnabled = true
	}
	if sec.HasOption("accelerometer_list") {
		list, err := sec.GetList("accelerometer_list", ",")
		if err != nil {
			return err
		}
		meta.Lists.Accelerometers = list
		meta.Options.AccelerometerEnabled = true
	}
	if sec.HasOption("gyroscopes_list") {
		list, err := sec.GetList("gyroscopes_list", ",")
		if err != nil {
			return err
		}
		meta.Lists.Gyroscopes = list
		meta.Options.GyroscopeEnabled = true
	}
	if sec.HasOption("orientation_sensors_list") {
		list, err := sec.GetList("orientation_sensors_list", ",")
		if err != nil {
			return err
		}
		meta.Lists.OrientationSensors = list
		meta.Options.OrientationSensorEnabled = true
	}
	if sec.HasOption("magnetometers_list") {
		list, err := sec.GetList("magnetometers_list", ",")
		if err != nil {
			return err
		}
		meta.Lists.Magnetometers = list
		meta.Options.MagnetometerEnabled = true
	}
	return nil
}

func loadForceTorqueGroup(sec *config.Section, meta *MetaData) error {
	list, err := sec.GetList("sixaxis_forcetorque_sensors_list", ",")
	if err != nil {
		return berrors.ConfigOptionError(sec.GetName(), "sixaxis_forcetorque_sensors_list")
	}
	meta.Lists.SixAxisForceTorques = list
	meta.Options.SixAxisForceTorqueEnabled = true
	return nil
}

func loadWrenchesGroup(sec *config.Section, meta *MetaData) error {
	list, err := sec.GetList("cartesian_wrenches_list", ",")
	if err != nil {
		return berrors.ConfigOptionError(sec.GetName(), "cartesian_wrenches_list")
	}
	meta.Lists.CartesianWrenches = list
	meta.Options.CartesianWrenchEnabled = true
	return nil
}

// loadCamerasGroup reads the RGB and depth camera lists with their parallel
// width/height lists. A declared camera list makes the width and height
// lists required, and all three must be the same length.
func loadCamerasGroup(sec *config.Section, meta *MetaData) error {
	if sec.HasOption("rgb_cameras_list") {
		if err := loadCameraLists(sec, meta,
			"rgb_cameras_list", "rgb_image_width", "rgb_image_height",
			&meta.Lists.RGBCameras); err != nil {
			return err
		}
		meta.Options.CameraEnabled = true
	}
	if sec.HasOption("depth_cameras_list") {
		if err := loadCameraLists(sec, meta,
			"depth_cameras_list", "depth_image_width", "depth_image_height",
			&meta.Lists.DepthCameras); err != nil {
			return err
		}
		meta.Options.CameraEnabled = true
	}
	return nil
}

func loadCameraLists(sec *config.Section, meta *MetaData,
	listKey, widthKey, heightKey string, dst *[]string) error {
	names, err := sec.GetList(listKey, ",")
	if err != nil {
		return err
	}
	widths, err := sec.GetIntList(widthKey, ",")
	if err != nil {
		return berrors.ConfigOptionError(sec.GetName(), widthKey)
	}
	heights, err := sec.GetIntList(heightKey, ",")
	if err != nil {
		return berrors.ConfigOptionError(sec.GetName(), heightKey)
	}
	if len(widths) != len(names) {
		return berrors.ConfigSizeError(sec.GetName(), widthKey, len(names), len(widths))
	}
	if len(heights) != len(names) {
		return berrors.ConfigSizeError(sec.GetName(), heightKey, len(names), len(heights))
	}
	for i, name := range names {
		meta.Options.ImageDimensions[name] = ImageDim{Width: widths[i], Height: heights[i]}
	}
	*dst = names
	return nil
}
