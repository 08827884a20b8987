// Tests for the configuration snapshot
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package bridge_test

import (
	"testing"

	"sensor-bridge-go/pkg/bridge"
	"sensor-bridge-go/pkg/config"
	berrors "sensor-bridge-go/pkg/errors"
)

func loadConfig(t *testing.T, doc string) *config.Config {
	t.Helper()
	cfg, err := config.LoadString(doc)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	return cfg
}

func TestInitializeFullConfig(t *testing.T) {
	cfg := loadConfig(t, `
[sensor_bridge]
stream_joint_states: true
stream_inertials: true
stream_forcetorque_sensors: true
stream_cartesian_wrenches: true
stream_cameras: true
verify_streams_on_attach: true

[remote_control_board]
joints_list: hip, knee, ankle

[inertial_sensors]
imu_list: head_imu
accelerometer_list: acc_left, acc_right
gyroscopes_list: gyro_left

[six_axis_force_torque_sensors]
sixaxis_forcetorque_sensors_list: ft_left, ft_right

[cartesian_wrenches]
cartesian_wrenches_list: wrist_wrench

[cameras]
rgb_cameras_list: cam_front
rgb_image_width: 640
rgb_image_height: 480
depth_cameras_list: cam_depth
depth_image_width: 320
depth_image_height: 240
`)

	b := bridge.New()
	if err := b.Initialize(cfg); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	meta := b.MetaData()

	if !meta.Options.KinematicsEnabled || meta.Options.Joints != 3 {
		t.Errorf("joints: enabled=%v count=%d, want enabled with 3",
			meta.Options.KinematicsEnabled, meta.Options.Joints)
	}
	if got := meta.Lists.Joints; len(got) != 3 || got[0] != "hip" || got[2] != "ankle" {
		t.Errorf("joints list = %v", got)
	}
	if !meta.Options.IMUEnabled || len(meta.Lists.IMUs) != 1 {
		t.Errorf("imu: enabled=%v list=%v", meta.Options.IMUEnabled, meta.Lists.IMUs)
	}
	if !meta.Options.AccelerometerEnabled || len(meta.Lists.Accelerometers) != 2 {
		t.Errorf("accelerometers: %v", meta.Lists.Accelerometers)
	}
	if !meta.Options.GyroscopeEnabled || len(meta.Lists.Gyroscopes) != 1 {
		t.Errorf("gyroscopes: %v", meta.Lists.Gyroscopes)
	}
	// Lists absent from the inertial section stay disabled even though the
	// group flag is on.
	if meta.Options.MagnetometerEnabled || meta.Options.OrientationSensorEnabled {
		t.Error("absent inertial sublists should stay disabled")
	}
	if !meta.Options.SixAxisForceTorqueEnabled || len(meta.Lists.SixAxisForceTorques) != 2 {
		t.Errorf("force/torque: %v", meta.Lists.SixAxisForceTorques)
	}
	if !meta.Options.CartesianWrenchEnabled || len(meta.Lists.CartesianWrenches) != 1 {
		t.Errorf("wrenches: %v", meta.Lists.CartesianWrenches)
	}
	if !meta.Options.CameraEnabled {
		t.Error("cameras should be enabled")
	}
	if dim := meta.Options.ImageDimensions["cam_front"]; dim.Width != 640 || dim.Height != 480 {
		t.Errorf("cam_front dims = %+v", dim)
	}
	if dim := meta.Options.ImageDimensions["cam_depth"]; dim.Width != 320 || dim.Height != 240 {
		t.Errorf("cam_depth dims = %+v", dim)
	}
	if !meta.Options.VerifyStreamsOnAttach {
		t.Error("verify_streams_on_attach should be set")
	}
	if b.State() != bridge.StateConfigured {
		t.Errorf("state = %v, want configured", b.State())
	}
}

func TestInitializeAbsentFlagsDisable(t *testing.T) {
	// Group sections exist but no enable flag is set: everything stays off.
	cfg := loadConfig(t, `
[sensor_bridge]

[remote_control_board]
joints_list: hip

[inertial_sensors]
imu_list: head_imu
`)
	b := bridge.New()
	if err := b.Initialize(cfg); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	meta := b.MetaData()
	if meta.Options.KinematicsEnabled || meta.Options.IMUEnabled {
		t.Errorf("options = %+v, want all disabled", meta.Options)
	}
	if len(meta.Lists.Joints) != 0 {
		t.Errorf("joints list = %v, want empty", meta.Lists.Joints)
	}
}

func TestInitializeMissingGroupSection(t *testing.T) {
	cfg := loadConfig(t, `
[sensor_bridge]
stream_joint_states: true
`)
	b := bridge.New()
	err := b.Initialize(cfg)
	if !berrors.Is(err, berrors.ErrConfigSection) {
		t.Fatalf("expected CONFIG_SECTION error, got %v", err)
	}
	if b.State() != bridge.StateUnconfigured {
		t.Errorf("state = %v, want unconfigured", b.State())
	}
}

func TestInitializeMissingRequiredList(t *testing.T) {
	cfg := loadConfig(t, `
[sensor_bridge]
stream_joint_states: true

[remote_control_board]
`)
	err := bridge.New().Initialize(cfg)
	if !berrors.Is(err, berrors.ErrConfigOption) {
		t.Fatalf("expected CONFIG_OPTION error, got %v", err)
	}
}

func TestInitializeCameraListMismatch(t *testing.T) {
	cfg := loadConfig(t, `
[sensor_bridge]
stream_cameras: true

[cameras]
rgb_cameras_list: cam_a, cam_b
rgb_image_width: 640
rgb_image_height: 480, 480
`)
	err := bridge.New().Initialize(cfg)
	if !berrors.Is(err, berrors.ErrConfigSize) {
		t.Fatalf("expected CONFIG_SIZE error, got %v", err)
	}
}

func TestInitializeBadBoolean(t *testing.T) {
	cfg := loadConfig(t, `
[sensor_bridge]
stream_joint_states: maybe
`)
	if err := bridge.New().Initialize(cfg); err == nil {
		t.Fatal("expected an error for a malformed boolean")
	}
}

func TestMetaDataIsACopy(t *testing.T) {
	cfg := loadConfig(t, `
[sensor_bridge]
stream_joint_states: true

[remote_control_board]
joints_list: hip, knee
`)
	b := bridge.New()
	if err := b.Initialize(cfg); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	meta := b.MetaData()
	meta.Lists.Joints[0] = "mutated"
	if b.JointNames()[0] != "hip" {
		t.Error("mutating the returned snapshot leaked into the bridge")
	}
}
