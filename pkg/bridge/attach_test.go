// Tests for the attachment engine and the polling facade
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package bridge_test

import (
	"errors"
	"math"
	"testing"

	"sensor-bridge-go/pkg/bridge"
	"sensor-bridge-go/pkg/driver"
	berrors "sensor-bridge-go/pkg/errors"
	"sensor-bridge-go/pkg/sim"
)

const fullBridgeConfig = `
[sensor_bridge]
stream_joint_states: true
stream_inertials: true
stream_forcetorque_sensors: true
stream_cartesian_wrenches: true
stream_cameras: true

[remote_control_board]
joints_list: hip, knee, ankle

[inertial_sensors]
imu_list: head_imu
accelerometer_list: acc_left
gyroscopes_list: gyro_left
orientation_sensors_list: ori_head
magnetometers_list: mag_left

[six_axis_force_torque_sensors]
sixaxis_forcetorque_sensors_list: ft_left, ft_right, ft_extra

[cartesian_wrenches]
cartesian_wrenches_list: wrist_wrench

[cameras]
rgb_cameras_list: cam_front
rgb_image_width: 32
rgb_image_height: 24
depth_cameras_list: cam_depth
depth_image_width: 16
depth_image_height: 12
`

// testPool bundles the simulated devices so tests can steer their samples.
type testPool struct {
	pool  driver.List
	board *sim.ControlBoard
	mas   *sim.SensorArrayDevice
	imu   *sim.GenericDevice
	wrist *sim.GenericDevice
	ftEx  *sim.AnalogDevice
}

// newTestPool builds a pool matching fullBridgeConfig. The board's physical
// axis order deliberately differs from the declared joint order, and the
// force/torque list splits between the array (ft_left, ft_right) and a
// discrete analog device (ft_extra).
func newTestPool() *testPool {
	tp := &testPool{
		board: sim.NewControlBoard([]string{"ankle", "hip", "knee"}),
		mas:   sim.NewSensorArrayDevice(),
		imu:   sim.NewGenericDevice(12),
		wrist: sim.NewGenericDevice(6),
		ftEx:  sim.NewAnalogDevice(6),
	}
	tp.mas.AddSensor(driver.ArrayAccelerometers, "acc_left")
	tp.mas.AddSensor(driver.ArrayGyroscopes, "gyro_left")
	tp.mas.AddSensor(driver.ArrayOrientationSensors, "ori_head")
	tp.mas.AddSensor(driver.ArrayMagnetometers, "mag_left")
	tp.mas.AddSensor(driver.ArraySixAxisForceTorque, "ft_left")
	tp.mas.AddSensor(driver.ArraySixAxisForceTorque, "ft_right")
	tp.pool = driver.List{
		{Key: "board", Device: tp.board},
		{Key: "mas", Device: tp.mas},
		{Key: "head_imu", Device: tp.imu},
		{Key: "wrist_wrench", Device: tp.wrist},
		{Key: "ft_extra", Device: tp.ftEx},
		{Key: "cam_front", Device: sim.NewCamera(32, 24)},
		{Key: "cam_depth", Device: sim.NewDepthCamera(16, 12)},
	}
	return tp
}

func readyBridge(t *testing.T) (*bridge.SensorBridge, *testPool) {
	t.Helper()
	b := bridge.New()
	if err := b.Initialize(loadConfig(t, fullBridgeConfig)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	tp := newTestPool()
	if err := b.SetDriverList(tp.pool); err != nil {
		t.Fatalf("SetDriverList: %v", err)
	}
	return b, tp
}

func TestAttachSucceeds(t *testing.T) {
	b, _ := readyBridge(t)
	if !b.IsValid() {
		t.Fatal("bridge should be valid after attach")
	}
	if b.State() != bridge.StateReady {
		t.Errorf("state = %v, want ready", b.State())
	}
}

func TestAttachBeforeInitialize(t *testing.T) {
	b := bridge.New()
	err := b.SetDriverList(newTestPool().pool)
	if !berrors.Is(err, berrors.ErrNotReady) {
		t.Fatalf("expected NOT_READY error, got %v", err)
	}
}

func TestJointRemap(t *testing.T) {
	b, tp := readyBridge(t)

	// Physical order is ankle, hip, knee; declared order is hip, knee, ankle.
	tp.board.SetAxis(0, 3.0, 30) // ankle
	tp.board.SetAxis(1, 1.0, 10) // hip
	tp.board.SetAxis(2, 2.0, 20) // knee

	pos := make([]float64, 3)
	stamp, err := b.JointPositions(pos)
	if err != nil {
		t.Fatalf("JointPositions: %v", err)
	}
	if stamp <= 0 {
		t.Error("expected a positive timestamp")
	}
	if pos[0] != 1.0 || pos[1] != 2.0 || pos[2] != 3.0 {
		t.Errorf("positions = %v, want declared order [1 2 3]", pos)
	}

	vel := make([]float64, 3)
	if _, err := b.JointVelocities(vel); err != nil {
		t.Fatalf("JointVelocities: %v", err)
	}
	if vel[0] != 10 || vel[1] != 20 || vel[2] != 30 {
		t.Errorf("velocities = %v, want declared order [10 20 30]", vel)
	}

	ankle, _, err := b.JointPosition("ankle")
	if err != nil {
		t.Fatalf("JointPosition: %v", err)
	}
	if ankle != 3.0 {
		t.Errorf("ankle = %v, want 3.0", ankle)
	}

	if _, _, err := b.JointPosition("elbow"); !berrors.Is(err, berrors.ErrUnknownSensor) {
		t.Errorf("expected UNKNOWN_SENSOR for undeclared joint, got %v", err)
	}
	if _, err := b.JointPositions(make([]float64, 2)); err == nil {
		t.Error("expected an error for a wrongly sized destination")
	}
}

func TestAttachFailsOnMissingJoint(t *testing.T) {
	b := bridge.New()
	if err := b.Initialize(loadConfig(t, fullBridgeConfig)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	tp := newTestPool()
	// Board no longer exposes the declared ankle joint.
	tp.pool[0] = &driver.Handle{Key: "board", Device: sim.NewControlBoard([]string{"hip", "knee"})}

	err := b.SetDriverList(tp.pool)
	if !berrors.Is(err, berrors.ErrResolution) {
		t.Fatalf("expected RESOLUTION error, got %v", err)
	}
	if b.State() != bridge.StateAttachFailed {
		t.Errorf("state = %v, want attach_failed", b.State())
	}
	if _, err := b.JointPositions(make([]float64, 3)); !berrors.Is(err, berrors.ErrNotReady) {
		t.Errorf("getters must refuse after a failed attach, got %v", err)
	}
}

func TestAttachFailsOnChannelMismatch(t *testing.T) {
	b := bridge.New()
	if err := b.Initialize(loadConfig(t, fullBridgeConfig)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	tp := newTestPool()
	// The IMU key resolves, but the device reports 6 channels instead of 12.
	tp.pool[2] = &driver.Handle{Key: "head_imu", Device: sim.NewGenericDevice(6)}

	err := b.SetDriverList(tp.pool)
	if !berrors.Is(err, berrors.ErrResolution) {
		t.Fatalf("expected RESOLUTION error, got %v", err)
	}
}

func TestAttachFailsOnMissingCapability(t *testing.T) {
	b := bridge.New()
	if err := b.Initialize(loadConfig(t, fullBridgeConfig)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	tp := newTestPool()
	// The IMU key matches an analog device, which lacks the generic view.
	tp.pool[2] = &driver.Handle{Key: "head_imu", Device: sim.NewAnalogDevice(12)}

	err := b.SetDriverList(tp.pool)
	if !berrors.Is(err, berrors.ErrCapabilityView) {
		t.Fatalf("expected CAPABILITY_VIEW error, got %v", err)
	}
}

func TestForceTorqueSplitAcrossSources(t *testing.T) {
	b, tp := readyBridge(t)

	tp.mas.SetSensor(driver.ArraySixAxisForceTorque, "ft_left", []float64{1, 1, 1, 1, 1, 1})
	tp.ftEx.SetValues([]float64{9, 9, 9, 9, 9, 9})

	dst := make([]float64, 6)
	if _, err := b.SixAxisForceTorqueMeasurement("ft_left", dst); err != nil {
		t.Fatalf("array-served sensor: %v", err)
	}
	if dst[0] != 1 {
		t.Errorf("ft_left sample = %v", dst)
	}
	if _, err := b.SixAxisForceTorqueMeasurement("ft_extra", dst); err != nil {
		t.Fatalf("analog-served sensor: %v", err)
	}
	if dst[0] != 9 {
		t.Errorf("ft_extra sample = %v", dst)
	}
	if _, err := b.SixAxisForceTorqueMeasurement("ft_nope", dst); !berrors.Is(err, berrors.ErrUnknownSensor) {
		t.Errorf("expected UNKNOWN_SENSOR, got %v", err)
	}
}

func TestForceTorqueAllAnalogWithoutArray(t *testing.T) {
	cfg := loadConfig(t, `
[sensor_bridge]
stream_forcetorque_sensors: true

[six_axis_force_torque_sensors]
sixaxis_forcetorque_sensors_list: ft_a, ft_b
`)
	b := bridge.New()
	if err := b.Initialize(cfg); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	ftA := sim.NewAnalogDevice(6)
	ftB := sim.NewAnalogDevice(6)
	ftB.SetValues([]float64{4, 5, 6, 0, 0, 0})
	pool := driver.List{
		{Key: "ft_a", Device: ftA},
		{Key: "ft_b", Device: ftB},
	}
	if err := b.SetDriverList(pool); err != nil {
		t.Fatalf("SetDriverList: %v", err)
	}
	dst := make([]float64, 6)
	if _, err := b.SixAxisForceTorqueMeasurement("ft_b", dst); err != nil {
		t.Fatalf("SixAxisForceTorqueMeasurement: %v", err)
	}
	if dst[0] != 4 || dst[1] != 5 || dst[2] != 6 {
		t.Errorf("sample = %v", dst)
	}
}

func TestForceTorqueUnresolvedLeftover(t *testing.T) {
	cfg := loadConfig(t, `
[sensor_bridge]
stream_forcetorque_sensors: true

[six_axis_force_torque_sensors]
sixaxis_forcetorque_sensors_list: ft_a, ft_gone
`)
	b := bridge.New()
	if err := b.Initialize(cfg); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	mas := sim.NewSensorArrayDevice()
	mas.AddSensor(driver.ArraySixAxisForceTorque, "ft_a")
	pool := driver.List{{Key: "mas", Device: mas}}

	// ft_gone is neither array-reported nor present as an analog handle.
	err := b.SetDriverList(pool)
	if !berrors.Is(err, berrors.ErrResolution) {
		t.Fatalf("expected RESOLUTION error, got %v", err)
	}
}

func TestInertialMeasurements(t *testing.T) {
	b, tp := readyBridge(t)

	imuSample := []float64{0.1, 0.2, 0.3, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	tp.imu.SetValues(imuSample)
	tp.mas.SetSensor(driver.ArrayAccelerometers, "acc_left", []float64{1, 2, 3})
	tp.mas.SetSensor(driver.ArrayGyroscopes, "gyro_left", []float64{4, 5, 6})
	tp.mas.SetSensor(driver.ArrayOrientationSensors, "ori_head", []float64{7, 8, 9})
	tp.mas.SetSensor(driver.ArrayMagnetometers, "mag_left", []float64{10, 11, 12})

	imu := make([]float64, 12)
	if _, err := b.IMUMeasurement("head_imu", imu); err != nil {
		t.Fatalf("IMUMeasurement: %v", err)
	}
	for i, want := range imuSample {
		if imu[i] != want {
			t.Fatalf("imu[%d] = %v, want %v", i, imu[i], want)
		}
	}

	tri := make([]float64, 3)
	if _, err := b.LinearAccelerometerMeasurement("acc_left", tri); err != nil || tri[2] != 3 {
		t.Errorf("accelerometer = %v, err %v", tri, err)
	}
	if _, err := b.GyroscopeMeasurement("gyro_left", tri); err != nil || tri[0] != 4 {
		t.Errorf("gyroscope = %v, err %v", tri, err)
	}
	if _, err := b.OrientationSensorMeasurement("ori_head", tri); err != nil || tri[1] != 8 {
		t.Errorf("orientation = %v, err %v", tri, err)
	}
	if _, err := b.MagnetometerMeasurement("mag_left", tri); err != nil || tri[2] != 12 {
		t.Errorf("magnetometer = %v, err %v", tri, err)
	}
	if _, err := b.GyroscopeMeasurement("gyro_nope", tri); !berrors.Is(err, berrors.ErrUnknownSensor) {
		t.Errorf("expected UNKNOWN_SENSOR, got %v", err)
	}
}

func TestCartesianWrenchMeasurement(t *testing.T) {
	b, tp := readyBridge(t)
	tp.wrist.SetValues([]float64{1, 2, 3, 4, 5, 6})
	dst := make([]float64, 6)
	if _, err := b.CartesianWrenchMeasurement("wrist_wrench", dst); err != nil {
		t.Fatalf("CartesianWrenchMeasurement: %v", err)
	}
	if dst[5] != 6 {
		t.Errorf("sample = %v", dst)
	}
}

func TestCameraCapture(t *testing.T) {
	b, _ := readyBridge(t)

	img := driver.NewImage(32, 24)
	if _, err := b.ColorImage("cam_front", img); err != nil {
		t.Fatalf("ColorImage: %v", err)
	}
	var sum float64
	for _, v := range img.Pixels {
		sum += v
	}
	if sum == 0 {
		t.Error("captured frame is all zeros")
	}

	depth := driver.NewImage(1, 1)
	if _, err := b.DepthImage("cam_depth", depth); err != nil {
		t.Fatalf("DepthImage: %v", err)
	}
	// The destination adopts the configured buffer size.
	if depth.Width != 16 || depth.Height != 12 {
		t.Errorf("depth size = %dx%d, want 16x12", depth.Width, depth.Height)
	}
	if _, err := b.ColorImage("cam_nope", img); !berrors.Is(err, berrors.ErrUnknownSensor) {
		t.Errorf("expected UNKNOWN_SENSOR, got %v", err)
	}
}

func TestReattachSwapsPools(t *testing.T) {
	b, tp := readyBridge(t)
	tp.imu.SetValues([]float64{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})

	dst := make([]float64, 12)
	if _, err := b.IMUMeasurement("head_imu", dst); err != nil {
		t.Fatalf("IMUMeasurement: %v", err)
	}
	if dst[0] != 1 {
		t.Fatalf("sample = %v", dst)
	}

	// A second attach against a fresh pool must serve the new devices.
	tp2 := newTestPool()
	tp2.imu.SetValues([]float64{2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	if err := b.SetDriverList(tp2.pool); err != nil {
		t.Fatalf("re-attach: %v", err)
	}
	if _, err := b.IMUMeasurement("head_imu", dst); err != nil {
		t.Fatalf("IMUMeasurement after re-attach: %v", err)
	}
	if dst[0] != 2 {
		t.Errorf("sample = %v, want the second pool's device", dst)
	}
}

func TestFailedReattachInvalidatesBridge(t *testing.T) {
	b, _ := readyBridge(t)
	if err := b.SetDriverList(driver.List{}); err == nil {
		t.Fatal("attach against an empty pool should fail")
	}
	if b.IsValid() {
		t.Error("bridge must not stay valid after a failed re-attach")
	}
}

func TestVerifyStreamsOnAttach(t *testing.T) {
	doc := fullBridgeConfig + "\n[sensor_bridge]\nverify_streams_on_attach: true\n"
	b := bridge.New()
	if err := b.Initialize(loadConfig(t, doc)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	tp := newTestPool()
	tp.imu.FailReads(errors.New("link down"))

	err := b.SetDriverList(tp.pool)
	if !berrors.Is(err, berrors.ErrSensorRead) {
		t.Fatalf("expected SENSOR_READ error, got %v", err)
	}
	if b.State() != bridge.StateAttachFailed {
		t.Errorf("state = %v, want attach_failed", b.State())
	}

	// A healthy pool passes verification.
	if err := b.SetDriverList(newTestPool().pool); err != nil {
		t.Fatalf("attach with healthy pool: %v", err)
	}
}

func TestAdvanceAndStatusSnapshot(t *testing.T) {
	b, tp := readyBridge(t)
	tp.board.SetAxis(1, 0.5, 0) // hip
	tp.wrist.SetValues([]float64{0, 0, 0, 0, 0, math.Pi})

	if err := b.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	status := b.StatusSnapshot()

	joints, ok := status["joints"].(map[string]any)
	if !ok {
		t.Fatal("missing joints status")
	}
	pos := joints["positions"].([]float64)
	if pos[0] != 0.5 {
		t.Errorf("hip position = %v, want 0.5", pos[0])
	}

	wrench, ok := status["cartesian_wrench/wrist_wrench"].(map[string]any)
	if !ok {
		t.Fatal("missing wrench status")
	}
	values := wrench["values"].([]float64)
	if values[5] != math.Pi {
		t.Errorf("wrench torque = %v", values[5])
	}

	cam, ok := status["rgb_camera/cam_front"].(map[string]any)
	if !ok {
		t.Fatal("missing camera status")
	}
	if cam["width"].(int) != 32 {
		t.Errorf("camera width = %v", cam["width"])
	}
}

func TestAdvanceAggregatesReadFailures(t *testing.T) {
	b, tp := readyBridge(t)
	if err := b.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	tp.imu.SetValues([]float64{7, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	if err := b.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	tp.imu.FailReads(errors.New("link down"))
	tp.wrist.FailReads(errors.New("link down"))
	err := b.Advance()
	if err == nil {
		t.Fatal("expected aggregated read errors")
	}
	// A failing stream keeps its previous sample in the snapshot.
	status := b.StatusSnapshot()
	imu := status["imu/head_imu"].(map[string]any)
	if imu["values"].([]float64)[0] != 7 {
		t.Errorf("failed sensor lost its previous sample: %v", imu["values"])
	}
	// The bridge stays valid; read failures are transient.
	if !b.IsValid() {
		t.Error("read failures must not invalidate the bridge")
	}
}

func TestJointGettersWithJointStreamingDisabled(t *testing.T) {
	cfg := loadConfig(t, `
[sensor_bridge]
stream_forcetorque_sensors: true

[six_axis_force_torque_sensors]
sixaxis_forcetorque_sensors_list: ft_a
`)
	b := bridge.New()
	if err := b.Initialize(cfg); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	pool := driver.List{{Key: "ft_a", Device: sim.NewAnalogDevice(6)}}
	if err := b.SetDriverList(pool); err != nil {
		t.Fatalf("SetDriverList: %v", err)
	}
	if !b.IsValid() {
		t.Fatal("bridge should be valid with only force/torque enabled")
	}

	// No control board is attached; the joint getters must refuse instead
	// of reaching for one.
	if _, err := b.JointPositions(nil); !berrors.Is(err, berrors.ErrNotReady) {
		t.Errorf("JointPositions: expected NOT_READY, got %v", err)
	}
	if _, err := b.JointVelocities(nil); !berrors.Is(err, berrors.ErrNotReady) {
		t.Errorf("JointVelocities: expected NOT_READY, got %v", err)
	}
	if _, _, err := b.JointPosition("hip"); !berrors.Is(err, berrors.ErrNotReady) {
		t.Errorf("JointPosition: expected NOT_READY, got %v", err)
	}
}

func TestAttachIdempotentAcrossGenerations(t *testing.T) {
	b, tp := readyBridge(t)
	before := b.StatusSnapshot()

	if err := b.SetDriverList(tp.pool); err != nil {
		t.Fatalf("second attach with the same pool: %v", err)
	}
	after := b.StatusSnapshot()

	if len(after) != len(before) {
		t.Errorf("snapshot has %d keys, want %d", len(after), len(before))
	}
	for key, entry := range before {
		other, ok := after[key].(map[string]any)
		if !ok {
			t.Fatalf("key %q missing after re-attach", key)
		}
		fields := entry.(map[string]any)
		if values, ok := fields["values"].([]float64); ok {
			if got := other["values"].([]float64); len(got) != len(values) {
				t.Errorf("%s: %d channels, want %d", key, len(got), len(values))
			}
		}
		if width, ok := fields["width"]; ok {
			if other["width"] != width || other["height"] != fields["height"] {
				t.Errorf("%s: image shape changed across identical attaches", key)
			}
		}
	}

	// The remap table is rebuilt identically: declared order still holds.
	tp.board.SetAxis(0, 3.0, 0) // ankle
	tp.board.SetAxis(1, 1.0, 0) // hip
	tp.board.SetAxis(2, 2.0, 0) // knee
	pos := make([]float64, 3)
	if _, err := b.JointPositions(pos); err != nil {
		t.Fatalf("JointPositions: %v", err)
	}
	if pos[0] != 1.0 || pos[1] != 2.0 || pos[2] != 3.0 {
		t.Errorf("positions = %v, want declared order [1 2 3]", pos)
	}
}

func TestReattachReplacesImageBuffers(t *testing.T) {
	b, _ := readyBridge(t)

	img := driver.NewImage(1, 1)
	if _, err := b.ColorImage("cam_front", img); err != nil {
		t.Fatalf("ColorImage: %v", err)
	}
	if img.Width != 32 || img.Height != 24 {
		t.Fatalf("first generation size = %dx%d, want 32x24", img.Width, img.Height)
	}

	// Reconfigure with different frame sizes and attach a matching pool.
	if err := b.Initialize(loadConfig(t, `
[sensor_bridge]
stream_cameras: true

[cameras]
rgb_cameras_list: cam_front
rgb_image_width: 64
rgb_image_height: 48
depth_cameras_list: cam_depth
depth_image_width: 8
depth_image_height: 6
`)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	pool := driver.List{
		{Key: "cam_front", Device: sim.NewCamera(64, 48)},
		{Key: "cam_depth", Device: sim.NewDepthCamera(8, 6)},
	}
	if err := b.SetDriverList(pool); err != nil {
		t.Fatalf("re-attach: %v", err)
	}

	if _, err := b.ColorImage("cam_front", img); err != nil {
		t.Fatalf("ColorImage after re-attach: %v", err)
	}
	if img.Width != 64 || img.Height != 48 {
		t.Errorf("rgb size = %dx%d, want 64x48", img.Width, img.Height)
	}
	depth := driver.NewImage(1, 1)
	if _, err := b.DepthImage("cam_depth", depth); err != nil {
		t.Fatalf("DepthImage: %v", err)
	}
	if depth.Width != 8 || depth.Height != 6 {
		t.Errorf("depth size = %dx%d, want 8x6", depth.Width, depth.Height)
	}
	// Sensors of the retired generation are gone with it.
	if _, err := b.IMUMeasurement("head_imu", make([]float64, 12)); !berrors.Is(err, berrors.ErrUnknownSensor) {
		t.Errorf("expected UNKNOWN_SENSOR for a retired sensor, got %v", err)
	}
}

func TestNameListAccessors(t *testing.T) {
	b, _ := readyBridge(t)
	if got := b.SixAxisForceTorqueNames(); len(got) != 3 {
		t.Errorf("force/torque names = %v", got)
	}
	names := b.JointNames()
	names[0] = "mutated"
	if b.JointNames()[0] != "hip" {
		t.Error("accessor must return a copy")
	}
}
