// Tests for the simulated driver pool
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package sim

import (
	"testing"

	"sensor-bridge-go/pkg/config"
	"sensor-bridge-go/pkg/driver"
)

const poolConfig = `
[sim_device board]
type: control_board
axes: hip, knee, ankle

[sim_device mas]
type: sensor_array
accelerometers: acc_left, acc_right
force_torque_sensors: ft_left

[sim_device head_imu]
type: imu

[sim_device wrist_wrench]
type: cartesian_wrench

[sim_device ft_right]
type: analog_force_torque

[sim_device cam_front]
type: rgb_camera
width: 32
height: 24

[sim_device cam_depth]
type: depth_camera
width: 16
height: 12
`

func TestPoolFromConfig(t *testing.T) {
	cfg, err := config.LoadString(poolConfig)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	pool, err := PoolFromConfig(cfg)
	if err != nil {
		t.Fatalf("PoolFromConfig: %v", err)
	}
	if len(pool) != 7 {
		t.Fatalf("expected 7 handles, got %d", len(pool))
	}

	board := pool.FindKey("board")
	if board == nil {
		t.Fatal("control board handle missing")
	}
	axes, ok := board.Device.(driver.AxisInfo)
	if !ok {
		t.Fatal("control board does not expose axis info")
	}
	if axes.Axes() != 3 {
		t.Errorf("expected 3 axes, got %d", axes.Axes())
	}
	if _, ok := board.Device.(driver.EncodersTimed); !ok {
		t.Error("control board does not expose timed encoders")
	}

	mas := pool.FindKey("mas")
	if mas == nil {
		t.Fatal("sensor array handle missing")
	}
	arrDev, ok := mas.Device.(driver.ArrayDevice)
	if !ok {
		t.Fatal("mas does not expose the array capability")
	}
	acc := arrDev.Array(driver.ArrayAccelerometers)
	if acc == nil || acc.Size() != 2 {
		t.Fatalf("expected accelerometer array of size 2, got %v", acc)
	}
	if arrDev.Array(driver.ArrayGyroscopes) != nil {
		t.Error("mas should not serve gyroscopes")
	}

	imu := pool.FindKey("head_imu")
	gs, ok := imu.Device.(driver.GenericSensor)
	if !ok {
		t.Fatal("imu does not expose the generic capability")
	}
	if n, _ := gs.GenericSensorChannels(); n != 12 {
		t.Errorf("imu channels = %d, want 12", n)
	}

	ft := pool.FindKey("ft_right")
	as, ok := ft.Device.(driver.AnalogSensor)
	if !ok {
		t.Fatal("analog ft does not expose the analog capability")
	}
	if n := as.AnalogSensorChannels(); n != 6 {
		t.Errorf("analog ft channels = %d, want 6", n)
	}

	cam := pool.FindKey("cam_front")
	fg, ok := cam.Device.(driver.FrameGrabber)
	if !ok {
		t.Fatal("rgb camera does not expose the frame-grabber capability")
	}
	if w, h := fg.ImageSize(); w != 32 || h != 24 {
		t.Errorf("camera size = %dx%d, want 32x24", w, h)
	}

	depth := pool.FindKey("cam_depth")
	dg, ok := depth.Device.(driver.DepthGrabber)
	if !ok {
		t.Fatal("depth camera does not expose the depth capability")
	}
	if w, h := dg.DepthSize(); w != 16 || h != 12 {
		t.Errorf("depth size = %dx%d, want 16x12", w, h)
	}
}

func TestPoolFromConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"unknown type", "[sim_device x]\ntype: teleporter\n"},
		{"missing type", "[sim_device x]\naxes: a\n"},
		{"board without axes", "[sim_device x]\ntype: control_board\naxes:\n"},
		{"empty array", "[sim_device x]\ntype: sensor_array\n"},
		{"camera without size", "[sim_device x]\ntype: rgb_camera\n"},
		{"camera bad size", "[sim_device x]\ntype: depth_camera\nwidth: 0\nheight: 4\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := config.LoadString(tc.doc)
			if err != nil {
				t.Fatalf("LoadString: %v", err)
			}
			if _, err := PoolFromConfig(cfg); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestControlBoardReadback(t *testing.T) {
	cb := NewControlBoard([]string{"a", "b"})
	cb.SetAxis(1, 0.5, -0.25)

	pos := make([]float64, 2)
	stamp, err := cb.ReadEncoders(pos)
	if err != nil {
		t.Fatalf("ReadEncoders: %v", err)
	}
	if stamp <= 0 {
		t.Error("expected a positive timestamp")
	}
	if pos[0] != 0 || pos[1] != 0.5 {
		t.Errorf("positions = %v, want [0 0.5]", pos)
	}

	spd := make([]float64, 2)
	if err := cb.ReadEncoderSpeeds(spd); err != nil {
		t.Fatalf("ReadEncoderSpeeds: %v", err)
	}
	if spd[1] != -0.25 {
		t.Errorf("speed = %v, want -0.25", spd[1])
	}

	if _, err := cb.ReadEncoders(make([]float64, 3)); err == nil {
		t.Error("expected size mismatch error")
	}
}

func TestSensorArrayReadback(t *testing.T) {
	dev := NewSensorArrayDevice()
	dev.AddSensor(driver.ArrayGyroscopes, "gyro_a")
	dev.AddSensor(driver.ArrayGyroscopes, "gyro_b")
	dev.SetSensor(driver.ArrayGyroscopes, "gyro_b", []float64{1, 2, 3})

	arr := dev.Array(driver.ArrayGyroscopes)
	if arr.Kind() != driver.ArrayGyroscopes {
		t.Errorf("kind = %v", arr.Kind())
	}
	name, err := arr.SensorName(1)
	if err != nil || name != "gyro_b" {
		t.Fatalf("SensorName(1) = %q, %v", name, err)
	}
	dst := make([]float64, 3)
	if _, err := arr.ReadSensor(1, dst); err != nil {
		t.Fatalf("ReadSensor: %v", err)
	}
	if dst[0] != 1 || dst[1] != 2 || dst[2] != 3 {
		t.Errorf("sample = %v, want [1 2 3]", dst)
	}
	if _, err := arr.ReadSensor(5, dst); err == nil {
		t.Error("expected out-of-range error")
	}
}

func TestCameraPattern(t *testing.T) {
	cam := NewCamera(8, 6)
	img := driver.NewImage(8, 6)
	stamp, err := cam.CaptureImage(img)
	if err != nil {
		t.Fatalf("CaptureImage: %v", err)
	}
	if stamp <= 0 {
		t.Error("expected a positive timestamp")
	}
	for i, v := range img.Pixels {
		if v < 0 || v > 1 {
			t.Fatalf("pixel %d = %v outside [0,1]", i, v)
		}
	}
}
