// Attachment engine: reconciles declared sensors against the driver pool
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package bridge

import (
	"sort"

	"go.uber.org/multierr"

	"sensor-bridge-go/pkg/driver"
	berrors "sensor-bridge-go/pkg/errors"
)

// handleMaps holds the typed handles resolved for one attach generation.
// Handles are borrowed from the caller-supplied pool; a new generation
// replaces the whole struct so no handle aliases across generations.
type handleMaps struct {
	// Joints: one shared control board.
	axis     driver.AxisInfo
	encoders driver.EncodersTimed
	boardKey string

	// One-to-one scalar sensors.
	imus      map[string]driver.GenericSensor
	wrenches  map[string]driver.GenericSensor
	analogFTs map[string]driver.AnalogSensor

	// Multi-sensor-array bindings.
	accelerometers *arrayBinding
	gyroscopes     *arrayBinding
	magnetometers  *arrayBinding
	orientations   *arrayBinding

	// Force/torque names served by the array capability; the rest of the
	// declared list lives in analogFTs.
	ftArray *arrayBinding

	// Cameras.
	rgb   map[string]driver.FrameGrabber
	depth map[string]driver.DepthGrabber
}

func newHandleMaps() *handleMaps {
	return &handleMaps{
		imus:      make(map[string]driver.GenericSensor),
		wrenches:  make(map[string]driver.GenericSensor),
		analogFTs: make(map[string]driver.AnalogSensor),
		rgb:       make(map[string]driver.FrameGrabber),
		depth:     make(map[string]driver.DepthGrabber),
	}
}

// attachAll runs the full attach sequence against the pool, short-circuiting
// on the first failure. Disabled categories are no-ops.
func (b *SensorBridge) attachAll(pool driver.List) error {
	if err := b.attachControlBoard(pool); err != nil {
		return err
	}
	if err := b.attachInertials(pool); err != nil {
		return err
	}
	if err := b.attachForceTorqueSensors(pool); err != nil {
		return err
	}
	if err := b.attachCartesianWrenches(pool); err != nil {
		return err
	}
	if err := b.attachCameras(pool); err != nil {
		return err
	}
	if b.meta.Options.VerifyStreamsOnAttach {
		if err := b.readAll(); err != nil {
			return berrors.Wrap(err, berrors.ErrSensorRead, "attach-time stream verification failed")
		}
	}
	return nil
}

// attachControlBoard resolves the single control-board handle and builds the
// remap table from declared joint order to the board's physical axis order.
func (b *SensorBridge) attachControlBoard(pool driver.List) error {
	if !b.meta.Options.KinematicsEnabled {
		return nil
	}

	axis, encoders, key, err := resolveControlBoard(pool)
	if err != nil {
		return err
	}

	physAxes := axis.Axes()
	physNames := make([]string, physAxes)
	for i := 0; i < physAxes; i++ {
		name, err := axis.AxisName(i)
		if err != nil {
			return berrors.SensorReadError(CategoryJoints, key, err)
		}
		physNames[i] = name
	}

	b.buffers.resetControlBoard(b.meta.Options.Joints, physAxes)
	for declared, joint := range b.meta.Lists.Joints {
		found := false
		for phys, physName := range physNames {
			if physName == joint {
				b.buffers.remapIndex[declared] = phys
				found = true
				break
			}
		}
		if !found {
			return berrors.ResolutionError(CategoryJoints, joint,
				"declared joint not present on the attached control board")
		}
	}

	b.handles.axis = axis
	b.handles.encoders = encoders
	b.handles.boardKey = key

	b.log.WithField("board", key).WithField("axes", physAxes).
		WithField("joints", b.meta.Options.Joints).Info("control board attached")
	return nil
}

// attachInertials resolves the IMU list as 12-channel generic sensors and
// each three-axis inertial category through its multi-sensor array.
func (b *SensorBridge) attachInertials(pool driver.List) error {
	if b.meta.Options.IMUEnabled {
		for _, name := range b.meta.Lists.IMUs {
			sensor, err := resolveGenericSensor(pool, CategoryIMU, name, IMUChannels)
			if err != nil {
				return err
			}
			b.handles.imus[name] = sensor
		}
		if len(b.handles.imus) != len(b.meta.Lists.IMUs) {
			return berrors.CompletenessError(CategoryIMU,
				len(b.meta.Lists.IMUs), len(b.handles.imus))
		}
		allocScalars(b.meta.Lists.IMUs, IMUChannels, b.buffers.imus)
	}

	type masCategory struct {
		enabled  bool
		kind     driver.ArrayKind
		category string
		declared []string
		binding  **arrayBinding
		buffers  map[string]*scalarBuffer
	}
	categories := []masCategory{
		{b.meta.Options.AccelerometerEnabled, driver.ArrayAccelerometers,
			CategoryAccelerometer, b.meta.Lists.Accelerometers,
			&b.handles.accelerometers, b.buffers.accelerometers},
		{b.meta.Options.GyroscopeEnabled, driver.ArrayGyroscopes,
			CategoryGyroscope, b.meta.Lists.Gyroscopes,
			&b.handles.gyroscopes, b.buffers.gyroscopes},
		{b.meta.Options.MagnetometerEnabled, driver.ArrayMagnetometers,
			CategoryMagnetometer, b.meta.Lists.Magnetometers,
			&b.handles.magnetometers, b.buffers.magnetometers},
		{b.meta.Options.OrientationSensorEnabled, driver.ArrayOrientationSensors,
			CategoryOrientationSensor, b.meta.Lists.OrientationSensors,
			&b.handles.orientations, b.buffers.orientations},
	}

	for _, c := range categories {
		if !c.enabled {
			continue
		}
		arr, found := resolveSensorArray(pool, c.kind)
		if !found {
			return berrors.ResolutionError(c.category, "",
				"no driver handle exposes the "+c.kind.String()+" array capability")
		}
		binding, err := bindArray(arr, c.category, c.declared)
		if err != nil {
			return err
		}
		*c.binding = binding
		allocScalars(c.declared, c.kind.Channels(), c.buffers)
		b.log.WithField("category", c.category).
			WithField("sensors", len(c.declared)).Info("sensor array attached")
	}
	return nil
}

// attachForceTorqueSensors disambiguates the declared force/torque names
// between the array capability and discrete analog devices. Names the array
// reports are bound to it; the sorted set difference resolves individually
// as 6-channel analog sensors. With no array in the pool at all, every
// declared name resolves as analog.
func (b *SensorBridge) attachForceTorqueSensors(pool driver.List) error {
	if !b.meta.Options.SixAxisForceTorqueEnabled {
		return nil
	}

	declared := b.meta.Lists.SixAxisForceTorques
	var analogNames []string

	arr, found := resolveSensorArray(pool, driver.ArraySixAxisForceTorque)
	if found {
		reported := arrayNames(arr)
		sort.Strings(reported)

		sortedDeclared := copyStrings(declared)
		sort.Strings(sortedDeclared)

		arrayServed := make([]string, 0, len(sortedDeclared))
		analogNames = make([]string, 0)
		i, j := 0, 0
		for i < len(sortedDeclared) {
			switch {
			case j >= len(reported) || sortedDeclared[i] < reported[j]:
				analogNames = append(analogNames, sortedDeclared[i])
				i++
			case sortedDeclared[i] > reported[j]:
				j++
			default:
				arrayServed = append(arrayServed, sortedDeclared[i])
				i++
				j++
			}
		}

		binding, err := bindArray(arr, CategorySixAxisForceTorque, arrayServed)
		if err != nil {
			return err
		}
		b.handles.ftArray = binding
		b.log.WithField("array_sensors", len(arrayServed)).
			WithField("analog_sensors", len(analogNames)).
			Info("force/torque sensors split between array and analog sources")
	} else {
		analogNames = copyStrings(declared)
	}

	for _, name := range analogNames {
		sensor, err := resolveAnalogSensor(pool, CategorySixAxisForceTorque, name, AnalogForceTorqueChannels)
		if err != nil {
			return err
		}
		b.handles.analogFTs[name] = sensor
	}

	resolved := len(b.handles.analogFTs)
	if b.handles.ftArray != nil {
		resolved += len(b.handles.ftArray.index)
	}
	if resolved != len(declared) {
		return berrors.CompletenessError(CategorySixAxisForceTorque, len(declared), resolved)
	}

	allocScalars(declared, AnalogForceTorqueChannels, b.buffers.forceTorques)
	return nil
}

// attachCartesianWrenches resolves every declared wrench as a 6-channel
// generic sensor. No array variant exists for this category.
func (b *SensorBridge) attachCartesianWrenches(pool driver.List) error {
	if !b.meta.Options.CartesianWrenchEnabled {
		return nil
	}
	for _, name := range b.meta.Lists.CartesianWrenches {
		sensor, err := resolveGenericSensor(pool, CategoryCartesianWrench, name, CartesianWrenchChannels)
		if err != nil {
			return err
		}
		b.handles.wrenches[name] = sensor
	}
	if len(b.handles.wrenches) != len(b.meta.Lists.CartesianWrenches) {
		return berrors.CompletenessError(CategoryCartesianWrench,
			len(b.meta.Lists.CartesianWrenches), len(b.handles.wrenches))
	}
	allocScalars(b.meta.Lists.CartesianWrenches, CartesianWrenchChannels, b.buffers.wrenches)
	return nil
}

// attachCameras resolves RGB and depth cameras independently by exact key,
// fails fast on the first per-item error, re-checks resolved counts against
// declared counts, and sizes every image buffer from the recorded
// dimensions.
func (b *SensorBridge) attachCameras(pool driver.List) error {
	if !b.meta.Options.CameraEnabled {
		return nil
	}

	for _, name := range b.meta.Lists.RGBCameras {
		cam, err := resolveFrameGrabber(pool, name)
		if err != nil {
			return err
		}
		b.handles.rgb[name] = cam
	}
	if len(b.handles.rgb) != len(b.meta.Lists.RGBCameras) {
		return berrors.CompletenessError(CategoryRGBCamera,
			len(b.meta.Lists.RGBCameras), len(b.handles.rgb))
	}

	for _, name := range b.meta.Lists.DepthCameras {
		cam, err := resolveDepthGrabber(pool, name)
		if err != nil {
			return err
		}
		b.handles.depth[name] = cam
	}
	if len(b.handles.depth) != len(b.meta.Lists.DepthCameras) {
		return berrors.CompletenessError(CategoryDepthCamera,
			len(b.meta.Lists.DepthCameras), len(b.handles.depth))
	}

	for _, name := range b.meta.Lists.RGBCameras {
		if !allocImage(name, b.meta.Options.ImageDimensions, b.buffers.rgbImages) {
			return berrors.ResolutionError(CategoryRGBCamera, name,
				"no image dimensions recorded in configuration")
		}
	}
	for _, name := range b.meta.Lists.DepthCameras {
		if !allocImage(name, b.meta.Options.ImageDimensions, b.buffers.depthImages) {
			return berrors.ResolutionError(CategoryDepthCamera, name,
				"no image dimensions recorded in configuration")
		}
	}
	return nil
}

// readAll refreshes every attached sensor's buffer in place with one
// synchronous read per sensor. Failures are aggregated so a verification
// pass can report every broken stream at once.
func (b *SensorBridge) readAll() error {
	var errs error

	if b.handles.encoders != nil {
		if err := b.readJoints(); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	for name, sensor := range b.handles.imus {
		errs = multierr.Append(errs, b.readGeneric(CategoryIMU, name, sensor, b.buffers.imus[name]))
	}
	for _, c := range []struct {
		binding *arrayBinding
		cat     string
		buffers map[string]*scalarBuffer
	}{
		{b.handles.accelerometers, CategoryAccelerometer, b.buffers.accelerometers},
		{b.handles.gyroscopes, CategoryGyroscope, b.buffers.gyroscopes},
		{b.handles.magnetometers, CategoryMagnetometer, b.buffers.magnetometers},
		{b.handles.orientations, CategoryOrientationSensor, b.buffers.orientations},
		{b.handles.ftArray, CategorySixAxisForceTorque, b.buffers.forceTorques},
	} {
		if c.binding == nil {
			continue
		}
		for name, idx := range c.binding.index {
			buf := c.buffers[name]
			stamp, err := c.binding.array.ReadSensor(idx, buf.data)
			if err != nil {
				errs = multierr.Append(errs, berrors.SensorReadError(c.cat, name, err))
				continue
			}
			buf.stamp = stamp
		}
	}
	for name, sensor := range b.handles.analogFTs {
		buf := b.buffers.forceTorques[name]
		stamp, err := sensor.ReadAnalogSensor(buf.data)
		if err != nil {
			errs = multierr.Append(errs, berrors.SensorReadError(CategorySixAxisForceTorque, name, err))
			continue
		}
		buf.stamp = stamp
	}
	for name, sensor := range b.handles.wrenches {
		errs = multierr.Append(errs, b.readGeneric(CategoryCartesianWrench, name, sensor, b.buffers.wrenches[name]))
	}
	for name, cam := range b.handles.rgb {
		buf := b.buffers.rgbImages[name]
		stamp, err := cam.CaptureImage(buf.img)
		if err != nil {
			errs = multierr.Append(errs, berrors.SensorReadError(CategoryRGBCamera, name, err))
			continue
		}
		buf.stamp = stamp
	}
	for name, cam := range b.handles.depth {
		buf := b.buffers.depthImages[name]
		stamp, err := cam.CaptureDepth(buf.img)
		if err != nil {
			errs = multierr.Append(errs, berrors.SensorReadError(CategoryDepthCamera, name, err))
			continue
		}
		buf.stamp = stamp
	}

	return errs
}

// readJoints refreshes the joint buffers, presenting data in declared order
// through the remap table.
func (b *SensorBridge) readJoints() error {
	stamp, err := b.handles.encoders.ReadEncoders(b.buffers.physPositions)
	if err != nil {
		return berrors.SensorReadError(CategoryJoints, b.handles.boardKey, err)
	}
	if err := b.handles.encoders.ReadEncoderSpeeds(b.buffers.physVelocities); err != nil {
		return berrors.SensorReadError(CategoryJoints, b.handles.boardKey, err)
	}
	for declared, phys := range b.buffers.remapIndex {
		b.buffers.jointPositions[declared] = b.buffers.physPositions[phys]
		b.buffers.jointVelocities[declared] = b.buffers.physVelocities[phys]
	}
	b.buffers.jointsStamp = stamp
	return nil
}

func (b *SensorBridge) readGeneric(category, name string, sensor driver.GenericSensor, buf *scalarBuffer) error {
	stamp, err := sensor.ReadGenericSensor(buf.data)
	if err != nil {
		return berrors.SensorReadError(category, name, err)
	}
	buf.stamp = stamp
	return nil
}
