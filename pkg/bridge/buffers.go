// Measurement buffer management
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package bridge

import "sensor-bridge-go/pkg/driver"

// scalarBuffer holds the latest sample of one scalar-vector sensor.
type scalarBuffer struct {
	data  []float64
	stamp float64
}

func newScalarBuffer(channels int) *scalarBuffer {
	return &scalarBuffer{data: make([]float64, channels)}
}

// imageBuffer holds the latest frame of one camera, sized from configuration.
type imageBuffer struct {
	img   *driver.Image
	stamp float64
}

// measurementBuffers is the full set of per-sensor buffers for one attach
// generation. A new generation allocates a fresh set, so re-attach replaces
// buffer contents instead of merging them.
type measurementBuffers struct {
	// Control board. remapIndex translates declared joint order to the
	// physical axis order; the phys slices are read scratch in board order.
	remapIndex      []int
	jointPositions  []float64
	jointVelocities []float64
	physPositions   []float64
	physVelocities  []float64
	jointsStamp     float64

	imus           map[string]*scalarBuffer
	accelerometers map[string]*scalarBuffer
	gyroscopes     map[string]*scalarBuffer
	orientations   map[string]*scalarBuffer
	magnetometers  map[string]*scalarBuffer
	forceTorques   map[string]*scalarBuffer
	wrenches       map[string]*scalarBuffer

	rgbImages   map[string]*imageBuffer
	depthImages map[string]*imageBuffer
}

func newMeasurementBuffers() *measurementBuffers {
	return &measurementBuffers{
		imus:           make(map[string]*scalarBuffer),
		accelerometers: make(map[string]*scalarBuffer),
		gyroscopes:     make(map[string]*scalarBuffer),
		orientations:   make(map[string]*scalarBuffer),
		magnetometers:  make(map[string]*scalarBuffer),
		forceTorques:   make(map[string]*scalarBuffer),
		wrenches:       make(map[string]*scalarBuffer),
		rgbImages:      make(map[string]*imageBuffer),
		depthImages:    make(map[string]*imageBuffer),
	}
}

// resetControlBoard sizes and zeroes the joint buffers for the declared
// joint count and the board's physical axis count.
func (m *measurementBuffers) resetControlBoard(nrJoints, physAxes int) {
	m.remapIndex = make([]int, nrJoints)
	m.jointPositions = make([]float64, nrJoints)
	m.jointVelocities = make([]float64, nrJoints)
	m.physPositions = make([]float64, physAxes)
	m.physVelocities = make([]float64, physAxes)
	m.jointsStamp = 0
}

// allocScalars allocates one zeroed buffer per declared name.
func allocScalars(names []string, channels int, dst map[string]*scalarBuffer) {
	for _, name := range names {
		dst[name] = newScalarBuffer(channels)
	}
}

// allocImage sizes a camera buffer from its recorded dimensions. A camera
// name with no recorded dimension is reported by the caller.
func allocImage(name string, dims map[string]ImageDim, dst map[string]*imageBuffer) bool {
	dim, ok := dims[name]
	if !ok {
		return false
	}
	dst[name] = &imageBuffer{img: driver.NewImage(dim.Width, dim.Height)}
	return true
}
