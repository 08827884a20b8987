// Package driver defines the capability contracts between the sensor bridge
// and the device framework that owns the hardware drivers.
//
// A driver handle is a borrowed (key, device) pair. The bridge discovers what
// a device can do by asserting its device against the capability interfaces
// below; a device may implement any number of them. Handles are never owned
// by the bridge: their lifetime belongs to the framework that supplied them,
// and a new attach generation discards every previously borrowed handle.
package driver

// Handle is one borrowed driver entry from the device framework pool.
// Key is the framework-assigned name; for one-to-one sensors it must match
// the logical sensor name declared in configuration.
type Handle struct {
	Key    string
	Device any
}

// List is the pool of driver handles supplied at attach time.
type List []*Handle

// FindKey returns the first handle whose key matches, or nil.
func (l List) FindKey(key string) *Handle {
	for _, h := range l {
		if h != nil && h.Key == key {
			return h
		}
	}
	return nil
}

// Keys returns the keys of all handles in pool order.
func (l List) Keys() []string {
	keys := make([]string, 0, len(l))
	for _, h := range l {
		if h != nil {
			keys = append(keys, h.Key)
		}
	}
	return keys
}

// ArrayKind identifies which sensor family a multi-sensor array serves.
type ArrayKind int

const (
	ArrayAccelerometers ArrayKind = iota
	ArrayGyroscopes
	ArrayMagnetometers
	ArrayOrientationSensors
	ArraySixAxisForceTorque
)

// String returns the configuration name of the array kind.
func (k ArrayKind) String() string {
	switch k {
	case ArrayAccelerometers:
		return "accelerometers"
	case ArrayGyroscopes:
		return "gyroscopes"
	case ArrayMagnetometers:
		return "magnetometers"
	case ArrayOrientationSensors:
		return "orientation_sensors"
	case ArraySixAxisForceTorque:
		return "six_axis_force_torque"
	default:
		return "unknown"
	}
}

// Channels returns the per-sensor channel count for the kind.
func (k ArrayKind) Channels() int {
	if k == ArraySixAxisForceTorque {
		return 6
	}
	return 3
}

// SensorArray is the view of one multi-sensor-array capability: a single
// device exposing several independently named sensors of the same kind.
// Indices are stable for the lifetime of the borrowed handle.
type SensorArray interface {
	// Kind reports which sensor family this array serves.
	Kind() ArrayKind

	// Size returns the number of sensors behind the array.
	Size() int

	// SensorName returns the name of the sensor at the given index.
	SensorName(idx int) (string, error)

	// ReadSensor copies the latest sample of the sensor at idx into dst
	// (len(dst) must equal Kind().Channels()) and returns the sample
	// receive time in seconds.
	ReadSensor(idx int, dst []float64) (float64, error)
}

// ArrayDevice is implemented by devices that expose one or more multi-sensor
// arrays. Array returns the view for the requested kind, or nil if the device
// does not serve that kind.
type ArrayDevice interface {
	Array(kind ArrayKind) SensorArray
}

// GenericSensor is the single-channel-group generic capability. The channel
// count is the only identity the device reports; the bridge matches it
// against the count expected for the declared sensor class.
type GenericSensor interface {
	// GenericSensorChannels returns the number of channels in the stream.
	GenericSensorChannels() (int, error)

	// ReadGenericSensor copies the latest sample into dst and returns the
	// sample receive time in seconds.
	ReadGenericSensor(dst []float64) (float64, error)
}

// AnalogSensor is the analog scalar-channel capability. Six-axis
// force/torque sensors wired as discrete devices surface through it.
type AnalogSensor interface {
	// AnalogSensorChannels returns the number of channels in the stream.
	AnalogSensorChannels() int

	// ReadAnalogSensor copies the latest sample into dst and returns the
	// sample receive time in seconds.
	ReadAnalogSensor(dst []float64) (float64, error)
}

// AxisInfo is the control-board axis-naming capability.
type AxisInfo interface {
	// Axes returns the number of physical axes on the board.
	Axes() int

	// AxisName returns the name of the physical axis at the given index.
	AxisName(idx int) (string, error)
}

// EncodersTimed is the control-board timed-encoder capability. Samples are
// reported in the board's own physical axis order.
type EncodersTimed interface {
	// ReadEncoders copies the latest joint positions (radians) into dst
	// (len(dst) must equal Axes()) and returns the sample receive time.
	ReadEncoders(dst []float64) (float64, error)

	// ReadEncoderSpeeds copies the latest joint velocities into dst.
	ReadEncoderSpeeds(dst []float64) error
}

// FrameGrabber is the color camera capability.
type FrameGrabber interface {
	// ImageSize returns the native (width, height) of the stream.
	ImageSize() (int, int)

	// CaptureImage copies the latest frame into img, which the caller has
	// sized from configuration, and returns the frame receive time.
	CaptureImage(img *Image) (float64, error)
}

// DepthGrabber is the depth camera capability.
type DepthGrabber interface {
	// DepthSize returns the native (width, height) of the depth stream.
	DepthSize() (int, int)

	// CaptureDepth copies the latest depth frame into img and returns the
	// frame receive time.
	CaptureDepth(img *Image) (float64, error)
}
