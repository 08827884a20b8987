// Unified error handling for the sensor bridge host
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	"fmt"
	"runtime"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors
	ErrConfigSection    ErrorCode = "CONFIG_SECTION"
	ErrConfigOption     ErrorCode = "CONFIG_OPTION"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrConfigType       ErrorCode = "CONFIG_TYPE"
	ErrConfigSize       ErrorCode = "CONFIG_SIZE"

	// Attach-time errors
	ErrResolution     ErrorCode = "RESOLUTION"
	ErrCompleteness   ErrorCode = "COMPLETENESS"
	ErrCapabilityView ErrorCode = "CAPABILITY_VIEW"

	// Polling errors
	ErrNotReady      ErrorCode = "NOT_READY"
	ErrUnknownSensor ErrorCode = "UNKNOWN_SENSOR"
	ErrSensorRead    ErrorCode = "SENSOR_READ"

	// Runtime errors
	ErrRuntime     ErrorCode = "RUNTIME"
	ErrRuntimeInit ErrorCode = "RUNTIME_INIT"
)

// BridgeError is the unified error type for the host system
type BridgeError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Section is the config section or context
	Section string

	// Option is the config option name (if applicable)
	Option string

	// Category is the sensor category (if applicable)
	Category string

	// Sensor is the logical sensor name (if applicable)
	Sensor string

	// Err wraps the underlying error
	Err error

	// Context provides additional context
	Context map[string]interface{}
}

// Error implements the error interface
func (e *BridgeError) Error() string {
	switch {
	case e.Sensor != "":
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Sensor, e.Message)
	case e.Option != "":
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Option, e.Message)
	case e.Category != "":
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Category, e.Message)
	default:
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Section, e.Message)
	}
}

// Unwrap returns the underlying error
func (e *BridgeError) Unwrap() error {
	return e.Err
}

// SetSection sets the context section
func (e *BridgeError) SetSection(section string) *BridgeError {
	e.Section = section
	return e
}

// SetOption sets the config option
func (e *BridgeError) SetOption(option string) *BridgeError {
	e.Option = option
	return e
}

// SetCategory sets the sensor category
func (e *BridgeError) SetCategory(category string) *BridgeError {
	e.Category = category
	return e
}

// SetSensor sets the logical sensor name
func (e *BridgeError) SetSensor(sensor string) *BridgeError {
	e.Sensor = sensor
	return e
}

// SetContext adds additional context
func (e *BridgeError) SetContext(key string, value interface{}) *BridgeError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *BridgeError {
	return &BridgeError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// New creates a new BridgeError
func New(code ErrorCode, message string) *BridgeError {
	return &BridgeError{
		Code:    code,
		Message: message,
	}
}

// Config errors

// ConfigSectionError creates an error for a missing config section
func ConfigSectionError(section string) *BridgeError {
	return New(ErrConfigSection, fmt.Sprintf("section '%s' not found", section)).
		SetSection(section)
}

// ConfigOptionError creates an error for a missing or invalid config option
func ConfigOptionError(section, option string) *BridgeError {
	return New(ErrConfigOption, fmt.Sprintf("option '%s' not found in section '%s'", option, section)).
		SetSection(section).
		SetOption(option)
}

// ConfigValidationError creates an error for a config validation failure
func ConfigValidationError(section, option string, reason string) *BridgeError {
	return New(ErrConfigValidation, fmt.Sprintf("option '%s' in section '%s': %s", option, section, reason)).
		SetSection(section).
		SetOption(option)
}

// ConfigTypeError creates an error for a config type conversion failure
func ConfigTypeError(section, option, value string, targetType string, err error) *BridgeError {
	return Wrap(err, ErrConfigType, fmt.Sprintf("option '%s' in section '%s': failed to parse '%s' as %s", option, section, value, targetType)).
		SetSection(section).
		SetOption(option)
}

// ConfigSizeError creates an error for parallel lists of mismatched length
func ConfigSizeError(section, option string, want, got int) *BridgeError {
	return New(ErrConfigSize, fmt.Sprintf("option '%s' in section '%s': expected %d entries, found %d", option, section, want, got)).
		SetSection(section).
		SetOption(option)
}

// Attach errors

// ResolutionError creates an error for a declared sensor that could not be
// resolved against the driver pool
func ResolutionError(category, sensor string, reason string) *BridgeError {
	return New(ErrResolution, fmt.Sprintf("%s sensor '%s': %s", category, sensor, reason)).
		SetCategory(category).
		SetSensor(sensor)
}

// ChannelMismatchError creates an error for a scalar sensor whose channel
// count does not match the count expected for its category. Channel count is
// the only identity proof for scalar sensors, so this is reported as a
// resolution failure like any other wrong-sensor condition.
func ChannelMismatchError(category, sensor string, want, got int) *BridgeError {
	return New(ErrResolution, fmt.Sprintf("%s sensor '%s': expected %d channels, device reports %d", category, sensor, want, got)).
		SetCategory(category).
		SetSensor(sensor).
		SetContext("expected_channels", want).
		SetContext("reported_channels", got)
}

// CompletenessError creates an error for a category resolving fewer handles
// than were declared
func CompletenessError(category string, declared, resolved int) *BridgeError {
	return New(ErrCompleteness, fmt.Sprintf("%s: declared %d sensors, resolved %d", category, declared, resolved)).
		SetCategory(category).
		SetContext("declared", declared).
		SetContext("resolved", resolved)
}

// CapabilityViewError creates an error for a driver key that matched but did
// not expose the required capability interface
func CapabilityViewError(category, key string, capability string) *BridgeError {
	return New(ErrCapabilityView, fmt.Sprintf("%s: driver '%s' does not expose the %s capability", category, key, capability)).
		SetCategory(category).
		SetSensor(key)
}

// Polling errors

// NotReadyError creates an error for a getter invoked before a successful attach
func NotReadyError(operation string) *BridgeError {
	return New(ErrNotReady, fmt.Sprintf("%s: bridge is not ready (initialize and attach first)", operation))
}

// UnknownSensorError creates an error for a getter invoked with an undeclared name
func UnknownSensorError(category, sensor string) *BridgeError {
	return New(ErrUnknownSensor, fmt.Sprintf("%s sensor '%s' is not attached", category, sensor)).
		SetCategory(category).
		SetSensor(sensor)
}

// SensorReadError creates an error for a transport-level read failure
func SensorReadError(category, sensor string, err error) *BridgeError {
	return Wrap(err, ErrSensorRead, fmt.Sprintf("%s sensor '%s': read failed", category, sensor)).
		SetCategory(category).
		SetSensor(sensor)
}

// Runtime errors

// RuntimeError creates a general runtime error
func RuntimeError(message string) *BridgeError {
	return New(ErrRuntime, message)
}

// RuntimeErrorInit creates an error for initialization failure
func RuntimeErrorInit(component string, reason string) *BridgeError {
	return New(ErrRuntimeInit, fmt.Sprintf("failed to initialize %s: %s", component, reason))
}

// RecoverPanic safely recovers from panic and converts to error
func RecoverPanic() *BridgeError {
	if r := recover(); r != nil {
		var err error
		switch x := r.(type) {
		case string:
			err = RuntimeError(fmt.Sprintf("panic: %s", x))
		case error:
			err = RuntimeError(x.Error())
		case runtime.Error:
			err = RuntimeError(x.Error())
		default:
			err = RuntimeError(fmt.Sprintf("panic: %v", x))
		}
		return err.(*BridgeError)
	}
	return nil
}

// Is checks if error matches given error code
func Is(err error, code ErrorCode) bool {
	if bridgeErr, ok := err.(*BridgeError); ok {
		return bridgeErr.Code == code
	}
	return false
}

// IsConfig checks if error is a config error
func IsConfig(err error) bool {
	return Is(err, ErrConfigSection) ||
		Is(err, ErrConfigOption) ||
		Is(err, ErrConfigValidation) ||
		Is(err, ErrConfigType) ||
		Is(err, ErrConfigSize)
}

// IsAttach checks if error is an attach-time validation error
func IsAttach(err error) bool {
	return Is(err, ErrResolution) ||
		Is(err, ErrCompleteness) ||
		Is(err, ErrCapabilityView)
}

// IsRuntime checks if error is a runtime error
func IsRuntime(err error) bool {
	return Is(err, ErrRuntime) ||
		Is(err, ErrRuntimeInit)
}
