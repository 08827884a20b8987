// Examples of using the error handling and logging systems
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package examples

import (
	"fmt"
	"os"
	"strings"

	"sensor-bridge-go/pkg/errors"
	"sensor-bridge-go/pkg/log"
)

func Example1_BasicErrorHandling() {
	// Example 1: Basic error creation
	fmt.Println("=== Example 1: Basic Error Handling ===")

	// Create different types of errors
	err := errors.ConfigSectionError("cameras")
	fmt.Printf("Error: %v\n", err)

	err = errors.ConfigOptionError("cameras", "rgb_image_width")
	fmt.Printf("Error: %v\n", err)

	err = errors.ResolutionError("imu", "head_imu", "no driver with matching key")
	fmt.Printf("Error: %v\n", err)

	fmt.Println()
}

func Example2_ConfigValidation() {
	fmt.Println("=== Example 2: Config Validation ===")

	// Simulate config parsing with validation
	section := "cameras"
	option := "rgb_image_width"

	// Missing required option
	err := errors.ConfigOptionError(section, option)
	fmt.Printf("Missing option error: %v\n", err)

	// Parallel list size mismatch
	err = errors.ConfigSizeError(section, option, 2, 1)
	fmt.Printf("Size error: %v\n", err)

	// Type conversion error
	value := "wide"
	err = errors.ConfigTypeError(section, option, value, "int", fmt.Errorf("not a number"))
	fmt.Printf("Type error: %v\n", err)

	fmt.Println()
}

func Example3_AttachErrors() {
	fmt.Println("=== Example 3: Attach Errors ===")

	// Declared sensor missing from the driver pool
	err := errors.ResolutionError("cartesian_wrenches", "left_arm_wrench", "no driver with matching key")
	fmt.Printf("Resolution: %v\n", err)

	// Channel count is the identity proof for scalar sensors
	err = errors.ChannelMismatchError("imu", "head_imu", 12, 8)
	fmt.Printf("Channel mismatch: %v\n", err)

	// Fewer handles resolved than declared
	err = errors.CompletenessError("rgb_cameras", 2, 1)
	fmt.Printf("Completeness: %v\n", err)

	// Key matched but the capability view failed
	err = errors.CapabilityViewError("depth_cameras", "realsense_head", "depth grabber")
	fmt.Printf("Capability view: %v\n", err)

	fmt.Println()
}

func Example4_PollingErrors() {
	fmt.Println("=== Example 4: Polling Errors ===")

	// Getter before a successful attach
	err := errors.NotReadyError("JointPositions")
	fmt.Printf("Not ready: %v\n", err)

	// Getter with an undeclared name
	err = errors.UnknownSensorError("gyroscopes", "waist_gyro")
	fmt.Printf("Unknown sensor: %v\n", err)

	// Transport-level read failure propagates without retry
	err = errors.SensorReadError("imu", "head_imu", fmt.Errorf("port closed"))
	fmt.Printf("Read failure: %v\n", err)

	fmt.Println()
}

func Example5_WrappingErrors() {
	fmt.Println("=== Example 5: Wrapping Errors ===")

	// Wrap an existing error
	baseErr := fmt.Errorf("file not found")
	wrappedErr := errors.Wrap(baseErr, errors.ErrConfigSection, "failed to load config")
	fmt.Printf("Wrapped error: %v\n", wrappedErr)

	// Add context - fluent setters return the same error
	fmt.Printf("With section: %v\n", wrappedErr.SetSection("sensor_bridge"))
	fmt.Printf("With option: %v\n", wrappedErr.SetOption("config_file"))

	fmt.Println()
}

func Example6_ErrorChecking() {
	fmt.Println("=== Example 6: Error Checking ===")

	// Create different errors
	configErr := errors.ConfigOptionError("control_board", "joints_list")
	attachErr := errors.ResolutionError("joints", "torso_pitch", "axis not found on control board")
	runtimeErr := errors.RuntimeError("unexpected shutdown")

	// Check error types
	fmt.Println("Checking error types:")
	fmt.Printf("Is config error? %v\n", errors.IsConfig(configErr))
	fmt.Printf("Is attach error? %v\n", errors.IsAttach(attachErr))
	fmt.Printf("Is runtime error? %v\n", errors.IsRuntime(runtimeErr))
	fmt.Printf("Is config error? %v\n", errors.IsConfig(attachErr))

	fmt.Println()
}

func Example7_LoggingUsage() {
	fmt.Println("=== Example 7: Logging Usage ===")

	// Create logger with different prefixes
	configLogger := log.New("[config]")
	attachLogger := log.New("[attach]")
	pollLogger := log.New("[poll]")

	// Log at different levels
	configLogger.Info("Loading configuration file")
	configLogger.Debug("Parsed section [inertial_sensors]")
	configLogger.Warn("Option 'stream_cameras' not set, cameras disabled")

	fmt.Println()

	attachLogger.Info("Resolving control board")
	attachLogger.Debug("Remapped joint torso_pitch to axis 3")
	attachLogger.Error("Declared joint neck_yaw not found on control board")

	fmt.Println()

	pollLogger.Info("Polling 14 sensors at 100 Hz")
	pollLogger.Debug("IMU head_imu sample at 1043.201s")

	fmt.Println()
}

func Example8_ErrorRecovery() {
	fmt.Println("=== Example 8: Error Recovery ===")

	// Simulate function that might panic
	riskyOperation := func() {
		panic("something went wrong")
	}

	// Recover from panic using defer
	defer func() {
		if err := errors.RecoverPanic(); err != nil {
			logger := log.GetLogger("recovery")
			logger.Error("Recovered from panic: %v", err)
		}
	}()

	logger := log.GetLogger("app")
	logger.Info("Starting risky operation")

	riskyOperation()

	logger.Info("Operation completed")
}

func Example9_EnvironmentVariables() {
	fmt.Println("=== Example 9: Environment Variables ===")

	// Set log level via environment variable
	os.Setenv("BRIDGE_LOG_LEVEL", "DEBUG")

	// Get logger (will pick up the env var)
	logger := log.GetLogger("env")

	logger.Debug("This will show because DEBUG is set")
	logger.Info("This will also show")

	fmt.Println()

	// Disable color output
	os.Setenv("NO_COLOR", "1")
	colorDisabledLogger := log.New("no-color")
	colorDisabledLogger.Info("Color should be disabled")

	fmt.Println()
}

func Example10_CompleteWorkflow() {
	fmt.Println("=== Example 10: Complete Workflow ===")

	logger := log.GetLogger("workflow")
	logger.Info("Starting attach workflow example")

	// Step 1: Load config
	logger.Info("Step 1: Loading configuration")
	lists, err := loadSensorLists()
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		return
	}

	// Step 2: Validate declared lists
	logger.Info("Step 2: Validating declared sensors")
	if err := validateSensorLists(lists); err != nil {
		logger.Error("Validation failed: %v", err)
		return
	}

	// Step 3: Attach driver pool
	logger.Info("Step 3: Attaching driver pool")
	if err := attachDrivers(lists); err != nil {
		logger.Error("Attach failed: %v", err)
		return
	}

	logger.Info("Bridge ready")
}

// Helper functions for examples

func loadSensorLists() (map[string][]string, error) {
	logger := log.GetLogger("config")
	logger.Debug("Reading config file")

	lists := map[string][]string{
		"joints":     {"torso_pitch", "torso_roll"},
		"imu":        {"head_imu"},
		"gyroscopes": {"waist_gyro"},
	}

	logger.Info("Config loaded")
	return lists, nil
}

func validateSensorLists(lists map[string][]string) error {
	logger := log.GetLogger("config")
	logger.Debug("Validating declared lists")

	if len(lists["joints"]) == 0 {
		return errors.ConfigOptionError("control_board", "joints_list")
	}

	logger.Debug("Validation passed")
	return nil
}

func attachDrivers(lists map[string][]string) error {
	logger := log.GetLogger("attach")
	logger.Info("Resolving %d categories", len(lists))

	// Simulate resolution
	logger.Debug("Control board exposes 6 axes")
	logger.Info("All declared sensors resolved")
	return nil
}

func main() {
	fmt.Println("Sensor Bridge - Error Handling & Logging Examples")
	fmt.Println("=" + strings.Repeat("=", 60))
	fmt.Println()

	Example1_BasicErrorHandling()
	Example2_ConfigValidation()
	Example3_AttachErrors()
	Example4_PollingErrors()
	Example5_WrappingErrors()
	Example6_ErrorChecking()
	Example7_LoggingUsage()
	Example8_ErrorRecovery()
	Example9_EnvironmentVariables()
	Example10_CompleteWorkflow()

	fmt.Println("=" + strings.Repeat("=", 60))
	fmt.Println("All examples completed!")
}
