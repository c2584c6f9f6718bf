package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrNotImplemented  ErrorCode = "not_implemented"
	ErrPermission      ErrorCode = "permission_denied"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"
	ErrInvalidProfile  ErrorCode = "invalid_profile"
	ErrInvalidTuning   ErrorCode = "invalid_tuning"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"
	ErrAlreadyRunning ErrorCode = "already_running"

	// Resource errors
	ErrResourceBusy     ErrorCode = "resource_busy"
	ErrResourceNotFound ErrorCode = "resource_not_found"

	// Embedded controller errors
	ErrProtocolTimeout ErrorCode = "ec_protocol_timeout"
	ErrPortIO          ErrorCode = "ec_port_io_failed"
	ErrSnapshotRead    ErrorCode = "snapshot_read_failed"
	ErrLoadModule      ErrorCode = "load_module_failed"

	// Application errors
	ErrMainLoop    ErrorCode = "main_loop_failed"
	ErrWriteFailed ErrorCode = "write_fan_duty_failed"

	// Operation errors
	ErrTimeout ErrorCode = "operation_timeout"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:         "Internal error occurred",
	ErrInvalidArgument:  "Invalid argument provided",
	ErrNotImplemented:   "Operation not implemented",
	ErrPermission:       "Insufficient privilege, run as root",
	ErrInvalidConfig:    "Invalid configuration",
	ErrReadConfig:       "Failed to read config file",
	ErrBindFlags:        "Failed to bind flags",
	ErrInvalidInterval:  "Invalid interval value",
	ErrInvalidProfile:   "Invalid fan profile",
	ErrInvalidTuning:    "Invalid tuning value",
	ErrInvalidLogLevel:  "Invalid log level",
	ErrInitFailed:       "Initialization failed",
	ErrShutdownFailed:   "Shutdown failed",
	ErrAlreadyRunning:   "Another instance is already running",
	ErrResourceBusy:     "Resource is busy",
	ErrResourceNotFound: "Resource not found",
	ErrProtocolTimeout:  "Timed out waiting for the embedded controller",
	ErrPortIO:           "Port I/O failed",
	ErrSnapshotRead:     "Failed to read EC register snapshot",
	ErrLoadModule:       "Failed to load kernel module",
	ErrMainLoop:         "Error in main loop",
	ErrWriteFailed:      "Failed to write fan duty",
	ErrTimeout:          "Operation timed out",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
