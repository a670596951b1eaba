// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package errors

import "net/http"

const (
	DomainConfig    Domain = "CONFIG"
	DomainServer    Domain = "SERVER"
	DomainCommand   Domain = "CMD"
	DomainLifecycle Domain = "LIFECYCLE"
	DomainShares    Domain = "SHARES"
	DomainMount     Domain = "MOUNT"
	DomainKeychain  Domain = "KEYCHAIN"
	DomainAccounts  Domain = "ACCOUNTS"
	DomainNetwork   Domain = "NETWORK"
	DomainMisc      Domain = "MISC"
)

// ErrorCode represents unique error identifiers
type ErrorCode int

// Domain represents the subsystem where the error originated
type Domain string

type MooredError struct {
	Code       ErrorCode `json:"code"`
	Domain     Domain    `json:"domain"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	HTTPStatus int       `json:"-"`

	// Metadata carries contextual key/values that don't fit the standard
	// fields: command lines, paths, raw mount return codes and the like.
	// It is serialized in API responses and attached to log entries.
	Metadata map[string]string `json:"metadata,omitempty"`

	// cause is the wrapped error, kept so errors.As can reach process
	// exit codes and other typed errors underneath.
	cause error
}

// Error code ranges:
// 1000-1099: Configuration errors
// 1100-1199: Server errors
// 1300-1399: Command execution
// 1500-1599: Lifecycle management
// 1600-1699: Miscellaneous
// 1700-1799: Share collection errors
// 1900-1999: Mount/unmount + directory cleanup errors
// 2100-2199: Credential store errors
// 2200-2299: Accounts / auth profile errors
// 2300-2399: Network reachability errors
const (
	// Configuration Errors (1000-1099)
	ConfigNotFound         ErrorCode = 1000 + iota // Config file not found
	ConfigInvalid                                  // Invalid config format
	ConfigLoadFailed                               // Failed to load config
	ConfigWriteFailed                              // Failed to write config
	ConfigDirectoryError                           // Config directory error
	ConfigValidationFailed                         // Config validation failed
	ConfigMarshalFailed                            // Config serialization failed
	ConfigUnmarshalFailed                          // Config deserialization failed
)

const (
	// Server Errors (1100-1199)
	ServerStart             ErrorCode = 1100 + iota // Failed to start server
	ServerShutdown                                  // Error during shutdown
	ServerBind                                      // Failed to bind port
	ServerTimeout                                   // Operation timeout
	ServerRequestValidation                         // Request validation failed
	ServerInternalError                             // Internal server error
	ServerBadRequest                                // Bad request error
	ServerRequestFailed                             // Control API request failed
	ServerRouteNotFound                             // No handler for the requested route
)

const (
	// Command Execution (1300-1399)
	CommandNotFound     ErrorCode = 1300 + iota // Command not found
	CommandExecution                            // Execution failed
	CommandTimeout                              // Command timed out
	CommandInvalidInput                         // Invalid command input
	CommandOutputParse                          // Output parsing failed
	CommandPipe                                 // Command pipe error
)

const (
	// Lifecycle Management (1500-1599)
	LifecyclePID      ErrorCode = 1500 + iota // PID file operation failed
	LifecycleShutdown                         // Shutdown process error
	LifecycleSignal                           // Signal handling error
	LifecycleDaemon                           // Daemon operation failed
)

const (
	// Miscellaneous (1600-1699)
	InternalError  ErrorCode = 1600 + iota // Miscellaneous program error
	FSError                                // Filesystem error
	NotFoundError                          // Not found error
	LoggerError                            // Logger error
	SchedulerError                         // Scheduler error
)

const (
	// Share collection errors (1700-1799)
	ShareInvalidInput    ErrorCode = 1700 + iota // Invalid share input or parameters
	ShareInvalidURL                              // Malformed share URL
	ShareNotFound                                // Share not found
	ShareAlreadyExists                           // Share already exists
	ShareConfigInvalid                           // Invalid share configuration record
	ShareMissingPassword                         // No stored password for password-auth share
	ShareStoreFailed                             // Persisting user shares failed
	ShareOperationFailed                         // Generic share operation failure
)

var errorDefinitions = map[ErrorCode]struct {
	message    string
	domain     Domain
	httpStatus int
}{
	// Configuration errors
	ConfigNotFound:   {"Configuration file not found", DomainConfig, http.StatusNotFound},
	ConfigInvalid:    {"Invalid configuration format", DomainConfig, http.StatusBadRequest},
	ConfigLoadFailed: {"Failed to load configuration", DomainConfig, http.StatusInternalServerError},
	ConfigWriteFailed: {
		"Failed to write configuration",
		DomainConfig,
		http.StatusInternalServerError,
	},
	ConfigDirectoryError: {
		"Config directory error",
		DomainConfig,
		http.StatusInternalServerError,
	},
	ConfigValidationFailed: {
		"Configuration validation failed",
		DomainConfig,
		http.StatusBadRequest,
	},
	ConfigMarshalFailed: {
		"Failed to serialize configuration",
		DomainConfig,
		http.StatusInternalServerError,
	},
	ConfigUnmarshalFailed: {
		"Failed to deserialize configuration",
		DomainConfig,
		http.StatusInternalServerError,
	},

	// Server errors
	ServerStart:    {"Failed to start server", DomainServer, http.StatusInternalServerError},
	ServerShutdown: {"Error during server shutdown", DomainServer, http.StatusInternalServerError},
	ServerBind:     {"Failed to bind server port", DomainServer, http.StatusInternalServerError},
	ServerTimeout:  {"Server operation timed out", DomainServer, http.StatusGatewayTimeout},
	ServerRequestValidation: {
		"Request validation failed",
		DomainServer,
		http.StatusBadRequest,
	},
	ServerInternalError: {"Internal server error", DomainServer, http.StatusInternalServerError},
	ServerBadRequest:    {"Bad request error", DomainServer, http.StatusBadRequest},
	ServerRequestFailed: {
		"Control API request failed",
		DomainServer,
		http.StatusBadGateway,
	},
	ServerRouteNotFound: {"Route not found", DomainServer, http.StatusNotFound},

	// Command execution errors
	CommandNotFound:     {"Command not found", DomainCommand, http.StatusInternalServerError},
	CommandExecution:    {"Command execution failed", DomainCommand, http.StatusInternalServerError},
	CommandTimeout:      {"Command execution timed out", DomainCommand, http.StatusGatewayTimeout},
	CommandInvalidInput: {"Invalid command input", DomainCommand, http.StatusBadRequest},
	CommandOutputParse: {
		"Command output parsing failed",
		DomainCommand,
		http.StatusInternalServerError,
	},
	CommandPipe: {"Command pipe error", DomainCommand, http.StatusInternalServerError},

	// Lifecycle errors
	LifecyclePID: {"PID file operation failed", DomainLifecycle, http.StatusInternalServerError},
	LifecycleShutdown: {
		"Shutdown process error",
		DomainLifecycle,
		http.StatusInternalServerError,
	},
	LifecycleSignal: {"Signal handling error", DomainLifecycle, http.StatusInternalServerError},
	LifecycleDaemon: {"Daemon operation failed", DomainLifecycle, http.StatusInternalServerError},

	// Miscellaneous errors
	InternalError:  {"Miscellaneous program error", DomainMisc, http.StatusInternalServerError},
	FSError:        {"Filesystem error", DomainMisc, http.StatusInternalServerError},
	NotFoundError:  {"Not found", DomainMisc, http.StatusNotFound},
	LoggerError:    {"Logger error", DomainMisc, http.StatusInternalServerError},
	SchedulerError: {"Scheduler error", DomainMisc, http.StatusInternalServerError},

	// Share collection errors
	ShareInvalidInput: {
		"Invalid share input or parameters",
		DomainShares,
		http.StatusBadRequest,
	},
	ShareInvalidURL:    {"Malformed share URL", DomainShares, http.StatusBadRequest},
	ShareNotFound:      {"Share not found", DomainShares, http.StatusNotFound},
	ShareAlreadyExists: {"Share already exists", DomainShares, http.StatusConflict},
	ShareConfigInvalid: {
		"Invalid share configuration record",
		DomainShares,
		http.StatusBadRequest,
	},
	ShareMissingPassword: {
		"No stored password for share",
		DomainShares,
		http.StatusUnauthorized,
	},
	ShareStoreFailed: {
		"Failed to persist user shares",
		DomainShares,
		http.StatusInternalServerError,
	},
	ShareOperationFailed: {
		"Share operation failed",
		DomainShares,
		http.StatusInternalServerError,
	},
}
