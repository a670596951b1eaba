// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"maps"
	"net/http"
)

const (
	DomainDirectory Domain = "DIRECTORY"
)

// Mount/unmount error codes (1900-1999)
const (
	// Mount orchestration errors (1900-1929)
	MountFailed            ErrorCode = 1900 + iota // Generic mount failure
	MountEncodingFailed                            // Percent-encoding of the share URL failed
	MountInvalidHost                               // Share URL has no resolvable host component
	MountProbeFailed                               // Reachability probe itself failed
	MountTargetUnreachable                         // Host did not answer the reachability probe
	MountNoSuchShare                               // Server reports the export does not exist
	MountHostDown                                  // Host down, timeout, or no route
	MountAuthFailed                                // Credentials rejected by the server
	MountUnknownCode                               // Unmapped mount return code
	MountRootUnavailable                           // Mount root directory cannot be created
	UnmountFailed                                  // OS declined to unmount
)

const (
	// Directory cleanup errors (1930-1959)
	DirectoryProtected     ErrorCode = 1930 + iota // Path is under a protected system mount root
	DirectoryIsMountPoint                          // Path is a live filesystem mount
	DirectoryNotEmpty                              // Directory has visible entries
	DirectoryRemoveFailed                          // Removal failed
	DirectoryResolveFailed                         // Symlink resolution failed
)

const (
	// Credential store errors (2100-2199)
	KeychainSaveFailed   ErrorCode = 2100 + iota // Failed to save credential
	KeychainReadFailed                           // Failed to read credential
	KeychainRemoveFailed                         // Failed to remove credential
	KeychainItemNotFound                         // Credential item not found
)

const (
	// Accounts / auth profile errors (2200-2299)
	AccountsProfileNotFound ErrorCode = 2200 + iota // Auth profile not found
	AccountsNoUniqueProfile                         // No unique profile match for share
	AccountsLookupFailed                            // Directory-service lookup failed
	AccountsConnectFailed                           // Failed to connect to directory service
)

const (
	// Network reachability errors (2300-2399)
	NetworkUnreachable   ErrorCode = 2300 + iota // Network is down
	NetworkProbeFailed                           // Reachability probe failed
	NetworkMonitorFailed                         // Network monitor error
)

func init() {
	mountErrorDefinitions := map[ErrorCode]struct {
		message    string
		domain     Domain
		httpStatus int
	}{
		// Mount orchestration errors
		MountFailed: {
			"Mount operation failed",
			DomainMount,
			http.StatusInternalServerError,
		},
		MountEncodingFailed: {
			"Failed to percent-encode share URL",
			DomainMount,
			http.StatusBadRequest,
		},
		MountInvalidHost: {
			"Share URL has no resolvable host",
			DomainMount,
			http.StatusBadRequest,
		},
		MountProbeFailed: {
			"Reachability probe failed",
			DomainMount,
			http.StatusServiceUnavailable,
		},
		MountTargetUnreachable: {
			"Share host is unreachable",
			DomainMount,
			http.StatusServiceUnavailable,
		},
		MountNoSuchShare: {
			"Share does not exist on server",
			DomainMount,
			http.StatusNotFound,
		},
		MountHostDown: {
			"Share host is down or unroutable",
			DomainMount,
			http.StatusServiceUnavailable,
		},
		MountAuthFailed: {
			"Authentication to share failed",
			DomainMount,
			http.StatusUnauthorized,
		},
		MountUnknownCode: {
			"Unmapped mount return code",
			DomainMount,
			http.StatusInternalServerError,
		},
		MountRootUnavailable: {
			"Mount root directory unavailable",
			DomainMount,
			http.StatusInternalServerError,
		},
		UnmountFailed: {
			"Unmount operation failed",
			DomainMount,
			http.StatusInternalServerError,
		},

		// Directory cleanup errors
		DirectoryProtected: {
			"Directory is under a protected mount root",
			DomainDirectory,
			http.StatusForbidden,
		},
		DirectoryIsMountPoint: {
			"Directory is a live filesystem mount",
			DomainDirectory,
			http.StatusForbidden,
		},
		DirectoryNotEmpty: {
			"Directory is not empty",
			DomainDirectory,
			http.StatusConflict,
		},
		DirectoryRemoveFailed: {
			"Directory removal failed",
			DomainDirectory,
			http.StatusInternalServerError,
		},
		DirectoryResolveFailed: {
			"Failed to resolve directory path",
			DomainDirectory,
			http.StatusInternalServerError,
		},

		// Credential store errors
		KeychainSaveFailed: {
			"Failed to save credential",
			DomainKeychain,
			http.StatusInternalServerError,
		},
		KeychainReadFailed: {
			"Failed to read credential",
			DomainKeychain,
			http.StatusInternalServerError,
		},
		KeychainRemoveFailed: {
			"Failed to remove credential",
			DomainKeychain,
			http.StatusInternalServerError,
		},
		KeychainItemNotFound: {
			"Credential item not found",
			DomainKeychain,
			http.StatusNotFound,
		},

		// Accounts errors
		AccountsProfileNotFound: {
			"Auth profile not found",
			DomainAccounts,
			http.StatusNotFound,
		},
		AccountsNoUniqueProfile: {
			"No unique auth profile match",
			DomainAccounts,
			http.StatusConflict,
		},
		AccountsLookupFailed: {
			"Directory service lookup failed",
			DomainAccounts,
			http.StatusInternalServerError,
		},
		AccountsConnectFailed: {
			"Failed to connect to directory service",
			DomainAccounts,
			http.StatusInternalServerError,
		},

		// Network errors
		NetworkUnreachable: {
			"Network is unreachable",
			DomainNetwork,
			http.StatusServiceUnavailable,
		},
		NetworkProbeFailed: {
			"Network reachability probe failed",
			DomainNetwork,
			http.StatusServiceUnavailable,
		},
		NetworkMonitorFailed: {
			"Network monitor error",
			DomainNetwork,
			http.StatusInternalServerError,
		},
	}

	maps.Copy(errorDefinitions, mountErrorDefinitions)
}
