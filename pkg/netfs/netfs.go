// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

// Package netfs is the single surface between moored and the OS mount
// machinery. It invokes the platform mount/unmount tools and translates
// their raw integer result codes into a closed Outcome type. This is the
// one place that tracks platform-specific magic numbers.
package netfs

import (
	"bufio"
	"strings"
)

// Outcome classifies a mount attempt's raw result code.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	// OutcomeAlreadyMounted: the target is already a live mount. Treated
	// as success by the orchestrator.
	OutcomeAlreadyMounted
	// OutcomeNoSuchShare: the server reports the export missing.
	// Terminal until the configuration changes.
	OutcomeNoSuchShare
	// OutcomeAuthFailed: credentials were rejected. Retried after a
	// credential refresh.
	OutcomeAuthFailed
	// OutcomeHostDown: transient network-layer failure (timeout, host
	// down, no route). Retried on the next pass.
	OutcomeHostDown
	// OutcomeUnknown: a result code with no mapping. Logged with the raw
	// code for diagnosis.
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAlreadyMounted:
		return "already-mounted"
	case OutcomeNoSuchShare:
		return "no-such-share"
	case OutcomeAuthFailed:
		return "auth-failed"
	case OutcomeHostDown:
		return "host-down"
	default:
		return "unknown"
	}
}

// Raw result codes. The mount tools report errno values; NetFS adds its
// own negative soft-error range.
const (
	codeENOENT       = 2
	codeEACCES       = 13
	codeEEXIST       = 17
	codeENODEV       = 19
	codeEPIPE        = 32
	codeENETDOWN     = 50
	codeENETUNREACH  = 51
	codeECONNABORTED = 53
	codeECONNREFUSED = 61
	codeETIMEDOUT    = 60
	codeEHOSTDOWN    = 64
	codeEHOSTUNREACH = 65
	codeEAUTH        = 80
	codeENEEDAUTH    = 81

	// NetFS reports a missing export with this soft error instead of a
	// plain errno.
	codeNoSuchShare = -6003
)

// Classify maps a raw mount result code to an Outcome.
func Classify(code int) Outcome {
	switch code {
	case 0:
		return OutcomeSuccess
	case codeEEXIST:
		return OutcomeAlreadyMounted
	case codeENOENT, codeENODEV, codeNoSuchShare:
		return OutcomeNoSuchShare
	case codeEACCES, codeEAUTH, codeENEEDAUTH:
		return OutcomeAuthFailed
	case codeENETDOWN, codeENETUNREACH, codeECONNABORTED, codeECONNREFUSED,
		codeETIMEDOUT, codeEHOSTDOWN, codeEHOSTUNREACH, codeEPIPE:
		return OutcomeHostDown
	default:
		return OutcomeUnknown
	}
}

// Entry is one line of the mount table.
type Entry struct {
	Device string // e.g. //user@server/share
	Path   string // mount point
	FSType string // e.g. smbfs, afpfs, apfs
}

// IsNetworkFS reports whether the entry is a network filesystem mount.
func (e Entry) IsNetworkFS() bool {
	switch e.FSType {
	case "smbfs", "afpfs", "nfs", "cifs", "webdav":
		return true
	}
	return false
}

// ParseMountTable parses the output of mount(8). Lines look like:
//
//	//user@server/share on /Users/x/Network Shares/share (smbfs, nodev, nosuid)
//
// Unparseable lines are skipped.
func ParseMountTable(out string) []Entry {
	var entries []Entry

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()

		onIdx := strings.Index(line, " on ")
		if onIdx < 0 {
			continue
		}
		parenIdx := strings.LastIndex(line, " (")
		if parenIdx < 0 || parenIdx <= onIdx {
			continue
		}

		opts := strings.Trim(line[parenIdx+2:], "()")
		fsType := opts
		if comma := strings.Index(opts, ","); comma >= 0 {
			fsType = opts[:comma]
		}

		entries = append(entries, Entry{
			Device: line[:onIdx],
			Path:   line[onIdx+4 : parenIdx],
			FSType: strings.TrimSpace(fsType),
		})
	}

	return entries
}
