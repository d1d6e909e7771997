package lockstore

import (
	"fmt"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// ILockStore is the generic interface for a lock store backend. A store maps
// resource names to filesystem-visible claims and owns the atomic claim
// primitive. All higher-level behavior (retries, staleness policy, metadata
// interpretation) lives in the lockmgr package.
type ILockStore interface {
	// Claim atomically creates the claim for a resource. It returns
	// (true, nil) if this caller created the claim, (false, nil) if the
	// resource is already claimed by someone else, and (false, err) if the
	// attempt failed for a reason other than contention (permissions, disk
	// full, ...). Of N concurrent callers racing on the same resource,
	// exactly one must observe success.
	Claim(resource string) (ok bool, err error)

	// Exists reports whether a claim for the resource is currently present.
	Exists(resource string) (bool, error)

	// Remove deletes the claim for a resource. Removing an absent claim is
	// not an error; the boolean reports whether a claim was actually removed.
	Remove(resource string) (removed bool, err error)

	// Age returns the time elapsed since the claim was created. If the age
	// cannot be determined the returned error is non-nil and the duration
	// is zero.
	Age(resource string) (time.Duration, error)

	// WriteMetadata stores the advisory metadata blob inside an existing
	// claim. The blob is never consulted for correctness decisions.
	WriteMetadata(resource string, data []byte) error

	// ReadMetadata returns the metadata blob of a claim. The boolean is
	// false if the claim has no metadata.
	ReadMetadata(resource string) (data []byte, found bool, err error)

	// List enumerates the resources that currently have a claim under the
	// store's root, in no particular order.
	List() ([]string, error)

	// Path returns the filesystem path backing the claim for a resource.
	// Informational only.
	Path(resource string) string
}

// --------------------------------------------------------------------------
// Resource Name Validation
// --------------------------------------------------------------------------

// ValidateResource rejects resource names that would escape the store root or
// collide with the store's own layout. Backends call this before touching the
// filesystem.
func ValidateResource(resource string) error {
	if resource == "" {
		return NewError(RetCInvalidResource, "resource name must not be empty")
	}
	if strings.ContainsAny(resource, "/\\") || resource == "." || resource == ".." {
		return NewError(RetCInvalidResource, fmt.Sprintf("invalid resource name %q", resource))
	}
	return nil
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	errorCode := ""
	switch e.Code {
	case RetCIOError:
		errorCode = "IOError"
	case RetCInvalidResource:
		errorCode = "InvalidResource"
	case RetCClockError:
		errorCode = "ClockError"
	default:
		errorCode = "Unknown"
	}

	return fmt.Sprintf("LockStoreError (code %s): %s", errorCode, e.Msg)
}

// NewError creates a new LockStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess         RetCode = iota // 0: Operation executed successfully.
	RetCIOError                        // 1: Operation failed due to a filesystem error.
	RetCInvalidResource                // 2: Resource name is not usable as a claim name.
	RetCClockError                     // 3: Claim age could not be determined.
)
