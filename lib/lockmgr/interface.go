package lockmgr

import (
	"errors"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// ILockManager defines the interface for a lock manager provider.
type ILockManager interface {
	// Acquire obtains the lock for a resource, retrying with backoff until
	// the lock is held or the timeout elapses. A timeout <= 0 selects
	// DefaultAcquireTimeout. On success nil is returned and the resource is
	// registered with the manager's exit registry; on timeout a
	// *TimeoutError is returned; store I/O failures abort the retry loop
	// immediately and are returned as-is.
	Acquire(resource string, timeout time.Duration) error

	// Release removes the lock for a resource. No holder identity check is
	// performed; the system trusts callers to scope their acquire/release
	// pairs. ok is false if no lock was present (useful for detecting
	// double-release bugs).
	Release(resource string) (ok bool, err error)

	// ForceRelease is functionally identical to Release but exists as an
	// explicit administrative escape hatch for stuck locks.
	ForceRelease(resource string) (ok bool, err error)

	// CheckedRelease releases the lock only if the given holder token
	// matches the one recorded in the lock's metadata. It returns
	// ErrNotHolder on a mismatch. This is an additive, opt-in guard; plain
	// Release stays identity-agnostic.
	CheckedRelease(resource string, token string) (ok bool, err error)

	// IsLocked reports whether a lock for the resource currently exists.
	IsLocked(resource string) (bool, error)

	// WaitForRelease polls until the lock is absent or reclaimably stale,
	// without ever attempting to claim it. A timeout <= 0 selects
	// DefaultWaitTimeout. Returns a *TimeoutError if the lock is still held
	// when the timeout elapses.
	WaitForRelease(resource string, timeout time.Duration) error

	// ListLocks enumerates all locks under the store root together with
	// their metadata records. Locks with missing or corrupt metadata are
	// listed with a nil record. Read-only.
	ListLocks() ([]LockInfo, error)

	// CleanupLocks releases every lock this manager still holds and returns
	// the number of locks removed. Idempotent; called automatically on
	// process termination when RegisterExitCleanup is in place.
	CleanupLocks() (int, error)

	// Token returns the holder token of a lock acquired through this
	// manager, and false if the manager does not hold the resource.
	Token(resource string) (string, bool)
}

// LockInfo describes one lock for listing and diagnostics. Meta is nil when
// the lock has no readable metadata record.
type LockInfo struct {
	Resource string
	Meta     *Record
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// Default operation timeouts.
const (
	DefaultAcquireTimeout = 30 * time.Second
	DefaultWaitTimeout    = 60 * time.Second
)

// Config carries the tunables of the acquisition protocol. The zero value is
// not usable; start from DefaultConfig.
type Config struct {
	// LockTimeout is the age beyond which an existing lock is presumed
	// abandoned and may be reclaimed by a contender.
	LockTimeout time.Duration

	// InitialWait is the first backoff sleep inside Acquire.
	InitialWait time.Duration

	// MaxWait caps the backoff sleep.
	MaxWait time.Duration

	// BackoffMultiplier grows the sleep between consecutive retries.
	BackoffMultiplier float64

	// PollInterval is the fixed sleep between checks in WaitForRelease.
	PollInterval time.Duration
}

// DefaultConfig returns the default protocol tunables.
func DefaultConfig() Config {
	return Config{
		LockTimeout:       time.Hour,
		InitialWait:       100 * time.Millisecond,
		MaxWait:           10 * time.Second,
		BackoffMultiplier: 1.5,
		PollInterval:      time.Second,
	}
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

// ErrNotHolder is returned by CheckedRelease when the supplied token does not
// match the recorded holder token.
var ErrNotHolder = errors.New("holder token does not match")

// TimeoutError indicates that an Acquire or WaitForRelease call gave up
// before the lock became available.
type TimeoutError struct {
	Op       string        // "acquire" or "wait"
	Resource string        // the contended resource
	Elapsed  time.Duration // wall-clock time spent before giving up
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %q: timed out after %v", e.Op, e.Resource, e.Elapsed.Round(time.Millisecond))
}

// Timeout marks the error as a timeout for net.Error style interface checks.
func (e *TimeoutError) Timeout() bool {
	return true
}

// IsTimeout reports whether err is a lock manager timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
