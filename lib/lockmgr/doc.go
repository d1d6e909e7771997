// Package lockmgr implements mutual exclusion between independent operating
// system processes on top of lock stores that implement the
// lockstore.ILockStore interface. It provides a simple yet robust way to
// serialize access to shared resources (files, build artifacts, shared logs)
// when the only coordination channel the contenders share is a filesystem
// namespace.
//
// The lock manager only ever stores state in the provided ILockStore plus a
// per-instance exit registry of currently held resources. Any number of
// managers may be created over the same store root; as long as the same root
// is used every time, all locks work as expected across processes.
//
// Core Functionality:
//   - Lock acquisition with bounded retry and exponential backoff
//   - Stale-lock detection and recovery after holder crashes
//   - Advisory metadata records (pid, acquisition time, resource, hostname,
//     holder token) for diagnostics
//   - Release, administrative force-release and an opt-in token-checked
//     release
//   - Polling wait-for-release without acquiring
//   - Guaranteed cleanup of held locks on process termination
//
// Implementation Approach:
//
//	Mutual exclusion rests on a single primitive: the store's atomic Claim
//	operation, which guarantees that of N concurrent claimers exactly one
//	succeeds. Everything else is policy layered on top:
//
//	- Acquisition: Acquire retries Claim in a loop, sleeping between
//	  attempts with exponentially growing waits (initial 100ms, factor 1.5,
//	  capped at 10s by default). Elapsed time is a wall-clock delta from
//	  loop entry, so the configured timeout is honored regardless of sleep
//	  granularity.
//
//	- Staleness: a claim older than the configured LockTimeout (1h by
//	  default) is presumed abandoned and removed, after which the loop
//	  retries immediately. Staleness models holder death, not lease
//	  renewal: a live holder whose critical section outlives LockTimeout
//	  will lose its lock to a contender, so long-running callers must size
//	  LockTimeout accordingly. If a claim's age cannot be read it is
//	  treated as fresh, never as stale.
//
//	- Metadata: after a successful claim the manager writes a key=value
//	  record into the lock. The record is purely advisory; a failed
//	  metadata write is logged but does not surrender the claim.
//
//	- Release: Release and ForceRelease remove the claim without verifying
//	  the caller's identity. This is deliberate: the system trusts callers
//	  that scope their acquire/release pairs, and any process with
//	  filesystem access could remove the claim anyway. CheckedRelease adds
//	  an opt-in guard that compares the caller's holder token with the one
//	  recorded in the metadata.
//
//	- Exit registry: every acquisition is registered with the owning
//	  manager. CleanupLocks drains the registry idempotently, and
//	  RegisterExitCleanup wires the drain to process termination, covering
//	  normal return, panics and termination signals.
//
// Fairness:
//
//	There is none. After a release or a staleness reclamation all waiting
//	contenders race again with no queue or ordering guarantee; the
//	thundering herd is accepted by design. Callers that need fairness must
//	layer it on top.
//
// Error Handling:
//
//	Per-attempt failures inside the retry loop are absorbed; callers see a
//	single terminal outcome. Timeouts are reported as *TimeoutError values
//	that carry the resource name and the elapsed time and implement
//	Timeout() bool. Store I/O failures (permission denied, disk full, ...)
//	are deliberately distinguished from contention and abort the retry loop
//	immediately instead of burning the whole acquisition timeout.
//
// Usage Example:
//
//	store, err := dirstore.NewDirStore(".locks")
//	if err != nil {
//	    // Handle error
//	}
//	mgr := lockmgr.NewLockManager(store, lockmgr.DefaultConfig())
//	stop := lockmgr.RegisterExitCleanup(mgr)
//	defer stop()
//
//	if err := mgr.Acquire("shared-artifact", 30*time.Second); err != nil {
//	    // Timed out or store failure
//	}
//
//	// Use the resource safely
//	// ...
//
//	if ok, err := mgr.Release("shared-artifact"); err != nil || !ok {
//	    // Handle error / double release
//	}
//
// Distributed Considerations:
//
//	This is not a distributed lock service. There is no quorum protocol and
//	no cross-machine consensus; correctness requires a single filesystem
//	namespace with POSIX-consistent namespace operations visible to all
//	contenders. It also does not provide thread-level mutual exclusion
//	inside one process beyond what the backing store enforces.
package lockmgr
