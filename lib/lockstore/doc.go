// Package lockstore defines the storage abstraction underneath the lock
// manager. A lock store maps resource names to filesystem-visible claims and
// provides the single correctness-critical primitive of the whole system: the
// atomic Claim operation.
//
// The interface is deliberately narrow. A store knows how to create, inspect
// and remove claims and how to attach an advisory metadata blob to them; it
// knows nothing about retries, backoff, staleness policy or process exit
// handling. Those concerns belong to the lockmgr package, which works against
// any ILockStore implementation.
//
// Two backends are provided:
//
//   - dirstore: a claim is a directory created with an exclusive mkdir.
//     Directory creation is atomic on POSIX filesystems, which makes it a
//     portable claim primitive that also works on shared mounts. Claims
//     survive the death of their creator and are reaped via staleness.
//
//   - flockstore: a claim is a kernel advisory lock (flock) on a per-resource
//     file. The kernel releases the lock when the holding process dies, which
//     trades shared-mount portability for automatic crash recovery.
//
// All write operations return only an error (nil on success), read operations
// return the requested data along with an error. Failures are reported as
// *Error values carrying a RetCode so that callers can distinguish plain
// contention from real I/O trouble.
//
// The testing subpackage contains a conformance suite that every backend must
// pass, including a concurrent claim race asserting the exactly-one-winner
// property.
package lockstore
