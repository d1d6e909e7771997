// Package dirstore implements the lockstore.ILockStore interface on top of
// plain directories. A claim for resource R is the directory "<root>/R.lock";
// the directory's existence IS the lock.
//
// The atomicity of the Claim operation rests entirely on mkdir(2): creating a
// directory that already exists fails, and of N concurrent creators exactly
// one succeeds. This holds on local POSIX filesystems and on shared mounts
// with POSIX-consistent namespace operations, which makes dirstore the
// default backend for coordinating unrelated processes on one machine or one
// shared filesystem.
//
// Claim age is computed from the directory's modification time against an
// injectable clock. Ages drive the lock manager's staleness decisions; the
// metadata file stored inside the claim directory is purely advisory.
//
// Claims created by a crashed process stay behind until a contender reaps
// them via the staleness path. If automatic release on process death is more
// important than shared-mount portability, use the flockstore backend
// instead.
package dirstore
