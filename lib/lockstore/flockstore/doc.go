// Package flockstore implements the lockstore.ILockStore interface on top of
// kernel advisory file locks (flock via github.com/gofrs/flock). A claim for
// resource R is an exclusive flock on the file "<root>/R.lck"; the metadata
// blob is stored in the file itself.
//
// Compared to dirstore, the kernel releases a flock automatically when the
// holding process exits, so crashed holders never leave a live claim behind
// and the staleness path is rarely exercised. The trade-off is portability:
// flock semantics over network filesystems are unreliable, so this backend
// should only be used when all contenders share one machine.
//
// Within a single process the kernel would grant the same flock twice, so the
// store keeps a handle table and reports a conflict for resources it already
// holds. Read paths (Exists, List) probe foreign claims by briefly taking and
// releasing a shared-mode lock, which concurrent observers can hold together
// without reporting each other as holders; Claim remains the only correctness
// gate. Probing an absent resource creates its empty claim file as a side
// effect (flock needs an inode to lock), so the root may accumulate empty
// ".lck" files that List filters out and Remove cleans up. A probe's shared
// lock can still make a concurrent exclusive Claim observe a transient
// conflict; the acquisition retry loop absorbs this.
package flockstore
