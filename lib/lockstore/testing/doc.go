// Package testing provides a standardised conformance test suite for lock
// store implementations that satisfy the lockstore.ILockStore interface.
//
// The suite covers the full interface contract, most importantly the
// exactly-one-winner property of Claim under concurrent load, and is run
// against every backend shipped in this repository.
//
// Example usage:
//
//	factory := func(t *testing.T) lockstore.ILockStore {
//		s, err := dirstore.NewDirStore(t.TempDir())
//		if err != nil {
//			t.Fatal(err)
//		}
//		return s
//	}
//
//	testing.RunLockStoreTests(t, "DirStore", factory)
package testing
