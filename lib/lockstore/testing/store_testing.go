package testing

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dLock/lib/lockstore"
)

// StoreFactory is a function that creates a fresh, empty instance of an
// ILockStore implementation. Each call must return a store over a new root.
type StoreFactory func(t *testing.T) lockstore.ILockStore

// RunLockStoreTests runs the conformance test suite for an ILockStore
// implementation.
func RunLockStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Claim&Exists", func(t *testing.T) {
			testClaimExists(t, factory(t))
		})

		t.Run("ClaimConflict", func(t *testing.T) {
			testClaimConflict(t, factory(t))
		})

		t.Run("ClaimRace", func(t *testing.T) {
			testClaimRace(t, factory(t))
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory(t))
		})

		t.Run("Age", func(t *testing.T) {
			testAge(t, factory(t))
		})

		t.Run("Metadata", func(t *testing.T) {
			testMetadata(t, factory(t))
		})

		t.Run("List", func(t *testing.T) {
			testList(t, factory(t))
		})

		t.Run("InvalidResource", func(t *testing.T) {
			testInvalidResource(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testClaimExists(t *testing.T, s lockstore.ILockStore) {
	resource := "claim-exists"

	exists, err := s.Exists(resource)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Errorf("Expected resource %s to be absent before claiming", resource)
	}

	ok, err := s.Claim(resource)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if !ok {
		t.Fatalf("Expected claim on fresh resource %s to succeed", resource)
	}

	exists, err = s.Exists(resource)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Errorf("Expected resource %s to exist after claiming", resource)
	}

	if s.Path(resource) == "" {
		t.Errorf("Expected a non-empty claim path for %s", resource)
	}
}

func testClaimConflict(t *testing.T, s lockstore.ILockStore) {
	resource := "claim-conflict"

	ok, err := s.Claim(resource)
	if err != nil || !ok {
		t.Fatalf("First claim failed: ok=%v err=%v", ok, err)
	}

	ok, err = s.Claim(resource)
	if err != nil {
		t.Fatalf("Second claim errored: %v", err)
	}
	if ok {
		t.Errorf("Expected second claim on %s to conflict", resource)
	}
}

func testClaimRace(t *testing.T, s lockstore.ILockStore) {
	resource := "claim-race"
	const contenders = 32

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := s.Claim(resource)
			if err != nil {
				t.Errorf("Claim errored under race: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}

	close(start)
	wg.Wait()

	if wins != 1 {
		t.Errorf("Expected exactly one winner out of %d contenders, got %d", contenders, wins)
	}
}

func testRemove(t *testing.T, s lockstore.ILockStore) {
	resource := "remove-me"

	removed, err := s.Remove(resource)
	if err != nil {
		t.Fatalf("Remove of absent claim errored: %v", err)
	}
	if removed {
		t.Errorf("Expected Remove of absent claim to report removed=false")
	}

	if ok, err := s.Claim(resource); err != nil || !ok {
		t.Fatalf("Claim failed: ok=%v err=%v", ok, err)
	}

	removed, err = s.Remove(resource)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !removed {
		t.Errorf("Expected Remove of held claim to report removed=true")
	}

	exists, err := s.Exists(resource)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Errorf("Expected resource %s to be absent after Remove", resource)
	}

	// The slot must be claimable again.
	if ok, err := s.Claim(resource); err != nil || !ok {
		t.Errorf("Expected re-claim after Remove to succeed: ok=%v err=%v", ok, err)
	}
}

func testAge(t *testing.T, s lockstore.ILockStore) {
	resource := "age-res"

	if _, err := s.Age(resource); err == nil {
		t.Errorf("Expected Age of absent claim to error")
	}

	if ok, err := s.Claim(resource); err != nil || !ok {
		t.Fatalf("Claim failed: ok=%v err=%v", ok, err)
	}

	age, err := s.Age(resource)
	if err != nil {
		t.Fatalf("Age failed: %v", err)
	}
	if age < 0 || age > 10*time.Second {
		t.Errorf("Expected a small non-negative age for a fresh claim, got %v", age)
	}
}

func testMetadata(t *testing.T, s lockstore.ILockStore) {
	resource := "meta-res"
	record := []byte("pid=42\nresource=meta-res\n")

	if ok, err := s.Claim(resource); err != nil || !ok {
		t.Fatalf("Claim failed: ok=%v err=%v", ok, err)
	}

	_, found, err := s.ReadMetadata(resource)
	if err != nil {
		t.Fatalf("ReadMetadata failed: %v", err)
	}
	if found {
		t.Errorf("Expected no metadata before WriteMetadata")
	}

	if err := s.WriteMetadata(resource, record); err != nil {
		t.Fatalf("WriteMetadata failed: %v", err)
	}

	data, found, err := s.ReadMetadata(resource)
	if err != nil {
		t.Fatalf("ReadMetadata failed: %v", err)
	}
	if !found {
		t.Fatalf("Expected metadata after WriteMetadata")
	}
	if !bytes.Equal(data, record) {
		t.Errorf("Expected metadata %q, got %q", record, data)
	}

	// Metadata must disappear with its claim.
	if _, err := s.Remove(resource); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	_, found, err = s.ReadMetadata(resource)
	if err != nil {
		t.Fatalf("ReadMetadata after Remove failed: %v", err)
	}
	if found {
		t.Errorf("Expected metadata of a removed claim to be gone")
	}
}

func testList(t *testing.T, s lockstore.ILockStore) {
	resources, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(resources) != 0 {
		t.Errorf("Expected empty listing on a fresh store, got %v", resources)
	}

	for _, resource := range []string{"list-a", "list-b"} {
		if ok, err := s.Claim(resource); err != nil || !ok {
			t.Fatalf("Claim %s failed: ok=%v err=%v", resource, ok, err)
		}
	}

	resources, err = s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(resources) != 2 {
		t.Fatalf("Expected 2 listed resources, got %v", resources)
	}
	seen := map[string]bool{}
	for _, resource := range resources {
		seen[resource] = true
	}
	if !seen["list-a"] || !seen["list-b"] {
		t.Errorf("Expected listing to contain list-a and list-b, got %v", resources)
	}
}

func testInvalidResource(t *testing.T, s lockstore.ILockStore) {
	for _, resource := range []string{"", ".", "..", "a/b", "a\\b"} {
		if _, err := s.Claim(resource); err == nil {
			t.Errorf("Expected Claim(%q) to be rejected", resource)
		}
		if _, err := s.Remove(resource); err == nil {
			t.Errorf("Expected Remove(%q) to be rejected", resource)
		}
	}
}
