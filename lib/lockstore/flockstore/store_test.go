package flockstore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dLock/lib/lockstore"
	storetesting "github.com/ValentinKolb/dLock/lib/lockstore/testing"
)

func TestFlockStoreConformance(t *testing.T) {
	storetesting.RunLockStoreTests(t, "FlockStore", func(t *testing.T) lockstore.ILockStore {
		s, err := NewFlockStore(t.TempDir())
		if err != nil {
			t.Fatalf("NewFlockStore failed: %v", err)
		}
		return s
	})
}

func TestFlockStoreLayout(t *testing.T) {
	root := t.TempDir()
	s, err := NewFlockStore(root)
	if err != nil {
		t.Fatalf("NewFlockStore failed: %v", err)
	}

	if ok, err := s.Claim("layout"); err != nil || !ok {
		t.Fatalf("Claim failed: ok=%v err=%v", ok, err)
	}

	claim := filepath.Join(root, "layout.lck")
	if _, err := os.Stat(claim); err != nil {
		t.Fatalf("Expected claim file %s: %v", claim, err)
	}
	if got := s.Path("layout"); got != claim {
		t.Errorf("Expected Path to return %s, got %s", claim, got)
	}
}

func TestFlockStoreSecondInstanceConflicts(t *testing.T) {
	// Two store instances over the same root stand in for two processes.
	// The kernel lock is per open file description, so the claims conflict
	// even though both instances live in this test process.
	root := t.TempDir()
	s1, err := NewFlockStore(root)
	if err != nil {
		t.Fatalf("NewFlockStore failed: %v", err)
	}
	s2, err := NewFlockStore(root)
	if err != nil {
		t.Fatalf("NewFlockStore failed: %v", err)
	}

	if ok, err := s1.Claim("shared"); err != nil || !ok {
		t.Fatalf("First instance claim failed: ok=%v err=%v", ok, err)
	}

	ok, err := s2.Claim("shared")
	if err != nil {
		t.Fatalf("Second instance claim errored: %v", err)
	}
	if ok {
		t.Fatalf("Expected second instance claim to conflict")
	}

	exists, err := s2.Exists("shared")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Errorf("Expected second instance to observe the foreign claim")
	}

	// Releasing from the holder frees the slot for the other instance.
	if _, err := s1.Remove("shared"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if ok, err := s2.Claim("shared"); err != nil || !ok {
		t.Errorf("Expected claim after release to succeed: ok=%v err=%v", ok, err)
	}
}

func TestFlockStoreConcurrentObserversSeeAbsent(t *testing.T) {
	// Exists probes with a shared-mode lock, so observers polling the same
	// unheld resource at once must never mistake each other for a holder.
	root := t.TempDir()
	s1, err := NewFlockStore(root)
	if err != nil {
		t.Fatalf("NewFlockStore failed: %v", err)
	}
	s2, err := NewFlockStore(root)
	if err != nil {
		t.Fatalf("NewFlockStore failed: %v", err)
	}

	var wg sync.WaitGroup
	for _, s := range []lockstore.ILockStore{s1, s2} {
		wg.Add(1)
		go func(s lockstore.ILockStore) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				held, err := s.Exists("idle")
				if err != nil {
					t.Errorf("Exists failed: %v", err)
					return
				}
				if held {
					t.Errorf("Observer reported an unheld resource as locked")
					return
				}
			}
		}(s)
	}
	wg.Wait()
}

func TestFlockStoreLeftoverFileIsClaimable(t *testing.T) {
	// A claim file without a kernel lock is what a crashed holder leaves
	// behind. It must not block a fresh claim.
	root := t.TempDir()
	leftover := filepath.Join(root, "crashed.lck")
	if err := os.WriteFile(leftover, []byte("pid=999\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	s, err := NewFlockStore(root)
	if err != nil {
		t.Fatalf("NewFlockStore failed: %v", err)
	}

	exists, err := s.Exists("crashed")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Errorf("Expected an unlocked leftover file to read as absent")
	}

	if ok, err := s.Claim("crashed"); err != nil || !ok {
		t.Fatalf("Expected claim over leftover file to succeed: ok=%v err=%v", ok, err)
	}

	age, err := s.Age("crashed")
	if err != nil {
		t.Fatalf("Age failed: %v", err)
	}
	if age > time.Minute {
		t.Errorf("Expected a fresh age after re-claiming a leftover file, got %v", age)
	}
}
