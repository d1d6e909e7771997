package dirstore

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dLock/lib/lockstore"
	storetesting "github.com/ValentinKolb/dLock/lib/lockstore/testing"
)

func TestDirStoreConformance(t *testing.T) {
	storetesting.RunLockStoreTests(t, "DirStore", func(t *testing.T) lockstore.ILockStore {
		s, err := NewDirStore(t.TempDir())
		if err != nil {
			t.Fatalf("NewDirStore failed: %v", err)
		}
		return s
	})
}

func TestDirStoreLayout(t *testing.T) {
	root := t.TempDir()
	s, err := NewDirStore(root)
	if err != nil {
		t.Fatalf("NewDirStore failed: %v", err)
	}

	if ok, err := s.Claim("layout"); err != nil || !ok {
		t.Fatalf("Claim failed: ok=%v err=%v", ok, err)
	}
	if err := s.WriteMetadata("layout", []byte("pid=1\n")); err != nil {
		t.Fatalf("WriteMetadata failed: %v", err)
	}

	claim := filepath.Join(root, "layout.lock")
	info, err := os.Stat(claim)
	if err != nil || !info.IsDir() {
		t.Fatalf("Expected claim directory %s, got info=%v err=%v", claim, info, err)
	}
	if _, err := os.Stat(filepath.Join(claim, "metadata")); err != nil {
		t.Errorf("Expected metadata file inside the claim directory: %v", err)
	}
	if got := s.Path("layout"); got != claim {
		t.Errorf("Expected Path to return %s, got %s", claim, got)
	}
}

func TestDirStoreRemoveReportsExactlyOneWinner(t *testing.T) {
	// Racing removers must not all report removed=true for one claim; the
	// boolean feeds release-vs-NotFound reporting and has to be exact.
	root := t.TempDir()
	s, err := NewDirStore(root)
	if err != nil {
		t.Fatalf("NewDirStore failed: %v", err)
	}
	if ok, err := s.Claim("contested"); err != nil || !ok {
		t.Fatalf("Claim failed: ok=%v err=%v", ok, err)
	}
	if err := s.WriteMetadata("contested", []byte("pid=1\n")); err != nil {
		t.Fatalf("WriteMetadata failed: %v", err)
	}

	const removers = 16
	var (
		wg      sync.WaitGroup
		removed atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < removers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := s.Remove("contested")
			if err != nil {
				t.Errorf("Remove failed: %v", err)
				return
			}
			if ok {
				removed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := removed.Load(); got != 1 {
		t.Errorf("Expected exactly one remover to report success, got %d", got)
	}
	if _, err := os.Stat(filepath.Join(root, "contested.lock")); !os.IsNotExist(err) {
		t.Errorf("Expected the claim directory to be gone, got %v", err)
	}
}

func TestDirStoreAgeUsesInjectedClock(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	s, err := NewDirStoreWithClock(t.TempDir(), clock)
	if err != nil {
		t.Fatalf("NewDirStoreWithClock failed: %v", err)
	}
	if ok, err := s.Claim("aged"); err != nil || !ok {
		t.Fatalf("Claim failed: ok=%v err=%v", ok, err)
	}

	// Advance only the injected clock; the filesystem mtime stays put.
	now = now.Add(2 * time.Hour)

	age, err := s.Age("aged")
	if err != nil {
		t.Fatalf("Age failed: %v", err)
	}
	if age < time.Hour {
		t.Errorf("Expected an age of about 2h with the advanced clock, got %v", age)
	}
}

func TestDirStoreAgeNeverNegative(t *testing.T) {
	// A clock behind the filesystem's must clamp to zero, not go negative.
	past := time.Now().Add(-time.Hour)
	s, err := NewDirStoreWithClock(t.TempDir(), func() time.Time { return past })
	if err != nil {
		t.Fatalf("NewDirStoreWithClock failed: %v", err)
	}
	if ok, err := s.Claim("skewed"); err != nil || !ok {
		t.Fatalf("Claim failed: ok=%v err=%v", ok, err)
	}

	age, err := s.Age("skewed")
	if err != nil {
		t.Fatalf("Age failed: %v", err)
	}
	if age != 0 {
		t.Errorf("Expected clamped age 0 under clock skew, got %v", age)
	}
}

func TestDirStoreClaimSurfacesIOErrors(t *testing.T) {
	root := t.TempDir()
	s, err := NewDirStore(root)
	if err != nil {
		t.Fatalf("NewDirStore failed: %v", err)
	}

	// Remove the root out from under the store; mkdir then fails with
	// something that is not contention.
	if err := os.RemoveAll(root); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}

	ok, err := s.Claim("io-error")
	if ok {
		t.Fatalf("Expected claim to fail without a root directory")
	}
	if err == nil {
		t.Fatalf("Expected an I/O error, got conflict")
	}
	var storeErr *lockstore.Error
	if !errors.As(err, &storeErr) || storeErr.Code != lockstore.RetCIOError {
		t.Errorf("Expected RetCIOError, got %v", err)
	}
}
