package dirstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ValentinKolb/dLock/lib/lockstore"
)

const (
	claimSuffix  = ".lock"
	metadataFile = "metadata"
	claimMode    = 0o755
	metadataMode = 0o644
)

type storeImpl struct {
	root  string
	clock func() time.Time
}

// NewDirStore creates a lock store rooted at the given directory. The root is
// created if it does not exist. Claims are directories named
// "<resource>.lock"; the directory's existence is the lock.
func NewDirStore(root string) (lockstore.ILockStore, error) {
	return NewDirStoreWithClock(root, time.Now)
}

// NewDirStoreWithClock is NewDirStore with an injectable time source. Claim
// ages are computed as clock() minus the claim directory's modification time,
// so tests can control staleness deterministically.
func NewDirStoreWithClock(root string, clock func() time.Time) (lockstore.ILockStore, error) {
	if err := os.MkdirAll(root, claimMode); err != nil {
		return nil, lockstore.NewError(lockstore.RetCIOError, fmt.Sprintf("create lock root %s: %v", root, err))
	}
	return &storeImpl{
		root:  root,
		clock: clock,
	}, nil
}

// claimPath derives the claim directory for a resource.
func (s *storeImpl) claimPath(resource string) string {
	return filepath.Join(s.root, resource+claimSuffix)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see lockstore/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Claim(resource string) (bool, error) {
	if err := lockstore.ValidateResource(resource); err != nil {
		return false, err
	}

	// Mkdir is the atomicity anchor: of N concurrent callers, the kernel
	// lets exactly one create the directory.
	err := os.Mkdir(s.claimPath(resource), claimMode)
	if err == nil {
		return true, nil
	}
	if os.IsExist(err) {
		return false, nil
	}
	return false, lockstore.NewError(lockstore.RetCIOError, fmt.Sprintf("claim %s: %v", resource, err))
}

func (s *storeImpl) Exists(resource string) (bool, error) {
	if err := lockstore.ValidateResource(resource); err != nil {
		return false, err
	}

	info, err := os.Stat(s.claimPath(resource))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, lockstore.NewError(lockstore.RetCIOError, fmt.Sprintf("stat %s: %v", resource, err))
	}
	return info.IsDir(), nil
}

func (s *storeImpl) Remove(resource string) (bool, error) {
	if err := lockstore.ValidateResource(resource); err != nil {
		return false, err
	}

	// Empty the claim directory, then remove the directory itself with a
	// plain Remove. That last rmdir is the single syscall deciding the
	// report: of N concurrent removers exactly one sees it succeed.
	path := s.claimPath(resource)
	if err := os.Remove(filepath.Join(path, metadataFile)); err != nil && !os.IsNotExist(err) {
		return false, lockstore.NewError(lockstore.RetCIOError, fmt.Sprintf("remove %s: %v", resource, err))
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, lockstore.NewError(lockstore.RetCIOError, fmt.Sprintf("remove %s: %v", resource, err))
	}
	return true, nil
}

func (s *storeImpl) Age(resource string) (time.Duration, error) {
	if err := lockstore.ValidateResource(resource); err != nil {
		return 0, err
	}

	info, err := os.Stat(s.claimPath(resource))
	if err != nil {
		return 0, lockstore.NewError(lockstore.RetCClockError, fmt.Sprintf("age of %s: %v", resource, err))
	}
	age := s.clock().Sub(info.ModTime())
	if age < 0 {
		// Clock skew between writer and reader. Never report a negative age.
		age = 0
	}
	return age, nil
}

func (s *storeImpl) WriteMetadata(resource string, data []byte) error {
	if err := lockstore.ValidateResource(resource); err != nil {
		return err
	}

	path := filepath.Join(s.claimPath(resource), metadataFile)
	if err := os.WriteFile(path, data, metadataMode); err != nil {
		return lockstore.NewError(lockstore.RetCIOError, fmt.Sprintf("write metadata for %s: %v", resource, err))
	}
	return nil
}

func (s *storeImpl) ReadMetadata(resource string) ([]byte, bool, error) {
	if err := lockstore.ValidateResource(resource); err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(filepath.Join(s.claimPath(resource), metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, lockstore.NewError(lockstore.RetCIOError, fmt.Sprintf("read metadata for %s: %v", resource, err))
	}
	return data, true, nil
}

func (s *storeImpl) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, lockstore.NewError(lockstore.RetCIOError, fmt.Sprintf("list %s: %v", s.root, err))
	}

	var resources []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), claimSuffix) {
			continue
		}
		resources = append(resources, strings.TrimSuffix(entry.Name(), claimSuffix))
	}
	return resources, nil
}

func (s *storeImpl) Path(resource string) string {
	return s.claimPath(resource)
}
