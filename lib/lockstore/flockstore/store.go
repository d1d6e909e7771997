package flockstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ValentinKolb/dLock/lib/lockstore"
	"github.com/gofrs/flock"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	claimSuffix = ".lck"
	rootMode    = 0o755
	claimMode   = 0o644
)

type storeImpl struct {
	root    string
	clock   func() time.Time
	handles *xsync.MapOf[string, *flock.Flock]
}

// NewFlockStore creates a lock store whose claims are kernel advisory locks
// (flock) on per-resource files under root. The root is created if it does
// not exist.
func NewFlockStore(root string) (lockstore.ILockStore, error) {
	return NewFlockStoreWithClock(root, time.Now)
}

// NewFlockStoreWithClock is NewFlockStore with an injectable time source.
func NewFlockStoreWithClock(root string, clock func() time.Time) (lockstore.ILockStore, error) {
	if err := os.MkdirAll(root, rootMode); err != nil {
		return nil, lockstore.NewError(lockstore.RetCIOError, fmt.Sprintf("create lock root %s: %v", root, err))
	}
	return &storeImpl{
		root:    root,
		clock:   clock,
		handles: xsync.NewMapOf[string, *flock.Flock](),
	}, nil
}

func (s *storeImpl) claimPath(resource string) string {
	return filepath.Join(s.root, resource+claimSuffix)
}

// probe tests whether a foreign process holds the claim by briefly taking and
// releasing a shared-mode kernel lock. Shared locks are compatible with each
// other, so concurrent observers never report one another as holders; only an
// exclusive lock (a real claim) makes the probe read "held". Only used by
// read paths (Exists, List); the correctness gate is always Claim itself.
func (s *storeImpl) probe(resource string) (held bool, err error) {
	fl := flock.New(s.claimPath(resource))
	ok, err := fl.TryRLock()
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, lockstore.NewError(lockstore.RetCIOError, fmt.Sprintf("probe %s: %v", resource, err))
	}
	if ok {
		_ = fl.Unlock()
		return false, nil
	}
	return true, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see lockstore/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Claim(resource string) (bool, error) {
	if err := lockstore.ValidateResource(resource); err != nil {
		return false, err
	}

	// A second claim from the same store instance must conflict, the kernel
	// would happily grant flock twice to one process.
	if _, held := s.handles.Load(resource); held {
		return false, nil
	}

	fl := flock.New(s.claimPath(resource))
	ok, err := fl.TryLock()
	if err != nil {
		return false, lockstore.NewError(lockstore.RetCIOError, fmt.Sprintf("claim %s: %v", resource, err))
	}
	if !ok {
		return false, nil
	}

	// Reset the claim file's timestamp so age starts at this acquisition,
	// the file may be left over from an earlier holder.
	now := s.clock()
	if err := os.Chtimes(s.claimPath(resource), now, now); err != nil && !os.IsNotExist(err) {
		_ = fl.Unlock()
		return false, lockstore.NewError(lockstore.RetCIOError, fmt.Sprintf("claim %s: %v", resource, err))
	}

	s.handles.Store(resource, fl)
	return true, nil
}

func (s *storeImpl) Exists(resource string) (bool, error) {
	if err := lockstore.ValidateResource(resource); err != nil {
		return false, err
	}
	if _, held := s.handles.Load(resource); held {
		return true, nil
	}
	return s.probe(resource)
}

func (s *storeImpl) Remove(resource string) (bool, error) {
	if err := lockstore.ValidateResource(resource); err != nil {
		return false, err
	}

	path := s.claimPath(resource)
	if fl, held := s.handles.LoadAndDelete(resource); held {
		_ = fl.Unlock()
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return false, lockstore.NewError(lockstore.RetCIOError, fmt.Sprintf("remove %s: %v", resource, err))
		}
		return true, nil
	}

	// Foreign or absent claim. Unlinking the file while another process
	// holds the kernel lock orphans that lock and frees the name; this is
	// the force-release path and is intentionally identity-agnostic.
	held, err := s.probe(resource)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, lockstore.NewError(lockstore.RetCIOError, fmt.Sprintf("remove %s: %v", resource, err))
	}
	return held, nil
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
		age = 0
	}
	return age, nil
}

func (s *storeImpl) WriteMetadata(resource string, data []byte) error {
	if err := lockstore.ValidateResource(resource); err != nil {
		return err
	}

	// The metadata lives inside the claim file itself. flock is advisory on
	// the inode, rewriting the content does not disturb the lock. The mtime
	// moves with the write, which is fine: claim and metadata write are one
	// logical step.
	if err := os.WriteFile(s.claimPath(resource), data, claimMode); err != nil {
		return lockstore.NewError(lockstore.RetCIOError, fmt.Sprintf("write metadata for %s: %v", resource, err))
	}
	return nil
}

func (s *storeImpl) ReadMetadata(resource string) ([]byte, bool, error) {
	if err := lockstore.ValidateResource(resource); err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(s.claimPath(resource))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, lockstore.NewError(lockstore.RetCIOError, fmt.Sprintf("read metadata for %s: %v", resource, err))
	}
	if len(data) == 0 {
		return nil, false, nil
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
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), claimSuffix) {
			continue
		}
		resource := strings.TrimSuffix(entry.Name(), claimSuffix)
		held, err := s.Exists(resource)
		if err != nil {
			return nil, err
		}
		if held {
			resources = append(resources, resource)
		}
	}
	return resources, nil
}

func (s *storeImpl) Path(resource string) string {
	return s.claimPath(resource)
}
