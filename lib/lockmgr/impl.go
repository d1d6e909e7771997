package lockmgr

import (
	"sort"
	"time"

	"github.com/ValentinKolb/dLock/lib/lockstore"
	"github.com/ValentinKolb/dLock/lib/logging"
	"github.com/VictoriaMetrics/metrics"
	"github.com/hashicorp/go-hclog"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	metricAcquired     = metrics.GetOrCreateCounter(`dlock_acquisitions_total`)
	metricTimedOut     = metrics.GetOrCreateCounter(`dlock_acquisition_timeouts_total`)
	metricStaleReclaim = metrics.GetOrCreateCounter(`dlock_stale_reclaims_total`)
	metricReleased     = metrics.GetOrCreateCounter(`dlock_releases_total`)
	metricCleaned      = metrics.GetOrCreateCounter(`dlock_cleanup_removed_total`)
)

type lockMgrImpl struct {
	store  lockstore.ILockStore
	config Config

	// held is the exit registry: every resource this manager instance
	// currently holds, mapped to its holder token. Drained by CleanupLocks.
	held *xsync.MapOf[string, string]

	// now and sleep are swappable for tests.
	now   func() time.Time
	sleep func(time.Duration)

	log hclog.Logger
}

// NewLockManager creates a lock manager over the given store. The manager
// only ever talks to the store and keeps no persistent state of its own, so
// any number of managers may be created over the same root; the exit registry
// however is per manager instance.
func NewLockManager(store lockstore.ILockStore, config Config) ILockManager {
	return &lockMgrImpl{
		store:  store,
		config: config,
		held:   xsync.NewMapOf[string, string](),
		now:    time.Now,
		sleep:  time.Sleep,
		log:    logging.GetLogger("lockmgr"),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see interface.go)
// --------------------------------------------------------------------------

func (m *lockMgrImpl) Acquire(resource string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}

	// Elapsed time is measured as a wall-clock delta from loop entry, never
	// accumulated from the nominal sleep durations: sleeps oversleep and
	// claim attempts take time, both of which would drift the accounting.
	start := m.now()
	wait := m.config.InitialWait

	for {
		ok, err := m.store.Claim(resource)
		if err != nil {
			// Not contention but real trouble (permissions, disk full, ...).
			// Retrying would mask an infrastructure failure as an eternally
			// busy lock, so abort the loop.
			return err
		}
		if ok {
			record := newRecord(resource)
			// Claim and metadata write are one logical step, but a failed
			// metadata write must not surrender the claim we already hold.
			if err := m.store.WriteMetadata(resource, record.Encode()); err != nil {
				m.log.Warn("lock acquired but metadata write failed", "resource", resource, "error", err)
			}
			m.held.Store(resource, record.Token)
			metricAcquired.Inc()
			m.log.Debug("lock acquired", "resource", resource, "elapsed", m.now().Sub(start))
			return nil
		}

		if age, err := m.store.Age(resource); err == nil && age > m.config.LockTimeout {
			// Presumed abandoned. The holder may release between our check
			// and this removal; removing an already-absent claim is a no-op
			// and the next Claim attempt stays the only correctness gate.
			if _, err := m.store.Remove(resource); err != nil {
				return err
			}
			metricStaleReclaim.Inc()
			m.log.Warn("removed stale lock", "resource", resource, "age", age)
			continue
		} else if err != nil {
			// Unreadable age counts as fresh: reclaiming a live lock is
			// worse than waiting out the timeout.
			m.log.Debug("lock age unreadable, treating as fresh", "resource", resource, "error", err)
		}

		elapsed := m.now().Sub(start)
		if elapsed >= timeout {
			metricTimedOut.Inc()
			return &TimeoutError{Op: "acquire", Resource: resource, Elapsed: elapsed}
		}

		sleep := wait
		if remaining := timeout - elapsed; sleep > remaining {
			sleep = remaining
		}
		m.sleep(sleep)

		wait = time.Duration(float64(wait) * m.config.BackoffMultiplier)
		if wait > m.config.MaxWait {
			wait = m.config.MaxWait
		}
	}
}

func (m *lockMgrImpl) Release(resource string) (bool, error) {
	return m.remove(resource, "released")
}

func (m *lockMgrImpl) ForceRelease(resource string) (bool, error) {
	ok, err := m.remove(resource, "force-released")
	if ok {
		m.log.Info("lock force-released", "resource", resource)
	}
	return ok, err
}

func (m *lockMgrImpl) CheckedRelease(resource string, token string) (bool, error) {
	data, found, err := m.store.ReadMetadata(resource)
	if err != nil {
		return false, err
	}
	if !found {
		// Either the lock is absent or it carries no record to verify
		// against. Without a recorded token the guard cannot vouch for the
		// caller, so refuse rather than silently fall back to Release.
		exists, err := m.store.Exists(resource)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, nil
		}
		return false, ErrNotHolder
	}
	record, valid := ParseRecord(data)
	if !valid || record.Token == "" || record.Token != token {
		return false, ErrNotHolder
	}
	return m.remove(resource, "released")
}

func (m *lockMgrImpl) IsLocked(resource string) (bool, error) {
	return m.store.Exists(resource)
}

func (m *lockMgrImpl) WaitForRelease(resource string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	start := m.now()

	for {
		exists, err := m.store.Exists(resource)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}

		// A reclaimably stale lock counts as released: the next contender
		// will sweep it aside anyway.
		if age, err := m.store.Age(resource); err == nil && age > m.config.LockTimeout {
			return nil
		}

		elapsed := m.now().Sub(start)
		if elapsed >= timeout {
			return &TimeoutError{Op: "wait", Resource: resource, Elapsed: elapsed}
		}

		sleep := m.config.PollInterval
		if remaining := timeout - elapsed; sleep > remaining {
			sleep = remaining
		}
		m.sleep(sleep)
	}
}

func (m *lockMgrImpl) ListLocks() ([]LockInfo, error) {
	resources, err := m.store.List()
	if err != nil {
		return nil, err
	}
	sort.Strings(resources)

	infos := make([]LockInfo, 0, len(resources))
	for _, resource := range resources {
		info := LockInfo{Resource: resource}
		// Metadata trouble never fails the listing; the lock is simply
		// shown without a record.
		if data, found, err := m.store.ReadMetadata(resource); err == nil && found {
			if record, valid := ParseRecord(data); valid {
				info.Meta = &record
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (m *lockMgrImpl) CleanupLocks() (int, error) {
	var (
		count   int
		lastErr error
	)
	m.held.Range(func(resource string, _ string) bool {
		removed, err := m.store.Remove(resource)
		if err != nil {
			lastErr = err
			return true
		}
		m.held.Delete(resource)
		if removed {
			count++
			metricCleaned.Inc()
			m.log.Debug("cleanup released lock", "resource", resource)
		}
		return true
	})
	return count, lastErr
}

func (m *lockMgrImpl) Token(resource string) (string, bool) {
	return m.held.Load(resource)
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// remove drops the claim and deregisters the resource from the exit registry.
// Shared by the release variants.
func (m *lockMgrImpl) remove(resource string, what string) (bool, error) {
	removed, err := m.store.Remove(resource)
	m.held.Delete(resource)
	if err != nil {
		return false, err
	}
	if removed {
		metricReleased.Inc()
		m.log.Debug("lock "+what, "resource", resource)
	}
	return removed, nil
}
