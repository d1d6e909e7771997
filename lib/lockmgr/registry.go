package lockmgr

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ValentinKolb/dLock/lib/logging"
)

// RegisterExitCleanup arranges for the manager's held locks to be drained
// when the process receives SIGINT, SIGTERM or SIGHUP. The process then exits
// with the conventional 128+signal status.
//
// The returned stop function cancels the signal handler and performs the same
// drain, so callers cover every exit path with
//
//	stop := lockmgr.RegisterExitCleanup(mgr)
//	defer stop()
//
// normal return and panics through the deferred stop, external termination
// through the handler. Both paths go through the idempotent CleanupLocks, so
// running twice is harmless.
func RegisterExitCleanup(m ILockManager) (stop func()) {
	log := logging.GetLogger("lockmgr")

	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		select {
		case sig := <-sigCh:
			if count, err := m.CleanupLocks(); err != nil {
				log.Warn("cleanup on signal incomplete", "signal", sig, "released", count, "error", err)
			} else if count > 0 {
				log.Info("released held locks on signal", "signal", sig, "released", count)
			}
			signal.Stop(sigCh)
			if s, ok := sig.(syscall.Signal); ok {
				os.Exit(128 + int(s))
			}
			os.Exit(1)
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(done)
			if _, err := m.CleanupLocks(); err != nil {
				log.Warn("cleanup on exit incomplete", "error", err)
			}
		})
	}
}
