package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/ValentinKolb/dLock/cmd/util"
	"github.com/ValentinKolb/dLock/lib/lockmgr"
	"github.com/spf13/cobra"
)

var (
	acquireTimeout float64
	waitTimeout    float64
	releaseToken   string
	cleanupStale   bool

	// acquireCmd represents the acquire command
	acquireCmd = &cobra.Command{
		Use:   "acquire [resource]",
		Short: "Acquire the lock for a resource",
		Long:  "Acquire the lock for a resource, retrying with backoff until the timeout elapses. On success the holder token is printed; it can be passed to 'release --token' for a verified release. The lock stays held after this command exits.",
		Args:  cobra.ExactArgs(1),
		RunE:  runAcquire,
	}

	// releaseCmd represents the release command
	releaseCmd = &cobra.Command{
		Use:   "release [resource]",
		Short: "Release a previously acquired lock",
		Long:  "Release the lock for a resource. No holder check is performed unless --token is given, in which case the lock is only released if the token matches the recorded holder.",
		Args:  cobra.ExactArgs(1),
		RunE:  runRelease,
	}

	// forceReleaseCmd represents the force-release command
	forceReleaseCmd = &cobra.Command{
		Use:   "force-release [resource]",
		Short: "Forcibly remove a stuck lock",
		Long:  "Administrative escape hatch: remove the lock for a resource regardless of who holds it.",
		Args:  cobra.ExactArgs(1),
		RunE:  runForceRelease,
	}

	// statusCmd represents the status command
	statusCmd = &cobra.Command{
		Use:   "status [resource]",
		Short: "Show whether a resource is currently locked",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}

	// waitCmd represents the wait command
	waitCmd = &cobra.Command{
		Use:   "wait [resource]",
		Short: "Wait until a lock is released",
		Long:  "Poll until the lock for a resource is absent or stale enough to be reclaimed, without acquiring it.",
		Args:  cobra.ExactArgs(1),
		RunE:  runWait,
	}

	// listCmd represents the list command
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List all locks under the root",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}

	// cleanupCmd represents the cleanup command
	cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Remove stale locks under the root",
		Long:  "Release every lock this process acquired and not yet released, then with --stale remove all locks under the root whose age exceeds the lock timeout. A fresh cleanup process holds no locks of its own, so from the command line the command only does work with --stale; the in-process drain matters for embedders of the lockmgr library.",
		Args:  cobra.NoArgs,
		RunE:  runCleanup,
	}

	// runCmd represents the run command
	runCmd = &cobra.Command{
		Use:   "run [resource] -- [command...]",
		Short: "Run a command while holding a lock",
		Long:  "Acquire the lock for a resource, run the given command, and release the lock on every exit path including termination signals.",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runRun,
	}
)

func init() {
	acquireCmd.Flags().Float64Var(&acquireTimeout, "timeout", 30, "Acquisition timeout in seconds")
	runCmd.Flags().Float64Var(&acquireTimeout, "timeout", 30, "Acquisition timeout in seconds")
	waitCmd.Flags().Float64Var(&waitTimeout, "timeout", 60, "Wait timeout in seconds")
	releaseCmd.Flags().StringVar(&releaseToken, "token", "", "Holder token; when set, release only if it matches")
	cleanupCmd.Flags().BoolVar(&cleanupStale, "stale", false, "Also remove stale locks of other processes")
}

func runAcquire(cmd *cobra.Command, args []string) error {
	resource := args[0]
	mgr, err := util.GetManager()
	if err != nil {
		return err
	}

	if err := mgr.Acquire(resource, seconds(acquireTimeout)); err != nil {
		return err
	}
	token, _ := mgr.Token(resource)
	fmt.Printf("acquired %s, token=%s\n", resource, token)
	return nil
}

func runRelease(cmd *cobra.Command, args []string) error {
	resource := args[0]
	mgr, err := util.GetManager()
	if err != nil {
		return err
	}

	var ok bool
	if releaseToken != "" {
		ok, err = mgr.CheckedRelease(resource, releaseToken)
	} else {
		ok, err = mgr.Release(resource)
	}
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no lock found for resource %q", resource)
	}
	fmt.Printf("released %s\n", resource)
	return nil
}

func runForceRelease(cmd *cobra.Command, args []string) error {
	resource := args[0]
	mgr, err := util.GetManager()
	if err != nil {
		return err
	}

	ok, err := mgr.ForceRelease(resource)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no lock found for resource %q", resource)
	}
	fmt.Printf("force-released %s\n", resource)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	resource := args[0]
	mgr, err := util.GetManager()
	if err != nil {
		return err
	}

	locked, err := mgr.IsLocked(resource)
	if err != nil {
		return err
	}
	fmt.Printf("resource=%s, locked=%v\n", resource, locked)
	return nil
}

func runWait(cmd *cobra.Command, args []string) error {
	resource := args[0]
	mgr, err := util.GetManager()
	if err != nil {
		return err
	}

	if err := mgr.WaitForRelease(resource, seconds(waitTimeout)); err != nil {
		return err
	}
	fmt.Printf("released %s\n", resource)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	mgr, err := util.GetManager()
	if err != nil {
		return err
	}

	infos, err := mgr.ListLocks()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("no locks")
		return nil
	}
	for _, info := range infos {
		if info.Meta == nil {
			fmt.Printf("%s\t(no metadata)\n", info.Resource)
			continue
		}
		fmt.Printf("%s\tpid=%d host=%s acquired=%s\n",
			info.Resource, info.Meta.PID, info.Meta.Hostname,
			info.Meta.Acquired.Format(time.RFC3339))
	}
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	mgr, err := util.GetManager()
	if err != nil {
		return err
	}

	count, err := mgr.CleanupLocks()
	if err != nil {
		return err
	}

	if cleanupStale {
		store, err := util.GetStore()
		if err != nil {
			return err
		}
		lockTimeout := util.GetManagerConfig().LockTimeout
		resources, err := store.List()
		if err != nil {
			return err
		}
		for _, resource := range resources {
			age, err := store.Age(resource)
			if err != nil || age <= lockTimeout {
				continue
			}
			if removed, err := store.Remove(resource); err == nil && removed {
				fmt.Printf("removed stale lock %s (age %v)\n", resource, age.Round(time.Second))
				count++
			}
		}
	}

	fmt.Printf("released %d lock(s)\n", count)
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	resource := args[0]
	mgr, err := util.GetManager()
	if err != nil {
		return err
	}

	if err := mgr.Acquire(resource, seconds(acquireTimeout)); err != nil {
		return err
	}
	stop := lockmgr.RegisterExitCleanup(mgr)
	defer stop()

	child := exec.Command(args[1], args[2:]...)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr

	if err := child.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			// Propagate the child's exit code, but release first.
			stop()
			os.Exit(childExitCode(exitErr))
		}
		return err
	}
	return nil
}

// childExitCode maps a finished child to a shell-conventional exit code. A
// child killed by a signal has no exit code of its own (ExitCode reports -1),
// so it is reported as 128+signal, same as a shell would.
func childExitCode(exitErr *exec.ExitError) int {
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return exitErr.ExitCode()
}

// seconds converts a float seconds flag value to a duration
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
