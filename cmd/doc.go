// Package cmd implements the command-line interface for the dLock
// file-based lock manager. It provides commands for acquiring, releasing and
// inspecting locks as well as a wrapper that runs a command while holding a
// lock.
//
// The package is organized into:
//
//   - the operation commands (acquire, release, force-release, status, wait,
//     list, cleanup, run)
//   - util: Shared utilities for command-line processing and configuration
//     (internal use)
//
// All commands share the --root, --store and protocol tuning flags, which can
// also be provided via DLOCK_* environment variables or a .env file.
//
// See dlock -help for a list of all commands.
package cmd
