package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/dLock/lib/lockmgr"
	"github.com/ValentinKolb/dLock/lib/lockstore"
	"github.com/ValentinKolb/dLock/lib/lockstore/dirstore"
	"github.com/ValentinKolb/dLock/lib/lockstore/flockstore"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupLockFlags adds the shared lock manager flags to a command
func SetupLockFlags(cmd *cobra.Command) {
	key := "root"
	cmd.PersistentFlags().String(key, ".locks", WrapString("Directory that holds the lock claims. All contending processes must use the same root"))

	key = "store"
	cmd.PersistentFlags().String(key, "dir", WrapString("Lock store backend to use (dir, flock)"))

	key = "lock-timeout"
	cmd.PersistentFlags().Float64(key, 3600, WrapString("Age in seconds after which an existing lock is considered stale and may be reclaimed"))

	key = "initial-wait"
	cmd.PersistentFlags().Float64(key, 0.1, WrapString("First retry wait in seconds when a lock is contended"))

	key = "max-wait"
	cmd.PersistentFlags().Float64(key, 10, WrapString("Upper bound in seconds for the retry wait"))

	key = "backoff-multiplier"
	cmd.PersistentFlags().Float64(key, 1.5, WrapString("Growth factor applied to the retry wait after each attempt"))

	key = "poll-interval"
	cmd.PersistentFlags().Float64(key, 1, WrapString("Polling interval in seconds used by the wait command"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("Log level (debug, info, warn, error)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dlock")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetManagerConfig reads the lock manager configuration from viper
func GetManagerConfig() lockmgr.Config {
	return lockmgr.Config{
		LockTimeout:       secondsFlag("lock-timeout"),
		InitialWait:       secondsFlag("initial-wait"),
		MaxWait:           secondsFlag("max-wait"),
		BackoffMultiplier: viper.GetFloat64("backoff-multiplier"),
		PollInterval:      secondsFlag("poll-interval"),
	}
}

// GetStore creates a lock store based on configuration
func GetStore() (lockstore.ILockStore, error) {
	root := viper.GetString("root")
	switch viper.GetString("store") {
	case "dir":
		return dirstore.NewDirStore(root)
	case "flock":
		return flockstore.NewFlockStore(root)
	default:
		return nil, fmt.Errorf("invalid store %s", viper.GetString("store"))
	}
}

// GetManager creates a lock manager over the configured store
func GetManager() (lockmgr.ILockManager, error) {
	store, err := GetStore()
	if err != nil {
		return nil, err
	}
	return lockmgr.NewLockManager(store, GetManagerConfig()), nil
}

// BindCommandFlags binds a command's flags, including inherited persistent
// flags, to viper
func BindCommandFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.InheritedFlags()); err != nil {
		return err
	}
	return viper.BindPFlags(cmd.Flags())
}

// secondsFlag reads a float seconds flag as a duration
func secondsFlag(key string) time.Duration {
	return time.Duration(viper.GetFloat64(key) * float64(time.Second))
}
