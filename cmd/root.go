package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dLock/cmd/util"
	"github.com/ValentinKolb/dLock/lib/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	Version = "1.0.2"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dlock",
		Short: "file-based inter-process lock manager",
		Long: fmt.Sprintf(`dLock (v%s)

A file-based mutex for unrelated processes that share nothing but a
filesystem namespace. Locks are atomic filesystem claims with stale-lock
recovery, exponential backoff and guaranteed release on process exit.`, Version),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := util.BindCommandFlags(cmd); err != nil {
				return err
			}
			logging.SetLevel(viper.GetString("log-level"))
			return nil
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dLock",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dLock v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(acquireCmd)
	RootCmd.AddCommand(releaseCmd)
	RootCmd.AddCommand(forceReleaseCmd)
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(waitCmd)
	RootCmd.AddCommand(listCmd)
	RootCmd.AddCommand(cleanupCmd)
	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(versionCmd)

	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Flags
	util.SetupLockFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
