// Command storagectl is an operational CLI over the storage engine: schema
// version/migration, backup/restore, the orphan resource sweep, and config
// inspection, mirroring how beads ships cmd/bd over its own storage
// package (see beads/cmd/bd/main.go).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quentier/localstorage/internal/config"
	"github.com/quentier/localstorage/internal/debug"
	"github.com/quentier/localstorage/internal/telemetry"
)

// Version is set via -ldflags at build time; "dev" otherwise.
var Version = "dev"

var (
	storageRootFlag string
	configFileFlag  string
	driverFlag      string
	dsnFlag         string
	verboseFlag     bool
	quietFlag       bool

	cfg              *config.Config
	telemetryDone    telemetry.Shutdown = func(context.Context) error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "storagectl",
	Short: "storagectl - operational CLI for the local storage engine",
	Long:  "Inspect, migrate, back up, restore, and sweep a local storage account outside of the running application.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug.SetVerbose(verboseFlag)
		debug.SetQuiet(quietFlag)

		v := viper.New()
		if driverFlag != "" {
			v.Set("driver", driverFlag)
		}
		if dsnFlag != "" {
			v.Set("dsn", dsnFlag)
		}
		if verboseFlag {
			v.Set("verbose", true)
		}
		if quietFlag {
			v.Set("quiet", true)
		}
		loaded, err := config.Load(v, storageRootFlag, configFileFlag)
		if err != nil {
			return err
		}
		cfg = loaded

		done, err := telemetry.Setup(cmd.Context(), verboseFlag)
		if err != nil {
			return err
		}
		telemetryDone = done
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storageRootFlag, "storage-root", "", "Account storage root directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&configFileFlag, "config", "", "Path to a storagectl config file (default: storagectl.yaml in --storage-root or .)")
	rootCmd.PersistentFlags().StringVar(&driverFlag, "driver", "", "database/sql driver: sqlite, mysql, or dolt (default: sqlite)")
	rootCmd.PersistentFlags().StringVar(&dsnFlag, "dsn", "", "Override the derived connection string")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")

	rootCmd.AddCommand(versionCmd, migrateCmd, backupCmd, restoreCmd, sweepCmd, configCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print storagectl's version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("storagectl " + Version)
		return nil
	},
}

func rootContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	err := rootCmd.Execute()
	if shutdownErr := telemetryDone(context.Background()); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "storagectl:", err)
		os.Exit(1)
	}
}
