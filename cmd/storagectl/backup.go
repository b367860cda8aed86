package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quentier/localstorage/internal/storage/sqlite"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy the database file and its WAL/SHM sidecars into a timestamped backup directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := sqlite.BackupDatabaseFiles(cfg.DatabasePath(), cfg.DefaultBackupDir())
		if err != nil {
			return err
		}
		fmt.Println(dir)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-dir>",
	Short: "Restore the database file and its sidecars from a backup directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := sqlite.RestoreDatabaseFiles(args[0], cfg.DatabasePath()); err != nil {
			return err
		}
		fmt.Println("restored from", args[0])
		return nil
	},
}
