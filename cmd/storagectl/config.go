package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quentier/localstorage/internal/storage/sqlite"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration and, if reachable, the database's schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("storage_root:       %s\n", cfg.StorageRoot)
		fmt.Printf("driver:             %s\n", cfg.Driver)
		fmt.Printf("dsn:                %s\n", dsnOrDerived())
		fmt.Printf("read_pool_size:     %d\n", cfg.ReadPoolSize)
		fmt.Printf("writer_queue_depth: %d\n", cfg.WriterQueueDepth)
		fmt.Printf("lock_timeout:       %s\n", cfg.LockTimeout)
		fmt.Printf("backup_dir:         %s\n", cfg.DefaultBackupDir())
		fmt.Printf("sweep_interval:     %s\n", cfg.SweepInterval)

		db, err := openDB()
		if err != nil {
			fmt.Println("schema_version:     (database unreachable)")
			return nil
		}
		defer db.Close()

		version, err := sqlite.Version(context.Background(), db)
		if err != nil {
			fmt.Println("schema_version:     (unreadable)")
			return nil
		}
		fmt.Printf("schema_version:     %d (highest supported: %d)\n", version, sqlite.HighestSupportedVersion)
		return nil
	},
}

func dsnOrDerived() string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	return cfg.DatabasePath()
}
