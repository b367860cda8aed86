package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quentier/localstorage/internal/settings"
	"github.com/quentier/localstorage/internal/storage/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply any pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := rootContext()
		defer cancel()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		store, err := settings.OpenFileStore(filepath.Join(cfg.StorageRoot, "settings.toml"))
		if err != nil {
			return err
		}

		patches, err := sqlite.RequiredPatches(ctx, db, sqlite.PatchDependencies{
			DB:          db,
			StorageRoot: cfg.StorageRoot,
			BackupRoot:  cfg.DefaultBackupDir(),
			Settings:    store,
		})
		if err != nil {
			return err
		}
		if len(patches) == 0 {
			fmt.Println("storage is already at the latest schema version")
			return nil
		}

		for _, p := range patches {
			fmt.Printf("applying patch %d -> %d: %s\n", p.FromVersion(), p.ToVersion(), p.ShortDescription())
		}

		progress := newMigrateProgress(cfg.Quiet)
		if err := sqlite.RunUpgrade(ctx, db, patches, progress); err != nil {
			return err
		}
		if !cfg.Quiet {
			fmt.Println()
		}
		fmt.Println("migration complete")
		return nil
	},
}
