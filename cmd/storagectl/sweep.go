package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quentier/localstorage/internal/storage/sqlite"
)

var sweepOnce bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove orphan resource body files left behind by interrupted writes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := rootContext()
		defer cancel()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		interval := cfg.SweepInterval
		if interval <= 0 {
			interval = time.Hour
		}

		sweeper, err := sqlite.NewSweeper(db, cfg.StorageRoot, interval)
		if err != nil {
			return err
		}
		defer sweeper.Close()

		if sweepOnce || cfg.SweepInterval <= 0 {
			fmt.Println("sweeping once")
			// Run always does one synchronous pass before it starts waiting
			// on the ticker/watcher; an already-canceled context makes it
			// return right after that pass instead of looping.
			runCtx, runCancel := context.WithCancel(ctx)
			runCancel()
			sweeper.Run(runCtx)
			return nil
		}

		fmt.Printf("sweeping every %s, press ctrl-c to stop\n", interval)
		sweeper.Run(ctx)
		return nil
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepOnce, "once", false, "Run a single sweep pass and exit instead of looping")
}
