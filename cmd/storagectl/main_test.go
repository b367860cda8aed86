package main

import (
	"bytes"
	"context"
	"testing"
)

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	storageRootFlag, configFileFlag, driverFlag, dsnFlag = "", "", "", ""
	verboseFlag, quietFlag = false, false
	cfg = nil
	telemetryDone = func(context.Context) error { return nil }

	rootCmd.SetArgs(args)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("storagectl %v: %v\noutput: %s", args, err, out.String())
	}
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	runCLI(t, "version")
}

func TestMigrateThenConfigReportsSchemaVersion(t *testing.T) {
	root := t.TempDir()
	runCLI(t, "--storage-root", root, "migrate")
	runCLI(t, "--storage-root", root, "config")
}

func TestBackupAfterMigrate(t *testing.T) {
	root := t.TempDir()
	runCLI(t, "--storage-root", root, "migrate")
	runCLI(t, "--storage-root", root, "backup")
}

func TestSweepOnce(t *testing.T) {
	root := t.TempDir()
	runCLI(t, "--storage-root", root, "migrate")
	runCLI(t, "--storage-root", root, "sweep", "--once")
}
