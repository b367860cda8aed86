// Package config resolves storagectl's runtime configuration from flags,
// environment variables, and an optional config file, in that precedence
// order, grounded on the viper wiring in beads/cmd/bd/config.go and
// beads/cmd/bd/main.go's persistent-flag setup.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/quentier/localstorage/internal/storage/sqlite"
	"github.com/quentier/localstorage/internal/storeerrors"
)

// Config is the fully resolved set of knobs storagectl needs to open and
// operate on one account's storage root.
type Config struct {
	// StorageRoot is the directory holding the database file, the
	// resources/ attachment tree, and the advisory lock file.
	StorageRoot string

	// Driver selects the database/sql driver the Connection Pool opens.
	Driver sqlite.DriverName
	// DSN overrides the connection string the engine would otherwise build
	// from StorageRoot. Empty means "derive it".
	DSN string

	ReadPoolSize     int
	WriterQueueDepth int
	LockTimeout      time.Duration

	// BackupDir is where `storagectl backup`/`restore` read and write
	// snapshot directories when the command doesn't name one explicitly.
	BackupDir string
	// SweepInterval is how often the orphan resource sweeper runs when
	// started as a background loop; zero disables the background loop.
	SweepInterval time.Duration

	Verbose bool
	Quiet   bool
}

const envPrefix = "LOCALSTORAGE"

func defaults(v *viper.Viper) {
	v.SetDefault("storage_root", ".")
	v.SetDefault("driver", string(sqlite.DriverSQLite))
	v.SetDefault("dsn", "")
	v.SetDefault("read_pool_size", 4)
	v.SetDefault("writer_queue_depth", 256)
	v.SetDefault("lock_timeout", 30*time.Second)
	v.SetDefault("backup_dir", "")
	v.SetDefault("sweep_interval", 0)
	v.SetDefault("verbose", false)
	v.SetDefault("quiet", false)
}

// Load resolves a Config using viper's standard precedence: explicit flags
// (already bound into v by the caller) beat environment variables
// (LOCALSTORAGE_STORAGE_ROOT, LOCALSTORAGE_DRIVER, ...), which beat a
// config file (storagectl.yaml/.toml/.json, searched for under
// configFile if non-empty, or in storageRoot and the working directory
// otherwise), which beat the defaults above.
func Load(v *viper.Viper, storageRootFlag, configFile string) (*Config, error) {
	defaults(v)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("storagectl")
		v.SetConfigType("yaml")
		if storageRootFlag != "" {
			v.AddConfigPath(storageRootFlag)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, storeerrors.Wrap(storeerrors.InvalidArgument, "read config file", err)
		}
	}

	if storageRootFlag != "" {
		v.Set("storage_root", storageRootFlag)
	}

	driver := sqlite.DriverName(v.GetString("driver"))
	if !isKnownDriver(driver) {
		return nil, storeerrors.New(storeerrors.InvalidArgument, "resolve config",
			fmt.Sprintf("driver %q is not one of %v", driver, sqlite.SupportedDrivers))
	}

	root, err := filepath.Abs(v.GetString("storage_root"))
	if err != nil {
		return nil, storeerrors.Wrap(storeerrors.InvalidArgument, "resolve storage root", err)
	}

	return &Config{
		StorageRoot:      root,
		Driver:           driver,
		DSN:              v.GetString("dsn"),
		ReadPoolSize:     v.GetInt("read_pool_size"),
		WriterQueueDepth: v.GetInt("writer_queue_depth"),
		LockTimeout:      v.GetDuration("lock_timeout"),
		BackupDir:        v.GetString("backup_dir"),
		SweepInterval:    v.GetDuration("sweep_interval"),
		Verbose:          v.GetBool("verbose"),
		Quiet:            v.GetBool("quiet"),
	}, nil
}

func isKnownDriver(name sqlite.DriverName) bool {
	for _, d := range sqlite.SupportedDrivers {
		if d == name {
			return true
		}
	}
	return false
}

// DatabasePath returns the sqlite file path a DriverSQLite config would
// open when DSN is empty, matching the layout InitializeTables/backup
// expect under StorageRoot.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.StorageRoot, "qn.storage.sqlite")
}

// ResourcesDir returns the out-of-row attachment directory under
// StorageRoot, matching the layout handlers.NoteHandler/ResourceHandler use.
func (c *Config) ResourcesDir() string {
	return filepath.Join(c.StorageRoot, "Resources")
}

// DefaultBackupDir returns BackupDir if set, otherwise StorageRoot/backups.
func (c *Config) DefaultBackupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}
	return filepath.Join(c.StorageRoot, "backups")
}
