package modelstore

import (
	"database/sql"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/liamcoop/greenscore/config"
)

// Options are the backend settings accepted in config.Store.Options.
type Options struct {
	Path             string `mapstructure:"path"`
	Name             string `mapstructure:"name"`
	DSN              string `mapstructure:"dsn"`
	ConnectionString string `mapstructure:"connection_string"`
	Container        string `mapstructure:"container"`
}

// Open builds the Store selected by cfg.
func Open(cfg config.Store) (Store, error) {
	var opts Options
	if err := mapstructure.Decode(cfg.Options, &opts); err != nil {
		return nil, fmt.Errorf("invalid %s store options: %w", cfg.Backend, err)
	}
	if opts.Name == "" {
		opts.Name = config.DefaultModelName
	}

	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemoryStore(), nil

	case config.BackendFile:
		if opts.Path == "" {
			return nil, fmt.Errorf("file store requires a path")
		}
		return NewFileStore(opts.Path), nil

	case config.BackendPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres store requires a dsn")
		}
		db, err := sql.Open("postgres", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return NewPostgresStore(db, opts.Name), nil

	case config.BackendBlob:
		if opts.ConnectionString == "" {
			return nil, fmt.Errorf("blob store requires a connection string")
		}
		if opts.Container == "" {
			opts.Container = config.DefaultContainer
		}
		return NewBlobStore(opts.ConnectionString, opts.Container, opts.Name+".model.zst")

	default:
		return nil, fmt.Errorf("unknown model store backend %q", cfg.Backend)
	}
}
