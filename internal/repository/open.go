package repository

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Options selects a durable backend.
type Options struct {
	Type        string // sqlite, postgres, mysql or memory
	Path        string // sqlite file
	PostgresDSN string
	MySQLDSN    string
}

// Open builds the backend named by opts.Type.
func Open(opts Options, log logrus.FieldLogger) (KVStore, error) {
	switch opts.Type {
	case "postgres", "postgresql":
		return NewPostgresKV(opts.PostgresDSN, log)
	case "mysql":
		return NewMySQLKV(opts.MySQLDSN, log)
	case "memory":
		return NewMemoryKV(), nil
	case "sqlite", "":
		return NewSQLiteKV(opts.Path, log)
	}
	return nil, fmt.Errorf("unknown store type %q", opts.Type)
}
