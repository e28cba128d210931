// Package docstore persists a single serialized document behind a narrow
// read/write interface. Callers own the encoding; a backend only stores and
// returns the bytes as a whole, replacing the previous version on every write.
package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrNotExist is returned by Read when no document has been written yet.
var ErrNotExist = errors.New("document does not exist")

// Driver names accepted by Open.
const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverS3       = "s3"
)

// Backend stores one document.
type Backend interface {
	Driver() string
	// Read returns the full document or ErrNotExist.
	Read(ctx context.Context) ([]byte, error)
	// Write replaces the full document.
	Write(ctx context.Context, data []byte) error
	Ping(ctx context.Context) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver string

	// file
	Path string

	// postgres
	DatabaseURL string
	MaxConns    int32
	MinConns    int32

	// sqlite
	SQLitePath string

	// postgres and sqlite row key
	DocumentName string

	// s3
	S3 S3Config
}

// Open constructs the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Driver {
	case "", DriverFile:
		return NewFile(cfg.Path), nil
	case DriverMemory:
		return NewMemory(), nil
	case DriverPostgres:
		p, err := OpenPostgres(ctx, cfg.DatabaseURL, cfg.MaxConns, cfg.MinConns, cfg.DocumentName)
		if err != nil {
			return nil, err
		}
		return p, nil
	case DriverSQLite:
		s, err := OpenSQLite(ctx, cfg.SQLitePath, cfg.DocumentName)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverS3:
		s, err := NewS3(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

const defaultDocumentName = "patients"

func documentName(name string) string {
	if name == "" {
		return defaultDocumentName
	}
	return name
}

// pingTimeout bounds health probes issued by Ping implementations that reach
// the network.
const pingTimeout = 5 * time.Second
