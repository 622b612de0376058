// Package snapshot loads the key->string mapping the core installs
// verbatim at startup. --dir and --dbfilename together name a sqlite or
// avro file, picked by the --dbfilename extension; a --dir of the form
// s3://bucket/prefix fetches that file from S3 first. Load dispatches to
// the matching backend.
package snapshot

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Backend loads a complete key->value map from a snapshot source.
type Backend interface {
	Load(ctx context.Context) (map[string]string, error)
}

// Load resolves dir+dbfilename to a Backend (by s3:// prefix, then by
// extension) and runs it. Both
// dir and dbfilename must be non-empty; callers skip calling Load
// entirely otherwise.
func Load(ctx context.Context, dir, dbfilename string) (map[string]string, error) {
	if dir == "" || dbfilename == "" {
		return nil, fmt.Errorf("snapshot: both --dir and --dbfilename are required")
	}

	backend, err := newBackend(dir, dbfilename)
	if err != nil {
		return nil, err
	}
	return backend.Load(ctx)
}

func newBackend(dir, dbfilename string) (Backend, error) {
	if strings.HasPrefix(dir, "s3://") {
		return newS3Backend(dir, dbfilename)
	}

	path := filepath.Join(dir, dbfilename)
	switch strings.ToLower(filepath.Ext(dbfilename)) {
	case ".db", ".sqlite", ".sqlite3":
		return &sqliteBackend{path: path}, nil
	case ".avro":
		return &avroBackend{path: path}, nil
	default:
		return nil, fmt.Errorf("snapshot: unrecognized dbfilename extension %q (want .db/.sqlite/.sqlite3 or .avro)", filepath.Ext(dbfilename))
	}
}
