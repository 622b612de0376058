package snapshot

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// sqliteBackend reads a kv(key TEXT PRIMARY KEY, value TEXT NOT NULL) table, the
// schema tools/snapshot-init creates, built on sqlx+squirrel for the
// query itself.
type sqliteBackend struct {
	path string
}

type kvRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

func (b *sqliteBackend) Load(ctx context.Context) (map[string]string, error) {
	db, err := sqlx.Open("sqlite3", b.path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open sqlite %s: %w", b.path, err)
	}
	defer db.Close()

	query, args, err := sq.Select("key", "value").From("kv").ToSql()
	if err != nil {
		return nil, fmt.Errorf("snapshot: build query: %w", err)
	}

	var rows []kvRow
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("snapshot: query sqlite %s: %w", b.path, err)
	}

	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	cclog.Infof("[SNAPSHOT]> loaded %d keys from sqlite snapshot %s", len(out), b.path)
	return out, nil
}
