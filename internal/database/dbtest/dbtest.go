// Package dbtest opens throwaway SQLite databases migrated with the real schema.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"

	"github.com/infinitetech/repairdesk/internal/config"
	"github.com/infinitetech/repairdesk/internal/database"
	"github.com/infinitetech/repairdesk/internal/migration"
)

// New returns connections to a fresh, fully migrated database that is closed when the test ends.
func New(t testing.TB) *database.Connections {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.Join(t.TempDir(), "repairdesk.db"))
	sqldb, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	conns := &database.Connections{Writer: db, Reader: db}

	cfg := config.Config{Database: config.Database{Driver: "sqlite"}}
	mig, err := migration.New(cfg, conns, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, mig.Up(context.Background()))

	return conns
}

// Exec runs raw SQL against the writer, failing the test on error.
func Exec(t testing.TB, conns *database.Connections, query string, args ...any) {
	t.Helper()
	_, err := conns.Writer.ExecContext(context.Background(), query, args...)
	require.NoError(t, err)
}
