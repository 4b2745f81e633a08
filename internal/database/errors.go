package database

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	pgUniqueViolation   = "23505"
	mysqlDuplicateEntry = 1062
)

// IsUniqueViolation reports whether err is a unique constraint failure from any supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == pgUniqueViolation
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}

// SupportsRowLocking reports whether the dialect understands SELECT ... FOR UPDATE.
func SupportsRowLocking(db bun.IDB) bool {
	switch db.Dialect().Name() {
	case dialect.PG, dialect.MySQL:
		return true
	default:
		return false
	}
}

// SnapshotTxOptions returns options for a read-only transaction that sees one consistent snapshot.
// SQLite transactions are serializable already, so no options are passed there.
func SnapshotTxOptions(db bun.IDB) *sql.TxOptions {
	if db.Dialect().Name() == dialect.SQLite {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}
