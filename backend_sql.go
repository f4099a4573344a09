package entitycache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var sqlIdentPartRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var errSQLConfig = errors.New("sql driver requires driver name and dsn")

// sqlBackend keeps one row per key in a k/v table. Supported dialects are
// sqlite (default), postgres/pgx and mysql.
type sqlBackend struct {
	db         *sql.DB
	table      string
	driverName string
	prefix     string
	getStmt    *sql.Stmt
	upsertStmt *sql.Stmt
}

func newSQLBackend(ctx context.Context, cfg StoreConfig) (Backend, error) {
	if cfg.SQLDriverName == "" || cfg.SQLDSN == "" {
		return nil, errSQLConfig
	}
	if err := validateSQLTableName(cfg.SQLTable); err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.SQLDriverName, cfg.SQLDSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	b := &sqlBackend{
		db:         db,
		table:      cfg.SQLTable,
		driverName: cfg.SQLDriverName,
		prefix:     cfg.Prefix,
	}
	if err := b.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := b.prepareStatements(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *sqlBackend) Driver() Driver { return DriverSQL }

func (b *sqlBackend) Read(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := b.getStmt.QueryRowContext(ctx, b.rowKey(key)).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return cloneBytes(v), true, nil
}

func (b *sqlBackend) Write(ctx context.Context, key string, body []byte) error {
	_, err := b.upsertStmt.ExecContext(ctx, b.rowKey(key), body, body)
	return err
}

// Close releases the prepared statements and the pool.
func (b *sqlBackend) Close() error {
	_ = b.getStmt.Close()
	_ = b.upsertStmt.Close()
	return b.db.Close()
}

func (b *sqlBackend) ensureSchema(ctx context.Context) error {
	var stmt string
	switch b.driverName {
	case "postgres", "pgx":
		stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			k TEXT PRIMARY KEY,
			v BYTEA NOT NULL
		);`, b.table)
	case "mysql":
		stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			k VARBINARY(255) PRIMARY KEY,
			v LONGBLOB NOT NULL
		) ENGINE=InnoDB;`, b.table)
	default: // sqlite
		stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			k TEXT PRIMARY KEY,
			v BLOB NOT NULL
		);`, b.table)
	}
	_, err := b.db.ExecContext(ctx, stmt)
	return err
}

func (b *sqlBackend) prepareStatements(ctx context.Context) error {
	var err error
	if b.getStmt, err = b.db.PrepareContext(ctx, b.getSQL()); err != nil {
		return err
	}
	if b.upsertStmt, err = b.db.PrepareContext(ctx, b.upsertSQL()); err != nil {
		return err
	}
	return nil
}

func (b *sqlBackend) getSQL() string {
	return fmt.Sprintf("SELECT v FROM %s WHERE k = %s", b.table, b.ph(1))
}

func (b *sqlBackend) upsertSQL() string {
	// Placeholders must be positional for postgres/pgx.
	p1, p2, p3 := b.ph(1), b.ph(2), b.ph(3)
	switch b.driverName {
	case "postgres", "pgx":
		return fmt.Sprintf("INSERT INTO %s (k, v) VALUES (%s, %s) ON CONFLICT (k) DO UPDATE SET v = %s", b.table, p1, p2, p3)
	case "mysql":
		return fmt.Sprintf("INSERT INTO %s (k, v) VALUES (%s, %s) ON DUPLICATE KEY UPDATE v = %s", b.table, p1, p2, p3)
	default:
		return fmt.Sprintf("INSERT INTO %s (k, v) VALUES (%s, %s) ON CONFLICT(k) DO UPDATE SET v = %s", b.table, p1, p2, p3)
	}
}

func (b *sqlBackend) ph(i int) string {
	if b.driverName == "postgres" || b.driverName == "pgx" {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

func (b *sqlBackend) rowKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + ":" + key
}

func validateSQLTableName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("sql table name is required")
	}
	for _, part := range strings.Split(name, ".") {
		if !sqlIdentPartRE.MatchString(part) {
			return fmt.Errorf("invalid sql table name %q", name)
		}
	}
	return nil
}
