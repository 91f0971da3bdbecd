package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

const defaultPostgresDSN = "postgres://localhost/marinedb?sslmode=disable"

// dialect captures the differences between the two SQL drivers.
type dialect struct {
	driver    string
	blobType  string
	numbered  bool // $1 placeholders instead of ?
	unlimited string
}

var (
	sqliteDialect   = dialect{driver: "sqlite", blobType: "BLOB", unlimited: "-1"}
	postgresDialect = dialect{driver: "pgx", blobType: "BYTEA", numbered: true, unlimited: "ALL"}
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLPool stores entries in a single two-column table.
type SQLPool struct {
	db      *sql.DB
	dialect dialect
}

// OpenSQLite opens the sqlite database file at path.
func OpenSQLite(path string) (*SQLPool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open(sqliteDialect.driver, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and keeps the file lock simple.
	db.SetMaxOpenConns(1)
	return newSQLPool(db, sqliteDialect)
}

// OpenPostgres connects with dsn, falling back to a local default.
func OpenPostgres(dsn string) (*SQLPool, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newSQLPool(db, postgresDialect)
}

func newSQLPool(db *sql.DB, d dialect) (*SQLPool, error) {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS pool (
		k %[1]s PRIMARY KEY,
		v %[1]s NOT NULL
	)`, d.blobType)
	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create pool table: %w", err)
	}
	return &SQLPool{db: db, dialect: d}, nil
}

func (s *SQLPool) Get(key []byte) ([]byte, error) {
	var v []byte
	err := s.db.QueryRow(s.dialect.rebind(`SELECT v FROM pool WHERE k = ?`), key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	return v, nil
}

func (s *SQLPool) Set(key, value []byte) error {
	if err := checkKV(key, value); err != nil {
		return err
	}
	_, err := s.db.Exec(s.dialect.rebind(
		`INSERT INTO pool (k, v) VALUES (?, ?) ON CONFLICT (k) DO UPDATE SET v = excluded.v`), key, value)
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

func (s *SQLPool) Delete(key []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if _, err := s.db.Exec(s.dialect.rebind(`DELETE FROM pool WHERE k = ?`), key); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func (s *SQLPool) Scan(start, end []byte, limit int, fn func(key, value []byte) error) error {
	var (
		conds []string
		args  []any
	)
	if len(start) > 0 {
		conds = append(conds, `k >= ?`)
		args = append(args, start)
	}
	if end != nil {
		conds = append(conds, `k < ?`)
		args = append(args, end)
	}
	query := `SELECT k, v FROM pool`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY k LIMIT `
	if limit > 0 {
		query += strconv.Itoa(limit)
	} else {
		query += s.dialect.unlimited
	}

	rows, err := s.db.Query(s.dialect.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Sync is a no-op: every statement commits on its own.
func (s *SQLPool) Sync() error { return nil }

func (s *SQLPool) Stats() Stats {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM pool`).Scan(&n); err != nil {
		return Stats{}
	}
	return Stats{Keys: n}
}

func (s *SQLPool) Close() error {
	return s.db.Close()
}
