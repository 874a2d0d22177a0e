package accesslog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS access_log (
	id          TEXT PRIMARY KEY,
	time        INTEGER NOT NULL,
	remote_addr TEXT NOT NULL,
	server_name TEXT NOT NULL,
	method      TEXT NOT NULL,
	path        TEXT NOT NULL,
	proto       TEXT NOT NULL,
	status      INTEGER NOT NULL,
	bytes_sent  INTEGER NOT NULL,
	referer     TEXT,
	user_agent  TEXT,
	duration_us INTEGER NOT NULL,
	tls         INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_access_log_time ON access_log(time);
CREATE INDEX IF NOT EXISTS idx_access_log_server ON access_log(server_name);
CREATE INDEX IF NOT EXISTS idx_access_log_status ON access_log(status);
`

// SQLiteBackend stores entries in a SQLite database so they can be queried
// with `bastiond logs query` without external tooling.
type SQLiteBackend struct {
	db     *sql.DB
	insert *sql.Stmt
}

// NewSQLiteBackend opens the database, applies the schema, and prepares the
// insert statement. WAL mode keeps the query CLI from blocking the daemon.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open access log database %q: %w", path, err)
	}
	db.SetMaxOpenConns(4)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure access log database: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create access log schema: %w", err)
	}

	insert, err := db.Prepare(`INSERT INTO access_log
		(id, time, remote_addr, server_name, method, path, proto, status, bytes_sent, referer, user_agent, duration_us, tls)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}

	return &SQLiteBackend{db: db, insert: insert}, nil
}

// Write persists one entry.
func (b *SQLiteBackend) Write(ctx context.Context, e *Entry) error {
	_, err := b.insert.ExecContext(ctx,
		e.ID,
		e.Time.UnixMicro(),
		e.RemoteAddr,
		e.ServerName,
		e.Method,
		e.Path,
		e.Proto,
		e.Status,
		e.BytesSent,
		e.Referer,
		e.UserAgent,
		e.Duration.Microseconds(),
		boolToInt(e.TLS),
	)
	if err != nil {
		return fmt.Errorf("failed to insert access log entry: %w", err)
	}
	return nil
}

// Filter narrows a Query. Zero values mean "no constraint".
type Filter struct {
	ServerName string
	Status     int
	Since      time.Time
	Until      time.Time
	Limit      int
}

// Query returns entries matching the filter, newest first.
func (b *SQLiteBackend) Query(ctx context.Context, f Filter) ([]*Entry, error) {
	var (
		conds []string
		args  []any
	)
	if f.ServerName != "" {
		conds = append(conds, "server_name = ?")
		args = append(args, f.ServerName)
	}
	if f.Status != 0 {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "time >= ?")
		args = append(args, f.Since.UnixMicro())
	}
	if !f.Until.IsZero() {
		conds = append(conds, "time <= ?")
		args = append(args, f.Until.UnixMicro())
	}

	q := `SELECT id, time, remote_addr, server_name, method, path, proto, status, bytes_sent, referer, user_agent, duration_us, tls
		FROM access_log`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY time DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := b.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query access log: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			e          Entry
			timeMicro  int64
			durMicro   int64
			tlsFlag    int
			refererNul sql.NullString
			agentNul   sql.NullString
		)
		if err := rows.Scan(&e.ID, &timeMicro, &e.RemoteAddr, &e.ServerName, &e.Method, &e.Path, &e.Proto,
			&e.Status, &e.BytesSent, &refererNul, &agentNul, &durMicro, &tlsFlag); err != nil {
			return nil, fmt.Errorf("failed to scan access log entry: %w", err)
		}
		e.Time = time.UnixMicro(timeMicro)
		e.Duration = time.Duration(durMicro) * time.Microsecond
		e.TLS = tlsFlag != 0
		e.Referer = refererNul.String
		e.UserAgent = agentNul.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Close releases the prepared statement and database handle.
func (b *SQLiteBackend) Close() error {
	b.insert.Close()
	return b.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
