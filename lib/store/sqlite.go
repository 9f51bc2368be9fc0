// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/annolab/boxline/lib/codec"
	"github.com/annolab/boxline/lib/sqlitepool"
)

// Config holds the parameters for opening a SQLite-backed store.
// Path is required; all other fields have defaults.
type Config struct {
	// Path is the filesystem path to the SQLite database file. The
	// parent directory must exist; the file is created on first
	// open. Use ":memory:" with PoolSize 1 for tests.
	Path string

	// PoolSize is the number of connections in the pool. If zero or
	// negative, defaults to max(runtime.NumCPU(), 4). SQLite
	// serializes writes regardless, so extra connections only help
	// concurrent readers.
	PoolSize int

	// Logger receives operational messages. Nil means discard.
	Logger *slog.Logger
}

// SQLite is the durable store. Records live in a single table keyed
// by (kind, id) with payloads encoded as deterministic CBOR.
//
// SQLite is safe for concurrent use; individual connections are not,
// so every operation takes and returns its own pooled connection.
type SQLite struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
	path   string
}

const schema = `
CREATE TABLE IF NOT EXISTS records (
	kind         TEXT NOT NULL,
	id           TEXT NOT NULL,
	payload      BLOB NOT NULL,
	content_hash TEXT NOT NULL,
	PRIMARY KEY (kind, id)
) WITHOUT ROWID;
`

// Open creates the SQLite store. Pragmas come from lib/sqlitepool;
// the records schema is applied to every connection. The caller must
// Close when done.
func Open(cfg Config) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
				return fmt.Errorf("store: applying schema: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", cfg.Path, err)
	}

	logger.Info("annotation store opened", "path", cfg.Path)
	return &SQLite{pool: pool, logger: logger, path: cfg.Path}, nil
}

// Close closes all pooled connections. Blocks until borrowed
// connections are returned.
func (s *SQLite) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("store: closing %s: %w", s.path, err)
	}
	s.logger.Info("annotation store closed", "path", s.path)
	return nil
}

func (s *SQLite) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: take connection: %w", err)
	}
	defer s.pool.Put(conn)
	return fn(conn)
}

func (s *SQLite) FindUnique(ctx context.Context, kind Kind, id string) (*Record, error) {
	var rec *Record
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		rec, err = connFindUnique(conn, kind, id)
		return err
	})
	return rec, err
}

func (s *SQLite) FindMany(ctx context.Context, kind Kind) ([]Record, error) {
	var recs []Record
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		recs, err = connFindMany(conn, kind)
		return err
	})
	return recs, err
}

func (s *SQLite) Create(ctx context.Context, rec *Record) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) error { return connCreate(conn, rec) })
}

func (s *SQLite) Update(ctx context.Context, rec *Record) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) error { return connUpdate(conn, rec) })
}

func (s *SQLite) Upsert(ctx context.Context, rec *Record) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) error { return connUpsert(conn, rec) })
}

func (s *SQLite) Delete(ctx context.Context, kind Kind, id string) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) error { return connDelete(conn, kind, id) })
}

// WithTx runs fn against a transaction-scoped Querier. The
// transaction is IMMEDIATE: the write lock is taken up front so a
// batch cannot deadlock against its own later writes. fn returning an
// error rolls everything back.
func (s *SQLite) WithTx(ctx context.Context, fn func(tx Querier) error) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		endTx, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("store: begin transaction: %w", err)
		}
		defer endTx(&err)
		return fn(&txQuerier{conn: conn})
	})
}

// txQuerier runs the Querier operations on one pinned connection
// inside an open transaction. Context is ignored: SQLite operations
// on an open connection do not block on I/O the way a network store
// would, and the transaction must complete as a unit.
type txQuerier struct {
	conn *sqlite.Conn
}

func (t *txQuerier) FindUnique(_ context.Context, kind Kind, id string) (*Record, error) {
	return connFindUnique(t.conn, kind, id)
}

func (t *txQuerier) FindMany(_ context.Context, kind Kind) ([]Record, error) {
	return connFindMany(t.conn, kind)
}

func (t *txQuerier) Create(_ context.Context, rec *Record) error { return connCreate(t.conn, rec) }
func (t *txQuerier) Update(_ context.Context, rec *Record) error { return connUpdate(t.conn, rec) }
func (t *txQuerier) Upsert(_ context.Context, rec *Record) error { return connUpsert(t.conn, rec) }
func (t *txQuerier) Delete(_ context.Context, kind Kind, id string) error {
	return connDelete(t.conn, kind, id)
}

func connFindUnique(conn *sqlite.Conn, kind Kind, id string) (*Record, error) {
	var rec *Record
	err := sqlitex.Execute(conn,
		`SELECT payload FROM records WHERE kind = ? AND id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{string(kind), id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				payload := make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, payload)
				decoded, err := decodePayload(payload)
				if err != nil {
					return fmt.Errorf("record %s/%s: %w", kind, id, err)
				}
				rec = &Record{ID: id, Kind: kind, Data: decoded}
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: find %s/%s: %w", kind, id, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("store: find %s/%s: %w", kind, id, ErrNotFound)
	}
	return rec, nil
}

func connFindMany(conn *sqlite.Conn, kind Kind) ([]Record, error) {
	var recs []Record
	err := sqlitex.Execute(conn,
		`SELECT id, payload FROM records WHERE kind = ? ORDER BY id`,
		&sqlitex.ExecOptions{
			Args: []any{string(kind)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				id := stmt.ColumnText(0)
				payload := make([]byte, stmt.ColumnLen(1))
				stmt.ColumnBytes(1, payload)
				decoded, err := decodePayload(payload)
				if err != nil {
					return fmt.Errorf("record %s/%s: %w", kind, id, err)
				}
				recs = append(recs, Record{ID: id, Kind: kind, Data: decoded})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: find many %s: %w", kind, err)
	}
	return recs, nil
}

func connCreate(conn *sqlite.Conn, rec *Record) error {
	payload, hash, err := encodePayload(rec.Data)
	if err != nil {
		return fmt.Errorf("store: create %s/%s: %w", rec.Kind, rec.ID, err)
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO records (kind, id, payload, content_hash) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{string(rec.Kind), rec.ID, payload, hash}})
	if err != nil {
		if code := sqlite.ErrCode(err); code == sqlite.ResultConstraintPrimaryKey {
			return fmt.Errorf("store: create %s/%s: %w", rec.Kind, rec.ID, ErrExists)
		}
		return fmt.Errorf("store: create %s/%s: %w", rec.Kind, rec.ID, err)
	}
	return nil
}

func connUpdate(conn *sqlite.Conn, rec *Record) error {
	payload, hash, err := encodePayload(rec.Data)
	if err != nil {
		return fmt.Errorf("store: update %s/%s: %w", rec.Kind, rec.ID, err)
	}
	err = sqlitex.Execute(conn,
		`UPDATE records SET payload = ?, content_hash = ? WHERE kind = ? AND id = ?`,
		&sqlitex.ExecOptions{Args: []any{payload, hash, string(rec.Kind), rec.ID}})
	if err != nil {
		return fmt.Errorf("store: update %s/%s: %w", rec.Kind, rec.ID, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("store: update %s/%s: %w", rec.Kind, rec.ID, ErrNotFound)
	}
	return nil
}

func connUpsert(conn *sqlite.Conn, rec *Record) error {
	payload, hash, err := encodePayload(rec.Data)
	if err != nil {
		return fmt.Errorf("store: upsert %s/%s: %w", rec.Kind, rec.ID, err)
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO records (kind, id, payload, content_hash) VALUES (?, ?, ?, ?)
		 ON CONFLICT (kind, id) DO UPDATE SET payload = excluded.payload, content_hash = excluded.content_hash`,
		&sqlitex.ExecOptions{Args: []any{string(rec.Kind), rec.ID, payload, hash}})
	if err != nil {
		return fmt.Errorf("store: upsert %s/%s: %w", rec.Kind, rec.ID, err)
	}
	return nil
}

func connDelete(conn *sqlite.Conn, kind Kind, id string) error {
	err := sqlitex.Execute(conn,
		`DELETE FROM records WHERE kind = ? AND id = ?`,
		&sqlitex.ExecOptions{Args: []any{string(kind), id}})
	if err != nil {
		return fmt.Errorf("store: delete %s/%s: %w", kind, id, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("store: delete %s/%s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func encodePayload(data map[string]any) (payload []byte, hash string, err error) {
	payload, err = codec.Marshal(data)
	if err != nil {
		return nil, "", fmt.Errorf("encoding payload: %w", err)
	}
	hash, err = codec.ContentHash(data)
	if err != nil {
		return nil, "", fmt.Errorf("hashing payload: %w", err)
	}
	return payload, hash, nil
}

func decodePayload(payload []byte) (map[string]any, error) {
	var data map[string]any
	if err := codec.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return data, nil
}
