// Package postgres is the durable document store. Every collection lives in
// one JSONB table; writes notify listeners through pg_notify inside the
// writing transaction, so only committed changes are announced.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/campusride/campus/internal/store"
	"github.com/lib/pq"
)

const notifyChannel = "doc_changes"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	doc        JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_collection_created_idx ON documents (collection, created_at, id);
`

type Store struct {
	db  *sql.DB
	dsn string

	migrateMu sync.Mutex
	migrated  bool

	listenOnce  sync.Once
	listener    *pq.Listener
	listenErr   error
	broadcaster store.Broadcaster
}

var _ store.Store = (*Store)(nil)

// Open prepares a connection pool. It does not connect; call Probe.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Name() string { return "postgres" }

// Probe pings the database once and ensures the schema exists.
func (s *Store) Probe(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return s.migrate(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	s.migrateMu.Lock()
	defer s.migrateMu.Unlock()
	if s.migrated {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	s.migrated = true
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string, dst any) error {
	return getDoc(ctx, s.db, collection, id, dst, false)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDoc(ctx context.Context, q queryer, collection, id string, dst any, lock bool) error {
	query := `SELECT doc FROM documents WHERE collection = $1 AND id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	var data []byte
	err := q.QueryRowContext(ctx, query, collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Record, error) {
	query, args := buildQuery(collection, filters)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		var rec store.Record
		var data []byte
		if err := rows.Scan(&rec.ID, &data); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", collection, err)
		}
		rec.Data = json.RawMessage(data)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", collection, err)
	}
	return out, nil
}

func buildQuery(collection string, filters []store.Filter) (string, []any) {
	var b strings.Builder
	args := []any{collection}
	b.WriteString(`SELECT id, doc FROM documents WHERE collection = $1`)
	for _, f := range filters {
		args = append(args, f.Field, f.Value)
		field, value := len(args)-1, len(args)
		if f.Not {
			fmt.Fprintf(&b, ` AND COALESCE(doc->>$%d, '') <> $%d`, field, value)
		} else {
			fmt.Fprintf(&b, ` AND COALESCE(doc->>$%d, '') = $%d`, field, value)
		}
	}
	b.WriteString(` ORDER BY created_at, id`)
	return b.String(), args
}

func (s *Store) Create(ctx context.Context, collection, id string, doc any) error {
	return s.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Create(ctx, collection, id, doc)
	})
}

func (s *Store) RunTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(ctx, &pgTx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) Get(ctx context.Context, collection, id string, dst any) error {
	return getDoc(ctx, t.tx, collection, id, dst, true)
}

func (t *pgTx) Create(ctx context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO documents (collection, id, doc)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO NOTHING
	`, collection, id, data)
	if err != nil {
		return fmt.Errorf("failed to create %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrAlreadyExists)
	}
	return t.notify(ctx, collection, id)
}

func (t *pgTx) Put(ctx context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO documents (collection, id, doc)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
	`, collection, id, data)
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", collection, id, err)
	}
	return t.notify(ctx, collection, id)
}

func (t *pgTx) notify(ctx context.Context, collection, id string) error {
	if _, err := t.tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, collection+"/"+id); err != nil {
		return fmt.Errorf("failed to notify %s/%s: %w", collection, id, err)
	}
	return nil
}

// Watch registers interest in collections. The LISTEN connection is opened
// on the first call and shared by every watcher.
func (s *Store) Watch(ctx context.Context, collections ...string) (*store.Watcher, error) {
	s.listenOnce.Do(s.startListener)
	if s.listenErr != nil {
		return nil, s.listenErr
	}
	return s.broadcaster.Watch(ctx, collections...), nil
}

func (s *Store) startListener() {
	l := pq.NewListener(s.dsn, 100*time.Millisecond, 10*time.Second, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("Change listener event %d: %v", ev, err)
		}
	})
	if err := l.Listen(notifyChannel); err != nil {
		_ = l.Close()
		s.listenErr = fmt.Errorf("failed to listen on %s: %w", notifyChannel, err)
		return
	}
	s.listener = l
	go s.dispatch(l)
}

func (s *Store) dispatch(l *pq.Listener) {
	for n := range l.Notify {
		if n == nil {
			// Reconnected; notifications sent meanwhile are lost.
			s.broadcaster.PublishAll()
			continue
		}
		collection, _, _ := strings.Cut(n.Extra, "/")
		s.broadcaster.Publish(collection)
	}
}

func (s *Store) Close() error {
	s.listenOnce.Do(func() {})
	s.broadcaster.CloseAll()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	return s.db.Close()
}
