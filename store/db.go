// store/db.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    token TEXT PRIMARY KEY,
    data BYTEA NOT NULL,
    expiry TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions (expiry);
`

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Database keeps scs session data in PostgreSQL.
type Database struct {
	pool        Querier
	closer      func()
	stopCleanup chan struct{}
}

func NewDatabase(connectionString string) (*Database, error) {
	pool, err := pgxpool.New(context.Background(), connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Database{pool: pool, closer: pool.Close}, nil
}

// New wraps an existing connection.
func New(q Querier) *Database {
	return &Database{pool: q}
}

func (d *Database) CreateTables(ctx context.Context) error {
	_, err := d.pool.Exec(ctx, schema)
	return err
}

// FindCtx returns the data of an unexpired session.
func (d *Database) FindCtx(ctx context.Context, token string) ([]byte, bool, error) {
	var data []byte
	query := `SELECT data FROM sessions WHERE token = $1 AND current_timestamp < expiry`
	err := d.pool.QueryRow(ctx, query, token).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// CommitCtx inserts or replaces a session.
func (d *Database) CommitCtx(ctx context.Context, token string, b []byte, expiry time.Time) error {
	query := `
        INSERT INTO sessions (token, data, expiry)
        VALUES ($1, $2, $3)
        ON CONFLICT (token) DO UPDATE SET
            data = EXCLUDED.data,
            expiry = EXCLUDED.expiry;
    `
	_, err := d.pool.Exec(ctx, query, token, b, expiry.UTC())
	return err
}

func (d *Database) DeleteCtx(ctx context.Context, token string) error {
	_, err := d.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return err
}

func (d *Database) Find(token string) ([]byte, bool, error) {
	return d.FindCtx(context.Background(), token)
}

func (d *Database) Commit(token string, b []byte, expiry time.Time) error {
	return d.CommitCtx(context.Background(), token, b, expiry)
}

func (d *Database) Delete(token string) error {
	return d.DeleteCtx(context.Background(), token)
}

// DeleteExpired removes sessions past their expiry and returns how many
// rows went away.
func (d *Database) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := d.pool.Exec(ctx, `DELETE FROM sessions WHERE expiry < current_timestamp`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Cleanup deletes expired sessions every interval until StopCleanup.
func (d *Database) Cleanup(interval time.Duration) {
	d.stopCleanup = make(chan struct{})
	go d.sweep(interval, d.stopCleanup)
}

func (d *Database) sweep(interval time.Duration, stop <-chan struct{}) {
	job := uuid.NewString()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := d.DeleteExpired(context.Background())
			if err != nil {
				log.WithFields(log.F("job", job)).Errorf("session cleanup failed: %s", err)
				continue
			}
			if n > 0 {
				log.WithFields(log.F("job", job)).Infof("removed %d expired sessions", n)
			}
		case <-stop:
			return
		}
	}
}

// StopCleanup ends the cleanup goroutine, if running.
func (d *Database) StopCleanup() {
	if d.stopCleanup != nil {
		close(d.stopCleanup)
		d.stopCleanup = nil
	}
}

// Close stops cleanup and closes the pool when the store owns it.
func (d *Database) Close() {
	d.StopCleanup()
	if d.closer != nil {
		d.closer()
	}
}
