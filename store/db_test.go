package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	data  []byte
	err   error
	found bool
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if !r.found {
		return pgx.ErrNoRows
	}
	*dest[0].(*[]byte) = r.data
	return nil
}

type session struct {
	data   []byte
	expiry time.Time
}

// memQuerier answers the handful of statements the store issues.
type memQuerier struct {
	mu       sync.Mutex
	sessions map[string]session
	execs    []string
	fail     error
}

func newMem() *memQuerier {
	return &memQuerier{sessions: map[string]session{}}
}

func (m *memQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs = append(m.execs, sql)
	if m.fail != nil {
		return pgconn.CommandTag{}, m.fail
	}
	switch {
	case strings.Contains(sql, "INSERT INTO sessions"):
		m.sessions[args[0].(string)] = session{data: args[1].([]byte), expiry: args[2].(time.Time)}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.Contains(sql, "WHERE token = $1"):
		delete(m.sessions, args[0].(string))
		return pgconn.NewCommandTag("DELETE 1"), nil
	case strings.Contains(sql, "expiry < current_timestamp"):
		n := 0
		for k, s := range m.sessions {
			if s.expiry.Before(time.Now()) {
				delete(m.sessions, k)
				n++
			}
		}
		return pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", n)), nil
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (m *memQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return row{err: m.fail}
	}
	s, ok := m.sessions[args[0].(string)]
	if !ok || !time.Now().Before(s.expiry) {
		return row{}
	}
	return row{data: s.data, found: true}
}

func TestCommitFindDelete(t *testing.T) {
	q := newMem()
	db := New(q)

	require.NoError(t, db.CreateTables(context.Background()))
	assert.Contains(t, q.execs[0], "CREATE TABLE IF NOT EXISTS sessions")

	_, found, err := db.Find("abc")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, db.Commit("abc", []byte("payload"), time.Now().Add(time.Hour)))
	data, found, err := db.Find("abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("payload"), data)

	require.NoError(t, db.Commit("abc", []byte("updated"), time.Now().Add(time.Hour)))
	data, _, _ = db.FindCtx(context.Background(), "abc")
	assert.Equal(t, []byte("updated"), data)

	require.NoError(t, db.Delete("abc"))
	_, found, err = db.Find("abc")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFindIgnoresExpired(t *testing.T) {
	db := New(newMem())
	require.NoError(t, db.Commit("old", []byte("x"), time.Now().Add(-time.Minute)))
	_, found, err := db.Find("old")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestErrorsPropagate(t *testing.T) {
	q := newMem()
	q.fail = errors.New("connection reset")
	db := New(q)

	_, _, err := db.Find("abc")
	assert.EqualError(t, err, "connection reset")
	assert.Error(t, db.Commit("abc", nil, time.Now()))
	assert.Error(t, db.Delete("abc"))
}

func TestDeleteExpired(t *testing.T) {
	q := newMem()
	db := New(q)
	require.NoError(t, db.Commit("old", []byte("x"), time.Now().Add(-time.Minute)))
	require.NoError(t, db.Commit("new", []byte("y"), time.Now().Add(time.Hour)))

	n, err := db.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, q.sessions, 1)
}

func TestCleanupRunsUntilStopped(t *testing.T) {
	q := newMem()
	db := New(q)
	require.NoError(t, db.Commit("old", []byte("x"), time.Now().Add(-time.Minute)))

	db.Cleanup(5 * time.Millisecond)
	assert.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.sessions) == 0
	}, time.Second, 5*time.Millisecond)

	db.StopCleanup()
	db.StopCleanup()
	db.Close()
}
