package invalidation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPGNotifier_Invalidate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	payload, _ := json.Marshal(notification{Origin: "i1", Tags: []string{"photos/p1/detail"}})
	mock.ExpectExec(`SELECT pg_notify\(\$1, \$2\)`).
		WithArgs("cache_invalidation", string(payload)).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	n := NewPGNotifier(mock, "cache_invalidation", "i1")
	require.NoError(t, n.Invalidate(context.Background(), NewSet(PhotoDetail("p1"))))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGNotifier_InvalidateAllAndErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`SELECT pg_notify\(\$1, \$2\)`).
		WithArgs("ch", `{"origin":"i1","all":true}`).
		WillReturnError(errors.New("conn closed"))

	n := NewPGNotifier(mock, "ch", "i1")
	err = n.InvalidateAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pg_notify")
	assert.Equal(t, "pg-notify", n.Name())
}

func TestChunkTags(t *testing.T) {
	tags := []string{strings.Repeat("a", 40), strings.Repeat("b", 40), strings.Repeat("c", 40)}

	chunks := chunkTags(tags, 100)
	assert.Equal(t, [][]string{tags[:2], tags[2:]}, chunks)
	assert.Empty(t, chunkTags(nil, 100))
}

func TestPGListener_Handle(t *testing.T) {
	local := &recordingTransport{name: "local"}
	l := NewPGListener(nil, "ch", "me", local)
	ctx := context.Background()

	own, _ := json.Marshal(notification{Origin: "me", Tags: []string{"x"}})
	l.Handle(ctx, &pgconn.Notification{Channel: "ch", Payload: string(own)})
	l.Handle(ctx, &pgconn.Notification{Channel: "ch", Payload: "not json"})
	l.Handle(ctx, &pgconn.Notification{Channel: "other", Payload: `{"origin":"you","all":true}`})
	assert.Empty(t, local.tags)
	assert.Zero(t, local.all)

	remote, _ := json.Marshal(notification{Origin: "you", Tags: []string{"photos/p1/detail", "photos?authorId=O"}})
	l.Handle(ctx, &pgconn.Notification{Channel: "ch", Payload: string(remote)})
	require.Len(t, local.tags, 1)
	assert.Equal(t, NewSet(PhotoDetail("p1"), PhotosByAuthor("O")), local.tags[0])

	l.Handle(ctx, &pgconn.Notification{Channel: "ch", Payload: `{"origin":"you","all":true}`})
	assert.Equal(t, 1, local.all)
}

type fakeNotifyConn struct {
	mu       sync.Mutex
	listened []string
	notes    chan *pgconn.Notification
}

func (f *fakeNotifyConn) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listened = append(f.listened, sql)
	return pgconn.NewCommandTag("LISTEN"), nil
}

func (f *fakeNotifyConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case n, ok := <-f.notes:
		if !ok {
			return nil, errors.New("connection lost")
		}
		return n, nil
	}
}

func TestPGListener_RunReconnectsAndResyncs(t *testing.T) {
	local := &recordingTransport{name: "local"}
	first := &fakeNotifyConn{notes: make(chan *pgconn.Notification, 1)}
	second := &fakeNotifyConn{notes: make(chan *pgconn.Notification, 1)}
	conns := []*fakeNotifyConn{first, second}

	var mu sync.Mutex
	connect := func(context.Context) (NotifyConn, func(), error) {
		mu.Lock()
		defer mu.Unlock()
		c := conns[0]
		if len(conns) > 1 {
			conns = conns[1:]
		}
		return c, func() {}, nil
	}

	l := NewPGListener(connect, "cache_invalidation", "me", local)
	l.retry = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	first.notes <- &pgconn.Notification{Channel: "cache_invalidation", Payload: `{"origin":"you","tags":["photos/p1/detail"]}`}
	close(first.notes)

	assert.Eventually(t, func() bool {
		local.mu.Lock()
		defer local.mu.Unlock()
		return len(local.tags) == 1 && local.all == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done

	first.mu.Lock()
	assert.Equal(t, []string{`LISTEN "cache_invalidation"`}, first.listened)
	first.mu.Unlock()
}
