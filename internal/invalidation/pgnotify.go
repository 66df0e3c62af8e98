package invalidation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bassista/go_gallery/internal/logger"
)

// maxPayload stays below the 8000 byte NOTIFY payload limit.
const maxPayload = 7000

// Execer is implemented by *pgxpool.Pool, *pgx.Conn and pgxmock.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// NotifyConn is one dedicated connection that receives notifications.
type NotifyConn interface {
	Execer
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
}

// Connector hands out a dedicated listening connection and its release func.
type Connector func(ctx context.Context) (NotifyConn, func(), error)

// PoolConnector acquires listening connections from pool.
func PoolConnector(pool *pgxpool.Pool) Connector {
	return func(ctx context.Context) (NotifyConn, func(), error) {
		c, err := pool.Acquire(ctx)
		if err != nil {
			return nil, nil, err
		}
		return c.Conn(), c.Release, nil
	}
}

type notification struct {
	Origin string   `json:"origin"`
	Tags   []string `json:"tags,omitempty"`
	All    bool     `json:"all,omitempty"`
}

// PGNotifier broadcasts invalidations to other instances with pg_notify.
type PGNotifier struct {
	db      Execer
	channel string
	origin  string
}

// NewPGNotifier creates a notifier; origin identifies this process so its own
// notifications are skipped by its listener.
func NewPGNotifier(db Execer, channel, origin string) *PGNotifier {
	return &PGNotifier{db: db, channel: channel, origin: origin}
}

func (n *PGNotifier) Name() string { return "pg-notify" }

func (n *PGNotifier) Invalidate(ctx context.Context, tags Set) error {
	for _, chunk := range chunkTags(tags.Strings(), maxPayload) {
		if err := n.send(ctx, notification{Origin: n.origin, Tags: chunk}); err != nil {
			return err
		}
	}
	return nil
}

func (n *PGNotifier) InvalidateAll(ctx context.Context) error {
	return n.send(ctx, notification{Origin: n.origin, All: true})
}

func (n *PGNotifier) send(ctx context.Context, msg notification) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if _, err := n.db.Exec(ctx, "SELECT pg_notify($1, $2)", n.channel, string(payload)); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

// chunkTags splits tags so each chunk's JSON encoding stays under limit bytes.
func chunkTags(tags []string, limit int) [][]string {
	var out [][]string
	var cur []string
	size := 0
	for _, t := range tags {
		// quotes and comma
		n := len(t) + 3
		if len(cur) > 0 && size+n > limit {
			out = append(out, cur)
			cur, size = nil, 0
		}
		cur = append(cur, t)
		size += n
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// PGListener applies invalidations broadcast by other instances to the local
// transports. After a reconnect everything local is dropped, because notifications
// sent while disconnected are lost.
type PGListener struct {
	connect Connector
	channel string
	origin  string
	local   []Invalidator
	retry   time.Duration
}

func NewPGListener(connect Connector, channel, origin string, local ...Invalidator) *PGListener {
	return &PGListener{connect: connect, channel: channel, origin: origin, local: local, retry: 2 * time.Second}
}

// Run listens until ctx is cancelled.
func (l *PGListener) Run(ctx context.Context) {
	log := logger.WithComponent("pg-listener")
	first := true
	for {
		err := l.listen(ctx, !first)
		if ctx.Err() != nil {
			log.Debug("listener stopped")
			return
		}
		first = false
		log.Warnf("listener on %s interrupted: %v; retrying in %s", l.channel, err, l.retry)
		select {
		case <-ctx.Done():
			return
		case <-time.After(l.retry):
		}
	}
}

func (l *PGListener) listen(ctx context.Context, resync bool) error {
	conn, release, err := l.connect(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if resync {
		l.applyAll(ctx)
	}
	logger.WithComponent("pg-listener").Infof("listening for invalidations on %s", l.channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.Handle(ctx, n)
	}
}

// Handle applies one notification to the local transports.
func (l *PGListener) Handle(ctx context.Context, n *pgconn.Notification) {
	log := logger.WithComponent("pg-listener")
	if n == nil || n.Channel != l.channel {
		return
	}
	var msg notification
	if err := json.Unmarshal([]byte(n.Payload), &msg); err != nil {
		log.Warnf("dropping malformed notification: %v", err)
		return
	}
	if msg.Origin == l.origin {
		return
	}
	if msg.All {
		l.applyAll(ctx)
		return
	}
	tags := make([]Tag, len(msg.Tags))
	for i, t := range msg.Tags {
		tags[i] = Tag(t)
	}
	set := NewSet(tags...)
	log.Debugf("remote invalidation from %s: %s", msg.Origin, set)
	for _, t := range l.local {
		if err := t.Invalidate(ctx, set); err != nil {
			log.Warnf("transport %s failed to apply remote invalidation: %v", t.Name(), err)
		}
	}
}

func (l *PGListener) applyAll(ctx context.Context) {
	for _, t := range l.local {
		if err := t.InvalidateAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithComponent("pg-listener").Warnf("transport %s failed to invalidate all: %v", t.Name(), err)
		}
	}
}
