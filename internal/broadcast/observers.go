package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/redis/go-redis/v9"
)

// ─── WebSocket ────────────────────────────────────────────────────────────────

// WSObserver delivers envelopes as text frames on a WebSocket connection.
type WSObserver struct {
	conn      *websocket.Conn
	closeOnce sync.Once
}

var _ Observer = (*WSObserver)(nil)

// NewWSObserver wraps an accepted connection.
func NewWSObserver(conn *websocket.Conn) *WSObserver {
	return &WSObserver{conn: conn}
}

// Send implements [Observer].
func (o *WSObserver) Send(ctx context.Context, payload []byte) error {
	if err := o.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("broadcast: websocket write: %w", err)
	}
	return nil
}

// Close implements [Observer].
func (o *WSObserver) Close() error {
	var err error
	o.closeOnce.Do(func() {
		err = o.conn.Close(websocket.StatusNormalClosure, "observer closed")
	})
	return err
}

// WSHandler returns an HTTP handler that upgrades the request to a WebSocket
// and registers it with reg until the client disconnects. Incoming messages
// are ignored. onConnect, if non-nil, is called with the new observer before
// it is registered so the caller can send an initial snapshot.
func WSHandler(reg *Registry, originPatterns []string, onConnect func(ctx context.Context, obs Observer)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			slog.Warn("broadcast: websocket accept failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		obs := NewWSObserver(conn)
		ctx := conn.CloseRead(r.Context())
		if onConnect != nil {
			onConnect(ctx, obs)
		}
		reg.Register(obs)
		slog.Info("broadcast: websocket observer connected", "remote", r.RemoteAddr)

		<-ctx.Done()
		reg.Unregister(obs)
		slog.Info("broadcast: websocket observer disconnected", "remote", r.RemoteAddr)
	})
}

// ─── Redis ────────────────────────────────────────────────────────────────────

// Publisher is the subset of a Redis client used by [RedisObserver].
// *redis.Client and *redis.ClusterClient satisfy it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisObserver publishes envelopes to a Redis pub/sub channel. Register it
// with [Registry.RegisterPersistent] so a failed publish does not remove it.
// The client is
// owned by the caller; Close does not close it.
type RedisObserver struct {
	client  Publisher
	channel string
}

var _ Observer = (*RedisObserver)(nil)

// NewRedisObserver creates an observer publishing to channel.
func NewRedisObserver(client Publisher, channel string) *RedisObserver {
	return &RedisObserver{client: client, channel: channel}
}

// Channel returns the pub/sub channel name.
func (o *RedisObserver) Channel() string { return o.channel }

// Send implements [Observer].
func (o *RedisObserver) Send(ctx context.Context, payload []byte) error {
	if err := o.client.Publish(ctx, o.channel, payload).Err(); err != nil {
		return fmt.Errorf("broadcast: redis publish to %q: %w", o.channel, err)
	}
	return nil
}

// Close implements [Observer].
func (o *RedisObserver) Close() error { return nil }

// ─── Channel ──────────────────────────────────────────────────────────────────

// ChanObserver hands envelopes to an in-process consumer through a buffered
// channel. Send blocks while the buffer is full, so a consumer that stops
// reading is pruned after the registry's send timeout.
type ChanObserver struct {
	ch        chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

var _ Observer = (*ChanObserver)(nil)

// NewChanObserver creates an observer with the given buffer size.
func NewChanObserver(buffer int) *ChanObserver {
	if buffer < 0 {
		buffer = 0
	}
	return &ChanObserver{ch: make(chan []byte, buffer), done: make(chan struct{})}
}

// C returns the channel of delivered payloads. It is never closed; select on
// [ChanObserver.Done] to learn when the observer was pruned.
func (o *ChanObserver) C() <-chan []byte { return o.ch }

// Done is closed once the observer has been closed.
func (o *ChanObserver) Done() <-chan struct{} { return o.done }

// Send implements [Observer].
func (o *ChanObserver) Send(ctx context.Context, payload []byte) error {
	select {
	case <-o.done:
		return ErrClosed
	default:
	}
	select {
	case o.ch <- payload:
		return nil
	case <-o.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements [Observer].
func (o *ChanObserver) Close() error {
	o.closeOnce.Do(func() { close(o.done) })
	return nil
}
