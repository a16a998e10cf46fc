package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrRPCExhausted = errors.New("all rpc endpoints failed")
	ErrNoEndpoints  = errors.New("no rpc endpoints configured")
)

const maxBackoff = 5 * time.Second

// Dialer opens a client for one endpoint.
type Dialer func(ctx context.Context, url string) (Client, error)

// FailoverOption configures a Failover
type FailoverOption func(*Failover)

// WithSleep replaces the wait between attempts. Tests pass a no-op.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) FailoverOption {
	return func(f *Failover) { f.sleep = sleep }
}

func WithLogger(log *zap.SugaredLogger) FailoverOption {
	return func(f *Failover) { f.log = log }
}

// Failover runs an operation against an ordered endpoint list, moving to
// the next endpoint on error. Clients are dialed lazily and cached.
type Failover struct {
	urls  []string
	dial  Dialer
	sleep func(ctx context.Context, d time.Duration) error
	log   *zap.SugaredLogger

	mu      sync.Mutex
	clients map[int]Client
}

func NewFailover(urls []string, dial Dialer, opts ...FailoverOption) (*Failover, error) {
	if len(urls) == 0 {
		return nil, ErrNoEndpoints
	}
	f := &Failover{
		urls:    append([]string(nil), urls...),
		dial:    dial,
		sleep:   sleepCtx,
		log:     zap.NewNop().Sugar(),
		clients: make(map[int]Client, len(urls)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Backoff is the wait after the i-th (zero-based) failed attempt.
func Backoff(i int) time.Duration {
	return min(time.Duration(i+1)*time.Second, maxBackoff)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (f *Failover) client(ctx context.Context, i int) (Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.clients[i]; ok {
		return c, nil
	}
	c, err := f.dial(ctx, f.urls[i])
	if err != nil {
		return nil, err
	}
	f.clients[i] = c
	return c, nil
}

// Do runs op against each endpoint in priority order until one succeeds.
func (f *Failover) Do(ctx context.Context, op func(ctx context.Context, c Client) error) error {
	var lastErr error
	for i := range f.urls {
		c, err := f.client(ctx, i)
		if err == nil {
			err = op(ctx, c)
			if err == nil {
				return nil
			}
		}
		lastErr = err
		f.log.Warnw("rpc endpoint failed",
			"endpoint", i,
			"attempt", i+1,
			"of", len(f.urls),
			"error", err,
		)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i < len(f.urls)-1 {
			if err := f.sleep(ctx, Backoff(i)); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRPCExhausted, len(f.urls), lastErr)
}

// Read runs a value-returning op with failover.
func Read[T any](ctx context.Context, f *Failover, op func(ctx context.Context, c Client) (T, error)) (T, error) {
	var out T
	err := f.Do(ctx, func(ctx context.Context, c Client) error {
		v, err := op(ctx, c)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Primary returns the first endpoint's client. Writes and receipt waits
// always go to it.
func (f *Failover) Primary(ctx context.Context) (Client, error) {
	c, err := f.client(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to dial primary rpc: %w", err)
	}
	return c, nil
}

func (f *Failover) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.clients {
		c.Close()
		delete(f.clients, i)
	}
}
