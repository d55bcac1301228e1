package client

import (
	"context"
	"sync"
	"time"

	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

// RefreshFunc exchanges a refresh token for a new token pair.
type RefreshFunc func(ctx context.Context, refreshToken string) (tokens.Pair, error)

// Resume is the continuation of a request queued behind a refresh. It
// receives the new access token, or the error that ended the refresh.
type Resume func(access string, err error)

// Coordinator serializes access-token refreshes.
//
// It owns the current access token (the default Authorization header), a
// refresh-in-progress flag and the queue of requests waiting on the
// refresh. At most one refresh call is outstanding at a time. Every
// continuation queued during a refresh runs exactly once when that refresh
// settles: all with the new access token, or all with the refresh error,
// one after another in the order they were queued.
//
// Signing out while a refresh is in flight wins: the refreshed pair is
// dropped and the queued continuations fail with ErrNotSignedIn.
type Coordinator struct {
	refresh     RefreshFunc
	loadRefresh func(ctx context.Context) (string, error)
	persist     func(ctx context.Context, pair tokens.Pair) error
	timeout     time.Duration
	log         *logger

	mu         sync.Mutex
	access     string
	refreshing bool
	queue      []Resume
	cycles     int
	signOuts   int
}

func newCoordinator(
	refresh RefreshFunc,
	loadRefresh func(ctx context.Context) (string, error),
	persist func(ctx context.Context, pair tokens.Pair) error,
	timeout time.Duration,
	log *logger,
) *Coordinator {
	return &Coordinator{
		refresh:     refresh,
		loadRefresh: loadRefresh,
		persist:     persist,
		timeout:     timeout,
		log:         log,
	}
}

// Token returns the access token future requests are sent with.
func (c *Coordinator) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access
}

// SetToken replaces the access token future requests are sent with.
func (c *Coordinator) SetToken(access string) {
	c.mu.Lock()
	c.access = access
	c.mu.Unlock()
}

// SignOut drops the access token and abandons the refresh in flight, if
// any. Callers clear the store after SignOut returns.
func (c *Coordinator) SignOut() {
	c.mu.Lock()
	c.access = ""
	c.signOuts++
	c.mu.Unlock()
}

// Refreshing reports whether a refresh call is outstanding.
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// Cycles returns how many refresh calls have been started.
func (c *Coordinator) Cycles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycles
}

// Queued returns how many continuations wait on the refresh in flight.
func (c *Coordinator) Queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Enqueue queues resume behind the current refresh, starting one if none is
// in flight, and returns without waiting. rejected is the access token the
// server just refused; if the current token already differs from it, a
// refresh finished since the request was sent and resume runs at once on
// the calling goroutine with the current token.
//
// Queued continuations run on the refresh goroutine in queue order, each
// one returning before the next starts. They cannot be cancelled. The
// refresh call is detached from ctx and bounded by the coordinator timeout
// instead, so one caller giving up does not fail everyone queued behind it.
func (c *Coordinator) Enqueue(ctx context.Context, rejected string, resume Resume) {
	c.mu.Lock()
	if !c.refreshing && c.access != "" && c.access != rejected {
		access := c.access
		c.mu.Unlock()
		resume(access, nil)
		return
	}
	start := !c.refreshing
	if start {
		c.refreshing = true
		c.cycles++
	}
	c.queue = append(c.queue, resume)
	signOuts := c.signOuts
	c.mu.Unlock()

	if start {
		go c.run(context.WithoutCancel(ctx), signOuts)
	}
}

// Await is Enqueue for callers that only need the token: it blocks until
// the refresh settles.
func (c *Coordinator) Await(ctx context.Context, rejected string) (string, error) {
	type result struct {
		access string
		err    error
	}
	done := make(chan result, 1)
	c.Enqueue(ctx, rejected, func(access string, err error) {
		done <- result{access, err}
	})
	r := <-done
	return r.access, r.err
}

func (c *Coordinator) run(ctx context.Context, signOuts int) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	pair, err := c.exchange(ctx)

	c.mu.Lock()
	if err == nil {
		if c.signOuts != signOuts {
			c.log.infof("coordinator: signed out during refresh, dropping refreshed tokens\n")
			pair, err = tokens.Pair{}, ErrNotSignedIn
		} else {
			// under the lock so a concurrent sign-out clears after us
			if perr := c.persist(ctx, pair); perr != nil {
				c.log.errorf("coordinator: failed to persist refreshed tokens: %v\n", perr)
			}
			c.access = pair.Access
			c.log.infof("coordinator: refreshed access token %s\n", tokens.Prefix(pair.Access))
		}
	}
	queue := c.queue
	c.queue = nil
	c.refreshing = false
	c.mu.Unlock()

	c.log.debugf("coordinator: refresh settled for %d queued requests (err=%v)\n", len(queue), err)
	for _, resume := range queue {
		resume(pair.Access, err)
	}
}

func (c *Coordinator) exchange(ctx context.Context) (tokens.Pair, error) {
	refreshToken, err := c.loadRefresh(ctx)
	if err != nil {
		c.log.errorf("coordinator: failed to load refresh token: %v\n", err)
		return tokens.Pair{}, err
	}
	if refreshToken == "" {
		return tokens.Pair{}, ErrNoToken
	}

	c.log.debugf("coordinator: refreshing with %s\n", tokens.Prefix(refreshToken))
	pair, err := c.refresh(ctx, refreshToken)
	if err != nil {
		c.log.errorf("coordinator: refresh failed: %v\n", err)
		return tokens.Pair{}, err
	}
	return pair, nil
}
